package security

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"talktome/internal/errs"
)

const (
	// MaxCommentLength is the longest accepted comment, in characters,
	// measured after sanitization.
	MaxCommentLength = 1000
	// MinCommentLength is the shortest accepted comment.
	MinCommentLength = 1
)

// ReasonEmpty is the rejection reason for blank content.
const ReasonEmpty = "Comment cannot be empty"

// ReasonTooLong is the rejection reason for over-long content.
var ReasonTooLong = fmt.Sprintf("Comment cannot exceed %d characters", MaxCommentLength)

// Result is the outcome of Validate.
type Result struct {
	Valid  bool
	Reason string
}

// Err converts an invalid result into a validation error.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return errs.Validation(r.Reason)
}

// Validate checks trimmed, sanitized content against the length bounds.
// It never panics or returns an error; the reason is part of the result.
func Validate(content string) Result {
	n := utf8.RuneCountInString(clean(content))
	if n < MinCommentLength {
		return Result{Valid: false, Reason: ReasonEmpty}
	}
	if n > MaxCommentLength {
		return Result{Valid: false, Reason: ReasonTooLong}
	}
	return Result{Valid: true}
}

// Prepare returns the sanitized form of content ready for submission, or a
// validation error.
func Prepare(content string) (string, error) {
	if err := Validate(content).Err(); err != nil {
		return "", err
	}
	return clean(content), nil
}

func clean(content string) string {
	return strings.TrimSpace(Sanitize(strings.TrimSpace(content)))
}
