package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"talktome/internal/errs"
)

const (
	msgNetwork      = "Network error. Please check your connection."
	msgServer       = "The comment service is unavailable. Please try again."
	msgTooMany      = "Too many requests. Please try again shortly."
	msgUnauthorized = "You do not have permission to do that"
	msgCancelled    = "The request was cancelled"
	msgRequest      = "The request was rejected"
)

// apiError is the PostgREST error body.
type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// classifyTransport maps a failed round trip. Caller cancellation is terminal,
// connectivity failures are retryable, anything else is a malformed request.
func classifyTransport(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errs.Wrap(errs.KindTimeout, msgCancelled, err)
	}
	if errs.IsNetworkError(err) {
		return errs.Transient(msgNetwork, err)
	}
	return errs.Wrap(errs.KindRequest, msgRequest, err)
}

// classifyStatus maps a non-2xx response: 408, 429 and 5xx are transient,
// 401 and 403 are authorization failures, any other 4xx is a rejected request.
func classifyStatus(status int, body []byte) error {
	cause := fmt.Errorf("status %d: %s", status, describe(body))

	switch {
	case status == http.StatusRequestTimeout:
		return errs.Transient(msgServer, cause)
	case status == http.StatusTooManyRequests:
		return errs.Transient(msgTooMany, cause)
	case status >= 500:
		return errs.Transient(msgServer, cause)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.Wrap(errs.KindAuthorization, msgUnauthorized, cause)
	case status == http.StatusNotFound:
		return errs.Wrap(errs.KindNotFound, "Not found", cause)
	default:
		return errs.Wrap(errs.KindRequest, msgRequest, cause)
	}
}

func describe(body []byte) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "empty response"
	}
	return s
}
