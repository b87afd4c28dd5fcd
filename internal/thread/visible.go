package thread

import (
	"math"
	"slices"

	"talktome/internal/models"
	"talktome/internal/security"
)

// PageSize is the number of comments shown per page.
const PageSize = 20

// Visible returns approved comments, plus pending ones for administrators,
// ordered by creation time then ID, with content sanitized for display.
func Visible(comments []models.Comment, isAdmin bool) []models.Comment {
	out := make([]models.Comment, 0, len(comments))
	for _, c := range comments {
		switch {
		case c.Status == models.StatusApproved:
		case isAdmin && c.Status == models.StatusPending:
		default:
			continue
		}
		c.Content = security.Sanitize(c.Content)
		out = append(out, c)
	}
	slices.SortFunc(out, models.Compare)
	return out
}

// Page is one slice of the visible set.
type Page struct {
	Comments []models.Comment
	Number   int
	HasMore  bool
	// NextPage is always Number+1; callers check HasMore before using it.
	NextPage int
	Total    int
}

// Paginate returns page number page (1-based) of comments. Pages below 1 are
// treated as 1.
func Paginate(comments []models.Comment, page int) Page {
	if page < 1 {
		page = 1
	}

	start := len(comments)
	if page-1 <= len(comments)/PageSize {
		start = min((page-1)*PageSize, len(comments))
	}
	end := min(start+PageSize, len(comments))

	p := Page{
		Comments: slices.Clone(comments[start:end]),
		Number:   page,
		HasMore:  end < len(comments),
		Total:    len(comments),
	}
	if page < math.MaxInt {
		p.NextPage = page + 1
	}
	return p
}
