package thread

import (
	"fmt"
	"math"
	"testing"
	"time"

	"talktome/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisible(t *testing.T) {
	comments := []models.Comment{
		comment("c3", models.StatusApproved, 3),
		comment("c1", models.StatusPending, 1),
		comment("c2", models.StatusRejected, 2),
		comment("c4", models.StatusDeleted, 4),
		comment("c0", models.StatusApproved, 0),
	}

	assert.Equal(t, []string{"c0", "c3"}, ids(Visible(comments, false)))
	assert.Equal(t, []string{"c0", "c1", "c3"}, ids(Visible(comments, true)))
}

func TestVisible_TiesOrderedByID(t *testing.T) {
	same := []models.Comment{
		comment("b", models.StatusApproved, 1),
		comment("c", models.StatusApproved, 1),
		comment("a", models.StatusApproved, 1),
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids(Visible(same, false)))
}

func TestVisible_SanitizesContent(t *testing.T) {
	c := comment("c1", models.StatusApproved, 1)
	c.Content = `<b>hi</b><script>alert(1)</script>`

	out := Visible([]models.Comment{c}, false)
	require.Len(t, out, 1)
	assert.Equal(t, "<b>hi</b>", out[0].Content)
}

func manyApproved(n int) []models.Comment {
	out := make([]models.Comment, n)
	for i := range out {
		out[i] = comment(fmt.Sprintf("c%02d", i), models.StatusApproved, i)
		out[i].CreatedAt = t0.Add(time.Duration(i) * time.Second)
	}
	return out
}

func TestPaginate(t *testing.T) {
	visible := Visible(manyApproved(25), false)

	p1 := Paginate(visible, 1)
	assert.Len(t, p1.Comments, 20)
	assert.True(t, p1.HasMore)
	assert.Equal(t, 2, p1.NextPage)
	assert.Equal(t, 25, p1.Total)
	assert.Equal(t, "c00", p1.Comments[0].ID)

	p2 := Paginate(visible, 2)
	assert.Len(t, p2.Comments, 5)
	assert.False(t, p2.HasMore)
	assert.Equal(t, 3, p2.NextPage)
	assert.Equal(t, "c20", p2.Comments[0].ID)

	assert.Equal(t, p1.Comments, Paginate(visible, 0).Comments)
	assert.Equal(t, 1, Paginate(visible, -3).Number)
	assert.Empty(t, Paginate(visible, 5).Comments)
}

func TestPaginate_LargePageNumbers(t *testing.T) {
	visible := Visible(manyApproved(25), false)

	tests := []struct {
		name string
		page int
	}{
		{"just past the end", 3},
		{"max int", math.MaxInt},
		{"overflowing offset", math.MaxInt/PageSize + 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(visible, tt.page)
			assert.Empty(t, p.Comments)
			assert.False(t, p.HasMore)
			assert.Equal(t, tt.page, p.Number)
			assert.Equal(t, 25, p.Total)
		})
	}
}

func TestPaginate_Empty(t *testing.T) {
	p := Paginate(nil, 1)
	assert.Empty(t, p.Comments)
	assert.False(t, p.HasMore)
}
