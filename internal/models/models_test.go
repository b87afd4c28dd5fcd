package models

import (
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusApproved, StatusRejected, StatusDeleted} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("spam").Valid())
	assert.False(t, Status("").Valid())
}

func TestParseEventKind(t *testing.T) {
	tests := []struct {
		input string
		want  EventKind
		ok    bool
	}{
		{"INSERT", EventInsert, true},
		{"insert", EventInsert, true},
		{"create", EventInsert, true},
		{"UPDATE", EventUpdate, true},
		{" DELETE ", EventDelete, true},
		{"TRUNCATE", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseEventKind(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompare_OrdersByTimeThenID(t *testing.T) {
	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	comments := []Comment{
		{ID: "c", CreatedAt: base.Add(time.Minute)},
		{ID: "b", CreatedAt: base},
		{ID: "a", CreatedAt: base},
	}

	slices.SortFunc(comments, Compare)

	ids := []string{comments[0].ID, comments[1].ID, comments[2].ID}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, 0, Compare(comments[0], comments[0]))
}

func TestComment_JSONShape(t *testing.T) {
	raw := `{
		"id": "c1",
		"post_id": "P1",
		"author_id": "u1",
		"content": "hello",
		"status": "approved",
		"created_at": "2025-01-02T03:04:05Z",
		"author": {"id": "u1", "email": "a@example.com", "user_metadata": {"avatar_url": "https://img/x.png"}}
	}`

	var c Comment
	require.NoError(t, json.Unmarshal([]byte(raw), &c))

	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, "P1", c.PostID)
	assert.Equal(t, StatusApproved, c.Status)
	assert.Nil(t, c.ParentID)
	require.NotNil(t, c.Author)
	assert.Equal(t, "https://img/x.png", c.Author.AvatarURL())
}

func TestGravatarURL(t *testing.T) {
	// md5("myemailaddress@example.com")
	const hash = "0bc83cb571cd1c50ba6f3e8a78ef1346"

	assert.Equal(t,
		"https://www.gravatar.com/avatar/"+hash+"?s=80&d=mp",
		GravatarURL("  MyEmailAddress@example.com ", 80))
}

func TestAuthor_AvatarURL_GravatarFallback(t *testing.T) {
	a := &Author{ID: "u1", Email: "MyEmailAddress@example.com"}
	assert.Equal(t, GravatarURL("myemailaddress@example.com", 80), a.AvatarURL())

	a.Metadata = map[string]any{"avatar_url": ""}
	assert.Equal(t, GravatarURL(a.Email, 80), a.AvatarURL(), "empty metadata entry falls back")
}

func TestAuthor_AvatarURL_Nil(t *testing.T) {
	var a *Author
	assert.Empty(t, a.AvatarURL())
	assert.Empty(t, (&Author{ID: "u1"}).AvatarURL())
}
