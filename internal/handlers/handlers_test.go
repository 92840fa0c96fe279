package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/forumx/backend/internal/apperr"
	"github.com/forumx/backend/internal/database"
	"github.com/forumx/backend/internal/models"
)

func TestPageParams(t *testing.T) {
	cases := []struct {
		page, limit     string
		wantPage, wantN int64
	}{
		{"1", "", 1, defaultPageSize},
		{"3", "10", 3, 10},
		{"0", "-2", 1, defaultPageSize},
		{"abc", "x", 1, defaultPageSize},
		{"2", "5000", 2, maxPageSize},
		{"9223372036854775807", "10", math.MaxInt64 / 10, 10},
	}
	for _, tc := range cases {
		page, limit := pageParams(tc.page, tc.limit)
		assert.Equal(t, tc.wantPage, page, tc.page)
		assert.Equal(t, tc.wantN, limit, tc.limit)
		assert.GreaterOrEqual(t, (page-1)*limit, int64(0), tc.page)
	}
}

func TestRankPopular(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	posts := []models.Post{
		{ID: "low", UpVote: 0, DownVote: 2, CreatedAt: base.Add(3 * time.Hour)},
		{ID: "tie-new", UpVote: 3, DownVote: 1, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "top", UpVote: 5, CreatedAt: base},
		{ID: "tie-old", UpVote: 2, CreatedAt: base.Add(time.Hour)},
	}
	rankPopular(posts)

	var ids []string
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"top", "tie-new", "tie-old", "low"}, ids)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "hello", sanitizeLine(`<script>alert(1)</script>hello`))
	assert.Equal(t, "bold", sanitizeLine("<b>bold</b>"))
	assert.Equal(t, "<b>bold</b>", sanitizeBody("<b>bold</b>"))
	assert.Equal(t, "<p>hi</p>", sanitizeBody(`<p onclick="x()">hi</p>`))
}

func TestFromStore(t *testing.T) {
	assert.NoError(t, fromStore(nil, "Post"))

	err := fromStore(fmt.Errorf("lookup: %w", database.ErrNotFound), "Post")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "Post not found", err.Error())

	err = fromStore(database.ErrConflict, "Comment")
	assert.Equal(t, http.StatusConflict, apperr.KindOf(err).Status())

	err = fromStore(errors.New("disk full"), "Tag")
	assert.Equal(t, http.StatusInternalServerError, apperr.KindOf(err).Status())
	assert.Contains(t, err.Error(), "disk full")
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "  ", "b", "c"))
	assert.Equal(t, "", firstNonEmpty())
}
