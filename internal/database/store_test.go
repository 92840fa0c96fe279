package database

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/forumx/backend/internal/models"
)

var (
	pgOnce      sync.Once
	pgContainer *postgres.PostgresContainer
	pgDSN       string
	pgErr       error
)

func TestMain(m *testing.M) {
	code := m.Run()
	if pgContainer != nil {
		_ = pgContainer.Terminate(context.Background())
	}
	os.Exit(code)
}

func postgresTestDSN(t *testing.T) string {
	testcontainers.SkipIfProviderIsNotHealthy(t)

	pgOnce.Do(func() {
		ctx := context.Background()
		pgContainer, pgErr = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("forumx"),
			postgres.WithUsername("forumx"),
			postgres.WithPassword("forumx"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(time.Minute),
			),
		)
		if pgErr != nil {
			return
		}
		pgDSN, pgErr = pgContainer.ConnectionString(ctx, "sslmode=disable")
	})
	require.NoError(t, pgErr)

	return pgDSN
}

// withStores runs fn against every backend on a fresh, empty store.
func withStores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("Mongo", func(t *testing.T) {
		s, err := NewMongo(context.Background(), "memory://forumx", zap.NewNop())
		require.NoError(t, err)
		defer s.Close()

		fn(t, s)
	})

	t.Run("Postgres", func(t *testing.T) {
		if testing.Short() {
			t.Skip("skipping container test in short mode")
		}

		s, err := NewPostgres(postgresTestDSN(t), zap.NewNop())
		require.NoError(t, err)
		defer s.Close()

		err = s.db.Exec("TRUNCATE users, posts, votes, comments, reports, notifications, tags, announcements, payments").Error
		require.NoError(t, err)

		fn(t, s)
	})
}

func TestUsers(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		created, err := s.UpsertUser(ctx, &models.User{Email: "alice@x.com", Name: "Alice"})
		require.NoError(t, err)
		assert.True(t, created)

		created, err = s.UpsertUser(ctx, &models.User{Email: "alice@x.com", Name: "Other"})
		require.NoError(t, err)
		assert.False(t, created)

		u, err := s.FindUserByEmail(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.Equal(t, "Alice", u.Name)
		assert.Equal(t, models.RoleUser, u.Role)
		assert.Equal(t, models.BadgeBronze, u.Badge)
		assert.False(t, u.Membership)

		byID, err := s.FindUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.Email, byID.Email)

		_, err = s.FindUserByEmail(ctx, "nobody@x.com")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.SetUserRole(ctx, u.ID, models.RoleAdmin))
		assert.ErrorIs(t, s.SetUserRole(ctx, "missing", models.RoleAdmin), ErrNotFound)

		require.NoError(t, s.GrantMembership(ctx, "alice@x.com", models.BadgeGold))
		assert.ErrorIs(t, s.GrantMembership(ctx, "nobody@x.com", models.BadgeGold), ErrNotFound)

		name := "Alice A."
		require.NoError(t, s.UpdateUserProfile(ctx, "alice@x.com", models.UpdateProfileRequest{Name: &name}))
		assert.ErrorIs(t, s.UpdateUserProfile(ctx, "nobody@x.com", models.UpdateProfileRequest{Name: &name}), ErrNotFound)

		u, err = s.FindUserByEmail(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.Equal(t, "Alice A.", u.Name)
		assert.True(t, u.IsAdmin())
		assert.True(t, u.Membership)
		assert.Equal(t, models.BadgeGold, u.Badge)

		_, err = s.UpsertUser(ctx, &models.User{Email: "bob@x.com", Name: "Bob"})
		require.NoError(t, err)

		total, err := s.CountUsers(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)

		gold, err := s.CountUsers(ctx, models.BadgeGold)
		require.NoError(t, err)
		assert.Equal(t, int64(1), gold)

		users, err := s.ListUsers(ctx, "")
		require.NoError(t, err)
		assert.Len(t, users, 2)
	})
}

func TestPostVotes(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		post := &models.Post{AuthorEmail: "alice@x.com", Title: "Hello", Tags: []string{"go"}}
		require.NoError(t, s.CreatePost(ctx, post))
		require.NotEmpty(t, post.ID)

		p, err := s.FindPost(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), p.Revision)
		assert.Empty(t, p.Votes)
		assert.NotNil(t, p.Votes)

		votes := []models.Vote{
			{UserEmail: "a@x.com", VoteType: models.Upvote},
			{UserEmail: "b@x.com", VoteType: models.Downvote},
		}
		require.NoError(t, s.UpdatePostVotes(ctx, post.ID, 0, votes, 1, 1))

		p, err = s.FindPost(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), p.Revision)
		assert.Equal(t, 1, p.UpVote)
		assert.Equal(t, 1, p.DownVote)
		require.Len(t, p.Votes, 2)
		assert.Equal(t, "a@x.com", p.Votes[0].UserEmail)
		assert.Equal(t, models.Upvote, p.Votes[0].VoteType)

		// stale revision
		err = s.UpdatePostVotes(ctx, post.ID, 0, nil, 0, 0)
		assert.ErrorIs(t, err, ErrConflict)

		err = s.UpdatePostVotes(ctx, "missing", 0, nil, 0, 0)
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.UpdatePostVotes(ctx, post.ID, 1, nil, 0, 0))
		p, err = s.FindPost(ctx, post.ID)
		require.NoError(t, err)
		assert.Empty(t, p.Votes)
		assert.Equal(t, 0, p.UpVote)
		assert.Equal(t, int64(2), p.Revision)

		require.NoError(t, s.DeletePost(ctx, post.ID))
		assert.ErrorIs(t, s.DeletePost(ctx, post.ID), ErrNotFound)
		_, err = s.FindPost(ctx, post.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListPosts(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		for i, author := range []string{"a@x.com", "b@x.com", "a@x.com"} {
			err := s.CreatePost(ctx, &models.Post{
				AuthorEmail: author,
				Title:       fmt.Sprintf("post %d", i),
				Tags:        []string{"go", " news ", "go"},
				CreatedAt:   base.Add(time.Duration(i) * time.Hour),
			})
			require.NoError(t, err)
		}

		posts, err := s.ListPosts(ctx, PostQuery{})
		require.NoError(t, err)
		require.Len(t, posts, 3)
		assert.Equal(t, "post 2", posts[0].Title)
		assert.Equal(t, "post 0", posts[2].Title)
		assert.Equal(t, []string{"go", "news"}, []string(posts[0].Tags))

		page, err := s.ListPosts(ctx, PostQuery{Skip: 1, Limit: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "post 1", page[0].Title)

		mine, err := s.ListPosts(ctx, PostQuery{AuthorEmail: "a@x.com"})
		require.NoError(t, err)
		assert.Len(t, mine, 2)

		n, err := s.CountPosts(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		n, err = s.CountPosts(ctx, "b@x.com")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		counts, err := s.TagCounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, []models.TagCount{{Name: "go", Count: 3}, {Name: "news", Count: 3}}, counts)
	})
}

func TestComments(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		first := &models.Comment{PostID: "p1", Text: "first", UserEmail: "a@x.com", CreatedAt: base}
		second := &models.Comment{PostID: "p1", Text: "second", UserEmail: "b@x.com", CreatedAt: base.Add(time.Minute)}
		other := &models.Comment{PostID: "p2", Text: "other", UserEmail: "a@x.com", CreatedAt: base}
		for _, c := range []*models.Comment{second, first, other} {
			require.NoError(t, s.CreateComment(ctx, c))
		}

		list, err := s.ListComments(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "first", list[0].Text)
		assert.Nil(t, list[0].ParentID)
		assert.NotNil(t, list[0].Upvoters)

		counts, err := s.CountComments(ctx, []string{"p1", "p2", "p3"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), counts["p1"])
		assert.Equal(t, int64(1), counts["p2"])
		assert.Zero(t, counts["p3"])

		total, err := s.CountAllComments(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)

		found, err := s.FindComments(ctx, []string{first.ID, "missing"})
		require.NoError(t, err)
		assert.Len(t, found, 1)
		assert.Equal(t, "first", found[first.ID].Text)

		require.NoError(t, s.UpdateCommentVotes(ctx, first.ID, 0, []string{"c@x.com"}, nil))
		assert.ErrorIs(t, s.UpdateCommentVotes(ctx, first.ID, 0, nil, nil), ErrConflict)
		assert.ErrorIs(t, s.UpdateCommentVotes(ctx, "missing", 0, nil, nil), ErrNotFound)

		c, err := s.FindComment(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"c@x.com"}, []string(c.Upvoters))
		assert.Empty(t, c.Downvoters)
		assert.Equal(t, 1, c.Upvotes)
		assert.Equal(t, 0, c.Downvotes)
		assert.Equal(t, int64(1), c.Revision)

		require.NoError(t, s.MarkCommentReported(ctx, first.ID))
		assert.ErrorIs(t, s.MarkCommentReported(ctx, "missing"), ErrNotFound)

		require.NoError(t, s.UpdateCommentText(ctx, first.ID, "edited"))
		c, err = s.FindComment(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, c.Reported)
		assert.Equal(t, "edited", c.Text)

		require.NoError(t, s.DeleteComment(ctx, first.ID))
		assert.ErrorIs(t, s.DeleteComment(ctx, first.ID), ErrNotFound)
		_, err = s.FindComment(ctx, first.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestReports(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		older := &models.Report{ID: "r1", CommentID: "c1", ReportedBy: "a@x.com", Reason: "spam", Status: models.ReportPending, Date: base}
		newer := &models.Report{ID: "r2", CommentID: "c2", ReportedBy: "a@x.com", Reason: "rude", Status: models.ReportPending, Date: base.Add(time.Hour)}

		created, err := s.InsertReport(ctx, older)
		require.NoError(t, err)
		assert.True(t, created)

		replay := *older
		replay.Reason = "changed"
		created, err = s.InsertReport(ctx, &replay)
		require.NoError(t, err)
		assert.False(t, created)

		_, err = s.InsertReport(ctx, newer)
		require.NoError(t, err)

		list, err := s.ListReports(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "r2", list[0].ID)
		assert.Equal(t, "spam", list[1].Reason)

		require.NoError(t, s.TransitionReport(ctx, "r1", models.ReportPending, models.ReportReviewed))
		assert.ErrorIs(t, s.TransitionReport(ctx, "r1", models.ReportPending, models.ReportDismissed), ErrConflict)
		assert.ErrorIs(t, s.TransitionReport(ctx, "missing", models.ReportPending, models.ReportDismissed), ErrNotFound)

		r, err := s.FindReport(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, models.ReportReviewed, r.Status)
		assert.NotNil(t, r.UpdatedAt)

		_, err = s.FindReport(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestNotifications(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		for i, id := range []string{"n1", "n2", "n3"} {
			created, err := s.InsertNotification(ctx, &models.Notification{
				ID:        id,
				UserEmail: "bob@x.com",
				Message:   "hello",
				Date:      base.Add(time.Duration(i) * time.Minute),
			})
			require.NoError(t, err)
			assert.True(t, created)
		}

		created, err := s.InsertNotification(ctx, &models.Notification{ID: "n1", UserEmail: "bob@x.com", Message: "again"})
		require.NoError(t, err)
		assert.False(t, created)

		list, err := s.ListNotifications(ctx, "bob@x.com")
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "n3", list[0].ID)
		assert.Equal(t, "hello", list[2].Message)

		require.NoError(t, s.MarkNotificationRead(ctx, "n1"))
		require.NoError(t, s.MarkNotificationRead(ctx, "n1"))
		assert.ErrorIs(t, s.MarkNotificationRead(ctx, "missing"), ErrNotFound)

		n, err := s.FindNotification(ctx, "n1")
		require.NoError(t, err)
		assert.True(t, n.Read)

		changed, err := s.MarkAllNotificationsRead(ctx, "bob@x.com")
		require.NoError(t, err)
		assert.Equal(t, int64(2), changed)

		changed, err = s.MarkAllNotificationsRead(ctx, "bob@x.com")
		require.NoError(t, err)
		assert.Zero(t, changed)

		removed, err := s.ClearNotifications(ctx, "bob@x.com")
		require.NoError(t, err)
		assert.Equal(t, int64(3), removed)

		list, err = s.ListNotifications(ctx, "bob@x.com")
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestTags(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		added, err := s.EnsureTags(ctx, []string{"go", " go", "rust", ""})
		require.NoError(t, err)
		assert.Equal(t, 2, added)

		added, err = s.EnsureTags(ctx, []string{"go", "zig"})
		require.NoError(t, err)
		assert.Equal(t, 1, added)

		tags, err := s.ListTags(ctx)
		require.NoError(t, err)
		require.Len(t, tags, 3)
		assert.Equal(t, "go", tags[0].Name)
		assert.Equal(t, "zig", tags[2].Name)

		require.NoError(t, s.DeleteTag(ctx, tags[0].ID))
		assert.ErrorIs(t, s.DeleteTag(ctx, tags[0].ID), ErrNotFound)
	})
}

func TestAnnouncementsAndPayments(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		a := &models.Announcement{Title: "Welcome", Description: "Hi", AuthorEmail: "admin@x.com"}
		require.NoError(t, s.CreateAnnouncement(ctx, a))
		require.NotEmpty(t, a.ID)

		n, err := s.CountAnnouncements(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		require.NoError(t, s.UpdateAnnouncement(ctx, a.ID, "Welcome!", "Hello"))
		assert.ErrorIs(t, s.UpdateAnnouncement(ctx, "missing", "x", "y"), ErrNotFound)

		list, err := s.ListAnnouncements(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Welcome!", list[0].Title)
		assert.NotNil(t, list[0].UpdatedAt)

		require.NoError(t, s.DeleteAnnouncement(ctx, a.ID))
		assert.ErrorIs(t, s.DeleteAnnouncement(ctx, a.ID), ErrNotFound)

		p := &models.Payment{UserEmail: "alice@x.com", AmountCents: 999, Currency: "usd", PaymentIntentID: "pi_1"}
		require.NoError(t, s.InsertPayment(ctx, p))
		assert.NotEmpty(t, p.ID)
		assert.False(t, p.CreatedAt.IsZero())
	})
}

func TestHealth(t *testing.T) {
	withStores(t, func(t *testing.T, s Store) {
		stats := s.Health(context.Background())
		assert.Equal(t, "up", stats["status"])
	})
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"go", "db"}, normalizeTags([]string{" go", "", "db", "go "}))
	assert.Empty(t, normalizeTags(nil))
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `%50\%\_off%`, likePattern("50%_off"))
}
