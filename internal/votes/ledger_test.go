package votes

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/forumx/backend/internal/apperr"
	"github.com/forumx/backend/internal/database"
	"github.com/forumx/backend/internal/models"
)

func newStore(t *testing.T) *database.MongoStore {
	t.Helper()
	s, err := database.NewMongo(context.Background(), "memory://votes", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNext(t *testing.T) {
	assert.Equal(t, Up, Next(NoVote, models.Upvote))
	assert.Equal(t, Down, Next(NoVote, models.Downvote))
	assert.Equal(t, NoVote, Next(Up, models.Upvote))
	assert.Equal(t, NoVote, Next(Down, models.Downvote))
	assert.Equal(t, Down, Next(Up, models.Downvote))
	assert.Equal(t, Up, Next(Down, models.Upvote))
}

func TestVotePost(t *testing.T) {
	store := newStore(t)
	ledger := NewLedger(store, zap.NewNop())
	ctx := context.Background()

	post := &models.Post{AuthorEmail: "alice@x.com", Title: "Hello"}
	require.NoError(t, store.CreatePost(ctx, post))

	tally, err := ledger.VotePost(ctx, post.ID, "a@x.com", models.Upvote)
	require.NoError(t, err)
	assert.Equal(t, models.PostTally{UpVote: 1, DownVote: 0}, tally)

	tally, err = ledger.VotePost(ctx, post.ID, "b@x.com", models.Upvote)
	require.NoError(t, err)
	assert.Equal(t, models.PostTally{UpVote: 2, DownVote: 0}, tally)

	// switch
	tally, err = ledger.VotePost(ctx, post.ID, "a@x.com", models.Downvote)
	require.NoError(t, err)
	assert.Equal(t, models.PostTally{UpVote: 1, DownVote: 1}, tally)

	// retract
	tally, err = ledger.VotePost(ctx, post.ID, "a@x.com", models.Downvote)
	require.NoError(t, err)
	assert.Equal(t, models.PostTally{UpVote: 1, DownVote: 0}, tally)

	stored, err := store.FindPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UpVote)
	assert.Equal(t, 0, stored.DownVote)
	assert.Equal(t, []models.Vote{{UserEmail: "b@x.com", VoteType: models.Upvote}}, stored.Votes)
}

func TestVotePostRoundTrip(t *testing.T) {
	store := newStore(t)
	ledger := NewLedger(store, zap.NewNop())
	ctx := context.Background()

	post := &models.Post{AuthorEmail: "alice@x.com", Title: "Hello"}
	require.NoError(t, store.CreatePost(ctx, post))

	for _, vt := range []models.VoteType{models.Upvote, models.Downvote} {
		_, err := ledger.VotePost(ctx, post.ID, "a@x.com", vt)
		require.NoError(t, err)
		tally, err := ledger.VotePost(ctx, post.ID, "a@x.com", vt)
		require.NoError(t, err)
		assert.Equal(t, models.PostTally{}, tally)
	}

	stored, err := store.FindPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Votes)
}

func TestVoteComment(t *testing.T) {
	store := newStore(t)
	ledger := NewLedger(store, zap.NewNop())
	ctx := context.Background()

	comment := &models.Comment{PostID: "p1", Text: "hi", UserEmail: "alice@x.com"}
	require.NoError(t, store.CreateComment(ctx, comment))

	tally, err := ledger.VoteComment(ctx, comment.ID, "a@x.com", models.Upvote)
	require.NoError(t, err)
	assert.Equal(t, models.CommentTally{Upvotes: 1}, tally)

	tally, err = ledger.VoteComment(ctx, comment.ID, "a@x.com", models.Downvote)
	require.NoError(t, err)
	assert.Equal(t, models.CommentTally{Downvotes: 1}, tally)

	stored, err := store.FindComment(ctx, comment.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Upvoters)
	assert.Equal(t, []string{"a@x.com"}, []string(stored.Downvoters))
	assert.Equal(t, 0, stored.Upvotes)
	assert.Equal(t, 1, stored.Downvotes)

	tally, err = ledger.VoteComment(ctx, comment.ID, "a@x.com", models.Downvote)
	require.NoError(t, err)
	assert.Equal(t, models.CommentTally{}, tally)
}

func TestVoteValidation(t *testing.T) {
	store := newStore(t)
	ledger := NewLedger(store, zap.NewNop())
	ctx := context.Background()

	post := &models.Post{AuthorEmail: "alice@x.com", Title: "Hello"}
	require.NoError(t, store.CreatePost(ctx, post))

	_, err := ledger.VotePost(ctx, post.ID, "a@x.com", "sideways")
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))

	_, err = ledger.VotePost(ctx, post.ID, " ", models.Upvote)
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))

	_, err = ledger.VoteComment(ctx, "c1", "a@x.com", "")
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
}

func TestVoteMissingTarget(t *testing.T) {
	store := newStore(t)
	ledger := NewLedger(store, zap.NewNop())
	ctx := context.Background()

	_, err := ledger.VotePost(ctx, "nonexistent", "a@x.com", models.Upvote)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = ledger.VoteComment(ctx, "nonexistent", "a@x.com", models.Upvote)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	n, err := store.CountPosts(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

// racingStore makes the first writes fail as if another voter got there first.
type racingStore struct {
	*database.MongoStore
	mu        sync.Mutex
	conflicts int
	other     string
}

func (s *racingStore) UpdatePostVotes(ctx context.Context, id string, revision int64, votes []models.Vote, up, down int) error {
	s.mu.Lock()
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		// the competing vote lands between our read and our write
		post, err := s.MongoStore.FindPost(ctx, id)
		if err != nil {
			return err
		}
		competing, u, d := applyToPost(post.Votes, s.other, models.Upvote)
		if err := s.MongoStore.UpdatePostVotes(ctx, id, post.Revision, competing, u, d); err != nil {
			return err
		}
		return database.ErrConflict
	}
	s.mu.Unlock()
	return s.MongoStore.UpdatePostVotes(ctx, id, revision, votes, up, down)
}

func TestVotePostRetriesOnConflict(t *testing.T) {
	store := &racingStore{MongoStore: newStore(t), conflicts: 1, other: "b@x.com"}
	ledger := NewLedger(store, zap.NewNop())
	ctx := context.Background()

	post := &models.Post{AuthorEmail: "alice@x.com", Title: "Hello"}
	require.NoError(t, store.CreatePost(ctx, post))

	tally, err := ledger.VotePost(ctx, post.ID, "a@x.com", models.Upvote)
	require.NoError(t, err)
	assert.Equal(t, models.PostTally{UpVote: 2}, tally)

	stored, err := store.FindPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.UpVote)
	assert.Len(t, stored.Votes, 2)
}

type conflictingStore struct {
	*database.MongoStore
	writes int
}

func (s *conflictingStore) UpdateCommentVotes(context.Context, string, int64, []string, []string) error {
	s.writes++
	return database.ErrConflict
}

func TestVoteCommentGivesUpAfterMaxAttempts(t *testing.T) {
	store := &conflictingStore{MongoStore: newStore(t)}
	ledger := NewLedger(store, zap.NewNop())
	ctx := context.Background()

	comment := &models.Comment{PostID: "p1", Text: "hi", UserEmail: "alice@x.com"}
	require.NoError(t, store.CreateComment(ctx, comment))

	_, err := ledger.VoteComment(ctx, comment.ID, "a@x.com", models.Upvote)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, DefaultMaxAttempts, store.writes)
}

type failingStore struct {
	*database.MongoStore
}

func (failingStore) UpdatePostVotes(context.Context, string, int64, []models.Vote, int, int) error {
	return errors.New("disk full")
}

func TestVoteStoreError(t *testing.T) {
	store := failingStore{newStore(t)}
	ledger := NewLedger(store, zap.NewNop())
	ctx := context.Background()

	post := &models.Post{AuthorEmail: "alice@x.com", Title: "Hello"}
	require.NoError(t, store.CreatePost(ctx, post))

	_, err := ledger.VotePost(ctx, post.ID, "a@x.com", models.Upvote)
	assert.Equal(t, apperr.KindStore, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestApplyToCommentKeepsSetsDisjoint(t *testing.T) {
	up, down := applyToComment([]string{"a", "b"}, []string{"c"}, "b", models.Downvote)
	assert.Equal(t, []string{"a"}, up)
	assert.Equal(t, []string{"c", "b"}, down)

	up, down = applyToComment(up, down, "c", models.Downvote)
	assert.Equal(t, []string{"a"}, up)
	assert.Equal(t, []string{"b"}, down)
}
