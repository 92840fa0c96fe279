// Package votes keeps the per-user vote records of posts and comments and the
// counters derived from them in step.
package votes

import (
	"context"
	"errors"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/forumx/backend/internal/apperr"
	"github.com/forumx/backend/internal/database"
	"github.com/forumx/backend/internal/models"
)

// DefaultMaxAttempts bounds the re-read/re-apply loop on a lost race.
const DefaultMaxAttempts = 5

// Store is the part of the content store the ledger needs.
type Store interface {
	FindPost(ctx context.Context, id string) (*models.Post, error)
	UpdatePostVotes(ctx context.Context, id string, revision int64, votes []models.Vote, up, down int) error
	FindComment(ctx context.Context, id string) (*models.Comment, error)
	UpdateCommentVotes(ctx context.Context, id string, revision int64, upvoters, downvoters []string) error
}

// State is a single user's standing on one target.
type State int

const (
	NoVote State = iota
	Up
	Down
)

func stateOf(t models.VoteType) State {
	if t == models.Upvote {
		return Up
	}
	return Down
}

func (s State) voteType() models.VoteType {
	if s == Up {
		return models.Upvote
	}
	return models.Downvote
}

// Next is the toggle rule: voting the standing type retracts it, any other
// vote replaces the standing one.
func Next(prior State, requested models.VoteType) State {
	want := stateOf(requested)
	if prior == want {
		return NoVote
	}
	return want
}

// Ledger applies toggle votes to posts and comments with optimistic retries.
type Ledger struct {
	store       Store
	logger      *zap.Logger
	maxAttempts int
}

// NewLedger creates a ledger that retries up to DefaultMaxAttempts times.
func NewLedger(store Store, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, logger: logger, maxAttempts: DefaultMaxAttempts}
}

// VotePost applies userEmail's vote to a post and returns the new counters.
func (l *Ledger) VotePost(ctx context.Context, postID, userEmail string, voteType models.VoteType) (models.PostTally, error) {
	userEmail, err := validate(userEmail, voteType)
	if err != nil {
		return models.PostTally{}, err
	}

	var tally models.PostTally
	err = l.retry(ctx, "post", postID, func() error {
		post, err := l.store.FindPost(ctx, postID)
		if err != nil {
			return err
		}
		votes, up, down := applyToPost(post.Votes, userEmail, voteType)
		if err := l.store.UpdatePostVotes(ctx, postID, post.Revision, votes, up, down); err != nil {
			return err
		}
		tally = models.PostTally{UpVote: up, DownVote: down}
		return nil
	})
	return tally, err
}

// VoteComment applies userEmail's vote to a comment and returns the new counters.
func (l *Ledger) VoteComment(ctx context.Context, commentID, userEmail string, voteType models.VoteType) (models.CommentTally, error) {
	userEmail, err := validate(userEmail, voteType)
	if err != nil {
		return models.CommentTally{}, err
	}

	var tally models.CommentTally
	err = l.retry(ctx, "comment", commentID, func() error {
		comment, err := l.store.FindComment(ctx, commentID)
		if err != nil {
			return err
		}
		upvoters, downvoters := applyToComment(comment.Upvoters, comment.Downvoters, userEmail, voteType)
		if err := l.store.UpdateCommentVotes(ctx, commentID, comment.Revision, upvoters, downvoters); err != nil {
			return err
		}
		tally = models.CommentTally{Upvotes: len(upvoters), Downvotes: len(downvoters)}
		return nil
	})
	return tally, err
}

func validate(userEmail string, voteType models.VoteType) (string, error) {
	userEmail = strings.TrimSpace(userEmail)
	if userEmail == "" {
		return "", apperr.InvalidArgument("userEmail is required")
	}
	if !voteType.Valid() {
		return "", apperr.InvalidArgument("type must be %q or %q", models.Upvote, models.Downvote)
	}
	return userEmail, nil
}

// retry runs attempt until it succeeds, fails with anything other than a
// revision conflict, or runs out of attempts.
func (l *Ledger) retry(ctx context.Context, kind, id string, attempt func() error) error {
	for i := 1; ; i++ {
		err := attempt()
		switch {
		case err == nil:
			return nil
		case errors.Is(err, database.ErrNotFound):
			return apperr.NotFound("%s not found", kind)
		case !errors.Is(err, database.ErrConflict):
			return apperr.Store(err, "failed to record vote")
		case i >= l.maxAttempts:
			l.logger.Warn("vote conflict not resolved",
				zap.String("target", kind), zap.String("id", id), zap.Int("attempts", i))
			return apperr.Conflict("%s is being voted on concurrently, try again", kind)
		}
		if err := ctx.Err(); err != nil {
			return apperr.Store(err, "failed to record vote")
		}
		l.logger.Debug("vote conflict, retrying",
			zap.String("target", kind), zap.String("id", id), zap.Int("attempt", i))
	}
}

// applyToPost returns the vote records after the user's vote and the counters
// projected from them.
func applyToPost(votes []models.Vote, userEmail string, voteType models.VoteType) ([]models.Vote, int, int) {
	prior := NoVote
	next := make([]models.Vote, 0, len(votes)+1)
	for _, v := range votes {
		if v.UserEmail == userEmail {
			prior = stateOf(v.VoteType)
			continue
		}
		next = append(next, models.Vote{UserEmail: v.UserEmail, VoteType: v.VoteType})
	}

	if s := Next(prior, voteType); s != NoVote {
		next = append(next, models.Vote{UserEmail: userEmail, VoteType: s.voteType()})
	}

	up, down := 0, 0
	for _, v := range next {
		if v.VoteType == models.Upvote {
			up++
		} else {
			down++
		}
	}
	return next, up, down
}

// applyToComment returns the voter sets after the user's vote. The user ends
// up in at most one of them.
func applyToComment(upvoters, downvoters []string, userEmail string, voteType models.VoteType) ([]string, []string) {
	prior := NoVote
	if slices.Contains(upvoters, userEmail) {
		prior = Up
	} else if slices.Contains(downvoters, userEmail) {
		prior = Down
	}

	up := without(upvoters, userEmail)
	down := without(downvoters, userEmail)
	switch Next(prior, voteType) {
	case Up:
		up = append(up, userEmail)
	case Down:
		down = append(down, userEmail)
	}
	return up, down
}

func without(set []string, s string) []string {
	out := make([]string, 0, len(set)+1)
	for _, v := range set {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
