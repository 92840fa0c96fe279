package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/forumx/backend/internal/config"
	"github.com/forumx/backend/internal/models"
)

var (
	// ErrNotFound is returned when the addressed document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned by compare-and-set writes whose expected
	// revision or status no longer matches the stored one.
	ErrConflict = errors.New("concurrent modification")
)

// Store is the content store facade shared by handlers and services.
type Store interface {
	UserStore
	PostStore
	CommentStore
	ReportStore
	NotificationStore
	TagStore
	AnnouncementStore
	PaymentStore

	// Health returns a map of health status information.
	// The keys and values in the map are backend-specific.
	Health(ctx context.Context) map[string]string

	// Close terminates the connection.
	Close() error
}

type UserStore interface {
	// UpsertUser creates u when no user has its email, otherwise it only
	// refreshes the stored user's last login. It reports whether u was created.
	UpsertUser(ctx context.Context, u *models.User) (bool, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUserProfile(ctx context.Context, email string, req models.UpdateProfileRequest) error
	SetUserRole(ctx context.Context, id string, role models.Role) error
	GrantMembership(ctx context.Context, email string, badge models.Badge) error
	// ListUsers returns users whose name contains search, case-insensitively.
	ListUsers(ctx context.Context, search string) ([]models.User, error)
	// CountUsers counts users holding badge, or all users when badge is empty.
	CountUsers(ctx context.Context, badge models.Badge) (int64, error)
}

// PostQuery filters ListPosts. Zero values disable a filter.
type PostQuery struct {
	AuthorEmail string
	Tag         string // case-insensitive substring of any tag
	Skip        int64
	Limit       int64
}

type PostStore interface {
	CreatePost(ctx context.Context, p *models.Post) error
	// FindPost returns the post with its per-user votes.
	FindPost(ctx context.Context, id string) (*models.Post, error)
	// ListPosts returns posts newest first.
	ListPosts(ctx context.Context, q PostQuery) ([]models.Post, error)
	// CountPosts counts posts by author, or all posts when authorEmail is empty.
	CountPosts(ctx context.Context, authorEmail string) (int64, error)
	DeletePost(ctx context.Context, id string) error
	// UpdatePostVotes replaces the vote records and counters of the post if
	// its revision still equals revision, and bumps the revision.
	UpdatePostVotes(ctx context.Context, id string, revision int64, votes []models.Vote, up, down int) error
	TagCounts(ctx context.Context) ([]models.TagCount, error)
}

type CommentStore interface {
	CreateComment(ctx context.Context, c *models.Comment) error
	FindComment(ctx context.Context, id string) (*models.Comment, error)
	// FindComments returns the comments that exist among ids, keyed by id.
	FindComments(ctx context.Context, ids []string) (map[string]*models.Comment, error)
	// ListComments returns the comments of a post oldest first.
	ListComments(ctx context.Context, postID string) ([]models.Comment, error)
	// CountComments counts comments per post for the given posts.
	CountComments(ctx context.Context, postIDs []string) (map[string]int64, error)
	CountAllComments(ctx context.Context) (int64, error)
	UpdateCommentText(ctx context.Context, id, text string) error
	DeleteComment(ctx context.Context, id string) error
	// UpdateCommentVotes is the comment counterpart of UpdatePostVotes.
	UpdateCommentVotes(ctx context.Context, id string, revision int64, upvoters, downvoters []string) error
	MarkCommentReported(ctx context.Context, id string) error
}

type ReportStore interface {
	// InsertReport inserts r unless a report with r.ID exists. It reports
	// whether r was inserted.
	InsertReport(ctx context.Context, r *models.Report) (bool, error)
	FindReport(ctx context.Context, id string) (*models.Report, error)
	// ListReports returns reports newest first.
	ListReports(ctx context.Context) ([]models.Report, error)
	// TransitionReport sets the status to `to` if it currently is `from`.
	TransitionReport(ctx context.Context, id string, from, to models.ReportStatus) error
}

type NotificationStore interface {
	InsertNotification(ctx context.Context, n *models.Notification) (bool, error)
	FindNotification(ctx context.Context, id string) (*models.Notification, error)
	// ListNotifications returns the notifications of a recipient newest first.
	ListNotifications(ctx context.Context, userEmail string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userEmail string) (int64, error)
	ClearNotifications(ctx context.Context, userEmail string) (int64, error)
}

type TagStore interface {
	// EnsureTags inserts the names that are not stored yet and returns how
	// many were added.
	EnsureTags(ctx context.Context, names []string) (int, error)
	ListTags(ctx context.Context) ([]models.Tag, error)
	SearchTags(ctx context.Context, q string, limit int) ([]models.Tag, error)
	DeleteTag(ctx context.Context, id string) error
}

type AnnouncementStore interface {
	CreateAnnouncement(ctx context.Context, a *models.Announcement) error
	// ListAnnouncements returns announcements newest first.
	ListAnnouncements(ctx context.Context) ([]models.Announcement, error)
	CountAnnouncements(ctx context.Context) (int64, error)
	UpdateAnnouncement(ctx context.Context, id, title, description string) error
	DeleteAnnouncement(ctx context.Context, id string) error
}

type PaymentStore interface {
	InsertPayment(ctx context.Context, p *models.Payment) error
}

// Open connects the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return NewPostgres(cfg.PostgresDSN(), logger)
	case config.DriverMongo:
		return NewMongo(ctx, cfg.MongoURI, logger)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func prepareUser(u *models.User, id string, now time.Time) {
	if u.ID == "" {
		u.ID = id
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.Badge == "" {
		u.Badge = models.BadgeBronze
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.LastLogin = now
}

func preparePost(p *models.Post, id string, now time.Time) {
	if p.ID == "" {
		p.ID = id
	}
	p.Tags = normalizeTags(p.Tags)
	p.UpVote, p.DownVote = 0, 0
	p.Votes = []models.Vote{}
	p.Revision = 0
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
}

func prepareComment(c *models.Comment, id string, now time.Time) {
	if c.ID == "" {
		c.ID = id
	}
	c.Upvoters = []string{}
	c.Downvoters = []string{}
	c.Upvotes, c.Downvotes = 0, 0
	c.Reported = false
	c.Revision = 0
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
}
