package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/forumx/backend/internal/models"
)

// PostgresStore implements Store on PostgreSQL through gorm.
type PostgresStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewPostgres(dsn string, logger *zap.Logger) (*PostgresStore, error) {
	// Configure GORM logger
	gormLogger := gormlogger.New(
		zap.NewStdLog(logger.Named("gorm")),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("database connected", zap.String("driver", "postgres"))

	err = db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Vote{},
		&models.Comment{},
		&models.Report{},
		&models.Notification{},
		&models.Tag{},
		&models.Announcement{},
		&models.Payment{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &PostgresStore{db: db, logger: logger}, nil
}

// Health checks the health of the database connection by pinging the database.
func (s *PostgresStore) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stats := map[string]string{"driver": "postgres"}

	sqlDB, err := s.db.DB()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db error: %v", err)
		return stats
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := sqlDB.Stats()
	stats["open_connections"] = fmt.Sprintf("%d", dbStats.OpenConnections)
	stats["in_use"] = fmt.Sprintf("%d", dbStats.InUse)
	stats["idle"] = fmt.Sprintf("%d", dbStats.Idle)

	return stats
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.logger.Info("disconnected from database", zap.String("driver", "postgres"))
	return sqlDB.Close()
}

// Users

func (s *PostgresStore) UpsertUser(ctx context.Context, u *models.User) (bool, error) {
	db := s.db.WithContext(ctx)
	now := time.Now().UTC()

	res := db.Model(&models.User{}).Where("email = ?", u.Email).Update("last_login", now)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return false, nil
	}

	prepareUser(u, uuid.NewString(), now)
	if err := db.Create(u).Error; err != nil {
		// A concurrent sign-in created the row first.
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *PostgresStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, email string, req models.UpdateProfileRequest) error {
	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Photo != nil {
		updates["photo"] = *req.Photo
	}
	if len(updates) == 0 {
		_, err := s.FindUserByEmail(ctx, email)
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Updates(updates)
	return affected(res)
}

func (s *PostgresStore) SetUserRole(ctx context.Context, id string, role models.Role) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("role", role)
	return affected(res)
}

func (s *PostgresStore) GrantMembership(ctx context.Context, email string, badge models.Badge) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).
		Updates(map[string]interface{}{"membership": true, "badge": badge})
	return affected(res)
}

func (s *PostgresStore) ListUsers(ctx context.Context, search string) ([]models.User, error) {
	q := s.db.WithContext(ctx).Order("created_at desc")
	if search != "" {
		q = q.Where("name ILIKE ?", likePattern(search))
	}
	users := []models.User{}
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *PostgresStore) CountUsers(ctx context.Context, badge models.Badge) (int64, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(&models.User{})
	if badge != "" {
		q = q.Where("badge = ?", badge)
	}
	err := q.Count(&n).Error
	return n, err
}

// Posts

func (s *PostgresStore) CreatePost(ctx context.Context, p *models.Post) error {
	preparePost(p, uuid.NewString(), time.Now().UTC())
	return s.db.WithContext(ctx).Omit("Votes").Create(p).Error
}

func (s *PostgresStore) FindPost(ctx context.Context, id string) (*models.Post, error) {
	var p models.Post
	err := s.db.WithContext(ctx).Preload("Votes", orderByID).First(&p, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	if p.Votes == nil {
		p.Votes = []models.Vote{}
	}
	return &p, nil
}

func (s *PostgresStore) ListPosts(ctx context.Context, f PostQuery) ([]models.Post, error) {
	q := s.db.WithContext(ctx).Preload("Votes", orderByID).Order("created_at desc")
	if f.AuthorEmail != "" {
		q = q.Where("author_email = ?", f.AuthorEmail)
	}
	if f.Tag != "" {
		q = q.Where("EXISTS (SELECT 1 FROM unnest(tags) AS t WHERE t ILIKE ?)", likePattern(f.Tag))
	}
	if f.Skip > 0 {
		q = q.Offset(int(f.Skip))
	}
	if f.Limit > 0 {
		q = q.Limit(int(f.Limit))
	}

	posts := []models.Post{}
	if err := q.Find(&posts).Error; err != nil {
		return nil, err
	}
	for i := range posts {
		if posts[i].Votes == nil {
			posts[i].Votes = []models.Vote{}
		}
	}
	return posts, nil
}

func (s *PostgresStore) CountPosts(ctx context.Context, authorEmail string) (int64, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(&models.Post{})
	if authorEmail != "" {
		q = q.Where("author_email = ?", authorEmail)
	}
	err := q.Count(&n).Error
	return n, err
}

func (s *PostgresStore) DeletePost(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		return affected(tx.Delete(&models.Post{}, "id = ?", id))
	})
}

func (s *PostgresStore) UpdatePostVotes(ctx context.Context, id string, revision int64, votes []models.Vote, up, down int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Where("id = ? AND revision = ?", id, revision).
			Updates(map[string]interface{}{
				"up_vote":   up,
				"down_vote": down,
				"revision":  gorm.Expr("revision + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return missingOrConflict(tx, &models.Post{}, id)
		}

		if err := tx.Where("post_id = ?", id).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		if len(votes) == 0 {
			return nil
		}
		rows := make([]models.Vote, len(votes))
		for i, v := range votes {
			rows[i] = models.Vote{PostID: id, UserEmail: v.UserEmail, VoteType: v.VoteType}
		}
		return tx.Create(&rows).Error
	})
}

func (s *PostgresStore) TagCounts(ctx context.Context) ([]models.TagCount, error) {
	counts := []models.TagCount{}
	err := s.db.WithContext(ctx).Raw(
		`SELECT t AS name, COUNT(*) AS count FROM posts, unnest(tags) AS t GROUP BY t ORDER BY count DESC, name ASC`,
	).Scan(&counts).Error
	return counts, err
}

// Comments

func (s *PostgresStore) CreateComment(ctx context.Context, c *models.Comment) error {
	prepareComment(c, uuid.NewString(), time.Now().UTC())
	return s.db.WithContext(ctx).Create(c).Error
}

func (s *PostgresStore) FindComment(ctx context.Context, id string) (*models.Comment, error) {
	var c models.Comment
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *PostgresStore) FindComments(ctx context.Context, ids []string) (map[string]*models.Comment, error) {
	out := make(map[string]*models.Comment, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var comments []models.Comment
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&comments).Error; err != nil {
		return nil, err
	}
	for i := range comments {
		out[comments[i].ID] = &comments[i]
	}
	return out, nil
}

func (s *PostgresStore) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := s.db.WithContext(ctx).Where("post_id = ?", postID).Order("created_at asc").Find(&comments).Error
	return comments, err
}

func (s *PostgresStore) CountComments(ctx context.Context, postIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		PostID string
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Select("post_id, COUNT(*) AS count").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.PostID] = r.Count
	}
	return out, nil
}

func (s *PostgresStore) CountAllComments(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Comment{}).Count(&n).Error
	return n, err
}

func (s *PostgresStore) UpdateCommentText(ctx context.Context, id, text string) error {
	return affected(s.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Update("text", text))
}

func (s *PostgresStore) DeleteComment(ctx context.Context, id string) error {
	return affected(s.db.WithContext(ctx).Delete(&models.Comment{}, "id = ?", id))
}

func (s *PostgresStore) UpdateCommentVotes(ctx context.Context, id string, revision int64, upvoters, downvoters []string) error {
	db := s.db.WithContext(ctx)
	res := db.Model(&models.Comment{}).
		Where("id = ? AND revision = ?", id, revision).
		Updates(map[string]interface{}{
			"upvoters":   pq.StringArray(nonNil(upvoters)),
			"downvoters": pq.StringArray(nonNil(downvoters)),
			"upvotes":    len(upvoters),
			"downvotes":  len(downvoters),
			"revision":   gorm.Expr("revision + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return missingOrConflict(db, &models.Comment{}, id)
	}
	return nil
}

func (s *PostgresStore) MarkCommentReported(ctx context.Context, id string) error {
	return affected(s.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Update("reported", true))
}

// Reports

func (s *PostgresStore) InsertReport(ctx context.Context, r *models.Report) (bool, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(r)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *PostgresStore) FindReport(ctx context.Context, id string) (*models.Report, error) {
	var r models.Report
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *PostgresStore) ListReports(ctx context.Context) ([]models.Report, error) {
	reports := []models.Report{}
	err := s.db.WithContext(ctx).Order("date desc").Find(&reports).Error
	return reports, err
}

func (s *PostgresStore) TransitionReport(ctx context.Context, id string, from, to models.ReportStatus) error {
	db := s.db.WithContext(ctx)
	res := db.Model(&models.Report{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return missingOrConflict(db, &models.Report{}, id)
	}
	return nil
}

// Notifications

func (s *PostgresStore) InsertNotification(ctx context.Context, n *models.Notification) (bool, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(n)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *PostgresStore) FindNotification(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &n, nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userEmail string) ([]models.Notification, error) {
	list := []models.Notification{}
	err := s.db.WithContext(ctx).Where("user_email = ?", userEmail).Order("date desc").Find(&list).Error
	return list, err
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id string) error {
	return affected(s.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).Update("read", true))
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userEmail string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_email = ? AND read = ?", userEmail, false).
		Update("read", true)
	return res.RowsAffected, res.Error
}

func (s *PostgresStore) ClearNotifications(ctx context.Context, userEmail string) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_email = ?", userEmail).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

// Tags

func (s *PostgresStore) EnsureTags(ctx context.Context, names []string) (int, error) {
	added := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range normalizeTags(names) {
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoNothing: true,
			}).Create(&models.Tag{ID: uuid.NewString(), Name: name})
			if res.Error != nil {
				return res.Error
			}
			added += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

func (s *PostgresStore) ListTags(ctx context.Context) ([]models.Tag, error) {
	tags := []models.Tag{}
	err := s.db.WithContext(ctx).Order("name asc").Find(&tags).Error
	return tags, err
}

func (s *PostgresStore) SearchTags(ctx context.Context, q string, limit int) ([]models.Tag, error) {
	tags := []models.Tag{}
	err := s.db.WithContext(ctx).Where("name ILIKE ?", likePattern(q)).Order("name asc").Limit(limit).Find(&tags).Error
	return tags, err
}

func (s *PostgresStore) DeleteTag(ctx context.Context, id string) error {
	return affected(s.db.WithContext(ctx).Delete(&models.Tag{}, "id = ?", id))
}

// Announcements

func (s *PostgresStore) CreateAnnouncement(ctx context.Context, a *models.Announcement) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *PostgresStore) ListAnnouncements(ctx context.Context) ([]models.Announcement, error) {
	list := []models.Announcement{}
	err := s.db.WithContext(ctx).Order("created_at desc").Find(&list).Error
	return list, err
}

func (s *PostgresStore) CountAnnouncements(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Announcement{}).Count(&n).Error
	return n, err
}

func (s *PostgresStore) UpdateAnnouncement(ctx context.Context, id, title, description string) error {
	res := s.db.WithContext(ctx).Model(&models.Announcement{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"title":       title,
			"description": description,
			"updated_at":  time.Now().UTC(),
		})
	return affected(res)
}

func (s *PostgresStore) DeleteAnnouncement(ctx context.Context, id string) error {
	return affected(s.db.WithContext(ctx).Delete(&models.Announcement{}, "id = ?", id))
}

// Payments

func (s *PostgresStore) InsertPayment(ctx context.Context, p *models.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(p).Error
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// affected turns a write that matched no row into ErrNotFound.
func affected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func missingOrConflict(db *gorm.DB, model interface{}, id string) error {
	var n int64
	if err := db.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
