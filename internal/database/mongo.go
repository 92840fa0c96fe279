package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/256dpi/lungo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/forumx/backend/internal/models"
)

// MongoStore implements Store on MongoDB. A memory:// URI runs it on an
// in-process lungo engine instead of a server.
type MongoStore struct {
	client lungo.IClient
	engine *lungo.Engine
	logger *zap.Logger
	name   string

	users         lungo.ICollection
	posts         lungo.ICollection
	comments      lungo.ICollection
	reports       lungo.ICollection
	notifications lungo.ICollection
	tags          lungo.ICollection
	announcements lungo.ICollection
	payments      lungo.ICollection
}

// NewMongo connects to uri, e.g. "mongodb://localhost/forumx" or "memory://forumx".
func NewMongo(ctx context.Context, uri string, logger *zap.Logger) (*MongoStore, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid mongo uri: %w", err)
	}

	name := strings.Trim(u.Path, "/")

	var client lungo.IClient
	var engine *lungo.Engine
	switch u.Scheme {
	case "memory":
		if name == "" {
			name = u.Host
		}
		client, engine, err = lungo.Open(ctx, lungo.Options{
			Store: lungo.NewMemoryStore(),
		})
	case "mongodb", "mongodb+srv":
		client, err = lungo.Connect(ctx, options.Client().ApplyURI(uri))
	default:
		return nil, fmt.Errorf("unsupported mongo uri scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if name == "" {
		name = "forumx"
	}

	db := client.Database(name)
	s := &MongoStore{
		client:        client,
		engine:        engine,
		logger:        logger,
		name:          name,
		users:         db.Collection("users"),
		posts:         db.Collection("posts"),
		comments:      db.Collection("comments"),
		reports:       db.Collection("reports"),
		notifications: db.Collection("notifications"),
		tags:          db.Collection("tags"),
		announcements: db.Collection("announcements"),
		payments:      db.Collection("payments"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	logger.Info("database connected", zap.String("driver", "mongo"), zap.String("database", name), zap.Bool("memory", engine != nil))

	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll   lungo.ICollection
		key    string
		unique bool
	}{
		{s.users, "email", true},
		{s.tags, "name", true},
		{s.posts, "authorEmail", false},
		{s.comments, "postId", false},
		{s.notifications, "userEmail", false},
	}
	for _, idx := range indexes {
		model := mongo.IndexModel{Keys: bson.D{{Key: idx.key, Value: 1}}}
		if idx.unique {
			model.Options = options.Index().SetUnique(true)
		}
		if _, err := idx.coll.Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("%s: %w", idx.key, err)
		}
	}
	return nil
}

func (s *MongoStore) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stats := map[string]string{"driver": "mongo", "database": s.name}
	if s.engine != nil {
		stats["engine"] = "memory"
	}

	if err := s.client.Ping(ctx, nil); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"
	return stats
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.client.Disconnect(ctx)
	if s.engine != nil {
		s.engine.Close()
	}
	s.logger.Info("disconnected from database", zap.String("driver", "mongo"))
	return err
}

// Users

func (s *MongoStore) UpsertUser(ctx context.Context, u *models.User) (bool, error) {
	now := time.Now().UTC()

	res, err := s.users.UpdateOne(ctx, bson.M{"email": u.Email}, bson.M{"$set": bson.M{"last_login": now}})
	if err != nil {
		return false, err
	}
	if res.MatchedCount > 0 {
		return false, nil
	}

	prepareUser(u, newObjectID(), now)
	if _, err := s.users.InsertOne(ctx, u); err != nil {
		// A concurrent sign-in created the document first.
		if n, cerr := s.users.CountDocuments(ctx, bson.M{"email": u.Email}); cerr == nil && n > 0 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := findOne(ctx, s.users, bson.M{"email": email}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *MongoStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := findOne(ctx, s.users, bson.M{"_id": id}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *MongoStore) UpdateUserProfile(ctx context.Context, email string, req models.UpdateProfileRequest) error {
	set := bson.M{}
	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Photo != nil {
		set["photo"] = *req.Photo
	}
	if len(set) == 0 {
		_, err := s.FindUserByEmail(ctx, email)
		return err
	}
	return matched(s.users.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$set": set}))
}

func (s *MongoStore) SetUserRole(ctx context.Context, id string, role models.Role) error {
	return matched(s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"role": role}}))
}

func (s *MongoStore) GrantMembership(ctx context.Context, email string, badge models.Badge) error {
	return matched(s.users.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$set": bson.M{"membership": true, "badge": badge}}))
}

func (s *MongoStore) ListUsers(ctx context.Context, search string) ([]models.User, error) {
	filter := bson.M{}
	if search != "" {
		filter["name"] = containsFold(search)
	}
	users := []models.User{}
	err := findAll(ctx, s.users, filter, &users, options.Find().SetSort(newestFirst("createdAt")))
	return users, err
}

func (s *MongoStore) CountUsers(ctx context.Context, badge models.Badge) (int64, error) {
	filter := bson.M{}
	if badge != "" {
		filter["badge"] = badge
	}
	return s.users.CountDocuments(ctx, filter)
}

// Posts

func (s *MongoStore) CreatePost(ctx context.Context, p *models.Post) error {
	preparePost(p, newObjectID(), time.Now().UTC())
	_, err := s.posts.InsertOne(ctx, p)
	return err
}

func (s *MongoStore) FindPost(ctx context.Context, id string) (*models.Post, error) {
	var p models.Post
	if err := findOne(ctx, s.posts, bson.M{"_id": id}, &p); err != nil {
		return nil, err
	}
	if p.Votes == nil {
		p.Votes = []models.Vote{}
	}
	return &p, nil
}

func (s *MongoStore) ListPosts(ctx context.Context, q PostQuery) ([]models.Post, error) {
	filter := bson.M{}
	if q.AuthorEmail != "" {
		filter["authorEmail"] = q.AuthorEmail
	}
	if q.Tag != "" {
		filter["tags"] = containsFold(q.Tag)
	}

	opts := options.Find().SetSort(newestFirst("createdAt"))
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	posts := []models.Post{}
	if err := findAll(ctx, s.posts, filter, &posts, opts); err != nil {
		return nil, err
	}
	for i := range posts {
		if posts[i].Votes == nil {
			posts[i].Votes = []models.Vote{}
		}
	}
	return posts, nil
}

func (s *MongoStore) CountPosts(ctx context.Context, authorEmail string) (int64, error) {
	filter := bson.M{}
	if authorEmail != "" {
		filter["authorEmail"] = authorEmail
	}
	return s.posts.CountDocuments(ctx, filter)
}

func (s *MongoStore) DeletePost(ctx context.Context, id string) error {
	return deleted(s.posts.DeleteOne(ctx, bson.M{"_id": id}))
}

func (s *MongoStore) UpdatePostVotes(ctx context.Context, id string, revision int64, votes []models.Vote, up, down int) error {
	if votes == nil {
		votes = []models.Vote{}
	}
	res, err := s.posts.UpdateOne(ctx, revisionFilter(id, revision), bson.M{
		"$set": bson.M{"votes": votes, "upVote": up, "downVote": down},
		"$inc": bson.M{"revision": int64(1)},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return missingOrChanged(ctx, s.posts, id)
	}
	return nil
}

// TagCounts counts client-side; lungo has no aggregation pipeline.
func (s *MongoStore) TagCounts(ctx context.Context) ([]models.TagCount, error) {
	var docs []struct {
		Tags []string `bson:"tags"`
	}
	if err := findAll(ctx, s.posts, bson.M{}, &docs); err != nil {
		return nil, err
	}

	counts := map[string]int64{}
	for _, d := range docs {
		for _, t := range normalizeTags(d.Tags) {
			counts[t]++
		}
	}

	out := make([]models.TagCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, models.TagCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Comments

func (s *MongoStore) CreateComment(ctx context.Context, c *models.Comment) error {
	prepareComment(c, newObjectID(), time.Now().UTC())
	_, err := s.comments.InsertOne(ctx, c)
	return err
}

func (s *MongoStore) FindComment(ctx context.Context, id string) (*models.Comment, error) {
	var c models.Comment
	if err := findOne(ctx, s.comments, bson.M{"_id": id}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *MongoStore) FindComments(ctx context.Context, ids []string) (map[string]*models.Comment, error) {
	out := make(map[string]*models.Comment, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var comments []models.Comment
	if err := findAll(ctx, s.comments, bson.M{"_id": bson.M{"$in": ids}}, &comments); err != nil {
		return nil, err
	}
	for i := range comments {
		out[comments[i].ID] = &comments[i]
	}
	return out, nil
}

func (s *MongoStore) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := findAll(ctx, s.comments, bson.M{"postId": postID}, &comments, options.Find().SetSort(oldestFirst("createdAt")))
	return comments, err
}

func (s *MongoStore) CountComments(ctx context.Context, postIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var docs []struct {
		PostID string `bson:"postId"`
	}
	if err := findAll(ctx, s.comments, bson.M{"postId": bson.M{"$in": postIDs}}, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		out[d.PostID]++
	}
	return out, nil
}

func (s *MongoStore) CountAllComments(ctx context.Context) (int64, error) {
	return s.comments.CountDocuments(ctx, bson.M{})
}

func (s *MongoStore) UpdateCommentText(ctx context.Context, id, text string) error {
	return matched(s.comments.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"text": text}}))
}

func (s *MongoStore) DeleteComment(ctx context.Context, id string) error {
	return deleted(s.comments.DeleteOne(ctx, bson.M{"_id": id}))
}

func (s *MongoStore) UpdateCommentVotes(ctx context.Context, id string, revision int64, upvoters, downvoters []string) error {
	upvoters, downvoters = nonNil(upvoters), nonNil(downvoters)
	res, err := s.comments.UpdateOne(ctx, revisionFilter(id, revision), bson.M{
		"$set": bson.M{
			"upvoters":   upvoters,
			"downvoters": downvoters,
			"upvotes":    len(upvoters),
			"downvotes":  len(downvoters),
		},
		"$inc": bson.M{"revision": int64(1)},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return missingOrChanged(ctx, s.comments, id)
	}
	return nil
}

func (s *MongoStore) MarkCommentReported(ctx context.Context, id string) error {
	return matched(s.comments.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"reported": true}}))
}

// Reports

func (s *MongoStore) InsertReport(ctx context.Context, r *models.Report) (bool, error) {
	if r.ID == "" {
		r.ID = newObjectID()
	}
	return insertIfAbsent(ctx, s.reports, r.ID, r)
}

func (s *MongoStore) FindReport(ctx context.Context, id string) (*models.Report, error) {
	var r models.Report
	if err := findOne(ctx, s.reports, bson.M{"_id": id}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MongoStore) ListReports(ctx context.Context) ([]models.Report, error) {
	reports := []models.Report{}
	err := findAll(ctx, s.reports, bson.M{}, &reports, options.Find().SetSort(newestFirst("date")))
	return reports, err
}

func (s *MongoStore) TransitionReport(ctx context.Context, id string, from, to models.ReportStatus) error {
	res, err := s.reports.UpdateOne(ctx, bson.M{"_id": id, "status": from}, bson.M{
		"$set": bson.M{"status": to, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return missingOrChanged(ctx, s.reports, id)
	}
	return nil
}

// Notifications

func (s *MongoStore) InsertNotification(ctx context.Context, n *models.Notification) (bool, error) {
	if n.ID == "" {
		n.ID = newObjectID()
	}
	return insertIfAbsent(ctx, s.notifications, n.ID, n)
}

func (s *MongoStore) FindNotification(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := findOne(ctx, s.notifications, bson.M{"_id": id}, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *MongoStore) ListNotifications(ctx context.Context, userEmail string) ([]models.Notification, error) {
	list := []models.Notification{}
	err := findAll(ctx, s.notifications, bson.M{"userEmail": userEmail}, &list, options.Find().SetSort(newestFirst("date")))
	return list, err
}

func (s *MongoStore) MarkNotificationRead(ctx context.Context, id string) error {
	return matched(s.notifications.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"read": true}}))
}

func (s *MongoStore) MarkAllNotificationsRead(ctx context.Context, userEmail string) (int64, error) {
	res, err := s.notifications.UpdateMany(ctx, bson.M{"userEmail": userEmail, "read": false}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) ClearNotifications(ctx context.Context, userEmail string) (int64, error) {
	res, err := s.notifications.DeleteMany(ctx, bson.M{"userEmail": userEmail})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Tags

func (s *MongoStore) EnsureTags(ctx context.Context, names []string) (int, error) {
	added := 0
	for _, name := range normalizeTags(names) {
		n, err := s.tags.CountDocuments(ctx, bson.M{"name": name})
		if err != nil {
			return added, err
		}
		if n > 0 {
			continue
		}
		if _, err := s.tags.InsertOne(ctx, &models.Tag{ID: newObjectID(), Name: name}); err != nil {
			// Lost the race against a concurrent insert of the same name.
			if n, cerr := s.tags.CountDocuments(ctx, bson.M{"name": name}); cerr == nil && n > 0 {
				continue
			}
			return added, err
		}
		added++
	}
	return added, nil
}

func (s *MongoStore) ListTags(ctx context.Context) ([]models.Tag, error) {
	tags := []models.Tag{}
	err := findAll(ctx, s.tags, bson.M{}, &tags, options.Find().SetSort(oldestFirst("name")))
	return tags, err
}

func (s *MongoStore) SearchTags(ctx context.Context, q string, limit int) ([]models.Tag, error) {
	tags := []models.Tag{}
	opts := options.Find().SetSort(oldestFirst("name")).SetLimit(int64(limit))
	err := findAll(ctx, s.tags, bson.M{"name": containsFold(q)}, &tags, opts)
	return tags, err
}

func (s *MongoStore) DeleteTag(ctx context.Context, id string) error {
	return deleted(s.tags.DeleteOne(ctx, bson.M{"_id": id}))
}

// Announcements

func (s *MongoStore) CreateAnnouncement(ctx context.Context, a *models.Announcement) error {
	if a.ID == "" {
		a.ID = newObjectID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.announcements.InsertOne(ctx, a)
	return err
}

func (s *MongoStore) ListAnnouncements(ctx context.Context) ([]models.Announcement, error) {
	list := []models.Announcement{}
	err := findAll(ctx, s.announcements, bson.M{}, &list, options.Find().SetSort(newestFirst("createdAt")))
	return list, err
}

func (s *MongoStore) CountAnnouncements(ctx context.Context) (int64, error) {
	return s.announcements.CountDocuments(ctx, bson.M{})
}

func (s *MongoStore) UpdateAnnouncement(ctx context.Context, id, title, description string) error {
	return matched(s.announcements.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"title":       title,
		"description": description,
		"updatedAt":   time.Now().UTC(),
	}}))
}

func (s *MongoStore) DeleteAnnouncement(ctx context.Context, id string) error {
	return deleted(s.announcements.DeleteOne(ctx, bson.M{"_id": id}))
}

// Payments

func (s *MongoStore) InsertPayment(ctx context.Context, p *models.Payment) error {
	if p.ID == "" {
		p.ID = newObjectID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.payments.InsertOne(ctx, p)
	return err
}

func newObjectID() string {
	return primitive.NewObjectID().Hex()
}

func newestFirst(field string) bson.D {
	return bson.D{{Key: field, Value: -1}, {Key: "_id", Value: -1}}
}

func oldestFirst(field string) bson.D {
	return bson.D{{Key: field, Value: 1}, {Key: "_id", Value: 1}}
}

func containsFold(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
}

// revisionFilter matches id at revision. Documents written before revisions
// existed count as revision 0.
func revisionFilter(id string, revision int64) bson.M {
	if revision == 0 {
		return bson.M{"_id": id, "$or": bson.A{
			bson.M{"revision": int64(0)},
			bson.M{"revision": bson.M{"$exists": false}},
		}}
	}
	return bson.M{"_id": id, "revision": revision}
}

func findOne(ctx context.Context, coll lungo.ICollection, filter bson.M, out interface{}) error {
	err := coll.FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func findAll(ctx context.Context, coll lungo.ICollection, filter bson.M, out interface{}, opts ...*options.FindOptions) error {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

// insertIfAbsent inserts doc unless a document with id exists already.
func insertIfAbsent(ctx context.Context, coll lungo.ICollection, id string, doc interface{}) (bool, error) {
	_, err := coll.InsertOne(ctx, doc)
	if err == nil {
		return true, nil
	}
	if n, cerr := coll.CountDocuments(ctx, bson.M{"_id": id}); cerr == nil && n > 0 {
		return false, nil
	}
	return false, err
}

func missingOrChanged(ctx context.Context, coll lungo.ICollection, id string) error {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func matched(res *mongo.UpdateResult, err error) error {
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func deleted(res *mongo.DeleteResult, err error) error {
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
