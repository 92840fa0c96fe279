package models

import (
	"time"

	"github.com/lib/pq"
)

type Post struct {
	ID          string         `gorm:"primaryKey;size:64" json:"_id" bson:"_id"`
	AuthorEmail string         `gorm:"index;not null" json:"authorEmail" bson:"authorEmail"`
	AuthorName  string         `json:"authorName" bson:"authorName"`
	AuthorPhoto string         `json:"authorPhoto" bson:"authorPhoto"`
	Title       string         `gorm:"not null" json:"title" bson:"title"`
	Body        string         `json:"body" bson:"body"`
	Tags        pq.StringArray `gorm:"type:text[]" json:"tags" bson:"tags"`
	UpVote      int            `gorm:"not null;default:0" json:"upVote" bson:"upVote"`
	DownVote    int            `gorm:"not null;default:0" json:"downVote" bson:"downVote"`
	Votes       []Vote         `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"votes" bson:"votes"`
	Revision    int64          `gorm:"not null;default:0" json:"-" bson:"revision"`
	CreatedAt   time.Time      `gorm:"index" json:"createdAt" bson:"createdAt"`

	// Filled on listing endpoints only.
	CommentCount *int64 `gorm:"-" json:"commentCount,omitempty" bson:"-"`
}

// Score is the net vote used to rank popular posts.
func (p *Post) Score() int {
	return p.UpVote - p.DownVote
}

type CreatePostRequest struct {
	AuthorEmail string   `json:"authorEmail" binding:"required,email"`
	AuthorName  string   `json:"authorName"`
	AuthorPhoto string   `json:"authorPhoto"`
	Title       string   `json:"title" binding:"required,max=300"`
	Body        string   `json:"body"`
	Tags        []string `json:"tags"`
}

// PostPage is one page of the newest-first post listing.
type PostPage struct {
	Posts []Post `json:"posts"`
	Total int64  `json:"total"`
}
