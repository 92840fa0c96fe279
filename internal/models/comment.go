package models

import (
	"time"

	"github.com/lib/pq"
)

type Comment struct {
	ID         string         `gorm:"primaryKey;size:64" json:"_id" bson:"_id"`
	PostID     string         `gorm:"size:64;index;not null" json:"postId" bson:"postId"`
	ParentID   *string        `gorm:"size:64;index" json:"parentId" bson:"parentId"`
	Text       string         `gorm:"not null" json:"text" bson:"text"`
	UserEmail  string         `gorm:"index;not null" json:"userEmail" bson:"userEmail"`
	UserName   string         `json:"userName" bson:"userName"`
	UserPhoto  string         `json:"userPhoto" bson:"userPhoto"`
	Upvoters   pq.StringArray `gorm:"type:text[]" json:"upvoters" bson:"upvoters"`
	Downvoters pq.StringArray `gorm:"type:text[]" json:"downvoters" bson:"downvoters"`
	Upvotes    int            `gorm:"not null;default:0" json:"upvotes" bson:"upvotes"`
	Downvotes  int            `gorm:"not null;default:0" json:"downvotes" bson:"downvotes"`
	Reported   bool           `gorm:"not null;default:false" json:"reported" bson:"reported"`
	Revision   int64          `gorm:"not null;default:0" json:"-" bson:"revision"`
	CreatedAt  time.Time      `json:"createdAt" bson:"createdAt"`
}

type CreateCommentRequest struct {
	PostID    string  `json:"postId" binding:"required"`
	ParentID  *string `json:"parentId"`
	Text      string  `json:"text" binding:"required,max=5000"`
	UserEmail string  `json:"userEmail" binding:"required,email"`
	UserName  string  `json:"userName"`
	UserPhoto string  `json:"userPhoto"`
}

type UpdateCommentRequest struct {
	Text string `json:"text" binding:"required,max=5000"`
}

// PostDetails is a post together with its comment thread, rendered as the
// post's own fields plus "comments".
type PostDetails struct {
	*Post
	Comments []Comment `json:"comments"`
}
