package models

import "time"

type Announcement struct {
	ID          string     `gorm:"primaryKey;size:64" json:"_id" bson:"_id"`
	Title       string     `gorm:"not null" json:"title" bson:"title"`
	Description string     `json:"description" bson:"description"`
	AuthorEmail string     `json:"authorEmail" bson:"authorEmail"`
	AuthorName  string     `json:"authorName" bson:"authorName"`
	AuthorPhoto string     `json:"authorPhoto" bson:"authorPhoto"`
	CreatedAt   time.Time  `gorm:"index" json:"createdAt" bson:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

type AnnouncementRequest struct {
	Title       string `json:"title" binding:"required,max=200"`
	Description string `json:"description"`
	AuthorName  string `json:"authorName"`
	AuthorPhoto string `json:"authorPhoto"`
}
