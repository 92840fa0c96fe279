package models

import "time"

const NotificationCommentReported = "comment_reported"

type Notification struct {
	ID        string    `gorm:"primaryKey;size:64" json:"_id" bson:"_id"`
	UserEmail string    `gorm:"index;not null" json:"userEmail" bson:"userEmail"`
	Message   string    `gorm:"not null" json:"message" bson:"message"`
	Kind      string    `gorm:"size:32" json:"type,omitempty" bson:"type,omitempty"`
	Date      time.Time `gorm:"index" json:"date" bson:"date"`
	Read      bool      `gorm:"not null;default:false" json:"read" bson:"read"`
}
