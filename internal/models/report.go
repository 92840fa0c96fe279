package models

import "time"

type ReportStatus string

const (
	ReportPending     ReportStatus = "Pending"
	ReportReviewed    ReportStatus = "Reviewed"
	ReportActionTaken ReportStatus = "ActionTaken"
	ReportDismissed   ReportStatus = "Dismissed"
)

// Terminal reports whether no further moves are possible from s.
func (s ReportStatus) Terminal() bool {
	return s == ReportActionTaken || s == ReportDismissed
}

// ReportAction is what an admin does with a report.
type ReportAction string

const (
	ActionReviewed      ReportAction = "Reviewed"
	ActionDeleteComment ReportAction = "DeleteComment"
	ActionWarnUser      ReportAction = "WarnUser"
	ActionDismiss       ReportAction = "Dismiss"
)

type Report struct {
	ID         string       `gorm:"primaryKey;size:64" json:"_id" bson:"_id"`
	CommentID  string       `gorm:"size:64;index;not null" json:"commentId" bson:"commentId"`
	ReportedBy string       `gorm:"not null" json:"reportedBy" bson:"reportedBy"`
	Reason     string       `gorm:"not null" json:"reason" bson:"reason"`
	Status     ReportStatus `gorm:"size:16;not null;index" json:"status" bson:"status"`
	Date       time.Time    `gorm:"index" json:"date" bson:"date"`
	UpdatedAt  *time.Time   `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// ReportView is a report as the admin queue shows it, with the comment
// resolved in place of its id. Comment is nil once the comment is gone.
type ReportView struct {
	ID         string       `json:"_id"`
	Comment    *Comment     `json:"commentId"`
	ReportedBy string       `json:"reportedBy"`
	Reason     string       `json:"reason"`
	Status     ReportStatus `json:"status"`
	Date       time.Time    `json:"date"`
	UpdatedAt  *time.Time   `json:"updatedAt,omitempty"`
}

type ReportCommentRequest struct {
	UserEmail string `json:"userEmail" binding:"required,email"`
	Reason    string `json:"reason" binding:"required,max=1000"`
}

type ReportActionRequest struct {
	Action ReportAction `json:"action" binding:"required"`
}
