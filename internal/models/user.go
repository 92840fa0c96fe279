package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Badge string

const (
	BadgeNone   Badge = "none"
	BadgeBronze Badge = "bronze"
	BadgeGold   Badge = "gold"
)

type User struct {
	ID         string    `gorm:"primaryKey;size:64" json:"_id" bson:"_id"`
	UID        string    `gorm:"index" json:"uid,omitempty" bson:"uid,omitempty"` // identity provider subject
	Email      string    `gorm:"uniqueIndex;not null" json:"email" bson:"email"`
	Name       string    `json:"name" bson:"name"`
	Photo      string    `json:"photo" bson:"photo"`
	Role       Role      `gorm:"size:16;not null;default:user" json:"role" bson:"role"`
	Membership bool      `gorm:"not null;default:false" json:"membership" bson:"membership"`
	Badge      Badge     `gorm:"size:16;not null;default:bronze" json:"badge" bson:"badge"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	LastLogin  time.Time `json:"last_login" bson:"last_login"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// UpsertUserRequest is sent by the client after every sign-in.
type UpsertUserRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name"`
	Photo string `json:"photo"`
	UID   string `json:"uid"`
}

type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Photo *string `json:"photo"`
}
