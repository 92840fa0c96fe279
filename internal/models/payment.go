package models

import "time"

type Payment struct {
	ID              string    `gorm:"primaryKey;size:64" json:"_id" bson:"_id"`
	UserEmail       string    `gorm:"index;not null" json:"userEmail" bson:"userEmail"`
	UserUID         string    `json:"userId,omitempty" bson:"userId,omitempty"`
	MembershipType  string    `gorm:"size:32" json:"membershipType" bson:"membershipType"`
	AmountCents     int64     `gorm:"not null" json:"amountInCents" bson:"amountInCents"`
	Currency        string    `gorm:"size:8;not null" json:"currency" bson:"currency"`
	PaymentIntentID string    `gorm:"index" json:"transactionId" bson:"transactionId"`
	CreatedAt       time.Time `json:"date" bson:"date"`
}

type MembershipIntentRequest struct {
	MembershipType string `json:"membershipType"`
	AmountInCents  *int64 `json:"amountInCents"`
}

type MembershipPaymentRequest struct {
	TransactionID  string `json:"transactionId" binding:"required"`
	MembershipType string `json:"membershipType"`
	UserID         string `json:"userId"`
}
