package models

import "time"

type VoteType string

const (
	Upvote   VoteType = "upvote"
	Downvote VoteType = "downvote"
)

func (v VoteType) Valid() bool {
	return v == Upvote || v == Downvote
}

// Vote is one user's standing vote on a post. Under PostgreSQL it is a row of
// the votes table, under MongoDB an element of the post's votes array.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"-" bson:"-"`
	PostID    string    `gorm:"size:64;not null;uniqueIndex:idx_votes_post_user" json:"-" bson:"-"`
	UserEmail string    `gorm:"not null;uniqueIndex:idx_votes_post_user" json:"userEmail" bson:"userEmail"`
	VoteType  VoteType  `gorm:"size:16;not null" json:"voteType" bson:"voteType"`
	CreatedAt time.Time `json:"-" bson:"-"`
}

type VoteRequest struct {
	UserEmail string   `json:"userEmail"`
	VoteType  VoteType `json:"type"`
}

// PostTally is the response of a post vote.
type PostTally struct {
	UpVote   int `json:"upVote"`
	DownVote int `json:"downVote"`
}

// CommentTally is the response of a comment vote.
type CommentTally struct {
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
}
