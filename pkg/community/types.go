// Package community holds comments and likes attached to games.
package community

import (
	"errors"
	"time"
)

var (
	ErrCommentNotFound = errors.New("comment not found")
	ErrNotCommentOwner = errors.New("comment belongs to another user")
	ErrEmptyBody       = errors.New("comment body is empty")
)

// MaxCommentLength bounds a single comment body.
const MaxCommentLength = 2000

type Comment struct {
	ID        string    `json:"id"`
	GameID    string    `json:"gameId"`
	UserID    string    `json:"userId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LikeState reports a game's like count and whether the asking user liked it.
type LikeState struct {
	Count int64 `json:"count"`
	Liked bool  `json:"liked"`
}
