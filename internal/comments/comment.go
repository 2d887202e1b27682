package comments

import (
	"errors"
	"time"
)

var (
	ErrContentEmpty   = errors.New("comment content empty")
	ErrContentTooLong = errors.New("comment content too long")
	ErrAuthorEmpty    = errors.New("comment author empty")
)

// Comment is one entry in a post's comment partition. The ID is the
// creation time in unix millis, bumped when needed so that ids within a
// partition stay strictly increasing.
type Comment struct {
	ID          int64     `json:"id"`
	PostSlug    string    `json:"postSlug"`
	Author      string    `json:"author"`
	AuthorColor string    `json:"authorColor"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
	IsAuthor    bool      `json:"isAuthor,omitempty"`
}
