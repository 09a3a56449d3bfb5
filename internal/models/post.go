// Package models contains data structures for the application's domain models.
package models

import "time"

// Post is the minimal failure-story record that comments, reactions and
// bookmarks reference. Publishing workflow lives in another service.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MemberID  uint      `gorm:"not null;index" json:"member_id"`
	Title     string    `gorm:"not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostSummary carries the interaction aggregates rendered next to a post in a list.
type PostSummary struct {
	PostID        uint  `json:"post_id"`
	LikeCount     int64 `json:"like_count"`
	BookmarkCount int64 `json:"bookmark_count"`
	CommentCount  int64 `json:"comment_count"`
	Liked         bool  `json:"liked"`
	Bookmarked    bool  `json:"bookmarked"`
}

// InteractionState is the caller's view of a single post card.
type InteractionState struct {
	Liked         bool  `json:"liked"`
	Bookmarked    bool  `json:"bookmarked"`
	LikeCount     int64 `json:"likeCount"`
	BookmarkCount int64 `json:"bookmarkCount"`
}
