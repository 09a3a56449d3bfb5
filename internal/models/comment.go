package models

import (
	"fmt"
	"strings"
	"time"
)

// CommentStatus is the lifecycle state of a comment.
type CommentStatus string

const (
	CommentPublic  CommentStatus = "PUBLIC"
	CommentHidden  CommentStatus = "HIDDEN"
	CommentDeleted CommentStatus = "DELETED"
)

// DeletedCommentPlaceholder replaces the content of a soft-deleted comment.
const DeletedCommentPlaceholder = "[This comment has been deleted]"

// ParseCommentStatus normalizes s. An empty string means PUBLIC.
func ParseCommentStatus(s string) (CommentStatus, error) {
	switch CommentStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case "", CommentPublic:
		return CommentPublic, nil
	case CommentHidden:
		return CommentHidden, nil
	case CommentDeleted:
		return CommentDeleted, nil
	default:
		return "", NewValidationError(fmt.Sprintf("unsupported comment status %q", s))
	}
}

// Comment is a root comment or a reply on a post.
//
// ParentCommentID is nil for root comments and points at a root comment for
// replies. LikeCount caches the number of HEART rows in the comment reaction
// ledger and is only ever written as a recount. DeletedAt is a plain column:
// a hard delete removes the row, a soft delete sets Status to DELETED.
type Comment struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	PostID          uint          `gorm:"not null;index;index:ix_comment_post_created,priority:1" json:"post_id"`
	MemberID        uint          `gorm:"not null;index" json:"member_id"`
	ParentCommentID *uint         `gorm:"index" json:"parent_comment_id"`
	Content         string        `gorm:"type:text;not null" json:"content"`
	IsAnonymous     bool          `gorm:"not null" json:"is_anonymous"`
	LikeCount       int64         `gorm:"not null;default:0" json:"like_count"`
	Status          CommentStatus `gorm:"type:varchar(16);not null;default:PUBLIC;index" json:"status"`
	CreatedAt       time.Time     `gorm:"index:ix_comment_post_created,priority:2" json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	DeletedAt       *time.Time    `json:"deleted_at,omitempty"`
}

// IsRoot reports whether c is a top-level comment.
func (c *Comment) IsRoot() bool {
	return c.ParentCommentID == nil
}

// IsDeleted reports whether c has been soft-deleted.
func (c *Comment) IsDeleted() bool {
	return c.Status == CommentDeleted
}
