package models

import (
	"fmt"
	"strings"
	"time"
)

// ReactionType enumerates the reactions a member can hold on a subject.
type ReactionType string

const (
	ReactionHeart ReactionType = "HEART"
)

// ParseReactionType normalizes s and rejects unknown reaction types.
// An empty string defaults to HEART.
func ParseReactionType(s string) (ReactionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(ReactionHeart):
		return ReactionHeart, nil
	default:
		return "", NewValidationError(fmt.Sprintf("unsupported reaction type %q", s))
	}
}

// SubjectKind identifies what a reaction is attached to.
type SubjectKind string

const (
	SubjectPost    SubjectKind = "POST"
	SubjectComment SubjectKind = "COMMENT"
)

// ParseSubjectKind normalizes s into a SubjectKind.
func ParseSubjectKind(s string) (SubjectKind, error) {
	switch SubjectKind(strings.ToUpper(strings.TrimSpace(s))) {
	case SubjectPost:
		return SubjectPost, nil
	case SubjectComment:
		return SubjectComment, nil
	default:
		return "", NewValidationError(fmt.Sprintf("unsupported subject kind %q", s))
	}
}

// PostReaction is a member's reaction on a post.
// The combination of PostID, MemberID and Type must be unique.
// Rows are created on toggle-on and hard-deleted on toggle-off.
type PostReaction struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	PostID    uint         `gorm:"not null;uniqueIndex:uk_post_reaction_member_type,priority:1;index:ix_post_reaction_post_type,priority:1" json:"post_id"`
	MemberID  uint         `gorm:"not null;uniqueIndex:uk_post_reaction_member_type,priority:2;index" json:"member_id"`
	Type      ReactionType `gorm:"type:varchar(16);not null;uniqueIndex:uk_post_reaction_member_type,priority:3;index:ix_post_reaction_post_type,priority:2" json:"type"`
	CreatedAt time.Time    `gorm:"index" json:"created_at"`
}

// CommentReaction is a member's reaction on a comment.
// The combination of CommentID, MemberID and Type must be unique.
type CommentReaction struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	CommentID uint         `gorm:"not null;uniqueIndex:uk_comment_reaction_member_type,priority:1;index:ix_comment_reaction_comment_type,priority:1" json:"comment_id"`
	MemberID  uint         `gorm:"not null;uniqueIndex:uk_comment_reaction_member_type,priority:2" json:"member_id"`
	Type      ReactionType `gorm:"type:varchar(16);not null;uniqueIndex:uk_comment_reaction_member_type,priority:3;index:ix_comment_reaction_comment_type,priority:2" json:"type"`
	CreatedAt time.Time    `json:"created_at"`
}
