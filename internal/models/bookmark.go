package models

import "time"

// PostBookmark records that a member saved a post.
// The combination of PostID and MemberID must be unique.
type PostBookmark struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:uk_post_bookmark_member,priority:1" json:"post_id"`
	MemberID  uint      `gorm:"not null;uniqueIndex:uk_post_bookmark_member,priority:2;index" json:"member_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
