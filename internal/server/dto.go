package server

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"rebound/internal/models"

	"github.com/go-playground/validator/v10"
)

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ToggleReactionRequest is the body of the generic reaction toggle.
type ToggleReactionRequest struct {
	SubjectKind  string `json:"subjectKind" validate:"required"`
	SubjectID    uint   `json:"subjectId" validate:"required,gt=0"`
	ReactionType string `json:"reactionType"`
}

// CreateCommentRequest is the body of a new comment. Comments are anonymous
// unless the client opts out.
type CreateCommentRequest struct {
	Content         string `json:"content" validate:"required"`
	IsAnonymous     *bool  `json:"isAnonymous"`
	ParentCommentID *uint  `json:"parentCommentId" validate:"omitempty,gt=0"`
}

type LikeResponse struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"likeCount"`
}

type BookmarkResponse struct {
	Bookmarked    bool  `json:"bookmarked"`
	BookmarkCount int64 `json:"bookmarkCount"`
}

// CommentResponse is the public view of a comment. Anonymous comments carry
// a masked display name and no member id.
type CommentResponse struct {
	ID              uint                 `json:"id"`
	PostID          uint                 `json:"postId"`
	ParentCommentID *uint                `json:"parentCommentId,omitempty"`
	MemberID        *uint                `json:"memberId,omitempty"`
	AuthorName      string               `json:"authorName"`
	Content         string               `json:"content"`
	IsAnonymous     bool                 `json:"isAnonymous"`
	LikeCount       int64                `json:"likeCount"`
	Status          models.CommentStatus `json:"status"`
	CreatedAt       time.Time            `json:"createdAt"`
	DeletedAt       *time.Time           `json:"deletedAt,omitempty"`
}

func newCommentResponse(c *models.Comment) CommentResponse {
	resp := CommentResponse{
		ID:              c.ID,
		PostID:          c.PostID,
		ParentCommentID: c.ParentCommentID,
		AuthorName:      memberDisplayName(c.MemberID),
		Content:         c.Content,
		IsAnonymous:     c.IsAnonymous,
		LikeCount:       c.LikeCount,
		Status:          c.Status,
		CreatedAt:       c.CreatedAt,
		DeletedAt:       c.DeletedAt,
	}
	if c.IsAnonymous {
		resp.AuthorName = MaskNickname(resp.AuthorName)
	} else {
		memberID := c.MemberID
		resp.MemberID = &memberID
	}
	return resp
}

func newCommentSlice(s models.Slice[*models.Comment]) models.Slice[CommentResponse] {
	items := make([]CommentResponse, 0, len(s.Items))
	for _, c := range s.Items {
		items = append(items, newCommentResponse(c))
	}
	return models.Slice[CommentResponse]{Items: items, HasNext: s.HasNext, Page: s.Page, Size: s.Size}
}

// Nicknames live with the identity service; the fallback name is derived
// from the member id.
func memberDisplayName(memberID uint) string {
	return fmt.Sprintf("member-%d", memberID)
}

// MaskNickname keeps the first character and replaces the rest with '*'.
func MaskNickname(name string) string {
	runes := []rune(name)
	if len(runes) <= 1 {
		return name
	}
	return string(runes[0]) + strings.Repeat("*", len(runes)-1)
}
