package service

import (
	"context"

	"rebound/internal/models"
	"rebound/internal/repository"
)

// MyPageService lists the posts a member has interacted with, newest first.
type MyPageService struct {
	reactions repository.Ledger
	bookmarks repository.Ledger
	comments  repository.CommentRepository
}

func NewMyPageService(reactions, bookmarks repository.Ledger, comments repository.CommentRepository) *MyPageService {
	return &MyPageService{reactions: reactions, bookmarks: bookmarks, comments: comments}
}

func (s *MyPageService) LikedPostIDs(ctx context.Context, memberID uint, page, size int) (models.Slice[uint], error) {
	if memberID == 0 {
		return models.Slice[uint]{}, models.NewUnauthenticatedError("Authentication required")
	}
	page, size = NormalizePage(page, size)
	return s.reactions.ListSubjectsByMember(ctx, memberID, models.ReactionHeart, page, size)
}

func (s *MyPageService) BookmarkedPostIDs(ctx context.Context, memberID uint, page, size int) (models.Slice[uint], error) {
	if memberID == 0 {
		return models.Slice[uint]{}, models.NewUnauthenticatedError("Authentication required")
	}
	page, size = NormalizePage(page, size)
	return s.bookmarks.ListSubjectsByMember(ctx, memberID, "", page, size)
}

// CommentedPostIDs lists posts ordered by the member's latest live comment on each.
func (s *MyPageService) CommentedPostIDs(ctx context.Context, memberID uint, page, size int) (models.Slice[uint], error) {
	if memberID == 0 {
		return models.Slice[uint]{}, models.NewUnauthenticatedError("Authentication required")
	}
	page, size = NormalizePage(page, size)
	return s.comments.ListCommentedPostIDs(ctx, memberID, page, size)
}
