package server

import (
	"context"

	"rebound/internal/middleware"
	"rebound/internal/models"

	"github.com/gofiber/fiber/v2"
)

type postIDLister func(ctx context.Context, memberID uint, page, size int) (models.Slice[uint], error)

// GetMyLikedPosts returns the ids of posts the caller hearted, newest first (protected)
// @Summary List liked posts
// @Tags mypage
// @Produce json
// @Security BearerAuth
// @Param page query int false "0-based page" default(0)
// @Param size query int false "Page size (1-100)" default(20)
// @Success 200 {object} object{items=[]uint,hasNext=bool,page=int,size=int}
// @Failure 401 {object} models.ErrorResponse
// @Router /v1/mypage/likes [get]
func (s *Server) GetMyLikedPosts(c *fiber.Ctx) error {
	return s.listMyPosts(c, s.mypage.LikedPostIDs)
}

// GetMyBookmarkedPosts returns the ids of posts the caller bookmarked, newest first (protected)
// @Summary List bookmarked posts
// @Tags mypage
// @Produce json
// @Security BearerAuth
// @Param page query int false "0-based page" default(0)
// @Param size query int false "Page size (1-100)" default(20)
// @Success 200 {object} object{items=[]uint,hasNext=bool,page=int,size=int}
// @Failure 401 {object} models.ErrorResponse
// @Router /v1/mypage/bookmarks [get]
func (s *Server) GetMyBookmarkedPosts(c *fiber.Ctx) error {
	return s.listMyPosts(c, s.mypage.BookmarkedPostIDs)
}

// GetMyCommentedPosts returns the ids of posts the caller commented on, most recent comment first (protected)
// @Summary List commented posts
// @Tags mypage
// @Produce json
// @Security BearerAuth
// @Param page query int false "0-based page" default(0)
// @Param size query int false "Page size (1-100)" default(20)
// @Success 200 {object} object{items=[]uint,hasNext=bool,page=int,size=int}
// @Failure 401 {object} models.ErrorResponse
// @Router /v1/mypage/comments [get]
func (s *Server) GetMyCommentedPosts(c *fiber.Ctx) error {
	return s.listMyPosts(c, s.mypage.CommentedPostIDs)
}

func (s *Server) listMyPosts(c *fiber.Ctx, list postIDLister) error {
	p := parsePagination(c)
	ids, err := list(c.UserContext(), middleware.MemberID(c), p.Page, p.Size)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ids)
}
