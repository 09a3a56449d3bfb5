package server

import (
	"context"

	"rebound/internal/middleware"
	"rebound/internal/models"
	"rebound/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateComment creates a comment or a reply on a post (protected)
// @Summary Create comment
// @Description Creates a comment or, with parentCommentId, a reply to a root comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Param request body CreateCommentRequest true "Comment"
// @Success 201 {object} CommentResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /v1/posts/{postId}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}

	var req CreateCommentRequest
	if err := s.bindBody(c, &req); err != nil {
		return nil
	}

	anonymous := true
	if req.IsAnonymous != nil {
		anonymous = *req.IsAnonymous
	}

	created, err := s.comments.CreateComment(c.UserContext(), service.CreateCommentInput{
		MemberID:        middleware.MemberID(c),
		PostID:          postID,
		Content:         req.Content,
		IsAnonymous:     anonymous,
		ParentCommentID: req.ParentCommentID,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(newCommentResponse(created))
}

// GetComments returns a page of a post's comments, PUBLIC unless ?status= says otherwise (public)
// @Summary List comments
// @Tags comments
// @Produce json
// @Param postId path int true "Post ID"
// @Param page query int false "0-based page" default(0)
// @Param size query int false "Page size (1-100)" default(20)
// @Param status query string false "PUBLIC or DELETED"
// @Success 200 {object} object{items=[]CommentResponse,hasNext=bool,page=int,size=int}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/posts/{postId}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	return s.listComments(c, s.comments.ListComments)
}

// GetRootComments returns a page of a post's top-level comments (public)
// @Summary List root comments
// @Tags comments
// @Produce json
// @Param postId path int true "Post ID"
// @Param page query int false "0-based page" default(0)
// @Param size query int false "Page size (1-100)" default(20)
// @Success 200 {object} object{items=[]CommentResponse,hasNext=bool,page=int,size=int}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/posts/{postId}/comments/roots [get]
func (s *Server) GetRootComments(c *fiber.Ctx) error {
	return s.listComments(c, s.comments.ListRootComments)
}

func (s *Server) listComments(c *fiber.Ctx, list func(ctx context.Context, in service.ListCommentsInput) (models.Slice[*models.Comment], error)) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}

	status, err := models.ParseCommentStatus(c.Query("status"))
	if err != nil {
		return respondError(c, err)
	}

	p := parsePagination(c)
	comments, err := list(c.UserContext(), service.ListCommentsInput{
		PostID: postID,
		Page:   p.Page,
		Size:   p.Size,
		Status: status,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newCommentSlice(comments))
}

// GetReplies returns a page of live replies to a root comment (public)
// @Summary List replies
// @Tags comments
// @Produce json
// @Param commentId path int true "Comment ID"
// @Param page query int false "0-based page" default(0)
// @Param size query int false "Page size (1-100)" default(20)
// @Success 200 {object} object{items=[]CommentResponse,hasNext=bool,page=int,size=int}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/comments/{commentId}/replies [get]
func (s *Server) GetReplies(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	p := parsePagination(c)
	replies, err := s.comments.ListReplies(c.UserContext(), service.ListRepliesInput{
		ParentCommentID: commentID,
		Page:            p.Page,
		Size:            p.Size,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newCommentSlice(replies))
}

// DeleteComment deletes a comment (author only). A comment with live replies
// becomes a DELETED placeholder; otherwise the row is removed.
// @Summary Delete comment
// @Description Soft-deletes when live replies exist, otherwise removes the row. X-Delete-Mode reports which
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param commentId path int true "Comment ID"
// @Success 204
// @Header 204 {string} X-Delete-Mode "soft or hard"
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /v1/comments/{commentId} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	outcome, err := s.comments.DeleteComment(c.UserContext(), service.DeleteCommentInput{
		MemberID:  middleware.MemberID(c),
		CommentID: commentID,
	})
	if err != nil {
		return respondError(c, err)
	}

	c.Set("X-Delete-Mode", string(outcome))
	return c.SendStatus(fiber.StatusNoContent)
}
