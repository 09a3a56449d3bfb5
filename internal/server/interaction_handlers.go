package server

import (
	"rebound/internal/middleware"
	"rebound/internal/models"
	"rebound/internal/service"

	"github.com/gofiber/fiber/v2"
)

// TogglePostHeart flips the caller's heart on a post (protected)
// @Summary Toggle post heart
// @Description Flips the caller's heart on a post and returns the recounted total
// @Tags interactions
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} LikeResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /v1/posts/{postId}/reactions/heart [post]
func (s *Server) TogglePostHeart(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}

	result, err := s.interactions.TogglePostReaction(c.UserContext(), middleware.MemberID(c), postID, models.ReactionHeart)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(LikeResponse{Liked: result.Active, LikeCount: result.Count})
}

// LikePost puts the caller's heart on a post; repeating it is a no-op (protected)
// @Summary Like post
// @Tags interactions
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} LikeResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /v1/posts/{postId}/reactions/heart [put]
func (s *Server) LikePost(c *fiber.Ctx) error {
	return s.setPostHeart(c, true)
}

// UnlikePost removes the caller's heart from a post; repeating it is a no-op (protected)
// @Summary Unlike post
// @Tags interactions
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} LikeResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /v1/posts/{postId}/reactions/heart [delete]
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	return s.setPostHeart(c, false)
}

func (s *Server) setPostHeart(c *fiber.Ctx, active bool) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}

	result, err := s.interactions.SetPostReaction(c.UserContext(), middleware.MemberID(c), postID, models.ReactionHeart, active)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(LikeResponse{Liked: result.Active, LikeCount: result.Count})
}

// ToggleCommentHeart flips the caller's heart on a comment (protected)
// @Summary Toggle comment heart
// @Description Flips the caller's heart on a comment and resyncs its like count
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param commentId path int true "Comment ID"
// @Success 200 {object} LikeResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /v1/comments/{commentId}/reactions/heart [post]
func (s *Server) ToggleCommentHeart(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	result, err := s.comments.ToggleCommentHeart(c.UserContext(), middleware.MemberID(c), commentID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(LikeResponse{Liked: result.Active, LikeCount: result.Count})
}

// ToggleReaction toggles a reaction on a post or a comment (protected)
// @Summary Toggle reaction
// @Description Toggles a reaction on a POST or COMMENT subject
// @Tags interactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ToggleReactionRequest true "Reaction target"
// @Success 200 {object} LikeResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /v1/reactions/toggle [post]
func (s *Server) ToggleReaction(c *fiber.Ctx) error {
	var req ToggleReactionRequest
	if err := s.bindBody(c, &req); err != nil {
		return nil
	}

	kind, err := models.ParseSubjectKind(req.SubjectKind)
	if err != nil {
		return respondError(c, err)
	}
	typ, err := models.ParseReactionType(req.ReactionType)
	if err != nil {
		return respondError(c, err)
	}

	ctx := c.UserContext()
	memberID := middleware.MemberID(c)

	var result service.ToggleResult
	switch kind {
	case models.SubjectPost:
		result, err = s.interactions.TogglePostReaction(ctx, memberID, req.SubjectID, typ)
	case models.SubjectComment:
		result, err = s.comments.ToggleCommentReaction(ctx, memberID, req.SubjectID, typ)
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(LikeResponse{Liked: result.Active, LikeCount: result.Count})
}

// ToggleBookmark flips the caller's bookmark on a post (protected)
// @Summary Toggle bookmark
// @Tags interactions
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} BookmarkResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /v1/posts/{postId}/bookmarks [post]
func (s *Server) ToggleBookmark(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}

	result, err := s.interactions.ToggleBookmark(c.UserContext(), middleware.MemberID(c), postID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(BookmarkResponse{Bookmarked: result.Active, BookmarkCount: result.Count})
}

// AddBookmark bookmarks a post for the caller (protected)
// @Summary Bookmark post
// @Tags interactions
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} BookmarkResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /v1/posts/{postId}/bookmarks [put]
func (s *Server) AddBookmark(c *fiber.Ctx) error {
	return s.setBookmark(c, true)
}

// RemoveBookmark drops the caller's bookmark on a post (protected)
// @Summary Remove bookmark
// @Tags interactions
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} BookmarkResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /v1/posts/{postId}/bookmarks [delete]
func (s *Server) RemoveBookmark(c *fiber.Ctx) error {
	return s.setBookmark(c, false)
}

func (s *Server) setBookmark(c *fiber.Ctx, active bool) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}

	result, err := s.interactions.SetBookmark(c.UserContext(), middleware.MemberID(c), postID, active)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(BookmarkResponse{Bookmarked: result.Active, BookmarkCount: result.Count})
}

// GetMyInteractions returns the caller's like/bookmark state and the totals for a post (protected)
// @Summary Get my interactions
// @Tags interactions
// @Produce json
// @Security BearerAuth
// @Param postId path int true "Post ID"
// @Success 200 {object} models.InteractionState
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /v1/posts/{postId}/my-interactions [get]
func (s *Server) GetMyInteractions(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}

	state, err := s.interactions.InteractionState(c.UserContext(), middleware.MemberID(c), postID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

// GetPostSummaries returns interaction aggregates for the posts in ?ids=,
// in request order (public; liked/bookmarked are false for anonymous callers)
// @Summary Get post summaries
// @Description Returns like, bookmark and comment totals for up to 100 posts
// @Tags interactions
// @Produce json
// @Param ids query string true "Comma-separated post IDs"
// @Success 200 {object} object{items=[]models.PostSummary}
// @Failure 400 {object} models.ErrorResponse
// @Router /v1/posts/summaries [get]
func (s *Server) GetPostSummaries(c *fiber.Ctx) error {
	ids, err := parseIDList(c.Query("ids"))
	if err != nil {
		return respondError(c, err)
	}

	summaries, err := s.interactions.Summaries(c.UserContext(), middleware.MemberID(c), ids)
	if err != nil {
		return respondError(c, err)
	}

	items := make([]models.PostSummary, 0, len(summaries))
	seen := make(map[uint]struct{}, len(summaries))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if summary, ok := summaries[id]; ok {
			items = append(items, summary)
		}
	}
	return c.JSON(fiber.Map{"items": items})
}
