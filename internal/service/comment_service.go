package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"rebound/internal/middleware"
	"rebound/internal/models"
	"rebound/internal/notifications"
	"rebound/internal/observability"
	"rebound/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// DefaultCommentMaxLength is the content limit in characters when none is configured.
const DefaultCommentMaxLength = 2000

// DeleteOutcome tells whether a deleted comment row was kept or removed.
type DeleteOutcome string

const (
	// DeleteSoft keeps the row as a DELETED placeholder because live replies reference it.
	DeleteSoft DeleteOutcome = "soft"
	// DeleteHard removes the row and its reactions.
	DeleteHard DeleteOutcome = "hard"
)

type CommentService struct {
	runTx     TxRunner
	comments  repository.CommentRepository
	posts     repository.PostRepository
	reactions repository.Ledger
	events    EventPublisher
	maxLength int
}

type CreateCommentInput struct {
	MemberID        uint
	PostID          uint
	Content         string
	IsAnonymous     bool
	ParentCommentID *uint
}

type DeleteCommentInput struct {
	MemberID  uint
	CommentID uint
}

type ListCommentsInput struct {
	PostID uint
	Page   int
	Size   int
	Status models.CommentStatus
}

type ListRepliesInput struct {
	ParentCommentID uint
	Page            int
	Size            int
}

func NewCommentService(
	runTx TxRunner,
	comments repository.CommentRepository,
	posts repository.PostRepository,
	reactions repository.Ledger,
	events EventPublisher,
	maxLength int,
) *CommentService {
	if maxLength <= 0 {
		maxLength = DefaultCommentMaxLength
	}
	return &CommentService{
		runTx:     runTx,
		comments:  comments,
		posts:     posts,
		reactions: reactions,
		events:    events,
		maxLength: maxLength,
	}
}

// CreateComment adds a root comment or a reply. Replies may only target a
// live root comment on the same post.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (comment *models.Comment, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "CommentService", "CreateComment",
		attribute.Int64("post_id", int64(in.PostID)),
		attribute.Bool("reply", in.ParentCommentID != nil),
	)
	defer span.End(&err)

	if in.MemberID == 0 {
		return nil, models.NewUnauthenticatedError("Authentication required")
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(content) > s.maxLength {
		return nil, models.NewValidationError(fmt.Sprintf("Comment too long (max %d characters)", s.maxLength))
	}

	ok, err := s.posts.Exists(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewNotFoundError("Post", in.PostID)
	}

	if in.ParentCommentID != nil {
		if err := s.checkParent(ctx, in.PostID, *in.ParentCommentID); err != nil {
			return nil, err
		}
	}

	comment = &models.Comment{
		PostID:          in.PostID,
		MemberID:        in.MemberID,
		ParentCommentID: in.ParentCommentID,
		Content:         content,
		IsAnonymous:     in.IsAnonymous,
		LikeCount:       0,
		Status:          models.CommentPublic,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.publish(ctx, notifications.InteractionEvent{
		Type:      notifications.EventCommentCreated,
		PostID:    comment.PostID,
		CommentID: comment.ID,
		MemberID:  comment.MemberID,
	})
	return comment, nil
}

func (s *CommentService) checkParent(ctx context.Context, postID, parentID uint) error {
	parent, err := s.comments.GetByID(ctx, parentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewInvalidReferenceError(fmt.Sprintf("Parent comment %d does not exist", parentID))
	}
	if err != nil {
		return err
	}
	switch {
	case parent.PostID != postID:
		return models.NewInvalidReferenceError("Parent comment belongs to a different post")
	case parent.IsDeleted():
		return models.NewInvalidReferenceError("Parent comment has been deleted")
	case !parent.IsRoot():
		return models.NewInvalidReferenceError("Replies can only target a root comment")
	}
	return nil
}

// DeleteComment removes the caller's comment. A comment with live replies is
// soft-deleted so the replies keep a valid parent; otherwise the row and its
// reactions are removed. The reply check and the delete share one transaction
// with the comment row locked.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (outcome DeleteOutcome, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "CommentService", "DeleteComment",
		attribute.Int64("comment_id", int64(in.CommentID)),
	)
	defer span.End(&err)

	if in.MemberID == 0 {
		return "", models.NewUnauthenticatedError("Authentication required")
	}

	var postID uint
	err = s.runTx(ctx, "delete_comment", func(tx *gorm.DB) error {
		comments := s.comments.WithTx(tx)

		comment, err := comments.GetForUpdate(ctx, in.CommentID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Comment", in.CommentID)
		}
		if err != nil {
			return err
		}
		if comment.MemberID != in.MemberID {
			return models.NewForbiddenError("You can only delete your own comments")
		}
		if comment.IsDeleted() {
			return models.NewConflictError("Comment has already been deleted")
		}
		postID = comment.PostID

		live, err := comments.HasLiveReplies(ctx, comment.ID)
		if err != nil {
			return err
		}
		if live {
			outcome = DeleteSoft
			return comments.SoftDelete(ctx, comment.ID, time.Now())
		}

		outcome = DeleteHard
		if _, err := s.reactions.WithTx(tx).DeleteBySubject(ctx, comment.ID); err != nil {
			return err
		}
		return comments.HardDelete(ctx, comment.ID)
	})
	if err != nil {
		return "", storageError(err)
	}

	observability.CommentDeletes.WithLabelValues(string(outcome)).Inc()
	middleware.Logger.InfoContext(ctx, "comment deleted",
		slog.Uint64("comment_id", uint64(in.CommentID)),
		slog.String("mode", string(outcome)),
	)
	s.publish(ctx, notifications.InteractionEvent{
		Type:      notifications.EventCommentDeleted,
		PostID:    postID,
		CommentID: in.CommentID,
		MemberID:  in.MemberID,
		Mode:      string(outcome),
	})
	return outcome, nil
}

// ToggleCommentHeart flips the caller's heart on a comment and stores the
// recounted total on the comment.
func (s *CommentService) ToggleCommentHeart(ctx context.Context, memberID, commentID uint) (ToggleResult, error) {
	return s.ToggleCommentReaction(ctx, memberID, commentID, models.ReactionHeart)
}

// ToggleCommentReaction toggles a reaction of the given type. The comment row
// stays locked from the toggle until like_count is rewritten, so concurrent
// toggles on one comment cannot leave a stale cached count.
func (s *CommentService) ToggleCommentReaction(ctx context.Context, memberID, commentID uint, typ models.ReactionType) (result ToggleResult, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "CommentService", "ToggleCommentReaction",
		attribute.Int64("comment_id", int64(commentID)),
	)
	defer span.End(&err)

	if memberID == 0 {
		return ToggleResult{}, models.NewUnauthenticatedError("Authentication required")
	}

	var postID uint
	err = s.runTx(ctx, "toggle_comment_reaction", func(tx *gorm.DB) error {
		comments := s.comments.WithTx(tx)

		comment, err := comments.GetForUpdate(ctx, commentID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Comment", commentID)
		}
		if err != nil {
			return err
		}
		if comment.IsDeleted() {
			return models.NewConflictError("Cannot react to a deleted comment")
		}
		postID = comment.PostID

		key := repository.LedgerKey{SubjectID: commentID, MemberID: memberID, Type: typ}
		result, err = toggleLedger(ctx, s.reactions.WithTx(tx), key)
		if err != nil {
			return err
		}
		if typ != models.ReactionHeart {
			return nil
		}
		return comments.UpdateLikeCount(ctx, commentID, result.Count)
	})
	if err != nil {
		return ToggleResult{}, storageError(err)
	}

	active, count := result.Active, result.Count
	s.publish(ctx, notifications.InteractionEvent{
		Type:      notifications.EventReactionToggled,
		PostID:    postID,
		CommentID: commentID,
		MemberID:  memberID,
		Active:    &active,
		Count:     &count,
	})
	return result, nil
}

// ListComments pages through a post's comments oldest first.
func (s *CommentService) ListComments(ctx context.Context, in ListCommentsInput) (models.Slice[*models.Comment], error) {
	if err := s.requirePost(ctx, in.PostID); err != nil {
		return models.Slice[*models.Comment]{}, err
	}
	page, size := NormalizePage(in.Page, in.Size)
	return s.comments.ListByPost(ctx, in.PostID, statusOrPublic(in.Status), page, size)
}

// ListRootComments pages through a post's top-level comments.
func (s *CommentService) ListRootComments(ctx context.Context, in ListCommentsInput) (models.Slice[*models.Comment], error) {
	if err := s.requirePost(ctx, in.PostID); err != nil {
		return models.Slice[*models.Comment]{}, err
	}
	page, size := NormalizePage(in.Page, in.Size)
	return s.comments.ListRootsByPost(ctx, in.PostID, statusOrPublic(in.Status), page, size)
}

// ListReplies pages through the public replies to a comment.
func (s *CommentService) ListReplies(ctx context.Context, in ListRepliesInput) (models.Slice[*models.Comment], error) {
	if _, err := s.comments.GetByID(ctx, in.ParentCommentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Slice[*models.Comment]{}, models.NewNotFoundError("Comment", in.ParentCommentID)
		}
		return models.Slice[*models.Comment]{}, err
	}
	page, size := NormalizePage(in.Page, in.Size)
	return s.comments.ListReplies(ctx, in.ParentCommentID, models.CommentPublic, page, size)
}

func (s *CommentService) requirePost(ctx context.Context, postID uint) error {
	ok, err := s.posts.Exists(ctx, postID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewNotFoundError("Post", postID)
	}
	return nil
}

func (s *CommentService) publish(ctx context.Context, event notifications.InteractionEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishInteraction(ctx, event); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish comment event",
			slog.String("type", event.Type),
			slog.String("error", err.Error()),
		)
	}
}

func statusOrPublic(status models.CommentStatus) models.CommentStatus {
	if status == "" {
		return models.CommentPublic
	}
	return status
}
