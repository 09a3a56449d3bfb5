package service

import (
	"context"
	"log/slog"

	"rebound/internal/cache"
	"rebound/internal/middleware"
	"rebound/internal/models"
	"rebound/internal/notifications"
	"rebound/internal/observability"
	"rebound/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// MaxSummaryBatch bounds the number of posts one Summaries call may ask for.
const MaxSummaryBatch = 100

// EventPublisher delivers interaction events to other services.
type EventPublisher interface {
	PublishInteraction(ctx context.Context, event notifications.InteractionEvent) error
}

// InteractionService owns post reactions and bookmarks.
type InteractionService struct {
	engine    *ToggleEngine
	posts     repository.PostRepository
	comments  repository.CommentRepository
	reactions repository.Ledger
	bookmarks repository.Ledger
	events    EventPublisher
}

func NewInteractionService(
	engine *ToggleEngine,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	reactions repository.Ledger,
	bookmarks repository.Ledger,
	events EventPublisher,
) *InteractionService {
	return &InteractionService{
		engine:    engine,
		posts:     posts,
		comments:  comments,
		reactions: reactions,
		bookmarks: bookmarks,
		events:    events,
	}
}

type postCounts struct {
	LikeCount     int64 `json:"like_count"`
	BookmarkCount int64 `json:"bookmark_count"`
}

// TogglePostReaction flips the caller's reaction on a post.
func (s *InteractionService) TogglePostReaction(ctx context.Context, memberID, postID uint, typ models.ReactionType) (ToggleResult, error) {
	if err := s.checkPost(ctx, memberID, postID); err != nil {
		return ToggleResult{}, err
	}
	key := repository.LedgerKey{SubjectID: postID, MemberID: memberID, Type: typ}
	result, err := s.engine.Toggle(ctx, s.reactions, key)
	if err != nil {
		return ToggleResult{}, err
	}
	s.afterToggle(ctx, notifications.EventReactionToggled, memberID, postID, result)
	return result, nil
}

// SetPostReaction makes the caller's reaction present or absent.
func (s *InteractionService) SetPostReaction(ctx context.Context, memberID, postID uint, typ models.ReactionType, active bool) (ToggleResult, error) {
	if err := s.checkPost(ctx, memberID, postID); err != nil {
		return ToggleResult{}, err
	}
	key := repository.LedgerKey{SubjectID: postID, MemberID: memberID, Type: typ}
	result, err := s.engine.Set(ctx, s.reactions, key, active)
	if err != nil {
		return ToggleResult{}, err
	}
	s.afterToggle(ctx, notifications.EventReactionToggled, memberID, postID, result)
	return result, nil
}

// ToggleBookmark flips the caller's bookmark on a post.
func (s *InteractionService) ToggleBookmark(ctx context.Context, memberID, postID uint) (ToggleResult, error) {
	if err := s.checkPost(ctx, memberID, postID); err != nil {
		return ToggleResult{}, err
	}
	result, err := s.engine.Toggle(ctx, s.bookmarks, repository.LedgerKey{SubjectID: postID, MemberID: memberID})
	if err != nil {
		return ToggleResult{}, err
	}
	s.afterToggle(ctx, notifications.EventBookmarkToggled, memberID, postID, result)
	return result, nil
}

// SetBookmark makes the caller's bookmark present or absent.
func (s *InteractionService) SetBookmark(ctx context.Context, memberID, postID uint, active bool) (ToggleResult, error) {
	if err := s.checkPost(ctx, memberID, postID); err != nil {
		return ToggleResult{}, err
	}
	result, err := s.engine.Set(ctx, s.bookmarks, repository.LedgerKey{SubjectID: postID, MemberID: memberID}, active)
	if err != nil {
		return ToggleResult{}, err
	}
	s.afterToggle(ctx, notifications.EventBookmarkToggled, memberID, postID, result)
	return result, nil
}

// InteractionState returns the caller's view of a single post. Totals are
// served from cache; membership is always read from the ledgers.
func (s *InteractionService) InteractionState(ctx context.Context, memberID, postID uint) (state models.InteractionState, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "InteractionService", "InteractionState",
		attribute.Int64("post_id", int64(postID)),
	)
	defer span.End(&err)

	if err = s.checkPost(ctx, memberID, postID); err != nil {
		return models.InteractionState{}, err
	}

	var counts postCounts
	err = cache.Aside(ctx, cache.PostCountsKey(postID), cache.PostCountsGenerationKey(postID), &counts, cache.PostCountsTTL, func() error {
		likes, err := s.reactions.Count(ctx, postID, models.ReactionHeart)
		if err != nil {
			return err
		}
		bookmarks, err := s.bookmarks.Count(ctx, postID, "")
		if err != nil {
			return err
		}
		counts = postCounts{LikeCount: likes, BookmarkCount: bookmarks}
		return nil
	})
	if err != nil {
		return models.InteractionState{}, err
	}

	liked, err := s.reactions.Exists(ctx, repository.LedgerKey{SubjectID: postID, MemberID: memberID, Type: models.ReactionHeart})
	if err != nil {
		return models.InteractionState{}, err
	}
	bookmarked, err := s.bookmarks.Exists(ctx, repository.LedgerKey{SubjectID: postID, MemberID: memberID})
	if err != nil {
		return models.InteractionState{}, err
	}

	return models.InteractionState{
		Liked:         liked,
		Bookmarked:    bookmarked,
		LikeCount:     counts.LikeCount,
		BookmarkCount: counts.BookmarkCount,
	}, nil
}

// Summaries returns interaction aggregates for a batch of posts in a fixed
// number of queries: three for anonymous callers (memberID 0), five otherwise.
// Every requested id gets an entry, zero-valued when nothing references it.
func (s *InteractionService) Summaries(ctx context.Context, memberID uint, postIDs []uint) (summaries map[uint]models.PostSummary, err error) {
	ids := uniqueIDs(postIDs)
	if len(ids) > MaxSummaryBatch {
		return nil, models.NewValidationError("Too many post ids (max 100)")
	}

	ctx, span := observability.StartServiceSpan(ctx, "InteractionService", "Summaries",
		attribute.Int("post_count", len(ids)),
		attribute.Bool("anonymous", memberID == 0),
	)
	defer span.End(&err)

	summaries = make(map[uint]models.PostSummary, len(ids))
	if len(ids) == 0 {
		return summaries, nil
	}

	likeCounts, err := s.reactions.CountBySubjects(ctx, ids, models.ReactionHeart)
	if err != nil {
		return nil, err
	}
	bookmarkCounts, err := s.bookmarks.CountBySubjects(ctx, ids, "")
	if err != nil {
		return nil, err
	}
	commentCounts, err := s.comments.CountByPosts(ctx, ids)
	if err != nil {
		return nil, err
	}

	liked := map[uint]struct{}{}
	bookmarked := map[uint]struct{}{}
	if memberID != 0 {
		if liked, err = s.reactions.MemberSubjects(ctx, memberID, ids, models.ReactionHeart); err != nil {
			return nil, err
		}
		if bookmarked, err = s.bookmarks.MemberSubjects(ctx, memberID, ids, ""); err != nil {
			return nil, err
		}
	}

	for _, id := range ids {
		_, isLiked := liked[id]
		_, isBookmarked := bookmarked[id]
		summaries[id] = models.PostSummary{
			PostID:        id,
			LikeCount:     likeCounts[id],
			BookmarkCount: bookmarkCounts[id],
			CommentCount:  commentCounts[id],
			Liked:         isLiked,
			Bookmarked:    isBookmarked,
		}
	}
	return summaries, nil
}

func (s *InteractionService) checkPost(ctx context.Context, memberID, postID uint) error {
	if memberID == 0 {
		return models.NewUnauthenticatedError("Authentication required")
	}
	ok, err := s.posts.Exists(ctx, postID)
	if err != nil {
		return storageError(err)
	}
	if !ok {
		return models.NewNotFoundError("Post", postID)
	}
	return nil
}

// afterToggle drops cached totals and publishes the change. Both are best effort.
func (s *InteractionService) afterToggle(ctx context.Context, eventType string, memberID, postID uint, result ToggleResult) {
	cache.InvalidatePostCounts(ctx, postID)

	if s.events == nil {
		return
	}
	active, count := result.Active, result.Count
	err := s.events.PublishInteraction(ctx, notifications.InteractionEvent{
		Type:     eventType,
		PostID:   postID,
		MemberID: memberID,
		Active:   &active,
		Count:    &count,
	})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish interaction event",
			slog.String("type", eventType),
			slog.String("error", err.Error()),
		)
	}
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
