package repository

import (
	"context"
	"time"

	"rebound/internal/models"
	"rebound/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	WithTx(tx *gorm.DB) CommentRepository
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	// GetForUpdate reads the comment and locks its row until the surrounding
	// transaction ends, where the dialect supports row locks.
	GetForUpdate(ctx context.Context, id uint) (*models.Comment, error)
	HasLiveReplies(ctx context.Context, parentID uint) (bool, error)
	SoftDelete(ctx context.Context, id uint, at time.Time) error
	HardDelete(ctx context.Context, id uint) error
	UpdateLikeCount(ctx context.Context, id uint, likeCount int64) error
	ListByPost(ctx context.Context, postID uint, status models.CommentStatus, page, size int) (models.Slice[*models.Comment], error)
	ListRootsByPost(ctx context.Context, postID uint, status models.CommentStatus, page, size int) (models.Slice[*models.Comment], error)
	ListReplies(ctx context.Context, parentID uint, status models.CommentStatus, page, size int) (models.Slice[*models.Comment], error)
	CountByPosts(ctx context.Context, postIDs []uint) (map[uint]int64, error)
	ListCommentedPostIDs(ctx context.Context, memberID uint, page, size int) (models.Slice[uint], error)
}

type commentRepository struct {
	db      *gorm.DB
	log     *observability.RepoLogger
	metrics *observability.DatabaseMetrics
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{
		db:      db,
		log:     observability.NewRepoLogger("comments"),
		metrics: observability.NewDatabaseMetrics("comments"),
	}
}

func (r *commentRepository) WithTx(tx *gorm.DB) CommentRepository {
	cp := *r
	cp.db = tx
	return &cp
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer r.metrics.TrackQuery("create")()

	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return err
	}
	r.log.LogCreate(ctx, map[string]any{
		"comment_id": comment.ID,
		"post_id":    comment.PostID,
		"member_id":  comment.MemberID,
	})
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	defer r.metrics.TrackQuery("get")()

	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) GetForUpdate(ctx context.Context, id uint) (*models.Comment, error) {
	defer r.metrics.TrackQuery("get_for_update")()

	var comment models.Comment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&comment, id).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// HasLiveReplies reports whether any reply to parentID is not DELETED.
func (r *commentRepository) HasLiveReplies(ctx context.Context, parentID uint) (bool, error) {
	defer r.metrics.TrackQuery("has_live_replies")()

	var n int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("parent_comment_id = ? AND status <> ?", parentID, models.CommentDeleted).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *commentRepository) SoftDelete(ctx context.Context, id uint, at time.Time) error {
	defer r.metrics.TrackQuery("soft_delete")()

	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.CommentDeleted,
			"content":    models.DeletedCommentPlaceholder,
			"deleted_at": at,
		}).Error
	if err != nil {
		return err
	}
	r.log.LogUpdate(ctx, map[string]any{"comment_id": id, "status": models.CommentDeleted})
	return nil
}

func (r *commentRepository) HardDelete(ctx context.Context, id uint) error {
	defer r.metrics.TrackQuery("hard_delete")()

	if err := r.db.WithContext(ctx).Delete(&models.Comment{}, id).Error; err != nil {
		return err
	}
	r.log.LogDelete(ctx, map[string]any{"comment_id": id})
	return nil
}

// UpdateLikeCount stores a recounted like total. It never increments.
func (r *commentRepository) UpdateLikeCount(ctx context.Context, id uint, likeCount int64) error {
	defer r.metrics.TrackQuery("update_like_count")()

	return r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ?", id).
		UpdateColumn("like_count", likeCount).Error
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uint, status models.CommentStatus, page, size int) (models.Slice[*models.Comment], error) {
	return r.list(ctx, "list_by_post", page, size, func(q *gorm.DB) *gorm.DB {
		return q.Where("post_id = ? AND status = ?", postID, status)
	})
}

func (r *commentRepository) ListRootsByPost(ctx context.Context, postID uint, status models.CommentStatus, page, size int) (models.Slice[*models.Comment], error) {
	return r.list(ctx, "list_roots", page, size, func(q *gorm.DB) *gorm.DB {
		return q.Where("post_id = ? AND parent_comment_id IS NULL AND status = ?", postID, status)
	})
}

func (r *commentRepository) ListReplies(ctx context.Context, parentID uint, status models.CommentStatus, page, size int) (models.Slice[*models.Comment], error) {
	return r.list(ctx, "list_replies", page, size, func(q *gorm.DB) *gorm.DB {
		return q.Where("parent_comment_id = ? AND status = ?", parentID, status)
	})
}

// list fetches size+1 rows in creation order so the slice can report HasNext.
func (r *commentRepository) list(ctx context.Context, op string, page, size int, filter func(*gorm.DB) *gorm.DB) (models.Slice[*models.Comment], error) {
	defer r.metrics.TrackQuery(op)()

	var comments []*models.Comment
	err := filter(r.db.WithContext(ctx)).
		Order("created_at ASC").
		Order("id ASC").
		Limit(size + 1).
		Offset(page * size).
		Find(&comments).Error
	if err != nil {
		return models.Slice[*models.Comment]{}, err
	}
	return models.NewSlice(comments, page, size), nil
}

// CountByPosts counts PUBLIC comments per post in one GROUP BY query.
func (r *commentRepository) CountByPosts(ctx context.Context, postIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}
	defer r.metrics.TrackQuery("count_by_posts")()

	var rows []struct {
		PostID uint
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Select("post_id, COUNT(*) AS total").
		Where("post_id IN ? AND status = ?", postIDs, models.CommentPublic).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.PostID] = row.Total
	}
	return counts, nil
}

// ListCommentedPostIDs pages through the posts a member commented on, most
// recently commented first.
func (r *commentRepository) ListCommentedPostIDs(ctx context.Context, memberID uint, page, size int) (models.Slice[uint], error) {
	defer r.metrics.TrackQuery("list_commented_posts")()

	var rows []struct {
		PostID uint
	}
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Select("post_id, MAX(created_at) AS last_commented_at").
		Where("member_id = ? AND status <> ?", memberID, models.CommentDeleted).
		Group("post_id").
		Order("last_commented_at DESC").
		Order("post_id DESC").
		Limit(size + 1).
		Offset(page * size).
		Scan(&rows).Error
	if err != nil {
		return models.Slice[uint]{}, err
	}

	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.PostID)
	}
	return models.NewSlice(ids, page, size), nil
}
