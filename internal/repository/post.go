package repository

import (
	"context"

	"rebound/internal/models"
	"rebound/internal/observability"

	"gorm.io/gorm"
)

// PostRepository defines the post lookups the interaction subsystem needs.
type PostRepository interface {
	WithTx(tx *gorm.DB) PostRepository
	Create(ctx context.Context, post *models.Post) error
	Exists(ctx context.Context, id uint) (bool, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db      *gorm.DB
	log     *observability.RepoLogger
	metrics *observability.DatabaseMetrics
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{
		db:      db,
		log:     observability.NewRepoLogger("posts"),
		metrics: observability.NewDatabaseMetrics("posts"),
	}
}

func (r *postRepository) WithTx(tx *gorm.DB) PostRepository {
	cp := *r
	cp.db = tx
	return &cp
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer r.metrics.TrackQuery("create")()

	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return err
	}
	r.log.LogCreate(ctx, map[string]any{"post_id": post.ID, "member_id": post.MemberID})
	return nil
}

func (r *postRepository) Exists(ctx context.Context, id uint) (bool, error) {
	defer r.metrics.TrackQuery("exists")()

	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
