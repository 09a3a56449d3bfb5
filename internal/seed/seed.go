package seed

import (
	"context"
	"fmt"
	"log"

	"rebound/internal/models"
	"rebound/internal/repository"
	"rebound/internal/service"

	"gorm.io/gorm"
)

// Options controls a seeding run.
type Options struct {
	NumMembers  int
	NumPosts    int
	ShouldClean bool
	SeedOptions
}

// Seeder writes demo posts and drives engagement through the services, so
// ledgers and cached like counts stay consistent.
type Seeder struct {
	db           *gorm.DB
	factory      *Factory
	interactions *service.InteractionService
	comments     *service.CommentService
}

// NewSeeder wires a Seeder against db. Events are not published while seeding.
func NewSeeder(db *gorm.DB, opts SeedOptions) *Seeder {
	posts := repository.NewPostRepository(db)
	comments := repository.NewCommentRepository(db)
	runTx := service.NewTxRunner(db)
	return &Seeder{
		db:      db,
		factory: NewFactory(db, opts),
		interactions: service.NewInteractionService(
			service.NewToggleEngine(runTx), posts, comments,
			repository.NewPostReactionLedger(db), repository.NewBookmarkLedger(db), nil),
		comments: service.NewCommentService(runTx, comments, posts,
			repository.NewCommentReactionLedger(db), nil, service.DefaultCommentMaxLength),
	}
}

// Seed populates the database with demo data
func Seed(ctx context.Context, db *gorm.DB, opts Options) error {
	s := NewSeeder(db, opts.SeedOptions)
	if opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return fmt.Errorf("failed to clear data: %w", err)
		}
	}

	members := s.factory.MemberIDs(opts.NumMembers)
	posts, err := s.SeedPosts(members, opts.NumPosts)
	if err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("✓ %d posts created", len(posts))

	if err := s.SeedEngagement(ctx, members, posts); err != nil {
		return fmt.Errorf("failed to seed engagement: %w", err)
	}
	log.Println("🎉 Database seeding completed successfully!")
	return nil
}

// ClearAll removes every interaction row and post.
func (s *Seeder) ClearAll() error {
	log.Println("🗑️  Clearing existing data...")
	tables := []any{
		&models.CommentReaction{},
		&models.PostReaction{},
		&models.PostBookmark{},
		&models.Comment{},
		&models.Post{},
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range tables {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SeedPosts creates count posts spread across members.
func (s *Seeder) SeedPosts(members []uint, count int) ([]*models.Post, error) {
	if len(members) == 0 || count <= 0 {
		return nil, nil
	}
	posts := make([]*models.Post, 0, count)
	for i := 0; i < count; i++ {
		posts = append(posts, s.factory.BuildPost(members[i%len(members)]))
	}
	if err := s.factory.CreatePostsBatch(posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// SeedEngagement adds hearts, bookmarks, comment threads and comment hearts
// to every post.
func (s *Seeder) SeedEngagement(ctx context.Context, members []uint, posts []*models.Post) error {
	if len(members) == 0 {
		return nil
	}
	rnd := s.factory.rnd

	for _, post := range posts {
		for _, memberID := range s.factory.pick(members, rnd.Intn(len(members)+1)) {
			if _, err := s.interactions.SetPostReaction(ctx, memberID, post.ID, models.ReactionHeart, true); err != nil {
				return err
			}
		}
		for _, memberID := range s.factory.pick(members, rnd.Intn(len(members)/2+1)) {
			if _, err := s.interactions.SetBookmark(ctx, memberID, post.ID, true); err != nil {
				return err
			}
		}

		for _, author := range s.factory.pick(members, rnd.Intn(4)) {
			root, err := s.comments.CreateComment(ctx, service.CreateCommentInput{
				MemberID:    author,
				PostID:      post.ID,
				Content:     s.factory.CommentText(),
				IsAnonymous: rnd.Intn(3) > 0,
			})
			if err != nil {
				return err
			}

			for _, replier := range s.factory.pick(members, rnd.Intn(3)) {
				parentID := root.ID
				if _, err := s.comments.CreateComment(ctx, service.CreateCommentInput{
					MemberID:        replier,
					PostID:          post.ID,
					Content:         s.factory.CommentText(),
					IsAnonymous:     rnd.Intn(2) == 0,
					ParentCommentID: &parentID,
				}); err != nil {
					return err
				}
			}

			for _, fan := range s.factory.pick(members, rnd.Intn(len(members)/2+1)) {
				if _, err := s.comments.ToggleCommentHeart(ctx, fan, root.ID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
