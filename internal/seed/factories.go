// Package seed provides helpers to create demo data for the interaction
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"rebound/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// SeedOptions tunes generated data.
type SeedOptions struct {
	// MaxDays bounds how far back generated posts are dated.
	MaxDays int
	// Seed makes generation deterministic when non-zero.
	Seed int64
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db   *gorm.DB
	opts SeedOptions
	rnd  *rand.Rand
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts SeedOptions) *Factory {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	//nolint:gosec // Weak random number generator is fine for seeding
	return &Factory{db: db, opts: opts, rnd: rand.New(rand.NewSource(seed))}
}

var failureTopics = []string{
	"startup", "exam", "job interview", "marathon", "side project",
	"relationship", "product launch", "driving test", "investment", "bakery",
}

// BuildPost constructs a failure story by memberID without persisting it.
func (f *Factory) BuildPost(memberID uint, overrides ...func(*models.Post)) *models.Post {
	topic := failureTopics[f.rnd.Intn(len(failureTopics))]
	post := &models.Post{
		MemberID: memberID,
		Title:    fmt.Sprintf("How my %s %s", topic, gofakeit.RandomString([]string{"failed", "fell apart", "went sideways", "collapsed"})),
		Content:  gofakeit.Paragraph(1, 3, 8, "\n"),
	}

	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	post.CreatedAt = time.Now().Add(-time.Duration(f.rnd.Intn(maxDays))*24*time.Hour -
		time.Duration(f.rnd.Intn(24))*time.Hour -
		time.Duration(f.rnd.Intn(60))*time.Minute)
	post.UpdatedAt = post.CreatedAt

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePostsBatch persists multiple posts in batches.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return f.db.CreateInBatches(posts, 100).Error
}

// CommentText returns a short reaction to a failure story.
func (f *Factory) CommentText() string {
	return gofakeit.Sentence(f.rnd.Intn(10) + 3)
}

// MemberIDs returns n distinct member ids starting at 1. Members are owned by
// the identity service, so seeding only needs their ids.
func (f *Factory) MemberIDs(n int) []uint {
	ids := make([]uint, n)
	for i := range ids {
		ids[i] = uint(i + 1)
	}
	return ids
}

// pick returns up to n members chosen at random without repetition.
func (f *Factory) pick(members []uint, n int) []uint {
	if n > len(members) {
		n = len(members)
	}
	out := make([]uint, 0, n)
	for _, i := range f.rnd.Perm(len(members))[:n] {
		out = append(out, members[i])
	}
	return out
}
