package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"rebound/internal/database"
	"rebound/internal/models"
	"rebound/internal/notifications"
	"rebound/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	database.RetryBackoff = 0
}

// passthroughTx runs fn without a transaction, for stub-backed tests.
func passthroughTx(ctx context.Context, _ string, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []notifications.InteractionEvent
	err    error
}

func (p *recordingPublisher) PublishInteraction(_ context.Context, event notifications.InteractionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// testEnv wires every service against a private in-memory database.
type testEnv struct {
	db           *gorm.DB
	posts        repository.PostRepository
	comments     repository.CommentRepository
	reactions    repository.Ledger
	commentLikes repository.Ledger
	bookmarks    repository.Ledger
	events       *recordingPublisher
	engine       *ToggleEngine
	interactions *InteractionService
	commentsSvc  *CommentService
	mypage       *MyPageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	env := &testEnv{
		db:           db,
		posts:        repository.NewPostRepository(db),
		comments:     repository.NewCommentRepository(db),
		reactions:    repository.NewPostReactionLedger(db),
		commentLikes: repository.NewCommentReactionLedger(db),
		bookmarks:    repository.NewBookmarkLedger(db),
		events:       &recordingPublisher{},
	}
	runTx := NewTxRunner(db)
	env.engine = NewToggleEngine(runTx)
	env.interactions = NewInteractionService(env.engine, env.posts, env.comments, env.reactions, env.bookmarks, env.events)
	env.commentsSvc = NewCommentService(runTx, env.comments, env.posts, env.commentLikes, env.events, DefaultCommentMaxLength)
	env.mypage = NewMyPageService(env.reactions, env.bookmarks, env.comments)
	return env
}

func (e *testEnv) post(t *testing.T, memberID uint) *models.Post {
	t.Helper()
	p := &models.Post{MemberID: memberID, Title: "Failed startup", Content: "Ran out of runway."}
	require.NoError(t, e.posts.Create(context.Background(), p))
	return p
}

func (e *testEnv) comment(t *testing.T, memberID, postID uint, parentID *uint) *models.Comment {
	t.Helper()
	c, err := e.commentsSvc.CreateComment(context.Background(), CreateCommentInput{
		MemberID:        memberID,
		PostID:          postID,
		Content:         "been there",
		IsAnonymous:     true,
		ParentCommentID: parentID,
	})
	require.NoError(t, err)
	return c
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}
