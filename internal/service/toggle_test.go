package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"rebound/internal/models"
	"rebound/internal/repository"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ledgerStub is a stub for repository.Ledger.
type ledgerStub struct {
	existsFn func(context.Context, repository.LedgerKey) (bool, error)
	insertFn func(context.Context, repository.LedgerKey) (repository.InsertOutcome, error)
	deleteFn func(context.Context, repository.LedgerKey) (bool, error)
	countFn  func(context.Context, uint, models.ReactionType) (int64, error)
}

func (s *ledgerStub) Kind() string { return "stub" }
func (s *ledgerStub) WithTx(_ *gorm.DB) repository.Ledger { return s }
func (s *ledgerStub) Exists(ctx context.Context, key repository.LedgerKey) (bool, error) {
	return s.existsFn(ctx, key)
}
func (s *ledgerStub) Insert(ctx context.Context, key repository.LedgerKey) (repository.InsertOutcome, error) {
	return s.insertFn(ctx, key)
}
func (s *ledgerStub) Delete(ctx context.Context, key repository.LedgerKey) (bool, error) {
	return s.deleteFn(ctx, key)
}
func (s *ledgerStub) Count(ctx context.Context, subjectID uint, typ models.ReactionType) (int64, error) {
	return s.countFn(ctx, subjectID, typ)
}
func (s *ledgerStub) CountBySubjects(context.Context, []uint, models.ReactionType) (map[uint]int64, error) {
	return map[uint]int64{}, nil
}
func (s *ledgerStub) MemberSubjects(context.Context, uint, []uint, models.ReactionType) (map[uint]struct{}, error) {
	return map[uint]struct{}{}, nil
}
func (s *ledgerStub) ListSubjectsByMember(_ context.Context, _ uint, _ models.ReactionType, page, size int) (models.Slice[uint], error) {
	return models.NewSlice[uint](nil, page, size), nil
}
func (s *ledgerStub) DeleteBySubject(context.Context, uint) (int64, error) {
	return 0, nil
}

func noopLedger() *ledgerStub {
	return &ledgerStub{
		existsFn: func(context.Context, repository.LedgerKey) (bool, error) { return false, nil },
		insertFn: func(context.Context, repository.LedgerKey) (repository.InsertOutcome, error) {
			return repository.Inserted, nil
		},
		deleteFn: func(context.Context, repository.LedgerKey) (bool, error) { return true, nil },
		countFn:  func(context.Context, uint, models.ReactionType) (int64, error) { return 0, nil },
	}
}

func heartKey(subjectID, memberID uint) repository.LedgerKey {
	return repository.LedgerKey{SubjectID: subjectID, MemberID: memberID, Type: models.ReactionHeart}
}

func TestToggleEngine_LostInsertRaceIsSuccess(t *testing.T) {
	t.Parallel()

	ledger := noopLedger()
	// Another request inserted between our existence check and our insert.
	ledger.insertFn = func(context.Context, repository.LedgerKey) (repository.InsertOutcome, error) {
		return repository.AlreadyPresent, nil
	}
	ledger.countFn = func(context.Context, uint, models.ReactionType) (int64, error) { return 1, nil }

	result, err := NewToggleEngine(passthroughTx).Toggle(context.Background(), ledger, heartKey(1, 2))
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: true, Count: 1}, result)
}

// staleReadLedger reports every row as missing, as a reader whose existence
// check ran before a competing transaction committed would see it.
type staleReadLedger struct {
	repository.Ledger
}

func (l staleReadLedger) WithTx(tx *gorm.DB) repository.Ledger {
	return staleReadLedger{l.Ledger.WithTx(tx)}
}

func (l staleReadLedger) Exists(context.Context, repository.LedgerKey) (bool, error) {
	return false, nil
}

func TestToggleEngine_LostInsertRaceAgainstStore(t *testing.T) {
	env := newTestEnv(t)
	post := env.post(t, 1)
	ctx := context.Background()

	// The winner commits first; our insert then hits the unique index.
	_, err := env.engine.Set(ctx, env.reactions, heartKey(post.ID, 7), true)
	require.NoError(t, err)

	result, err := env.engine.Toggle(ctx, staleReadLedger{env.reactions}, heartKey(post.ID, 7))
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: true, Count: 1}, result)

	var rows int64
	require.NoError(t, env.db.Model(&models.PostReaction{}).Where("post_id = ?", post.ID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestToggleEngine_CountComesFromLedger(t *testing.T) {
	t.Parallel()

	ledger := noopLedger()
	ledger.existsFn = func(context.Context, repository.LedgerKey) (bool, error) { return true, nil }
	// Other members' rows are reflected, not a local decrement.
	ledger.countFn = func(context.Context, uint, models.ReactionType) (int64, error) { return 41, nil }

	result, err := NewToggleEngine(passthroughTx).Toggle(context.Background(), ledger, heartKey(1, 2))
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: false, Count: 41}, result)
}

func TestToggleEngine_StorageFailureIsTransient(t *testing.T) {
	t.Parallel()

	ledger := noopLedger()
	boom := errors.New("connection reset by peer")
	ledger.existsFn = func(context.Context, repository.LedgerKey) (bool, error) { return false, boom }

	_, err := NewToggleEngine(passthroughTx).Toggle(context.Background(), ledger, heartKey(1, 2))
	assertCode(t, err, models.CodeTransient)
	assert.ErrorIs(t, err, boom)
}

func TestToggleEngine_RetriesOnceOnDeadlock(t *testing.T) {
	env := newTestEnv(t)
	post := env.post(t, 1)

	ledger := noopLedger()
	calls := 0
	ledger.existsFn = func(context.Context, repository.LedgerKey) (bool, error) {
		calls++
		if calls == 1 {
			return false, &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
		}
		return false, nil
	}
	ledger.countFn = func(context.Context, uint, models.ReactionType) (int64, error) { return 1, nil }

	result, err := NewToggleEngine(NewTxRunner(env.db)).Toggle(context.Background(), ledger, heartKey(post.ID, 2))
	require.NoError(t, err)
	assert.True(t, result.Active)
	assert.Equal(t, 2, calls)
}

func TestToggleEngine_IdempotentToggle(t *testing.T) {
	env := newTestEnv(t)
	post := env.post(t, 1)
	ctx := context.Background()

	// Another member already holds a reaction.
	_, err := env.engine.Toggle(ctx, env.reactions, heartKey(post.ID, 99))
	require.NoError(t, err)

	first, err := env.engine.Toggle(ctx, env.reactions, heartKey(post.ID, 5))
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: true, Count: 2}, first)

	second, err := env.engine.Toggle(ctx, env.reactions, heartKey(post.ID, 5))
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: false, Count: first.Count - 1}, second)
}

func TestToggleEngine_CountAccuracy(t *testing.T) {
	env := newTestEnv(t)
	post := env.post(t, 1)
	ctx := context.Background()

	// Members 1..6 toggle; even members toggle twice and end inactive.
	var last ToggleResult
	for member := uint(1); member <= 6; member++ {
		times := 1
		if member%2 == 0 {
			times = 2
		}
		for i := 0; i < times; i++ {
			var err error
			last, err = env.engine.Toggle(ctx, env.reactions, heartKey(post.ID, member))
			require.NoError(t, err)
		}
	}

	var rows int64
	require.NoError(t, env.db.Model(&models.PostReaction{}).Where("post_id = ?", post.ID).Count(&rows).Error)
	assert.Equal(t, int64(3), rows)
	assert.Equal(t, rows, last.Count)
}

// The sqlite test store runs on one connection, so these goroutines are
// serialized and never race on the unique index. The losing insert itself is
// covered by TestToggleEngine_LostInsertRaceAgainstStore.
func TestToggleEngine_ConcurrentSetLeavesOneRow(t *testing.T) {
	env := newTestEnv(t)
	post := env.post(t, 1)

	const k = 8
	results := make([]ToggleResult, k)
	errs := make([]error, k)

	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.engine.Set(context.Background(), env.reactions, heartKey(post.ID, 7), true)
		}(i)
	}
	wg.Wait()

	for i := 0; i < k; i++ {
		require.NoError(t, errs[i])
		assert.True(t, results[i].Active)
		assert.Equal(t, int64(1), results[i].Count)
	}

	var rows int64
	require.NoError(t, env.db.Model(&models.PostReaction{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestToggleEngine_SetOff(t *testing.T) {
	env := newTestEnv(t)
	post := env.post(t, 1)
	ctx := context.Background()

	off, err := env.engine.Set(ctx, env.bookmarks, repository.LedgerKey{SubjectID: post.ID, MemberID: 3}, false)
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: false, Count: 0}, off)

	_, err = env.engine.Set(ctx, env.bookmarks, repository.LedgerKey{SubjectID: post.ID, MemberID: 3}, true)
	require.NoError(t, err)
	off, err = env.engine.Set(ctx, env.bookmarks, repository.LedgerKey{SubjectID: post.ID, MemberID: 3}, false)
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: false, Count: 0}, off)
}
