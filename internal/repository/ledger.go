// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"

	"rebound/internal/database"
	"rebound/internal/models"
	"rebound/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InsertOutcome reports what a conditional ledger insert did.
type InsertOutcome int

const (
	// Inserted means this call created the row.
	Inserted InsertOutcome = iota
	// AlreadyPresent means an equal row existed, usually because a concurrent
	// request won the race.
	AlreadyPresent
)

// LedgerKey identifies one ledger row. Type is ignored by ledgers without a
// reaction type column (bookmarks).
type LedgerKey struct {
	SubjectID uint
	MemberID  uint
	Type      models.ReactionType
}

// Ledger stores membership rows of the form (subject, member[, type]) under a
// unique constraint. Rows are inserted on toggle-on and hard-deleted on
// toggle-off; counts are always derived from the rows.
type Ledger interface {
	// Kind labels the ledger in metrics and logs.
	Kind() string
	WithTx(tx *gorm.DB) Ledger
	Exists(ctx context.Context, key LedgerKey) (bool, error)
	Insert(ctx context.Context, key LedgerKey) (InsertOutcome, error)
	Delete(ctx context.Context, key LedgerKey) (bool, error)
	Count(ctx context.Context, subjectID uint, typ models.ReactionType) (int64, error)
	CountBySubjects(ctx context.Context, subjectIDs []uint, typ models.ReactionType) (map[uint]int64, error)
	MemberSubjects(ctx context.Context, memberID uint, subjectIDs []uint, typ models.ReactionType) (map[uint]struct{}, error)
	ListSubjectsByMember(ctx context.Context, memberID uint, typ models.ReactionType, page, size int) (models.Slice[uint], error)
	DeleteBySubject(ctx context.Context, subjectID uint) (int64, error)
}

// ledgerTable describes the table behind a ledger.
type ledgerTable struct {
	kind          string
	table         string
	subjectColumn string
	typed         bool
	newRow        func(key LedgerKey) interface{}
}

type ledger struct {
	db      *gorm.DB
	def     ledgerTable
	log     *observability.RepoLogger
	metrics *observability.DatabaseMetrics
}

func newLedger(db *gorm.DB, def ledgerTable) Ledger {
	return &ledger{
		db:      db,
		def:     def,
		log:     observability.NewRepoLogger(def.table),
		metrics: observability.NewDatabaseMetrics(def.table),
	}
}

// NewPostReactionLedger returns the ledger of reactions on posts.
func NewPostReactionLedger(db *gorm.DB) Ledger {
	return newLedger(db, ledgerTable{
		kind:          "post_reaction",
		table:         "post_reactions",
		subjectColumn: "post_id",
		typed:         true,
		newRow: func(key LedgerKey) interface{} {
			return &models.PostReaction{PostID: key.SubjectID, MemberID: key.MemberID, Type: key.Type}
		},
	})
}

// NewCommentReactionLedger returns the ledger of reactions on comments.
func NewCommentReactionLedger(db *gorm.DB) Ledger {
	return newLedger(db, ledgerTable{
		kind:          "comment_reaction",
		table:         "comment_reactions",
		subjectColumn: "comment_id",
		typed:         true,
		newRow: func(key LedgerKey) interface{} {
			return &models.CommentReaction{CommentID: key.SubjectID, MemberID: key.MemberID, Type: key.Type}
		},
	})
}

// NewBookmarkLedger returns the ledger of post bookmarks. It has no type column.
func NewBookmarkLedger(db *gorm.DB) Ledger {
	return newLedger(db, ledgerTable{
		kind:          "bookmark",
		table:         "post_bookmarks",
		subjectColumn: "post_id",
		newRow: func(key LedgerKey) interface{} {
			return &models.PostBookmark{PostID: key.SubjectID, MemberID: key.MemberID}
		},
	})
}

func (l *ledger) Kind() string {
	return l.def.kind
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	cp := *l
	cp.db = tx
	return &cp
}

func (l *ledger) model() interface{} {
	return l.def.newRow(LedgerKey{})
}

func (l *ledger) scope(ctx context.Context) *gorm.DB {
	return l.db.WithContext(ctx).Model(l.model())
}

// whereKey restricts q to the row identified by key.
func (l *ledger) whereKey(q *gorm.DB, key LedgerKey) *gorm.DB {
	q = q.Where(l.def.subjectColumn+" = ? AND member_id = ?", key.SubjectID, key.MemberID)
	if l.def.typed {
		q = q.Where("type = ?", key.Type)
	}
	return q
}

func (l *ledger) whereType(q *gorm.DB, typ models.ReactionType) *gorm.DB {
	if l.def.typed {
		q = q.Where("type = ?", typ)
	}
	return q
}

func (l *ledger) Exists(ctx context.Context, key LedgerKey) (bool, error) {
	defer l.metrics.TrackQuery("exists")()

	var n int64
	if err := l.whereKey(l.scope(ctx), key).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Insert adds the row unless an equal one exists. A lost race is reported as
// AlreadyPresent, never as an error.
func (l *ledger) Insert(ctx context.Context, key LedgerKey) (InsertOutcome, error) {
	defer l.metrics.TrackQuery("insert")()

	res := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(l.def.newRow(key))
	if res.Error != nil {
		if database.IsUniqueViolation(res.Error) {
			return AlreadyPresent, nil
		}
		return Inserted, res.Error
	}
	if res.RowsAffected == 0 {
		return AlreadyPresent, nil
	}

	l.log.LogCreate(ctx, map[string]any{
		"subject_id": key.SubjectID,
		"member_id":  key.MemberID,
	})
	return Inserted, nil
}

func (l *ledger) Delete(ctx context.Context, key LedgerKey) (bool, error) {
	defer l.metrics.TrackQuery("delete")()

	res := l.whereKey(l.scope(ctx), key).Delete(l.model())
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		l.log.LogDelete(ctx, map[string]any{
			"subject_id": key.SubjectID,
			"member_id":  key.MemberID,
		})
	}
	return res.RowsAffected > 0, nil
}

func (l *ledger) Count(ctx context.Context, subjectID uint, typ models.ReactionType) (int64, error) {
	defer l.metrics.TrackQuery("count")()

	var n int64
	q := l.scope(ctx).Where(l.def.subjectColumn+" = ?", subjectID)
	if err := l.whereType(q, typ).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// CountBySubjects counts rows for every subject in one GROUP BY query.
// Subjects without rows are absent from the map.
func (l *ledger) CountBySubjects(ctx context.Context, subjectIDs []uint, typ models.ReactionType) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(subjectIDs))
	if len(subjectIDs) == 0 {
		return counts, nil
	}
	defer l.metrics.TrackQuery("count_by_subjects")()

	var rows []struct {
		SubjectID uint
		Total     int64
	}
	q := l.scope(ctx).
		Select(l.def.subjectColumn+" AS subject_id, COUNT(*) AS total").
		Where(l.def.subjectColumn+" IN ?", subjectIDs)
	if err := l.whereType(q, typ).Group(l.def.subjectColumn).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.SubjectID] = row.Total
	}
	return counts, nil
}

// MemberSubjects returns which of subjectIDs the member holds a row for, in one query.
func (l *ledger) MemberSubjects(ctx context.Context, memberID uint, subjectIDs []uint, typ models.ReactionType) (map[uint]struct{}, error) {
	set := make(map[uint]struct{})
	if len(subjectIDs) == 0 {
		return set, nil
	}
	defer l.metrics.TrackQuery("member_subjects")()

	var ids []uint
	q := l.scope(ctx).
		Where("member_id = ? AND "+l.def.subjectColumn+" IN ?", memberID, subjectIDs)
	if err := l.whereType(q, typ).Pluck(l.def.subjectColumn, &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// ListSubjectsByMember pages through the member's subjects, newest first.
func (l *ledger) ListSubjectsByMember(ctx context.Context, memberID uint, typ models.ReactionType, page, size int) (models.Slice[uint], error) {
	defer l.metrics.TrackQuery("list_by_member")()

	var ids []uint
	q := l.scope(ctx).Where("member_id = ?", memberID)
	err := l.whereType(q, typ).
		Order("created_at DESC").
		Order("id DESC").
		Limit(size+1).
		Offset(page*size).
		Pluck(l.def.subjectColumn, &ids).Error
	if err != nil {
		return models.Slice[uint]{}, err
	}
	return models.NewSlice(ids, page, size), nil
}

// DeleteBySubject removes every row for the subject regardless of member or type.
func (l *ledger) DeleteBySubject(ctx context.Context, subjectID uint) (int64, error) {
	defer l.metrics.TrackQuery("delete_by_subject")()

	res := l.scope(ctx).Where(l.def.subjectColumn+" = ?", subjectID).Delete(l.model())
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		l.log.LogDelete(ctx, map[string]any{
			"subject_id": subjectID,
			"rows":       res.RowsAffected,
		})
	}
	return res.RowsAffected, nil
}
