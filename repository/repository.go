package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"

	"github.com/Nkambwe/Mfi-Mananger-sub000/cache"
	"github.com/Nkambwe/Mfi-Mananger-sub000/capability"
	"github.com/Nkambwe/Mfi-Mananger-sub000/pagination"
)

var (
	// ErrNilEntity guards write operations against nil records.
	ErrNilEntity = errors.New("repository: entity cannot be nil")

	// ErrNotPersisted is returned when a write needs a persisted record
	// (non-zero id) and got an unsaved one.
	ErrNotPersisted = errors.New("repository: entity has not been persisted")

	// ErrAlreadyDeleted is returned when update or soft remove is attempted
	// against a record whose soft-delete flag is already set. A soft-deleted
	// record is immutable except for a hard delete.
	ErrAlreadyDeleted = errors.New("repository: entity is soft-deleted")
)

// ChangeTracker receives every successful mutation so a unit of work can
// validate and count pending changes before commit.
type ChangeTracker interface {
	TrackAdded(entity Entity)
	TrackModified(entity Entity)
	TrackRemoved(entity Entity)
}

// Repository provides soft-delete-aware CRUD, predicate composition and
// cache-backed reads over one entity type. Reads exclude soft-deleted rows
// unless IncludeDeleted is passed; the extra clause is merged into the same
// query as the caller's predicate so filtering always happens in one round
// trip.
type Repository[T any] struct {
	db       bun.IDB
	cache    cache.Service
	policy   *pagination.Policy
	detector *capability.Detector
	tracker  ChangeTracker
	logger   zerolog.Logger
	table    string
	actor    string
	now      func() time.Time
}

// Option configures a Repository.
type Option[T any] func(*Repository[T])

// WithCache enables the cached read variants and write-path invalidation.
func WithCache[T any](svc cache.Service) Option[T] {
	return func(r *Repository[T]) { r.cache = svc }
}

// WithLogger sets the logger; a silent logger is used otherwise.
func WithLogger[T any](logger zerolog.Logger) Option[T] {
	return func(r *Repository[T]) {
		r.logger = logger.With().Str("component", "repository").Str("table", r.table).Logger()
	}
}

// WithActor sets the audit identity stamped on writes.
func WithActor[T any](actor string) Option[T] {
	return func(r *Repository[T]) { r.actor = actor }
}

// WithTracker registers a change tracker, normally the owning unit of work.
func WithTracker[T any](tracker ChangeTracker) Option[T] {
	return func(r *Repository[T]) { r.tracker = tracker }
}

// WithPagination wires the pagination policy and capability detector used by
// paged reads to choose between exact and approximate counting.
func WithPagination[T any](policy *pagination.Policy, detector *capability.Detector) Option[T] {
	return func(r *Repository[T]) {
		r.policy = policy
		r.detector = detector
	}
}

// New creates a repository for T over the given connection or transaction.
// *T must implement Entity; like the table name this is checked once here so
// every later operation can rely on it.
func New[T any](db bun.IDB, opts ...Option[T]) *Repository[T] {
	ent, ok := any(new(T)).(Entity)
	if !ok {
		panic(fmt.Sprintf("repository: *%T does not implement repository.Entity", *new(T)))
	}
	table := ent.TableName()
	if table == "" {
		panic(fmt.Sprintf("repository: %T returned an empty table name", ent))
	}

	r := &Repository[T]{
		db:     db,
		table:  table,
		actor:  "system",
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Table returns the entity's table name.
func (r *Repository[T]) Table() string { return r.table }

// queryOpts carries per-call read options.
type queryOpts struct {
	includeDeleted bool
}

// QueryOption adjusts a single read operation.
type QueryOption func(*queryOpts)

// IncludeDeleted makes a read return soft-deleted rows as well.
func IncludeDeleted() QueryOption {
	return func(o *queryOpts) { o.includeDeleted = true }
}

func readOpts(opts []QueryOption) queryOpts {
	var o queryOpts
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (r *Repository[T]) entity(e *T) Entity {
	return any(e).(Entity)
}

// selectQuery builds the base select: caller predicate plus, unless deleted
// rows were requested, the soft-delete clause, all in one statement.
func (r *Repository[T]) selectQuery(model any, pred *Predicate, o queryOpts) *bun.SelectQuery {
	q := r.db.NewSelect().Model(model)
	if !pred.IsEmpty() {
		q = pred.Apply(q)
	}
	if !o.includeDeleted {
		q = q.Where("? = ?", bun.Ident("is_deleted"), false)
	}
	return q
}

// Get fetches one record by id. Returns (nil, nil) when no live row matches.
func (r *Repository[T]) Get(ctx context.Context, id int64, opts ...QueryOption) (*T, error) {
	ent := new(T)
	q := r.selectQuery(ent, nil, readOpts(opts)).
		Where("? = ?", bun.Ident("id"), id).
		Limit(1)

	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("op", "get").Int64("id", id).Msg("read failed")
		return nil, err
	}
	return ent, nil
}

// Find fetches the first record matching the predicate.
// Returns (nil, nil) when nothing matches.
func (r *Repository[T]) Find(ctx context.Context, pred *Predicate, opts ...QueryOption) (*T, error) {
	ent := new(T)
	q := r.selectQuery(ent, pred, readOpts(opts)).Limit(1)

	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Str("op", "find").Msg("read failed")
		return nil, err
	}
	return ent, nil
}

// All fetches every record matching the predicate; a nil predicate matches
// everything that is not soft-deleted.
func (r *Repository[T]) All(ctx context.Context, pred *Predicate, opts ...QueryOption) ([]T, error) {
	var items []T
	q := r.selectQuery(&items, pred, readOpts(opts))

	if err := q.Scan(ctx); err != nil {
		r.logger.Error().Err(err).Str("op", "all").Msg("read failed")
		return nil, err
	}
	return items, nil
}

// Top fetches the first n records matching the predicate, ordered by id for
// a stable result.
func (r *Repository[T]) Top(ctx context.Context, pred *Predicate, n int, opts ...QueryOption) ([]T, error) {
	if n <= 0 {
		return nil, nil
	}

	var items []T
	q := r.selectQuery(&items, pred, readOpts(opts)).
		OrderExpr("? ASC", bun.Ident("id")).
		Limit(n)

	if err := q.Scan(ctx); err != nil {
		r.logger.Error().Err(err).Str("op", "top").Msg("read failed")
		return nil, err
	}
	return items, nil
}

// Exists reports whether any record matches the predicate.
func (r *Repository[T]) Exists(ctx context.Context, pred *Predicate, opts ...QueryOption) (bool, error) {
	q := r.selectQuery((*T)(nil), pred, readOpts(opts))

	ok, err := q.Exists(ctx)
	if err != nil {
		r.logger.Error().Err(err).Str("op", "exists").Msg("read failed")
		return false, err
	}
	return ok, nil
}

// ExistsBatch runs the named predicates as independent concurrent existence
// queries and coalesces the answers into a name->bool map. Individual query
// failures are logged and reported as false; only context cancellation
// fails the batch.
func (r *Repository[T]) ExistsBatch(ctx context.Context, named map[string]*Predicate, opts ...QueryOption) (map[string]bool, error) {
	results := make(map[string]bool, len(named))
	if len(named) == 0 {
		return results, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for name, pred := range named {
		g.Go(func() error {
			ok, err := r.Exists(gctx, pred, opts...)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				ok = false
			}
			mu.Lock()
			results[name] = ok
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Count returns the number of live records, 0 on failure. Counts are a
// best-effort diagnostic signal, not a consistency-critical read.
func (r *Repository[T]) Count(ctx context.Context) int {
	return r.CountWhere(ctx, nil)
}

// CountWhere returns the number of live records matching the predicate,
// 0 on failure.
func (r *Repository[T]) CountWhere(ctx context.Context, pred *Predicate) int {
	n, err := r.selectQuery((*T)(nil), pred, queryOpts{}).Count(ctx)
	if err != nil {
		r.logger.Error().Err(err).Str("op", "count").Msg("count failed, reporting zero")
		return 0
	}
	return n
}

// LongCount returns the live record count as int64, 0 on failure.
func (r *Repository[T]) LongCount(ctx context.Context) int64 {
	return int64(r.Count(ctx))
}

// Add inserts a new record, stamping the creation audit fields.
func (r *Repository[T]) Add(ctx context.Context, entity *T) error {
	if entity == nil {
		return ErrNilEntity
	}

	ent := r.entity(entity)
	ent.StampCreated(r.actor, r.now())

	if _, err := r.db.NewInsert().Model(entity).Exec(ctx); err != nil {
		r.logger.Error().Err(err).Str("op", "add").Msg("insert failed")
		return fmt.Errorf("repository: insert into %s: %w", r.table, err)
	}

	if r.tracker != nil {
		r.tracker.TrackAdded(ent)
	}
	r.invalidate(ctx, ent.GetID())
	return nil
}

// AddRange inserts the given records in one statement.
func (r *Repository[T]) AddRange(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}
	now := r.now()
	for _, e := range entities {
		if e == nil {
			return ErrNilEntity
		}
		r.entity(e).StampCreated(r.actor, now)
	}

	if _, err := r.db.NewInsert().Model(&entities).Exec(ctx); err != nil {
		r.logger.Error().Err(err).Str("op", "add_range").Int("count", len(entities)).Msg("insert failed")
		return fmt.Errorf("repository: insert batch into %s: %w", r.table, err)
	}

	ids := make([]int64, 0, len(entities))
	for _, e := range entities {
		ent := r.entity(e)
		if r.tracker != nil {
			r.tracker.TrackAdded(ent)
		}
		ids = append(ids, ent.GetID())
	}
	r.invalidate(ctx, ids...)
	return nil
}

// Update persists changes to an existing record, stamping the modification
// audit fields. A soft-deleted record is immutable: updating one returns
// ErrAlreadyDeleted without touching the database.
func (r *Repository[T]) Update(ctx context.Context, entity *T) error {
	if entity == nil {
		return ErrNilEntity
	}
	ent := r.entity(entity)
	if ent.GetID() == 0 {
		return ErrNotPersisted
	}
	if ent.Deleted() {
		return ErrAlreadyDeleted
	}

	ent.StampModified(r.actor, r.now())

	if _, err := r.db.NewUpdate().Model(entity).WherePK().Exec(ctx); err != nil {
		r.logger.Error().Err(err).Str("op", "update").Int64("id", ent.GetID()).Msg("update failed")
		return fmt.Errorf("repository: update %s: %w", r.table, err)
	}

	if r.tracker != nil {
		r.tracker.TrackModified(ent)
	}
	r.invalidate(ctx, ent.GetID())
	return nil
}

// Remove deletes a record. With markAsDeleted the first call flips the
// soft-delete flag and keeps the row; invoked again on the already-flagged
// record it removes the row outright. Without markAsDeleted the row is
// removed immediately.
func (r *Repository[T]) Remove(ctx context.Context, entity *T, markAsDeleted bool) error {
	if entity == nil {
		return ErrNilEntity
	}
	ent := r.entity(entity)
	if ent.GetID() == 0 {
		return ErrNotPersisted
	}

	if markAsDeleted && !ent.Deleted() {
		ent.SetDeleted(true)
		ent.StampModified(r.actor, r.now())
		if _, err := r.db.NewUpdate().Model(entity).WherePK().Exec(ctx); err != nil {
			ent.SetDeleted(false)
			r.logger.Error().Err(err).Str("op", "remove").Int64("id", ent.GetID()).Msg("soft delete failed")
			return fmt.Errorf("repository: soft delete from %s: %w", r.table, err)
		}
	} else {
		if _, err := r.db.NewDelete().Model(entity).WherePK().Exec(ctx); err != nil {
			r.logger.Error().Err(err).Str("op", "remove").Int64("id", ent.GetID()).Msg("hard delete failed")
			return fmt.Errorf("repository: delete from %s: %w", r.table, err)
		}
	}

	if r.tracker != nil {
		r.tracker.TrackRemoved(ent)
	}
	r.invalidate(ctx, ent.GetID())
	return nil
}

// RemoveRange deletes the given records, partitioning them by current flag
// state first: not-yet-deleted records form the soft-delete batch, already
// flagged records the hard-delete batch.
func (r *Repository[T]) RemoveRange(ctx context.Context, entities []*T, markAsDeleted bool) error {
	if len(entities) == 0 {
		return nil
	}

	var soft, hard []*T
	for _, e := range entities {
		if e == nil {
			return ErrNilEntity
		}
		ent := r.entity(e)
		if ent.GetID() == 0 {
			return ErrNotPersisted
		}
		if markAsDeleted && !ent.Deleted() {
			soft = append(soft, e)
		} else {
			hard = append(hard, e)
		}
	}

	now := r.now()
	for _, e := range soft {
		ent := r.entity(e)
		ent.SetDeleted(true)
		ent.StampModified(r.actor, now)
		if _, err := r.db.NewUpdate().Model(e).WherePK().Exec(ctx); err != nil {
			ent.SetDeleted(false)
			r.logger.Error().Err(err).Str("op", "remove_range").Int64("id", ent.GetID()).Msg("soft delete failed")
			return fmt.Errorf("repository: soft delete from %s: %w", r.table, err)
		}
	}

	if len(hard) > 0 {
		ids := make([]int64, len(hard))
		for i, e := range hard {
			ids[i] = r.entity(e).GetID()
		}
		if _, err := r.db.NewDelete().Model((*T)(nil)).
			Where("? IN (?)", bun.Ident("id"), bun.In(ids)).
			Exec(ctx); err != nil {
			r.logger.Error().Err(err).Str("op", "remove_range").Ints64("ids", ids).Msg("hard delete failed")
			return fmt.Errorf("repository: delete batch from %s: %w", r.table, err)
		}
	}

	ids := make([]int64, 0, len(entities))
	for _, e := range entities {
		ent := r.entity(e)
		if r.tracker != nil {
			r.tracker.TrackRemoved(ent)
		}
		ids = append(ids, ent.GetID())
	}
	r.invalidate(ctx, ids...)
	return nil
}

// invalidate sweeps every cached entry for this entity type and the
// id-addressed entries of the mutated records. Invalidation is best-effort:
// failures are logged, never propagated into the write path.
func (r *Repository[T]) invalidate(ctx context.Context, ids ...int64) {
	if r.cache == nil {
		return
	}
	if err := r.cache.RemoveByPrefix(ctx, cache.EntityPrefix(r.table)); err != nil {
		r.logger.Warn().Err(err).Msg("cache prefix invalidation failed")
	}
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if err := r.cache.Remove(ctx, cache.IDKey(r.table, id)); err != nil {
			r.logger.Warn().Err(err).Int64("id", id).Msg("cache invalidation failed")
		}
	}
}
