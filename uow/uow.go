// Package uow coordinates repositories inside one database transaction.
// A UnitOfWork owns the transaction, hands out type-scoped repositories
// bound to it, tracks every mutation they perform, and refuses to commit
// while any tracked entity fails validation.
package uow

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/Nkambwe/Mfi-Mananger-sub000/cache"
	"github.com/Nkambwe/Mfi-Mananger-sub000/capability"
	"github.com/Nkambwe/Mfi-Mananger-sub000/pagination"
	"github.com/Nkambwe/Mfi-Mananger-sub000/repository"
)

// ErrCompleted is returned when a unit of work is used after it committed
// or was disposed.
var ErrCompleted = errors.New("uow: unit of work already completed")

// ValidationError aggregates every validation failure found before a
// commit. The commit is refused as a whole; no partial writes survive.
type ValidationError struct {
	Failures []EntityFailure
}

// EntityFailure ties one invalid entity to its validation error.
type EntityFailure struct {
	Table string
	ID    int64
	Err   error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "uow: %d entities failed validation", len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "; %s[%d]: %v", f.Table, f.ID, f.Err)
	}
	return b.String()
}

// UnitOfWork scopes repositories to a single transaction. It is safe for
// concurrent use by the repositories it created, but SaveChanges and
// Dispose are expected to be called by the owning goroutine.
type UnitOfWork struct {
	id       uuid.UUID
	tx       bun.Tx
	cache    cache.Service
	policy   *pagination.Policy
	detector *capability.Detector
	logger   zerolog.Logger
	actor    string

	mu        sync.Mutex
	repos     map[reflect.Type]any
	added     []repository.Entity
	modified  []repository.Entity
	removed   []repository.Entity
	completed bool
	disposed  bool
}

// Option configures a UnitOfWork.
type Option func(*UnitOfWork)

// WithCache propagates the cache service to every repository the unit of
// work creates, so committed writes invalidate cached reads.
func WithCache(svc cache.Service) Option {
	return func(u *UnitOfWork) { u.cache = svc }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(u *UnitOfWork) { u.logger = logger }
}

// WithActor sets the audit identity stamped on writes.
func WithActor(actor string) Option {
	return func(u *UnitOfWork) { u.actor = actor }
}

// WithPagination propagates the pagination policy and capability detector
// to created repositories.
func WithPagination(policy *pagination.Policy, detector *capability.Detector) Option {
	return func(u *UnitOfWork) {
		u.policy = policy
		u.detector = detector
	}
}

// New begins a transaction and returns the unit of work wrapping it.
// Callers must finish with SaveChanges or Dispose; deferring Dispose is
// the usual pattern since it is a no-op after a successful commit.
func New(ctx context.Context, db *bun.DB, opts ...Option) (*UnitOfWork, error) {
	u := &UnitOfWork{
		id:     uuid.New(),
		actor:  "system",
		logger: zerolog.Nop(),
		repos:  make(map[reflect.Type]any),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.logger = u.logger.With().Str("component", "uow").Str("uow_id", u.id.String()).Logger()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		u.logger.Error().Err(err).Msg("begin transaction failed")
		return nil, fmt.Errorf("uow: begin transaction: %w", err)
	}
	u.tx = tx
	return u, nil
}

// ID returns the correlation id stamped on this unit of work's log lines.
func (u *UnitOfWork) ID() uuid.UUID { return u.id }

// RepositoryFor returns the unit of work's repository for T, creating it
// on first use. Repeated calls for the same T return the same instance,
// and all of them write through this unit of work's transaction.
func RepositoryFor[T any](u *UnitOfWork) *repository.Repository[T] {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.repos == nil {
		u.repos = make(map[reflect.Type]any)
	}
	key := reflect.TypeOf((*T)(nil))
	if repo, ok := u.repos[key]; ok {
		return repo.(*repository.Repository[T])
	}

	opts := []repository.Option[T]{
		repository.WithTracker[T](u),
		repository.WithActor[T](u.actor),
		repository.WithLogger[T](u.logger),
	}
	if u.cache != nil {
		opts = append(opts, repository.WithCache[T](u.cache))
	}
	if u.policy != nil {
		opts = append(opts, repository.WithPagination[T](u.policy, u.detector))
	}

	repo := repository.New[T](u.tx, opts...)
	u.repos[key] = repo
	return repo
}

// TrackAdded records an insert performed under this unit of work.
func (u *UnitOfWork) TrackAdded(entity repository.Entity) {
	u.mu.Lock()
	u.added = append(u.added, entity)
	u.mu.Unlock()
}

// TrackModified records an update performed under this unit of work.
func (u *UnitOfWork) TrackModified(entity repository.Entity) {
	u.mu.Lock()
	u.modified = append(u.modified, entity)
	u.mu.Unlock()
}

// TrackRemoved records a delete performed under this unit of work.
func (u *UnitOfWork) TrackRemoved(entity repository.Entity) {
	u.mu.Lock()
	u.removed = append(u.removed, entity)
	u.mu.Unlock()
}

// PendingChanges reports how many tracked mutations a commit would cover.
func (u *UnitOfWork) PendingChanges() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.added) + len(u.modified) + len(u.removed)
}

// SaveChanges validates every tracked entity and commits the transaction,
// returning the number of tracked mutations. Validation failures are
// collected across all entities and returned together as a
// *ValidationError; the transaction stays open so the caller can decide
// to dispose. Removed entities are not validated, they are on their way
// out.
func (u *UnitOfWork) SaveChanges(ctx context.Context) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.completed || u.disposed {
		return 0, ErrCompleted
	}

	var failures []EntityFailure
	for _, ent := range append(append([]repository.Entity{}, u.added...), u.modified...) {
		v, ok := ent.(validation.Validatable)
		if !ok {
			continue
		}
		if err := v.Validate(); err != nil {
			failures = append(failures, EntityFailure{
				Table: ent.TableName(),
				ID:    ent.GetID(),
				Err:   err,
			})
			u.logger.Warn().Err(err).
				Str("table", ent.TableName()).
				Int64("id", ent.GetID()).
				Msg("entity failed validation")
		}
	}
	if len(failures) > 0 {
		u.logger.Error().Int("failures", len(failures)).Msg("commit refused")
		return 0, &ValidationError{Failures: failures}
	}

	if err := u.tx.Commit(); err != nil {
		u.logFailure(err)
		u.disposed = true
		return 0, fmt.Errorf("uow: commit: %w", err)
	}

	changes := len(u.added) + len(u.modified) + len(u.removed)
	u.completed = true
	u.added, u.modified, u.removed = nil, nil, nil
	u.repos = nil
	u.logger.Info().Int("rows", changes).Msg("committed")
	return changes, nil
}

// Dispose rolls back the transaction if it is still open. Safe to call
// more than once and after a successful commit.
func (u *UnitOfWork) Dispose() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.completed || u.disposed {
		return
	}
	u.disposed = true
	u.repos = nil
	if err := u.tx.Rollback(); err != nil {
		u.logger.Warn().Err(err).Msg("rollback failed")
		return
	}
	u.logger.Debug().Msg("rolled back")
}

// logFailure walks a commit error's wrap chain, logging each layer, so
// driver errors buried under wrapping still reach the log with full
// detail.
func (u *UnitOfWork) logFailure(err error) {
	depth := 0
	for e := err; e != nil; e = errors.Unwrap(e) {
		u.logger.Error().Err(e).Int("depth", depth).Msg("commit failed")
		depth++
	}
}

var _ repository.ChangeTracker = (*UnitOfWork)(nil)
