package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nkambwe/Mfi-Mananger-sub000/cache"
	"github.com/Nkambwe/Mfi-Mananger-sub000/models"
	"github.com/Nkambwe/Mfi-Mananger-sub000/pkg/testsupport"
	"github.com/Nkambwe/Mfi-Mananger-sub000/repository"
)

func newMemberRepo(t *testing.T, opts ...repository.Option[models.Member]) *repository.Repository[models.Member] {
	t.Helper()
	db := testsupport.NewTestDB(t)
	return repository.New[models.Member](db, opts...)
}

func seedMembers(t *testing.T, repo *repository.Repository[models.Member], n int) []*models.Member {
	t.Helper()
	ctx := context.Background()
	out := make([]*models.Member, 0, n)
	for i := 0; i < n; i++ {
		m := testsupport.NewMember(1, memberNo(i))
		require.NoError(t, repo.Add(ctx, m))
		out = append(out, m)
	}
	return out
}

func memberNo(i int) string {
	return "M-" + string(rune('A'+i)) + "00"
}

func TestAddAndGet(t *testing.T) {
	repo := newMemberRepo(t, repository.WithActor[models.Member]("teller-1"))
	ctx := context.Background()

	m := testsupport.NewMember(1, "M-1001")
	require.NoError(t, repo.Add(ctx, m))
	require.NotZero(t, m.ID, "insert should assign the id")
	assert.Equal(t, "teller-1", m.CreatedBy)
	assert.False(t, m.CreatedOn.IsZero())

	got, err := repo.Get(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "M-1001", got.MemberNo)
}

func TestGetMissingReturnsNil(t *testing.T) {
	repo := newMemberRepo(t)

	got, err := repo.Get(context.Background(), 12345)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAddNilEntity(t *testing.T) {
	repo := newMemberRepo(t)
	assert.ErrorIs(t, repo.Add(context.Background(), nil), repository.ErrNilEntity)
}

func TestSoftDeleteHidesFromReads(t *testing.T) {
	repo := newMemberRepo(t)
	ctx := context.Background()

	m := testsupport.NewMember(1, "M-2001")
	require.NoError(t, repo.Add(ctx, m))
	require.NoError(t, repo.Remove(ctx, m, true))

	got, err := repo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "soft-deleted rows are invisible by default")

	got, err = repo.Get(ctx, m.ID, repository.IncludeDeleted())
	require.NoError(t, err)
	require.NotNil(t, got, "IncludeDeleted surfaces the row")
	assert.True(t, got.IsDeleted)
}

func TestSecondSoftRemoveHardDeletes(t *testing.T) {
	repo := newMemberRepo(t)
	ctx := context.Background()

	m := testsupport.NewMember(1, "M-2002")
	require.NoError(t, repo.Add(ctx, m))

	require.NoError(t, repo.Remove(ctx, m, true))
	require.True(t, m.IsDeleted)

	// The record already carries the flag, so removing it again takes the
	// row out entirely.
	require.NoError(t, repo.Remove(ctx, m, true))

	got, err := repo.Get(ctx, m.ID, repository.IncludeDeleted())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHardRemove(t *testing.T) {
	repo := newMemberRepo(t)
	ctx := context.Background()

	m := testsupport.NewMember(1, "M-2003")
	require.NoError(t, repo.Add(ctx, m))
	require.NoError(t, repo.Remove(ctx, m, false))

	got, err := repo.Get(ctx, m.ID, repository.IncludeDeleted())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdate(t *testing.T) {
	repo := newMemberRepo(t, repository.WithActor[models.Member]("supervisor"))
	ctx := context.Background()

	m := testsupport.NewMember(1, "M-3001")
	require.NoError(t, repo.Add(ctx, m))

	m.Phone = "+256701112233"
	require.NoError(t, repo.Update(ctx, m))
	assert.Equal(t, "supervisor", m.ModifiedBy)
	assert.False(t, m.ModifiedOn.IsZero())

	got, err := repo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "+256701112233", got.Phone)
}

func TestUpdateSoftDeletedIsRefused(t *testing.T) {
	repo := newMemberRepo(t)
	ctx := context.Background()

	m := testsupport.NewMember(1, "M-3002")
	require.NoError(t, repo.Add(ctx, m))
	require.NoError(t, repo.Remove(ctx, m, true))

	m.Phone = "+256700000009"
	assert.ErrorIs(t, repo.Update(ctx, m), repository.ErrAlreadyDeleted)
}

func TestUpdateUnsavedIsRefused(t *testing.T) {
	repo := newMemberRepo(t)
	m := testsupport.NewMember(1, "M-3003")
	assert.ErrorIs(t, repo.Update(context.Background(), m), repository.ErrNotPersisted)
}

func TestPredicateAndSoftDeleteShareOneQuery(t *testing.T) {
	repo := newMemberRepo(t)
	ctx := context.Background()

	active := testsupport.NewMember(1, "M-4001")
	inactive := testsupport.NewMember(1, "M-4002")
	inactive.IsActive = false
	deleted := testsupport.NewMember(1, "M-4003")

	require.NoError(t, repo.Add(ctx, active))
	require.NoError(t, repo.Add(ctx, inactive))
	require.NoError(t, repo.Add(ctx, deleted))
	require.NoError(t, repo.Remove(ctx, deleted, true))

	pred := repository.Where("is_active", repository.Eq, true)

	items, err := repo.All(ctx, pred)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "M-4001", items[0].MemberNo)

	// With IncludeDeleted the predicate still applies but the flag filter
	// is gone.
	items, err = repo.All(ctx, pred, repository.IncludeDeleted())
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestFindAndTop(t *testing.T) {
	repo := newMemberRepo(t)
	ctx := context.Background()
	seedMembers(t, repo, 5)

	found, err := repo.Find(ctx, repository.Where("member_no", repository.Eq, memberNo(2)))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, memberNo(2), found.MemberNo)

	missing, err := repo.Find(ctx, repository.Where("member_no", repository.Eq, "nope"))
	require.NoError(t, err)
	assert.Nil(t, missing)

	top, err := repo.Top(ctx, nil, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, memberNo(0), top[0].MemberNo)
}

func TestNestedPredicateGroups(t *testing.T) {
	repo := newMemberRepo(t)
	ctx := context.Background()

	a := testsupport.NewMember(1, "M-5001")
	b := testsupport.NewMember(2, "M-5002")
	c := testsupport.NewMember(2, "M-5003")
	c.IsActive = false
	for _, m := range []*models.Member{a, b, c} {
		require.NoError(t, repo.Add(ctx, m))
	}

	// branch 1, or (branch 2 and active)
	pred := repository.AnyOf().
		Group(repository.Where("branch_id", repository.Eq, int64(1))).
		Group(repository.AllOf().
			And("branch_id", repository.Eq, int64(2)).
			And("is_active", repository.Eq, true))

	items, err := repo.All(ctx, pred)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestExistsAndExistsBatch(t *testing.T) {
	repo := newMemberRepo(t)
	ctx := context.Background()
	seedMembers(t, repo, 3)

	ok, err := repo.Exists(ctx, repository.Where("member_no", repository.Eq, memberNo(1)))
	require.NoError(t, err)
	assert.True(t, ok)

	results, err := repo.ExistsBatch(ctx, map[string]*repository.Predicate{
		"first":   repository.Where("member_no", repository.Eq, memberNo(0)),
		"missing": repository.Where("member_no", repository.Eq, "M-Z99"),
		"any":     nil,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"first": true, "missing": false, "any": true}, results)
}

func TestCounts(t *testing.T) {
	repo := newMemberRepo(t)
	ctx := context.Background()
	members := seedMembers(t, repo, 4)
	require.NoError(t, repo.Remove(ctx, members[0], true))

	assert.Equal(t, 3, repo.Count(ctx), "soft-deleted rows are not counted")
	assert.Equal(t, int64(3), repo.LongCount(ctx))

	n := repo.CountWhere(ctx, repository.Where("member_no", repository.Eq, memberNo(1)))
	assert.Equal(t, 1, n)
}

func TestAddRangeAndRemoveRange(t *testing.T) {
	repo := newMemberRepo(t)
	ctx := context.Background()

	batch := []*models.Member{
		testsupport.NewMember(1, "M-6001"),
		testsupport.NewMember(1, "M-6002"),
		testsupport.NewMember(1, "M-6003"),
	}
	require.NoError(t, repo.AddRange(ctx, batch))
	for _, m := range batch {
		assert.NotZero(t, m.ID)
	}

	// Flag one up front so the range remove partitions: the flagged row is
	// hard-deleted, the others are soft-deleted.
	require.NoError(t, repo.Remove(ctx, batch[0], true))
	require.NoError(t, repo.RemoveRange(ctx, batch, true))

	gone, err := repo.Get(ctx, batch[0].ID, repository.IncludeDeleted())
	require.NoError(t, err)
	assert.Nil(t, gone)

	flagged, err := repo.Get(ctx, batch[1].ID, repository.IncludeDeleted())
	require.NoError(t, err)
	require.NotNil(t, flagged)
	assert.True(t, flagged.IsDeleted)
}

type recordingTracker struct {
	added, modified, removed int
}

func (r *recordingTracker) TrackAdded(repository.Entity)    { r.added++ }
func (r *recordingTracker) TrackModified(repository.Entity) { r.modified++ }
func (r *recordingTracker) TrackRemoved(repository.Entity)  { r.removed++ }

func TestTrackerSeesEveryMutation(t *testing.T) {
	tracker := &recordingTracker{}
	repo := newMemberRepo(t, repository.WithTracker[models.Member](tracker))
	ctx := context.Background()

	m := testsupport.NewMember(1, "M-7001")
	require.NoError(t, repo.Add(ctx, m))
	require.NoError(t, repo.Update(ctx, m))
	require.NoError(t, repo.Remove(ctx, m, true))

	assert.Equal(t, 1, tracker.added)
	assert.Equal(t, 1, tracker.modified)
	assert.Equal(t, 1, tracker.removed)
}

func TestCachedReadsInvalidateOnWrite(t *testing.T) {
	svc, err := cache.NewService(cache.DefaultConfig())
	require.NoError(t, err)
	repo := newMemberRepo(t, repository.WithCache[models.Member](svc))
	ctx := context.Background()

	m := testsupport.NewMember(1, "M-8001")
	require.NoError(t, repo.Add(ctx, m))

	cached, err := repo.GetCached(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "+256700000001", cached.Phone)

	// The write sweeps the cached entry; the next cached read sees the
	// new value instead of the stale one.
	m.Phone = "+256702223344"
	require.NoError(t, repo.Update(ctx, m))

	cached, err = repo.GetCached(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, "+256702223344", cached.Phone)
}

func TestAllCachedKeyedByPredicate(t *testing.T) {
	svc, err := cache.NewService(cache.DefaultConfig())
	require.NoError(t, err)
	repo := newMemberRepo(t, repository.WithCache[models.Member](svc))
	ctx := context.Background()
	seedMembers(t, repo, 3)

	active, err := repo.AllCached(ctx, repository.Where("is_active", repository.Eq, true))
	require.NoError(t, err)
	assert.Len(t, active, 3)

	none, err := repo.AllCached(ctx, repository.Where("is_active", repository.Eq, false))
	require.NoError(t, err)
	assert.Empty(t, none, "different predicates must not share a cache entry")
}

func TestRepositoryPanicsOnNonEntity(t *testing.T) {
	db := testsupport.NewTestDB(t)
	assert.Panics(t, func() {
		repository.New[int](db)
	})
}
