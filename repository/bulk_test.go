package repository_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nkambwe/Mfi-Mananger-sub000/models"
	"github.com/Nkambwe/Mfi-Mananger-sub000/pkg/testsupport"
	"github.com/Nkambwe/Mfi-Mananger-sub000/repository"
)

func bulkMembers(n int) []*models.Member {
	out := make([]*models.Member, n)
	for i := range out {
		out[i] = testsupport.NewMember(1, fmt.Sprintf("M-B%03d", i))
	}
	return out
}

func TestBulkInsert(t *testing.T) {
	repo := newMemberRepo(t)
	ctx := context.Background()

	var progress []repository.BulkProgress
	result, err := repo.BulkInsert(ctx, bulkMembers(25), repository.BulkOptions{
		BatchSize: 10,
		Progress:  func(p repository.BulkProgress) { progress = append(progress, p) },
	})
	require.NoError(t, err)
	assert.Equal(t, 25, result.Inserted)
	assert.Empty(t, result.Errors)

	require.Len(t, progress, 3)
	assert.Equal(t, repository.BulkProgress{Processed: 10, Total: 25, Batch: 1, Batches: 3}, progress[0])
	assert.Equal(t, repository.BulkProgress{Processed: 25, Total: 25, Batch: 3, Batches: 3}, progress[2])

	assert.Equal(t, 25, repo.Count(ctx))
}

func TestBulkInsertDefaultBatchSize(t *testing.T) {
	repo := newMemberRepo(t)
	ctx := context.Background()

	result, err := repo.BulkInsert(ctx, bulkMembers(5), repository.BulkOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Inserted)
}

func TestBulkUpdate(t *testing.T) {
	repo := newMemberRepo(t)
	ctx := context.Background()

	members := bulkMembers(6)
	_, err := repo.BulkInsert(ctx, members, repository.BulkOptions{})
	require.NoError(t, err)

	for _, m := range members {
		m.IsActive = false
	}
	result, err := repo.BulkUpdate(ctx, members, repository.BulkOptions{BatchSize: 4})
	require.NoError(t, err)
	assert.Equal(t, 6, result.Updated)
	assert.Zero(t, result.Skipped)

	n := repo.CountWhere(ctx, repository.Where("is_active", repository.Eq, false))
	assert.Equal(t, 6, n)
}

func TestBulkUpdateSkipsSoftDeleted(t *testing.T) {
	repo := newMemberRepo(t)
	ctx := context.Background()

	members := bulkMembers(4)
	_, err := repo.BulkInsert(ctx, members, repository.BulkOptions{})
	require.NoError(t, err)
	require.NoError(t, repo.Remove(ctx, members[0], true))

	for _, m := range members {
		m.Phone = "+256705556677"
	}
	result, err := repo.BulkUpdate(ctx, members, repository.BulkOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Updated)
	assert.Equal(t, 1, result.Skipped)

	kept, err := repo.Get(ctx, members[0].ID, repository.IncludeDeleted())
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.NotEqual(t, "+256705556677", kept.Phone, "soft-deleted rows stay untouched")
}

func TestBulkInsertNilEntity(t *testing.T) {
	repo := newMemberRepo(t)

	_, err := repo.BulkInsert(context.Background(), []*models.Member{nil}, repository.BulkOptions{})
	assert.ErrorIs(t, err, repository.ErrNilEntity)
}

func TestBulkUpdateUnsaved(t *testing.T) {
	repo := newMemberRepo(t)

	_, err := repo.BulkUpdate(context.Background(), bulkMembers(1), repository.BulkOptions{})
	assert.ErrorIs(t, err, repository.ErrNotPersisted)
}

func TestBulkInsertStopsAtFailedBatch(t *testing.T) {
	repo := newMemberRepo(t)
	ctx := context.Background()

	// The second record reuses the first one's primary key, so its batch
	// fails on the unique constraint.
	members := bulkMembers(3)
	members[0].ID = 101
	members[1].ID = 101
	members[2].ID = 102

	var progress []repository.BulkProgress
	result, err := repo.BulkInsert(ctx, members, repository.BulkOptions{
		BatchSize: 1,
		Progress:  func(p repository.BulkProgress) { progress = append(progress, p) },
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "batch 2")

	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Errors, 1)

	// The walk stops at the failed batch, so the third record is never
	// attempted and no progress is reported for it.
	require.Len(t, progress, 1)
	assert.Equal(t, repository.BulkProgress{Processed: 1, Total: 3, Batch: 1, Batches: 3}, progress[0])

	assert.Equal(t, 1, repo.Count(ctx))
}

func TestBulkInsertContinuesPastFailedBatch(t *testing.T) {
	repo := newMemberRepo(t)
	ctx := context.Background()

	members := bulkMembers(3)
	members[0].ID = 201
	members[1].ID = 201
	members[2].ID = 202

	var progress []repository.BulkProgress
	result, err := repo.BulkInsert(ctx, members, repository.BulkOptions{
		BatchSize:       1,
		ContinueOnError: true,
		Progress:        func(p repository.BulkProgress) { progress = append(progress, p) },
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.ErrorContains(t, result.Errors[0], "batch 2")

	require.Len(t, progress, 3)
	assert.Zero(t, progress[0].Errors)
	assert.Equal(t, 1, progress[1].Errors)
	assert.Equal(t, 1, progress[2].Errors)

	assert.Equal(t, 2, repo.Count(ctx))
}
