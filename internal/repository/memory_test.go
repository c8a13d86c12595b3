package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptwise/pipeline/constants"
	"github.com/receiptwise/pipeline/internal/common"
	"github.com/receiptwise/pipeline/internal/entity"
	"github.com/receiptwise/pipeline/internal/extract"
)

func TestMemoryStoreJobLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id := uuid.New()

	_, err := s.GetJob(ctx, id)
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, s.CreateJob(ctx, entity.NewReceiptJob(id, "r.jpg")))

	job, err := s.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusPending, job.Status)
	assert.Equal(t, "r.jpg", job.ImageRef)

	require.NoError(t, s.MarkProcessing(ctx, id))
	job, _ = s.GetJob(ctx, id)
	assert.Equal(t, constants.JobStatusProcessing, job.Status)

	require.NoError(t, s.MarkPending(ctx, id, 1, "transient"))
	job, _ = s.GetJob(ctx, id)
	assert.Equal(t, constants.JobStatusPending, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, "transient", job.LastError)

	require.NoError(t, s.MarkFailed(ctx, id, 3, "gave up"))
	job, _ = s.GetJob(ctx, id)
	assert.Equal(t, constants.JobStatusFailed, job.Status)
	assert.Equal(t, 3, job.Attempts)
}

func TestMemoryStoreCommitResult(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, s.CreateJob(ctx, entity.NewReceiptJob(id, "r.jpg")))

	rec := extract.Empty()
	name := "Walmart"
	rec.StoreName = &name
	rec.Items = []extract.ExtractedItem{{Name: "Milk", Price: 3.99, Quantity: 1}}
	require.NoError(t, s.CommitResult(ctx, id, rec))

	job, err := s.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusCompleted, job.Status)

	recs, err := s.ListCompleted(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, id, recs[0].JobID)
	require.NotNil(t, recs[0].Receipt.StoreName)
	assert.Equal(t, "Walmart", *recs[0].Receipt.StoreName)
}

func TestMemoryStoreCommitUnknownJob(t *testing.T) {
	s := NewMemoryStore()
	err := s.CommitResult(context.Background(), uuid.New(), extract.Empty())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemoryStoreUpdateUnknownJob(t *testing.T) {
	s := NewMemoryStore()
	id := uuid.New()
	assert.ErrorIs(t, s.MarkProcessing(context.Background(), id), common.ErrNotFound)
	assert.ErrorIs(t, s.MarkPending(context.Background(), id, 1, ""), common.ErrNotFound)
	assert.ErrorIs(t, s.MarkFailed(context.Background(), id, 1, ""), common.ErrNotFound)
}

func TestMemoryStoreListNonTerminal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	pending := uuid.New()
	require.NoError(t, s.CreateJob(ctx, entity.NewReceiptJob(pending, "a.jpg")))

	processing := uuid.New()
	require.NoError(t, s.CreateJob(ctx, entity.NewReceiptJob(processing, "b.jpg")))
	require.NoError(t, s.MarkProcessing(ctx, processing))

	failed := uuid.New()
	require.NoError(t, s.CreateJob(ctx, entity.NewReceiptJob(failed, "c.jpg")))
	require.NoError(t, s.MarkFailed(ctx, failed, 3, "gave up"))

	completed := uuid.New()
	require.NoError(t, s.CreateJob(ctx, entity.NewReceiptJob(completed, "d.jpg")))
	require.NoError(t, s.CommitResult(ctx, completed, extract.Empty()))

	jobs, err := s.ListNonTerminal(ctx)
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{pending, processing}, ids)
}

func TestMemoryStoreResubmitResets(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, s.CreateJob(ctx, entity.NewReceiptJob(id, "r.jpg")))
	require.NoError(t, s.MarkFailed(ctx, id, 3, "boom"))

	// upsert with a fresh job row clears the failure bookkeeping
	require.NoError(t, s.CreateJob(ctx, entity.NewReceiptJob(id, "r.jpg")))
	job, err := s.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusPending, job.Status)
	assert.Equal(t, 0, job.Attempts)
	assert.Empty(t, job.LastError)
}
