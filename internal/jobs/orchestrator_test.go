package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptwise/pipeline/constants"
	"github.com/receiptwise/pipeline/internal/common"
	"github.com/receiptwise/pipeline/internal/entity"
	"github.com/receiptwise/pipeline/internal/extract"
	"github.com/receiptwise/pipeline/internal/repository"
)

type fakeImages struct{}

func (fakeImages) Fetch(context.Context, string) ([]byte, error) {
	return []byte{0xFF, 0xD8}, nil
}

type missingImages struct{}

func (missingImages) Fetch(context.Context, string) ([]byte, error) {
	return nil, common.MarkPermanent(common.ErrNotFound)
}

// fakeProvider returns canned results per call, repeating the last one.
type fakeProvider struct {
	calls   atomic.Int64
	results []func() (extract.ExtractedReceipt, error)
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Extract(context.Context, extract.Request) (extract.ExtractedReceipt, error) {
	n := int(p.calls.Add(1)) - 1
	if n >= len(p.results) {
		n = len(p.results) - 1
	}
	return p.results[n]()
}

func goodResult() (extract.ExtractedReceipt, error) {
	rec := extract.Empty()
	name := "Walmart"
	total := 9.99
	rec.StoreName = &name
	rec.TotalAmount = &total
	rec.Items = []extract.ExtractedItem{{Name: "Milk", Price: 9.99, Quantity: 1, Confidence: 0.9}}
	rec.Confidence = 0.9
	return rec, nil
}

func transientFailure() (extract.ExtractedReceipt, error) {
	return extract.Empty(), errors.New("upstream hiccup")
}

func permanentFailure() (extract.ExtractedReceipt, error) {
	return extract.Empty(), common.MarkPermanent(errors.New("unreadable input"))
}

func emptyResult() (extract.ExtractedReceipt, error) {
	return extract.Empty(), nil
}

func testConfig() Config {
	return Config{
		Concurrency: 2,
		MaxAttempts: 3,
		JobTimeout:  5 * time.Second,
		RetryBase:   time.Millisecond,
		Tolerance:   0.05,
	}
}

func startOrchestrator(t *testing.T, provider extract.Provider) (*Orchestrator, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	o := NewOrchestrator(testConfig(), store, provider, fakeImages{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	o.Start(ctx)
	return o, store
}

func waitForStatus(t *testing.T, store repository.Store, id uuid.UUID, want constants.JobStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		job, err := store.GetJob(context.Background(), id)
		return err == nil && job.Status == want
	}, 5*time.Second, 5*time.Millisecond, "job never reached %s", want)
}

func TestOrchestratorCompletesJob(t *testing.T) {
	provider := &fakeProvider{results: []func() (extract.ExtractedReceipt, error){goodResult}}
	o, store := startOrchestrator(t, provider)

	id := uuid.New()
	require.NoError(t, o.Submit(context.Background(), id, "r.jpg"))
	waitForStatus(t, store, id, constants.JobStatusCompleted)

	recs, err := store.ListCompleted(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, id, recs[0].JobID)
	assert.True(t, recs[0].Receipt.Reconciled, "total matches the item sum exactly")
	assert.EqualValues(t, 1, provider.calls.Load())
}

func TestOrchestratorSubmitIsIdempotent(t *testing.T) {
	provider := &fakeProvider{results: []func() (extract.ExtractedReceipt, error){goodResult}}
	o, store := startOrchestrator(t, provider)

	id := uuid.New()
	for i := 0; i < 5; i++ {
		require.NoError(t, o.Submit(context.Background(), id, "r.jpg"))
	}
	waitForStatus(t, store, id, constants.JobStatusCompleted)

	// completed jobs are never re-run
	require.NoError(t, o.Submit(context.Background(), id, "r.jpg"))
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, provider.calls.Load())
}

func TestOrchestratorRetriesThenSucceeds(t *testing.T) {
	provider := &fakeProvider{results: []func() (extract.ExtractedReceipt, error){
		transientFailure, goodResult,
	}}
	o, store := startOrchestrator(t, provider)

	id := uuid.New()
	require.NoError(t, o.Submit(context.Background(), id, "r.jpg"))
	waitForStatus(t, store, id, constants.JobStatusCompleted)

	job, err := store.GetJob(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, job.Attempts, "one failed attempt was recorded")
	assert.EqualValues(t, 2, provider.calls.Load())
}

func TestOrchestratorExhaustsAttempts(t *testing.T) {
	provider := &fakeProvider{results: []func() (extract.ExtractedReceipt, error){transientFailure}}
	o, store := startOrchestrator(t, provider)

	id := uuid.New()
	require.NoError(t, o.Submit(context.Background(), id, "r.jpg"))
	waitForStatus(t, store, id, constants.JobStatusFailed)

	job, err := store.GetJob(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 3, job.Attempts)
	assert.Contains(t, job.LastError, "upstream hiccup")
	assert.EqualValues(t, 3, provider.calls.Load())

	// no further attempts after the terminal state
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 3, provider.calls.Load())
}

func TestOrchestratorPermanentFailsFast(t *testing.T) {
	provider := &fakeProvider{results: []func() (extract.ExtractedReceipt, error){permanentFailure}}
	o, store := startOrchestrator(t, provider)

	id := uuid.New()
	require.NoError(t, o.Submit(context.Background(), id, "r.jpg"))
	waitForStatus(t, store, id, constants.JobStatusFailed)

	job, err := store.GetJob(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, job.Attempts, "permanent errors never burn retries")
	assert.EqualValues(t, 1, provider.calls.Load())
}

func TestOrchestratorEmptyResultIsRetried(t *testing.T) {
	provider := &fakeProvider{results: []func() (extract.ExtractedReceipt, error){emptyResult}}
	o, store := startOrchestrator(t, provider)

	id := uuid.New()
	require.NoError(t, o.Submit(context.Background(), id, "r.jpg"))
	waitForStatus(t, store, id, constants.JobStatusFailed)

	job, err := store.GetJob(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 3, job.Attempts, "an all-empty extraction is treated as transient")
}

func TestOrchestratorMissingImageFailsFast(t *testing.T) {
	provider := &fakeProvider{results: []func() (extract.ExtractedReceipt, error){goodResult}}
	store := repository.NewMemoryStore()
	o := NewOrchestrator(testConfig(), store, provider, missingImages{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	o.Start(ctx)

	id := uuid.New()
	require.NoError(t, o.Submit(context.Background(), id, "gone.jpg"))
	waitForStatus(t, store, id, constants.JobStatusFailed)

	job, err := store.GetJob(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, job.Attempts)
	assert.EqualValues(t, 0, provider.calls.Load(), "provider never ran")
}

func TestOrchestratorResubmitAfterFailure(t *testing.T) {
	provider := &fakeProvider{results: []func() (extract.ExtractedReceipt, error){
		transientFailure, transientFailure, transientFailure, goodResult,
	}}
	o, store := startOrchestrator(t, provider)

	id := uuid.New()
	require.NoError(t, o.Submit(context.Background(), id, "r.jpg"))
	waitForStatus(t, store, id, constants.JobStatusFailed)

	// a failed job may be explicitly resubmitted with a fresh budget
	require.NoError(t, o.Submit(context.Background(), id, "r.jpg"))
	waitForStatus(t, store, id, constants.JobStatusCompleted)

	job, err := store.GetJob(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 0, job.Attempts)
}

func TestOrchestratorRecoversStrandedJobs(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()

	// a PENDING row whose retry timer died with the previous process
	pendingID := uuid.New()
	require.NoError(t, store.CreateJob(ctx, entity.NewReceiptJob(pendingID, "pending.jpg")))
	require.NoError(t, store.MarkPending(ctx, pendingID, 1, "upstream hiccup"))

	// a PROCESSING row whose worker crashed mid-attempt
	processingID := uuid.New()
	require.NoError(t, store.CreateJob(ctx, entity.NewReceiptJob(processingID, "processing.jpg")))
	require.NoError(t, store.MarkProcessing(ctx, processingID))

	provider := &fakeProvider{results: []func() (extract.ExtractedReceipt, error){goodResult}}
	o := NewOrchestrator(testConfig(), store, provider, fakeImages{}, nil)
	runCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	o.Start(runCtx)

	waitForStatus(t, store, pendingID, constants.JobStatusCompleted)
	waitForStatus(t, store, processingID, constants.JobStatusCompleted)

	// the interrupted attempt did not count against the budget
	job, err := store.GetJob(ctx, processingID)
	require.NoError(t, err)
	assert.Equal(t, 0, job.Attempts)
}

func TestOrchestratorRecoveryLeavesTerminalJobsAlone(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()

	failedID := uuid.New()
	require.NoError(t, store.CreateJob(ctx, entity.NewReceiptJob(failedID, "failed.jpg")))
	require.NoError(t, store.MarkFailed(ctx, failedID, 3, "unreadable input"))

	provider := &fakeProvider{results: []func() (extract.ExtractedReceipt, error){goodResult}}
	o := NewOrchestrator(testConfig(), store, provider, fakeImages{}, nil)
	runCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	o.Start(runCtx)

	time.Sleep(100 * time.Millisecond)
	job, err := store.GetJob(ctx, failedID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, job.Status)
	assert.EqualValues(t, 0, provider.calls.Load())
}

func TestOrchestratorShutdownDrains(t *testing.T) {
	provider := &fakeProvider{results: []func() (extract.ExtractedReceipt, error){goodResult}}
	store := repository.NewMemoryStore()
	o := NewOrchestrator(testConfig(), store, provider, fakeImages{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)

	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, o.Submit(context.Background(), ids[i], "r.jpg"))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	require.NoError(t, o.Shutdown(shutdownCtx))

	for _, id := range ids {
		job, err := store.GetJob(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, constants.JobStatusCompleted, job.Status)
	}

	assert.ErrorIs(t, o.Submit(context.Background(), uuid.New(), "late.jpg"), common.ErrQueueClosed)
}
