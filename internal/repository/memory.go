package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/receiptwise/pipeline/constants"
	"github.com/receiptwise/pipeline/internal/common"
	"github.com/receiptwise/pipeline/internal/entity"
	"github.com/receiptwise/pipeline/internal/extract"
)

// MemoryStore keeps everything in maps. Tests and throwaway runs only.
type MemoryStore struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*entity.ReceiptJob
	receipts map[uuid.UUID]*entity.ReceiptRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:     make(map[uuid.UUID]*entity.ReceiptJob),
		receipts: make(map[uuid.UUID]*entity.ReceiptRecord),
	}
}

func (s *MemoryStore) CreateJob(_ context.Context, job *entity.ReceiptJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, id uuid.UUID) (*entity.ReceiptJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	cp := *job
	return &cp, nil
}

func (s *MemoryStore) MarkProcessing(_ context.Context, id uuid.UUID) error {
	return s.update(id, func(j *entity.ReceiptJob) {
		j.Status = constants.JobStatusProcessing
	})
}

func (s *MemoryStore) MarkPending(_ context.Context, id uuid.UUID, attempts int, lastError string) error {
	return s.update(id, func(j *entity.ReceiptJob) {
		j.Status = constants.JobStatusPending
		j.Attempts = attempts
		j.LastError = lastError
	})
}

func (s *MemoryStore) MarkFailed(_ context.Context, id uuid.UUID, attempts int, lastError string) error {
	return s.update(id, func(j *entity.ReceiptJob) {
		j.Status = constants.JobStatusFailed
		j.Attempts = attempts
		j.LastError = lastError
	})
}

func (s *MemoryStore) CommitResult(_ context.Context, id uuid.UUID, rec extract.ExtractedReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("commit result: job %s: %w", id, common.ErrNotFound)
	}
	s.receipts[id] = &entity.ReceiptRecord{
		JobID:     id,
		Receipt:   rec,
		CreatedAt: time.Now().UTC(),
	}
	job.Status = constants.JobStatusCompleted
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ListCompleted(_ context.Context) ([]*entity.ReceiptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.ReceiptRecord, 0, len(s.receipts))
	for _, r := range s.receipts {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListNonTerminal(_ context.Context) ([]*entity.ReceiptJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.ReceiptJob, 0)
	for _, j := range s.jobs {
		if j.Status.Terminal() {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) update(id uuid.UUID, fn func(*entity.ReceiptJob)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	fn(job)
	job.UpdatedAt = time.Now().UTC()
	return nil
}
