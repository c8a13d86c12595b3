package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/receiptwise/pipeline/constants"
	"github.com/receiptwise/pipeline/internal/common"
	"github.com/receiptwise/pipeline/internal/entity"
	"github.com/receiptwise/pipeline/internal/extract"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS receipt_jobs (
	id         UUID PRIMARY KEY,
	image_ref  TEXT NOT NULL,
	status     TEXT NOT NULL,
	attempts   INT NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS extracted_receipts (
	job_id        UUID PRIMARY KEY REFERENCES receipt_jobs(id),
	store_name    TEXT,
	purchase_date DATE,
	total_amount  DOUBLE PRECISION,
	currency      TEXT NOT NULL,
	confidence    REAL NOT NULL,
	raw_text      TEXT,
	reconciled    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS extracted_items (
	job_id      UUID NOT NULL REFERENCES extracted_receipts(job_id),
	position    INT NOT NULL,
	name        TEXT NOT NULL,
	price       DOUBLE PRECISION NOT NULL,
	quantity    INT NOT NULL,
	line_number INT NOT NULL,
	confidence  REAL NOT NULL,
	PRIMARY KEY (job_id, position)
);
`

// PostgresConfig mirrors the pool knobs we expose through the environment.
type PostgresConfig struct {
	DSN         string
	MaxConns    int32
	MinConns    int32
	DialTimeout time.Duration
}

// PostgresStore persists jobs and results on a pgx pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func OpenPostgres(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database", "dsn", cfg.DSN)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database config", "error", err)
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "receiptwise"

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	logger.Info("successfully connected to database")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *entity.ReceiptJob) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO receipt_jobs (id, image_ref, status, attempts, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			image_ref  = EXCLUDED.image_ref,
			status     = EXCLUDED.status,
			attempts   = EXCLUDED.attempts,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at`,
		job.ID, job.ImageRef, string(job.Status), job.Attempts, job.LastError,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*entity.ReceiptJob, error) {
	var (
		status string
		job    entity.ReceiptJob
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, image_ref, status, attempts, last_error, created_at, updated_at
		FROM receipt_jobs WHERE id = $1`, id).
		Scan(&job.ID, &job.ImageRef, &status, &job.Attempts, &job.LastError,
			&job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	job.Status = constants.JobStatus(status)
	return &job, nil
}

func (s *PostgresStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return s.updateStatus(ctx, `
		UPDATE receipt_jobs SET status = $1, updated_at = $2 WHERE id = $3`,
		id, string(constants.JobStatusProcessing), time.Now().UTC(), id)
}

func (s *PostgresStore) MarkPending(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	return s.updateStatus(ctx, `
		UPDATE receipt_jobs SET status = $1, attempts = $2, last_error = $3, updated_at = $4 WHERE id = $5`,
		id, string(constants.JobStatusPending), attempts, lastError, time.Now().UTC(), id)
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	return s.updateStatus(ctx, `
		UPDATE receipt_jobs SET status = $1, attempts = $2, last_error = $3, updated_at = $4 WHERE id = $5`,
		id, string(constants.JobStatusFailed), attempts, lastError, time.Now().UTC(), id)
}

func (s *PostgresStore) CommitResult(ctx context.Context, id uuid.UUID, rec extract.ExtractedReceipt) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		INSERT INTO extracted_receipts
			(job_id, store_name, purchase_date, total_amount, currency, confidence, raw_text, reconciled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (job_id) DO UPDATE SET
			store_name    = EXCLUDED.store_name,
			purchase_date = EXCLUDED.purchase_date,
			total_amount  = EXCLUDED.total_amount,
			currency      = EXCLUDED.currency,
			confidence    = EXCLUDED.confidence,
			raw_text      = EXCLUDED.raw_text,
			reconciled    = EXCLUDED.reconciled`,
		id, rec.StoreName, rec.PurchaseDate, rec.TotalAmount,
		rec.Currency, rec.Confidence, rec.RawText, rec.Reconciled, now)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM extracted_items WHERE job_id = $1`, id); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}
	for i, it := range rec.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO extracted_items (job_id, position, name, price, quantity, line_number, confidence)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, i, it.Name, it.Price, it.Quantity, it.LineNumber, it.Confidence)
		if err != nil {
			return fmt.Errorf("insert item %d: %w", i, err)
		}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE receipt_jobs SET status = $1, last_error = '', updated_at = $2 WHERE id = $3`,
		string(constants.JobStatusCompleted), now, id)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("commit result: job %s: %w", id, common.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit result: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCompleted(ctx context.Context) ([]*entity.ReceiptRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT job_id, store_name, purchase_date, total_amount, currency, confidence, raw_text, reconciled, created_at
		FROM extracted_receipts ORDER BY created_at, job_id`)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var out []*entity.ReceiptRecord
	for rows.Next() {
		var rec entity.ReceiptRecord
		err := rows.Scan(&rec.JobID, &rec.Receipt.StoreName, &rec.Receipt.PurchaseDate,
			&rec.Receipt.TotalAmount, &rec.Receipt.Currency, &rec.Receipt.Confidence,
			&rec.Receipt.RawText, &rec.Receipt.Reconciled, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, rec := range out {
		items, err := s.listItems(ctx, rec.JobID)
		if err != nil {
			return nil, err
		}
		rec.Receipt.Items = items
	}
	return out, nil
}

func (s *PostgresStore) ListNonTerminal(ctx context.Context) ([]*entity.ReceiptJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, image_ref, status, attempts, last_error, created_at, updated_at
		FROM receipt_jobs WHERE status IN ($1, $2) ORDER BY created_at, id`,
		string(constants.JobStatusPending), string(constants.JobStatusProcessing))
	if err != nil {
		return nil, fmt.Errorf("list non-terminal jobs: %w", err)
	}
	defer rows.Close()

	var out []*entity.ReceiptJob
	for rows.Next() {
		var (
			status string
			job    entity.ReceiptJob
		)
		err := rows.Scan(&job.ID, &job.ImageRef, &status, &job.Attempts, &job.LastError,
			&job.CreatedAt, &job.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.Status = constants.JobStatus(status)
		out = append(out, &job)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) listItems(ctx context.Context, jobID uuid.UUID) ([]extract.ExtractedItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, price, quantity, line_number, confidence
		FROM extracted_items WHERE job_id = $1 ORDER BY position`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []extract.ExtractedItem
	for rows.Next() {
		var it extract.ExtractedItem
		if err := rows.Scan(&it.Name, &it.Price, &it.Quantity, &it.LineNumber, &it.Confidence); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *PostgresStore) updateStatus(ctx context.Context, query string, id uuid.UUID, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	return nil
}
