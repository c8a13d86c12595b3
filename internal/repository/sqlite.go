package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/receiptwise/pipeline/constants"
	"github.com/receiptwise/pipeline/internal/common"
	"github.com/receiptwise/pipeline/internal/entity"
	"github.com/receiptwise/pipeline/internal/extract"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS receipt_jobs (
	id         TEXT PRIMARY KEY,
	image_ref  TEXT NOT NULL,
	status     TEXT NOT NULL,
	attempts   INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS extracted_receipts (
	job_id        TEXT PRIMARY KEY REFERENCES receipt_jobs(id),
	store_name    TEXT,
	purchase_date TIMESTAMP,
	total_amount  REAL,
	currency      TEXT NOT NULL,
	confidence    REAL NOT NULL,
	raw_text      TEXT,
	reconciled    INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS extracted_items (
	job_id      TEXT NOT NULL REFERENCES extracted_receipts(job_id),
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	price       REAL NOT NULL,
	quantity    INTEGER NOT NULL,
	line_number INTEGER NOT NULL,
	confidence  REAL NOT NULL,
	PRIMARY KEY (job_id, position)
);
`

// SQLiteStore is the single-file store for local runs.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("opening sqlite database", "dsn", dsn)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writes itself; one connection avoids
	// SQLITE_BUSY under concurrent workers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job *entity.ReceiptJob) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO receipt_jobs (id, image_ref, status, attempts, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			image_ref  = excluded.image_ref,
			status     = excluded.status,
			attempts   = excluded.attempts,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		job.ID.String(), job.ImageRef, string(job.Status), job.Attempts, job.LastError,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id uuid.UUID) (*entity.ReceiptJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, image_ref, status, attempts, last_error, created_at, updated_at
		FROM receipt_jobs WHERE id = ?`, id.String())
	return scanJob(row, id)
}

func (s *SQLiteStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return s.updateStatus(ctx, `
		UPDATE receipt_jobs SET status = ?, updated_at = ? WHERE id = ?`,
		id, string(constants.JobStatusProcessing), time.Now().UTC(), id.String())
}

func (s *SQLiteStore) MarkPending(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	return s.updateStatus(ctx, `
		UPDATE receipt_jobs SET status = ?, attempts = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		id, string(constants.JobStatusPending), attempts, lastError, time.Now().UTC(), id.String())
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error {
	return s.updateStatus(ctx, `
		UPDATE receipt_jobs SET status = ?, attempts = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		id, string(constants.JobStatusFailed), attempts, lastError, time.Now().UTC(), id.String())
}

func (s *SQLiteStore) CommitResult(ctx context.Context, id uuid.UUID, rec extract.ExtractedReceipt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO extracted_receipts
			(job_id, store_name, purchase_date, total_amount, currency, confidence, raw_text, reconciled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			store_name    = excluded.store_name,
			purchase_date = excluded.purchase_date,
			total_amount  = excluded.total_amount,
			currency      = excluded.currency,
			confidence    = excluded.confidence,
			raw_text      = excluded.raw_text,
			reconciled    = excluded.reconciled`,
		id.String(), rec.StoreName, rec.PurchaseDate, rec.TotalAmount,
		rec.Currency, rec.Confidence, rec.RawText, rec.Reconciled, now)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM extracted_items WHERE job_id = ?`, id.String()); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}
	for i, it := range rec.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO extracted_items (job_id, position, name, price, quantity, line_number, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id.String(), i, it.Name, it.Price, it.Quantity, it.LineNumber, it.Confidence)
		if err != nil {
			return fmt.Errorf("insert item %d: %w", i, err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE receipt_jobs SET status = ?, last_error = '', updated_at = ? WHERE id = ?`,
		string(constants.JobStatusCompleted), now, id.String())
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("commit result: job %s: %w", id, common.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit result: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListCompleted(ctx context.Context) ([]*entity.ReceiptRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, store_name, purchase_date, total_amount, currency, confidence, raw_text, reconciled, created_at
		FROM extracted_receipts ORDER BY created_at, job_id`)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var out []*entity.ReceiptRecord
	for rows.Next() {
		var (
			rawID string
			rec   entity.ReceiptRecord
		)
		err := rows.Scan(&rawID, &rec.Receipt.StoreName, &rec.Receipt.PurchaseDate,
			&rec.Receipt.TotalAmount, &rec.Receipt.Currency, &rec.Receipt.Confidence,
			&rec.Receipt.RawText, &rec.Receipt.Reconciled, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		rec.JobID, err = uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse job id %q: %w", rawID, err)
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

func (s *SQLiteStore) ListNonTerminal(ctx context.Context) ([]*entity.ReceiptJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, image_ref, status, attempts, last_error, created_at, updated_at
		FROM receipt_jobs WHERE status IN (?, ?) ORDER BY created_at, id`,
		string(constants.JobStatusPending), string(constants.JobStatusProcessing))
	if err != nil {
		return nil, fmt.Errorf("list non-terminal jobs: %w", err)
	}
	defer rows.Close()

	var out []*entity.ReceiptJob
	for rows.Next() {
		var (
			rawID  string
			status string
			job    entity.ReceiptJob
		)
		err := rows.Scan(&rawID, &job.ImageRef, &status, &job.Attempts, &job.LastError,
			&job.CreatedAt, &job.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.ID, err = uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse job id %q: %w", rawID, err)
		}
		job.Status = constants.JobStatus(status)
		out = append(out, &job)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) listItems(ctx context.Context, jobID uuid.UUID) ([]extract.ExtractedItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, price, quantity, line_number, confidence
		FROM extracted_items WHERE job_id = ? ORDER BY position`, jobID.String())
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

func (s *SQLiteStore) updateStatus(ctx context.Context, query string, id uuid.UUID, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func scanJob(row *sql.Row, id uuid.UUID) (*entity.ReceiptJob, error) {
	var (
		rawID  string
		status string
		job    entity.ReceiptJob
	)
	err := row.Scan(&rawID, &job.ImageRef, &status, &job.Attempts, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse job id %q: %w", rawID, err)
	}
	job.Status = constants.JobStatus(status)
	return &job, nil
}
