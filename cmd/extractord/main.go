// Command extractord watches an image directory and runs the extraction
// pipeline over every receipt it finds. Job ids are derived from file content,
// so restarting the daemon resubmits the same ids and already-processed
// receipts are skipped.
package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/receiptwise/pipeline/internal/catalog"
	"github.com/receiptwise/pipeline/internal/common"
	"github.com/receiptwise/pipeline/internal/jobs"
	"github.com/receiptwise/pipeline/internal/ocrtext"
	"github.com/receiptwise/pipeline/internal/providers"
	"github.com/receiptwise/pipeline/internal/repository"
	"github.com/receiptwise/pipeline/internal/storage"
)

// jobNamespace seeds the content-derived job ids.
var jobNamespace = uuid.MustParse("f1b7b7a4-3f0a-4f3c-9dd0-6b1c5a2e8d11")

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()

	fset := ff.NewFlagSet("extractord")
	var (
		imageDir     = fset.StringLong("images", cfg.Storage.RootDir, "directory to scan for receipt images")
		scanInterval = fset.DurationLong("scan-interval", time.Minute, "how often to rescan the image directory")
		scanOnce     = fset.BoolLong("once", "scan once, drain, and exit")
	)
	if err := ff.Parse(fset, os.Args[1:], ff.WithEnvVarPrefix("EXTRACTOR")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fset))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg.Storage.RootDir = *imageDir

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer store.Close()

	cat, err := loadCatalog(cfg, logger)
	if err != nil {
		logger.Error("failed to load store catalog", "error", err, "path", cfg.Catalog.Path)
		os.Exit(1)
	}

	recognizer := ocrtext.NewTesseract(ocrtext.TesseractConfig{}, logger)
	provider, err := providers.New(cfg, cat, recognizer, logger)
	if err != nil {
		logger.Error("failed to build provider", "error", err, "provider", cfg.Provider)
		os.Exit(1)
	}

	orch := jobs.NewOrchestrator(jobs.Config{
		Concurrency: cfg.Orchestrator.Concurrency,
		QueueSize:   cfg.Orchestrator.QueueSize,
		MaxAttempts: cfg.Orchestrator.MaxAttempts,
		JobTimeout:  cfg.Orchestrator.JobTimeout,
		RetryBase:   cfg.Orchestrator.RetryBase,
		Tolerance:   cfg.Orchestrator.Tolerance,
	}, store, provider, storage.NewFSStore(cfg.Storage.RootDir), logger)
	orch.Start(ctx)

	logger.Info("extractord started",
		"provider", provider.Name(),
		"images", cfg.Storage.RootDir,
		"driver", cfg.Database.Driver)

	scan := func() {
		if n, err := submitDirectory(ctx, orch, cfg.Storage.RootDir, logger); err != nil {
			logger.Error("scan failed", "error", err)
		} else if n > 0 {
			logger.Info("scan complete", "submitted", n)
		}
	}
	scan()

	if !*scanOnce {
		ticker := time.NewTicker(*scanInterval)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case <-ticker.C:
				scan()
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}
}

// submitDirectory walks root and submits a job per image file. The id is a
// SHA1 UUID over the file's content hash, so the same bytes always map to the
// same job.
func submitDirectory(ctx context.Context, orch *jobs.Orchestrator, root string, logger *slog.Logger) (int, error) {
	submitted := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("unreadable image skipped", "path", path, "error", err)
			return nil
		}
		sum := sha256.Sum256(data)
		id := uuid.NewSHA1(jobNamespace, sum[:])

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		if err := orch.Submit(ctx, id, rel); err != nil {
			logger.Warn("submit failed", "path", rel, "error", err)
			return nil
		}
		submitted++
		return nil
	})
	return submitted, err
}

func openStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (repository.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		return repository.OpenPostgres(ctx, repository.PostgresConfig{
			DSN:         cfg.Database.DSN,
			MaxConns:    cfg.Database.MaxConns,
			MinConns:    cfg.Database.MinConns,
			DialTimeout: cfg.Database.DialTimeout,
		}, logger)
	default:
		return repository.OpenSQLite(ctx, cfg.Database.DSN, logger)
	}
}

func loadCatalog(cfg *common.Config, logger *slog.Logger) (*catalog.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return catalog.Builtin(), nil
	}
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	logger.Info("store catalog loaded", "path", cfg.Catalog.Path, "entries", cat.Len())
	return cat, nil
}
