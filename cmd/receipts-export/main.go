// Command receipts-export writes every committed extraction to an XLSX
// workbook.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/receiptwise/pipeline/internal/common"
	"github.com/receiptwise/pipeline/internal/export"
	"github.com/receiptwise/pipeline/internal/repository"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg := common.LoadConfig()

	fset := ff.NewFlagSet("receipts-export")
	var (
		outPath = fset.StringLong("out", "receipts.xlsx", "output workbook path")
	)
	if err := ff.Parse(fset, os.Args[1:], ff.WithEnvVarPrefix("EXTRACTOR")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fset))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var (
		store repository.Store
		err   error
	)
	switch cfg.Database.Driver {
	case "postgres":
		store, err = repository.OpenPostgres(ctx, repository.PostgresConfig{
			DSN:         cfg.Database.DSN,
			MaxConns:    cfg.Database.MaxConns,
			MinConns:    cfg.Database.MinConns,
			DialTimeout: cfg.Database.DialTimeout,
		}, logger)
	default:
		store, err = repository.OpenSQLite(ctx, cfg.Database.DSN, logger)
	}
	if err != nil {
		logger.Error("failed to open store", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer store.Close()

	data, err := export.NewService(store, logger).ExportXLSX(ctx)
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		logger.Error("failed to write workbook", "path", *outPath, "error", err)
		os.Exit(1)
	}
	logger.Info("workbook written", "path", *outPath, "bytes", len(data))
}
