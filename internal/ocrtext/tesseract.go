package ocrtext

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// TesseractConfig configures the exec-based recognizer.
type TesseractConfig struct {
	Binary   string // default "tesseract"
	Language string // default "eng"
	WorkDir  string // scratch dir for stdin-fed images; default os.TempDir()
}

// Tesseract shells out to the tesseract binary. It exists so the pipeline can
// run end to end locally; deployments substitute their own Recognizer.
type Tesseract struct {
	cfg TesseractConfig
	log *slog.Logger
}

func NewTesseract(cfg TesseractConfig, logger *slog.Logger) *Tesseract {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tesseract{cfg: cfg, log: logger}
}

// Recognize writes the image to a scratch file and runs
// `tesseract <file> stdout -l <lang>`. Confidence is the text heuristic;
// per-word TSV confidence is not worth a second pass here.
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, float32, error) {
	tmp, err := os.CreateTemp(t.cfg.WorkDir, "ocr-*.img")
	if err != nil {
		return "", 0, fmt.Errorf("scratch file: %w", err)
	}
	path := tmp.Name()
	defer func() { _ = os.Remove(path) }()
	if _, err := tmp.Write(image); err != nil {
		_ = tmp.Close()
		return "", 0, fmt.Errorf("write scratch file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("close scratch file: %w", err)
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, t.cfg.Binary, path, "stdout", "-l", t.cfg.Language)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	if err := cmd.Run(); err != nil {
		t.log.Error("tesseract failed",
			"file", filepath.Base(path),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 8<<10),
		)
		return "", 0, fmt.Errorf("tesseract: %w", err)
	}

	text := Normalize(out.String())
	conf := Confidence(text)
	t.log.Debug("tesseract ok",
		"duration_ms", time.Since(start).Milliseconds(),
		"text_bytes", len(text),
		"confidence", conf,
	)
	return text, conf, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
