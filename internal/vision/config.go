package vision

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/receiptwise/pipeline/internal/common"
)

// Config for the vision-model client. The endpoint is any OpenAI-compatible
// chat/completions API with image understanding.
type Config struct {
	APIKey      string        // falls back to env OPENAI_API_KEY
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // e.g. "gpt-4o-mini"
	Temperature float32       // 0..2
	Timeout     time.Duration // per-call; must stay below the job timeout
	MaxImageMB  int           // request size gate
}

// Client implements extract.Provider over the vision endpoint.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

// NewClient fails fast on configuration problems (missing credentials); those
// are the only errors this provider is allowed to raise eagerly. Per-job
// failures degrade to an empty result instead.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "vision provider requires an API key", common.ErrInvalidInput)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxImageMB <= 0 {
		cfg.MaxImageMB = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logger,
	}, nil
}
