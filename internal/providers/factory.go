// Package providers builds the configured extraction provider.
package providers

import (
	"log/slog"

	"github.com/receiptwise/pipeline/constants"
	"github.com/receiptwise/pipeline/internal/catalog"
	"github.com/receiptwise/pipeline/internal/common"
	"github.com/receiptwise/pipeline/internal/extract"
	"github.com/receiptwise/pipeline/internal/heuristic"
	"github.com/receiptwise/pipeline/internal/ocrtext"
	"github.com/receiptwise/pipeline/internal/vision"
)

// New constructs the provider named by cfg.Provider. The recognizer is only
// used by the heuristic provider and may be nil for text-only extraction.
func New(cfg *common.Config, cat *catalog.Catalog, rec ocrtext.Recognizer, logger *slog.Logger) (extract.Provider, error) {
	switch cfg.Provider {
	case constants.ProviderHeuristic:
		return heuristic.NewProvider(cat, rec, logger), nil
	case constants.ProviderVision:
		return vision.NewClient(vision.Config{
			APIKey:      cfg.Vision.APIKey,
			BaseURL:     cfg.Vision.BaseURL,
			Model:       cfg.Vision.Model,
			Temperature: cfg.Vision.Temperature,
			Timeout:     cfg.Vision.Timeout,
			MaxImageMB:  cfg.Vision.MaxImageMB,
		}, logger)
	default:
		return nil, common.NewAppError("CONFIG_ERROR", "unknown extraction provider: "+cfg.Provider, common.ErrInvalidInput)
	}
}
