package heuristic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/receiptwise/pipeline/constants"
	"github.com/receiptwise/pipeline/internal/catalog"
	"github.com/receiptwise/pipeline/internal/common"
	"github.com/receiptwise/pipeline/internal/extract"
	"github.com/receiptwise/pipeline/internal/ocrtext"
)

// Provider runs the four field extractors over recognized text and assembles
// their outputs. Deterministic for identical input text; never touches the
// network. When handed only image bytes it runs the OCR collaborator first.
type Provider struct {
	logger *slog.Logger
	ocr    ocrtext.Recognizer // optional; required only for image-only requests
	stores *StoreDetector
	dates  *DateExtractor
	items  *ItemExtractor
	totals *TotalExtractor
}

func NewProvider(cat *catalog.Catalog, rec ocrtext.Recognizer, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		logger: logger,
		ocr:    rec,
		stores: NewStoreDetector(cat),
		dates:  NewDateExtractor(),
		items:  NewItemExtractor(),
		totals: NewTotalExtractor(),
	}
}

func (p *Provider) Name() string { return constants.ProviderHeuristic }

// Extract runs the field extractors independently and assembles the result.
// "No match" is never an error: each extractor returns nil/empty and the
// assembled receipt simply carries less signal.
func (p *Provider) Extract(ctx context.Context, req extract.Request) (extract.ExtractedReceipt, error) {
	text := req.Text
	if text == "" {
		if len(req.Image) == 0 {
			return extract.Empty(), common.MarkPermanent(errors.New("request carries neither text nor image"))
		}
		if p.ocr == nil {
			return extract.Empty(), common.MarkPermanent(errors.New("image-only request but no recognizer configured"))
		}
		recognized, conf, err := p.ocr.Recognize(ctx, req.Image)
		if err != nil {
			return extract.Empty(), fmt.Errorf("recognize: %w", err)
		}
		p.logger.Debug("heuristic.ocr.ok", "text_bytes", len(recognized), "confidence", conf)
		text = recognized
	}

	text = ocrtext.Normalize(text)
	if text == "" {
		return extract.Empty(), nil
	}

	rec := extract.Empty()
	rec.RawText = &text
	rec.StoreName = p.stores.Detect(text)
	rec.PurchaseDate = p.dates.Detect(text)
	rec.Items = p.items.Detect(text)
	rec.TotalAmount = p.totals.Detect(text)
	rec.Confidence = overallConfidence(rec)

	p.logger.Debug("heuristic.extract.ok",
		"store_found", rec.StoreName != nil,
		"date_found", rec.PurchaseDate != nil,
		"items", len(rec.Items),
		"total_found", rec.TotalAmount != nil,
		"confidence", rec.Confidence,
	)
	return rec, nil
}

// overallConfidence blends field presence with item quality: a quarter each
// for store, date and total, plus a quarter scaled by mean item confidence.
func overallConfidence(r extract.ExtractedReceipt) float32 {
	var score float32
	if r.StoreName != nil {
		score += 0.25
	}
	if r.PurchaseDate != nil {
		score += 0.25
	}
	if r.TotalAmount != nil {
		score += 0.25
	}
	if len(r.Items) > 0 {
		var sum float32
		for _, it := range r.Items {
			sum += it.Confidence
		}
		score += 0.25 * (sum / float32(len(r.Items)))
	}
	return extract.ClampConfidence(score)
}
