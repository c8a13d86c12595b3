package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/receiptwise/pipeline/constants"
	"github.com/receiptwise/pipeline/internal/common"
	"github.com/receiptwise/pipeline/internal/extract"
)

const instructionPrompt = "You are a receipts parser. You are given a photo of a single retail receipt. " +
	"Return ONLY a JSON object with exactly these keys: " +
	"storeName (string or null), date (YYYY-MM-DD string or null), " +
	"items (array of {name, price, quantity}), total (number or null), " +
	"currency (3-letter ISO 4217 code, default USD), confidence (number 0..1). " +
	"Prices are plain numbers without currency symbols. " +
	"Use null for anything you cannot read; never guess and never output extra keys."

func (c *Client) Name() string { return constants.ProviderVision }

// Extract sends the image to the vision endpoint and validates the structured
// response. Every per-job failure mode — non-2xx, timeout, undecodable body,
// schema mismatch — degrades to the zero-confidence empty result; the
// orchestrator owns retries, so this call never re-sends on its own. The only
// errors returned are for inputs no retry can fix.
func (c *Client) Extract(ctx context.Context, req extract.Request) (extract.ExtractedReceipt, error) {
	rid := uuid.New().String()
	start := time.Now()

	if len(req.Image) == 0 {
		return extract.Empty(), common.MarkPermanent(errors.New("empty image payload"))
	}
	if len(req.Image) > c.cfg.MaxImageMB<<20 {
		return extract.Empty(), common.MarkPermanent(fmt.Errorf("image exceeds %d MB limit", c.cfg.MaxImageMB))
	}

	mimeType := http.DetectContentType(req.Image)
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(req.Image)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": instructionPrompt},
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": "Extract the receipt fields from the attached image."},
					{"type": "image_url", "image_url": map[string]any{"url": dataURL}},
				},
			},
		},
	}

	raw, err := c.post(ctx, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", body)
	if err != nil {
		c.log.Warn("vision.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.Empty(), nil
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil || len(cc.Choices) == 0 {
		c.log.Warn("vision.extract.decode_error",
			"req_id", rid, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.Empty(), nil
	}

	content, err := ExtractJSONObject(cc.Choices[0].Message.Content)
	if err != nil {
		c.log.Warn("vision.extract.no_json", "req_id", rid, "error", err)
		return extract.Empty(), nil
	}

	cleaned, dropped, err := NormalizeResponse([]byte(content))
	if err != nil {
		c.log.Warn("vision.extract.sanitize_failed", "req_id", rid, "error", err)
		return extract.Empty(), nil
	}
	if len(dropped) > 0 {
		c.log.Debug("vision.extract.sanitized", "req_id", rid, "dropped", dropped)
	}

	if err := ValidateAgainstSchema(ExtractionSchema(), cleaned); err != nil {
		// discard wholesale: a partially valid response is worse than none
		c.log.Warn("vision.extract.schema_validation_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.Empty(), nil
	}

	rec, err := decodeReceipt(cleaned, time.Now())
	if err != nil {
		c.log.Warn("vision.extract.unmarshal_failed", "req_id", rid, "error", err)
		return extract.Empty(), nil
	}

	c.log.Info("vision.extract.ok",
		"req_id", rid,
		"store_found", rec.StoreName != nil,
		"items", len(rec.Items),
		"confidence", rec.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision http error: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Warn("vision response body close error", "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vision status %d: %s", resp.StatusCode, truncate(string(raw), 512))
	}
	return raw, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
