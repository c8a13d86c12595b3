package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/receiptwise/pipeline/internal/repository"
)

// Service is a tiny façade over the store that produces XLSX bytes for exports.
type Service struct {
	store  repository.Store
	logger *slog.Logger
}

func NewService(store repository.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// ExportXLSX returns a workbook with every committed extraction: a Receipts
// sheet with one row per receipt and an Items sheet with one row per line item.
func (s *Service) ExportXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	recs, err := s.store.ListCompleted(ctx)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}

	f := excelize.NewFile()
	const receiptSheet = "Receipts"
	const itemSheet = "Items"
	if index, _ := f.GetSheetIndex(receiptSheet); index == -1 {
		if _, err := f.NewSheet(receiptSheet); err != nil {
			return nil, err
		}
	}
	if _, err := f.NewSheet(itemSheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(receiptSheet)
	f.SetActiveSheet(activeIndex)

	receiptHeaders := []string{
		"Job ID",
		"Store",
		"Purchase Date",
		"Total",
		"Currency",
		"Items",
		"Reconciled",
		"Confidence",
	}
	for i, h := range receiptHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(receiptSheet, cell, h)
	}
	itemHeaders := []string{"Job ID", "Item", "Price", "Quantity", "Confidence"}
	for i, h := range itemHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(itemSheet, cell, h)
	}

	receiptRow := 2
	itemRow := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, receiptRow)
			_ = f.SetCellValue(receiptSheet, cell, v)
		}

		write(1, r.JobID.String())
		if r.Receipt.StoreName != nil {
			write(2, *r.Receipt.StoreName)
		} else {
			write(2, "")
		}
		if r.Receipt.PurchaseDate != nil {
			write(3, r.Receipt.PurchaseDate.Format("2006-01-02"))
		} else {
			write(3, "")
		}
		if r.Receipt.TotalAmount != nil {
			write(4, *r.Receipt.TotalAmount)
		} else {
			write(4, "")
		}
		write(5, r.Receipt.Currency)
		write(6, len(r.Receipt.Items))
		write(7, r.Receipt.Reconciled)
		write(8, r.Receipt.Confidence)
		receiptRow++

		for _, it := range r.Receipt.Items {
			writeItem := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, itemRow)
				_ = f.SetCellValue(itemSheet, cell, v)
			}
			writeItem(1, r.JobID.String())
			writeItem(2, it.Name)
			writeItem(3, it.Price)
			writeItem(4, it.Quantity)
			writeItem(5, it.Confidence)
			itemRow++
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(receiptSheet, "A", "A", 38) // job id
	_ = f.SetColWidth(receiptSheet, "B", "B", 28) // store
	_ = f.SetColWidth(receiptSheet, "C", "C", 14) // date
	_ = f.SetColWidth(receiptSheet, "D", "E", 12) // total, currency
	_ = f.SetColWidth(itemSheet, "A", "A", 38)
	_ = f.SetColWidth(itemSheet, "B", "B", 36)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"receipts", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
