// Package export renders extraction results into an XLSX review workbook
// for manual claim adjudication.
package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"billscan/internal/logger"
	"billscan/pkg/models"
)

const (
	sheetLineItems = "Line Items"
	sheetTotals    = "Totals"
	sheetSignals   = "Fraud Signals"
)

// Service produces XLSX bytes from extraction results.
type Service struct {
	log zerolog.Logger
}

// NewService creates an export service.
func NewService() *Service {
	return &Service{log: logger.WithComponent("export")}
}

// WorkbookXLSX returns an XLSX workbook with the reconstructed line items,
// the total candidates and every fraud signal, one sheet each. Failed
// extractions produce a workbook with only the summary rows.
func (s *Service) WorkbookXLSX(result models.ExtractionResult) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()

	if err := s.writeLineItems(f, result); err != nil {
		return nil, err
	}
	if err := s.writeTotals(f, result); err != nil {
		return nil, err
	}
	if err := s.writeSignals(f, result); err != nil {
		return nil, err
	}

	// Drop the default sheet and activate the first real one.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	if idx, err := f.GetSheetIndex(sheetLineItems); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	itemCount := 0
	signalCount := 0
	if result.Bill != nil {
		itemCount = len(result.Bill.LineItems)
		signalCount = len(result.Bill.FraudSignals)
	}
	s.log.Info().
		Str("status", string(result.Meta.Status)).
		Int("line_items", itemCount).
		Int("fraud_signals", signalCount).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("workbook rendered")
	return buf.Bytes(), nil
}

func (s *Service) writeLineItems(f *excelize.File, result models.ExtractionResult) error {
	if _, err := f.NewSheet(sheetLineItems); err != nil {
		return err
	}

	headers := []string{"Page", "Row", "Description", "Quantity", "Unit Price", "Amount", "Confidence", "Derived Fields"}
	writeHeaderRow(f, sheetLineItems, headers)

	row := 2
	if result.Bill != nil {
		for _, item := range result.Bill.LineItems {
			write := cellWriter(f, sheetLineItems, row)
			write(1, item.Page)
			write(2, item.RowIndex)
			write(3, item.Description)
			writeOptional(write, 4, item.Quantity)
			writeOptional(write, 5, item.UnitPrice)
			writeOptional(write, 6, item.Amount)
			write(7, fmt.Sprintf("%.2f", item.Confidence))
			write(8, strings.Join(item.Derived, ", "))
			row++
		}
	}

	_ = f.SetColWidth(sheetLineItems, "C", "C", 44)
	_ = f.SetColWidth(sheetLineItems, "D", "G", 12)
	_ = f.SetColWidth(sheetLineItems, "H", "H", 18)
	return nil
}

func (s *Service) writeTotals(f *excelize.File, result models.ExtractionResult) error {
	if _, err := f.NewSheet(sheetTotals); err != nil {
		return err
	}

	headers := []string{"Label", "Value", "Currency", "Kind", "Page", "Selected"}
	writeHeaderRow(f, sheetTotals, headers)

	row := 2
	if result.Bill != nil {
		for _, cand := range result.Bill.TotalCandidates {
			write := cellWriter(f, sheetTotals, row)
			write(1, cand.Label)
			write(2, cand.Value)
			write(3, cand.Currency)
			write(4, string(cand.Kind))
			write(5, cand.Page)
			selected := ""
			if ft := result.Bill.FinalTotal; ft != nil && ft.Page == cand.Page && ft.RowIndex == cand.RowIndex {
				selected = "yes"
			}
			write(6, selected)
			row++
		}

		agg := result.Bill.Aggregates
		row++
		write := cellWriter(f, sheetTotals, row)
		write(1, "Line items sum")
		write(2, agg.LineItemsTotal)
		row++
		write = cellWriter(f, sheetTotals, row)
		write(1, "Reconciliation")
		write(2, string(agg.ReconciliationStatus))
		write(3, fmt.Sprintf("difference %.2f", agg.Difference))
	}

	_ = f.SetColWidth(sheetTotals, "A", "A", 30)
	_ = f.SetColWidth(sheetTotals, "B", "B", 14)
	return nil
}

func (s *Service) writeSignals(f *excelize.File, result models.ExtractionResult) error {
	if _, err := f.NewSheet(sheetSignals); err != nil {
		return err
	}

	headers := []string{"Kind", "Severity", "Page", "Row", "Message", "Evidence"}
	writeHeaderRow(f, sheetSignals, headers)

	row := 2
	if result.Bill != nil {
		for _, sig := range result.Bill.FraudSignals {
			write := cellWriter(f, sheetSignals, row)
			write(1, string(sig.Kind))
			write(2, string(sig.Severity))
			write(3, sig.Page)
			if sig.RowIndex != nil {
				write(4, *sig.RowIndex)
			}
			write(5, sig.Message)
			write(6, formatEvidence(sig.Evidence))
			row++
		}
	}
	for _, note := range result.Meta.ProcessingNotes {
		write := cellWriter(f, sheetSignals, row)
		write(1, "NOTE")
		write(5, note)
		row++
	}
	if result.Meta.Status == models.StatusFailed {
		write := cellWriter(f, sheetSignals, row)
		write(1, "FAILURE")
		write(2, string(models.SeverityHigh))
		write(5, result.Meta.Reason)
	}

	_ = f.SetColWidth(sheetSignals, "A", "B", 22)
	_ = f.SetColWidth(sheetSignals, "E", "E", 60)
	_ = f.SetColWidth(sheetSignals, "F", "F", 40)
	return nil
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func cellWriter(f *excelize.File, sheet string, row int) func(col int, v any) {
	return func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func writeOptional(write func(int, any), col int, v *float64) {
	if v != nil {
		write(col, *v)
	}
}

func formatEvidence(ev map[string]any) string {
	if len(ev) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ev))
	for k, v := range ev {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
