// Package report renders scan results to the text, CSV, spreadsheet and
// chart sinks
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	excelize "github.com/xuri/excelize/v2"

	"github.com/jlchn/tide/internal/common"
	"github.com/jlchn/tide/internal/interfaces"
	"github.com/jlchn/tide/internal/models"
)

// Ensure Service implements ReportService
var _ interfaces.ReportService = (*Service)(nil)

// Service implements ReportService
type Service struct {
	cfg    *common.Config
	logger *common.Logger
}

// NewService creates a new report service
func NewService(cfg *common.Config, logger *common.Logger) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger,
	}
}

// WriteCSV serializes the full result table to path. Every record becomes one
// row; the header row carries the column keys.
func (s *Service) WriteCSV(result *models.ScanResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer f.Close()

	cols := Columns()
	w := csv.NewWriter(f)

	header := make([]string, len(cols))
	for i, col := range cols {
		header[i] = col.Key
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	row := make([]string, len(cols))
	for i := range result.Records {
		rec := &result.Records[i]
		for j, col := range cols {
			row[j] = col.Cell(rec).String()
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row for %s: %w", rec.Ticker, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	s.logger.Info().
		Str("path", path).
		Int("rows", len(result.Records)).
		Msg("CSV report written")

	return nil
}

// WriteXLSX serializes the full result table to a spreadsheet at path, one
// sheet per market in first-seen record order. Numeric cells are written as
// numbers so the sheet sorts and filters correctly.
func (s *Service) WriteXLSX(result *models.ScanResult, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	cols := Columns()

	sheets, order := groupByMarket(result)
	for si, market := range order {
		sheet := sheetName(market)
		if si == 0 {
			f.SetSheetName(f.GetSheetName(0), sheet)
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return fmt.Errorf("failed to add sheet %s: %w", sheet, err)
			}
		}

		for j, col := range cols {
			cell, err := excelize.CoordinatesToCellName(j+1, 1)
			if err != nil {
				return fmt.Errorf("failed to map header cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, col.Key); err != nil {
				return fmt.Errorf("failed to write header %s: %w", col.Key, err)
			}
		}

		for ri, rec := range sheets[market] {
			for j, col := range cols {
				cell, err := excelize.CoordinatesToCellName(j+1, ri+2)
				if err != nil {
					return fmt.Errorf("failed to map cell: %w", err)
				}
				if err := f.SetCellValue(sheet, cell, col.Cell(rec).Value()); err != nil {
					return fmt.Errorf("failed to write cell %s for %s: %w", col.Key, rec.Ticker, err)
				}
			}
		}

		if err := f.SetColWidth(sheet, "A", "B", 16); err != nil {
			return fmt.Errorf("failed to size columns: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save xlsx file: %w", err)
	}

	s.logger.Info().
		Str("path", path).
		Int("rows", len(result.Records)).
		Int("sheets", len(order)).
		Msg("Spreadsheet report written")

	return nil
}

// groupByMarket splits records into per-market groups, keeping record order
// inside each group and market order by first appearance. An empty result
// still yields one sheet so the workbook is valid.
func groupByMarket(result *models.ScanResult) (map[string][]*models.OutputRecord, []string) {
	sheets := make(map[string][]*models.OutputRecord)
	var order []string
	for i := range result.Records {
		rec := &result.Records[i]
		if _, ok := sheets[rec.Market]; !ok {
			order = append(order, rec.Market)
		}
		sheets[rec.Market] = append(sheets[rec.Market], rec)
	}
	if len(order) == 0 {
		market := result.Market
		if market == "" {
			market = "scan"
		}
		sheets[market] = nil
		order = append(order, market)
	}
	return sheets, order
}

func sheetName(market string) string {
	return strings.ToUpper(market)
}
