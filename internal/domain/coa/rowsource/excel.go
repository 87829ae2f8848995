package rowsource

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/contaplan/coa-engine/internal/domain/coa/model"
)

// sheetNameHints are sheet names tried before falling back to the first
// sheet, covering the usual labels of a chart-of-accounts tab.
var sheetNameHints = []string{"plan de cuentas", "cuentas", "catalogo", "coa"}

// ReadExcel materializes the chart-of-accounts sheet of an XLSX file. It
// prefers a sheet whose name suggests account data and falls back to the
// first sheet otherwise.
func ReadExcel(r io.Reader) ([]model.RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer f.Close()

	sheet := findAccountSheet(f)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyFile
	}

	rows := make([]model.RawRow, len(raw))
	for i, cells := range raw {
		rows[i] = model.RawRow{SourceIndex: i, Cells: cells}
	}
	return rows, nil
}

func findAccountSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ""
	}
	for _, sheet := range sheets {
		lower := strings.ToLower(sheet)
		for _, hint := range sheetNameHints {
			if strings.Contains(lower, hint) {
				return sheet
			}
		}
	}
	return sheets[0]
}
