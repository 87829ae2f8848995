package detect

import (
	"strings"

	"github.com/contaplan/coa-engine/internal/domain/coa/model"
)

// MergeColumns concatenates the given code columns of every row, left to
// right, zero-padding each segment to its width, and returns canonical
// (code, name) rows for the later pipeline stages. When totalWidth > 0 the
// merged code is right-padded with zeros to that width and truncated to it,
// which is how compact PUCT seeds ("1") expand to the full 9-digit code.
//
// The name is taken from the first column after the rightmost code column.
// Header rows and rows whose code columns hold no digits at all are dropped;
// every other filtering decision belongs to the import pipeline.
func MergeColumns(rows []model.RawRow, codeColumns []int, paddingWidths []int, totalWidth int) []model.RawRow {
	if len(codeColumns) == 0 {
		return rows
	}

	nameColumn := 0
	for _, col := range codeColumns {
		if col >= nameColumn {
			nameColumn = col + 1
		}
	}

	out := make([]model.RawRow, 0, len(rows))
	for _, row := range rows {
		if isHeaderRow(row) {
			continue
		}

		var code strings.Builder
		hasDigits := false
		for i, col := range codeColumns {
			cell := row.Cell(col)
			if containsDigit(cell) {
				hasDigits = true
			}
			width := 0
			if i < len(paddingWidths) {
				width = paddingWidths[i]
			}
			code.WriteString(padLeftZero(cell, width))
		}
		if !hasDigits {
			continue
		}

		merged := code.String()
		if totalWidth > 0 {
			merged = padRightZero(merged, totalWidth)
			if len(merged) > totalWidth {
				merged = merged[:totalWidth]
			}
		}

		out = append(out, model.RawRow{
			SourceIndex: row.SourceIndex,
			Cells:       []string{merged, row.Cell(nameColumn)},
		})
	}
	return out
}

func padLeftZero(s string, width int) string {
	if s == "" && width > 0 {
		return strings.Repeat("0", width)
	}
	for len(s) < width {
		s = "0" + s
	}
	return s
}

func padRightZero(s string, width int) string {
	for len(s) < width {
		s += "0"
	}
	return s
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
