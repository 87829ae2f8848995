// Package rowsource materializes raw rows from spreadsheet files. The
// pipeline consumes the rows fully before it starts, so every reader returns
// a complete slice rather than a stream.
package rowsource

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/contaplan/coa-engine/internal/domain/coa/model"
)

// ErrEmptyFile means the source held no rows at all.
var ErrEmptyFile = errors.New("file contains no rows")

// ReadCSV parses delimited text into raw rows. The delimiter is sniffed from
// the first non-empty line (semicolon, tab, comma or pipe); a UTF-8 BOM is
// stripped and non-UTF-8 input is decoded as Latin-1, since exports from
// Spanish-locale spreadsheet tools regularly arrive that way.
func ReadCSV(r io.Reader) ([]model.RawRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	data = normalizeBytes(data)

	delimiter := detectDelimiter(data)
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows []model.RawRow
	index := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv line %d: %w", index+1, err)
		}
		rows = append(rows, model.RawRow{SourceIndex: index, Cells: record})
		index++
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

func normalizeBytes(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}
	if utf8.Valid(data) {
		return data
	}
	// Latin-1: every byte is the same code point.
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return []byte(string(runes))
}

func detectDelimiter(data []byte) rune {
	line := ""
	for _, candidate := range strings.Split(string(data), "\n") {
		if trimmed := strings.TrimRight(candidate, "\r"); strings.TrimSpace(trimmed) != "" {
			line = trimmed
			break
		}
	}

	delimiters := []rune{';', '\t', ',', '|'}
	best := ','
	bestCount := 0
	for _, d := range delimiters {
		if count := strings.Count(line, string(d)); count > bestCount {
			bestCount = count
			best = d
		}
	}
	return best
}
