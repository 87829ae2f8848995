package rowsource

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, sheets map[string][][]string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestReadExcelFirstSheet(t *testing.T) {
	buf := buildWorkbook(t, map[string][][]string{
		"Hoja1": {
			{"CODIGO", "DESCRIPCION"},
			{"100-00-00", "ACTIVO"},
		},
	})

	rows, err := ReadExcel(buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"CODIGO", "DESCRIPCION"}, rows[0].Cells)
	assert.Equal(t, 1, rows[1].SourceIndex)
}

func TestReadExcelPrefersAccountSheet(t *testing.T) {
	buf := buildWorkbook(t, map[string][][]string{
		"Resumen":         {{"irrelevante"}},
		"Plan de Cuentas": {{"1", "ACTIVO"}},
	})

	rows, err := ReadExcel(buf)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, []string{"1", "ACTIVO"}, rows[0].Cells)
}

func TestReadExcelNotAWorkbook(t *testing.T) {
	_, err := ReadExcel(bytes.NewReader([]byte("not an xlsx")))
	assert.Error(t, err)
}
