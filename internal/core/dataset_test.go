package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/validata/internal/core"
)

// buildXLSX writes rows into the first sheet of a new workbook.
func buildXLSX(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseDataset_CSV(t *testing.T) {
	data := []byte("\xef\xbb\xbfID, Nombre ,Monto\n1,Ana,10.5\n\n2,,NA\n3,Eva,7\n")

	ds, err := core.ParseDataset("datos.CSV", data)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "nombre", "monto"}, ds.Columns)
	require.Equal(t, 3, ds.Len(), "blank rows are dropped")

	assert.Equal(t, core.Number(1), ds.Rows[0]["id"])
	assert.Equal(t, core.Text("Ana"), ds.Rows[0]["nombre"])
	assert.Equal(t, core.Number(10.5), ds.Rows[0]["monto"])
	assert.True(t, ds.Rows[1]["nombre"].IsMissing())
	assert.True(t, ds.Rows[1]["monto"].IsMissing())
}

func TestParseDataset_MixedColumnIsText(t *testing.T) {
	ds, err := core.ParseDataset("x.csv", []byte("codigo\n001\nA2\n"))
	require.NoError(t, err)
	assert.Equal(t, core.Text("001"), ds.Rows[0]["codigo"], "leading zeros survive in text columns")
}

func TestParseDataset_ShortRowsPadWithMissing(t *testing.T) {
	ds, err := core.ParseDataset("x.csv", []byte("a,b,c\n1,2\n"))
	require.NoError(t, err)
	assert.True(t, ds.Rows[0]["c"].IsMissing())
}

func TestParseDataset_HeaderNames(t *testing.T) {
	ds, err := core.ParseDataset("x.csv", []byte("a,,A\n1,2,3\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "unnamed_1", "a.1"}, ds.Columns)
}

func TestParseDataset_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
		want string
	}{
		{"empty", "x.csv", nil, "empty file"},
		{"only blank lines", "x.csv", []byte("\n\n"), "empty file"},
		{"bad encoding", "x.csv", []byte("a,b\n\xff\xfe,1\n"), "encoding error"},
		{"extra fields", "x.csv", []byte("a,b\n1,2,3\n"), "row 1 has 3 fields"},
		{"unsupported", "x.json", []byte("{}"), "unsupported format"},
		{"broken xlsx", "x.xlsx", []byte("not a zip"), "invalid xlsx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := core.ParseDataset(tt.file, tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrParse)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseDataset_XLSX(t *testing.T) {
	data := buildXLSX(t, [][]any{
		{"Producto", "Cantidad"},
		{"mesa", 4},
		{"silla", 12},
	})

	ds, err := core.ParseDataset("inventario.xlsx", data)
	require.NoError(t, err)
	assert.Equal(t, []string{"producto", "cantidad"}, ds.Columns)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, core.Number(12), ds.Rows[1]["cantidad"])
	assert.Equal(t, core.Text("silla"), ds.Rows[1]["producto"])
}

func TestAllowedFile(t *testing.T) {
	allowed := []string{"csv", "xlsx"}
	assert.True(t, core.AllowedFile("a.csv", allowed))
	assert.True(t, core.AllowedFile("A.XLSX", allowed))
	assert.False(t, core.AllowedFile("a.xls", allowed))
	assert.False(t, core.AllowedFile("csv", allowed))
	assert.True(t, core.AllowedFile("a.csv", nil), "nil falls back to the defaults")
	assert.Equal(t, "xlsx", core.Extension("report.final.XLSX"))
}

func TestMatchSchema(t *testing.T) {
	tests := []struct {
		name     string
		declared []string
		uploaded []string
		matched  bool
		missing  []string
		extra    []string
	}{
		{"exact", []string{"id", "nombre"}, []string{"id", "nombre"}, true, nil, nil},
		{"order and case", []string{"id", "nombre"}, []string{"NOMBRE", " id"}, true, nil, nil},
		{"extra column", []string{"id", "nombre"}, []string{"id", "nombre", "extra"}, false, nil, []string{"extra"}},
		{"missing column", []string{"id", "nombre"}, []string{"id"}, false, []string{"nombre"}, nil},
		{"both", []string{"a", "b"}, []string{"b", "c"}, false, []string{"a"}, []string{"c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := core.MatchSchema(tt.declared, tt.uploaded)
			assert.Equal(t, tt.matched, m.Matched)
			assert.Equal(t, tt.missing, m.Missing)
			assert.Equal(t, tt.extra, m.Extra)
		})
	}
}
