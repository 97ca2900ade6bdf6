package sheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestInferDelimiter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want rune
	}{
		{"comma only", "a,b,c\n", ','},
		{"semicolon majority", "a;b;c,d\n", ';'},
		{"tie goes to comma", "a;b,c\n", ','},
		{"no delimiters", "plato\n", ','},
		{"later lines ignored", "a;b\nc,d,e,f,g\n", ';'},
		{"crlf first line", "a;b\r\nc,d\r\n", ';'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferDelimiter(tt.text))
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want [][]string
	}{
		{
			name: "semicolon applies to every row",
			text: "plato;tipo\nPasta, con tomate;pasta\n",
			want: [][]string{{"plato", "tipo"}, {"Pasta, con tomate", "pasta"}},
		},
		{
			name: "escaped quotes and embedded newline",
			text: "\"He said \"\"hi\"\"\nsecond line\",x\n",
			want: [][]string{{"He said \"hi\"\nsecond line", "x"}},
		},
		{
			name: "blank row elision",
			text: "a,b\n,\nc,d",
			want: [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name: "crlf is one terminator",
			text: "a,b\r\nc,d\r\n",
			want: [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name: "lone carriage return ends a row",
			text: "a,b\rc,d",
			want: [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name: "trailing partial row is kept",
			text: "a,b\nc",
			want: [][]string{{"a", "b"}, {"c"}},
		},
		{
			name: "ragged rows pass through",
			text: "a,b,c\nd\n",
			want: [][]string{{"a", "b", "c"}, {"d"}},
		},
		{
			name: "cells are trimmed",
			text: "  a ,\tb  \n",
			want: [][]string{{"a", "b"}},
		},
		{
			name: "quoted delimiter stays in field",
			text: "\"x,y\",z\n",
			want: [][]string{{"x,y", "z"}},
		},
		{
			name: "json payload cell",
			text: "id,plan\n1,\"{\"\"id\"\":\"\"p1\"\",\"\"days\"\":2}\"\n",
			want: [][]string{{"id", "plan"}, {"1", `{"id":"p1","days":2}`}},
		},
		{
			name: "only blank lines",
			text: "\n\n,,\n",
			want: nil,
		},
		{
			name: "empty input",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_UnterminatedQuoteNeverFails(t *testing.T) {
	got := Parse("a,\"b\nc,d")
	require.Len(t, got, 1)
	assert.Equal(t, []string{"a", "b\nc,d"}, got[0])
}

func TestParseHTMLTable(t *testing.T) {
	page := `<html><body>
<table class="waffle">
  <tr><th class="row-headers-background">1</th><th>Plato</th><th>Categoría</th></tr>
  <tr><th class="row-headers-background">2</th><td> Lentejas </td><td>legumbres</td></tr>
  <tr><th class="row-headers-background">3</th><td></td><td> </td></tr>
  <tr><th class="row-headers-background">4</th><td>Tortilla</td></tr>
</table>
<table><tr><td>ignored</td></tr></table>
</body></html>`

	rows, err := ParseHTMLTable(strings.NewReader(page))
	require.NoError(t, err)

	want := [][]string{
		{"Plato", "Categoría"},
		{"Lentejas", "legumbres"},
		{"Tortilla"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("ParseHTMLTable() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheetName := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheetName, "A1", "Nombre"))
	require.NoError(t, f.SetCellValue(sheetName, "B1", "Sábado"))
	require.NoError(t, f.SetCellValue(sheetName, "A2", "  Paella  "))
	require.NoError(t, f.SetCellValue(sheetName, "B2", "si"))
	require.NoError(t, f.SetCellValue(sheetName, "A4", "Cocido"))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	rows, err := ParseXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	want := [][]string{
		{"Nombre", "Sábado"},
		{"Paella", "si"},
		{"Cocido"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("ParseXLSX() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseXLSX_NotAWorkbook(t *testing.T) {
	_, err := ParseXLSX(strings.NewReader("plato,tipo\n"))
	assert.Error(t, err)
}
