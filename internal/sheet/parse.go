// Package sheet turns spreadsheet exports into rectangular-ish tables of
// trimmed string cells. Delimited text, published HTML tables and xlsx
// workbooks all end up in the same [][]string shape.
package sheet

import (
	"strings"
)

// InferDelimiter picks the field delimiter from the first physical line.
// Semicolon wins only when it strictly outnumbers commas.
func InferDelimiter(text string) rune {
	first := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		first = text[:i]
	}
	first = strings.TrimSuffix(first, "\r")

	if strings.Count(first, ";") > strings.Count(first, ",") {
		return ';'
	}
	return ','
}

// Parse splits delimited text into rows of trimmed cells. Quoted fields may
// hold delimiters, doubled quotes and line breaks. Rows whose cells are all
// blank are dropped. Parse never fails; bad input gives a partial result.
func Parse(text string) [][]string {
	delim := InferDelimiter(text)

	var (
		rows     [][]string
		row      []string
		cur      strings.Builder
		inQuotes bool
	)

	endField := func() {
		row = append(row, strings.TrimSpace(cur.String()))
		cur.Reset()
	}
	endRow := func() {
		endField()
		if !blank(row) {
			rows = append(rows, row)
		}
		row = nil
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				cur.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case c == delim && !inQuotes:
			endField()
		case (c == '\r' || c == '\n') && !inQuotes:
			if c == '\r' && i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
			endRow()
		default:
			cur.WriteRune(c)
		}
	}

	if cur.Len() > 0 || len(row) > 0 {
		endRow()
	}

	return rows
}

func blank(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}

// normalizeRows applies the trimming and blank-row rules of Parse to rows
// produced by the other readers.
func normalizeRows(in [][]string) [][]string {
	out := make([][]string, 0, len(in))
	for _, r := range in {
		row := make([]string, len(r))
		for i, cell := range r {
			row[i] = strings.TrimSpace(cell)
		}
		if len(row) == 0 || blank(row) {
			continue
		}
		out = append(out, row)
	}
	return out
}
