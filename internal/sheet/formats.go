package sheet

import (
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"
)

// Format identifies how a fetched source body is encoded.
type Format int

const (
	FormatDelimited Format = iota
	FormatHTML
	FormatXLSX
)

func (f Format) String() string {
	switch f {
	case FormatHTML:
		return "html"
	case FormatXLSX:
		return "xlsx"
	default:
		return "delimited"
	}
}

// ParseHTMLTable reads the first <table> of a published sheet page.
// Header cells (th) and data cells (td) are both taken as cells.
func ParseHTMLTable(r io.Reader) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	// Google's pubhtml view prefixes every row with a row-number header cell.
	doc.Find("th.row-headers-background, td.freezebar-cell").Remove()

	var raw [][]string
	doc.Find("table").First().Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var row []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			row = append(row, cell.Text())
		})
		raw = append(raw, row)
	})

	return normalizeRows(raw), nil
}

// ParseXLSX reads the first worksheet of an xlsx workbook.
func ParseXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	return normalizeRows(raw), nil
}

// ParseAs decodes body according to format.
func ParseAs(format Format, body io.Reader) ([][]string, error) {
	switch format {
	case FormatHTML:
		return ParseHTMLTable(body)
	case FormatXLSX:
		return ParseXLSX(body)
	default:
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}
		return Parse(string(data)), nil
	}
}
