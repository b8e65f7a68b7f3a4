package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"

	"ordercancel/internal"
	"ordercancel/internal/util"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var ErrNoHeader = errors.New("upload has no header row")

func ReadFile(path string) (internal.Table, internal.Format, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return internal.Table{}, "", err
	}
	return ReadTable(filepath.Base(path), content)
}

// ReadTable parses an upload into a Table. The first non-empty row is the
// header; fully empty rows are skipped and short rows are padded.
func ReadTable(name string, content []byte) (internal.Table, internal.Format, error) {
	format, err := DetectFormat(name, content)
	if err != nil {
		return internal.Table{}, "", err
	}

	var (
		rows    [][]string
		numeric [][]bool
	)
	switch format {
	case internal.FormatCSV:
		rows, err = readCSV(content)
	case internal.FormatXLSX:
		rows, numeric, err = readXLSX(content)
	case internal.FormatHTML:
		rows, err = readHTML(content)
	}
	if err != nil {
		return internal.Table{}, format, fmt.Errorf("read %s: %w", name, err)
	}

	table, err := buildTable(rows, numeric)
	if err != nil {
		return internal.Table{}, format, fmt.Errorf("read %s: %w", name, err)
	}
	return table, format, nil
}

func readCSV(content []byte) ([][]string, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = sniffDelimiter(content)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

// sniffDelimiter looks at the header line only. Spreadsheet exports in the
// id-ID locale use ';' because ',' is the decimal separator.
func sniffDelimiter(content []byte) rune {
	line := content
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

// readXLSX returns the first sheet as display text. Cells stored as numbers
// are replaced by their raw value and marked, so "1.234" typed as a number
// is never mistaken for a thousands group later. Number cells whose display
// is not numeric (dates, times) keep their display text.
func readXLSX(content []byte) ([][]string, [][]bool, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, ErrNoHeader
	}
	sheet := sheets[0]
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, err
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, err
	}

	numeric := make([][]bool, len(rows))
	for r, row := range rows {
		numeric[r] = make([]bool, len(row))
		for c, text := range row {
			if r >= len(raw) || c >= len(raw[r]) || strings.TrimSpace(text) == "" {
				continue
			}
			value := strings.TrimSpace(raw[r][c])
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				continue
			}
			if _, err := util.ParseNumber(text); err != nil {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, nil, err
			}
			typ, err := f.GetCellType(sheet, axis)
			if err != nil {
				return nil, nil, err
			}
			if typ != excelize.CellTypeNumber && typ != excelize.CellTypeUnset {
				continue
			}
			row[c] = value
			numeric[r][c] = true
		}
	}
	return rows, numeric, nil
}

func readHTML(content []byte) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, ErrNoHeader
	}

	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := []string{}
		tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, util.NormalizeSpaces(cell.Text()))
		})
		rows = append(rows, cells)
	})
	return rows, nil
}

func buildTable(rows [][]string, numeric [][]bool) (internal.Table, error) {
	start := -1
	for i, row := range rows {
		if !emptyRow(row) {
			start = i
			break
		}
	}
	if start < 0 {
		return internal.Table{}, ErrNoHeader
	}

	header := rows[start]
	width := len(header)
	for _, row := range rows[start+1:] {
		width = max(width, len(row))
	}

	table := internal.Table{Columns: headerNames(header, width)}
	for i := start + 1; i < len(rows); i++ {
		row := rows[i]
		if emptyRow(row) {
			continue
		}
		padded := make([]string, width)
		copy(padded, row)
		table.Rows = append(table.Rows, padded)
		table.SourceRows = append(table.SourceRows, i-start)
		if numeric != nil {
			flags := make([]bool, width)
			if i < len(numeric) {
				copy(flags, numeric[i])
			}
			table.Numeric = append(table.Numeric, flags)
		}
	}
	return table, nil
}

// headerNames normalises header cells, names blank ones "Unnamed: i" and
// suffixes repeats with ".1", ".2" so every column stays addressable.
func headerNames(header []string, width int) []string {
	names := make([]string, width)
	used := make(map[string]struct{}, width)
	seen := make(map[string]int, width)
	for i := range names {
		name := ""
		if i < len(header) {
			name = util.NormalizeColumnName(header[i])
		}
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		base := name
		for {
			if _, dup := used[name]; !dup {
				break
			}
			seen[base]++
			name = base + "." + strconv.Itoa(seen[base])
		}
		used[name] = struct{}{}
		names[i] = name
	}
	return names
}

func emptyRow(row []string) bool {
	for _, c := range row {
		if util.NormalizeSpaces(c) != "" {
			return false
		}
	}
	return true
}
