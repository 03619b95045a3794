package tabular

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

const (
	MIMECSV  = "text/csv"
	MIMETSV  = "text/tab-separated-values"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type format int

// record is one row of the source file with the 1-based line (CSV) or
// sheet row (XLSX) it started on.
type record struct {
	line  int
	cells []string
}

const (
	formatUnknown format = iota
	formatCSV
	formatTSV
	formatXLSX
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parser turns an uploaded CSV, TSV or XLSX file into a header list and
// rows keyed by header. Only the first worksheet of a workbook is read.
type Parser struct {
	maxRows int
}

func NewParser(maxRows int) *Parser {
	return &Parser{maxRows: maxRows}
}

func (p *Parser) Parse(ctx context.Context, filename, contentType string, r io.Reader) (domain.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.Table{}, fmt.Errorf("read upload: %w", err)
	}
	if len(bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))) == 0 {
		return domain.Table{}, &domain.MalformedFileError{Reason: "file is empty"}
	}

	var records []record
	switch detectFormat(filename, contentType, data) {
	case formatCSV:
		records, err = readDelimited(data, 0)
	case formatTSV:
		records, err = readDelimited(data, '\t')
	case formatXLSX:
		records, err = readWorkbook(data)
	default:
		return domain.Table{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, describe(filename, contentType))
	}
	if err != nil {
		return domain.Table{}, err
	}

	return p.buildTable(ctx, records)
}

func detectFormat(filename, contentType string, data []byte) format {
	sniffed := mimetype.Detect(data)
	if sniffed.Is(MIMEXLSX) {
		return formatXLSX
	}

	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mediaType {
		case MIMECSV, "application/csv":
			return formatCSV
		case MIMETSV:
			return formatTSV
		case MIMEXLSX:
			return formatXLSX
		}
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return formatCSV
	case ".tsv", ".tab":
		return formatTSV
	case ".xlsx":
		return formatXLSX
	}

	switch {
	case sniffed.Is(MIMETSV):
		return formatTSV
	case sniffed.Is(MIMECSV), sniffed.Is("text/plain"):
		return formatCSV
	}
	return formatUnknown
}

func describe(filename, contentType string) string {
	if contentType == "" {
		return filename
	}
	return fmt.Sprintf("%s (%s)", filename, contentType)
}

func readDelimited(data []byte, delimiter rune) ([]record, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if delimiter == 0 {
		delimiter = sniffDelimiter(data)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records []record
	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, &domain.MalformedFileError{Reason: err.Error()}
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record{line: line, cells: cells})
	}
}

// sniffDelimiter picks semicolon for spreadsheets exported with a
// continental locale, comma otherwise.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

func readWorkbook(data []byte) ([]record, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &domain.MalformedFileError{Reason: "cannot open workbook: " + err.Error()}
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, &domain.MalformedFileError{Reason: "workbook has no sheets"}
	}

	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, &domain.MalformedFileError{Reason: fmt.Sprintf("cannot read sheet %q: %v", sheets[0], err)}
	}
	records := make([]record, 0, len(rows))
	for i, cells := range rows {
		records = append(records, record{line: i + 1, cells: cells})
	}
	return records, nil
}

// buildTable numbers data rows by their distance from the header row, so
// blank lines skipped on the way still count and numbers match the file.
func (p *Parser) buildTable(ctx context.Context, records []record) (domain.Table, error) {
	headerAt := -1
	for i, rec := range records {
		if !isBlank(rec.cells) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return domain.Table{}, &domain.MalformedFileError{Reason: "no header row found"}
	}

	columns, err := headerColumns(records[headerAt].cells)
	if err != nil {
		return domain.Table{}, err
	}

	headerLine := records[headerAt].line
	rows := make([]domain.RawRow, 0, len(records)-headerAt-1)
	numbers := make([]int, 0, len(records)-headerAt-1)
	for i, rec := range records[headerAt+1:] {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return domain.Table{}, err
			}
		}
		if isBlank(rec.cells) {
			continue
		}
		if p.maxRows > 0 && len(rows) >= p.maxRows {
			return domain.Table{}, &domain.MalformedFileError{Reason: fmt.Sprintf("file has more than %d rows", p.maxRows)}
		}

		row := make(domain.RawRow, len(columns))
		for c, column := range columns {
			if c < len(rec.cells) {
				row[column] = rec.cells[c]
			} else {
				row[column] = ""
			}
		}
		rows = append(rows, row)
		numbers = append(numbers, rec.line-headerLine)
	}

	return domain.Table{Columns: columns, Rows: rows, RowNumbers: numbers}, nil
}

func headerColumns(cells []string) ([]string, error) {
	last := len(cells) - 1
	for last >= 0 && strings.TrimSpace(cells[last]) == "" {
		last--
	}

	columns := make([]string, 0, last+1)
	seen := make(map[string]struct{}, last+1)
	for i := 0; i <= last; i++ {
		name := strings.TrimSpace(cells[i])
		if name == "" {
			return nil, &domain.MalformedFileError{Reason: fmt.Sprintf("column %d has no header", i+1)}
		}
		if _, dup := seen[name]; dup {
			return nil, &domain.MalformedFileError{Reason: fmt.Sprintf("header %q appears more than once", name)}
		}
		seen[name] = struct{}{}
		columns = append(columns, name)
	}
	return columns, nil
}

func isBlank(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
