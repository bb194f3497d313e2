package dataprocessing

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"coefcalc/pkg/contracts/domain"
)

// DefaultDelimiter is the field separator of both input families.
const DefaultDelimiter = ';'

// ErrTooManyRows is returned by ReadTable when a file holds more data rows
// than ReaderOptions.MaxRows.
var ErrTooManyRows = errors.New("too many rows")

// ReaderOptions configures ReadTable.
type ReaderOptions struct {
	// Delimiter separates fields. Zero means DefaultDelimiter.
	Delimiter rune
	// MaxRows caps the number of data rows. Zero means unlimited.
	MaxRows int
}

// Table is a parsed file: normalized header names and positional rows.
// Every row has exactly len(Headers) fields.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Record zips row i against the headers. Later duplicate header names win.
func (t *Table) Record(i int) domain.RawRecord {
	rec := make(domain.RawRecord, len(t.Headers))
	for j, h := range t.Headers {
		rec[h] = t.Rows[i][j]
	}
	return rec
}

// Records returns every row as a RawRecord.
func (t *Table) Records() []domain.RawRecord {
	if t.Len() == 0 {
		return []domain.RawRecord{}
	}
	out := make([]domain.RawRecord, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Record(i)
	}
	return out
}

// DecodeText wraps r so that a leading UTF-8 or UTF-16 byte order mark is
// consumed and the content is delivered as UTF-8.
func DecodeText(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// ReadTable reads a delimited text file. Blank lines are ignored, the first
// non-blank line is the header and every further line is a data row. A file
// without data rows yields an empty table, not an error.
func ReadTable(r io.Reader, opts ReaderOptions) (*Table, error) {
	delim := opts.Delimiter
	if delim == 0 {
		delim = DefaultDelimiter
	}

	br := bufio.NewReaderSize(DecodeText(r), 64*1024)
	table := &Table{}
	headerSeen := false

	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read line %d: %w", table.Len()+1, err)
		}

		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) != "" {
			if !headerSeen {
				table.Headers = SplitHeader(line, delim)
				headerSeen = true
			} else {
				if opts.MaxRows > 0 && len(table.Rows) >= opts.MaxRows {
					return nil, fmt.Errorf("%w: more than %d data rows", ErrTooManyRows, opts.MaxRows)
				}
				table.Rows = append(table.Rows, fitRow(SplitRow(line, delim), len(table.Headers)))
			}
		}

		if err == io.EOF {
			break
		}
	}

	if len(table.Rows) == 0 {
		table.Rows = nil
	}
	return table, nil
}

// ParseCSV parses in-memory file text with the default delimiter and returns
// the data rows as records.
func ParseCSV(text string) []domain.RawRecord {
	table, err := ReadTable(strings.NewReader(text), ReaderOptions{})
	if err != nil {
		return []domain.RawRecord{}
	}
	return table.Records()
}

// SplitHeader splits a header line and normalizes each name: quotes removed,
// surrounding whitespace trimmed and inner runs collapsed to one space.
func SplitHeader(line string, delim rune) []string {
	parts := strings.Split(line, string(delim))
	headers := make([]string, len(parts))
	for i, p := range parts {
		headers[i] = NormalizeHeader(p)
	}
	return headers
}

// NormalizeHeader cleans one header token.
func NormalizeHeader(h string) string {
	h = strings.ReplaceAll(h, `"`, "")
	return strings.Join(strings.Fields(h), " ")
}

// SplitRow splits a data line. A double quote toggles the quoted state and
// is dropped; the delimiter only separates fields outside quotes. Each field
// is trimmed. An unbalanced quote keeps the rest of the line in one field.
func SplitRow(line string, delim rune) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == delim && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(fields, strings.TrimSpace(current.String()))
}

func fitRow(fields []string, width int) []string {
	if len(fields) == width {
		return fields
	}
	row := make([]string, width)
	copy(row, fields)
	return row
}
