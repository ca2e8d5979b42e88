// Package tabular reads route rows and writes them back with the maturity
// columns inserted.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// Column positions in the route export.
const (
	ColRoute      = 0
	ColURL        = 2
	ColDifficulty = 6
	// InsertAt is where the maturity columns go; every column from here on
	// shifts right by two.
	InsertAt = 7
)

// Output header names.
const (
	HeaderDifficulty = "Difficulty"
	HeaderRating     = "Maturity Rating"
	HeaderReason     = "Maturity Reason"
)

// ErrShortRow is returned for rows too narrow to take the inserted columns.
var ErrShortRow = errors.New("row has too few columns")

// Row is one data row of the route export.
type Row struct {
	Line   int // 1-based line number, header is line 1
	Fields []string
}

// Route returns the route name column.
func (r Row) Route() string { return r.Fields[ColRoute] }

// URL returns the route URL column.
func (r Row) URL() string { return r.Fields[ColURL] }

func checkWidth(fields []string) error {
	if len(fields) < InsertAt {
		return fmt.Errorf("%w: got %d, need at least %d", ErrShortRow, len(fields), InsertAt)
	}
	return nil
}

// Reader reads the header and data rows of a route export.
type Reader struct {
	r    *csv.Reader
	line int
}

// NewReader creates a reader. Rows may have any width of at least InsertAt.
func NewReader(in io.Reader) *Reader {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	return &Reader{r: r}
}

// Header reads the header row. It must be called before Next.
func (r *Reader) Header() ([]string, error) {
	header, err := r.r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("reading header: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	r.line++
	if err := checkWidth(header); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	return header, nil
}

// Next returns the next data row, or io.EOF.
func (r *Reader) Next() (Row, error) {
	fields, err := r.r.Read()
	if err == io.EOF {
		return Row{}, io.EOF
	}
	r.line++
	if err != nil {
		return Row{}, fmt.Errorf("line %d: %w", r.line, err)
	}
	if err := checkWidth(fields); err != nil {
		return Row{}, fmt.Errorf("line %d: %w", r.line, err)
	}
	return Row{Line: r.line, Fields: fields}, nil
}

// All reads every remaining data row.
func (r *Reader) All() ([]Row, error) {
	var rows []Row
	for {
		row, err := r.Next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

// OutputHeader renames the difficulty column and inserts the maturity
// headers. The input slice is not modified.
func OutputHeader(header []string) []string {
	renamed := append([]string(nil), header...)
	renamed[ColDifficulty] = HeaderDifficulty
	return Insert(renamed, HeaderRating, HeaderReason)
}

// Insert returns fields with rating and reason placed at InsertAt.
func Insert(fields []string, rating, reason string) []string {
	out := make([]string, 0, len(fields)+2)
	out = append(out, fields[:InsertAt]...)
	out = append(out, rating, reason)
	return append(out, fields[InsertAt:]...)
}

// Writer writes output rows, flushing after each one so a failed run keeps
// everything already written.
type Writer struct {
	w *csv.Writer
}

// NewWriter creates a writer.
func NewWriter(out io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(out)}
}

// Write writes one row and flushes it.
func (w *Writer) Write(fields []string) error {
	if err := w.w.Write(fields); err != nil {
		return err
	}
	w.w.Flush()
	return w.w.Error()
}
