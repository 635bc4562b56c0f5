// Package dataset parses uploaded tabular files for preview and for the
// column hints given to the model.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrUnsupported indicates a file that is not CSV or TSV.
var ErrUnsupported = errors.New("unsupported dataset format (use .csv or .tsv)")

// ErrEmpty indicates a file without a header row.
var ErrEmpty = errors.New("dataset is empty")

// Options controls parsing.
type Options struct {
	// Delimiter for CSV. If 0, picked from the extension or sniffed.
	Delimiter rune
	// MaxRows limits rows kept in memory; 0 means unlimited. Raw bytes are
	// always kept in full for upload.
	MaxRows int
	// PreviewRows is the number of rows shown when the full toggle is off.
	PreviewRows int
}

// DefaultOptions returns reasonable defaults.
func DefaultOptions() Options {
	return Options{MaxRows: 100000, PreviewRows: 5}
}

// Column is a header entry with its inferred kind.
type Column struct {
	Name    string
	Kind    string // numeric|datetime|categorical|text|empty
	Missing int
	Unique  int
}

// Dataset is one uploaded file.
type Dataset struct {
	Name      string
	Raw       []byte
	Delimiter rune
	Columns   []Column
	Rows      [][]string
	// TotalRows counts every data row, including ones beyond MaxRows.
	TotalRows   int
	PreviewRows int
}

// Supported reports whether name has a tabular extension.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv":
		return true
	}
	return false
}

// Parse reads data as CSV/TSV and infers column kinds.
func Parse(name string, data []byte, opt Options) (*Dataset, error) {
	if !Supported(name) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(name), ErrUnsupported)
	}
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(name, data)
	}
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	ncol := len(header)
	ds := &Dataset{
		Name:        filepath.Base(name),
		Raw:         data,
		Delimiter:   delim,
		PreviewRows: opt.PreviewRows,
	}
	if ds.PreviewRows <= 0 {
		ds.PreviewRows = 5
	}

	type colAcc struct {
		nonNil, miss          int
		numCnt, dtCnt, txtCnt int
		cats                  map[string]int
	}
	accs := make([]*colAcc, ncol)
	for i := range accs {
		accs[i] = &colAcc{cats: map[string]int{}}
	}
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", ds.TotalRows+1, err)
		}
		ds.TotalRows++
		// Normalize length
		if len(rec) != ncol {
			tmp := make([]string, ncol)
			copy(tmp, rec)
			rec = tmp
		}
		if opt.MaxRows > 0 && len(ds.Rows) >= opt.MaxRows {
			continue
		}
		ds.Rows = append(ds.Rows, append([]string(nil), rec...))
		for j, raw := range rec {
			v := strings.TrimSpace(raw)
			a := accs[j]
			if v == "" {
				a.miss++
				continue
			}
			a.nonNil++
			switch {
			case isNumeric(v):
				a.numCnt++
			case isTime(v):
				a.dtCnt++
			default:
				a.txtCnt++
			}
			if len(a.cats) <= 10000 {
				a.cats[v]++
			}
		}
	}

	for j, h := range header {
		a := accs[j]
		ds.Columns = append(ds.Columns, Column{
			Name:    strings.TrimSpace(h),
			Kind:    kindOf(a.nonNil, a.numCnt, a.dtCnt, len(a.cats)),
			Missing: a.miss,
			Unique:  len(a.cats),
		})
	}
	return ds, nil
}

func kindOf(nonNil, numCnt, dtCnt, unique int) string {
	switch {
	case nonNil == 0:
		return "empty"
	case numCnt*10 >= nonNil*9:
		return "numeric"
	case dtCnt*10 >= nonNil*9:
		return "datetime"
	case unique <= 50 || unique*2 <= nonNil:
		return "categorical"
	default:
		return "text"
	}
}

// ColumnNames returns the header in order.
func (d *Dataset) ColumnNames() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// Preview returns all kept rows when full is set, otherwise the first
// PreviewRows rows.
func (d *Dataset) Preview(full bool) [][]string {
	if d == nil {
		return nil
	}
	if full || len(d.Rows) <= d.PreviewRows {
		return d.Rows
	}
	return d.Rows[:d.PreviewRows]
}

// Reader returns the original file contents for upload.
func (d *Dataset) Reader() io.Reader { return bytes.NewReader(d.Raw) }

// sniffDelimiter uses the extension for TSV, otherwise counts candidate
// separators on the header line.
func sniffDelimiter(name string, data []byte) rune {
	if strings.EqualFold(filepath.Ext(name), ".tsv") {
		return '\t'
	}
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := strings.Count(string(line), string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

func isTime(s string) bool {
	layouts := []string{
		time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
		"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	}
	for _, l := range layouts {
		if _, err := time.Parse(l, s); err == nil {
			return true
		}
	}
	return false
}

// isNumeric accepts plain, percent and locale-formatted numbers
// (1,234.5 or 1.234,5).
func isNumeric(s string) bool {
	raw := strings.TrimSpace(strings.ReplaceAll(s, "%", ""))
	raw = strings.ReplaceAll(raw, "\u00a0", " ")
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	dec := '.'
	if cpos >= 0 && (dpos < 0 || cpos > dpos) {
		dec = ','
	}
	for _, sep := range []rune{',', '.', ' '} {
		if sep != dec {
			raw = strings.ReplaceAll(raw, string(sep), "")
		}
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	_, err := strconv.ParseFloat(raw, 64)
	return err == nil
}
