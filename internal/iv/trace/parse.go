package trace

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/ivcurve/internal/fsutil"
)

// File name prefixes of the two on-disk layouts.
const (
	NativePrefix = "IV_Curve_"
	LegacyPrefix = "IV Characterizer"
)

// Format selects the on-disk layout of a trace file.
type Format uint8

const (
	// FormatNative is the acquisition software's own CSV export.
	FormatNative Format = iota
	// FormatLegacy is the older instrument ("Kickstart") export.
	FormatLegacy
)

func (f Format) String() string {
	switch f {
	case FormatNative:
		return "native"
	case FormatLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// FormatFor guesses the layout from the file name: names starting with
// NativePrefix are native, anything else is treated as legacy.
func FormatFor(path string) Format {
	if strings.HasPrefix(filepath.Base(path), NativePrefix) {
		return FormatNative
	}
	return FormatLegacy
}

// ErrNoSamples is wrapped by a ParseError when a file holds no data rows.
var ErrNoSamples = errors.New("no samples")

// ParseError reports a missing or malformed trace file. Line is 1-based and
// zero when the failure is not tied to a line.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Load reads the trace file at path using the given layout.
func Load(fsys fsutil.FileSystem, path string, format Format) (*Table, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	switch format {
	case FormatNative:
		return parseNative(f, path)
	case FormatLegacy:
		return parseLegacy(f, path)
	default:
		return nil, &ParseError{Path: path, Err: fmt.Errorf("unknown format %v", format)}
	}
}

// rowReader yields CSV records after skipping a fixed number of raw lines,
// tracking absolute line numbers for error reports.
type rowReader struct {
	path   string
	offset int
	csv    *csv.Reader
}

func newRowReader(r io.Reader, path string, skip int) (*rowReader, error) {
	br := bufio.NewReader(r)
	for i := 0; i < skip; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			if err == io.EOF {
				return nil, &ParseError{Path: path, Line: i + 1, Err: ErrNoSamples}
			}
			return nil, &ParseError{Path: path, Line: i + 1, Err: err}
		}
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	return &rowReader{path: path, offset: skip, csv: cr}, nil
}

// next returns the next record and its absolute line, or io.EOF.
func (rr *rowReader) next() ([]string, int, error) {
	rec, err := rr.csv.Read()
	if err == io.EOF {
		return nil, 0, io.EOF
	}
	if err != nil {
		var pe *csv.ParseError
		line := rr.offset
		if errors.As(err, &pe) {
			line += pe.Line
		}
		return nil, 0, &ParseError{Path: rr.path, Line: line, Err: err}
	}
	line, _ := rr.csv.FieldPos(0)
	return rec, rr.offset + line, nil
}

// isHeader reports whether a record is a column-title row rather than data.
func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
	return err != nil
}

// floats parses the selected columns of rec.
func (rr *rowReader) floats(rec []string, line int, cols []int) ([]float64, error) {
	out := make([]float64, len(cols))
	for i, c := range cols {
		if c >= len(rec) {
			return nil, &ParseError{Path: rr.path, Line: line,
				Err: fmt.Errorf("expected at least %d columns, got %d", c+1, len(rec))}
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
		if err != nil {
			return nil, &ParseError{Path: rr.path, Line: line, Err: fmt.Errorf("column %d: %w", c+1, err)}
		}
		out[i] = v
	}
	return out, nil
}
