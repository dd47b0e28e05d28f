package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/banshee-data/ivcurve/internal/iv/bundle"
)

// CSVWriter writes a bundle summary table and a per-trace table.
type CSVWriter struct {
	Summary *csv.Writer
	Traces  *csv.Writer
	Set     Set
}

// NewCSVWriter creates a CSVWriter over the given outputs.
func NewCSVWriter(summary, traces io.Writer, set Set) *CSVWriter {
	return &CSVWriter{
		Summary: csv.NewWriter(summary),
		Traces:  csv.NewWriter(traces),
		Set:     set,
	}
}

// WriteHeaders writes the header row of both tables.
func (c *CSVWriter) WriteHeaders() error {
	header := append([]string{}, bundleTitles...)
	header = append(header, "Traces", "Reference")
	header = append(header, withUncertainty(valueTitles)...)
	header = append(header, withUncertainty(efficiencyTitles)...)
	if err := c.Summary.Write(header); err != nil {
		return err
	}

	header = []string{"Experiment", "Trace", "Included", "Time (s)"}
	header = append(header, withUncertainty(valueTitles)...)
	return c.Traces.Write(header)
}

// WriteBundle appends one summary row and one row per trace of b.
func (c *CSVWriter) WriteBundle(b *bundle.Bundle) error {
	row := []string{
		b.Name,
		b.Meta.Created,
		formatFloat(b.Meta.FilmThickness),
		formatFloat(b.Meta.FilmArea),
		strconv.Itoa(b.IncludedCount()),
		strconv.FormatBool(b.IsReference),
	}
	row = appendFloats(row, pairs(values(b, c.Set)))
	row = appendFloats(row, pairs(efficiencies(b, c.Set)))
	if err := c.Summary.Write(row); err != nil {
		return err
	}

	for _, tr := range b.Traces() {
		row := []string{b.Name, tr.Key, strconv.FormatBool(tr.Included), formatFloat(tr.Time)}
		row = appendFloats(row, pairs(traceValues(tr, c.Set)))
		if err := c.Traces.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes both tables and reports the first write error.
func (c *CSVWriter) Flush() error {
	c.Summary.Flush()
	c.Traces.Flush()
	if err := c.Summary.Error(); err != nil {
		return err
	}
	return c.Traces.Error()
}

func appendFloats(row []string, vs []float64) []string {
	for _, v := range vs {
		row = append(row, formatFloat(v))
	}
	return row
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
