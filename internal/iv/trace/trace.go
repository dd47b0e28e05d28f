package trace

import (
	"github.com/banshee-data/ivcurve/internal/fsutil"
)

// Refiner produces the fitted characteristic set of a trace from its data
// and direct extraction. Implementations must fail soft: a characteristic
// that cannot be refined is reported as the zero Measurement.
type Refiner interface {
	Refine(t *Table, e Extraction) Characteristics
}

// Trace is one parsed sweep with both characteristic sets. Included is the
// only field changed after construction.
type Trace struct {
	Path     string
	Key      string // display name, e.g. "IV_Curve_3"
	Format   Format
	Time     float64
	Data     Table
	Values   Characteristics
	Fitted   Characteristics
	Included bool
}

// New parses the file at path and derives its characteristics. When
// refiner is nil the fitted set holds only the sentinel values.
func New(fsys fsutil.FileSystem, path, key string, format Format, refiner Refiner) (*Trace, error) {
	table, err := Load(fsys, path, format)
	if err != nil {
		return nil, err
	}
	return FromTable(path, key, format, table, refiner), nil
}

// FromTable builds a Trace from an already parsed table.
func FromTable(path, key string, format Format, table *Table, refiner Refiner) *Trace {
	e := Extract(table)
	tr := &Trace{
		Path:     path,
		Key:      key,
		Format:   format,
		Time:     e.Values[Time].Value,
		Data:     *table,
		Values:   e.Values,
		Included: true,
	}
	if refiner != nil {
		tr.Fitted = refiner.Refine(table, e)
	} else {
		tr.Fitted = Unrefined(e.Values)
	}
	return tr
}
