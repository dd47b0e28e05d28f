// Package export writes bundle value tables as spreadsheets and CSV.
package export

import (
	"github.com/banshee-data/ivcurve/internal/iv/bundle"
	"github.com/banshee-data/ivcurve/internal/iv/trace"
)

// Set selects which characteristic set is exported.
type Set uint8

const (
	Direct Set = iota
	Fitted
)

// columnKeys is the column order of every value table.
var columnKeys = []trace.Key{
	trace.Isc, trace.Voc, trace.Pmax, trace.FillFactor, trace.Temperature,
	trace.Irradiance1, trace.Irradiance2, trace.Irradiance3, trace.Irradiance4,
}

var valueTitles = []string{
	"Isc (A)", "Voc (V)", "Pmax (W)", "FF", "Tavg (C)",
	"I1avg (W/m2)", "I2avg (W/m2)", "I3avg (W/m2)", "I4avg (W/m2)",
}

var efficiencyTitles = []string{
	"Isc/PV (%)", "Voc/PV (%)", "Pmax/PV (%)", "FF/PV (%)", "Tavg/PV (%)",
	"I1avg/PV (%)", "I2avg/PV (%)", "I3avg/PV (%)", "I4avg/PV (%)",
}

var bundleTitles = []string{"Experiment", "Time (s)", "Film Thickness (mm)", "Film Area (cm2)"}

// withUncertainty interleaves each title with its "d"-prefixed partner.
func withUncertainty(titles []string) []string {
	out := make([]string, 0, 2*len(titles))
	for _, t := range titles {
		out = append(out, t, "d"+t)
	}
	return out
}

func pairs(c trace.Characteristics) []float64 {
	out := make([]float64, 0, 2*len(columnKeys))
	for _, k := range columnKeys {
		out = append(out, c[k].Value, c[k].Uncertainty)
	}
	return out
}

func values(b *bundle.Bundle, set Set) trace.Characteristics {
	if set == Fitted {
		return b.FittedValues()
	}
	return b.Values()
}

func efficiencies(b *bundle.Bundle, set Set) trace.Characteristics {
	if set == Fitted {
		return b.FittedEfficiencies()
	}
	return b.Efficiencies()
}

func traceValues(tr *trace.Trace, set Set) trace.Characteristics {
	if set == Fitted {
		return tr.Fitted
	}
	return tr.Values
}
