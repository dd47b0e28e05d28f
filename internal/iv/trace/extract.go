package trace

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Extraction is the directly extracted characteristic set of a trace and
// the rows it was read from. A row is -1 when no row qualified.
type Extraction struct {
	Values  Characteristics
	VocRow  int
	IscRow  int
	PmaxRow int
}

// Extract derives Voc, Isc, Pmax, fill factor, start time and channel
// averages from a sweep. Only the channel averages carry an uncertainty.
func Extract(t *Table) Extraction {
	e := Extraction{VocRow: -1, IscRow: -1, PmaxRow: -1}
	if t == nil || t.Len() == 0 {
		return e
	}

	e.VocRow = argMinAbs(t.Currents())
	e.IscRow = argMinAbs(t.Voltages())
	e.Values[Voc] = Measurement{Value: t.Samples[e.VocRow].Voltage}
	e.Values[Isc] = Measurement{Value: t.Samples[e.IscRow].Current}

	for i, s := range t.Samples {
		if s.Current > 0 && (e.PmaxRow < 0 || s.Power > t.Samples[e.PmaxRow].Power) {
			e.PmaxRow = i
		}
	}
	if e.PmaxRow >= 0 {
		e.Values[Pmax] = Measurement{Value: t.Samples[e.PmaxRow].Power}
	}

	e.Values[FillFactor] = Measurement{
		Value: FillFactorOf(e.Values[Voc].Value, e.Values[Isc].Value, e.Values[Pmax].Value),
	}
	e.Values[Time] = Measurement{Value: floats.Min(t.Column(func(s Sample) float64 { return s.Time }))}

	for c := ChannelTemperature; c < NumChannels; c++ {
		if t.Absent.Has(c) {
			e.Values[c.Key()] = Measurement{Value: Unavailable}
			continue
		}
		e.Values[c.Key()] = MeanStd(t.Column(func(s Sample) float64 { return s.Channel(c) }))
	}
	return e
}

// FillFactorOf returns |pmax / (voc * isc)|, or 0 when voc*isc is 0.
func FillFactorOf(voc, isc, pmax float64) float64 {
	d := voc * isc
	if d == 0 {
		return 0
	}
	return math.Abs(pmax / d)
}

// MeanStd returns the mean and sample standard deviation of xs. The
// deviation is 0 for fewer than two values.
func MeanStd(xs []float64) Measurement {
	switch len(xs) {
	case 0:
		return Measurement{}
	case 1:
		return Measurement{Value: xs[0]}
	}
	mean, std := stat.MeanStdDev(xs, nil)
	return Measurement{Value: mean, Uncertainty: std}
}

// argMinAbs returns the first index of the smallest |x|.
func argMinAbs(xs []float64) int {
	best := 0
	for i, x := range xs {
		if math.Abs(x) < math.Abs(xs[best]) {
			best = i
		}
	}
	return best
}
