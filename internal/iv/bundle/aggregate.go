package bundle

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/ivcurve/internal/iv/trace"
)

// Aggregation is the averaged state of the included traces of a bundle.
type Aggregation struct {
	Curve  trace.Table
	Values trace.Characteristics
	Fitted trace.Characteristics
	// Absent holds channels that no included trace recorded.
	Absent trace.Channels
}

// Aggregate averages the included traces. The curve is averaged by row
// index over the traces long enough to contain each row. Characteristics
// are the mean and sample deviation per key, except Time which is the
// earliest trace time. Empty input yields the zero Aggregation.
func Aggregate(traces []*trace.Trace) Aggregation {
	var included []*trace.Trace
	for _, tr := range traces {
		if tr.Included {
			included = append(included, tr)
		}
	}
	if len(included) == 0 {
		return Aggregation{}
	}

	absent := trace.AllChannels
	for _, tr := range included {
		absent &= tr.Data.Absent
	}

	return Aggregation{
		Curve:  averageCurve(included, absent),
		Values: averageSet(included, absent, func(tr *trace.Trace) *trace.Characteristics { return &tr.Values }),
		Fitted: averageSet(included, absent, func(tr *trace.Trace) *trace.Characteristics { return &tr.Fitted }),
		Absent: absent,
	}
}

func averageSet(traces []*trace.Trace, absent trace.Channels, set func(*trace.Trace) *trace.Characteristics) trace.Characteristics {
	var out trace.Characteristics

	times := make([]float64, len(traces))
	for i, tr := range traces {
		times[i] = tr.Time
	}
	out[trace.Time] = trace.Measurement{Value: floats.Min(times)}

	xs := make([]float64, 0, len(traces))
	for k := trace.Voc; k < trace.NumKeys; k++ {
		c, isChannel := trace.ChannelForKey(k)
		if isChannel && absent.Has(c) {
			out[k] = trace.Measurement{Value: trace.Unavailable}
			continue
		}
		xs = xs[:0]
		for _, tr := range traces {
			if isChannel && tr.Data.Absent.Has(c) {
				continue
			}
			xs = append(xs, set(tr)[k].Value)
		}
		out[k] = trace.MeanStd(xs)
	}
	return out
}

func averageCurve(traces []*trace.Trace, absent trace.Channels) trace.Table {
	rows := 0
	for _, tr := range traces {
		rows = max(rows, tr.Data.Len())
	}

	curve := trace.Table{Samples: make([]trace.Sample, rows), Absent: absent}
	var col [4][]float64 // time, voltage, current, power
	for r := range rows {
		for i := range col {
			col[i] = col[i][:0]
		}
		var channels [trace.NumChannels][]float64
		for _, tr := range traces {
			if r >= tr.Data.Len() {
				continue
			}
			s := tr.Data.Samples[r]
			col[0] = append(col[0], s.Time)
			col[1] = append(col[1], s.Voltage)
			col[2] = append(col[2], s.Current)
			col[3] = append(col[3], s.Power)
			for c := trace.ChannelTemperature; c < trace.NumChannels; c++ {
				if !tr.Data.Absent.Has(c) {
					channels[c] = append(channels[c], s.Channel(c))
				}
			}
		}
		s := &curve.Samples[r]
		s.Time = mean(col[0])
		s.Voltage = mean(col[1])
		s.Current = mean(col[2])
		s.Power = mean(col[3])
		for c := trace.ChannelTemperature; c < trace.NumChannels; c++ {
			if len(channels[c]) == 0 {
				s.SetChannel(c, trace.Unavailable)
				continue
			}
			s.SetChannel(c, mean(channels[c]))
		}
	}
	return curve
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return floats.Sum(xs) / float64(len(xs))
}
