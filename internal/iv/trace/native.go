package trace

import (
	"io"
)

const nativeSkipLines = 3

// Native column positions: index, time, voltage, current, current std,
// resistance, power, temperature, irradiance 1-4. Current std and resistance
// are not kept.
var nativeColumns = []int{1, 2, 3, 6, 7, 8, 9, 10, 11}

func parseNative(r io.Reader, path string) (*Table, error) {
	rr, err := newRowReader(r, path, nativeSkipLines)
	if err != nil {
		return nil, err
	}

	var samples []Sample
	for first := true; ; first = false {
		rec, line, err := rr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if first && isHeader(rec) {
			continue
		}
		v, err := rr.floats(rec, line, nativeColumns)
		if err != nil {
			return nil, err
		}
		samples = append(samples, Sample{
			Time:        v[0],
			Voltage:     v[1],
			Current:     v[2],
			Power:       v[3],
			Temperature: v[4],
			Irradiance:  [4]float64{v[5], v[6], v[7], v[8]},
		})
	}
	if len(samples) == 0 {
		return nil, &ParseError{Path: path, Err: ErrNoSamples}
	}

	t := &Table{Samples: samples}
	for c := ChannelTemperature; c < NumChannels; c++ {
		if !fillMissing(t.Samples, c) {
			t.Absent = t.Absent.With(c)
		}
	}
	return t, nil
}

// missingReading matches the values the acquisition software writes when a
// sensor has not reported yet.
func missingReading(v float64) bool { return v == 0 || v == -1 }

// fillMissing replaces missing readings of channel c with the next valid
// reading, then trailing gaps with the previous one. It returns false and
// writes Unavailable everywhere when the channel has no valid reading.
func fillMissing(samples []Sample, c Channel) bool {
	next, found := 0.0, false
	for i := len(samples) - 1; i >= 0; i-- {
		if v := samples[i].Channel(c); !missingReading(v) {
			next, found = v, true
		} else if found {
			samples[i].SetChannel(c, next)
		}
	}
	if !found {
		for i := range samples {
			samples[i].SetChannel(c, Unavailable)
		}
		return false
	}

	prev, seen := 0.0, false
	for i := range samples {
		if v := samples[i].Channel(c); !missingReading(v) {
			prev, seen = v, true
		} else if seen {
			samples[i].SetChannel(c, prev)
		}
	}
	return true
}
