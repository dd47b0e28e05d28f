package trace

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

const (
	legacySkipLines = 33
	// legacyStampLayout is the timestamp suffix of legacy file names,
	// e.g. "IV Characterizer 2021-05-04T13.22.10.csv".
	legacyStampLayout = "2006-01-02T15.04.05.csv"
)

var legacyColumns = []int{0, 1, 2}

// LegacyOrigin returns the sweep start time encoded in a legacy file name,
// interpreted in local time.
func LegacyOrigin(path string) (time.Time, error) {
	base := filepath.Base(path)
	stamp := base[strings.LastIndex(base, " ")+1:]
	t, err := time.ParseInLocation(legacyStampLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("file name has no timestamp suffix: %w", err)
	}
	return t, nil
}

func parseLegacy(r io.Reader, path string) (*Table, error) {
	origin, err := LegacyOrigin(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	t0 := float64(origin.Unix())

	rr, err := newRowReader(r, path, legacySkipLines)
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
		v, err := rr.floats(rec, line, legacyColumns)
		if err != nil {
			return nil, err
		}
		current := -v[2]
		samples = append(samples, Sample{
			Time:        t0 + v[0],
			Voltage:     v[1],
			Current:     current,
			Power:       v[1] * current,
			Temperature: Unavailable,
			Irradiance:  [4]float64{Unavailable, Unavailable, Unavailable, Unavailable},
		})
	}
	if len(samples) == 0 {
		return nil, &ParseError{Path: path, Err: ErrNoSamples}
	}

	return &Table{Samples: samples, Absent: AllChannels}, nil
}
