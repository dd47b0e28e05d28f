// Package testutil provides shared test fixtures: trace files in both
// on-disk layouts, experiment settings files and synthetic I-V curves.
package testutil

import (
	"bytes"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/ivcurve/internal/fsutil"
)

// Row is one sample as written to a fixture file. Current follows the
// native sign convention (positive in the generating quadrant).
type Row struct {
	Time        float64
	Voltage     float64
	Current     float64
	Power       float64
	Temperature float64
	Irradiance  [4]float64
}

// NativeCSV renders rows in the native layout: three metadata lines, a
// header row and twelve data columns.
func NativeCSV(rows []Row) []byte {
	var b bytes.Buffer
	b.WriteString("IV Curve Measurement\n")
	b.WriteString("Sweep,Linear\n")
	b.WriteString("\n")
	b.WriteString("Index,Time (s),Voltage (V),Current (A),Current Std (A),Resistance (Ohm),Power (W)," +
		"Temperature (C),Irradiance 1 (W/m2),Irradiance 2 (W/m2),Irradiance 3 (W/m2),Irradiance 4 (W/m2)\n")
	for i, r := range rows {
		res := 0.0
		if r.Current != 0 {
			res = r.Voltage / r.Current
		}
		fmt.Fprintf(&b, "%d,%.6f,%g,%g,%g,%g,%g,%g,%g,%g,%g,%g\n",
			i, r.Time, r.Voltage, r.Current, 1e-6, res, r.Power,
			r.Temperature, r.Irradiance[0], r.Irradiance[1], r.Irradiance[2], r.Irradiance[3])
	}
	return b.Bytes()
}

// LegacyCSV renders rows in the legacy layout: 33 instrument lines, a
// header, then sweep-relative time, voltage and instrument-polarity current.
func LegacyCSV(rows []Row) []byte {
	var b bytes.Buffer
	for i := 0; i < 33; i++ {
		fmt.Fprintf(&b, "Instrument setting %d,value\n", i)
	}
	b.WriteString("Time (s),Voltage (V),Current (A)\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%g,%g,%g\n", r.Time, r.Voltage, -r.Current)
	}
	return b.Bytes()
}

// WriteNative writes rows as <dir>/IV_Curve_<index>.csv and returns the path.
func WriteNative(t testing.TB, fsys fsutil.FileSystem, dir string, index int, rows []Row) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("IV_Curve_%d.csv", index))
	write(t, fsys, path, NativeCSV(rows))
	return path
}

// LegacyName returns the legacy file name for a sweep started at stamp.
func LegacyName(stamp time.Time) string {
	return "IV Characterizer " + stamp.Format("2006-01-02T15.04.05") + ".csv"
}

// WriteLegacy writes rows in the legacy layout, named after stamp.
func WriteLegacy(t testing.TB, fsys fsutil.FileSystem, dir string, stamp time.Time, rows []Row) string {
	t.Helper()
	path := filepath.Join(dir, LegacyName(stamp))
	write(t, fsys, path, LegacyCSV(rows))
	return path
}

// WriteSettings writes a Settings.txt with a film section.
func WriteSettings(t testing.TB, fsys fsutil.FileSystem, dir, created, thickness, area string) string {
	t.Helper()
	path := filepath.Join(dir, "Settings.txt")
	content := created + "\n" +
		"Sweep: linear\n" +
		"Film\n" +
		"Film Thickness (mm): " + thickness + "\n" +
		"Film Area (cm2): " + area + "\n"
	write(t, fsys, path, []byte(content))
	return path
}

// WriteFile writes arbitrary content, for malformed fixtures.
func WriteFile(t testing.TB, fsys fsutil.FileSystem, path string, content []byte) string {
	t.Helper()
	write(t, fsys, path, content)
	return path
}

func write(t testing.TB, fsys fsutil.FileSystem, path string, data []byte) {
	t.Helper()
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := fsys.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Characterised returns a four-row sweep whose direct extraction yields
// exactly the given Voc, Isc and Pmax: a short-circuit row, the maximum
// power row at 0.8 Voc, the open-circuit row and one reverse row.
func Characterised(voc, isc, pmax, t0 float64) []Row {
	vmp := 0.8 * voc
	rows := []Row{
		{Voltage: 0, Current: isc, Power: 0},
		{Voltage: vmp, Current: pmax / vmp, Power: pmax},
		{Voltage: voc, Current: 0, Power: 0},
		{Voltage: 1.1 * voc, Current: -0.1 * isc, Power: -0.11 * voc * isc},
	}
	return withEnvironment(rows, t0, 0.5)
}

// DiodeCurve samples I = iph - i0*exp(V/vt) at n evenly spaced voltages
// from 0 up to slightly beyond the open-circuit voltage.
func DiodeCurve(iph, i0, vt float64, n int, t0 float64) []Row {
	voc := vt * math.Log(iph/i0+1)
	vmax := 1.15 * voc
	rows := make([]Row, n)
	for i := range rows {
		v := vmax * float64(i) / float64(n-1)
		cur := iph - i0*(math.Exp(v/vt)-1)
		rows[i] = Row{Voltage: v, Current: cur, Power: v * cur}
	}
	return withEnvironment(rows, t0, 0.25)
}

func withEnvironment(rows []Row, t0, dt float64) []Row {
	for i := range rows {
		rows[i].Time = t0 + float64(i)*dt
		rows[i].Temperature = 25 + 0.1*float64(i%2)
		rows[i].Irradiance = [4]float64{1000, 998, 1001, 999}
	}
	return rows
}
