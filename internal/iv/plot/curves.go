// Package plot renders averaged curves as PNG images and efficiency
// comparisons as HTML charts.
package plot

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/ivcurve/internal/iv/bundle"
)

// File names written by SaveCurves.
const (
	IVFile = "iv_curves.png"
	PVFile = "pv_curves.png"
)

// ErrNoBundles is returned when there is nothing to draw.
var ErrNoBundles = errors.New("plot: no bundles")

// SaveCurves draws the averaged current-voltage and power-voltage curves
// of every bundle, one line each, into dir. It returns the written paths.
func SaveCurves(dir string, bundles []*bundle.Bundle) ([]string, error) {
	if len(bundles) == 0 {
		return nil, ErrNoBundles
	}

	pIV := plot.New()
	pIV.Title.Text = "I-V"
	pIV.X.Label.Text = "Voltage (V)"
	pIV.Y.Label.Text = "Current (A)"

	pPV := plot.New()
	pPV.Title.Text = "P-V"
	pPV.X.Label.Text = "Voltage (V)"
	pPV.Y.Label.Text = "Power (W)"

	colors := generateColors(len(bundles))
	for i, b := range bundles {
		samples := b.Curve().Samples
		if len(samples) == 0 {
			continue
		}
		iv := make(plotter.XYs, len(samples))
		pv := make(plotter.XYs, len(samples))
		for j, s := range samples {
			iv[j] = plotter.XY{X: s.Voltage, Y: s.Current}
			pv[j] = plotter.XY{X: s.Voltage, Y: s.Power}
		}

		label := b.Name
		if b.IsReference {
			label += " (reference)"
		}
		for _, pair := range []struct {
			p   *plot.Plot
			pts plotter.XYs
		}{{pIV, iv}, {pPV, pv}} {
			line, err := plotter.NewLine(pair.pts)
			if err != nil {
				return nil, fmt.Errorf("failed to plot %s: %w", b.Name, err)
			}
			line.Color = colors[i]
			line.Width = vg.Points(1.5)
			if b.IsReference {
				line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
			}
			pair.p.Add(line)
			pair.p.Legend.Add(label, line)
		}
	}

	paths := []string{filepath.Join(dir, IVFile), filepath.Join(dir, PVFile)}
	for i, p := range []*plot.Plot{pIV, pPV} {
		p.Add(plotter.NewGrid())
		p.Legend.Top = true
		p.Legend.Left = false
		p.Legend.XOffs = -10
		p.Legend.YOffs = -10
		if err := p.Save(10*vg.Inch, 6*vg.Inch, paths[i]); err != nil {
			return nil, fmt.Errorf("save %s: %w", paths[i], err)
		}
	}
	return paths, nil
}

// generateColors spreads n colours evenly around the hue circle.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := range colors {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.45)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255),
		uint8(hueToRGB(p, q, h) * 255),
		uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	switch {
	case t < 0:
		t++
	case t > 1:
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	default:
		return p
	}
}
