// Package fit refines the directly extracted Voc, Isc and Pmax of a trace
// with local parametric fits around the extracted operating points.
//
// Every fit fails soft: Refine reports a characteristic it cannot fit as
// the zero Measurement and leaves the others untouched.
package fit

import (
	"errors"
	"math"

	"github.com/banshee-data/ivcurve/internal/iv/trace"
	"github.com/banshee-data/ivcurve/internal/monitoring"
)

var (
	// ErrTooFewPoints means the fit window holds no more rows than the
	// model has parameters, so no residual variance can be estimated.
	ErrTooFewPoints = errors.New("fit: too few points")
	// ErrSingular means the normal matrix is singular or too badly
	// conditioned to invert.
	ErrSingular = errors.New("fit: singular normal matrix")
	// ErrNotConverged means the iterative fit exhausted its budget or
	// produced non-finite parameters.
	ErrNotConverged = errors.New("fit: not converged")
)

// Options controls the fit windows and the single-diode seed.
type Options struct {
	IscPoints     int
	VocPoints     int
	PmaxPoints    int
	I0Seed        float64
	VtSeed        float64
	MaxIterations int
}

// DefaultOptions returns the standard windows (3, 5, 10 rows) and seeds.
func DefaultOptions() Options {
	return Options{
		IscPoints:     3,
		VocPoints:     5,
		PmaxPoints:    10,
		I0Seed:        4e-5,
		VtSeed:        7.5e-2,
		MaxIterations: 200,
	}
}

// Fitter implements trace.Refiner.
type Fitter struct {
	opts Options
}

// New returns a Fitter using opts.
func New(opts Options) *Fitter {
	return &Fitter{opts: opts}
}

var _ trace.Refiner = (*Fitter)(nil)

// Refine returns the fitted characteristic set. Time and channel averages
// are copied from the direct extraction; fill factor is recomputed from
// the fitted values.
func (f *Fitter) Refine(t *trace.Table, e trace.Extraction) trace.Characteristics {
	out := trace.Unrefined(e.Values)
	v, i := t.Voltages(), t.Currents()

	if m, err := f.Isc(v, i, e.IscRow); err != nil {
		monitoring.Debugf("[fit] isc: %v", err)
	} else {
		out[trace.Isc] = m
	}
	if m, err := f.Voc(v, i, e.VocRow); err != nil {
		monitoring.Debugf("[fit] voc: %v", err)
	} else {
		out[trace.Voc] = m
	}
	if m, err := f.Pmax(v, i, e.PmaxRow, e.Values[trace.Isc].Value); err != nil {
		monitoring.Debugf("[fit] pmax: %v", err)
	} else {
		out[trace.Pmax] = m
	}

	out[trace.FillFactor] = trace.Measurement{
		Value: trace.FillFactorOf(out[trace.Voc].Value, out[trace.Isc].Value, out[trace.Pmax].Value),
	}
	return out
}

// Isc fits I = y0 + m*V over rows [0, row+IscPoints) and returns y0 with
// its standard error.
func (f *Fitter) Isc(v, i []float64, row int) (trace.Measurement, error) {
	if row < 0 {
		return trace.Measurement{}, ErrTooFewPoints
	}
	lo, hi := window(len(v), 0, row+f.opts.IscPoints)
	return intercept(v[lo:hi], i[lo:hi], 1)
}

// Voc fits V = y0 + a*I + b*I^2 over rows [row-VocPoints, row+VocPoints)
// and returns y0 with its standard error.
func (f *Fitter) Voc(v, i []float64, row int) (trace.Measurement, error) {
	if row < 0 {
		return trace.Measurement{}, ErrTooFewPoints
	}
	lo, hi := window(len(v), row-f.opts.VocPoints, row+f.opts.VocPoints)
	return intercept(i[lo:hi], v[lo:hi], 2)
}

// Pmax fits the single-diode model over rows [row-PmaxPoints,
// row+PmaxPoints), seeded with isc, and returns the maximum of V*I_fit(V).
// The uncertainty is not propagated and is always 0.
func (f *Fitter) Pmax(v, i []float64, row int, isc float64) (trace.Measurement, error) {
	if row < 0 {
		return trace.Measurement{}, ErrTooFewPoints
	}
	lo, hi := window(len(v), row-f.opts.PmaxPoints, row+f.opts.PmaxPoints)
	seed := Diode{Iph: isc, I0: f.opts.I0Seed, Vt: f.opts.VtSeed}
	d, err := FitDiode(v[lo:hi], i[lo:hi], seed, f.opts.MaxIterations)
	if err != nil {
		return trace.Measurement{}, err
	}
	p, err := d.MaxPower(v[row])
	if err != nil {
		return trace.Measurement{}, err
	}
	return trace.Measurement{Value: p}, nil
}

func intercept(x, y []float64, degree int) (trace.Measurement, error) {
	coef, stderr, err := Polyfit(x, y, degree)
	if err != nil {
		return trace.Measurement{}, err
	}
	return trace.Measurement{Value: coef[0], Uncertainty: stderr[0]}, nil
}

// window clamps the half-open row range [lo, hi) to [0, n).
func window(n, lo, hi int) (int, int) {
	lo = min(max(lo, 0), n)
	hi = min(hi, n)
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
