package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// maxExpArg bounds the diode exponent so a wild trial step cannot overflow.
// The model is flat in V beyond it, and so is its Vt derivative.
const maxExpArg = 300.0

// Diode is the single-diode model I = Iph - I0*exp(V/Vt).
type Diode struct {
	Iph float64
	I0  float64
	Vt  float64
}

func (d Diode) params() []float64 { return []float64{d.Iph, d.I0, d.Vt} }

func diodeFrom(p []float64) Diode { return Diode{Iph: p[0], I0: p[1], Vt: p[2]} }

func (d Diode) valid() bool {
	return finite(d.Iph, d.I0, d.Vt) && d.I0 > 0 && d.Vt > 0
}

func (d Diode) exp(v float64) float64 {
	return math.Exp(math.Min(v/d.Vt, maxExpArg))
}

// Current evaluates the model at voltage v.
func (d Diode) Current(v float64) float64 {
	return d.Iph - d.I0*d.exp(v)
}

// MaxPower numerically maximises V*I(V), starting the search at v0.
func (d Diode) MaxPower(v0 float64) (float64, error) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 { return -x[0] * d.Current(x[0]) },
	}
	settings := &optimize.Settings{MajorIterations: 1000}
	method := &optimize.NelderMead{SimplexSize: math.Max(0.05*math.Abs(v0), 1e-3)}

	res, err := optimize.Minimize(problem, []float64{v0}, settings, method)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotConverged, err)
	}
	p := -res.F
	if !finite(p) {
		return 0, ErrNotConverged
	}
	return p, nil
}

// jacobian fills J with df/dp for each sample, with each column scaled by
// the magnitude of its parameter so the columns are comparable.
func (d Diode) jacobian(v []float64, J *mat.Dense, scale []float64) {
	for r, x := range v {
		e := d.exp(x)
		dVt := 0.0
		if x/d.Vt < maxExpArg {
			dVt = d.I0 * e * x / (d.Vt * d.Vt)
		}
		J.Set(r, 0, scale[0])
		J.Set(r, 1, -e*scale[1])
		J.Set(r, 2, dVt*scale[2])
	}
}

func (d Diode) residuals(v, i []float64, r *mat.VecDense) float64 {
	ss := 0.0
	for k := range v {
		res := i[k] - d.Current(v[k])
		r.SetVec(k, res)
		ss += res * res
	}
	return ss
}

// FitDiode fits the single-diode model to (v, i) with Levenberg-Marquardt
// starting from seed. It fails when the window is too small, the scaled
// normal matrix at the solution is singular, or the iteration budget runs
// out before the step and cost settle.
func FitDiode(v, i []float64, seed Diode, maxIter int) (Diode, error) {
	const (
		np      = 3
		xtol    = 1e-10
		ftol    = 1e-14
		lamMax  = 1e16
		lamInit = 1e-3
	)
	n := len(v)
	if len(i) != n {
		return Diode{}, fmt.Errorf("fit: %d voltages but %d currents", n, len(i))
	}
	if n <= np {
		return Diode{}, fmt.Errorf("%w: %d rows for %d parameters", ErrTooFewPoints, n, np)
	}
	if !seed.valid() {
		return Diode{}, fmt.Errorf("%w: invalid seed %+v", ErrNotConverged, seed)
	}

	d := seed
	J := mat.NewDense(n, np, nil)
	r := mat.NewVecDense(n, nil)
	rTrial := mat.NewVecDense(n, nil)
	cost := d.residuals(v, i, r)
	lambda := lamInit
	converged := false

	for iter := 0; iter < maxIter && !converged; iter++ {
		scale := paramScale(d)
		d.jacobian(v, J, scale)

		var A mat.Dense
		A.Mul(J.T(), J)
		var g mat.VecDense
		g.MulVec(J.T(), r)

		improved := false
		for !improved {
			if lambda > lamMax {
				// no step reduces the cost; d is a minimum of the model
				converged = true
				break
			}
			var aug mat.Dense
			aug.CloneFrom(&A)
			for k := 0; k < np; k++ {
				aug.Set(k, k, A.At(k, k)*(1+lambda)+1e-30)
			}
			var step mat.VecDense
			if err := step.SolveVec(&aug, &g); err != nil {
				lambda *= 10
				continue
			}

			p := d.params()
			for k := range p {
				p[k] += step.AtVec(k) * scale[k]
			}
			trial := diodeFrom(p)
			if !trial.valid() {
				lambda *= 10
				continue
			}
			trialCost := trial.residuals(v, i, rTrial)
			if !finite(trialCost) || trialCost >= cost {
				lambda *= 10
				continue
			}

			improved = true
			small := true
			for k := range p {
				if math.Abs(step.AtVec(k)*scale[k]) > xtol*(math.Abs(p[k])+xtol) {
					small = false
				}
			}
			if small || cost-trialCost <= ftol*cost {
				converged = true
			}
			d, cost = trial, trialCost
			r.CopyVec(rTrial)
			lambda = math.Max(lambda/10, 1e-12)
		}
	}
	if !converged {
		return Diode{}, fmt.Errorf("%w after %d iterations", ErrNotConverged, maxIter)
	}

	d.jacobian(v, J, paramScale(d))
	if _, err := covariance(J, cost/float64(n-np)); err != nil {
		return Diode{}, err
	}
	return d, nil
}

func paramScale(d Diode) []float64 {
	s := make([]float64, 3)
	for k, p := range d.params() {
		s[k] = math.Max(math.Abs(p), 1e-12)
	}
	return s
}
