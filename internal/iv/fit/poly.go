package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Polyfit fits y = c0 + c1*x + ... + cd*x^d by least squares. It returns
// the coefficients and their standard errors taken from the covariance
// s^2 (X^T X)^-1 with s^2 = SSR/(n-p).
func Polyfit(x, y []float64, degree int) (coef, stderr []float64, err error) {
	n, p := len(x), degree+1
	if len(y) != n {
		return nil, nil, fmt.Errorf("fit: %d x values but %d y values", n, len(y))
	}
	if n <= p {
		return nil, nil, fmt.Errorf("%w: %d rows for %d parameters", ErrTooFewPoints, n, p)
	}

	X := mat.NewDense(n, p, nil)
	Y := mat.NewVecDense(n, nil)
	for r := 0; r < n; r++ {
		pow := 1.0
		for c := 0; c < p; c++ {
			X.Set(r, c, pow)
			pow *= x[r]
		}
		Y.SetVec(r, y[r])
	}

	var qr mat.QR
	qr.Factorize(X)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, Y); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	var fitted, resid mat.VecDense
	fitted.MulVec(X, &beta)
	resid.SubVec(Y, &fitted)
	s2 := mat.Dot(&resid, &resid) / float64(n-p)

	cov, err := covariance(X, s2)
	if err != nil {
		return nil, nil, err
	}

	coef = make([]float64, p)
	stderr = make([]float64, p)
	for c := 0; c < p; c++ {
		coef[c] = beta.AtVec(c)
		stderr[c] = math.Sqrt(cov.At(c, c))
	}
	if !finite(coef...) || !finite(stderr...) {
		return nil, nil, ErrNotConverged
	}
	return coef, stderr, nil
}

// covariance returns s2 * (J^T J)^-1. A singular or ill-conditioned J^T J
// is reported as ErrSingular.
func covariance(J mat.Matrix, s2 float64) (*mat.Dense, error) {
	var jtj mat.Dense
	jtj.Mul(J.T(), J)

	var inv mat.Dense
	if err := inv.Inverse(&jtj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	inv.Scale(s2, &inv)
	return &inv, nil
}
