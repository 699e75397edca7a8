package app

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/fd1az/portfolio-optimizer/business/portfolio/domain"
	"github.com/fd1az/portfolio-optimizer/internal/apperror"
)

// Optimizer maximizes mu'w - lambda * w'Sigma*w over long-only, fully
// invested portfolios by projected gradient ascent on the simplex.
type Optimizer struct {
	maxIterations int
	tolerance     float64
}

// NewOptimizer creates an optimizer. It stops once no weight moves by more
// than tolerance in one step, and fails after maxIterations steps.
func NewOptimizer(maxIterations int, tolerance float64) *Optimizer {
	if maxIterations <= 0 {
		maxIterations = 5000
	}
	if tolerance <= 0 {
		tolerance = 1e-9
	}
	return &Optimizer{maxIterations: maxIterations, tolerance: tolerance}
}

// Solution is the raw optimizer output, before rounding.
type Solution struct {
	Weights    []float64
	Return     float64
	Risk       float64
	Iterations int
}

// Solve finds the optimal weights. start may be nil for an equal split;
// otherwise it is projected onto the simplex first.
func (o *Optimizer) Solve(md domain.MarketData, riskAversion float64, start []float64) (*Solution, error) {
	n := len(md.ExpectedReturns)
	if n == 0 {
		return nil, apperror.Validation(apperror.CodePortfolioNoAssets, "")
	}
	if start != nil && len(start) != n {
		return nil, apperror.Validation(apperror.CodePortfolioInvalidWeights,
			fmt.Sprintf("%d weights for %d assets", len(start), n))
	}
	if len(md.Covariance) != n {
		return nil, failed(fmt.Sprintf("covariance has %d rows for %d assets", len(md.Covariance), n))
	}

	data := make([]float64, 0, n*n)
	for i, row := range md.Covariance {
		if len(row) != n {
			return nil, failed(fmt.Sprintf("covariance row %d has %d columns", i, len(row)))
		}
		data = append(data, row...)
	}

	mu := mat.NewVecDense(n, slices.Clone(md.ExpectedReturns))
	sigma := mat.NewSymDense(n, data)

	// Step 1/L where L = 2*lambda*maxEigen bounds the gradient's Lipschitz
	// constant. A linear objective (lambda = 0) takes unit steps.
	step := 1.0
	if lip := 2 * riskAversion * maxEigenvalue(sigma); lip > 1e-12 {
		step = 1 / lip
	}

	var w *mat.VecDense
	if start != nil {
		w = mat.NewVecDense(n, projectSimplex(start))
	} else {
		w = mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			w.SetVec(i, 1/float64(n))
		}
	}

	grad := mat.NewVecDense(n, nil)
	next := mat.NewVecDense(n, nil)

	for iter := 1; iter <= o.maxIterations; iter++ {
		// grad = mu - 2*lambda*Sigma*w
		grad.MulVec(sigma, w)
		grad.AddScaledVec(mu, -2*riskAversion, grad)

		next.AddScaledVec(w, step, grad)
		projected := projectSimplex(next.RawVector().Data)

		var delta float64
		for i, v := range projected {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, failed(fmt.Sprintf("non-finite weight at iteration %d", iter))
			}
			delta = math.Max(delta, math.Abs(v-w.AtVec(i)))
			w.SetVec(i, v)
		}

		if delta <= o.tolerance {
			return &Solution{
				Weights:    slices.Clone(w.RawVector().Data),
				Return:     mat.Dot(mu, w),
				Risk:       math.Sqrt(math.Max(mat.Inner(w, sigma, w), 0)),
				Iterations: iter,
			}, nil
		}
	}

	return nil, failed(fmt.Sprintf("no convergence after %d iterations", o.maxIterations))
}

func failed(context string) error {
	return apperror.New(apperror.CodePortfolioOptimizationFailed, apperror.WithContext(context))
}

func maxEigenvalue(sigma *mat.SymDense) float64 {
	var eig mat.EigenSym
	if !eig.Factorize(sigma, false) {
		// Trace bounds the largest eigenvalue of a PSD matrix.
		return mat.Trace(sigma)
	}
	values := eig.Values(nil)
	return values[len(values)-1]
}

// projectSimplex returns the Euclidean projection of v onto
// {w : sum(w) = 1, w >= 0}.
func projectSimplex(v []float64) []float64 {
	u := slices.Clone(v)
	slices.Sort(u)
	slices.Reverse(u)

	var cum, theta float64
	for j, uj := range u {
		cum += uj
		t := (cum - 1) / float64(j+1)
		if uj-t > 0 {
			theta = t
		}
	}

	out := make([]float64, len(v))
	for i, vi := range v {
		out[i] = math.Max(vi-theta, 0)
	}
	return out
}
