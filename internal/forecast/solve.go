package forecast

import "math"

// pivotTolerance is the smallest pivot accepted by solveLinearSystem,
// relative to the largest entry of the matrix.
const pivotTolerance = 1e-10

// ridgeLeastSquares solves min |Xb - y|² + Σ penalty[j]·b[j]² through the
// normal equations. A zero penalty leaves that coefficient unregularized.
func ridgeLeastSquares(x [][]float64, y []float64, penalty []float64) ([]float64, error) {
	if len(x) == 0 {
		return nil, ErrTooFewPoints
	}
	p := len(x[0])

	a := make([][]float64, p)
	for i := range a {
		a[i] = make([]float64, p)
	}
	b := make([]float64, p)

	for r, row := range x {
		for i := 0; i < p; i++ {
			b[i] += row[i] * y[r]
			for j := i; j < p; j++ {
				a[i][j] += row[i] * row[j]
			}
		}
	}
	for i := 0; i < p; i++ {
		for j := 0; j < i; j++ {
			a[i][j] = a[j][i]
		}
		if i < len(penalty) {
			a[i][i] += penalty[i]
		}
	}

	return solveLinearSystem(a, b)
}

// solveLinearSystem solves a·x = b by Gaussian elimination with partial
// pivoting. a and b are modified in place.
func solveLinearSystem(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)

	largest := 0.0
	for _, row := range a {
		for _, v := range row {
			largest = math.Max(largest, math.Abs(v))
		}
	}
	if largest == 0 {
		return nil, ErrSingular
	}
	tol := pivotTolerance * largest

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < tol {
			return nil, ErrSingular
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			if f == 0 {
				continue
			}
			for c := col; c < n; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}

	out := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		sum := b[r]
		for c := r + 1; c < n; c++ {
			sum -= a[r][c] * out[c]
		}
		out[r] = sum / a[r][r]
		if !finite(out[r]) {
			return nil, ErrNonFinite
		}
	}
	return out, nil
}
