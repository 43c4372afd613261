// Package linalg provides dense matrix primitives for the adjustment engine.
//
// Matrices are small (bounded by the number of observations and unknown
// parameters in a single survey network), so everything here is plain
// O(n^3)-or-worse dense arithmetic over [][]float64 - no sparse structure,
// no BLAS.
package linalg

import (
	"errors"
	"fmt"
)

// ErrSingular is returned by Inv when a pivot falls below the numerical
// threshold used to detect a singular (or effectively singular) matrix.
var ErrSingular = errors.New("linalg: singular matrix")

// pivotEps is the minimum acceptable absolute pivot value during Gauss-Jordan
// elimination. Below this, the matrix is treated as singular.
const pivotEps = 1e-10

// Matrix is a dense r x c matrix stored row-major.
type Matrix struct {
	Rows, Cols int
	Data       [][]float64
}

// Zeros allocates an r x c matrix filled with zero.
func Zeros(r, c int) *Matrix {
	data := make([][]float64, r)
	for i := range data {
		data[i] = make([]float64, c)
	}
	return &Matrix{Rows: r, Cols: c, Data: data}
}

// At returns element (i,j).
func (m *Matrix) At(i, j int) float64 { return m.Data[i][j] }

// Set assigns element (i,j).
func (m *Matrix) Set(i, j int, v float64) { m.Data[i][j] = v }

// Add accumulates v into element (i,j), useful when assembling normal
// equations row by row.
func (m *Matrix) Add(i, j int, v float64) { m.Data[i][j] += v }

// Transpose returns a new matrix that is the transpose of m.
func Transpose(m *Matrix) *Matrix {
	t := Zeros(m.Cols, m.Rows)
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			t.Data[j][i] = m.Data[i][j]
		}
	}
	return t
}

// Multiply returns a*b. Panics if the inner dimensions disagree - a
// programmer error, never a data error, so it is not reported via the
// engine's log/error conventions.
func Multiply(a, b *Matrix) *Matrix {
	if a.Cols != b.Rows {
		panic(fmt.Sprintf("linalg: multiply dimension mismatch %dx%d * %dx%d", a.Rows, a.Cols, b.Rows, b.Cols))
	}
	out := Zeros(a.Rows, b.Cols)
	for i := 0; i < a.Rows; i++ {
		ai := a.Data[i]
		oi := out.Data[i]
		for k := 0; k < a.Cols; k++ {
			aik := ai[k]
			if aik == 0 {
				continue
			}
			bk := b.Data[k]
			for j := 0; j < b.Cols; j++ {
				oi[j] += aik * bk[j]
			}
		}
	}
	return out
}

// Inv computes the inverse of a square matrix m via Gauss-Jordan elimination
// with partial pivoting. It builds the augmented matrix [m | I], and at each
// column i selects the row k>=i with the largest |m[k][i]| as pivot, swaps
// rows, normalizes the pivot row, and eliminates that column from every
// other row. Returns ErrSingular if any pivot's absolute value falls below
// pivotEps.
func Inv(m *Matrix) (*Matrix, error) {
	if m.Rows != m.Cols {
		panic(fmt.Sprintf("linalg: inv requires a square matrix, got %dx%d", m.Rows, m.Cols))
	}
	n := m.Rows

	aug := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, 2*n)
		copy(row, m.Data[i])
		row[n+i] = 1
		aug[i] = row
	}

	for i := 0; i < n; i++ {
		pivotRow := i
		pivotVal := abs(aug[i][i])
		for k := i + 1; k < n; k++ {
			if v := abs(aug[k][i]); v > pivotVal {
				pivotVal = v
				pivotRow = k
			}
		}
		if pivotVal < pivotEps {
			return nil, ErrSingular
		}
		if pivotRow != i {
			aug[i], aug[pivotRow] = aug[pivotRow], aug[i]
		}

		pivot := aug[i][i]
		row := aug[i]
		for j := 0; j < 2*n; j++ {
			row[j] /= pivot
		}

		for k := 0; k < n; k++ {
			if k == i {
				continue
			}
			factor := aug[k][i]
			if factor == 0 {
				continue
			}
			other := aug[k]
			for j := 0; j < 2*n; j++ {
				other[j] -= factor * row[j]
			}
		}
	}

	inv := Zeros(n, n)
	for i := 0; i < n; i++ {
		copy(inv.Data[i], aug[i][n:])
	}
	return inv, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
