package chart

import (
	"errors"
	"fmt"
	"math"
)

// Smoothing defaults used by the service's reference plots.
const (
	DefaultWindow = 3
	DefaultOrder  = 1
)

var (
	// ErrSeriesTooShort is returned when a series has fewer points than the window.
	ErrSeriesTooShort = errors.New("series shorter than smoothing window")
	// ErrInvalidWindow is returned for even or non-positive windows and for
	// polynomial orders that do not fit inside the window.
	ErrInvalidWindow = errors.New("invalid smoothing window")
)

// Smooth applies SavitzkyGolay with DefaultWindow and DefaultOrder.
func Smooth(values []float64) ([]float64, error) {
	return SavitzkyGolay(values, DefaultWindow, DefaultOrder)
}

// SavitzkyGolay fits a polynomial of the given order by least squares inside
// a sliding window and replaces each sample with the fitted value at its
// position. Interior samples use the centred window. The first and last
// half-windows are evaluated on the polynomial fitted to the first and last
// full window respectively. The result has the same length as values.
func SavitzkyGolay(values []float64, window, order int) ([]float64, error) {
	if window <= 0 || window%2 == 0 {
		return nil, fmt.Errorf("%w: window %d must be a positive odd number", ErrInvalidWindow, window)
	}
	if order < 0 || order >= window {
		return nil, fmt.Errorf("%w: order %d must be in [0, %d)", ErrInvalidWindow, order, window)
	}
	n := len(values)
	if n < window {
		return nil, fmt.Errorf("%w: %d points, window %d", ErrSeriesTooShort, n, window)
	}

	half := window / 2
	coeffs, err := centreCoefficients(window, order)
	if err != nil {
		return nil, err
	}

	out := make([]float64, n)
	for i := half; i < n-half; i++ {
		var sum float64
		for k, c := range coeffs {
			sum += c * values[i-half+k]
		}
		out[i] = sum
	}

	head, err := polyfit(values[:window], order)
	if err != nil {
		return nil, err
	}
	tail, err := polyfit(values[n-window:], order)
	if err != nil {
		return nil, err
	}
	for i := 0; i < half; i++ {
		out[i] = polyval(head, float64(i-half))
		out[n-half+i] = polyval(tail, float64(i+1))
	}
	return out, nil
}

// centreCoefficients returns the convolution weights that evaluate the
// least-squares polynomial at the window centre. Fitting is linear in the
// samples, so the weight of sample k is the fit of the k-th unit impulse.
func centreCoefficients(window, order int) ([]float64, error) {
	coeffs := make([]float64, window)
	impulse := make([]float64, window)
	for k := range impulse {
		impulse[k] = 1
		poly, err := polyfit(impulse, order)
		if err != nil {
			return nil, err
		}
		coeffs[k] = poly[0]
		impulse[k] = 0
	}
	return coeffs, nil
}

// polyfit fits ys sampled at x = -half..half and returns the polynomial
// coefficients, constant term first.
func polyfit(ys []float64, order int) ([]float64, error) {
	half := len(ys) / 2
	size := order + 1
	ata := make([][]float64, size)
	for i := range ata {
		ata[i] = make([]float64, size+1)
	}
	for j, y := range ys {
		x := float64(j - half)
		powers := make([]float64, 2*size-1)
		powers[0] = 1
		for p := 1; p < len(powers); p++ {
			powers[p] = powers[p-1] * x
		}
		for r := 0; r < size; r++ {
			for c := 0; c < size; c++ {
				ata[r][c] += powers[r+c]
			}
			ata[r][size] += powers[r] * y
		}
	}
	return solve(ata)
}

// solve runs Gaussian elimination with partial pivoting on an augmented matrix.
func solve(m [][]float64) ([]float64, error) {
	size := len(m)
	for col := 0; col < size; col++ {
		pivot := col
		for r := col + 1; r < size; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("%w: singular normal equations", ErrInvalidWindow)
		}
		m[col], m[pivot] = m[pivot], m[col]
		for r := col + 1; r < size; r++ {
			f := m[r][col] / m[col][col]
			for c := col; c <= size; c++ {
				m[r][c] -= f * m[col][c]
			}
		}
	}
	out := make([]float64, size)
	for r := size - 1; r >= 0; r-- {
		sum := m[r][size]
		for c := r + 1; c < size; c++ {
			sum -= m[r][c] * out[c]
		}
		out[r] = sum / m[r][r]
	}
	return out, nil
}

func polyval(coeffs []float64, x float64) float64 {
	var y float64
	for i := len(coeffs) - 1; i >= 0; i-- {
		y = y*x + coeffs[i]
	}
	return y
}
