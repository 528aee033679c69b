package diagnostics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// MaxACFLag returns the largest autocorrelation lag that may be requested
// from a series of length m: min(floor(10*log10(m)), m-1).
// Returns 0 when no lag is available.
func MaxACFLag(m int) int {
	if m < 2 {
		return 0
	}
	maxLag := int(math.Floor(10 * math.Log10(float64(m))))
	if maxLag > m-1 {
		maxLag = m - 1
	}
	return maxLag
}

// ACF computes the sample autocorrelation function of x for lags 0..maxLag.
// The series is demeaned and every autocovariance is divided by len(x), so
// the result is bounded by 1 in absolute value.
// Returns ErrNumericDegeneracy if x has zero variance.
func ACF(x []float64, maxLag int) ([]float64, error) {
	n := len(x)
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 observations for an ACF, got %d", ErrInsufficientData, n)
	}
	if maxLag < 0 || maxLag >= n {
		return nil, fmt.Errorf("%w: lag %d outside [0, %d]", ErrInvalidParameter, maxLag, n-1)
	}

	mean := stat.Mean(x, nil)

	// lag-0 autocovariance
	c0 := 0.0
	for _, v := range x {
		c0 += (v - mean) * (v - mean)
	}
	if c0 == 0 {
		return nil, fmt.Errorf("%w: series has zero variance", ErrNumericDegeneracy)
	}

	acf := make([]float64, maxLag+1)
	acf[0] = 1
	for k := 1; k <= maxLag; k++ {
		sum := 0.0
		for t := k; t < n; t++ {
			sum += (x[t] - mean) * (x[t-k] - mean)
		}
		acf[k] = sum / c0
	}

	return acf, nil
}

// checkDiffuse validates a diffuse count against a series of length n.
func checkDiffuse(n, d int) error {
	if d < 0 || d >= n {
		return fmt.Errorf("%w: diffuse count d=%d must be in [0, %d)", ErrInvalidParameter, d, n)
	}
	return nil
}
