package diagnostics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// MinNormalitySample is the smallest sample the N test accepts.
const MinNormalitySample = 8

// QStatistic computes the Ljung-Box statistic of resid over lags 1..k and
// compares it to the 95th percentile of a chi-square with k-w+1 degrees of
// freedom.
// resid: residual series (the whole series is used)
// k: number of lags
// w: number of estimated hyperparameters
func QStatistic(resid []float64, k, w int) (QResult, error) {
	n := len(resid)
	if k < 1 {
		return QResult{}, fmt.Errorf("%w: k must be >= 1, got %d", ErrInvalidParameter, k)
	}
	if w < 0 {
		return QResult{}, fmt.Errorf("%w: w must be >= 0, got %d", ErrInvalidParameter, w)
	}
	df := k - w + 1
	if df <= 0 {
		return QResult{}, fmt.Errorf("%w: k-w+1 = %d, chi-square needs positive degrees of freedom", ErrInvalidParameter, df)
	}
	if k >= n {
		return QResult{}, fmt.Errorf("%w: k=%d needs more than %d observations", ErrInvalidParameter, k, n)
	}

	acf, err := ACF(resid, k)
	if err != nil {
		return QResult{}, err
	}

	// Q = n(n+2) sum_j r_j^2 / (n-j)
	q := 0.0
	for j := 1; j <= k; j++ {
		q += acf[j] * acf[j] / float64(n-j)
	}
	q *= float64(n) * float64(n+2)

	chi2 := distuv.ChiSquared{K: float64(df)}

	return QResult{
		K:             k,
		W:             w,
		DF:            df,
		Value:         q,
		CriticalValue: chi2.Quantile(0.95),
	}, nil
}

// RStatistic computes the autocorrelations at lags 1 and l of resid[d:]
// together with the 95% band 2/sqrt(n-d).
// l must lie in [1, MaxACFLag(n-d)].
func RStatistic(resid []float64, d, l int) (RResult, error) {
	n := len(resid)
	if err := checkDiffuse(n, d); err != nil {
		return RResult{}, err
	}

	m := n - d
	maxLag := MaxACFLag(m)
	if l < 1 || l > maxLag {
		return RResult{}, fmt.Errorf("%w: lag l=%d outside [1, %d] for %d observations", ErrInvalidParameter, l, maxLag, m)
	}

	acf, err := ACF(resid[d:], l)
	if err != nil {
		return RResult{}, err
	}

	return RResult{
		Lags:          [2]int{1, l},
		ValueAtLag1:   acf[1],
		ValueAtLagL:   acf[l],
		CriticalValue: 2 / math.Sqrt(float64(m)),
	}, nil
}

// HStatistic tests for heteroscedasticity by comparing the sum of squares of
// the last third of resid[d:] to that of the first third. A ratio below one
// is inverted so that one upper-tail critical value serves both directions.
// Zero sums of squares are reported as ErrNumericDegeneracy.
func HStatistic(resid []float64, d int) (HResult, error) {
	n := len(resid)
	if err := checkDiffuse(n, d); err != nil {
		return HResult{}, err
	}

	// nearest integer, halves to even
	h := int(math.RoundToEven(float64(n-d) / 3))
	if h < 1 {
		return HResult{}, fmt.Errorf("%w: %d observations after d=%d leave an empty third", ErrInsufficientData, n-d, d)
	}

	first := resid[d : d+h]
	last := resid[n-h:]

	ssFirst := floats.Dot(first, first)
	ssLast := floats.Dot(last, last)
	if ssFirst == 0 {
		return HResult{}, fmt.Errorf("%w: first third of the residuals has zero sum of squares", ErrNumericDegeneracy)
	}
	if ssLast == 0 {
		return HResult{}, fmt.Errorf("%w: last third of the residuals has zero sum of squares", ErrNumericDegeneracy)
	}

	ratio := ssLast / ssFirst
	value := ratio
	if ratio < 1 {
		value = 1 / ratio
	}

	f := distuv.F{D1: float64(h), D2: float64(h)}

	return HResult{
		H:             h,
		Ratio:         ratio,
		Value:         value,
		CriticalValue: f.Quantile(0.975),
	}, nil
}

// NStatistic computes the Jarque-Bera normality statistic of resid[d:] from
// population skewness and kurtosis, compared to the 95th percentile of a
// chi-square with 2 degrees of freedom.
func NStatistic(resid []float64, d int) (NResult, error) {
	n := len(resid)
	if err := checkDiffuse(n, d); err != nil {
		return NResult{}, err
	}

	x := resid[d:]
	m := len(x)
	if m < MinNormalitySample {
		return NResult{}, fmt.Errorf("%w: normality test needs %d observations, got %d", ErrInsufficientData, MinNormalitySample, m)
	}

	m2 := stat.Moment(2, x, nil)
	if m2 == 0 {
		return NResult{}, fmt.Errorf("%w: series has zero variance", ErrNumericDegeneracy)
	}
	skew := stat.Moment(3, x, nil) / math.Pow(m2, 1.5)
	kurt := stat.Moment(4, x, nil) / (m2 * m2)

	jb := float64(m) / 6 * (skew*skew + (kurt-3)*(kurt-3)/4)

	chi2 := distuv.ChiSquared{K: 2}

	return NResult{
		Value:         jb,
		CriticalValue: chi2.Quantile(0.95),
		Skewness:      skew,
		Kurtosis:      kurt,
	}, nil
}

// Run evaluates all four tests on resid and bundles them under title.
// The first failing test aborts the pass.
func Run(title string, resid []float64, p Params) (*Report, error) {
	q, err := QStatistic(resid, p.K, p.W)
	if err != nil {
		return nil, fmt.Errorf("Q test: %w", err)
	}
	r, err := RStatistic(resid, p.D, p.L)
	if err != nil {
		return nil, fmt.Errorf("r test: %w", err)
	}
	h, err := HStatistic(resid, p.D)
	if err != nil {
		return nil, fmt.Errorf("H test: %w", err)
	}
	nr, err := NStatistic(resid, p.D)
	if err != nil {
		return nil, fmt.Errorf("N test: %w", err)
	}

	return &Report{Title: title, Q: q, R: r, H: h, N: nr}, nil
}
