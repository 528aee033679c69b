package diagnostics

import "math"

// QResult holds the Ljung-Box portmanteau test over lags 1..K.
type QResult struct {
	K             int     // number of lags
	W             int     // number of estimated hyperparameters
	DF            int     // chi-square degrees of freedom, K-W+1
	Value         float64 // Q statistic
	CriticalValue float64 // upper 5% chi-square quantile
}

// Passed reports whether the residuals look independent up to lag K.
func (r QResult) Passed() bool { return r.Value < r.CriticalValue }

// RResult holds the autocorrelations at lag 1 and at lag L.
type RResult struct {
	Lags          [2]int // always (1, L)
	ValueAtLag1   float64
	ValueAtLagL   float64
	CriticalValue float64 // 2/sqrt(n-d)
}

// PassedAtLag1 reports whether r(1) lies inside the 95% band.
func (r RResult) PassedAtLag1() bool { return math.Abs(r.ValueAtLag1) < r.CriticalValue }

// PassedAtLagL reports whether r(L) lies inside the 95% band.
func (r RResult) PassedAtLagL() bool { return math.Abs(r.ValueAtLagL) < r.CriticalValue }

// HResult holds the homoscedasticity test comparing the last and first thirds
// of the residuals.
type HResult struct {
	H             int     // size of each third
	Ratio         float64 // SS(last third) / SS(first third)
	Value         float64 // Ratio, or 1/Ratio when Ratio < 1
	CriticalValue float64 // upper 2.5% quantile of F(H, H)
}

// Passed reports whether the variance looks constant.
func (r HResult) Passed() bool { return r.Value < r.CriticalValue }

// Reciprocal reports whether the table shows 1/H instead of H.
func (r HResult) Reciprocal() bool { return !(r.Ratio > 1) }

// NResult holds the Jarque-Bera normality test.
type NResult struct {
	Value         float64
	CriticalValue float64 // upper 5% quantile of chi-square(2)
	Skewness      float64
	Kurtosis      float64 // not excess; 3 for a normal sample
}

// Passed reports whether the residuals look normally distributed.
func (r NResult) Passed() bool { return r.Value < r.CriticalValue }

// Params are the integer settings of one diagnostic pass.
type Params struct {
	K int // lags in the Q test
	W int // number of estimated hyperparameters
	D int // diffuse count
	L int // second lag reported by the r test
}

// Report is the outcome of the four tests on one residual series.
type Report struct {
	Title string
	Q     QResult
	R     RResult
	H     HResult
	N     NResult
}
