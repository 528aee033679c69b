package regression

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/jcmartinmu/SSM/timeseries"
)

// designMatrix builds the regressors for rows p..T-1 of Y.
// Column order: constant, trend, then the lag blocks
// [ y_{t-1,*}, y_{t-2,*}, ..., y_{t-p,*} ].
func designMatrix(Y mat.Matrix, spec ModelSpec) *mat.Dense {
	T, K := Y.Dims()
	p := spec.Lags
	Treg := T - p

	X := mat.NewDense(Treg, spec.regressors(K), nil)
	for t := 0; t < Treg; t++ {
		col := 0
		// 1-based time index of row t+p
		timeIndex := float64(t + p + 1)

		if spec.Deterministic.hasConst() {
			X.Set(t, col, 1.0)
			col++
		}
		if spec.Deterministic.hasTrend() {
			X.Set(t, col, timeIndex)
			col++
		}

		for j := 1; j <= p; j++ {
			srcRow := t + p - j
			for k := 0; k < K; k++ {
				X.Set(t, col, Y.At(srcRow, k))
				col++
			}
		}
	}
	return X
}

// leastSquares solves X B ≈ Y. It uses the normal equations when X'X can be
// inverted and falls back to the minimum-norm SVD solution otherwise.
func leastSquares(X, Y *mat.Dense) (*mat.Dense, error) {
	_, m := X.Dims()
	_, K := Y.Dims()

	var B mat.Dense

	// First try: normal equations B = (X'X)^(-1) X'Y
	var xtx mat.Dense
	xtx.Mul(X.T(), X)

	var xtxInv mat.Dense
	xtxError := xtxInv.Inverse(&xtx)
	if xtxError == nil {
		var xty mat.Dense
		xty.Mul(X.T(), Y)
		B.Mul(&xtxInv, &xty)
		return &B, nil
	}

	// Fallback: X'X is singular or badly conditioned.
	var svd mat.SVD
	if ok := svd.Factorize(X, mat.SVDFullU|mat.SVDFullV); !ok {
		return nil, fmt.Errorf("OLS failed: X'X singular and SVD factorization failed: %v", xtxError)
	}

	rank := svd.Rank(1e-12)
	if rank == 0 {
		// X is numerically zero, the minimum-norm solution is B = 0
		return mat.NewDense(m, K, nil), nil
	}
	svd.SolveTo(&B, Y, rank)
	return &B, nil
}

// Estimate computes the model coefficients using OLS
// ts: data, one column per series
// spec: lags and deterministic terms
// Returns: coefficients, residual covariance and residuals
func (e *OLSEstimator) Estimate(ts *timeseries.TimeSeries, spec ModelSpec) (*Estimates, error) {
	if ts == nil || ts.Y == nil {
		return nil, fmt.Errorf("time series data not provided")
	}

	T, K := ts.Y.Dims()
	p := spec.Lags

	if p < 0 {
		return nil, fmt.Errorf("lags must be >= 0, got %d", p)
	}
	if T <= p {
		return nil, fmt.Errorf("need at least p+1 observations: p = %d, T = %d", p, T)
	}
	m := spec.regressors(K)
	if m == 0 {
		return nil, fmt.Errorf("model has no regressors: lags = 0 and deterministic = %v", spec.Deterministic)
	}

	// Response matrix Yreg: rows are y_p, y_{p+1}, ..., y_{T-1}
	Treg := T - p
	Yreg := mat.DenseCopyOf(ts.Y.Slice(p, T, 0, K))
	X := designMatrix(ts.Y, spec)

	B, err := leastSquares(X, Yreg)
	if err != nil {
		return nil, err
	}

	// Split B into C (deterministic) and A_j's
	detCols := spec.Deterministic.columns()
	var C *mat.Dense
	if detCols > 0 {
		C = mat.NewDense(K, detCols, nil)
		for k := 0; k < K; k++ {
			for d := 0; d < detCols; d++ {
				C.Set(k, d, B.At(d, k))
			}
		}
	}

	A := make([]*mat.Dense, p)
	for j := 0; j < p; j++ {
		Aj := mat.NewDense(K, K, nil)
		rowOffset := detCols + j*K // start row of this lag block in B
		for eq := 0; eq < K; eq++ {
			for colVar := 0; colVar < K; colVar++ {
				Aj.Set(eq, colVar, B.At(rowOffset+colVar, eq))
			}
		}
		A[j] = Aj
	}

	// Residuals and their covariance
	var Yhat mat.Dense
	Yhat.Mul(X, B)

	U := mat.NewDense(Treg, K, nil)
	U.Sub(Yreg, &Yhat)

	var utu mat.Dense
	utu.Mul(U.T(), U)

	df := float64(Treg - m)
	if df <= 0 {
		df = float64(Treg) // fallback
	}
	sigmaData := make([]float64, K*K)
	for i := 0; i < K; i++ {
		for j := 0; j < K; j++ {
			sigmaData[i*K+j] = utu.At(i, j) / df
		}
	}

	return &Estimates{
		Spec:   spec,
		A:      A,
		C:      C,
		SigmaU: mat.NewSymDense(K, sigmaData),
		U:      U,
	}, nil
}

// predict returns the one-step prediction of variable eq at row using the
// earlier rows of y.
func (e *Estimates) predict(y mat.Matrix, row, eq int) float64 {
	val := 0.0

	// deterministic terms
	if e.C != nil {
		detIdx := 0
		if e.Spec.Deterministic.hasConst() {
			val += e.C.At(eq, detIdx)
			detIdx++
		}
		if e.Spec.Deterministic.hasTrend() {
			val += e.C.At(eq, detIdx) * float64(row+1)
		}
	}

	// lag terms: sum_{j=1}^p A_j(eq, :) y_{row-j}
	_, K := y.Dims()
	for j := 1; j <= e.Spec.Lags; j++ {
		Aj := e.A[j-1]
		for k := 0; k < K; k++ {
			val += Aj.At(eq, k) * y.At(row-j, k)
		}
	}
	return val
}

// Residuals recomputes the residuals ((T-p) x K) of the estimated model on
// the data in ts.
func (e *Estimates) Residuals(ts *timeseries.TimeSeries) (*mat.Dense, error) {
	if ts == nil || ts.Y == nil {
		return nil, fmt.Errorf("time series data not provided")
	}
	if e == nil {
		return nil, fmt.Errorf("model not estimated")
	}

	T, K := ts.Y.Dims()
	p := e.Spec.Lags
	if T <= p {
		return nil, fmt.Errorf("need at least p+1 observations: p = %d, T = %d", p, T)
	}
	if len(e.A) > 0 {
		if ka, _ := e.A[0].Dims(); ka != K {
			return nil, fmt.Errorf("model has %d series, data has %d", ka, K)
		}
	}

	U := mat.NewDense(T-p, K, nil)
	for t := p; t < T; t++ {
		for eq := 0; eq < K; eq++ {
			U.Set(t-p, eq, ts.Y.At(t, eq)-e.predict(ts.Y, t, eq))
		}
	}
	return U, nil
}

// Forecast produces multi-step ahead forecasts given the historical data of yHist.
// yHist: T x K (rows: time, cols: variables). Only last p rows are used as lags,
// and the trend continues from row T.
// steps: number of steps ahead to forecast
// Returns: steps x K matrix of forecasts
func (e *Estimates) Forecast(yHist *mat.Dense, steps int) (*mat.Dense, error) {
	if e == nil {
		return nil, fmt.Errorf("model not estimated")
	}
	if yHist == nil {
		return nil, fmt.Errorf("history not provided")
	}
	if steps <= 0 {
		return nil, fmt.Errorf("steps must be > 0")
	}

	p := e.Spec.Lags
	T, K := yHist.Dims()
	if T < p {
		return nil, fmt.Errorf("need at least %d rows in yHist, got %d", p, T)
	}

	// out holds the full history followed by the forecasts, so that predict
	// sees the right row numbers for the trend.
	out := mat.NewDense(T+steps, K, nil)
	out.Slice(0, T, 0, K).(*mat.Dense).Copy(yHist)

	for step := 0; step < steps; step++ {
		row := T + step
		for eq := 0; eq < K; eq++ {
			out.Set(row, eq, e.predict(out, row, eq))
		}
	}

	return mat.DenseCopyOf(out.Slice(T, T+steps, 0, K)), nil
}
