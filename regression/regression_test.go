package regression

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/jcmartinmu/SSM/mle"
	"github.com/jcmartinmu/SSM/model"
	"github.com/jcmartinmu/SSM/timeseries"
)

// ============================================================================
// HELPER FUNCTIONS
// ============================================================================

// almostEqual compares floats with tolerance
func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// readDirectory reads all files in a directory
func readDirectory(directory string) []os.DirEntry {
	files, err := os.ReadDir(directory)
	if err != nil {
		panic(fmt.Sprintf("Error reading directory %s: %v", directory, err))
	}
	return files
}

// skipComments reads lines from scanner, skipping comment lines starting with #
func skipComments(scanner *bufio.Scanner) string {
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			return line
		}
	}
	return ""
}

func readInt(scanner *bufio.Scanner) int {
	v, err := strconv.Atoi(skipComments(scanner))
	if err != nil {
		panic(err)
	}
	return v
}

func readFloats(scanner *bufio.Scanner, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		v, err := strconv.ParseFloat(skipComments(scanner), 64)
		if err != nil {
			panic(err)
		}
		out[i] = v
	}
	return out
}

// seriesFrom wraps one column in a TimeSeries.
func seriesFrom(t *testing.T, y []float64) *timeseries.TimeSeries {
	t.Helper()
	ts, err := timeseries.New([]string{"y"}, y)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

// simulateAR1 draws y_t = c + phi*y_{t-1} + e_t with e_t ~ N(0, sigma^2).
func simulateAR1(n int, c, phi, sigma float64, seed uint64) []float64 {
	noise := distuv.Normal{Mu: 0, Sigma: sigma, Src: rand.NewPCG(seed, seed+1)}
	y := make([]float64, n)
	y[0] = c / (1 - phi)
	for t := 1; t < n; t++ {
		y[t] = c + phi*y[t-1] + noise.Rand()
	}
	return y
}

// ============================================================================
// FORECAST TESTS
// ============================================================================

type ForecastTest struct {
	Name   string
	Spec   ModelSpec
	Steps  int
	A      []*mat.Dense
	C      *mat.Dense
	YHist  *mat.Dense
	Result []float64
}

func ReadForecastTests(directory string) []ForecastTest {
	inputFiles := readDirectory(directory + "input")
	outputFiles := readDirectory(directory + "output")

	if len(inputFiles) != len(outputFiles) {
		panic("Error: number of input and output files do not match!")
	}

	tests := make([]ForecastTest, len(inputFiles))
	for i, inputFile := range inputFiles {
		tests[i] = ReadForecastInput(directory + "input/" + inputFile.Name())
		tests[i].Name = inputFile.Name()
	}
	for i, outputFile := range outputFiles {
		tests[i].Result = ReadForecastOutput(directory + "output/" + outputFile.Name())
	}
	return tests
}

func ReadForecastInput(file string) ForecastTest {
	f, err := os.Open(file)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)

	// Read K, lags, det_type, steps
	K := readInt(scanner)
	lags := readInt(scanner)
	detType := Deterministic(readInt(scanner))
	steps := readInt(scanner)

	// Read A matrices (lags * K*K values)
	A := make([]*mat.Dense, lags)
	for lag := range A {
		A[lag] = mat.NewDense(K, K, readFloats(scanner, K*K))
	}

	// Read C matrix if there are deterministic terms
	var C *mat.Dense
	if detCols := detType.columns(); detCols > 0 {
		C = mat.NewDense(K, detCols, readFloats(scanner, K*detCols))
	}

	// Read T and the history
	T := readInt(scanner)
	YHist := mat.NewDense(T, K, readFloats(scanner, T*K))

	return ForecastTest{
		Spec:  ModelSpec{Lags: lags, Deterministic: detType},
		Steps: steps,
		A:     A,
		C:     C,
		YHist: YHist,
	}
}

func ReadForecastOutput(file string) []float64 {
	f, err := os.Open(file)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var results []float64
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		val, err := strconv.ParseFloat(line, 64)
		if err != nil {
			continue
		}
		results = append(results, val)
	}
	return results
}

func TestForecast(t *testing.T) {
	tests := ReadForecastTests("testdata/forecast/")
	if len(tests) == 0 {
		t.Fatal("no forecast test cases found")
	}
	for _, test := range tests {
		est := &Estimates{Spec: test.Spec, A: test.A, C: test.C}

		fcst, err := est.Forecast(test.YHist, test.Steps)
		if err != nil {
			t.Errorf("%s: Forecast returned error: %v", test.Name, err)
			continue
		}

		steps, K := fcst.Dims()
		if steps*K != len(test.Result) {
			t.Errorf("%s: got %d forecasts, want %d", test.Name, steps*K, len(test.Result))
			continue
		}
		for j, want := range test.Result {
			got := fcst.At(j/K, j%K)
			if !almostEqual(got, want, 1e-9) {
				t.Errorf("%s: Forecast[%d] = %v, want %v", test.Name, j, got, want)
			}
		}
	}
}

func TestForecastErrors(t *testing.T) {
	est := &Estimates{Spec: ModelSpec{Lags: 2}, A: []*mat.Dense{mat.NewDense(1, 1, []float64{0.5}), mat.NewDense(1, 1, []float64{0.1})}}

	if _, err := est.Forecast(mat.NewDense(1, 1, []float64{1}), 3); err == nil {
		t.Error("expected error for history shorter than the lag order")
	}
	if _, err := est.Forecast(mat.NewDense(2, 1, []float64{1, 2}), 0); err == nil {
		t.Error("expected error for zero steps")
	}
	var nilEst *Estimates
	if _, err := nilEst.Forecast(mat.NewDense(2, 1, []float64{1, 2}), 1); err == nil {
		t.Error("expected error for unestimated model")
	}
}

// ============================================================================
// ESTIMATION TESTS
// ============================================================================

func TestEstimateDeterministicTrend(t *testing.T) {
	y := make([]float64, 10)
	for i := range y {
		y[i] = 3 + 0.25*float64(i+1)
	}

	est, err := (&OLSEstimator{}).Estimate(seriesFrom(t, y), ModelSpec{Deterministic: DetConstTrend})
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(est.C.At(0, 0), 3, 1e-9) || !almostEqual(est.C.At(0, 1), 0.25, 1e-9) {
		t.Errorf("C = %v, want [3 0.25]", mat.Formatted(est.C))
	}
	if len(est.A) != 0 {
		t.Errorf("got %d lag matrices, want 0", len(est.A))
	}
	for i := 0; i < 10; i++ {
		if !almostEqual(est.U.At(i, 0), 0, 1e-9) {
			t.Errorf("residual %d = %v, want 0", i, est.U.At(i, 0))
		}
	}
}

func TestEstimateAR1(t *testing.T) {
	y := simulateAR1(3000, 1, 0.6, 1, 42)

	est, err := (&OLSEstimator{}).Estimate(seriesFrom(t, y), ModelSpec{Lags: 1, Deterministic: DetConst})
	if err != nil {
		t.Fatal(err)
	}

	if got := est.A[0].At(0, 0); !almostEqual(got, 0.6, 0.05) {
		t.Errorf("phi = %v, want about 0.6", got)
	}
	if got := est.C.At(0, 0); !almostEqual(got, 1, 0.2) {
		t.Errorf("c = %v, want about 1", got)
	}
	if got := est.SigmaU.At(0, 0); !almostEqual(got, 1, 0.1) {
		t.Errorf("sigma^2 = %v, want about 1", got)
	}

	// recomputed residuals match the estimation residuals
	U, err := est.Residuals(seriesFrom(t, y))
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(U, est.U, 1e-9) {
		t.Error("Residuals differ from the residuals stored by Estimate")
	}
}

func TestEstimateSingularDesign(t *testing.T) {
	// constant series: intercept and lag columns are collinear
	y := []float64{5, 5, 5, 5, 5, 5, 5, 5}

	est, err := (&OLSEstimator{}).Estimate(seriesFrom(t, y), ModelSpec{Lags: 1, Deterministic: DetConst})
	if err != nil {
		t.Fatal(err)
	}

	// minimum-norm solution of c + 5a = 5
	if !almostEqual(est.C.At(0, 0), 5.0/26, 1e-8) || !almostEqual(est.A[0].At(0, 0), 25.0/26, 1e-8) {
		t.Errorf("c = %v, a = %v, want %v and %v", est.C.At(0, 0), est.A[0].At(0, 0), 5.0/26, 25.0/26)
	}
	for i := 0; i < 7; i++ {
		if !almostEqual(est.U.At(i, 0), 0, 1e-8) {
			t.Errorf("residual %d = %v, want 0", i, est.U.At(i, 0))
		}
	}
}

func TestEstimateErrors(t *testing.T) {
	ts := seriesFrom(t, []float64{1, 2, 3})
	tests := []struct {
		name string
		ts   *timeseries.TimeSeries
		spec ModelSpec
	}{
		{"nil series", nil, ModelSpec{Lags: 1}},
		{"negative lags", ts, ModelSpec{Lags: -1, Deterministic: DetConst}},
		{"too few rows", ts, ModelSpec{Lags: 3}},
		{"no regressors", ts, ModelSpec{}},
	}
	for _, test := range tests {
		if _, err := (&OLSEstimator{}).Estimate(test.ts, test.spec); err == nil {
			t.Errorf("%s: expected error", test.name)
		}
	}
}

func TestParseDeterministic(t *testing.T) {
	for d := DetNone; d <= DetConstTrend; d++ {
		got, err := ParseDeterministic(d.String())
		if err != nil || got != d {
			t.Errorf("ParseDeterministic(%q) = %v, %v", d.String(), got, err)
		}
	}
	if _, err := ParseDeterministic("seasonal"); err == nil {
		t.Error("expected error for unknown deterministic terms")
	}
}

// ============================================================================
// LIKELIHOOD TESTS
// ============================================================================

func TestLogLikelihoodMaximum(t *testing.T) {
	y := simulateAR1(500, 0.5, 0.3, 2, 7)
	m, err := NewModel(seriesFrom(t, y), ModelSpec{Lags: 1, Deterministic: DetConst})
	if err != nil {
		t.Fatal(err)
	}
	if m.Dim() != 1 || m.Nobs() != 499 {
		t.Fatalf("Dim = %d, Nobs = %d; want 1 and 499", m.Dim(), m.Nobs())
	}

	ml := m.MaxLikelihoodVariances()
	llMax, err := m.LogLikelihood(ml)
	if err != nil {
		t.Fatal(err)
	}

	// closed form at the maximum: -n/2 (log 2pi + log s2 + 1)
	n := 499.0
	want := -n / 2 * (math.Log(2*math.Pi) + math.Log(ml[0]) + 1)
	if !almostEqual(llMax, want, 1e-8) {
		t.Errorf("LogLikelihood at ML = %v, want %v", llMax, want)
	}

	for _, scale := range []float64{0.5, 0.9, 1.1, 2} {
		ll, err := m.LogLikelihood([]float64{ml[0] * scale})
		if err != nil {
			t.Fatal(err)
		}
		if ll >= llMax {
			t.Errorf("LogLikelihood at %v x ML = %v, not below the maximum %v", scale, ll, llMax)
		}
	}

	for _, bad := range [][]float64{{0}, {-1}, {math.NaN()}, {math.Inf(1)}, {1, 1}} {
		if _, err := m.LogLikelihood(bad); err == nil {
			t.Errorf("LogLikelihood(%v): expected error", bad)
		}
	}
}

func TestFittedResiduals(t *testing.T) {
	a := simulateAR1(200, 0, 0.5, 1, 1)
	b := simulateAR1(200, 1, 0.2, 3, 2)
	ts, err := timeseries.New([]string{"a", "b"}, a, b)
	if err != nil {
		t.Fatal(err)
	}

	m, err := NewModel(ts, ModelSpec{Lags: 1, Deterministic: DetConst})
	if err != nil {
		t.Fatal(err)
	}
	if m.Dim() != 2 || m.Nobs() != 398 {
		t.Fatalf("Dim = %d, Nobs = %d; want 2 and 398", m.Dim(), m.Nobs())
	}

	params := []float64{4, 9}
	fitted := m.Fitted(params, -123)
	params[0] = 100 // Fitted keeps its own copy

	raw, err := fitted.Residuals(model.Raw, 1)
	if err != nil {
		t.Fatal(err)
	}
	std, err := fitted.Residuals(model.Standardized, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 199 || len(std) != 199 {
		t.Fatalf("got %d and %d residuals, want 199", len(raw), len(std))
	}
	for i := range raw {
		if !almostEqual(std[i], raw[i]/3, 1e-12) {
			t.Fatalf("standardized residual %d = %v, want %v", i, std[i], raw[i]/3)
		}
	}

	if fitted.LogLikelihood() != -123 || fitted.Params()[0] != 4 {
		t.Errorf("fitted = (%v, %v), want (-123, [4 9])", fitted.LogLikelihood(), fitted.Params())
	}
	if _, err := fitted.Residuals(model.Raw, 2); err == nil {
		t.Error("expected error for series out of range")
	}

	idx, err := fitted.(*Fitted).SeriesIndex("b")
	if err != nil || idx != 1 {
		t.Errorf("SeriesIndex(b) = %d, %v", idx, err)
	}
}

func TestMaximumLikelihoodFit(t *testing.T) {
	a := simulateAR1(300, 0, 0.5, 1, 11)
	b := simulateAR1(300, 2, -0.3, 0.5, 12)
	ts, err := timeseries.New([]string{"a", "b"}, a, b)
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewModel(ts, ModelSpec{Lags: 1, Deterministic: DetConst})
	if err != nil {
		t.Fatal(err)
	}

	for _, method := range []mle.Method{mle.NelderMead, mle.BFGS} {
		fitter := &mle.Fitter{Objective: m, Method: method}
		fitted, err := fitter.Fit(context.Background(), []float64{1, 1})
		if err != nil {
			t.Fatalf("%v: %v", method, err)
		}

		want := m.MaxLikelihoodVariances()
		got := fitted.Params()
		for k := range want {
			if !almostEqual(got[k], want[k], 1e-3*want[k]) {
				t.Errorf("%v: variance %d = %v, want %v", method, k, got[k], want[k])
			}
		}
	}
}
