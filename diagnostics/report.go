package diagnostics

import (
	"fmt"
	"io"
	"strings"
)

// Column layout of the diagnostic table. Values are printed with 3 decimals,
// critical values with 2. The value and critical columns start with a blank
// so wide numbers never run into the column before them.
const (
	assumptionWidth = 20
	labelWidth      = 8
	valueWidth      = 12
	criticalWidth   = 11
	markerWidth     = 6

	tableWidth = assumptionWidth + labelWidth + valueWidth + criticalWidth + markerWidth
)

var (
	separator = strings.Repeat("-", tableWidth)
	rowFormat = fmt.Sprintf("%%-%ds%%-%ds %%%d.3f %%%d.2f%%%ds\n",
		assumptionWidth, labelWidth, valueWidth-1, criticalWidth-1, markerWidth)
	headerFormat = fmt.Sprintf("%%-%ds%%-%ds %%%ds %%%ds%%%ds\n",
		assumptionWidth, labelWidth, valueWidth-1, criticalWidth-1, markerWidth)
)

// marker turns a pass condition into the + / - column.
func marker(passed bool) string {
	if passed {
		return "+"
	}
	return "-"
}

// hLabel is H(h) when the ratio exceeds one and 1/H(h) otherwise.
func hLabel(h HResult) string {
	if h.Reciprocal() {
		return fmt.Sprintf("1/H(%d)", h.H)
	}
	return fmt.Sprintf("H(%d)", h.H)
}

// WriteTo renders the report as a fixed-width table. It does no validation
// of the results it prints.
func (rep *Report) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder

	b.WriteString(rep.Title)
	b.WriteString("\n")
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, headerFormat, "Assumption", "Test", "Value", "Critical", "Pass")
	b.WriteString(separator + "\n")

	fmt.Fprintf(&b, rowFormat, "independence", fmt.Sprintf("Q(%d)", rep.Q.K),
		rep.Q.Value, rep.Q.CriticalValue, marker(rep.Q.Passed()))
	fmt.Fprintf(&b, rowFormat, "", fmt.Sprintf("r(%d)", rep.R.Lags[0]),
		rep.R.ValueAtLag1, rep.R.CriticalValue, marker(rep.R.PassedAtLag1()))
	fmt.Fprintf(&b, rowFormat, "", fmt.Sprintf("r(%d)", rep.R.Lags[1]),
		rep.R.ValueAtLagL, rep.R.CriticalValue, marker(rep.R.PassedAtLagL()))
	fmt.Fprintf(&b, rowFormat, "homoscedasticity", hLabel(rep.H),
		rep.H.Value, rep.H.CriticalValue, marker(rep.H.Passed()))
	fmt.Fprintf(&b, rowFormat, "normality", "N",
		rep.N.Value, rep.N.CriticalValue, marker(rep.N.Passed()))

	b.WriteString(separator + "\n")

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// String returns the rendered table.
func (rep *Report) String() string {
	var b strings.Builder
	_, _ = rep.WriteTo(&b)
	return b.String()
}

// AllPassed reports whether every row of the table carries a +.
func (rep *Report) AllPassed() bool {
	return rep.Q.Passed() && rep.R.PassedAtLag1() && rep.R.PassedAtLagL() &&
		rep.H.Passed() && rep.N.Passed()
}
