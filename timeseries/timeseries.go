// Package timeseries holds observed series as a gonum matrix and loads them
// from CSV files.
package timeseries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// TimeSeries is a set of series observed at the same time points.
type TimeSeries struct {
	// Matrix for data, rows are time points and columns are variables
	Y *mat.Dense
	// Time index, one entry per row
	Time []float64
	// List of variable names
	VarNames []string
}

// New wraps the columns of data (one slice per variable) in a TimeSeries.
// All columns must have the same length.
func New(names []string, columns ...[]float64) (*TimeSeries, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("no columns given")
	}
	if len(names) != len(columns) {
		return nil, fmt.Errorf("got %d names for %d columns", len(names), len(columns))
	}
	T := len(columns[0])
	if T == 0 {
		return nil, fmt.Errorf("column %q is empty", names[0])
	}
	K := len(columns)

	Y := mat.NewDense(T, K, nil)
	for k, col := range columns {
		if len(col) != T {
			return nil, fmt.Errorf("column %q has %d values, expected %d", names[k], len(col), T)
		}
		Y.SetCol(k, col)
	}

	times := make([]float64, T)
	for t := range times {
		times[t] = float64(t)
	}

	return &TimeSeries{
		Y:        Y,
		Time:     times,
		VarNames: append([]string(nil), names...),
	}, nil
}

// Len returns the number of time points.
func (ts *TimeSeries) Len() int {
	if ts == nil || ts.Y == nil {
		return 0
	}
	T, _ := ts.Y.Dims()
	return T
}

// Index returns the column of the variable called name, or -1.
func (ts *TimeSeries) Index(name string) int {
	for i, v := range ts.VarNames {
		if v == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the variable called name.
func (ts *TimeSeries) Column(name string) ([]float64, error) {
	k := ts.Index(name)
	if k < 0 {
		return nil, fmt.Errorf("unknown variable %q (have %s)", name, strings.Join(ts.VarNames, ", "))
	}
	return mat.Col(nil, k, ts.Y), nil
}

// Select returns a new TimeSeries holding only the named variables, in the
// given order.
func (ts *TimeSeries) Select(names ...string) (*TimeSeries, error) {
	cols := make([][]float64, len(names))
	for i, name := range names {
		col, err := ts.Column(name)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	out, err := New(names, cols...)
	if err != nil {
		return nil, err
	}
	copy(out.Time, ts.Time)
	return out, nil
}

// LoadCSV loads a CSV file into a TimeSeries.
func LoadCSV(path string) (*TimeSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	ts, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ts, nil
}

// timeColumn heads an optional leading column of time stamps.
const timeColumn = "time"

// ReadCSV reads a header row of variable names followed by numeric rows.
// A leading column headed "time" becomes the time index, which must
// increase; without one the rows are numbered from 0. Errors name the input
// line they occur on.
func ReadCSV(in io.Reader) (*TimeSeries, error) {
	r := csv.NewReader(in)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	names := header
	timed := strings.EqualFold(strings.TrimSpace(header[0]), timeColumn)
	if timed {
		names = header[1:]
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("header names no variables")
	}

	columns := make([][]float64, len(names))
	var times []float64
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := r.FieldPos(0)
		if len(record) != len(header) {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", line, len(header), len(record))
		}

		values, err := parseRecord(record, line)
		if err != nil {
			return nil, err
		}
		if timed {
			if n := len(times); n > 0 && !(values[0] > times[n-1]) {
				return nil, fmt.Errorf("line %d: time %v does not follow %v", line, values[0], times[n-1])
			}
			times = append(times, values[0])
			values = values[1:]
		} else {
			times = append(times, float64(len(times)))
		}
		for k, v := range values {
			columns[k] = append(columns[k], v)
		}
	}

	if len(times) == 0 {
		return nil, fmt.Errorf("no data rows")
	}
	ts, err := New(names, columns...)
	if err != nil {
		return nil, err
	}
	ts.Time = times
	return ts, nil
}

// parseRecord converts one CSV record to floats.
func parseRecord(record []string, line int) ([]float64, error) {
	out := make([]float64, len(record))
	for j, s := range record {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d col %d (%q): %w", line, j+1, s, err)
		}
		out[j] = v
	}
	return out, nil
}
