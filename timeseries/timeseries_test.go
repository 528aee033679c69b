package timeseries

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	in := "drivers, petrol\n7.49, -2.27\n\n7.33, -2.28\n7.48,-2.25\n"
	ts, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"drivers", "petrol"}, ts.VarNames)
	assert.Equal(t, 3, ts.Len())
	assert.Equal(t, []float64{0, 1, 2}, ts.Time)

	col, err := ts.Column("petrol")
	require.NoError(t, err)
	assert.Equal(t, []float64{-2.27, -2.28, -2.25}, col)

	// Column returns a copy
	col[0] = 100
	assert.Equal(t, -2.27, ts.Y.At(0, 1))
}

func TestReadCSVTimeColumn(t *testing.T) {
	in := "Time,flow\n1871,1120\n1872,1160\n1873,963\n"
	ts, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"flow"}, ts.VarNames)
	assert.Equal(t, []float64{1871, 1872, 1873}, ts.Time)

	sub, err := ts.Select("flow")
	require.NoError(t, err)
	assert.Equal(t, ts.Time, sub.Time)
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		msg  string
	}{
		{"empty", "", "read header"},
		{"no rows", "a,b\n", "no data rows"},
		{"ragged", "a,b\n1,2\n3\n", "line 3: expected 2 columns, got 1"},
		{"not a number", "a\n1\nx\n", `line 3 col 1 ("x")`},
		{"line after blank", "a\n1\n\n\nx\n", `line 5 col 1 ("x")`},
		{"only time", "time\n1\n", "header names no variables"},
		{"time goes back", "time,a\n1,5\n2,6\n2,7\n", "line 4: time 2 does not follow 2"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tc.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nile.csv")
	require.NoError(t, os.WriteFile(path, []byte("flow\n1120\n1160\n963\n"), 0o644))

	ts, err := LoadCSV(path)
	require.NoError(t, err)
	col, err := ts.Column("flow")
	require.NoError(t, err)
	assert.Equal(t, []float64{1120, 1160, 963}, col)

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}

func TestNewAndSelect(t *testing.T) {
	ts, err := New([]string{"a", "b"}, []float64{1, 2, 3}, []float64{4, 5, 6})
	require.NoError(t, err)

	sub, err := ts.Select("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, sub.VarNames)
	assert.Equal(t, 3, sub.Len())
	assert.Equal(t, 6.0, sub.Y.At(2, 0))

	_, err = ts.Select("c")
	require.Error(t, err)
	assert.Equal(t, -1, ts.Index("c"))

	_, err = New([]string{"a", "b"}, []float64{1, 2}, []float64{1})
	require.Error(t, err)
	_, err = New([]string{"a"})
	require.Error(t, err)
}
