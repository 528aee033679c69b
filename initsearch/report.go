package initsearch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteTrials prints the ranked trial log as a table, best trial first.
func (r *Result) WriteTrials(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%6s | %10s | %14s | %s\n", "Trial", "Value", "LogLik/n", "Status"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "-----------------------------------------------------"); err != nil {
		return err
	}

	for _, t := range r.Trials {
		status := "ok"
		if t.Failed() {
			status = t.Err.Error()
		}
		if _, err := fmt.Fprintf(w, "%6d | %10.6f | %14.6f | %s\n", t.Index, t.Candidate, t.Normalized, status); err != nil {
			return err
		}
	}
	return nil
}

// WriteSummary prints the winning start value in one line.
func (r *Result) WriteSummary(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Best initial value: %.6f (loglik/n = %.6f, %d of %d trials failed)\n",
		r.Best.Candidate, r.Best.Normalized, r.Failures(), len(r.Trials))
	return err
}

// WriteCSV writes the ranked trial log as CSV.
// Columns: Trial, Candidate, Start, LogLik, Nobs, LogLikPerObs, Error
func (r *Result) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	header := []string{"Trial", "Candidate", "Start", "LogLik", "Nobs", "LogLikPerObs", "Error"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, t := range r.Trials {
		start := make([]string, len(t.Start))
		for i, v := range t.Start {
			start[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		errText := ""
		if t.Failed() {
			errText = t.Err.Error()
		}

		record := []string{
			strconv.Itoa(t.Index),
			strconv.FormatFloat(t.Candidate, 'f', -1, 64),
			strings.Join(start, " "),
			fmt.Sprintf("%f", t.LogLikelihood),
			strconv.Itoa(t.Nobs),
			fmt.Sprintf("%f", t.Normalized),
			errText,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
