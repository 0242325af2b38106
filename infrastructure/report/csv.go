// Package report persists evaluation results as CSV: the permutation metric
// table of a driver run and the per-sample predictions of each classifier
// run. It also aggregates guideline-effect columns across prediction files.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/thefonseca/concept-guidelines/internal/domain"
	"github.com/thefonseca/concept-guidelines/internal/ports"
)

// Prediction file columns preceding the metric columns.
const (
	ColumnIndex      = "index"
	ColumnSource     = "source"
	ColumnReference  = "reference"
	ColumnRaw        = "raw_prediction"
	ColumnPrediction = "prediction"
)

// CSVTableWriter implements ports.TableWriter.
type CSVTableWriter struct{}

var _ ports.TableWriter = CSVTableWriter{}

// WriteTable writes the table to path, creating parent directories.
func (CSVTableWriter) WriteTable(ctx context.Context, path string, table *domain.MetricTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeFile(path, func(w io.Writer) error {
		return EncodeTable(w, table)
	})
}

// EncodeTable writes the header and one row per record.
func EncodeTable(w io.Writer, table *domain.MetricTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Header()); err != nil {
		return err
	}
	for _, r := range table.Records {
		row := []string{strconv.Itoa(r.Run)}
		for _, m := range table.Metrics {
			v, ok := r.Distances[m]
			row = append(row, formatOptional(v, ok))
		}
		if table.TrackEffects {
			row = append(row,
				strconv.Itoa(r.Effects.Positive),
				strconv.Itoa(r.Effects.Neutral),
				strconv.Itoa(r.Effects.Negative))
		}
		row = append(row, formatFloat(r.Accuracy))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePredictions writes one row per prediction to path. Metric columns
// follow the fixed columns in the given order; undefined values are empty.
func WritePredictions(path string, predictions []ports.Prediction, metricColumns []string) error {
	return writeFile(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		header := append([]string{ColumnIndex, ColumnSource, ColumnReference, ColumnRaw, ColumnPrediction}, metricColumns...)
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, p := range predictions {
			row := []string{strconv.Itoa(p.Index), p.Source, p.Reference, p.Raw, p.Predicted}
			for _, c := range metricColumns {
				v, ok := p.Metrics[c]
				row = append(row, formatOptional(v, ok))
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close report: %w", cerr)
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v float64, ok bool) string {
	if !ok {
		return ""
	}
	return formatFloat(v)
}
