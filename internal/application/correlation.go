package application

import (
	"math"

	"github.com/thefonseca/concept-guidelines/internal/domain"
)

// Pearson returns the Pearson correlation of xs and ys. It reports false when
// the series differ in length, have fewer than two points, or either has no
// variance.
func Pearson(xs, ys []float64) (float64, bool) {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return 0, false
	}

	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var cov, vx, vy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0, false
	}
	return cov / math.Sqrt(vx*vy), true
}

// Correlations computes pairwise Pearson coefficients between the numeric
// columns of the table. Undefined pairs are left out.
func Correlations(table *domain.MetricTable) map[string]map[string]float64 {
	cols := table.NumericColumns()
	values := make(map[string][]float64, len(cols))
	for _, c := range cols {
		values[c] = table.Column(c)
	}

	out := make(map[string]map[string]float64, len(cols))
	for _, a := range cols {
		row := make(map[string]float64, len(cols))
		for _, b := range cols {
			if r, ok := Pearson(values[a], values[b]); ok {
				row[b] = r
			}
		}
		if len(row) > 0 {
			out[a] = row
		}
	}
	return out
}
