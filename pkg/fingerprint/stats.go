package fingerprint

import (
	"math"
	"sort"

	"github.com/miragedata/mirage-engine/pkg/models"
)

// populationStats computes min, max, mean, population standard deviation and
// the fixed quantile set over the given values.
func populationStats(values []float64) models.NumericStats {
	stats := models.NumericStats{}
	if len(values) == 0 {
		return stats
	}

	stats.Min = values[0]
	stats.Max = values[0]
	sum := 0.0
	for _, v := range values {
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
		sum += v
	}
	stats.Mean = sum / float64(len(values))

	sqSum := 0.0
	for _, v := range values {
		d := v - stats.Mean
		sqSum += d * d
	}
	stats.StdDev = math.Sqrt(sqSum / float64(len(values)))

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	stats.Quantiles = models.Quantiles{
		P05: quantile(sorted, 0.05),
		P25: quantile(sorted, 0.25),
		P50: quantile(sorted, 0.50),
		P75: quantile(sorted, 0.75),
		P95: quantile(sorted, 0.95),
	}
	return stats
}

// quantile computes the p-quantile of sorted values with linear
// interpolation between closest ranks.
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// pearsonMatrix builds the symmetric correlation matrix over row-aligned
// numeric series. Pairs are complete-case: rows where either side is NaN are
// skipped. Degenerate pairs (fewer than two complete rows, or zero variance)
// get coefficient 0 so the matrix stays JSON-encodable.
func pearsonMatrix(names []string, series [][]float64) *models.CorrelationMatrix {
	n := len(names)
	values := make([][]float64, n)
	for i := range values {
		values[i] = make([]float64, n)
		values[i][i] = 1.0
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r := pearson(series[i], series[j])
			values[i][j] = r
			values[j][i] = r
		}
	}

	return &models.CorrelationMatrix{Columns: names, Values: values}
}

// pearson computes the Pearson coefficient over complete pairs of two
// row-aligned series.
func pearson(a, b []float64) float64 {
	var xs, ys []float64
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		xs = append(xs, a[i])
		ys = append(ys, b[i])
	}
	n := float64(len(xs))
	if n < 2 {
		return 0
	}

	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}

	r := cov / math.Sqrt(varX*varY)
	// Guard against floating-point drift outside [-1, 1].
	return math.Max(-1, math.Min(1, r))
}
