package fidelity

import (
	"math"

	"github.com/miragedata/mirage-engine/pkg/models"
)

const epsilon = 1e-9

// scoreColumn compares one synthetic profile against its original. Dispatch
// follows the original's type; the synthetic's stat blocks are read directly
// so a benign re-inference drift (float column coming back integer,
// identifier coming back text) does not zero the score.
func scoreColumn(orig, syn models.ColumnProfile) float64 {
	switch orig.Type {
	case models.ColumnTypeInteger, models.ColumnTypeFloat:
		return numericScore(orig.Numeric, syn.Numeric)
	case models.ColumnTypeBoolean:
		return booleanScore(orig.Boolean, syn.Boolean)
	case models.ColumnTypeCategorical:
		return categoricalScore(orig.Categorical, syn.Categorical)
	case models.ColumnTypeDatetime:
		return datetimeScore(orig.Datetime, syn.Datetime)
	default:
		return textScore(orig.Text, syn.Text)
	}
}

// numericScore maps the relative deviations of mean, standard deviation, and
// quantiles to [0,1]. Each deviation is scaled by the larger of the original
// value's magnitude and the observed range, so narrow columns near zero do
// not blow up.
func numericScore(orig, syn *models.NumericStats) float64 {
	if orig == nil || syn == nil {
		return 0
	}

	rangeWidth := orig.Max - orig.Min
	deviation := func(o, s float64) float64 {
		scale := math.Max(math.Abs(o), math.Max(rangeWidth, epsilon))
		d := math.Abs(o-s) / scale
		return math.Min(d, 1)
	}

	deviations := []float64{
		deviation(orig.Mean, syn.Mean),
		deviation(orig.StdDev, syn.StdDev),
		deviation(orig.Quantiles.P05, syn.Quantiles.P05),
		deviation(orig.Quantiles.P25, syn.Quantiles.P25),
		deviation(orig.Quantiles.P50, syn.Quantiles.P50),
		deviation(orig.Quantiles.P75, syn.Quantiles.P75),
		deviation(orig.Quantiles.P95, syn.Quantiles.P95),
	}

	var total float64
	for _, d := range deviations {
		total += d
	}
	return 1 - total/float64(len(deviations))
}

func booleanScore(orig, syn *models.BooleanStats) float64 {
	if orig == nil || syn == nil {
		return 0
	}
	return 1 - math.Abs(orig.TrueRatio-syn.TrueRatio)
}

// categoricalScore is one minus the total variation distance over the union
// of disclosed labels. When the original disclosed no frequencies (all
// labels suppressed), the distinct-count ratio stands in.
func categoricalScore(orig, syn *models.CategoricalStats) float64 {
	if orig == nil || syn == nil {
		return 0
	}

	if len(orig.TopValues) == 0 {
		return countSimilarity(orig.DistinctCount, syn.DistinctCount)
	}

	origFreq := frequencyMap(orig.TopValues)
	synFreq := frequencyMap(syn.TopValues)

	var tvd float64
	for label, p := range origFreq {
		tvd += math.Abs(p - synFreq[label])
		delete(synFreq, label)
	}
	for _, q := range synFreq {
		tvd += q
	}
	tvd /= 2

	return 1 - math.Min(tvd, 1)
}

func frequencyMap(values []models.CategoryFrequency) map[string]float64 {
	m := make(map[string]float64, len(values))
	for _, v := range values {
		m[v.Label] = v.Ratio
	}
	return m
}

func countSimilarity(a, b int) float64 {
	if a == b {
		return 1
	}
	lo, hi := float64(a), float64(b)
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi <= 0 {
		return 1
	}
	if lo < 0 {
		lo = 0
	}
	return lo / hi
}

// datetimeScore is the intersection-over-union of the [min,max] intervals.
func datetimeScore(orig, syn *models.DatetimeStats) float64 {
	if orig == nil || syn == nil {
		return 0
	}

	oMin, oMax := orig.Min.UnixNano(), orig.Max.UnixNano()
	sMin, sMax := syn.Min.UnixNano(), syn.Max.UnixNano()

	low := oMin
	if sMin > low {
		low = sMin
	}
	high := oMax
	if sMax < high {
		high = sMax
	}
	intersection := high - low
	if intersection < 0 {
		intersection = 0
	}

	unionLow := oMin
	if sMin < unionLow {
		unionLow = sMin
	}
	unionHigh := oMax
	if sMax > unionHigh {
		unionHigh = sMax
	}
	union := unionHigh - unionLow

	if union == 0 {
		// Both intervals are the same instant.
		return 1
	}
	return float64(intersection) / float64(union)
}

// textScore averages the length deviation with pattern-coverage deviation
// when the original disclosed patterns.
func textScore(orig, syn *models.TextStats) float64 {
	if orig == nil || syn == nil {
		return 0
	}

	scale := math.Max(orig.AvgLength, math.Max(syn.AvgLength, epsilon))
	lengthScore := 1 - math.Min(math.Abs(orig.AvgLength-syn.AvgLength)/scale, 1)

	if len(orig.Patterns) == 0 {
		return lengthScore
	}

	synRates := make(map[string]float64, len(syn.Patterns))
	for _, p := range syn.Patterns {
		synRates[p.Name] = p.MatchRate
	}
	var total float64
	for _, p := range orig.Patterns {
		total += math.Abs(p.MatchRate - synRates[p.Name])
	}
	patternScore := 1 - math.Min(total/float64(len(orig.Patterns)), 1)

	return (lengthScore + patternScore) / 2
}

// correlationDelta is the Frobenius norm of the pairwise coefficient
// differences normalized by the square root of the pair count, in [0,2].
// Pairs absent from the synthetic matrix count as zero correlation.
func correlationDelta(orig, syn *models.CorrelationMatrix) (float64, bool) {
	if orig == nil || orig.Size() < 2 {
		return 0, false
	}

	var sumSq float64
	var pairs int
	for i := 0; i < orig.Size(); i++ {
		for j := i + 1; j < orig.Size(); j++ {
			o := orig.At(i, j)
			var s float64
			if syn != nil {
				if v, ok := syn.Pair(orig.Columns[i], orig.Columns[j]); ok {
					s = v
				}
			}
			d := o - s
			sumSq += d * d
			pairs++
		}
	}
	if pairs == 0 {
		return 0, false
	}
	return math.Sqrt(sumSq) / math.Sqrt(float64(pairs)), true
}
