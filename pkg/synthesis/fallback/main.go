// The built-in fallback generator. This file is embedded by the synthesis
// package and interpreted inside the sandbox when the generation service
// cannot produce a program, so it may only use sandbox-allowed imports and
// must stay self-contained.
//
// It samples every column independently from the distribution family its
// profile discloses, seeded from the structural hash so identical profiles
// produce identical output.
package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"time"
)

type profile struct {
	Columns        []columnProfile `json:"columns"`
	StructuralHash string          `json:"structural_hash"`
}

type columnProfile struct {
	Name          string            `json:"name"`
	Type          string            `json:"type"`
	NullRatio     float64           `json:"null_ratio"`
	DistinctRatio float64           `json:"distinct_ratio"`
	Numeric       *numericStats     `json:"numeric"`
	Categorical   *categoricalStats `json:"categorical"`
	Datetime      *datetimeStats    `json:"datetime"`
	Text          *textStats        `json:"text"`
	Boolean       *booleanStats     `json:"boolean"`
}

type numericStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

type categoricalStats struct {
	DistinctCount int          `json:"distinct_count"`
	TopValues     []labelRatio `json:"top_values"`
}

type labelRatio struct {
	Label string  `json:"label"`
	Ratio float64 `json:"ratio"`
}

type datetimeStats struct {
	Min    time.Time `json:"min"`
	Max    time.Time `json:"max"`
	Format string    `json:"format"`
}

type textStats struct {
	MinLength int           `json:"min_length"`
	MaxLength int           `json:"max_length"`
	AvgLength float64       `json:"avg_length"`
	Patterns  []shapeRecord `json:"patterns"`
}

type shapeRecord struct {
	Name      string  `json:"name"`
	MatchRate float64 `json:"match_rate"`
}

type booleanStats struct {
	TrueRatio float64 `json:"true_ratio"`
}

type output struct {
	Columns []outputColumn `json:"columns"`
}

type outputColumn struct {
	Name   string `json:"name"`
	Values []any  `json:"values"`
}

// Generate builds targetRows synthetic rows matching the profile in
// metadataJSON and returns them as column-oriented JSON.
func Generate(metadataJSON string, targetRows int) (string, error) {
	var p profile
	if err := json.Unmarshal([]byte(metadataJSON), &p); err != nil {
		return "", fmt.Errorf("parse metadata: %v", err)
	}
	if targetRows < 0 {
		return "", fmt.Errorf("target rows must not be negative, got %d", targetRows)
	}

	rng := rand.New(rand.NewSource(seedFrom(p.StructuralHash)))

	out := output{Columns: make([]outputColumn, 0, len(p.Columns))}
	for _, col := range p.Columns {
		values := make([]any, targetRows)
		for i := range values {
			if col.NullRatio > 0 && rng.Float64() < col.NullRatio {
				values[i] = nil
				continue
			}
			values[i] = sampleValue(rng, col)
		}
		out.Columns = append(out.Columns, outputColumn{Name: col.Name, Values: values})
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode output: %v", err)
	}
	return string(encoded), nil
}

// seedFrom derives a deterministic seed with 64-bit FNV-1a.
func seedFrom(hash string) int64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(hash); i++ {
		h ^= uint64(hash[i])
		h *= 1099511628211
	}
	return int64(h)
}

func sampleValue(rng *rand.Rand, col columnProfile) any {
	switch col.Type {
	case "integer":
		return sampleInteger(rng, col.Numeric)
	case "float":
		return sampleFloat(rng, col.Numeric)
	case "boolean":
		ratio := 0.5
		if col.Boolean != nil {
			ratio = col.Boolean.TrueRatio
		}
		return rng.Float64() < ratio
	case "categorical":
		return sampleCategory(rng, col.Categorical)
	case "datetime":
		return sampleDatetime(rng, col.Datetime)
	default:
		return sampleText(rng, col.Text)
	}
}

func sampleInteger(rng *rand.Rand, n *numericStats) any {
	if n == nil {
		return int64(rng.Intn(1000))
	}
	// Fractional bounds can come from user constraints; keep the rounded
	// value inside them.
	lo := math.Ceil(n.Min)
	hi := math.Floor(n.Max)
	v := math.Round(sampleNormal(rng, n))
	return int64(clamp(v, lo, hi))
}

func sampleFloat(rng *rand.Rand, n *numericStats) any {
	if n == nil {
		return rng.Float64()
	}
	return clamp(sampleNormal(rng, n), n.Min, n.Max)
}

// sampleNormal draws from N(mean, std) with the Box-Muller transform.
func sampleNormal(rng *rand.Rand, n *numericStats) float64 {
	if n.StdDev <= 0 {
		return n.Mean
	}
	u1 := rng.Float64()
	for u1 == 0 {
		u1 = rng.Float64()
	}
	u2 := rng.Float64()
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return n.Mean + n.StdDev*z
}

func clamp(v, min, max float64) float64 {
	if min > max {
		return min
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// sampleCategory draws a disclosed label by its frequency; leftover mass
// goes to synthetic filler labels when the profile says more labels exist
// than were disclosed.
func sampleCategory(rng *rand.Rand, c *categoricalStats) any {
	if c == nil || (len(c.TopValues) == 0 && c.DistinctCount <= 0) {
		return fmt.Sprintf("value_%d", rng.Intn(10))
	}

	r := rng.Float64()
	var cumulative float64
	for _, tv := range c.TopValues {
		cumulative += tv.Ratio
		if r < cumulative {
			return tv.Label
		}
	}

	hidden := c.DistinctCount - len(c.TopValues)
	if hidden <= 0 {
		// All labels disclosed; ratios may not quite sum to 1.
		if len(c.TopValues) > 0 {
			return c.TopValues[rng.Intn(len(c.TopValues))].Label
		}
		return "value_0"
	}
	return fmt.Sprintf("value_%d", rng.Intn(hidden))
}

func sampleDatetime(rng *rand.Rand, d *datetimeStats) any {
	if d == nil || d.Max.Before(d.Min) {
		return time.Unix(0, 0).UTC().Format(time.RFC3339)
	}
	span := d.Max.UnixNano() - d.Min.UnixNano()
	var offset int64
	if span > 0 {
		offset = rng.Int63n(span + 1)
	}
	t := time.Unix(0, d.Min.UnixNano()+offset).UTC()
	return t.Format(layoutFor(d.Format))
}

// layoutFor maps recorded format names to layouts. Unrecognized non-empty
// values are treated as literal layouts so user-declared formats work too.
func layoutFor(format string) string {
	switch format {
	case "", "rfc3339":
		return time.RFC3339
	case "date":
		return "2006-01-02"
	case "datetime":
		return "2006-01-02 15:04:05"
	case "slash_date_us":
		return "01/02/2006"
	case "slash_date":
		return "2006/01/02"
	case "compact":
		return "20060102"
	case "rfc1123":
		return time.RFC1123
	default:
		return format
	}
}

func sampleText(rng *rand.Rand, t *textStats) any {
	if t == nil {
		return randomWord(rng, 8)
	}

	switch dominantShape(t) {
	case "uuid":
		return randomUUID(rng)
	case "email":
		return randomWord(rng, 7) + "@" + randomWord(rng, 6) + ".com"
	case "url":
		return "https://" + randomWord(rng, 8) + ".com/" + randomWord(rng, 6)
	case "digits":
		return randomDigits(rng, lengthTarget(t))
	case "prefixed_token":
		return randomWord(rng, 3) + "-" + randomDigits(rng, 8)
	case "alphanumeric":
		return randomAlphanumeric(rng, lengthTarget(t))
	default:
		return randomWord(rng, lengthTarget(t))
	}
}

// dominantShape returns the best-supported pattern name, or empty.
func dominantShape(t *textStats) string {
	best := ""
	bestRate := 0.5
	for _, p := range t.Patterns {
		if p.MatchRate > bestRate {
			best = p.Name
			bestRate = p.MatchRate
		}
	}
	return best
}

func lengthTarget(t *textStats) int {
	n := int(math.Round(t.AvgLength))
	if n < 1 {
		n = 1
	}
	if t.MinLength > 0 && n < t.MinLength {
		n = t.MinLength
	}
	if t.MaxLength > 0 && n > t.MaxLength {
		n = t.MaxLength
	}
	if n > 64 {
		n = 64
	}
	return n
}

func randomWord(rng *rand.Rand, length int) string {
	if length < 1 {
		length = 1
	}
	b := make([]byte, length)
	for i := range b {
		b[i] = byte('a' + rng.Intn(26))
	}
	return string(b)
}

func randomDigits(rng *rand.Rand, length int) string {
	if length < 1 {
		length = 1
	}
	b := make([]byte, length)
	for i := range b {
		b[i] = byte('0' + rng.Intn(10))
	}
	return string(b)
}

func randomAlphanumeric(rng *rand.Rand, length int) string {
	if length < 1 {
		length = 1
	}
	b := make([]byte, length)
	for i := range b {
		if rng.Intn(3) == 0 {
			b[i] = byte('0' + rng.Intn(10))
		} else {
			b[i] = byte('a' + rng.Intn(26))
		}
	}
	return string(b)
}

const hexDigits = "0123456789abcdef"

func randomUUID(rng *rand.Rand) string {
	b := make([]byte, 36)
	for i := range b {
		switch i {
		case 8, 13, 18, 23:
			b[i] = '-'
		case 14:
			b[i] = '4'
		default:
			b[i] = hexDigits[rng.Intn(16)]
		}
	}
	return string(b)
}

func main() {}
