package fingerprint

import (
	"regexp"

	"github.com/miragedata/mirage-engine/pkg/models"
)

// valuePatterns are the recognized value-shape classes, matched against
// canonical strings. Only the pattern name and match rate are ever
// disclosed; matched values are not retained.
var valuePatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{models.PatternUUID, regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)},
	{models.PatternEmail, regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)},
	{models.PatternURL, regexp.MustCompile(`^https?://\S+$`)},
	{models.PatternPrefixedToken, regexp.MustCompile(`^[a-z]{2,8}_[A-Za-z0-9_]{6,}$`)},
	{models.PatternDigits, regexp.MustCompile(`^[0-9]+$`)},
	{models.PatternAlphanumeric, regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)},
}

// disclosureFloor is the minimum match rate for a pattern to appear on a
// profile. Identifier classification applies its own, stricter threshold.
const disclosureFloor = 0.5

// detectPatterns computes match rates for every pattern class and returns
// those at or above the disclosure floor, in table order.
func detectPatterns(values []string) []models.DetectedPattern {
	if len(values) == 0 {
		return nil
	}

	var detected []models.DetectedPattern
	for _, p := range valuePatterns {
		matches := 0
		for _, v := range values {
			if p.re.MatchString(v) {
				matches++
			}
		}
		rate := float64(matches) / float64(len(values))
		if rate >= disclosureFloor {
			detected = append(detected, models.DetectedPattern{
				Name:      p.name,
				MatchRate: rate,
			})
		}
	}
	return detected
}
