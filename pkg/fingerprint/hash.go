package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/miragedata/mirage-engine/pkg/models"
)

// StructuralHash fingerprints a schema: column names, inferred types and
// their order, independent of any statistics. Two datasets with the same
// hash are candidates for program reuse regardless of their distributions.
func StructuralHash(columns []models.ColumnProfile) string {
	var b strings.Builder
	for _, col := range columns {
		b.WriteString(col.Name)
		b.WriteByte(':')
		b.WriteString(string(col.Type))
		b.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
