// Package prompts builds the prompts sent to the generation service. The
// payloads embed dataset metadata only; raw cell values never reach a
// prompt because extraction discards them before synthesis starts.
package prompts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/miragedata/mirage-engine/pkg/models"
	"github.com/miragedata/mirage-engine/pkg/sandbox"
)

// BuildSynthesisPrompt creates the prompt asking for a generator program
// matching the given spec. The fingerprint vector is stripped from the
// payload; it is a similarity key, not something the program should read.
func BuildSynthesisPrompt(spec *models.GenerationSpec) (string, error) {
	payload, err := marshalSpecPayload(spec)
	if err != nil {
		return "", err
	}

	var prompt strings.Builder

	prompt.WriteString("# Synthetic Data Generator Program\n\n")
	prompt.WriteString("Write a Go program that generates synthetic tabular data matching the statistical profile below. ")
	prompt.WriteString("The profile was computed from a real dataset you will never see; the program must reproduce its disclosed statistics, not any particular rows.\n\n")

	writeProfileSection(&prompt, payload)
	writeConstraintSection(&prompt, spec.Constraints)
	writeContractSection(&prompt)
	writeTargetsSection(&prompt)
	writeOutputSection(&prompt)

	return prompt.String(), nil
}

// BuildRegenerationPrompt creates the revision prompt after a failed
// attempt. feedback lines come from the fidelity report or the sandbox
// error; previousSource is the program being revised.
func BuildRegenerationPrompt(spec *models.GenerationSpec, previousSource string, feedback []string) (string, error) {
	payload, err := marshalSpecPayload(spec)
	if err != nil {
		return "", err
	}

	var prompt strings.Builder

	prompt.WriteString("# Synthetic Data Generator Program - Revision\n\n")
	prompt.WriteString("A previous generator program did not reproduce the dataset profile closely enough. ")
	prompt.WriteString("Revise it (or rewrite it) so the flagged columns match their targets.\n\n")

	writeProfileSection(&prompt, payload)

	prompt.WriteString("## Previous Program\n\n")
	prompt.WriteString("```go\n")
	prompt.WriteString(strings.TrimSpace(previousSource))
	prompt.WriteString("\n```\n\n")

	if len(feedback) > 0 {
		prompt.WriteString("## What Fell Short\n\n")
		for _, line := range feedback {
			prompt.WriteString("- ")
			prompt.WriteString(line)
			prompt.WriteString("\n")
		}
		prompt.WriteString("\n")
	}

	writeConstraintSection(&prompt, spec.Constraints)
	writeContractSection(&prompt)
	writeTargetsSection(&prompt)
	writeOutputSection(&prompt)

	return prompt.String(), nil
}

// BuildSynthesisSystemMessage returns the system message for program
// synthesis calls.
func BuildSynthesisSystemMessage() string {
	return `You are an expert Go programmer specializing in statistical simulation. You write single-file generator programs that reproduce dataset statistics from metadata. You respond with Go source code only.`
}

// marshalSpecPayload renders the generation spec as indented JSON with the
// fingerprint vector removed.
func marshalSpecPayload(spec *models.GenerationSpec) ([]byte, error) {
	if spec == nil || spec.Metadata == nil {
		return nil, fmt.Errorf("generation spec has no metadata")
	}

	trimmed := *spec
	metadata := *spec.Metadata
	metadata.FingerprintVector = nil
	trimmed.Metadata = &metadata

	payload, err := json.MarshalIndent(&trimmed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal generation spec: %w", err)
	}
	return payload, nil
}

func writeProfileSection(prompt *strings.Builder, payload []byte) {
	prompt.WriteString("## Dataset Profile\n\n")
	prompt.WriteString("```json\n")
	prompt.Write(payload)
	prompt.WriteString("\n```\n\n")
}

func writeConstraintSection(prompt *strings.Builder, constraints *models.GenerationConstraints) {
	if constraints.IsEmpty() {
		return
	}

	prompt.WriteString("## Hard Constraints\n\n")
	prompt.WriteString("These override the profile wherever they conflict:\n\n")
	for _, line := range RenderConstraints(constraints) {
		prompt.WriteString("- ")
		prompt.WriteString(line)
		prompt.WriteString("\n")
	}
	prompt.WriteString("\n")
}

func writeContractSection(prompt *strings.Builder) {
	prompt.WriteString("## Program Contract\n\n")
	prompt.WriteString("- Single file, `package main`.\n")
	prompt.WriteString("- Implement exactly: `func Generate(metadataJSON string, targetRows int) (string, error)`.\n")
	prompt.WriteString("- `metadataJSON` is the `metadata` object from the profile above; parse what you need from it.\n")
	prompt.WriteString("- Return a JSON document of the form `{\"columns\": [{\"name\": \"...\", \"values\": [...]}]}`.\n")
	prompt.WriteString("- Column names, order, and value types must match the profile exactly. Every column carries exactly `targetRows` values.\n")
	prompt.WriteString("- Emit JSON `null` for null cells; respect each column's `null_ratio`.\n")
	prompt.WriteString(fmt.Sprintf("- Allowed imports (anything else is rejected before execution): %s.\n",
		strings.Join(sandbox.AllowedImports, ", ")))
	prompt.WriteString("- No file, network, process, or reflection access. The program runs in a sandbox that rejects violations statically.\n")
	prompt.WriteString("- Seed any randomness from the profile's `structural_hash` so output is reproducible.\n\n")
}

func writeTargetsSection(prompt *strings.Builder) {
	prompt.WriteString("## Statistical Targets\n\n")
	prompt.WriteString("The output is re-profiled and compared against the input. Match:\n\n")
	prompt.WriteString("- **Numeric columns**: mean, standard deviation, and the {5,25,50,75,95} quantiles, inside [min, max].\n")
	prompt.WriteString("- **Categorical columns**: the disclosed label frequencies in `top_values`; spread any remaining mass over plausible extra labels when `distinct_count` exceeds the disclosed set.\n")
	prompt.WriteString("- **Boolean columns**: `true_ratio`.\n")
	prompt.WriteString("- **Datetime columns**: uniform coverage of [min, max], rendered in the recorded format.\n")
	prompt.WriteString("- **Text and identifier columns**: `avg_length` and the detected pattern classes (uuid, email, url, digits, prefixed tokens).\n")
	prompt.WriteString("- **Correlations**: when a correlation matrix is present, preserve the pairwise Pearson coefficients between numeric columns.\n\n")
}

func writeOutputSection(prompt *strings.Builder) {
	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond with the complete program in a single fenced block:\n\n")
	prompt.WriteString("```go\n")
	prompt.WriteString("package main\n\n")
	prompt.WriteString("// ... imports and helpers ...\n\n")
	prompt.WriteString("func Generate(metadataJSON string, targetRows int) (string, error) {\n")
	prompt.WriteString("\t// parse profile, build columns, marshal output\n")
	prompt.WriteString("}\n")
	prompt.WriteString("```\n\n")
	prompt.WriteString("Return ONLY the Go source, no additional text.\n")
}

// RenderConstraints flattens a constraint set into one line per column plus
// the table-level notes, sorted by column name for stable prompts.
func RenderConstraints(constraints *models.GenerationConstraints) []string {
	if constraints.IsEmpty() {
		return nil
	}

	names := make([]string, 0, len(constraints.Columns))
	for name := range constraints.Columns {
		names = append(names, name)
	}
	sort.Strings(names)

	var lines []string
	for _, name := range names {
		cc := constraints.Columns[name]
		var parts []string
		if cc.MinValue != nil && cc.MaxValue != nil {
			parts = append(parts, fmt.Sprintf("values in [%g, %g]", *cc.MinValue, *cc.MaxValue))
		} else if cc.MinValue != nil {
			parts = append(parts, fmt.Sprintf("values >= %g", *cc.MinValue))
		} else if cc.MaxValue != nil {
			parts = append(parts, fmt.Sprintf("values <= %g", *cc.MaxValue))
		}
		if len(cc.AllowedValues) > 0 {
			parts = append(parts, "only these values: "+strings.Join(cc.AllowedValues, ", "))
		}
		if len(cc.TargetFrequencies) > 0 {
			parts = append(parts, "target frequencies: "+renderFrequencies(cc.TargetFrequencies))
		}
		if cc.Pattern != "" {
			parts = append(parts, fmt.Sprintf("match pattern %s", cc.Pattern))
		}
		if cc.MinLength != nil {
			parts = append(parts, fmt.Sprintf("length >= %d", *cc.MinLength))
		}
		if cc.MaxLength != nil {
			parts = append(parts, fmt.Sprintf("length <= %d", *cc.MaxLength))
		}
		if cc.Format != "" {
			parts = append(parts, "format "+cc.Format)
		}
		if cc.Unique {
			parts = append(parts, "all values distinct")
		}
		if cc.NotNull {
			parts = append(parts, "no nulls")
		}
		if len(parts) > 0 {
			lines = append(lines, fmt.Sprintf("`%s`: %s", name, strings.Join(parts, "; ")))
		}
	}
	lines = append(lines, constraints.Notes...)
	return lines
}

func renderFrequencies(freq map[string]float64) string {
	labels := make([]string, 0, len(freq))
	for label := range freq {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	parts := make([]string, len(labels))
	for i, label := range labels {
		parts[i] = fmt.Sprintf("%s=%.3f", label, freq[label])
	}
	return strings.Join(parts, ", ")
}
