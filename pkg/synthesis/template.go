package synthesis

import (
	_ "embed"
)

// templateSource is the built-in generator program. It lives in its own
// package main under fallback/ so the regular build compiles it, which keeps
// the embedded copy from drifting out of sync with the sandbox contract.
//
//go:embed fallback/main.go
var templateSource string

// TemplateProgram returns the deterministic fallback generator source.
func TemplateProgram() string {
	return templateSource
}
