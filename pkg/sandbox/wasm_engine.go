package sandbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	extism "github.com/extism/go-sdk"
)

// wasmInput is the single argument passed to a module's generate export.
type wasmInput struct {
	Metadata   json.RawMessage `json:"metadata"`
	TargetRows int             `json:"target_rows"`
}

// runWasm executes a base64-encoded module. Isolation is structural: no
// WASI, no host functions, no allowed paths, a page limit derived from the
// memory budget, and the time budget as the manifest timeout.
func (e *Executor) runWasm(ctx context.Context, encoded string, metadataJSON []byte, targetRows int, scratch *scratchDir) (string, error) {
	defer scratch.Remove()

	module, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", newError(FailureViolation, "program is not valid base64", err)
	}
	if err := CheckWasmModule(module, e.cfg.MaxProgramBytes); err != nil {
		return "", err
	}

	input, err := json.Marshal(wasmInput{Metadata: metadataJSON, TargetRows: targetRows})
	if err != nil {
		return "", fmt.Errorf("marshal module input: %w", err)
	}

	manifest := extism.Manifest{
		Wasm: []extism.Wasm{
			extism.WasmData{Data: module, Name: "generator"},
		},
		Timeout: uint64(e.cfg.TimeBudgetSeconds) * 1000,
	}
	if pages := e.maxPages(); pages > 0 {
		manifest.Memory = &extism.ManifestMemory{MaxPages: pages}
	}

	plugin, err := extism.NewPlugin(ctx, manifest, extism.PluginConfig{EnableWasi: false}, nil)
	if err != nil {
		return "", newError(FailureViolation, "module was rejected by the runtime", err)
	}
	defer plugin.CloseWithContext(ctx)

	exitCode, output, err := plugin.CallWithContext(ctx, "generate", input)
	if err != nil {
		return "", e.classifyWasmError(ctx, err)
	}
	if exitCode != 0 {
		return "", newError(FailureExecution,
			fmt.Sprintf("module exited with code %d", exitCode), nil)
	}
	return string(output), nil
}

// maxPages converts the memory budget to 64 KiB wasm pages.
func (e *Executor) maxPages() uint32 {
	if e.cfg.MemoryBudgetMB <= 0 {
		return 0
	}
	return uint32(e.cfg.MemoryBudgetMB) * (1 << 20 / wasmPageBytes)
}

// classifyWasmError maps runtime failures onto the sandbox taxonomy. The
// runtime reports traps as strings, so memory breaches are matched by text.
func (e *Executor) classifyWasmError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Errorf("execution cancelled: %w", ctx.Err())
		}
		return newError(FailureTimeout,
			fmt.Sprintf("execution exceeded the %ds budget", e.cfg.TimeBudgetSeconds), err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return newError(FailureTimeout,
			fmt.Sprintf("execution exceeded the %ds budget", e.cfg.TimeBudgetSeconds), err)
	case strings.Contains(msg, "memory"):
		return newError(FailureMemoryExceeded, "module exceeded its memory limit", err)
	default:
		return newError(FailureExecution, "module call failed", err)
	}
}
