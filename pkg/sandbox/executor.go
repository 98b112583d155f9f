// Package sandbox executes untrusted generator programs against disclosed
// metadata. Programs never see raw source data: the only input is the
// metadata JSON and a row count, the only output is column-oriented JSON
// that must match the declared schema exactly.
//
// Two engines are supported. Go source runs in the yaegi interpreter behind
// static capability checks; WebAssembly modules run in extism with no WASI,
// no host functions, and a hard page limit.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/miragedata/mirage-engine/pkg/config"
	"github.com/miragedata/mirage-engine/pkg/models"
	"github.com/miragedata/mirage-engine/pkg/tabular"
)

// Program is a generator program as stored in the catalog: Go source
// verbatim, or a base64-encoded WebAssembly module.
type Program struct {
	Language models.ProgramLanguage
	Source   string
}

// Executor runs programs under the configured budgets.
type Executor struct {
	cfg    *config.SandboxConfig
	logger *zap.Logger
}

// NewExecutor builds an Executor. A nil cfg gets conservative defaults.
func NewExecutor(cfg *config.SandboxConfig, logger *zap.Logger) *Executor {
	if cfg == nil {
		cfg = &config.SandboxConfig{
			TimeBudgetSeconds: 10,
			MemoryBudgetMB:    256,
			MaxProgramBytes:   262144,
		}
	}
	return &Executor{cfg: cfg, logger: logger.Named("sandbox")}
}

// Execute runs the program against the metadata and returns its output as a
// schema-checked dataset. Column names, order, declared types, and row count
// must match the metadata exactly.
//
// All failures carry a *Error kind; callers distinguish violations,
// timeouts, memory breaches, and schema mismatches through the predicates.
func (e *Executor) Execute(ctx context.Context, program Program, metadata *models.DatasetMetadata, targetRows int) (*tabular.Dataset, error) {
	if metadata == nil || len(metadata.Columns) == 0 {
		return nil, newError(FailureSchemaMismatch, "no metadata to execute against", nil)
	}
	if targetRows < 0 {
		return nil, newError(FailureSchemaMismatch,
			fmt.Sprintf("target rows must not be negative, got %d", targetRows), nil)
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	scratch, err := newScratchDir(e.cfg.ScratchRoot)
	if err != nil {
		return nil, err
	}

	budget := time.Duration(e.cfg.TimeBudgetSeconds) * time.Second
	runCtx := ctx
	if budget > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	started := time.Now()
	var raw string
	switch program.Language {
	case models.ProgramLanguageWasm:
		raw, err = e.runWasm(runCtx, program.Source, metadataJSON, targetRows, scratch)
	case models.ProgramLanguageGo, "":
		raw, err = e.runGo(runCtx, program.Source, string(metadataJSON), targetRows, scratch)
	default:
		scratch.Remove()
		return nil, newError(FailureViolation,
			fmt.Sprintf("unsupported program language %q", program.Language), nil)
	}
	if err != nil {
		e.logger.Warn("program execution failed",
			zap.String("language", string(program.Language)),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err))
		return nil, err
	}

	dataset, err := decodeOutput(raw, metadata, targetRows)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("program execution succeeded",
		zap.String("language", string(program.Language)),
		zap.Int("rows", dataset.RowCount()),
		zap.Duration("elapsed", time.Since(started)))
	return dataset, nil
}

// outputBudget is the Go engine's memory stand-in: interpreted programs
// cannot be page-limited, so the budget caps the serialized result instead.
func (e *Executor) outputBudget() int {
	if e.cfg.MemoryBudgetMB <= 0 {
		return 0
	}
	return e.cfg.MemoryBudgetMB << 20
}
