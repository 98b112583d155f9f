// Package pipeline orchestrates one synthetic-data run: fingerprint the
// source, look for a reusable program in the catalog, synthesize one when
// nothing matches, execute it in the sandbox, validate fidelity, and retry
// with tightened constraints until accepted or the attempt budget runs out.
//
// The run is an explicit state machine with the attempt counter as part of
// its state. Context cancellation is honored between any two states; an
// in-flight sandbox execution still runs out its own budget so resources are
// released.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/miragedata/mirage-engine/pkg/apperrors"
	"github.com/miragedata/mirage-engine/pkg/catalog"
	"github.com/miragedata/mirage-engine/pkg/config"
	"github.com/miragedata/mirage-engine/pkg/dictionary"
	"github.com/miragedata/mirage-engine/pkg/fidelity"
	"github.com/miragedata/mirage-engine/pkg/fingerprint"
	"github.com/miragedata/mirage-engine/pkg/models"
	"github.com/miragedata/mirage-engine/pkg/sandbox"
	"github.com/miragedata/mirage-engine/pkg/synthesis"
	"github.com/miragedata/mirage-engine/pkg/tabular"
)

// Outcome is the terminal status of a run.
type Outcome string

const (
	// OutcomeAccepted means an attempt passed fidelity validation.
	OutcomeAccepted Outcome = "accepted"

	// OutcomeFailed means the attempt budget ran out; the best-scoring
	// attempt's output is still returned.
	OutcomeFailed Outcome = "failed"
)

type state int

const (
	stateExtracting state = iota
	stateMatching
	stateReusing
	stateSynthesizing
	stateExecuting
	stateValidating
	stateRegenerating
	stateAccepted
	stateFailed
)

var stateNames = [...]string{
	"extracting",
	"matching",
	"reusing",
	"synthesizing",
	"executing",
	"validating",
	"regenerating",
	"accepted",
	"failed",
}

func (s state) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Request describes one generation run.
type Request struct {
	// Dataset is the source table to imitate. Its rows never leave the
	// extractor.
	Dataset *tabular.Dataset

	// TargetRows is the number of synthetic rows to produce.
	TargetRows int

	// Dictionary optionally narrows generation with user-declared rules.
	Dictionary *dictionary.Dictionary

	// MatchThreshold, MinFidelityScore and MaxAttempts override the
	// pipeline options when positive.
	MatchThreshold   float64
	MinFidelityScore float64
	MaxAttempts      int
}

// Result is what a completed run returns. Failed runs still carry the best
// attempt's dataset and report so callers can make an informed accept/reject
// decision.
type Result struct {
	Dataset *tabular.Dataset
	Report  *models.FidelityReport
	Outcome Outcome

	// Origin tells where the returned dataset's program came from.
	Origin models.ProgramOrigin

	// CatalogEntryID is the reused or newly persisted entry, when any.
	CatalogEntryID *uuid.UUID

	// Metadata is the privacy-safe fingerprint extracted from the source.
	Metadata *models.DatasetMetadata

	// Attempts is the full attempt history in order.
	Attempts []models.GenerationAttempt
}

// Options tunes orchestration. Zero fields fall back to DefaultOptions.
type Options struct {
	// MaxAttempts bounds sandbox executions per run, counting the first.
	MaxAttempts int

	// MinFidelityScore is the default acceptance threshold.
	MinFidelityScore float64

	// MatchThreshold is the default catalog similarity bar.
	MatchThreshold float64

	// BatchConcurrency bounds concurrent runs in RunBatch.
	BatchConcurrency int
}

// DefaultOptions match the shipped configuration defaults.
var DefaultOptions = Options{
	MaxAttempts:      3,
	MinFidelityScore: 0.75,
	MatchThreshold:   0.8,
	BatchConcurrency: 4,
}

// OptionsFromConfig projects the loaded configuration onto pipeline options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxAttempts:      cfg.Pipeline.MaxAttempts,
		MinFidelityScore: cfg.Pipeline.MinFidelityScore,
		MatchThreshold:   cfg.Catalog.MatchThreshold,
		BatchConcurrency: cfg.Pipeline.BatchConcurrency,
	}
}

// Deps are the collaborators a pipeline orchestrates.
type Deps struct {
	Extractor   *fingerprint.Extractor
	Matcher     *catalog.Matcher
	Store       catalog.Store
	Synthesizer *synthesis.Synthesizer
	Executor    *sandbox.Executor
	Validator   *fidelity.Validator
}

// Pipeline runs the extract-match-generate-validate loop.
type Pipeline struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
}

// New creates a pipeline over the given collaborators.
func New(deps Deps, opts Options, logger *zap.Logger) *Pipeline {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = DefaultOptions.MaxAttempts
	}
	if opts.MinFidelityScore <= 0 {
		opts.MinFidelityScore = DefaultOptions.MinFidelityScore
	}
	if opts.MatchThreshold <= 0 {
		opts.MatchThreshold = DefaultOptions.MatchThreshold
	}
	if opts.BatchConcurrency < 1 {
		opts.BatchConcurrency = DefaultOptions.BatchConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		deps:   deps,
		opts:   opts,
		logger: logger.Named("pipeline"),
	}
}

// program is the generator chosen for the current attempt.
type program struct {
	source   string
	language models.ProgramLanguage
	origin   models.ProgramOrigin
	entryID  *uuid.UUID
}

// bestAttempt remembers the highest-scoring schema-valid output so far.
type bestAttempt struct {
	dataset *tabular.Dataset
	report  *models.FidelityReport
	origin  models.ProgramOrigin
	entryID *uuid.UUID
}

// run is the mutable state threaded through the machine.
type run struct {
	req         Request
	threshold   float64
	minScore    float64
	maxAttempts int

	// raw is the extracted fingerprint; catalog matching and persistence
	// key on it. overlaid has the dictionary rules merged in and is what
	// synthesis, execution, and validation see.
	raw         *models.DatasetMetadata
	overlaid    *models.DatasetMetadata
	constraints *models.GenerationConstraints

	match    *catalog.Match
	program  program
	feedback *synthesis.Feedback

	attempt     int
	attempts    []models.GenerationAttempt
	pending     models.GenerationAttempt
	dataset     *tabular.Dataset
	report      *models.FidelityReport
	lastFailure error

	best *bestAttempt
}

// Run executes one pipeline run to a terminal state.
//
// Errors are reserved for unusable input, extraction failure, cancellation,
// and attempt exhaustion without a single schema-valid output. Everything
// else, including a run that never reached the fidelity bar, comes back as a
// Result with an explicit Outcome.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Dataset == nil {
		return nil, fmt.Errorf("run pipeline: dataset is nil")
	}
	if req.TargetRows < 1 {
		return nil, fmt.Errorf("run pipeline: target rows must be positive, got %d", req.TargetRows)
	}

	r := &run{
		req:         req,
		threshold:   pickFloat(req.MatchThreshold, p.opts.MatchThreshold),
		minScore:    pickFloat(req.MinFidelityScore, p.opts.MinFidelityScore),
		maxAttempts: pickInt(req.MaxAttempts, p.opts.MaxAttempts),
	}

	p.logger.Info("Starting pipeline run",
		zap.Int("source_rows", req.Dataset.RowCount()),
		zap.Int("source_columns", req.Dataset.ColumnCount()),
		zap.Int("target_rows", req.TargetRows),
		zap.Int("max_attempts", r.maxAttempts))

	st := stateExtracting
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline run aborted in state %s: %w", st, err)
		}
		p.logger.Debug("Pipeline state",
			zap.String("state", st.String()),
			zap.Int("attempt", r.attempt))

		var err error
		switch st {
		case stateExtracting:
			st, err = p.extract(r)
		case stateMatching:
			st = p.matchCatalog(ctx, r)
		case stateReusing:
			st = p.reuse(r)
		case stateSynthesizing:
			st, err = p.synthesize(ctx, r)
		case stateExecuting:
			st, err = p.execute(ctx, r)
		case stateValidating:
			st = p.validate(r)
		case stateRegenerating:
			st = p.regenerate(r)
		case stateAccepted:
			return p.accept(ctx, r), nil
		case stateFailed:
			return p.fail(r)
		}
		if err != nil {
			return nil, err
		}
	}
}

func (p *Pipeline) extract(r *run) (state, error) {
	meta, err := p.deps.Extractor.Extract(r.req.Dataset)
	if err != nil {
		return stateFailed, fmt.Errorf("extract source fingerprint: %w", err)
	}
	r.raw = meta
	r.overlaid = meta
	if r.req.Dictionary != nil {
		r.overlaid = r.req.Dictionary.ApplyToMetadata(meta)
		r.constraints = r.req.Dictionary.ToConstraints()
	}
	return stateMatching, nil
}

// matchCatalog resolves the fingerprint against the catalog. Lookup failures
// degrade to a miss: the catalog accelerates the pipeline but never gates it.
func (p *Pipeline) matchCatalog(ctx context.Context, r *run) state {
	match, err := p.deps.Matcher.Find(ctx, r.raw, r.threshold)
	if err != nil {
		p.logger.Warn("Catalog lookup failed, synthesizing fresh", zap.Error(err))
		return stateSynthesizing
	}
	if match == nil {
		return stateSynthesizing
	}
	r.match = match
	return stateReusing
}

func (p *Pipeline) reuse(r *run) state {
	entry := r.match.Entry
	id := entry.ID
	r.program = program{
		source:   entry.ProgramSource,
		language: entry.ProgramLanguage,
		origin:   models.ProgramOriginCached,
		entryID:  &id,
	}
	p.logger.Info("Reusing cataloged program",
		zap.String("entry_id", id.String()),
		zap.Float64("similarity", r.match.Similarity),
		zap.Bool("broad", r.match.Broad))
	return stateExecuting
}

func (p *Pipeline) synthesize(ctx context.Context, r *run) (state, error) {
	spec := &models.GenerationSpec{
		Metadata:    r.overlaid,
		TargetRows:  r.req.TargetRows,
		Constraints: r.constraints,
	}
	result, err := p.deps.Synthesizer.Synthesize(ctx, spec, r.feedback)
	if err != nil {
		return stateFailed, fmt.Errorf("synthesize program: %w", err)
	}
	r.program = program{
		source:   result.Source,
		language: result.Language,
		origin:   result.Origin,
	}
	return stateExecuting, nil
}

func (p *Pipeline) execute(ctx context.Context, r *run) (state, error) {
	r.attempt++
	started := time.Now()
	r.pending = models.GenerationAttempt{
		AttemptNumber:   r.attempt,
		Origin:          r.program.origin,
		ProgramSource:   r.program.source,
		ProgramLanguage: r.program.language,
		CatalogEntryID:  r.program.entryID,
		StartedAt:       started,
	}

	ds, err := p.deps.Executor.Execute(ctx, sandbox.Program{
		Language: r.program.language,
		Source:   r.program.source,
	}, r.overlaid, r.req.TargetRows)
	r.pending.Duration = time.Since(started)
	if err != nil {
		if ctx.Err() != nil {
			return stateFailed, fmt.Errorf("execute program: %w", err)
		}
		r.pending.ExecutionError = err.Error()
		r.attempts = append(r.attempts, r.pending)
		r.lastFailure = err
		p.logger.Warn("Attempt execution failed",
			zap.Int("attempt", r.attempt),
			zap.String("origin", string(r.program.origin)),
			zap.Error(err))
		if r.attempt < r.maxAttempts {
			return stateRegenerating, nil
		}
		return stateFailed, nil
	}
	r.dataset = ds
	return stateValidating, nil
}

func (p *Pipeline) validate(r *run) state {
	report, err := p.deps.Validator.Validate(r.overlaid, r.dataset, r.req.TargetRows, r.minScore)
	if err != nil {
		// Decoded against the schema but would not re-fingerprint.
		r.pending.ExecutionError = fmt.Sprintf("validate output: %v", err)
		r.attempts = append(r.attempts, r.pending)
		r.lastFailure = err
		if r.attempt < r.maxAttempts {
			return stateRegenerating
		}
		return stateFailed
	}
	r.pending.Report = report
	r.attempts = append(r.attempts, r.pending)
	r.report = report

	if r.best == nil || report.AggregateScore > r.best.report.AggregateScore {
		r.best = &bestAttempt{
			dataset: r.dataset,
			report:  report,
			origin:  r.program.origin,
			entryID: r.program.entryID,
		}
	}

	if report.Passed {
		return stateAccepted
	}
	p.logger.Info("Fidelity below threshold",
		zap.Int("attempt", r.attempt),
		zap.Float64("score", report.AggregateScore),
		zap.Float64("threshold", r.minScore))
	if r.attempt < r.maxAttempts {
		return stateRegenerating
	}
	return stateFailed
}

// regenerate prepares the next synthesis round: feedback on what went wrong
// and constraints tightened around the disclosed statistics. A cached
// program is abandoned here; retries always synthesize fresh.
func (p *Pipeline) regenerate(r *run) state {
	r.feedback = p.buildFeedback(r)
	r.constraints = tightenConstraints(r.constraints, r.overlaid, r.report)
	r.match = nil
	r.dataset = nil
	r.report = nil
	p.logger.Info("Regenerating program", zap.Int("next_attempt", r.attempt+1))
	return stateSynthesizing
}

func (p *Pipeline) accept(ctx context.Context, r *run) *Result {
	result := &Result{
		Dataset:        r.dataset,
		Report:         r.report,
		Outcome:        OutcomeAccepted,
		Origin:         r.program.origin,
		CatalogEntryID: r.program.entryID,
		Metadata:       r.raw,
		Attempts:       r.attempts,
	}

	if r.program.origin == models.ProgramOriginCached {
		if err := p.deps.Store.RecordReuse(ctx, *r.program.entryID); err != nil {
			p.logger.Warn("Failed to record catalog reuse", zap.Error(err))
		}
	} else {
		entry := &models.CatalogEntry{
			StructuralHash:     r.raw.StructuralHash,
			FingerprintVector:  r.raw.FingerprintVector,
			ProgramSource:      r.program.source,
			ProgramLanguage:    r.program.language,
			SuccessCount:       1,
			LastValidatedScore: r.report.AggregateScore,
		}
		stored, err := p.deps.Store.Upsert(ctx, entry)
		if err != nil {
			p.logger.Warn("Failed to persist program to catalog", zap.Error(err))
		} else {
			id := stored.ID
			result.CatalogEntryID = &id
		}
	}

	p.logger.Info("Run accepted",
		zap.Float64("score", r.report.AggregateScore),
		zap.Int("attempts", r.attempt),
		zap.String("origin", string(r.program.origin)))
	return result
}

func (p *Pipeline) fail(r *run) (*Result, error) {
	if r.best == nil {
		return nil, fmt.Errorf("no schema-valid output after %d attempts (last: %v): %w: %w",
			r.attempt, r.lastFailure, apperrors.ErrAttemptsExhausted, apperrors.ErrNoValidOutput)
	}

	p.logger.Warn("Attempts exhausted, returning best attempt",
		zap.Int("attempts", r.attempt),
		zap.Float64("best_score", r.best.report.AggregateScore),
		zap.Float64("threshold", r.minScore))

	return &Result{
		Dataset:        r.best.dataset,
		Report:         r.best.report,
		Outcome:        OutcomeFailed,
		Origin:         r.best.origin,
		CatalogEntryID: r.best.entryID,
		Metadata:       r.raw,
		Attempts:       r.attempts,
	}, nil
}

func pickFloat(override, fallback float64) float64 {
	if override > 0 {
		return override
	}
	return fallback
}

func pickInt(override, fallback int) int {
	if override > 0 {
		return override
	}
	return fallback
}
