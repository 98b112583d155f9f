// Package synthesis turns generation specs into generator programs. It asks
// the configured generation service for a purpose-built program and falls
// back to the embedded template when the service is unavailable, exhausts its
// retry budget, or returns something that is not code.
package synthesis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/miragedata/mirage-engine/pkg/config"
	"github.com/miragedata/mirage-engine/pkg/llm"
	"github.com/miragedata/mirage-engine/pkg/models"
	"github.com/miragedata/mirage-engine/pkg/prompts"
	"github.com/miragedata/mirage-engine/pkg/retry"
)

// Result is a program ready for sandbox execution.
type Result struct {
	Source   string
	Language models.ProgramLanguage
	Origin   models.ProgramOrigin
}

// Feedback carries a rejected program and the validation findings that
// rejected it, so the next prompt can ask for a targeted revision.
type Feedback struct {
	PreviousSource string
	Lines          []string
}

// Synthesizer produces generator programs for one generation spec at a time.
type Synthesizer struct {
	client llm.LLMClient
	cfg    *config.GenerationConfig
	logger *zap.Logger
}

// NewSynthesizer builds a Synthesizer. A nil client is allowed and means
// every call resolves to the template program.
func NewSynthesizer(client llm.LLMClient, cfg *config.GenerationConfig, logger *zap.Logger) *Synthesizer {
	if cfg == nil {
		cfg = &config.GenerationConfig{}
	}
	return &Synthesizer{
		client: client,
		cfg:    cfg,
		logger: logger.Named("synthesis"),
	}
}

// Synthesize produces a generator program for the spec. When feedback is
// non-nil the prompt asks for a revision of the previous program instead of
// a fresh one.
//
// Service failures never fail the call: after the retry budget is spent the
// template program is returned with origin "template". The only errors are
// an unusable spec and cancellation of ctx itself.
func (s *Synthesizer) Synthesize(ctx context.Context, spec *models.GenerationSpec, feedback *Feedback) (*Result, error) {
	if s.client == nil {
		s.logger.Info("no generation service configured, using template program")
		return s.templateResult(), nil
	}

	var prompt string
	var err error
	if feedback != nil {
		prompt, err = prompts.BuildRegenerationPrompt(spec, feedback.PreviousSource, feedback.Lines)
	} else {
		prompt, err = prompts.BuildSynthesisPrompt(spec)
	}
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	source, err := s.generate(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		s.logger.Warn("generation service failed, falling back to template program",
			zap.Bool("revision", feedback != nil),
			zap.Error(err))
		return s.templateResult(), nil
	}

	return &Result{
		Source:   source,
		Language: models.ProgramLanguageGo,
		Origin:   models.ProgramOriginGenerated,
	}, nil
}

// generate calls the generation service with per-call timeouts and a bounded
// retry budget, then extracts the program source from the response.
func (s *Synthesizer) generate(ctx context.Context, prompt string) (string, error) {
	systemMessage := prompts.BuildSynthesisSystemMessage()
	timeout := time.Duration(s.cfg.RequestTimeoutSeconds) * time.Second
	retryCfg := retry.GenerationConfig(s.cfg.MaxServiceRetries)

	result, err := retry.DoWithResultIfRetryable(ctx, retryCfg, func() (*llm.GenerateResponseResult, error) {
		callCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return s.client.GenerateResponse(callCtx, prompt, systemMessage, s.cfg.Temperature)
	})
	if err != nil {
		return "", fmt.Errorf("generation service: %w", err)
	}

	source, err := llm.ExtractCode(result.Content, "go")
	if err != nil {
		return "", fmt.Errorf("extract program source: %w", err)
	}

	s.logger.Debug("generation service returned a program",
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("completion_tokens", result.CompletionTokens),
		zap.Int("source_bytes", len(source)))
	return source, nil
}

func (s *Synthesizer) templateResult() *Result {
	return &Result{
		Source:   TemplateProgram(),
		Language: models.ProgramLanguageGo,
		Origin:   models.ProgramOriginTemplate,
	}
}
