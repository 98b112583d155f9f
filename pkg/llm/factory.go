package llm

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/miragedata/mirage-engine/pkg/config"
)

// LLMClientFactory is the interface for creating LLM clients.
// Use this interface for dependency injection and testing.
type LLMClientFactory interface {
	CreateGenerationClient() (LLMClient, error)
	CreateEmbeddingClient() (LLMClient, error)
}

// ClientFactory creates LLM clients from service configuration. Generation
// clients are provider-specific; embedding clients always speak the
// OpenAI-compatible embeddings protocol.
type ClientFactory struct {
	generation config.GenerationConfig
	embedding  config.EmbeddingConfig
	logger     *zap.Logger
}

// NewClientFactory creates a new factory.
func NewClientFactory(cfg *config.Config, logger *zap.Logger) *ClientFactory {
	return &ClientFactory{
		generation: cfg.Generation,
		embedding:  cfg.Embedding,
		logger:     logger,
	}
}

// CreateGenerationClient creates the client used for program synthesis,
// wrapped with a circuit breaker so a down provider fails fast instead of
// stalling every run.
func (f *ClientFactory) CreateGenerationClient() (LLMClient, error) {
	var (
		inner LLMClient
		err   error
	)

	switch f.generation.Provider {
	case config.ProviderOpenAI:
		inner, err = NewOpenAIClient(&ClientConfig{
			Endpoint: f.generation.BaseURL,
			Model:    f.generation.Model,
			APIKey:   f.generation.APIKey,
		}, f.logger)
	case config.ProviderAnthropic:
		inner, err = NewAnthropicClient(&ClientConfig{
			Model:  f.generation.Model,
			APIKey: f.generation.APIKey,
		}, f.logger)
	default:
		return nil, fmt.Errorf("unknown generation provider: %q", f.generation.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create generation client: %w", err)
	}

	return NewBreakerClient(inner, BreakerConfig{
		Threshold:  f.generation.BreakerThreshold,
		ResetAfter: time.Duration(f.generation.BreakerResetSeconds) * time.Second,
	}, f.logger), nil
}

// CreateEmbeddingClient creates a client for fingerprint embeddings.
// Falls back to the generation endpoint and key when no dedicated
// embedding endpoint is configured.
func (f *ClientFactory) CreateEmbeddingClient() (LLMClient, error) {
	if !f.embedding.Enabled {
		return nil, fmt.Errorf("embedding client is not enabled")
	}

	endpoint := f.embedding.EffectiveBaseURL(&f.generation)
	if endpoint == "" {
		return nil, fmt.Errorf("embedding endpoint is not configured")
	}

	client, err := NewOpenAIClient(&ClientConfig{
		Endpoint: endpoint,
		Model:    f.embedding.Model,
		APIKey:   f.embedding.EffectiveAPIKey(&f.generation),
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	return client, nil
}

// Ensure ClientFactory implements LLMClientFactory at compile time.
var _ LLMClientFactory = (*ClientFactory)(nil)
