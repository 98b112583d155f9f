package llm

import (
	"context"
	"fmt"
	"time"
)

// TestResult contains connection test results.
type TestResult struct {
	Success                  bool      `json:"success"`
	Message                  string    `json:"message"`
	GenerationSuccess        bool      `json:"generation_success"`
	GenerationMessage        string    `json:"generation_message,omitempty"`
	GenerationErrorType      ErrorType `json:"generation_error_type,omitempty"`
	GenerationResponseTimeMs int64     `json:"generation_response_time_ms,omitempty"`
	EmbeddingSuccess         bool      `json:"embedding_success"`
	EmbeddingMessage         string    `json:"embedding_message,omitempty"`
	EmbeddingErrorType       ErrorType `json:"embedding_error_type,omitempty"`
}

// ConnectionTester verifies provider credentials before a batch run.
// This interface enables mocking in tests.
type ConnectionTester interface {
	// Test checks the generation client and, when available, the embedding
	// client produced by the factory.
	Test(ctx context.Context, factory LLMClientFactory) *TestResult
}

// connectionTester implements ConnectionTester with real API calls.
type connectionTester struct {
	timeout time.Duration
}

// NewConnectionTester creates a new tester.
func NewConnectionTester() ConnectionTester {
	return &connectionTester{timeout: 30 * time.Second}
}

// Test checks both clients and summarizes the result.
func (t *connectionTester) Test(ctx context.Context, factory LLMClientFactory) *TestResult {
	result := &TestResult{}

	genClient, err := factory.CreateGenerationClient()
	if err != nil {
		result.GenerationMessage = fmt.Sprintf("Generation: %v", err)
		result.GenerationErrorType = GetErrorType(err)
		result.Message = result.GenerationMessage
		return result
	}

	genResult := t.testGeneration(ctx, genClient)
	result.GenerationSuccess = genResult.Success
	result.GenerationMessage = genResult.Message
	result.GenerationErrorType = genResult.ErrorType
	result.GenerationResponseTimeMs = genResult.ResponseTimeMs

	embConfigured := true
	embClient, err := factory.CreateEmbeddingClient()
	if err != nil {
		embConfigured = false
	} else {
		embResult := t.testEmbedding(ctx, embClient)
		result.EmbeddingSuccess = embResult.Success
		result.EmbeddingMessage = embResult.Message
		result.EmbeddingErrorType = embResult.ErrorType
	}

	if result.GenerationSuccess {
		result.Success = true
		switch {
		case result.EmbeddingSuccess:
			result.Message = "Generation and embedding connections successful"
		case !embConfigured:
			result.Message = "Generation connection successful (embedding not configured)"
		default:
			result.Message = "Generation connection successful, embedding failed"
		}
	} else {
		result.Message = result.GenerationMessage
	}

	return result
}

type singleResult struct {
	Success        bool
	Message        string
	ErrorType      ErrorType
	ResponseTimeMs int64
}

func (t *connectionTester) testGeneration(ctx context.Context, client LLMClient) singleResult {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()

	resp, err := client.GenerateResponse(ctx, "Say 'ok' and nothing else.", "", 0)

	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		llmErr := ClassifyError(err)
		return singleResult{
			Message:        fmt.Sprintf("Generation: %s", llmErr.Message),
			ErrorType:      llmErr.Type,
			ResponseTimeMs: elapsed,
		}
	}

	if resp == nil || resp.Content == "" {
		return singleResult{Message: "Generation returned no response", ErrorType: ErrorTypeUnknown}
	}

	return singleResult{
		Success:        true,
		Message:        fmt.Sprintf("Generation connection successful (model: %s, %dms)", client.GetModel(), elapsed),
		ResponseTimeMs: elapsed,
	}
}

func (t *connectionTester) testEmbedding(ctx context.Context, client LLMClient) singleResult {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()

	vector, err := client.CreateEmbedding(ctx, "test", "")

	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		llmErr := ClassifyError(err)
		return singleResult{
			Message:        fmt.Sprintf("Embedding: %s", llmErr.Message),
			ErrorType:      llmErr.Type,
			ResponseTimeMs: elapsed,
		}
	}

	if len(vector) == 0 {
		return singleResult{Message: "Embedding returned no vectors", ErrorType: ErrorTypeUnknown}
	}

	return singleResult{
		Success:        true,
		Message:        fmt.Sprintf("Embedding successful (model: %s, %dms, %d dims)", client.GetModel(), elapsed, len(vector)),
		ResponseTimeMs: elapsed,
	}
}

// Ensure connectionTester implements ConnectionTester at compile time.
var _ ConnectionTester = (*connectionTester)(nil)
