package llm

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestBreaker(threshold int, resetAfter time.Duration, inner *MockLLMClient) *BreakerClient {
	return NewBreakerClient(inner, BreakerConfig{
		Threshold:  threshold,
		ResetAfter: resetAfter,
	}, zap.NewNop())
}

func failingInner(err error) *MockLLMClient {
	inner := NewMockLLMClient()
	inner.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
		return nil, err
	}
	return inner
}

func TestBreakerClient_InitialState(t *testing.T) {
	inner := NewMockLLMClient()
	inner.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
		return &GenerateResponseResult{Content: "ok"}, nil
	}
	bc := newTestBreaker(5, 30*time.Second, inner)

	if bc.State() != CircuitClosed {
		t.Errorf("expected initial state to be CircuitClosed, got %v", bc.State())
	}

	result, err := bc.GenerateResponse(context.Background(), "hi", "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "ok" {
		t.Errorf("expected pass-through content, got %q", result.Content)
	}
	if inner.GenerateResponseCalls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.GenerateResponseCalls)
	}
}

func TestBreakerClient_TripsAfterThreshold(t *testing.T) {
	inner := failingInner(NewError(ErrorTypeEndpoint, "server error", true, nil))
	bc := newTestBreaker(3, 30*time.Second, inner)

	for i := 0; i < 3; i++ {
		_, _ = bc.GenerateResponse(context.Background(), "hi", "", 0)
	}

	if bc.State() != CircuitOpen {
		t.Errorf("expected state to be CircuitOpen after 3 failures, got %v", bc.State())
	}
	if bc.ConsecutiveFailures() != 3 {
		t.Errorf("expected consecutive failures to be 3, got %d", bc.ConsecutiveFailures())
	}

	// Next call must fail fast without reaching the inner client.
	_, err := bc.GenerateResponse(context.Background(), "hi", "", 0)
	if err == nil {
		t.Fatal("expected error for open circuit")
	}
	if !strings.Contains(err.Error(), "circuit breaker open") {
		t.Errorf("expected error to mention circuit breaker open, got: %v", err)
	}
	if inner.GenerateResponseCalls != 3 {
		t.Errorf("expected inner client untouched after trip, got %d calls", inner.GenerateResponseCalls)
	}
}

func TestBreakerClient_DoesNotTripBeforeThreshold(t *testing.T) {
	inner := failingInner(NewError(ErrorTypeEndpoint, "server error", true, nil))
	bc := newTestBreaker(5, 30*time.Second, inner)

	for i := 0; i < 4; i++ {
		_, _ = bc.GenerateResponse(context.Background(), "hi", "", 0)
	}

	if bc.State() != CircuitClosed {
		t.Errorf("expected state to be CircuitClosed with failures below threshold, got %v", bc.State())
	}
}

func TestBreakerClient_SuccessResetsFailures(t *testing.T) {
	inner := NewMockLLMClient()
	fail := true
	inner.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
		if fail {
			return nil, NewError(ErrorTypeEndpoint, "server error", true, nil)
		}
		return &GenerateResponseResult{Content: "ok"}, nil
	}
	bc := newTestBreaker(5, 30*time.Second, inner)

	for i := 0; i < 3; i++ {
		_, _ = bc.GenerateResponse(context.Background(), "hi", "", 0)
	}
	if bc.ConsecutiveFailures() != 3 {
		t.Errorf("expected 3 consecutive failures, got %d", bc.ConsecutiveFailures())
	}

	fail = false
	_, err := bc.GenerateResponse(context.Background(), "hi", "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bc.ConsecutiveFailures() != 0 {
		t.Errorf("expected consecutive failures reset to 0 after success, got %d", bc.ConsecutiveFailures())
	}
	if bc.State() != CircuitClosed {
		t.Errorf("expected state to be CircuitClosed after success, got %v", bc.State())
	}
}

func TestBreakerClient_ConfigErrorsDoNotTrip(t *testing.T) {
	inner := failingInner(NewError(ErrorTypeAuth, "authentication failed", false, nil))
	bc := newTestBreaker(2, 30*time.Second, inner)

	for i := 0; i < 5; i++ {
		_, _ = bc.GenerateResponse(context.Background(), "hi", "", 0)
	}

	if bc.State() != CircuitClosed {
		t.Errorf("auth failures should not trip the breaker, state = %v", bc.State())
	}
	if bc.ConsecutiveFailures() != 0 {
		t.Errorf("auth failures should not count, got %d", bc.ConsecutiveFailures())
	}
	if inner.GenerateResponseCalls != 5 {
		t.Errorf("expected all calls to reach the inner client, got %d", inner.GenerateResponseCalls)
	}
}

func TestBreakerClient_TransitionsToHalfOpen(t *testing.T) {
	inner := failingInner(NewError(ErrorTypeEndpoint, "server error", true, nil))
	bc := newTestBreaker(3, 100*time.Millisecond, inner)

	for i := 0; i < 3; i++ {
		_, _ = bc.GenerateResponse(context.Background(), "hi", "", 0)
	}
	if bc.State() != CircuitOpen {
		t.Fatalf("expected circuit to be open, got %v", bc.State())
	}

	// Immediately: rejected.
	_, err := bc.GenerateResponse(context.Background(), "hi", "", 0)
	if err == nil || !strings.Contains(err.Error(), "circuit breaker open") {
		t.Fatalf("expected fast failure, got %v", err)
	}

	time.Sleep(150 * time.Millisecond)

	// Probe goes through and fails, so the circuit reopens.
	calls := inner.GenerateResponseCalls
	_, _ = bc.GenerateResponse(context.Background(), "hi", "", 0)
	if inner.GenerateResponseCalls != calls+1 {
		t.Errorf("expected probe to reach inner client")
	}
	if bc.State() != CircuitOpen {
		t.Errorf("expected circuit reopened after failed probe, got %v", bc.State())
	}
}

func TestBreakerClient_HalfOpenSuccessClosesCircuit(t *testing.T) {
	inner := NewMockLLMClient()
	fail := true
	inner.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
		if fail {
			return nil, NewError(ErrorTypeEndpoint, "server error", true, nil)
		}
		return &GenerateResponseResult{Content: "ok"}, nil
	}
	bc := newTestBreaker(3, 50*time.Millisecond, inner)

	for i := 0; i < 3; i++ {
		_, _ = bc.GenerateResponse(context.Background(), "hi", "", 0)
	}
	if bc.State() != CircuitOpen {
		t.Fatalf("expected circuit to be open, got %v", bc.State())
	}

	time.Sleep(60 * time.Millisecond)
	fail = false

	_, err := bc.GenerateResponse(context.Background(), "hi", "", 0)
	if err != nil {
		t.Fatalf("expected probe to succeed, got %v", err)
	}
	if bc.State() != CircuitClosed {
		t.Errorf("expected state to be CircuitClosed after successful probe, got %v", bc.State())
	}
	if bc.ConsecutiveFailures() != 0 {
		t.Errorf("expected consecutive failures to be 0 after success, got %d", bc.ConsecutiveFailures())
	}
}

func TestBreakerClient_Reset(t *testing.T) {
	inner := failingInner(NewError(ErrorTypeEndpoint, "server error", true, nil))
	bc := newTestBreaker(3, 30*time.Second, inner)

	for i := 0; i < 3; i++ {
		_, _ = bc.GenerateResponse(context.Background(), "hi", "", 0)
	}
	if bc.State() != CircuitOpen {
		t.Fatalf("expected circuit to be open, got %v", bc.State())
	}

	bc.Reset()

	if bc.State() != CircuitClosed {
		t.Errorf("expected state to be CircuitClosed after reset, got %v", bc.State())
	}
	if bc.ConsecutiveFailures() != 0 {
		t.Errorf("expected consecutive failures to be 0 after reset, got %d", bc.ConsecutiveFailures())
	}
}

func TestBreakerClient_Delegation(t *testing.T) {
	inner := NewMockLLMClient()
	inner.Model = "test-model"
	inner.Endpoint = "http://example.test/v1"
	bc := newTestBreaker(3, 30*time.Second, inner)

	if bc.GetModel() != "test-model" {
		t.Errorf("GetModel() = %q, want test-model", bc.GetModel())
	}
	if bc.GetEndpoint() != "http://example.test/v1" {
		t.Errorf("GetEndpoint() = %q, want inner endpoint", bc.GetEndpoint())
	}
}

func TestDefaultBreakerConfig(t *testing.T) {
	config := DefaultBreakerConfig()

	if config.Threshold != 5 {
		t.Errorf("expected default threshold to be 5, got %d", config.Threshold)
	}
	if config.ResetAfter != 30*time.Second {
		t.Errorf("expected default reset timeout to be 30s, got %v", config.ResetAfter)
	}
}

func TestCircuitState_String(t *testing.T) {
	tests := []struct {
		state    CircuitState
		expected string
	}{
		{CircuitClosed, "closed"},
		{CircuitOpen, "open"},
		{CircuitHalfOpen, "half-open"},
		{CircuitState(999), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("CircuitState(%d).String() = %q, expected %q", tt.state, got, tt.expected)
		}
	}
}

// flappingClient is a goroutine-safe LLMClient stub that alternates between
// success and a retryable failure.
type flappingClient struct {
	calls atomic.Int64
}

func (f *flappingClient) GenerateResponse(ctx context.Context, prompt, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
	if f.calls.Add(1)%2 == 0 {
		return nil, NewError(ErrorTypeEndpoint, "server error", true, nil)
	}
	return &GenerateResponseResult{Content: "ok"}, nil
}

func (f *flappingClient) CreateEmbedding(ctx context.Context, input, model string) ([]float32, error) {
	return []float32{0.1}, nil
}

func (f *flappingClient) CreateEmbeddings(ctx context.Context, inputs []string, model string) ([][]float32, error) {
	return [][]float32{{0.1}}, nil
}

func (f *flappingClient) GetModel() string    { return "flapping" }
func (f *flappingClient) GetEndpoint() string { return "http://flapping" }

func TestBreakerClient_ConcurrentAccess(t *testing.T) {
	bc := newTestBreakerAround(&flappingClient{}, 10, 100*time.Millisecond)

	done := make(chan bool)
	for g := 0; g < 10; g++ {
		go func() {
			for j := 0; j < 100; j++ {
				_, _ = bc.GenerateResponse(context.Background(), "hi", "", 0)
				_ = bc.State()
				_ = bc.ConsecutiveFailures()
			}
			done <- true
		}()
	}

	for g := 0; g < 10; g++ {
		<-done
	}
	// Passes if no race is detected under go test -race.
}

func newTestBreakerAround(inner LLMClient, threshold int, resetAfter time.Duration) *BreakerClient {
	return NewBreakerClient(inner, BreakerConfig{
		Threshold:  threshold,
		ResetAfter: resetAfter,
	}, zap.NewNop())
}
