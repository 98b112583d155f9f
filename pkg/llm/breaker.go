package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState represents the current state of the circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit is operational and requests flow through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit has tripped due to failures and requests are blocked.
	CircuitOpen
	// CircuitHalfOpen means the circuit is testing if the provider has recovered.
	CircuitHalfOpen
)

// String returns a human-readable string for the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds configuration for the circuit breaker.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures before the circuit trips.
	Threshold int
	// ResetAfter is the duration to wait before attempting to close the circuit again.
	ResetAfter time.Duration
}

// DefaultBreakerConfig returns sensible defaults for the circuit breaker.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Threshold:  5,
		ResetAfter: 30 * time.Second,
	}
}

// BreakerClient wraps an LLMClient with the circuit breaker pattern. After
// Threshold consecutive provider-health failures the circuit trips and calls
// fail fast until ResetAfter elapses, when a single probe request is let
// through. Auth and model errors do not count toward the threshold.
type BreakerClient struct {
	inner  LLMClient
	logger *zap.Logger

	mu               sync.Mutex
	consecutiveFails int
	threshold        int
	resetAfter       time.Duration
	lastFailure      time.Time
	state            CircuitState
}

// NewBreakerClient wraps the given client with a circuit breaker.
func NewBreakerClient(inner LLMClient, config BreakerConfig, logger *zap.Logger) *BreakerClient {
	return &BreakerClient{
		inner:      inner,
		logger:     logger.Named("breaker"),
		threshold:  config.Threshold,
		resetAfter: config.ResetAfter,
		state:      CircuitClosed,
	}
}

// GenerateResponse implements LLMClient.
func (c *BreakerClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
	if err := c.allow(); err != nil {
		return nil, err
	}
	result, err := c.inner.GenerateResponse(ctx, prompt, systemMessage, temperature)
	c.record(err)
	return result, err
}

// CreateEmbedding implements LLMClient.
func (c *BreakerClient) CreateEmbedding(ctx context.Context, input string, model string) ([]float32, error) {
	if err := c.allow(); err != nil {
		return nil, err
	}
	result, err := c.inner.CreateEmbedding(ctx, input, model)
	c.record(err)
	return result, err
}

// CreateEmbeddings implements LLMClient.
func (c *BreakerClient) CreateEmbeddings(ctx context.Context, inputs []string, model string) ([][]float32, error) {
	if err := c.allow(); err != nil {
		return nil, err
	}
	result, err := c.inner.CreateEmbeddings(ctx, inputs, model)
	c.record(err)
	return result, err
}

// GetModel returns the wrapped client's model name.
func (c *BreakerClient) GetModel() string {
	return c.inner.GetModel()
}

// GetEndpoint returns the wrapped client's endpoint.
func (c *BreakerClient) GetEndpoint() string {
	return c.inner.GetEndpoint()
}

// State returns the current state of the circuit breaker.
func (c *BreakerClient) State() CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConsecutiveFailures returns the current count of consecutive failures.
func (c *BreakerClient) ConsecutiveFailures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consecutiveFails
}

// Reset manually resets the circuit breaker to closed state.
func (c *BreakerClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveFails = 0
	c.state = CircuitClosed
}

// allow returns nil if a request may proceed, transitioning to half-open
// after the reset timeout expires.
func (c *BreakerClient) allow() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case CircuitClosed:
		return nil
	case CircuitOpen:
		if time.Since(c.lastFailure) > c.resetAfter {
			// Let one probe request through.
			c.state = CircuitHalfOpen
			return nil
		}
		return NewError(ErrorTypeEndpoint,
			fmt.Sprintf("circuit breaker open: provider appears to be down (failed %d times, last failure %v ago)",
				c.consecutiveFails, time.Since(c.lastFailure).Round(time.Second)),
			false, nil)
	case CircuitHalfOpen:
		// A probe request is already in flight.
		return NewError(ErrorTypeEndpoint, "circuit breaker half-open: testing if provider has recovered", false, nil)
	default:
		return NewError(ErrorTypeUnknown, fmt.Sprintf("circuit breaker in unknown state: %v", c.state), false, nil)
	}
}

// record updates breaker state from a call result. Only provider-health
// failures count; configuration mistakes fail fast without tripping.
func (c *BreakerClient) record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.consecutiveFails = 0
		c.state = CircuitClosed
		return
	}

	errType := GetErrorType(err)
	if errType == ErrorTypeAuth || errType == ErrorTypeModel {
		return
	}

	c.consecutiveFails++
	c.lastFailure = time.Now()

	if c.state == CircuitHalfOpen {
		c.state = CircuitOpen
		c.logger.Warn("probe request failed, circuit reopened",
			zap.Int("consecutive_failures", c.consecutiveFails))
		return
	}

	if c.consecutiveFails >= c.threshold {
		c.state = CircuitOpen
		c.logger.Warn("circuit breaker tripped",
			zap.Int("consecutive_failures", c.consecutiveFails),
			zap.Duration("reset_after", c.resetAfter))
	}
}
