package retry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/miragedata/mirage-engine/pkg/llm"
	"github.com/miragedata/mirage-engine/pkg/retry"
)

// Verifies that retry.IsRetryable honors llm.Error retryability through the
// IsRetryable() interface method rather than pattern matching.
func TestIsRetryable_WithLLMError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "retryable server error",
			err:      llm.NewError(llm.ErrorTypeEndpoint, "server error", true, errors.New("HTTP 503")),
			expected: true,
		},
		{
			name:     "retryable rate limit",
			err:      llm.NewError(llm.ErrorTypeUnknown, "rate limited", true, errors.New("HTTP 429")),
			expected: true,
		},
		{
			name:     "non-retryable auth failure",
			err:      llm.NewError(llm.ErrorTypeAuth, "authentication failed", false, errors.New("HTTP 401")),
			expected: false,
		},
		{
			name:     "non-retryable unknown model",
			err:      llm.NewError(llm.ErrorTypeModel, "model not found", false, errors.New("model does not exist")),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retry.IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable(%v) = %v, expected %v", tt.err, got, tt.expected)
			}
		})
	}
}

// A stringified llm.Error loses the interface but still matches patterns.
func TestIsRetryable_LLMErrorStringified(t *testing.T) {
	baseErr := llm.NewError(llm.ErrorTypeEndpoint, "server error", true, errors.New("HTTP 503"))
	flattened := errors.New("generation failed: " + baseErr.Error())

	if !retry.IsRetryable(flattened) {
		t.Error("expected flattened 503 error to match retryable patterns")
	}
}

func TestDoIfRetryable_WithLLMError(t *testing.T) {
	cfg := &retry.Config{
		MaxRetries:   3,
		InitialDelay: 1,
		MaxDelay:     10,
		Multiplier:   2.0,
	}

	t.Run("retries retryable llm.Error", func(t *testing.T) {
		callCount := 0
		err := retry.DoIfRetryable(context.Background(), cfg, func() error {
			callCount++
			if callCount < 3 {
				return llm.NewError(llm.ErrorTypeEndpoint, "server error", true, errors.New("HTTP 503"))
			}
			return nil
		})

		if err != nil {
			t.Errorf("expected success after retries, got %v", err)
		}
		if callCount != 3 {
			t.Errorf("expected 3 calls, got %d", callCount)
		}
	})

	t.Run("fails immediately on non-retryable llm.Error", func(t *testing.T) {
		callCount := 0
		expectedErr := llm.NewError(llm.ErrorTypeAuth, "authentication failed", false, errors.New("HTTP 401"))
		err := retry.DoIfRetryable(context.Background(), cfg, func() error {
			callCount++
			return expectedErr
		})

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if callCount != 1 {
			t.Errorf("expected 1 call (no retries), got %d", callCount)
		}
	})
}
