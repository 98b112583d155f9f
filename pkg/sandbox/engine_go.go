package sandbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// generateFunc is the contract every Go program must export.
type generateFunc = func(metadataJSON string, targetRows int) (string, error)

// runGo interprets program source and calls its Generate function, racing
// the call against the budget context. The interpreter cannot be preempted,
// so on timeout the goroutine keeps running in the background; it still owns
// the scratch dir and removes it when it finishes.
func (e *Executor) runGo(ctx context.Context, source string, metadataJSON string, targetRows int, scratch *scratchDir) (string, error) {
	if err := CheckGoSource(source, e.cfg.MaxProgramBytes, scratch.Path()); err != nil {
		scratch.Remove()
		return "", err
	}

	type evalResult struct {
		output string
		err    error
	}
	resultCh := make(chan evalResult, 1)

	go func() {
		defer scratch.Remove()
		defer func() {
			if r := recover(); r != nil {
				resultCh <- evalResult{err: newError(FailureExecution,
					fmt.Sprintf("program panicked: %v", r), nil)}
			}
		}()

		i := interp.New(interp.Options{})
		if err := i.Use(stdlib.Symbols); err != nil {
			resultCh <- evalResult{err: fmt.Errorf("load interpreter symbols: %w", err)}
			return
		}
		if _, err := i.Eval(source); err != nil {
			resultCh <- evalResult{err: newError(FailureExecution, "program does not evaluate", err)}
			return
		}

		v, err := i.Eval("main.Generate")
		if err != nil {
			resultCh <- evalResult{err: newError(FailureViolation, "program does not define Generate", err)}
			return
		}
		generate, ok := v.Interface().(generateFunc)
		if !ok {
			resultCh <- evalResult{err: newError(FailureViolation,
				"Generate must have signature func(string, int) (string, error)", nil)}
			return
		}

		output, err := generate(metadataJSON, targetRows)
		if err != nil {
			resultCh <- evalResult{err: newError(FailureExecution, "program returned an error", err)}
			return
		}
		resultCh <- evalResult{output: output}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			return "", r.err
		}
		if budget := e.outputBudget(); budget > 0 && len(r.output) > budget {
			return "", newError(FailureMemoryExceeded,
				fmt.Sprintf("program output is %d bytes, budget is %d", len(r.output), budget), nil)
		}
		return r.output, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return "", fmt.Errorf("execution cancelled: %w", ctx.Err())
		}
		return "", newError(FailureTimeout,
			fmt.Sprintf("execution exceeded the %ds budget", e.cfg.TimeBudgetSeconds), ctx.Err())
	}
}
