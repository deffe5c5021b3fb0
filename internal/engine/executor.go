package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/pipegate-dev/pipegate/internal/config"
	"github.com/pipegate-dev/pipegate/internal/domain/values"
	"github.com/pipegate-dev/pipegate/internal/redaction"
)

// StageExecutor runs one stage's external tool and reduces its exit
// status, output, and expect expressions to a terminal stage status.
// Safe for concurrent use across stage workers.
type StageExecutor struct {
	redactor       *redaction.Redactor
	maxOutputBytes int

	// Compiled expect expressions, keyed by source text. Stages sharing
	// an expression (often via defaults) compile it once.
	programCache map[string]*vm.Program
	cacheMu      sync.RWMutex
}

// NewStageExecutor creates a stage executor. redactor may be nil, in
// which case output is kept verbatim. maxOutputBytes of 0 means no
// output truncation.
func NewStageExecutor(redactor *redaction.Redactor, maxOutputBytes int) *StageExecutor {
	return &StageExecutor{
		redactor:       redactor,
		maxOutputBytes: maxOutputBytes,
		programCache:   make(map[string]*vm.Program),
	}
}

// Execute runs a single stage, honoring its timeout and retry spec, and
// returns the outcome. It never returns an error: every way a tool can
// misbehave maps to a terminal status.
func (e *StageExecutor) Execute(ctx context.Context, stage config.Stage, index int) StageOutcome {
	startTime := time.Now()

	outcome := StageOutcome{
		Index:    index,
		ID:       stage.ID,
		Name:     stage.Name,
		Kind:     stage.GetEffectiveKind(),
		Required: stage.IsRequired(),
	}

	totalAttempts := 1
	if stage.Retry != nil && stage.Retry.Attempts > 0 {
		totalAttempts += stage.Retry.Attempts
	}

	var exitCode int
	var output string
	var runErr error

	for attempt := 1; attempt <= totalAttempts; attempt++ {
		outcome.Attempts = attempt

		exitCode, output, runErr = e.runCommand(ctx, stage)

		// The run was interrupted rather than completed. Cancellation is
		// terminal: retrying a cancelled stage would outlive its budget.
		if ctx.Err() != nil || errors.Is(runErr, context.DeadlineExceeded) || errors.Is(runErr, context.Canceled) {
			outcome.Status = values.StatusCancelled
			if errors.Is(runErr, context.DeadlineExceeded) && ctx.Err() == nil {
				outcome.Message = fmt.Sprintf("stage timed out after %s", stage.GetEffectiveTimeout(0))
			} else {
				outcome.Message = "stage cancelled before completion"
			}
			outcome.ExitCode = exitCode
			outcome.Output = e.sanitizeOutput(output)
			outcome.Duration = time.Since(startTime)
			return outcome
		}

		if runErr == nil && exitCode == 0 {
			break
		}

		if attempt < totalAttempts {
			backoff := CalculateBackoff(stage.Retry, attempt)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				outcome.Status = values.StatusCancelled
				outcome.Message = "stage cancelled before completion"
				outcome.Duration = time.Since(startTime)
				return outcome
			}
		}
	}

	outcome.ExitCode = exitCode
	outcome.Output = e.sanitizeOutput(output)
	outcome.Duration = time.Since(startTime)

	if runErr != nil && exitCode == 0 {
		// The tool never ran (missing binary, bad working directory).
		outcome.Status = values.StatusFailure
		outcome.Message = fmt.Sprintf("failed to start tool: %v", runErr)
		return outcome
	}

	if stage.CoveragePattern != "" {
		outcome.Coverage = extractCoverage(stage.CoveragePattern, output)
	}

	if len(stage.Expect) > 0 {
		outcome.Status, outcome.Expectations = e.evaluateExpectations(stage.Expect, outcome, output)
		if outcome.Status == values.StatusFailure && outcome.Message == "" {
			outcome.Message = expectationFailureMessage(outcome.Expectations)
		}
		return outcome
	}

	if exitCode == 0 {
		outcome.Status = values.StatusSuccess
	} else {
		outcome.Status = values.StatusFailure
		outcome.Message = fmt.Sprintf("tool exited with code %d", exitCode)
	}
	return outcome
}

// runCommand performs one invocation of the stage's tool and returns
// its exit code and combined output.
func (e *StageExecutor) runCommand(ctx context.Context, stage config.Stage) (int, string, error) {
	runCtx := ctx
	if timeout := stage.GetEffectiveTimeout(0); timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	//nolint:gosec // G204: running user-declared pipeline commands is the whole point
	cmd := exec.CommandContext(runCtx, stage.Command, stage.Args...)
	cmd.Dir = stage.Dir
	cmd.Env = os.Environ()
	for key, value := range stage.Env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}

	outputBytes, err := cmd.CombinedOutput()
	output := string(outputBytes)

	if err != nil {
		// Surface the timeout/cancel cause instead of the generic
		// "signal: killed" the process sees.
		if runCtx.Err() != nil {
			return -1, output, runCtx.Err()
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), output, nil
		}
		return 0, output, err
	}

	return 0, output, nil
}

// sanitizeOutput truncates and redacts captured output.
func (e *StageExecutor) sanitizeOutput(output string) string {
	if e.maxOutputBytes > 0 && len(output) > e.maxOutputBytes {
		output = output[:e.maxOutputBytes] + "\n... [output truncated]"
	}
	if e.redactor != nil {
		output = e.redactor.ScrubString(output)
	}
	return output
}

// evaluateExpectations runs all expect expressions against the stage's
// observed behavior. ALL expressions must evaluate to true for the
// stage to succeed; any compile error, runtime error, or non-boolean
// result counts as a failed expectation.
func (e *StageExecutor) evaluateExpectations(expectations []string, outcome StageOutcome, output string) (values.Status, []ExpectationResult) {
	env := map[string]interface{}{
		"exit_code":   outcome.ExitCode,
		"duration_ms": outcome.Duration.Milliseconds(),
		"output":      output,
	}
	if outcome.Coverage != nil {
		env["coverage"] = *outcome.Coverage
	}

	results := make([]ExpectationResult, 0, len(expectations))
	status := values.StatusSuccess

	for _, expression := range expectations {
		result := ExpectationResult{Expression: expression}

		program, err := e.compileExpectation(expression)
		if err != nil {
			result.Error = err.Error()
			results = append(results, result)
			status = values.StatusFailure
			continue
		}

		value, err := expr.Run(program, env)
		if err != nil {
			result.Error = err.Error()
			results = append(results, result)
			status = values.StatusFailure
			continue
		}

		passed, ok := value.(bool)
		if !ok {
			result.Error = fmt.Sprintf("expression returned %T, want bool", value)
			results = append(results, result)
			status = values.StatusFailure
			continue
		}

		result.Passed = passed
		if !passed {
			status = values.StatusFailure
		}
		results = append(results, result)
	}

	return status, results
}

// compileExpectation returns a cached compiled program for the expression.
func (e *StageExecutor) compileExpectation(expression string) (*vm.Program, error) {
	e.cacheMu.RLock()
	program, ok := e.programCache[expression]
	e.cacheMu.RUnlock()
	if ok {
		return program, nil
	}

	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	// Double-check: another worker may have compiled it meanwhile.
	if program, ok := e.programCache[expression]; ok {
		return program, nil
	}

	program, err := expr.Compile(expression, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile expectation %q: %w", expression, err)
	}
	e.programCache[expression] = program
	return program, nil
}

// extractCoverage applies the stage's coverage pattern to the tool
// output and parses the first capture group as a float. Returns nil if
// the pattern does not match or the capture is not numeric.
func extractCoverage(pattern, output string) *float64 {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}

	matches := re.FindStringSubmatch(output)
	if len(matches) < 2 {
		return nil
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(matches[1]), 64)
	if err != nil {
		return nil
	}
	return &value
}

// expectationFailureMessage summarizes failed expectations for the
// stage message.
func expectationFailureMessage(results []ExpectationResult) string {
	failed := 0
	for _, r := range results {
		if !r.Passed {
			failed++
		}
	}
	if failed == 1 {
		return "1 expectation not met"
	}
	return fmt.Sprintf("%d expectations not met", failed)
}
