package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shinji-kodama/bank-deploy/internal/model"
)

// Policy decides how the runner treats a failing step.
type Policy int

const (
	// Abort halts the run; remaining steps are recorded as skipped.
	Abort Policy = iota

	// Warn logs the failure as a warning and continues.
	Warn

	// Ignore logs the failure at debug level and continues. The step is
	// recorded as passed.
	Ignore
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case Abort:
		return "abort"
	case Warn:
		return "warn"
	case Ignore:
		return "ignore"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Step is one named unit of work.
type Step struct {
	Name   string
	Policy Policy

	// ExitCode is reported when the step aborts the run. A step error
	// created with withCode overrides it.
	ExitCode model.ExitCode

	Run func(ctx context.Context) error
}

// StepError is returned by Runner.Run when a step aborts the run.
type StepError struct {
	Step string
	Code model.ExitCode
	Err  error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

// Unwrap returns the step's error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// codedError lets a step pick the exit code for one particular failure,
// e.g. a missing binary versus an unreachable daemon in the same step.
type codedError struct {
	code model.ExitCode
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func withCode(code model.ExitCode, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

// Runner executes steps in order.
type Runner struct {
	steps  []Step
	logger zerolog.Logger
	now    func() time.Time
}

// NewRunner creates a Runner for the given steps.
func NewRunner(logger zerolog.Logger, steps ...Step) *Runner {
	return &Runner{
		steps:  steps,
		logger: logger,
		now:    time.Now,
	}
}

// Run executes every step in order and returns one result per step.
//
// The first step that fails under the Abort policy stops the run: its
// error is returned wrapped in a *StepError and every later step is
// recorded as skipped. A cancelled context stops the run before the next
// step starts, with the same outcome.
func (r *Runner) Run(ctx context.Context) ([]model.StepResult, error) {
	results := make([]model.StepResult, 0, len(r.steps))

	for i, step := range r.steps {
		if err := ctx.Err(); err != nil {
			stepErr := &StepError{Step: step.Name, Code: model.ExitGeneralError, Err: err}
			results = append(results, model.StepResult{Name: step.Name, Outcome: model.OutcomeFailed, Err: err})
			return append(results, skipped(r.steps[i+1:])...), stepErr
		}

		log := r.logger.With().Str("step", step.Name).Logger()
		log.Info().Msgf("[%d/%d] %s", i+1, len(r.steps), step.Name)

		start := r.now()
		err := step.Run(ctx)
		result := model.StepResult{
			Name:     step.Name,
			Outcome:  model.OutcomePassed,
			Err:      err,
			Duration: r.now().Sub(start),
		}

		if err == nil {
			log.Debug().Dur("duration", result.Duration).Msg("step passed")
			results = append(results, result)
			continue
		}

		switch step.Policy {
		case Ignore:
			log.Debug().Err(err).Msg("step failed, ignored")
			results = append(results, result)

		case Warn:
			log.Warn().Err(err).Msg("step failed, continuing")
			result.Outcome = model.OutcomeWarned
			results = append(results, result)

		default:
			log.Error().Err(err).Msg("step failed")
			result.Outcome = model.OutcomeFailed
			results = append(results, result)

			code := step.ExitCode
			var ce *codedError
			if errors.As(err, &ce) {
				code = ce.code
			}
			if code == model.ExitSuccess {
				code = model.ExitGeneralError
			}
			return append(results, skipped(r.steps[i+1:])...), &StepError{Step: step.Name, Code: code, Err: err}
		}
	}
	return results, nil
}

func skipped(steps []Step) []model.StepResult {
	out := make([]model.StepResult, 0, len(steps))
	for _, s := range steps {
		out = append(out, model.StepResult{Name: s.Name, Outcome: model.OutcomeSkipped})
	}
	return out
}
