package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/bank-deploy/internal/model"
)

// recordStep returns a step that appends its name to calls and returns err.
func recordStep(calls *[]string, name string, policy Policy, err error) Step {
	return Step{
		Name:     name,
		Policy:   policy,
		ExitCode: model.ExitBuildFailed,
		Run: func(context.Context) error {
			*calls = append(*calls, name)
			return err
		},
	}
}

func TestRunner_AllPass(t *testing.T) {
	var calls []string
	r := NewRunner(zerolog.Nop(),
		recordStep(&calls, "one", Abort, nil),
		recordStep(&calls, "two", Warn, nil),
		recordStep(&calls, "three", Ignore, nil),
	)

	results, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, calls)
	require.Len(t, results, 3)
	for _, res := range results {
		assert.Equal(t, model.OutcomePassed, res.Outcome, res.Name)
	}
}

// TestRunner_Policies verifies each policy's effect on a failing step.
func TestRunner_Policies(t *testing.T) {
	boom := errors.New("boom")
	var calls []string
	r := NewRunner(zerolog.Nop(),
		recordStep(&calls, "ignored", Ignore, boom),
		recordStep(&calls, "warned", Warn, boom),
		recordStep(&calls, "aborted", Abort, boom),
		recordStep(&calls, "never", Abort, nil),
	)

	results, err := r.Run(context.Background())
	require.Error(t, err)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "aborted", stepErr.Step)
	assert.Equal(t, model.ExitBuildFailed, stepErr.Code)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, []string{"ignored", "warned", "aborted"}, calls)
	require.Len(t, results, 4)
	assert.Equal(t, model.OutcomePassed, results[0].Outcome)
	assert.Equal(t, boom, results[0].Err, "ignored errors are still recorded")
	assert.Equal(t, model.OutcomeWarned, results[1].Outcome)
	assert.Equal(t, model.OutcomeFailed, results[2].Outcome)
	assert.Equal(t, model.OutcomeSkipped, results[3].Outcome)
}

// TestRunner_CodedError verifies that a step can override its exit code
// for a particular failure.
func TestRunner_CodedError(t *testing.T) {
	r := NewRunner(zerolog.Nop(), Step{
		Name:     "environment",
		Policy:   Abort,
		ExitCode: model.ExitEnvironmentInvalid,
		Run: func(context.Context) error {
			return withCode(model.ExitDockerNotRunning, errors.New("daemon down"))
		},
	})

	_, err := r.Run(context.Background())
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, model.ExitDockerNotRunning, stepErr.Code)
	assert.Equal(t, "environment: daemon down", err.Error())
}

// TestRunner_ZeroExitCodeBecomesGeneral verifies that an aborting step
// never yields exit code 0.
func TestRunner_ZeroExitCodeBecomesGeneral(t *testing.T) {
	r := NewRunner(zerolog.Nop(), Step{
		Name:   "untyped",
		Policy: Abort,
		Run:    func(context.Context) error { return errors.New("x") },
	})

	_, err := r.Run(context.Background())
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, model.ExitGeneralError, stepErr.Code)
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls []string
	r := NewRunner(zerolog.Nop(),
		Step{Name: "first", Policy: Abort, Run: func(context.Context) error {
			calls = append(calls, "first")
			cancel()
			return nil
		}},
		recordStep(&calls, "second", Abort, nil),
		recordStep(&calls, "third", Abort, nil),
	)

	results, err := r.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"first"}, calls)
	require.Len(t, results, 3)
	assert.Equal(t, model.OutcomeFailed, results[1].Outcome)
	assert.Equal(t, model.OutcomeSkipped, results[2].Outcome)
}

func TestPolicy_String(t *testing.T) {
	assert.Equal(t, "abort", Abort.String())
	assert.Equal(t, "warn", Warn.String())
	assert.Equal(t, "ignore", Ignore.String())
	assert.Equal(t, "policy(9)", Policy(9).String())
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, SleepContext(context.Background(), 0))
	assert.NoError(t, SleepContext(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, 1<<40), context.Canceled)
}
