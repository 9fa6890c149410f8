package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/shinji-kodama/bank-deploy/internal/model"
)

// ErrUnhealthy is returned by WaitHealthy when every attempt failed.
var ErrUnhealthy = errors.New("health check failed")

// Poller probes a target repeatedly with a fixed delay between attempts.
type Poller struct {
	prober      Prober
	maxAttempts int
	delay       time.Duration
	logger      zerolog.Logger
}

// NewPoller creates a Poller. maxAttempts must be at least 1; a smaller
// value is treated as 1.
func NewPoller(prober Prober, maxAttempts int, delay time.Duration, logger zerolog.Logger) *Poller {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Poller{
		prober:      prober,
		maxAttempts: maxAttempts,
		delay:       delay,
		logger:      logger,
	}
}

// WaitHealthy probes target until a probe succeeds or maxAttempts probes
// have failed. Polling stops at the first success. The delay is waited
// between attempts only, never after the last one.
//
// The returned result always carries the number of probes sent. The
// error wraps ErrUnhealthy when the budget ran out, or the context error
// when ctx was cancelled while waiting.
func (p *Poller) WaitHealthy(ctx context.Context, target model.HealthTarget) (model.HealthResult, error) {
	result := model.HealthResult{
		Target:      target,
		MaxAttempts: p.maxAttempts,
	}

	err := retry.Do(
		func() error {
			result.Attempts++
			return p.prober.Probe(ctx, target.URL)
		},
		retry.Context(ctx),
		retry.Attempts(uint(p.maxAttempts)),
		retry.Delay(p.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Debug().
				Str("target", target.Name).
				Uint("attempt", n+1).
				Int("max_attempts", p.maxAttempts).
				Err(err).
				Msg("probe failed")
		}),
	)
	if err == nil {
		result.Healthy = true
		return result, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("health check of %s interrupted: %w", target.Name, ctxErr)
	}
	return result, fmt.Errorf("%w: %s (%s) not responding after %d attempts: %w",
		ErrUnhealthy, target.Name, target.URL, result.Attempts, err)
}

// CheckOnce sends a single probe and reports whether it succeeded.
func (p *Poller) CheckOnce(ctx context.Context, target model.HealthTarget) (model.HealthResult, error) {
	err := p.prober.Probe(ctx, target.URL)
	return model.HealthResult{
		Target:      target,
		Healthy:     err == nil,
		Attempts:    1,
		MaxAttempts: 1,
	}, err
}
