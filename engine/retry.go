package engine

import (
	"math/rand"
	"time"

	"github.com/sendloop/journey/model"
)

const RETRY_STRATEGY_EXPONENTIAL string = "exponential"
const RETRY_STRATEGY_LINEAR string = "linear"

const defaultRetryAttempts int = 3
const defaultRetryBase time.Duration = 60 * time.Second
const retryJitterFraction float64 = 0.15

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Strategy    string
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultRetryAttempts,
		BaseDelay:   defaultRetryBase,
		MaxDelay:    defaultRetryBase * 32,
		Strategy:    RETRY_STRATEGY_EXPONENTIAL,
	}
}

// PolicyForNode applies node-level overrides on top of the defaults.
func PolicyForNode(cfg *model.ActionConfig) RetryPolicy {
	policy := DefaultRetryPolicy()
	if cfg == nil {
		return policy
	}
	if cfg.RetryMaxAttempts > 0 {
		policy.MaxAttempts = cfg.RetryMaxAttempts
	}
	if cfg.RetryDelayMs > 0 {
		policy.BaseDelay = time.Duration(cfg.RetryDelayMs) * time.Millisecond
	} else if cfg.RetryDelayMinutes > 0 {
		policy.BaseDelay = time.Duration(cfg.RetryDelayMinutes) * time.Minute
	}
	if cfg.RetryMaxDelayMs > 0 {
		policy.MaxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
	} else {
		policy.MaxDelay = policy.BaseDelay * 32
	}
	if len(cfg.RetryStrategy) > 0 {
		policy.Strategy = cfg.RetryStrategy
	}
	return policy
}

// NextDelay computes the backoff before retry number attempt (1-based).
// The computed delay gets up to 15% random jitter and never exceeds
// MaxDelay.
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	var delay time.Duration
	switch p.Strategy {
	case RETRY_STRATEGY_LINEAR:
		delay = p.BaseDelay * time.Duration(attempt)
	default:
		delay = p.BaseDelay << (attempt - 1)
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	delay += time.Duration(rand.Float64() * retryJitterFraction * float64(delay))
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}
