package fetcher

import (
	"context"
	"errors"

	"github.com/JakeFAU/subsidy-portal/internal/telemetry"
	"go.uber.org/zap"
)

// Fallback reasons.
const (
	ReasonNotConfigured = "not_configured"
	ReasonExhausted     = "exhausted"
)

// Outcome is a result that may have come from canned data.
type Outcome[T any] struct {
	Data     T
	Degraded bool
	Reason   string
}

// Degrade runs primary and substitutes fallback() when the upstream is not
// configured or every attempt failed transiently. Logical failures and
// cancellation are returned unchanged.
func Degrade[T any](ctx context.Context, source string, logger *zap.Logger, primary func(context.Context) (T, error), fallback func() T) (Outcome[T], error) {
	data, err := primary(ctx)
	if err == nil {
		return Outcome[T]{Data: data}, nil
	}

	var reason string
	switch {
	case errors.Is(err, ErrNotConfigured):
		reason = ReasonNotConfigured
	case errors.Is(err, ErrExhausted):
		reason = ReasonExhausted
	default:
		return Outcome[T]{}, err
	}
	if ctx.Err() != nil {
		return Outcome[T]{}, ctx.Err()
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Warn("serving fallback data", zap.String("source", source), zap.String("reason", reason), zap.Error(err))
	telemetry.ObserveFallback(source, reason)
	return Outcome[T]{Data: fallback(), Degraded: true, Reason: reason}, nil
}
