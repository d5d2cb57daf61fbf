package external

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/pgx-med-guard-server/internal/domain"
)

// ResilientTextClient wraps a text generator with a circuit breaker so a
// flapping upstream fails fast instead of tying up request handlers.
// There is still no retry: each invocation sees exactly one outcome.
type ResilientTextClient struct {
	client  domain.TextGenerator
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewResilientTextClient wraps the given client in a circuit breaker.
func NewResilientTextClient(client domain.TextGenerator, logger *logrus.Logger) *ResilientTextClient {
	settings := gobreaker.Settings{
		Name:        "textgen",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &ResilientTextClient{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Generate executes the generation through the breaker.
func (r *ResilientTextClient) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.Generate(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
