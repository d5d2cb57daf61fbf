// Package vitals delivers measurement samples from an external capture
// device to the rest of the system. The engine never talks to the device
// directly; it consumes immutable samples through the provider interface.
package vitals

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pgx-med-guard-server/internal/domain"
)

// ChannelProvider is a VitalsProvider fed by an ingest source (the
// websocket endpoint in internal/api). It fans samples out to
// subscribers and tracks the latest valid sample per user.
type ChannelProvider struct {
	logger *logrus.Logger

	mu          sync.RWMutex
	latestValid map[string]domain.VitalsSample
	subscribers map[string][]chan domain.VitalsSample
}

// NewChannelProvider creates an empty provider.
func NewChannelProvider(logger *logrus.Logger) *ChannelProvider {
	return &ChannelProvider{
		logger:      logger,
		latestValid: make(map[string]domain.VitalsSample),
		subscribers: make(map[string][]chan domain.VitalsSample),
	}
}

// Publish records one sample for a user and forwards it to subscribers.
// Only samples with both validity flags set update the latest-valid
// slot; invalid samples are still forwarded so clients can render
// measurement progress.
func (p *ChannelProvider) Publish(userID string, sample domain.VitalsSample) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sample.IsValid() {
		p.latestValid[userID] = sample
	}

	// Sends happen under the lock so a concurrent unsubscribe cannot
	// close a channel mid-send; they are non-blocking, so holding the
	// lock is cheap.
	for _, ch := range p.subscribers[userID] {
		select {
		case ch <- sample:
		default:
			// Slow subscriber; drop rather than block the ingest path.
			p.logger.WithField("user_id", userID).Warn("Dropping vitals sample for slow subscriber")
		}
	}
}

// Subscribe returns a channel of samples for the user. The channel is
// closed when ctx is cancelled.
func (p *ChannelProvider) Subscribe(ctx context.Context, userID string) (<-chan domain.VitalsSample, error) {
	ch := make(chan domain.VitalsSample, 16)

	p.mu.Lock()
	p.subscribers[userID] = append(p.subscribers[userID], ch)
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.unsubscribe(userID, ch)
	}()

	return ch, nil
}

// LatestValid returns the most recent sample whose validity flags are
// both true, or ErrNotFound when no valid sample has been observed.
func (p *ChannelProvider) LatestValid(userID string) (*domain.VitalsSample, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	sample, ok := p.latestValid[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &sample, nil
}

func (p *ChannelProvider) unsubscribe(userID string, ch chan domain.VitalsSample) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subs := p.subscribers[userID]
	for i, existing := range subs {
		if existing == ch {
			p.subscribers[userID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(p.subscribers[userID]) == 0 {
		delete(p.subscribers, userID)
	}
}
