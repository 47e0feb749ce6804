package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/campustrade/market-api/internal/domain"
	"github.com/campustrade/market-api/internal/telemetry"
)

type expiredCanceller interface {
	CancelExpired(ctx context.Context, cutoff time.Time) ([]domain.Order, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Sweeper periodically flips pending orders that were never paid within
// the timeout to cancelled. It only changes status; the database trigger
// restores the reserved stock. Racing payments are resolved by the
// status guard on both sides of the race.
type Sweeper struct {
	store     expiredCanceller
	publisher eventPublisher
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	interval  time.Duration
	timeout   time.Duration
	now       func() time.Time
}

func New(store expiredCanceller, publisher eventPublisher, metrics *telemetry.Metrics, logger *slog.Logger, interval, timeout time.Duration) *Sweeper {
	return &Sweeper{
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		interval:  interval,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Run sweeps once per interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", "interval", s.interval, "payment_timeout", s.timeout)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// Sweep cancels all pending orders older than the payment timeout and
// returns how many were flipped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.timeout)

	cancelled, err := s.store.CancelExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(cancelled) == 0 {
		return 0, nil
	}

	s.metrics.OrdersSwept.Add(ctx, int64(len(cancelled)))
	s.logger.Info("cancelled expired orders", "count", len(cancelled), "cutoff", cutoff)

	if s.publisher != nil {
		for _, order := range cancelled {
			event := domain.OrderEvent{
				Type:      domain.EventOrderCancelled,
				OrderID:   order.ID,
				BuyerID:   order.BuyerID,
				SellerID:  order.SellerID,
				Total:     order.Total,
				Timestamp: s.now().UTC(),
			}
			if err := s.publisher.Publish(ctx, order.ID, event); err != nil {
				s.logger.Error("failed to publish cancellation event", "error", err, "order_id", order.ID)
			}
		}
	}

	return len(cancelled), nil
}
