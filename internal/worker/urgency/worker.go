package urgency

import (
	"context"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/kds/internal/service/models/order"
	"github.com/spf13/viper"
)

type service interface {
	CheckUrgent(ctx context.Context, now time.Time) ([]order.Order, error)
}

// Alert is called for every order that became urgent.
type Alert func(o order.Order, now time.Time)

// Worker periodically flags orders that have waited too long to be started.
type Worker struct {
	service      service
	alert        Alert
	pollInterval time.Duration
	now          func() time.Time
	stopCh       chan struct{}
}

// NewWorker creates a new urgency worker. A nil alert logs a warning per order.
func NewWorker(service service, alert Alert) *Worker {
	pollIntervalSeconds := viper.GetInt("worker.urgency.poll_interval_seconds")
	if pollIntervalSeconds == 0 {
		pollIntervalSeconds = 30
	}
	if alert == nil {
		alert = logAlert
	}

	return &Worker{
		service:      service,
		alert:        alert,
		pollInterval: time.Duration(pollIntervalSeconds) * time.Second,
		now:          time.Now,
		stopCh:       make(chan struct{}),
	}
}

// Start checks the working set every poll interval until ctx is done or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Urgency worker started", "poll_interval", w.pollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Urgency worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Urgency worker stopped")

			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

func (w *Worker) check(ctx context.Context) {
	now := w.now()
	urgent, err := w.service.CheckUrgent(ctx, now)
	if err != nil {
		slog.Error("Failed to check urgent orders", "error", err)

		return
	}

	for _, o := range urgent {
		w.alert(o, now)
	}
}

func logAlert(o order.Order, now time.Time) {
	slog.Warn("Order waiting to be started",
		"order_id", o.ID,
		"display_id", o.DisplayID,
		"source", o.Source.String(),
		"waiting", order.FormatElapsed(o.CreatedAt, now),
	)
}
