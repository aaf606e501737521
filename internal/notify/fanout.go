package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"orderrelay/internal/metrics"
	"orderrelay/internal/store"
)

var ErrUnknownChannel = errors.New("notify: delivery channel is no longer configured")

// Fanout sends every payload to all notifiers and records one journal
// entry per channel. A failing channel never stops the others.
type Fanout struct {
	notifiers []Notifier
	journal   store.Store
	logger    *slog.Logger
}

func NewFanout(notifiers []Notifier, journal store.Store, logger *slog.Logger) *Fanout {
	if journal == nil {
		journal = store.NewMemory()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{notifiers: notifiers, journal: journal, logger: logger}
}

// Channels lists the configured channel identifiers.
func (f *Fanout) Channels() []string {
	out := make([]string, 0, len(f.notifiers))
	for _, n := range f.notifiers {
		out = append(out, n.Name())
	}
	return out
}

func (f *Fanout) Len() int { return len(f.notifiers) }

// Publish delivers text to every channel in order and returns the joined
// per-channel failures.
func (f *Fanout) Publish(ctx context.Context, text string) error {
	var errs []error
	for _, n := range f.notifiers {
		d := store.Delivery{ID: newID(), Channel: n.Name(), Payload: text, CreatedAt: time.Now().UTC()}
		if err := f.deliver(ctx, n, &d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Retry resends a journaled delivery to its channel and returns the
// updated entry.
func (f *Fanout) Retry(ctx context.Context, id string) (store.Delivery, error) {
	d, err := f.journal.GetDelivery(ctx, id)
	if err != nil {
		return store.Delivery{}, err
	}
	var target Notifier
	for _, n := range f.notifiers {
		if n.Name() == d.Channel {
			target = n
			break
		}
	}
	if target == nil {
		return d, fmt.Errorf("%w: %s", ErrUnknownChannel, d.Channel)
	}
	err = f.deliver(ctx, target, &d)
	return d, err
}

func (f *Fanout) deliver(ctx context.Context, n Notifier, d *store.Delivery) error {
	start := time.Now()
	err := n.Publish(ctx, d.Payload)
	latency := time.Since(start)

	d.Attempts++
	d.LatencyMs = int(latency.Milliseconds())
	d.UpdatedAt = time.Now().UTC()
	d.ResponseCode = 0
	d.LastError = ""
	d.Status = store.StatusDelivered
	if err != nil {
		d.Status = store.StatusFailed
		d.LastError = err.Error()
		var se *StatusError
		if errors.As(err, &se) {
			d.ResponseCode = se.Code
		}
	}

	kind := Kind(d.Channel)
	metrics.NotificationDeliveries.WithLabelValues(kind, d.Status).Inc()
	metrics.NotificationLatency.WithLabelValues(kind, d.Status).Observe(float64(d.LatencyMs))

	if jerr := f.journal.SaveDelivery(ctx, *d); jerr != nil {
		f.logger.Warn("delivery journal write failed", "id", d.ID, "channel", d.Channel, "error", jerr)
	}
	if err != nil {
		f.logger.Error("notification delivery failed", "id", d.ID, "channel", d.Channel, "attempts", d.Attempts, "error", err)
		return err
	}
	f.logger.Debug("notification delivered", "id", d.ID, "channel", d.Channel, "latency_ms", d.LatencyMs)
	return nil
}
