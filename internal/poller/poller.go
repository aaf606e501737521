// Package poller runs the periodic fetch, diff and notify cycle.
//
//go:generate mockgen -source=poller.go -destination=mock_poller_test.go -package=poller
package poller

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"orderrelay/internal/diff"
	"orderrelay/internal/metrics"
	"orderrelay/internal/model"
	"orderrelay/internal/render"
	"orderrelay/internal/snapshot"
)

const DefaultInterval = 15 * time.Second

// OrderSource fetches the complete current order list.
type OrderSource interface {
	Orders(ctx context.Context, filters url.Values) ([]model.Order, error)
}

// Publisher delivers a notification payload to every subscribed channel.
type Publisher interface {
	Publish(ctx context.Context, text string) error
}

type Config struct {
	Interval time.Duration
}

// Cycle is the outcome of one RunCycle.
type Cycle struct {
	At       time.Time
	Baseline bool
	Events   []diff.Event
	// Err is the fetch failure that made the cycle a no-op.
	Err error
	// PublishErr holds per-channel delivery failures.
	PublishErr error
}

type Poller struct {
	cfg    Config
	src    OrderSource
	engine *diff.Engine
	store  snapshot.Store
	pub    Publisher
	logger *slog.Logger

	// mu serializes cycles: a cycle requested while one runs waits for it.
	mu sync.Mutex
}

func New(cfg Config, src OrderSource, engine *diff.Engine, store snapshot.Store, pub Publisher, logger *slog.Logger) (*Poller, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if src == nil || engine == nil || store == nil || pub == nil {
		return nil, errors.New("poller: source, engine, store and publisher are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{cfg: cfg, src: src, engine: engine, store: store, pub: pub, logger: logger}, nil
}

// RunCycle performs exactly one fetch+diff+notify pass.
// All-or-nothing: the store is only touched after a complete fetch.
func (p *Poller) RunCycle(ctx context.Context) Cycle {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := Cycle{At: time.Now()}
	orders, err := p.src.Orders(ctx, nil)
	if err != nil {
		metrics.PollCycles.WithLabelValues("failed").Inc()
		p.logger.Error("order poll failed, skipping cycle", "error", err)
		c.Err = err
		return c
	}

	c.Baseline = p.store.IsEmpty()
	c.Events = p.engine.Evaluate(orders, p.store)
	metrics.SnapshotEntries.Set(float64(p.store.Len()))

	if c.Baseline {
		metrics.PollCycles.WithLabelValues("baseline").Inc()
		p.logger.Debug("first tracking cycle, snapshot filled silently", "orders", len(orders), "tracked", p.store.Len())
		return c
	}
	metrics.PollCycles.WithLabelValues("ok").Inc()
	p.logger.Debug("order tracking cycle", "orders", len(orders), "events", len(c.Events))
	if len(c.Events) == 0 {
		return c
	}

	for _, e := range c.Events {
		metrics.ChangeEvents.WithLabelValues(string(e.Kind)).Inc()
	}
	if err := p.pub.Publish(ctx, render.Events(c.Events)); err != nil {
		p.logger.Error("notification publish failed", "events", len(c.Events), "error", err)
		c.PublishErr = err
	}
	return c
}

// Run fires a cycle immediately and then every interval until ctx is done.
// Ticks that arrive while a cycle runs are dropped, so cycles never overlap.
func (p *Poller) Run(ctx context.Context) {
	p.RunCycle(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunCycle(ctx)
		}
	}
}
