// Package api implements the HTTP surface of the relay: on-demand order
// queries, notification streams, admin endpoints and health checks.
package api

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orderrelay/internal/config"
	"orderrelay/internal/directory"
	"orderrelay/internal/metrics"
	"orderrelay/internal/model"
	"orderrelay/internal/notify"
	"orderrelay/internal/poller"
	"orderrelay/internal/snapshot"
	"orderrelay/internal/store"
)

// QueryClient is the subset of the remote API client the handlers use.
type QueryClient interface {
	Orders(ctx context.Context, filters url.Values) ([]model.Order, error)
	OrdersByLabel(ctx context.Context, labels ...string) ([]model.Order, error)
	Clients(ctx context.Context) ([]model.Client, error)
	Statuses(ctx context.Context) ([]model.Status, error)
}

// CycleRunner triggers a poll cycle on demand.
type CycleRunner interface {
	RunCycle(ctx context.Context) poller.Cycle
}

// Retrier resends journaled deliveries.
type Retrier interface {
	Retry(ctx context.Context, id string) (store.Delivery, error)
}

// SnapshotView exposes tracked entries for inspection.
type SnapshotView interface {
	Entries() map[string]snapshot.Entry
	Len() int
}

type Server struct {
	Remote    QueryClient
	Directory *directory.Directory
	Store     store.Store
	Broker    notify.EventBroker
	Retrier   Retrier
	Poller    CycleRunner
	Snapshot  SnapshotView
	Config    config.Config
	Logger    *slog.Logger
}

// Routes registers every endpoint on a fresh mux. Optional dependencies
// that are nil make their endpoints answer 503.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Queries
	mux.HandleFunc("/v1/orders", s.OrdersHandler)
	mux.HandleFunc("/v1/clients", s.ClientsHandler)
	mux.HandleFunc("/v1/statuses", s.StatusesHandler)

	// Notification streams
	mux.HandleFunc("/v1/notifications/stream", s.StreamHandler)
	mux.HandleFunc("/v1/notifications/ws", s.WSHandler)

	// Admin
	mux.HandleFunc("/v1/admin/deliveries", s.adminOnly(s.DeliveriesHandler))
	mux.HandleFunc("/v1/admin/deliveries/", s.adminOnly(s.DeliveryRetryHandler))
	mux.HandleFunc("/v1/admin/poll", s.adminOnly(s.PollHandler))
	mux.HandleFunc("/v1/admin/snapshot", s.adminOnly(s.SnapshotHandler))

	// Health
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.HandleFunc("/debug", s.adminOnly(s.DebugJSON))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	return mux
}

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("api: response writer does not support hijacking")
	}
	// the websocket upgrade answers 101 itself
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Handler is Routes wrapped with Instrument.
func (s *Server) Handler() http.Handler { return Instrument(s.Routes(), s.logger()) }

// Instrument records request counts and latencies and writes the access
// log. Paths are the registered patterns, so ids never become label
// values.
func Instrument(mux *http.ServeMux, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		_, pattern := mux.Handler(r)
		if pattern == "" {
			pattern = "unmatched"
		}
		mux.ServeHTTP(rec, r)
		status := strconv.Itoa(rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, pattern, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, pattern, status).Observe(time.Since(start).Seconds())
		logger.Debug("http request", "remote", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
