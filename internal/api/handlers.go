package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"orderrelay/internal/buildinfo"
	"orderrelay/internal/directory"
	"orderrelay/internal/model"
	"orderrelay/internal/notify"
	"orderrelay/internal/render"
	"orderrelay/internal/store"
)

type orderView struct {
	model.Order
	Engineer       string `json:"engineer"`
	EngineerHandle string `json:"engineer_handle,omitempty"`
}

// OrdersHandler handles GET /v1/orders. Closed and canceled orders are
// left out. With ?label= the listing is filtered upstream and rendered in
// detail.
func (s *Server) OrdersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	label := strings.TrimSpace(r.URL.Query().Get("label"))
	var (
		orders []model.Order
		err    error
	)
	if label != "" {
		orders, err = s.Remote.OrdersByLabel(r.Context(), label)
	} else {
		orders, err = s.Remote.Orders(r.Context(), nil)
	}
	if err != nil {
		s.queryFailed(w, r, err)
		return
	}
	orders = render.ActiveOrders(orders)

	if wantsText(r) {
		lines := make([]string, 0, len(orders))
		for _, o := range orders {
			eng := directory.EngineerDisplay(o.EngineerID, s.Directory)
			if label != "" {
				lines = append(lines, render.OrderDetail(o, eng))
			} else {
				lines = append(lines, render.OrderLine(o, eng))
			}
		}
		writeText(w, http.StatusOK, strings.Join(lines, "\n"))
		return
	}
	items := make([]orderView, 0, len(orders))
	for _, o := range orders {
		v := orderView{Order: o, Engineer: directory.EngineerDisplay(o.EngineerID, s.Directory)}
		if o.EngineerID != nil {
			v.EngineerHandle, _ = s.Directory.Handle(*o.EngineerID)
		}
		items = append(items, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) ClientsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	clients, err := s.Remote.Clients(r.Context())
	if err != nil {
		s.queryFailed(w, r, err)
		return
	}
	if wantsText(r) {
		writeText(w, http.StatusOK, render.ClientList(clients))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": clients})
}

func (s *Server) StatusesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	statuses, err := s.Remote.Statuses(r.Context())
	if err != nil {
		s.queryFailed(w, r, err)
		return
	}
	if wantsText(r) {
		writeText(w, http.StatusOK, render.StatusList(statuses))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": statuses})
}

// queryFailed answers an upstream failure with a short problem; the full
// error goes to the log only.
func (s *Server) queryFailed(w http.ResponseWriter, r *http.Request, err error) {
	s.logger().Error("remote query failed", "path", r.URL.Path, "error", err)
	writeProblem(w, http.StatusBadGateway, "Upstream query failed", "the order service could not be queried, try again later", r.URL.Path)
}

func wantsText(r *http.Request) bool { return r.URL.Query().Get("format") == "text" }

// Admin: delivery journal list and retry

func (s *Server) DeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/deliveries" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be a positive integer", r.URL.Path)
			return
		}
		limit = n
	}
	status := q.Get("status")
	if status != "" && status != store.StatusDelivered && status != store.StatusFailed {
		writeProblem(w, http.StatusBadRequest, "Invalid status", "status must be delivered or failed", r.URL.Path)
		return
	}
	items, next, err := s.Store.ListDeliveries(r.Context(), status, q.Get("cursor"), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// DeliveryRetryHandler handles POST /v1/admin/deliveries/{id}/retry.
func (s *Server) DeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/admin/deliveries/")
	id, ok := strings.CutSuffix(rest, "/retry")
	if !ok || id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.Retrier == nil {
		writeProblem(w, http.StatusServiceUnavailable, "Notifications disabled", "no notification channels are configured", r.URL.Path)
		return
	}
	d, err := s.Retrier.Retry(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Delivery not found", "", r.URL.Path)
	case errors.Is(err, notify.ErrUnknownChannel):
		writeProblem(w, http.StatusConflict, "Channel not configured", d.Channel, r.URL.Path)
	case err != nil:
		writeProblem(w, http.StatusBadGateway, "Retry failed", err.Error(), r.URL.Path)
	default:
		writeJSON(w, http.StatusOK, d)
	}
}

type cycleView struct {
	At         time.Time `json:"at"`
	Baseline   bool      `json:"baseline"`
	Events     []string  `json:"events"`
	PublishErr string    `json:"publishError,omitempty"`
}

// PollHandler runs one poll cycle now. It waits for a running cycle to
// finish first.
func (s *Server) PollHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.Poller == nil {
		writeProblem(w, http.StatusServiceUnavailable, "Polling disabled", "no notification channels are configured", r.URL.Path)
		return
	}
	c := s.Poller.RunCycle(r.Context())
	if c.Err != nil {
		s.queryFailed(w, r, c.Err)
		return
	}
	v := cycleView{At: c.At, Baseline: c.Baseline, Events: make([]string, 0, len(c.Events))}
	for _, e := range c.Events {
		v.Events = append(v.Events, render.Event(e))
	}
	if c.PublishErr != nil {
		v.PublishErr = c.PublishErr.Error()
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.Snapshot == nil {
		writeProblem(w, http.StatusServiceUnavailable, "Polling disabled", "", r.URL.Path)
		return
	}
	type entry struct {
		Status   string `json:"status"`
		Engineer string `json:"engineer"`
	}
	entries := s.Snapshot.Entries()
	out := make(map[string]entry, len(entries))
	for k, e := range entries {
		out[k] = entry{Status: e.Status, Engineer: e.Engineer}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "entries": out})
}

// Health

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type pinger interface{ Ping(ctx context.Context) error }

// ReadyHandler checks the journal database and the Redis broker when they
// are in use.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	for _, dep := range []any{s.Store, s.Broker} {
		if p, ok := dep.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build":     buildinfo.Info(),
		"time":      time.Now().UTC().Format(time.RFC3339),
		"config":    s.Config.Redacted(),
		"engineers": s.Directory.Len(),
		"polling":   s.Poller != nil,
	}
	if s.Snapshot != nil {
		info["tracked"] = s.Snapshot.Len()
	}
	writeJSON(w, http.StatusOK, info)
}
