package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderrelay/internal/diff"
	"orderrelay/internal/directory"
	"orderrelay/internal/model"
	"orderrelay/internal/notify"
	"orderrelay/internal/poller"
	"orderrelay/internal/snapshot"
	"orderrelay/internal/store"
)

type fakeRemote struct {
	orders   []model.Order
	clients  []model.Client
	statuses []model.Status
	err      error
	labels   []string
}

func (f *fakeRemote) Orders(ctx context.Context, filters url.Values) ([]model.Order, error) {
	return f.orders, f.err
}

func (f *fakeRemote) OrdersByLabel(ctx context.Context, labels ...string) ([]model.Order, error) {
	f.labels = labels
	return f.orders, f.err
}

func (f *fakeRemote) Clients(ctx context.Context) ([]model.Client, error) { return f.clients, f.err }

func (f *fakeRemote) Statuses(ctx context.Context) ([]model.Status, error) { return f.statuses, f.err }

type stubChannel struct {
	name string
	err  error
}

func (c *stubChannel) Name() string { return c.name }

func (c *stubChannel) Publish(ctx context.Context, text string) error { return c.err }

func ptr(v int64) *int64 { return &v }

func testOrders() []model.Order {
	return []model.Order{
		{Label: "A-1", Client: model.OrderClient{Name: "Ann"}, Status: &model.OrderStatus{Name: "New", Group: 1}, EngineerID: ptr(1), Model: "iPhone"},
		{Label: "A-2", Client: model.OrderClient{Name: "Bob"}, Status: &model.OrderStatus{Name: "Closed", Group: model.StatusGroupClosed}},
		{Label: "A-3", Client: model.OrderClient{Name: "Cid"}, Status: &model.OrderStatus{Name: "Canceled", Group: model.StatusGroupCanceled}},
		{Label: "A-4", Client: model.OrderClient{Name: "Dan"}, Status: &model.OrderStatus{Name: "Ready", Group: 4}},
	}
}

func newTestServer(t *testing.T, remote *fakeRemote) *Server {
	t.Helper()
	return &Server{
		Remote:    remote,
		Directory: directory.New([]model.Employee{{ID: 1, FirstName: "Ivan", LastName: "Petrov", Notes: "senior, tg:ivanp"}}),
		Store:     store.NewMemory(),
		Broker:    notify.NewBroker(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func TestOrdersSkipsClosedAndCanceled(t *testing.T) {
	s := newTestServer(t, &fakeRemote{orders: testOrders()})
	rr := do(t, s.Routes(), http.MethodGet, "/v1/orders")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Items []struct {
			Label    string `json:"id_label"`
			Engineer string `json:"engineer"`
			Handle   string `json:"engineer_handle"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Items, 2)
	assert.Equal(t, "A-1", body.Items[0].Label)
	assert.Equal(t, "Ivan Petrov", body.Items[0].Engineer)
	assert.Equal(t, "ivanp", body.Items[0].Handle)
	assert.Equal(t, "A-4", body.Items[1].Label)
	assert.Equal(t, directory.Unassigned, body.Items[1].Engineer)
}

func TestOrdersText(t *testing.T) {
	s := newTestServer(t, &fakeRemote{orders: testOrders()})
	rr := do(t, s.Routes(), http.MethodGet, "/v1/orders?format=text")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*A-1* Ann (New) *Ivan Petrov*\n*A-4* Dan (Ready) *=FREE=*", rr.Body.String())
}

func TestOrdersByLabelIsDetailed(t *testing.T) {
	remote := &fakeRemote{orders: testOrders()[:1]}
	s := newTestServer(t, remote)
	rr := do(t, s.Routes(), http.MethodGet, "/v1/orders?label=A-1&format=text")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"A-1"}, remote.labels)
	assert.True(t, strings.HasPrefix(rr.Body.String(), "*A-1* Ann (New) *Ivan Petrov*\n*model*: `iPhone`"))
}

func TestQueryFailureIsShortProblem(t *testing.T) {
	s := newTestServer(t, &fakeRemote{err: errors.New("remote: token secret-123 rejected")})
	for _, path := range []string{"/v1/orders", "/v1/clients", "/v1/statuses"} {
		rr := do(t, s.Routes(), http.MethodGet, path)
		assert.Equal(t, http.StatusBadGateway, rr.Code, path)
		var p Problem
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
		assert.Equal(t, "Upstream query failed", p.Title)
		assert.NotContains(t, rr.Body.String(), "secret-123")
	}
}

func TestClientsAndStatusesText(t *testing.T) {
	s := newTestServer(t, &fakeRemote{
		clients:  []model.Client{{ID: 1, Name: "Ann"}, {ID: 2, Name: "Bob"}},
		statuses: []model.Status{{ID: 5, Name: "New", Group: 1}},
	})
	rr := do(t, s.Routes(), http.MethodGet, "/v1/clients?format=text")
	assert.Equal(t, "Ann\nBob", rr.Body.String())
	rr = do(t, s.Routes(), http.MethodGet, "/v1/statuses?format=text")
	assert.Equal(t, "5 New 1", rr.Body.String())
	rr = do(t, s.Routes(), http.MethodPost, "/v1/clients")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestDeliveriesListAndRetry(t *testing.T) {
	s := newTestServer(t, &fakeRemote{})
	ch := &stubChannel{name: "webhook:http://hooks", err: &notify.StatusError{Channel: "webhook:http://hooks", Code: 500}}
	fan := notify.NewFanout([]notify.Notifier{ch}, s.Store, s.Logger)
	s.Retrier = fan
	require.Error(t, fan.Publish(context.Background(), "New order: *A-1*"))
	h := s.Routes()

	rr := do(t, h, http.MethodGet, "/v1/admin/deliveries?status=failed")
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Items []store.Delivery `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	id := list.Items[0].ID

	rr = do(t, h, http.MethodPost, "/v1/admin/deliveries/"+id+"/retry")
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	ch.err = nil
	rr = do(t, h, http.MethodPost, "/v1/admin/deliveries/"+id+"/retry")
	require.Equal(t, http.StatusOK, rr.Code)
	var d store.Delivery
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &d))
	assert.Equal(t, store.StatusDelivered, d.Status)
	assert.Equal(t, 3, d.Attempts)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/v1/admin/deliveries/nope/retry").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/v1/admin/deliveries/"+id).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/v1/admin/deliveries/"+id+"/retry").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/admin/deliveries?status=odd").Code)
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	s := newTestServer(t, &fakeRemote{})
	s.Config.AdminToken = "s3cret"
	h := s.Routes()

	send := func(target, authz string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		h.ServeHTTP(rr, req)
		return rr
	}

	for _, target := range []string{"/v1/admin/deliveries", "/v1/admin/snapshot", "/debug"} {
		rr := send(target, "")
		require.Equal(t, http.StatusUnauthorized, rr.Code, target)
		assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")
		var p Problem
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
		assert.Equal(t, http.StatusUnauthorized, p.Status)

		assert.Equal(t, http.StatusUnauthorized, send(target, "Bearer wrong").Code, target)
		assert.Equal(t, http.StatusUnauthorized, send(target, "Basic czNjcmV0").Code, target)
	}

	assert.Equal(t, http.StatusOK, send("/v1/admin/deliveries", "Bearer s3cret").Code)
	assert.Equal(t, http.StatusOK, send("/debug", "bearer s3cret").Code)
	// queries and health stay open
	assert.Equal(t, http.StatusOK, send("/healthz", "").Code)
}

func TestPollAndSnapshot(t *testing.T) {
	remote := &fakeRemote{orders: testOrders()}
	s := newTestServer(t, remote)
	h := s.Routes()
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/v1/admin/poll").Code)

	snap := snapshot.NewMemory()
	p, err := poller.New(poller.Config{Interval: time.Minute}, remote, diff.NewEngine(s.Directory), snap,
		notify.NewFanout(nil, s.Store, s.Logger), s.Logger)
	require.NoError(t, err)
	s.Poller, s.Snapshot = p, snap

	rr := do(t, h, http.MethodPost, "/v1/admin/poll")
	require.Equal(t, http.StatusOK, rr.Code)
	var c struct {
		Baseline bool     `json:"baseline"`
		Events   []string `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &c))
	assert.True(t, c.Baseline)
	assert.Empty(t, c.Events)

	remote.orders[0].Status.Name = "In progress"
	rr = do(t, h, http.MethodPost, "/v1/admin/poll")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &c))
	assert.False(t, c.Baseline)
	assert.Equal(t, []string{"Status was changed: *A-1* Ann (In progress) *Ivan Petrov*"}, c.Events)

	rr = do(t, h, http.MethodGet, "/v1/admin/snapshot")
	require.Equal(t, http.StatusOK, rr.Code)
	var sv struct {
		Count   int `json:"count"`
		Entries map[string]struct {
			Status string `json:"status"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sv))
	assert.Equal(t, 4, sv.Count)
	assert.Equal(t, "In progress", sv.Entries["A-1"].Status)

	remote.err = errors.New("down")
	assert.Equal(t, http.StatusBadGateway, do(t, h, http.MethodPost, "/v1/admin/poll").Code)
}

func TestHealthReadyDebug(t *testing.T) {
	s := newTestServer(t, &fakeRemote{})
	h := s.Routes()
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz").Code)

	s.Config.APIKey = "very-secret"
	rr := do(t, h, http.MethodGet, "/debug")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "very-secret")
	assert.Contains(t, rr.Body.String(), `"engineers":1`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeRemote{})
	h := s.Handler()
	do(t, h, http.MethodGet, "/healthz")
	rr := do(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestStreamRequiresTopic(t *testing.T) {
	s := newTestServer(t, &fakeRemote{})
	assert.Equal(t, http.StatusBadRequest, do(t, s.Routes(), http.MethodGet, "/v1/notifications/stream").Code)
	s.Broker = nil
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s.Routes(), http.MethodGet, "/v1/notifications/ws?topic=ops").Code)
}

func TestSSEStream(t *testing.T) {
	s := newTestServer(t, &fakeRemote{})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/notifications/stream?topic=ops", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	require.True(t, sc.Scan())
	require.Equal(t, "event: heartbeat", sc.Text())

	msg := notify.NewMessage("ops", "New order: *A-1*")
	require.NoError(t, s.Broker.Publish("ops", msg))

	var data string
	for sc.Scan() {
		if line, ok := strings.CutPrefix(sc.Text(), "data: "); ok && strings.Contains(line, msg.ID) {
			data = line
			break
		}
	}
	var got notify.Message
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, "New order: *A-1*", got.Text)
}

func TestWebSocketStream(t *testing.T) {
	s := newTestServer(t, &fakeRemote{})
	broker := s.Broker.(*notify.Broker)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/notifications/ws?topic=ops"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return broker.Subscribers("ops") == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, broker.Publish("ops", notify.NewMessage("ops", "Engineer was changed: *A-1*")))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got notify.Message
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "Engineer was changed: *A-1*", got.Text)
	assert.Equal(t, "ops", got.Topic)
}
