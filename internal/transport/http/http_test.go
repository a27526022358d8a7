package httptransport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/corray333/backend-labs/kds/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/kds/internal/service/models/order"
	"github.com/corray333/backend-labs/kds/internal/service/models/session"
	"github.com/corray333/backend-labs/kds/internal/service/services/kdssvc"
	"github.com/corray333/backend-labs/kds/internal/service/services/syncengine"
	"github.com/corray333/backend-labs/kds/internal/transport/api"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

type fakeService struct {
	mu        sync.Mutex
	orders    []order.Order
	filter    order.Filter
	listed    order.Filter
	statusErr error
	statuses  map[string]order.Status
	auditArg  uint64
	resyncs   int
	listener  syncengine.Listener
}

func newFakeService() *fakeService {
	return &fakeService{
		filter:   order.FilterAll,
		statuses: make(map[string]order.Status),
		orders: []order.Order{
			{
				ID:          "dd-0002",
				DisplayID:   "0002",
				Source:      order.SourceDoorDash,
				Status:      order.StatusInProgress,
				IsDelivery:  true,
				DisplayName: "Sam",
				LineItems: []order.LineItem{{
					Name:          "Burrito",
					Quantity:      "1",
					VariationName: "Large",
					Modifiers:     []string{"extra salsa"},
					TotalMoney:    1100,
				}},
				TotalMoney: 1100,
				CreatedAt:  t0.Add(15 * time.Minute),
				UpdatedAt:  t0.Add(16 * time.Minute),
			},
			{
				ID:         "sq-0001",
				DisplayID:  "0001",
				Source:     order.SourceKiosk,
				Status:     order.StatusOpen,
				LineItems:  []order.LineItem{{Name: "Taco", Quantity: "2", TotalMoney: 500}},
				TotalMoney: 1250,
				Note:       "no cilantro",
				CreatedAt:  t0,
				UpdatedAt:  t0,
			},
		},
	}
}

func (f *fakeService) Orders(_ context.Context, flt order.Filter) ([]order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = flt
	if flt == "" {
		flt = f.filter
	}
	var out []order.Order
	for _, o := range f.orders {
		if flt.Match(o.Status) {
			out = append(out, o)
		}
	}

	return out, nil
}

func (f *fakeService) Order(_ context.Context, id string) (order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.ID == id {
			if s, ok := f.statuses[id]; ok {
				o.Status = s
			}
			return o, nil
		}
	}

	return order.Order{}, syncengine.ErrUnknownOrder
}

func (f *fakeService) SetStatus(_ context.Context, id string, status order.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statuses[id] = status

	return nil
}

func (f *fakeService) State(context.Context) (kdssvc.State, error) {
	return kdssvc.State{
		Connected:      true,
		RestaurantCode: "OWNER01",
		RestaurantName: "Taqueria Lupita",
		Filter:         order.FilterAll,
		Counts:         syncengine.Counts{Open: 1, InProgress: 1},
	}, nil
}

func (f *fakeService) Counts(context.Context) (syncengine.Counts, error) {
	return syncengine.Counts{Open: 1, InProgress: 1}, nil
}

func (f *fakeService) SetFilter(_ context.Context, flt order.Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = flt

	return nil
}

func (f *fakeService) Resync(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resyncs++

	return nil
}

func (f *fakeService) AuditLog(_ context.Context, limit uint64) ([]auditlog.AuditLogOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auditArg = limit

	return []auditlog.AuditLogOrder{{
		ID:             "a1",
		Kind:           auditlog.KindStatusChange,
		RestaurantCode: "OWNER01",
		OrderID:        "sq-0001",
		FromStatus:     "OPEN",
		ToStatus:       "IN_PROGRESS",
		Outcome:        auditlog.OutcomeCommitted,
		CreatedAt:      t0,
	}}, nil
}

func (f *fakeService) Subscribe(l syncengine.Listener) syncengine.Unsubscribe {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listener = l

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.listener = nil
	}
}

func (f *fakeService) notify(c syncengine.Change) bool {
	f.mu.Lock()
	l := f.listener
	f.mu.Unlock()
	if l == nil {
		return false
	}
	l(c)

	return true
}

type fakeSessions struct {
	current session.Session
	err     error
}

func (f *fakeSessions) Login(_ context.Context, raw string) (session.Session, error) {
	if f.err != nil {
		return session.Session{}, f.err
	}
	code, err := session.NormalizeCode(raw)
	if err != nil {
		return session.Session{}, err
	}
	f.current = session.Session{Code: code, Name: "Taqueria Lupita"}

	return f.current, nil
}

func (f *fakeSessions) Logout(context.Context) error {
	f.current = session.Session{}

	return nil
}

func (f *fakeSessions) Current() session.Session {
	return f.current
}

func newTestTransport(t *testing.T) (*HTTPTransport, *fakeService, *fakeSessions) {
	t.Helper()
	svc := newFakeService()
	sessions := &fakeSessions{}
	h := NewHTTPTransport(svc, sessions, WithClock(func() time.Time { return t0.Add(20 * time.Minute) }))
	h.RegisterRoutes()

	return h, svc, sessions
}

func do(t *testing.T, h *HTTPTransport, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, r))

	return rec
}

func TestListOrders_Golden(t *testing.T) {
	h, svc, _ := newTestTransport(t)

	rec := do(t, h, http.MethodGet, "/api/orders", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, order.Filter(""), svc.listed)
	goldie.New(t).Assert(t, "list_orders", rec.Body.Bytes())
}

func TestListOrders_Filter(t *testing.T) {
	h, svc, _ := newTestTransport(t)

	rec := do(t, h, http.MethodGet, "/api/orders?filter=open", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, order.FilterOpen, svc.listed)
	assert.Contains(t, rec.Body.String(), `"id":"sq-0001"`)
	assert.NotContains(t, rec.Body.String(), `"id":"dd-0002"`)

	rec = do(t, h, http.MethodGet, "/api/orders?filter=ready", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrder(t *testing.T) {
	h, _, _ := newTestTransport(t)

	rec := do(t, h, http.MethodGet, "/api/orders/sq-0001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"urgent":true`)

	rec = do(t, h, http.MethodGet, "/api/orders/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"unknown order"}`, rec.Body.String())
}

func TestSetStatus(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantCode   int
	}{
		{name: "committed", body: `{"status":"IN_PROGRESS"}`, wantCode: http.StatusOK},
		{name: "missing status", body: `{}`, wantCode: http.StatusBadRequest},
		{name: "unknown status", body: `{"status":"READY"}`, wantCode: http.StatusBadRequest},
		{name: "malformed body", body: `{`, wantCode: http.StatusBadRequest},
		{
			name:       "network down",
			body:       `{"status":"COMPLETED"}`,
			serviceErr: fmt.Errorf("failed to set order status: %w", api.ErrNetworkUnavailable),
			wantCode:   http.StatusBadGateway,
		},
		{
			name:       "backward",
			body:       `{"status":"OPEN"}`,
			serviceErr: order.ErrBackwardTransition,
			wantCode:   http.StatusConflict,
		},
		{name: "logged out", body: `{"status":"COMPLETED"}`, serviceErr: kdssvc.ErrNoSession, wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, svc, _ := newTestTransport(t)
			svc.statusErr = tt.serviceErr

			rec := do(t, h, http.MethodPut, "/api/orders/sq-0001/status", tt.body)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Contains(t, rec.Body.String(), `"status":"IN_PROGRESS"`)
			}
		})
	}
}

func TestGetState_Golden(t *testing.T) {
	h, _, _ := newTestTransport(t)

	rec := do(t, h, http.MethodGet, "/api/state", "")

	require.Equal(t, http.StatusOK, rec.Code)
	goldie.New(t).Assert(t, "state", rec.Body.Bytes())
}

func TestCounts(t *testing.T) {
	h, _, _ := newTestTransport(t)

	rec := do(t, h, http.MethodGet, "/api/counts", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"open":1,"inProgress":1,"completed":0}`, rec.Body.String())
}

func TestSetFilter(t *testing.T) {
	h, svc, _ := newTestTransport(t)

	rec := do(t, h, http.MethodPut, "/api/filter", `{"filter":"in_progress"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, order.FilterInProgress, svc.filter)

	rec = do(t, h, http.MethodPut, "/api/filter", `{"filter":"late"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, order.FilterInProgress, svc.filter)
}

func TestResync(t *testing.T) {
	h, svc, _ := newTestTransport(t)

	rec := do(t, h, http.MethodPost, "/api/resync", "")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, svc.resyncs)
}

func TestSession(t *testing.T) {
	h, _, sessions := newTestTransport(t)

	rec := do(t, h, http.MethodGet, "/api/session", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/session", `{"restaurantCode":" owner01 "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"restaurantCode":"OWNER01","restaurantName":"Taqueria Lupita"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/session", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/session", `{"restaurantCode":"far too long"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/session", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sessions.err = fmt.Errorf("failed to look up restaurant: %w", api.ErrRestaurantNotFound)
	rec = do(t, h, http.MethodPost, "/api/session", `{"restaurantCode":"NOPE"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/session", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, sessions.Current().Empty())
}

func TestListAuditLogs(t *testing.T) {
	h, svc, _ := newTestTransport(t)

	rec := do(t, h, http.MethodGet, "/api/audit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(50), svc.auditArg)
	assert.Contains(t, rec.Body.String(), `"outcome":"committed"`)

	rec = do(t, h, http.MethodGet, "/api/audit?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(5), svc.auditArg)

	rec = do(t, h, http.MethodGet, "/api/audit?limit=many", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamEvents(t *testing.T) {
	h, svc, _ := newTestTransport(t)
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool {
		return svc.notify(syncengine.Change{Kind: syncengine.ChangeAdded, OrderID: "sq-0003"})
	}, time.Second, 5*time.Millisecond)

	reader := bufio.NewReader(resp.Body)
	event, err := reader.ReadString('\n')
	require.NoError(t, err)
	data, err := reader.ReadString('\n')
	require.NoError(t, err)

	assert.Equal(t, "event: change\n", event)
	assert.Equal(t, `data: {"kind":"added","orderId":"sq-0003"}`+"\n", data)
}
