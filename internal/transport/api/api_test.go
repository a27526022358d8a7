package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/corray333/backend-labs/kds/internal/service/models/order"
	"github.com/corray333/backend-labs/kds/internal/transport/converters"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu           sync.Mutex
	statusBodies []converters.StatusRequest
	statusIDs    []string
	statusCode   int
}

func (fb *fakeBackend) setStatusCode(code int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.statusCode = code
}

func newFakeBackend(t *testing.T) (*fakeBackend, *Client) {
	t.Helper()
	fb := &fakeBackend{statusCode: http.StatusOK}

	r := chi.NewRouter()
	r.Get("/api/orders/{room}/active", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "room") != "owner01" {
			http.Error(w, "unknown room", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"orders": [
			{"id": "o2", "status": "IN_PROGRESS", "source": "Uber Eats", "createdAt": "2026-03-14T18:05:00Z", "totalMoney": 1200},
			{"id": "", "status": "OPEN", "createdAt": "2026-03-14T18:04:00Z"},
			{"id": "o1", "status": "OPEN", "source": "kiosk", "createdAt": "2026-03-14T18:00:00Z", "totalMoney": 500}
		]}`))
	})
	r.Put("/api/orders/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		var body converters.StatusRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fb.mu.Lock()
		defer fb.mu.Unlock()
		fb.statusIDs = append(fb.statusIDs, chi.URLParam(r, "id"))
		fb.statusBodies = append(fb.statusBodies, body)
		w.WriteHeader(fb.statusCode)
	})
	r.Get("/api/config/{code}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "code") != "OWNER01" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"name": "Taqueria Lupita"}`))
	})
	r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return fb, NewClient(WithBaseURL(srv.URL+"/"), WithTimeout(time.Second))
}

func TestFetchActive(t *testing.T) {
	_, client := newFakeBackend(t)

	orders, err := client.FetchActive(context.Background(), "OWNER01")

	require.NoError(t, err)
	require.Len(t, orders, 2, "invalid entry skipped")
	assert.Equal(t, "o2", orders[0].ID)
	assert.Equal(t, order.SourceUberEats, orders[0].Source)
	assert.Equal(t, order.StatusInProgress, orders[0].Status)
	assert.Equal(t, "o1", orders[1].ID)
	assert.Equal(t, order.SourceKiosk, orders[1].Source)
}

func TestFetchActive_ServerError(t *testing.T) {
	_, client := newFakeBackend(t)

	_, err := client.FetchActive(context.Background(), "OWNER99")

	assert.ErrorIs(t, err, ErrNetworkUnavailable)
}

func TestSetStatus(t *testing.T) {
	fb, client := newFakeBackend(t)

	err := client.SetStatus(context.Background(), "owner01", "o1", order.StatusCompleted)

	require.NoError(t, err)
	fb.mu.Lock()
	defer fb.mu.Unlock()
	assert.Equal(t, []string{"o1"}, fb.statusIDs)
	assert.Equal(t, []converters.StatusRequest{{Status: "COMPLETED", RestaurantCode: "OWNER01"}}, fb.statusBodies)
}

func TestSetStatus_Failures(t *testing.T) {
	fb, client := newFakeBackend(t)

	fb.setStatusCode(http.StatusBadGateway)
	assert.ErrorIs(t, client.SetStatus(context.Background(), "OWNER01", "o1", order.StatusCompleted), ErrNetworkUnavailable)

	fb.setStatusCode(http.StatusConflict)
	err := client.SetStatus(context.Background(), "OWNER01", "o1", order.StatusCompleted)
	assert.ErrorIs(t, err, ErrRejected)
	assert.NotErrorIs(t, err, ErrNetworkUnavailable)
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewClient(WithBaseURL(srv.URL), WithTimeout(time.Second))

	err := client.SetStatus(context.Background(), "OWNER01", "o1", order.StatusCompleted)

	assert.ErrorIs(t, err, ErrNetworkUnavailable)
}

func TestClient_Timeout(t *testing.T) {
	_, client := newFakeBackend(t)
	client.timeout = 20 * time.Millisecond

	err := client.do(context.Background(), http.MethodGet, "/slow", nil, nil)

	assert.ErrorIs(t, err, ErrNetworkUnavailable)
}

func TestLookupRestaurant(t *testing.T) {
	_, client := newFakeBackend(t)

	name, err := client.LookupRestaurant(context.Background(), "OWNER01")
	require.NoError(t, err)
	assert.Equal(t, "Taqueria Lupita", name)

	_, err = client.LookupRestaurant(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrRestaurantNotFound)
}
