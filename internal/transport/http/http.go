package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/corray333/backend-labs/kds/internal/service/models/auditlog"
	"github.com/corray333/backend-labs/kds/internal/service/models/order"
	"github.com/corray333/backend-labs/kds/internal/service/models/session"
	"github.com/corray333/backend-labs/kds/internal/service/services/kdssvc"
	"github.com/corray333/backend-labs/kds/internal/service/services/syncengine"
	"github.com/corray333/backend-labs/kds/internal/transport/http/audit"
	"github.com/corray333/backend-labs/kds/internal/transport/http/board"
	"github.com/corray333/backend-labs/kds/internal/transport/http/events"
	"github.com/corray333/backend-labs/kds/internal/transport/http/orders"
	sessionhandler "github.com/corray333/backend-labs/kds/internal/transport/http/session"
	"github.com/corray333/backend-labs/kds/pkg/http/middleware/trace"
	"github.com/corray333/backend-labs/kds/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
)

// service is the kitchen display the HTTP API drives.
type service interface {
	Orders(ctx context.Context, f order.Filter) ([]order.Order, error)
	Order(ctx context.Context, id string) (order.Order, error)
	SetStatus(ctx context.Context, orderID string, status order.Status) error
	State(ctx context.Context) (kdssvc.State, error)
	Counts(ctx context.Context) (syncengine.Counts, error)
	SetFilter(ctx context.Context, f order.Filter) error
	Resync(ctx context.Context) error
	AuditLog(ctx context.Context, limit uint64) ([]auditlog.AuditLogOrder, error)
	Subscribe(l syncengine.Listener) syncengine.Unsubscribe
}

type sessionService interface {
	Login(ctx context.Context, rawCode string) (session.Session, error)
	Logout(ctx context.Context) error
	Current() session.Session
}

// HTTPTransport is the local API of the display.
type HTTPTransport struct {
	server   *http.Server
	router   *chi.Mux
	service  service
	sessions sessionService
	now      func() time.Time
}

type option func(*HTTPTransport)

// WithClock overrides the time used for elapsed and urgency fields.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(h *HTTPTransport) {
		h.now = now
	}
}

// NewHTTPTransport creates a new HTTPTransport.
func NewHTTPTransport(service service, sessions sessionService, opts ...option) *HTTPTransport {
	router := newRouter()
	server := newServer(router)
	h := &HTTPTransport{
		server:   server,
		router:   router,
		service:  service,
		sessions: sessions,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Run serves until Shutdown is called.
func (h *HTTPTransport) Run() error {
	slog.Info("Starting HTTP server", "address", h.server.Addr)
	if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// Handler returns the router.
func (h *HTTPTransport) Handler() http.Handler {
	return h.router
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Route("/api", func(r chi.Router) {
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Put("/orders/{id}/status", h.setStatus)

		r.Get("/state", h.getState)
		r.Get("/counts", h.getCounts)
		r.Put("/filter", h.setFilter)
		r.Post("/resync", h.resync)

		r.Get("/session", h.currentSession)
		r.Post("/session", h.login)
		r.Delete("/session", h.logout)

		r.Get("/audit", h.listAuditLogs)
		r.Get("/events", h.streamEvents)
	})
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	orders.ListOrders(w, r, h.service, h.now())
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	orders.GetOrder(w, r, h.service, h.now())
}

func (h *HTTPTransport) setStatus(w http.ResponseWriter, r *http.Request) {
	orders.SetStatus(w, r, h.service, h.now())
}

func (h *HTTPTransport) getState(w http.ResponseWriter, r *http.Request) {
	board.GetState(w, r, h.service)
}

func (h *HTTPTransport) getCounts(w http.ResponseWriter, r *http.Request) {
	board.GetCounts(w, r, h.service)
}

func (h *HTTPTransport) setFilter(w http.ResponseWriter, r *http.Request) {
	board.SetFilter(w, r, h.service)
}

func (h *HTTPTransport) resync(w http.ResponseWriter, r *http.Request) {
	board.Resync(w, r, h.service)
}

func (h *HTTPTransport) currentSession(w http.ResponseWriter, r *http.Request) {
	sessionhandler.Current(w, r, h.sessions)
}

func (h *HTTPTransport) login(w http.ResponseWriter, r *http.Request) {
	sessionhandler.Login(w, r, h.sessions)
}

func (h *HTTPTransport) logout(w http.ResponseWriter, r *http.Request) {
	sessionhandler.Logout(w, r, h.sessions)
}

func (h *HTTPTransport) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	audit.ListAuditLogs(w, r, h.service)
}

func (h *HTTPTransport) streamEvents(w http.ResponseWriter, r *http.Request) {
	events.Stream(w, r, h.service)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))
	router.Use(trace.NewTraceMiddleware("kds"))

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:              "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
