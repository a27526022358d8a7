// Package api is the client of the backend REST endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/corray333/backend-labs/kds/internal/service/models/order"
	"github.com/corray333/backend-labs/kds/internal/service/models/session"
	"github.com/corray333/backend-labs/kds/internal/transport/converters"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

var (
	// ErrNetworkUnavailable wraps transport failures, timeouts and 5xx answers.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrRejected wraps 4xx answers to a mutation.
	ErrRejected = errors.New("rejected by backend")
	// ErrRestaurantNotFound is returned by LookupRestaurant for an unknown code.
	ErrRestaurantNotFound = errors.New("restaurant not found")
)

// Client calls the backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	log        *slog.Logger
}

type option func(*Client)

// WithBaseURL sets the backend address, e.g. http://localhost:3001.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithBaseURL(baseURL string) option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient replaces the underlying HTTP client.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithHTTPClient(httpClient *http.Client) option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds every request.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithTimeout(timeout time.Duration) option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient creates a client configured from api.* unless overridden.
func NewClient(opts ...option) *Client {
	timeout := viper.GetInt("api.timeout_seconds")
	if timeout == 0 {
		timeout = 10
	}

	c := &Client{
		baseURL:    viper.GetString("api.base_url"),
		httpClient: &http.Client{},
		timeout:    time.Duration(timeout) * time.Second,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")

	return c
}

// FetchActive returns the authoritative list of active orders of a restaurant.
// Entries that fail validation are logged and skipped.
func (c *Client) FetchActive(ctx context.Context, restaurantCode string) ([]order.Order, error) {
	ctx, span := otel.Tracer("api-client").Start(ctx, "Client.FetchActive")
	defer span.End()

	room := session.RoomKey(restaurantCode)
	span.SetAttributes(attribute.String("kds.room", room))

	var resp converters.ActiveOrdersResponse
	path := "/api/orders/" + url.PathEscape(room) + "/active"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	orders, errs := converters.OrdersFromDTO(resp.Orders)
	for _, err := range errs {
		c.log.Warn("Snapshot order skipped", "room", room, "error", err)
	}
	span.SetAttributes(attribute.Int("kds.orders", len(orders)))

	return orders, nil
}

// SetStatus asks the backend to move an order to status.
func (c *Client) SetStatus(ctx context.Context, restaurantCode, orderID string, status order.Status) error {
	ctx, span := otel.Tracer("api-client").Start(ctx, "Client.SetStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("kds.order_id", orderID),
		attribute.String("kds.status", status.String()),
	)

	code, err := session.NormalizeCode(restaurantCode)
	if err != nil {
		return err
	}
	body := converters.StatusRequest{
		Status:         status.String(),
		RestaurantCode: code,
	}
	path := "/api/orders/" + url.PathEscape(orderID) + "/status"
	if err := c.do(ctx, http.MethodPut, path, body, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return err
	}

	return nil
}

// LookupRestaurant resolves a restaurant code to its display name.
func (c *Client) LookupRestaurant(ctx context.Context, code string) (string, error) {
	ctx, span := otel.Tracer("api-client").Start(ctx, "Client.LookupRestaurant")
	defer span.End()

	var resp converters.RestaurantConfigResponse
	err := c.do(ctx, http.MethodGet, "/api/config/"+url.PathEscape(code), nil, &resp)
	var statusErr *statusError
	if errors.As(err, &statusErr) && statusErr.code == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrRestaurantNotFound, code)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return "", err
	}

	return resp.Name, nil
}

type statusError struct {
	method string
	path   string
	code   int
	kind   error
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: %s %s: status %d", e.kind, e.method, e.path, e.code)
}

func (e *statusError) Unwrap() error {
	return e.kind
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrNetworkUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		kind := ErrNetworkUnavailable
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			kind = ErrRejected
		}

		return &statusError{method: method, path: path, code: resp.StatusCode, kind: kind}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode %s %s: %w", ErrNetworkUnavailable, method, path, err)
	}

	return nil
}
