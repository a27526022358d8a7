package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/backend-labs/kds/internal/dal"
	auditrepo "github.com/corray333/backend-labs/kds/internal/dal/repositories/audit"
	sessionrepo "github.com/corray333/backend-labs/kds/internal/dal/repositories/session"
	"github.com/corray333/backend-labs/kds/internal/otel"
	"github.com/corray333/backend-labs/kds/internal/service/models/session"
	"github.com/corray333/backend-labs/kds/internal/service/services/kdssvc"
	"github.com/corray333/backend-labs/kds/internal/service/services/sessionsvc"
	"github.com/corray333/backend-labs/kds/internal/transport/api"
	grpctransport "github.com/corray333/backend-labs/kds/internal/transport/grpc"
	httptransport "github.com/corray333/backend-labs/kds/internal/transport/http"
	"github.com/corray333/backend-labs/kds/internal/transport/push"
	pushamqp "github.com/corray333/backend-labs/kds/internal/transport/push/amqp"
	pushws "github.com/corray333/backend-labs/kds/internal/transport/push/websocket"
	urgencyworker "github.com/corray333/backend-labs/kds/internal/worker/urgency"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// eventBuffer is the capacity of the channel between the push channel and the loop.
const eventBuffer = 64

// App represents the application.
type App struct {
	otelController *otel.OtelController
	dalClient      dal.Client
	sessionSvc     *sessionsvc.SessionService
	kdsSvc         *kdssvc.KDSService
	pushChannel    push.Channel
	httpTransport  *httptransport.HTTPTransport
	grpcTransport  *grpctransport.GRPCTransport
	urgencyWorker  *urgencyworker.Worker
}

// MustNewApp creates a new application. The persisted session is restored before
// the display starts, so a restart resumes the last restaurant.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()
	dalClient := dal.MustNewClient()

	apiClient := api.NewClient()
	sessionSvc := sessionsvc.MustNewSessionService(
		sessionsvc.WithSessionRepository(sessionrepo.NewSessionRepository(dalClient)),
		sessionsvc.WithRestaurantLookup(apiClient),
	)
	restored, err := sessionSvc.Restore(context.Background())
	if err != nil {
		slog.Error("Failed to restore session, starting logged out", "error", err)
	}

	pushChannel := MustNewPushChannel()
	grpcTransport := grpctransport.NewGRPCTransport()

	kdsSvc := kdssvc.MustNewKDSService(
		kdssvc.WithPushChannel(pushChannel),
		kdssvc.WithBackend(apiClient),
		kdssvc.WithAuditRepository(auditrepo.NewAuditRepository(dalClient)),
		kdssvc.WithSession(restored),
		kdssvc.WithConnectionObserver(grpcTransport.SetConnected),
	)

	httpTransport := httptransport.NewHTTPTransport(kdsSvc, sessionSvc)
	httpTransport.RegisterRoutes()

	return &App{
		otelController: otelController,
		dalClient:      dalClient,
		sessionSvc:     sessionSvc,
		kdsSvc:         kdsSvc,
		pushChannel:    pushChannel,
		httpTransport:  httpTransport,
		grpcTransport:  grpcTransport,
		urgencyWorker:  urgencyworker.NewWorker(kdsSvc, nil),
	}
}

// MustNewPushChannel creates the push channel selected by push.driver.
func MustNewPushChannel() push.Channel {
	switch driver := viper.GetString("push.driver"); driver {
	case "", "websocket":
		return pushws.NewChannel()
	case "amqp", "rabbitmq":
		return pushamqp.NewChannel()
	default:
		panic(fmt.Sprintf("unknown push driver %q", driver))
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	unsubscribe := a.sessionSvc.Subscribe(func(_, next session.Session) {
		if err := a.kdsSvc.SwitchTenant(ctx, next); err != nil {
			slog.Error("Failed to switch restaurant", "restaurant_code", next.Code, "error", err)
		}
	})
	defer unsubscribe()

	events := make(chan push.Event, eventBuffer)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting push channel", "driver", viper.GetString("push.driver"))
		if err := a.pushChannel.Run(gctx, events); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("push channel: %w", err)
		}

		return nil
	})
	g.Go(func() error {
		return a.kdsSvc.Run(gctx, events)
	})

	go func() {
		if err := a.httpTransport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	go func() {
		if err := a.grpcTransport.Run(); err != nil {
			slog.Error("gRPC server error", "error", err)
		}
	}()

	go func() {
		slog.Info("Starting urgency worker")
		a.urgencyWorker.Start(gctx)
	}()

	select {
	case <-stop:
		slog.Info("Shutdown signal received")
	case <-gctx.Done():
		slog.Warn("Core stopped unexpectedly")
	}
	cancel()

	if err := g.Wait(); err != nil {
		slog.Error("Core error", "error", err)
	}

	a.gracefulShutdown()
}

// gracefulShutdown stops the servers, the push channel, storage and tracing in that order.
func (a *App) gracefulShutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.urgencyWorker.Stop()
	slog.Info("Urgency worker stopped gracefully")

	if err := a.httpTransport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	if err := a.grpcTransport.Shutdown(ctx); err != nil {
		slog.Error("gRPC server shutdown error", "error", err)
	} else {
		slog.Info("gRPC server stopped gracefully")
	}

	if err := a.pushChannel.Close(); err != nil {
		slog.Error("Push channel close error", "error", err)
	} else {
		slog.Info("Push channel closed gracefully")
	}

	if err := a.dalClient.Close(); err != nil {
		slog.Error("Database connection close error", "error", err)
	} else {
		slog.Info("Database connection closed gracefully")
	}

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Otel trace provider connection close error", "error", err)
	} else {
		slog.Info("Otel trace provider connection closed gracefully")
	}

	select {
	case <-ctx.Done():
		slog.Warn("Shutdown timeout exceeded")
	default:
		slog.Info("Application shutdown complete")
	}
}
