package config

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/corray333/backend-labs/kds/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MustInit loads .env and config.yaml into viper and installs the default logger.
// A missing .env or config file is tolerated; a malformed one is not.
func MustInit() {
	MustInitFile("")
}

// MustInitFile is MustInit with an explicit config file, which must exist.
func MustInitFile(path string) {
	if err := godotenv.Load("./.env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		panic("error while loading .env file: " + err.Error())
	}

	SetDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/kds")
	viper.AddConfigPath(".")
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			panic("error while reading config file: " + err.Error())
		}
		viper.SetConfigFile(path)
	}
	viper.SetEnvPrefix("kds")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic("error while reading config file: " + err.Error())
		}
	}
	SetupLogger()
}

// SetDefaults registers the fallback value of every key the client reads.
func SetDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	viper.SetDefault("api.base_url", "http://localhost:3001")
	viper.SetDefault("api.timeout_seconds", 10)

	viper.SetDefault("push.driver", "websocket")
	viper.SetDefault("push.websocket.url", "ws://localhost:3001/ws")
	viper.SetDefault("push.reconnect.base_millis", 500)
	viper.SetDefault("push.reconnect.max_seconds", 30)
	viper.SetDefault("rabbitmq.host", "localhost")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.exchange", "kds.orders")

	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.sqlite.path", "kds.db")

	viper.SetDefault("server.http.port", "8088")
	viper.SetDefault("server.http.cors.allowed_origins", []string{"*"})
	viper.SetDefault("server.http.cors.allowed_methods", []string{"GET", "PUT", "POST", "DELETE"})
	viper.SetDefault("server.http.cors.allowed_headers", []string{"Content-Type"})
	viper.SetDefault("server.grpc.port", "9088")

	viper.SetDefault("worker.urgency.poll_interval_seconds", 30)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.service_name", "kds")
	viper.SetDefault("otel.jaeger_endpoint", "http://jaeger:14268/api/traces")
}

// SetupLogger installs the slog default logger according to log.level and log.format.
func SetupLogger() {
	handler := logger.NewHandlerTo(os.Stdout, viper.GetString("log.format"), &slog.HandlerOptions{
		Level: logger.ParseLevel(viper.GetString("log.level")),
	})
	log := slog.New(handler)
	slog.SetDefault(log)
}
