package otel

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestMustInitOtel_Disabled(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	c := MustInitOtel()

	require.NotNil(t, c)
	assert.Nil(t, c.traceProvider)
	assert.NoError(t, c.Shutdown())
	assert.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, otel.GetTextMapPropagator().Fields())
}

func TestMustInitOtel_Enabled(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("otel.enabled", true)
	viper.Set("otel.service_name", "kds-test")
	viper.Set("otel.jaeger_endpoint", "http://127.0.0.1:1/api/traces")

	c := MustInitOtel()

	require.NotNil(t, c.traceProvider)
	assert.NoError(t, c.Shutdown())
}
