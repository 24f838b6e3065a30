package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_Disabled(t *testing.T) {
	telemetry, err := Initialize(context.Background(), Config{ServiceName: "themes"}, Discard())

	require.NoError(t, err)
	assert.Nil(t, telemetry.TracerProvider)
	assert.Nil(t, telemetry.MeterProvider)
	assert.NoError(t, telemetry.Shutdown(context.Background()))
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 30*time.Second, cfg.ExportInterval)

	cfg = Config{Endpoint: "collector:4317", ExportInterval: time.Second}.withDefaults()
	assert.Equal(t, "collector:4317", cfg.Endpoint)
	assert.Equal(t, time.Second, cfg.ExportInterval)
}

func TestConfig_Sampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		desc := Config{SampleRatio: tt.ratio}.sampler().Description()

		assert.Contains(t, desc, "ParentBased")
		assert.Contains(t, desc, tt.want)
	}
}
