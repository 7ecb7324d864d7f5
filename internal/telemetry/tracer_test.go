package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProviderUnsupportedExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "nacex",
		ExporterType: "udp",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported exporter type")
}

func TestTracerAlwaysUsable(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	tr := Tracer("nacex/test")
	_, span := tr.Start(context.Background(), "noop-span")
	span.End()
}
