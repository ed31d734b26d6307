package telemetry_test

import (
	"context"
	"runtime/pprof"
	"testing"

	"github.com/erp/sourcing/internal/infrastructure/telemetry"
	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := telemetry.NewProfiler(telemetry.ProfilerConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_RequiresAddressAndName(t *testing.T) {
	_, err := telemetry.NewProfiler(telemetry.ProfilerConfig{Enabled: true, ApplicationName: "sourcing"}, nil)
	assert.ErrorContains(t, err, "server address")

	_, err = telemetry.NewProfiler(telemetry.ProfilerConfig{Enabled: true, ServerAddress: "http://pyroscope:4040"}, nil)
	assert.ErrorContains(t, err, "application name")
}

func TestProfileTypes(t *testing.T) {
	types, err := telemetry.ProfileTypes(nil)
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{pyroscope.ProfileCPU, pyroscope.ProfileInuseSpace}, types)

	types, err = telemetry.ProfileTypes([]string{"cpu", "mutex"})
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{
		pyroscope.ProfileCPU, pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration,
	}, types)

	_, err = telemetry.ProfileTypes([]string{"heap"})
	assert.ErrorContains(t, err, `unknown profile type "heap"`)
}

func TestWithProfileLabels(t *testing.T) {
	var got string
	telemetry.WithProfileLabels(context.Background(), func(ctx context.Context) {
		got, _ = pprof.Label(ctx, "render")
	}, "render", "letter")
	assert.Equal(t, "letter", got)

	called := false
	telemetry.WithProfileLabels(context.Background(), func(context.Context) { called = true }, "odd")
	assert.True(t, called)
}
