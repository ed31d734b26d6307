package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when a metrics set is built without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Send results
const (
	SendDelivered = "delivered"
	SendFailed    = "failed"
)

// DispatchMetrics counts dispatches, committed lines, notification sends
// and document render time.
type DispatchMetrics struct {
	logger *zap.Logger

	dispatchTotal  *Counter
	linesTotal     *Counter
	sendTotal      *Counter
	sendAttempts   *Counter
	renderDuration *Histogram
}

// NewDispatchMetrics creates the dispatch instruments on meter
func NewDispatchMetrics(meter metric.Meter, logger *zap.Logger) (*DispatchMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dm := &DispatchMetrics{logger: logger}

	var err error
	dm.dispatchTotal, err = NewCounter(meter,
		"sourcing_dispatch_total",
		"Dispatch requests by operation, direction and outcome",
		"{dispatches}")
	if err != nil {
		return nil, err
	}

	dm.linesTotal, err = NewCounter(meter,
		"sourcing_dispatch_lines_total",
		"Inquiry lines committed into dispatch batches",
		"{lines}")
	if err != nil {
		return nil, err
	}

	dm.sendTotal, err = NewCounter(meter,
		"sourcing_notification_send_total",
		"Notification sends by channel and result",
		"{sends}")
	if err != nil {
		return nil, err
	}

	dm.sendAttempts, err = NewCounter(meter,
		"sourcing_notification_attempts_total",
		"Notification send attempts including retries",
		"{attempts}")
	if err != nil {
		return nil, err
	}

	dm.renderDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "sourcing_document_render_duration_seconds",
		Description: "Time spent producing a dispatch document",
		Unit:        "s",
		Boundaries:  RenderDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return dm, nil
}

// RecordDispatch counts one create, preview or resend request by its outcome
func (dm *DispatchMetrics) RecordDispatch(ctx context.Context, operation, direction, outcome string) {
	dm.dispatchTotal.Inc(ctx,
		AttrKind.String(operation),
		AttrDirection.String(direction),
		AttrOutcome.String(outcome),
	)
}

// RecordLines counts inquiry lines committed into a batch
func (dm *DispatchMetrics) RecordLines(ctx context.Context, direction string, lines int) {
	if lines <= 0 {
		return
	}
	dm.linesTotal.Add(ctx, int64(lines), AttrDirection.String(direction))
}

// RecordSend counts one notification job after its retries ran out or it succeeded
func (dm *DispatchMetrics) RecordSend(ctx context.Context, channel string, delivered bool, attempts int) {
	result := SendFailed
	if delivered {
		result = SendDelivered
	}
	dm.sendTotal.Inc(ctx, AttrChannel.String(channel), AttrResult.String(result))
	if attempts > 0 {
		dm.sendAttempts.Add(ctx, int64(attempts), AttrChannel.String(channel))
	}
}

// RecordRender records how long one document took to produce
func (dm *DispatchMetrics) RecordRender(ctx context.Context, kind string, d time.Duration) {
	dm.renderDuration.RecordDuration(ctx, d, AttrKind.String(kind))
}

// PoolStatsFunc reports the current connection pool state
type PoolStatsFunc func() sql.DBStats

// RegisterPoolGauges exports connection pool usage as observable gauges read on
// every collection cycle.
func RegisterPoolGauges(meter metric.Meter, stats PoolStatsFunc) (metric.Registration, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	connections, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Number of connections in the pool by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}
	maxOpen, err := meter.Int64ObservableGauge("db_pool_connections_max",
		metric.WithDescription("Maximum number of connections in the pool"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}
	waits, err := meter.Int64ObservableCounter("db_pool_wait_total",
		metric.WithDescription("Connections waited for since start"),
		metric.WithUnit("{wait}"))
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats()
		o.ObserveInt64(connections, int64(s.InUse), metric.WithAttributes(AttrPoolState.String("in_use")))
		o.ObserveInt64(connections, int64(s.Idle), metric.WithAttributes(AttrPoolState.String("idle")))
		o.ObserveInt64(maxOpen, int64(s.MaxOpenConnections))
		o.ObserveInt64(waits, s.WaitCount)
		return nil
	}, connections, maxOpen, waits)
}
