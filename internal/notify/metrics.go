package notify

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentation = "github.com/yola1107/pokerdice/internal/notify"

type metrics struct {
	delivered metric.Int64Counter
	evicted   metric.Int64Counter
	live      metric.Int64UpDownCounter
}

func newMetrics() (*metrics, error) {
	meter := otel.Meter(instrumentation)
	delivered, err := meter.Int64Counter("notify.events.delivered",
		metric.WithDescription("events handed to subscriber sinks"))
	if err != nil {
		return nil, err
	}
	evicted, err := meter.Int64Counter("notify.sinks.evicted",
		metric.WithDescription("sinks removed after a failed send or heartbeat"))
	if err != nil {
		return nil, err
	}
	live, err := meter.Int64UpDownCounter("notify.sinks.live",
		metric.WithDescription("registered subscriber sinks"))
	if err != nil {
		return nil, err
	}
	return &metrics{delivered: delivered, evicted: evicted, live: live}, nil
}

func kindAttr(k Kind) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("kind", string(k)))
}

func (m *metrics) onDelivered(ctx context.Context, k Kind, n int) {
	if n > 0 {
		m.delivered.Add(ctx, int64(n), kindAttr(k))
	}
}

func (m *metrics) onEvicted(k Kind, n int) {
	if n > 0 {
		m.evicted.Add(context.Background(), int64(n), kindAttr(k))
	}
}

func (m *metrics) onLive(k Kind, delta int) {
	if delta != 0 {
		m.live.Add(context.Background(), int64(delta), kindAttr(k))
	}
}
