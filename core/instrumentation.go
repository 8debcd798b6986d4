package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-turns/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	turnsCompleted, _ = meter.Int64Counter("turns.completed",
		metric.WithDescription("Turns that produced a reply and committed history"),
	)
	turnsFailed, _ = meter.Int64Counter("turns.failed",
		metric.WithDescription("Turns that failed, by reason"),
	)
	busyRejections, _ = meter.Int64Counter("turns.busy_rejections",
		metric.WithDescription("Fragments dropped because a turn was already in flight"),
	)
)
