package wsapi

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-turns/core/transport/wsapi"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var activeConnections, _ = meter.Int64UpDownCounter("wsapi.active_connections",
	metric.WithDescription("Open assistant websocket connections"),
)
