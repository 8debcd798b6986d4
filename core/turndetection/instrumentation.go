package turndetection

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-turns/core/turndetection"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	probabilityHistogram, _ = meter.Float64Histogram("turn_detection.probability",
		metric.WithDescription("End of utterance probability per evaluated utterance"),
		metric.WithExplicitBucketBoundaries(0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1),
	)
	scorerFaults, _ = meter.Int64Counter("turn_detection.scorer_faults",
		metric.WithDescription("Scorer calls that failed and were treated as probability 0"),
	)
)
