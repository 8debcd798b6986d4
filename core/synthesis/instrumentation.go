package synthesis

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-turns/core/synthesis"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	chunksSynthesized, _ = meter.Int64Counter("synthesis.chunks",
		metric.WithDescription("Reply chunks sent to the synthesizer"),
	)
	chunksSkipped, _ = meter.Int64Counter("synthesis.skipped_chunks",
		metric.WithDescription("Reply chunks delivered as skip markers"),
	)
	chunkLatency, _ = meter.Float64Histogram("synthesis.chunk_latency",
		metric.WithUnit("s"),
		metric.WithDescription("Time to synthesize a single chunk"),
	)
)
