package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/intura-ai/intura-go/internal/buildinfo"
	"github.com/intura-ai/intura-go/internal/domain"
	"github.com/intura-ai/intura-go/internal/infrastructure/config"
)

const serviceName = "intura"

var ErrDisabled = errors.New("OTEL exporter is disabled or endpoint not configured")

// Exporter exports chat model usage to an OTEL Collector.
type Exporter struct {
	provider     *sdkmetric.MeterProvider
	tokensTotal  metric.Int64Counter
	invocations  metric.Int64Counter
	latencyHist  metric.Float64Histogram
	tokensPerRun metric.Int64Histogram
}

// NewExporter creates an OTLP gRPC usage exporter.
func NewExporter(ctx context.Context, cfg config.OTel) (*Exporter, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, ErrDisabled
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	e, err := newExporter(ctx, sdkmetric.NewPeriodicReader(exp))
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(e.provider)
	return e, nil
}

func newExporter(ctx context.Context, reader sdkmetric.Reader) (*Exporter, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(buildinfo.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	meter := provider.Meter(serviceName)

	tokensTotal, err := meter.Int64Counter(
		"intura_chat_tokens_total",
		metric.WithDescription("Tokens used by chat model generations"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tokens counter: %w", err)
	}

	invocations, err := meter.Int64Counter(
		"intura_chat_invocations_total",
		metric.WithDescription("Number of chat model generations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating invocations counter: %w", err)
	}

	latencyHist, err := meter.Float64Histogram(
		"intura_chat_latency_seconds",
		metric.WithDescription("Chat model generation latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating latency histogram: %w", err)
	}

	tokensPerRun, err := meter.Int64Histogram(
		"intura_chat_tokens_per_invocation",
		metric.WithDescription("Total tokens per chat model generation"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tokens histogram: %w", err)
	}

	return &Exporter{
		provider:     provider,
		tokensTotal:  tokensTotal,
		invocations:  invocations,
		latencyHist:  latencyHist,
		tokensPerRun: tokensPerRun,
	}, nil
}

// ExportUsage records one generation.
func (e *Exporter) ExportUsage(ctx context.Context, u *domain.UsageEntry) error {
	attrs := []attribute.KeyValue{
		attribute.String("experiment_id", u.ExperimentID),
		attribute.String("treatment_name", u.TreatmentName),
		attribute.String("model", u.ModelName),
	}
	opt := metric.WithAttributes(attrs...)

	e.tokensTotal.Add(ctx, u.InputTokens, metric.WithAttributes(append(attrs, attribute.String("type", "input"))...))
	e.tokensTotal.Add(ctx, u.OutputTokens, metric.WithAttributes(append(attrs, attribute.String("type", "output"))...))
	e.invocations.Add(ctx, 1, opt)
	e.latencyHist.Record(ctx, float64(u.LatencyMs)/1000, opt)
	e.tokensPerRun.Record(ctx, u.TotalTokens, opt)
	return nil
}

// Close shuts down the exporter and flushes any pending metrics.
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
