package otel

import (
	"context"

	"github.com/intura-ai/intura-go/internal/domain"
)

// NoOpExporter is used when no collector is configured.
type NoOpExporter struct{}

func NewNoOpExporter() *NoOpExporter {
	return &NoOpExporter{}
}

func (e *NoOpExporter) ExportUsage(context.Context, *domain.UsageEntry) error {
	return nil
}

func (e *NoOpExporter) Close(context.Context) error {
	return nil
}
