package http

import (
	"context"
	"io"

	"coefcalc/internal/ingest"
	"coefcalc/internal/services"
	"coefcalc/pkg/contracts/domain"
)

// CalculationRunner runs the coefficient pipeline
type CalculationRunner interface {
	Calculate(ctx context.Context, files []ingest.File, opts services.CalculationOptions) (*domain.CalculationResult, error)
}

// ResultStore keeps finished calculations
type ResultStore interface {
	Put(ctx context.Context, res *domain.CalculationResult)
	Get(ctx context.Context, id string) (*domain.CalculationResult, error)
	Delete(ctx context.Context, id string) error
	List() []string
}

// ProgressPublisher pushes calculation events to WebSocket subscribers
type ProgressPublisher interface {
	BroadcastProgress(ctx context.Context, calculationID, stage string, progress int, message string)
	BroadcastError(ctx context.Context, calculationID, message string)
	BroadcastComplete(ctx context.Context, calculationID string, summary any)
}

// ReportWriter renders a result into a downloadable document
type ReportWriter interface {
	Write(ctx context.Context, out io.Writer, res *domain.CalculationResult) error
}
