package imagepipeline

import (
	"context"
	"errors"
	"time"

	"github.com/alertgate/gateway/internal/models"
	"github.com/prometheus/common/model"
)

// ErrInvalidImage marks a rasterized artifact that failed PNG
// validation.
var ErrInvalidImage = errors.New("InvalidImage")

// ErrEmptySeries marks a successful, empty query result.
var ErrEmptySeries = errors.New("EmptySeries")

// Querier is the subset of RangeQuerier the pipeline depends on; an
// interface so tests can substitute a fake metrics backend.
type Querier interface {
	Query(ctx context.Context, baseURL, expr string, lookback, step, timeout time.Duration) (model.Matrix, error)
}

// Pipeline ties extraction, range querying, rasterization and validation
// together. Failures in any stage are non-fatal: Generate returns
// (nil, err) and the caller proceeds without an image.
type Pipeline struct {
	querier Querier
}

// New returns a Pipeline backed by the official Prometheus HTTP API
// client.
func New() *Pipeline {
	return &Pipeline{querier: RangeQuerier{}}
}

// NewWithQuerier builds a Pipeline over a caller-supplied Querier, for
// tests that fake the metrics backend.
func NewWithQuerier(q Querier) *Pipeline {
	return &Pipeline{querier: q}
}

// Generate extracts alert's query, re-executes it as a range query over
// the configured lookback window, rasterizes up to cfg.MaxSeries series,
// and validates the result. It computes at most once per call; the
// orchestrator is responsible for memoizing per-alert.
func (p *Pipeline) Generate(ctx context.Context, alert *models.Alert, cfg Config) ([]byte, error) {
	cfg = cfg.withDefaults()

	q, err := Extract(alert)
	if err != nil {
		return nil, err
	}

	authority := cfg.PrometheusURL
	if authority == "" {
		authority = q.Authority
	}

	matrix, err := p.querier.Query(
		ctx, authority, q.Primary,
		time.Duration(cfg.LookbackMinutes)*time.Minute,
		time.Duration(cfg.StepSeconds)*time.Second,
		time.Duration(cfg.TimeoutSeconds)*time.Second,
	)
	if err != nil {
		return nil, err
	}

	if len(matrix) == 0 {
		return nil, ErrEmptySeries
	}

	png, err := RenderPNG(matrix, cfg.MaxSeries, cfg.CanvasWidth, cfg.CanvasHeight)
	if err != nil {
		return nil, err
	}
	if png == nil {
		return nil, ErrEmptySeries
	}
	if !Valid(png) {
		return nil, ErrInvalidImage
	}
	return png, nil
}
