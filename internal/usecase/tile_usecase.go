package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/demux"
	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/repository/tilesource"
	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/logger"
	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/jaennil/guide_helper/backend/demultiplexer"

	opGet  = "get"
	opPut  = "put"
	opInfo = "info"

	// rootSourceLabel labels metrics when the root source is not a demultiplexer.
	rootSourceLabel = "root"
)

// rangeLocator is implemented by sources that route by zoom, i.e. *demux.Demultiplexer.
type rangeLocator interface {
	Locate(z int) (demux.ZoomRange, error)
	Ranges() []demux.ZoomRange
}

type TileUseCase struct {
	source tilesource.Source
	tracer trace.Tracer
	logger logger.Logger
}

func NewTileUseCase(source tilesource.Source, l logger.Logger) *TileUseCase {
	return &TileUseCase{
		source: source,
		tracer: otel.Tracer(tracerName),
		logger: l,
	}
}

func (uc *TileUseCase) sourceLabel(z int) string {
	locator, ok := uc.source.(rangeLocator)
	if !ok {
		return rootSourceLabel
	}
	r, err := locator.Locate(z)
	if err != nil {
		return ""
	}
	return r.Source
}

func (uc *TileUseCase) GetTile(ctx context.Context, z, x, y int) ([]byte, error) {
	ctx, span := uc.startSpan(ctx, "demux.GetTile", z, x, y)
	defer span.End()

	label := uc.sourceLabel(z)
	uc.logger.Debug("tile lookup", "z", z, "x", x, "y", y, "source", label)

	start := time.Now()
	data, err := uc.source.GetTile(ctx, z, x, y)
	if err = uc.observe(span, opGet, label, start, err); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("tile.size", len(data)))
	return data, nil
}

func (uc *TileUseCase) PutTile(ctx context.Context, z, x, y int, data []byte) error {
	ctx, span := uc.startSpan(ctx, "demux.PutTile", z, x, y)
	defer span.End()

	label := uc.sourceLabel(z)
	uc.logger.Debug("storing tile", "z", z, "x", x, "y", y, "size", len(data), "source", label)

	start := time.Now()
	err := uc.source.PutTile(ctx, z, x, y, data)
	return uc.observe(span, opPut, label, start, err)
}

// GetInfo returns the metadata of the source serving the lowest zoom levels.
func (uc *TileUseCase) GetInfo(ctx context.Context) (tilesource.Info, error) {
	ctx, span := uc.tracer.Start(ctx, "demux.GetInfo")
	defer span.End()

	label := rootSourceLabel
	if locator, ok := uc.source.(rangeLocator); ok {
		label = locator.Ranges()[0].Source
	}

	start := time.Now()
	info, err := uc.source.GetInfo(ctx)
	if err = uc.observe(span, opInfo, label, start, err); err != nil {
		return tilesource.Info{}, err
	}
	return info, nil
}

// Ranges lists the zoom ranges of the root source, or nil if it does not route by zoom.
func (uc *TileUseCase) Ranges() []demux.ZoomRange {
	if locator, ok := uc.source.(rangeLocator); ok {
		return locator.Ranges()
	}
	return nil
}

func (uc *TileUseCase) startSpan(ctx context.Context, name string, z, x, y int) (context.Context, trace.Span) {
	return uc.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.Int("tile.z", z),
		attribute.Int("tile.x", x),
		attribute.Int("tile.y", y),
	))
}

// observe records metrics and span status for one delegated call and returns err unchanged.
func (uc *TileUseCase) observe(span trace.Span, op, label string, start time.Time, err error) error {
	switch {
	case err == nil:
		metrics.TileRequests.WithLabelValues(op, label).Inc()
		metrics.BackendLatency.WithLabelValues(op, label).Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.String("tile.source", label))
		span.SetStatus(codes.Ok, "")
	case errors.Is(err, demux.ErrNoTile):
		metrics.TileNoCoverage.WithLabelValues(op).Inc()
		span.SetAttributes(attribute.Bool("tile.no_coverage", true))
	case errors.Is(err, tilesource.ErrTileNotFound):
		metrics.TileRequests.WithLabelValues(op, label).Inc()
		metrics.TileNotFound.WithLabelValues(label).Inc()
		span.SetAttributes(attribute.String("tile.source", label))
	default:
		metrics.BackendErrors.WithLabelValues(op, label).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		uc.logger.Error("tile source failed", "operation", op, "source", label, "error", err)
	}
	return err
}
