package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/demux"
	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/repository/tilesource"
	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type failingSource struct {
	*tilesource.MapSource
	err error
}

func (s *failingSource) GetTile(context.Context, int, int, int) ([]byte, error) {
	return nil, s.err
}

func newTestTracerProvider(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func newDemux(t *testing.T, sources map[string]tilesource.Source) *demux.Demultiplexer {
	t.Helper()

	loader := demux.LoaderFunc(func(_ context.Context, id string) (tilesource.Source, error) {
		return sources[id], nil
	})
	d, err := demux.New(context.Background(), map[string]string{
		"source0": "low", "from0": "0", "before0": "8",
		"source1": "high", "from1": "8", "before1": "16",
	}, loader, logger.NewNop())
	require.NoError(t, err)
	return d
}

func TestTileUseCase_GetPut(t *testing.T) {
	exporter := newTestTracerProvider(t)
	ctx := context.Background()
	low, high := tilesource.NewMapSource("low"), tilesource.NewMapSource("high")
	uc := NewTileUseCase(newDemux(t, map[string]tilesource.Source{"low": low, "high": high}), logger.NewNop())

	require.NoError(t, uc.PutTile(ctx, 9, 1, 2, []byte("nine")))
	assert.Equal(t, 0, low.Len())
	assert.Equal(t, 1, high.Len())

	data, err := uc.GetTile(ctx, 9, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("nine"), data)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "demux.PutTile", spans[0].Name)
	assert.Equal(t, "demux.GetTile", spans[1].Name)
	assert.Equal(t, codes.Ok, spans[1].Status.Code)
}

func TestTileUseCase_Errors(t *testing.T) {
	exporter := newTestTracerProvider(t)
	ctx := context.Background()
	backendErr := errors.New("backend down")
	uc := NewTileUseCase(newDemux(t, map[string]tilesource.Source{
		"low":  tilesource.NewMapSource("low"),
		"high": &failingSource{MapSource: tilesource.NewMapSource("high"), err: backendErr},
	}), logger.NewNop())

	_, err := uc.GetTile(ctx, 20, 0, 0)
	assert.ErrorIs(t, err, demux.ErrNoTile)

	_, err = uc.GetTile(ctx, 3, 0, 0)
	assert.ErrorIs(t, err, tilesource.ErrTileNotFound)

	_, err = uc.GetTile(ctx, 12, 0, 0)
	assert.Same(t, backendErr, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Equal(t, codes.Unset, spans[1].Status.Code)
	assert.Equal(t, codes.Error, spans[2].Status.Code)
}

func TestTileUseCase_InfoAndRanges(t *testing.T) {
	ctx := context.Background()
	uc := NewTileUseCase(newDemux(t, map[string]tilesource.Source{
		"low":  tilesource.NewMapSource("low"),
		"high": tilesource.NewMapSource("high"),
	}), logger.NewNop())

	info, err := uc.GetInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "low", info.Name)

	assert.Equal(t, []demux.ZoomRange{
		{Source: "low", From: 0, Before: 8},
		{Source: "high", From: 8, Before: 16},
	}, uc.Ranges())
}

func TestTileUseCase_PlainSource(t *testing.T) {
	ctx := context.Background()
	uc := NewTileUseCase(tilesource.NewMapSource("plain"), logger.NewNop())

	require.NoError(t, uc.PutTile(ctx, 30, 0, 0, []byte("x")))
	data, err := uc.GetTile(ctx, 30, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
	assert.Nil(t, uc.Ranges())
}
