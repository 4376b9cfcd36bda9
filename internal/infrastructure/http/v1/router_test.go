package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/demux"
	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/repository/tilesource"
	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/usecase"
	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")

type brokenSource struct {
	*tilesource.MapSource
}

func (brokenSource) GetTile(context.Context, int, int, int) ([]byte, error) {
	return nil, errors.New("connection reset")
}

func (brokenSource) PutTile(context.Context, int, int, int, []byte) error {
	return tilesource.ErrReadOnly
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupRouter(t *testing.T) (*gin.Engine, *tilesource.MapSource) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	low := tilesource.NewMapSource("low")
	sources := map[string]tilesource.Source{
		"low":    low,
		"broken": brokenSource{tilesource.NewMapSource("broken")},
	}
	d, err := demux.New(context.Background(), map[string]string{
		"source0": "low", "from0": "0", "before0": "10",
		"source1": "broken", "from1": "10", "before1": "15",
	}, demux.LoaderFunc(func(_ context.Context, id string) (tilesource.Source, error) {
		return sources[id], nil
	}), logger.NewNop())
	require.NoError(t, err)

	h := handler.NewHandler(validator.New(), usecase.NewTileUseCase(d, logger.NewNop()))
	return NewRouter(h, logger.NewNop(), false), low
}

func do(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, bytes.NewReader(body)))
	return w
}

func TestRouter_Healthz(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, http.MethodGet, "/api/v1/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"status":"serving","ranges":2}`, string(resp.Data))
}

func TestRouter_PutThenGetTile(t *testing.T) {
	r, low := setupRouter(t)

	w := do(r, http.MethodPut, "/api/v1/tile/3/1/2", pngHeader)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, low.Len())

	w = do(r, http.MethodGet, "/api/v1/tile/3/1/2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pngHeader, w.Body.Bytes())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
}

func TestRouter_TileErrors(t *testing.T) {
	r, _ := setupRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   []byte
		code   int
	}{
		{"not an integer", http.MethodGet, "/api/v1/tile/a/1/2", nil, http.StatusBadRequest},
		{"negative x", http.MethodGet, "/api/v1/tile/3/-1/2", nil, http.StatusBadRequest},
		{"x out of bounds for zoom", http.MethodGet, "/api/v1/tile/1/2/0", nil, http.StatusBadRequest},
		{"x past uint32", http.MethodGet, "/api/v1/tile/1/4294967297/0", nil, http.StatusBadRequest},
		{"y past uint32", http.MethodGet, "/api/v1/tile/1/0/4294967296", nil, http.StatusBadRequest},
		{"put x past uint32", http.MethodPut, "/api/v1/tile/1/4294967297/0", pngHeader, http.StatusBadRequest},
		{"zoom above coverage", http.MethodGet, "/api/v1/tile/15/0/0", nil, http.StatusNotFound},
		{"negative zoom", http.MethodGet, "/api/v1/tile/-1/0/0", nil, http.StatusNotFound},
		{"zoom beyond max", http.MethodGet, "/api/v1/tile/40/0/0", nil, http.StatusNotFound},
		{"missing tile", http.MethodGet, "/api/v1/tile/4/0/0", nil, http.StatusNotFound},
		{"backend failure", http.MethodGet, "/api/v1/tile/12/0/0", nil, http.StatusInternalServerError},
		{"read-only backend", http.MethodPut, "/api/v1/tile/12/0/0", pngHeader, http.StatusMethodNotAllowed},
		{"empty body", http.MethodPut, "/api/v1/tile/4/0/0", nil, http.StatusBadRequest},
		{"put outside coverage", http.MethodPut, "/api/v1/tile/20/0/0", pngHeader, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())

			var resp envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestRouter_InfoAndRanges(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, http.MethodGet, "/api/v1/info", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	var info tilesource.Info
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	assert.Equal(t, "low", info.Name)

	w = do(r, http.MethodGet, "/api/v1/ranges", nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	var ranges []demux.ZoomRange
	require.NoError(t, json.Unmarshal(resp.Data, &ranges))
	assert.Equal(t, []demux.ZoomRange{
		{Source: "low", From: 0, Before: 10},
		{Source: "broken", From: 10, Before: 15},
	}, ranges)
}

func TestRouter_Metrics(t *testing.T) {
	r, _ := setupRouter(t)
	do(r, http.MethodGet, "/api/v1/tile/20/0/0", nil)

	w := do(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "demux_tile_no_coverage_total")
}

func TestRouter_RangesMaskSourcePasswords(t *testing.T) {
	gin.SetMode(gin.TestMode)

	d, err := demux.New(context.Background(), map[string]string{
		"source0": "redis://:s3cret@host:6379/0", "from0": "0", "before0": "10",
	}, demux.LoaderFunc(func(_ context.Context, id string) (tilesource.Source, error) {
		return tilesource.NewMapSource("cache"), nil
	}), logger.NewNop())
	require.NoError(t, err)

	h := handler.NewHandler(validator.New(), usecase.NewTileUseCase(d, logger.NewNop()))
	r := NewRouter(h, logger.NewNop(), false)

	do(r, http.MethodGet, "/api/v1/tile/3/0/0", nil)

	w := do(r, http.MethodGet, "/api/v1/ranges", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "s3cret")
	assert.Contains(t, w.Body.String(), "redis://:xxxxx@host:6379/0")

	w = do(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "s3cret")
}
