package tilesource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUpstream(t *testing.T, handler http.HandlerFunc, retries uint) *UpstreamSource {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	source, err := NewUpstreamSource(UpstreamConfig{
		Template:      srv.URL + "/{z}/{x}/{y}.png",
		UserAgent:     "test-agent",
		Referer:       "https://example.test",
		MaxRetries:    retries,
		RetryInterval: time.Millisecond,
	}, logger.NewNop())
	require.NoError(t, err)

	return source
}

func TestUpstreamSource_GetTile(t *testing.T) {
	source := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/4/5/6.png", r.URL.Path)
		assert.Equal(t, "test-agent", r.UserAgent())
		assert.Equal(t, "https://example.test", r.Referer())
		w.Write([]byte("tile-4-5-6"))
	}, 0)

	data, err := source.GetTile(context.Background(), 4, 5, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte("tile-4-5-6"), data)
}

func TestUpstreamSource_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	source := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}, 3)

	_, err := source.GetTile(context.Background(), 1, 1, 1)
	assert.ErrorIs(t, err, ErrTileNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUpstreamSource_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	source := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}, 3)

	data, err := source.GetTile(context.Background(), 2, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)
	assert.Equal(t, int32(3), calls.Load())
}

func TestUpstreamSource_GivesUp(t *testing.T) {
	var calls atomic.Int32
	source := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, 1)

	_, err := source.GetTile(context.Background(), 2, 0, 0)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTileNotFound)
	assert.Equal(t, int32(2), calls.Load())
}

func TestUpstreamSource_ReadOnlyAndInfo(t *testing.T) {
	source := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {}, 0)

	err := source.PutTile(context.Background(), 1, 0, 0, []byte("x"))
	assert.ErrorIs(t, err, ErrReadOnly)

	info, err := source.GetInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http", info.Scheme)
	assert.Equal(t, "png", info.Format)
}

func TestNewUpstreamSource_RequiresPlaceholders(t *testing.T) {
	_, err := NewUpstreamSource(UpstreamConfig{Template: "https://tile.example/{z}/{x}.png"}, logger.NewNop())
	assert.Error(t, err)
}
