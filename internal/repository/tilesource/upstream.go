package tilesource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/logger"
)

type UpstreamConfig struct {
	// Template is the tile URL with {z}, {x} and {y} placeholders.
	Template      string
	UserAgent     string
	Referer       string
	Timeout       time.Duration
	MaxRetries    uint
	RetryInterval time.Duration
}

// UpstreamSource reads tiles from a remote XYZ tile server. It cannot store tiles.
type UpstreamSource struct {
	cfg        UpstreamConfig
	httpClient *http.Client
	logger     logger.Logger
}

var _ Source = (*UpstreamSource)(nil)

func NewUpstreamSource(cfg UpstreamConfig, l logger.Logger) (*UpstreamSource, error) {
	for _, placeholder := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(cfg.Template, placeholder) {
			return nil, fmt.Errorf("upstream template %q has no %s placeholder", cfg.Template, placeholder)
		}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}

	return &UpstreamSource{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: l,
	}, nil
}

func (s *UpstreamSource) urlFor(z, x, y int) string {
	return strings.NewReplacer(
		"{z}", strconv.Itoa(z),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
	).Replace(s.cfg.Template)
}

func (s *UpstreamSource) GetTile(ctx context.Context, z, x, y int) ([]byte, error) {
	upstreamURL := s.urlFor(z, x, y)
	s.logger.Debug("fetching from upstream", "url", upstreamURL)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryInterval

	return backoff.Retry(ctx, func() ([]byte, error) {
		return s.fetch(ctx, upstreamURL)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.cfg.MaxRetries+1))
}

func (s *UpstreamSource) fetch(ctx context.Context, upstreamURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstreamURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	// OpenStreetMap tile usage policy requires both headers
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}
	if s.cfg.Referer != "" {
		req.Header.Set("Referer", s.cfg.Referer)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("failed to fetch from upstream", "url", upstreamURL, "error", err)
		return nil, fmt.Errorf("failed to fetch tile from upstream: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
		return nil, backoff.Permanent(ErrTileNotFound)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		s.logger.Warn("upstream returned retryable status", "url", upstreamURL, "status", resp.StatusCode)
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	default:
		return nil, backoff.Permanent(fmt.Errorf("upstream returned status %d", resp.StatusCode))
	}

	tileData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tile data: %w", err)
	}

	s.logger.Debug("fetched tile from upstream", "url", upstreamURL, "size", len(tileData))

	return tileData, nil
}

func (s *UpstreamSource) PutTile(_ context.Context, _, _, _ int, _ []byte) error {
	return ErrReadOnly
}

func (s *UpstreamSource) GetInfo(_ context.Context) (Info, error) {
	info := defaultInfo(s.cfg.Template, "http")
	if strings.HasPrefix(s.cfg.Template, "https:") {
		info.Scheme = "https"
	}
	path, _, _ := strings.Cut(s.cfg.Template, "?")
	if i := strings.LastIndex(path, "."); i > strings.LastIndex(path, "/") {
		info.Format = path[i+1:]
	}
	return info, nil
}
