package protocol

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/repository/tilesource"
	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/config"
	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/logger"
	"github.com/redis/go-redis/v9"
)

type Options struct {
	Upstream config.Upstream
	Logger   logger.Logger
}

// RegisterBuiltin registers the memory, file, sqlite, redis, rediss, http and https schemes.
func RegisterBuiltin(r *Registry, opts Options) {
	l := opts.Logger
	if l == nil {
		l = logger.NewNop()
	}

	r.Register("memory", openMemory)
	r.Register("file", openFilesystem)
	r.Register("sqlite", func(_ context.Context, uri *url.URL) (tilesource.Source, error) {
		path := hostPath(uri)
		if path == "" {
			return nil, fmt.Errorf("%w %q: empty database path", ErrInvalidURI, uri.Redacted())
		}
		return tilesource.NewSQLiteSource(path, l)
	})
	r.Register("redis", openRedis)
	r.Register("rediss", openRedis)

	upstream := func(_ context.Context, uri *url.URL) (tilesource.Source, error) {
		return tilesource.NewUpstreamSource(tilesource.UpstreamConfig{
			Template:   upstreamTemplate(uri),
			UserAgent:  opts.Upstream.UserAgent,
			Referer:    opts.Upstream.Referer,
			Timeout:    opts.Upstream.Timeout,
			MaxRetries: opts.Upstream.MaxRetries,
		}, l)
	}
	r.Register("http", upstream)
	r.Register("https", upstream)
}

// hostPath joins host and path so that both sqlite:///abs/x.db and sqlite://rel.db work.
func hostPath(uri *url.URL) string {
	return uri.Host + uri.Path
}

func openMemory(_ context.Context, uri *url.URL) (tilesource.Source, error) {
	return tilesource.NewMapSource(hostPath(uri)), nil
}

func openFilesystem(_ context.Context, uri *url.URL) (tilesource.Source, error) {
	return tilesource.NewFilesystemSource(hostPath(uri))
}

// openRedis accepts the go-redis URL format plus the ttl and prefix query parameters.
func openRedis(ctx context.Context, uri *url.URL) (tilesource.Source, error) {
	u := *uri
	q := u.Query()

	var ttl time.Duration
	if raw := q.Get("ttl"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w %q: ttl: %w", ErrInvalidURI, uri.Redacted(), err)
		}
		ttl = d
	}
	prefix := q.Get("prefix")

	q.Del("ttl")
	q.Del("prefix")
	u.RawQuery = q.Encode()

	opts, err := redis.ParseURL(u.String())
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidURI, uri.Redacted(), err)
	}

	return tilesource.NewRedisSource(ctx, tilesource.RedisConfig{
		Options: opts,
		Prefix:  prefix,
		TTL:     ttl,
	})
}

// upstreamTemplate rebuilds the tile URL template with its {z}/{x}/{y}
// placeholders unescaped.
func upstreamTemplate(uri *url.URL) string {
	tmpl := uri.Scheme + "://" + uri.Host + uri.Path
	if uri.RawQuery != "" {
		tmpl += "?" + uri.RawQuery
	}
	return tmpl
}
