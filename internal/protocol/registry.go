// Package protocol resolves tile source identifiers to live sources.
//
// A Registry maps URI schemes to openers. Nothing registers itself: the
// application builds a Registry and registers every scheme it wants to serve,
// see RegisterBuiltin and demux.Register.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/repository/tilesource"
	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/logger"
	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/metrics"
)

var (
	ErrUnknownScheme = errors.New("unknown tile source scheme")
	ErrInvalidURI    = errors.New("invalid tile source uri")
)

// maxAliasDepth bounds alias chains so a cycle cannot recurse forever.
const maxAliasDepth = 8

type Registry struct {
	mu      sync.RWMutex
	openers map[string]tilesource.Opener
	aliases map[string]string
	logger  logger.Logger
}

func NewRegistry(l logger.Logger) *Registry {
	if l == nil {
		l = logger.NewNop()
	}
	return &Registry{
		openers: make(map[string]tilesource.Opener),
		aliases: make(map[string]string),
		logger:  l,
	}
}

// Register adds an opener for scheme, replacing any previous one.
func (r *Registry) Register(scheme string, open tilesource.Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[scheme] = open
	r.logger.Debug("tile source scheme registered", "scheme", scheme)
}

// Alias lets name be used wherever uri could be.
func (r *Registry) Alias(name, uri string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[name] = uri
}

// Schemes returns the registered schemes in sorted order.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemes := make([]string, 0, len(r.openers))
	for scheme := range r.openers {
		schemes = append(schemes, scheme)
	}
	slices.Sort(schemes)
	return schemes
}

func (r *Registry) IsRegistered(scheme string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.openers[scheme]
	return exists
}

// resolve follows aliases until it reaches something that is not an alias.
func (r *Registry) resolve(id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := 0; i < maxAliasDepth; i++ {
		target, ok := r.aliases[id]
		if !ok {
			return id, nil
		}
		id = target
	}
	return "", fmt.Errorf("%w: alias chain too deep at %q", ErrInvalidURI, id)
}

// LoadSource opens a new source for id, an alias or a URI.
func (r *Registry) LoadSource(ctx context.Context, id string) (tilesource.Source, error) {
	resolved, err := r.resolve(id)
	if err != nil {
		return nil, err
	}

	uri, err := url.Parse(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidURI, resolved, err)
	}
	if uri.Scheme == "" {
		return nil, fmt.Errorf("%w %q: no scheme", ErrInvalidURI, resolved)
	}

	r.mu.RLock()
	open, exists := r.openers[uri.Scheme]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w %q", ErrUnknownScheme, uri.Scheme)
	}

	start := time.Now()
	source, err := open(ctx, uri)
	metrics.SourceLoadDuration.WithLabelValues(uri.Scheme).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SourceLoads.WithLabelValues(uri.Scheme, "error").Inc()
		r.logger.Error("failed to open tile source", "uri", uri.Redacted(), "error", err)
		return nil, err
	}

	metrics.SourceLoads.WithLabelValues(uri.Scheme, "ok").Inc()
	r.logger.Info("tile source opened", "uri", uri.Redacted(), "duration", time.Since(start))

	return source, nil
}
