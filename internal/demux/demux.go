// Package demux routes tile requests to one of several tile sources, picking
// the source by zoom level.
//
// A Demultiplexer is configured with flat sourceN/fromN/beforeN parameters.
// Every N describes the range [fromN, beforeN) served by sourceN; the ranges
// must cover one contiguous span of zoom levels without gaps or overlaps.
package demux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/repository/tilesource"
	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/logger"
)

// Loader resolves a source identifier to a live tile source.
type Loader interface {
	LoadSource(ctx context.Context, id string) (tilesource.Source, error)
}

type LoaderFunc func(ctx context.Context, id string) (tilesource.Source, error)

func (f LoaderFunc) LoadSource(ctx context.Context, id string) (tilesource.Source, error) {
	return f(ctx, id)
}

// Demultiplexer is immutable once New returns and safe for concurrent use.
type Demultiplexer struct {
	ranges []ZoomRange
	logger logger.Logger
}

var _ tilesource.Source = (*Demultiplexer)(nil)

// New validates params and binds every range to a source obtained from loader,
// one range at a time in zoom order. Nothing is loaded if params are invalid,
// and sources bound before a load failure are closed again.
func New(ctx context.Context, params map[string]string, loader Loader, l logger.Logger) (*Demultiplexer, error) {
	if l == nil {
		l = logger.NewNop()
	}

	sparse, err := parseRanges(params)
	if err != nil {
		return nil, err
	}

	ranges, err := compactRanges(sparse)
	if err != nil {
		return nil, err
	}

	if err := bindRanges(ctx, ranges, loader, l); err != nil {
		return nil, err
	}

	l.Info("demultiplexer ready",
		"ranges", len(ranges),
		"minzoom", ranges[0].From,
		"before", ranges[len(ranges)-1].Before,
	)

	return &Demultiplexer{
		ranges: ranges,
		logger: l,
	}, nil
}

func bindRanges(ctx context.Context, ranges []ZoomRange, loader Loader, l logger.Logger) error {
	for i := range ranges {
		r := &ranges[i]
		name := RedactSource(r.Source)
		rl := l.With("source", name, "from", r.From, "before", r.Before)

		handler, err := loader.LoadSource(ctx, r.Source)
		if err == nil && handler == nil {
			err = errors.New("loader returned no source")
		}
		if err != nil {
			rl.Error("failed to load source", "error", err)
			if closeErr := closeHandlers(ranges[:i]); closeErr != nil {
				l.Warn("failed to close sources after load failure", "error", closeErr)
			}
			return fmt.Errorf("%w %q: %w", ErrSourceLoad, name, err)
		}

		r.handler = handler
		rl.Debug("source bound")
	}

	return nil
}

func closeHandlers(ranges []ZoomRange) error {
	var errs []error
	for i := range ranges {
		if c, ok := ranges[i].handler.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// locate returns the index of the range covering z.
func (d *Demultiplexer) locate(z int) (int, error) {
	first, last := d.ranges[0], d.ranges[len(d.ranges)-1]
	if z < first.From || z >= last.Before {
		return -1, fmt.Errorf("%w %d: covered zooms are [%d, %d)", ErrNoTile, z, first.From, last.Before)
	}

	// greatest lower bound: the last range whose From is <= z
	return sort.Search(len(d.ranges), func(i int) bool {
		return d.ranges[i].From > z
	}) - 1, nil
}

// Locate returns the range that serves zoom z, with its source redacted as in Ranges.
func (d *Demultiplexer) Locate(z int) (ZoomRange, error) {
	i, err := d.locate(z)
	if err != nil {
		return ZoomRange{}, err
	}
	return d.ranges[i].public(), nil
}

func (d *Demultiplexer) GetTile(ctx context.Context, z, x, y int) ([]byte, error) {
	i, err := d.locate(z)
	if err != nil {
		return nil, err
	}
	return d.ranges[i].handler.GetTile(ctx, z, x, y)
}

func (d *Demultiplexer) PutTile(ctx context.Context, z, x, y int, data []byte) error {
	i, err := d.locate(z)
	if err != nil {
		return err
	}
	return d.ranges[i].handler.PutTile(ctx, z, x, y, data)
}

// GetInfo reports the metadata of the source with the lowest zoom range.
func (d *Demultiplexer) GetInfo(ctx context.Context) (tilesource.Info, error) {
	return d.ranges[0].handler.GetInfo(ctx)
}

// Ranges returns a copy of the configured ranges in zoom order, with
// passwords in source URIs masked.
func (d *Demultiplexer) Ranges() []ZoomRange {
	out := make([]ZoomRange, len(d.ranges))
	for i, r := range d.ranges {
		out[i] = r.public()
	}
	return out
}

// Close closes every bound source that holds resources.
func (d *Demultiplexer) Close() error {
	return closeHandlers(d.ranges)
}
