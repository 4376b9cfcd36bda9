// Package tilesource holds the tile backends a zoom range can be bound to.
package tilesource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrTileNotFound is returned by GetTile when the backend has no tile at the requested address.
	ErrTileNotFound = errors.New("tile not found")
	ErrReadOnly     = errors.New("tile source is read-only")
)

type Key struct {
	Z int
	X int
	Y int
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Z, k.X, k.Y)
}

// Info is the metadata a source reports about itself.
type Info struct {
	Name    string `json:"name"`
	Scheme  string `json:"scheme"`
	Format  string `json:"format"`
	MinZoom int    `json:"minzoom"`
	MaxZoom int    `json:"maxzoom"`
}

type Source interface {
	GetTile(ctx context.Context, z, x, y int) ([]byte, error)
	PutTile(ctx context.Context, z, x, y int, data []byte) error
	GetInfo(ctx context.Context) (Info, error)
}

// Opener builds a Source from its URI. Openers are registered per URI scheme.
type Opener func(ctx context.Context, uri *url.URL) (Source, error)

const (
	defaultFormat  = "png"
	defaultMaxZoom = 26
)

func defaultInfo(name, scheme string) Info {
	return Info{
		Name:    name,
		Scheme:  scheme,
		Format:  defaultFormat,
		MinZoom: 0,
		MaxZoom: defaultMaxZoom,
	}
}
