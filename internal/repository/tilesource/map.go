package tilesource

import (
	"context"
	"sync"
)

type MapSource struct {
	name string
	m    *TypedSyncMap
}

type TypedSyncMap struct {
	m sync.Map
}

func (c *TypedSyncMap) Load(k Key) ([]byte, bool) {
	v, exists := c.m.Load(k)
	if !exists {
		return nil, false
	}
	return v.([]byte), exists
}

func (c *TypedSyncMap) Store(k Key, v []byte) {
	c.m.Store(k, v)
}

func (c *TypedSyncMap) Len() int {
	n := 0
	c.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func NewMapSource(name string) *MapSource {
	return &MapSource{
		name: name,
		m:    &TypedSyncMap{},
	}
}

var _ Source = (*MapSource)(nil)

func (s *MapSource) GetTile(_ context.Context, z, x, y int) ([]byte, error) {
	v, exists := s.m.Load(Key{Z: z, X: x, Y: y})
	if !exists {
		return nil, ErrTileNotFound
	}
	return v, nil
}

func (s *MapSource) PutTile(_ context.Context, z, x, y int, data []byte) error {
	tile := make([]byte, len(data))
	copy(tile, data)
	s.m.Store(Key{Z: z, X: x, Y: y}, tile)
	return nil
}

func (s *MapSource) GetInfo(_ context.Context) (Info, error) {
	return defaultInfo(s.name, "memory"), nil
}

// Len reports how many tiles are stored.
func (s *MapSource) Len() int {
	return s.m.Len()
}
