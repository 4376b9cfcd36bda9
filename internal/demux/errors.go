package demux

import "errors"

var (
	ErrUnexpectedKey = errors.New("unexpected key")
	ErrInvalidZoom   = errors.New("invalid zoom")
	ErrMissingField  = errors.New(`all three values must be present - "source", "from", and "before"`)
	ErrRangeOrder    = errors.New(`source's "from" must be less than "before"`)
	ErrGapOrOverlap  = errors.New("not all zoom levels are covered, or there is an overlap")
	ErrNoRanges      = errors.New("no sources configured")
	ErrSourceLoad    = errors.New("failed to load source")

	// ErrNoTile means no range covers the requested zoom. It is not a backend error.
	ErrNoTile = errors.New("no tile at this zoom level")
)
