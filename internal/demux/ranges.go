package demux

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"sort"

	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/repository/tilesource"
)

// ZoomRange routes zoom levels [From, Before) to one source.
type ZoomRange struct {
	Source string `json:"source"`
	From   int    `json:"from"`
	Before int    `json:"before"`

	handler tilesource.Source
}

func (r ZoomRange) Contains(z int) bool {
	return z >= r.From && z < r.Before
}

func (r ZoomRange) String() string {
	return fmt.Sprintf("%s [%d, %d)", RedactSource(r.Source), r.From, r.Before)
}

// RedactSource masks the password of a source URI. Aliases and identifiers
// that do not parse as URIs are returned unchanged.
func RedactSource(id string) string {
	uri, err := url.Parse(id)
	if err != nil || uri.Scheme == "" {
		return id
	}
	return uri.Redacted()
}

// public strips the handler and the source credentials.
func (r ZoomRange) public() ZoomRange {
	return ZoomRange{
		Source: RedactSource(r.Source),
		From:   r.From,
		Before: r.Before,
	}
}

// compactRanges turns the parsed slots into a dense list sorted by From and
// checks that the list covers one contiguous zoom interval.
func compactRanges(sparse map[int]*partialRange) ([]ZoomRange, error) {
	if len(sparse) == 0 {
		return nil, ErrNoRanges
	}

	ranges := make([]ZoomRange, 0, len(sparse))
	for _, ind := range slices.Sorted(maps.Keys(sparse)) {
		slot := sparse[ind]
		if !slot.hasSource || !slot.hasFrom || !slot.hasBefore {
			return nil, fmt.Errorf("%w (index %d)", ErrMissingField, ind)
		}
		if slot.from >= slot.before {
			return nil, fmt.Errorf("%w (index %d: from=%d, before=%d)", ErrRangeOrder, ind, slot.from, slot.before)
		}
		ranges = append(ranges, ZoomRange{
			Source: slot.source,
			From:   slot.from,
			Before: slot.before,
		})
	}

	sort.SliceStable(ranges, func(i, j int) bool {
		return ranges[i].From < ranges[j].From
	})

	for i := 1; i < len(ranges); i++ {
		if expected := ranges[i-1].Before; ranges[i].From != expected {
			return nil, fmt.Errorf("%w (%s follows %s)", ErrGapOrOverlap, ranges[i], ranges[i-1])
		}
	}

	return ranges, nil
}
