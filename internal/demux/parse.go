package demux

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// MaxZoom is the highest zoom level accepted in a range or as a range index.
const MaxZoom = 26

const (
	fieldSource = "source"
	fieldFrom   = "from"
	fieldBefore = "before"
)

var fieldFamilies = []string{fieldSource, fieldFrom, fieldBefore}

// partialRange is one sourceN/fromN/beforeN slot as read from the configuration.
type partialRange struct {
	source    string
	from      int
	before    int
	hasSource bool
	hasFrom   bool
	hasBefore bool
}

func IsValidZoom(z int) bool {
	return z >= 0 && z <= MaxZoom
}

// parseZoom accepts only the canonical decimal spelling, so "+3" and "03" are
// rejected and every zoom or index has exactly one key.
func parseZoom(s string) (int, bool) {
	z, err := strconv.Atoi(s)
	if err != nil || !IsValidZoom(z) || strconv.Itoa(z) != s {
		return 0, false
	}
	return z, true
}

// parseRanges reads the sourceN, fromN and beforeN keys into slots indexed by N.
// Keys of other families are ignored.
func parseRanges(params map[string]string) (map[int]*partialRange, error) {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	sparse := make(map[int]*partialRange)
	for _, key := range keys {
		val := params[key]
		for _, family := range fieldFamilies {
			if !strings.HasPrefix(key, family) {
				continue
			}

			// at most MaxZoom+1 ranges can be contiguous, so the index is bounded the same way
			ind, ok := parseZoom(key[len(family):])
			if !ok {
				return nil, fmt.Errorf("%w %q", ErrUnexpectedKey, key)
			}

			slot, exists := sparse[ind]
			if !exists {
				slot = &partialRange{}
				sparse[ind] = slot
			}

			switch family {
			case fieldSource:
				slot.source = val
				slot.hasSource = true
			case fieldFrom, fieldBefore:
				z, ok := parseZoom(val)
				if !ok {
					return nil, fmt.Errorf("%w %q for key %q", ErrInvalidZoom, val, key)
				}
				if family == fieldFrom {
					slot.from, slot.hasFrom = z, true
				} else {
					slot.before, slot.hasBefore = z, true
				}
			}
		}
	}

	return sparse, nil
}
