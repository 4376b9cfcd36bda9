package handler

import (
	"errors"
	"net/http"

	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/demux"
	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/repository/tilesource"
)

var (
	ErrFailedToReadRequestBody = errors.New("failed to read request body")
	ErrEmptyTile               = errors.New("tile body is empty")
	ErrInvalidTileAddress      = errors.New("z, x and y should be integers, x and y in [0, 2^32)")
	ErrTileOutOfBounds         = errors.New("x and y are out of bounds for this zoom level")
	ErrNoTile                  = errors.New("no tile source covers this zoom level")
	ErrTileNotFound            = errors.New("tile not found")
	ErrReadOnly                = errors.New("tile source serving this zoom level is read-only")
)

// statusFor maps tile source errors to an HTTP status and a client facing error.
func statusFor(err error) (int, error) {
	switch {
	case errors.Is(err, demux.ErrNoTile):
		return http.StatusNotFound, ErrNoTile
	case errors.Is(err, tilesource.ErrTileNotFound):
		return http.StatusNotFound, ErrTileNotFound
	case errors.Is(err, tilesource.ErrReadOnly):
		return http.StatusMethodNotAllowed, ErrReadOnly
	default:
		return http.StatusInternalServerError, errors.New(internalServerErrorText)
	}
}
