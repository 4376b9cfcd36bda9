package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/demux"
	"github.com/paulmach/orb/maptile"
)

type tileRequest struct {
	Z int `uri:"z"`
	// maptile addresses are uint32
	X int `uri:"x" validate:"min=0,max=4294967295"`
	Y int `uri:"y" validate:"min=0,max=4294967295"`
}

func (h *Handler) bindTile(c *gin.Context) (tileRequest, bool) {
	l := loggerFrom(c)

	var req tileRequest
	if err := c.ShouldBindUri(&req); err != nil {
		l.Warn("invalid tile address", "z", c.Param("z"), "x", c.Param("x"), "y", c.Param("y"), "error", err)
		h.RespondWithError(c, http.StatusBadRequest, ErrInvalidTileAddress)
		return req, false
	}

	if err := h.validate.Struct(req); err != nil {
		l.Warn("invalid tile address", "z", req.Z, "x", req.X, "y", req.Y, "error", err)
		h.RespondWithError(c, http.StatusBadRequest, ErrInvalidTileAddress)
		return req, false
	}

	// zooms outside the valid range are left to the demultiplexer, which answers with no tile
	if demux.IsValidZoom(req.Z) && !maptile.New(uint32(req.X), uint32(req.Y), maptile.Zoom(req.Z)).Valid() {
		h.RespondWithError(c, http.StatusBadRequest, ErrTileOutOfBounds)
		return req, false
	}

	return req, true
}

func (h *Handler) Tile(c *gin.Context) {
	l := loggerFrom(c)

	req, ok := h.bindTile(c)
	if !ok {
		return
	}

	l.Debug("tile request", "z", req.Z, "x", req.X, "y", req.Y)

	data, err := h.tileUseCase.GetTile(c.Request.Context(), req.Z, req.X, req.Y)
	if err != nil {
		code, clientErr := statusFor(err)
		if code >= 500 {
			l.Error("failed to get tile", "z", req.Z, "x", req.X, "y", req.Y, "error", err)
		}
		h.RespondWithError(c, code, clientErr)
		return
	}

	c.Header("Cache-Control", "public, max-age=604800")
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

func (h *Handler) PutTile(c *gin.Context) {
	l := loggerFrom(c)

	req, ok := h.bindTile(c)
	if !ok {
		return
	}

	data, err := c.GetRawData()
	if err != nil {
		l.Warn("failed to read tile body", "error", err)
		h.RespondWithError(c, http.StatusBadRequest, ErrFailedToReadRequestBody)
		return
	}
	if len(data) == 0 {
		h.RespondWithError(c, http.StatusBadRequest, ErrEmptyTile)
		return
	}

	if err := h.tileUseCase.PutTile(c.Request.Context(), req.Z, req.X, req.Y, data); err != nil {
		code, clientErr := statusFor(err)
		if code >= 500 {
			l.Error("failed to put tile", "z", req.Z, "x", req.X, "y", req.Y, "error", err)
		}
		h.RespondWithError(c, code, clientErr)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "tile stored", gin.H{"size": len(data)})
}

func (h *Handler) Info(c *gin.Context) {
	info, err := h.tileUseCase.GetInfo(c.Request.Context())
	if err != nil {
		loggerFrom(c).Error("failed to get info", "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "got info", info)
}

func (h *Handler) Ranges(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusOK, "got ranges", h.tileUseCase.Ranges())
}
