package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status string `json:"status"`
	Ranges int    `json:"ranges"`
}

// Healthz reports how many zoom ranges are bound. A root source that does not
// route by zoom reports zero.
func (h *Handler) Healthz(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusOK, "OK", healthResponse{
		Status: "serving",
		Ranges: len(h.tileUseCase.Ranges()),
	})
}
