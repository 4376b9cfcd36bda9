package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/backend/demultiplexer/internal/usecase"
	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/logger"
)

const (
	internalServerErrorText = "the server encountered an error and could not process your request"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type Handler struct {
	validate    *validator.Validate
	tileUseCase *usecase.TileUseCase
}

func NewHandler(v *validator.Validate, uc *usecase.TileUseCase) *Handler {
	return &Handler{
		validate:    v,
		tileUseCase: uc,
	}
}

func (h *Handler) RespondWithInternalServerError(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusInternalServerError, internalServerErrorText, nil)
}

func (h *Handler) RespondWithJSON(c *gin.Context, code int, message string, data any) {
	success := code < 400

	r := response{
		Success: success,
		Message: message,
		Data:    data,
	}

	c.JSON(code, r)
}

func (h *Handler) RespondWithError(c *gin.Context, code int, err error) {
	h.RespondWithJSON(c, code, err.Error(), nil)
}

func loggerFrom(c *gin.Context) logger.Logger {
	if l, ok := c.Get("logger"); ok {
		if typed, ok := l.(logger.Logger); ok {
			return typed
		}
	}
	return logger.FromContext(c.Request.Context())
}
