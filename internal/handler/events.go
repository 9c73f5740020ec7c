package handler

import (
	"net/http"
	"strconv"

	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/GoPolymarket/levergate/internal/pkg/apperrors"
	"github.com/GoPolymarket/levergate/internal/service"
	"github.com/gin-gonic/gin"
)

type EventHandler struct {
	svc *service.EventService
}

func NewEventHandler(svc *service.EventService) *EventHandler {
	return &EventHandler{svc: svc}
}

func (h *EventHandler) List(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			_ = c.Error(apperrors.NewInvalidRequest("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	events, err := h.svc.List(c.Request.Context(), model.EventType(c.Query("type")), limit)
	if err != nil {
		_ = c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, events)
}
