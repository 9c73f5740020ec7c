package handler

import (
	"net/http"
	"time"

	"github.com/GoPolymarket/levergate/internal/middleware"
	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/GoPolymarket/levergate/internal/pkg/apperrors"
	"github.com/GoPolymarket/levergate/internal/service"
	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	engine *service.Engine
}

func NewSettingsHandler(engine *service.Engine) *SettingsHandler {
	return &SettingsHandler{engine: engine}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.GetSettings())
}

func (h *SettingsHandler) PutMethodology(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req model.MethodologySettings
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if err := h.engine.SetMethodologySettings(c.Request.Context(), caller, req); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.engine.GetSettings())
}

func (h *SettingsHandler) PutExecution(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req model.ExecutionSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if err := h.engine.SetExecutionSettings(c.Request.Context(), caller, req); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.engine.GetSettings())
}

func (h *SettingsHandler) PutIncentive(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req model.IncentiveSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if err := h.engine.SetIncentiveSettings(c.Request.Context(), caller, req); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.engine.GetSettings())
}

// ExchangeBody is the venue payload; the name comes from the path on update.
type ExchangeBody struct {
	Name string `json:"name"`
	model.ExchangeSettings
}

type exchangeView struct {
	Name string `json:"name"`
	*model.ExchangeSettings
}

func (h *SettingsHandler) ListExchanges(c *gin.Context) {
	state := h.engine.GetState()
	out := make([]exchangeView, 0, len(state.EnabledExchanges))
	for _, name := range state.EnabledExchanges {
		if ex, ok := state.Exchange(name); ok {
			out = append(out, exchangeView{Name: name, ExchangeSettings: ex})
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *SettingsHandler) AddExchange(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req ExchangeBody
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	// the cooldown clock is never client-controlled
	req.ExchangeLastTradeTimestamp = time.Time{}
	if err := h.engine.AddEnabledExchange(c.Request.Context(), caller, req.Name, req.ExchangeSettings); err != nil {
		_ = c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "exchange", req.Name)
	c.JSON(http.StatusCreated, gin.H{"name": req.Name})
}

func (h *SettingsHandler) UpdateExchange(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	name := c.Param("name")
	var req ExchangeBody
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if err := h.engine.UpdateEnabledExchange(c.Request.Context(), caller, name, req.ExchangeSettings); err != nil {
		_ = c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "exchange", name)
	c.JSON(http.StatusOK, gin.H{"name": name})
}

func (h *SettingsHandler) RemoveExchange(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	name := c.Param("name")
	if err := h.engine.RemoveEnabledExchange(c.Request.Context(), caller, name); err != nil {
		_ = c.Error(err)
		return
	}
	middleware.AddAuditContext(c, "exchange", name)
	c.Status(http.StatusNoContent)
}
