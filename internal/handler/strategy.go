package handler

import (
	"context"
	"net/http"

	"github.com/GoPolymarket/levergate/internal/middleware"
	"github.com/GoPolymarket/levergate/internal/model"
	"github.com/GoPolymarket/levergate/internal/pkg/apperrors"
	"github.com/GoPolymarket/levergate/internal/service"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type StrategyHandler struct {
	engine *service.Engine
}

func NewStrategyHandler(engine *service.Engine) *StrategyHandler {
	return &StrategyHandler{engine: engine}
}

type ExchangeRequest struct {
	Exchange string `json:"exchange" binding:"required"`
}

type ChunkNotionalRequest struct {
	Exchanges []string `json:"exchanges" binding:"required,min=1"`
}

func (h *StrategyHandler) Get(c *gin.Context) {
	view, err := h.engine.View(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ShouldRebalance uses the methodology band, or ?min=&max= when both are given.
func (h *StrategyHandler) ShouldRebalance(c *gin.Context) {
	rawMin, rawMax := c.Query("min"), c.Query("max")
	if rawMin == "" && rawMax == "" {
		resp, err := h.engine.ShouldRebalance(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	customMin, err := decimal.NewFromString(rawMin)
	if err != nil {
		_ = c.Error(apperrors.NewInvalidRequest("min must be a decimal"))
		return
	}
	customMax, err := decimal.NewFromString(rawMax)
	if err != nil {
		_ = c.Error(apperrors.NewInvalidRequest("max must be a decimal"))
		return
	}
	resp, err := h.engine.ShouldRebalanceWithBounds(c.Request.Context(), customMin, customMax)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StrategyHandler) ChunkNotional(c *gin.Context) {
	var req ChunkNotionalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	resp, err := h.engine.GetChunkRebalanceNotional(c.Request.Context(), req.Exchanges)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StrategyHandler) Engage(c *gin.Context)    { h.execute(c, h.engine.Engage) }
func (h *StrategyHandler) Rebalance(c *gin.Context) { h.execute(c, h.engine.Rebalance) }
func (h *StrategyHandler) Iterate(c *gin.Context)   { h.execute(c, h.engine.IterateRebalance) }
func (h *StrategyHandler) Ripcord(c *gin.Context)   { h.execute(c, h.engine.Ripcord) }
func (h *StrategyHandler) Disengage(c *gin.Context) { h.execute(c, h.engine.Disengage) }

type entryPoint func(ctx context.Context, caller common.Address, exchange string) (*model.RebalanceResult, error)

func (h *StrategyHandler) execute(c *gin.Context, fn entryPoint) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req ExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if err := middleware.RequireSignedExchange(c, req.Exchange); err != nil {
		_ = c.Error(err)
		return
	}

	res, err := fn(c.Request.Context(), caller, req.Exchange)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		_ = c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "action", res.Action)
	middleware.AddAuditContext(c, "chunk_rebalance_notional", res.ChunkNotional.String())
	c.JSON(http.StatusOK, res)
}

func callerOf(c *gin.Context) (common.Address, bool) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		_ = c.Error(apperrors.Unauthorized("unauthorized: missing caller context"))
		return common.Address{}, false
	}
	return caller, true
}
