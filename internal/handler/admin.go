package handler

import (
	"net/http"

	"github.com/GoPolymarket/levergate/internal/pkg/apperrors"
	"github.com/GoPolymarket/levergate/internal/service"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AdminHandler serves the operator-only caller and bounty endpoints.
type AdminHandler struct {
	engine *service.Engine
}

func NewAdminHandler(engine *service.Engine) *AdminHandler {
	return &AdminHandler{engine: engine}
}

type CallerStatusRequest struct {
	Callers  []common.Address `json:"callers" binding:"required"`
	Statuses []bool           `json:"statuses" binding:"required"`
}

type AnyoneCallableRequest struct {
	Status *bool `json:"status" binding:"required"`
}

type BountyRequest struct {
	To     common.Address  `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *AdminHandler) UpdateCallers(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req CallerStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if err := h.engine.UpdateCallerStatus(c.Request.Context(), caller, req.Callers, req.Statuses); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": len(req.Callers)})
}

func (h *AdminHandler) SetAnyoneCallable(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req AnyoneCallableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if err := h.engine.SetAnyoneCallable(c.Request.Context(), caller, *req.Status); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"anyone_callable": *req.Status})
}

func (h *AdminHandler) DepositBounty(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req BountyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	balance, err := h.engine.DepositBounty(c.Request.Context(), caller, req.Amount)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (h *AdminHandler) WithdrawBounty(c *gin.Context) {
	caller, ok := callerOf(c)
	if !ok {
		return
	}
	var req BountyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	balance, err := h.engine.WithdrawBounty(c.Request.Context(), caller, req.To, req.Amount)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}
