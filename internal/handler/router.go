package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups everything mounted under /v1.
type Handlers struct {
	Strategy *StrategyHandler
	Settings *SettingsHandler
	Admin    *AdminHandler
	Events   *EventHandler
}

// Register mounts the v1 routes. Auth and rate limiting are applied by the
// caller on the group.
func Register(v1 *gin.RouterGroup, h Handlers) {
	strategy := v1.Group("/strategy")
	{
		strategy.GET("", h.Strategy.Get)
		strategy.GET("/should-rebalance", h.Strategy.ShouldRebalance)
		strategy.POST("/chunk-notional", h.Strategy.ChunkNotional)
		strategy.POST("/engage", h.Strategy.Engage)
		strategy.POST("/rebalance", h.Strategy.Rebalance)
		strategy.POST("/iterate", h.Strategy.Iterate)
		strategy.POST("/ripcord", h.Strategy.Ripcord)
		strategy.POST("/disengage", h.Strategy.Disengage)
	}

	settings := v1.Group("/settings")
	{
		settings.GET("", h.Settings.Get)
		settings.PUT("/methodology", h.Settings.PutMethodology)
		settings.PUT("/execution", h.Settings.PutExecution)
		settings.PUT("/incentive", h.Settings.PutIncentive)
	}

	exchanges := v1.Group("/exchanges")
	{
		exchanges.GET("", h.Settings.ListExchanges)
		exchanges.POST("", h.Settings.AddExchange)
		exchanges.PUT("/:name", h.Settings.UpdateExchange)
		exchanges.DELETE("/:name", h.Settings.RemoveExchange)
	}

	v1.PUT("/callers", h.Admin.UpdateCallers)
	v1.PUT("/callers/anyone", h.Admin.SetAnyoneCallable)
	v1.POST("/bounty/deposit", h.Admin.DepositBounty)
	v1.POST("/bounty/withdraw", h.Admin.WithdrawBounty)

	if h.Events != nil {
		v1.GET("/events", h.Events.List)
	}
}
