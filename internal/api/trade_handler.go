package api

import (
	"net/http"

	"tradestream/internal/middleware"
	"tradestream/internal/trade"
	"tradestream/internal/validation"

	"github.com/gin-gonic/gin"
)

// TradeHandler serves the caller's trades.
type TradeHandler struct {
	trades *trade.Service
}

// NewTradeHandler creates a new trade handler
func NewTradeHandler(trades *trade.Service) *TradeHandler {
	return &TradeHandler{trades: trades}
}

// @Summary List trades
// @Description Trades of the authenticated user
// @Tags Trades
// @Produce json
// @Security BearerAuth
// @Success 200 {array} store.Trade
// @Failure 401 {object} errors.ErrorResponse
// @Router /trades [get]
func (h *TradeHandler) ListTrades(c *gin.Context) {
	trades, err := h.trades.ListTrades(c.Request.Context(), middleware.IdentityFrom(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

// @Summary Place a trade
// @Tags Trades
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body trade.Input true "Trade"
// @Success 200 {object} store.Trade
// @Failure 401 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /trades [post]
func (h *TradeHandler) PlaceTrade(c *gin.Context) {
	var in trade.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		middleware.AbortWithError(c, validation.BindError(err))
		return
	}

	t, err := h.trades.PlaceTrade(c.Request.Context(), middleware.IdentityFrom(c), in)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
