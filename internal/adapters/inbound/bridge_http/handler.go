package bridge_http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/charleschow/kite-terminal/internal/core/broker"
	"github.com/charleschow/kite-terminal/internal/telemetry"
)

// TickerControl starts the tick source.
// Satisfied by *ticksim.Generator.
type TickerControl interface {
	Start(ctx context.Context) bool
	Running() bool
	Tokens() []int64
}

// Portfolio exposes paper account state.
// Satisfied by *broker.Paper.
type Portfolio interface {
	Cash() float64
	Equity() float64
	DayPnL() float64
	RealizedPnL() float64
	Positions() []broker.Position
}

// Handler serves the bridge API the terminal talks to.
//
// Routes:
//
//	GET  /health
//	GET  /start_ticker
//	GET  /ws/ticks          -> tick stream
//	POST /api/place_order
//	GET  /api/ltp/:symbol
//	GET  /api/positions
type Handler struct {
	broker    broker.Broker
	portfolio Portfolio
	ticker    TickerControl
	stream    http.HandlerFunc
	limiter   *rate.Limiter

	// tickerCtx bounds the tick source, which outlives the /start_ticker request.
	tickerCtx context.Context
}

func NewHandler(tickerCtx context.Context, b broker.Broker, portfolio Portfolio, ticker TickerControl, stream http.HandlerFunc, ordersPerSec int) *Handler {
	if ordersPerSec <= 0 {
		ordersPerSec = 5
	}
	return &Handler{
		broker:    b,
		portfolio: portfolio,
		ticker:    ticker,
		stream:    stream,
		limiter:   rate.NewLimiter(rate.Limit(ordersPerSec), ordersPerSec),
		tickerCtx: tickerCtx,
	}
}

// Router builds the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog(), cors())

	r.GET("/health", h.health)
	r.GET("/start_ticker", h.startTicker)
	r.GET("/ws/ticks", gin.WrapF(h.stream))

	api := r.Group("/api")
	api.POST("/place_order", h.placeOrder)
	api.GET("/ltp/:symbol", h.ltp)
	api.GET("/positions", h.positions)
	return r
}

type placeOrderBody struct {
	Symbol string `json:"symbol" binding:"required"`
	Qty    int    `json:"qty" binding:"required,min=1"`
	Side   string `json:"side" binding:"required,oneof=BUY SELL"`
}

func (h *Handler) placeOrder(c *gin.Context) {
	if !h.limiter.Allow() {
		telemetry.Metrics.OrdersThrottled.Inc()
		fail(c, http.StatusTooManyRequests, "order rate limit exceeded")
		return
	}

	var body placeOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		telemetry.Metrics.OrdersRejected.Inc()
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	fill, err := h.broker.PlaceOrder(c.Request.Context(), broker.OrderRequest{
		Symbol: body.Symbol,
		Qty:    body.Qty,
		Side:   body.Side,
	})
	if err != nil {
		telemetry.Metrics.OrdersRejected.Inc()
		telemetry.Warnf("bridge: order %s %d %s rejected: %v", body.Side, body.Qty, body.Symbol, err)
		fail(c, statusFor(err), err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": fill})
}

func (h *Handler) ltp(c *gin.Context) {
	symbol := c.Param("symbol")
	q, err := h.broker.LTP(c.Request.Context(), symbol)
	if err != nil {
		fail(c, statusFor(err), err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   gin.H{symbol: q},
	})
}

func (h *Handler) positions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"cash":         h.portfolio.Cash(),
			"equity":       h.portfolio.Equity(),
			"day_pnl":      h.portfolio.DayPnL(),
			"realized_pnl": h.portfolio.RealizedPnL(),
			"positions":    h.portfolio.Positions(),
		},
	})
}

func (h *Handler) startTicker(c *gin.Context) {
	if h.ticker.Start(h.tickerCtx) {
		telemetry.Infof("bridge: ticker started for %v", h.ticker.Tokens())
	}
	c.JSON(http.StatusOK, gin.H{"status": "ticker started"})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "up",
		"ticker_running": h.ticker.Running(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, broker.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, broker.ErrUnknownSymbol):
		return http.StatusNotFound
	case errors.Is(err, broker.ErrNoPrice):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"status": "error", "message": msg})
}

// cors lets a page served from another origin call the API.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		telemetry.Debugf("bridge: %s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
