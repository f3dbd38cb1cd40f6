package restapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"holdings_tracker/internal/entity"
	"holdings_tracker/internal/port"
	"holdings_tracker/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const snapshotCacheControl = "public, max-age=60"

// HoldingsResponse is the body of every endpoint that returns a snapshot.
type HoldingsResponse struct {
	Holdings    []entity.TokenHolding `json:"holdings"`
	LastUpdated time.Time             `json:"lastUpdated"`
	Summary     entity.Summary        `json:"summary"`
}

// ReportResponse lists the significant holdings with their risk flags.
type ReportResponse struct {
	Threshold   float64                `json:"threshold"`
	LastUpdated time.Time              `json:"lastUpdated"`
	Summary     entity.Summary         `json:"summary"`
	Holdings    []entity.HoldingReport `json:"holdings"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HoldingsHandler serves the holdings endpoints.
type HoldingsHandler struct {
	holdingsService port.HoldingsService
	logger          *zap.Logger
}

func NewHoldingsHandler(hs port.HoldingsService, logger *zap.Logger) *HoldingsHandler {
	return &HoldingsHandler{
		holdingsService: hs,
		logger:          logger.Named("HoldingsHandler"),
	}
}

// GetHoldings serves the cached holdings, refreshing first when the cache is stale.
func (h *HoldingsHandler) GetHoldings(c *gin.Context) {
	snap, err := h.holdingsService.GetHoldings(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	h.writeSnapshot(c, http.StatusOK, snap)
}

// GetData serves whatever is cached and refreshes in the background when it is stale.
func (h *HoldingsHandler) GetData(c *gin.Context) {
	snap, refreshing, err := h.holdingsService.GetHoldingsStaleWhileRevalidate(c.Request.Context())
	if refreshing {
		c.Header("X-Refresh-Triggered", "true")
	}
	if errors.Is(err, entity.ErrNoDataAvailable) || (err == nil && snap == nil) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "No data available"})
		return
	}
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	h.writeSnapshot(c, http.StatusOK, snap)
}

// Refresh runs a refresh. With sync=false it only starts one and answers 202.
func (h *HoldingsHandler) Refresh(c *gin.Context) {
	sync := true
	if raw := c.Query("sync"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "sync must be true or false"})
			return
		}
		sync = v
	}

	if !sync {
		status := "refresh started"
		if !h.holdingsService.TriggerBackgroundRefresh() {
			status = "refresh already running"
		}
		c.JSON(http.StatusAccepted, gin.H{"status": status})
		return
	}

	snap, err := h.holdingsService.RefreshWithTimeout(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	h.writeSnapshot(c, http.StatusOK, snap)
}

// GetHolding returns one holding of the current snapshot with its risk flags.
func (h *HoldingsHandler) GetHolding(c *gin.Context) {
	address := c.Param("address")
	snap, err := h.holdingsService.GetHoldings(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	for _, holding := range snap.Holdings {
		if holding.Address == address {
			c.Header("Cache-Control", snapshotCacheControl)
			c.JSON(http.StatusOK, entity.HoldingReport{TokenHolding: holding, Risk: service.Risk(holding)})
			return
		}
	}
	c.JSON(http.StatusNotFound, errorResponse{Error: "holding not found"})
}

// GetReport lists the holdings owning at least threshold percent of supply.
func (h *HoldingsHandler) GetReport(c *gin.Context) {
	threshold := service.DefaultSignificantThreshold
	if raw := c.Query("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "threshold must be a non-negative number"})
			return
		}
		threshold = v
	}

	snap, err := h.holdingsService.GetHoldings(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.Header("Cache-Control", snapshotCacheControl)
	c.JSON(http.StatusOK, ReportResponse{
		Threshold:   threshold,
		LastUpdated: snap.LastUpdated,
		Summary:     service.Summarize(snap.Holdings),
		Holdings:    service.SignificantHoldings(snap.Holdings, threshold),
	})
}

// Health reports whether the cache backend answers.
func (h *HoldingsHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.holdingsService.CachePing(ctx); err != nil {
		h.logger.Warn("Cache backend health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "cache": "down", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "cache": "up"})
}

func (h *HoldingsHandler) writeSnapshot(c *gin.Context, status int, snap *entity.Snapshot) {
	holdings := snap.Holdings
	if holdings == nil {
		holdings = []entity.TokenHolding{}
	}
	c.Header("Cache-Control", snapshotCacheControl)
	c.JSON(status, HoldingsResponse{
		Holdings:    holdings,
		LastUpdated: snap.LastUpdated,
		Summary:     service.Summarize(holdings),
	})
}

func (h *HoldingsHandler) abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrRefreshTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, entity.ErrNoDataAvailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, entity.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
