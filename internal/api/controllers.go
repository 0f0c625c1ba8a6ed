package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"execution-core/internal/engine"
	"execution-core/pkg/i18n"
	"execution-core/pkg/venue"
)

type executeOrderRequest struct {
	Venue    string `json:"venue" binding:"required,min=1"`
	Symbol   string `json:"symbol"`
	Action   string `json:"action" binding:"required,oneof=BUY SELL SELLSHORT BUYTOCOVER"`
	Type     string `json:"type" binding:"omitempty,oneof=limit market"`
	Price    string `json:"price"`
	Size     string `json:"size" binding:"required,min=1"`
	ClientID string `json:"client_id"`
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// toOrderRequest validates the payload and converts it into a venue order
// request, minting a client id when the caller did not supply one.
func (s *Server) toOrderRequest(req executeOrderRequest) (venue.OrderRequest, error) {
	size, err := decimal.NewFromString(req.Size)
	if err != nil {
		return venue.OrderRequest{}, errors.New("size must be a decimal string")
	}
	if size.Sign() <= 0 {
		return venue.OrderRequest{}, errors.New("size must be positive")
	}

	out := venue.OrderRequest{
		Symbol:   req.Symbol,
		Action:   venue.Action(req.Action),
		Type:     venue.OrderTypeLimit,
		Size:     size,
		ClientID: req.ClientID,
	}
	if req.Type == "market" {
		out.Type = venue.OrderTypeMarket
	} else {
		price, err := decimal.NewFromString(req.Price)
		if err != nil {
			return venue.OrderRequest{}, errors.New("price must be a decimal string for limit orders")
		}
		if price.Sign() <= 0 {
			return venue.OrderRequest{}, errors.New("price must be positive")
		}
		out.Price = price
	}
	if out.ClientID == "" && s.Ident != nil {
		out.ClientID = s.Ident.Next()
	}
	return out, nil
}

// reportView decorates an engine report with localized labels.
type reportView struct {
	engine.Report
	ActionLabel string `json:"action_label"`
	StatusLabel string `json:"status_label"`
}

func renderReport(rep engine.Report) reportView {
	return reportView{
		Report:      rep,
		ActionLabel: i18n.ActionLabel(rep.Action),
		StatusLabel: i18n.StatusLabel(rep.Status.Kind),
	}
}

// executeOrder runs one execution synchronously and returns the full report.
func (s *Server) executeOrder(c *gin.Context) {
	var req executeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	order, err := s.toOrderRequest(req)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ORDER", err.Error())
		return
	}

	eng, err := s.Registry.Engine(req.Venue)
	if err != nil {
		respondError(c, http.StatusNotFound, "VENUE_NOT_FOUND", err.Error())
		return
	}

	rep, err := eng.Execute(c.Request.Context(), order)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, renderReport(rep))
	case errors.Is(err, engine.ErrRetriesExhausted):
		c.JSON(http.StatusConflict, gin.H{
			"code":   "RETRIES_EXHAUSTED",
			"error":  err.Error(),
			"report": renderReport(rep),
		})
	case venue.IsSendOrderError(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":   "ORDER_REJECTED",
			"error":  err.Error(),
			"report": renderReport(rep),
		})
	default:
		c.JSON(http.StatusBadGateway, gin.H{
			"code":   "VENUE_ERROR",
			"error":  err.Error(),
			"report": renderReport(rep),
		})
	}
}

// executeOrderAsync schedules one execution on the worker pool and returns
// its submission id. The execution is detached from the request context so
// it keeps running after this call responds.
func (s *Server) executeOrderAsync(c *gin.Context) {
	var req executeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	order, err := s.toOrderRequest(req)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ORDER", err.Error())
		return
	}
	if _, err := s.Registry.Engine(req.Venue); err != nil {
		respondError(c, http.StatusNotFound, "VENUE_NOT_FOUND", err.Error())
		return
	}
	if s.Async == nil {
		respondError(c, http.StatusServiceUnavailable, "EXECUTOR_UNAVAILABLE", "async executor not available")
		return
	}

	id, ok := s.Async.ExecuteAsync(context.Background(), req.Venue, order)
	if !ok {
		respondError(c, http.StatusServiceUnavailable, "EXECUTOR_CLOSED", "executor is shutting down")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"id":        id,
		"venue":     req.Venue,
		"client_id": order.ClientID,
		"pending":   s.Async.Pending(),
	})
}

// getResults returns the recent async execution results, newest last.
func (s *Server) getResults(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"results": s.recentResults()})
}

// getVenues lists the configured venues.
func (s *Server) getVenues(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"venues": s.Registry.Venues()})
}

// getPrices returns the last cached price per venue.
func (s *Server) getPrices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"prices": s.Registry.Prices()})
}

// getMetrics returns execution counters and latency stats.
func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		respondError(c, http.StatusServiceUnavailable, "METRICS_UNAVAILABLE", "metrics not available")
		return
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

// getSystemStatus exposes runtime info for dashboards.
func (s *Server) getSystemStatus(c *gin.Context) {
	pending := 0
	if s.Async != nil {
		pending = s.Async.Pending()
	}
	c.JSON(http.StatusOK, gin.H{
		"version":     s.Meta.Version,
		"language":    s.Meta.Language,
		"venues":      len(s.Registry.Venues()),
		"pending":     pending,
		"server_time": time.Now().UTC(),
	})
}
