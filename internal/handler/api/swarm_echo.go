package api

import (
	"github.com/labstack/echo/v4"

	"PolySwarm/internal/domain/models"
	domrepo "PolySwarm/internal/domain/repository"
	"PolySwarm/internal/usecase"
	xhttp "PolySwarm/pkg/http"
	xlogger "PolySwarm/pkg/logger"
)

// SwarmEchoHandler exposes the read API plus on-demand analysis and
// trigger consumption.
type SwarmEchoHandler struct {
	logger   *xlogger.Logger
	signals  domrepo.SignalStore
	triggers domrepo.TriggerStore
	analyzer *usecase.MarketAnalyzer
	detector *usecase.TriggerDetector
	feed     interface{ IsConnected() bool } // nil when the collector is disabled
}

func NewSwarmEchoHandler(logger *xlogger.Logger, signals domrepo.SignalStore, triggers domrepo.TriggerStore, analyzer *usecase.MarketAnalyzer, detector *usecase.TriggerDetector, feed *usecase.FeedCollector) *SwarmEchoHandler {
	h := &SwarmEchoHandler{
		logger:   logger,
		signals:  signals,
		triggers: triggers,
		analyzer: analyzer,
		detector: detector,
	}
	if feed != nil {
		h.feed = feed
	}
	return h
}

func (h *SwarmEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signals", h.Signals)
	g.GET("/triggers", h.Triggers)
	g.POST("/analyze", h.Analyze)
	g.POST("/triggers/:id/consume", h.ConsumeTrigger)
	e.GET("/healthz", h.Health)
}

// Signals returns the most recent signals for a market, newest first.
func (h *SwarmEchoHandler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.signals.Recent(c.Request().Context(), req.Market, req.Limit)
	if err != nil {
		h.logger.Error("signals lookup error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// Triggers returns the active triggers for a market.
func (h *SwarmEchoHandler) Triggers(c echo.Context) error {
	req := &models.TriggersRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.triggers.ActiveByMarket(c.Request().Context(), req.Market)
	if err != nil {
		h.logger.Error("triggers lookup error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// Analyze runs a full swarm pass on demand and returns the consensus
// without creating a signal.
func (h *SwarmEchoHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	market := models.Market{ID: req.MarketID, Question: req.Question}
	if req.EndDate != "" {
		t, ok := xhttp.ParseTime(req.EndDate)
		if !ok {
			return xhttp.BadRequestResponse(c, xhttp.BadRequestErrorf("end_date: not a valid timestamp"))
		}
		market.EndDate = &t
	}

	res, err := h.analyzer.Analyze(c.Request().Context(), market, nil)
	if err != nil {
		h.logger.Error("analyze usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// ConsumeTrigger marks an active trigger as consumed downstream.
func (h *SwarmEchoHandler) ConsumeTrigger(c echo.Context) error {
	req := &models.ConsumeTriggerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.detector.Consume(c.Request().Context(), req.ID); err != nil {
		h.logger.Error("consume trigger error",
			xlogger.String("trigger", req.ID),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("consume trigger: %v", err))
	}
	return xhttp.NoContentResponse(c)
}

// Health reports process and feed liveness.
func (h *SwarmEchoHandler) Health(c echo.Context) error {
	status := map[string]any{"status": "ok"}
	if h.feed != nil {
		status["feed_connected"] = h.feed.IsConnected()
	}
	return xhttp.SuccessResponse(c, status)
}
