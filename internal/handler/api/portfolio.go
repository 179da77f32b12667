// Package api exposes the pipeline over HTTP.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"PortPulse/internal/aggregate"
	"PortPulse/internal/domain/models"
	"PortPulse/internal/ingest"
	"PortPulse/internal/lifecycle"
	"PortPulse/internal/usecase"
	xhttp "PortPulse/pkg/http"
	xlogger "PortPulse/pkg/logger"
)

// PortfolioHandler implements the Echo routes for ingestion, state queries,
// trade checks, and archive access.
type PortfolioHandler struct {
	logger    *xlogger.Logger
	repo      *ingest.Repository
	bid       *aggregate.BID
	guard     *usecase.TradeGuard
	lifecycle *lifecycle.Manager
}

func NewPortfolioHandler(logger *xlogger.Logger, repo *ingest.Repository, bid *aggregate.BID, guard *usecase.TradeGuard, lc *lifecycle.Manager) *PortfolioHandler {
	return &PortfolioHandler{logger: logger, repo: repo, bid: bid, guard: guard, lifecycle: lc}
}

func (h *PortfolioHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/snapshot", h.IngestSnapshot)
	g.POST("/ticks", h.IngestTicks)
	g.GET("/ticks/latest", h.LatestTicks)
	g.POST("/import", h.Import)
	g.GET("/portfolio", h.Portfolio)
	g.GET("/risk", h.Risk)
	g.GET("/alerts", h.Alerts)
	g.POST("/alerts/:id/ack", h.AcknowledgeAlert)
	g.POST("/trade/check", h.TradeCheck)
	g.GET("/archives", h.SearchArchives)
	g.POST("/archives/:id/retrieve", h.RetrieveArchive)
}

func (h *PortfolioHandler) IngestSnapshot(c echo.Context) error {
	req := &models.SnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	snap := h.repo.IngestSnapshot(c.Request().Context(), req.ToRaw())
	return xhttp.CreatedResponse(c, snap)
}

func (h *PortfolioHandler) IngestTicks(c echo.Context) error {
	req := &models.TicksRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	cleaned := h.repo.IngestMarketData(c.Request().Context(), req.Ticks)
	return xhttp.SuccessResponse(c, map[string]int{
		"accepted": len(cleaned),
		"dropped":  len(req.Ticks) - len(cleaned),
	})
}

func (h *PortfolioHandler) LatestTicks(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.repo.LatestTicks())
}

func (h *PortfolioHandler) Import(c echo.Context) error {
	req := &models.ImportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.repo.IngestTabularImport(c.Request().Context(), req.Headers, req.Rows)
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyImport) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
		h.logger.Error("import failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, res)
}

func (h *PortfolioHandler) Portfolio(c echo.Context) error {
	view, err := h.bid.View()
	if err != nil {
		return xhttp.AppErrorResponse(c, noStateError(err))
	}
	return xhttp.SuccessResponse(c, view)
}

func (h *PortfolioHandler) Risk(c echo.Context) error {
	metrics, err := h.bid.RiskMetrics()
	if err != nil {
		return xhttp.AppErrorResponse(c, noStateError(err))
	}
	return xhttp.SuccessResponse(c, metrics)
}

func (h *PortfolioHandler) Alerts(c echo.Context) error {
	alerts := h.bid.Alerts()
	return xhttp.ListResponse(c, alerts, int64(len(alerts)))
}

func (h *PortfolioHandler) AcknowledgeAlert(c echo.Context) error {
	id := c.Param("id")
	if err := h.bid.Acknowledge(id); err != nil {
		if errors.Is(err, aggregate.ErrAlertNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("alert %s not found", id))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *PortfolioHandler) TradeCheck(c echo.Context) error {
	req := &models.TradeCheckRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	decision, err := h.guard.Check(c.Request().Context(), req.ToTradeRequest())
	if err != nil {
		if errors.Is(err, aggregate.ErrNoState) {
			return xhttp.AppErrorResponse(c, noStateError(err))
		}
		h.logger.Error("trade check failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, decision)
}

func (h *PortfolioHandler) SearchArchives(c echo.Context) error {
	req := &models.ArchiveSearchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	now := time.Now().UTC()
	from := xhttp.ParseTimeDefault(req.From, time.Time{})
	to := xhttp.ParseTimeDefault(req.To, now)

	archives := h.lifecycle.SearchArchives(req.Category, from, to)
	return xhttp.ListResponse(c, archives, int64(len(archives)))
}

func (h *PortfolioHandler) RetrieveArchive(c echo.Context) error {
	id := c.Param("id")
	recs, err := h.lifecycle.RetrieveFromArchive(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, lifecycle.ErrArchiveNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("archive %s not found", id))
		}
		h.logger.Error("archive retrieve failed", xlogger.String("archive_id", id), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, recs)
}

func noStateError(err error) *xhttp.AppError {
	return xhttp.NewAppError("ERR_NO_STATE", "", err.Error(), http.StatusConflict)
}
