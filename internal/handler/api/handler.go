package api

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	models "LevelScan/internal/domain/models"
	domrepo "LevelScan/internal/domain/repository"
	icache "LevelScan/internal/service/cache"
	xhttp "LevelScan/pkg/http"
	xlogger "LevelScan/pkg/logger"
	"LevelScan/pkg/util"

	"github.com/labstack/echo/v4"
)

const signalsCacheTTL = 15 * time.Second

// SweepRunner triggers one full analysis pass on demand.
type SweepRunner interface {
	RunSweep(ctx context.Context) ([]models.Signal, error)
}

// Handler exposes the read API over Echo following Clean Architecture.
type Handler struct {
	logger  *xlogger.Logger
	signals domrepo.SignalStore
	levels  domrepo.LevelStore
	trends  domrepo.TrendStore
	alerts  domrepo.AlertStore
	candles domrepo.CandleStore
	sweep   SweepRunner
	cache   icache.BytesCache
}

func NewHandler(
	logger *xlogger.Logger,
	signals domrepo.SignalStore,
	levels domrepo.LevelStore,
	trends domrepo.TrendStore,
	alerts domrepo.AlertStore,
	candles domrepo.CandleStore,
	sweep SweepRunner,
) *Handler {
	return &Handler{
		logger:  logger,
		signals: signals,
		levels:  levels,
		trends:  trends,
		alerts:  alerts,
		candles: candles,
		sweep:   sweep,
	}
}

// SetCache injects a response cache for the hot read endpoints.
func (h *Handler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/signals", h.Signals)
	g.GET("/levels", h.Levels)
	g.GET("/trends", h.Trends)
	g.GET("/trend", h.Trend)
	g.GET("/alerts", h.Alerts)
	g.GET("/candles", h.Candles)
	g.POST("/sweep", h.Sweep)
}

func (h *Handler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *Handler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	cacheKey := "signals:" + strconv.Itoa(req.Limit)
	if h.cache != nil {
		if raw, ok, err := h.cache.GetBytes(cacheKey); err == nil && ok {
			var cached []models.Signal
			if json.Unmarshal(raw, &cached) == nil {
				return xhttp.SuccessResponse(c, cached)
			}
		}
	}

	res, err := h.signals.GetSignals(c.Request().Context(), req.Limit)
	if err != nil {
		h.logger.Error("signals read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if h.cache != nil {
		if raw, err := json.Marshal(res); err == nil {
			_ = h.cache.SetBytes(cacheKey, raw, signalsCacheTTL)
		}
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *Handler) Levels(c echo.Context) error {
	req := &models.LevelsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	all, err := h.levels.GetLevels(c.Request().Context())
	if err != nil {
		h.logger.Error("levels read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	res := filterLevels(all, req.Symbol, req.TF)
	return xhttp.SuccessResponse(c, res)
}

func (h *Handler) Trends(c echo.Context) error {
	res, err := h.trends.GetAllTrends(c.Request().Context())
	if err != nil {
		h.logger.Error("trends read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *Handler) Trend(c echo.Context) error {
	req := &models.TrendRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.trends.GetTrend(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("trend read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if res == nil {
		return xhttp.NotFoundResponse(c, "trend not found")
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *Handler) Alerts(c echo.Context) error {
	req := &models.AlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.alerts.GetAlerts(c.Request().Context(), req.Limit)
	if err != nil {
		h.logger.Error("alerts read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

const defaultCandleWindow = 24 * time.Hour

// Candles returns one series over a [from, to) window aligned to candle
// boundaries. Bounds default to the last 24 hours.
func (h *Handler) Candles(c echo.Context) error {
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	now := time.Now().UTC()
	from := xhttp.ParseTimeDefault(req.From, now.Add(-defaultCandleWindow))
	to := xhttp.ParseTimeDefault(req.To, now)
	from, to = util.AlignFromTo(from, to, req.TF)
	if !from.Before(to) {
		return xhttp.BadRequestResponse(c, "from must precede to")
	}

	res, err := h.candles.GetCandleRange(c.Request().Context(), req.Symbol, domrepo.Timeframe(req.TF), from, to)
	if err != nil {
		h.logger.Error("candles read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Sweep runs one analysis pass synchronously and returns the signals it
// produced. Meant for operators, not for polling.
func (h *Handler) Sweep(c echo.Context) error {
	res, err := h.sweep.RunSweep(c.Request().Context())
	if err != nil {
		h.logger.Error("manual sweep error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func filterLevels(all []models.Level, symbol, tf string) []models.Level {
	if symbol == "" && tf == "" {
		return all
	}
	out := make([]models.Level, 0, len(all))
	for _, lvl := range all {
		if symbol != "" && lvl.Symbol != symbol {
			continue
		}
		if tf != "" && string(lvl.Timeframe) != tf {
			continue
		}
		out = append(out, lvl)
	}
	return out
}
