package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"CryptoScreener/internal/collector"
	"CryptoScreener/internal/model"
	"CryptoScreener/internal/recorder"
	"CryptoScreener/internal/scanner"
	"CryptoScreener/internal/scheduler"
)

// ScanService runs scans and serves the latest one. *scheduler.Scheduler implements it.
type ScanService interface {
	RunScan(ctx context.Context, params model.ScanParameters) (*scanner.ResultSet, error)
	Latest() *scanner.ResultSet
	Detail(ctx context.Context, symbol string) (*model.Chart, error)
	Params() model.ScanParameters
}

// Handler serves the scan API.
type Handler struct {
	svc     ScanService
	journal recorder.Recorder
}

// NewHandler serves scans from svc and scan history from journal.
func NewHandler(svc ScanService, journal recorder.Recorder) *Handler {
	if journal == nil {
		journal = recorder.NewNoopRecorder()
	}
	return &Handler{svc: svc, journal: journal}
}

// RegisterRoutes mounts the API routes on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.health)
	g := e.Group("/api")
	g.POST("/scans", h.runScan)
	g.GET("/scans", h.history)
	g.GET("/scans/:id/signals", h.scanSignals)
	g.GET("/results", h.results)
	g.GET("/chart/:symbol", h.chart)
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

type errorResponse struct {
	Error    string            `json:"error"`
	Problems []scanner.Problem `json:"problems,omitempty"`
}

type scanResponse struct {
	Scan    *scanner.ResultSet `json:"scan"`
	Summary scanner.Summary    `json:"summary"`
}

func (h *Handler) health(c echo.Context) error {
	resp := map[string]any{"status": "ok"}
	if rs := h.svc.Latest(); rs != nil {
		resp["latest_scan"] = rs.ID
		resp["finished_at"] = rs.FinishedAt
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) runScan(c echo.Context) error {
	var params model.ScanParameters
	if err := c.Bind(&params); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if err := params.ApplyDefaults(); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	configured := h.svc.Params().ExchangeID
	if params.ExchangeID == "" {
		params.ExchangeID = configured
	}
	if !strings.EqualFold(params.ExchangeID, configured) {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error: scanner.ErrInvalidParameters.Error(),
			Problems: []scanner.Problem{{
				Code:    "ERR_EXCHANGE",
				Field:   "exchange_id",
				Message: fmt.Sprintf("exchange_id must be %s, the configured exchange", configured),
			}},
		})
	}
	params.ExchangeID = configured
	if err := scanner.ValidateParameters(params); err != nil {
		return writeError(c, err)
	}

	rs, err := h.svc.RunScan(c.Request().Context(), params)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, scanResponse{Scan: rs, Summary: rs.Summary()})
}

// results serves a filtered view of the latest scan. A facet absent from the
// query selects all of its values.
func (h *Handler) results(c echo.Context) error {
	rs := h.svc.Latest()
	if rs == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "no scan has completed yet"})
	}

	signals := model.AllSignals()
	if raw := queryValues(c, "signal"); len(raw) > 0 {
		signals = nil
		for _, v := range raw {
			s, err := model.ParseSignal(strings.ToUpper(v))
			if err != nil {
				return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			}
			signals = append(signals, s)
		}
	}
	trends := model.AllTrends()
	if raw := queryValues(c, "trend"); len(raw) > 0 {
		trends = nil
		for _, v := range raw {
			t, err := model.ParseTrend(strings.ToUpper(v))
			if err != nil {
				return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			}
			trends = append(trends, t)
		}
	}
	key, err := scanner.ParseSortKey(c.QueryParam("sort"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	view := scanner.Filter(rs, signals, trends).Sorted(key)
	return c.JSON(http.StatusOK, scanResponse{Scan: view, Summary: view.Summary()})
}

type historyResponse struct {
	Scans []recorder.ScanRun `json:"scans"`
}

type signalsResponse struct {
	ScanID  string               `json:"scan_id"`
	Records []model.SignalRecord `json:"records"`
}

// history lists journaled scans, newest first.
func (h *Handler) history(c echo.Context) error {
	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			return c.JSON(http.StatusBadRequest, errorResponse{
				Error: fmt.Sprintf("limit must be between 1 and %d", maxHistoryLimit),
			})
		}
		limit = n
	}
	runs, err := h.journal.RecentScans(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	if runs == nil {
		runs = []recorder.ScanRun{}
	}
	return c.JSON(http.StatusOK, historyResponse{Scans: runs})
}

// scanSignals returns the journaled records of one scan.
func (h *Handler) scanSignals(c echo.Context) error {
	id := c.Param("id")
	records, err := h.journal.SignalsFor(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	if records == nil {
		records = []model.SignalRecord{}
	}
	return c.JSON(http.StatusOK, signalsResponse{ScanID: id, Records: records})
}

func (h *Handler) chart(c echo.Context) error {
	symbol := strings.ToUpper(c.Param("symbol"))
	chart, err := h.svc.Detail(c.Request().Context(), symbol)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, chart)
}

// queryValues accepts both repeated and comma separated parameters.
func queryValues(c echo.Context, name string) []string {
	var out []string
	for _, v := range c.QueryParams()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func writeError(c echo.Context, err error) error {
	var verr *scanner.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: scanner.ErrInvalidParameters.Error(), Problems: verr.Problems})
	case errors.Is(err, scanner.ErrInvalidParameters):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "scan cancelled: " + err.Error()})
	case errors.Is(err, scheduler.ErrScanInProgress):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, collector.ErrProviderUnavailable):
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
	case errors.Is(err, collector.ErrSymbolUnavailable):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
