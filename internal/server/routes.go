package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/berfenger/aurora2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	defaultHistoryHours = 24
	maxHistoryHours     = 8760
)

type historyResponse struct {
	Hours    int              `json:"hours"`
	Count    int              `json:"count"`
	Readings []domain.Reading `json:"readings"`
}

type statusResponse struct {
	State          string     `json:"state"`
	Cycles         uint64     `json:"cycles"`
	FailedCycles   uint64     `json:"failed_cycles"`
	LastCycleError string     `json:"last_cycle_error,omitempty"`
	LastReadingAt  *time.Time `json:"last_reading_at,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/api/data", s.DataHandler)
	e.GET("/api/history", s.HistoryHandler)
	e.GET("/api/status", s.StatusHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, s.requestTimeout).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

// DataHandler returns the last reading, or 204 before the first one.
func (s *Server) DataHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetLastReadingRequest{}, s.requestTimeout).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	}
	response, ok := res.(domain.GetLastReadingResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "unexpected response"})
	}
	if response.Reading == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, response.Reading)
}

func (s *Server) HistoryHandler(c echo.Context) error {
	hours := defaultHistoryHours
	if param := c.QueryParam("hours"); param != "" {
		parsed, err := strconv.Atoi(param)
		if err != nil || parsed < 1 || parsed > maxHistoryHours {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "hours must be an integer in 1..8760"})
		}
		hours = parsed
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetHistoryRequest{Since: since}, s.requestTimeout).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	}
	response, ok := res.(domain.GetHistoryResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "unexpected response"})
	}
	if err := response.GetResponseError(); err != nil {
		if errors.Is(err, domain.ErrStorageDisabled) {
			return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	readings := response.Readings
	if readings == nil {
		readings = []domain.Reading{}
	}
	return c.JSON(http.StatusOK, historyResponse{
		Hours:    hours,
		Count:    len(readings),
		Readings: readings,
	})
}

func (s *Server) StatusHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetPollerStatusRequest{}, s.requestTimeout).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	}
	response, ok := res.(domain.GetPollerStatusResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "unexpected response"})
	}
	status := statusResponse{
		State:          response.State,
		Cycles:         response.Cycles,
		FailedCycles:   response.FailedCycles,
		LastCycleError: response.LastCycleError,
	}
	if !response.LastReadingAt.IsZero() {
		status.LastReadingAt = &response.LastReadingAt
	}
	return c.JSON(http.StatusOK, status)
}
