package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"holidaycal/internal/config"
	"holidaycal/internal/dates"
	"holidaycal/internal/holiday"
	"holidaycal/internal/ics"
	appLog "holidaycal/internal/log"
	"holidaycal/internal/metrics"
	"holidaycal/internal/model"
	"holidaycal/internal/planner"
	"holidaycal/internal/report"
	"holidaycal/internal/sources"
	"holidaycal/internal/state"
)

// maxUploadBytes bounds uploaded calendars and state documents.
const maxUploadBytes = 8 << 20

// Server exposes the planner over a JSON API.
type Server struct {
	cfg     *config.Config
	planner *planner.Planner
	engine  *gin.Engine
	now     func() time.Time

	// OnChange, if set, is called after every successful mutation.
	OnChange func()
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, p *planner.Planner) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{
		cfg:     cfg,
		planner: p,
		now:     time.Now,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestMetrics())
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+cfg.Listen)
		r.Use(s.basicAuthMiddleware())
	}
	s.engine = r
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards all routes except /health.
func (s *Server) basicAuthMiddleware() gin.HandlerFunc {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			c.Header("WWW-Authenticate", `Basic realm="holidaycal", charset="UTF-8"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Serve runs the server on cfg.Listen until ctx is cancelled, then shuts it
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) registerRoutes() {
	r := s.engine
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/calendar", s.handleCalendar)
		api.GET("/legend", s.handleLegend)
		api.GET("/events", s.handleEvents)
		api.GET("/export.ics", s.handleExportAll)

		holidays := api.Group("/holidays")
		holidays.GET("", s.handleListHolidays)
		holidays.POST("", s.handleAddHoliday)
		holidays.PUT("/:id", s.handleUpdateHoliday)
		holidays.DELETE("/:id", s.handleRemoveHoliday)
		holidays.GET("/:id/ics", s.handleHolidayICS)
		holidays.GET("/:id/links", s.handleHolidayLinks)

		api.POST("/postcode", s.handlePostcode)
		api.POST("/import", s.handleImport)
		api.POST("/country", s.handleCountry)
		api.GET("/state", s.handleGetState)
		api.PUT("/state", s.handlePutState)
	}
}

func (s *Server) changed() {
	if s.OnChange != nil {
		s.OnChange()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// viewFrom reads ?year, ?q and ?hideSchool. A missing year selects the
// planner's current year.
func viewFrom(c *gin.Context) (holiday.ViewState, error) {
	var v holiday.ViewState
	if raw := c.Query("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil || year < 1 || year > 9999 {
			return v, fmt.Errorf("invalid year %q", raw)
		}
		v.Year = year
	}
	v.Query = c.Query("q")
	v.HideSchool = parseBool(c.Query("hideSchool"))
	return v, nil
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

type calendarResponse struct {
	Year int                      `json:"year"`
	Days []holiday.Classification `json:"days"`
}

func (s *Server) handleCalendar(c *gin.Context) {
	v, err := viewFrom(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	year, days := s.planner.Calendar(v)
	c.JSON(http.StatusOK, calendarResponse{Year: year, Days: days})
}

type legendResponse struct {
	Year   int                  `json:"year"`
	Counts holiday.LegendCounts `json:"counts"`
}

func (s *Server) handleLegend(c *gin.Context) {
	v, err := viewFrom(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	year, counts := s.planner.Legend(v)
	c.JSON(http.StatusOK, legendResponse{Year: year, Counts: counts})
}

type eventsResponse struct {
	Year   int            `json:"year"`
	Events []report.Event `json:"events"`
}

// handleEvents lists the year chronologically.
//
// GET /api/events?year=2025[&format=csv]
func (s *Server) handleEvents(c *gin.Context) {
	v, err := viewFrom(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	year, events := s.planner.Events(v)

	if strings.EqualFold(c.Query("format"), "csv") {
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="holidays-%d.csv"`, year))
		c.Status(http.StatusOK)
		if err := report.WriteCSV(c.Writer, events); err != nil {
			appLog.Error("api events: csv write failed", err)
		}
		return
	}
	if events == nil {
		events = []report.Event{}
	}
	c.JSON(http.StatusOK, eventsResponse{Year: year, Events: events})
}

func (s *Server) handleExportAll(c *gin.Context) {
	v, err := viewFrom(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	body, err := ics.ExportCalendar(s.planner.Holidays(v), s.now())
	if err != nil {
		handleError(c, err)
		return
	}
	writeCalendar(c, "holidays.ics", body)
}

func (s *Server) handleListHolidays(c *gin.Context) {
	v, err := viewFrom(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, s.planner.Holidays(v))
}

func (s *Server) handleAddHoliday(c *gin.Context) {
	var req model.SchoolHoliday
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	h, err := s.planner.Add(req)
	if err != nil {
		handleError(c, err)
		return
	}
	s.changed()
	c.JSON(http.StatusCreated, h)
}

func (s *Server) handleUpdateHoliday(c *gin.Context) {
	var req model.SchoolHoliday
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	h, err := s.planner.Update(c.Param("id"), req)
	if err != nil {
		handleError(c, err)
		return
	}
	s.changed()
	c.JSON(http.StatusOK, h)
}

func (s *Server) handleRemoveHoliday(c *gin.Context) {
	if err := s.planner.Remove(c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	s.changed()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleHolidayICS(c *gin.Context) {
	h, err := s.planner.Get(c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	body, err := ics.ExportHoliday(h, s.now())
	if err != nil {
		handleError(c, err)
		return
	}
	writeCalendar(c, ics.FileName(h), body)
}

func (s *Server) handleHolidayLinks(c *gin.Context) {
	h, err := s.planner.Get(c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	links, err := ics.LinksFor(h)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

type postcodeRequest struct {
	Postcode string `json:"postcode"`
}

type postcodeResponse struct {
	Region         sources.Region        `json:"region"`
	SchoolHolidays []model.SchoolHoliday `json:"schoolHolidays"`
}

func (s *Server) handlePostcode(c *gin.Context) {
	var req postcodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	region, err := s.planner.SearchPostcode(c.Request.Context(), req.Postcode)
	if err != nil {
		handleError(c, err)
		return
	}
	s.changed()
	c.JSON(http.StatusOK, postcodeResponse{Region: region, SchoolHolidays: s.planner.State().SchoolHolidays})
}

type importRequest struct {
	URL string `json:"url"`
}

// handleImport merges a calendar into the collection. A text/calendar body
// is imported as is; otherwise the JSON body names a URL to fetch.
// Failures are reported in the result with 422.
func (s *Server) handleImport(c *gin.Context) {
	var res ics.ImportResult
	if strings.HasPrefix(c.ContentType(), "text/calendar") {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUploadBytes))
		if err != nil {
			writeError(c, http.StatusBadRequest, "failed to read body")
			return
		}
		name := c.Query("name")
		if name == "" {
			name = "upload"
		}
		res = s.planner.ImportData(name, body)
	} else {
		var req importRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
			writeError(c, http.StatusBadRequest, "request body must be {\"url\": \"...\"} or a text/calendar document")
			return
		}
		res = s.planner.Import(c.Request.Context(), req.URL)
	}

	if !res.Success {
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}
	if res.Count > 0 {
		s.changed()
	}
	c.JSON(http.StatusOK, res)
}

type countryRequest struct {
	Country model.Country `json:"country"`
}

func (s *Server) handleCountry(c *gin.Context) {
	var req countryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.planner.LoadCountry(c.Request.Context(), req.Country); err != nil {
		handleError(c, err)
		return
	}
	s.changed()
	c.JSON(http.StatusOK, s.planner.Snapshot())
}

func (s *Server) handleGetState(c *gin.Context) {
	st := s.planner.State()
	data, err := state.Encode(st)
	if err != nil {
		handleError(c, err)
		return
	}
	if parseBool(c.Query("download")) {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, state.FileName(st.Year)))
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// handlePutState applies an uploaded session document. Malformed JSON is
// rejected before anything changes; unrecognized fields are ignored.
func (s *Server) handlePutState(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUploadBytes))
	if err != nil {
		writeError(c, http.StatusBadRequest, "failed to read body")
		return
	}
	patch, err := state.Decode(body)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if !patch.Empty() {
		s.planner.LoadState(c.Request.Context(), patch)
		s.changed()
	}
	c.JSON(http.StatusOK, s.planner.State())
}

// handleError maps domain errors onto status codes.
func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, planner.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, planner.ErrDuplicate), errors.Is(err, planner.ErrStale):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, dates.ErrInvalidDate),
		errors.Is(err, model.ErrTermEmpty),
		errors.Is(err, model.ErrInvalidRange),
		errors.Is(err, model.ErrUnknownCountry),
		errors.Is(err, sources.ErrEmptyPostcode):
		writeError(c, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("api: internal error", err, "path", c.Request.URL.Path)
		writeError(c, http.StatusInternalServerError, "internal server error")
	}
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func writeCalendar(c *gin.Context, filename, body string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}
