// Package board exposes the dispatch board over HTTP with gin.
//
//	GET  /health
//	GET  /api/boards/:date
//	GET  /api/boards/:date/events        (server-sent events)
//	GET  /api/boards/:date/export?format=json|csv|html
//	POST /api/boards/:date/assign
//	POST /api/boards/:date/reorder
//	POST /api/boards/:date/undo
//	POST /api/boards/:date/status
package board

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	coreboard "github.com/kilianp07/fieldboard/core/board"
	"github.com/kilianp07/fieldboard/core/dispatch"
	"github.com/kilianp07/fieldboard/core/events"
	"github.com/kilianp07/fieldboard/core/lifecycle"
	"github.com/kilianp07/fieldboard/core/logger"
	"github.com/kilianp07/fieldboard/core/model"
	"github.com/kilianp07/fieldboard/pkg/export"
)

// Boards is the command surface of the dispatch manager.
type Boards interface {
	Assign(ctx context.Context, c dispatch.AssignJob) (dispatch.Result, error)
	Reorder(ctx context.Context, c dispatch.ReorderJob) (dispatch.Result, error)
	Undo(ctx context.Context, c dispatch.UndoUnassign) (dispatch.Result, error)
	ChangeStatus(ctx context.Context, c dispatch.ChangeStatus) (dispatch.Result, error)
	Board(ctx context.Context, c dispatch.GetBoard) (coreboard.View, error)
	Watch(ctx context.Context, date string) (<-chan events.BoardChanged, func(), error)
}

var _ Boards = (*dispatch.Manager)(nil)

// Options tune the handler. Zero values fall back to defaults.
type Options struct {
	Token          string
	Heartbeat      time.Duration
	RequestTimeout time.Duration
	Logger         logger.Logger
}

// API serves board commands and snapshots.
type API struct {
	boards    Boards
	log       logger.Logger
	heartbeat time.Duration
	timeout   time.Duration
}

// NewAPI wraps boards.
func NewAPI(boards Boards, o Options) *API {
	if o.Heartbeat <= 0 {
		o.Heartbeat = 15 * time.Second
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
	return &API{boards: boards, log: logger.OrNop(o.Logger), heartbeat: o.Heartbeat, timeout: o.RequestTimeout}
}

// SetupRoutes registers the board routes on router. The routes under /api
// require "Bearer <token>" when token is not empty.
func (a *API) SetupRoutes(router gin.IRouter, token string) {
	router.GET("/health", a.healthCheck)

	g := router.Group("/api/boards/:date", BearerAuth(token))
	g.GET("", a.getBoard)
	g.GET("/events", a.streamEvents)
	g.GET("/export", a.exportBoard)
	g.POST("/assign", a.assign)
	g.POST("/reorder", a.reorder)
	g.POST("/undo", a.undo)
	g.POST("/status", a.changeStatus)
}

// NewRouter builds a gin engine serving the board API.
func NewRouter(boards Boards, o Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	NewAPI(boards, o).SetupRoutes(router, o.Token)
	return router
}

// BearerAuth rejects requests without the expected bearer token.
func BearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token != "" && c.GetHeader("Authorization") != "Bearer "+token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

type assignRequest struct {
	JobID           string `json:"job_id" binding:"required"`
	VehicleID       string `json:"vehicle_id" binding:"required"`
	Position        int    `json:"position"`
	ExpectedVersion uint64 `json:"expected_version"`
}

type reorderRequest struct {
	JobID           string `json:"job_id" binding:"required"`
	VehicleID       string `json:"vehicle_id" binding:"required"`
	Position        int    `json:"position"`
	ExpectedVersion uint64 `json:"expected_version"`
}

type undoRequest struct {
	ExpectedVersion uint64 `json:"expected_version"`
}

// statusRequest carries either a target status or a board action.
type statusRequest struct {
	JobID           string           `json:"job_id" binding:"required"`
	NewStatus       model.Status     `json:"new_status"`
	Action          lifecycle.Action `json:"action"`
	ExpectedVersion uint64           `json:"expected_version"`
}

func (a *API) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), a.timeout)
}

// healthCheck handles GET /health
func (a *API) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

// getBoard handles GET /api/boards/:date
func (a *API) getBoard(c *gin.Context) {
	ctx, cancel := a.ctx(c)
	defer cancel()
	v, err := a.boards.Board(ctx, dispatch.GetBoard{Date: c.Param("date")})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// exportBoard handles GET /api/boards/:date/export
func (a *API) exportBoard(c *gin.Context) {
	ctx, cancel := a.ctx(c)
	defer cancel()
	v, err := a.boards.Board(ctx, dispatch.GetBoard{Date: c.Param("date")})
	if err != nil {
		a.fail(c, err)
		return
	}
	format := c.DefaultQuery("format", export.FormatJSON)
	switch format {
	case export.FormatJSON, export.FormatCSV, export.FormatHTML:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported format " + format})
		return
	}
	if format == export.FormatCSV {
		c.Header("Content-Disposition", "attachment; filename=board-"+v.Date+".csv")
	}
	c.Header("Content-Type", export.ContentType(format))
	c.Status(http.StatusOK)
	if err := export.Write(c.Writer, format, v); err != nil {
		a.log.Errorf("export board %s as %s: %v", v.Date, format, err)
	}
}

// assign handles POST /api/boards/:date/assign
func (a *API) assign(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := a.ctx(c)
	defer cancel()
	res, err := a.boards.Assign(ctx, dispatch.AssignJob{
		Date:            c.Param("date"),
		JobID:           req.JobID,
		VehicleID:       req.VehicleID,
		Position:        req.Position,
		ExpectedVersion: req.ExpectedVersion,
	})
	a.respond(c, res, err)
}

// reorder handles POST /api/boards/:date/reorder
func (a *API) reorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := a.ctx(c)
	defer cancel()
	res, err := a.boards.Reorder(ctx, dispatch.ReorderJob{
		Date:            c.Param("date"),
		VehicleID:       req.VehicleID,
		JobID:           req.JobID,
		Position:        req.Position,
		ExpectedVersion: req.ExpectedVersion,
	})
	a.respond(c, res, err)
}

// undo handles POST /api/boards/:date/undo
func (a *API) undo(c *gin.Context) {
	var req undoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := a.ctx(c)
	defer cancel()
	res, err := a.boards.Undo(ctx, dispatch.UndoUnassign{Date: c.Param("date"), ExpectedVersion: req.ExpectedVersion})
	a.respond(c, res, err)
}

// changeStatus handles POST /api/boards/:date/status with either
// new_status or action (start, complete).
func (a *API) changeStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := a.ctx(c)
	defer cancel()
	res, err := a.boards.ChangeStatus(ctx, dispatch.ChangeStatus{
		Date:            c.Param("date"),
		JobID:           req.JobID,
		NewStatus:       req.NewStatus,
		Action:          req.Action,
		ExpectedVersion: req.ExpectedVersion,
	})
	a.respond(c, res, err)
}

// streamEvents handles GET /api/boards/:date/events. The current snapshot
// is sent first, then every change until the client leaves or the board is
// evicted.
func (a *API) streamEvents(c *gin.Context) {
	date := c.Param("date")
	changes, release, err := a.boards.Watch(c.Request.Context(), date)
	if err != nil {
		a.fail(c, err)
		return
	}
	defer release()
	snap, err := a.boards.Board(c.Request.Context(), dispatch.GetBoard{Date: date})
	if err != nil {
		a.fail(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent("board", snap)
	c.Writer.Flush()

	ticker := time.NewTicker(a.heartbeat)
	defer ticker.Stop()
	clientGone := c.Request.Context().Done()
	c.Stream(func(io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case ev, ok := <-changes:
			if !ok {
				return false
			}
			c.SSEvent("changed", ev)
			return true
		case <-ticker.C:
			c.SSEvent("heartbeat", gin.H{"time": time.Now().UTC()})
			return true
		}
	})
}

func (a *API) respond(c *gin.Context, res dispatch.Result, err error) {
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// fail maps err onto a status code. Stale versions carry the current board
// so the client can resynchronise.
func (a *API) fail(c *gin.Context, err error) {
	status := StatusOf(err)
	body := gin.H{"error": err.Error(), "code": coreboard.Code(err)}
	if errors.Is(err, dispatch.ErrInvalidCommand) {
		body["code"] = "invalid_command"
	}
	if status == http.StatusConflict {
		ctx, cancel := a.ctx(c)
		defer cancel()
		if v, verr := a.boards.Board(ctx, dispatch.GetBoard{Date: c.Param("date")}); verr == nil {
			body["board"] = v
		}
	}
	if status >= http.StatusInternalServerError {
		a.log.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, body)
}

// StatusOf returns the HTTP status of a command error.
func StatusOf(err error) int {
	var le *coreboard.LoadError
	switch {
	case errors.Is(err, dispatch.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, coreboard.ErrStaleVersion):
		return http.StatusConflict
	case errors.Is(err, coreboard.ErrUnknownJob), errors.Is(err, coreboard.ErrUnknownVehicle):
		return http.StatusNotFound
	case errors.Is(err, coreboard.ErrCapacityExceeded),
		errors.Is(err, coreboard.ErrIllegalTransition),
		errors.Is(err, coreboard.ErrNothingToUndo):
		return http.StatusUnprocessableEntity
	case errors.As(err, &le), errors.Is(err, dispatch.ErrClosed), errors.Is(err, coreboard.ErrPersistenceDegraded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
