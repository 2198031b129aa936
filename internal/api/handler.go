// Package api exposes the worker message contract over HTTP.
package api

import (
	"bytes"
	"net/http"
	"strconv"

	"peerscan/app"
	"peerscan/domain/anomaly"
	"peerscan/internal"
	"peerscan/internal/errors"
	"peerscan/models"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// MaxBatchSize bounds the number of requests in one batch call.
const MaxBatchSize = 64

// BatchRequest is the body of the batch endpoint.
type BatchRequest struct {
	Requests []*anomaly.Request `json:"requests"`
}

// BatchResponse carries responses in request order.
type BatchResponse struct {
	Responses []anomaly.Response `json:"responses"`
	RunIDs    []string           `json:"runIds,omitempty"`
}

// RunDetail is a stored run with its response.
type RunDetail struct {
	Run      models.RunSummary `json:"run"`
	Response anomaly.Response  `json:"response"`
}

// Handler serves the JSON API.
type Handler struct {
	service *app.UnusualCaseService
	logger  *internal.Logger
}

// NewHandler creates a handler
func NewHandler(service *app.UnusualCaseService, logger *internal.Logger) *Handler {
	return &Handler{service: service, logger: logger.WithComponent("api")}
}

// NewRouter builds a gin engine with the API routes.
func NewRouter(h *Handler, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if gin.Mode() != gin.TestMode {
		r.Use(gin.Logger())
	}
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the API on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/healthz", h.handleHealth)

	api := r.Group("/api")
	api.POST("/unusual-cases", h.handleAnalyze)
	api.POST("/unusual-cases/batch", h.handleBatch)
	api.GET("/runs", h.handleListRuns)
	api.GET("/runs/:id", h.handleGetRun)
	api.GET("/runs/:id/report.xlsx", h.handleExportRun)
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"persistence": h.service.PersistenceEnabled(),
	})
}

// handleAnalyze answers with the worker response. Analysis failures are
// carried in the envelope, so the status is 200 for any well-formed body.
func (h *Handler) handleAnalyze(c *gin.Context) {
	var req anomaly.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, anomaly.Failure(errors.InvalidInput("malformed request: "+err.Error())))
		return
	}

	outcome := h.service.Analyze(c.Request.Context(), &req)
	if outcome.RunID != "" {
		c.Header("X-Run-ID", outcome.RunID.String())
	}
	c.JSON(http.StatusOK, outcome.Response)
}

func (h *Handler) handleBatch(c *gin.Context) {
	var body BatchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed batch: " + err.Error()})
		return
	}
	if len(body.Requests) > MaxBatchSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "batch holds " + strconv.Itoa(len(body.Requests)) + " requests, limit is " + strconv.Itoa(MaxBatchSize),
		})
		return
	}

	outcomes := h.service.AnalyzeBatch(c.Request.Context(), body.Requests)
	resp := BatchResponse{Responses: make([]anomaly.Response, len(outcomes))}
	persisted := false
	ids := make([]string, len(outcomes))
	for i, o := range outcomes {
		resp.Responses[i] = o.Response
		ids[i] = o.RunID.String()
		persisted = persisted || o.RunID != ""
	}
	if persisted {
		resp.RunIDs = ids
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) handleListRuns(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.fail(c, errors.InvalidInput("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	runs, err := h.service.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *Handler) handleGetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, RunDetail{Run: run.Summary(), Response: run.Response.Response})
}

func (h *Handler) handleExportRun(c *gin.Context) {
	id := c.Param("id")
	var buf bytes.Buffer
	if err := h.service.ExportRun(c.Request.Context(), id, &buf); err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="report-`+id+`.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": errors.GetCode(err)})
}
