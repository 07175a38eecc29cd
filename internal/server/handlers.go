package server

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/headline-goat/funnel-goat/internal/experiment"
	"github.com/headline-goat/funnel-goat/internal/funnel"
	"github.com/headline-goat/funnel-goat/internal/report"
)

// maxEventBytes bounds a single funnel beacon.
const maxEventBytes = 16 << 10

type HealthResponse struct {
	Status           string `json:"status"`
	ExperimentsCount int    `json:"experiments_count"`
	StoreAvailable   bool   `json:"store_available"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(c *gin.Context) {
	available := s.tracker.StoreAvailable()
	status := "ok"
	if !available {
		status = "degraded"
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:           status,
		ExperimentsCount: s.tracker.Registry().Len(),
		StoreAvailable:   available,
		UptimeSeconds:    int64(time.Since(s.startTime).Seconds()),
	})
}

type AssignResponse struct {
	Experiment string `json:"experiment"`
	Visitor    string `json:"visitor"`
	Variant    string `json:"variant"`
}

// handleAssign returns 204 when the experiment is unknown or not running so
// the page keeps its default content.
func (s *Server) handleAssign(c *gin.Context) {
	exp := c.Query("experiment")
	visitor := c.Query("visitor")
	if exp == "" || visitor == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "experiment and visitor are required"})
		return
	}

	variant, ok := s.tracker.Assign(c.Request.Context(), exp, visitor)
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, AssignResponse{Experiment: exp, Visitor: visitor, Variant: variant})
}

// TrackRequest records an experiment counter. Revenue may be a JSON number or
// a decimal string.
type TrackRequest struct {
	Experiment string          `json:"experiment" binding:"required"`
	Variant    string          `json:"variant" binding:"required"`
	Kind       string          `json:"kind" binding:"required"`
	Revenue    decimal.Decimal `json:"revenue"`
}

func (s *Server) handleTrack(c *gin.Context) {
	var req TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ctx := c.Request.Context()
	switch req.Kind {
	case "impression":
		s.tracker.RecordImpression(ctx, req.Experiment, req.Variant)
	case "click":
		s.tracker.RecordClick(ctx, req.Experiment, req.Variant)
	case "conversion":
		s.tracker.RecordConversion(ctx, req.Experiment, req.Variant, req.Revenue)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid kind"})
		return
	}

	c.Status(http.StatusNoContent)
}

// handleFunnelEvent accepts beacons from browsers we do not control, so it
// parses leniently and always answers 202 for well-formed JSON. Events that
// fail validation are dropped by the recorder.
func (s *Server) handleFunnelEvent(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBytes))
	if err != nil || !gjson.ValidBytes(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON"})
		return
	}

	ev := ParseEvent(body)
	if !s.tracker.RecordFunnelEvent(c.Request.Context(), ev) {
		s.logger.Debug("funnel beacon dropped", zap.String("session_id", ev.SessionID), zap.String("stage", string(ev.Stage)))
	}

	c.Status(http.StatusAccepted)
}

// ParseEvent reads a funnel beacon. value may be a number or numeric string;
// timestamp may be epoch milliseconds or RFC 3339. Unparseable optional
// fields, including non-finite values, are left unset.
func ParseEvent(body []byte) funnel.Event {
	doc := gjson.ParseBytes(body)

	ev := funnel.Event{
		SessionID: doc.Get("session_id").String(),
		Stage:     funnel.Stage(doc.Get("stage").String()),
		HelmetID:  doc.Get("helmet_id").String(),
		Network:   doc.Get("network").String(),
	}

	switch v := doc.Get("value"); v.Type {
	case gjson.Number:
		if f := v.Float(); funnel.Finite(f) {
			ev.Value = funnel.Float(f)
		}
	case gjson.String:
		if f, err := strconv.ParseFloat(v.Str, 64); err == nil && funnel.Finite(f) {
			ev.Value = funnel.Float(f)
		}
	}

	switch ts := doc.Get("timestamp"); ts.Type {
	case gjson.Number:
		ev.Timestamp = time.UnixMilli(ts.Int()).UTC()
	case gjson.String:
		if t, err := time.Parse(time.RFC3339, ts.Str); err == nil {
			ev.Timestamp = t.UTC()
		}
	}

	return ev
}

func (s *Server) handleReport(c *gin.Context) {
	ctx := c.Request.Context()

	var rep *report.ConversionReport
	if session := c.Query("session"); session != "" {
		rep = s.tracker.GenerateReportFor(ctx, session)
	} else {
		rep = s.tracker.GenerateReport(ctx)
	}
	if rep == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, rep)
}

type ResultsResponse struct {
	Experiment string                              `json:"experiment"`
	Variants   map[string]experiment.VariantResult `json:"variants"`
}

func (s *Server) handleResults(c *gin.Context) {
	exp := c.Param("experiment")
	results := s.tracker.Results(c.Request.Context(), exp)

	if _, known := s.tracker.Registry().Get(exp); !known && len(results) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "experiment not found"})
		return
	}

	c.JSON(http.StatusOK, ResultsResponse{Experiment: exp, Variants: results})
}

func (s *Server) handleFunnels(c *gin.Context) {
	funnels := s.tracker.ReconstructFunnels(c.Request.Context(), c.Query("session"))
	if funnels == nil {
		funnels = []funnel.SessionFunnel{}
	}

	c.JSON(http.StatusOK, gin.H{"funnels": funnels})
}

func (s *Server) handleClear(c *gin.Context) {
	s.tracker.ClearAll(c.Request.Context())
	c.Status(http.StatusNoContent)
}
