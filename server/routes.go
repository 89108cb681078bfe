package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	callcommand "github.com/goliatone/go-callverify/command"
	"github.com/goliatone/go-callverify/core"
	"github.com/goliatone/go-callverify/providers/hubspot"
	callquery "github.com/goliatone/go-callverify/query"
	gocmd "github.com/goliatone/go-command"
)

func (s *Server) routes(engine *gin.Engine, metricsHandler http.Handler) {
	engine.POST("/webhooks/:provider", s.handleWebhook)
	engine.GET("/health", s.handleHealth)

	api := engine.Group("/api")
	api.POST("/calls", s.handleCreateSession)
	api.GET("/call-status/:callId", s.handleCallStatus)
	api.GET("/active-calls", s.handleActiveCalls)
	api.POST("/end-call/:callId", s.handleEndCall)
	api.POST("/setup-crm", s.handleSetupCRM)
	api.GET("/call-logs", s.handleListCallLogs)
	api.GET("/call-logs/:callId", s.handleGetCallLog)

	if metricsHandler != nil {
		engine.GET("/metrics", gin.WrapH(metricsHandler))
	}
}

// handleWebhook runs the ingress detached from the request context so a
// client disconnect cannot abort a half-applied backend write.
func (s *Server) handleWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	req := core.InboundRequest{
		ProviderID: c.Param("provider"),
		Headers:    flattenHeaders(c.Request.Header),
		Body:       body,
		Metadata:   map[string]any{"remote_addr": c.ClientIP()},
		ReceivedAt: s.now(),
	}

	result, err := s.webhooks.Process(context.WithoutCancel(c.Request.Context()), req)
	status := result.StatusCode
	if status == 0 {
		status = core.HTTPStatus(err)
	}
	payload := result.Body
	if payload == nil {
		if err != nil {
			payload = map[string]any{"error": "internal server error"}
		} else {
			payload = map[string]any{"received": true}
		}
	}
	c.JSON(status, payload)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"activeCalls": s.calls.ActiveCallCount(),
		"timestamp":   s.now().UTC(),
	})
}

type createSessionBody struct {
	CallID    string         `json:"callId"`
	RoomName  string         `json:"roomName"`
	ContactID string         `json:"contactId"`
	RowNumber int            `json:"rowNumber"`
	Kind      string         `json:"kind"`
	Metadata  map[string]any `json:"metadata"`
}

func (b createSessionBody) request() core.CreateSessionRequest {
	kind := core.TargetKind(strings.ToLower(strings.TrimSpace(b.Kind)))
	if kind == "" {
		if b.RowNumber > 0 {
			kind = core.TargetKindSheet
		} else {
			kind = core.TargetKindCRM
		}
	}
	return core.CreateSessionRequest{
		CallID:   b.CallID,
		RoomName: b.RoomName,
		Target:   core.Target{Kind: kind, ContactID: b.ContactID, RowNumber: b.RowNumber},
		Metadata: b.Metadata,
	}
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var body createSessionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	collector := gocmd.NewResult[core.Session]()
	ctx := gocmd.ContextWithResult(c.Request.Context(), collector)
	if err := s.createSession.Execute(ctx, callcommand.CreateSessionMessage{Request: body.request()}); err != nil {
		s.writeError(c, err)
		return
	}
	session, _ := collector.Load()
	c.JSON(http.StatusCreated, session.Summary(s.now()))
}

func (s *Server) handleCallStatus(c *gin.Context) {
	summary, err := s.callStatus.Query(c.Request.Context(), callquery.GetCallStatusMessage{CallID: c.Param("callId")})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleActiveCalls(c *gin.Context) {
	calls, err := s.activeCalls.Query(c.Request.Context(), callquery.ListActiveCallsMessage{})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": calls, "count": len(calls)})
}

// handleEndCall answers success once the session is terminal, even if a
// backend write during finalization failed; that failure is logged.
func (s *Server) handleEndCall(c *gin.Context) {
	callID := c.Param("callId")
	collector := gocmd.NewResult[core.CallSummary]()
	ctx := gocmd.ContextWithResult(context.WithoutCancel(c.Request.Context()), collector)
	err := s.endCall.Execute(ctx, callcommand.EndCallMessage{CallID: callID, Reason: c.Query("reason")})
	summary, ended := collector.Load()
	if err != nil && !ended {
		s.writeError(c, err)
		return
	}
	if err != nil {
		core.LogWithFields(ctx, s.logger, "warn", "call ended with finalization errors", map[string]any{
			"call_id": callID,
			"error":   err.Error(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Call ended", "call": summary})
}

func (s *Server) handleSetupCRM(c *gin.Context) {
	collector := gocmd.NewResult[hubspot.SetupResult]()
	ctx := gocmd.ContextWithResult(c.Request.Context(), collector)
	if err := s.setupCRM.Execute(ctx, callcommand.SetupContactPropertiesMessage{}); err != nil {
		s.writeError(c, err)
		return
	}
	result, _ := collector.Load()
	c.JSON(http.StatusOK, gin.H{"success": true, "created": result.Created, "existing": result.Existing})
}

func (s *Server) handleListCallLogs(c *gin.Context) {
	if s.callLogs == nil {
		s.writeError(c, core.NewNotConfiguredError("server: call log archive is not configured", nil))
		return
	}
	filter := core.CallRecordFilter{
		TargetKind: core.TargetKind(strings.TrimSpace(c.Query("kind"))),
		Status:     core.SessionStatus(strings.TrimSpace(c.Query("status"))),
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		filter.Limit = limit
	}
	records, err := s.callLogs.Query(c.Request.Context(), callquery.ListCallLogsMessage{Filter: filter})
	if err != nil {
		s.writeError(c, err)
		return
	}
	views := make([]callLogView, 0, len(records))
	for _, record := range records {
		views = append(views, newCallLogView(record))
	}
	c.JSON(http.StatusOK, gin.H{"logs": views, "count": len(views)})
}

func (s *Server) handleGetCallLog(c *gin.Context) {
	if s.callLog == nil {
		s.writeError(c, core.NewNotConfiguredError("server: call log archive is not configured", nil))
		return
	}
	record, err := s.callLog.Query(c.Request.Context(), callquery.GetCallLogMessage{CallID: c.Param("callId")})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCallLogView(record))
}

func flattenHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) > 0 {
			out[key] = values[0]
		}
	}
	return out
}
