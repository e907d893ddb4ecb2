package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
	ws "github.com/stemsi/exstem-quiz/internal/websocket"
)

// wsOpTimeout bounds one autosave or submit issued over the socket.
const wsOpTimeout = 10 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the WebSocket exam stream.
type WSHandler struct {
	examService   *service.ExamService
	answerService *service.AnswerService
	log           zerolog.Logger
	upgrader      websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(examService *service.ExamService, answerService *service.AnswerService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		examService:   examService,
		answerService: answerService,
		log:           log.With().Str("component", "ws_handler").Logger(),
		upgrader:      buildUpgrader(allowedOrigins),
	}
}

// ExamWebSocketStream godoc
// WS /ws/v1/exams/:exam_id/stream
// Carries autosave and submit with the same semantics as the REST routes.
func (h *WSHandler) ExamWebSocketStream(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}
	caller := middleware.GetCaller(c)

	// Reject before upgrading so the client sees a normal HTTP error.
	if _, err := h.examService.Get(c.Request.Context(), examID, caller); err != nil {
		failFromError(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", caller.ID).
		Str("exam_id", examID.String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	for {
		var raw json.RawMessage
		if err := ws.ReadJSON(conn, &raw); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var env ws.RequestEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			_ = ws.WriteError(conn, "malformed message")
			continue
		}

		switch env.Action {
		case ws.ActionAutosave:
			h.handleAutosave(conn, wsLog, examID, caller, raw)
		case ws.ActionSubmit:
			if h.handleSubmit(conn, wsLog, examID, caller, raw) {
				return
			}
		case ws.ActionPing:
			_ = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(env.Action)).Msg("Unknown action")
			_ = ws.WriteError(conn, "unknown action: "+string(env.Action))
		}
	}
}

func (h *WSHandler) handleAutosave(conn *websocket.Conn, wsLog zerolog.Logger, examID uuid.UUID, caller model.CallerIdentity, raw json.RawMessage) {
	var msg ws.AutosaveRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		_ = ws.WriteError(conn, "invalid autosave payload")
		return
	}
	if fields := validator.Validate(&msg); fields != nil {
		writeValidationError(conn, fields)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()

	sess, err := h.answerService.Autosave(ctx, examID, caller, model.AutosaveRequest{Answers: msg.Answers, Seq: msg.Seq})
	if err != nil {
		h.writeServiceError(conn, wsLog, err)
		return
	}
	_ = ws.WriteTyped(conn, ws.AutosaveResponse{Event: ws.EventSaved, Seq: sess.Seq})
}

// handleSubmit reports whether the stream is finished.
func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, examID uuid.UUID, caller model.CallerIdentity, raw json.RawMessage) bool {
	var msg ws.SubmitRequest
	if err := json.Unmarshal(raw, &msg); err != nil {
		_ = ws.WriteError(conn, "invalid submit payload")
		return false
	}
	if fields := validator.Validate(&msg); fields != nil {
		writeValidationError(conn, fields)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsOpTimeout)
	defer cancel()

	res, err := h.answerService.Submit(ctx, examID, caller, msg.Answers)
	if err != nil {
		h.writeServiceError(conn, wsLog, err)
		return false
	}
	_ = ws.WriteTyped(conn, ws.GradedResponse{Event: ws.EventGraded, Status: string(res.Result.GradingStatus), Score: res.Score})
	return true
}

func (h *WSHandler) writeServiceError(conn *websocket.Conn, wsLog zerolog.Logger, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		wsLog.Error().Err(err).Msg("WebSocket operation failed")
	}
	// Only the catalogue message leaves the server; wrapped store errors stay in the log.
	_ = ws.WriteTyped(conn, ws.ErrorResponse{Event: ws.EventError, Code: string(code), Error: response.GetMessage(code)})
}

func writeValidationError(conn *websocket.Conn, fields map[string]string) {
	_ = ws.WriteTyped(conn, ws.ErrorResponse{
		Event:  ws.EventError,
		Code:   string(response.ErrValidation),
		Error:  response.GetMessage(response.ErrValidation),
		Fields: fields,
	})
}
