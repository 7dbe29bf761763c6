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
	"github.com/qcmhub/qcm-backend/internal/middleware"
	"github.com/qcmhub/qcm-backend/internal/response"
	"github.com/qcmhub/qcm-backend/internal/service"
	ws "github.com/qcmhub/qcm-backend/internal/websocket"
	"github.com/rs/zerolog"
)

const wsActionTimeout = 10 * time.Second

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

// WSHandler handles the student's attempt stream.
type WSHandler struct {
	attemptService *service.AttemptService
	scoringService *service.ScoringService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	attemptService *service.AttemptService,
	scoringService *service.ScoringService,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		scoringService: scoringService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/attempts/:id/stream?token=...
// Carries autosaves, the final submit and clock-sync pings for one attempt.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// Refuse the upgrade for attempts the caller cannot use.
	state, err := h.attemptService.GetState(c.Request.Context(), caller, attemptID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", caller.UserID).
		Str("attempt_id", attemptID.String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	readWait := ws.ReadWait(state.ExamConfig.SecondsPerQuestion)
	for {
		raw, err := ws.ReadMessage(conn, readWait)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var msg ws.RequestPayload
		if err := json.Unmarshal(raw, &msg); err != nil {
			wsLog.Debug().Err(err).Msg("Malformed message")
			_ = ws.WriteError(conn, string(response.ErrInvalidPayload), "message is not a valid stream action")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), wsActionTimeout)
		done := h.dispatch(ctx, conn, wsLog, caller, attemptID, &msg)
		cancel()
		if done {
			return
		}
	}
}

// dispatch handles one client message and reports whether the stream is finished.
func (h *WSHandler) dispatch(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, caller service.Caller, attemptID uuid.UUID, msg *ws.RequestPayload) bool {
	switch msg.Action {
	case ws.ActionAutosave:
		h.handleAutosave(ctx, conn, caller, attemptID, msg)
		return false
	case ws.ActionSubmit:
		return h.handleSubmit(ctx, conn, wsLog, caller, attemptID, msg)
	case ws.ActionPing:
		return h.handlePing(ctx, conn, caller, attemptID)
	default:
		wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		_ = ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		return false
	}
}

func (h *WSHandler) handleAutosave(ctx context.Context, conn *websocket.Conn, caller service.Caller, attemptID uuid.UUID, msg *ws.RequestPayload) {
	questionID, err := uuid.Parse(msg.QuestionID)
	if err != nil || msg.SelectedIndex == nil || *msg.SelectedIndex < 0 {
		_ = ws.WriteError(conn, string(response.ErrValidation), "q_id must be a uuid and ans a non-negative index")
		return
	}

	if err := h.attemptService.SaveAnswer(ctx, caller, attemptID, questionID, *msg.SelectedIndex); err != nil {
		h.writeServiceError(conn, err)
		return
	}
	_ = ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, QuestionID: msg.QuestionID})
}

func (h *WSHandler) handleSubmit(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, caller service.Caller, attemptID uuid.UUID, msg *ws.RequestPayload) bool {
	result, err := h.scoringService.Submit(ctx, caller, attemptID, msg.Answers)
	if err != nil {
		h.writeServiceError(conn, err)
		return false
	}

	wsLog.Info().Float64("score", result.Score).Int("correct", result.CorrectCount).Msg("Attempt submitted over stream")
	_ = ws.WriteTyped(conn, ws.GradedResponse{Event: ws.EventGraded, Result: result})
	return true
}

// handlePing answers with the recomputed clock so the client can correct drift.
func (h *WSHandler) handlePing(ctx context.Context, conn *websocket.Conn, caller service.Caller, attemptID uuid.UUID) bool {
	state, err := h.attemptService.GetState(ctx, caller, attemptID)
	if err != nil {
		h.writeServiceError(conn, err)
		return false
	}
	_ = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong, ExamConfig: state.ExamConfig})
	return false
}

func (h *WSHandler) writeServiceError(conn *websocket.Conn, err error) {
	_, code := classify(err)
	msg := response.GetMessage(code)
	if code == response.ErrInternal || code == response.ErrStorageFailure {
		h.log.Error().Err(err).Msg("Stream action failed")
	}
	_ = ws.WriteError(conn, string(code), msg)
}
