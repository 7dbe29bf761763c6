package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/qcmhub/qcm-backend/internal/middleware"
	"github.com/qcmhub/qcm-backend/internal/model"
	"github.com/qcmhub/qcm-backend/internal/repository"
	"github.com/qcmhub/qcm-backend/internal/response"
	"github.com/qcmhub/qcm-backend/internal/service"
	"github.com/rs/zerolog"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams the live tracking view to the session owner.
type MonitorHandler struct {
	trackingService *service.TrackingService
	monitorRepo     *repository.MonitorRepository
	log             zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(
	trackingService *service.TrackingService,
	monitorRepo *repository.MonitorRepository,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		trackingService: trackingService,
		monitorRepo:     monitorRepo,
		log:             log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorSessionSSE godoc
// GET /api/v1/exams/:id/monitor
// Sends a snapshot, then a fresh one whenever a student joins or submits and
// at least every 15s so remaining times keep counting down.
func (h *MonitorHandler) MonitorSessionSSE(c *gin.Context) {
	caller, ok := middleware.GetCaller(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reqCtx := c.Request.Context()

	// Ownership and existence are checked here, before any SSE bytes go out.
	rows, err := h.trackingService.Track(reqCtx, caller, sessionID)
	if err != nil {
		failWithError(c, h.log, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	h.sendSnapshot(c, "snapshot", rows)

	pubsub := h.monitorRepo.Subscribe(reqCtx, sessionID)
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()
	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	log := h.log.With().Str("session_id", sessionID.String()).Int("owner_id", caller.UserID).Logger()
	log.Info().Msg("Owner attached to live monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			log.Info().Msg("Owner disconnected from live monitor SSE")
			return

		case msg, open := <-ch:
			if !open {
				return
			}
			// Forward the raw event, then the view it changed.
			c.SSEvent("event", rawJSON(msg.Payload))
			c.Writer.Flush()
			h.refresh(c, reqCtx, caller, sessionID)

		case <-refreshTicker.C:
			h.refresh(c, reqCtx, caller, sessionID)

		case <-keepAliveTicker.C:
			c.SSEvent("ping", gin.H{"type": "ping"})
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) refresh(c *gin.Context, parent context.Context, caller service.Caller, sessionID uuid.UUID) {
	ctx, cancel := context.WithTimeout(parent, refreshTimeout)
	defer cancel()

	rows, err := h.trackingService.Track(ctx, caller, sessionID)
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Failed to refresh live view")
		return
	}
	h.sendSnapshot(c, "refresh", rows)
}

func (h *MonitorHandler) sendSnapshot(c *gin.Context, kind string, rows []model.LiveAttempt) {
	c.SSEvent("message", gin.H{
		"type":     kind,
		"attempts": rows,
	})
	c.Writer.Flush()
}

// rawJSON lets an already-encoded payload pass through SSEvent unchanged.
type rawJSON string

func (r rawJSON) MarshalJSON() ([]byte, error) {
	return []byte(r), nil
}
