package ws

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"group-chat-service/internal/auth"
	"group-chat-service/internal/engine"
	"group-chat-service/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades live connections. Authentication happens before the
// upgrade: a bad token aborts the connection before it is registered.
type Handler struct {
	hub      *Hub
	engine   *engine.Engine
	verifier auth.TokenVerifier
	rateLim  rate.Limit
	burst    int
	log      *zap.Logger
}

// NewHandler constructs a websocket Handler.
func NewHandler(hub *Hub, eng *engine.Engine, verifier auth.TokenVerifier, eventRate float64, eventBurst int, log *zap.Logger) *Handler {
	return &Handler{
		hub:      hub,
		engine:   eng,
		verifier: verifier,
		rateLim:  rate.Limit(eventRate),
		burst:    eventBurst,
		log:      log,
	}
}

// Handle upgrades and registers a live connection.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("group-chat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	identity, err := h.verifier.Verify(c.Request.Context(), token)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, auth.ErrUnknownUser) {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	connID := uuid.NewString()
	client := NewClient(connID, identity, conn, h.hub, h.engine, h.rateLim, h.burst, h.log)
	h.hub.Register(client)

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	connectedAt := time.Now()

	observability.IncWSEvent(observability.EventWSConnect)
	_ = observability.PublishEvent(ctx, "ws_events.groups", observability.ConnEnvelope(observability.EventWSConnect, observability.ConnEvent{
		ConnID: connID,
		UserID: identity.UserID,
		IP:     observability.IPFromRequest(c.Request),
	}), observability.BuildHeaders(requestID, traceID))

	go client.WritePump()
	go func() {
		client.ReadPump()
		observability.IncWSEvent(observability.EventWSDisconnect)
		_ = observability.PublishEvent(ctx, "ws_events.groups", observability.ConnEnvelope(observability.EventWSDisconnect, observability.ConnEvent{
			ConnID:     connID,
			UserID:     identity.UserID,
			DurationMS: time.Since(connectedAt).Milliseconds(),
		}), observability.BuildHeaders(requestID, traceID))
	}()
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		const prefix = "Bearer "
		if len(header) > len(prefix) && header[:len(prefix)] == prefix {
			return header[len(prefix):]
		}
		return ""
	}
	return c.Query("token")
}
