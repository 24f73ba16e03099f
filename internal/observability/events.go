package observability

import (
	"net"
	"net/http"
	"strings"
)

// Connection lifecycle event names published to the topic exchange.
const (
	EventWSConnect    = "ws_connect"
	EventWSDisconnect = "ws_disconnect"
	EventWSError      = "ws_error"
)

// ConnEvent describes a single websocket lifecycle transition.
type ConnEvent struct {
	ConnID     string `json:"conn_id"`
	UserID     int    `json:"user_id"`
	IP         string `json:"ip,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// EventEnvelope is the bus schema for connection events.
type EventEnvelope struct {
	EventType string    `json:"event_type"`
	EventName string    `json:"event_name"`
	Payload   ConnEvent `json:"payload"`
}

// ConnEnvelope wraps a connection event for publishing.
func ConnEnvelope(name string, payload ConnEvent) EventEnvelope {
	return EventEnvelope{EventType: "ws_events", EventName: name, Payload: payload}
}

// BuildHeaders carries request and trace correlation ids as AMQP headers.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

// RequestIDFromRequest extracts the upstream correlation id, if any.
func RequestIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Request-Id")
}

// IPFromRequest returns the originating client address, preferring the first
// X-Forwarded-For hop when the service sits behind a proxy.
func IPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
