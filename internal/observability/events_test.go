package observability

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnEnvelope(t *testing.T) {
	env := ConnEnvelope(EventWSConnect, ConnEvent{ConnID: "c1", UserID: 7, IP: "10.0.0.1"})
	require.Equal(t, "ws_events", env.EventType)
	require.Equal(t, EventWSConnect, env.EventName)
	require.Equal(t, "c1", env.Payload.ConnID)
	require.Equal(t, 7, env.Payload.UserID)
}

func TestBuildHeaders(t *testing.T) {
	headers := BuildHeaders("req-1", "trace-1")
	require.Equal(t, map[string]string{"x-request-id": "req-1", "trace_id": "trace-1"}, headers)

	require.Empty(t, BuildHeaders("", ""))
}

func TestIPFromRequest(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "/ws", nil)
	require.NoError(t, err)
	r.RemoteAddr = "192.168.1.5:51234"
	require.Equal(t, "192.168.1.5", IPFromRequest(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "203.0.113.9", IPFromRequest(r))
}

func TestPublishEventWithoutPublisher(t *testing.T) {
	SetPublisher(nil)
	err := PublishEvent(context.Background(), "ws_events.groups", ConnEnvelope(EventWSError, ConnEvent{}), nil)
	require.NoError(t, err)
}
