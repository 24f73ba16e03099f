package ws

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"group-chat-service/internal/auth"
	"group-chat-service/internal/engine"
	"group-chat-service/internal/observability"
	"group-chat-service/internal/repositories"
)

type capturePublisher struct {
	envelopes []observability.EventEnvelope
}

func (p *capturePublisher) PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	if env, ok := message.(observability.EventEnvelope); ok {
		p.envelopes = append(p.envelopes, env)
	}
	return nil
}

func TestSendErrorReachesOriginOnly(t *testing.T) {
	pub := &capturePublisher{}
	observability.SetPublisher(pub)
	defer observability.SetPublisher(nil)

	c := &Client{
		id:       "c1",
		identity: auth.Identity{UserID: 7, Username: "alice"},
		send:     make(chan *ServerEvent, 4),
		log:      zap.NewNop(),
	}

	c.sendError("not a member of this group")

	select {
	case ev := <-c.send:
		if ev.Type != EventError || ev.Error != "not a member of this group" {
			t.Fatalf("unexpected event %+v", ev)
		}
	default:
		t.Fatalf("expected an error event queued to the origin connection")
	}

	if len(pub.envelopes) != 1 {
		t.Fatalf("expected one published envelope, got %d", len(pub.envelopes))
	}
	env := pub.envelopes[0]
	if env.EventName != observability.EventWSError || env.EventType != "ws_events" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if env.Payload.ConnID != "c1" || env.Payload.UserID != 7 || env.Payload.Error != "not a member of this group" {
		t.Fatalf("unexpected payload %+v", env.Payload)
	}
}

func TestSendErrorMessageMapping(t *testing.T) {
	cases := map[error]string{
		repositories.ErrNotMember:     "not a member of this group",
		repositories.ErrGroupNotFound: "group not found",
		engine.ErrDuplicateInFlight:   "duplicate send in flight",
		engine.ErrInvalidKind:         "invalid message kind",
		errors.New("boom"):            "failed to send message",
	}
	for err, want := range cases {
		if got := sendErrorMessage(err); got != want {
			t.Fatalf("sendErrorMessage(%v) = %q, want %q", err, got, want)
		}
	}
}
