package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"group-chat-service/internal/auth"
	"group-chat-service/internal/models"
	"group-chat-service/internal/repositories"
)

var (
	ErrNotAdmin          = errors.New("not the group admin")
	ErrDuplicateInFlight = errors.New("duplicate send in flight")
	ErrInvalidKind       = errors.New("invalid message kind")
)

// Broadcaster is the live fan-out side of the engine, implemented by ws.Hub.
type Broadcaster interface {
	BroadcastMessage(msg models.GroupMessage, author models.User)
	BroadcastLike(state models.LikeState)
	BroadcastGroupDeleted(groupID int)
	EvictFromGroup(groupID, userID int)
}

// Engine coordinates dual-path writes: a message or like mutation issued via
// the REST surface or a live connection is persisted exactly once through the
// repositories and then handed to the broadcaster, so no live viewer misses
// an event created via the other path.
type Engine struct {
	groups   repositories.GroupRepository
	messages repositories.GroupMessageRepository
	hub      Broadcaster
	dedup    DedupStore
	locks    *groupLocks
	timeout  time.Duration
	log      *zap.Logger
}

// New constructs an Engine. dedup may be nil, in which case sends are
// at-most-once and dedup tokens are ignored.
func New(groups repositories.GroupRepository, messages repositories.GroupMessageRepository, hub Broadcaster, dedup DedupStore, timeout time.Duration, log *zap.Logger) *Engine {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Engine{
		groups:   groups,
		messages: messages,
		hub:      hub,
		dedup:    dedup,
		locks:    newGroupLocks(),
		timeout:  timeout,
		log:      log,
	}
}

// opCtx bounds every durable-storage call so nothing blocks indefinitely.
func (e *Engine) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.timeout)
}

func validKind(kind string) bool {
	switch kind {
	case models.KindText, models.KindImage, models.KindVideo, models.KindPDF, models.KindFile:
		return true
	}
	return false
}

// SendMessage persists a message once and broadcasts it to the group's room.
// With a dedup token and a configured store the operation is idempotent: a
// retry returns the original message without a second append or broadcast.
func (e *Engine) SendMessage(ctx context.Context, groupID int, author auth.Identity, content, kind string, file *models.FileMeta, dedupToken string) (models.GroupMessage, error) {
	if kind == "" {
		kind = models.KindText
	}
	if !validKind(kind) {
		return models.GroupMessage{}, ErrInvalidKind
	}

	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if dedupToken != "" && e.dedup != nil {
		existingID, fresh, err := e.dedup.Reserve(ctx, dedupToken)
		if err != nil {
			return models.GroupMessage{}, err
		}
		if !fresh {
			if existingID == 0 {
				return models.GroupMessage{}, ErrDuplicateInFlight
			}
			// already persisted and broadcast by the first attempt
			return e.messages.GetMessage(ctx, existingID)
		}
	}

	unlock := e.locks.lock(groupID)
	msg, err := e.messages.Append(ctx, groupID, author.UserID, author.Username, content, kind, file)
	unlock()
	if err != nil {
		if dedupToken != "" && e.dedup != nil {
			if relErr := e.dedup.Release(context.WithoutCancel(ctx), dedupToken); relErr != nil {
				e.log.Warn("dedup release failed", zap.String("token", dedupToken), zap.Error(relErr))
			}
		}
		return models.GroupMessage{}, err
	}

	if dedupToken != "" && e.dedup != nil {
		if err := e.dedup.Bind(context.WithoutCancel(ctx), dedupToken, msg.ID); err != nil {
			e.log.Warn("dedup bind failed", zap.String("token", dedupToken), zap.Error(err))
		}
	}

	e.hub.BroadcastMessage(msg, author.User())
	return msg, nil
}

// ToggleLike flips the caller's like on a message via an atomic storage
// operation and broadcasts the resulting state to the room.
func (e *Engine) ToggleLike(ctx context.Context, messageID, userID int) (models.LikeState, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	state, err := e.messages.ToggleLike(ctx, messageID, userID)
	if err != nil {
		return models.LikeState{}, err
	}

	e.hub.BroadcastLike(state)
	return state, nil
}

// JoinGroup adds the user to the membership set.
func (e *Engine) JoinGroup(ctx context.Context, groupID, userID int) error {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()
	return e.groups.AddMember(ctx, groupID, userID)
}

// RemoveMember removes the user from the membership set and evicts them from
// the live room in the same operation, preserving online ⊆ members.
func (e *Engine) RemoveMember(ctx context.Context, groupID, userID int) error {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if err := e.groups.RemoveMember(ctx, groupID, userID); err != nil {
		return err
	}
	e.hub.EvictFromGroup(groupID, userID)
	return nil
}

// DeleteGroup removes the group and its entire message log (admin only) and
// tears the live room down.
func (e *Engine) DeleteGroup(ctx context.Context, groupID, requesterID int) error {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	group, err := e.groups.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.AdminID != requesterID {
		return ErrNotAdmin
	}

	if err := e.groups.DeleteGroup(ctx, groupID); err != nil {
		return err
	}
	e.hub.BroadcastGroupDeleted(groupID)
	return nil
}

// UpdateGroup applies admin-only edits.
func (e *Engine) UpdateGroup(ctx context.Context, groupID, requesterID int, update models.GroupUpdate) (models.Group, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	group, err := e.groups.GetGroup(ctx, groupID)
	if err != nil {
		return models.Group{}, err
	}
	if group.AdminID != requesterID {
		return models.Group{}, ErrNotAdmin
	}

	return e.groups.UpdateGroup(ctx, groupID, update)
}

// IsMember reports group membership with the engine's storage timeout.
func (e *Engine) IsMember(ctx context.Context, groupID, userID int) (bool, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()
	return e.groups.IsMember(ctx, groupID, userID)
}
