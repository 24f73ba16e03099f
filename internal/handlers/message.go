package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"group-chat-service/internal/engine"
	"group-chat-service/internal/filestore"
	"group-chat-service/internal/models"
	"group-chat-service/internal/repositories"
	"group-chat-service/internal/telemetry"
)

const defaultPageLimit = 50

// MessageHandler manages the message log endpoints.
type MessageHandler struct {
	groups    repositories.GroupRepository
	messages  repositories.GroupMessageRepository
	eng       *engine.Engine
	files     filestore.Store
	audit     *telemetry.AuditEmitter
	maxUpload int64
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(groups repositories.GroupRepository, messages repositories.GroupMessageRepository, eng *engine.Engine, files filestore.Store, audit *telemetry.AuditEmitter, maxUpload int64) *MessageHandler {
	return &MessageHandler{
		groups:    groups,
		messages:  messages,
		eng:       eng,
		files:     files,
		audit:     audit,
		maxUpload: maxUpload,
	}
}

// ListMessages handles GET /api/groups/:group_id/messages. Pages are fetched
// newest-first by id cursor and returned oldest-first. Public groups are
// readable without membership; private groups are not.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	group, err := h.groups.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
		return
	}

	if group.Privacy == models.PrivacyPrivate {
		member, err := h.groups.IsMember(c.Request.Context(), groupID, identity.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
			return
		}
		if !member {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied to private group"})
			return
		}
	}

	beforeID, _ := strconv.Atoi(c.DefaultQuery("before_id", "0"))
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if err != nil || limit <= 0 || limit > 200 {
		limit = defaultPageLimit
	}

	msgs, err := h.messages.Page(c.Request.Context(), groupID, identity.UserID, beforeID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	total, err := h.messages.Count(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	// cursor for the next (older) page is the oldest id in this one
	nextCursor := 0
	if len(msgs) > 0 {
		nextCursor = msgs[0].ID
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": msgs,
		"pagination": gin.H{
			"total":       total,
			"next_cursor": nextCursor,
		},
	})
}

// PostMessage handles POST /api/groups/:group_id/messages: the request-path
// half of the dual-path write. The engine persists once and broadcasts to
// every live connection in the room.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req struct {
		Content    string `json:"content" binding:"required"`
		Kind       string `json:"kind"`
		DedupToken string `json:"dedup_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.eng.SendMessage(c.Request.Context(), groupID, identity, req.Content, req.Kind, nil, req.DedupToken)
	if err != nil {
		h.respondSendError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Group message sent")
	c.JSON(http.StatusCreated, msg)
}

// UploadMessage handles POST /api/groups/:group_id/upload: stores the
// attachment, then appends and broadcasts a file message.
func (h *MessageHandler) UploadMessage(c *gin.Context) {
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	member, err := h.groups.IsMember(c.Request.Context(), groupID, identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file"})
		return
	}
	if header.Size > h.maxUpload {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !filestore.AllowedContentType(contentType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only images, videos and PDFs allowed"})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read file"})
		return
	}
	defer f.Close()

	meta, err := h.files.Save(c.Request.Context(), groupID, header.Filename, f)
	if err != nil {
		h.emitAudit(c, "ERROR", "file store failure")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}

	kind := filestore.KindFromContentType(contentType)
	msg, err := h.eng.SendMessage(c.Request.Context(), groupID, identity, header.Filename, kind, &meta, c.PostForm("dedup_token"))
	if err != nil {
		h.respondSendError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Group file message sent")
	c.JSON(http.StatusCreated, msg)
}

// ToggleLike handles POST /api/groups/messages/:message_id/like: the
// request-path half of the like dual-path write.
func (h *MessageHandler) ToggleLike(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	state, err := h.eng.ToggleLike(c.Request.Context(), messageID, identity.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to like message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"likes":    state.Count,
		"is_liked": state.Likes(identity.UserID),
	})
}

func (h *MessageHandler) respondSendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
	case errors.Is(err, repositories.ErrGroupNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
	case errors.Is(err, engine.ErrInvalidKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message kind"})
	case errors.Is(err, engine.ErrDuplicateInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate send in flight"})
	default:
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
	}
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	identity, _ := middlewareIdentity(c)
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), auditUserID(identity))
}
