package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"group-chat-service/internal/directory"
	"group-chat-service/internal/engine"
	"group-chat-service/internal/models"
	"group-chat-service/internal/repositories"
	"group-chat-service/internal/telemetry"
)

// onlineProvider exposes the live online snapshot for a group.
type onlineProvider interface {
	Online(groupID int) []models.User
}

// GroupHandler manages group endpoints.
type GroupHandler struct {
	groups repositories.GroupRepository
	eng    *engine.Engine
	dir    directory.Directory
	online onlineProvider
	audit  *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(groups repositories.GroupRepository, eng *engine.Engine, dir directory.Directory, online onlineProvider, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{groups: groups, eng: eng, dir: dir, online: online, audit: audit}
}

// CreateGroup handles POST /api/groups. The creator becomes admin and sole
// initial member.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Privacy     string `json:"privacy"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Privacy == "" {
		req.Privacy = models.PrivacyPublic
	}
	if req.Privacy != models.PrivacyPublic && req.Privacy != models.PrivacyPrivate {
		c.JSON(http.StatusBadRequest, gin.H{"error": "privacy must be public or private"})
		return
	}
	if req.Category == "" {
		req.Category = "General"
	}

	group, err := h.groups.CreateGroup(c.Request.Context(), identity.UserID, req.Name, req.Description, req.Category, req.Privacy)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
		return
	}

	h.emitAudit(c, "INFO", "Group created")
	c.JSON(http.StatusCreated, gin.H{"group": group})
}

// ListGroups returns public groups plus private groups the caller belongs to.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	groups, err := h.groups.ListVisibleGroups(c.Request.Context(), identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// ListUserGroups handles GET /api/users/:user_id/groups: the groups the user
// belongs to. Callers may only list their own memberships.
func (h *GroupHandler) ListUserGroups(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if userID != identity.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "may only list own groups"})
		return
	}

	groups, err := h.groups.ListMemberGroups(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GetGroup returns group detail with member list and online snapshot.
// Private groups are membership-gated.
func (h *GroupHandler) GetGroup(c *gin.Context) {
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

	member, err := h.groups.IsMember(c.Request.Context(), groupID, identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return
	}
	if group.Privacy == models.PrivacyPrivate && !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied to private group"})
		return
	}

	memberIDs, err := h.groups.ListMemberIDs(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load members"})
		return
	}

	detail := models.GroupDetail{
		Group:         group,
		Members:       make([]models.User, 0, len(memberIDs)),
		OnlineMembers: []models.User{},
	}
	for _, id := range memberIDs {
		user, err := h.dir.GetUser(c.Request.Context(), id)
		if err != nil {
			user = models.User{ID: id}
		}
		detail.Members = append(detail.Members, user)
	}
	if h.online != nil {
		detail.OnlineMembers = h.online.Online(groupID)
	}

	c.JSON(http.StatusOK, gin.H{"group": detail})
}

// JoinGroup handles POST /api/groups/:group_id/join.
func (h *GroupHandler) JoinGroup(c *gin.Context) {
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	if err := h.eng.JoinGroup(c.Request.Context(), groupID, identity.UserID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrGroupNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		case errors.Is(err, repositories.ErrAlreadyMember):
			c.JSON(http.StatusBadRequest, gin.H{"error": "already a member"})
		default:
			h.emitAudit(c, "ERROR", "internal error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join group"})
		}
		return
	}

	h.emitAudit(c, "INFO", "Group joined")
	c.JSON(http.StatusOK, gin.H{"message": "joined group"})
}

// LeaveGroup handles POST /api/groups/:group_id/leave. The admin cannot
// leave its own group.
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	h.removeMember(c, groupID, identity.UserID)
}

// RemoveMember handles DELETE /api/groups/:group_id/members/:user_id.
// Callers may remove themselves; removing anyone else requires admin.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}
	targetID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if targetID != identity.UserID {
		group, err := h.groups.GetGroup(c.Request.Context(), groupID)
		if err != nil {
			if errors.Is(err, repositories.ErrGroupNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load group"})
			return
		}
		if group.AdminID != identity.UserID {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the admin may remove members"})
			return
		}
	}

	h.removeMember(c, groupID, targetID)
}

func (h *GroupHandler) removeMember(c *gin.Context, groupID, userID int) {
	if err := h.eng.RemoveMember(c.Request.Context(), groupID, userID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrGroupNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		case errors.Is(err, repositories.ErrMemberIsAdmin):
			c.JSON(http.StatusBadRequest, gin.H{"error": "admin cannot be removed"})
		case errors.Is(err, repositories.ErrNotMember):
			c.JSON(http.StatusBadRequest, gin.H{"error": "not a member"})
		default:
			h.emitAudit(c, "ERROR", "internal error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove member"})
		}
		return
	}

	h.emitAudit(c, "INFO", "Group member removed")
	c.JSON(http.StatusOK, gin.H{"message": "left group"})
}

// UpdateGroup handles PUT /api/groups/:group_id (admin only).
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	var update models.GroupUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if update.Privacy != nil && *update.Privacy != models.PrivacyPublic && *update.Privacy != models.PrivacyPrivate {
		c.JSON(http.StatusBadRequest, gin.H{"error": "privacy must be public or private"})
		return
	}

	group, err := h.eng.UpdateGroup(c.Request.Context(), groupID, identity.UserID, update)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrGroupNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		case errors.Is(err, engine.ErrNotAdmin):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the admin may update the group"})
		default:
			h.emitAudit(c, "ERROR", "internal error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update group"})
		}
		return
	}

	h.emitAudit(c, "INFO", "Group updated")
	c.JSON(http.StatusOK, gin.H{"group": group})
}

// DeleteGroup handles DELETE /api/groups/:group_id (admin only); the entire
// message log cascades.
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	groupID, ok := groupIDParam(c)
	if !ok {
		return
	}
	identity, ok := callerIdentity(c)
	if !ok {
		return
	}

	if err := h.eng.DeleteGroup(c.Request.Context(), groupID, identity.UserID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrGroupNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		case errors.Is(err, engine.ErrNotAdmin):
			c.JSON(http.StatusForbidden, gin.H{"error": "only the admin may delete the group"})
		default:
			h.emitAudit(c, "ERROR", "internal error")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete group"})
		}
		return
	}

	h.emitAudit(c, "INFO", "Group deleted")
	c.Status(http.StatusNoContent)
}

func (h *GroupHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	identity, _ := middlewareIdentity(c)
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), auditUserID(identity))
}
