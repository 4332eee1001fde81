package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nkoval/supportkb/db"
)

type ConversationHandler struct {
	store         *db.Postgres
	adminPassword string
	logger        *zap.SugaredLogger
}

func NewConversationHandler(store *db.Postgres, adminPassword string, logger *zap.SugaredLogger) *ConversationHandler {
	return &ConversationHandler{store: store, adminPassword: adminPassword, logger: logger}
}

// HandleGet serves the admin read surface: without an id it lists every
// conversation with message counts, with an id it returns one conversation
// plus its full message history. Both forms require the shared secret.
func (h *ConversationHandler) HandleGet(c *gin.Context) {
	if !h.authorize(c) {
		return
	}

	id := strings.TrimSpace(c.Query("id"))
	if id != "" {
		h.getOne(c, id)
		return
	}

	conversations, err := h.store.ListConversations(c.Request.Context())
	if err != nil {
		h.logger.Warnf("list conversations: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (h *ConversationHandler) getOne(c *gin.Context, id string) {
	conversation, messages, err := h.store.GetConversation(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		h.logger.Warnf("fetch conversation %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conversation, "messages": messages})
}

// HandleDelete removes a conversation and, through the store's referential
// integrity, all of its messages.
func (h *ConversationHandler) HandleDelete(c *gin.Context) {
	if !h.authorize(c) {
		return
	}

	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id required"})
		return
	}

	if err := h.store.DeleteConversation(c.Request.Context(), id); err != nil {
		if errors.Is(err, db.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		h.logger.Warnf("delete conversation %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// authorize checks the shared admin secret. The same check guards every
// administrative read and delete; a missing password is indistinguishable
// from a wrong one.
func (h *ConversationHandler) authorize(c *gin.Context) bool {
	supplied := c.Query("admin_password")
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(h.adminPassword)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return false
	}
	return true
}
