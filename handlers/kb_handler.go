package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nkoval/supportkb/kb"
)

type KBHandler struct {
	admin  *kb.Admin
	logger *zap.SugaredLogger
}

func NewKBHandler(admin *kb.Admin, logger *zap.SugaredLogger) *KBHandler {
	return &KBHandler{admin: admin, logger: logger}
}

// HandleList returns every entry flattened across category files.
func (h *KBHandler) HandleList(c *gin.Context) {
	entries, err := h.admin.ListAll()
	if err != nil {
		h.logger.Warnf("list kb entries: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load entries"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// HandleSave upserts an entry from the request body. POST and PUT behave
// identically, matching the editor UI's usage.
func (h *KBHandler) HandleSave(c *gin.Context) {
	var entry kb.Entry
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry payload", "detail": err.Error()})
		return
	}

	if strings.TrimSpace(entry.ID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entry id is required"})
		return
	}

	if err := h.admin.Save(entry); err != nil {
		if kb.IsUnknownCategory(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Warnf("save kb entry %s: %v", entry.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save entry"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleDelete removes the entry with the given id from every category file.
func (h *KBHandler) HandleDelete(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}

	if err := h.admin.Delete(id); err != nil {
		h.logger.Warnf("delete kb entry %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete entry"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
