package handlers

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nkoval/supportkb/db"
	"github.com/nkoval/supportkb/kb"
	"github.com/nkoval/supportkb/services"
)

const maxTitleRuneLength = 60

type ChatHandler struct {
	store  *db.Postgres
	kb     *kb.Store
	relay  *services.RelayService
	logger *zap.SugaredLogger
}

func NewChatHandler(store *db.Postgres, kbStore *kb.Store, relay *services.RelayService, logger *zap.SugaredLogger) *ChatHandler {
	return &ChatHandler{store: store, kb: kbStore, relay: relay, logger: logger}
}

type chatMessagePayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequestPayload struct {
	Messages       []chatMessagePayload `json:"messages"`
	Model          string               `json:"model"`
	ClientID       string               `json:"client_id"`
	ConversationID string               `json:"conversation_id"`
}

// HandleChat matches the last user message against the KB, forwards the
// history upstream and streams the reply back as plain text. When the caller
// supplies a client_id the exchange is persisted; persistence failures are
// logged but never fail the chat.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	var payload chatRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload", "detail": err.Error()})
		return
	}

	messages := normalizeChatMessages(payload.Messages)
	if len(messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one message is required"})
		return
	}

	last := messages[len(messages)-1]
	if strings.ToLower(last.Role) != "user" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "last message must be from user"})
		return
	}

	match := h.kb.FindMatch(last.Content)
	if match != nil {
		h.logger.Infof("kb match: %s (%s)", match.ID, match.Category)
	}

	model := strings.TrimSpace(payload.Model)
	if model == "" {
		model = h.relay.DefaultModel()
	}

	conversationID := h.persistUserMessage(c, payload, last.Content, model, match)
	if conversationID != "" {
		c.Header("X-Conversation-Id", conversationID)
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")

	reply, err := h.relay.Relay(c.Request.Context(), c.Writer, services.RelayRequest{
		Messages: messages,
		Model:    model,
		Match:    match,
	})
	if err != nil {
		h.logger.Warnf("chat relay failed: %v", err)
		if reply == "" && !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process chat request"})
		}
		return
	}

	if conversationID != "" && reply != "" {
		if _, err := h.store.AppendMessage(c.Request.Context(), conversationID, "assistant", reply, nil); err != nil {
			h.logger.Warnf("persist assistant message: %v", err)
		}
	}
}

// persistUserMessage creates or reuses a conversation and records the user
// turn. Returns the conversation id, or "" when persistence is off for this
// request.
func (h *ChatHandler) persistUserMessage(c *gin.Context, payload chatRequestPayload, userContent, model string, match *kb.Entry) string {
	clientID := strings.TrimSpace(payload.ClientID)
	if clientID == "" || h.store == nil {
		return ""
	}

	ctx := c.Request.Context()

	conversationID := strings.TrimSpace(payload.ConversationID)
	if conversationID == "" {
		conv, err := h.store.CreateConversation(ctx, clientID, truncateTitle(userContent), model)
		if err != nil {
			h.logger.Warnf("create conversation: %v", err)
			return ""
		}
		conversationID = conv.ID
	}

	var kbMatchID *string
	if match != nil {
		id := match.ID
		kbMatchID = &id
	}

	if _, err := h.store.AppendMessage(ctx, conversationID, "user", userContent, kbMatchID); err != nil {
		h.logger.Warnf("persist user message: %v", err)
		return ""
	}

	return conversationID
}

func normalizeChatMessages(payload []chatMessagePayload) []services.ChatMessage {
	result := make([]services.ChatMessage, 0, len(payload))
	for _, msg := range payload {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		role := strings.TrimSpace(msg.Role)
		if role == "" {
			role = "user"
		}
		result = append(result, services.ChatMessage{Role: role, Content: content})
	}
	return result
}

func truncateTitle(input string) string {
	input = strings.TrimSpace(input)
	if utf8.RuneCountInString(input) <= maxTitleRuneLength {
		return input
	}

	runes := []rune(input)
	return string(runes[:maxTitleRuneLength]) + "…"
}
