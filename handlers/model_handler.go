package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// modelInfo is one selectable playground model.
type modelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var availableModels = []modelInfo{
	{ID: "mistralai/devstral-2512:free", Name: "Mistral Devstral (Free)"},
	{ID: "z-ai/glm-4.5-air:free", Name: "GLM 4.5 Air (Free)"},
	{ID: "anthropic/claude-haiku-4.5", Name: "Claude 4.5 Haiku"},
	{ID: "x-ai/grok-4.1-fast", Name: "Grok 4.1 Fast"},
	{ID: "google/gemini-2.5-flash-lite", Name: "Gemini 2.5 flash lite"},
	{ID: "openai/gpt-5-mini", Name: "GPT-5 Mini"},
	{ID: "moonshotai/kimi-k2-0905", Name: "Kimi K2 0905"},
}

type ModelHandler struct {
	defaultModel string
}

func NewModelHandler(defaultModel string) *ModelHandler {
	return &ModelHandler{defaultModel: defaultModel}
}

// HandleList returns the model catalog the playground UI offers.
func (h *ModelHandler) HandleList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models":  availableModels,
		"default": h.defaultModel,
	})
}
