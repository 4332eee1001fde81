package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nkoval/supportkb/config"
	"github.com/nkoval/supportkb/kb"
	"go.uber.org/zap"
)

const defaultTemperature = 0.7

// ChatMessage mirrors OpenAI-compatible chat message payloads.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RelayRequest describes one playground completion to forward upstream.
type RelayRequest struct {
	Messages []ChatMessage
	Model    string
	Match    *kb.Entry
}

// RelayService forwards chat history to OpenRouter's completion API and
// re-emits the streamed tokens as flat text.
type RelayService struct {
	baseURL string
	apiKey  string
	referer string
	title   string
	model   string
	prompt  string
	client  httpDoer
	logger  *zap.SugaredLogger
}

// NewRelayService constructs a RelayService initialized from cfg. The base
// system prompt comes from the KB store's startup snapshot.
func NewRelayService(cfg *config.Config, systemPrompt string, logger *zap.SugaredLogger) *RelayService {
	base := strings.TrimRight(cfg.OpenRouterBaseURL, "/")
	if base == "" {
		base = "https://openrouter.ai/api/v1"
	}

	return &RelayService{
		baseURL: base,
		apiKey:  cfg.OpenRouterAPIKey,
		referer: cfg.OpenRouterReferer,
		title:   cfg.OpenRouterTitle,
		model:   cfg.DefaultModel,
		prompt:  systemPrompt,
		client:  newDefaultHTTPClient(),
		logger:  logger,
	}
}

// DefaultModel returns the model used when a request names none.
func (s *RelayService) DefaultModel() string {
	return s.model
}

// BuildContext formats the KB block appended to the system prompt: the
// matched entry's answer plus optional followup, or the generic fallback
// instruction when nothing matched.
func BuildContext(match *kb.Entry) string {
	if match == nil {
		return "\n\nВ базе знаний нет точного ответа. Постарайся помочь или предложи связаться с поддержкой."
	}

	ctx := "\n\nОтвет из базы знаний:\n" + match.Answer
	if match.Followup != "" {
		ctx += "\n\nДополнительно: " + match.Followup
	}

	return ctx
}

// Relay submits the request upstream and copies the decoded token stream to
// w, flushing after each fragment when w supports it. It returns the full
// concatenated text so the caller can persist the assistant reply. A dropped
// upstream connection mid-stream ends the copy without a distinct truncation
// signal: whatever was already written stands.
func (s *RelayService) Relay(ctx context.Context, w io.Writer, req RelayRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("messages are required")
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = s.model
	}

	outbound := make([]ChatMessage, 0, 1+len(req.Messages))
	outbound = append(outbound, ChatMessage{Role: "system", Content: s.prompt + BuildContext(req.Match)})
	outbound = append(outbound, req.Messages...)

	payload := completionRequest{
		Model:       model,
		Messages:    outbound,
		Temperature: defaultTemperature,
		Stream:      true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	endpoint := s.baseURL + "/chat/completions"
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}

	request.Header.Set("Authorization", "Bearer "+s.apiKey)
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("HTTP-Referer", s.referer)
	request.Header.Set("X-Title", s.title)

	response, err := s.client.Do(request)
	if err != nil {
		return "", fmt.Errorf("call completion api: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(response.Body)
		if readErr != nil {
			return "", fmt.Errorf("openrouter api error (%d): unreadable body: %w", response.StatusCode, readErr)
		}
		return "", buildOpenRouterAPIError(response.StatusCode, respBody)
	}

	return s.copyStream(w, response.Body)
}

// copyStream decodes the upstream SSE framing and writes only the delta text
// fragments. Malformed data lines are dropped without ending the stream.
func (s *RelayService) copyStream(w io.Writer, body io.Reader) (string, error) {
	flusher, _ := w.(http.Flusher)

	var full strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk completionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}

		if len(chunk.Choices) == 0 {
			continue
		}

		fragment := chunk.Choices[0].Delta.Content
		if fragment == "" {
			continue
		}

		if _, err := io.WriteString(w, fragment); err != nil {
			return full.String(), fmt.Errorf("write fragment: %w", err)
		}
		full.WriteString(fragment)

		if flusher != nil {
			flusher.Flush()
		}
	}

	if err := scanner.Err(); err != nil {
		// Upstream dropped mid-stream. Everything emitted so far stands.
		s.logger.Warnf("completion stream ended early: %v", err)
	}

	return full.String(), nil
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

type completionDelta struct {
	Content string `json:"content"`
}

type completionChunkChoice struct {
	Index        int             `json:"index"`
	Delta        completionDelta `json:"delta"`
	FinishReason string          `json:"finish_reason"`
}

type completionChunk struct {
	ID      string                  `json:"id"`
	Choices []completionChunkChoice `json:"choices"`
}
