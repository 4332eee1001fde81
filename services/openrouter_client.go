package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// No overall client timeout: completions stream for as long as the model
// generates. Dialing and TLS setup still get a bound.
const openRouterDialTimeout = 20 * time.Second

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

type openRouterAPIError struct {
	Code    json.Number `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

type openRouterErrorEnvelope struct {
	Error *openRouterAPIError `json:"error,omitempty"`
}

func newDefaultHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = openRouterDialTimeout
	return &http.Client{Transport: transport}
}

func decodeOpenRouterError(body []byte) *openRouterAPIError {
	if len(body) == 0 {
		return nil
	}

	var envelope openRouterErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}

	if envelope.Error == nil {
		return nil
	}

	envelope.Error.Message = strings.TrimSpace(envelope.Error.Message)
	return envelope.Error
}

func buildOpenRouterAPIError(statusCode int, body []byte) error {
	if apiErr := decodeOpenRouterError(body); apiErr != nil && apiErr.Message != "" {
		return fmt.Errorf("openrouter api error (%d): %s", statusCode, apiErr.Message)
	}

	snippet := strings.TrimSpace(string(body))
	if snippet == "" {
		snippet = http.StatusText(statusCode)
	}
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}

	return fmt.Errorf("openrouter api error (%d): %s", statusCode, snippet)
}
