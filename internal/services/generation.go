package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"edulearn-backend/internal/models"
)

// GenerationTimeout bounds every call to the generation service.
const GenerationTimeout = 120 * time.Second

// Image is a binary attachment for vision-capable requests.
type Image struct {
	Data     []byte
	MIMEType string
}

// Generator is the text-generation service used by every AI stage.
type Generator interface {
	Generate(ctx context.Context, prompt string, images ...Image) (string, error)
	Chat(ctx context.Context, messages []models.ChatMessage, images ...Image) (string, error)
}

// GenerationError wraps any failure talking to the generation service.
type GenerationError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("generation %s failed (%d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("generation %s failed: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
	Images  []string      `json:"images,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

// OllamaClient talks to an Ollama-compatible /api/generate and /api/chat endpoint.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaClient(baseURL, model string) *OllamaClient {
	return &OllamaClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: GenerationTimeout},
	}
}

func (c *OllamaClient) options() ollamaOptions {
	return ollamaOptions{Temperature: 0.7, TopP: 0.9}
}

func (c *OllamaClient) Generate(ctx context.Context, prompt string, images ...Image) (string, error) {
	body := ollamaGenerateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: c.options(),
		Images:  encodeImages(images),
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := c.post(ctx, "generate", "/api/generate", body, &result); err != nil {
		return "", err
	}
	return result.Response, nil
}

func (c *OllamaClient) Chat(ctx context.Context, messages []models.ChatMessage, images ...Image) (string, error) {
	wire := make([]ollamaMessage, len(messages))
	for i, m := range messages {
		wire[i] = ollamaMessage{Role: m.Role, Content: m.Content}
	}
	if len(wire) > 0 {
		wire[len(wire)-1].Images = encodeImages(images)
	}

	body := ollamaChatRequest{
		Model:    c.model,
		Messages: wire,
		Stream:   false,
		Options:  c.options(),
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := c.post(ctx, "chat", "/api/chat", body, &result); err != nil {
		return "", err
	}
	return result.Message.Content, nil
}

func (c *OllamaClient) post(ctx context.Context, op, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &GenerationError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &GenerationError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &GenerationError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &GenerationError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(snippet))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &GenerationError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func encodeImages(images []Image) []string {
	if len(images) == 0 {
		return nil
	}
	out := make([]string, len(images))
	for i, img := range images {
		out[i] = base64.StdEncoding.EncodeToString(img.Data)
	}
	return out
}
