package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"edulearn-backend/internal/models"
)

// GeminiClient is the Gemini implementation of Generator.
type GeminiClient struct {
	client    *genai.Client
	modelName string
	rateChan  chan struct{} // Token bucket
}

func NewGeminiClient(ctx context.Context, apiKey, modelName string, concurrentReqs int) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if concurrentReqs < 1 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiClient{
		client:    client,
		modelName: modelName,
		rateChan:  rateChan,
	}, nil
}

func (g *GeminiClient) Close() {
	g.client.Close()
}

// acquireRate blocks until a rate slot is available
func (g *GeminiClient) acquireRate(ctx context.Context) error {
	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *GeminiClient) releaseRate() {
	g.rateChan <- struct{}{}
}

func (g *GeminiClient) newModel() *genai.GenerativeModel {
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0.7)
	model.SetTopP(0.9)
	return model
}

func (g *GeminiClient) Generate(ctx context.Context, prompt string, images ...Image) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, GenerationTimeout)
	defer cancel()

	if err := g.acquireRate(ctx); err != nil {
		return "", &GenerationError{Op: "generate", Err: err}
	}
	defer g.releaseRate()

	parts := []genai.Part{genai.Text(prompt)}
	parts = append(parts, imageParts(images)...)

	resp, err := g.newModel().GenerateContent(ctx, parts...)
	if err != nil {
		return "", &GenerationError{Op: "generate", Err: err}
	}
	return extractText(resp), nil
}

// Chat maps system messages onto the system instruction and replays the rest as history.
func (g *GeminiClient) Chat(ctx context.Context, messages []models.ChatMessage, images ...Image) (string, error) {
	if len(messages) == 0 {
		return "", &GenerationError{Op: "chat", Err: fmt.Errorf("no messages")}
	}

	ctx, cancel := context.WithTimeout(ctx, GenerationTimeout)
	defer cancel()

	if err := g.acquireRate(ctx); err != nil {
		return "", &GenerationError{Op: "chat", Err: err}
	}
	defer g.releaseRate()

	model := g.newModel()
	var system []string
	var history []*genai.Content
	for _, m := range messages[:len(messages)-1] {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}

	session := model.StartChat()
	session.History = history

	last := messages[len(messages)-1]
	parts := []genai.Part{genai.Text(last.Content)}
	parts = append(parts, imageParts(images)...)

	start := time.Now()
	resp, err := session.SendMessage(ctx, parts...)
	if err != nil {
		return "", &GenerationError{Op: "chat", Err: fmt.Errorf("after %s: %w", time.Since(start).Round(time.Millisecond), err)}
	}
	return extractText(resp), nil
}

func imageParts(images []Image) []genai.Part {
	parts := make([]genai.Part, 0, len(images))
	for _, img := range images {
		parts = append(parts, genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
	}
	return parts
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
