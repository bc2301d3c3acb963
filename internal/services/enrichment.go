package services

import (
	"context"
	"fmt"
	"strings"

	"edulearn-backend/internal/models"
)

const (
	// SummaryCeiling is the size above which the summary works from a sample.
	SummaryCeiling = 12000

	explanationTextLimit = 8000
	conceptsTextLimit    = 6000
	pageTextLimit        = 4000

	MaxKeyConcepts   = 20
	maxPageKeyPoints = 3

	pageInsightFallback = "Insight generation failed for this page."
)

// EnrichmentService produces the AI-generated artifacts of a document.
type EnrichmentService struct {
	gen Generator
}

func NewEnrichmentService(gen Generator) *EnrichmentService {
	return &EnrichmentService{gen: gen}
}

// TranscribeImage reads the text out of an uploaded image with a vision request.
func (s *EnrichmentService) TranscribeImage(ctx context.Context, img Image) (string, error) {
	text, err := s.gen.Generate(ctx, imageTranscriptionPrompt, img)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (s *EnrichmentService) Summarize(ctx context.Context, title, text string) (string, error) {
	prompt := buildSummaryPrompt(title, SampleText(text, SummaryCeiling))
	summary, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(summary), nil
}

type pageInsightPayload struct {
	Content    string   `json:"content"`
	KeyPoints  []string `json:"key_points"`
	FocusTopic *string  `json:"focus_topic"`
}

// PageInsight returns the insight for one page. Only transport failures are
// returned as errors; unparsable output yields a placeholder insight.
func (s *EnrichmentService) PageInsight(ctx context.Context, title string, pageNumber, pageCount int, pageText string) (models.PageSummary, error) {
	prompt := buildPageInsightPrompt(title, pageNumber, pageCount, truncateRunes(pageText, pageTextLimit))
	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return models.PageSummary{}, err
	}

	payload := JSONOrDefault(raw, ShapeObject, pageInsightPayload{Content: pageInsightFallback})

	insight := models.PageSummary{
		PageNumber: pageNumber,
		Content:    strings.TrimSpace(payload.Content),
		KeyPoints:  cleanStrings(payload.KeyPoints, maxPageKeyPoints),
	}
	if insight.Content == "" {
		insight.Content = pageInsightFallback
	}
	if payload.FocusTopic != nil {
		if topic := strings.TrimSpace(*payload.FocusTopic); topic != "" {
			insight.FocusTopic = &topic
		}
	}
	return insight, nil
}

func (s *EnrichmentService) Explain(ctx context.Context, title, text string) (string, error) {
	prompt := buildExplanationPrompt(title, truncateRunes(text, explanationTextLimit))
	explanation, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(explanation), nil
}

// KeyConcepts asks for a JSON array of concepts and falls back to reading the
// reply line by line.
func (s *EnrichmentService) KeyConcepts(ctx context.Context, text string) ([]string, error) {
	raw, err := s.gen.Generate(ctx, buildConceptsPrompt(truncateRunes(text, conceptsTextLimit)))
	if err != nil {
		return nil, err
	}

	concepts, parseErr := ExtractJSON[[]string](raw, ShapeArray)
	if parseErr != nil {
		return conceptsFromLines(raw), nil
	}
	return cleanStrings(concepts, MaxKeyConcepts), nil
}

func conceptsFromLines(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "- •*"))
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == MaxKeyConcepts {
			break
		}
	}
	return out
}

// cleanStrings trims entries, drops empty ones and caps the result at limit.
func cleanStrings(in []string, limit int) []string {
	out := make([]string, 0, min(len(in), limit))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

// DocumentChat answers a question about a processed document.
type DocumentChat struct {
	gen Generator
}

func NewDocumentChat(gen Generator) *DocumentChat {
	return &DocumentChat{gen: gen}
}

func (c *DocumentChat) Ask(ctx context.Context, doc *models.Document, message string, history []models.ChatMessage) (string, error) {
	if doc.Summary == nil || strings.TrimSpace(*doc.Summary) == "" {
		return "", &ValidationError{Fields: map[string]string{"document": "Document has no summary to chat about yet"}}
	}

	excerpt := ""
	if doc.ExtractedText != nil {
		excerpt = truncateRunes(*doc.ExtractedText, conceptsTextLimit)
	}

	messages := make([]models.ChatMessage, 0, len(history)+2)
	messages = append(messages, models.ChatMessage{
		Role:    "system",
		Content: buildDocumentChatSystemPrompt(doc.Title, truncateRunes(*doc.Summary, 4000), excerpt),
	})
	for _, m := range history {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		messages = append(messages, m)
	}
	messages = append(messages, models.ChatMessage{Role: "user", Content: message})

	reply, err := c.gen.Chat(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("document chat: %w", err)
	}
	return strings.TrimSpace(reply), nil
}
