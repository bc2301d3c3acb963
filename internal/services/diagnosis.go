package services

import (
	"context"

	"edulearn-backend/internal/logger"
	"edulearn-backend/internal/models"
)

const (
	FallbackWeakTopic = "General review recommended"

	maxWeakTopics       = 5
	diagnosisSummaryCap = 1000
)

// Diagnoser turns wrong answers into a short list of topics to review.
type Diagnoser struct {
	gen Generator
	log *logger.Logger
}

func NewDiagnoser(gen Generator, log *logger.Logger) *Diagnoser {
	return &Diagnoser{gen: gen, log: log}
}

// Diagnose always returns between one and five topics.
func (d *Diagnoser) Diagnose(ctx context.Context, wrong []models.WrongAnswer, summary string) []string {
	prompt := buildWeakTopicsPrompt(truncateRunes(summary, diagnosisSummaryCap), wrong)

	raw, err := d.gen.Generate(ctx, prompt)
	if err != nil {
		d.log.Warn("weak topic diagnosis failed", "error", err, "wrong_answers", len(wrong))
		return []string{FallbackWeakTopic}
	}

	topics := cleanStrings(JSONOrDefault[[]string](raw, ShapeArray, nil), maxWeakTopics)
	if len(topics) == 0 {
		return []string{FallbackWeakTopic}
	}
	return topics
}
