// Package pipeline turns an uploaded document into study material: extracted
// text, a summary, per-page insights, an easy explanation, key concepts and
// reference definitions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"edulearn-backend/internal/logger"
	"edulearn-backend/internal/models"
	"edulearn-backend/internal/services"
)

// ErrNoText means extraction produced nothing to enrich.
var ErrNoText = errors.New("no text could be extracted from the document")

var stepNames = []string{
	"Extracting text",
	"Generating summary",
	"Analyzing pages",
	"Writing easy explanation",
	"Identifying key concepts",
	"Adding reference definitions",
}

// DocumentStore is the subset of the document repository the pipeline writes to.
type DocumentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ProcessingStatus) error
	SetExtraction(ctx context.Context, id uuid.UUID, text string, pageCount int) error
	SetSummary(ctx context.Context, id uuid.UUID, summary string) error
	AppendPageSummary(ctx context.Context, id uuid.UUID, insight models.PageSummary) error
	SetExplanation(ctx context.Context, id uuid.UUID, explanation string) error
	SetKeyConcepts(ctx context.Context, id uuid.UUID, concepts []string) error
	SetWikiContext(ctx context.Context, id uuid.UUID, entries []models.WikiEntry) error
}

type Extractor interface {
	Extract(path, fileType string) (*services.Extraction, error)
}

// Publisher delivers progress events to the document owner.
type Publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error
}

type Pipeline struct {
	store     DocumentStore
	extractor Extractor
	enricher  *services.EnrichmentService
	knowledge *services.KnowledgeService
	publisher Publisher
	log       *logger.Logger
}

func New(
	store DocumentStore,
	extractor Extractor,
	enricher *services.EnrichmentService,
	knowledge *services.KnowledgeService,
	publisher Publisher,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		store:     store,
		extractor: extractor,
		enricher:  enricher,
		knowledge: knowledge,
		publisher: publisher,
		log:       log,
	}
}

// Run processes one document from start to finish. Every stage persists its
// output as soon as it is produced, so a failure leaves earlier results in place.
func (p *Pipeline) Run(ctx context.Context, documentID uuid.UUID) error {
	doc, err := p.store.GetByID(ctx, documentID)
	if err != nil {
		p.log.Error("pipeline could not load document", "document_id", documentID, "error", err)
		return fmt.Errorf("load document: %w", err)
	}

	log := p.log.With("document_id", doc.ID, "user_id", doc.UserID)

	if err := p.store.UpdateStatus(ctx, doc.ID, models.StatusProcessing); err != nil {
		log.Error("pipeline could not start", "error", err)
		return fmt.Errorf("mark processing: %w", err)
	}
	log.Info("pipeline started", "file_type", doc.FileType)

	// The run context can be cancelled mid-stage on shutdown. The terminal status
	// is written regardless so no document is left in processing.
	finalCtx := context.WithoutCancel(ctx)

	if err := p.process(ctx, doc); err != nil {
		log.Error("pipeline failed", "error", err)
		if statusErr := p.store.UpdateStatus(finalCtx, doc.ID, models.StatusFailed); statusErr != nil {
			log.Error("could not mark document failed", "error", statusErr)
		}
		p.publish(finalCtx, doc, models.WSMessage{
			Type: models.EventError,
			Payload: models.ErrorEvent{
				DocumentID:   doc.ID,
				ErrorCode:    errorCode(err),
				ErrorMessage: err.Error(),
			},
		})
		return err
	}

	if err := p.store.UpdateStatus(finalCtx, doc.ID, models.StatusCompleted); err != nil {
		log.Error("could not mark document completed", "error", err)
		return fmt.Errorf("mark completed: %w", err)
	}
	p.publish(finalCtx, doc, models.WSMessage{
		Type:    models.EventCompleted,
		Payload: models.CompletedEvent{DocumentID: doc.ID, Status: models.StatusCompleted},
	})
	log.Info("pipeline completed")
	return nil
}

func (p *Pipeline) process(ctx context.Context, doc *models.Document) error {
	// 1. Extraction
	p.progress(ctx, doc, 1)
	ex, err := p.extract(ctx, doc)
	if err != nil {
		return fmt.Errorf("extraction: %w", err)
	}
	if strings.TrimSpace(ex.Text) == "" {
		return fmt.Errorf("extraction: %w", ErrNoText)
	}
	if err := p.store.SetExtraction(ctx, doc.ID, ex.Text, ex.PageCount); err != nil {
		return fmt.Errorf("save extraction: %w", err)
	}

	// 2. Summary
	p.progress(ctx, doc, 2)
	summary, err := p.enricher.Summarize(ctx, doc.Title, ex.Text)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	if err := p.store.SetSummary(ctx, doc.ID, summary); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}

	// 3. Page insights, one page at a time
	p.progress(ctx, doc, 3)
	for i, page := range ex.Pages {
		if strings.TrimSpace(page) == "" {
			continue
		}
		insight, err := p.enricher.PageInsight(ctx, doc.Title, i+1, ex.PageCount, page)
		if err != nil {
			return fmt.Errorf("page insight %d: %w", i+1, err)
		}
		if err := p.store.AppendPageSummary(ctx, doc.ID, insight); err != nil {
			return fmt.Errorf("save page insight %d: %w", i+1, err)
		}
	}

	// 4. Easy explanation
	p.progress(ctx, doc, 4)
	explanation, err := p.enricher.Explain(ctx, doc.Title, ex.Text)
	if err != nil {
		return fmt.Errorf("explanation: %w", err)
	}
	if err := p.store.SetExplanation(ctx, doc.ID, explanation); err != nil {
		return fmt.Errorf("save explanation: %w", err)
	}

	// 5. Key concepts
	p.progress(ctx, doc, 5)
	concepts, err := p.enricher.KeyConcepts(ctx, ex.Text)
	if err != nil {
		return fmt.Errorf("key concepts: %w", err)
	}
	if err := p.store.SetKeyConcepts(ctx, doc.ID, concepts); err != nil {
		return fmt.Errorf("save key concepts: %w", err)
	}

	// 6. Reference definitions
	p.progress(ctx, doc, 6)
	entries := p.knowledge.Enrich(ctx, concepts)
	if err := p.store.SetWikiContext(ctx, doc.ID, entries); err != nil {
		return fmt.Errorf("save wiki context: %w", err)
	}

	return nil
}

// extract returns the text layer of the document. Images are transcribed into
// a single page.
func (p *Pipeline) extract(ctx context.Context, doc *models.Document) (*services.Extraction, error) {
	if doc.FileType != models.FileTypeImage {
		return p.extractor.Extract(doc.FilePath, doc.FileType)
	}

	data, err := os.ReadFile(doc.FilePath)
	if err != nil {
		return nil, err
	}
	text, err := p.enricher.TranscribeImage(ctx, services.Image{Data: data, MIMEType: services.ImageMIMEType(doc.FilePath)})
	if err != nil {
		return nil, err
	}
	return &services.Extraction{Text: text, PageCount: 1, Pages: []string{text}}, nil
}

func (p *Pipeline) progress(ctx context.Context, doc *models.Document, step int) {
	p.publish(ctx, doc, models.WSMessage{
		Type: models.EventStatusUpdate,
		Payload: models.StatusUpdate{
			DocumentID: doc.ID,
			Step:       step,
			TotalSteps: len(stepNames),
			StepName:   stepNames[step-1],
		},
	})
}

// publish is best effort; a lost event never fails the run.
func (p *Pipeline) publish(ctx context.Context, doc *models.Document, msg models.WSMessage) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, doc.UserID, msg); err != nil {
		p.log.Warn("progress event not delivered", "document_id", doc.ID, "type", msg.Type, "error", err)
	}
}

func errorCode(err error) string {
	var genErr *services.GenerationError
	switch {
	case errors.Is(err, ErrNoText):
		return "NO_TEXT_EXTRACTED"
	case errors.As(err, &genErr):
		return "GENERATION_FAILED"
	default:
		return "PROCESSING_FAILED"
	}
}
