package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"edulearn-backend/internal/logger"
	"edulearn-backend/internal/models"
	"edulearn-backend/internal/services"
)

// memStore keeps documents in memory and records every status it was given.
type memStore struct {
	mu         sync.Mutex
	docs       map[uuid.UUID]*models.Document
	statuses   []models.ProcessingStatus
	summarySet bool
}

func newMemStore(doc *models.Document) *memStore {
	return &memStore{docs: map[uuid.UUID]*models.Document{doc.ID: doc}}
}

func (s *memStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *d
	return &cp, nil
}

func (s *memStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ProcessingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id].ProcessingStatus = status
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *memStore) SetExtraction(ctx context.Context, id uuid.UUID, text string, pageCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id].ExtractedText = &text
	s.docs[id].PageCount = pageCount
	return nil
}

func (s *memStore) SetSummary(ctx context.Context, id uuid.UUID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id].Summary = &summary
	s.summarySet = true
	return nil
}

// AppendPageSummary mirrors the guarded JSONB append of the repository.
func (s *memStore) AppendPageSummary(ctx context.Context, id uuid.UUID, insight models.PageSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.docs[id]
	if len(d.PageSummaries) < d.PageCount {
		d.PageSummaries = append(d.PageSummaries, insight)
	}
	return nil
}

func (s *memStore) SetExplanation(ctx context.Context, id uuid.UUID, explanation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id].EasyExplanation = &explanation
	return nil
}

func (s *memStore) SetKeyConcepts(ctx context.Context, id uuid.UUID, concepts []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id].KeyConcepts = concepts
	return nil
}

func (s *memStore) SetWikiContext(ctx context.Context, id uuid.UUID, entries []models.WikiEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id].WikiContext = entries
	return nil
}

type fakeExtractor struct {
	ex  *services.Extraction
	err error
}

func (f *fakeExtractor) Extract(path, fileType string) (*services.Extraction, error) {
	return f.ex, f.err
}

// promptGenerator answers each stage based on what the prompt asks for.
type promptGenerator struct {
	mu          sync.Mutex
	failOn      string
	pagePrompts int
	images      int
}

func (g *promptGenerator) Generate(ctx context.Context, prompt string, images ...services.Image) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.images += len(images)

	if g.failOn != "" && strings.Contains(prompt, g.failOn) {
		return "", &services.GenerationError{Op: "generate", Err: errors.New("model unavailable")}
	}
	switch {
	case strings.Contains(prompt, "Extract and transcribe"):
		return "Text read from the image.", nil
	case strings.Contains(prompt, "Page content:"):
		g.pagePrompts++
		return `{"content":"Page insight.","key_points":["one"],"focus_topic":"Topic"}`, nil
	case strings.Contains(prompt, "summarizer"):
		return "A summary.", nil
	case strings.Contains(prompt, "friendly teacher"):
		return "An easy explanation.", nil
	case strings.Contains(prompt, "key concepts"):
		return `["Osmosis","Diffusion","Mitosis","Ribosome","Chloroplast","Vacuole"]`, nil
	}
	return "", fmt.Errorf("unexpected prompt: %.40s", prompt)
}

func (g *promptGenerator) Chat(ctx context.Context, messages []models.ChatMessage, images ...services.Image) (string, error) {
	return "", errors.New("not used")
}

// fakeReferences fails lookups for the listed terms.
type fakeReferences struct {
	fail map[string]bool
}

func (f *fakeReferences) Search(ctx context.Context, term string) (string, error) {
	if f.fail[term] {
		return "", errors.New("lookup exploded")
	}
	return term, nil
}

func (f *fakeReferences) Fetch(ctx context.Context, id string) (*services.ReferencePage, error) {
	return &services.ReferencePage{Title: id, Summary: id + " is a concept.", URL: "https://en.wikipedia.org/wiki/" + id}, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []models.WSMessage
}

func (p *recordingPublisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.Type
	}
	return out
}

type fixture struct {
	doc       *models.Document
	store     *memStore
	gen       *promptGenerator
	publisher *recordingPublisher
	pipeline  *Pipeline
}

func newFixture(fileType string, ex *services.Extraction, gen *promptGenerator, refs *fakeReferences) *fixture {
	doc := &models.Document{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		Title:            "Cell Biology",
		FileType:         fileType,
		FilePath:         "/tmp/unused",
		ProcessingStatus: models.StatusPending,
	}
	store := newMemStore(doc)
	pub := &recordingPublisher{}
	if refs == nil {
		refs = &fakeReferences{}
	}
	p := New(
		store,
		&fakeExtractor{ex: ex},
		services.NewEnrichmentService(gen),
		services.NewKnowledgeService(refs, logger.Nop()),
		pub,
		logger.Nop(),
	)
	return &fixture{doc: doc, store: store, gen: gen, publisher: pub, pipeline: p}
}

func pagesOf(n int) *services.Extraction {
	pages := make([]string, n)
	for i := range pages {
		pages[i] = fmt.Sprintf("Content of page %d.", i+1)
	}
	return &services.Extraction{Text: strings.Join(pages, "\n\n"), PageCount: n, Pages: pages}
}

func TestRun_TenPagePDF(t *testing.T) {
	f := newFixture(models.FileTypePDF, pagesOf(10), &promptGenerator{}, nil)

	if err := f.pipeline.Run(context.Background(), f.doc.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := f.store.docs[f.doc.ID]
	wantStatuses := []models.ProcessingStatus{models.StatusProcessing, models.StatusCompleted}
	if len(f.store.statuses) != 2 || f.store.statuses[0] != wantStatuses[0] || f.store.statuses[1] != wantStatuses[1] {
		t.Fatalf("expected statuses %v, got %v", wantStatuses, f.store.statuses)
	}
	if len(got.PageSummaries) != 10 {
		t.Fatalf("expected 10 page summaries, got %d", len(got.PageSummaries))
	}
	for i, ps := range got.PageSummaries {
		if ps.PageNumber != i+1 {
			t.Fatalf("expected page_number %d at index %d, got %d", i+1, i, ps.PageNumber)
		}
	}
	if got.Summary == nil || got.EasyExplanation == nil {
		t.Fatalf("expected summary and explanation to be set")
	}
	if len(got.KeyConcepts) != 6 {
		t.Fatalf("expected 6 key concepts, got %d", len(got.KeyConcepts))
	}
	if len(got.WikiContext) != services.MaxEnrichedConcepts {
		t.Fatalf("expected %d wiki entries, got %d", services.MaxEnrichedConcepts, len(got.WikiContext))
	}

	types := f.publisher.types()
	if types[len(types)-1] != models.EventCompleted {
		t.Fatalf("expected last event to be completed, got %v", types)
	}
	if n := strings.Count(strings.Join(types, ","), models.EventStatusUpdate); n != len(stepNames) {
		t.Fatalf("expected %d status updates, got %d", len(stepNames), n)
	}
}

func TestRun_EmptyTextLayerFails(t *testing.T) {
	ex := &services.Extraction{Text: "", PageCount: 3, Pages: []string{"", "", ""}}
	f := newFixture(models.FileTypePDF, ex, &promptGenerator{}, nil)

	err := f.pipeline.Run(context.Background(), f.doc.ID)
	if !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}

	got := f.store.docs[f.doc.ID]
	if got.ProcessingStatus != models.StatusFailed {
		t.Fatalf("expected failed status, got %s", got.ProcessingStatus)
	}
	if f.store.summarySet || got.Summary != nil {
		t.Fatalf("summary must never be set for an empty document")
	}

	last := f.publisher.msgs[len(f.publisher.msgs)-1]
	if last.Type != models.EventError {
		t.Fatalf("expected error event, got %s", last.Type)
	}
	if ev := last.Payload.(models.ErrorEvent); ev.ErrorCode != "NO_TEXT_EXTRACTED" {
		t.Fatalf("expected NO_TEXT_EXTRACTED, got %s", ev.ErrorCode)
	}
}

func TestRun_ReferenceFailureIsSkipped(t *testing.T) {
	refs := &fakeReferences{fail: map[string]bool{"Mitosis": true}}
	f := newFixture(models.FileTypePDF, pagesOf(1), &promptGenerator{}, refs)

	if err := f.pipeline.Run(context.Background(), f.doc.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := f.store.docs[f.doc.ID]
	if got.ProcessingStatus != models.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.ProcessingStatus)
	}
	if len(got.WikiContext) != 4 {
		t.Fatalf("expected 4 wiki entries, got %d", len(got.WikiContext))
	}
	for _, e := range got.WikiContext {
		if e.Term == "Mitosis" {
			t.Fatalf("failed term must be omitted")
		}
	}
}

func TestRun_BlankPagesSkippedWithSourceNumbers(t *testing.T) {
	ex := &services.Extraction{
		Text:      "first\n\nthird",
		PageCount: 4,
		Pages:     []string{"first", "   ", "third", ""},
	}
	gen := &promptGenerator{}
	f := newFixture(models.FileTypePDF, ex, gen, nil)

	if err := f.pipeline.Run(context.Background(), f.doc.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := f.store.docs[f.doc.ID]
	if gen.pagePrompts != 2 || len(got.PageSummaries) != 2 {
		t.Fatalf("expected 2 page insights, got %d prompts and %d entries", gen.pagePrompts, len(got.PageSummaries))
	}
	if got.PageSummaries[0].PageNumber != 1 || got.PageSummaries[1].PageNumber != 3 {
		t.Fatalf("expected page numbers 1 and 3, got %d and %d", got.PageSummaries[0].PageNumber, got.PageSummaries[1].PageNumber)
	}
	if len(got.PageSummaries) > got.PageCount {
		t.Fatalf("page summaries outgrew page count")
	}
}

func TestRun_LaterStageFailureKeepsEarlierFields(t *testing.T) {
	gen := &promptGenerator{failOn: "friendly teacher"}
	f := newFixture(models.FileTypePDF, pagesOf(2), gen, nil)

	err := f.pipeline.Run(context.Background(), f.doc.ID)
	var genErr *services.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected generation error, got %v", err)
	}

	got := f.store.docs[f.doc.ID]
	if got.ProcessingStatus != models.StatusFailed {
		t.Fatalf("expected failed, got %s", got.ProcessingStatus)
	}
	if got.Summary == nil || len(got.PageSummaries) != 2 {
		t.Fatalf("expected summary and page insights to be retained")
	}
	if got.EasyExplanation != nil || len(got.KeyConcepts) != 0 {
		t.Fatalf("expected later stages not to run")
	}
}

func TestRun_ImageIsTranscribedAsOnePage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.png")
	if err := os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	gen := &promptGenerator{}
	f := newFixture(models.FileTypeImage, nil, gen, nil)
	f.store.docs[f.doc.ID].FilePath = path

	if err := f.pipeline.Run(context.Background(), f.doc.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := f.store.docs[f.doc.ID]
	if got.PageCount != 1 || len(got.PageSummaries) != 1 {
		t.Fatalf("expected one synthetic page, got count %d and %d insights", got.PageCount, len(got.PageSummaries))
	}
	if got.ExtractedText == nil || *got.ExtractedText != "Text read from the image." {
		t.Fatalf("expected transcription as extracted text, got %v", got.ExtractedText)
	}
	if gen.images != 1 {
		t.Fatalf("expected the image to be sent once, got %d", gen.images)
	}
}

func TestRun_UnknownDocument(t *testing.T) {
	f := newFixture(models.FileTypePDF, pagesOf(1), &promptGenerator{}, nil)
	if err := f.pipeline.Run(context.Background(), uuid.New()); err == nil {
		t.Fatalf("expected error for unknown document")
	}
	if len(f.store.statuses) != 0 {
		t.Fatalf("expected no status changes, got %v", f.store.statuses)
	}
}

// ctxCheckingStore rejects writes on a done context the way pgx does.
type ctxCheckingStore struct {
	*memStore
}

func (s *ctxCheckingStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ProcessingStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.memStore.UpdateStatus(ctx, id, status)
}

// cancellingGenerator cancels the run while the summary is being generated.
type cancellingGenerator struct {
	promptGenerator
	cancel context.CancelFunc
}

func (g *cancellingGenerator) Generate(ctx context.Context, prompt string, images ...services.Image) (string, error) {
	if strings.Contains(prompt, "summarizer") {
		g.cancel()
		return "", &services.GenerationError{Op: "generate", Err: ctx.Err()}
	}
	return g.promptGenerator.Generate(ctx, prompt, images...)
}

func TestRun_CancelledRunIsMarkedFailed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	base := newFixture(models.FileTypePDF, pagesOf(2), &promptGenerator{}, nil)
	store := &ctxCheckingStore{memStore: base.store}
	gen := &cancellingGenerator{cancel: cancel}
	p := New(
		store,
		&fakeExtractor{ex: pagesOf(2)},
		services.NewEnrichmentService(gen),
		services.NewKnowledgeService(&fakeReferences{}, logger.Nop()),
		base.publisher,
		logger.Nop(),
	)

	if err := p.Run(ctx, base.doc.ID); err == nil {
		t.Fatalf("expected the cancelled run to fail")
	}

	got := base.store.docs[base.doc.ID]
	if got.ProcessingStatus != models.StatusFailed {
		t.Fatalf("expected failed status, got %s (statuses %v)", got.ProcessingStatus, base.store.statuses)
	}
	if got.ExtractedText == nil {
		t.Fatalf("expected extracted text to be kept")
	}
	types := base.publisher.types()
	if types[len(types)-1] != models.EventError {
		t.Fatalf("expected a final error event, got %v", types)
	}
}
