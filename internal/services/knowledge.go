package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"edulearn-backend/internal/logger"
	"edulearn-backend/internal/models"
)

const (
	MaxEnrichedConcepts = 5
	definitionLimit     = 300

	referenceTimeout = 15 * time.Second
)

var ErrReferenceNotFound = errors.New("no reference entry found")

// ReferencePage is a short encyclopedia entry.
type ReferencePage struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
}

// ReferenceSource looks terms up in an external encyclopedia.
type ReferenceSource interface {
	Search(ctx context.Context, term string) (string, error)
	Fetch(ctx context.Context, id string) (*ReferencePage, error)
}

// WikipediaClient implements ReferenceSource with the MediaWiki search API and
// the REST page summary endpoint.
type WikipediaClient struct {
	baseURL   string
	client    *http.Client
	userAgent string
}

func NewWikipediaClient(baseURL string) *WikipediaClient {
	return &WikipediaClient{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		client:    &http.Client{Timeout: referenceTimeout},
		userAgent: "edulearn-backend/1.0",
	}
}

func (c *WikipediaClient) Search(ctx context.Context, term string) (string, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("list", "search")
	q.Set("srsearch", term)
	q.Set("srlimit", "1")
	q.Set("format", "json")

	var result struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/w/api.php?"+q.Encode(), &result); err != nil {
		return "", fmt.Errorf("search %q: %w", term, err)
	}
	if len(result.Query.Search) == 0 || result.Query.Search[0].Title == "" {
		return "", ErrReferenceNotFound
	}
	return result.Query.Search[0].Title, nil
}

func (c *WikipediaClient) Fetch(ctx context.Context, id string) (*ReferencePage, error) {
	path := url.PathEscape(strings.ReplaceAll(id, " ", "_"))

	var result struct {
		Title       string `json:"title"`
		Extract     string `json:"extract"`
		ContentURLs struct {
			Desktop struct {
				Page string `json:"page"`
			} `json:"desktop"`
		} `json:"content_urls"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/api/rest_v1/page/summary/"+path, &result); err != nil {
		return nil, fmt.Errorf("fetch %q: %w", id, err)
	}
	if strings.TrimSpace(result.Extract) == "" {
		return nil, ErrReferenceNotFound
	}
	return &ReferencePage{
		Title:   result.Title,
		Summary: strings.TrimSpace(result.Extract),
		URL:     result.ContentURLs.Desktop.Page,
	}, nil
}

func (c *WikipediaClient) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrReferenceNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CachedReferenceSource keeps successful lookups in Redis and collapses
// concurrent lookups of the same key.
type CachedReferenceSource struct {
	next  ReferenceSource
	redis *redis.Client
	ttl   time.Duration
	group singleflight.Group
	log   *logger.Logger
}

func NewCachedReferenceSource(next ReferenceSource, redisClient *redis.Client, ttl time.Duration, log *logger.Logger) *CachedReferenceSource {
	return &CachedReferenceSource{next: next, redis: redisClient, ttl: ttl, log: log}
}

func (c *CachedReferenceSource) Search(ctx context.Context, term string) (string, error) {
	key := "reference:search:" + strings.ToLower(strings.TrimSpace(term))
	if cached, err := c.redis.Get(ctx, key).Result(); err == nil {
		return cached, nil
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("reference cache read failed", "key", key, "error", err)
	}

	v, err := c.shared(ctx, key, func(sharedCtx context.Context) (interface{}, error) {
		return c.next.Search(sharedCtx, term)
	})
	if err != nil {
		return "", err
	}
	id := v.(string)
	if err := c.redis.Set(ctx, key, id, c.ttl).Err(); err != nil {
		c.log.Warn("reference cache write failed", "key", key, "error", err)
	}
	return id, nil
}

func (c *CachedReferenceSource) Fetch(ctx context.Context, id string) (*ReferencePage, error) {
	key := "reference:page:" + id
	if cached, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var page ReferencePage
		if json.Unmarshal(cached, &page) == nil {
			return &page, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("reference cache read failed", "key", key, "error", err)
	}

	v, err := c.shared(ctx, key, func(sharedCtx context.Context) (interface{}, error) {
		return c.next.Fetch(sharedCtx, id)
	})
	if err != nil {
		return nil, err
	}
	page := v.(*ReferencePage)
	if data, err := json.Marshal(page); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.Warn("reference cache write failed", "key", key, "error", err)
		}
	}
	return page, nil
}

// shared runs fn once per key for all concurrent callers. fn runs detached from
// any single caller's cancellation; each caller still stops waiting when its own
// ctx is done.
func (c *CachedReferenceSource) shared(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	sharedCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return fn(sharedCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// KnowledgeService attaches short encyclopedia definitions to key concepts.
type KnowledgeService struct {
	source ReferenceSource
	log    *logger.Logger
}

func NewKnowledgeService(source ReferenceSource, log *logger.Logger) *KnowledgeService {
	return &KnowledgeService{source: source, log: log}
}

// Enrich looks up the first concepts one at a time. A failed term is skipped.
func (k *KnowledgeService) Enrich(ctx context.Context, concepts []string) []models.WikiEntry {
	entries := []models.WikiEntry{}
	for _, term := range concepts[:min(len(concepts), MaxEnrichedConcepts)] {
		entry, err := k.lookup(ctx, term)
		if err != nil {
			k.log.Debug("reference lookup skipped", "term", term, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func (k *KnowledgeService) lookup(ctx context.Context, term string) (models.WikiEntry, error) {
	id, err := k.source.Search(ctx, term)
	if err != nil {
		return models.WikiEntry{}, err
	}
	page, err := k.source.Fetch(ctx, id)
	if err != nil {
		return models.WikiEntry{}, err
	}
	return models.WikiEntry{
		Term:       term,
		Definition: truncateDefinition(page.Summary),
		URL:        page.URL,
	}, nil
}

func truncateDefinition(s string) string {
	if len([]rune(s)) <= definitionLimit {
		return s
	}
	return truncateRunes(s, definitionLimit) + "..."
}
