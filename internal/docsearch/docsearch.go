// Package docsearch retrieves document evidence for the answer pipeline.
// Database results answer "how many"; document chunks answer "why" and
// "according to what policy".
package docsearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/rs/zerolog/log"

	"github.com/queryfed/queryfed/internal/models"
)

// Searcher finds document chunks relevant to a natural-language query.
type Searcher interface {
	SearchDocuments(ctx context.Context, query string, maxChunks int) ([]models.DocumentChunk, error)
}

// ElasticSearcher runs full-text retrieval against a single document index.
type ElasticSearcher struct {
	client *elasticsearch.Client
	index  string
}

type Options struct {
	Addresses   []string
	Username    string
	Password    string
	VerifyCerts bool
	MaxRetries  int
	Index       string
}

func NewElasticSearcher(opts Options) (*ElasticSearcher, error) {
	cfg := elasticsearch.Config{
		Addresses:  opts.Addresses,
		MaxRetries: opts.MaxRetries,
	}
	if opts.Username != "" {
		cfg.Username = opts.Username
		cfg.Password = opts.Password
	}
	if !opts.VerifyCerts {
		cfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402 - user explicitly disabled cert verification
			},
		}
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}
	return &ElasticSearcher{client: client, index: opts.Index}, nil
}

func (s *ElasticSearcher) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping error: %s", res.Status())
	}
	return nil
}

// SearchDocuments runs a multi_match over content and title fields and maps
// hits to chunks, carrying the normalized score as relevance.
func (s *ElasticSearcher) SearchDocuments(ctx context.Context, query string, maxChunks int) ([]models.DocumentChunk, error) {
	body := map[string]any{
		"size": maxChunks,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": []string{"content^2", "title", "source"},
				"type":   "best_fields",
			},
		},
		"_source": []string{"content", "title", "source"},
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(bodyBytes)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	var raw map[string]any
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if res.IsError() {
		if errObj, ok := raw["error"]; ok {
			return nil, fmt.Errorf("elasticsearch error [%s]: %v", res.Status(), errObj)
		}
		return nil, fmt.Errorf("elasticsearch error: %s", res.Status())
	}

	chunks := parseHits(raw)
	log.Debug().Str("index", s.index).Int("chunks", len(chunks)).Msg("document search done")
	return chunks, nil
}

func parseHits(raw map[string]any) []models.DocumentChunk {
	hitsObj, ok := raw["hits"].(map[string]any)
	if !ok {
		return nil
	}
	hits, ok := hitsObj["hits"].([]any)
	if !ok {
		return nil
	}

	maxScore := 0.0
	if ms, ok := hitsObj["max_score"].(float64); ok && ms > 0 {
		maxScore = ms
	}

	var chunks []models.DocumentChunk
	for _, h := range hits {
		hm, ok := h.(map[string]any)
		if !ok {
			continue
		}
		chunk := models.DocumentChunk{}
		if id, ok := hm["_id"].(string); ok {
			chunk.ID = id
		}
		if score, ok := hm["_score"].(float64); ok {
			if maxScore > 0 {
				chunk.Relevance = score / maxScore
			} else {
				chunk.Relevance = score
			}
		}
		if src, ok := hm["_source"].(map[string]any); ok {
			if content, ok := src["content"].(string); ok {
				chunk.Content = content
			}
			chunk.Source = sourceLabel(src, chunk.ID)
		}
		if strings.TrimSpace(chunk.Content) == "" {
			continue
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

func sourceLabel(src map[string]any, fallback string) string {
	if s, ok := src["source"].(string); ok && s != "" {
		return s
	}
	if t, ok := src["title"].(string); ok && t != "" {
		return t
	}
	return fallback
}
