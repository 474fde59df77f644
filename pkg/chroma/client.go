// Package chroma provides a client for querying a pre-built Chroma vector
// index over HTTP. The corpus itself is embedded and indexed by an offline
// ingestion job; this client only performs similarity queries.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client performs similarity searches against one Chroma collection.
type Client interface {
	// Query returns the k passages nearest to the query text, ranked by
	// ascending distance.
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)
}

// QueryRequest is a single similarity search.
type QueryRequest struct {
	QueryText string
	K         int
}

// Passage is one retrieved document chunk with its citation metadata.
type Passage struct {
	Content  string
	Source   string
	Page     int
	Distance float64
}

// QueryResponse holds ranked passages for one query.
type QueryResponse struct {
	Passages []Passage
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default server URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL    string
	collection string
	http       *http.Client
}

// NewClient creates a Chroma query client for one collection.
func NewClient(baseURL, collection string, opts ...Option) Client {
	c := &httpClient{
		baseURL:    baseURL,
		collection: collection,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// queryBody is the Chroma REST query payload.
type queryBody struct {
	QueryTexts []string `json:"query_texts"`
	NResults   int      `json:"n_results"`
	Include    []string `json:"include"`
}

// queryResult is the Chroma REST query response: parallel arrays, one outer
// element per query text.
type queryResult struct {
	Documents [][]string         `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float64        `json:"distances"`
}

func (c *httpClient) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if req.K <= 0 {
		req.K = 3
	}

	body, err := json.Marshal(queryBody{
		QueryTexts: []string{req.QueryText},
		NResults:   req.K,
		Include:    []string{"documents", "metadatas", "distances"},
	})
	if err != nil {
		return nil, eris.Wrap(err, "chroma: marshal query")
	}

	endpoint := fmt.Sprintf("%s/api/v1/collections/%s/query",
		c.baseURL, url.PathEscape(c.collection))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "chroma: build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "chroma: query")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "chroma: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("chroma: query returned %d: %s", resp.StatusCode, truncate(raw, 200))
	}

	var result queryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, eris.Wrap(err, "chroma: decode response")
	}

	return &QueryResponse{Passages: flatten(result)}, nil
}

// flatten converts Chroma's parallel arrays for the first (only) query into
// ordered passages. Metadata fields are optional and duck-typed upstream, so
// missing source/page degrade to zero values.
func flatten(r queryResult) []Passage {
	if len(r.Documents) == 0 {
		return nil
	}
	docs := r.Documents[0]
	passages := make([]Passage, 0, len(docs))
	for i, doc := range docs {
		p := Passage{Content: doc}
		if len(r.Metadatas) > 0 && i < len(r.Metadatas[0]) {
			meta := r.Metadatas[0][i]
			if s, ok := meta["source"].(string); ok {
				p.Source = s
			}
			// JSON numbers decode as float64.
			if pg, ok := meta["page"].(float64); ok {
				p.Page = int(pg)
			}
		}
		if len(r.Distances) > 0 && i < len(r.Distances[0]) {
			p.Distance = r.Distances[0][i]
		}
		passages = append(passages, p)
	}
	return passages
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
