// Package narrative is the LLM collaborator: it turns curated items into
// short "why you should care" lines and digest subject lines, and produces
// embeddings for semantic clustering. Failures here are never fatal to the
// pipeline; callers fall back to empty strings.
package narrative

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"

	"citydigest/internal/core"
)

const (
	// DefaultModel is the generation model for narrative text.
	DefaultModel = "gemini-2.5-flash"
	// DefaultEmbeddingModel produces the vectors used for topic clustering.
	DefaultEmbeddingModel = "gemini-embedding-001"
	// DefaultEmbeddingDimensions keeps vectors small via Matryoshka output.
	DefaultEmbeddingDimensions = int32(768)
	// MaxNarrativeItems caps how many items get generated narratives per
	// digest, for cost control.
	MaxNarrativeItems = 5
)

// Generator is the contract the curation stage depends on.
type Generator interface {
	WhyItMatters(ctx context.Context, items []core.ScoredItem) ([]string, error)
	Subject(ctx context.Context, items []core.ScoredItem, slot string) (string, error)
}

// Embedder produces embedding vectors for item text.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
}

// Client wraps the Gemini API.
type Client struct {
	gClient    *genai.Client
	model      string
	embedModel string
	timeout    time.Duration
}

// NewClient creates a Gemini-backed narrative client.
func NewClient(ctx context.Context, apiKey, model, embedModel string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing Gemini API key")
	}
	if model == "" {
		model = DefaultModel
	}
	if embedModel == "" {
		embedModel = DefaultEmbeddingModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		gClient:    gClient,
		model:      model,
		embedModel: embedModel,
		timeout:    timeout,
	}, nil
}

func (c *Client) generateContent(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

// WhyItMatters generates one short explanatory line per item, in input
// order. At most MaxNarrativeItems items are sent; extra items get empty
// strings. The returned slice always has len(items) entries.
func (c *Client) WhyItMatters(ctx context.Context, items []core.ScoredItem) ([]string, error) {
	lines := make([]string, len(items))
	if len(items) == 0 {
		return lines, nil
	}

	batch := items
	if len(batch) > MaxNarrativeItems {
		batch = batch[:MaxNarrativeItems]
	}

	text, err := c.generateContent(ctx, whyItMattersPrompt(batch))
	if err != nil {
		return lines, err
	}

	for i, line := range parseNumberedLines(text, len(batch)) {
		lines[i] = line
	}
	return lines, nil
}

// Subject generates a short digest subject line for the given slot.
func (c *Client) Subject(ctx context.Context, items []core.ScoredItem, slot string) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("no items to summarize")
	}
	text, err := c.generateContent(ctx, subjectPrompt(items, slot))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(text), `"`)), nil
}

// GenerateEmbedding produces a vector embedding for the given text.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: text}},
		Role:  "user",
	}}

	dims := DefaultEmbeddingDimensions
	config := &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	}

	resp, err := c.gClient.Models.EmbedContent(ctx, c.embedModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding values returned from API")
	}

	values := resp.Embeddings[0].Values
	embedding := make([]float64, len(values))
	for i, v := range values {
		embedding[i] = float64(v)
	}
	return embedding, nil
}

var numberedLine = regexp.MustCompile(`^\s*(\d+)[.):]\s*(.+)$`)

// parseNumberedLines extracts up to n numbered answer lines from model
// output, tolerating blank lines and prose around the list. Answers are
// placed by their own number, so a skipped entry stays empty rather than
// shifting later answers onto the wrong item.
func parseNumberedLines(text string, n int) []string {
	lines := make([]string, n)
	for _, raw := range strings.Split(text, "\n") {
		match := numberedLine.FindStringSubmatch(raw)
		if match == nil {
			continue
		}
		num, err := strconv.Atoi(match[1])
		if err != nil || num < 1 || num > n {
			continue
		}
		lines[num-1] = strings.TrimSpace(match[2])
	}
	return lines
}
