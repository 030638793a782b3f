package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ayeshadev283/bookrag/internal/circuitbreaker"
)

// vendorClient performs the wire-format-specific half of an embedding call;
// Service owns caching, tracing, metrics, and the circuit breaker around it.
type vendorClient interface {
	embed(ctx context.Context, texts []string, model string, inputType InputType) ([][]float32, error)
}

func newVendorClient(cfg Config, httpw *circuitbreaker.HTTPWrapper) vendorClient {
	switch cfg.Provider {
	case ProviderGoogle:
		base := cfg.BaseURL
		if base == "" {
			base = "https://generativelanguage.googleapis.com/v1beta"
		}
		return &googleClient{baseURL: base, apiKey: cfg.APIKey, httpw: httpw}
	default:
		base := cfg.BaseURL
		if base == "" {
			base = "https://api.cohere.ai/v1"
		}
		return &cohereClient{baseURL: base, apiKey: cfg.APIKey, httpw: httpw}
	}
}

// cohereClient embeds text through Cohere's /embed endpoint.
type cohereClient struct {
	baseURL string
	apiKey  string
	httpw   *circuitbreaker.HTTPWrapper
}

type cohereEmbedRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type cohereEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func (c *cohereClient) embed(ctx context.Context, texts []string, model string, inputType InputType) ([][]float32, error) {
	if inputType == "" {
		inputType = InputTypeDocument
	}
	payload := cohereEmbedRequest{Texts: texts, Model: model, InputType: string(inputType)}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpw.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cohere embed returned %d: %s", resp.StatusCode, string(body))
	}

	var out cohereEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return toFloat32Matrix(out.Embeddings), nil
}

// googleClient embeds text through Gemini's batchEmbedContents endpoint.
type googleClient struct {
	baseURL string
	apiKey  string
	httpw   *circuitbreaker.HTTPWrapper
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleBatchRequest struct {
	Requests []googleEmbedRequest `json:"requests"`
}

type googleEmbedRequest struct {
	Model    string        `json:"model"`
	Content  googleContent `json:"content"`
	TaskType string        `json:"taskType,omitempty"`
}

type googleBatchResponse struct {
	Embeddings []struct {
		Values []float64 `json:"values"`
	} `json:"embeddings"`
}

func (g *googleClient) embed(ctx context.Context, texts []string, model string, inputType InputType) ([][]float32, error) {
	qualifiedModel := "models/" + model
	taskType := "RETRIEVAL_DOCUMENT"
	if inputType == InputTypeQuery {
		taskType = "RETRIEVAL_QUERY"
	}
	reqs := make([]googleEmbedRequest, len(texts))
	for i, t := range texts {
		reqs[i] = googleEmbedRequest{
			Model:    qualifiedModel,
			Content:  googleContent{Parts: []googlePart{{Text: t}}},
			TaskType: taskType,
		}
	}
	payload := googleBatchRequest{Requests: reqs}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s:batchEmbedContents?key=%s", g.baseURL, qualifiedModel, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpw.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("google embed returned %d: %s", resp.StatusCode, string(body))
	}

	var out googleBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	matrix := make([][]float64, len(out.Embeddings))
	for i, e := range out.Embeddings {
		matrix[i] = e.Values
	}
	return toFloat32Matrix(matrix), nil
}

func toFloat32Matrix(in [][]float64) [][]float32 {
	out := make([][]float32, len(in))
	for i, row := range in {
		v := make([]float32, len(row))
		for j, f := range row {
			v[j] = float32(f)
		}
		out[i] = v
	}
	return out
}
