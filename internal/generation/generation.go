// Package generation wraps the configured LLM provider behind the shared
// circuit breaker, building prompts from retrieved chunks the way the
// book-RAG service's Python prototype did and falling back to a fixed
// insufficient-context response when nothing was retrieved.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ayeshadev283/bookrag/internal/circuitbreaker"
	"github.com/ayeshadev283/bookrag/internal/config"
	"github.com/ayeshadev283/bookrag/internal/models"
	ometrics "github.com/ayeshadev283/bookrag/internal/metrics"
	"github.com/ayeshadev283/bookrag/internal/tracing"
	"github.com/ayeshadev283/bookrag/internal/util"
)

// systemPromptVersion tags generation_params so responses can be correlated
// with the prompt template that produced them.
const systemPromptVersion = "v1"

// systemPromptTemplate is the instruction set given to the model on every
// call. Rules 1-6 mirror the prototype's fixed constraints: answer only from
// the supplied excerpts, cite chapter/section, and refuse rather than
// speculate.
const systemPromptTemplate = `You are a helpful educational assistant for students reading "%s".

Your task is to answer student questions ONLY using the provided context from the book.

Rules:
1. Answer ONLY from the context provided below
2. Include source references in your answer (chapter and section)
3. If the context doesn't contain the answer, respond: "%s"
4. Do NOT use external knowledge or make assumptions
5. Keep answers concise (2-3 paragraphs maximum)
6. Maintain an encouraging, educational tone

Context:
%s

Student Question: %s

Answer:`

// insufficientContextMessage is returned verbatim when no chunks were
// retrieved, without ever calling the LLM.
const insufficientContextMessage = "I don't have enough information in the retrieved sections to answer this question accurately. Could you try rephrasing or asking about a topic covered in the book?"

// errorFallbackMessage is returned when every retry against the provider
// failed or the circuit breaker is open.
const errorFallbackMessage = "I'm temporarily unable to generate a response. Please try again in a moment."

// Result carries the generated text alongside the bookkeeping the caller
// persists to query_responses.generation_params.
type Result struct {
	ResponseText     string
	GenerationParams map[string]interface{}
	LatencyMs        int
	Refused          bool
}

// Generator calls the configured chat-completion provider through the
// shared generator circuit breaker, retrying transient failures with
// exponential backoff.
type Generator struct {
	cfg    config.GenerationConfig
	client *http.Client
	cb     *circuitbreaker.CircuitBreaker
	log    *zap.Logger
}

// New builds a Generator wrapping the provider's HTTP API in the shared
// generator circuit breaker.
func New(cfg config.GenerationConfig, log *zap.Logger) *Generator {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	client := &http.Client{Timeout: cfg.Timeout}
	cb := circuitbreaker.NewCircuitBreaker("generator", circuitbreaker.GetGeneratorConfig().ToConfig(), log)
	circuitbreaker.GlobalMetricsCollector.RegisterCircuitBreaker("generator", "generation", cb)
	return &Generator{cfg: cfg, client: client, cb: cb, log: log}
}

// CircuitBreaker exposes the generator's breaker so the health manager can
// report on it without the generator package depending on internal/health.
func (g *Generator) CircuitBreaker() *circuitbreaker.CircuitBreaker {
	return g.cb
}

// Generate produces an answer for userQuery grounded in chunks. When chunks
// is empty the call short-circuits to the fixed insufficient-context
// response without touching the provider or the circuit breaker.
func (g *Generator) Generate(ctx context.Context, userQuery string, chunks []models.RetrievedChunk, bookTitle string) (*Result, error) {
	start := time.Now()

	if len(chunks) == 0 {
		return &Result{
			ResponseText: insufficientContextMessage,
			Refused:      true,
			GenerationParams: map[string]interface{}{
				"model":                  "fallback",
				"system_prompt_version":  systemPromptVersion,
				"short_circuited":        true,
				"prompt_token_count":     0,
				"completion_token_count": 0,
			},
			LatencyMs: int(time.Since(start).Milliseconds()),
		}, nil
	}

	prompt := formatSystemPrompt(bookTitle, chunks, userQuery)

	ctx, span := tracing.StartHTTPSpan(ctx, "POST", g.cfg.Provider+":generate")
	defer span.End()

	var text string
	var usage tokenUsage
	var lastErr error
	retries := 0

	maxAttempts := g.cfg.MaxRetries + 1
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			retries++
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				break
			case <-time.After(backoff):
			}
		}

		err := g.cb.Execute(ctx, func() error {
			t, u, callErr := g.callProvider(ctx, prompt)
			if callErr != nil {
				return callErr
			}
			text, usage = t, u
			return nil
		})
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		if err == circuitbreaker.ErrCircuitBreakerOpen || err == circuitbreaker.ErrTooManyRequests {
			break
		}
	}

	latency := time.Since(start)
	if lastErr != nil {
		ometrics.RecordGenerationMetrics("error", latency.Seconds(), retries)
		g.log.Warn("generation failed after retries", zap.Error(lastErr), zap.Int("attempts", maxAttempts))
		return &Result{
			ResponseText: errorFallbackMessage,
			Refused:      false,
			GenerationParams: map[string]interface{}{
				"model":                 g.cfg.Model,
				"system_prompt_version": systemPromptVersion,
				"error":                 lastErr.Error(),
			},
			LatencyMs: int(latency.Milliseconds()),
		}, nil
	}

	ometrics.RecordGenerationMetrics("ok", latency.Seconds(), retries)

	return &Result{
		ResponseText: text,
		GenerationParams: map[string]interface{}{
			"model":                    g.cfg.Model,
			"temperature":              g.cfg.Temperature,
			"max_tokens":               g.cfg.MaxTokens,
			"system_prompt_version":    systemPromptVersion,
			"prompt_token_count":       usage.PromptTokens,
			"completion_token_count":   usage.CompletionTokens,
		},
		LatencyMs: int(latency.Milliseconds()),
	}, nil
}

type tokenUsage struct {
	PromptTokens     int
	CompletionTokens int
}

// callProvider issues the single HTTP request for a chat completion. It is
// deliberately minimal: one user-role message carrying the full prompt,
// matching the prototype's single-turn request shape.
func (g *Generator) callProvider(ctx context.Context, prompt string) (string, tokenUsage, error) {
	reqBody := map[string]interface{}{
		"model":       g.cfg.Model,
		"temperature": g.cfg.Temperature,
		"max_tokens":  g.cfg.MaxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", tokenUsage{}, fmt.Errorf("generation: encode request: %w", err)
	}

	url := g.cfg.BaseURL
	if url == "" {
		url = defaultEndpoint(g.cfg.Provider)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", tokenUsage{}, fmt.Errorf("generation: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", tokenUsage{}, fmt.Errorf("generation: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", tokenUsage{}, fmt.Errorf("generation: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", tokenUsage{}, fmt.Errorf("generation: provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", tokenUsage{}, fmt.Errorf("generation: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", tokenUsage{}, fmt.Errorf("generation: provider returned no choices")
	}

	return parsed.Choices[0].Message.Content, tokenUsage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, nil
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func defaultEndpoint(provider string) string {
	switch provider {
	case "anthropic":
		return "https://api.anthropic.com/v1/messages"
	default:
		return "https://api.openai.com/v1/chat/completions"
	}
}

// formatSystemPrompt renders the full prompt sent to the provider: the
// fixed rule set, the retrieved chunks formatted as numbered sources, and
// the user's question.
func formatSystemPrompt(bookTitle string, chunks []models.RetrievedChunk, userQuery string) string {
	if bookTitle == "" {
		bookTitle = "this book"
	}
	return fmt.Sprintf(systemPromptTemplate, bookTitle, insufficientContextMessage, formatRetrievedChunks(chunks), userQuery)
}

// maxChunkChars bounds how much of a single chunk's content enters the
// prompt, keeping one unusually long chunk from crowding out the others
// within the provider's context window.
const maxChunkChars = 2000

// formatRetrievedChunks renders each chunk as "[Source N - Chapter X,
// Section Y]" followed by its content, matching the prototype's
// format_retrieved_chunks output.
func formatRetrievedChunks(chunks []models.RetrievedChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if c.Section != "" {
			fmt.Fprintf(&b, "[Source %d - Chapter %d, Section %s]\n", i+1, c.ChapterNumber, c.Section)
		} else {
			fmt.Fprintf(&b, "[Source %d - Chapter %d]\n", i+1, c.ChapterNumber)
		}
		b.WriteString(util.TruncateString(c.Content, maxChunkChars, true))
		b.WriteString("\n\n")
	}
	return b.String()
}
