package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/Yousif-AlEshari/Simulated-Patient/internal/rubric"
	"github.com/Yousif-AlEshari/Simulated-Patient/internal/transcript"
)

// Config holds the judge collaborator settings. Scoring stays deterministic
// downstream regardless of these; temperature 0 and a fixed seed just make
// the judge itself as repeatable as the provider allows.
type Config struct {
	BaseURL             string
	APIKey              string
	Model               string
	Temperature         float64
	Seed                *int
	MaxCompletionTokens int
	StrictSchema        bool
	Timeout             time.Duration
}

// ConfigFromEnv reads JUDGE_API_URL, JUDGE_API_KEY and JUDGE_MODEL.
func ConfigFromEnv() Config {
	seed := 42
	return Config{
		BaseURL:             os.Getenv("JUDGE_API_URL"),
		APIKey:              os.Getenv("JUDGE_API_KEY"),
		Model:               os.Getenv("JUDGE_MODEL"),
		Temperature:         0.0,
		Seed:                &seed,
		MaxCompletionTokens: 1200,
		StrictSchema:        true,
		Timeout:             60 * time.Second,
	}
}

// Client calls an OpenAI-compatible chat-completions endpoint to grade a
// conversation. It is the only network-touching piece of the judge path; the
// deterministic core never imports it.
type Client struct {
	cfg   Config
	httpc *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{cfg: cfg, httpc: &http.Client{Timeout: timeout}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	Temperature         float64       `json:"temperature"`
	Seed                *int          `json:"seed,omitempty"`
	ResponseFormat      any           `json:"response_format,omitempty"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
}

type chatResponse struct {
	Model             string `json:"model"`
	SystemFingerprint string `json:"system_fingerprint"`
	Choices           []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Judge grades the conversation against the rubric. It first requests strict
// json_schema output; if the provider rejects that (older models return 400),
// it retries once in json_object mode and leaves conformance to Reconcile.
// The returned output is already reconciled against the rubric.
func (c *Client) Judge(ctx context.Context, r *rubric.Rubric, turns []transcript.Turn, language, condition string) (*Output, *Meta, error) {
	payload := BuildRequestPayload(r, turns, language, condition)
	userJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal judge payload: %w", err)
	}
	messages := []chatMessage{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: string(userJSON)},
	}

	var responseFormat any = map[string]any{"type": "json_object"}
	strict := c.cfg.StrictSchema
	if strict {
		responseFormat, err = BuildResponseFormat(r, "trainee_rubric_grade", true)
		if err != nil {
			return nil, nil, err
		}
	}

	resp, err := c.complete(ctx, messages, responseFormat)
	if err != nil && strict {
		// Strict schema unsupported by the model; fall back to plain JSON
		// mode and let reconciliation absorb any shape drift.
		strict = false
		resp, err = c.complete(ctx, messages, map[string]any{"type": "json_object"})
	}
	if err != nil {
		return nil, nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, nil, fmt.Errorf("judge returned no choices")
	}

	out, err := ParseOutput([]byte(resp.Choices[0].Message.Content))
	if err != nil {
		return nil, nil, err
	}
	meta := &Meta{
		Model:             resp.Model,
		SystemFingerprint: resp.SystemFingerprint,
		PromptTokens:      resp.Usage.PromptTokens,
		CompletionTokens:  resp.Usage.CompletionTokens,
		Seed:              c.cfg.Seed,
		Temperature:       c.cfg.Temperature,
		StrictSchema:      strict,
	}
	return Reconcile(out, r), meta, nil
}

func (c *Client) complete(ctx context.Context, messages []chatMessage, responseFormat any) (*chatResponse, error) {
	body, err := json.Marshal(chatRequest{
		Model:               c.cfg.Model,
		Messages:            messages,
		Temperature:         c.cfg.Temperature,
		Seed:                c.cfg.Seed,
		ResponseFormat:      responseFormat,
		MaxCompletionTokens: c.cfg.MaxCompletionTokens,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("judge call -> %d: %s", res.StatusCode, string(b))
	}
	var out chatResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode judge response: %w", err)
	}
	return &out, nil
}
