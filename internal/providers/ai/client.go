package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/IrishDec/heiyuquiz-server/internal/app"
)

const defaultTimeout = 30 * time.Second

// Client asks a chat-completions style endpoint for quiz questions. The
// model's output is freeform JSON and must be treated as untrusted: shape
// repair happens downstream in the supplier, this client only extracts
// whatever candidates it can.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate requests amount candidates about the topic, optionally flavored
// for a country and difficulty.
func (c *Client) Generate(ctx context.Context, topic, country string, amount int, difficulty string) ([]app.AICandidate, error) {
	prompt := buildPrompt(topic, country, amount, difficulty)
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You write multiple-choice quiz questions. Respond with JSON only."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ai endpoint returned status %d", resp.StatusCode)
	}

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode ai response: %w", err)
	}
	if len(body.Choices) == 0 {
		return nil, fmt.Errorf("ai response had no choices")
	}
	return ExtractCandidates(body.Choices[0].Message.Content)
}

func buildPrompt(topic, country string, amount int, difficulty string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d multiple-choice quiz questions about %q.", amount, topic)
	if country != "" {
		fmt.Fprintf(&b, " Flavor them for an audience in %s where it fits.", country)
	}
	if difficulty != "" {
		fmt.Fprintf(&b, " Difficulty: %s.", difficulty)
	}
	b.WriteString(` Reply with a JSON object: {"questions":[{"q":"...","options":["a","b","c","d"],"correctIndex":0}]}. Exactly 4 options each.`)
	return b.String()
}

// ExtractCandidates digs a questions array out of possibly chatty model
// output. Fields are coerced leniently; anything unusable is skipped.
func ExtractCandidates(content string) ([]app.AICandidate, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in ai output")
	}

	var envelope struct {
		Questions []map[string]any `json:"questions"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &envelope); err != nil {
		return nil, fmt.Errorf("parse ai output: %w", err)
	}
	if len(envelope.Questions) == 0 {
		return nil, fmt.Errorf("ai output had no questions array")
	}

	candidates := make([]app.AICandidate, 0, len(envelope.Questions))
	for _, raw := range envelope.Questions {
		c := app.AICandidate{
			Text:         coerceString(firstOf(raw, "q", "question", "text")),
			Options:      coerceStrings(firstOf(raw, "options", "choices")),
			CorrectIndex: coerceIndex(firstOf(raw, "correctIndex", "correct_index", "answer")),
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func coerceString(v any) string {
	s, _ := v.(string)
	return s
}

func coerceStrings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func coerceIndex(v any) *int {
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) {
			i := int(n)
			return &i
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return &i
		}
	}
	return nil
}
