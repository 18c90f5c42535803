package trivia

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/IrishDec/heiyuquiz-server/internal/app"
)

const defaultTimeout = 10 * time.Second

// Client talks to an Open Trivia DB compatible feed. Response text is
// HTML-entity encoded on the wire and decoded here.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type apiResponse struct {
	ResponseCode int `json:"response_code"`
	Results      []struct {
		Question         string   `json:"question"`
		CorrectAnswer    string   `json:"correct_answer"`
		IncorrectAnswers []string `json:"incorrect_answers"`
	} `json:"results"`
}

// Fetch requests multiple-choice questions, optionally scoped to a feed
// category id. An empty categoryID means any category.
func (c *Client) Fetch(ctx context.Context, categoryID string, amount int) ([]app.TriviaItem, error) {
	params := url.Values{}
	params.Set("amount", strconv.Itoa(amount))
	params.Set("type", "multiple")
	if categoryID != "" {
		params.Set("category", categoryID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trivia request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trivia feed returned status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode trivia response: %w", err)
	}
	if body.ResponseCode != 0 {
		return nil, fmt.Errorf("trivia feed response code %d", body.ResponseCode)
	}

	items := make([]app.TriviaItem, 0, len(body.Results))
	for _, r := range body.Results {
		item := app.TriviaItem{
			Question:      html.UnescapeString(r.Question),
			CorrectAnswer: html.UnescapeString(r.CorrectAnswer),
		}
		for _, wrong := range r.IncorrectAnswers {
			item.IncorrectAnswers = append(item.IncorrectAnswers, html.UnescapeString(wrong))
		}
		items = append(items, item)
	}
	return items, nil
}
