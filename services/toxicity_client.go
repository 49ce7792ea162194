package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ToxicityResult is the normalized classifier output: an overall score in
// [0,1] plus a per-category breakdown.
type ToxicityResult struct {
	Score      float64
	Categories map[string]float64
}

// ToxicityClient scores a chat message for toxicity. Two interchangeable HTTP
// providers implement it; which one runs is configuration, not logic.
type ToxicityClient interface {
	ScoreMessage(ctx context.Context, text string) (*ToxicityResult, error)
}

// NewToxicityClientFromEnv selects the provider via TOXICITY_PROVIDER
// ("perspective" or "openai", default "perspective").
func NewToxicityClientFromEnv() ToxicityClient {
	apiKey := os.Getenv("TOXICITY_API_KEY")
	switch os.Getenv("TOXICITY_PROVIDER") {
	case "openai":
		return NewOpenAIModerationClient(envOr("TOXICITY_API_URL", "https://api.openai.com/v1/moderations"), apiKey)
	default:
		return NewPerspectiveClient(envOr("TOXICITY_API_URL", "https://commentanalyzer.googleapis.com/v1alpha1/comments:analyze"), apiKey)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// PerspectiveClient calls the Perspective comment-analyzer API. The API key
// travels as a query parameter; the overall score is the TOXICITY attribute.
type PerspectiveClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewPerspectiveClient(baseURL, apiKey string) *PerspectiveClient {
	return &PerspectiveClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 8 * time.Second},
	}
}

func (c *PerspectiveClient) ScoreMessage(ctx context.Context, text string) (*ToxicityResult, error) {
	reqBody := map[string]interface{}{
		"comment": map[string]string{"text": text},
		"requestedAttributes": map[string]interface{}{
			"TOXICITY":        map[string]interface{}{},
			"SEVERE_TOXICITY": map[string]interface{}{},
			"INSULT":          map[string]interface{}{},
			"THREAT":          map[string]interface{}{},
			"IDENTITY_ATTACK": map[string]interface{}{},
		},
		"doNotStore": true,
	}
	jsonData, _ := json.Marshal(reqBody)

	url := fmt.Sprintf("%s?key=%s", c.BaseURL, c.APIKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perspective request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("perspective returned %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		AttributeScores map[string]struct {
			SummaryScore struct {
				Value float64 `json:"value"`
			} `json:"summaryScore"`
		} `json:"attributeScores"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode perspective response: %w", err)
	}

	result := &ToxicityResult{Categories: make(map[string]float64, len(out.AttributeScores))}
	for attr, score := range out.AttributeScores {
		result.Categories[attr] = score.SummaryScore.Value
		if attr == "TOXICITY" {
			result.Score = score.SummaryScore.Value
		}
	}
	return result, nil
}

// OpenAIModerationClient calls an OpenAI-style /moderations endpoint. The
// overall score is the highest category score.
type OpenAIModerationClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewOpenAIModerationClient(baseURL, apiKey string) *OpenAIModerationClient {
	return &OpenAIModerationClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 8 * time.Second},
	}
}

func (c *OpenAIModerationClient) ScoreMessage(ctx context.Context, text string) (*ToxicityResult, error) {
	reqBody := map[string]string{"input": text}
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("moderation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("moderation API returned %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Results []struct {
			CategoryScores map[string]float64 `json:"category_scores"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode moderation response: %w", err)
	}
	if len(out.Results) == 0 {
		return nil, fmt.Errorf("moderation API returned no results")
	}

	result := &ToxicityResult{Categories: out.Results[0].CategoryScores}
	for _, score := range result.Categories {
		if score > result.Score {
			result.Score = score
		}
	}
	return result, nil
}
