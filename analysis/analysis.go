// Package analysis turns fetched account data into AI-generated
// narratives (niche, summary, strengths/weaknesses, recommendations)
// through an OpenAI-compatible chat-completions endpoint. The model
// may be unreachable or answer garbage; callers fall back to the
// deterministic narratives in defaults.go so the API always returns a
// complete payload.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Olegcreabuilder/createshorts-backend/stats"
	"github.com/Olegcreabuilder/createshorts-backend/tiktok"
)

// ErrMalformed means the model answered but not with the JSON we asked for.
var ErrMalformed = errors.New("analysis: malformed model response")

// AccountAnalysis is the model's verdict on a whole account. JSON keys
// match the persisted columns (the original frontend reads them as-is).
type AccountAnalysis struct {
	Niche           string   `json:"niche"`
	Summary         string   `json:"resume"`
	Strengths       []string `json:"points_forts"`
	Weaknesses      []string `json:"points_faibles"`
	Recommendations []string `json:"recommandations"`
}

// VideoAnalysis is the model's verdict on a single video.
type VideoAnalysis struct {
	Summary         string   `json:"summary"`
	Strengths       []string `json:"strengths"`
	Improvements    []string `json:"improvements"`
	Recommendations []string `json:"recommendations"`
	Score           float64  `json:"score"`
}

// Client calls an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

// NewClient creates a Client with the production defaults.
func NewClient(apiKey string) *Client {
	return &Client{
		BaseURL: "https://api.openai.com/v1",
		APIKey:  apiKey,
		Model:   "gpt-4o-mini",
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

const systemPrompt = "Tu es un expert en analyse de comptes TikTok. Tu fournis toujours des réponses au format JSON valide."

// AnalyzeAccount asks the model for a full account analysis.
func (c *Client) AnalyzeAccount(ctx context.Context, p tiktok.Profile, videos []tiktok.Video, st stats.Stats) (AccountAnalysis, error) {
	var out AccountAnalysis
	if err := c.complete(ctx, AccountPrompt(p, videos, st), &out); err != nil {
		return AccountAnalysis{}, err
	}
	if out.Niche == "" && out.Summary == "" {
		return AccountAnalysis{}, fmt.Errorf("empty account analysis: %w", ErrMalformed)
	}
	return out, nil
}

// AnalyzeVideo asks the model for a single-video analysis.
func (c *Client) AnalyzeVideo(ctx context.Context, v tiktok.Video) (VideoAnalysis, error) {
	var out VideoAnalysis
	if err := c.complete(ctx, VideoPrompt(v), &out); err != nil {
		return VideoAnalysis{}, err
	}
	if out.Summary == "" {
		return VideoAnalysis{}, fmt.Errorf("empty video analysis: %w", ErrMalformed)
	}
	return out, nil
}

// complete sends one chat completion and decodes the JSON answer into out.
func (c *Client) complete(ctx context.Context, prompt string, out interface{}) error {
	if c == nil || c.APIKey == "" {
		return errors.New("analysis: client not configured")
	}

	reqBody, _ := json.Marshal(map[string]interface{}{
		"model": c.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"temperature":     0.7,
		"response_format": map[string]string{"type": "json_object"},
	})

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/chat/completions", strings.NewReader(string(reqBody)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("analysis: completion failed: status=%d", resp.StatusCode)
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("decode completion envelope: %w", ErrMalformed)
	}
	if len(result.Choices) == 0 {
		return fmt.Errorf("no choices in completion: %w", ErrMalformed)
	}

	content := stripCodeFence(result.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("decode model json: %w", ErrMalformed)
	}
	return nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models emit
// even when asked for a bare JSON object.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
