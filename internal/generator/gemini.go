// Package generator calls the Gemini chat completions endpoint to turn a
// prompt into recipe JSON text.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"reel-recipe-go/internal/logger"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

var (
	ErrNotConfigured = errors.New("generator is missing model or api key")
	ErrEmptyResponse = errors.New("model returned no content")
)

type Config struct {
	BaseURL      string
	Temperature  float64
	Timeout      time.Duration
	MaxRetryTime time.Duration
}

// Client talks to Gemini through its OpenAI compatible API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *logrus.Entry
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(cl *Client) {
		if log != nil {
			cl.log = log
		}
	}
}

func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.MaxRetryTime <= 0 {
		cfg.MaxRetryTime = 45 * time.Second
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger.New().WithField("module", "generator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Generate sends prompt to model and returns the message content, with any
// surrounding markdown fence removed. The content is not validated as JSON.
func (c *Client) Generate(ctx context.Context, prompt, model, apiKey string) (string, error) {
	if strings.TrimSpace(model) == "" || strings.TrimSpace(apiKey) == "" {
		return "", ErrNotConfigured
	}
	log := c.log.WithField("model", model)

	data, err := json.Marshal(chatRequest{
		Model:          model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		Temperature:    c.cfg.Temperature,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", err
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	var content string
	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			log.WithError(err).Warn("llm request failed")
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			lastErr = fmt.Errorf("llm response read: %w", err)
			if ctx.Err() != nil {
				return backoff.Permanent(lastErr)
			}
			log.WithError(err).Warn("llm response truncated")
			return lastErr
		}
		log.WithField("http_status", resp.StatusCode).Debug("llm response received")

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("llm status %d: %s", resp.StatusCode, snippet(body))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(lastErr)
			}
			return lastErr
		}

		var parsed chatResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			lastErr = fmt.Errorf("llm response decode: %v body=%s", err, snippet(body))
			return backoff.Permanent(lastErr)
		}
		if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
			lastErr = ErrEmptyResponse
			return backoff.Permanent(lastErr)
		}
		content = stripFences(parsed.Choices[0].Message.Content)
		lastErr = nil
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.cfg.MaxRetryTime
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if lastErr == nil {
			lastErr = err
		}
		return "", fmt.Errorf("generate recipe: %w", lastErr)
	}
	log.WithField("chars", len(content)).Info("recipe generated")
	return content, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 300 {
		return s[:300] + "..."
	}
	return s
}

// Mock returns Text for every prompt. Used when USE_MOCK_LLM=true.
type Mock struct {
	Text string
}

func (m Mock) Generate(ctx context.Context, _, _, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.Text, nil
}

func MockEnabled() bool {
	return os.Getenv("USE_MOCK_LLM") == "true"
}

// MockRecipe is a deterministic recipe document for offline demos.
const MockRecipe = `{
  "title": "Pasta med smør og parmesan",
  "meal_type": "Aftensmad",
  "portions": 2,
  "ingredients": [
    {"name": "Spaghetti", "quantity": 200, "unit": "g"},
    {"name": "Smør", "quantity": 30, "unit": "g"},
    {"name": "Parmesan", "quantity": 40, "unit": "g"},
    {"name": "Salt", "quantity": 1, "unit": "tsk"}
  ],
  "equipment": ["Gryde", "Dørslag"],
  "instructions": [
    "Bring en stor gryde vand i kog og salt vandet.",
    "Kog pastaen i 10 minutter.",
    "Hæld vandet fra og vend pastaen med smør og revet parmesan."
  ],
  "serving_suggestions": ["Server med en grøn salat."],
  "nutritional_summary": {
    "total_recipe": {"Energi_kcal": 1180, "Protein_g": 38, "Fedt_g": 42, "Heraf_Mættet_Fedt_g": 25, "Kulhydrater_g": 150, "Heraf_Sukkerarter_g": 6, "Salt_g": 3.2},
    "per_portion": {"Energi_kcal": 590, "Protein_g": 19, "Fedt_g": 21, "Heraf_Mættet_Fedt_g": 12.5, "Kulhydrater_g": 75, "Heraf_Sukkerarter_g": 3, "Salt_g": 1.6}
  }
}`
