package annotate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultMistralBaseURL = "https://api.mistral.ai"

// Mistral annotates images through the Mistral chat completions API
// (Pixtral vision models).
type Mistral struct {
	apiKey  string
	model   string
	maxDim  int
	client  *http.Client
	baseURL string
}

// NewMistral creates a Mistral annotator.
func NewMistral(apiKey, model string, timeout time.Duration, maxDim int) *Mistral {
	return &Mistral{
		apiKey:  apiKey,
		model:   model,
		maxDim:  maxDim,
		client:  &http.Client{Timeout: timeout},
		baseURL: defaultMistralBaseURL,
	}
}

// Name implements batch.Annotator.
func (m *Mistral) Name() string { return "mistral" }

type mistralRequest struct {
	Model    string           `json:"model"`
	Messages []mistralMessage `json:"messages"`
}

type mistralMessage struct {
	Role    string           `json:"role"`
	Content []mistralContent `json:"content"`
}

type mistralContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type mistralResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Annotate sends the image as a data URL with the tagging prompt and
// parses the comma-separated reply.
func (m *Mistral) Annotate(ctx context.Context, path string) ([]string, error) {
	data, mime, err := imagePayload(path, m.maxDim)
	if err != nil {
		return nil, err
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
	reqBody := mistralRequest{
		Model: m.model,
		Messages: []mistralMessage{{
			Role: "user",
			Content: []mistralContent{
				{Type: "text", Text: Prompt},
				{Type: "image_url", ImageURL: dataURL},
			},
		}},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mistral request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build mistral request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mistral request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read mistral response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classify(m.Name(), resp.StatusCode, string(body))
	}

	var parsed mistralResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode mistral response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("mistral returned no choices for %s", path)
	}

	tags := parseTags(parsed.Choices[0].Message.Content)
	if len(tags) == 0 {
		return nil, fmt.Errorf("mistral returned no tags for %s", path)
	}
	return tags, nil
}
