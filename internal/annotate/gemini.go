package annotate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini annotates images through the Google Gemini generateContent API.
type Gemini struct {
	apiKey  string
	model   string
	maxDim  int
	client  *http.Client
	baseURL string
}

// NewGemini creates a Gemini annotator.
func NewGemini(apiKey, model string, timeout time.Duration, maxDim int) *Gemini {
	return &Gemini{
		apiKey:  apiKey,
		model:   model,
		maxDim:  maxDim,
		client:  &http.Client{Timeout: timeout},
		baseURL: defaultGeminiBaseURL,
	}
}

// Name implements batch.Annotator.
func (g *Gemini) Name() string { return "gemini" }

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Annotate sends the image inline with the tagging prompt and parses the
// comma-separated reply.
func (g *Gemini) Annotate(ctx context.Context, path string) ([]string, error) {
	data, mime, err := imagePayload(path, g.maxDim)
	if err != nil {
		return nil, err
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{
					MimeType: mime,
					Data:     base64.StdEncoding.EncodeToString(data),
				}},
				{Text: Prompt},
			},
		}},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read gemini response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classify(g.Name(), resp.StatusCode, string(body))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode gemini response: %w", err)
	}

	var reply strings.Builder
	for _, c := range parsed.Candidates {
		for _, p := range c.Content.Parts {
			reply.WriteString(p.Text)
		}
		break
	}

	tags := parseTags(reply.String())
	if len(tags) == 0 {
		return nil, fmt.Errorf("gemini returned no tags for %s", path)
	}
	return tags, nil
}
