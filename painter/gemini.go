package painter

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

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultModel   = "gemini-2.0-flash-exp-image-generation"
)

// Gemini calls the generateContent endpoint with an inline image part and a
// text part, and scans the response parts for the repainted image.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewGemini(apiKey, model string) *Gemini {
	if model == "" {
		model = defaultModel
	}
	return &Gemini{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (g *Gemini) Name() string { return g.model }

// SetBaseURL overrides the endpoint, for tests.
func (g *Gemini) SetBaseURL(u string) { g.baseURL = u }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerateRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities,omitempty"`
	} `json:"generationConfig"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *geminiError `json:"error,omitempty"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (g *Gemini) Generate(ctx context.Context, genReq Request) (Result, error) {
	req := geminiGenerateRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{
					MimeType: "image/png",
					Data:     base64.StdEncoding.EncodeToString(genReq.ImagePNG),
				}},
				{Text: genReq.Prompt},
			},
		}},
	}
	req.GenerationConfig.ResponseModalities = []string{"IMAGE", "TEXT"}

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	var genResp geminiGenerateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return Result{}, fmt.Errorf("api error %d: %s", resp.StatusCode, ExtractErrorMessage(string(respBody)))
		}
		return Result{}, fmt.Errorf("unmarshal response: %w", err)
	}

	if genResp.Error != nil {
		return Result{}, fmt.Errorf("api error %d: %s", genResp.Error.Code, ExtractErrorMessage(genResp.Error.Message))
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("api error %d: %s", resp.StatusCode, ExtractErrorMessage(string(respBody)))
	}

	return scanForImage(genResp), nil
}

// scanForImage walks the candidate parts in order and returns the first
// inline image payload.
func scanForImage(resp geminiGenerateResponse) Result {
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || !strings.HasPrefix(part.InlineData.MimeType, "image/") {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				continue
			}
			return Result{Image: data, MimeType: part.InlineData.MimeType, Found: true}
		}
	}
	return Result{}
}

// ExtractErrorMessage unwraps an error envelope that providers sometimes
// embed as JSON inside a string-typed message. Structured parse first, raw
// text as the fallback.
func ExtractErrorMessage(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return raw
	}
	var envelope struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return raw
	}
	if envelope.Error != nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	return raw
}
