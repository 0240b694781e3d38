package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/restq/restq/types"
	"go.uber.org/zap"
)

// Gemini API constants
const (
	GEMINI_DEFAULT_ENDPOINT  = "https://generativelanguage.googleapis.com/v1beta"
	GEMINI_GENERATE_ENDPOINT = "/models/%s:generateContent"
	GEMINI_DEFAULT_MODEL     = "gemini-2.0-flash-exp"
	GEMINI_DEFAULT_TEMP      = 0.1
)

// translationInstruction is the fixed system prompt. The model must answer
// with a single JSON object and nothing else; parseDescriptor still tolerates
// markdown fences because smaller models add them anyway.
const translationInstruction = `You translate a user's natural-language request into exactly one HTTP request description.

Respond with a single JSON object and no other text:
{
  "method": "GET|POST|PUT|DELETE|PATCH",
  "url": "complete absolute URL of the API endpoint",
  "headers": {"optional": "HTTP headers"},
  "params": {"optional": "URL query parameters"},
  "body": {"optional request body, JSON object or string"}
}

Omit headers, params and body when the request does not need them.
Never invent authentication credentials; only include ones the user supplied.`

// Gemini generateContent wire structures
type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"response_mime_type,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"system_instruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Gemini Client (implements types.Translator)
type GeminiClient struct {
	config     *types.TranslatorConfig
	httpClient *http.Client
	logger     *zap.Logger
	endpoint   string
}

// NewGeminiClient creates a new Gemini translator client. The API key is
// injected here rather than read from the environment inside the component.
func NewGeminiClient(config *types.TranslatorConfig) *GeminiClient {
	// Set defaults
	if config.Model == "" {
		config.Model = GEMINI_DEFAULT_MODEL
	}
	if config.Temperature == 0 {
		config.Temperature = GEMINI_DEFAULT_TEMP
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30
	}

	endpoint := strings.TrimSuffix(config.Endpoint, "/")
	if endpoint == "" {
		endpoint = GEMINI_DEFAULT_ENDPOINT
	}

	client := &http.Client{
		Timeout: time.Duration(config.RequestTimeout) * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:       10,
			IdleConnTimeout:    90 * time.Second,
			DisableCompression: false,
			DisableKeepAlives:  false,
		},
	}

	geminiClient := &GeminiClient{
		config:     config,
		httpClient: client,
		logger:     logger.With(zap.String("component", "gemini_client")),
		endpoint:   endpoint,
	}

	geminiClient.logger.Info("Gemini client initialized",
		zap.String("model", config.Model),
		zap.Float64("temperature", config.Temperature),
		zap.String("endpoint", endpoint))

	return geminiClient
}

// Translate sends the question to the Gemini generateContent API and parses
// the reply into a RequestDescriptor. Every failure mode surfaces as a
// *types.TranslationError; no retry is attempted.
func (c *GeminiClient) Translate(ctx context.Context, query *types.Query) (*types.RequestDescriptor, error) {
	if c.config.APIKey == "" {
		return nil, &types.TranslationError{Reason: "API key not configured (set GEMINI_API_KEY)"}
	}

	model := query.Model
	if model == "" {
		model = c.config.Model
	}

	c.logger.Info("Translating question",
		zap.String("model", model),
		zap.Float64("temperature", query.Temperature),
		zap.Int("question_length", len(query.Question)))

	payload := geminiRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: translationInstruction}},
		},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: query.Question}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      query.Temperature,
			ResponseMIMEType: "application/json",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &types.TranslationError{Reason: "failed to encode request", Err: err}
	}

	url := fmt.Sprintf("%s"+GEMINI_GENERATE_ENDPOINT, c.endpoint, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &types.TranslationError{Reason: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &types.TranslationError{Reason: "Gemini API unreachable", Err: err}
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.TranslationError{Reason: "failed to read Gemini response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &types.TranslationError{
			Reason: fmt.Sprintf("Gemini API returned HTTP %d: %s", resp.StatusCode, compact(responseBody, 200)),
		}
	}

	var out geminiResponse
	if err := json.Unmarshal(responseBody, &out); err != nil {
		return nil, &types.TranslationError{Reason: "failed to decode Gemini response", Err: err}
	}
	if out.Error != nil {
		return nil, &types.TranslationError{
			Reason: fmt.Sprintf("Gemini API error %d (%s): %s", out.Error.Code, out.Error.Status, out.Error.Message),
		}
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, &types.TranslationError{Reason: "Gemini returned no candidates"}
	}

	reply := out.Candidates[0].Content.Parts[0].Text

	descriptor, err := parseDescriptor(reply)
	if err != nil {
		return nil, &types.TranslationError{Reason: "model reply is not a request description", Err: err}
	}

	if err := descriptor.Validate(); err != nil {
		return nil, &types.TranslationError{Reason: "model produced an invalid request", Err: err}
	}

	c.logger.Info("Question translated successfully",
		zap.String("method", descriptor.Method),
		zap.String("url", descriptor.URL),
		zap.Int("header_count", len(descriptor.Headers)),
		zap.Int("param_count", len(descriptor.Params)))

	return descriptor, nil
}

// parseDescriptor extracts the JSON request description from the model reply.
// The reply may be wrapped in markdown code fences or surrounded by prose;
// everything outside the outermost braces is discarded.
func parseDescriptor(reply string) (*types.RequestDescriptor, error) {
	text := strings.TrimSpace(reply)
	if text == "" {
		return nil, fmt.Errorf("empty model reply")
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model reply: %s", compact([]byte(text), 120))
	}

	var descriptor types.RequestDescriptor
	if err := json.Unmarshal([]byte(text[start:end+1]), &descriptor); err != nil {
		return nil, fmt.Errorf("failed to parse model reply as JSON: %w", err)
	}

	descriptor.Method = strings.ToUpper(strings.TrimSpace(descriptor.Method))
	descriptor.URL = strings.TrimSpace(descriptor.URL)

	return &descriptor, nil
}

// compact trims a response body for error messages
func compact(body []byte, max int) string {
	s := strings.Join(strings.Fields(string(body)), " ")
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
