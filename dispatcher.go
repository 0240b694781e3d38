package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/restq/restq/types"
	"go.uber.org/zap"
)

// HTTP Dispatcher (implements types.Dispatcher)
type HTTPDispatcher struct {
	config     *types.DispatcherConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPDispatcher creates a dispatcher with a conservative default timeout.
func NewHTTPDispatcher(config *types.DispatcherConfig) *HTTPDispatcher {
	// Set defaults
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.AllowInsecure,
		},
		MaxIdleConns:       10,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
		DisableKeepAlives:  false,
	}

	client := &http.Client{
		Timeout:   time.Duration(config.RequestTimeout) * time.Second,
		Transport: transport,
	}

	dispatcher := &HTTPDispatcher{
		config:     config,
		httpClient: client,
		logger:     logger.With(zap.String("component", "dispatcher")),
	}

	dispatcher.logger.Debug("Dispatcher initialized",
		zap.Int("request_timeout_s", config.RequestTimeout),
		zap.Bool("allow_insecure", config.AllowInsecure))

	return dispatcher
}

// Dispatch issues exactly one HTTP request for the descriptor and captures
// the response. A non-2xx status is normal output; only transport-level
// failures return a *types.DispatchError.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, descriptor *types.RequestDescriptor) (*types.ResponseRecord, error) {
	if err := descriptor.Validate(); err != nil {
		return nil, &types.DispatchError{URL: descriptor.URL, Err: err}
	}

	targetURL, err := buildTargetURL(descriptor)
	if err != nil {
		return nil, &types.DispatchError{URL: descriptor.URL, Err: err}
	}

	body, contentType, err := encodeBody(descriptor.Body)
	if err != nil {
		return nil, &types.DispatchError{URL: descriptor.URL, Err: err}
	}

	method := strings.ToUpper(strings.TrimSpace(descriptor.Method))
	req, err := http.NewRequestWithContext(ctx, method, targetURL, body)
	if err != nil {
		return nil, &types.DispatchError{URL: descriptor.URL, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	for name, value := range descriptor.Headers {
		req.Header.Set(name, value)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	d.logger.Info("Dispatching request",
		zap.String("method", descriptor.Method),
		zap.String("url", targetURL),
		zap.Int("header_count", len(descriptor.Headers)))

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &types.DispatchError{URL: targetURL, Err: err}
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.DispatchError{URL: targetURL, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	record := &types.ResponseRecord{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Header,
		Body:       formatBody(responseBody),
		Elapsed:    time.Since(start),
	}

	d.logger.Info("Request dispatched",
		zap.Int("status_code", record.StatusCode),
		zap.Duration("elapsed", record.Elapsed),
		zap.Int("body_length", len(record.Body)))

	return record, nil
}

// buildTargetURL merges descriptor query params into the target URL.
func buildTargetURL(descriptor *types.RequestDescriptor) (string, error) {
	if len(descriptor.Params) == 0 {
		return descriptor.URL, nil
	}

	parsed, err := url.Parse(descriptor.URL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", descriptor.URL, err)
	}

	query := parsed.Query()
	for name, value := range descriptor.Params {
		query.Set(name, value)
	}
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

// encodeBody prepares the request body. JSON-shaped bodies (maps, arrays)
// are marshaled and tagged application/json; strings go out raw.
func encodeBody(body interface{}) (io.Reader, string, error) {
	switch value := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		if value == "" {
			return nil, "", nil
		}
		return strings.NewReader(value), "", nil
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		return bytes.NewReader(encoded), "application/json", nil
	}
}

// formatBody pretty-prints valid JSON bodies; anything else is returned
// verbatim, unaltered.
func formatBody(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return string(body)
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return string(body)
	}

	var indented bytes.Buffer
	if err := json.Indent(&indented, trimmed, "", "  "); err != nil {
		return string(body)
	}
	return indented.String()
}
