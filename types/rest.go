package types

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Core data structures - shared between CLI and REST server

// Query is one natural-language request plus the model parameters used to
// translate it. Built once per invocation and never mutated.
type Query struct {
	Question    string  `json:"question"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

// RequestDescriptor is a structured HTTP call extracted from the model reply.
type RequestDescriptor struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Params  map[string]string `json:"params,omitempty"`
	Body    interface{}       `json:"body,omitempty"`
}

// ResponseRecord captures the result of dispatching a RequestDescriptor.
type ResponseRecord struct {
	StatusCode int           `json:"status_code"`
	Status     string        `json:"status"`
	Headers    http.Header   `json:"headers"`
	Body       string        `json:"body"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// Recognized HTTP verbs the translator may emit
var supportedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
}

// IsSupportedMethod reports whether method is one of GET/POST/PUT/DELETE/PATCH.
func IsSupportedMethod(method string) bool {
	return supportedMethods[strings.ToUpper(strings.TrimSpace(method))]
}

// Validate checks the descriptor for a recognized verb and a syntactically
// valid absolute http(s) URL.
func (d *RequestDescriptor) Validate() error {
	if d.Method == "" {
		return fmt.Errorf("descriptor has no HTTP method")
	}
	if !IsSupportedMethod(d.Method) {
		return fmt.Errorf("unsupported HTTP method: %s", d.Method)
	}
	if strings.TrimSpace(d.URL) == "" {
		return fmt.Errorf("descriptor has no URL")
	}
	parsed, err := url.Parse(d.URL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", d.URL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL must be absolute http(s), got %q", d.URL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL has no host: %q", d.URL)
	}
	return nil
}

// Success reports whether the upstream returned a 2xx status. A non-2xx
// record is still valid output, never an error.
func (r *ResponseRecord) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// TranslationError wraps any failure between sending the question to the
// model and producing a valid RequestDescriptor.
type TranslationError struct {
	Reason string
	Err    error
}

func (e *TranslationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("translation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("translation failed: %s", e.Reason)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// DispatchError wraps a transport-level failure reaching the target API.
// HTTP error statuses from the target are not DispatchErrors.
type DispatchError struct {
	URL string
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch to %s failed: %v", e.URL, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Translator configuration
type TranslatorConfig struct {
	APIKey         string  `json:"api_key"`
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	Endpoint       string  `json:"endpoint"`
	RequestTimeout int     `json:"request_timeout"`
	Debug          bool    `json:"debug"`
}

// Dispatcher configuration
type DispatcherConfig struct {
	RequestTimeout int  `json:"request_timeout"`
	AllowInsecure  bool `json:"allow_insecure"`
	Debug          bool `json:"debug"`
}

// Translator interface - shared contract
//
// Converts one Query into one RequestDescriptor via a hosted language model.
// Kept narrow (text in, descriptor out) so tests can swap in a deterministic
// implementation.
type Translator interface {
	Translate(ctx context.Context, query *Query) (*RequestDescriptor, error)
}

// Dispatcher interface - shared contract
//
// Executes one RequestDescriptor as a real HTTP call. Exactly one request,
// no retries.
type Dispatcher interface {
	Dispatch(ctx context.Context, descriptor *RequestDescriptor) (*ResponseRecord, error)
}
