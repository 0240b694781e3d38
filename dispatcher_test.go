package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/restq/restq/types"
)

func newTestDispatcher() *HTTPDispatcher {
	return NewHTTPDispatcher(&types.DispatcherConfig{})
}

func TestDispatchPassesDescriptorThrough(t *testing.T) {
	var gotMethod, gotHeader, gotContentType, gotBody, gotParam string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Trace")
		gotContentType = r.Header.Get("Content-Type")
		gotParam = r.URL.Query().Get("page")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":7}`)
	}))
	defer srv.Close()

	descriptor := &types.RequestDescriptor{
		Method:  "POST",
		URL:     srv.URL + "/items",
		Headers: map[string]string{"X-Trace": "abc"},
		Params:  map[string]string{"page": "2"},
		Body:    map[string]interface{}{"name": "box"},
	}

	record, err := newTestDispatcher().Dispatch(context.Background(), descriptor)
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}

	if gotMethod != "POST" {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotHeader != "abc" {
		t.Errorf("header not forwarded, got %q", gotHeader)
	}
	if gotContentType != "application/json" {
		t.Errorf("JSON body missing content type, got %q", gotContentType)
	}
	if gotParam != "2" {
		t.Errorf("query param not merged, got %q", gotParam)
	}
	if gotBody != `{"name":"box"}` {
		t.Errorf("body = %q", gotBody)
	}
	if record.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want 201", record.StatusCode)
	}
}

func TestDispatchNon2xxIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"no such user"}`)
	}))
	defer srv.Close()

	record, err := newTestDispatcher().Dispatch(context.Background(), &types.RequestDescriptor{
		Method: "GET",
		URL:    srv.URL + "/users/999",
	})
	if err != nil {
		t.Fatalf("non-2xx must not be a dispatch error, got: %v", err)
	}
	if record.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", record.StatusCode)
	}
	if record.Success() {
		t.Error("Success() = true for 404")
	}
	if !strings.Contains(record.Body, "no such user") {
		t.Errorf("upstream error detail lost: %q", record.Body)
	}
}

func TestDispatchPrettyPrintsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"a":1,"b":[2,3]}`)
	}))
	defer srv.Close()

	record, err := newTestDispatcher().Dispatch(context.Background(), &types.RequestDescriptor{
		Method: "GET",
		URL:    srv.URL,
	})
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}

	want := "{\n  \"a\": 1,\n  \"b\": [\n    2,\n    3\n  ]\n}"
	if record.Body != want {
		t.Errorf("body not pretty-printed:\n%s", record.Body)
	}
}

func TestDispatchNonJSONBodyVerbatim(t *testing.T) {
	const raw = "hello, world\nline two\t{not json"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, raw)
	}))
	defer srv.Close()

	record, err := newTestDispatcher().Dispatch(context.Background(), &types.RequestDescriptor{
		Method: "GET",
		URL:    srv.URL,
	})
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if record.Body != raw {
		t.Errorf("non-JSON body altered: %q", record.Body)
	}
}

func TestDispatchStringBodyRaw(t *testing.T) {
	var gotBody, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotContentType = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	_, err := newTestDispatcher().Dispatch(context.Background(), &types.RequestDescriptor{
		Method: "PUT",
		URL:    srv.URL,
		Body:   "plain=payload",
	})
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if gotBody != "plain=payload" {
		t.Errorf("string body changed: %q", gotBody)
	}
	if gotContentType == "application/json" {
		t.Error("string body must not be tagged application/json")
	}
}

func TestDispatchHeaderOverridesDefaultContentType(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	_, err := newTestDispatcher().Dispatch(context.Background(), &types.RequestDescriptor{
		Method:  "POST",
		URL:     srv.URL,
		Headers: map[string]string{"Content-Type": "application/vnd.api+json"},
		Body:    map[string]interface{}{"k": "v"},
	})
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}
	if gotContentType != "application/vnd.api+json" {
		t.Errorf("descriptor header overridden, got %q", gotContentType)
	}
}

func TestDispatchUnreachableTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestDispatcher().Dispatch(context.Background(), &types.RequestDescriptor{
		Method: "GET",
		URL:    url,
	})
	var dispatchErr *types.DispatchError
	if !errors.As(err, &dispatchErr) {
		t.Fatalf("want *types.DispatchError, got %T: %v", err, err)
	}
}

func TestDispatchContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestDispatcher().Dispatch(ctx, &types.RequestDescriptor{
		Method: "GET",
		URL:    srv.URL,
	})
	var dispatchErr *types.DispatchError
	if !errors.As(err, &dispatchErr) {
		t.Fatalf("want *types.DispatchError on timeout, got %v", err)
	}
}

func TestDispatchRejectsInvalidDescriptor(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := newTestDispatcher().Dispatch(context.Background(), &types.RequestDescriptor{
		Method: "TRACE",
		URL:    srv.URL,
	})
	if err == nil {
		t.Fatal("want error for unsupported method")
	}
	if called {
		t.Error("request issued despite invalid descriptor")
	}
}

func TestBuildTargetURLKeepsExistingQuery(t *testing.T) {
	descriptor := &types.RequestDescriptor{
		Method: "GET",
		URL:    "https://example.com/search?q=box",
		Params: map[string]string{"page": "3"},
	}

	got, err := buildTargetURL(descriptor)
	if err != nil {
		t.Fatalf("buildTargetURL error: %v", err)
	}
	if !strings.Contains(got, "q=box") || !strings.Contains(got, "page=3") {
		t.Errorf("merged URL = %q", got)
	}
}

func TestFormatBody(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"object", `{"a":1}`, "{\n  \"a\": 1\n}"},
		{"array", `[1,2]`, "[\n  1,\n  2\n]"},
		{"invalid json", `{"a":`, `{"a":`},
		{"plain text", "hello", "hello"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatBody([]byte(tt.in)); got != tt.want {
				t.Errorf("formatBody(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
