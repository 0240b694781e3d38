package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/restq/restq/types"
)

type stubTranslator struct {
	descriptor *types.RequestDescriptor
	err        error
}

func (s *stubTranslator) Translate(ctx context.Context, query *types.Query) (*types.RequestDescriptor, error) {
	return s.descriptor, s.err
}

type recordingDispatcher struct {
	record *types.ResponseRecord
	err    error
	called bool
	got    *types.RequestDescriptor
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, descriptor *types.RequestDescriptor) (*types.ResponseRecord, error) {
	d.called = true
	d.got = descriptor
	return d.record, d.err
}

type fakePrompter struct {
	answer string
	err    error
	asked  bool
}

func (p *fakePrompter) AskQuestion() (string, error) {
	p.asked = true
	return p.answer, p.err
}

func TestHandleAskSuccess(t *testing.T) {
	descriptor := &types.RequestDescriptor{Method: "GET", URL: "https://example.com/users/1"}
	dispatcher := &recordingDispatcher{
		record: &types.ResponseRecord{StatusCode: 200, Status: "200 OK", Body: "{}", Elapsed: time.Millisecond},
	}

	query := &types.Query{Question: "fetch user 1", Model: GEMINI_DEFAULT_MODEL, Temperature: 0.1}
	err := HandleAsk(context.Background(), query, &stubTranslator{descriptor: descriptor}, dispatcher, true, false)
	if err != nil {
		t.Fatalf("HandleAsk returned error: %v", err)
	}
	if !dispatcher.called {
		t.Fatal("dispatcher was not called")
	}
	if dispatcher.got != descriptor {
		t.Error("dispatcher did not receive the translated descriptor")
	}
}

func TestHandleAskTranslationErrorSkipsDispatch(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	translator := &stubTranslator{err: &types.TranslationError{Reason: "no JSON object in model reply"}}

	query := &types.Query{Question: "gibberish", Model: GEMINI_DEFAULT_MODEL, Temperature: 0.1}
	err := HandleAsk(context.Background(), query, translator, dispatcher, true, false)

	var translationErr *types.TranslationError
	if !errors.As(err, &translationErr) {
		t.Fatalf("want *types.TranslationError, got %v", err)
	}
	if dispatcher.called {
		t.Error("dispatcher must not be called after translation failure")
	}
}

func TestHandleAskDispatchErrorPropagates(t *testing.T) {
	descriptor := &types.RequestDescriptor{Method: "GET", URL: "https://example.com/"}
	dispatcher := &recordingDispatcher{err: &types.DispatchError{URL: descriptor.URL, Err: errors.New("connection refused")}}

	query := &types.Query{Question: "fetch", Model: GEMINI_DEFAULT_MODEL, Temperature: 0.1}
	err := HandleAsk(context.Background(), query, &stubTranslator{descriptor: descriptor}, dispatcher, true, false)

	var dispatchErr *types.DispatchError
	if !errors.As(err, &dispatchErr) {
		t.Fatalf("want *types.DispatchError, got %v", err)
	}
}

func TestHandleTranslatePrintsDescriptor(t *testing.T) {
	descriptor := &types.RequestDescriptor{Method: "GET", URL: "https://example.com/"}
	query := &types.Query{Question: "fetch", Model: GEMINI_DEFAULT_MODEL, Temperature: 0.1}

	if err := HandleTranslate(context.Background(), query, &stubTranslator{descriptor: descriptor}, true, false); err != nil {
		t.Fatalf("HandleTranslate returned error: %v", err)
	}
}

func TestResolveQuestionFromFlag(t *testing.T) {
	config := &Config{Question: "  what time is it  "}
	got, err := resolveQuestion(config, nil, &fakePrompter{})
	if err != nil {
		t.Fatalf("resolveQuestion error: %v", err)
	}
	if got != "what time is it" {
		t.Errorf("question = %q", got)
	}
}

func TestResolveQuestionFromArgs(t *testing.T) {
	config := &Config{}
	got, err := resolveQuestion(config, []string{"fetch", "the", "users"}, &fakePrompter{})
	if err != nil {
		t.Fatalf("resolveQuestion error: %v", err)
	}
	if got != "fetch the users" {
		t.Errorf("question = %q", got)
	}
}

func TestResolveQuestionFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "question.txt")
	if err := os.WriteFile(path, []byte("list all todos\n"), 0644); err != nil {
		t.Fatal(err)
	}

	config := &Config{Question: path}
	got, err := resolveQuestion(config, nil, &fakePrompter{})
	if err != nil {
		t.Fatalf("resolveQuestion error: %v", err)
	}
	if got != "list all todos" {
		t.Errorf("question = %q", got)
	}
}

func TestResolveQuestionInteractive(t *testing.T) {
	prompter := &fakePrompter{answer: "fetch user 1"}
	got, err := resolveQuestion(&Config{}, nil, prompter)
	if err != nil {
		t.Fatalf("resolveQuestion error: %v", err)
	}
	if !prompter.asked {
		t.Fatal("prompter was not used")
	}
	if got != "fetch user 1" {
		t.Errorf("question = %q", got)
	}
}

func TestResolveQuestionEmptyInteractiveAnswer(t *testing.T) {
	if _, err := resolveQuestion(&Config{}, nil, &fakePrompter{answer: "   "}); err == nil {
		t.Fatal("want error for blank interactive answer")
	}
}

func TestResolveQuestionPrompterError(t *testing.T) {
	prompter := &fakePrompter{err: errors.New("terminal closed")}
	if _, err := resolveQuestion(&Config{}, nil, prompter); err == nil {
		t.Fatal("want error when prompter fails")
	}
}
