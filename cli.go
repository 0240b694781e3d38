package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/restq/restq/types"
)

// Prompter abstracts the interactive question prompt for testability.
type Prompter interface {
	AskQuestion() (string, error)
}

// surveyPrompter is the real interactive implementation.
type surveyPrompter struct{}

func (surveyPrompter) AskQuestion() (string, error) {
	var question string
	prompt := &survey.Input{Message: "Enter your question:"}
	if err := survey.AskOne(prompt, &question); err != nil {
		return "", err
	}
	return question, nil
}

// readQuestionInput reads the question from various input sources
func readQuestionInput(input string) (string, error) {
	// Handle special stdin case
	if input == "-" || input == "stdin" {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return string(content), nil
	}

	// Check if input looks like a file path
	if strings.Contains(input, "/") || strings.Contains(input, "\\") ||
		filepath.Ext(input) == ".txt" {

		// Try to read as file
		if _, err := os.Stat(input); err == nil {
			content, err := os.ReadFile(input)
			if err != nil {
				return "", fmt.Errorf("failed to read file %s: %w", input, err)
			}
			return string(content), nil
		}
	}

	// Treat it as the literal question text
	return input, nil
}

// resolveQuestion determines the question text from the flag, positional
// arguments, stdin/file input, or an interactive prompt, in that order.
func resolveQuestion(config *Config, args []string, prompter Prompter) (string, error) {
	input := config.Question
	if input == "" && len(args) > 0 {
		input = strings.Join(args, " ")
	}

	if input != "" {
		question, err := readQuestionInput(input)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(question) == "" {
			return "", fmt.Errorf("no question provided")
		}
		return strings.TrimSpace(question), nil
	}

	// No flag and no args: ask interactively
	if prompter == nil {
		prompter = &surveyPrompter{}
	}

	question, err := prompter.AskQuestion()
	if err != nil {
		return "", fmt.Errorf("failed to read question: %w", err)
	}
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("no question provided")
	}

	return strings.TrimSpace(question), nil
}

// HandleAsk runs the full pipeline: translate the question, dispatch the
// resulting request, print the response.
func HandleAsk(ctx context.Context, query *types.Query, translator types.Translator, dispatcher types.Dispatcher, quiet bool, normal bool) error {
	if !quiet || normal {
		fmt.Printf("❓ Question: %s\n", query.Question)
		fmt.Printf("🤖 Translating with %s (temperature %.2f)...\n", query.Model, query.Temperature)
	}

	descriptor, err := translator.Translate(ctx, query)
	if err != nil {
		return err
	}

	if !quiet || normal {
		fmt.Printf("🌐 %s %s\n", descriptor.Method, descriptor.URL)
		if len(descriptor.Headers) > 0 {
			fmt.Printf("   Headers: %d\n", len(descriptor.Headers))
		}
		if descriptor.Body != nil {
			fmt.Printf("   Body: present\n")
		}
	}

	record, err := dispatcher.Dispatch(ctx, descriptor)
	if err != nil {
		return err
	}

	// Always print the response (even in quiet mode, this is the primary output)
	printResponseRecord(record, quiet, normal)

	return nil
}

// HandleTranslate runs only the translation step and prints the descriptor.
func HandleTranslate(ctx context.Context, query *types.Query, translator types.Translator, quiet bool, normal bool) error {
	if !quiet || normal {
		fmt.Printf("❓ Question: %s\n", query.Question)
		fmt.Printf("🤖 Translating with %s (temperature %.2f)...\n", query.Model, query.Temperature)
	}

	descriptor, err := translator.Translate(ctx, query)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(descriptor, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode descriptor: %w", err)
	}

	fmt.Println(string(encoded))
	return nil
}

// printResponseRecord renders a ResponseRecord to the console.
func printResponseRecord(record *types.ResponseRecord, quiet bool, normal bool) {
	fmt.Printf("\n=== Response ===\n")
	fmt.Printf("Status: %s\n", record.Status)
	if !record.Success() {
		fmt.Printf("⚠️  Upstream returned a non-2xx status\n")
	}

	if !quiet || normal {
		fmt.Printf("Elapsed: %s\n", record.Elapsed.Round(time.Millisecond))

		if len(record.Headers) > 0 {
			fmt.Printf("\nHeaders:\n")
			names := make([]string, 0, len(record.Headers))
			for name := range record.Headers {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %s: %s\n", name, strings.Join(record.Headers[name], ", "))
			}
		}
	}

	fmt.Printf("\nBody:\n")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println(record.Body)
	fmt.Println(strings.Repeat("=", 80))
}
