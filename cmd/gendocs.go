package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

// Standalone documentation generator. Mirrors the shape of the real root
// command without pulling in any of the runtime wiring, so docs can be built
// in CI without a GEMINI_API_KEY.
func createRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "restq",
		Short: "Ask REST APIs questions in plain language",
		Long: `Ask REST APIs questions in plain language.

restq sends your question to the Gemini API, lets the model translate it
into a single HTTP request (method, URL, headers, body), executes that
request against the target endpoint, and prints the formatted response.`,
		Version: "v0.1.0",
	}

	// Add subcommands
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run as REST API server",
		Long:  "Start the restq REST API server exposing the translate-and-dispatch pipeline over HTTP.",
	}

	translateCmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate a question without dispatching it",
		Long: `Translate a question into an HTTP request description and print it
as JSON without executing the request.

EXAMPLES:
  restq translate -q "Fetch data from https://jsonplaceholder.typicode.com/users/1"`,
	}

	// Add flags to match the actual implementation
	rootCmd.PersistentFlags().StringP("question", "q", "", "Question for the AI to translate (\"-\" reads stdin, a path reads that file)")
	rootCmd.PersistentFlags().StringP("model", "m", "gemini-2.0-flash-exp", "Gemini model to use")
	rootCmd.PersistentFlags().Float64P("temperature", "t", 0.1, "Model temperature (low favors deterministic output)")
	rootCmd.PersistentFlags().Bool("quiet", true, "Quiet mode (DEFAULT - minimal CLI output)")
	rootCmd.PersistentFlags().Bool("normal", false, "Normal mode (show standard output)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose mode (detailed output + debug info)")
	rootCmd.PersistentFlags().String("log-file", "", "Log to specified file (auto-creates directory)")
	rootCmd.PersistentFlags().String("api-endpoint", "", "Override the Gemini API base URL")
	rootCmd.PersistentFlags().Int("timeout", 30, "Target request timeout in seconds")
	rootCmd.PersistentFlags().Bool("insecure", false, "Skip TLS verification on the target API")
	rootCmd.PersistentFlags().String("config", "", "Configuration file path")

	serveCmd.Flags().StringP("port", "p", "8080", "Port for server mode")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(translateCmd)

	return rootCmd
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: gendocs <man|markdown|yaml|rest|all>")
		os.Exit(1)
	}

	docType := os.Args[1]
	rootCmd := createRootCmd()

	// Create output directories
	docsDir := "docs"
	manDir := filepath.Join(docsDir, "man")
	mdDir := filepath.Join(docsDir, "markdown")
	yamlDir := filepath.Join(docsDir, "yaml")
	restDir := filepath.Join(docsDir, "rest")

	// Ensure directories exist
	for _, dir := range []string{docsDir, manDir, mdDir, yamlDir, restDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	manHeader := &doc.GenManHeader{
		Title:   "RESTQ",
		Section: "1",
		Manual:  "restq Manual",
		Source:  "restq v0.1.0",
	}

	switch docType {
	case "man":
		fmt.Println("Generating man pages...")
		if err := doc.GenManTree(rootCmd, manHeader, manDir); err != nil {
			log.Fatalf("Failed to generate man pages: %v", err)
		}
		fmt.Printf("Man pages generated in %s/\n", manDir)

	case "markdown":
		fmt.Println("Generating markdown documentation...")
		if err := doc.GenMarkdownTree(rootCmd, mdDir); err != nil {
			log.Fatalf("Failed to generate markdown docs: %v", err)
		}
		fmt.Printf("Markdown documentation generated in %s/\n", mdDir)

	case "yaml":
		fmt.Println("Generating YAML documentation...")
		if err := doc.GenYamlTree(rootCmd, yamlDir); err != nil {
			log.Fatalf("Failed to generate YAML docs: %v", err)
		}
		fmt.Printf("YAML documentation generated in %s/\n", yamlDir)

	case "rest":
		fmt.Println("Generating reStructuredText documentation...")
		if err := doc.GenReSTTree(rootCmd, restDir); err != nil {
			log.Fatalf("Failed to generate ReST docs: %v", err)
		}
		fmt.Printf("reStructuredText documentation generated in %s/\n", restDir)

	case "all":
		fmt.Println("Generating all documentation formats...")

		if err := doc.GenManTree(rootCmd, manHeader, manDir); err != nil {
			log.Fatalf("Failed to generate man pages: %v", err)
		}
		if err := doc.GenMarkdownTree(rootCmd, mdDir); err != nil {
			log.Fatalf("Failed to generate markdown docs: %v", err)
		}
		if err := doc.GenYamlTree(rootCmd, yamlDir); err != nil {
			log.Fatalf("Failed to generate YAML docs: %v", err)
		}
		if err := doc.GenReSTTree(rootCmd, restDir); err != nil {
			log.Fatalf("Failed to generate ReST docs: %v", err)
		}

		fmt.Printf("All documentation formats generated in %s/\n", docsDir)

	default:
		fmt.Printf("Unknown documentation type: %s\n", docType)
		fmt.Println("Available types: man, markdown, yaml, rest, all")
		os.Exit(1)
	}
}
