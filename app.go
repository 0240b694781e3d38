package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/restq/restq/rest/server"
	"github.com/restq/restq/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// POSIX-compliant exit codes
const (
	ExitSuccess      = 0   // Successful completion
	ExitGeneralError = 1   // General error
	ExitMisuse       = 2   // Misuse of shell command
	ExitSIGINT       = 130 // Terminated by Ctrl+C (128 + 2)
	ExitSIGTERM      = 143 // Terminated by SIGTERM (128 + 15)
)

// Build-time variables set via ldflags
var (
	Version   string = "v0.1.0"
	BuildTime string = "unknown"
	GitCommit string = "unknown"
	BuildMode string = "dev"
)

// Configuration
type Config struct {
	// Mode
	Mode string // "serve", "cli"
	Port string

	// Common flags - QUIET IS DEFAULT
	Quiet   bool // Default: true
	Verbose bool
	Normal  bool

	// Query configuration
	Question    string
	Model       string
	Temperature float64

	// Gemini configuration
	APIKey         string
	GeminiEndpoint string

	// Target API configuration
	HTTPTimeout   int
	AllowInsecure bool

	// File logging support
	LogFile    string
	ConfigFile string
}

const (
	PROGRAM_NAME = "restq"
)

var (
	logger     *zap.Logger
	rootConfig = &Config{}

	// Global translator cache for reuse in server mode
	cachedTranslator       types.Translator
	cachedTranslatorConfig string
	cacheTime              time.Time
	cacheTimeout           = 30 * time.Minute
)

// Root command
var rootCmd = &cobra.Command{
	Use:   PROGRAM_NAME,
	Short: "Ask REST APIs questions in plain language",
	Long: `Ask REST APIs questions in plain language.

restq sends your question to the Gemini API, lets the model translate it
into a single HTTP request (method, URL, headers, body), executes that
request against the target endpoint, and prints the formatted response.

EXAMPLES:
  restq -q "Fetch data from https://jsonplaceholder.typicode.com/users/1"
  restq -q "POST {\"title\":\"hi\"} to https://jsonplaceholder.typicode.com/posts"
  restq -m gemini-2.0-flash -t 0.0 -q "Delete todo 5 on https://example.com/api"
  restq                     # prompts for the question interactively`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Apply config file values under flags before anything logs
		if err := applyConfigFile(cmd, rootConfig); err != nil {
			return err
		}

		// Initialize logger
		initLogger(rootConfig.Verbose, rootConfig.Quiet && !rootConfig.Normal, rootConfig.LogFile)

		// Setup signal handling
		setupSignalHandling()

		// Log startup
		logger.Info("Application starting",
			zap.String("version", Version),
			zap.String("build_mode", BuildMode),
			zap.String("build_time", BuildTime),
			zap.String("git_commit", GitCommit),
			zap.String("mode", rootConfig.Mode))

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		rootConfig.Mode = "cli"
		return runAsk(cmd, args)
	},
}

// Serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as REST API server",
	Long: `Start the restq REST API server.

Exposes the translate-and-dispatch pipeline over HTTP:
  POST /api/v1/ask        question in, executed response out
  POST /api/v1/translate  question in, request descriptor out
  POST /api/v1/dispatch   request descriptor in, executed response out
  GET  /health /version /metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rootConfig.Mode = "serve"
		return runServerMode(rootConfig)
	},
}

// Translate command
var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a question without dispatching it",
	Long: `Translate a question into an HTTP request description and print it
as JSON without executing the request. Useful for inspecting what the
model produced before trusting it.

EXAMPLES:
  restq translate -q "Fetch data from https://jsonplaceholder.typicode.com/users/1"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rootConfig.Mode = "cli"
		return runTranslate(cmd, args)
	},
}

// runAsk executes the full pipeline: question -> descriptor -> response.
func runAsk(cmd *cobra.Command, args []string) error {
	// Credential check happens before any network activity
	if rootConfig.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	question, err := resolveQuestion(rootConfig, args, nil)
	if err != nil {
		return err
	}

	query := &types.Query{
		Question:    question,
		Model:       rootConfig.Model,
		Temperature: rootConfig.Temperature,
	}

	translator, err := getTranslator(rootConfig)
	if err != nil {
		return fmt.Errorf("failed to create translator: %w", err)
	}

	dispatcher := NewHTTPDispatcher(&types.DispatcherConfig{
		RequestTimeout: rootConfig.HTTPTimeout,
		AllowInsecure:  rootConfig.AllowInsecure,
		Debug:          rootConfig.Verbose,
	})

	return HandleAsk(cmd.Context(), query, translator, dispatcher, rootConfig.Quiet, rootConfig.Normal)
}

// runTranslate executes only the translation step.
func runTranslate(cmd *cobra.Command, args []string) error {
	if rootConfig.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	question, err := resolveQuestion(rootConfig, args, nil)
	if err != nil {
		return err
	}

	query := &types.Query{
		Question:    question,
		Model:       rootConfig.Model,
		Temperature: rootConfig.Temperature,
	}

	translator, err := getTranslator(rootConfig)
	if err != nil {
		return fmt.Errorf("failed to create translator: %w", err)
	}

	return HandleTranslate(cmd.Context(), query, translator, rootConfig.Quiet, rootConfig.Normal)
}

// Enhanced logger with file support and quiet mode default
func initLogger(verbose, quiet bool, logFile string) {
	var outputPaths, errorPaths []string

	// Configure output based on flags and log file
	if logFile != "" {
		// Create log directory if needed
		logDir := filepath.Dir(logFile)
		if logDir != "." && logDir != "" {
			os.MkdirAll(logDir, 0755)
		}

		outputPaths = []string{logFile}
		errorPaths = []string{logFile}

		// In verbose mode, also output to stderr
		if verbose {
			outputPaths = append(outputPaths, "stderr")
			errorPaths = append(errorPaths, "stderr")
		}
	} else if !quiet {
		// Only output to stderr if not in quiet mode
		outputPaths = []string{"stderr"}
		errorPaths = []string{"stderr"}
	} else {
		// Quiet mode: only errors to stderr
		outputPaths = []string{}
		errorPaths = []string{"stderr"}
	}

	var config zap.Config

	if verbose {
		// Verbose mode
		config = zap.Config{
			Level:       zap.NewAtomicLevelAt(zap.DebugLevel),
			Development: true,
			Encoding:    "console",
			EncoderConfig: zapcore.EncoderConfig{
				TimeKey:        "T",
				LevelKey:       "L",
				NameKey:        "N",
				CallerKey:      "C",
				MessageKey:     "M",
				StacktraceKey:  "S",
				LineEnding:     zapcore.DefaultLineEnding,
				EncodeLevel:    zapcore.CapitalColorLevelEncoder,
				EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05"),
				EncodeDuration: zapcore.StringDurationEncoder,
				EncodeCaller:   zapcore.ShortCallerEncoder,
			},
			OutputPaths:      outputPaths,
			ErrorOutputPaths: errorPaths,
		}
	} else if quiet {
		// Quiet mode: minimal logging
		config = zap.Config{
			Level:            zap.NewAtomicLevelAt(zap.WarnLevel),
			Development:      false,
			Encoding:         "json",
			OutputPaths:      outputPaths,
			ErrorOutputPaths: errorPaths,
			EncoderConfig: zapcore.EncoderConfig{
				TimeKey:     "timestamp",
				LevelKey:    "level",
				MessageKey:  "message",
				LineEnding:  zapcore.DefaultLineEnding,
				EncodeLevel: zapcore.LowercaseLevelEncoder,
				EncodeTime:  zapcore.ISO8601TimeEncoder,
			},
		}
	} else {
		// Normal mode
		config = zap.Config{
			Level:       zap.NewAtomicLevelAt(zap.InfoLevel),
			Development: false,
			Encoding:    "json",
			EncoderConfig: zapcore.EncoderConfig{
				TimeKey:        "ts",
				LevelKey:       "level",
				NameKey:        "logger",
				CallerKey:      "caller",
				MessageKey:     "msg",
				StacktraceKey:  "stacktrace",
				LineEnding:     zapcore.DefaultLineEnding,
				EncodeLevel:    zapcore.LowercaseLevelEncoder,
				EncodeTime:     zapcore.EpochTimeEncoder,
				EncodeDuration: zapcore.SecondsDurationEncoder,
				EncodeCaller:   zapcore.ShortCallerEncoder,
			},
			OutputPaths:      outputPaths,
			ErrorOutputPaths: errorPaths,
		}
	}

	var err error
	logger, err = config.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: failed to initialize logger: %v\n", PROGRAM_NAME, err)
		os.Exit(ExitGeneralError)
	}

	// Only show log file info if not in quiet mode
	if logFile != "" && !quiet {
		fmt.Printf("📄 Logging to: %s\n", logFile)
	}
}

// Signal handling
func setupSignalHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Received signal, shutting down gracefully", zap.String("signal", sig.String()))

		logger.Sync()

		switch sig {
		case os.Interrupt:
			os.Exit(ExitSIGINT)
		case syscall.SIGTERM:
			os.Exit(ExitSIGTERM)
		default:
			os.Exit(ExitGeneralError)
		}
	}()
}

// getTranslator returns a cached translator when the configuration is
// unchanged, creating a new one otherwise. The cache only matters in server
// mode where one process serves many requests.
func getTranslator(config *Config) (types.Translator, error) {
	configKey := fmt.Sprintf("%s|%s|%s", config.APIKey, config.Model, config.GeminiEndpoint)

	if cachedTranslator != nil &&
		cachedTranslatorConfig == configKey &&
		time.Since(cacheTime) < cacheTimeout {

		logger.Debug("Using cached translator",
			zap.String("model", config.Model),
			zap.Duration("cache_age", time.Since(cacheTime)))
		return cachedTranslator, nil
	}

	translator := NewGeminiClient(&types.TranslatorConfig{
		APIKey:      config.APIKey,
		Model:       config.Model,
		Temperature: config.Temperature,
		Endpoint:    config.GeminiEndpoint,
		Debug:       config.Verbose,
	})

	cachedTranslator = translator
	cachedTranslatorConfig = configKey
	cacheTime = time.Now()

	return translator, nil
}

// runServerMode starts the REST server wired to the translator and dispatcher
func runServerMode(config *Config) error {
	logger.Info("Starting in server mode", zap.String("port", config.Port))

	if config.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	translator, err := getTranslator(config)
	if err != nil {
		logger.Error("Failed to create translator for server mode", zap.Error(err))
		return fmt.Errorf("failed to create translator for server: %w", err)
	}

	dispatcher := NewHTTPDispatcher(&types.DispatcherConfig{
		RequestTimeout: config.HTTPTimeout,
		AllowInsecure:  config.AllowInsecure,
		Debug:          config.Verbose,
	})

	serverConfig := &server.Config{
		Model:       config.Model,
		Temperature: config.Temperature,
		Version:     Version,
		BuildTime:   BuildTime,
		GitCommit:   GitCommit,
		Verbose:     config.Verbose,
		Quiet:       config.Quiet && !config.Normal,
	}

	restServer := server.NewRestServer(serverConfig, logger, translator, dispatcher)
	return restServer.Start(config.Port)
}

// Error handling helper
func exitWithError(err error, exitCode int) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", PROGRAM_NAME, err)
	if logger != nil {
		logger.Error("Application error", zap.Error(err), zap.Int("exit_code", exitCode))
		logger.Sync()
	}
	os.Exit(exitCode)
}

func init() {
	// Initialize configuration with defaults
	rootConfig.Mode = "cli"
	rootConfig.Port = "8080"
	rootConfig.Model = GEMINI_DEFAULT_MODEL
	rootConfig.Temperature = GEMINI_DEFAULT_TEMP
	rootConfig.APIKey = os.Getenv("GEMINI_API_KEY")
	rootConfig.Quiet = true // DEFAULT TO QUIET MODE
	rootConfig.LogFile = os.Getenv("RESTQ_LOG_FILE")

	// Add persistent flags
	rootCmd.PersistentFlags().StringVarP(&rootConfig.Question, "question", "q", "", "Question for the AI to translate (\"-\" reads stdin, a path reads that file)")
	rootCmd.PersistentFlags().StringVarP(&rootConfig.Model, "model", "m", rootConfig.Model, "Gemini model to use")
	rootCmd.PersistentFlags().Float64VarP(&rootConfig.Temperature, "temperature", "t", rootConfig.Temperature, "Model temperature (low favors deterministic output)")
	rootCmd.PersistentFlags().BoolVar(&rootConfig.Quiet, "quiet", true, "Quiet mode (DEFAULT - minimal CLI output)")
	rootCmd.PersistentFlags().BoolVar(&rootConfig.Normal, "normal", false, "Normal mode (show standard output)")
	rootCmd.PersistentFlags().BoolVarP(&rootConfig.Verbose, "verbose", "v", false, "Verbose mode (detailed output + debug info)")
	rootCmd.PersistentFlags().StringVar(&rootConfig.LogFile, "log-file", rootConfig.LogFile, "Log to specified file (auto-creates directory)")
	rootCmd.PersistentFlags().StringVar(&rootConfig.GeminiEndpoint, "api-endpoint", "", "Override the Gemini API base URL")
	rootCmd.PersistentFlags().IntVar(&rootConfig.HTTPTimeout, "timeout", 30, "Target request timeout in seconds")
	rootCmd.PersistentFlags().BoolVar(&rootConfig.AllowInsecure, "insecure", false, "Skip TLS verification on the target API")
	rootCmd.PersistentFlags().StringVar(&rootConfig.ConfigFile, "config", "", "Configuration file path")

	// Serve command flags
	serveCmd.Flags().StringVarP(&rootConfig.Port, "port", "p", "8080", "Port for server mode")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(docsCmd)

	// Customize version template
	rootCmd.SetVersionTemplate(`{{.Use}} {{.Version}}
Built: ` + BuildTime + `
Commit: ` + GitCommit + `
Mode: ` + BuildMode + `
POSIX Compliant: Yes
`)
}
