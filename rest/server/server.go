package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/restq/restq/rest/models"
	"github.com/restq/restq/types"
	"go.uber.org/zap"
)

// Config represents the server configuration
type Config struct {
	Model       string
	Temperature float64
	Version     string
	BuildTime   string
	GitCommit   string
	Verbose     bool
	Quiet       bool
}

var (
	translationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "restq_translations_total", Help: "Question translations by outcome"},
		[]string{"status"})
	dispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "restq_dispatches_total", Help: "Dispatched requests by outcome"},
		[]string{"status"})
)

func init() {
	prometheus.MustRegister(translationsTotal, dispatchesTotal)
}

// RestServer exposes the translate-and-dispatch pipeline over HTTP
type RestServer struct {
	logger     *zap.Logger
	config     *Config
	translator types.Translator
	dispatcher types.Dispatcher
}

// NewRestServer creates a new REST server instance. Translator and
// dispatcher are injected so tests can run against deterministic fakes.
func NewRestServer(config *Config, logger *zap.Logger, translator types.Translator, dispatcher types.Dispatcher) *RestServer {
	return &RestServer{
		logger:     logger.With(zap.String("component", "rest_server")),
		config:     config,
		translator: translator,
		dispatcher: dispatcher,
	}
}

// Handler builds the route table.
func (rs *RestServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// Pipeline endpoints
	mux.HandleFunc("/api/v1/ask", rs.corsHandler(rs.askHandler))
	mux.HandleFunc("/api/v1/translate", rs.corsHandler(rs.translateHandler))
	mux.HandleFunc("/api/v1/dispatch", rs.corsHandler(rs.dispatchHandler))

	// Health, version and metrics endpoints
	mux.HandleFunc("/health", rs.healthHandler)
	mux.HandleFunc("/version", rs.versionHandler)
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// Start starts the REST server
func (rs *RestServer) Start(port string) error {
	rs.logger.Info("Starting REST server", zap.String("port", port))

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      rs.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	rs.logger.Info("REST server endpoints registered", zap.Int("endpoint_count", 6))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		rs.logger.Error("Failed to start server", zap.Error(err))
		return err
	}
	return nil
}

// corsHandler adds CORS headers to responses
func (rs *RestServer) corsHandler(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs.logger.Debug("Processing request", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.String("remote_addr", r.RemoteAddr))

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// sendSuccess sends a successful API response
func (rs *RestServer) sendSuccess(w http.ResponseWriter, data interface{}) {
	response := models.APIResponse{
		Success: true,
		Data:    data,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// sendError sends an error API response
func (rs *RestServer) sendError(w http.ResponseWriter, message string, statusCode int) {
	rs.logger.Warn("API error", zap.String("error", message), zap.Int("status", statusCode))

	response := models.APIResponse{
		Success: false,
		Error:   message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

// buildQuery applies server defaults to per-request overrides.
func (rs *RestServer) buildQuery(question, model string, temperature *float64) *types.Query {
	query := &types.Query{
		Question:    question,
		Model:       rs.config.Model,
		Temperature: rs.config.Temperature,
	}
	if model != "" {
		query.Model = model
	}
	if temperature != nil {
		query.Temperature = *temperature
	}
	return query
}

// askHandler runs the full pipeline for one question
func (rs *RestServer) askHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rs.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rs.sendError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		rs.sendError(w, "question is required", http.StatusBadRequest)
		return
	}

	query := rs.buildQuery(req.Question, req.Model, req.Temperature)

	descriptor, err := rs.translator.Translate(r.Context(), query)
	if err != nil {
		translationsTotal.WithLabelValues("error").Inc()
		rs.sendError(w, err.Error(), http.StatusBadGateway)
		return
	}
	translationsTotal.WithLabelValues("ok").Inc()

	record, err := rs.dispatcher.Dispatch(r.Context(), descriptor)
	if err != nil {
		dispatchesTotal.WithLabelValues("error").Inc()
		rs.sendError(w, err.Error(), http.StatusBadGateway)
		return
	}
	dispatchesTotal.WithLabelValues("ok").Inc()

	rs.sendSuccess(w, models.AskResponse{
		Descriptor: descriptor,
		Response:   record,
	})
}

// translateHandler runs only the translation step
func (rs *RestServer) translateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rs.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.TranslateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rs.sendError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		rs.sendError(w, "question is required", http.StatusBadRequest)
		return
	}

	query := rs.buildQuery(req.Question, req.Model, req.Temperature)

	descriptor, err := rs.translator.Translate(r.Context(), query)
	if err != nil {
		translationsTotal.WithLabelValues("error").Inc()
		rs.sendError(w, err.Error(), http.StatusBadGateway)
		return
	}
	translationsTotal.WithLabelValues("ok").Inc()

	rs.sendSuccess(w, descriptor)
}

// dispatchHandler executes a caller-provided descriptor
func (rs *RestServer) dispatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rs.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rs.sendError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.Descriptor.Validate(); err != nil {
		rs.sendError(w, "invalid descriptor: "+err.Error(), http.StatusBadRequest)
		return
	}

	record, err := rs.dispatcher.Dispatch(r.Context(), &req.Descriptor)
	if err != nil {
		dispatchesTotal.WithLabelValues("error").Inc()
		rs.sendError(w, err.Error(), http.StatusBadGateway)
		return
	}
	dispatchesTotal.WithLabelValues("ok").Inc()

	rs.sendSuccess(w, record)
}

// healthHandler handles health check requests
func (rs *RestServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"features": map[string]bool{
			"quiet_mode_default": true,
			"file_logging":       true,
			"gemini_translation": true,
			"cli_parity":         true,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// versionHandler handles version requests
func (rs *RestServer) versionHandler(w http.ResponseWriter, r *http.Request) {
	version := models.VersionResponse{
		Version:   rs.config.Version,
		BuildTime: rs.config.BuildTime,
		GitCommit: rs.config.GitCommit,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(version)
}
