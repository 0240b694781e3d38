package models

import "github.com/restq/restq/types"

// REST API request and response structures

// AskRequest carries a question through the full translate-and-dispatch
// pipeline. Model and temperature override the server defaults when set.
type AskRequest struct {
	Question    string   `json:"question"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// TranslateRequest carries a question through translation only.
type TranslateRequest struct {
	Question    string   `json:"question"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// DispatchRequest carries a pre-built request descriptor for execution.
type DispatchRequest struct {
	Descriptor types.RequestDescriptor `json:"descriptor"`
}

// APIResponse represents a generic API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// AskResponse pairs the descriptor the model produced with the executed
// response so callers can see both halves of the pipeline.
type AskResponse struct {
	Descriptor *types.RequestDescriptor `json:"descriptor"`
	Response   *types.ResponseRecord    `json:"response"`
}

// VersionResponse reports build information
type VersionResponse struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}
