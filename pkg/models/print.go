package models

import (
	"image"
	"io"

	"github.com/daisler/print-analyzer/internal/analyzer"
)

// ImageSource is where a request's image comes from: an uploaded file or a
// remote URL. Upload takes precedence when both are set.
type ImageSource struct {
	Upload   io.Reader
	Filename string
	URL      string
}

// Name identifies the source in logs.
func (s ImageSource) Name() string {
	if s.Upload != nil {
		return s.Filename
	}
	return s.URL
}

// AnalysisResponse is returned by POST /api/analyze
type AnalysisResponse struct {
	// Analysis is the preformatted report text
	Analysis          string          `json:"analysis"`
	Report            analyzer.Report `json:"report"`
	ProcessingTimeSec float64         `json:"processing_time_sec"`
}

// ProcessResult is a rendered bleed canvas ready for transport
type ProcessResult struct {
	PNG     []byte
	Width   int
	Height  int
	Pad     int
	TrimBox image.Rectangle
}

// MessageResponse is returned by the root endpoints
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is returned by the health endpoints
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}
