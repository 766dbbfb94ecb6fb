package model

import "time"

const (
	OutcomeSucceeded   = "succeeded"
	OutcomeImageError  = "image_error"
	OutcomeVisionError = "vision_error"
)

// AnalysisEvent describes one analysis attempt. It carries no image bytes and no
// report text.
type AnalysisEvent struct {
	SessionID  string    `json:"session_id"`
	Filename   string    `json:"filename"`
	Format     string    `json:"format,omitempty"`
	Bytes      int       `json:"bytes"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	ReportLen  int       `json:"report_len"`
	DurationMS int64     `json:"duration_ms"`
	At         time.Time `json:"at"`
}
