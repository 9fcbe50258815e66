package entity

import "github.com/google/uuid"

// SlideExtractionMessage is the inbound message from the slides.extraction queue.
type SlideExtractionMessage struct {
	RunID     uuid.UUID          `json:"run_id"`
	UserID    string             `json:"user_id"`
	VideoKey  string             `json:"video_key"`
	FileSize  int64              `json:"file_size"`
	UserEmail string             `json:"user_email"`
	Settings  ExtractionSettings `json:"settings"`
}

// ExtractionStatusMessage is the outbound message published to the slides.status queue.
type ExtractionStatusMessage struct {
	RunID        uuid.UUID `json:"run_id"`
	UserID       string    `json:"user_id"`
	Status       RunStatus `json:"status"`
	VideoKey     string    `json:"video_key"`
	ArchiveKey   string    `json:"archive_key,omitempty"`
	DocumentKey  string    `json:"document_key,omitempty"`
	SlideCount   int       `json:"slide_count,omitempty"`
	Duration     float64   `json:"duration_seconds,omitempty"`
	Heuristic    bool      `json:"heuristic,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Attempt      int       `json:"attempt"`
	MaxAttempts  int       `json:"max_attempts"`
}
