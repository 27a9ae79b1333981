package models

import "time"

// Annotation is a timestamped note attached to a stored session
type Annotation struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionSummary is the wire representation of a stored session
type SessionSummary struct {
	ID               string       `json:"id"`
	WorkingDirectory string       `json:"working_directory"`
	Agent            string       `json:"agent"`
	Title            string       `json:"title,omitempty"`
	Live             bool         `json:"live"`
	CreatedAt        time.Time    `json:"created_at"`
	LastAccess       time.Time    `json:"last_access"`
	Annotations      []Annotation `json:"annotations,omitempty"`
}

// AnnotateRequest is the request body for adding an annotation
type AnnotateRequest struct {
	Text string `json:"text"`
}

// ErrorResponse is the generic error envelope for the HTTP API
type ErrorResponse struct {
	Error string `json:"error"`
}
