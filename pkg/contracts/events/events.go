// Package events defines the messages pushed to WebSocket clients while
// rounds are uploaded and analyzed.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// MessageTypeConnection is sent once to every client after it connects.
	MessageTypeConnection MessageType = "connection"

	// MessageTypeRoundSnapshot carries the state of a round stage.
	MessageTypeRoundSnapshot MessageType = "round:snapshot"
)

// Stage names the part of a round's lifecycle a snapshot describes.
type Stage string

const (
	StageUpload   Stage = "upload"
	StageAnalysis Stage = "analysis"
)

// Status of a stage.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Message is the envelope of everything written to a client.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// RoundSnapshot is the state of one stage of a round.
type RoundSnapshot struct {
	ProjectID string         `json:"project_id"`
	RoundID   string         `json:"round_id"`
	Stage     Stage          `json:"stage"`
	Status    Status         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`
	Counts    map[string]int `json:"counts,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Terminal reports whether the stage has finished.
func (s RoundSnapshot) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// ConnectionInfo is the payload of MessageTypeConnection.
type ConnectionInfo struct {
	ClientID string `json:"client_id"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}
