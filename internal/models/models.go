package models

import "time"

// Preferences represents the user's chosen generation parameters
type Preferences struct {
	Tone     string `json:"tone"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// CommentRecord represents the last successful generation shown to the user
type CommentRecord struct {
	Text      string    `json:"text"`
	Tone      string    `json:"tone"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
}

// GenerationRequest is the payload the relay posts to the generation endpoint
type GenerationRequest struct {
	PostCaption string `json:"postCaption"`
	Tone        string `json:"tone"`
	Provider    string `json:"provider,omitempty"`
	Model       string `json:"model"`
	Hint        string `json:"hint,omitempty"`
	UserID      string `json:"userId,omitempty"`
}

// GenerationResponse is the endpoint's reply body
type GenerationResponse struct {
	GeneratedComment string `json:"generatedComment,omitempty"`
	Error            string `json:"error,omitempty"`
}

// AuditRow represents one stored generation
type AuditRow struct {
	ID               int64     `json:"id"`
	UserID           string    `json:"user_id"`
	PostCaption      string    `json:"post_caption"`
	Tone             string    `json:"tone"`
	Model            string    `json:"model"`
	Hint             string    `json:"hint,omitempty"`
	GeneratedComment string    `json:"generated_comment"`
	CreatedAt        time.Time `json:"created_at"`
}
