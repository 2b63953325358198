// Package messaging carries requests between the isolated client contexts.
package messaging

import (
	"encoding/json"
	"fmt"
)

type Action string

const ActionGenerateComment Action = "generateComment"

// Message is what the interactive surface sends to the relay.
type Message struct {
	Action Action          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Reply is the single answer to a Message.
type Reply struct {
	Success bool   `json:"success"`
	Comment string `json:"comment,omitempty"`
	Error   string `json:"error,omitempty"`
}

// GenerateCommentData is the payload of ActionGenerateComment.
type GenerateCommentData struct {
	PostCaption string `json:"postCaption"`
	Tone        string `json:"tone"`
	Provider    string `json:"provider,omitempty"`
	Model       string `json:"model"`
	Hint        string `json:"hint,omitempty"`
}

func NewMessage(action Action, data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode %s payload: %w", action, err)
	}
	return Message{Action: action, Data: raw}, nil
}

func Failure(err error) Reply {
	return Reply{Success: false, Error: err.Error()}
}

const PageMessageSetPostContent = "SET_POST_CONTENT"

// PageMessage is posted from the host page into the interactive surface.
type PageMessage struct {
	Type        string `json:"type"`
	PostContent string `json:"postContent"`
}
