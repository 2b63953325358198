// Package llm talks to upstream text-completion providers.
package llm

import (
	"context"
	"errors"
)

// ErrMissingCredential is returned when the selected provider has no API key.
var ErrMissingCredential = errors.New("api key not configured")

// CompletionRequest is one system instruction plus one user message.
type CompletionRequest struct {
	System string
	User   string
}

type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
