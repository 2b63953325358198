// Package relay is the background context: it owns network egress and the
// anonymous identity, and brokers generation requests to the endpoint.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xaenox/commentgen/internal/identity"
	"github.com/xaenox/commentgen/internal/messaging"
	"github.com/xaenox/commentgen/internal/models"
	"github.com/xaenox/commentgen/internal/prefstore"
)

type Config struct {
	EndpointURL string
	// AnonKey is the static bearer credential sent with every request.
	AnonKey string
	Timeout time.Duration
}

type Relay struct {
	prefs      *prefstore.Prefs
	httpClient *http.Client
	cfg        Config
	ids        singleflight.Group
	logger     *zap.Logger
}

func New(cfg Config, prefs *prefstore.Prefs, httpClient *http.Client, logger *zap.Logger) *Relay {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Relay{
		prefs:      prefs,
		httpClient: httpClient,
		cfg:        cfg,
		logger:     logger,
	}
}

// HandleMessage is the runtime listener.
func (r *Relay) HandleMessage(ctx context.Context, msg messaging.Message) messaging.Reply {
	switch msg.Action {
	case messaging.ActionGenerateComment:
		var data messaging.GenerateCommentData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return messaging.Failure(fmt.Errorf("invalid generateComment payload: %w", err))
		}
		return r.Generate(ctx, data)
	default:
		return messaging.Failure(fmt.Errorf("unknown action: %s", msg.Action))
	}
}

// Generate resolves the identity and makes exactly one call to the endpoint.
func (r *Relay) Generate(ctx context.Context, data messaging.GenerateCommentData) messaging.Reply {
	userID, err := r.ResolveIdentity(ctx)
	if err != nil {
		r.logger.Error("Failed to resolve identity", zap.Error(err))
		return messaging.Failure(err)
	}

	comment, err := r.call(ctx, models.GenerationRequest{
		PostCaption: data.PostCaption,
		Tone:        data.Tone,
		Provider:    data.Provider,
		Model:       data.Model,
		Hint:        data.Hint,
		UserID:      userID,
	})
	if err != nil {
		r.logger.Error("Error calling generation endpoint",
			zap.Error(err),
			zap.String("user_id", userID))
		return messaging.Failure(err)
	}

	return messaging.Reply{Success: true, Comment: comment}
}

// ResolveIdentity returns the stored identity, minting and persisting a new
// one when it is absent or malformed. A failed write is logged and the new
// value is still used.
func (r *Relay) ResolveIdentity(ctx context.Context) (string, error) {
	v, err, _ := r.ids.Do("userId", func() (any, error) {
		return r.resolveIdentity(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Relay) resolveIdentity(ctx context.Context) (string, error) {
	stored, found, err := r.prefs.UserID(ctx)
	switch {
	case errors.Is(err, prefstore.ErrMalformed):
		found = false
	case err != nil:
		return "", fmt.Errorf("failed to read identity: %w", err)
	}

	if found && identity.Valid(stored) {
		return stored, nil
	}

	userID, err := identity.New()
	if err != nil {
		return "", err
	}
	if found {
		r.logger.Info("Replacing malformed identity", zap.String("stored", stored))
	}
	if err := r.prefs.SetUserID(ctx, userID); err != nil {
		r.logger.Warn("Failed to persist identity", zap.Error(err))
	}
	return userID, nil
}

func (r *Relay) call(ctx context.Context, req models.GenerationRequest) (string, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.cfg.AnonKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.cfg.AnonKey)
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("HTTP error! status: %d", resp.StatusCode)
	}

	var result models.GenerationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != "" {
		return "", errors.New(result.Error)
	}

	return result.GeneratedComment, nil
}
