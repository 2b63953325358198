package prefstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xaenox/commentgen/internal/models"
)

// ErrMalformed is returned when a stored value cannot be decoded.
var ErrMalformed = errors.New("malformed stored value")

// Prefs gives typed access to the well-known keys. Values are stored as JSON.
type Prefs struct {
	store Store
}

func NewPrefs(store Store) *Prefs {
	return &Prefs{store: store}
}

func (p *Prefs) UserID(ctx context.Context) (string, bool, error) {
	var id string
	found, err := p.load(ctx, KeyUserID, &id)
	return id, found, err
}

func (p *Prefs) SetUserID(ctx context.Context, id string) error {
	return p.save(ctx, KeyUserID, id)
}

func (p *Prefs) Preferences(ctx context.Context) (models.Preferences, bool, error) {
	var prefs models.Preferences
	found, err := p.load(ctx, KeyPreferences, &prefs)
	return prefs, found, err
}

func (p *Prefs) SetPreferences(ctx context.Context, prefs models.Preferences) error {
	return p.save(ctx, KeyPreferences, prefs)
}

// PostContent returns the staged post text. An empty string counts as absent.
func (p *Prefs) PostContent(ctx context.Context) (string, bool, error) {
	var text string
	found, err := p.load(ctx, KeyPostContent, &text)
	if err != nil {
		return "", false, err
	}
	return text, found && text != "", nil
}

func (p *Prefs) SetPostContent(ctx context.Context, text string) error {
	return p.save(ctx, KeyPostContent, text)
}

func (p *Prefs) ClearPostContent(ctx context.Context) error {
	return p.store.Delete(ctx, KeyPostContent)
}

func (p *Prefs) LastComment(ctx context.Context) (models.CommentRecord, bool, error) {
	var rec models.CommentRecord
	found, err := p.load(ctx, KeyLastComment, &rec)
	return rec, found, err
}

func (p *Prefs) SetLastComment(ctx context.Context, rec models.CommentRecord) error {
	return p.save(ctx, KeyLastComment, rec)
}

func (p *Prefs) load(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := p.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w: %v", key, ErrMalformed, err)
	}
	return true, nil
}

func (p *Prefs) save(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return p.store.Set(ctx, key, raw)
}
