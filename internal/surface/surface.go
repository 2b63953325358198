// Package surface is the transient interactive surface: it loads the staged
// post text and preferences, sends one generation request at a time to the
// relay and shows the outcome.
package surface

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/commentgen/internal/catalog"
	"github.com/xaenox/commentgen/internal/messaging"
	"github.com/xaenox/commentgen/internal/models"
	"github.com/xaenox/commentgen/internal/prefstore"
)

var (
	ErrEmptyPost = errors.New("post content is empty")
	ErrBusy      = errors.New("generation already in progress")
	ErrNotLoaded = errors.New("surface is not open")
	ErrNoComment = errors.New("no comment to copy")
)

const (
	msgEmptyPost  = "Please enter post content or get it from the page first"
	msgGenerating = "Generating AI comment..."
	msgGenerated  = "Comment generated successfully!"
	msgGenFailed  = "Error generating comment. Please try again."
	msgCopied     = "Comment copied to clipboard!"
	msgCopyFailed = "Error copying comment"
)

type State int

const (
	StateIdle State = iota
	StateLoaded
	StateGenerating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StateGenerating:
		return "generating"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Sender delivers a message to the relay and waits for its reply.
type Sender interface {
	SendMessage(ctx context.Context, msg messaging.Message) (messaging.Reply, error)
}

// Clipboard is the system clipboard.
type Clipboard interface {
	WriteText(text string) error
}

type Options struct {
	// PollAttempts and PollInterval bound the wait for staged post text.
	PollAttempts int
	PollInterval time.Duration
	// StatusTTL is how long transient statuses stay visible.
	StatusTTL time.Duration
}

func DefaultOptions() Options {
	return Options{
		PollAttempts: 10,
		PollInterval: 100 * time.Millisecond,
		StatusTTL:    3 * time.Second,
	}
}

// View is a snapshot of everything the surface shows.
type View struct {
	State         State
	Input         string
	Hint          string
	Preferences   models.Preferences
	Models        []string
	Result        *models.CommentRecord
	Status        Status
	SubmitEnabled bool
	Progress      bool
}

type Surface struct {
	mu        sync.Mutex
	prefs     *prefstore.Prefs
	relay     Sender
	clipboard Clipboard
	opts      Options
	logger    *zap.Logger

	state       State
	input       string
	hint        string
	preferences models.Preferences
	result      *models.CommentRecord
	status      *statusLine

	ready     chan struct{}
	readyOnce sync.Once
}

func New(prefs *prefstore.Prefs, relay Sender, clipboard Clipboard, opts Options, logger *zap.Logger) *Surface {
	defaults := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.StatusTTL <= 0 {
		opts.StatusTTL = defaults.StatusTTL
	}

	s := &Surface{
		prefs:       prefs,
		relay:       relay,
		clipboard:   clipboard,
		opts:        opts,
		logger:      logger,
		preferences: catalog.Defaults(),
		ready:       make(chan struct{}),
	}
	s.status = newStatusLine(opts.StatusTTL)
	return s
}

// Ready is closed once Open has finished loading.
func (s *Surface) Ready() <-chan struct{} {
	return s.ready
}

// Open loads preferences, the staged post text and the last comment. A
// missing post text after the poll bound is not an error.
func (s *Surface) Open(ctx context.Context) error {
	defer s.readyOnce.Do(func() { close(s.ready) })

	prefs, found, err := s.prefs.Preferences(ctx)
	if err != nil {
		s.logger.Error("Error loading preferences", zap.Error(err))
	}
	if !found {
		prefs = catalog.Defaults()
	}
	prefs = catalog.Normalize(prefs)

	text, err := s.takePostContent(ctx)
	if err != nil {
		return err
	}

	last, hasLast, err := s.prefs.LastComment(ctx)
	if err != nil {
		s.logger.Error("Error loading last comment", zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences = prefs
	if text != "" {
		s.input = text
	}
	if hasLast {
		s.result = &last
	}
	s.state = StateLoaded
	return nil
}

// takePostContent polls for the staged text and consumes it when found.
func (s *Surface) takePostContent(ctx context.Context) (string, error) {
	attempts := s.opts.PollAttempts
	if attempts < 1 {
		attempts = 1
	}

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for i := 0; i < attempts; i++ {
		text, found, err := s.prefs.PostContent(ctx)
		if err != nil {
			s.logger.Error("Error loading post content", zap.Error(err))
		}
		if found {
			if err := s.prefs.ClearPostContent(ctx); err != nil {
				s.logger.Error("Error clearing post content", zap.Error(err))
			}
			return text, nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
	return "", nil
}

// HandlePageMessage applies a message posted by the host page.
func (s *Surface) HandlePageMessage(msg messaging.PageMessage) {
	if msg.Type != messaging.PageMessageSetPostContent {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = msg.PostContent
}

func (s *Surface) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = text
}

func (s *Surface) SetHint(hint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hint = hint
}

func (s *Surface) SetTone(ctx context.Context, tone string) error {
	if !catalog.IsTone(tone) {
		return fmt.Errorf("unknown tone %q", tone)
	}
	return s.updatePreferences(ctx, func(p *models.Preferences) { p.Tone = tone })
}

// SetProvider switches provider and resets the model to its first listed one.
func (s *Surface) SetProvider(ctx context.Context, provider string) error {
	if !catalog.IsProvider(provider) {
		return fmt.Errorf("unknown provider %q", provider)
	}
	return s.updatePreferences(ctx, func(p *models.Preferences) {
		p.Provider = provider
		p.Model = catalog.Models(provider)[0]
	})
}

func (s *Surface) SetModel(ctx context.Context, model string) error {
	s.mu.Lock()
	provider := s.preferences.Provider
	s.mu.Unlock()

	if !catalog.HasModel(provider, model) {
		return fmt.Errorf("model %q is not offered by %s", model, provider)
	}
	return s.updatePreferences(ctx, func(p *models.Preferences) { p.Model = model })
}

func (s *Surface) updatePreferences(ctx context.Context, change func(*models.Preferences)) error {
	s.mu.Lock()
	change(&s.preferences)
	prefs := s.preferences
	s.mu.Unlock()

	if err := s.prefs.SetPreferences(ctx, prefs); err != nil {
		s.logger.Error("Error saving preferences", zap.Error(err))
	}
	return nil
}

// Submit runs one generation cycle. It always leaves the surface Loaded.
func (s *Surface) Submit(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateIdle:
		s.mu.Unlock()
		return ErrNotLoaded
	case StateGenerating:
		s.mu.Unlock()
		return ErrBusy
	}

	text := strings.TrimSpace(s.input)
	if text == "" {
		s.status.show(msgEmptyPost, StatusError)
		s.mu.Unlock()
		return ErrEmptyPost
	}

	prefs := s.preferences
	data := messaging.GenerateCommentData{
		PostCaption: text,
		Tone:        prefs.Tone,
		Provider:    prefs.Provider,
		Model:       prefs.Model,
		Hint:        strings.TrimSpace(s.hint),
	}
	s.state = StateGenerating
	s.status.show(msgGenerating, StatusInfo)
	s.mu.Unlock()

	comment, err := s.dispatch(ctx, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateLoaded

	if err != nil {
		s.logger.Error("Error generating comment", zap.Error(err))
		s.status.show(msgGenFailed, StatusError)
		return err
	}

	rec := models.CommentRecord{
		Text:      comment,
		Tone:      prefs.Tone,
		Model:     prefs.Model,
		Timestamp: time.Now().UTC(),
	}
	s.result = &rec
	if err := s.prefs.SetLastComment(ctx, rec); err != nil {
		s.logger.Error("Error saving last comment", zap.Error(err))
	}
	s.status.show(msgGenerated, StatusSuccess)
	return nil
}

func (s *Surface) dispatch(ctx context.Context, data messaging.GenerateCommentData) (string, error) {
	msg, err := messaging.NewMessage(messaging.ActionGenerateComment, data)
	if err != nil {
		return "", err
	}
	reply, err := s.relay.SendMessage(ctx, msg)
	if err != nil {
		return "", err
	}
	if !reply.Success {
		if reply.Error == "" {
			return "", errors.New("failed to generate comment")
		}
		return "", errors.New(reply.Error)
	}
	return reply.Comment, nil
}

// Copy puts the displayed comment on the clipboard verbatim.
func (s *Surface) Copy() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.result == nil {
		s.status.show(msgCopyFailed, StatusError)
		return ErrNoComment
	}
	if err := s.clipboard.WriteText(s.result.Text); err != nil {
		s.logger.Error("Error copying comment", zap.Error(err))
		s.status.show(msgCopyFailed, StatusError)
		return err
	}
	s.status.show(msgCopied, StatusSuccess)
	return nil
}

// Close stops pending status timers.
func (s *Surface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.stop()
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Surface) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		State:         s.state,
		Input:         s.input,
		Hint:          s.hint,
		Preferences:   s.preferences,
		Models:        catalog.Models(s.preferences.Provider),
		Status:        s.status.current(),
		SubmitEnabled: s.state == StateLoaded,
		Progress:      s.state == StateGenerating,
	}
	if s.result != nil {
		rec := *s.result
		v.Result = &rec
	}
	return v
}
