// Package extension wires one installation: the preference store, the relay
// behind its message runtime, the page observer and a fresh interactive
// surface per open.
package extension

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/xaenox/commentgen/internal/messaging"
	"github.com/xaenox/commentgen/internal/observer"
	"github.com/xaenox/commentgen/internal/prefstore"
	"github.com/xaenox/commentgen/internal/relay"
	"github.com/xaenox/commentgen/internal/surface"
)

const inboxSize = 16

type Config struct {
	Relay      relay.Config
	Surface    surface.Options
	Rules      observer.Rules
	HTTPClient *http.Client
}

type Installation struct {
	prefs     *prefstore.Prefs
	runtime   *messaging.Runtime
	relay     *relay.Relay
	observer  *observer.Observer
	clipboard surface.Clipboard
	opts      surface.Options
	logger    *zap.Logger

	mu      sync.Mutex
	current *surface.Surface

	cancel  context.CancelFunc
	stopped chan struct{}
}

// New starts the relay's runtime. The caller keeps ownership of store.
func New(store prefstore.Store, page *observer.Page, clipboard surface.Clipboard, cfg Config, logger *zap.Logger) *Installation {
	prefs := prefstore.NewPrefs(store)
	runtime := messaging.NewRuntime(inboxSize, logger)
	r := relay.New(cfg.Relay, prefs, cfg.HTTPClient, logger)
	runtime.Listen(r.HandleMessage)

	ctx, cancel := context.WithCancel(context.Background())
	inst := &Installation{
		prefs:     prefs,
		runtime:   runtime,
		relay:     r,
		clipboard: clipboard,
		opts:      cfg.Surface,
		logger:    logger,
		cancel:    cancel,
		stopped:   make(chan struct{}),
	}
	inst.observer = observer.New(page, cfg.Rules, prefs, inst, logger)

	go func() {
		defer close(inst.stopped)
		if err := runtime.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Message runtime stopped", zap.Error(err))
		}
	}()
	return inst
}

// OpenSurface creates a new surface and starts loading it. Readiness is
// signalled on the returned frame.
func (i *Installation) OpenSurface(ctx context.Context) (observer.Frame, error) {
	s := surface.New(i.prefs, i.runtime, i.clipboard, i.opts, i.logger)

	i.mu.Lock()
	i.current = s
	i.mu.Unlock()

	go func() {
		if err := s.Open(context.WithoutCancel(ctx)); err != nil {
			i.logger.Error("Failed to open surface", zap.Error(err))
		}
	}()
	return s, nil
}

// Surface returns the most recently opened surface, or nil.
func (i *Installation) Surface() *surface.Surface {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current
}

func (i *Installation) Observer() *observer.Observer {
	return i.observer
}

func (i *Installation) Prefs() *prefstore.Prefs {
	return i.prefs
}

func (i *Installation) Relay() *relay.Relay {
	return i.relay
}

func (i *Installation) Runtime() *messaging.Runtime {
	return i.runtime
}

// Close stops the runtime after in-flight requests finish and closes the
// open surface.
func (i *Installation) Close() {
	i.runtime.Close()
	<-i.stopped
	i.cancel()

	i.mu.Lock()
	s := i.current
	i.current = nil
	i.mu.Unlock()
	if s != nil {
		s.Close()
	}
}
