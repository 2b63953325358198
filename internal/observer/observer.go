// Package observer watches a host document for feed items, injects one
// generation button per item and hands the extracted post text to the
// interactive surface.
package observer

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/xaenox/commentgen/internal/messaging"
	"github.com/xaenox/commentgen/internal/prefstore"
)

const (
	AffordanceClass = "ai-comment-generator-btn"
	itemAttr        = "data-ai-item"
	affordanceStyle = "position:absolute;left:16px;bottom:16px;z-index:1000"
)

var ErrUnknownItem = errors.New("no affordance with that id")

// Frame is an open interactive surface as seen from the page.
type Frame interface {
	Ready() <-chan struct{}
	HandlePageMessage(msg messaging.PageMessage)
	Close()
}

// Opener opens a new interactive surface.
type Opener interface {
	OpenSurface(ctx context.Context) (Frame, error)
}

// Item is one feed item carrying an affordance.
type Item struct {
	ID      string
	Preview string
}

// Mutation changes the document, the way a host page script would.
type Mutation func(doc *goquery.Document)

type Observer struct {
	mu     sync.Mutex
	page   *Page
	rules  Rules
	prefs  *prefstore.Prefs
	opener Opener
	frame  Frame
	logger *zap.Logger

	nextID int
	seen   map[string]string

	// OnInject, when set, is called for every newly injected affordance. It
	// runs inside the observer loop and must not call back into the Observer.
	OnInject func(Item)
}

func New(page *Page, rules Rules, prefs *prefstore.Prefs, opener Opener, logger *zap.Logger) *Observer {
	return &Observer{
		page:   page,
		rules:  rules,
		prefs:  prefs,
		opener: opener,
		logger: logger,
		seen:   make(map[string]string),
	}
}

func (o *Observer) containerSelector() string {
	return strings.Join(o.rules.ContainerSelectors, ", ")
}

// Scan attaches an affordance to every container that lacks one and returns
// the items not seen before. Running it again on an unchanged document
// injects nothing.
func (o *Observer) Scan() []Item {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.scanLocked()
}

func (o *Observer) scanLocked() []Item {
	var injected []Item
	occurrences := make(map[string]int)
	o.page.doc.Find(o.containerSelector()).Each(func(_ int, container *goquery.Selection) {
		if container.Find("." + AffordanceClass).Length() > 0 {
			return
		}

		// A reloaded document is a fresh copy: containers seen before keep
		// their id and are not reported again.
		markup, _ := goquery.OuterHtml(container)
		occurrences[markup]++
		key := strconv.Itoa(occurrences[markup]) + ":" + markup
		id, known := o.seen[key]
		if !known {
			o.nextID++
			id = strconv.Itoa(o.nextID)
			o.seen[key] = id
		}

		container.AppendHtml(fmt.Sprintf(
			`<button type="button" class="%s" %s="%s" style="%s"><span>✨</span> AI Comment</button>`,
			AffordanceClass, itemAttr, html.EscapeString(id), affordanceStyle))

		if !known {
			injected = append(injected, Item{ID: id, Preview: preview(Extract(container, o.rules.ContentSelectors))})
		}
	})

	for _, item := range injected {
		if o.OnInject != nil {
			o.OnInject(item)
		}
	}
	if len(injected) > 0 {
		o.logger.Debug("Injected affordances", zap.Int("count", len(injected)))
	}
	return injected
}

// Items lists every feed item currently carrying an affordance.
func (o *Observer) Items() []Item {
	o.mu.Lock()
	defer o.mu.Unlock()

	var items []Item
	o.page.doc.Find("." + AffordanceClass).Each(func(_ int, btn *goquery.Selection) {
		id, _ := btn.Attr(itemAttr)
		container := btn.Closest(o.containerSelector())
		items = append(items, Item{ID: id, Preview: preview(Extract(container, o.rules.ContentSelectors))})
	})
	return items
}

// Extract returns the first non-empty text among the content selectors, or
// "" when the container has no content.
func Extract(container *goquery.Selection, selectors []string) string {
	if container == nil || container.Length() == 0 {
		return ""
	}
	for _, sel := range selectors {
		text := strings.TrimSpace(container.Find(sel).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

// Activate handles a click on the affordance with the given id: it extracts
// the post text, stages it in the store, replaces any open surface with a new
// one and posts the text to it once it is ready.
func (o *Observer) Activate(ctx context.Context, itemID string) (string, error) {
	o.mu.Lock()
	btn := o.page.doc.Find("." + AffordanceClass).FilterFunction(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr(itemAttr)
		return id == itemID
	})
	if btn.Length() == 0 {
		o.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	text := Extract(btn.First().Closest(o.containerSelector()), o.rules.ContentSelectors)
	previous := o.frame
	o.frame = nil
	o.mu.Unlock()

	if text != "" {
		if err := o.prefs.SetPostContent(ctx, text); err != nil {
			o.logger.Error("Failed to stage post content", zap.Error(err))
		}
	}

	if previous != nil {
		previous.Close()
	}

	frame, err := o.opener.OpenSurface(ctx)
	if err != nil {
		return text, fmt.Errorf("failed to open surface: %w", err)
	}

	o.mu.Lock()
	o.frame = frame
	o.mu.Unlock()

	if text == "" {
		return "", nil
	}

	select {
	case <-frame.Ready():
		frame.HandlePageMessage(messaging.PageMessage{
			Type:        messaging.PageMessageSetPostContent,
			PostContent: text,
		})
	case <-ctx.Done():
		return text, ctx.Err()
	}
	return text, nil
}

// Observe scans once, then applies each mutation batch and rescans, until
// ctx is done or the channel is closed.
func (o *Observer) Observe(ctx context.Context, mutations <-chan Mutation) error {
	o.Scan()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-mutations:
			if !ok {
				return nil
			}
			o.mu.Lock()
			m(o.page.doc)
			o.scanLocked()
			o.mu.Unlock()
		}
	}
}

// Watch reloads the document from source on the cron schedule (for example
// "@every 2s") and rescans after each load.
func (o *Observer) Watch(ctx context.Context, source Source, schedule string) error {
	reload := func() {
		page, err := source.Load(ctx)
		if err != nil {
			o.logger.Error("Failed to reload page", zap.Error(err))
			return
		}
		o.mu.Lock()
		o.page = page
		o.scanLocked()
		o.mu.Unlock()
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, reload); err != nil {
		return fmt.Errorf("invalid rescan schedule %q: %w", schedule, err)
	}

	reload()
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// Page returns the current document.
func (o *Observer) Page() *Page {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.page
}

func preview(text string) string {
	const max = 60
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max]) + "..."
}
