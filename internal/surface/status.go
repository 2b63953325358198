package surface

import (
	"sync"
	"time"
)

type StatusKind int

const (
	StatusInfo StatusKind = iota
	StatusSuccess
	StatusError
)

type Status struct {
	Message string
	Kind    StatusKind
	Visible bool
}

// statusLine shows one message at a time. Errors persist until replaced;
// everything else hides itself after ttl.
type statusLine struct {
	mu    sync.Mutex
	ttl   time.Duration
	cur   Status
	seq   uint64
	timer *time.Timer
}

func newStatusLine(ttl time.Duration) *statusLine {
	return &statusLine{ttl: ttl}
}

func (l *statusLine) show(msg string, kind StatusKind) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	l.cur = Status{Message: msg, Kind: kind, Visible: true}
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	if kind == StatusError {
		return
	}

	seq := l.seq
	l.timer = time.AfterFunc(l.ttl, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		// A newer message owns the line.
		if l.seq == seq {
			l.cur.Visible = false
		}
	})
}

func (l *statusLine) current() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cur
}

func (l *statusLine) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}
