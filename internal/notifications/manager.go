// Package notifications handles desktop notifications and alarm snoozes
package notifications

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
)

// Level is the severity of a notification
type Level int

// Notification levels, lowest first
const (
	LevelInfo Level = iota
	LevelWarn
	LevelUrgent
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelUrgent:
		return "urgent"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// DefaultRepeat is how long an identical notification is held back
const DefaultRepeat = 30 * time.Minute

// Notification is a request to show a message to the user
type Notification struct {
	Level   Level
	Title   string
	Message string
	Sound   string
}

// Snooze silences alarms up to Level until the given Unix milliseconds
type Snooze struct {
	Level Level
	Until int64
}

// Sink receives notification and snooze requests
type Sink interface {
	RequestNotify(n Notification)
	RequestSnooze(s Snooze)
}

// Manager delivers notifications as desktop notifications. Alarms (warn and
// urgent) are suppressed while snoozed and identical notifications are only
// repeated after the repeat interval.
type Manager struct {
	send   func(Notification) error
	now    func() time.Time
	repeat time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
	snoozed  map[Level]int64
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithSender replaces the desktop delivery.
func WithSender(send func(Notification) error) Option {
	return func(m *Manager) {
		if send != nil {
			m.send = send
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRepeat sets how long identical notifications are held back.
func WithRepeat(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.repeat = d
		}
	}
}

// WithLogger sets the logger delivery failures are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a new notification manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		send:     desktop,
		now:      time.Now,
		repeat:   DefaultRepeat,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		lastSent: make(map[string]time.Time),
		snoozed:  make(map[Level]int64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RequestNotify delivers n unless it is snoozed or was just sent
func (m *Manager) RequestNotify(n Notification) {
	if err := m.Notify(n); err != nil {
		m.logger.Warn("notification failed", "title", n.Title, "error", err)
	}
}

// RequestSnooze silences alarms up to s.Level until s.Until
func (m *Manager) RequestSnooze(s Snooze) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for l := LevelWarn; l <= s.Level; l++ {
		if s.Until > m.snoozed[l] {
			m.snoozed[l] = s.Until
		}
	}
	m.logger.Debug("alarms snoozed", "level", s.Level, "until", time.UnixMilli(s.Until))
}

// Notify is RequestNotify returning the delivery error
func (m *Manager) Notify(n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.isSnoozed(n.Level, now) {
		m.logger.Debug("notification snoozed", "title", n.Title, "level", n.Level)
		return nil
	}

	key := n.Title + "\n" + n.Message
	if last, ok := m.lastSent[key]; ok && now.Sub(last) < m.repeat {
		return nil
	}

	if err := m.send(n); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	m.lastSent[key] = now
	return nil
}

// Snoozed reports whether alarms of the given level are silenced right now
func (m *Manager) Snoozed(level Level) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isSnoozed(level, m.now())
}

func (m *Manager) isSnoozed(level Level, now time.Time) bool {
	if level < LevelWarn {
		return false
	}
	return now.UnixMilli() < m.snoozed[level]
}

// ClearState forgets sent notifications and snoozes
func (m *Manager) ClearState() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSent = make(map[string]time.Time)
	m.snoozed = make(map[Level]int64)
}

// SendTestNotification sends a test notification
func (m *Manager) SendTestNotification() error {
	return m.send(Notification{Level: LevelInfo, Title: "Nightscout Chart", Message: "Test notification - alerts are working!"})
}

// desktop uses beeep for cross-platform notifications
func desktop(n Notification) error {
	if n.Level == LevelUrgent {
		return beeep.Alert(n.Title, n.Message, "")
	}
	return beeep.Notify(n.Title, n.Message, "")
}
