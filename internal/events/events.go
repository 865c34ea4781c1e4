// Package events publishes build notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/himu-me/notepress/internal/logfields"
	"github.com/himu-me/notepress/internal/retry"
)

// publishPolicy bounds how long a build waits on an unreachable broker.
var publishPolicy = retry.DefaultPolicy()

// BuildCompleted is emitted once per build, successful or not.
type BuildCompleted struct {
	BuildID     string    `json:"build_id"`
	Outcome     string    `json:"outcome"`
	Incremental bool      `json:"incremental"`
	Rendered    int       `json:"rendered"`
	Reused      int       `json:"reused"`
	BrokenLinks int       `json:"broken_links"`
	DurationMS  int64     `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher delivers build events.
type Publisher interface {
	PublishBuildCompleted(ctx context.Context, ev BuildCompleted) error
	Close()
}

// Noop discards every event.
type Noop struct{}

func (Noop) PublishBuildCompleted(context.Context, BuildCompleted) error { return nil }
func (Noop) Close()                                                      {}

// NATSPublisher publishes events as JSON on a core NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to url. The connection is named so that it is
// recognizable in server monitoring.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if url == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if subject == "" {
		return nil, fmt.Errorf("nats subject is required")
	}

	conn, err := nats.Connect(url,
		nats.Name("notepress"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	slog.Info("NATS publisher initialized for build events",
		slog.String("url", url),
		slog.String("subject", subject))

	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// PublishBuildCompleted publishes ev and waits for the server to
// acknowledge the flush.
func (p *NATSPublisher) PublishBuildCompleted(ctx context.Context, ev BuildCompleted) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}

	slog.Debug("Published build event",
		logfields.BuildID(ev.BuildID),
		logfields.Outcome(ev.Outcome),
		slog.String("subject", p.subject))
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.conn.Drain(); err != nil {
			p.conn.Close()
		}
	}
}

// Publish sends ev through pub, retrying transient failures. A failure
// that survives the retries is downgraded to a warning; notifications never
// fail a build.
func Publish(ctx context.Context, pub Publisher, ev BuildCompleted) {
	if pub == nil {
		return
	}
	err := publishPolicy.Do(ctx, func() error { return pub.PublishBuildCompleted(ctx, ev) })
	if err != nil {
		slog.Warn("Failed to publish build event",
			logfields.BuildID(ev.BuildID),
			logfields.Error(err))
	}
}
