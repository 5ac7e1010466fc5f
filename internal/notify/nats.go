// Package notify publishes build events to NATS JetStream so other tooling
// (editors, CI dashboards) can react to rebuilds.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/webbundler/internal/config"
	"git.home.luguber.info/inful/webbundler/internal/logfields"
	"git.home.luguber.info/inful/webbundler/internal/retry"
)

// BuildEvent is the payload published for every completed build.
type BuildEvent struct {
	BuildID      string    `json:"build_id"`
	Trigger      string    `json:"trigger"`
	Outcome      string    `json:"outcome"`
	DurationMS   int64     `json:"duration_ms"`
	OutputFiles  int       `json:"output_files"`
	OutputBytes  int64     `json:"output_bytes"`
	InitialFiles []string  `json:"initial_files,omitempty"`
	Errors       int       `json:"errors"`
	Warnings     int       `json:"warnings"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher manages the NATS connection used for build events.
type Publisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
	policy  retry.Policy
}

// NewPublisher connects to NATS per the notify configuration.
func NewPublisher(cfg *config.NotifyConfig) (*Publisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("notify config is required")
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("notifications are disabled")
	}

	conn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	slog.Info("NATS publisher initialized for build events",
		slog.String("url", cfg.NATSURL),
		logfields.Subject(cfg.Subject))

	return &Publisher{
		conn:    conn,
		js:      js,
		subject: cfg.Subject,
		policy:  retry.NewPolicy(retry.BackoffExponential, 200*time.Millisecond, 2*time.Second, 2),
	}, nil
}

// PublishBuild publishes one build event. Transient publish failures are
// retried with backoff; the daemon treats a final failure as non-fatal.
func (p *Publisher) PublishBuild(event *BuildEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.policy.Do(ctx, func() error {
		_, pubErr := p.js.Publish(ctx, p.subject, data)
		return pubErr
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	slog.Debug("Published build event",
		logfields.BuildID(event.BuildID),
		slog.String("outcome", event.Outcome),
		logfields.Subject(p.subject))

	return nil
}

// Close closes the NATS connection.
func (p *Publisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
