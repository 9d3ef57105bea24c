// Package notify streams finalized chat state to rendering collaborators
// over NATS. The core never waits on a renderer; publishes are
// fire-and-forget and failures only log.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nextstep-labs/nextstep/internal/chat"
)

const (
	// SubjectMessage carries every finalized Message.
	SubjectMessage = "nextstep.chat.message"
	// SubjectSession carries session-list changes.
	SubjectSession = "nextstep.chat.session"
)

// MessageEvent is the payload on SubjectMessage.
type MessageEvent struct {
	SessionID string       `json:"session_id"`
	Message   chat.Message `json:"message"`
}

// SessionEvent is the payload on SubjectSession.
type SessionEvent struct {
	Event   string       `json:"event"` // created | renamed | deleted | selected
	Session chat.Session `json:"session"`
}

type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewClient(url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

// PublishMessage satisfies chat.Publisher.
func (c *Client) PublishMessage(sessionID string, msg chat.Message) {
	c.publish(SubjectMessage, MessageEvent{SessionID: sessionID, Message: msg})
}

// PublishSession satisfies chat.Publisher.
func (c *Client) PublishSession(event string, s chat.Session) {
	c.publish(SubjectSession, SessionEvent{Event: event, Session: s})
}

func (c *Client) publish(subject string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		c.logger.Error("failed to marshal event", "subject", subject, "error", err)
		return
	}
	if err := c.conn.Publish(subject, payload); err != nil {
		c.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

func (c *Client) Close() {
	c.conn.Close()
}
