package chat

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nextstep-labs/nextstep/internal/extract"
)

// User-facing failure notices. Transport failures never crash the
// conversation; they surface as ordinary model messages.
const (
	noticeQuota = "⚠️ **Daily Limit Reached**\n\nThe AI provider's free tier daily quota has been exceeded for this API key. \n\nPlease try again tomorrow or use a different API key if available."

	noticeTraffic = "⚠️ **High Traffic**\n\nI'm receiving too many messages right now! Please wait a moment and try again."

	noticeConnection = "⚠️ **Connection Error**\n\nThere seems to be a temporary issue connecting to the AI service. Please check your internet connection or try again in a moment."

	noticeGeneric = "Sorry, I encountered an error connecting to the AI."
)

// agentSelfID matches a reply that opens with the persona marker, e.g.
// "🤖 **Profile Analyzer Agent**: ...". Group 1 is the persona name with
// the optional " Agent" suffix already peeled off.
var agentSelfID = regexp.MustCompile(`🤖 \*\*(.*?)( Agent)?\*\*`)

const titlePrefixLimit = 30

// Controller drives one submission through the pipeline: optimistic user
// append, transport call, extraction and classification, title heuristic,
// and publication of the finalized messages.
type Controller struct {
	manager   *Manager
	publisher Publisher
	logger    *slog.Logger
}

// NewController wires the submit pipeline. publisher may be nil, in which
// case finalized messages are simply not announced downstream.
func NewController(m *Manager, publisher Publisher, logger *slog.Logger) *Controller {
	return &Controller{manager: m, publisher: publisher, logger: logger}
}

// Submit sends user text through the active conversation and returns the
// appended messages (the user turn plus the model turn or failure notice).
// One submission may be in flight at a time; a blank input or a missing
// conversation handle is rejected up front.
func (c *Controller) Submit(ctx context.Context, rawText string) ([]Message, error) {
	text := strings.TrimSpace(rawText)

	m := c.manager
	m.mu.Lock()
	if text == "" {
		m.mu.Unlock()
		return nil, ErrEmptyInput
	}
	if m.conv == nil {
		m.mu.Unlock()
		return nil, ErrNoSession
	}
	if m.busy {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	m.busy = true

	originID := m.activeID
	firstExchange := len(m.messages) == 0
	conv := m.conv

	userMsg := Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Text:      text,
		Type:      TypeText,
		Timestamp: time.Now().UnixMilli(),
	}
	m.appendLocked(ctx, userMsg)
	m.touchLocked(ctx)
	m.mu.Unlock()

	c.publish(originID, userMsg)

	// The network call runs outside the lock; UI-triggered transitions
	// (including session switches) stay responsive during backoff.
	reply, sendErr := conv.Send(ctx, text)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = false

	// No cancellation reaches an in-flight call, so a reply may resolve
	// after the user moved on. It must not be appended to the session
	// that is now active.
	if m.activeID != originID {
		c.logger.Warn("discarding reply for inactive session",
			"session_id", originID,
			"active_id", m.activeID,
		)
		return nil, ErrStaleReply
	}

	if sendErr != nil {
		notice := Message{
			ID:        uuid.NewString(),
			Role:      RoleModel,
			Text:      noticeFor(sendErr),
			Type:      TypeText,
			Timestamp: time.Now().UnixMilli(),
		}
		if !errors.Is(sendErr, ErrQuotaExceeded) {
			c.logger.Error("transport failure", "error", sendErr)
		}
		m.appendLocked(ctx, notice)
		c.publish(originID, notice)
		return []Message{userMsg, notice}, nil
	}

	msgType := TypeText
	var data map[string]any
	if payload, ok := extract.JSON(reply.Text); ok {
		if k := extract.Classify(payload); k != extract.KindText {
			msgType = MessageType(k)
			data = payload
		}
	}

	modelMsg := Message{
		ID:            uuid.NewString(),
		Role:          RoleModel,
		Text:          reply.Text,
		Type:          msgType,
		Data:          data,
		GroundingRefs: reply.Citations,
		Timestamp:     time.Now().UnixMilli(),
	}
	m.appendLocked(ctx, modelMsg)

	c.applyTitleHeuristic(ctx, reply.Text, msgType, text, firstExchange)

	c.publish(originID, modelMsg)
	return []Message{userMsg, modelMsg}, nil
}

// AcceptHandoff feeds a handoff suggestion's prompt back through Submit as
// if the user had typed it.
func (c *Controller) AcceptHandoff(ctx context.Context, suggestedPrompt string) ([]Message, error) {
	return c.Submit(ctx, suggestedPrompt)
}

func (c *Controller) publish(sessionID string, msg Message) {
	if c.publisher != nil {
		c.publisher.PublishMessage(sessionID, msg)
	}
}

// applyTitleHeuristic renames a still-generic session once per submission.
// Precedence: the agent's self-identification, then the content type, then
// a prefix of the user's own first input. Called with m.mu held.
func (c *Controller) applyTitleHeuristic(ctx context.Context, replyText string, msgType MessageType, input string, firstExchange bool) {
	m := c.manager
	active, ok := m.activeLocked()
	if !ok || !genericTitle(active.Title) {
		return
	}

	if match := agentSelfID.FindStringSubmatch(replyText); match != nil && strings.TrimSpace(match[1]) != "" {
		_ = m.renameLocked(ctx, active.ID, strings.TrimSpace(match[1]))
		return
	}

	switch msgType {
	case TypeRoadmap:
		_ = m.renameLocked(ctx, active.ID, "Roadmap Generator")
		return
	case TypeCourses:
		_ = m.renameLocked(ctx, active.ID, "Course Finder")
		return
	}

	if firstExchange && len(input) > 2 {
		_ = m.renameLocked(ctx, active.ID, truncateTitle(input))
	}
}

// genericTitle reports whether a title is still a placeholder the heuristic
// may overwrite. Deliberately narrow: anything else is treated as user-set.
func genericTitle(title string) bool {
	if title == DefaultTitle {
		return true
	}
	lower := strings.ToLower(title)
	return lower == "hi" || lower == "hello"
}

func truncateTitle(input string) string {
	runes := []rune(input)
	if len(runes) <= titlePrefixLimit {
		return input
	}
	return string(runes[:titlePrefixLimit]) + "..."
}

// noticeFor maps a transport failure to its user-facing message. Retry
// already happened in the transport; this is classification only.
func noticeFor(err error) string {
	if errors.Is(err, ErrQuotaExceeded) {
		return noticeQuota
	}

	msg := err.Error()
	if strings.Contains(msg, "429") {
		return noticeTraffic
	}
	var urlErr *url.Error
	if strings.Contains(msg, "500") || errors.As(err, &urlErr) {
		return noticeConnection
	}
	return noticeGeneric
}
