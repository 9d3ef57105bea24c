// Package chat owns the conversation state machine: the session list, the
// active-session pointer, the in-memory message buffer, and the submit
// pipeline that ties the transport and the response extractor together.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nextstep-labs/nextstep/internal/store"
)

// Manager keeps the three persisted stores — session list, per-session
// message log, last-active pointer — consistent across creation, switching
// and deletion. All transitions run under one lock; each transition ends
// with explicit persistence calls, so no ordering between independent
// observers can interleave a stale write.
type Manager struct {
	kv        store.KV
	transport Transport
	logger    *slog.Logger

	mu       sync.Mutex
	sessions []Session
	activeID string
	messages []Message
	conv     Conversation
	busy     bool
}

func NewManager(kv store.KV, transport Transport, logger *slog.Logger) *Manager {
	return &Manager{kv: kv, transport: transport, logger: logger}
}

// Restore brings the manager to its post-startup state: the last-active
// session if it still exists, else the most recent session, else a brand
// new one. Exactly one session is active afterwards.
func (m *Manager) Restore(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok, err := m.kv.Get(ctx, store.KeySessions)
	if err != nil {
		return fmt.Errorf("load session list: %w", err)
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &m.sessions); err != nil {
			m.logger.Error("corrupt session list, starting fresh", "error", err)
			m.sessions = nil
		}
	}

	last, ok, err := m.kv.Get(ctx, store.KeyLastSession)
	if err != nil {
		return fmt.Errorf("load last-active pointer: %w", err)
	}

	switch {
	case ok && m.contains(last):
		m.selectLocked(ctx, last)
	case len(m.sessions) > 0:
		m.selectLocked(ctx, m.sessions[0].ID)
	default:
		m.createLocked(ctx)
	}
	return nil
}

// Create allocates a new session, prepends it to the list and makes it
// active with an empty buffer.
func (m *Manager) Create(ctx context.Context) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(ctx)
}

func (m *Manager) createLocked(ctx context.Context) Session {
	s := Session{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		Preview:   defaultPreview,
		UpdatedAt: time.Now().UnixMilli(),
	}
	m.sessions = append([]Session{s}, m.sessions...)
	m.persistSessions(ctx)

	m.messages = nil
	m.activeID = s.ID
	m.recordLastActive(ctx)
	m.conv = m.transport.NewConversation(nil)

	m.logger.Info("session created", "session_id", s.ID)
	return s
}

// Select switches the active session. The buffer is cleared before the
// pointer moves; since the log slot is only ever written from a non-empty
// buffer, the previous session's messages can never land under the new
// session's key.
func (m *Manager) Select(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.contains(id) {
		return ErrNotFound
	}
	m.selectLocked(ctx, id)
	return nil
}

func (m *Manager) selectLocked(ctx context.Context, id string) {
	if id == m.activeID {
		return
	}

	m.messages = nil
	m.activeID = id
	m.recordLastActive(ctx)

	raw, ok, err := m.kv.Get(ctx, store.MessageKey(id))
	if err != nil {
		m.logger.Error("failed to load message log", "session_id", id, "error", err)
	} else if ok {
		if err := json.Unmarshal([]byte(raw), &m.messages); err != nil {
			m.logger.Error("corrupt message log, starting empty", "session_id", id, "error", err)
			m.messages = nil
		}
	}

	m.conv = m.transport.NewConversation(m.messages)
	m.logger.Info("session selected", "session_id", id, "messages", len(m.messages))
}

// Rename updates a session title in place without reordering the list.
func (m *Manager) Rename(ctx context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renameLocked(ctx, id, title)
}

func (m *Manager) renameLocked(ctx context.Context, id, title string) error {
	for i := range m.sessions {
		if m.sessions[i].ID == id {
			m.sessions[i].Title = title
			m.persistSessions(ctx)
			return nil
		}
	}
	return ErrNotFound
}

// Delete removes a session and its persisted log. When the active session
// is deleted, the pointer is repaired inside the same transition: the most
// recent remaining session takes over, or a fresh one is created.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i := range m.sessions {
		if m.sessions[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrNotFound
	}

	if err := m.kv.Delete(ctx, store.MessageKey(id)); err != nil {
		m.logger.Error("failed to delete message log", "session_id", id, "error", err)
	}

	m.sessions = append(m.sessions[:idx], m.sessions[idx+1:]...)
	m.persistSessions(ctx)

	if id == m.activeID {
		m.messages = nil
		m.activeID = ""
		m.conv = nil
		if len(m.sessions) > 0 {
			m.selectLocked(ctx, m.sessions[0].ID)
		} else {
			m.createLocked(ctx)
		}
	}

	m.logger.Info("session deleted", "session_id", id)
	return nil
}

// Reset is the logout flow: every owned storage key is removed and all
// in-memory state is dropped. No session is active afterwards.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys, err := m.kv.Keys(ctx, store.Prefix)
	if err != nil {
		return fmt.Errorf("enumerate keys: %w", err)
	}
	for _, k := range keys {
		if err := m.kv.Delete(ctx, k); err != nil {
			m.logger.Error("failed to delete key", "key", k, "error", err)
		}
	}

	m.sessions = nil
	m.messages = nil
	m.activeID = ""
	m.conv = nil
	m.logger.Info("state reset")
	return nil
}

// Sessions returns a copy of the session list, newest first.
func (m *Manager) Sessions() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, len(m.sessions))
	copy(out, m.sessions)
	return out
}

// Active returns the active session, if any.
func (m *Manager) Active() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLocked()
}

func (m *Manager) activeLocked() (Session, bool) {
	for _, s := range m.sessions {
		if s.ID == m.activeID {
			return s, true
		}
	}
	return Session{}, false
}

// Messages returns a copy of the active session's message buffer.
func (m *Manager) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func (m *Manager) contains(id string) bool {
	for _, s := range m.sessions {
		if s.ID == id {
			return true
		}
	}
	return false
}

// appendLocked adds a message to the buffer and persists the full log.
func (m *Manager) appendLocked(ctx context.Context, msg Message) {
	m.messages = append(m.messages, msg)
	m.persistMessages(ctx)
}

// touchLocked refreshes the active session's recency stamp.
func (m *Manager) touchLocked(ctx context.Context) {
	for i := range m.sessions {
		if m.sessions[i].ID == m.activeID {
			m.sessions[i].UpdatedAt = time.Now().UnixMilli()
			m.persistSessions(ctx)
			return
		}
	}
}

// Storage failures below are logged and swallowed: the in-memory state
// stays the source of truth for the visible conversation, a failed write
// only risks loss on restart.

func (m *Manager) persistSessions(ctx context.Context) {
	data, err := json.Marshal(m.sessions)
	if err != nil {
		m.logger.Error("failed to serialize session list", "error", err)
		return
	}
	if err := m.kv.Set(ctx, store.KeySessions, string(data)); err != nil {
		m.logger.Error("failed to persist session list", "error", err)
	}
}

// persistMessages writes the buffer to the active session's slot. An empty
// buffer is never written: absence of the slot is the representation of an
// empty log, and skipping the write is what makes clearing-before-switching
// safe.
func (m *Manager) persistMessages(ctx context.Context) {
	if m.activeID == "" || len(m.messages) == 0 {
		return
	}
	data, err := json.Marshal(m.messages)
	if err != nil {
		m.logger.Error("failed to serialize message log", "error", err)
		return
	}
	if err := m.kv.Set(ctx, store.MessageKey(m.activeID), string(data)); err != nil {
		m.logger.Error("failed to persist message log", "session_id", m.activeID, "error", err)
	}
}

func (m *Manager) recordLastActive(ctx context.Context) {
	if m.activeID == "" {
		return
	}
	if err := m.kv.Set(ctx, store.KeyLastSession, m.activeID); err != nil {
		m.logger.Error("failed to persist last-active pointer", "error", err)
	}
}
