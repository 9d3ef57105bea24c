package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/nextstep-labs/nextstep/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedConv is a canned transport conversation.
type scriptedConv struct {
	reply  *Reply
	err    error
	calls  int
	onSend func()
}

func (c *scriptedConv) Send(_ context.Context, _ string) (*Reply, error) {
	c.calls++
	if c.onSend != nil {
		c.onSend()
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.reply, nil
}

// fakeTransport hands out scripted conversations and records the replayed
// history each handle was seeded with.
type fakeTransport struct {
	conv        *scriptedConv
	lastHistory []Message
}

func (f *fakeTransport) NewConversation(history []Message) Conversation {
	f.lastHistory = append([]Message(nil), history...)
	if f.conv != nil {
		return f.conv
	}
	return &scriptedConv{reply: &Reply{Text: "ok"}}
}

// failingKV wraps a working store and fails every write.
type failingKV struct {
	store.KV
	writeErr error
}

func (f *failingKV) Set(_ context.Context, _, _ string) error { return f.writeErr }
func (f *failingKV) Delete(_ context.Context, _ string) error { return f.writeErr }

func newTestManager(t *testing.T) (*Manager, *store.Memory, *fakeTransport) {
	t.Helper()
	kv := store.NewMemory()
	tr := &fakeTransport{}
	return NewManager(kv, tr, discardLogger()), kv, tr
}

func appendTestMessage(m *Manager, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(context.Background(), Message{
		ID: text, Role: RoleUser, Text: text, Type: TypeText,
	})
}

func TestRestore_EmptyStoreCreatesSession(t *testing.T) {
	m, kv, _ := newTestManager(t)
	ctx := context.Background()

	if err := m.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}

	sessions := m.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("expected exactly 1 session, got %d", len(sessions))
	}
	if sessions[0].Title != DefaultTitle {
		t.Errorf("expected default title, got %q", sessions[0].Title)
	}
	active, ok := m.Active()
	if !ok || active.ID != sessions[0].ID {
		t.Error("expected the created session to be active")
	}

	// Last-active pointer persisted
	last, ok, _ := kv.Get(ctx, store.KeyLastSession)
	if !ok || last != active.ID {
		t.Errorf("expected last-active %q, got %q", active.ID, last)
	}

	// Empty log means no storage slot
	if _, ok, _ := kv.Get(ctx, store.MessageKey(active.ID)); ok {
		t.Error("empty message log must not be written to storage")
	}
}

func TestRestore_PrefersLastActive(t *testing.T) {
	m, kv, _ := newTestManager(t)
	ctx := context.Background()

	sessions := []Session{
		{ID: "newer", Title: "Newer"},
		{ID: "older", Title: "Older"},
	}
	data, _ := json.Marshal(sessions)
	kv.Set(ctx, store.KeySessions, string(data))
	kv.Set(ctx, store.KeyLastSession, "older")

	if err := m.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	active, _ := m.Active()
	if active.ID != "older" {
		t.Errorf("expected last-active session, got %q", active.ID)
	}
}

func TestRestore_FallsBackToMostRecent(t *testing.T) {
	m, kv, _ := newTestManager(t)
	ctx := context.Background()

	sessions := []Session{{ID: "newer"}, {ID: "older"}}
	data, _ := json.Marshal(sessions)
	kv.Set(ctx, store.KeySessions, string(data))
	kv.Set(ctx, store.KeyLastSession, "deleted-meanwhile")

	if err := m.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	active, _ := m.Active()
	if active.ID != "newer" {
		t.Errorf("expected first (most recent) session, got %q", active.ID)
	}
	if len(m.Sessions()) != 2 {
		t.Errorf("restore must not create a session when some exist")
	}
}

func TestCreate_PrependsAndActivates(t *testing.T) {
	m, _, tr := newTestManager(t)
	ctx := context.Background()

	first := m.Create(ctx)
	appendTestMessage(m, "hello")
	second := m.Create(ctx)

	sessions := m.Sessions()
	if len(sessions) != 2 || sessions[0].ID != second.ID || sessions[1].ID != first.ID {
		t.Errorf("expected newest-first order, got %+v", sessions)
	}
	if active, _ := m.Active(); active.ID != second.ID {
		t.Errorf("expected new session active, got %q", active.ID)
	}
	if len(m.Messages()) != 0 {
		t.Error("expected empty buffer after create")
	}
	if len(tr.lastHistory) != 0 {
		t.Error("expected fresh conversation handle with no history")
	}
}

func TestSelect_NoStaleWrite(t *testing.T) {
	m, kv, _ := newTestManager(t)
	ctx := context.Background()

	a := m.Create(ctx)
	appendTestMessage(m, "a1")
	appendTestMessage(m, "a2")

	rawA, ok, _ := kv.Get(ctx, store.MessageKey(a.ID))
	if !ok {
		t.Fatal("expected A's log persisted")
	}

	b := m.Create(ctx)
	if err := m.Select(ctx, a.ID); err != nil {
		t.Fatalf("select back: %v", err)
	}

	// A's log survived the round trip untouched.
	raw2, ok, _ := kv.Get(ctx, store.MessageKey(a.ID))
	if !ok || raw2 != rawA {
		t.Errorf("A's persisted log changed across switches:\n%s\n%s", rawA, raw2)
	}
	msgs := m.Messages()
	if len(msgs) != 2 || msgs[0].Text != "a1" || msgs[1].Text != "a2" {
		t.Errorf("restored log mismatch: %+v", msgs)
	}

	// B never had messages, so its slot must not exist — in particular it
	// must not hold A's buffer.
	if _, ok, _ := kv.Get(ctx, store.MessageKey(b.ID)); ok {
		t.Error("B's storage slot must stay absent")
	}
}

func TestSelect_RebuildsConversationFromLog(t *testing.T) {
	m, _, tr := newTestManager(t)
	ctx := context.Background()

	a := m.Create(ctx)
	appendTestMessage(m, "question")
	m.Create(ctx)

	if err := m.Select(ctx, a.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(tr.lastHistory) != 1 || tr.lastHistory[0].Text != "question" {
		t.Errorf("expected handle seeded with A's log, got %+v", tr.lastHistory)
	}
}

func TestSelect_UnknownSession(t *testing.T) {
	m, _, _ := newTestManager(t)
	m.Create(context.Background())
	if err := m.Select(context.Background(), "nope"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRename_InPlace(t *testing.T) {
	m, kv, _ := newTestManager(t)
	ctx := context.Background()

	a := m.Create(ctx)
	b := m.Create(ctx)
	if err := m.Rename(ctx, a.ID, "Roadmap Generator"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	sessions := m.Sessions()
	if sessions[0].ID != b.ID || sessions[1].ID != a.ID {
		t.Error("rename must not reorder the list")
	}
	if sessions[1].Title != "Roadmap Generator" {
		t.Errorf("expected renamed title, got %q", sessions[1].Title)
	}

	raw, _, _ := kv.Get(ctx, store.KeySessions)
	var persisted []Session
	json.Unmarshal([]byte(raw), &persisted)
	if persisted[1].Title != "Roadmap Generator" {
		t.Error("rename not persisted")
	}

	if err := m.Rename(ctx, "nope", "x"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete_OnlySessionCreatesFreshOne(t *testing.T) {
	m, kv, _ := newTestManager(t)
	ctx := context.Background()

	a := m.Create(ctx)
	appendTestMessage(m, "hello")

	if err := m.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	sessions := m.Sessions()
	if len(sessions) != 1 {
		t.Fatalf("expected exactly 1 session after delete, got %d", len(sessions))
	}
	if sessions[0].ID == a.ID {
		t.Error("expected a fresh session, not the deleted one")
	}
	if active, ok := m.Active(); !ok || active.ID != sessions[0].ID {
		t.Error("expected the fresh session to be active")
	}
	if len(m.Messages()) != 0 {
		t.Error("expected empty buffer after delete")
	}
	if _, ok, _ := kv.Get(ctx, store.MessageKey(a.ID)); ok {
		t.Error("deleted session's log must be removed from storage")
	}
}

func TestDelete_ActiveRetargetsToMostRecent(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	a := m.Create(ctx)
	appendTestMessage(m, "kept")
	b := m.Create(ctx)

	if err := m.Delete(ctx, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	active, _ := m.Active()
	if active.ID != a.ID {
		t.Errorf("expected fallback to remaining session, got %q", active.ID)
	}
	if msgs := m.Messages(); len(msgs) != 1 || msgs[0].Text != "kept" {
		t.Errorf("expected A's log restored, got %+v", msgs)
	}
}

func TestDelete_InactiveKeepsPointer(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	a := m.Create(ctx)
	b := m.Create(ctx)

	if err := m.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	active, _ := m.Active()
	if active.ID != b.ID {
		t.Errorf("deleting an inactive session must not move the pointer, got %q", active.ID)
	}
}

func TestStorageWriteFailures_SwallowedMemoryStaysAuthoritative(t *testing.T) {
	inner := store.NewMemory()
	kv := &failingKV{KV: inner, writeErr: errors.New("disk full")}
	m := NewManager(kv, &fakeTransport{}, discardLogger())
	ctx := context.Background()

	a := m.Create(ctx)
	appendTestMessage(m, "survives")
	if err := m.Rename(ctx, a.ID, "Renamed"); err != nil {
		t.Fatalf("rename must succeed despite a failed write: %v", err)
	}

	// Every transition completed in memory.
	sessions := m.Sessions()
	if len(sessions) != 1 || sessions[0].Title != "Renamed" {
		t.Errorf("expected renamed session in memory, got %+v", sessions)
	}
	if msgs := m.Messages(); len(msgs) != 1 || msgs[0].Text != "survives" {
		t.Errorf("expected buffered message kept, got %+v", msgs)
	}
	if active, ok := m.Active(); !ok || active.ID != a.ID {
		t.Error("expected the session to stay active")
	}

	// Nothing reached the backing store.
	if keys, _ := inner.Keys(ctx, store.Prefix); len(keys) != 0 {
		t.Errorf("expected no persisted keys, got %v", keys)
	}

	// Delete still repairs the pointer even when the log delete fails.
	b := m.Create(ctx)
	if err := m.Delete(ctx, b.ID); err != nil {
		t.Fatalf("delete must succeed despite a failed key delete: %v", err)
	}
	if active, _ := m.Active(); active.ID != a.ID {
		t.Errorf("expected pointer repaired to remaining session, got %q", active.ID)
	}
}

func TestReset_ClearsOwnedKeysOnly(t *testing.T) {
	m, kv, _ := newTestManager(t)
	ctx := context.Background()

	m.Create(ctx)
	appendTestMessage(m, "hello")
	kv.Set(ctx, store.KeyTheme, "dark")
	kv.Set(ctx, "other_tenant", "keep")

	if err := m.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}

	keys, _ := kv.Keys(ctx, store.Prefix)
	if len(keys) != 0 {
		t.Errorf("expected all owned keys removed, got %v", keys)
	}
	if _, ok, _ := kv.Get(ctx, "other_tenant"); !ok {
		t.Error("reset must not touch foreign keys")
	}
	if len(m.Sessions()) != 0 {
		t.Error("expected no sessions after reset")
	}
	if _, ok := m.Active(); ok {
		t.Error("expected no active session after reset")
	}
}
