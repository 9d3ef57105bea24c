// Package store provides the namespaced key/value storage the chat state
// is persisted in. Three drivers implement the same contract: an in-memory
// map, a sqlite file, and a Postgres table.
package store

import "context"

// Every key the application owns carries this prefix so a full reset can
// enumerate and clear them without touching co-tenant data.
const (
	Prefix = "nextstep_"

	KeySessions    = Prefix + "sessions"
	KeyLastSession = Prefix + "last_session_id"
	KeyTheme       = Prefix + "theme"
	KeyUsername    = Prefix + "username"

	msgPrefix = Prefix + "msg_"
)

// MessageKey is the storage slot of one session's message log. The slot
// exists iff the log is non-empty; an empty log is represented by absence.
func MessageKey(sessionID string) string {
	return msgPrefix + sessionID
}

// KV is synchronous key/value storage. Get reports presence explicitly;
// Delete of a missing key is not an error.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
