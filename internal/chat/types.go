package chat

import (
	"context"
	"errors"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// MessageType classifies a model reply by the structured payload it carries.
type MessageType string

const (
	TypeText    MessageType = "text"
	TypeRoadmap MessageType = "roadmap"
	TypeCourses MessageType = "courses"
	TypeHandoff MessageType = "handoff"
)

// DefaultTitle is the placeholder title of a freshly created session. The
// title heuristic only ever overwrites placeholder titles.
const (
	DefaultTitle   = "New Chat"
	defaultPreview = "Start a conversation..."
)

// Session is one persisted conversation thread. The session list is ordered
// newest-first; insertion order is recency.
type Session struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Preview   string `json:"preview"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Citation is a search-grounding source reference returned with a reply.
type Citation struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Message is one turn of a conversation. Messages are immutable once
// created; the full ordered sequence belongs to exactly one session.
// Text always holds the raw model output — display scrubbing happens at
// render time so replayed history keeps full fidelity.
type Message struct {
	ID            string         `json:"id"`
	Role          Role           `json:"role"`
	Text          string         `json:"text"`
	Type          MessageType    `json:"type"`
	Data          map[string]any `json:"data,omitempty"`
	GroundingRefs []Citation     `json:"groundingRefs,omitempty"`
	Timestamp     int64          `json:"timestamp"`
}

// WeekPlan is one entry of a roadmap payload.
type WeekPlan struct {
	Week        string `json:"week"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// RoadmapData is the structured payload behind a roadmap message.
type RoadmapData struct {
	Weeks    []WeekPlan `json:"weeks"`
	Projects []string   `json:"projects"`
}

// Course is one entry of a courses payload.
type Course struct {
	Platform   string `json:"platform"`
	CourseName string `json:"courseName"`
	Level      string `json:"level"`
	Link       string `json:"link"`
}

// CourseData is the structured payload behind a courses message.
type CourseData struct {
	Courses []Course `json:"courses"`
}

// Handoff is a suggestion to route the user's next input to another agent
// persona. SuggestedPrompt re-enters Submit as if freshly typed.
type Handoff struct {
	TargetAgentID   string `json:"targetAgentId"`
	TargetAgentName string `json:"targetAgentName"`
	Reason          string `json:"reason"`
	Context         string `json:"context"`
	SuggestedPrompt string `json:"suggestedPrompt"`
}

// HandoffData is the structured payload behind a handoff message.
type HandoffData struct {
	Handoff Handoff `json:"handoff"`
}

// Reply is one successful transport round trip.
type Reply struct {
	Text      string
	Citations []Citation
}

// Conversation is a live dialogue handle against the model transport. A
// handle accumulates turns internally; it is recreated, never mutated,
// when the active session changes.
type Conversation interface {
	Send(ctx context.Context, text string) (*Reply, error)
}

// Transport creates conversation handles seeded by replaying persisted
// history. Implementations must drop handoff-only turns from the replay,
// since those carry no durable conversational content.
type Transport interface {
	NewConversation(history []Message) Conversation
}

// Publisher hands finalized messages and session-list changes to rendering
// collaborators. Implementations must not block the submit path.
type Publisher interface {
	PublishMessage(sessionID string, msg Message)
	PublishSession(event string, s Session)
}

// Transport failure classes surfaced to the controller. ErrQuotaExceeded is
// fatal for the day and is never retried; ErrMaxRetries wraps the last
// retryable failure after backoff is exhausted.
var (
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrMaxRetries    = errors.New("max retries exceeded")
)

var (
	// ErrNotFound reports an unknown session id.
	ErrNotFound = errors.New("session not found")
	// ErrNoSession reports a submission with no active conversation handle.
	ErrNoSession = errors.New("no active session")
	// ErrEmptyInput reports a blank submission.
	ErrEmptyInput = errors.New("empty input")
	// ErrBusy reports an overlapping submission; one is allowed in flight.
	ErrBusy = errors.New("submission already in flight")
	// ErrStaleReply reports a reply that resolved after the session that
	// initiated it was no longer active; the reply is discarded.
	ErrStaleReply = errors.New("reply arrived for an inactive session")
)
