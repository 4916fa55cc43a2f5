package session

import (
	"time"

	"github.com/yberthe/call-triage/internal/geo"
	"github.com/yberthe/call-triage/internal/guidance"
	"github.com/yberthe/call-triage/internal/triage"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem     Role = "system"
	RoleCaller     Role = "caller"
	RoleDispatcher Role = "dispatcher"
)

// Message is one exchanged utterance in a call.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Context is the full conversational state of one call. It is owned
// exclusively by the Store, keyed by call ID, and lives only for the life of
// the call.
type Context struct {
	CallID    string                `json:"call_id"`
	CreatedAt time.Time             `json:"created_at"`
	Messages  []Message             `json:"messages"`
	Facts     triage.CollectedFacts `json:"facts"`
	Guidance  *guidance.State       `json:"guidance,omitempty"`

	lastSnapshot *TriageSnapshot
}

// NonSystemMessageCount returns the number of caller and dispatcher messages.
func (c *Context) NonSystemMessageCount() int {
	n := 0
	for _, m := range c.Messages {
		if m.Role != RoleSystem {
			n++
		}
	}
	return n
}

// CallerUtterances returns the caller messages in order.
func (c *Context) CallerUtterances() []string {
	var out []string
	for _, m := range c.Messages {
		if m.Role == RoleCaller {
			out = append(out, m.Content)
		}
	}
	return out
}

// TriageSnapshot is the triage view attached to a reply for dispatcher
// consoles. Below the full-summary threshold it carries a cheap partial
// summary so consoles display something without waiting for the expensive
// summarization call.
type TriageSnapshot struct {
	CallID            string        `json:"call_id"`
	Tier              triage.Tier   `json:"tier"`
	Score             int           `json:"score"`
	Summary           string        `json:"summary"`
	Confidence        float64       `json:"confidence"`
	MatchedCriteria   []string      `json:"matched_criteria"`
	IsPartial         bool          `json:"is_partial"`
	Escalate          bool          `json:"escalate_to_physician"`
	NearestFacility   *geo.Facility `json:"nearest_facility,omitempty"`
	ETAMinutes        int           `json:"eta_minutes,omitempty"`
	NormalizedAddress string        `json:"normalized_address,omitempty"`
	GeneratedAt       time.Time     `json:"generated_at"`
}

// Reply is the outward payload returned to the transport layer for one
// inbound utterance.
type Reply struct {
	Text     string          `json:"text"`
	Snapshot *TriageSnapshot `json:"triage,omitempty"`
}
