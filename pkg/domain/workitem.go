package domain

import "fmt"

// OpKind names the remote operation a work item requests.
type OpKind string

const (
	OpCreate  OpKind = "create"
	OpMessage OpKind = "message"
	OpDelete  OpKind = "delete"
)

// WorkItem describes one desired remote operation inside a batch.
// Items are independent; the orchestrator gives no ordering guarantee between
// them. Callers that need "create before message" sequence batches themselves.
type WorkItem struct {
	// Op selects the operation. Required.
	Op OpKind `yaml:"op" json:"op"`

	// Key is an optional caller correlation key. Outcomes always carry the
	// item's index; Key travels along for callers that prefer their own IDs.
	Key string `yaml:"key,omitempty" json:"key,omitempty"`

	// AgentID is required for create items.
	AgentID string `yaml:"agent_id,omitempty" json:"agent_id,omitempty"`

	// SessionID is required for message and delete items.
	SessionID string `yaml:"session_id,omitempty" json:"session_id,omitempty"`

	// State seeds the session for create items.
	State StateMap `yaml:"state,omitempty" json:"state,omitempty"`

	// Text is the message body for message items.
	Text string `yaml:"text,omitempty" json:"text,omitempty"`
}

// Validate checks the fields required by the item's operation.
func (w WorkItem) Validate() error {
	switch w.Op {
	case OpCreate:
		if w.AgentID == "" {
			return Failf(KindInvalidRequest, "validate", "create item requires agent_id")
		}
	case OpMessage:
		if w.SessionID == "" {
			return Failf(KindInvalidRequest, "validate", "message item requires session_id")
		}
		if w.Text == "" {
			return Failf(KindInvalidRequest, "validate", "message item requires text")
		}
	case OpDelete:
		if w.SessionID == "" {
			return Failf(KindInvalidRequest, "validate", "delete item requires session_id")
		}
	default:
		return Failf(KindInvalidRequest, "validate", "unknown op %q", string(w.Op))
	}
	return nil
}

// Outcome is the terminal result of one work item. Exactly one of Value or
// Err is meaningful: Err == nil means success.
type Outcome struct {
	// Index is the item's position in the submitted batch. Outcomes are
	// returned in submission order, never completion order.
	Index int `json:"index"`

	// Key echoes the item's correlation key.
	Key string `json:"key,omitempty"`

	// Op echoes the item's operation.
	Op OpKind `json:"op"`

	// Value holds the success payload: the new session ID for create items,
	// the response text for message items, empty for delete items.
	Value string `json:"value,omitempty"`

	// Err is the classified terminal failure, nil on success.
	Err error `json:"-"`
}

// Failed reports whether the item ended in a failure.
func (o Outcome) Failed() bool { return o.Err != nil }

// FailureKind returns the failure classification, or "" on success.
func (o Outcome) FailureKind() FailureKind { return KindOf(o.Err) }

// Summary aggregates a batch result for reporting. Partial failure is the
// normal case; no failure is ever dropped.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	ByKind    map[FailureKind]int
}

// Summarize folds outcomes into counts.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes), ByKind: make(map[FailureKind]int)}
	for _, o := range outcomes {
		if o.Failed() {
			s.Failed++
			s.ByKind[o.FailureKind()]++
		} else {
			s.Succeeded++
		}
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d ok, %d failed of %d", s.Succeeded, s.Failed, s.Total)
}
