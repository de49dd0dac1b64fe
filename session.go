package codex

import "context"

// Session is the persisted shape of a conversation: its identity, model,
// policy, and the full ordered message history.
type Session struct {
	ID              string         `json:"id"`
	Model           string         `json:"model"`
	CreatedAt       string         `json:"created_at"` // RFC3339
	ApprovalPolicy  ApprovalPolicy `json:"approval_policy"`
	Items           []ChatMessage  `json:"items"`
}

// RolloutWriter is the external collaborator that persists a Session after
// every appended message (§ Lifecycle & ownership). The agent loop calls
// it synchronously but does not depend on its implementation — a no-op
// writer is valid for callers that don't need persistence.
type RolloutWriter interface {
	// AppendMessage persists a single newly appended message for sessionID.
	AppendMessage(ctx context.Context, sessionID string, msg ChatMessage) error
	// SaveSession persists the full session state, e.g. after its policy
	// or model changes.
	SaveSession(ctx context.Context, sess Session) error
}

// NopRolloutWriter discards everything; useful for tests and one-shot runs
// that don't need a durable rollout.
type NopRolloutWriter struct{}

func (NopRolloutWriter) AppendMessage(ctx context.Context, sessionID string, msg ChatMessage) error {
	return nil
}

func (NopRolloutWriter) SaveSession(ctx context.Context, sess Session) error { return nil }
