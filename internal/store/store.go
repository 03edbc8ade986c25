// Package store defines the persistence interface for osqr: guidance items,
// the append-only VCR log, and the MRP audit trail. SQLiteStore is the only
// implementation; tests open it against ":memory:" for isolation.
package store

import (
	"context"
	"time"
)

// Store is the persistence interface. Item and reference-doc mutations do not
// write the VCR log themselves; callers record each mutation with a separate
// AppendVCR call.
type Store interface {
	// Guidance items
	ListItems(ctx context.Context, projectID string) ([]GuidanceItemRecord, error)
	GetItem(ctx context.Context, projectID, itemID string) (*GuidanceItemRecord, error)
	UpsertItem(ctx context.Context, item GuidanceItemRecord) error
	DeleteItem(ctx context.Context, projectID, itemID string) error
	IncrementAppliedCount(ctx context.Context, projectID string, itemIDs []string) error

	// Reference docs
	ListReferenceDocs(ctx context.Context, projectID string) ([]ReferenceDocRecord, error)
	UpsertReferenceDoc(ctx context.Context, doc ReferenceDocRecord) error
	DeleteReferenceDoc(ctx context.Context, projectID, docID string) error

	// VCR log (append-only)
	AppendVCR(ctx context.Context, entry VCREntry) error
	ListVCR(ctx context.Context, projectID string, limit, offset int) ([]VCREntry, error)
	ListVCRSince(ctx context.Context, projectID string, version int) ([]VCREntry, error)
	CurrentVersion(ctx context.Context, projectID string) (int, error)

	// Rule proposals (Inference Pipeline output awaiting review)
	ListProposals(ctx context.Context, projectID string) ([]RuleProposalRecord, error)
	UpsertProposal(ctx context.Context, p RuleProposalRecord) error

	// MRP audit log
	LogMRP(ctx context.Context, entry MRPRecord) error
	ListMRPs(ctx context.Context, limit, offset int) ([]MRPRecord, error)
	GetMRP(ctx context.Context, requestID string) (*MRPRecord, error)

	// Log retention
	PruneOldLogs(ctx context.Context, retention time.Duration) (int64, error)

	// Schema lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// GuidanceItemRecord is the persisted form of a MentorScriptItem.
type GuidanceItemRecord struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	Topic         string    `json:"topic"`
	Rule          string    `json:"rule"`
	Scope         string    `json:"scope"` // "now" or "always"
	Priority      int       `json:"priority"`
	Source        string    `json:"source"` // e.g. "user_defined" (guidance default), "inferred"
	AppliedCount  int       `json:"applied_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	LastAppliedAt time.Time `json:"last_applied_at,omitempty"`
	Version       int       `json:"version"` // VCR version this revision was written at
	Deleted       bool      `json:"deleted"`
}

// ReferenceDocRecord is a project reference document attached to guidance.
type ReferenceDocRecord struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// VCREntry is one append-only version-control-resolution record. Replaying
// entries in order from version 1 reconstructs the guidance state at any
// point in history, enabling rollback.
type VCREntry struct {
	ID        int64     `json:"id"`
	ProjectID string    `json:"project_id"`
	Version   int       `json:"version"`
	Action    string    `json:"action"` // "add", "edit", "remove", "reference_doc_add", "reference_doc_remove", "rollback"
	ItemID    string    `json:"item_id"`
	Detail    string    `json:"detail,omitempty"` // JSON snapshot of the item at this version
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// RuleProposalRecord is the persisted form of a RuleProposal awaiting
// acceptance or rejection.
type RuleProposalRecord struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	Topic      string    `json:"topic"`
	Rule       string    `json:"rule"`
	Scope      string    `json:"scope"`
	Confidence float64   `json:"confidence"`
	SourceText string    `json:"source_text"`
	Status     string    `json:"status"` // "pending", "accepted", "rejected"
	CreatedAt  time.Time `json:"created_at"`
}

// MRPRecord is the persisted form of a sealed MergeReadinessPack.
type MRPRecord struct {
	ID               int64     `json:"id"`
	RequestID        string    `json:"request_id"`
	Timestamp        time.Time `json:"timestamp"`
	TaskType         string    `json:"task_type"`
	FinalTier        int       `json:"final_tier"`
	FinalModelID     string    `json:"final_model_id"`
	EscalationCount  int       `json:"escalation_count"`
	TotalLatencyMs   int64     `json:"total_latency_ms"`
	TotalCostUSD     float64   `json:"total_cost_usd"`
	Complete         bool      `json:"complete"`
	Justification    string    `json:"justification"`
	Detail           string    `json:"detail,omitempty"` // full JSON-encoded MRP
}
