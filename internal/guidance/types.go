// Package guidance implements the mentorship/guidance engine: a versioned,
// per-project store of rule items and reference docs with full rollback via
// an append-only VCR log, an inference pipeline that proposes new rules from
// user corrections, a context selector that fits the highest-scoring items
// into a token budget, and an arbitrator that merges guidance layers under a
// strict precedence.
package guidance

import "time"

// MentorScriptItem is one guidance rule attached to a project.
type MentorScriptItem struct {
	ID                  string
	Rule                string
	Source              string // "user_defined", "inferred"
	OriginalCorrection  string
	PromotedFromSession string
	CreatedAt           time.Time
	AppliedCount        int
	Priority            int // clamped to [1,10]
}

// ReferenceDoc is a project reference document attached to guidance.
type ReferenceDoc struct {
	Path    string
	Context string
}

// ProjectGuidance is the current, versioned state of one project's guidance.
type ProjectGuidance struct {
	ProjectID     string
	Version       int
	LastUpdated   time.Time
	MentorScripts []MentorScriptItem
	ReferenceDocs []ReferenceDoc
}

// VCR is one entry in a project's append-only version-control-resolution
// log: the source of truth for rollback.
type VCR struct {
	Version   int
	Timestamp time.Time
	Action    string // "add", "edit", "remove", "reference_doc_add", "reference_doc_remove", "rollback"
	ItemID    string
	Previous  *MentorScriptItem
	New       *MentorScriptItem
}

// ProposalStatus is the closed set of RuleProposal lifecycle states.
type ProposalStatus string

const (
	ProposalPending   ProposalStatus = "pending"
	ProposalEdited    ProposalStatus = "edited"
	ProposalAccepted  ProposalStatus = "accepted"
	ProposalDismissed ProposalStatus = "dismissed"
)

// RuleProposal is a candidate rule emitted by the Inference Pipeline,
// awaiting review.
type RuleProposal struct {
	ID                 string
	ProposedRule       string
	OriginalCorrection string
	SessionID          string
	Confidence         float64
	Status             ProposalStatus
	Timestamp          time.Time
}
