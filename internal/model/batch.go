package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// WorkflowState is the lifecycle state of a borrowing batch. Only the
// workflow executor moves a batch between states.
type WorkflowState string

// Workflow states. StateOverdue is derived for display and never persisted.
const (
	StateDraft               WorkflowState = "draft"
	StatePendingVerification WorkflowState = "pending_verification"
	StatePendingApproval     WorkflowState = "pending_approval"
	StateApproved            WorkflowState = "approved"
	StateReleased            WorkflowState = "released"
	StatePartiallyReturned   WorkflowState = "partially_returned"
	StateReturned            WorkflowState = "returned"
	StateCanceled            WorkflowState = "canceled"
	StateOverdue             WorkflowState = "overdue"
)

// Terminal reports whether s is a terminal state. Terminal batches are kept
// forever for audit purposes, never deleted.
func (s WorkflowState) Terminal() bool {
	return s == StateReturned || s == StateCanceled
}

// Item condition tags, recorded at release and return.
const (
	ConditionGood    = "good"
	ConditionWorn    = "worn"
	ConditionDamaged = "damaged"
)

// Batch is a grouped set of assets borrowed together. Status and item
// quantities are mutated only through the workflow executor.
type Batch struct {
	ID                 int64         `json:"id"`
	Reference          string        `json:"reference"`
	Status             WorkflowState `json:"status"`
	ProjectID          int64         `json:"project_id"`
	BorrowerName       string        `json:"borrower_name"`
	BorrowerContact    string        `json:"borrower_contact,omitempty"`
	ExpectedReturnDate time.Time     `json:"expected_return_date"`
	CreatedBy          int64         `json:"created_by"`
	Version            int64         `json:"version"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`

	Items      []BatchItem  `json:"items"`
	AuditTrail []AuditEntry `json:"audit_trail,omitempty"`

	// Joined fields (not always populated).
	ProjectName   string `json:"project_name,omitempty"`
	CreatedByName string `json:"created_by_name,omitempty"`
}

// BatchItem is one asset line in a batch. The asset itself is owned by the
// assets table; the batch keeps denormalized display fields and the unit cost
// as they were at creation time.
type BatchItem struct {
	ID                int64           `json:"id"`
	BatchID           int64           `json:"batch_id"`
	AssetID           int64           `json:"asset_id"`
	AssetName         string          `json:"asset_name"`
	AssetTag          string          `json:"asset_tag"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	QuantityRequested int             `json:"quantity_requested"`
	QuantityReturned  int             `json:"quantity_returned"`
	ConditionOut      string          `json:"condition_out,omitempty"`
	ConditionIn       string          `json:"condition_in,omitempty"`
}

// AuditEntry records one applied workflow action. Entries are append-only and
// are the source of truth for what happened to a batch.
type AuditEntry struct {
	ID        int64     `json:"id"`
	BatchID   int64     `json:"batch_id"`
	ActorID   int64     `json:"actor_id"`
	ActorName string    `json:"actor_name,omitempty"`
	Action    Action    `json:"action"`
	Remarks   string    `json:"remarks,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsCritical reports whether any item's unit cost exceeds the high-value
// threshold. Derived on read, never stored.
func (b *Batch) IsCritical(threshold decimal.Decimal) bool {
	for _, it := range b.Items {
		if it.UnitCost.GreaterThan(threshold) {
			return true
		}
	}
	return false
}

// TotalItems returns the number of item lines in the batch.
func (b *Batch) TotalItems() int { return len(b.Items) }

// TotalQuantity returns the sum of requested quantities.
func (b *Batch) TotalQuantity() int {
	var total int
	for _, it := range b.Items {
		total += it.QuantityRequested
	}
	return total
}

// TotalReturned returns the sum of returned quantities.
func (b *Batch) TotalReturned() int {
	var total int
	for _, it := range b.Items {
		total += it.QuantityReturned
	}
	return total
}

// TotalStillOut returns the quantity released but not yet returned.
func (b *Batch) TotalStillOut() int {
	return b.TotalQuantity() - b.TotalReturned()
}

// IsOverdue reports whether released equipment is past its expected return
// date as of now.
func (b *Batch) IsOverdue(now time.Time) bool {
	if b.Status != StateReleased && b.Status != StatePartiallyReturned {
		return false
	}
	return b.ExpectedReturnDate.Before(now)
}

// DisplayStatus returns the status with the derived overdue state applied.
func (b *Batch) DisplayStatus(now time.Time) WorkflowState {
	if b.IsOverdue(now) {
		return StateOverdue
	}
	return b.Status
}

// CheckInvariants verifies item-level invariants that must hold in every
// state, independent of the workflow.
func (b *Batch) CheckInvariants() error {
	for _, it := range b.Items {
		if it.QuantityRequested <= 0 {
			return &InvariantError{Field: "quantity_requested", AssetTag: it.AssetTag,
				Message: "must be positive"}
		}
		if it.QuantityReturned < 0 {
			return &InvariantError{Field: "quantity_returned", AssetTag: it.AssetTag,
				Message: "must not be negative"}
		}
		if it.QuantityReturned > it.QuantityRequested {
			return &InvariantError{Field: "quantity_returned", AssetTag: it.AssetTag,
				Message: "exceeds quantity requested"}
		}
	}
	return nil
}

// InvariantError reports a violated item-level invariant.
type InvariantError struct {
	Field    string
	AssetTag string
	Message  string
}

func (e *InvariantError) Error() string {
	return "batch invariant violated: " + e.Field + " (" + e.AssetTag + "): " + e.Message
}
