package workflow

import (
	"strconv"
	"strings"
	"time"

	"github.com/constructlink/constructlink/internal/model"
)

// MinCancelReasonLength is the minimum length of a cancellation reason.
const MinCancelReasonLength = 10

// transitionSources maps each state-changing action to the states it may be
// requested from. The table is the single definition of the legal workflow;
// everything else (guards, targets) hangs off it.
var transitionSources = map[model.Action][]model.WorkflowState{
	model.ActionSubmit:  {model.StateDraft},
	model.ActionUpdate:  {model.StateDraft, model.StatePendingVerification},
	model.ActionVerify:  {model.StatePendingVerification},
	model.ActionApprove: {model.StatePendingApproval},
	model.ActionBorrow:  {model.StateApproved},
	model.ActionReturn:  {model.StateReleased, model.StatePartiallyReturned},
	model.ActionExtend:  {model.StateReleased, model.StatePartiallyReturned},
	model.ActionCancel: {
		model.StateDraft, model.StatePendingVerification, model.StatePendingApproval,
		model.StateApproved, model.StateReleased, model.StatePartiallyReturned,
	},
}

// CanTransition reports whether action may be requested from state.
func CanTransition(from model.WorkflowState, action model.Action) bool {
	for _, s := range transitionSources[action] {
		if s == from {
			return true
		}
	}
	return false
}

// LegalActions enumerates the actions that may be requested from state, in a
// stable order.
func LegalActions(from model.WorkflowState) []model.Action {
	order := []model.Action{
		model.ActionSubmit, model.ActionUpdate, model.ActionVerify, model.ActionApprove,
		model.ActionBorrow, model.ActionReturn, model.ActionExtend, model.ActionCancel,
	}
	var out []model.Action
	for _, a := range order {
		if CanTransition(from, a) {
			out = append(out, a)
		}
	}
	return out
}

// ReleaseChecklist is the set of confirmations the releasing warehouseman
// must affirm before equipment leaves the warehouse. Every field must be
// true; a missing confirmation is a validation error, not a permission error.
type ReleaseChecklist struct {
	IdentityVerified       bool `json:"identity_verified"`
	ItemsInspected         bool `json:"items_inspected"`
	QuantitiesVerified     bool `json:"quantities_verified"`
	FormSigned             bool `json:"form_signed"`
	ReturnDateCommunicated bool `json:"return_date_communicated"`
}

// missing returns field-level messages for unchecked confirmations.
func (c ReleaseChecklist) missing() map[string]string {
	fields := map[string]string{}
	if !c.IdentityVerified {
		fields["identity_verified"] = "borrower identity must be verified"
	}
	if !c.ItemsInspected {
		fields["items_inspected"] = "items must be inspected before release"
	}
	if !c.QuantitiesVerified {
		fields["quantities_verified"] = "quantities must be verified against the request"
	}
	if !c.FormSigned {
		fields["form_signed"] = "the borrowing form must be signed"
	}
	if !c.ReturnDateCommunicated {
		fields["return_date_communicated"] = "the return date must be communicated to the borrower"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Transition payloads.

// SubmitPayload carries optional remarks for the submit transition.
type SubmitPayload struct {
	Remarks string `json:"remarks,omitempty"`
}

// UpdatePayload edits batch metadata before verification.
type UpdatePayload struct {
	BorrowerName       string    `json:"borrower_name"`
	BorrowerContact    string    `json:"borrower_contact,omitempty"`
	ExpectedReturnDate time.Time `json:"expected_return_date"`
	Remarks            string    `json:"remarks,omitempty"`
}

// VerifyPayload carries optional remarks for the verify transition.
type VerifyPayload struct {
	Remarks string `json:"remarks,omitempty"`
}

// ApprovePayload carries optional remarks for the approve transition.
type ApprovePayload struct {
	Remarks string `json:"remarks,omitempty"`
}

// ReleasePayload hands equipment to the borrower.
type ReleasePayload struct {
	Checklist    ReleaseChecklist `json:"checklist"`
	ConditionOut string           `json:"condition_out,omitempty"`
	Remarks      string           `json:"remarks,omitempty"`
}

// ReturnLine records returned quantity for one batch item.
type ReturnLine struct {
	ItemID      int64  `json:"item_id"`
	Quantity    int    `json:"quantity"`
	ConditionIn string `json:"condition_in,omitempty"`
}

// ReturnPayload records a full or partial return.
type ReturnPayload struct {
	Lines   []ReturnLine `json:"lines"`
	Remarks string       `json:"remarks,omitempty"`
}

// ExtendPayload moves the expected return date forward.
type ExtendPayload struct {
	NewReturnDate time.Time `json:"new_return_date"`
	Remarks       string    `json:"remarks,omitempty"`
}

// CancelPayload cancels a batch. Reason is mandatory.
type CancelPayload struct {
	Reason string `json:"reason"`
}

var validConditions = map[string]bool{
	model.ConditionGood:    true,
	model.ConditionWorn:    true,
	model.ConditionDamaged: true,
}

// The apply functions below mutate the batch in memory after legality and
// permission checks have passed. Each returns a validation error (or nil)
// without touching the batch on failure.

func applySubmit(b *model.Batch) *Error {
	b.Status = model.StatePendingVerification
	return nil
}

func applyUpdate(b *model.Batch, p UpdatePayload, now time.Time) *Error {
	fields := map[string]string{}
	if strings.TrimSpace(p.BorrowerName) == "" {
		fields["borrower_name"] = "borrower name is required"
	}
	if p.ExpectedReturnDate.IsZero() {
		fields["expected_return_date"] = "expected return date is required"
	} else if p.ExpectedReturnDate.Before(startOfDay(now)) {
		fields["expected_return_date"] = "expected return date must be today or later"
	}
	if len(fields) > 0 {
		return ValidationError(fields)
	}

	b.BorrowerName = strings.TrimSpace(p.BorrowerName)
	b.BorrowerContact = strings.TrimSpace(p.BorrowerContact)
	b.ExpectedReturnDate = p.ExpectedReturnDate
	return nil
}

// applyVerify branches on criticality: critical batches go to the approval
// queue, non-critical batches skip straight to approved.
func applyVerify(b *model.Batch, isCritical bool) *Error {
	if isCritical {
		b.Status = model.StatePendingApproval
	} else {
		b.Status = model.StateApproved
	}
	return nil
}

func applyApprove(b *model.Batch) *Error {
	b.Status = model.StateApproved
	return nil
}

func applyRelease(b *model.Batch, p ReleasePayload) *Error {
	fields := p.Checklist.missing()
	condition := p.ConditionOut
	if condition == "" {
		condition = model.ConditionGood
	}
	if !validConditions[condition] {
		if fields == nil {
			fields = map[string]string{}
		}
		fields["condition_out"] = "unknown condition tag"
	}
	if len(fields) > 0 {
		return ValidationError(fields)
	}

	for i := range b.Items {
		b.Items[i].ConditionOut = condition
	}
	b.Status = model.StateReleased
	return nil
}

func applyReturn(b *model.Batch, p ReturnPayload) *Error {
	if len(p.Lines) == 0 {
		return ValidationError(map[string]string{"lines": "at least one returned item is required"})
	}

	byID := make(map[int64]*model.BatchItem, len(b.Items))
	for i := range b.Items {
		byID[b.Items[i].ID] = &b.Items[i]
	}

	fields := map[string]string{}
	seen := make(map[int64]bool, len(p.Lines))
	for _, line := range p.Lines {
		key := "item_" + strconv.FormatInt(line.ItemID, 10)
		if seen[line.ItemID] {
			fields[key] = "item listed more than once"
			continue
		}
		seen[line.ItemID] = true

		item, ok := byID[line.ItemID]
		if !ok {
			fields[key] = "item does not belong to this batch"
			continue
		}
		if line.Quantity <= 0 {
			fields[key] = "returned quantity must be positive"
			continue
		}
		if item.QuantityReturned+line.Quantity > item.QuantityRequested {
			fields[key] = "returned quantity exceeds quantity requested"
			continue
		}
		if line.ConditionIn != "" && !validConditions[line.ConditionIn] {
			fields[key] = "unknown condition tag"
		}
	}
	if len(fields) > 0 {
		return ValidationError(fields)
	}

	for _, line := range p.Lines {
		item := byID[line.ItemID]
		item.QuantityReturned += line.Quantity
		condition := line.ConditionIn
		if condition == "" {
			condition = model.ConditionGood
		}
		item.ConditionIn = condition
	}

	if b.TotalReturned() == b.TotalQuantity() {
		b.Status = model.StateReturned
	} else {
		b.Status = model.StatePartiallyReturned
	}
	return nil
}

func applyExtend(b *model.Batch, p ExtendPayload) *Error {
	fields := map[string]string{}
	if p.NewReturnDate.IsZero() {
		fields["new_return_date"] = "new return date is required"
	} else if p.NewReturnDate.Before(b.ExpectedReturnDate) {
		fields["new_return_date"] = "new return date must not be earlier than the current one"
	}
	if len(fields) > 0 {
		return ValidationError(fields)
	}

	// Date-only mutation: the state stays put.
	b.ExpectedReturnDate = p.NewReturnDate
	return nil
}

// applyCancel moves any non-terminal batch to canceled. Returns whether the
// cancellation leaves physical equipment unrecovered.
func applyCancel(b *model.Batch, p CancelPayload) (equipmentOut bool, verr *Error) {
	if len(strings.TrimSpace(p.Reason)) < MinCancelReasonLength {
		return false, ValidationError(map[string]string{
			"reason": "a cancellation reason of at least 10 characters is required",
		})
	}

	equipmentOut = b.Status == model.StateReleased || b.Status == model.StatePartiallyReturned
	b.Status = model.StateCanceled
	return equipmentOut, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
