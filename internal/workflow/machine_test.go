package workflow

import (
	"testing"
	"time"

	"github.com/constructlink/constructlink/internal/model"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from   model.WorkflowState
		action model.Action
		want   bool
	}{
		{model.StateDraft, model.ActionSubmit, true},
		{model.StateDraft, model.ActionVerify, false},
		{model.StateDraft, model.ActionCancel, true},
		{model.StatePendingVerification, model.ActionVerify, true},
		{model.StatePendingVerification, model.ActionUpdate, true},
		{model.StatePendingVerification, model.ActionApprove, false},
		{model.StatePendingApproval, model.ActionApprove, true},
		{model.StatePendingApproval, model.ActionVerify, false},
		{model.StateApproved, model.ActionBorrow, true},
		{model.StateApproved, model.ActionReturn, false},
		{model.StateReleased, model.ActionReturn, true},
		{model.StateReleased, model.ActionExtend, true},
		{model.StateReleased, model.ActionBorrow, false},
		{model.StatePartiallyReturned, model.ActionReturn, true},
		{model.StatePartiallyReturned, model.ActionExtend, true},
		{model.StatePartiallyReturned, model.ActionCancel, true},
		// Terminal states allow nothing.
		{model.StateReturned, model.ActionReturn, false},
		{model.StateReturned, model.ActionCancel, false},
		{model.StateCanceled, model.ActionCancel, false},
		{model.StateCanceled, model.ActionSubmit, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.action); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.action, got, tt.want)
		}
	}
}

func TestLegalActions(t *testing.T) {
	if actions := LegalActions(model.StateReturned); len(actions) != 0 {
		t.Errorf("expected no legal actions for returned, got %v", actions)
	}
	if actions := LegalActions(model.StateCanceled); len(actions) != 0 {
		t.Errorf("expected no legal actions for canceled, got %v", actions)
	}

	got := LegalActions(model.StateDraft)
	want := map[model.Action]bool{model.ActionSubmit: true, model.ActionUpdate: true, model.ActionCancel: true}
	if len(got) != len(want) {
		t.Fatalf("LegalActions(draft) = %v", got)
	}
	for _, a := range got {
		if !want[a] {
			t.Errorf("unexpected legal action %s for draft", a)
		}
	}
}

func TestReleaseChecklist(t *testing.T) {
	complete := ReleaseChecklist{
		IdentityVerified:       true,
		ItemsInspected:         true,
		QuantitiesVerified:     true,
		FormSigned:             true,
		ReturnDateCommunicated: true,
	}
	if fields := complete.missing(); fields != nil {
		t.Errorf("complete checklist reported missing fields: %v", fields)
	}

	partial := complete
	partial.FormSigned = false
	partial.ItemsInspected = false
	fields := partial.missing()
	if len(fields) != 2 {
		t.Fatalf("expected 2 missing fields, got %v", fields)
	}
	if _, ok := fields["form_signed"]; !ok {
		t.Error("expected form_signed to be reported")
	}
	if _, ok := fields["items_inspected"]; !ok {
		t.Error("expected items_inspected to be reported")
	}
}

func TestApplyRelease(t *testing.T) {
	newBatch := func() *model.Batch {
		return &model.Batch{
			Status: model.StateApproved,
			Items:  []model.BatchItem{{QuantityRequested: 2}, {QuantityRequested: 1}},
		}
	}
	complete := ReleaseChecklist{
		IdentityVerified:       true,
		ItemsInspected:         true,
		QuantitiesVerified:     true,
		FormSigned:             true,
		ReturnDateCommunicated: true,
	}

	b := newBatch()
	if verr := applyRelease(b, ReleasePayload{Checklist: complete}); verr != nil {
		t.Fatalf("applyRelease: %v", verr)
	}
	if b.Status != model.StateReleased {
		t.Errorf("status = %s, want released", b.Status)
	}
	for _, it := range b.Items {
		if it.ConditionOut != model.ConditionGood {
			t.Errorf("condition_out = %q, want good default", it.ConditionOut)
		}
	}

	// Incomplete checklist blocks the release and leaves the batch alone.
	b = newBatch()
	verr := applyRelease(b, ReleasePayload{})
	if verr == nil || verr.Kind != KindValidationFailed {
		t.Fatalf("expected validation failure, got %v", verr)
	}
	if len(verr.Fields) != 5 {
		t.Errorf("expected 5 missing fields, got %v", verr.Fields)
	}
	if b.Status != model.StateApproved {
		t.Errorf("failed release mutated status to %s", b.Status)
	}

	b = newBatch()
	verr = applyRelease(b, ReleasePayload{Checklist: complete, ConditionOut: "pristine"})
	if verr == nil || verr.Fields["condition_out"] == "" {
		t.Errorf("expected unknown condition to be rejected, got %v", verr)
	}
}

func TestApplyReturn(t *testing.T) {
	newBatch := func() *model.Batch {
		return &model.Batch{
			Status: model.StateReleased,
			Items: []model.BatchItem{
				{ID: 1, QuantityRequested: 3},
				{ID: 2, QuantityRequested: 2},
			},
		}
	}

	// Partial return.
	b := newBatch()
	verr := applyReturn(b, ReturnPayload{Lines: []ReturnLine{{ItemID: 1, Quantity: 2}}})
	if verr != nil {
		t.Fatalf("applyReturn: %v", verr)
	}
	if b.Status != model.StatePartiallyReturned {
		t.Errorf("status = %s, want partially_returned", b.Status)
	}
	if b.Items[0].QuantityReturned != 2 {
		t.Errorf("quantity_returned = %d, want 2", b.Items[0].QuantityReturned)
	}

	// Completing the return flips the batch to returned.
	verr = applyReturn(b, ReturnPayload{Lines: []ReturnLine{
		{ItemID: 1, Quantity: 1, ConditionIn: model.ConditionWorn},
		{ItemID: 2, Quantity: 2},
	}})
	if verr != nil {
		t.Fatalf("applyReturn: %v", verr)
	}
	if b.Status != model.StateReturned {
		t.Errorf("status = %s, want returned", b.Status)
	}
	if b.Items[0].ConditionIn != model.ConditionWorn {
		t.Errorf("condition_in = %q, want worn", b.Items[0].ConditionIn)
	}

	tests := []struct {
		name  string
		lines []ReturnLine
	}{
		{"no lines", nil},
		{"foreign item", []ReturnLine{{ItemID: 99, Quantity: 1}}},
		{"duplicate item", []ReturnLine{{ItemID: 1, Quantity: 1}, {ItemID: 1, Quantity: 1}}},
		{"zero quantity", []ReturnLine{{ItemID: 1, Quantity: 0}}},
		{"over-return", []ReturnLine{{ItemID: 2, Quantity: 5}}},
		{"bad condition", []ReturnLine{{ItemID: 1, Quantity: 1, ConditionIn: "broken-ish"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBatch()
			verr := applyReturn(b, ReturnPayload{Lines: tt.lines})
			if verr == nil || verr.Kind != KindValidationFailed {
				t.Errorf("expected validation failure, got %v", verr)
			}
			if b.Items[0].QuantityReturned != 0 || b.Items[1].QuantityReturned != 0 {
				t.Error("failed return mutated item quantities")
			}
		})
	}
}

func TestApplyExtend(t *testing.T) {
	due := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	b := &model.Batch{Status: model.StateReleased, ExpectedReturnDate: due}

	if verr := applyExtend(b, ExtendPayload{NewReturnDate: due.AddDate(0, 0, 7)}); verr != nil {
		t.Fatalf("applyExtend: %v", verr)
	}
	if b.Status != model.StateReleased {
		t.Errorf("extend changed status to %s", b.Status)
	}
	if !b.ExpectedReturnDate.Equal(due.AddDate(0, 0, 7)) {
		t.Errorf("expected_return_date = %v", b.ExpectedReturnDate)
	}

	if verr := applyExtend(b, ExtendPayload{NewReturnDate: due}); verr == nil {
		t.Error("expected rejection of a date earlier than the current one")
	}
	if verr := applyExtend(b, ExtendPayload{}); verr == nil {
		t.Error("expected rejection of a zero date")
	}
}

func TestApplyCancel(t *testing.T) {
	b := &model.Batch{Status: model.StatePendingVerification}
	equipmentOut, verr := applyCancel(b, CancelPayload{Reason: "requested by project manager"})
	if verr != nil {
		t.Fatalf("applyCancel: %v", verr)
	}
	if equipmentOut {
		t.Error("pending batch should not report equipment out")
	}
	if b.Status != model.StateCanceled {
		t.Errorf("status = %s, want canceled", b.Status)
	}

	// Canceling with equipment in the field is allowed but flagged.
	b = &model.Batch{Status: model.StateReleased}
	equipmentOut, verr = applyCancel(b, CancelPayload{Reason: "site shut down unexpectedly"})
	if verr != nil {
		t.Fatalf("applyCancel: %v", verr)
	}
	if !equipmentOut {
		t.Error("released batch should report equipment out")
	}

	// Reason is mandatory and must carry some substance.
	for _, reason := range []string{"", "too short", "         padded      "} {
		b := &model.Batch{Status: model.StateDraft}
		_, verr := applyCancel(b, CancelPayload{Reason: reason})
		if verr == nil || verr.Kind != KindValidationFailed {
			t.Errorf("expected validation failure for reason %q, got %v", reason, verr)
		}
		if b.Status != model.StateDraft {
			t.Errorf("failed cancel mutated status to %s", b.Status)
		}
	}
}
