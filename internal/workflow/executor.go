package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/constructlink/constructlink/internal/config"
	"github.com/constructlink/constructlink/internal/model"
	"github.com/constructlink/constructlink/internal/store"
)

// Executor is the orchestration boundary for batch transitions: the only
// component that both decides and persists. Every successful call writes the
// new batch state and exactly one audit entry in one transaction; every
// failure path writes nothing.
type Executor struct {
	db        *sql.DB
	policy    *Policy
	threshold decimal.Decimal
	// submitOnCreate makes new batches land directly in
	// pending_verification instead of draft.
	submitOnCreate bool
	// now is swappable for tests.
	now func() time.Time
}

// NewExecutor creates an executor over the given database and configuration.
func NewExecutor(db *sql.DB, cfg *config.Config) *Executor {
	return &Executor{
		db:             db,
		policy:         NewPolicy(cfg.Permissions),
		threshold:      cfg.CriticalThreshold,
		submitOnCreate: cfg.SubmitOnCreate,
		now:            time.Now,
	}
}

// Policy exposes the executor's permission policy for read-side scoping.
func (e *Executor) Policy() *Policy { return e.policy }

// CreateItemInput is one requested asset line.
type CreateItemInput struct {
	AssetID  int64 `json:"asset_id"`
	Quantity int   `json:"quantity"`
}

// CreateBatchInput is the payload for creating a borrowing batch.
type CreateBatchInput struct {
	ProjectID          int64             `json:"project_id,omitempty"`
	BorrowerName       string            `json:"borrower_name"`
	BorrowerContact    string            `json:"borrower_contact,omitempty"`
	ExpectedReturnDate time.Time         `json:"expected_return_date"`
	Items              []CreateItemInput `json:"items"`
	Remarks            string            `json:"remarks,omitempty"`
}

// CreateBatch validates and persists a new batch for the actor. The batch
// lands in draft, or directly in pending_verification when configured.
func (e *Executor) CreateBatch(ctx context.Context, actor Actor, input CreateBatchInput) (*model.Batch, error) {
	ok, err := e.policy.CanPerform(actor, model.ActionCreate, BatchContext{})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, PermissionDenied("role %s may not create borrowing batches", actor.Role)
	}

	projectID := input.ProjectID
	if projectID == 0 {
		projectID = actor.ProjectID
	}
	if projectID != actor.ProjectID {
		ok, err := e.policy.CanPerform(actor, model.ActionCreateAnyProject, BatchContext{})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, PermissionDenied("role %s may not create batches for other projects", actor.Role)
		}
	}

	now := e.now()
	fields := map[string]string{}
	if strings.TrimSpace(input.BorrowerName) == "" {
		fields["borrower_name"] = "borrower name is required"
	}
	if input.ExpectedReturnDate.IsZero() {
		fields["expected_return_date"] = "expected return date is required"
	} else if input.ExpectedReturnDate.Before(startOfDay(now)) {
		fields["expected_return_date"] = "expected return date must be today or later"
	}
	if projectID <= 0 {
		fields["project_id"] = "a project is required"
	}
	if len(input.Items) == 0 {
		fields["items"] = "at least one item is required"
	}
	if len(fields) > 0 {
		return nil, ValidationError(fields)
	}

	project, err := store.GetProject(ctx, e.db, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil || project.DeletedAt != nil {
		return nil, NotFound("project %d not found", projectID)
	}

	// Resolve assets, denormalizing display fields and the unit cost as of
	// creation time.
	items := make([]model.BatchItem, 0, len(input.Items))
	for i, in := range input.Items {
		key := "items_" + strconv.Itoa(i)
		if in.Quantity <= 0 {
			fields[key] = "quantity must be positive"
			continue
		}
		asset, err := store.GetAsset(ctx, e.db, in.AssetID)
		if err != nil {
			return nil, err
		}
		if asset == nil || asset.DeletedAt != nil {
			fields[key] = "asset not found"
			continue
		}
		if asset.Status == model.AssetStatusRetired {
			fields[key] = "asset is retired"
			continue
		}
		items = append(items, model.BatchItem{
			AssetID:           asset.ID,
			AssetName:         asset.Name,
			AssetTag:          asset.Tag,
			UnitCost:          asset.AcquisitionCost,
			QuantityRequested: in.Quantity,
		})
	}
	if len(fields) > 0 {
		return nil, ValidationError(fields)
	}

	status := model.StateDraft
	if e.submitOnCreate {
		status = model.StatePendingVerification
	}

	batch := &model.Batch{
		Reference:          store.NewBatchReference(now),
		Status:             status,
		ProjectID:          projectID,
		BorrowerName:       strings.TrimSpace(input.BorrowerName),
		BorrowerContact:    strings.TrimSpace(input.BorrowerContact),
		ExpectedReturnDate: input.ExpectedReturnDate,
		CreatedBy:          actor.ID,
		Items:              items,
	}
	if err := batch.CheckInvariants(); err != nil {
		return nil, err
	}

	entry := &model.AuditEntry{
		ActorID: actor.ID,
		Action:  model.ActionCreate,
		Remarks: strings.TrimSpace(input.Remarks),
	}

	created, err := store.CreateBatch(ctx, e.db, batch, entry)
	if err != nil {
		return nil, fmt.Errorf("persisting batch: %w", err)
	}

	slog.Info("batch created", "reference", created.Reference, "project", created.ProjectID,
		"items", created.TotalItems(), "critical", created.IsCritical(e.threshold),
		"actor", actor.Username)
	return created, nil
}

// Execute runs one workflow transition end to end: load, derive criticality,
// check permission, check legality, validate the payload, apply, persist with
// the audit entry under an optimistic version check.
func (e *Executor) Execute(ctx context.Context, batchID int64, action model.Action, actor Actor, payload any) (*model.Batch, error) {
	batch, err := store.GetBatch(ctx, e.db, batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, NotFound("batch %d not found", batchID)
	}

	bc := BatchContext{
		Status:     batch.Status,
		IsCritical: batch.IsCritical(e.threshold),
		CreatedBy:  batch.CreatedBy,
		ProjectID:  batch.ProjectID,
	}

	ok, err := e.policy.CanPerform(actor, action, bc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, PermissionDenied("role %s may not %s this batch", actor.Role, action)
	}

	if !CanTransition(batch.Status, action) {
		return nil, InvalidTransitionError(batch.Status, action)
	}

	remarks, verr := e.apply(batch, action, bc, payload, actor)
	if verr != nil {
		return nil, verr
	}
	if err := batch.CheckInvariants(); err != nil {
		return nil, err
	}

	entry := &model.AuditEntry{
		ActorID: actor.ID,
		Action:  action,
		Remarks: remarks,
	}

	err = store.SaveBatch(ctx, e.db, batch, batch.Version, entry)
	if errors.Is(err, store.ErrVersionConflict) {
		return nil, Conflict("batch %s was modified concurrently, reload and retry", batch.Reference)
	}
	if errors.Is(err, store.ErrBatchNotFound) {
		return nil, NotFound("batch %d not found", batchID)
	}
	if err != nil {
		return nil, fmt.Errorf("persisting batch transition: %w", err)
	}

	updated, err := store.GetBatch(ctx, e.db, batchID)
	if err != nil {
		return nil, err
	}

	slog.Info("batch transition applied", "reference", batch.Reference, "action", action,
		"status", updated.Status, "actor", actor.Username)
	return updated, nil
}

// apply dispatches to the per-action mutation and returns the audit remarks.
// Payload type mismatches are infrastructure bugs, reported as plain errors
// via ValidationError only where the caller controls the content.
func (e *Executor) apply(batch *model.Batch, action model.Action, bc BatchContext, payload any, actor Actor) (string, *Error) {
	switch action {
	case model.ActionSubmit:
		p, _ := payload.(SubmitPayload)
		if verr := applySubmit(batch); verr != nil {
			return "", verr
		}
		return strings.TrimSpace(p.Remarks), nil

	case model.ActionUpdate:
		p, ok := payload.(UpdatePayload)
		if !ok {
			return "", ValidationError(map[string]string{"payload": "update payload required"})
		}
		if verr := applyUpdate(batch, p, e.now()); verr != nil {
			return "", verr
		}
		return strings.TrimSpace(p.Remarks), nil

	case model.ActionVerify:
		p, _ := payload.(VerifyPayload)
		if verr := applyVerify(batch, bc.IsCritical); verr != nil {
			return "", verr
		}
		return strings.TrimSpace(p.Remarks), nil

	case model.ActionApprove:
		p, _ := payload.(ApprovePayload)
		if verr := applyApprove(batch); verr != nil {
			return "", verr
		}
		return strings.TrimSpace(p.Remarks), nil

	case model.ActionBorrow:
		p, ok := payload.(ReleasePayload)
		if !ok {
			return "", ValidationError(map[string]string{"payload": "release payload required"})
		}
		if verr := applyRelease(batch, p); verr != nil {
			return "", verr
		}
		return strings.TrimSpace(p.Remarks), nil

	case model.ActionReturn:
		p, ok := payload.(ReturnPayload)
		if !ok {
			return "", ValidationError(map[string]string{"payload": "return payload required"})
		}
		if verr := applyReturn(batch, p); verr != nil {
			return "", verr
		}
		return strings.TrimSpace(p.Remarks), nil

	case model.ActionExtend:
		p, ok := payload.(ExtendPayload)
		if !ok {
			return "", ValidationError(map[string]string{"payload": "extend payload required"})
		}
		previous := batch.ExpectedReturnDate
		if verr := applyExtend(batch, p); verr != nil {
			return "", verr
		}
		remarks := fmt.Sprintf("return date extended from %s to %s",
			previous.Format("2006-01-02"), p.NewReturnDate.Format("2006-01-02"))
		if r := strings.TrimSpace(p.Remarks); r != "" {
			remarks += ": " + r
		}
		return remarks, nil

	case model.ActionCancel:
		p, ok := payload.(CancelPayload)
		if !ok {
			return "", ValidationError(map[string]string{"reason": "a cancellation reason is required"})
		}
		equipmentOut, verr := applyCancel(batch, p)
		if verr != nil {
			return "", verr
		}
		remarks := strings.TrimSpace(p.Reason)
		if equipmentOut {
			// The transition still happens; the flag records that physical
			// recovery is a manual follow-up.
			remarks += " [warning: released equipment not recovered]"
			slog.Warn("batch canceled with equipment outstanding",
				"reference", batch.Reference, "still_out", batch.TotalStillOut(),
				"actor", actor.Username)
		}
		return remarks, nil
	}

	return "", InvalidTransitionError(batch.Status, action)
}

// GetBatchView returns the batch snapshot for the actor, applying project
// scoping. A batch outside the actor's visibility is reported as not found.
func (e *Executor) GetBatchView(ctx context.Context, actor Actor, batchID int64) (*BatchView, error) {
	batch, err := store.GetBatch(ctx, e.db, batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil || !e.policy.CanViewProject(actor, batch.ProjectID) {
		return nil, NotFound("batch %d not found", batchID)
	}
	return e.view(batch), nil
}

// ListBatches returns batch headers visible to the actor, optionally filtered
// by status.
func (e *Executor) ListBatches(ctx context.Context, actor Actor, status model.WorkflowState) ([]BatchView, error) {
	projectID := actor.ProjectID
	if e.policy.CanViewAllProjects(actor) {
		projectID = 0
	}

	batches, err := store.ListBatches(ctx, e.db, projectID, status)
	if err != nil {
		return nil, err
	}

	views := make([]BatchView, 0, len(batches))
	for i := range batches {
		views = append(views, *e.view(&batches[i]))
	}
	return views, nil
}

// BatchView is the read projection of a batch: the snapshot plus derived
// fields.
type BatchView struct {
	model.Batch
	DisplayStatus model.WorkflowState `json:"display_status"`
	IsCritical    bool                `json:"is_critical"`
	IsOverdue     bool                `json:"is_overdue"`
	TotalQuantity int                 `json:"total_quantity"`
	TotalStillOut int                 `json:"total_still_out"`
	LegalActions  []model.Action      `json:"legal_actions,omitempty"`
}

func (e *Executor) view(b *model.Batch) *BatchView {
	now := e.now()
	return &BatchView{
		Batch:         *b,
		DisplayStatus: b.DisplayStatus(now),
		IsCritical:    b.IsCritical(e.threshold),
		IsOverdue:     b.IsOverdue(now),
		TotalQuantity: b.TotalQuantity(),
		TotalStillOut: b.TotalStillOut(),
		LegalActions:  LegalActions(b.Status),
	}
}
