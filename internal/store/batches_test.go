package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/constructlink/constructlink/internal/db"
	"github.com/constructlink/constructlink/internal/model"
)

func seedBatchDeps(t *testing.T, database *sql.DB) (projectID, userID, assetID int64) {
	t.Helper()
	ctx := context.Background()

	project, err := CreateProject(ctx, database, "Test Site", "")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	user, err := CreateUser(ctx, database, "clerk", "hash", model.RoleSiteClerk, project.ID)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	asset, err := CreateAsset(ctx, database, "GEN-001", "Generator", "",
		decimal.NewFromInt(3000), project.ID)
	if err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	return project.ID, user.ID, asset.ID
}

func newTestBatch(projectID, userID, assetID int64) *model.Batch {
	return &model.Batch{
		Reference:          NewBatchReference(time.Now()),
		Status:             model.StatePendingVerification,
		ProjectID:          projectID,
		BorrowerName:       "Foreman Novak",
		ExpectedReturnDate: time.Now().AddDate(0, 0, 7),
		CreatedBy:          userID,
		Items: []model.BatchItem{{
			AssetID:           assetID,
			AssetName:         "Generator",
			AssetTag:          "GEN-001",
			UnitCost:          decimal.NewFromInt(3000),
			QuantityRequested: 2,
		}},
	}
}

func TestCreateAndGetBatch(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	projectID, userID, assetID := seedBatchDeps(t, database)

	entry := &model.AuditEntry{ActorID: userID, Action: model.ActionCreate, Remarks: "initial request"}
	batch, err := CreateBatch(ctx, database, newTestBatch(projectID, userID, assetID), entry)
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	if batch.Version != 1 {
		t.Errorf("version = %d, want 1", batch.Version)
	}
	if batch.ProjectName != "Test Site" {
		t.Errorf("project_name = %q, want 'Test Site'", batch.ProjectName)
	}
	if batch.CreatedByName != "clerk" {
		t.Errorf("created_by_name = %q, want 'clerk'", batch.CreatedByName)
	}
	if len(batch.Items) != 1 || !batch.Items[0].UnitCost.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("unexpected items: %+v", batch.Items)
	}
	if len(batch.AuditTrail) != 1 || batch.AuditTrail[0].Remarks != "initial request" {
		t.Errorf("unexpected audit trail: %+v", batch.AuditTrail)
	}
	if batch.AuditTrail[0].ActorName != "clerk" {
		t.Errorf("actor_name = %q, want 'clerk'", batch.AuditTrail[0].ActorName)
	}

	missing, err := GetBatch(ctx, database, 9999)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing batch")
	}
}

func TestSaveBatchVersioning(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	projectID, userID, assetID := seedBatchDeps(t, database)

	batch, err := CreateBatch(ctx, database, newTestBatch(projectID, userID, assetID),
		&model.AuditEntry{ActorID: userID, Action: model.ActionCreate})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	batch.Status = model.StateApproved
	err = SaveBatch(ctx, database, batch, batch.Version,
		&model.AuditEntry{ActorID: userID, Action: model.ActionVerify})
	if err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	saved, _ := GetBatch(ctx, database, batch.ID)
	if saved.Version != 2 {
		t.Errorf("version = %d, want 2", saved.Version)
	}
	if saved.Status != model.StateApproved {
		t.Errorf("status = %s, want approved", saved.Status)
	}
	if len(saved.AuditTrail) != 2 {
		t.Errorf("expected 2 audit entries, got %d", len(saved.AuditTrail))
	}

	// A writer holding the old version loses.
	err = SaveBatch(ctx, database, batch, batch.Version,
		&model.AuditEntry{ActorID: userID, Action: model.ActionCancel})
	if err != ErrVersionConflict {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}

	// The losing write must leave no trace.
	after, _ := GetBatch(ctx, database, batch.ID)
	if len(after.AuditTrail) != 2 {
		t.Errorf("conflicting save appended audit entries: %d", len(after.AuditTrail))
	}

	// A vanished row is reported distinctly.
	ghost := newTestBatch(projectID, userID, assetID)
	ghost.ID = 9999
	err = SaveBatch(ctx, database, ghost, 1,
		&model.AuditEntry{ActorID: userID, Action: model.ActionCancel})
	if err != ErrBatchNotFound {
		t.Errorf("expected ErrBatchNotFound, got %v", err)
	}
}

func TestSaveBatchPersistsItemState(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	projectID, userID, assetID := seedBatchDeps(t, database)

	batch, _ := CreateBatch(ctx, database, newTestBatch(projectID, userID, assetID),
		&model.AuditEntry{ActorID: userID, Action: model.ActionCreate})

	batch.Status = model.StatePartiallyReturned
	batch.Items[0].QuantityReturned = 1
	batch.Items[0].ConditionOut = model.ConditionGood
	batch.Items[0].ConditionIn = model.ConditionWorn
	if err := SaveBatch(ctx, database, batch, batch.Version,
		&model.AuditEntry{ActorID: userID, Action: model.ActionReturn}); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	saved, _ := GetBatch(ctx, database, batch.ID)
	it := saved.Items[0]
	if it.QuantityReturned != 1 || it.ConditionOut != model.ConditionGood || it.ConditionIn != model.ConditionWorn {
		t.Errorf("item state not persisted: %+v", it)
	}
}

func TestListBatchesFiltered(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	projectID, userID, assetID := seedBatchDeps(t, database)

	other, _ := CreateProject(ctx, database, "Other Site", "")

	first, _ := CreateBatch(ctx, database, newTestBatch(projectID, userID, assetID),
		&model.AuditEntry{ActorID: userID, Action: model.ActionCreate})

	second := newTestBatch(other.ID, userID, assetID)
	second.Status = model.StateApproved
	CreateBatch(ctx, database, second, &model.AuditEntry{ActorID: userID, Action: model.ActionCreate})

	all, err := ListBatches(ctx, database, 0, "")
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 batches, got %d", len(all))
	}
	// Headers only: no items or audit trail loaded.
	if len(all[0].Items) != 0 || len(all[0].AuditTrail) != 0 {
		t.Error("list should not load items or audit trail")
	}

	byProject, _ := ListBatches(ctx, database, projectID, "")
	if len(byProject) != 1 || byProject[0].ID != first.ID {
		t.Errorf("expected only the first batch for project %d, got %v", projectID, byProject)
	}

	byStatus, _ := ListBatches(ctx, database, 0, model.StateApproved)
	if len(byStatus) != 1 || byStatus[0].Status != model.StateApproved {
		t.Errorf("expected 1 approved batch, got %v", byStatus)
	}
}

func TestNewBatchReference(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	ref := NewBatchReference(now)
	if len(ref) != len("WB-2025-XXXXXXXX") {
		t.Errorf("unexpected reference format: %q", ref)
	}
	if ref[:8] != "WB-2025-" {
		t.Errorf("reference %q should start with WB-2025-", ref)
	}
	if NewBatchReference(now) == ref {
		t.Error("references should be unique")
	}
}
