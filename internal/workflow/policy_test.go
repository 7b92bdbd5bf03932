package workflow

import (
	"testing"

	"github.com/constructlink/constructlink/internal/config"
	"github.com/constructlink/constructlink/internal/model"
)

func testPolicy() *Policy {
	return NewPolicy(config.DefaultPermissions())
}

func TestCanPerform(t *testing.T) {
	policy := testPolicy()

	tests := []struct {
		name   string
		actor  Actor
		action model.Action
		bc     BatchContext
		want   bool
	}{
		{"warehouseman creates", Actor{ID: 1, Role: model.RoleWarehouseman}, model.ActionCreate, BatchContext{}, true},
		{"site clerk creates", Actor{ID: 1, Role: model.RoleSiteClerk}, model.ActionCreate, BatchContext{}, true},
		{"finance director does not create", Actor{ID: 1, Role: model.RoleFinanceDirector}, model.ActionCreate, BatchContext{}, false},

		{"warehouseman verifies non-critical", Actor{ID: 2, Role: model.RoleWarehouseman},
			model.ActionVerify, BatchContext{Status: model.StatePendingVerification}, true},
		{"warehouseman may not verify critical", Actor{ID: 2, Role: model.RoleWarehouseman},
			model.ActionVerify, BatchContext{Status: model.StatePendingVerification, IsCritical: true}, false},
		{"project manager verifies critical", Actor{ID: 2, Role: model.RoleProjectManager},
			model.ActionVerify, BatchContext{Status: model.StatePendingVerification, IsCritical: true}, true},

		{"asset director approves critical", Actor{ID: 3, Role: model.RoleAssetDirector},
			model.ActionApprove, BatchContext{Status: model.StatePendingApproval, IsCritical: true}, true},
		{"finance director approves critical", Actor{ID: 3, Role: model.RoleFinanceDirector},
			model.ActionApprove, BatchContext{Status: model.StatePendingApproval, IsCritical: true}, true},
		{"warehouseman may not approve", Actor{ID: 3, Role: model.RoleWarehouseman},
			model.ActionApprove, BatchContext{Status: model.StatePendingApproval, IsCritical: true}, false},
		// Non-critical batches never require (or permit) approval, whatever the role.
		{"no approval on non-critical", Actor{ID: 3, Role: model.RoleAssetDirector},
			model.ActionApprove, BatchContext{Status: model.StatePendingApproval}, false},

		{"warehouseman releases", Actor{ID: 4, Role: model.RoleWarehouseman},
			model.ActionBorrow, BatchContext{Status: model.StateApproved}, true},
		{"site clerk may not release", Actor{ID: 4, Role: model.RoleSiteClerk},
			model.ActionBorrow, BatchContext{Status: model.StateApproved}, false},

		{"site clerk records return", Actor{ID: 5, Role: model.RoleSiteClerk},
			model.ActionReturn, BatchContext{Status: model.StateReleased}, true},

		{"project manager cancels", Actor{ID: 6, Role: model.RoleProjectManager},
			model.ActionCancel, BatchContext{Status: model.StateApproved}, true},
		{"creator cancels own before verification", Actor{ID: 7, Role: model.RoleWarehouseman},
			model.ActionCancel, BatchContext{Status: model.StatePendingVerification, CreatedBy: 7}, true},
		{"creator may not cancel own after verification", Actor{ID: 7, Role: model.RoleWarehouseman},
			model.ActionCancel, BatchContext{Status: model.StateApproved, CreatedBy: 7}, false},
		{"non-creator clerk may not cancel", Actor{ID: 8, Role: model.RoleSiteClerk},
			model.ActionCancel, BatchContext{Status: model.StatePendingVerification, CreatedBy: 7}, false},

		{"creator updates own draft", Actor{ID: 9, Role: model.RoleSiteClerk},
			model.ActionUpdate, BatchContext{Status: model.StateDraft, CreatedBy: 9}, true},

		{"anyone views", Actor{ID: 10, Role: model.RoleSiteClerk}, model.ActionView, BatchContext{}, true},

		{"super admin bypasses everything", Actor{ID: 11, Role: model.RoleSystemAdmin},
			model.ActionApprove, BatchContext{Status: model.StatePendingApproval, IsCritical: true}, true},

		// Unknown actions fail-closed.
		{"unknown action denied", Actor{ID: 12, Role: model.RoleAssetDirector},
			model.Action("frobnicate"), BatchContext{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := policy.CanPerform(tt.actor, tt.action, tt.bc)
			if err != nil {
				t.Fatalf("CanPerform: %v", err)
			}
			if got != tt.want {
				t.Errorf("CanPerform(%s, %s) = %v, want %v", tt.actor.Role, tt.action, got, tt.want)
			}
		})
	}
}

func TestCanPerformMissingRole(t *testing.T) {
	policy := testPolicy()

	_, err := policy.CanPerform(Actor{ID: 1}, model.ActionCreate, BatchContext{})
	if err == nil {
		t.Error("expected error for actor without role")
	}
}

func TestProjectScoping(t *testing.T) {
	policy := testPolicy()

	clerk := Actor{ID: 1, Role: model.RoleSiteClerk, ProjectID: 3}
	if policy.CanViewAllProjects(clerk) {
		t.Error("site clerk should not see all projects")
	}
	if !policy.CanViewProject(clerk, 3) {
		t.Error("site clerk should see own project")
	}
	if policy.CanViewProject(clerk, 4) {
		t.Error("site clerk should not see other projects")
	}

	director := Actor{ID: 2, Role: model.RoleAssetDirector, ProjectID: 3}
	if !policy.CanViewAllProjects(director) {
		t.Error("asset director should see all projects")
	}
	if !policy.CanViewProject(director, 4) {
		t.Error("asset director should see any project")
	}

	admin := Actor{ID: 3, Role: model.RoleSystemAdmin}
	if !policy.CanViewAllProjects(admin) {
		t.Error("system admin should see all projects")
	}
}
