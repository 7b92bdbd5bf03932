package workflow

import (
	"fmt"

	"github.com/constructlink/constructlink/internal/config"
	"github.com/constructlink/constructlink/internal/model"
)

// Actor is the authenticated user requesting an action. Always passed
// explicitly; the policy and machine never consult ambient state.
type Actor struct {
	ID        int64
	Username  string
	Role      model.Role
	ProjectID int64
}

// BatchContext is the slice of batch state the permission policy needs.
type BatchContext struct {
	Status     model.WorkflowState
	IsCritical bool
	CreatedBy  int64
	ProjectID  int64
}

// Policy decides whether an actor may perform an action on a batch. Pure:
// no side effects, no lookups beyond the configured capability table.
type Policy struct {
	perms *config.Permissions
}

// NewPolicy creates a policy over the given capability table.
func NewPolicy(perms *config.Permissions) *Policy {
	return &Policy{perms: perms}
}

// CanPerform reports whether the actor's role permits the action in the given
// batch context. Unknown actions are denied. An error is returned only for
// malformed input (missing role), never for a legitimate unknown actor.
func (p *Policy) CanPerform(actor Actor, action model.Action, bc BatchContext) (bool, error) {
	if actor.Role == "" {
		return false, fmt.Errorf("actor role is required")
	}

	if p.perms.SuperAdmin.Contains(actor.Role) {
		return true, nil
	}

	switch action {
	case model.ActionCreate:
		return p.perms.Sets[model.ActionCreate].Contains(actor.Role), nil

	case model.ActionCreateAnyProject:
		return p.perms.Sets[model.ActionCreateAnyProject].Contains(actor.Role), nil

	case model.ActionUpdate, model.ActionSubmit:
		// Pre-verification housekeeping: any maker may do it, and so may
		// the batch's own creator.
		if actor.ID == bc.CreatedBy {
			return true, nil
		}
		return p.perms.Sets[model.ActionCreate].Contains(actor.Role), nil

	case model.ActionVerify:
		if bc.IsCritical {
			return p.perms.VerifyCritical.Contains(actor.Role), nil
		}
		// Streamlined path for non-critical batches: makers may verify
		// their own requests.
		allowed := p.perms.Sets[model.ActionVerify].Union(p.perms.Sets[model.ActionCreate])
		return allowed.Contains(actor.Role), nil

	case model.ActionApprove:
		// Non-critical batches never require approval. Hard business rule,
		// independent of role.
		if !bc.IsCritical {
			return false, nil
		}
		return p.perms.Sets[model.ActionApprove].Contains(actor.Role), nil

	case model.ActionBorrow:
		return p.perms.Sets[model.ActionBorrow].Contains(actor.Role), nil

	case model.ActionReturn:
		return p.perms.Sets[model.ActionReturn].Contains(actor.Role), nil

	case model.ActionExtend:
		return p.perms.Sets[model.ActionExtend].Contains(actor.Role), nil

	case model.ActionCancel:
		if p.perms.Sets[model.ActionCancel].Contains(actor.Role) {
			return true, nil
		}
		// The original requester may withdraw their own request before
		// anyone has verified it, regardless of role.
		return bc.Status == model.StatePendingVerification && actor.ID == bc.CreatedBy, nil

	case model.ActionView:
		// Viewing is scoped, not blocked: project filtering is applied by
		// the caller via CanViewProject.
		return true, nil

	case model.ActionViewAllProjects:
		return p.perms.Sets[model.ActionViewAllProjects].Contains(actor.Role), nil
	}

	// Unknown action: fail closed.
	return false, nil
}

// CanViewAllProjects reports whether the actor has cross-project visibility.
func (p *Policy) CanViewAllProjects(actor Actor) bool {
	return p.perms.SuperAdmin.Contains(actor.Role) ||
		p.perms.Sets[model.ActionViewAllProjects].Contains(actor.Role)
}

// CanViewProject reports whether the actor may see batches belonging to the
// given project.
func (p *Policy) CanViewProject(actor Actor, projectID int64) bool {
	return p.CanViewAllProjects(actor) || actor.ProjectID == projectID
}
