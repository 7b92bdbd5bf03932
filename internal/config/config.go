// Package config holds the permission table and runtime knobs for the
// borrowing workflow. Defaults match the standard site setup; deployments
// override via environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/constructlink/constructlink/internal/model"
)

// RoleSet is a set of roles allowed to perform some action.
type RoleSet map[model.Role]bool

// Contains reports whether the set includes r.
func (s RoleSet) Contains(r model.Role) bool { return s[r] }

// Union returns a new set with the members of both sets.
func (s RoleSet) Union(other RoleSet) RoleSet {
	out := make(RoleSet, len(s)+len(other))
	for r := range s {
		out[r] = true
	}
	for r := range other {
		out[r] = true
	}
	return out
}

func roles(rs ...model.Role) RoleSet {
	s := make(RoleSet, len(rs))
	for _, r := range rs {
		s[r] = true
	}
	return s
}

// Permissions is the role-to-capability mapping consulted by the workflow
// permission policy. All lookups fail closed: an action absent from Sets is
// denied for every role except super admins.
type Permissions struct {
	// SuperAdmin roles bypass every check.
	SuperAdmin RoleSet
	// Sets maps each workflow action to the roles allowed to perform it.
	Sets map[model.Action]RoleSet
	// VerifyCritical is the escalated verification set for high-value
	// batches, kept separate from the streamlined Verify set.
	VerifyCritical RoleSet
}

// DefaultPermissions returns the standard capability table.
func DefaultPermissions() *Permissions {
	return &Permissions{
		SuperAdmin: roles(model.RoleSystemAdmin),
		Sets: map[model.Action]RoleSet{
			model.ActionCreate: roles(model.RoleWarehouseman, model.RoleSiteClerk,
				model.RoleProjectManager, model.RoleAssetDirector),
			model.ActionCreateAnyProject: roles(model.RoleAssetDirector),
			model.ActionVerify:           roles(model.RoleSiteClerk, model.RoleProjectManager),
			model.ActionApprove:          roles(model.RoleAssetDirector, model.RoleFinanceDirector),
			model.ActionBorrow:           roles(model.RoleWarehouseman),
			model.ActionReturn:           roles(model.RoleWarehouseman, model.RoleSiteClerk),
			model.ActionExtend:           roles(model.RoleProjectManager, model.RoleWarehouseman),
			model.ActionCancel:           roles(model.RoleProjectManager, model.RoleAssetDirector),
			model.ActionViewAllProjects: roles(model.RoleAssetDirector, model.RoleFinanceDirector,
				model.RoleProcurementOfficer),
		},
		VerifyCritical: roles(model.RoleProjectManager, model.RoleAssetDirector),
	}
}

// Config carries runtime settings for the server.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string
	// DBPath is the SQLite database file path.
	DBPath string
	// LogPath optionally tees logs to a file.
	LogPath string
	// CriticalThreshold is the acquisition cost above which an item makes
	// its batch critical, requiring the full verify-then-approve chain.
	CriticalThreshold decimal.Decimal
	// SubmitOnCreate makes newly created batches land directly in
	// pending_verification instead of draft.
	SubmitOnCreate bool
	// Permissions is the capability table.
	Permissions *Permissions
}

// DefaultCriticalThreshold is the standard high-value cutoff.
var DefaultCriticalThreshold = decimal.NewFromInt(50000)

// Load builds a Config from environment variables, falling back to defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:              getEnvDefault("CL_ADDR", ":8080"),
		DBPath:            getEnvDefault("CL_DB", "constructlink.sqlite3"),
		LogPath:           os.Getenv("CL_LOG"),
		CriticalThreshold: DefaultCriticalThreshold,
		SubmitOnCreate:    true,
		Permissions:       DefaultPermissions(),
	}

	if v := os.Getenv("CL_CRITICAL_THRESHOLD"); v != "" {
		threshold, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("CL_CRITICAL_THRESHOLD: %w", err)
		}
		if threshold.IsNegative() {
			return nil, fmt.Errorf("CL_CRITICAL_THRESHOLD: must not be negative")
		}
		cfg.CriticalThreshold = threshold
	}

	if v := os.Getenv("CL_SUBMIT_ON_CREATE"); v != "" {
		submit, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("CL_SUBMIT_ON_CREATE: %w", err)
		}
		cfg.SubmitOnCreate = submit
	}

	return cfg, nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
