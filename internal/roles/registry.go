package roles

import (
	"context"
	"errors"
	"time"

	"github.com/antgonto/smart-contract/internal/db/models"
)

var (
	// ErrForbidden means the caller does not hold the Admin role.
	ErrForbidden = errors.New("caller is not an admin")
	// ErrRoleNotGrantable covers the Admin role: admins are provisioned
	// out-of-band at startup, never through the grant endpoint.
	ErrRoleNotGrantable = errors.New("role cannot be granted through the registry")
)

type Action string

const (
	ActionGrant  Action = "grant"
	ActionRevoke Action = "revoke"
)

// Receipt records a grant or revoke, including no-ops. TxHash is set when the
// registry anchors role changes to a ledger.
type Receipt struct {
	ID        string        `json:"id"`
	Actor     string        `json:"actor"`
	Target    string        `json:"target"`
	Role      models.Role   `json:"role"`
	Action    Action        `json:"action"`
	NoOp      bool          `json:"no_op"`
	TxHash    string        `json:"tx_hash,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Registry maps addresses to role sets. Grant and Revoke are idempotent and
// admin-gated; RolesOf never fails and reports unknown addresses as an empty
// set. Implementations must not persist empty role sets.
type Registry interface {
	Grant(ctx context.Context, admin, target string, role models.Role) (*Receipt, error)
	Revoke(ctx context.Context, admin, target string, role models.Role) (*Receipt, error)
	RolesOf(ctx context.Context, address string) ([]models.Role, error)
	// Seed installs a role directly, bypassing the admin gate. Used only by
	// startup provisioning.
	Seed(ctx context.Context, address string, role models.Role) error
}

func grantable(role models.Role) bool {
	return role == models.RoleIssuer || role == models.RoleStudent
}

func hasRole(roles []models.Role, role models.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
