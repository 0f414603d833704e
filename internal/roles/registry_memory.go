package roles

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/antgonto/smart-contract/internal/db/models"
	"github.com/antgonto/smart-contract/internal/ledger"
)

// MemoryRegistry keeps role assignments in a mutex-guarded map. When a ledger
// is attached, effective grants and revokes are anchored as transactions and
// the receipt carries the resulting hash.
type MemoryRegistry struct {
	assignments map[string]map[models.Role]struct{}
	chain       ledger.Ledger
	mutex       sync.RWMutex
	logger      *zap.Logger
}

func NewMemoryRegistry(chain ledger.Ledger, logger *zap.Logger) *MemoryRegistry {
	return &MemoryRegistry{
		assignments: make(map[string]map[models.Role]struct{}),
		chain:       chain,
		logger:      logger.With(zap.String("service", "role_registry")),
	}
}

func (r *MemoryRegistry) Grant(ctx context.Context, admin, target string, role models.Role) (*Receipt, error) {
	if err := r.requireAdmin(admin); err != nil {
		return nil, err
	}
	if !grantable(role) {
		return nil, ErrRoleNotGrantable
	}

	r.mutex.Lock()
	held := r.assignments[target]
	_, already := held[role]
	if !already {
		if held == nil {
			held = make(map[models.Role]struct{})
			r.assignments[target] = held
		}
		held[role] = struct{}{}
	}
	r.mutex.Unlock()

	receipt := r.newReceipt(ctx, admin, target, role, ActionGrant, already)
	if !already {
		r.logger.Info("Role granted",
			zap.String("target", target),
			zap.String("role", string(role)),
			zap.String("admin", admin))
	}
	return receipt, nil
}

func (r *MemoryRegistry) Revoke(ctx context.Context, admin, target string, role models.Role) (*Receipt, error) {
	if err := r.requireAdmin(admin); err != nil {
		return nil, err
	}
	if !grantable(role) {
		return nil, ErrRoleNotGrantable
	}

	r.mutex.Lock()
	held := r.assignments[target]
	_, holds := held[role]
	if holds {
		delete(held, role)
		if len(held) == 0 {
			delete(r.assignments, target)
		}
	}
	r.mutex.Unlock()

	receipt := r.newReceipt(ctx, admin, target, role, ActionRevoke, !holds)
	if holds {
		r.logger.Info("Role revoked",
			zap.String("target", target),
			zap.String("role", string(role)),
			zap.String("admin", admin))
	}
	return receipt, nil
}

func (r *MemoryRegistry) RolesOf(ctx context.Context, address string) ([]models.Role, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	held := r.assignments[address]
	out := make([]models.Role, 0, len(held))
	for _, role := range []models.Role{models.RoleAdmin, models.RoleIssuer, models.RoleStudent} {
		if _, ok := held[role]; ok {
			out = append(out, role)
		}
	}
	return out, nil
}

func (r *MemoryRegistry) Seed(ctx context.Context, address string, role models.Role) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	held := r.assignments[address]
	if held == nil {
		held = make(map[models.Role]struct{})
		r.assignments[address] = held
	}
	held[role] = struct{}{}
	return nil
}

func (r *MemoryRegistry) requireAdmin(admin string) error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if _, ok := r.assignments[admin][models.RoleAdmin]; !ok {
		return ErrForbidden
	}
	return nil
}

func (r *MemoryRegistry) newReceipt(ctx context.Context, actor, target string, role models.Role, action Action, noop bool) *Receipt {
	receipt := &Receipt{
		ID:        uuid.New().String(),
		Actor:     actor,
		Target:    target,
		Role:      role,
		Action:    action,
		NoOp:      noop,
		Timestamp: time.Now(),
	}

	if r.chain != nil && !noop {
		payload := []byte(fmt.Sprintf("%s|%s|%s|%s", action, actor, target, role))
		if tx, err := r.chain.Submit(ctx, payload); err != nil {
			r.logger.Warn("Failed to anchor role change", zap.Error(err))
		} else {
			receipt.TxHash = tx.TxHash
		}
	}

	return receipt
}
