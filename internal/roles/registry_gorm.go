package roles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/antgonto/smart-contract/internal/db/models"
	"github.com/antgonto/smart-contract/internal/ledger"
)

// GormRegistry persists role assignments in the account_roles table; one row
// per held role, so an address with no roles has no rows.
type GormRegistry struct {
	db     *gorm.DB
	chain  ledger.Ledger
	logger *zap.Logger
}

func NewGormRegistry(db *gorm.DB, chain ledger.Ledger, logger *zap.Logger) *GormRegistry {
	return &GormRegistry{
		db:     db,
		chain:  chain,
		logger: logger.With(zap.String("service", "role_registry")),
	}
}

func (r *GormRegistry) Grant(ctx context.Context, admin, target string, role models.Role) (*Receipt, error) {
	if err := r.requireAdmin(ctx, admin); err != nil {
		return nil, err
	}
	if !grantable(role) {
		return nil, ErrRoleNotGrantable
	}

	txHash := r.anchor(ctx, ActionGrant, admin, target, role)

	assignment := models.AccountRole{Address: target, Role: role, TxHash: txHash}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&assignment)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to grant role: %w", result.Error)
	}

	noop := result.RowsAffected == 0
	if !noop {
		r.logger.Info("Role granted",
			zap.String("target", target),
			zap.String("role", string(role)),
			zap.String("admin", admin))
	}
	return r.receipt(admin, target, role, ActionGrant, noop, txHash), nil
}

func (r *GormRegistry) Revoke(ctx context.Context, admin, target string, role models.Role) (*Receipt, error) {
	if err := r.requireAdmin(ctx, admin); err != nil {
		return nil, err
	}
	if !grantable(role) {
		return nil, ErrRoleNotGrantable
	}

	txHash := r.anchor(ctx, ActionRevoke, admin, target, role)

	result := r.db.WithContext(ctx).
		Where("address = ? AND role = ?", target, role).
		Delete(&models.AccountRole{})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to revoke role: %w", result.Error)
	}

	noop := result.RowsAffected == 0
	if !noop {
		r.logger.Info("Role revoked",
			zap.String("target", target),
			zap.String("role", string(role)),
			zap.String("admin", admin))
	}
	return r.receipt(admin, target, role, ActionRevoke, noop, txHash), nil
}

func (r *GormRegistry) RolesOf(ctx context.Context, address string) ([]models.Role, error) {
	var assignments []models.AccountRole
	err := r.db.WithContext(ctx).
		Where("address = ?", address).
		Order("id").
		Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}

	out := make([]models.Role, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, a.Role)
	}
	return out, nil
}

func (r *GormRegistry) Seed(ctx context.Context, address string, role models.Role) error {
	assignment := models.AccountRole{Address: address, Role: role}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&assignment).Error
}

func (r *GormRegistry) requireAdmin(ctx context.Context, admin string) error {
	var assignment models.AccountRole
	err := r.db.WithContext(ctx).
		Where("address = ? AND role = ?", admin, models.RoleAdmin).
		First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return fmt.Errorf("failed to check admin role: %w", err)
	}
	return nil
}

func (r *GormRegistry) anchor(ctx context.Context, action Action, actor, target string, role models.Role) string {
	if r.chain == nil {
		return ""
	}
	payload := []byte(fmt.Sprintf("%s|%s|%s|%s", action, actor, target, role))
	tx, err := r.chain.Submit(ctx, payload)
	if err != nil {
		r.logger.Warn("Failed to anchor role change", zap.Error(err))
		return ""
	}
	return tx.TxHash
}

func (r *GormRegistry) receipt(actor, target string, role models.Role, action Action, noop bool, txHash string) *Receipt {
	if noop {
		txHash = ""
	}
	return &Receipt{
		ID:        uuid.New().String(),
		Actor:     actor,
		Target:    target,
		Role:      role,
		Action:    action,
		NoOp:      noop,
		TxHash:    txHash,
		Timestamp: time.Now(),
	}
}
