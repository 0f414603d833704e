package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/antgonto/smart-contract/internal/api/middleware"
	"github.com/antgonto/smart-contract/internal/db/models"
	"github.com/antgonto/smart-contract/internal/roles"
	"github.com/antgonto/smart-contract/internal/utils"
	"github.com/antgonto/smart-contract/pkg/audit"
)

type RoleHandler struct {
	registry roles.Registry
	sink     audit.Sink
	logger   *zap.Logger
}

func NewRoleHandler(registry roles.Registry, sink audit.Sink, logger *zap.Logger) *RoleHandler {
	return &RoleHandler{
		registry: registry,
		sink:     sink,
		logger:   logger.With(zap.String("handler", "roles")),
	}
}

type roleRequest struct {
	Address string `json:"address" binding:"required"`
	Role    string `json:"role" binding:"required"`
}

func (rh *RoleHandler) Grant(c *gin.Context) {
	rh.apply(c, roles.ActionGrant)
}

func (rh *RoleHandler) Revoke(c *gin.Context) {
	rh.apply(c, roles.ActionRevoke)
}

func (rh *RoleHandler) apply(c *gin.Context, action roles.Action) {
	admin := c.GetString(middleware.ContextAddress)

	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address and role required"})
		return
	}

	target, err := utils.NormalizeAddress(req.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}

	role, ok := models.ParseRole(req.Role)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}

	var receipt *roles.Receipt
	if action == roles.ActionGrant {
		receipt, err = rh.registry.Grant(c.Request.Context(), admin, target, role)
	} else {
		receipt, err = rh.registry.Revoke(c.Request.Context(), admin, target, role)
	}

	switch {
	case errors.Is(err, roles.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	case errors.Is(err, roles.ErrRoleNotGrantable):
		c.JSON(http.StatusBadRequest, gin.H{"error": "role is provisioned out-of-band"})
		return
	case err != nil:
		rh.logger.Error("Role change failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "role change failed"})
		return
	}

	if !receipt.NoOp {
		auditAction := audit.ActionRoleGranted
		if action == roles.ActionRevoke {
			auditAction = audit.ActionRoleRevoked
		}
		rh.sink.Emit(audit.Event{
			Action:    auditAction,
			Actor:     admin,
			Subject:   target,
			Detail:    string(role),
			Timestamp: time.Now(),
		})
	}

	c.JSON(http.StatusOK, receipt)
}

// RolesOf is readable by any authenticated principal; unknown addresses
// report an empty set.
func (rh *RoleHandler) RolesOf(c *gin.Context) {
	address, err := utils.NormalizeAddress(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}

	held, err := rh.registry.RolesOf(c.Request.Context(), address)
	if err != nil {
		rh.logger.Error("Role lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "role lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": address, "roles": held})
}
