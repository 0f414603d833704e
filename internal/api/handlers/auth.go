package handlers

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/antgonto/smart-contract/internal/auth"
	"github.com/antgonto/smart-contract/internal/db/models"
	"github.com/antgonto/smart-contract/internal/roles"
	"github.com/antgonto/smart-contract/internal/utils"
	"github.com/antgonto/smart-contract/pkg/audit"
)

// loginFailedMessage is deliberately uniform: wrong address, wrong signature,
// missing or stale challenge must be indistinguishable to the caller.
const loginFailedMessage = "login failed"

type AuthHandler struct {
	challenges *auth.ChallengeStore
	verifier   *auth.SignatureVerifier
	tokens     *auth.TokenIssuer
	registry   roles.Registry
	db         *gorm.DB
	adminUser  string
	adminHash  string
	sink       audit.Sink
	logger     *zap.Logger
}

func NewAuthHandler(
	challenges *auth.ChallengeStore,
	verifier *auth.SignatureVerifier,
	tokens *auth.TokenIssuer,
	registry roles.Registry,
	db *gorm.DB,
	adminUser, adminHash string,
	sink audit.Sink,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		challenges: challenges,
		verifier:   verifier,
		tokens:     tokens,
		registry:   registry,
		db:         db,
		adminUser:  adminUser,
		adminHash:  adminHash,
		sink:       sink,
		logger:     logger.With(zap.String("handler", "auth")),
	}
}

type loginRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type adminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	Token string        `json:"token"`
	Roles []models.Role `json:"roles"`
}

// GetChallenge issues a fresh signing nonce for the address. Repeated calls
// replace the prior challenge.
func (ah *AuthHandler) GetChallenge(c *gin.Context) {
	address, err := utils.NormalizeAddress(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}

	nonce, err := ah.challenges.Issue(c.Request.Context(), address)
	if err != nil {
		ah.logger.Error("Failed to issue challenge", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue challenge"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

// Login verifies the wallet signature over the outstanding challenge and
// returns an access token carrying the caller's roles.
func (ah *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address and signature required"})
		return
	}

	address, err := utils.NormalizeAddress(req.Address)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": loginFailedMessage})
		return
	}

	nonce, err := ah.challenges.Outstanding(c.Request.Context(), address)
	if err != nil {
		ah.logger.Warn("Login without usable challenge",
			zap.String("address", address),
			zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": loginFailedMessage})
		return
	}

	signature, err := hex.DecodeString(strings.TrimPrefix(req.Signature, "0x"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": loginFailedMessage})
		return
	}

	ok, err := ah.verifier.Verify(address, nonce, signature)
	if err != nil || !ok {
		if err != nil {
			ah.logger.Warn("Malformed login signature", zap.String("address", address), zap.Error(err))
		} else {
			ah.logger.Warn("Login signature mismatch", zap.String("address", address))
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": loginFailedMessage})
		return
	}

	if err := ah.challenges.Consume(c.Request.Context(), address, nonce); err != nil {
		ah.logger.Warn("Challenge replay rejected", zap.String("address", address), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": loginFailedMessage})
		return
	}

	heldRoles, err := ah.registry.RolesOf(c.Request.Context(), address)
	if err != nil {
		ah.logger.Error("Failed to resolve roles", zap.String("address", address), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if len(heldRoles) == 0 {
		// Addresses the registry has never seen log in as students.
		heldRoles = []models.Role{models.RoleStudent}
	}

	token, err := ah.tokens.Issue(address, heldRoles)
	if err != nil {
		ah.logger.Error("Failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	ah.sink.Emit(audit.Event{
		Action:    audit.ActionLogin,
		Actor:     address,
		Timestamp: time.Now(),
	})
	ah.logger.Info("Wallet login", zap.String("address", address))
	c.JSON(http.StatusOK, tokenResponse{Token: token, Roles: heldRoles})
}

// AdminLogin is the out-of-band console login. Admin standing never flows
// through the role grant endpoint.
func (ah *AuthHandler) AdminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	address, hash, found := ah.lookupAdmin(req.Username)
	if !found || !utils.VerifyPassword(hash, req.Password) {
		ah.logger.Warn("Admin login failed", zap.String("username", req.Username))
		c.JSON(http.StatusUnauthorized, gin.H{"error": loginFailedMessage})
		return
	}

	adminRoles := []models.Role{models.RoleAdmin}
	subject := req.Username
	if address != "" {
		subject = address
	}
	token, err := ah.tokens.Issue(subject, adminRoles)
	if err != nil {
		ah.logger.Error("Failed to issue admin token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if ah.db != nil {
		ah.db.Model(&models.AdminUser{}).
			Where("username = ?", req.Username).
			Update("last_login", time.Now())
	}

	ah.logger.Info("Admin login", zap.String("username", req.Username))
	c.JSON(http.StatusOK, tokenResponse{Token: token, Roles: adminRoles})
}

func (ah *AuthHandler) lookupAdmin(username string) (address, hash string, found bool) {
	if ah.db != nil {
		var admin models.AdminUser
		err := ah.db.Where("username = ?", username).First(&admin).Error
		if err == nil {
			return admin.Address, admin.PasswordHash, true
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			ah.logger.Error("Admin lookup failed", zap.Error(err))
		}
	}
	if ah.adminUser != "" && ah.adminHash != "" && username == ah.adminUser {
		return "", ah.adminHash, true
	}
	return "", "", false
}
