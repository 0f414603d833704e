package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/antgonto/smart-contract/internal/api/middleware"
	"github.com/antgonto/smart-contract/internal/db/models"
	"github.com/antgonto/smart-contract/internal/services"
	"github.com/antgonto/smart-contract/internal/store"
	"github.com/antgonto/smart-contract/internal/utils"
)

type CertificateHandler struct {
	certificates *services.CertificateService
	logger       *zap.Logger
}

func NewCertificateHandler(certificates *services.CertificateService, logger *zap.Logger) *CertificateHandler {
	return &CertificateHandler{
		certificates: certificates,
		logger:       logger.With(zap.String("handler", "certificate")),
	}
}

type registerRequest struct {
	Recipient   string `json:"recipient" binding:"required"`
	Content     string `json:"content" binding:"required"`
	StorageMode string `json:"storage_mode" binding:"required"`
}

type revokeRequest struct {
	CertHash string `json:"cert_hash" binding:"required"`
}

// Register issues a certificate from JSON (base64 content) or a multipart
// file upload, matching the console's PDF submission path.
func (ch *CertificateHandler) Register(c *gin.Context) {
	issuer := c.GetString(middleware.ContextAddress)

	recipient, content, modeName, ok := ch.parseRegistration(c)
	if !ok {
		return
	}

	recipient, err := utils.NormalizeAddress(recipient)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipient address"})
		return
	}

	mode, ok := models.ParseStorageMode(modeName)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "storage_mode must be ON_CHAIN or OFF_CHAIN"})
		return
	}

	cert, err := ch.certificates.Register(c.Request.Context(), issuer, recipient, content, mode)
	switch {
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "issuer role required"})
	case errors.Is(err, store.ErrDuplicateHash):
		c.JSON(http.StatusConflict, gin.H{"error": "certificate already exists for this content"})
	case errors.Is(err, services.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is empty"})
	case err != nil:
		ch.logger.Error("Registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
	default:
		c.JSON(http.StatusCreated, cert)
	}
}

func (ch *CertificateHandler) parseRegistration(c *gin.Context) (recipient string, content []byte, mode string, ok bool) {
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
			return "", nil, "", false
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
			return "", nil, "", false
		}
		mode = c.PostForm("storage_mode")
		if mode == "" {
			mode = string(models.StorageOffChain)
		}
		return c.PostForm("recipient"), data, mode, true
	}

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipient, content and storage_mode required"})
		return "", nil, "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content must be base64"})
		return "", nil, "", false
	}
	return req.Recipient, decoded, req.StorageMode, true
}

// Verify is public and unauthenticated; an unknown hash is a 200 with
// exists=false, never an error.
func (ch *CertificateHandler) Verify(c *gin.Context) {
	result, err := ch.certificates.Verify(c.Request.Context(), c.Param("certHash"))
	if err != nil {
		ch.logger.Error("Verification lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (ch *CertificateHandler) Revoke(c *gin.Context) {
	actor := c.GetString(middleware.ContextAddress)

	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cert_hash required"})
		return
	}

	err := ch.certificates.Revoke(c.Request.Context(), req.CertHash, actor)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "certificate not found"})
	case errors.Is(err, store.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "only the issuer or an admin may revoke"})
	case err != nil:
		ch.logger.Error("Revocation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "revocation failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "revoked", "cert_hash": req.CertHash})
	}
}

func (ch *CertificateHandler) Download(c *gin.Context) {
	certHash := c.Param("certHash")

	data, ref, err := ch.certificates.Download(c.Request.Context(), certHash)
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, services.ErrNotAvailable):
		c.JSON(http.StatusNotFound, gin.H{"error": "certificate payload not available"})
		return
	case err != nil:
		ch.logger.Error("Download failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "download failed"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+ref+`"`)
	c.Data(http.StatusOK, "application/octet-stream", data)
}

func (ch *CertificateHandler) ListByIssuer(c *gin.Context) {
	ch.listFor(c, ch.certificates.ListByIssuer)
}

func (ch *CertificateHandler) ListByStudent(c *gin.Context) {
	ch.listFor(c, ch.certificates.ListByStudent)
}

func (ch *CertificateHandler) listFor(c *gin.Context, list func(ctx context.Context, address string) ([]models.Certificate, error)) {
	address, err := utils.NormalizeAddress(c.Param("address"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}

	certificates, err := list(c.Request.Context(), address)
	if err != nil {
		ch.logger.Error("Listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"certificates": certificates})
}
