package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	iauth "github.com/scolarix/scolarix/internal/auth"
	"github.com/scolarix/scolarix/internal/models"
	"github.com/scolarix/scolarix/internal/services"
	"github.com/scolarix/scolarix/pkg/logger"
	"github.com/scolarix/scolarix/pkg/metrics"
	"github.com/scolarix/scolarix/pkg/response"
)

// AuthHandler exposes staff login.
type AuthHandler struct {
	db        *gorm.DB
	directory *services.DirectoryService
	jwt       *iauth.JWTService
	log       *zap.Logger
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, directory *services.DirectoryService, jwt *iauth.JWTService) *AuthHandler {
	return &AuthHandler{
		db:        db,
		directory: directory,
		jwt:       jwt,
		log:       logger.WithModule("auth"),
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /api/auth/login, exchanging staff credentials for an
// access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	account, err := h.directory.Authenticate(requestContext(c), req.Email, req.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID: account.ID,
		Email:  account.Email,
	})
	if err != nil {
		h.log.Error("token generation failed", zap.Error(err))
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, err)
		return
	}

	now := time.Now().UTC()
	if err := h.db.WithContext(requestContext(c)).
		Model(&models.UserAccount{}).
		Where("id = ?", account.ID).
		Update("last_login_at", now).Error; err != nil {
		// Login still succeeds; the timestamp is informational.
		h.log.Warn("last login update failed", zap.String("email", account.Email), zap.Error(err))
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user":  toUserDTO(account),
	})
}
