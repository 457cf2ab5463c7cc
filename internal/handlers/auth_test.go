package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/scolarix/scolarix/internal/auth"
	"github.com/scolarix/scolarix/internal/database/testutil"
	"github.com/scolarix/scolarix/internal/models"
	"github.com/scolarix/scolarix/internal/services"
	"github.com/scolarix/scolarix/pkg/crypto"
)

func newAuthRouter(t *testing.T) (*gin.Engine, *iauth.JWTService, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	directory, err := services.NewDirectoryService(db)
	require.NoError(t, err)

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret: "test-secret",
		Issuer: "scolarix-test",
	})
	require.NoError(t, err)

	handler := NewAuthHandler(db, directory, jwt)

	router := gin.New()
	router.POST("/api/auth/login", handler.Login)
	return router, jwt, db
}

func seedAccount(t *testing.T, db *gorm.DB, email, password string) *models.UserAccount {
	t.Helper()
	hashed, err := crypto.HashPassword(password)
	require.NoError(t, err)

	account := &models.UserAccount{
		Email:         email,
		Password:      hashed,
		EmailVerified: true,
		IsActive:      true,
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

func TestLoginIssuesToken(t *testing.T) {
	router, jwt, db := newAuthRouter(t)
	account := seedAccount(t, db, "direction@ac-x.fr", "Motdepasse1!")

	rec := postJSON(router, "/api/auth/login", gin.H{
		"email":    "Direction@ac-x.fr",
		"password": "Motdepasse1!",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	var data struct {
		Token string  `json:"token"`
		User  userDTO `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "direction@ac-x.fr", data.User.Email)

	claims, err := jwt.ValidateAccessToken(data.Token)
	require.NoError(t, err)
	require.Equal(t, account.ID, claims.UserID)
	require.Equal(t, "direction@ac-x.fr", claims.Email)

	var stored models.UserAccount
	require.NoError(t, db.First(&stored, "id = ?", account.ID).Error)
	require.NotNil(t, stored.LastLoginAt)
	require.WithinDuration(t, time.Now(), *stored.LastLoginAt, 5*time.Second)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router, _, db := newAuthRouter(t)
	seedAccount(t, db, "direction@ac-x.fr", "Motdepasse1!")

	rec := postJSON(router, "/api/auth/login", gin.H{
		"email":    "direction@ac-x.fr",
		"password": "mauvais",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "INVALID_CREDENTIALS", decodeEnvelope(t, rec).Error.Code)
}

func TestLoginValidatesPayload(t *testing.T) {
	router, _, _ := newAuthRouter(t)

	rec := postJSON(router, "/api/auth/login", gin.H{"email": "pas-un-email", "password": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_ARGUMENT", decodeEnvelope(t, rec).Error.Code)
}
