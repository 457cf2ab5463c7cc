package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/scolarix/scolarix/internal/database/testutil"
	"github.com/scolarix/scolarix/internal/models"
	"github.com/scolarix/scolarix/internal/services"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func newInvitationRouter(t *testing.T) (*gin.Engine, *services.InvitationService, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	directory, err := services.NewDirectoryService(db)
	require.NoError(t, err)

	clock := func() time.Time { return time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC) }
	invitations, err := services.NewInvitationService(db, directory, services.WithInvitationClock(clock))
	require.NoError(t, err)

	handler := NewInvitationHandler(invitations)

	router := gin.New()
	router.POST("/api/invitations/request", handler.Request)
	router.GET("/api/admin/invitations", handler.List)
	router.POST("/api/admin/invitations/:id/approve", handler.Approve)
	router.POST("/api/admin/invitations/:id/reject", handler.Reject)
	router.POST("/api/admin/invitations/:id/notify", handler.MarkNotified)

	return router, invitations, db
}

func postJSON(router *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if payload != nil {
		_ = json.NewEncoder(&body).Encode(payload)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequestInvitationEndpoint(t *testing.T) {
	router, _, _ := newInvitationRouter(t)

	rec := postJSON(router, "/api/invitations/request", gin.H{"email": "Prof.Math@ac-x.fr"})
	require.Equal(t, http.StatusCreated, rec.Code)

	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)

	var dto invitationDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	require.Equal(t, "prof.math@ac-x.fr", dto.Email)
	require.Equal(t, "pending", dto.Status)
	require.Equal(t, "2026-04-01T09:30:00Z", dto.RequestedAt)
	require.Empty(t, dto.NotifiedAt)
}

func TestRequestInvitationEndpointRejectsBadEmail(t *testing.T) {
	router, _, _ := newInvitationRouter(t)

	rec := postJSON(router, "/api/invitations/request", gin.H{"email": "pas-un-email"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.False(t, env.Success)
	require.Equal(t, "INVALID_ARGUMENT", env.Error.Code)
}

func TestRequestInvitationEndpointDuplicatePending(t *testing.T) {
	router, _, _ := newInvitationRouter(t)

	rec := postJSON(router, "/api/invitations/request", gin.H{"email": "dup@ac-x.fr"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(router, "/api/invitations/request", gin.H{"email": "dup@ac-x.fr"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "ALREADY_EXISTS", decodeEnvelope(t, rec).Error.Code)
}

func TestApproveInvitationEndpoint(t *testing.T) {
	router, invitations, _ := newInvitationRouter(t)

	inv, err := invitations.Request(context.Background(), "nouveau@ac-x.fr")
	require.NoError(t, err)

	rec := postJSON(router, "/api/admin/invitations/"+inv.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)
	require.Equal(t, "Invitation approved and account created", env.Message)

	var data struct {
		Invitation     invitationDTO `json:"invitation"`
		AccountCreated bool          `json:"accountCreated"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.True(t, data.AccountCreated)
	require.Equal(t, "approved", data.Invitation.Status)
	require.NotEmpty(t, data.Invitation.ApprovedAt)

	// A second approval is a conflict, not a repeat side effect.
	rec = postJSON(router, "/api/admin/invitations/"+inv.ID+"/approve", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "FAILED_PRECONDITION", decodeEnvelope(t, rec).Error.Code)
}

func TestApproveInvitationEndpointUnknownID(t *testing.T) {
	router, _, _ := newInvitationRouter(t)

	rec := postJSON(router, "/api/admin/invitations/inconnue/approve", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", decodeEnvelope(t, rec).Error.Code)
}

func TestRejectInvitationEndpointBodyOptional(t *testing.T) {
	router, invitations, _ := newInvitationRouter(t)

	inv, err := invitations.Request(context.Background(), "sans-motif@ac-x.fr")
	require.NoError(t, err)

	rec := postJSON(router, "/api/admin/invitations/"+inv.ID+"/reject", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var dto invitationDTO
	env := decodeEnvelope(t, rec)
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	require.Equal(t, "rejected", dto.Status)
	require.Empty(t, dto.RejectionReason)

	inv, err = invitations.Request(context.Background(), "avec-motif@ac-x.fr")
	require.NoError(t, err)

	rec = postJSON(router, "/api/admin/invitations/"+inv.ID+"/reject", gin.H{"reason": "Adresse hors académie"})
	require.Equal(t, http.StatusOK, rec.Code)
	env = decodeEnvelope(t, rec)
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	require.Equal(t, "Adresse hors académie", dto.RejectionReason)
}

func TestRejectInvitationEndpointTruncatesLongReason(t *testing.T) {
	router, invitations, db := newInvitationRouter(t)

	inv, err := invitations.Request(context.Background(), "motif-long@ac-x.fr")
	require.NoError(t, err)

	reason := strings.Repeat("x", 250)
	rec := postJSON(router, "/api/admin/invitations/"+inv.ID+"/reject", gin.H{"reason": reason})
	require.Equal(t, http.StatusOK, rec.Code)

	var dto invitationDTO
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &dto))
	require.Len(t, dto.RejectionReason, 200)
	require.Equal(t, reason[:200], dto.RejectionReason)

	var stored models.Invitation
	require.NoError(t, db.First(&stored, "id = ?", inv.ID).Error)
	require.Equal(t, models.InvitationStatusRejected, stored.Status)
	require.Len(t, stored.RejectionReason, 200)
}

func TestRejectInvitationEndpointChunkedBody(t *testing.T) {
	router, invitations, _ := newInvitationRouter(t)

	inv, err := invitations.Request(context.Background(), "chunked@ac-x.fr")
	require.NoError(t, err)

	// A client streaming the body announces no Content-Length.
	req := httptest.NewRequest(http.MethodPost, "/api/admin/invitations/"+inv.ID+"/reject",
		io.NopCloser(strings.NewReader(`{"reason":"Dossier incomplet"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var dto invitationDTO
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &dto))
	require.Equal(t, "Dossier incomplet", dto.RejectionReason)
}

func TestRejectInvitationEndpointMalformedBody(t *testing.T) {
	router, invitations, _ := newInvitationRouter(t)

	inv, err := invitations.Request(context.Background(), "casse@ac-x.fr")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/invitations/"+inv.ID+"/reject",
		strings.NewReader(`{"reason":`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_ARGUMENT", decodeEnvelope(t, rec).Error.Code)
}

func TestMarkNotifiedEndpointIdempotent(t *testing.T) {
	router, invitations, _ := newInvitationRouter(t)

	inv, err := invitations.Request(context.Background(), "notif@ac-x.fr")
	require.NoError(t, err)

	// Not yet approved: precondition failure.
	rec := postJSON(router, "/api/admin/invitations/"+inv.ID+"/notify", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "FAILED_PRECONDITION", decodeEnvelope(t, rec).Error.Code)

	_, _, err = invitations.Approve(context.Background(), inv.ID)
	require.NoError(t, err)

	rec = postJSON(router, "/api/admin/invitations/"+inv.ID+"/notify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)

	var data struct {
		Invitation      invitationDTO `json:"invitation"`
		AlreadyNotified bool          `json:"alreadyNotified"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.False(t, data.AlreadyNotified)
	require.NotEmpty(t, data.Invitation.NotifiedAt)

	rec = postJSON(router, "/api/admin/invitations/"+inv.ID+"/notify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env = decodeEnvelope(t, rec)
	require.Equal(t, "Invitation was already marked as notified", env.Message)
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.True(t, data.AlreadyNotified)
}

func TestListInvitationsEndpointOrdersNewestFirst(t *testing.T) {
	router, invitations, db := newInvitationRouter(t)

	first, err := invitations.Request(context.Background(), "ancien@ac-x.fr")
	require.NoError(t, err)
	require.NoError(t, db.Model(first).Update("requested_at", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)).Error)

	_, err = invitations.Request(context.Background(), "recent@ac-x.fr")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/invitations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var dtos []invitationDTO
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &dtos))
	require.Len(t, dtos, 2)
	require.Equal(t, "recent@ac-x.fr", dtos[0].Email)
	require.Equal(t, "ancien@ac-x.fr", dtos[1].Email)
}
