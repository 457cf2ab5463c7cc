package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scolarix/scolarix/internal/models"
	"github.com/scolarix/scolarix/internal/services"
	appErrors "github.com/scolarix/scolarix/pkg/errors"
	"github.com/scolarix/scolarix/pkg/response"
)

// InvitationHandler exposes the invitation lifecycle over HTTP: the public
// request endpoint plus the administrator review actions.
type InvitationHandler struct {
	invitations *services.InvitationService
}

// NewInvitationHandler constructs an InvitationHandler.
func NewInvitationHandler(invitations *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations}
}

type requestInvitationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type rejectInvitationRequest struct {
	// No length constraint here: an over-long reason is stored truncated,
	// not refused.
	Reason string `json:"reason"`
}

// invitationDTO is the wire shape of an invitation. Timestamps are RFC 3339
// in UTC; a missing request timestamp on legacy rows renders as the epoch so
// the dashboard's date sort stays total.
type invitationDTO struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Status          string `json:"status"`
	RequestedAt     string `json:"requestedAt"`
	ApprovedAt      string `json:"approvedAt,omitempty"`
	RejectedAt      string `json:"rejectedAt,omitempty"`
	RejectionReason string `json:"rejectionReason,omitempty"`
	NotifiedAt      string `json:"notifiedAt,omitempty"`
}

func toInvitationDTO(inv *models.Invitation) invitationDTO {
	requestedAt := inv.RequestedAt
	if requestedAt.IsZero() {
		requestedAt = time.Unix(0, 0)
	}

	dto := invitationDTO{
		ID:              inv.ID,
		Email:           inv.Email,
		Status:          inv.Status,
		RequestedAt:     requestedAt.UTC().Format(timeFormat),
		RejectionReason: inv.RejectionReason,
	}
	if inv.ApprovedAt != nil {
		dto.ApprovedAt = inv.ApprovedAt.UTC().Format(timeFormat)
	}
	if inv.RejectedAt != nil {
		dto.RejectedAt = inv.RejectedAt.UTC().Format(timeFormat)
	}
	if inv.NotifiedAt != nil {
		dto.NotifiedAt = inv.NotifiedAt.UTC().Format(timeFormat)
	}
	return dto
}

// Request handles POST /api/invitations/request. Open endpoint: prospective
// staff ask for access before they have any credentials.
func (h *InvitationHandler) Request(c *gin.Context) {
	var req requestInvitationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	invitation, err := h.invitations.Request(requestContext(c), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessMessage(c, http.StatusCreated,
		"Invitation request recorded",
		toInvitationDTO(invitation),
	)
}

// List handles GET /api/admin/invitations, newest request first.
func (h *InvitationHandler) List(c *gin.Context) {
	invitations, err := h.invitations.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	dtos := make([]invitationDTO, 0, len(invitations))
	for i := range invitations {
		dtos = append(dtos, toInvitationDTO(&invitations[i]))
	}
	response.Success(c, http.StatusOK, dtos)
}

// Approve handles POST /api/admin/invitations/:id/approve.
func (h *InvitationHandler) Approve(c *gin.Context) {
	invitation, created, err := h.invitations.Approve(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	message := "Invitation approved and account created"
	if !created {
		message = "Invitation approved; an account for this email already existed"
	}
	response.SuccessMessage(c, http.StatusOK, message, gin.H{
		"invitation":     toInvitationDTO(invitation),
		"accountCreated": created,
	})
}

// Reject handles POST /api/admin/invitations/:id/reject. The body (and the
// reason inside it) is optional; an absent body reads as an empty reason.
func (h *InvitationHandler) Reject(c *gin.Context) {
	var req rejectInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.NewInvalidArgument("invalid JSON payload"))
		return
	}

	invitation, err := h.invitations.Reject(requestContext(c), c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessMessage(c, http.StatusOK, "Invitation rejected", toInvitationDTO(invitation))
}

// MarkNotified handles POST /api/admin/invitations/:id/notify. Idempotent:
// a second call confirms rather than fails.
func (h *InvitationHandler) MarkNotified(c *gin.Context) {
	invitation, alreadyNotified, err := h.invitations.MarkNotified(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	message := "Invitation marked as notified"
	if alreadyNotified {
		message = "Invitation was already marked as notified"
	}
	response.SuccessMessage(c, http.StatusOK, message, gin.H{
		"invitation":      toInvitationDTO(invitation),
		"alreadyNotified": alreadyNotified,
	})
}
