package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scolarix/scolarix/internal/models"
	"github.com/scolarix/scolarix/internal/services"
	"github.com/scolarix/scolarix/pkg/response"
)

// DirectoryHandler exposes the staff directory to the administrator.
type DirectoryHandler struct {
	directory *services.DirectoryService
}

// NewDirectoryHandler constructs a DirectoryHandler.
func NewDirectoryHandler(directory *services.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{directory: directory}
}

type setSubjectRequest struct {
	Subject string `json:"subject" validate:"max=100"`
}

type userDTO struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Subject     string `json:"subject,omitempty"`
	IsActive    bool   `json:"isActive"`
	LastLoginAt string `json:"lastLoginAt,omitempty"`
}

func toUserDTO(account *models.UserAccount) userDTO {
	dto := userDTO{
		ID:       account.ID,
		Email:    account.Email,
		Subject:  account.Subject,
		IsActive: account.IsActive,
	}
	if account.LastLoginAt != nil {
		dto.LastLoginAt = account.LastLoginAt.UTC().Format(timeFormat)
	}
	return dto
}

// ListUsers handles GET /api/admin/users.
func (h *DirectoryHandler) ListUsers(c *gin.Context) {
	accounts, err := h.directory.ListUsers(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	dtos := make([]userDTO, 0, len(accounts))
	for i := range accounts {
		dtos = append(dtos, toUserDTO(&accounts[i]))
	}
	response.Success(c, http.StatusOK, dtos)
}

// SetSubject handles PUT /api/admin/users/:id/subject. An empty subject
// clears the assignment.
func (h *DirectoryHandler) SetSubject(c *gin.Context) {
	var req setSubjectRequest
	if !bindAndValidate(c, &req) {
		return
	}

	account, err := h.directory.SetSubject(requestContext(c), c.Param("id"), req.Subject)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessMessage(c, http.StatusOK, "Subject updated", toUserDTO(account))
}
