package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/scolarix/scolarix/internal/models"
	"github.com/scolarix/scolarix/pkg/crypto"
	apperrors "github.com/scolarix/scolarix/pkg/errors"
	"github.com/scolarix/scolarix/pkg/logger"
)

const maxSubjectLength = 100

// AccountProvisioner creates staff accounts as a side effect of invitation
// approval. A pre-existing account for the email is not an error; created
// reports whether a new account was made.
type AccountProvisioner interface {
	ProvisionAccount(ctx context.Context, email string) (created bool, err error)
}

// DirectoryService manages the staff account directory: provisioning,
// authentication, listing, and subject (matière) assignment.
type DirectoryService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewDirectoryService constructs a DirectoryService.
func NewDirectoryService(db *gorm.DB) (*DirectoryService, error) {
	if db == nil {
		return nil, errors.New("directory service: db is required")
	}
	return &DirectoryService{
		db:  db,
		log: logger.WithModule("directory"),
	}, nil
}

// ProvisionAccount creates an enabled, pre-verified account for the email
// with a random temporary secret. The secret is generated only to satisfy
// account-creation requirements; it is never returned or logged. A duplicate
// email is reported as created=false without error.
func (s *DirectoryService) ProvisionAccount(ctx context.Context, email string) (bool, error) {
	ctx = ensureContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false, apperrors.NewInvalidArgument("email is required")
	}

	var existing models.UserAccount
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return false, fmt.Errorf("directory service: lookup account: %w", err)
	}

	secret, err := crypto.GenerateTempSecret()
	if err != nil {
		return false, fmt.Errorf("directory service: generate temporary secret: %w", err)
	}

	hashed, err := crypto.HashPassword(secret)
	if err != nil {
		return false, fmt.Errorf("directory service: hash temporary secret: %w", err)
	}

	account := models.UserAccount{
		Email:         email,
		Password:      hashed,
		EmailVerified: true,
		IsActive:      true,
	}

	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		// Lost the race against a concurrent provisioning of the same email.
		if isUniqueConstraintError(err) {
			return false, nil
		}
		return false, fmt.Errorf("directory service: create account: %w", err)
	}

	s.log.Info("account provisioned", zap.String("email", email))
	return true, nil
}

// Authenticate verifies staff credentials and returns the matching account.
func (s *DirectoryService) Authenticate(ctx context.Context, email, password string) (*models.UserAccount, error) {
	ctx = ensureContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	var account models.UserAccount
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("directory service: lookup account: %w", err)
	}

	if !account.IsActive || !crypto.VerifyPassword(account.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	return &account, nil
}

// ListUsers returns every staff account ordered by email.
func (s *DirectoryService) ListUsers(ctx context.Context) ([]models.UserAccount, error) {
	ctx = ensureContext(ctx)

	var accounts []models.UserAccount
	if err := s.db.WithContext(ctx).Order("email asc").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("directory service: list accounts: %w", err)
	}
	return accounts, nil
}

// SetSubject assigns (or clears, with empty input) the teaching subject of
// an account.
func (s *DirectoryService) SetSubject(ctx context.Context, accountID, subject string) (*models.UserAccount, error) {
	ctx = ensureContext(ctx)

	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, apperrors.NewInvalidArgument("user id is required")
	}

	subject = strings.TrimSpace(subject)
	if len([]rune(subject)) > maxSubjectLength {
		return nil, apperrors.NewInvalidArgument(fmt.Sprintf("subject must be at most %d characters", maxSubjectLength))
	}

	var account models.UserAccount
	if err := s.db.WithContext(ctx).Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("User not found")
		}
		return nil, fmt.Errorf("directory service: lookup account: %w", err)
	}

	if err := s.db.WithContext(ctx).
		Model(&account).
		Update("subject", subject).Error; err != nil {
		return nil, fmt.Errorf("directory service: update subject: %w", err)
	}

	account.Subject = subject
	return &account, nil
}

// EnsureAccount guarantees that an account exists for the email, creating it
// with a temporary secret when missing. Used at boot for the administrator
// identity so the guard has someone to let in.
func (s *DirectoryService) EnsureAccount(ctx context.Context, email string) (bool, error) {
	return s.ProvisionAccount(ctx, email)
}
