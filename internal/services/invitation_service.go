package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/scolarix/scolarix/internal/models"
	apperrors "github.com/scolarix/scolarix/pkg/errors"
	"github.com/scolarix/scolarix/pkg/logger"
	"github.com/scolarix/scolarix/pkg/mail"
	"github.com/scolarix/scolarix/pkg/metrics"
)

const maxRejectionReasonLength = 200

// InvitationOption customises InvitationService behaviour.
type InvitationOption func(*InvitationService)

// WithInvitationClock injects a custom clock primarily for testing.
func WithInvitationClock(clock func() time.Time) InvitationOption {
	return func(s *InvitationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithInvitationMailer enables the best-effort "account ready" email sent
// when an approved invitation is first marked notified.
func WithInvitationMailer(m mail.Mailer) InvitationOption {
	return func(s *InvitationService) {
		s.mailer = m
	}
}

// InvitationService owns the invitation lifecycle state machine:
// pending -> approved | rejected, plus the one-shot notified marker on
// approved invitations. Transitions use a read-then-write sequence without
// compare-and-swap; concurrent duplicate calls are tolerated rather than
// prevented (see DESIGN.md).
type InvitationService struct {
	db       *gorm.DB
	accounts AccountProvisioner
	mailer   mail.Mailer
	now      func() time.Time
	log      *zap.Logger
}

// NewInvitationService constructs an InvitationService with the provided dependencies.
func NewInvitationService(db *gorm.DB, accounts AccountProvisioner, opts ...InvitationOption) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}
	if accounts == nil {
		return nil, errors.New("invitation service: account provisioner is required")
	}

	service := &InvitationService{
		db:       db,
		accounts: accounts,
		now:      time.Now,
		log:      logger.WithModule("invitations"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Request records a new pending invitation for the email. At most one
// pending invitation may exist per email; terminal invitations do not block
// a new request.
func (s *InvitationService) Request(ctx context.Context, email string) (*models.Invitation, error) {
	ctx = ensureContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.NewInvalidArgument("A valid email address is required")
	}

	var pending int64
	if err := s.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("email = ? AND status = ?", email, models.InvitationStatusPending).
		Count(&pending).Error; err != nil {
		s.log.Error("pending lookup failed", zap.Error(err))
		return nil, fmt.Errorf("invitation service: pending lookup: %w", err)
	}
	if pending > 0 {
		metrics.InvitationTransitions.WithLabelValues("request", "rejected").Inc()
		return nil, apperrors.ErrAlreadyExists.WithMessage("An invitation request is already pending for this email")
	}

	invitation := models.Invitation{
		Email:       email,
		Status:      models.InvitationStatusPending,
		RequestedAt: s.now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&invitation).Error; err != nil {
		s.log.Error("create invitation failed", zap.Error(err))
		metrics.InvitationTransitions.WithLabelValues("request", "error").Inc()
		return nil, fmt.Errorf("invitation service: create: %w", err)
	}

	metrics.InvitationTransitions.WithLabelValues("request", "ok").Inc()
	return &invitation, nil
}

// List returns every invitation, newest request first. An empty directory
// yields an empty slice, not an error.
func (s *InvitationService) List(ctx context.Context) ([]models.Invitation, error) {
	ctx = ensureContext(ctx)

	var invitations []models.Invitation
	if err := s.db.WithContext(ctx).
		Order("requested_at desc").
		Find(&invitations).Error; err != nil {
		s.log.Error("list invitations failed", zap.Error(err))
		return nil, fmt.Errorf("invitation service: list: %w", err)
	}
	return invitations, nil
}

// Approve moves a pending invitation to approved and provisions the staff
// account. The record is only updated after provisioning succeeds, so a
// failed side effect leaves the invitation pending and safe to retry.
// createdAccount reports whether a new account was made or one pre-existed.
func (s *InvitationService) Approve(ctx context.Context, invitationID string) (invitation *models.Invitation, createdAccount bool, err error) {
	ctx = ensureContext(ctx)

	inv, err := s.load(ctx, invitationID)
	if err != nil {
		return nil, false, err
	}

	if inv.IsTerminal() {
		metrics.InvitationTransitions.WithLabelValues("approve", "rejected").Inc()
		return nil, false, apperrors.ErrFailedPrecondition.
			WithMessage(fmt.Sprintf("Invitation is already %s", inv.Status))
	}

	email := strings.TrimSpace(inv.Email)
	if email == "" {
		// A pending invitation without an email is corrupt data, not a
		// caller mistake; surface it as internal and touch nothing.
		s.log.Error("invitation record missing email", zap.String("invitation_id", inv.ID))
		metrics.InvitationTransitions.WithLabelValues("approve", "error").Inc()
		return nil, false, apperrors.ErrInternalServer.
			WithInternal(fmt.Errorf("invitation %s has no email", inv.ID))
	}

	created, err := s.accounts.ProvisionAccount(ctx, email)
	if err != nil {
		s.log.Error("account provisioning failed",
			zap.String("invitation_id", inv.ID),
			zap.Error(err),
		)
		metrics.InvitationTransitions.WithLabelValues("approve", "error").Inc()
		return nil, false, apperrors.ErrInternalServer.WithInternal(err)
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).
		Model(inv).
		Updates(map[string]any{
			"status":      models.InvitationStatusApproved,
			"approved_at": now,
		}).Error; err != nil {
		s.log.Error("approve update failed", zap.String("invitation_id", inv.ID), zap.Error(err))
		metrics.InvitationTransitions.WithLabelValues("approve", "error").Inc()
		return nil, false, fmt.Errorf("invitation service: approve: %w", err)
	}

	inv.Status = models.InvitationStatusApproved
	inv.ApprovedAt = &now

	metrics.InvitationTransitions.WithLabelValues("approve", "ok").Inc()
	return inv, created, nil
}

// Reject moves a pending invitation to rejected, optionally recording a
// trimmed reason capped at 200 characters. No external side effect.
func (s *InvitationService) Reject(ctx context.Context, invitationID, reason string) (*models.Invitation, error) {
	ctx = ensureContext(ctx)

	inv, err := s.load(ctx, invitationID)
	if err != nil {
		return nil, err
	}

	if inv.IsTerminal() {
		metrics.InvitationTransitions.WithLabelValues("reject", "rejected").Inc()
		return nil, apperrors.ErrFailedPrecondition.
			WithMessage(fmt.Sprintf("Invitation is already %s", inv.Status))
	}

	now := s.now().UTC()
	updates := map[string]any{
		"status":      models.InvitationStatusRejected,
		"rejected_at": now,
	}

	reason = truncateReason(reason)
	if reason != "" {
		updates["rejection_reason"] = reason
	}

	if err := s.db.WithContext(ctx).Model(inv).Updates(updates).Error; err != nil {
		s.log.Error("reject update failed", zap.String("invitation_id", inv.ID), zap.Error(err))
		metrics.InvitationTransitions.WithLabelValues("reject", "error").Inc()
		return nil, fmt.Errorf("invitation service: reject: %w", err)
	}

	inv.Status = models.InvitationStatusRejected
	inv.RejectedAt = &now
	inv.RejectionReason = reason

	metrics.InvitationTransitions.WithLabelValues("reject", "ok").Inc()
	return inv, nil
}

// MarkNotified records that the requester was told their account is ready.
// Only approved invitations qualify. Unlike approve and reject this
// transition is idempotent: repeated calls succeed without touching the
// stored timestamp; alreadyNotified reports the no-op case.
func (s *InvitationService) MarkNotified(ctx context.Context, invitationID string) (invitation *models.Invitation, alreadyNotified bool, err error) {
	ctx = ensureContext(ctx)

	inv, err := s.load(ctx, invitationID)
	if err != nil {
		return nil, false, err
	}

	if inv.Status != models.InvitationStatusApproved {
		metrics.InvitationTransitions.WithLabelValues("notify", "rejected").Inc()
		return nil, false, apperrors.ErrFailedPrecondition.
			WithMessage("Only approved invitations can be marked as notified")
	}

	if inv.NotifiedAt != nil {
		return inv, true, nil
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).
		Model(inv).
		Update("notified_at", now).Error; err != nil {
		s.log.Error("notify update failed", zap.String("invitation_id", inv.ID), zap.Error(err))
		metrics.InvitationTransitions.WithLabelValues("notify", "error").Inc()
		return nil, false, fmt.Errorf("invitation service: mark notified: %w", err)
	}

	inv.NotifiedAt = &now
	s.sendReadyEmail(ctx, inv.Email)

	metrics.InvitationTransitions.WithLabelValues("notify", "ok").Inc()
	return inv, false, nil
}

func (s *InvitationService) load(ctx context.Context, invitationID string) (*models.Invitation, error) {
	invitationID = strings.TrimSpace(invitationID)
	if invitationID == "" {
		return nil, apperrors.NewInvalidArgument("invitation id is required")
	}

	var inv models.Invitation
	if err := s.db.WithContext(ctx).Where("id = ?", invitationID).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Invitation not found")
		}
		s.log.Error("load invitation failed", zap.String("invitation_id", invitationID), zap.Error(err))
		return nil, fmt.Errorf("invitation service: load: %w", err)
	}

	return &inv, nil
}

// sendReadyEmail is a best-effort side channel; delivery failures never fail
// the transition.
func (s *InvitationService) sendReadyEmail(ctx context.Context, email string) {
	if s.mailer == nil || email == "" {
		return
	}

	msg := mail.Message{
		To:      []string{email},
		Subject: "Votre compte Scolarix est prêt",
		Body: "Bonjour,\n\nVotre demande d'accès a été approuvée et votre compte est prêt.\n" +
			"Vous pouvez vous connecter au tableau de bord avec votre adresse académique.\n",
	}
	if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		s.log.Warn("notification email failed", zap.String("email", email), zap.Error(err))
	}
}

func truncateReason(reason string) string {
	reason = strings.TrimSpace(reason)
	runes := []rune(reason)
	if len(runes) > maxRejectionReasonLength {
		return string(runes[:maxRejectionReasonLength])
	}
	return reason
}
