package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"murmur/internal/email"
	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/observability"
	"murmur/internal/repository"
	"murmur/internal/validation"
)

const resetTokenTTL = time.Hour

// PasswordResetService handles the request/reset flow for forgotten passwords.
type PasswordResetService struct {
	userRepo     repository.UserRepository
	tokenRepo    repository.PasswordResetRepository
	sender       email.Sender
	resetURLBase string
}

func NewPasswordResetService(userRepo repository.UserRepository, tokenRepo repository.PasswordResetRepository, sender email.Sender, resetURLBase string) *PasswordResetService {
	return &PasswordResetService{
		userRepo:     userRepo,
		tokenRepo:    tokenRepo,
		sender:       sender,
		resetURLBase: resetURLBase,
	}
}

// RequestReset issues a reset token for the account with the given email and
// sends the reset link. It succeeds silently for unknown addresses so the
// endpoint cannot be used to probe which emails are registered.
func (s *PasswordResetService) RequestReset(ctx context.Context, emailAddr string) error {
	user, err := s.userRepo.GetByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if user == nil {
		middleware.Logger.InfoContext(ctx, "Password reset requested for unknown email")
		return nil
	}

	// Only the most recent token is honored.
	if err := s.tokenRepo.DeleteForUser(ctx, user.ID); err != nil {
		return err
	}

	token := &models.PasswordResetToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().UTC().Add(resetTokenTTL),
	}
	if err := s.tokenRepo.Create(ctx, token); err != nil {
		return err
	}

	resetURL := fmt.Sprintf("%s?token=%s", s.resetURLBase, token.Token)
	msg := email.Message{
		To:      user.Email,
		Subject: "Reset your Murmur password",
		HTML: fmt.Sprintf(
			`<p>Hi %s,</p><p>Someone requested a password reset for your account. `+
				`The link below is valid for one hour.</p><p><a href="%s">Reset password</a></p>`+
				`<p>If this wasn't you, you can ignore this email.</p>`,
			user.Username, resetURL),
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		observability.PasswordResetEmails.WithLabelValues("error").Inc()
		middleware.Logger.ErrorContext(ctx, "Failed to send password reset email",
			slog.Uint64("user_id", uint64(user.ID)),
			slog.String("error", err.Error()))
		return models.NewInternalError(err)
	}

	observability.PasswordResetEmails.WithLabelValues("sent").Inc()
	return nil
}

// Reset consumes a reset token and replaces the user's password.
func (s *PasswordResetService) Reset(ctx context.Context, token, newPassword string) error {
	if err := validation.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError(err.Error())
	}

	row, err := s.tokenRepo.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	if row.Used || row.Expired(time.Now().UTC()) {
		return models.NewValidationError("Invalid or expired reset token")
	}

	user, err := s.userRepo.GetByID(ctx, row.UserID)
	if err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	user.Password = string(hashed)

	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}
	if err := s.tokenRepo.MarkUsed(ctx, row.ID); err != nil {
		return err
	}

	middleware.Logger.InfoContext(ctx, "Password reset completed",
		slog.Uint64("user_id", uint64(user.ID)))
	return nil
}
