package admission

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/member-directory/internal/apperr"
	"github.com/iliyamo/member-directory/internal/model"
	"github.com/iliyamo/member-directory/internal/repository"
	"github.com/iliyamo/member-directory/internal/service/mailer"
)

// ResendVerification mails a fresh verification link when email belongs to
// a member still waiting for verification.  The caller learns nothing about
// whether the address is registered.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	p, err := s.profiles.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Unavailable("database", err)
	}
	if p.Role == model.RoleAdmin || p.VerifiedAt != nil || p.VerificationTokenHash == nil {
		return nil
	}
	raw, err := s.creds.IssueVerification(ctx, p.ID)
	if err != nil {
		return err
	}
	if !s.send(ctx, mailer.VerificationMessage(p.Email, p.ID, s.verifyLink(raw))) {
		s.log.Info("verification resend not dispatched", zap.Uint64("profile_id", p.ID))
	}
	return nil
}

// ForgotPassword stores a reset token for a registered email and mails the
// link.  It succeeds for unknown emails too.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	req, err := s.creds.RequestReset(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if req.Token == "" {
		return nil
	}
	s.send(ctx, mailer.ResetMessage(req.Email, req.ProfileID, s.resetLink(req.Token)))
	return nil
}
