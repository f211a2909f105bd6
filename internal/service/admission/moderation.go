package admission

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/member-directory/internal/apperr"
	"github.com/iliyamo/member-directory/internal/model"
	"github.com/iliyamo/member-directory/internal/repository"
)

// requireOperator is the authorization check every moderation call runs,
// independent of any route middleware.
func requireOperator(actor model.Viewer) error {
	if !actor.Authenticated() {
		return apperr.AuthGate(apperr.ReasonUnauthenticated)
	}
	if !actor.IsOperator() {
		return apperr.AuthGate(apperr.ReasonForbidden)
	}
	return nil
}

// Decide records an operator decision and drains the profile's inbox
// entries.  Repeating a decision is harmless.
func (s *Service) Decide(ctx context.Context, actor model.Viewer, profileID uint64, outcome string) error {
	if err := requireOperator(actor); err != nil {
		return err
	}
	status, ok := model.ParseOutcome(outcome)
	if !ok {
		return apperr.Validation("outcome", "outcome must be accepted or rejected")
	}
	if err := s.profiles.Decide(ctx, profileID, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("profile")
		}
		return apperr.Unavailable("database", err)
	}
	s.log.Info("profile decided",
		zap.Uint64("profile_id", profileID), zap.String("status", string(status)), zap.Uint64("operator_id", actor.ProfileID))
	return nil
}

// Dismiss removes one inbox entry without touching the profile.
func (s *Service) Dismiss(ctx context.Context, actor model.Viewer, notificationID uint64) error {
	if err := requireOperator(actor); err != nil {
		return err
	}
	if err := s.inbox.DeleteByID(ctx, notificationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("notification")
		}
		return apperr.Unavailable("database", err)
	}
	return nil
}

func (s *Service) ListNotifications(ctx context.Context, actor model.Viewer) ([]model.NotificationEntry, error) {
	if err := requireOperator(actor); err != nil {
		return nil, err
	}
	list, err := s.inbox.List(ctx)
	if err != nil {
		return nil, apperr.Unavailable("database", err)
	}
	if list == nil {
		list = []model.NotificationEntry{}
	}
	return list, nil
}

// Delete hard-deletes a profile, then removes its stored photos.
func (s *Service) Delete(ctx context.Context, actor model.Viewer, profileID uint64) error {
	if err := requireOperator(actor); err != nil {
		return err
	}
	urls, err := s.profiles.Delete(ctx, profileID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("profile")
	}
	if err != nil {
		return apperr.Unavailable("database", err)
	}
	s.photos.Purge(ctx, urls...)
	s.log.Info("profile deleted", zap.Uint64("profile_id", profileID), zap.Uint64("operator_id", actor.ProfileID))
	return nil
}

// PurgeMembers deletes every non-admin profile.  Stored photo objects are
// left for the bucket lifecycle rules.
func (s *Service) PurgeMembers(ctx context.Context, actor model.Viewer) (int64, error) {
	if err := requireOperator(actor); err != nil {
		return 0, err
	}
	n, err := s.profiles.DeleteMembers(ctx)
	if err != nil {
		return 0, apperr.Unavailable("database", err)
	}
	s.log.Warn("member profiles purged", zap.Int64("count", n), zap.Uint64("operator_id", actor.ProfileID))
	return n, nil
}
