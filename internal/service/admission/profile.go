package admission

import (
	"context"
	"errors"

	"github.com/iliyamo/member-directory/internal/apperr"
	"github.com/iliyamo/member-directory/internal/model"
	"github.com/iliyamo/member-directory/internal/repository"
)

// VisibilityFor decides whether viewer may read the full profile.  Guests
// never may, owners and operators always may, other members only once the
// profile is accepted.
func VisibilityFor(viewer model.Viewer, p model.Profile) bool {
	switch {
	case !viewer.Authenticated():
		return false
	case viewer.ProfileID == p.ID, viewer.IsOperator():
		return true
	}
	return p.Status == model.StatusAccepted
}

func privileged(viewer model.Viewer, id uint64) bool {
	return viewer.IsOperator() || (viewer.Authenticated() && viewer.ProfileID == id)
}

// GetProfile returns the view of profile id for viewer.  A hidden profile is
// reported exactly like a missing one.
func (s *Service) GetProfile(ctx context.Context, viewer model.Viewer, id uint64) (model.PublicProfile, error) {
	p, err := s.profiles.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.PublicProfile{}, apperr.NotFound("profile")
	}
	if err != nil {
		return model.PublicProfile{}, apperr.Unavailable("database", err)
	}
	if !VisibilityFor(viewer, p) {
		return model.PublicProfile{}, apperr.NotFound("profile")
	}
	return p.Public(privileged(viewer, id)), nil
}

// ProfileUpdate is an edit request.  Owners may only send Fields; contact
// details and role are operator-only.
type ProfileUpdate struct {
	Fields   model.ProfileFields `json:"profile"`
	Email    *string             `json:"email,omitempty"`
	Phone    *string             `json:"phone,omitempty"`
	AltPhone *string             `json:"alt_phone,omitempty"`
	Role     *model.Role         `json:"role,omitempty"`
}

func (u ProfileUpdate) touchesAccount() bool {
	return u.Email != nil || u.Phone != nil || u.AltPhone != nil || u.Role != nil
}

func (s *Service) UpdateProfile(ctx context.Context, actor model.Viewer, id uint64, u ProfileUpdate) (model.PublicProfile, error) {
	if !actor.Authenticated() {
		return model.PublicProfile{}, apperr.AuthGate(apperr.ReasonUnauthenticated)
	}
	if !actor.IsOperator() && (actor.ProfileID != id || u.touchesAccount()) {
		return model.PublicProfile{}, apperr.AuthGate(apperr.ReasonForbidden)
	}
	if err := validateFieldPatch(u.Fields); err != nil {
		return model.PublicProfile{}, err
	}

	patch := repository.ProfilePatch{Fields: u.Fields, Role: u.Role}
	if u.Role != nil && *u.Role != model.RoleAdmin && *u.Role != model.RoleMember {
		return model.PublicProfile{}, apperr.Validation("role", "role must be admin or member")
	}
	if u.Email != nil {
		e := NormalizeEmail(*u.Email)
		if err := validateEmail(e); err != nil {
			return model.PublicProfile{}, err
		}
		taken, err := s.profiles.EmailTaken(ctx, id, e)
		if err != nil {
			return model.PublicProfile{}, apperr.Unavailable("database", err)
		}
		if taken {
			return model.PublicProfile{}, apperr.Conflict("email")
		}
		patch.Email = &e
	}
	var phones []string
	for _, c := range []struct {
		field string
		in    *string
		out   **string
	}{{"phone", u.Phone, &patch.Phone}, {"alt_phone", u.AltPhone, &patch.AltPhone}} {
		if c.in == nil {
			continue
		}
		v := NormalizePhone(*c.in)
		// An empty alt_phone clears it; phone stays mandatory.
		if v != "" || c.field == "phone" {
			if err := validatePhone(c.field, v); err != nil {
				return model.PublicProfile{}, err
			}
			phones = append(phones, v)
		}
		*c.out = &v
	}
	if len(phones) > 0 {
		taken, err := s.profiles.PhoneTaken(ctx, id, phones...)
		if err != nil {
			return model.PublicProfile{}, apperr.Unavailable("database", err)
		}
		if taken {
			return model.PublicProfile{}, apperr.Conflict("phone")
		}
	}

	switch err := s.profiles.Update(ctx, id, patch); {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		return model.PublicProfile{}, apperr.NotFound("profile")
	case errors.Is(err, repository.ErrEmailExists):
		return model.PublicProfile{}, apperr.Conflict("email")
	case errors.Is(err, repository.ErrPhoneExists):
		return model.PublicProfile{}, apperr.Conflict("phone")
	default:
		return model.PublicProfile{}, apperr.Unavailable("database", err)
	}
	return s.GetProfile(ctx, actor, id)
}

// Availability is the registration form's live check.
type Availability struct {
	Taken      bool `json:"taken"`
	EmailTaken bool `json:"email_taken"`
	PhoneTaken bool `json:"phone_taken"`
}

// CheckAvailability probes email and/or phone without changing anything.
func (s *Service) CheckAvailability(ctx context.Context, email, phone string) (Availability, error) {
	email, phone = NormalizeEmail(email), NormalizePhone(phone)
	if email == "" && phone == "" {
		return Availability{}, apperr.Validation("query", "email or phone is required")
	}
	var a Availability
	var err error
	if email != "" {
		if a.EmailTaken, err = s.profiles.EmailTaken(ctx, 0, email); err != nil {
			return Availability{}, apperr.Unavailable("database", err)
		}
	}
	if phone != "" {
		if a.PhoneTaken, err = s.profiles.PhoneTaken(ctx, 0, phone); err != nil {
			return Availability{}, apperr.Unavailable("database", err)
		}
	}
	a.Taken = a.EmailTaken || a.PhoneTaken
	return a, nil
}
