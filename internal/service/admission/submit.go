package admission

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/member-directory/internal/apperr"
	"github.com/iliyamo/member-directory/internal/model"
	"github.com/iliyamo/member-directory/internal/repository"
	"github.com/iliyamo/member-directory/internal/service/allocator"
	"github.com/iliyamo/member-directory/internal/service/credential"
	"github.com/iliyamo/member-directory/internal/service/mailer"
	"github.com/iliyamo/member-directory/internal/service/media"
)

// Registration is the intake payload.  Photos are descriptors from the
// staging upload or inline bytes.
type Registration struct {
	Email    string              `json:"email"`
	Password string              `json:"password"`
	Phone    string              `json:"phone"`
	AltPhone string              `json:"alt_phone,omitempty"`
	Fields   model.ProfileFields `json:"profile"`
	Photos   []media.Descriptor  `json:"photos"`
}

type SubmitResult struct {
	ProfileID              uint64 `json:"profile_id"`
	VerificationDispatched bool   `json:"verification_dispatched"`
	VerificationLink       string `json:"verification_link,omitempty"`
}

func (r *Registration) normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.Phone = NormalizePhone(r.Phone)
	r.AltPhone = NormalizePhone(r.AltPhone)
}

func (r Registration) validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if err := validatePhone("phone", r.Phone); err != nil {
		return err
	}
	if r.AltPhone != "" {
		if err := validatePhone("alt_phone", r.AltPhone); err != nil {
			return err
		}
		if r.AltPhone == r.Phone {
			return apperr.Validation("alt_phone", "alt_phone must differ from phone")
		}
	}
	if err := credential.CheckPolicy(r.Password); err != nil {
		return err
	}
	if err := validateRequired(r.Fields); err != nil {
		return err
	}

	var seen [model.PhotoSlots]bool
	n := 0
	for _, d := range r.Photos {
		if !model.ValidSlot(d.Slot) {
			return media.ErrSlot
		}
		if seen[d.Slot] {
			return apperr.Validation("photos", "photo slot %d given twice", d.Slot)
		}
		seen[d.Slot] = true
		if len(d.Data) > 0 || d.URL != "" {
			n++
		}
	}
	if n < MinPhotos || n > MaxPhotos {
		return apperr.Validation("photos", "between %d and %d photos are required", MinPhotos, MaxPhotos)
	}
	return nil
}

// Submit registers a new profile under review.  Profile, notification and
// verification token are written in one transaction; the verification mail
// is sent after commit and its failure only shows in the result.
func (s *Service) Submit(ctx context.Context, reg Registration) (SubmitResult, error) {
	reg.normalize()
	if err := reg.validate(); err != nil {
		return SubmitResult{}, err
	}

	taken, err := s.profiles.EmailTaken(ctx, 0, reg.Email)
	if err != nil {
		return SubmitResult{}, apperr.Unavailable("database", err)
	}
	if taken {
		return SubmitResult{}, apperr.Conflict("email")
	}
	taken, err = s.profiles.PhoneTaken(ctx, 0, reg.Phone, reg.AltPhone)
	if err != nil {
		return SubmitResult{}, apperr.Unavailable("database", err)
	}
	if taken {
		return SubmitResult{}, apperr.Conflict("phone")
	}

	// Status stays unset (NULL) until an operator decides.
	p := model.Profile{
		Email:  reg.Email,
		Phone:  &reg.Phone,
		Role:   model.RoleMember,
		Fields: reg.Fields,
	}
	if reg.AltPhone != "" {
		p.AltPhone = &reg.AltPhone
	}
	for _, d := range reg.Photos {
		if len(d.Data) == 0 && d.URL == "" {
			continue
		}
		slot, err := s.photos.Materialize(ctx, d)
		if err != nil {
			return SubmitResult{}, err
		}
		p.Photos[d.Slot] = slot
	}

	if p.PasswordHash, err = s.creds.Register(reg.Password); err != nil {
		return SubmitResult{}, err
	}
	rawToken, tokenHash, err := credential.NewVerificationToken()
	if err != nil {
		return SubmitResult{}, fmt.Errorf("verification token: %w", err)
	}
	p.VerificationTokenHash = &tokenHash

	if err := s.insert(ctx, &p); err != nil {
		return SubmitResult{}, err
	}
	if s.rec != nil {
		s.rec.Registered()
	}
	s.log.Info("profile registered", zap.Uint64("profile_id", p.ID))

	link := s.verifyLink(rawToken)
	res := SubmitResult{
		ProfileID:              p.ID,
		VerificationDispatched: s.send(ctx, mailer.VerificationMessage(p.Email, p.ID, link)),
	}
	if !res.VerificationDispatched && s.cfg.ExposeLink {
		res.VerificationLink = link
	}
	return res, nil
}

// insert allocates an id and creates the row, drawing a new id when the
// primary key rejects the previous one.
func (s *Service) insert(ctx context.Context, p *model.Profile) error {
	for attempt := 1; ; attempt++ {
		id, err := s.ids.Allocate(ctx)
		if errors.Is(err, allocator.ErrAllocationExhausted) {
			return apperr.Unavailable("id allocator", err)
		}
		if err != nil {
			return apperr.Unavailable("database", err)
		}
		p.ID = id
		err = s.profiles.Create(ctx, p)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrDuplicateID) && attempt < maxInsertAttempts:
			s.log.Warn("profile id taken at insert, reallocating", zap.Uint64("id", id), zap.Int("attempt", attempt))
			continue
		case errors.Is(err, repository.ErrDuplicateID):
			return apperr.Conflict("id")
		case errors.Is(err, repository.ErrEmailExists):
			return apperr.Conflict("email")
		case errors.Is(err, repository.ErrPhoneExists):
			return apperr.Conflict("phone")
		default:
			return apperr.Unavailable("database", err)
		}
	}
}
