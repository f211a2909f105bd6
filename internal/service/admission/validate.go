package admission

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/iliyamo/member-directory/internal/apperr"
	"github.com/iliyamo/member-directory/internal/model"
)

const (
	MinPhotos = 2
	MaxPhotos = model.PhotoSlots
)

var phoneRe = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// NormalizeEmail lowercases and trims; uniqueness is case-insensitive.
func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// NormalizePhone drops the separators people type between digit groups.
func NormalizePhone(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

func validateEmail(email string) error {
	if email == "" {
		return apperr.Validation("email", "email is required")
	}
	a, err := mail.ParseAddress(email)
	if err != nil || a.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return apperr.Validation("email", "email is not a valid address")
	}
	return nil
}

func validatePhone(field, phone string) error {
	if !phoneRe.MatchString(phone) {
		return apperr.Validation(field, "%s must be 7 to 15 digits with an optional leading +", field)
	}
	return nil
}

func validateDate(s string) error {
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return apperr.Validation("date_of_birth", "date_of_birth must be YYYY-MM-DD")
	}
	return nil
}

func blank(p *string) bool { return p == nil || strings.TrimSpace(*p) == "" }

// validateRequired checks the fields every registration must carry.
func validateRequired(f model.ProfileFields) error {
	for _, c := range []struct {
		name string
		v    *string
	}{{"first_name", f.FirstName}, {"gender", f.Gender}, {"date_of_birth", f.DateOfBirth}} {
		if blank(c.v) {
			return apperr.Validation(c.name, "%s is required", c.name)
		}
	}
	return validateDate(*f.DateOfBirth)
}

// validateFieldPatch rejects edits that would blank a required field.
func validateFieldPatch(f model.ProfileFields) error {
	for _, c := range []struct {
		name string
		v    *string
	}{{"first_name", f.FirstName}, {"gender", f.Gender}, {"date_of_birth", f.DateOfBirth}} {
		if c.v != nil && strings.TrimSpace(*c.v) == "" {
			return apperr.Validation(c.name, "%s cannot be empty", c.name)
		}
	}
	if f.DateOfBirth != nil {
		return validateDate(*f.DateOfBirth)
	}
	return nil
}
