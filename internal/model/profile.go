package model

import (
	"encoding/json"
	"time"
)

// Role separates operators from ordinary members.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// ModerationStatus mirrors the nullable profiles.moderation_status column.
// The zero value is the unset state of rows that predate moderation.
type ModerationStatus string

const (
	StatusUnset    ModerationStatus = ""
	StatusPending  ModerationStatus = "pending"
	StatusAccepted ModerationStatus = "accepted"
	StatusRejected ModerationStatus = "rejected"
)

// UnderReview reports whether an operator still has to decide.  Unset and
// pending are the same state.
func (s ModerationStatus) UnderReview() bool {
	return s == StatusUnset || s == StatusPending
}

// ParseOutcome accepts the two terminal decisions an operator can make.
func ParseOutcome(s string) (ModerationStatus, bool) {
	switch ModerationStatus(s) {
	case StatusAccepted, StatusRejected:
		return ModerationStatus(s), true
	}
	return "", false
}

// Profile mirrors the 'profiles' table.  Credential columns never leave the
// service; see PublicProfile for the serialized view.
type Profile struct {
	ID       uint64
	Email    string
	Phone    *string
	AltPhone *string
	Role     Role
	Status   ModerationStatus

	PasswordHash          string
	ResetTokenHash        *string
	ResetExpiresAt        *time.Time
	VerificationTokenHash *string
	VerifiedAt            *time.Time

	Fields ProfileFields
	Photos [PhotoSlots]PhotoSlot

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileFields is the descriptive part of a profile.  Every field is
// optional and stored verbatim; Siblings is an opaque JSON document.
type ProfileFields struct {
	FirstName        *string         `json:"first_name,omitempty"`
	LastName         *string         `json:"last_name,omitempty"`
	Gender           *string         `json:"gender,omitempty"`
	DateOfBirth      *string         `json:"date_of_birth,omitempty"` // YYYY-MM-DD
	TimeOfBirth      *string         `json:"time_of_birth,omitempty"`
	PlaceOfBirth     *string         `json:"place_of_birth,omitempty"`
	MaritalStatus    *string         `json:"marital_status,omitempty"`
	Height           *string         `json:"height,omitempty"`
	Religion         *string         `json:"religion,omitempty"`
	Caste            *string         `json:"caste,omitempty"`
	Gotra            *string         `json:"gotra,omitempty"`
	Rashi            *string         `json:"rashi,omitempty"`
	Nakshatra        *string         `json:"nakshatra,omitempty"`
	MotherTongue     *string         `json:"mother_tongue,omitempty"`
	Education        *string         `json:"education,omitempty"`
	Occupation       *string         `json:"occupation,omitempty"`
	AnnualIncome     *string         `json:"annual_income,omitempty"`
	City             *string         `json:"city,omitempty"`
	State            *string         `json:"state,omitempty"`
	Country          *string         `json:"country,omitempty"`
	FatherName       *string         `json:"father_name,omitempty"`
	FatherOccupation *string         `json:"father_occupation,omitempty"`
	MotherName       *string         `json:"mother_name,omitempty"`
	MotherOccupation *string         `json:"mother_occupation,omitempty"`
	About            *string         `json:"about,omitempty"`
	Siblings         json.RawMessage `json:"siblings,omitempty"`
}

// Viewer is the caller of a request as established server-side.  The zero
// value is an unauthenticated guest.
type Viewer struct {
	ProfileID uint64
	Role      Role
}

func (v Viewer) Authenticated() bool { return v.ProfileID != 0 }

func (v Viewer) IsOperator() bool { return v.Authenticated() && v.Role == RoleAdmin }

// PublicProfile is what other members see.
type PublicProfile struct {
	ID       uint64           `json:"id"`
	Email    string           `json:"email,omitempty"`
	Phone    *string          `json:"phone,omitempty"`
	AltPhone *string          `json:"alt_phone,omitempty"`
	Role     Role             `json:"role,omitempty"`
	Status   ModerationStatus `json:"moderation_status,omitempty"`
	Verified bool             `json:"email_verified"`
	Photos   []int            `json:"photos"` // filled slot numbers
	ProfileFields
	CreatedAt time.Time `json:"created_at"`
}

// Public builds the serialized view.  Contact details and moderation state
// are only included for the owner and operators.
func (p Profile) Public(privileged bool) PublicProfile {
	out := PublicProfile{
		ID:            p.ID,
		Verified:      p.VerifiedAt != nil || p.VerificationTokenHash == nil,
		Photos:        []int{},
		ProfileFields: p.Fields,
		CreatedAt:     p.CreatedAt,
	}
	for i, s := range p.Photos {
		if s.Filled() {
			out.Photos = append(out.Photos, i)
		}
	}
	if privileged {
		out.Email = p.Email
		out.Phone = p.Phone
		out.AltPhone = p.AltPhone
		out.Role = p.Role
		out.Status = p.Status
		if out.Status == StatusUnset {
			out.Status = StatusPending
		}
	}
	return out
}
