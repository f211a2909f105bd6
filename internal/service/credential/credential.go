// Package credential owns password policy, password hashing, the e-mail
// verification gate and the reset / verification token lifecycle.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/iliyamo/member-directory/internal/apperr"
	"github.com/iliyamo/member-directory/internal/model"
	"github.com/iliyamo/member-directory/internal/repository"
	"github.com/iliyamo/member-directory/internal/utils"
)

// ResetTTL bounds how long a password reset link stays usable.
const ResetTTL = time.Hour

const MinPasswordLength = 8

// MaxPasswordBytes is the longest input bcrypt hashes without truncation.
const MaxPasswordBytes = 72

// Symbols accepted by the password policy.
const Symbols = "!@#$%^&*()-_=+[]{};:'\",.<>/?\\|`~"

// Password policy rule names, in the order they are checked.
const (
	RuleLength    = "min_length"
	RuleMaxLength = "max_length"
	RuleUpper     = "uppercase"
	RuleLower     = "lowercase"
	RuleDigit     = "digit"
	RuleSymbol    = "symbol"
	RuleToken     = "token"
	RulePasswords = "password"
)

var (
	ErrBadCredentials        = apperr.AuthGate(apperr.ReasonBadCredentials)
	ErrEmailNotVerified      = apperr.AuthGate(apperr.ReasonEmailNotVerified)
	ErrInvalidOrExpiredToken = &apperr.ValidationError{Rule: RuleToken, Rules: []string{RuleToken}, Msg: "invalid or expired token"}
	ErrInvalidToken          = &apperr.ValidationError{Rule: RuleToken, Rules: []string{RuleToken}, Msg: "invalid verification token"}
)

// Store is the persistence the gate needs; *repository.ProfileRepo implements it.
type Store interface {
	GetByEmail(ctx context.Context, email string) (model.Profile, error)
	SetResetToken(ctx context.Context, id uint64, tokenHash string, exp time.Time) error
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	CompleteReset(ctx context.Context, id uint64, tokenHash, passwordHash string) error
	SetVerificationToken(ctx context.Context, id uint64, tokenHash string) error
	ConsumeVerification(ctx context.Context, tokenHash string, at time.Time) (uint64, error)
}

type Gate struct {
	store Store
	cost  int
	log   *zap.Logger
	now   func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func New(store Store, bcryptCost int, log *zap.Logger) *Gate {
	return &Gate{store: store, cost: bcryptCost, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// CheckPolicy validates a password and reports every rule it misses.  The
// returned *apperr.ValidationError has Rule set to the first failure.
func CheckPolicy(password string) error {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(Symbols, r):
			hasSymbol = true
		}
	}
	var failed []string
	if len([]rune(password)) < MinPasswordLength {
		failed = append(failed, RuleLength)
	}
	if len(password) > MaxPasswordBytes {
		failed = append(failed, RuleMaxLength)
	}
	for _, c := range []struct {
		ok   bool
		rule string
	}{{hasUpper, RuleUpper}, {hasLower, RuleLower}, {hasDigit, RuleDigit}, {hasSymbol, RuleSymbol}} {
		if !c.ok {
			failed = append(failed, c.rule)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &apperr.ValidationError{
		Rule:  failed[0],
		Rules: failed,
		Msg:   "password does not meet policy: " + strings.Join(failed, ", "),
	}
}

// Register validates the password and returns its bcrypt hash.
func (g *Gate) Register(password string) (string, error) {
	if err := CheckPolicy(password); err != nil {
		return "", err
	}
	return utils.HashPassword(password, g.cost)
}

// Verify checks an email / password pair.  Unknown emails still pay for a
// bcrypt comparison so response time does not reveal registration.
func (g *Gate) Verify(ctx context.Context, email, password string) (model.Profile, error) {
	p, err := g.store.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		utils.VerifyPassword(g.dummy(), password)
		return model.Profile{}, ErrBadCredentials
	}
	if err != nil {
		return model.Profile{}, apperr.Unavailable("database", err)
	}
	if !utils.VerifyPassword(p.PasswordHash, password) {
		return model.Profile{}, ErrBadCredentials
	}
	return p, nil
}

func (g *Gate) dummy() string {
	g.dummyOnce.Do(func() {
		g.dummyHash, _ = utils.HashPassword("not-a-real-password", g.cost)
	})
	return g.dummyHash
}

// CanAuthenticate refuses members whose verification is still pending.
// Admins and rows that never had a verification token pass.
func CanAuthenticate(p model.Profile) error {
	if p.Role != model.RoleAdmin && p.VerificationTokenHash != nil && p.VerifiedAt == nil {
		return ErrEmailNotVerified
	}
	return nil
}

// NewVerificationToken returns a raw token for the mail and the hash to store.
func NewVerificationToken() (raw, hash string, err error) {
	raw, err = utils.NewOpaqueToken()
	if err != nil {
		return "", "", err
	}
	return raw, utils.HashToken(raw), nil
}

// IssueVerification replaces the profile's verification token.
func (g *Gate) IssueVerification(ctx context.Context, profileID uint64) (string, error) {
	raw, hash, err := NewVerificationToken()
	if err != nil {
		return "", err
	}
	if err := g.store.SetVerificationToken(ctx, profileID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperr.NotFound("profile")
		}
		return "", apperr.Unavailable("database", err)
	}
	return raw, nil
}

// Consume verifies the owner of token.  Tokens are single use.
func (g *Gate) Consume(ctx context.Context, token string) (uint64, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}
	id, err := g.store.ConsumeVerification(ctx, utils.HashToken(token), g.now())
	if errors.Is(err, repository.ErrNotFound) {
		return 0, ErrInvalidToken
	}
	if err != nil {
		return 0, apperr.Unavailable("database", err)
	}
	g.log.Info("email verified", zap.Uint64("profile_id", id))
	return id, nil
}

// ResetRequest is what the caller needs to mail a reset link.  Token is empty
// when the email is not registered; the HTTP response is the same either way.
type ResetRequest struct {
	Token     string
	ProfileID uint64
	Email     string
}

// RequestReset stores a fresh reset token for an existing email.
func (g *Gate) RequestReset(ctx context.Context, email string) (ResetRequest, error) {
	p, err := g.store.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		g.log.Debug("password reset for unknown email")
		return ResetRequest{}, nil
	}
	if err != nil {
		return ResetRequest{}, apperr.Unavailable("database", err)
	}
	raw, err := utils.NewOpaqueToken()
	if err != nil {
		return ResetRequest{}, err
	}
	if err := g.store.SetResetToken(ctx, p.ID, utils.HashToken(raw), g.now().Add(ResetTTL)); err != nil {
		return ResetRequest{}, apperr.Unavailable("database", err)
	}
	return ResetRequest{Token: raw, ProfileID: p.ID, Email: p.Email}, nil
}

// CompleteReset sets a new password if token is known and not expired, and
// clears the token.
func (g *Gate) CompleteReset(ctx context.Context, token, newPassword string) error {
	if err := CheckPolicy(newPassword); err != nil {
		return err
	}
	if token == "" {
		return ErrInvalidOrExpiredToken
	}
	hash := utils.HashToken(token)
	id, err := g.store.FindByResetToken(ctx, hash, g.now())
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidOrExpiredToken
	}
	if err != nil {
		return apperr.Unavailable("database", err)
	}
	pwHash, err := utils.HashPassword(newPassword, g.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := g.store.CompleteReset(ctx, id, hash, pwHash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return apperr.Unavailable("database", err)
	}
	g.log.Info("password reset completed", zap.Uint64("profile_id", id))
	return nil
}
