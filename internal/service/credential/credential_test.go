package credential

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/member-directory/internal/apperr"
	"github.com/iliyamo/member-directory/internal/model"
	"github.com/iliyamo/member-directory/internal/repository"
	"github.com/iliyamo/member-directory/internal/utils"
)

// memStore keeps profiles keyed by email.
type memStore struct {
	byEmail map[string]*model.Profile
	err     error
}

func newMemStore() *memStore { return &memStore{byEmail: map[string]*model.Profile{}} }

func (m *memStore) byID(id uint64) *model.Profile {
	for _, p := range m.byEmail {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (m *memStore) GetByEmail(_ context.Context, email string) (model.Profile, error) {
	if m.err != nil {
		return model.Profile{}, m.err
	}
	p, ok := m.byEmail[email]
	if !ok {
		return model.Profile{}, repository.ErrNotFound
	}
	return *p, nil
}

func (m *memStore) SetResetToken(_ context.Context, id uint64, h string, exp time.Time) error {
	p := m.byID(id)
	p.ResetTokenHash, p.ResetExpiresAt = &h, &exp
	return nil
}

func (m *memStore) FindByResetToken(_ context.Context, h string, now time.Time) (uint64, error) {
	for _, p := range m.byEmail {
		if p.ResetTokenHash != nil && *p.ResetTokenHash == h && p.ResetExpiresAt.After(now) {
			return p.ID, nil
		}
	}
	return 0, repository.ErrNotFound
}

func (m *memStore) CompleteReset(_ context.Context, id uint64, h, pw string) error {
	p := m.byID(id)
	if p == nil || p.ResetTokenHash == nil || *p.ResetTokenHash != h {
		return repository.ErrNotFound
	}
	p.PasswordHash, p.ResetTokenHash, p.ResetExpiresAt = pw, nil, nil
	return nil
}

func (m *memStore) SetVerificationToken(_ context.Context, id uint64, h string) error {
	p := m.byID(id)
	if p == nil {
		return repository.ErrNotFound
	}
	p.VerificationTokenHash = &h
	return nil
}

func (m *memStore) ConsumeVerification(_ context.Context, h string, at time.Time) (uint64, error) {
	for _, p := range m.byEmail {
		if p.VerificationTokenHash != nil && *p.VerificationTokenHash == h {
			p.VerificationTokenHash, p.VerifiedAt = nil, &at
			return p.ID, nil
		}
	}
	return 0, repository.ErrNotFound
}

type GateSuite struct {
	suite.Suite
	store *memStore
	gate  *Gate
	now   time.Time
}

func (s *GateSuite) SetupTest() {
	s.store = newMemStore()
	s.gate = New(s.store, bcrypt.MinCost, zap.NewNop())
	s.now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.gate.now = func() time.Time { return s.now }

	hash, err := utils.HashPassword("Abc12345!", bcrypt.MinCost)
	s.Require().NoError(err)
	s.store.byEmail["asha@example.com"] = &model.Profile{ID: 482913, Email: "asha@example.com", PasswordHash: hash, Role: model.RoleMember}
}

func TestGateSuite(t *testing.T) { suite.Run(t, new(GateSuite)) }

func (s *GateSuite) TestVerify() {
	p, err := s.gate.Verify(context.Background(), "asha@example.com", "Abc12345!")
	s.Require().NoError(err)
	s.Equal(uint64(482913), p.ID)

	_, err = s.gate.Verify(context.Background(), "asha@example.com", "wrong")
	s.ErrorIs(err, ErrBadCredentials)

	_, err = s.gate.Verify(context.Background(), "nobody@example.com", "Abc12345!")
	s.ErrorIs(err, ErrBadCredentials)
}

func (s *GateSuite) TestVerifyBackendFailure() {
	s.store.err = errors.New("conn reset")
	_, err := s.gate.Verify(context.Background(), "asha@example.com", "x")
	var ue *apperr.BackendUnavailableError
	s.ErrorAs(err, &ue)
}

func (s *GateSuite) TestResetLifecycle() {
	ctx := context.Background()
	req, err := s.gate.RequestReset(ctx, "asha@example.com")
	s.Require().NoError(err)
	s.Require().NotEmpty(req.Token)
	stored := s.store.byEmail["asha@example.com"]
	s.Equal(utils.HashToken(req.Token), *stored.ResetTokenHash)
	s.Equal(s.now.Add(time.Hour), *stored.ResetExpiresAt)

	s.Require().NoError(s.gate.CompleteReset(ctx, req.Token, "N3w-Passw0rd"))
	s.Nil(stored.ResetTokenHash)
	s.Nil(stored.ResetExpiresAt)
	s.True(utils.VerifyPassword(stored.PasswordHash, "N3w-Passw0rd"))

	// the token is single use
	s.ErrorIs(s.gate.CompleteReset(ctx, req.Token, "N3w-Passw0rd"), ErrInvalidOrExpiredToken)
}

func (s *GateSuite) TestResetUnknownEmailLooksSuccessful() {
	req, err := s.gate.RequestReset(context.Background(), "ghost@example.com")
	s.NoError(err)
	s.Empty(req.Token)
}

func (s *GateSuite) TestResetExpires() {
	ctx := context.Background()
	req, err := s.gate.RequestReset(ctx, "asha@example.com")
	s.Require().NoError(err)

	s.now = s.now.Add(ResetTTL + time.Second)
	s.ErrorIs(s.gate.CompleteReset(ctx, req.Token, "N3w-Passw0rd"), ErrInvalidOrExpiredToken)
}

func (s *GateSuite) TestResetRejectsWeakPassword() {
	var ve *apperr.ValidationError
	s.ErrorAs(s.gate.CompleteReset(context.Background(), "whatever", "short"), &ve)
}

func (s *GateSuite) TestVerificationConsumedOnce() {
	ctx := context.Background()
	raw, err := s.gate.IssueVerification(ctx, 482913)
	s.Require().NoError(err)

	p := *s.store.byEmail["asha@example.com"]
	s.ErrorIs(CanAuthenticate(p), ErrEmailNotVerified)

	id, err := s.gate.Consume(ctx, raw)
	s.Require().NoError(err)
	s.Equal(uint64(482913), id)
	s.NoError(CanAuthenticate(*s.store.byEmail["asha@example.com"]))

	_, err = s.gate.Consume(ctx, raw)
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *GateSuite) TestIssueVerificationUnknownProfile() {
	_, err := s.gate.IssueVerification(context.Background(), 1)
	var nf *apperr.NotFoundError
	s.ErrorAs(err, &nf)
}

func TestCheckPolicy(t *testing.T) {
	err := CheckPolicy("abc12345")
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, RuleUpper, ve.Rule)
	assert.Equal(t, []string{RuleUpper, RuleSymbol}, ve.Rules)

	assert.NoError(t, CheckPolicy("Abc12345!"))

	require.ErrorAs(t, CheckPolicy(""), &ve)
	assert.Equal(t, []string{RuleLength, RuleUpper, RuleLower, RuleDigit, RuleSymbol}, ve.Rules)

	require.ErrorAs(t, CheckPolicy("Aa1!"+strings.Repeat("x", MaxPasswordBytes)), &ve)
	assert.Equal(t, []string{RuleMaxLength}, ve.Rules)
}

func TestRegisterHashesWithBcrypt(t *testing.T) {
	g := New(newMemStore(), bcrypt.MinCost, zap.NewNop())
	h, err := g.Register("Abc12345!")
	require.NoError(t, err)
	assert.True(t, utils.VerifyPassword(h, "Abc12345!"))

	_, err = g.Register("abc12345")
	assert.Error(t, err)
}

func TestCanAuthenticate(t *testing.T) {
	tok := "h"
	now := time.Now()
	cases := []struct {
		name string
		p    model.Profile
		ok   bool
	}{
		{"pending member", model.Profile{Role: model.RoleMember, VerificationTokenHash: &tok}, false},
		{"verified member", model.Profile{Role: model.RoleMember, VerificationTokenHash: &tok, VerifiedAt: &now}, true},
		{"legacy member without token", model.Profile{Role: model.RoleMember}, true},
		{"unverified admin", model.Profile{Role: model.RoleAdmin, VerificationTokenHash: &tok}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := CanAuthenticate(c.p)
			if c.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrEmailNotVerified)
			}
		})
	}
}
