// Package admission runs the registration and moderation workflow: intake of
// new profiles, operator decisions over the inbox, visibility of full
// profiles and profile edits.
package admission

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/member-directory/internal/model"
	"github.com/iliyamo/member-directory/internal/repository"
	"github.com/iliyamo/member-directory/internal/service/credential"
	"github.com/iliyamo/member-directory/internal/service/mailer"
	"github.com/iliyamo/member-directory/internal/service/media"
)

// maxInsertAttempts bounds the allocate-then-insert loop when the primary
// key rejects a freshly drawn id.
const maxInsertAttempts = 3

// Profiles is the persistence the workflow needs; *repository.ProfileRepo
// implements it.
type Profiles interface {
	GetByID(ctx context.Context, id uint64) (model.Profile, error)
	GetByEmail(ctx context.Context, email string) (model.Profile, error)
	EmailTaken(ctx context.Context, exceptID uint64, email string) (bool, error)
	PhoneTaken(ctx context.Context, exceptID uint64, phones ...string) (bool, error)
	Create(ctx context.Context, p *model.Profile) error
	Decide(ctx context.Context, id uint64, status model.ModerationStatus) error
	Delete(ctx context.Context, id uint64) ([]string, error)
	DeleteMembers(ctx context.Context) (int64, error)
	Update(ctx context.Context, id uint64, patch repository.ProfilePatch) error
}

type Notifications interface {
	List(ctx context.Context) ([]model.NotificationEntry, error)
	DeleteByID(ctx context.Context, id uint64) error
}

type Allocator interface {
	Allocate(ctx context.Context) (uint64, error)
}

// Credentials is the part of *credential.Gate used here.
type Credentials interface {
	Register(password string) (string, error)
	IssueVerification(ctx context.Context, profileID uint64) (string, error)
	RequestReset(ctx context.Context, email string) (credential.ResetRequest, error)
}

// Photos is the part of *media.Service used here.
type Photos interface {
	Materialize(ctx context.Context, d media.Descriptor) (model.PhotoSlot, error)
	Purge(ctx context.Context, urls ...string)
}

type Recorder interface{ Registered() }

type Config struct {
	// BaseURL prefixes links in outbound mail.
	BaseURL string
	// ExposeLink puts the verification link in SubmitResult when the mail
	// was only logged.
	ExposeLink bool
}

type Service struct {
	profiles Profiles
	inbox    Notifications
	ids      Allocator
	creds    Credentials
	photos   Photos
	mail     mailer.Sender
	rec      Recorder
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
}

func New(profiles Profiles, inbox Notifications, ids Allocator, creds Credentials, photos Photos,
	mail mailer.Sender, rec Recorder, cfg Config, log *zap.Logger) *Service {
	return &Service{
		profiles: profiles,
		inbox:    inbox,
		ids:      ids,
		creds:    creds,
		photos:   photos,
		mail:     mail,
		rec:      rec,
		cfg:      cfg,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) verifyLink(token string) string {
	return s.cfg.BaseURL + "/v1/auth/verify-email?token=" + token
}

func (s *Service) resetLink(token string) string {
	return s.cfg.BaseURL + "/reset-password?token=" + token
}

// send delivers m and reports whether it left the process.  Failures are
// logged and never returned.
func (s *Service) send(ctx context.Context, m mailer.Message) bool {
	d, err := s.mail.Send(ctx, m)
	if err != nil {
		s.log.Warn("mail not dispatched", zap.String("kind", m.Kind), zap.Uint64("profile_id", m.ProfileID), zap.Error(err))
		return false
	}
	return d.Dispatched()
}
