package handler

import (
	"context"

	"github.com/iliyamo/member-directory/internal/model"
	"github.com/iliyamo/member-directory/internal/service/admission"
	"github.com/iliyamo/member-directory/internal/service/credential"
	"github.com/iliyamo/member-directory/internal/service/media"
)

// Credentials is the part of *credential.Gate the auth routes call.
type Credentials interface {
	Verify(ctx context.Context, email, password string) (model.Profile, error)
	Consume(ctx context.Context, token string) (uint64, error)
	CompleteReset(ctx context.Context, token, newPassword string) error
}

// Workflow is implemented by *admission.Service.
type Workflow interface {
	Submit(ctx context.Context, reg admission.Registration) (admission.SubmitResult, error)
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	CheckAvailability(ctx context.Context, email, phone string) (admission.Availability, error)
	GetProfile(ctx context.Context, viewer model.Viewer, id uint64) (model.PublicProfile, error)
	UpdateProfile(ctx context.Context, actor model.Viewer, id uint64, u admission.ProfileUpdate) (model.PublicProfile, error)
	Decide(ctx context.Context, actor model.Viewer, id uint64, outcome string) error
	Dismiss(ctx context.Context, actor model.Viewer, notificationID uint64) error
	ListNotifications(ctx context.Context, actor model.Viewer) ([]model.NotificationEntry, error)
	Delete(ctx context.Context, actor model.Viewer, id uint64) error
	PurgeMembers(ctx context.Context, actor model.Viewer) (int64, error)
}

// Photos is implemented by *media.Service.
type Photos interface {
	Stage(ctx context.Context, slot int, data []byte) (media.Descriptor, error)
	Put(ctx context.Context, profileID uint64, slot int, data []byte) (media.Descriptor, error)
	Resolve(ctx context.Context, profileID uint64, slot int) (media.ReadResult, error)
	Clear(ctx context.Context, profileID uint64, slot int) error
}

var (
	_ Credentials = (*credential.Gate)(nil)
	_ Workflow    = (*admission.Service)(nil)
	_ Photos      = (*media.Service)(nil)
)
