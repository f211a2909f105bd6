package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModerationStatusUnderReview(t *testing.T) {
	assert.True(t, StatusUnset.UnderReview())
	assert.True(t, StatusPending.UnderReview())
	assert.False(t, StatusAccepted.UnderReview())
	assert.False(t, StatusRejected.UnderReview())
}

func TestParseOutcome(t *testing.T) {
	s, ok := ParseOutcome("accepted")
	assert.True(t, ok)
	assert.Equal(t, StatusAccepted, s)
	_, ok = ParseOutcome("pending")
	assert.False(t, ok)
}

func TestPhotoSlotKindPrefersBlob(t *testing.T) {
	assert.Equal(t, PhotoEmpty, PhotoSlot{}.Kind())
	assert.Equal(t, PhotoBlob, PhotoSlot{Blob: []byte{1}, RemoteURL: "https://x"}.Kind())
	assert.Equal(t, PhotoBlob, PhotoSlot{HasBlob: true}.Kind())
	assert.Equal(t, PhotoRemote, PhotoSlot{RemoteURL: "https://x", LegacyRef: "a.jpg"}.Kind())
	assert.Equal(t, PhotoLegacy, PhotoSlot{LegacyRef: "a.jpg"}.Kind())
}

func TestPublicHidesContactForOthers(t *testing.T) {
	phone := "+15550100"
	p := Profile{ID: 123456, Email: "a@b.c", Phone: &phone, Role: RoleMember}
	p.Photos[2] = PhotoSlot{RemoteURL: "https://x/y.jpg"}

	pub := p.Public(false)
	assert.Empty(t, pub.Email)
	assert.Nil(t, pub.Phone)
	assert.Equal(t, []int{2}, pub.Photos)

	priv := p.Public(true)
	assert.Equal(t, "a@b.c", priv.Email)
	assert.Equal(t, StatusPending, priv.Status)
}

func TestViewer(t *testing.T) {
	assert.False(t, Viewer{}.Authenticated())
	assert.False(t, Viewer{Role: RoleAdmin}.IsOperator())
	assert.True(t, Viewer{ProfileID: 1, Role: RoleAdmin}.IsOperator())
}
