package model

import "errors"

// PhotoSlots is the fixed number of photo positions per profile.
const PhotoSlots = 4

var ErrInvalidSlot = errors.New("photo slot out of range")

// PhotoKind tags which representation of a slot wins during resolution.
type PhotoKind int

const (
	PhotoEmpty PhotoKind = iota
	PhotoBlob
	PhotoRemote
	PhotoLegacy
)

// PhotoSlot holds the three historical representations of one photo.  Any
// subset may be present; writers populate all of them.  HasBlob is set by
// queries that skip the blob column.
type PhotoSlot struct {
	Blob      []byte
	HasBlob   bool
	RemoteURL string
	LegacyRef string
}

// Kind returns the representation resolution starts from.
func (s PhotoSlot) Kind() PhotoKind {
	switch {
	case len(s.Blob) > 0 || s.HasBlob:
		return PhotoBlob
	case s.RemoteURL != "":
		return PhotoRemote
	case s.LegacyRef != "":
		return PhotoLegacy
	}
	return PhotoEmpty
}

func (s PhotoSlot) Filled() bool { return s.Kind() != PhotoEmpty }

// ValidSlot reports whether n addresses one of the PhotoSlots positions.
func ValidSlot(n int) bool { return n >= 0 && n < PhotoSlots }
