// Package media stores profile photos and resolves them for display.
//
// Every slot may carry an inline blob, a remote object-store URL and a legacy
// reference.  Writers fill all three; Resolve picks the first representation
// that can be served in a fixed order (blob, object store read-through,
// absolute URL redirect, same-origin path, legacy upload token).
package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/member-directory/internal/apperr"
	"github.com/iliyamo/member-directory/internal/model"
	"github.com/iliyamo/member-directory/internal/repository"
)

const defaultContentType = "image/jpeg"

var (
	ErrPhotoNotFound = &apperr.NotFoundError{What: "photo"}
	// ErrReadThroughFailed is also a NotFoundError; callers see a missing
	// photo, logs and metrics see the difference.
	ErrReadThroughFailed = &apperr.NotFoundError{What: "photo"}
	ErrNotImage          = &apperr.ValidationError{Rule: "image", Rules: []string{"image"}, Msg: "upload is not an image"}
	ErrEmpty             = &apperr.ValidationError{Rule: "image", Rules: []string{"image"}, Msg: "upload is empty"}
	ErrSlot              = &apperr.ValidationError{Rule: "slot", Rules: []string{"slot"}, Msg: "photo slot must be 0-3"}
	ErrForeignURL        = &apperr.ValidationError{Rule: "photo_url", Rules: []string{"photo_url"}, Msg: "photo url is not an uploaded object"}
)

// ObjectStore is the blob backend.  Put returns the object's public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Store persists slot columns; *repository.ProfileRepo implements it.
type Store interface {
	GetPhotoSlot(ctx context.Context, id uint64, slot int) (model.PhotoSlot, error)
	SetPhotoSlot(ctx context.Context, id uint64, slot int, s model.PhotoSlot) error
	ClearPhotoSlot(ctx context.Context, id uint64, slot int) error
}

// Cache holds read-through bytes by object key; *repository.PhotoCache
// implements it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte) error
	Invalidate(ctx context.Context, key string) error
}

type Recorder interface{ PhotoRead(outcome string) }

type Config struct {
	Bucket       string
	HostPatterns []string // path.Match patterns against the URL host
	// PublicURL is the base the object store prefixes to keys, when it is
	// not the store's own host (e.g. a CDN).  Its path is stripped from keys.
	PublicURL    string
	ReadTimeout  time.Duration
	LegacyPrefix string
}

type Service struct {
	store   Store
	objects ObjectStore
	cache   Cache
	rec     Recorder
	cfg     Config
	log     *zap.Logger
	newID   func() string
	public  *url.URL
}

func NewService(store Store, objects ObjectStore, cache Cache, rec Recorder, cfg Config, log *zap.Logger) *Service {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 3 * time.Second
	}
	for i, p := range cfg.HostPatterns {
		cfg.HostPatterns[i] = strings.ToLower(p)
	}
	cfg.LegacyPrefix = strings.TrimRight(cfg.LegacyPrefix, "/")
	var public *url.URL
	if u, err := url.Parse(strings.TrimRight(cfg.PublicURL, "/")); err == nil && u.Host != "" {
		public = u
	}
	return &Service{
		public:  public,
		store:   store,
		objects: objects,
		cache:   cache,
		rec:     rec,
		cfg:     cfg,
		log:     log,
		newID:   func() string { return uuid.NewString() },
	}
}

// Descriptor identifies an uploaded photo.  Registration payloads carry
// descriptors returned by Stage, or inline Data.
type Descriptor struct {
	Slot        int    `json:"slot"`
	URL         string `json:"url,omitempty"`
	Key         string `json:"key,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"data,omitempty"`
}

// ReadResult is either inline bytes or a redirect target.
type ReadResult struct {
	Bytes       []byte
	ContentType string
	Redirect    string
}

func (r ReadResult) IsRedirect() bool { return r.Redirect != "" }

func sniff(data []byte) (contentType, ext string, err error) {
	if len(data) == 0 {
		return "", "", ErrEmpty
	}
	m := mimetype.Detect(data)
	if !strings.HasPrefix(m.String(), "image/") {
		return "", "", ErrNotImage
	}
	return m.String(), m.Extension(), nil
}

// Put uploads data for a slot and writes blob, remote URL and legacy mirror
// together.  Upload failures are not retried.
func (s *Service) Put(ctx context.Context, profileID uint64, slot int, data []byte) (Descriptor, error) {
	if !model.ValidSlot(slot) {
		return Descriptor{}, ErrSlot
	}
	ct, ext, err := sniff(data)
	if err != nil {
		return Descriptor{}, err
	}
	prev, err := s.store.GetPhotoSlot(ctx, profileID, slot)
	if errors.Is(err, repository.ErrNotFound) {
		return Descriptor{}, apperr.NotFound("profile")
	}
	if err != nil {
		return Descriptor{}, apperr.Unavailable("database", err)
	}

	key := fmt.Sprintf("profiles/%d/%d-%s%s", profileID, slot, s.newID(), ext)
	u, err := s.objects.Put(ctx, key, data, ct)
	if err != nil {
		s.log.Warn("photo upload failed", zap.Uint64("profile_id", profileID), zap.Int("slot", slot), zap.Error(err))
		return Descriptor{}, apperr.Unavailable("object store", err)
	}
	if err := s.store.SetPhotoSlot(ctx, profileID, slot, model.PhotoSlot{Blob: data, RemoteURL: u, LegacyRef: u}); err != nil {
		s.deleteObject(ctx, key)
		if errors.Is(err, repository.ErrNotFound) {
			return Descriptor{}, apperr.NotFound("profile")
		}
		return Descriptor{}, apperr.Unavailable("database", err)
	}
	s.forget(ctx, prev.RemoteURL)
	return Descriptor{Slot: slot, URL: u, Key: key, ContentType: ct}, nil
}

// Stage uploads a photo before the profile exists.  The descriptor goes
// into the registration payload and is turned into a slot by Materialize.
func (s *Service) Stage(ctx context.Context, slot int, data []byte) (Descriptor, error) {
	if !model.ValidSlot(slot) {
		return Descriptor{}, ErrSlot
	}
	ct, ext, err := sniff(data)
	if err != nil {
		return Descriptor{}, err
	}
	key := "staging/" + s.newID() + ext
	u, err := s.objects.Put(ctx, key, data, ct)
	if err != nil {
		return Descriptor{}, apperr.Unavailable("object store", err)
	}
	return Descriptor{Slot: slot, URL: u, Key: key, ContentType: ct}, nil
}

// Materialize turns a descriptor into slot columns.  Inline data is uploaded
// when possible; a URL descriptor must point at the object store and its
// bytes are copied into the blob mirror if they can be read now.
func (s *Service) Materialize(ctx context.Context, d Descriptor) (model.PhotoSlot, error) {
	if !model.ValidSlot(d.Slot) {
		return model.PhotoSlot{}, ErrSlot
	}
	if len(d.Data) > 0 {
		staged, err := s.Stage(ctx, d.Slot, d.Data)
		var ve *apperr.ValidationError
		if errors.As(err, &ve) {
			return model.PhotoSlot{}, err
		}
		if err != nil {
			s.log.Warn("inline photo kept as blob only", zap.Error(err))
			return model.PhotoSlot{Blob: d.Data}, nil
		}
		return model.PhotoSlot{Blob: d.Data, RemoteURL: staged.URL, LegacyRef: staged.URL}, nil
	}

	u := NormalizeURL(d.URL)
	key, ok := s.objectKey(u)
	if !ok {
		return model.PhotoSlot{}, ErrForeignURL
	}
	slot := model.PhotoSlot{RemoteURL: u, LegacyRef: u}
	if data, err := s.readThrough(ctx, key); err == nil {
		slot.Blob = data
	}
	return slot, nil
}

// Resolve returns what to serve for a slot.
func (s *Service) Resolve(ctx context.Context, profileID uint64, slot int) (ReadResult, error) {
	if !model.ValidSlot(slot) {
		return ReadResult{}, ErrPhotoNotFound
	}
	ps, err := s.store.GetPhotoSlot(ctx, profileID, slot)
	if errors.Is(err, repository.ErrNotFound) {
		return ReadResult{}, ErrPhotoNotFound
	}
	if err != nil {
		return ReadResult{}, apperr.Unavailable("database", err)
	}
	res, outcome, err := s.resolve(ctx, profileID, ps)
	if s.rec != nil {
		s.rec.PhotoRead(outcome)
	}
	return res, err
}

func (s *Service) resolve(ctx context.Context, profileID uint64, ps model.PhotoSlot) (ReadResult, string, error) {
	if len(ps.Blob) > 0 {
		return ReadResult{Bytes: ps.Blob, ContentType: contentTypeFor(ps.RemoteURL, ps.LegacyRef)}, "blob", nil
	}

	var candidates []string
	for _, c := range []string{ps.RemoteURL, ps.LegacyRef} {
		c = NormalizeURL(c)
		if c != "" && (len(candidates) == 0 || candidates[0] != c) {
			candidates = append(candidates, c)
		}
	}

	readFailed := false
	for _, c := range candidates {
		key, ok := s.objectKey(c)
		if !ok {
			continue
		}
		data, err := s.readThrough(ctx, key)
		if err == nil {
			return ReadResult{Bytes: data, ContentType: contentTypeFor(c)}, "read_through", nil
		}
		readFailed = true
	}
	for _, c := range candidates {
		if _, ok := s.objectKey(c); !ok && isAbsoluteHTTP(c) {
			return ReadResult{Redirect: c}, "redirect", nil
		}
	}
	for _, c := range candidates {
		if strings.HasPrefix(c, "/") && !strings.HasPrefix(c, "//") {
			return ReadResult{Redirect: c}, "path", nil
		}
	}
	for _, c := range candidates {
		if ref, ok := s.legacyPath(profileID, c); ok {
			return ReadResult{Redirect: ref}, "legacy", nil
		}
	}
	if readFailed {
		return ReadResult{}, "read_through_failed", ErrReadThroughFailed
	}
	return ReadResult{}, "missing", ErrPhotoNotFound
}

// Clear nulls all three representations of a slot.
func (s *Service) Clear(ctx context.Context, profileID uint64, slot int) error {
	if !model.ValidSlot(slot) {
		return ErrSlot
	}
	prev, err := s.store.GetPhotoSlot(ctx, profileID, slot)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("profile")
	}
	if err != nil {
		return apperr.Unavailable("database", err)
	}
	if err := s.store.ClearPhotoSlot(ctx, profileID, slot); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("profile")
		}
		return apperr.Unavailable("database", err)
	}
	s.forget(ctx, prev.RemoteURL)
	return nil
}

// Purge deletes the objects behind urls and their cache entries, best effort.
func (s *Service) Purge(ctx context.Context, urls ...string) {
	for _, u := range urls {
		s.forget(ctx, u)
	}
}

func (s *Service) forget(ctx context.Context, rawURL string) {
	key, ok := s.objectKey(NormalizeURL(rawURL))
	if !ok {
		return
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.log.Warn("photo cache invalidate failed", zap.String("key", key), zap.Error(err))
		}
	}
	s.deleteObject(ctx, key)
}

func (s *Service) deleteObject(ctx context.Context, key string) {
	if err := s.objects.Delete(ctx, key); err != nil {
		s.log.Warn("photo object delete failed", zap.String("key", key), zap.Error(err))
	}
}

// readThrough fetches an object with a per-attempt timeout and one retry.
func (s *Service) readThrough(ctx context.Context, key string) ([]byte, error) {
	if s.cache != nil {
		if data, ok := s.cache.Get(ctx, key); ok {
			return data, nil
		}
	}
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		actx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		data, err := s.objects.Get(actx, key)
		cancel()
		if err == nil {
			if s.cache != nil {
				if err := s.cache.Set(ctx, key, data); err != nil {
					s.log.Debug("photo cache set failed", zap.Error(err))
				}
			}
			return data, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	s.log.Warn("photo read-through failed", zap.String("key", key), zap.Error(lastErr))
	return nil, lastErr
}

// objectKey extracts the object key when raw points at the object store.
func (s *Service) objectKey(raw string) (string, bool) {
	if !isAbsoluteHTTP(raw) {
		return "", false
	}
	u, _ := url.Parse(raw)
	host := strings.ToLower(u.Host)
	if s.public != nil && strings.EqualFold(u.Host, s.public.Host) {
		if key, ok := strings.CutPrefix(u.Path, s.public.Path+"/"); ok && key != "" {
			return key, true
		}
	}
	matched := false
	for _, p := range s.cfg.HostPatterns {
		if ok, _ := path.Match(p, host); ok || p == host {
			matched = true
			break
		}
		if ok, _ := path.Match(p, strings.ToLower(u.Hostname())); ok {
			matched = true
			break
		}
	}
	if !matched {
		return "", false
	}
	key := strings.TrimPrefix(u.Path, "/")
	// path-style URLs carry the bucket as the first segment
	if b := s.cfg.Bucket; b != "" && !strings.HasPrefix(host, b+".") {
		key = strings.TrimPrefix(key, b+"/")
	}
	if key == "" {
		return "", false
	}
	return key, true
}

// legacyPath maps an opaque upload token to the same-origin legacy route.
func (s *Service) legacyPath(profileID uint64, token string) (string, bool) {
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, ":?#\\ ") || strings.HasPrefix(token, "/") {
		return "", false
	}
	segs := strings.Split(token, "/")
	for i, seg := range segs {
		if seg == "" || seg == "." || seg == ".." {
			return "", false
		}
		segs[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/%d/%s", s.cfg.LegacyPrefix, profileID, strings.Join(segs, "/")), true
}

// NormalizeURL repairs single-slash scheme separators ("https:/host") left by
// path joins.  Applying it twice changes nothing.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	for _, scheme := range []string{"https", "http"} {
		p := scheme + ":/"
		if strings.HasPrefix(lower, p) && !strings.HasPrefix(lower, p+"/") {
			return scheme + "://" + raw[len(p):]
		}
	}
	return raw
}

func isAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".avif": "image/avif",
	".heic": "image/heic",
	".bmp":  "image/bmp",
}

// contentTypeFor infers the type from the first reference with a known
// image extension.
func contentTypeFor(refs ...string) string {
	for _, r := range refs {
		p := r
		if u, err := url.Parse(r); err == nil {
			p = u.Path
		}
		if ct, ok := imageTypes[strings.ToLower(path.Ext(p))]; ok {
			return ct
		}
	}
	return defaultContentType
}
