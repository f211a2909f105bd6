package media

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/member-directory/internal/apperr"
	"github.com/iliyamo/member-directory/internal/model"
	"github.com/iliyamo/member-directory/internal/repository"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type fakeSlots struct {
	slots   map[uint64]*[model.PhotoSlots]model.PhotoSlot
	sets    int
	setErr  error
	readErr error
}

func newFakeSlots(ids ...uint64) *fakeSlots {
	f := &fakeSlots{slots: map[uint64]*[model.PhotoSlots]model.PhotoSlot{}}
	for _, id := range ids {
		f.slots[id] = &[model.PhotoSlots]model.PhotoSlot{}
	}
	return f
}

func (f *fakeSlots) GetPhotoSlot(_ context.Context, id uint64, slot int) (model.PhotoSlot, error) {
	if f.readErr != nil {
		return model.PhotoSlot{}, f.readErr
	}
	p, ok := f.slots[id]
	if !ok {
		return model.PhotoSlot{}, repository.ErrNotFound
	}
	return p[slot], nil
}

func (f *fakeSlots) SetPhotoSlot(_ context.Context, id uint64, slot int, s model.PhotoSlot) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	p, ok := f.slots[id]
	if !ok {
		return repository.ErrNotFound
	}
	p[slot] = s
	return nil
}

func (f *fakeSlots) ClearPhotoSlot(_ context.Context, id uint64, slot int) error {
	p, ok := f.slots[id]
	if !ok {
		return repository.ErrNotFound
	}
	p[slot] = model.PhotoSlot{}
	return nil
}

type fakeObjects struct {
	objects map[string][]byte
	gets    int
	deleted []string
	putErr  error
	getErr  error
	base    string
}

func newFakeObjects() *fakeObjects { return &fakeObjects{objects: map[string][]byte{}} }

func (f *fakeObjects) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.objects[key] = data
	if f.base != "" {
		return f.base + "/" + key, nil
	}
	return "https://member-photos.s3.amazonaws.com/" + key, nil
}

func (f *fakeObjects) Get(_ context.Context, key string) ([]byte, error) {
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return data, nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

type countingRecorder map[string]int

func (r countingRecorder) PhotoRead(outcome string) { r[outcome]++ }

const profileID = uint64(123456)

func newTestService(slots *fakeSlots, objects *fakeObjects, cache Cache) (*Service, countingRecorder) {
	rec := countingRecorder{}
	svc := NewService(slots, objects, cache, rec, Config{
		Bucket:       "member-photos",
		HostPatterns: []string{"*.amazonaws.com", "minio.internal:9000"},
		ReadTimeout:  time.Second,
		LegacyPrefix: "/uploads/profiles/",
	}, zap.NewNop())
	svc.newID = func() string { return "fixed" }
	return svc, rec
}

func withSlot(slots *fakeSlots, slot int, s model.PhotoSlot) {
	slots.slots[profileID][slot] = s
}

func TestResolveBlobNeverTouchesObjectStore(t *testing.T) {
	slots, objects := newFakeSlots(profileID), newFakeObjects()
	svc, rec := newTestService(slots, objects, nil)
	withSlot(slots, 0, model.PhotoSlot{
		Blob:      []byte("inline"),
		RemoteURL: "https://member-photos.s3.amazonaws.com/profiles/123456/0-a.png",
	})

	res, err := svc.Resolve(context.Background(), profileID, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("inline"), res.Bytes)
	assert.Equal(t, "image/png", res.ContentType)
	assert.False(t, res.IsRedirect())
	assert.Zero(t, objects.gets)
	assert.Equal(t, 1, rec["blob"])
}

func TestResolveBlobDefaultsToJPEG(t *testing.T) {
	slots := newFakeSlots(profileID)
	svc, _ := newTestService(slots, newFakeObjects(), nil)
	withSlot(slots, 1, model.PhotoSlot{Blob: []byte("x"), LegacyRef: "abc"})

	res, err := svc.Resolve(context.Background(), profileID, 1)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", res.ContentType)
}

func TestResolveReadsThroughAndCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := repository.NewPhotoCache(client, "photo", time.Minute, 0)

	slots, objects := newFakeSlots(profileID), newFakeObjects()
	objects.objects["profiles/123456/2-a.webp"] = []byte("webp-bytes")
	svc, rec := newTestService(slots, objects, cache)
	withSlot(slots, 2, model.PhotoSlot{RemoteURL: "https:/member-photos.s3.amazonaws.com/profiles/123456/2-a.webp"})

	for range 2 {
		res, err := svc.Resolve(context.Background(), profileID, 2)
		require.NoError(t, err)
		assert.Equal(t, []byte("webp-bytes"), res.Bytes)
		assert.Equal(t, "image/webp", res.ContentType)
	}
	assert.Equal(t, 1, objects.gets)
	assert.Equal(t, 2, rec["read_through"])
}

func TestResolveReadThroughFailureRetriesOnce(t *testing.T) {
	slots, objects := newFakeSlots(profileID), newFakeObjects()
	objects.getErr = errors.New("timeout")
	svc, rec := newTestService(slots, objects, nil)
	withSlot(slots, 0, model.PhotoSlot{
		RemoteURL: "https://member-photos.s3.amazonaws.com/k.jpg",
		LegacyRef: "https://member-photos.s3.amazonaws.com/k.jpg",
	})

	_, err := svc.Resolve(context.Background(), profileID, 0)
	assert.ErrorIs(t, err, ErrReadThroughFailed)
	var nf *apperr.NotFoundError
	assert.ErrorAs(t, err, &nf)
	assert.Equal(t, 2, objects.gets)
	assert.Equal(t, 1, rec["read_through_failed"])
}

func TestResolveReadThroughFailureFallsBackToLegacyPath(t *testing.T) {
	slots, objects := newFakeSlots(profileID), newFakeObjects()
	objects.getErr = errors.New("timeout")
	svc, _ := newTestService(slots, objects, nil)
	withSlot(slots, 0, model.PhotoSlot{
		RemoteURL: "https://member-photos.s3.amazonaws.com/k.jpg",
		LegacyRef: "/uploads/old/k.jpg",
	})

	res, err := svc.Resolve(context.Background(), profileID, 0)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/old/k.jpg", res.Redirect)
}

func TestResolvePathStyleObjectURL(t *testing.T) {
	slots, objects := newFakeSlots(profileID), newFakeObjects()
	objects.objects["profiles/1/a.jpg"] = []byte("jpg")
	svc, _ := newTestService(slots, objects, nil)
	withSlot(slots, 3, model.PhotoSlot{RemoteURL: "http://minio.internal:9000/member-photos/profiles/1/a.jpg"})

	res, err := svc.Resolve(context.Background(), profileID, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpg"), res.Bytes)
}

func TestResolveRedirects(t *testing.T) {
	cases := []struct {
		name string
		slot model.PhotoSlot
		want string
	}{
		{"foreign absolute url", model.PhotoSlot{RemoteURL: "https://cdn.example.com/a.jpg"}, "https://cdn.example.com/a.jpg"},
		{"repaired scheme", model.PhotoSlot{RemoteURL: "https:/cdn.example.com/a.jpg"}, "https://cdn.example.com/a.jpg"},
		{"same origin path", model.PhotoSlot{LegacyRef: "/static/p/1.jpg"}, "/static/p/1.jpg"},
		{"legacy token", model.PhotoSlot{LegacyRef: "1699999999-face.jpg"}, "/uploads/profiles/123456/1699999999-face.jpg"},
		{"absolute wins over path", model.PhotoSlot{RemoteURL: "/p.jpg", LegacyRef: "http://old.example.com/p.jpg"}, "http://old.example.com/p.jpg"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			slots, objects := newFakeSlots(profileID), newFakeObjects()
			svc, _ := newTestService(slots, objects, nil)
			withSlot(slots, 0, c.slot)

			res, err := svc.Resolve(context.Background(), profileID, 0)
			require.NoError(t, err)
			assert.Equal(t, c.want, res.Redirect)
			assert.Zero(t, objects.gets)
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	slots := newFakeSlots(profileID)
	svc, _ := newTestService(slots, newFakeObjects(), nil)

	_, err := svc.Resolve(context.Background(), profileID, 0)
	assert.ErrorIs(t, err, ErrPhotoNotFound)

	_, err = svc.Resolve(context.Background(), 999, 0)
	assert.ErrorIs(t, err, ErrPhotoNotFound)

	_, err = svc.Resolve(context.Background(), profileID, 7)
	assert.ErrorIs(t, err, ErrPhotoNotFound)

	withSlot(slots, 0, model.PhotoSlot{LegacyRef: "../../etc/passwd"})
	_, err = svc.Resolve(context.Background(), profileID, 0)
	assert.ErrorIs(t, err, ErrPhotoNotFound)
}

func TestResolveRejectsUnsafeLegacyTokens(t *testing.T) {
	slots := newFakeSlots(profileID)
	svc, _ := newTestService(slots, newFakeObjects(), nil)

	for _, ref := range []string{`c:\pics\a.jpg`, "a.jpg?v=2", "a#b.jpg", "my photo.jpg", "ftp:a.jpg", "a//b.jpg"} {
		withSlot(slots, 0, model.PhotoSlot{LegacyRef: ref})
		_, err := svc.Resolve(context.Background(), profileID, 0)
		assert.ErrorIs(t, err, ErrPhotoNotFound, ref)
	}

	withSlot(slots, 0, model.PhotoSlot{LegacyRef: "2019/face.jpg"})
	res, err := svc.Resolve(context.Background(), profileID, 0)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/profiles/123456/2019/face.jpg", res.Redirect)
}

func TestResolveDatabaseDown(t *testing.T) {
	slots := newFakeSlots(profileID)
	slots.readErr = errors.New("too many connections")
	svc, _ := newTestService(slots, newFakeObjects(), nil)

	_, err := svc.Resolve(context.Background(), profileID, 0)
	var ue *apperr.BackendUnavailableError
	assert.ErrorAs(t, err, &ue)
}

func TestNormalizeURLIsIdempotent(t *testing.T) {
	for _, in := range []string{
		"https:/host/a.jpg",
		"http:/host/a.jpg",
		"HTTPS:/host/a.jpg",
		"https://host/a.jpg",
		"/local/a.jpg",
		"token.jpg",
		"",
	} {
		once := NormalizeURL(in)
		assert.Equal(t, once, NormalizeURL(once), in)
		if strings.HasPrefix(strings.ToLower(in), "http") {
			assert.Contains(t, once, "://", in)
		}
	}
	assert.Equal(t, "https://host/a.jpg", NormalizeURL("https:/host/a.jpg"))
}

func TestPutWritesAllRepresentations(t *testing.T) {
	slots, objects := newFakeSlots(profileID), newFakeObjects()
	svc, _ := newTestService(slots, objects, nil)
	withSlot(slots, 1, model.PhotoSlot{RemoteURL: "https://member-photos.s3.amazonaws.com/profiles/123456/1-old.png"})

	d, err := svc.Put(context.Background(), profileID, 1, pngBytes)
	require.NoError(t, err)
	assert.Equal(t, "profiles/123456/1-fixed.png", d.Key)
	assert.Equal(t, "image/png", d.ContentType)

	got := slots.slots[profileID][1]
	assert.Equal(t, pngBytes, got.Blob)
	assert.Equal(t, d.URL, got.RemoteURL)
	assert.Equal(t, d.URL, got.LegacyRef)
	assert.Equal(t, []string{"profiles/123456/1-old.png"}, objects.deleted)
}

func TestPutUploadFailureWritesNothing(t *testing.T) {
	slots, objects := newFakeSlots(profileID), newFakeObjects()
	objects.putErr = errors.New("503 slow down")
	svc, _ := newTestService(slots, objects, nil)

	_, err := svc.Put(context.Background(), profileID, 0, pngBytes)
	var ue *apperr.BackendUnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Zero(t, slots.sets)
}

func TestPutRejectsNonImagesAndUnknownProfiles(t *testing.T) {
	slots, objects := newFakeSlots(profileID), newFakeObjects()
	svc, _ := newTestService(slots, objects, nil)

	_, err := svc.Put(context.Background(), profileID, 0, []byte("hello, world"))
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = svc.Put(context.Background(), profileID, 0, nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = svc.Put(context.Background(), 42, 0, pngBytes)
	var nf *apperr.NotFoundError
	assert.ErrorAs(t, err, &nf)
	assert.Empty(t, objects.objects)
}

func TestClearNullsSlotAndDropsObject(t *testing.T) {
	slots, objects := newFakeSlots(profileID), newFakeObjects()
	svc, _ := newTestService(slots, objects, nil)
	withSlot(slots, 2, model.PhotoSlot{
		Blob:      []byte("b"),
		RemoteURL: "https://member-photos.s3.amazonaws.com/profiles/123456/2-x.jpg",
		LegacyRef: "x.jpg",
	})

	require.NoError(t, svc.Clear(context.Background(), profileID, 2))
	assert.False(t, slots.slots[profileID][2].Filled())
	assert.Equal(t, []string{"profiles/123456/2-x.jpg"}, objects.deleted)

	_, err := svc.Resolve(context.Background(), profileID, 2)
	assert.ErrorIs(t, err, ErrPhotoNotFound)
}

func TestStageThenMaterialize(t *testing.T) {
	slots, objects := newFakeSlots(), newFakeObjects()
	svc, _ := newTestService(slots, objects, nil)

	d, err := svc.Stage(context.Background(), 0, pngBytes)
	require.NoError(t, err)
	assert.Equal(t, "staging/fixed.png", d.Key)

	s, err := svc.Materialize(context.Background(), Descriptor{Slot: 0, URL: d.URL})
	require.NoError(t, err)
	assert.Equal(t, pngBytes, s.Blob)
	assert.Equal(t, d.URL, s.RemoteURL)
	assert.Equal(t, d.URL, s.LegacyRef)
}

func TestMaterializeKeepsURLWhenStoreUnreadable(t *testing.T) {
	objects := newFakeObjects()
	objects.getErr = errors.New("down")
	svc, _ := newTestService(newFakeSlots(), objects, nil)

	s, err := svc.Materialize(context.Background(), Descriptor{Slot: 1, URL: "https://member-photos.s3.amazonaws.com/staging/a.jpg"})
	require.NoError(t, err)
	assert.Empty(t, s.Blob)
	assert.Equal(t, model.PhotoRemote, s.Kind())
}

func TestMaterializeRejectsForeignURLs(t *testing.T) {
	svc, _ := newTestService(newFakeSlots(), newFakeObjects(), nil)
	_, err := svc.Materialize(context.Background(), Descriptor{Slot: 0, URL: "https://evil.example.com/a.jpg"})
	assert.ErrorIs(t, err, ErrForeignURL)
}

func TestMaterializeInlineData(t *testing.T) {
	objects := newFakeObjects()
	objects.putErr = errors.New("down")
	svc, _ := newTestService(newFakeSlots(), objects, nil)

	s, err := svc.Materialize(context.Background(), Descriptor{Slot: 0, Data: pngBytes})
	require.NoError(t, err)
	assert.Equal(t, pngBytes, s.Blob)
	assert.Empty(t, s.RemoteURL)

	_, err = svc.Materialize(context.Background(), Descriptor{Slot: 0, Data: []byte("text")})
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestCDNPublicURLIsTreatedAsObjectStore(t *testing.T) {
	slots, objects := newFakeSlots(profileID), newFakeObjects()
	objects.base = "https://cdn.example.com/media"
	svc := NewService(slots, objects, nil, countingRecorder{}, Config{
		Bucket:       "member-photos",
		HostPatterns: []string{"*.amazonaws.com", "cdn.example.com"},
		PublicURL:    "https://cdn.example.com/media/",
	}, zap.NewNop())
	svc.newID = func() string { return "fixed" }
	ctx := context.Background()

	d, err := svc.Stage(ctx, 0, pngBytes)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/media/staging/fixed.png", d.URL)

	s, err := svc.Materialize(ctx, Descriptor{Slot: 0, URL: d.URL})
	require.NoError(t, err)
	assert.Equal(t, pngBytes, s.Blob)

	withSlot(slots, 3, model.PhotoSlot{RemoteURL: "https://CDN.example.com/media/staging/fixed.png"})
	res, err := svc.Resolve(ctx, profileID, 3)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, res.Bytes, "read through the store, not redirected")

	require.NoError(t, svc.Clear(ctx, profileID, 3))
	assert.Equal(t, []string{"staging/fixed.png"}, objects.deleted)
}
