package config

import (
	"net/url"
	"strings"
	"time"
)

// ObjectStoreConfig selects and configures the photo object store.  Driver
// is "s3" (AWS SDK, region and credentials from the default chain) or
// "minio" (static keys against Endpoint).
type ObjectStoreConfig struct {
	Driver      string
	Bucket      string
	Region      string
	Endpoint    string // host:port for minio, optional custom endpoint for s3
	AccessKey   string
	SecretKey   string
	UseSSL      bool
	PublicURL   string   // base used to build object URLs, derived when empty
	HostPattern []string // hosts whose URLs are read through the store
	ReadTimeout time.Duration
}

// LoadObjectStoreConfig reads OBJECT_STORE_* variables.
func LoadObjectStoreConfig() ObjectStoreConfig {
	c := ObjectStoreConfig{
		Driver:      strings.ToLower(envStr("OBJECT_STORE_DRIVER", "s3")),
		Bucket:      envStr("OBJECT_STORE_BUCKET", "member-photos"),
		Region:      envStr("AWS_REGION", "us-east-1"),
		Endpoint:    envStr("OBJECT_STORE_ENDPOINT", ""),
		AccessKey:   envStr("OBJECT_STORE_ACCESS_KEY", ""),
		SecretKey:   envStr("OBJECT_STORE_SECRET_KEY", ""),
		UseSSL:      envBool("OBJECT_STORE_USE_SSL", true),
		PublicURL:   strings.TrimRight(envStr("OBJECT_STORE_PUBLIC_URL", ""), "/"),
		HostPattern: envList("OBJECT_STORE_HOSTS", "*.amazonaws.com"),
		ReadTimeout: envDur("OBJECT_STORE_READ_TIMEOUT", 3*time.Second),
	}
	if c.Endpoint != "" {
		host := c.Endpoint
		if i := strings.Index(host, "://"); i >= 0 {
			host = host[i+3:]
		}
		c.HostPattern = append(c.HostPattern, strings.TrimRight(host, "/"))
	}
	if u, err := url.Parse(c.PublicURL); err == nil && u.Host != "" {
		c.HostPattern = append(c.HostPattern, strings.ToLower(u.Host))
	}
	return c
}

// MediaCacheConfig controls the Redis read-through cache for photos fetched
// from the object store.  When Enabled is false or no Redis client is
// configured, every read goes to the store.
type MediaCacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

// LoadMediaCacheConfig reads MEDIA_CACHE_* variables.
func LoadMediaCacheConfig() MediaCacheConfig {
	return MediaCacheConfig{
		Enabled:      envBool("MEDIA_CACHE_ENABLED", true),
		TTL:          envDur("MEDIA_CACHE_TTL", 10*time.Minute),
		Prefix:       envStr("MEDIA_CACHE_PREFIX", "photo"),
		MaxBodyBytes: envInt("MEDIA_CACHE_MAX_BODY_BYTES", 2<<20),
	}
}

// LegacyPhotoPrefix is the same-origin path under which pre-object-store
// uploads are served.
func LegacyPhotoPrefix() string {
	return strings.TrimRight(envStr("LEGACY_PHOTO_PREFIX", "/uploads/profiles"), "/")
}
