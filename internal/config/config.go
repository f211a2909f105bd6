package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; optional sections live in their own structs so a
// deployment without e.g. a broker still starts.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBUser       string
	DBPass       string // empty allowed
	DBHost       string
	DBPort       string
	DBName       string
	DBMaxConns   int
	DBConnTTL    time.Duration
	AutoMigrate  bool   // apply schema on startup
	JWTSecret    string // secret used to sign access tokens
	AccessTTLMin int    // access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for password hashing

	// PublicBaseURL prefixes the links sent in verification and reset mails.
	PublicBaseURL string
	// ExposeVerifyLink returns the verification link in the registration
	// response when the mail could not be dispatched.
	ExposeVerifyLink bool
	MaxUploadBytes   int64

	Redis       RedisConfig
	ObjectStore ObjectStoreConfig
	MediaCache  MediaCacheConfig
	Mail        MailConfig
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	port := must("APP_PORT")
	return Config{
		Env:              envStr("APP_ENV", "dev"),
		Port:             port,
		DBUser:           must("DB_USER"),
		DBPass:           os.Getenv("DB_PASS"),
		DBHost:           must("DB_HOST"),
		DBPort:           envStr("DB_PORT", "3306"),
		DBName:           must("DB_NAME"),
		DBMaxConns:       envInt("DB_MAX_OPEN_CONNS", 25),
		DBConnTTL:        envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		AutoMigrate:      envBool("DB_AUTO_MIGRATE", true),
		JWTSecret:        must("JWT_SECRET"),
		AccessTTLMin:     envInt("ACCESS_TOKEN_TTL_MIN", 60),
		BcryptCost:       envInt("BCRYPT_COST", 10),
		PublicBaseURL:    strings.TrimRight(envStr("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		ExposeVerifyLink: envBool("VERIFY_LINK_FALLBACK", false),
		MaxUploadBytes:   int64(envInt("MAX_UPLOAD_BYTES", 8<<20)),
		Redis:            LoadRedisConfig(),
		ObjectStore:      LoadObjectStoreConfig(),
		MediaCache:       LoadMediaCacheConfig(),
		Mail:             LoadMailConfig(),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}

// envList splits a comma separated variable, dropping empty items.
func envList(k, d string) []string {
	var out []string
	for _, p := range strings.Split(envStr(k, d), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
