// Package config builds process configuration from the environment so main
// stays lean. Every knob has a development default; production deployments
// override via env vars.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the full process configuration.
type Config struct {
	Server    Server
	Postgres  Postgres
	Redis     Redis
	SmileID   SmileID
	FaceAPI   Endpoint
	DocAPI    Endpoint
	Upload    Upload
	RateLimit RateLimit
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	Env           string
	JWTSigningKey string
}

// Postgres holds the connection string for the primary store. Empty means
// "run on in-memory stores" (development, tests).
type Postgres struct {
	URL string
}

// Redis holds connection settings for the attempt limiter. Empty URL means
// Redis is not configured and the in-memory limiter store is used.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// SmileID configures the KYC vendor client.
type SmileID struct {
	PartnerID   string
	APIKey      string
	BaseURL     string
	CallbackURL string
}

// Endpoint is a generic verification endpoint (face match, document OCR).
type Endpoint struct {
	BaseURL string
	APIKey  string
}

// Upload configures the S3-backed file transfer gateway.
type Upload struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// RateLimit bounds verification attempts per user, protecting against
// hammering the paid vendor. Retries stay user-driven; this only caps them.
type RateLimit struct {
	MaxAttempts int
	Window      time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:          getenv("MONTOIT_ADDR", ":8080"),
			Env:           getenv("MONTOIT_ENV", "development"),
			JWTSigningKey: getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Postgres: Postgres{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getenvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getenvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getenvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getenvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getenvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		SmileID: SmileID{
			PartnerID:   getenv("SMILE_ID_PARTNER_ID", "demo_partner"),
			APIKey:      getenv("SMILE_ID_API_KEY", "demo_key"),
			BaseURL:     getenv("SMILE_ID_BASE_URL", "https://testapi.usesmileid.com"),
			CallbackURL: getenv("SMILE_ID_CALLBACK_URL", "http://localhost:8080/api/v1/verification/kyc/callback"),
		},
		FaceAPI: Endpoint{
			BaseURL: getenv("FACE_API_BASE_URL", "http://localhost:3001"),
			APIKey:  os.Getenv("FACE_API_KEY"),
		},
		DocAPI: Endpoint{
			BaseURL: getenv("DOCUMENT_API_BASE_URL", "http://localhost:3002"),
			APIKey:  os.Getenv("DOCUMENT_API_KEY"),
		},
		Upload: Upload{
			Region:          getenv("AWS_REGION", "eu-west-1"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			Bucket:          getenv("UPLOAD_BUCKET", "montoit-verifications"),
		},
		RateLimit: RateLimit{
			MaxAttempts: getenvInt("VERIFICATION_MAX_ATTEMPTS", 5),
			Window:      getenvDuration("VERIFICATION_ATTEMPT_WINDOW", time.Hour),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
