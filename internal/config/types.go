package config

import "time"

// Config is the single source of truth for the broker fabric's runtime
// settings. Every field named in spec §6 "Configuration inputs" has a home
// here; nothing else reads os.Getenv directly once Load has run.
type Config struct {
	Server     ServerConfig
	CORS       CORSConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	APIToken   APITokenConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Session    SessionConfig
	Discussion DiscussionConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	SSLEnabled  bool
	CertFile    string
	KeyFile     string
	Environment string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// DatabaseConfig describes the connection to the delegated persistence
// layer. The core never dials this itself — it is handed to whatever
// storage.Backend implementation the caller constructs.
type DatabaseConfig struct {
	URL      string
	RedisURL string
}

type JWTConfig struct {
	Secret            string
	Algorithm         string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
}

type APITokenConfig struct {
	Prefix string
	Secret string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type LogConfig struct {
	Level  string
	Format string
}

// SessionConfig carries the Session Manager thresholds that are not
// per-project quotas (those live on project.Config).
type SessionConfig struct {
	StaleThreshold        time.Duration
	DisconnectThreshold   time.Duration
	StaleSweepInterval    time.Duration
	DisconnectSweepInterval time.Duration
	QueueWarningThreshold float64 // fraction of capacity, e.g. 0.8
}

type DiscussionConfig struct {
	DefaultTimeoutSeconds int
	ConsensusThreshold    float64
}

// Defaults returns the built-in configuration baseline, the first layer of
// the defaults -> file -> local-override -> environment merge.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			SSLEnabled:  false,
			Environment: "development",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{},
		},
		Database: DatabaseConfig{},
		JWT: JWTConfig{
			Algorithm:       "HS256",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
		APIToken: APITokenConfig{
			Prefix: "default",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Session: SessionConfig{
			StaleThreshold:          30 * time.Second,
			DisconnectThreshold:     90 * time.Second,
			StaleSweepInterval:      5 * time.Second,
			DisconnectSweepInterval: 10 * time.Second,
			QueueWarningThreshold:   0.8,
		},
		Discussion: DiscussionConfig{
			DefaultTimeoutSeconds: 300,
			ConsensusThreshold:    0.75,
		},
	}
}
