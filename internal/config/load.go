package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentcomm/comm-server/internal/logger"
)

// Load builds a Config by layering, in increasing priority:
//
//  1. Defaults()
//  2. an optional config file (configPath, if non-empty)
//  3. an optional local-override file ("<configPath>.local" style, same dir)
//  4. environment variables (prefixed COMM_, nested via _ per viper convention)
//
// This mirrors the teacher's config/env.go (single os.Getenv layer) but
// generalizes it to the layered/deep-merge loading spec §6 requires, using
// viper the way the rest of the retrieved pack does.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", "error", err)
	}

	v := viper.New()
	applyDefaults(v, Defaults())

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config file %q: %w", configPath, err)
		}

		localPath := localOverridePath(configPath)
		lv := viper.New()
		lv.SetConfigFile(localPath)
		if err := lv.MergeInConfig(); err == nil {
			if err := v.MergeConfigMap(lv.AllSettings()); err != nil {
				return nil, fmt.Errorf("merge local override %q: %w", localPath, err)
			}
		}
	}

	v.SetEnvPrefix("COMM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v)

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

func localOverridePath(configPath string) string {
	if idx := strings.LastIndex(configPath, "."); idx > 0 {
		return configPath[:idx] + ".local" + configPath[idx:]
	}
	return configPath + ".local"
}

func applyDefaults(v interface{ SetDefault(string, any) }, cfg *Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.sslenabled", cfg.Server.SSLEnabled)
	v.SetDefault("server.certfile", cfg.Server.CertFile)
	v.SetDefault("server.keyfile", cfg.Server.KeyFile)
	v.SetDefault("server.environment", cfg.Server.Environment)
	v.SetDefault("cors.allowedorigins", cfg.CORS.AllowedOrigins)
	v.SetDefault("database.url", cfg.Database.URL)
	v.SetDefault("database.redisurl", cfg.Database.RedisURL)
	v.SetDefault("jwt.secret", cfg.JWT.Secret)
	v.SetDefault("jwt.algorithm", cfg.JWT.Algorithm)
	v.SetDefault("jwt.accesstokenttl", cfg.JWT.AccessTokenTTL)
	v.SetDefault("jwt.refreshtokenttl", cfg.JWT.RefreshTokenTTL)
	v.SetDefault("apitoken.prefix", cfg.APIToken.Prefix)
	v.SetDefault("apitoken.secret", cfg.APIToken.Secret)
	v.SetDefault("ratelimit.requestsperminute", cfg.RateLimit.RequestsPerMinute)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("session.stalethreshold", cfg.Session.StaleThreshold)
	v.SetDefault("session.disconnectthreshold", cfg.Session.DisconnectThreshold)
	v.SetDefault("session.stalesweepinterval", cfg.Session.StaleSweepInterval)
	v.SetDefault("session.disconnectsweepinterval", cfg.Session.DisconnectSweepInterval)
	v.SetDefault("session.queuewarningthreshold", cfg.Session.QueueWarningThreshold)
	v.SetDefault("discussion.defaulttimeoutseconds", cfg.Discussion.DefaultTimeoutSeconds)
	v.SetDefault("discussion.consensusthreshold", cfg.Discussion.ConsensusThreshold)
}

// bindEnv makes every key reachable from environment variables explicit,
// since AutomaticEnv alone only resolves keys viper already knows about
// from SetDefault/config files — bind the ones a fresh environment-only
// deployment would set.
func bindEnv(v *viper.Viper) {
	keys := []string{
		"server.host", "server.port", "server.sslenabled", "server.certfile",
		"server.keyfile", "server.environment",
		"cors.allowedorigins",
		"database.url", "database.redisurl",
		"jwt.secret", "jwt.algorithm", "jwt.accesstokenttl", "jwt.refreshtokenttl",
		"apitoken.prefix", "apitoken.secret",
		"ratelimit.requestsperminute",
		"log.level", "log.format",
		"session.stalethreshold", "session.disconnectthreshold",
		"session.stalesweepinterval", "session.disconnectsweepinterval",
		"session.queuewarningthreshold",
		"discussion.defaulttimeoutseconds", "discussion.consensusthreshold",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}
