package config

import (
	"log"
	"os"
	"time"
)

// PenaltyPolicy selects what happens to a member caught reposting. The two
// styles are mutually exclusive per deployment.
type PenaltyPolicy string

const (
	// PolicyTempRole grants a restricted role that is removed automatically
	// after PenaltyDuration.
	PolicyTempRole PenaltyPolicy = "temp-role"
	// PolicyRevokeTrusted removes a standing trusted role; recovery is manual.
	PolicyRevokeTrusted PenaltyPolicy = "revoke-trusted"
)

// UnhashablePolicy decides what to do when an image cannot be fetched or
// hashed. Neither variant ever penalizes the member.
type UnhashablePolicy string

const (
	UnhashableSkip   UnhashablePolicy = "skip"
	UnhashableReject UnhashablePolicy = "reject"
)

type Config struct {
	Token      string
	MySQLDSN   string
	RedisURL   string
	StatusAddr string

	PenaltyPolicy    PenaltyPolicy
	PenaltyRoleName  string
	TrustedRoleName  string
	PenaltyDuration  time.Duration
	SweepInterval    time.Duration
	UnhashablePolicy UnhashablePolicy
}

func Load() Config {
	cfg := Config{
		Token:            os.Getenv("DISCORD_TOKEN"),
		MySQLDSN:         getenv("MYSQL_DSN", "repostbot:repostbot@tcp(127.0.0.1:3306)/repostbot"),
		RedisURL:         os.Getenv("REDIS_URL"),
		StatusAddr:       os.Getenv("STATUS_ADDR"),
		PenaltyPolicy:    PenaltyPolicy(getenv("PENALTY_POLICY", string(PolicyTempRole))),
		PenaltyRoleName:  getenv("PENALTY_ROLE_NAME", "Reposter"),
		TrustedRoleName:  getenv("TRUSTED_ROLE_NAME", "Certified"),
		PenaltyDuration:  getdur("PENALTY_DURATION", 24*time.Hour),
		SweepInterval:    getdur("SWEEP_INTERVAL", 30*time.Second),
		UnhashablePolicy: UnhashablePolicy(getenv("UNHASHABLE_POLICY", string(UnhashableSkip))),
	}

	if cfg.Token == "" {
		log.Fatal("DISCORD_TOKEN not set")
	}

	switch cfg.PenaltyPolicy {
	case PolicyTempRole, PolicyRevokeTrusted:
	default:
		log.Fatalf("PENALTY_POLICY must be %q or %q", PolicyTempRole, PolicyRevokeTrusted)
	}

	switch cfg.UnhashablePolicy {
	case UnhashableSkip, UnhashableReject:
	default:
		log.Fatalf("UNHASHABLE_POLICY must be %q or %q", UnhashableSkip, UnhashableReject)
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return d
}
