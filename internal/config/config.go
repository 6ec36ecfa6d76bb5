package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the grading core.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	EventBase   string
	JWTSecret   string

	// Routing policy knobs. These are deployment policy, not design
	// constants.
	MinStaffBeforeML              int
	MinToUsePeer                  int
	StallTimeout                  time.Duration
	ExpireAfter                   time.Duration
	PeerGradersRequired           int
	RequiredPeerGradingPerStudent int
	SimilarityThreshold           float64
	ExcludeBannedGraders          bool
	PeerSearchWindow              int
	ReaperInterval                time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Grading Core")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("event.base", "grading")
	v.SetDefault("min.staff.before.ml", 100)
	v.SetDefault("min.to.use.peer", 10)
	v.SetDefault("stall.timeout", "30m")
	v.SetDefault("expire.after", "720h")
	v.SetDefault("peer.graders.required", 3)
	v.SetDefault("required.peer.grading.per.student", 3)
	v.SetDefault("similarity.threshold", "0.5")
	v.SetDefault("exclude.banned.graders", true)
	v.SetDefault("peer.search.window", 50)
	v.SetDefault("reaper.interval", "5m")

	stallTimeout, err := time.ParseDuration(v.GetString("stall.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid stall timeout: %w", err)
	}

	expireAfter, err := time.ParseDuration(v.GetString("expire.after"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid expiration age: %w", err)
	}

	reaperInterval, err := time.ParseDuration(v.GetString("reaper.interval"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid reaper interval: %w", err)
	}

	cfg := Config{
		AppName:                       v.GetString("app.name"),
		AppEnv:                        v.GetString("app.env"),
		AppPort:                       v.GetString("app.port"),
		DatabaseURL:                   v.GetString("database.url"),
		RedisURL:                      v.GetString("redis.url"),
		NATSURL:                       v.GetString("nats.url"),
		EventBase:                     v.GetString("event.base"),
		JWTSecret:                     v.GetString("jwt.secret"),
		MinStaffBeforeML:              v.GetInt("min.staff.before.ml"),
		MinToUsePeer:                  v.GetInt("min.to.use.peer"),
		StallTimeout:                  stallTimeout,
		ExpireAfter:                   expireAfter,
		PeerGradersRequired:           v.GetInt("peer.graders.required"),
		RequiredPeerGradingPerStudent: v.GetInt("required.peer.grading.per.student"),
		SimilarityThreshold:           v.GetFloat64("similarity.threshold"),
		ExcludeBannedGraders:          v.GetBool("exclude.banned.graders"),
		PeerSearchWindow:              v.GetInt("peer.search.window"),
		ReaperInterval:                reaperInterval,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.MinStaffBeforeML <= 0 {
		return Config{}, fmt.Errorf("minimum staff-graded count must be positive")
	}

	if cfg.PeerSearchWindow <= 0 {
		cfg.PeerSearchWindow = 50
	}

	return cfg, nil
}
