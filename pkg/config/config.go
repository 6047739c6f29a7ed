package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

var defaultPrefixes = []string{
	"?",
	"🦀 ",
	"🦀",
	"hey ferris can you please ",
	"hey ferris, can you please ",
	"hey fewwis can you please ",
	"hey fewwis, can you please ",
	"hey ferris can you ",
	"hey ferris, can you ",
	"hey fewwis can you ",
	"hey fewwis, can you ",
}

// Config is loaded once from the environment on startup.
type Config struct {
	Token       string
	Environment string
	LogLevel    string
	SentryDSN   string
	DatabaseURL string
	MetricsAddr string
	SourceURL   string
	Prefixes    []string

	GuildID snowflake.ID
	OwnerID snowflake.ID

	WelcomeChannelID snowflake.ID
	JoinLogChannelID snowflake.ID
	ModlogChannelID  snowflake.ID
	CouncilChannelID snowflake.ID
	InfoChannelID    snowflake.ID

	RustaceanRoleID snowflake.ID
	NewcomerRoleID  snowflake.ID
	CouncilRoleID   snowflake.ID

	FerrisEmojiID snowflake.ID
	OkEmojiName   string

	VerificationMode    VerificationMode
	VerificationTimeout time.Duration
}

func (c *Config) IsProduction() bool {
	return c.Environment == "PROD"
}

func Load() (*Config, error) {
	var errs []error
	id := func(key string, required bool) snowflake.ID {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			if required {
				errs = append(errs, fmt.Errorf("%s is required", key))
			}
			return 0
		}
		parsed, err := snowflake.Parse(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return parsed
	}

	cfg := &Config{
		Token:       envString("FERRIS_BOT_TOKEN", ""),
		Environment: envString("FERRIS_ENVIRONMENT", "DEV"),
		LogLevel:    envString("FERRIS_LOG_LEVEL", "info"),
		SentryDSN:   envString("SENTRY_DSN", ""),
		DatabaseURL: envString("DATABASE_URL", ""),
		MetricsAddr: envString("FERRIS_METRICS_ADDR", ":9100"),
		SourceURL:   envString("FERRIS_SOURCE_URL", "https://github.com/ivandardi/RustbotPython"),
		Prefixes:    envList("FERRIS_PREFIXES", defaultPrefixes),

		GuildID: id("FERRIS_GUILD_ID", true),
		OwnerID: id("FERRIS_OWNER_ID", false),

		WelcomeChannelID: id("FERRIS_WELCOME_CHANNEL_ID", true),
		JoinLogChannelID: id("FERRIS_JOINLOG_CHANNEL_ID", false),
		ModlogChannelID:  id("FERRIS_MODLOG_CHANNEL_ID", false),
		CouncilChannelID: id("FERRIS_COUNCIL_CHANNEL_ID", false),
		InfoChannelID:    id("FERRIS_INFO_CHANNEL_ID", false),

		RustaceanRoleID: id("FERRIS_RUSTACEAN_ROLE_ID", false),
		NewcomerRoleID:  id("FERRIS_NEWCOMER_ROLE_ID", false),
		CouncilRoleID:   id("FERRIS_COUNCIL_ROLE_ID", false),

		FerrisEmojiID: id("FERRIS_EMOJI_ID", false),
		OkEmojiName:   envString("FERRIS_OK_EMOJI", "rustOk"),

		VerificationTimeout: envDuration("FERRIS_VERIFICATION_TIMEOUT", 300*time.Second),
	}

	mode, ok := ParseVerificationMode(envString("FERRIS_VERIFICATION_MODE", "overlay"))
	if !ok {
		errs = append(errs, errors.New("FERRIS_VERIFICATION_MODE must be one of overlay, role"))
	}
	cfg.VerificationMode = mode

	if cfg.Token == "" {
		errs = append(errs, errors.New("FERRIS_BOT_TOKEN is required"))
	}
	if cfg.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if mode == VerificationModeRole && cfg.NewcomerRoleID == 0 {
		errs = append(errs, errors.New("FERRIS_NEWCOMER_ROLE_ID is required in role verification mode"))
	}
	if len(errs) != 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 { // plain seconds
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// envList splits on "|" since prefixes may contain commas and spaces.
func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, "|") {
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
