package pkg

import (
	"context"
	"log/slog"
	"time"

	"ferris-bot/pkg/config"
	"ferris-bot/pkg/db"
	"ferris-bot/pkg/guild"
	"ferris-bot/pkg/metrics"
	"ferris-bot/pkg/reminders"
	"ferris-bot/pkg/verify"

	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"
)

type Bot struct {
	Config    *config.Config
	DB        *db.DB
	Guild     *guild.Registry
	Gate      *verify.Gate
	Reminders *reminders.Scheduler
	Readiness *metrics.Readiness
	StartedAt time.Time

	// SetStatus and Shutdown are bound to the gateway client in main.
	SetStatus func(ctx context.Context, status string) error
	Shutdown  func()
}

const wrongCommunityReaction = "🎮"

// VerificationPolicy resolves how a member joining guildID is gated. Stored
// overrides win over the environment, a failed lookup falls back to it.
func (b *Bot) VerificationPolicy(ctx context.Context, guildID snowflake.ID) (verify.Policy, error) {
	guildCfg, err := b.DB.GetGuildConfig(ctx, guildID)
	if err != nil {
		slog.Error("verify: error while getting guild config, using defaults", slog.Any("guild.id", guildID), tint.Err(err))
		guildCfg = config.Guild{}
	}
	return verificationPolicy(b.Config, guildCfg, b.Guild.Load()), nil
}

func verificationPolicy(cfg *config.Config, guildCfg config.Guild, gc *guild.Context) verify.Policy {
	policy := verify.Policy{
		Mode:      guildCfg.Mode(cfg.VerificationMode),
		Timeout:   guildCfg.Timeout(cfg.VerificationTimeout),
		ChannelID: cfg.WelcomeChannelID,
		RoleID:    cfg.NewcomerRoleID,
		Correct:   gc.FerrisReaction(),
		Wrong:     wrongCommunityReaction,
	}
	if policy.Mode == config.VerificationModeRole && policy.RoleID == 0 {
		slog.Warn("verify: role mode without a newcomer role, falling back to overlays")
		policy.Mode = config.VerificationModeOverlay
	}
	return policy
}
