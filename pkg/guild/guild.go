package guild

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"ferris-bot/pkg/config"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

const (
	fallbackFerris = "🦀"
	fallbackOk     = "👌"
	ferrisName     = "ferris"
)

// Context is the resolved view of the one guild the bot serves.
type Context struct {
	GuildID snowflake.ID

	WelcomeChannelID snowflake.ID
	JoinLogChannelID snowflake.ID
	ModlogChannelID  snowflake.ID
	CouncilChannelID snowflake.ID
	InfoChannelID    snowflake.ID

	Rustacean *discord.Role
	Newcomer  *discord.Role
	Council   *discord.Role

	Ferris *discord.Emoji
	Ok     *discord.Emoji
}

// FerrisReaction is the correct answer on the welcome prompt.
func (c *Context) FerrisReaction() string {
	if c == nil || c.Ferris == nil {
		return fallbackFerris
	}
	return reaction(*c.Ferris)
}

func (c *Context) OkReaction() string {
	if c == nil || c.Ok == nil {
		return fallbackOk
	}
	return reaction(*c.Ok)
}

func reaction(e discord.Emoji) string {
	return fmt.Sprintf("%s:%s", e.Name, e.ID)
}

// Source is the part of the REST client needed to resolve a guild.
type Source interface {
	GetRoles(guildID snowflake.ID, opts ...rest.RequestOpt) ([]discord.Role, error)
	GetEmojis(guildID snowflake.ID, opts ...rest.RequestOpt) ([]discord.Emoji, error)
}

// Resolve looks up the configured roles and emojis. Missing ones are logged and left nil.
func Resolve(ctx context.Context, src Source, cfg *config.Config) (*Context, error) {
	c := &Context{
		GuildID:          cfg.GuildID,
		WelcomeChannelID: cfg.WelcomeChannelID,
		JoinLogChannelID: cfg.JoinLogChannelID,
		ModlogChannelID:  cfg.ModlogChannelID,
		CouncilChannelID: cfg.CouncilChannelID,
		InfoChannelID:    cfg.InfoChannelID,
	}

	roles, err := src.GetRoles(cfg.GuildID, rest.WithCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch roles: %w", err)
	}
	c.Rustacean = findRole(roles, cfg.RustaceanRoleID, "rustacean")
	c.Newcomer = findRole(roles, cfg.NewcomerRoleID, "newcomer")
	c.Council = findRole(roles, cfg.CouncilRoleID, "council")

	emojis, err := src.GetEmojis(cfg.GuildID, rest.WithCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch emojis: %w", err)
	}
	for i := range emojis {
		e := &emojis[i]
		switch {
		case cfg.FerrisEmojiID != 0 && e.ID == cfg.FerrisEmojiID:
			c.Ferris = e
		case cfg.FerrisEmojiID == 0 && e.Name == ferrisName && c.Ferris == nil:
			c.Ferris = e
		case e.Name == cfg.OkEmojiName:
			c.Ok = e
		}
	}
	if c.Ferris == nil {
		slog.Warn("guild: emoji ferris not loaded, falling back to unicode")
	}
	if c.Ok == nil {
		slog.Warn("guild: emoji ok not loaded, falling back to unicode", slog.String("emoji.name", cfg.OkEmojiName))
	}
	return c, nil
}

func findRole(roles []discord.Role, id snowflake.ID, name string) *discord.Role {
	if id == 0 {
		return nil
	}
	for i := range roles {
		if roles[i].ID == id {
			return &roles[i]
		}
	}
	slog.Warn(fmt.Sprintf("guild: role %s not loaded", name), slog.Any("role.id", id))
	return nil
}

// Registry publishes the current Context to concurrent readers.
type Registry struct {
	current atomic.Pointer[Context]
}

func (r *Registry) Store(c *Context) {
	r.current.Store(c)
}

// Load returns nil until the guild has become ready once.
func (r *Registry) Load() *Context {
	return r.current.Load()
}
