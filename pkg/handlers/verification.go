package handlers

import (
	"errors"
	"log/slog"
	"time"

	"ferris-bot/pkg/config"
	"ferris-bot/pkg/duration"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/lmittmann/tint"
)

const (
	minVerificationTimeout = 30 * time.Second
	maxVerificationTimeout = time.Hour
)

func (h *Handler) respond(event *handler.CommandEvent, format string, args ...any) error {
	return event.CreateMessage(discord.NewMessageCreate().WithContentf(format, args...).WithEphemeral(true))
}

// allowed answers the interaction itself when the member may not configure the bot.
func (h *Handler) allowed(event *handler.CommandEvent) (bool, error) {
	member := event.Member()
	if member != nil && member.Permissions.Has(discord.PermissionManageGuild) {
		return true, nil
	}
	return false, h.respond(event, "%s", ErrNotAllowed.Error())
}

func (h *Handler) guildConfig(event *handler.CommandEvent) (config.Guild, bool, error) {
	if ok, err := h.allowed(event); !ok {
		return config.Guild{}, false, err
	}
	cfg, err := h.Bot.DB.GetGuildConfig(h.ctx, *event.GuildID())
	if err != nil {
		slog.Error("handlers: error while getting guild config", slog.Any("guild.id", *event.GuildID()), tint.Err(err))
		return config.Guild{}, false, h.respond(event, "There was an error while getting the guild configuration.")
	}
	return cfg, true, nil
}

func (h *Handler) HandleVerificationModeCurrent(event *handler.CommandEvent) error {
	cfg, ok, err := h.guildConfig(event)
	if !ok {
		return err
	}
	return h.respond(event, "Current mode is set to **%s**.", cfg.Mode(h.Bot.Config.VerificationMode))
}

func (h *Handler) HandleVerificationModeSet(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	if ok, err := h.allowed(event); !ok {
		return err
	}
	mode, ok := config.ParseVerificationMode(data.String("mode"))
	if !ok {
		return h.respond(event, "Unknown verification mode.")
	}
	if mode == config.VerificationModeRole {
		if gc := h.Bot.Guild.Load(); gc == nil || gc.Newcomer == nil {
			return h.respond(event, "No newcomer role is configured, role mode is unavailable.")
		}
	}
	if err := h.Bot.DB.UpdateVerificationMode(h.ctx, *event.GuildID(), mode); err != nil {
		slog.Error("handlers: error while updating verification mode", slog.Any("mode", mode), slog.Any("guild.id", *event.GuildID()), tint.Err(err))
		return h.respond(event, "There was an error while updating the verification mode.")
	}
	return h.respond(event, "Mode has been set to **%s**.", mode)
}

func (h *Handler) HandleVerificationTimeoutCurrent(event *handler.CommandEvent) error {
	cfg, ok, err := h.guildConfig(event)
	if !ok {
		return err
	}
	return h.respond(event, "Newcomers have **%s** to react.", cfg.Timeout(h.Bot.Config.VerificationTimeout))
}

func (h *Handler) HandleVerificationTimeoutSet(data discord.SlashCommandInteractionData, event *handler.CommandEvent) error {
	if ok, err := h.allowed(event); !ok {
		return err
	}
	timeout, err := ParseVerificationTimeout(data.String("duration"))
	if err != nil {
		return h.respond(event, "%s", err.Error())
	}
	if err := h.Bot.DB.UpdateVerificationTimeout(h.ctx, *event.GuildID(), int32(timeout/time.Second)); err != nil {
		slog.Error("handlers: error while updating verification timeout", slog.Any("guild.id", *event.GuildID()), tint.Err(err))
		return h.respond(event, "There was an error while updating the verification timeout.")
	}
	return h.respond(event, "Timeout has been set to **%s**.", timeout)
}

// ParseVerificationTimeout accepts anything the duration parser does within sane bounds.
func ParseVerificationTimeout(s string) (time.Duration, error) {
	d, err := duration.Parse(s)
	if err != nil {
		var durErr *duration.Error
		if errors.As(err, &durErr) {
			return 0, errors.New(durErr.Reason)
		}
		return 0, err
	}
	timeout := d.Std()
	if timeout < minVerificationTimeout || timeout > maxVerificationTimeout {
		return 0, errors.New("The timeout must be between 30 seconds and 1 hour.")
	}
	return timeout, nil
}
