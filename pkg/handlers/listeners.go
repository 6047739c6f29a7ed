package handlers

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"ferris-bot/pkg/guild"
	"ferris-bot/pkg/platform"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"
)

const (
	joinColor  = 0x2ecc71
	leaveColor = 0xe74c3c
)

// Listeners wires gateway events to the gate, the join log and the command table.
func (h *Handler) Listeners() *events.ListenerAdapter {
	return &events.ListenerAdapter{
		OnReady: func(ev *events.Ready) {
			h.selfID.Store(uint64(ev.User.ID))
		},
		OnGuildReady:              h.onGuildReady,
		OnGuildMemberJoin:         h.onMemberJoin,
		OnGuildMemberLeave:        h.onMemberLeave,
		OnGuildMessageReactionAdd: h.onReactionAdd,
		OnGuildMessageCreate:      h.onMessageCreate,
	}
}

func (h *Handler) SelfID() snowflake.ID {
	return snowflake.ID(h.selfID.Load())
}

func (h *Handler) ownGuild(guildID snowflake.ID) bool {
	return guildID == h.Bot.Config.GuildID
}

func (h *Handler) onGuildReady(ev *events.GuildReady) {
	if !h.ownGuild(ev.Guild.ID) {
		return
	}
	client := ev.Client()
	gc, err := guild.Resolve(h.ctx, client.Rest, h.Bot.Config)
	if err != nil {
		slog.Error("handlers: error while resolving guild context", slog.Any("guild.id", ev.Guild.ID), tint.Err(err))
		return
	}
	h.Bot.Guild.Store(gc)

	if err := handler.SyncCommands(client, Commands, []snowflake.ID{ev.Guild.ID}); err != nil {
		slog.Error("handlers: error while syncing commands", slog.Any("guild.id", ev.Guild.ID), tint.Err(err))
	}
	if h.Bot.Readiness != nil {
		h.Bot.Readiness.Set(true)
	}
	slog.Info("handlers: guild ready", slog.Any("guild.id", ev.Guild.ID), slog.String("guild.name", ev.Guild.Name))
}

func (h *Handler) onMemberJoin(ev *events.GuildMemberJoin) {
	if !h.ownGuild(ev.GuildID) {
		return
	}
	user := ev.Member.User
	h.joinLog(ev.Client(), JoinEmbed(user, true, time.Now()))
	h.Bot.Gate.Join(h.ctx, ev.GuildID, user.ID, user.Bot)
}

func (h *Handler) onMemberLeave(ev *events.GuildMemberLeave) {
	if !h.ownGuild(ev.GuildID) {
		return
	}
	client := ev.Client()
	h.joinLog(client, JoinEmbed(ev.User, false, time.Now()))

	welcome := h.Bot.Config.WelcomeChannelID
	if _, err := client.Rest.CreateMessage(welcome, discord.MessageCreate{
		Content:         GoodbyeText(ev.User),
		AllowedMentions: &discord.AllowedMentions{},
	}, rest.WithCtx(h.ctx)); err != nil {
		slog.Error("handlers: error while sending goodbye", slog.Any("channel.id", welcome), slog.Any("user.id", ev.User.ID), tint.Err(err))
	}
}

func (h *Handler) joinLog(client *bot.Client, embed discord.Embed) {
	channelID := h.Bot.Config.JoinLogChannelID
	if channelID == 0 {
		return
	}
	if _, err := client.Rest.CreateMessage(channelID, discord.MessageCreate{Embeds: []discord.Embed{embed}}, rest.WithCtx(h.ctx)); err != nil {
		slog.Error("handlers: error while writing join log", slog.Any("channel.id", channelID), tint.Err(err))
	}
}

func (h *Handler) onReactionAdd(ev *events.GuildMessageReactionAdd) {
	if !h.ownGuild(ev.GuildID) || ev.UserID == h.SelfID() {
		return
	}
	key := platform.ReactionKey(ev.Emoji)
	if h.Bot.Gate.HandleReaction(ev.GuildID, ev.MessageID, ev.UserID, key) {
		return
	}

	council := h.Bot.Config.CouncilChannelID
	if council == 0 || ev.ChannelID != council {
		return
	}
	if slices.Contains(ev.Member.RoleIDs, h.Bot.Config.CouncilRoleID) {
		return
	}
	if err := ev.Client().Rest.RemoveUserReaction(ev.ChannelID, ev.MessageID, key, ev.UserID, rest.WithCtx(h.ctx)); err != nil {
		slog.Error("handlers: error while removing council reaction", slog.Any("message.id", ev.MessageID), slog.Any("user.id", ev.UserID), tint.Err(err))
	}
}

func (h *Handler) onMessageCreate(ev *events.GuildMessageCreate) {
	if ev.Message.Author.Bot || ev.Message.WebhookID != nil {
		return
	}
	client := ev.Client()
	c := &Context{
		ctx:       h.ctx,
		Bot:       h.Bot,
		Rest:      client.Rest,
		Caches:    client.Caches,
		Responder: client.Rest,
		SelfID:    h.SelfID(),
		GuildID:   ev.GuildID,
		Message:   ev.Message,
	}
	if member := ev.Message.Member; member != nil {
		m := *member
		m.User = ev.Message.Author
		m.GuildID = ev.GuildID
		c.Roles = memberRoles(c, m.RoleIDs)
		c.Permissions = client.Caches.MemberPermissions(m)
	}
	if g, ok := client.Caches.Guild(ev.GuildID); ok {
		c.GuildOwnerID = g.OwnerID
	}
	h.Table.Dispatch(c)
}

func JoinEmbed(user discord.User, joined bool, at time.Time) discord.Embed {
	title, color := "Member joined", joinColor
	if !joined {
		title, color = "Member left", leaveColor
	}
	return discord.NewEmbedBuilder().
		SetAuthor(fmt.Sprintf("%s (%s)", user.Username, user.ID), "", user.EffectiveAvatarURL()).
		SetTitle(title).
		SetColor(color).
		AddField("ID", user.ID.String(), true).
		AddField("Created at", user.ID.Time().UTC().Format(time.DateTime), true).
		SetTimestamp(at).
		Build()
}

func GoodbyeText(user discord.User) string {
	return fmt.Sprintf("[%s (%s)]\nGoodbye, %s :(", user.Username, user.ID, userMention(user.ID))
}
