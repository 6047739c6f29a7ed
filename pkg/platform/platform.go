package platform

import (
	"context"

	"ferris-bot/pkg/verify"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/json"
	"github.com/disgoorg/snowflake/v2"
)

// Discord implements verify.Platform on top of the disgo REST client.
type Discord struct {
	rest rest.Rest
}

var _ verify.Platform = (*Discord)(nil)

func New(r rest.Rest) *Discord {
	return &Discord{rest: r}
}

func (d *Discord) SendMessage(ctx context.Context, channelID snowflake.ID, content string, mention snowflake.ID) (snowflake.ID, error) {
	message, err := d.rest.CreateMessage(channelID, discord.MessageCreate{
		Content:         content,
		AllowedMentions: &discord.AllowedMentions{Users: []snowflake.ID{mention}},
	}, rest.WithCtx(ctx))
	if err != nil {
		return 0, err
	}
	return message.ID, nil
}

func (d *Discord) AddReaction(ctx context.Context, channelID snowflake.ID, messageID snowflake.ID, emoji string) error {
	return d.rest.AddReaction(channelID, messageID, emoji, rest.WithCtx(ctx))
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID snowflake.ID, messageID snowflake.ID) error {
	return d.rest.DeleteMessage(channelID, messageID, rest.WithCtx(ctx))
}

func (d *Discord) GuildChannels(ctx context.Context, guildID snowflake.ID) ([]snowflake.ID, error) {
	channels, err := d.rest.GetGuildChannels(guildID, rest.WithCtx(ctx))
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(channels))
	for _, channel := range channels {
		ids = append(ids, channel.ID())
	}
	return ids, nil
}

func (d *Discord) SetOverlay(ctx context.Context, channelID snowflake.ID, memberID snowflake.ID, overlay *verify.Overlay) error {
	if overlay == nil {
		return d.rest.DeletePermissionOverwrite(channelID, memberID, rest.WithCtx(ctx))
	}
	return d.rest.UpdatePermissionOverwrite(channelID, memberID, discord.MemberPermissionOverwriteUpdate{
		Allow: json.Ptr(overlay.Allow),
		Deny:  json.Ptr(overlay.Deny),
	}, rest.WithCtx(ctx))
}

func (d *Discord) AddRole(ctx context.Context, guildID snowflake.ID, memberID snowflake.ID, roleID snowflake.ID, reason string) error {
	return d.rest.AddMemberRole(guildID, memberID, roleID, rest.WithCtx(ctx), rest.WithReason(reason))
}

func (d *Discord) RemoveRole(ctx context.Context, guildID snowflake.ID, memberID snowflake.ID, roleID snowflake.ID, reason string) error {
	return d.rest.RemoveMemberRole(guildID, memberID, roleID, rest.WithCtx(ctx), rest.WithReason(reason))
}

func (d *Discord) RemoveMember(ctx context.Context, guildID snowflake.ID, memberID snowflake.ID, reason string) error {
	return d.rest.RemoveMember(guildID, memberID, rest.WithCtx(ctx), rest.WithReason(reason))
}

// ReactionKey renders a reaction event emoji the way the reaction API expects it.
func ReactionKey(emoji discord.PartialEmoji) string {
	name := ""
	if emoji.Name != nil {
		name = *emoji.Name
	}
	if emoji.ID == nil {
		return name
	}
	return name + ":" + emoji.ID.String()
}
