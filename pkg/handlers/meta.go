package handlers

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"
)

const (
	bulkDeleteMaxAge = 14 * 24 * time.Hour
	purgeLimit       = 100
	temporaryTTL     = 5 * time.Second
)

func metaCog(table func() *Table) *Cog {
	return &Cog{
		Name: "Meta",
		Commands: []*Command{
			{
				Name: "uptime",
				Help: "Tells you how long the bot has been up for.",
				Run: func(c *Context) error {
					return c.Replyf("Uptime: **%s**", FormatUptime(time.Since(c.Bot.StartedAt)))
				},
			},
			{
				Name: "invite",
				Help: "Points you to the channel with the invite links.",
				Run: func(c *Context) error {
					info := c.Bot.Config.InfoChannelID
					return c.Replyf("Invite links are provided in %s\nhttps://discord.com/channels/%s/%s", channelMention(info), c.Bot.Config.GuildID, info)
				},
			},
			{
				Name: "source",
				Help: "Links to the bot's source code.",
				Run: func(c *Context) error {
					return c.Reply(c.Bot.Config.SourceURL)
				},
			},
			{
				Name:  "cleanup",
				Usage: "[limit]",
				Help:  "Deletes the bot's messages among the most recent ones, 100 at most.",
				Run: func(c *Context) error {
					limit, err := parseLimit(c.Args, purgeLimit)
					if err != nil {
						return err
					}
					if limit > purgeLimit {
						return userErrorf("Limit is too high!")
					}
					deleted, err := purge(c, limit, func(m discord.Message) bool { return m.Author.ID == c.SelfID })
					if err != nil {
						return err
					}
					sendTemporary(c, fmt.Sprintf("Deleted %d message(s)", deleted))
					return c.ReactOk()
				},
			},
			{
				Name:  "help",
				Usage: "[command]",
				Help:  "Shows this message.",
				Run: func(c *Context) error {
					return c.Reply(Help(table(), c.Args))
				},
			},
		},
	}
}

// FormatUptime renders a duration as "1d 2h 3m 4s", leaving out days when zero.
func FormatUptime(d time.Duration) string {
	total := int64(d / time.Second)
	days, rem := total/86400, total%86400
	hours, rem := rem/3600, rem%3600
	minutes, seconds := rem/60, rem%60
	out := fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	if days > 0 {
		out = fmt.Sprintf("%dd %s", days, out)
	}
	return out
}

// Help lists every command, or describes one when query names it.
func Help(t *Table, query string) string {
	var b strings.Builder
	if query != "" {
		match, ok := t.resolveBody(query)
		if !ok {
			return fmt.Sprintf("No command called %q found.", query)
		}
		cmd := match.Command
		fmt.Fprintf(&b, "```\n%s %s\n\n%s\n", match.Name(), cmd.Usage, cmd.Help)
		if len(cmd.Aliases) != 0 {
			fmt.Fprintf(&b, "\nAliases: %s\n", strings.Join(cmd.Aliases, ", "))
		}
		if len(cmd.Sub) != 0 {
			b.WriteString("\nSubcommands:\n")
			for _, sub := range cmd.Sub {
				fmt.Fprintf(&b, "  %-10s %s\n", sub.Name, sub.Help)
			}
		}
		b.WriteString("```")
		return b.String()
	}

	b.WriteString("```\n")
	for _, cog := range t.cogs {
		fmt.Fprintf(&b, "%s:\n", cog.Name)
		for _, cmd := range cog.Commands {
			fmt.Fprintf(&b, "  %-10s %s\n", cmd.Name, cmd.Help)
		}
	}
	b.WriteString("\nType ?help command for more info on a command.\n```")
	return b.String()
}

// purge deletes up to limit recent messages that keep accepts and returns how many went.
func purge(c *Context, limit int, keep func(discord.Message) bool) (int, error) {
	messages, err := c.Rest.GetMessages(c.ChannelID(), 0, 0, 0, limit, rest.WithCtx(c.Context()))
	if err != nil {
		return 0, err
	}
	var bulk, single []snowflake.ID
	for _, m := range messages {
		if !keep(m) {
			continue
		}
		if time.Since(m.ID.Time()) < bulkDeleteMaxAge {
			bulk = append(bulk, m.ID)
		} else {
			single = append(single, m.ID)
		}
	}
	if len(bulk) == 1 {
		single = append(single, bulk[0])
		bulk = nil
	}
	deleted := 0
	if len(bulk) > 0 {
		if err := c.Rest.BulkDeleteMessages(c.ChannelID(), bulk, rest.WithCtx(c.Context())); err != nil {
			return 0, err
		}
		deleted += len(bulk)
	}
	for _, id := range single {
		if err := c.Rest.DeleteMessage(c.ChannelID(), id, rest.WithCtx(c.Context())); err != nil {
			slog.Warn("handlers: error while deleting message", slog.Any("message.id", id), tint.Err(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}

// sendTemporary posts a message and removes it again shortly after.
func sendTemporary(c *Context, content string) {
	message, err := c.Send(discord.MessageCreate{Content: content, AllowedMentions: &discord.AllowedMentions{}})
	if err != nil {
		slog.Error("handlers: error while sending message", slog.Any("channel.id", c.ChannelID()), tint.Err(err))
		return
	}
	r, channelID := c.Rest, c.ChannelID()
	time.AfterFunc(temporaryTTL, func() {
		if err := r.DeleteMessage(channelID, message.ID); err != nil {
			slog.Debug("handlers: error while deleting temporary message", slog.Any("message.id", message.ID), tint.Err(err))
		}
	})
}
