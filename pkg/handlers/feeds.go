package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ferris-bot/pkg/db"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/json"
	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"
)

func feedsCog() *Cog {
	manageRoles := hasPermissions(discord.PermissionManageRoles)
	return &Cog{
		Name:   "Feeds",
		Guards: []Guard{guildOnly},
		Commands: []*Command{
			{
				Name:    "feeds",
				Aliases: []string{"feed"},
				Help:    "Shows the feeds of this channel. Subscribe with sub, unsubscribe with unsub.",
				Run:     runFeedsList,
				Sub: []*Command{
					{
						Name:   "create",
						Usage:  "<name>",
						Help:   "Creates a feed with the specified name.",
						Guards: []Guard{manageRoles},
						Run:    runFeedsCreate,
					},
					{
						Name:    "delete",
						Aliases: []string{"remove"},
						Usage:   "<name>",
						Help:    "Removes a feed from the channel along with its role.",
						Guards:  []Guard{manageRoles},
						Run:     runFeedsDelete,
					},
				},
			},
			{
				Name:  "sub",
				Usage: "<feed>",
				Help:  "Subscribes to the publications of a feed.",
				Run: func(c *Context) error {
					return runSubscription(c, true)
				},
			},
			{
				Name:  "unsub",
				Usage: "<feed>",
				Help:  "Unsubscribes from the publications of a feed.",
				Run: func(c *Context) error {
					return runSubscription(c, false)
				},
			},
			{
				Name:   "publish",
				Usage:  "<feed> <content>",
				Help:   "Publishes content to everyone subscribed to a feed.",
				Guards: []Guard{manageRoles},
				Run:    runPublish,
			},
		},
	}
}

func runFeedsList(c *Context) error {
	feeds, err := c.Bot.DB.Feeds(c.Context(), c.ChannelID())
	if err != nil {
		return err
	}
	if len(feeds) == 0 {
		return c.Reply("This channel has no feeds.")
	}
	names := make([]string, len(feeds))
	for i, feed := range feeds {
		names[i] = "- " + feed.Name
	}
	return c.Replyf("Found %d feeds.\n%s", len(feeds), strings.Join(names, "\n"))
}

func runFeedsCreate(c *Context) error {
	name := strings.ToLower(strings.TrimSpace(c.Args))
	if !ValidFeedName(name) {
		return c.Reply("That is an invalid feed name.")
	}
	if _, err := c.Bot.DB.Feed(c.Context(), c.ChannelID(), name); err == nil {
		return c.Reply("This feed already exists.")
	} else if !errors.Is(err, db.ErrNotFound) {
		return err
	}

	role, err := c.Rest.CreateRole(c.GuildID, discord.RoleCreate{
		Name:        name,
		Permissions: json.Ptr(discord.PermissionsNone),
	}, rest.WithCtx(c.Context()))
	if err != nil {
		return err
	}
	err = c.Bot.DB.CreateFeed(c.Context(), db.Feed{ChannelID: c.ChannelID(), Name: name, RoleID: role.ID})
	if err != nil {
		if delErr := c.Rest.DeleteRole(c.GuildID, role.ID, rest.WithCtx(c.Context())); delErr != nil {
			slog.Error("handlers: error while deleting orphaned feed role", slog.Any("role.id", role.ID), tint.Err(delErr))
		}
		if errors.Is(err, db.ErrExists) {
			return c.Reply("This feed already exists.")
		}
		return err
	}
	return c.Reply("Successfully created feed.")
}

func runFeedsDelete(c *Context) error {
	feed, err := c.Bot.DB.DeleteFeed(c.Context(), c.ChannelID(), strings.ToLower(strings.TrimSpace(c.Args)))
	if errors.Is(err, db.ErrNotFound) {
		return c.Reply("This feed does not exist.")
	}
	if err != nil {
		return err
	}
	if err := c.Rest.DeleteRole(c.GuildID, feed.RoleID, rest.WithCtx(c.Context())); err != nil {
		slog.Warn("handlers: error while deleting feed role", slog.Any("role.id", feed.RoleID), tint.Err(err))
	}
	return c.Reply("Removed feed.")
}

func runSubscription(c *Context, subscribe bool) error {
	feeds, err := c.Bot.DB.Feeds(c.Context(), c.ChannelID())
	if err != nil {
		return err
	}
	if len(feeds) == 0 {
		return c.Reply("This channel has no feeds set up.")
	}
	name := strings.ToLower(strings.TrimSpace(c.Args))
	names := make([]string, len(feeds))
	for i, feed := range feeds {
		names[i] = feed.Name
		if feed.Name != name {
			continue
		}
		opts := []rest.RequestOpt{rest.WithCtx(c.Context())}
		if subscribe {
			err = c.Rest.AddMemberRole(c.GuildID, c.AuthorID(), feed.RoleID, opts...)
		} else {
			err = c.Rest.RemoveMemberRole(c.GuildID, c.AuthorID(), feed.RoleID, opts...)
		}
		if err != nil {
			return err
		}
		return c.ReactOk()
	}
	return c.Replyf("This feed does not exist.\nValid feeds: %s", strings.Join(names, ", "))
}

func runPublish(c *Context) error {
	name, content := splitArgs(c.Args)
	name = strings.ToLower(name)
	if content == "" {
		return userErrorf("There is nothing to publish.")
	}
	feed, err := c.Bot.DB.Feed(c.Context(), c.ChannelID(), name)
	if errors.Is(err, db.ErrNotFound) {
		return c.Reply("This feed does not exist.")
	}
	if err != nil {
		return err
	}

	if err := c.Rest.DeleteMessage(c.ChannelID(), c.Message.ID, rest.WithCtx(c.Context())); err != nil {
		slog.Debug("handlers: error while deleting publish command", tint.Err(err))
	}

	if _, err := c.Rest.UpdateRole(c.GuildID, feed.RoleID, discord.RoleUpdate{Mentionable: json.Ptr(true)}, rest.WithCtx(c.Context())); err != nil {
		return c.Reply("Uh... a fatal error occurred here. The role associated with this feed has been removed or not found. Please recreate the feed.")
	}
	defer func() {
		if _, err := c.Rest.UpdateRole(c.GuildID, feed.RoleID, discord.RoleUpdate{Mentionable: json.Ptr(false)}, rest.WithCtx(c.Context())); err != nil {
			slog.Error("handlers: error while making feed role unmentionable", slog.Any("role.id", feed.RoleID), tint.Err(err))
		}
	}()

	_, err = c.Send(discord.MessageCreate{
		Content:         PublishText(roleMention(feed.RoleID), content),
		AllowedMentions: &discord.AllowedMentions{Roles: []snowflake.ID{feed.RoleID}},
	})
	return err
}

// PublishText is the announcement for a feed, cut to the message length limit.
func PublishText(mention string, content string) string {
	return Truncate(fmt.Sprintf("%s: %s", mention, content), maxMessageLen)
}

func ValidFeedName(name string) bool {
	return name != "" && name != "@everyone" && name != "@here"
}
