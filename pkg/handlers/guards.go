package handlers

import (
	"slices"

	"github.com/disgoorg/disgo/discord"
)

var moderatorRoles = []string{"Admin", "Moderator", "Bot Admin"}

func guildOnly(c *Context) error {
	if c.GuildID == 0 {
		return userErrorf("This command cannot be used in private messages.")
	}
	return nil
}

// anyRole passes when the author has at least one role with one of the names.
func anyRole(names ...string) Guard {
	return func(c *Context) error {
		if slices.ContainsFunc(names, c.hasRole) {
			return nil
		}
		return ErrNotAllowed
	}
}

func hasPermissions(perms ...discord.Permissions) Guard {
	return func(c *Context) error {
		if c.Permissions.Has(discord.PermissionAdministrator) || c.Permissions.Has(perms...) {
			return nil
		}
		return ErrNotAllowed
	}
}

func isOwner(c *Context) error {
	if c.Bot == nil || c.Bot.Config.OwnerID == 0 || c.AuthorID() != c.Bot.Config.OwnerID {
		return ErrNotAllowed
	}
	return nil
}

func inPinWhitelist(c *Context) error {
	if err := guildOnly(c); err != nil {
		return err
	}
	ok, err := c.Bot.DB.IsPinWhitelisted(c.Context(), c.ChannelID(), c.AuthorID())
	if err != nil {
		return err
	}
	if !ok {
		return userErrorf("⚠️ You're not in the pin whitelist of this channel.")
	}
	return nil
}
