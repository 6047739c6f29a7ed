package handlers

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

const visibleRolePrefix = "rust-"

func rolesCog() *Cog {
	return &Cog{
		Name:   "Roles",
		Guards: []Guard{guildOnly},
		Commands: []*Command{
			{
				Name:    "role",
				Aliases: []string{"roles"},
				Help:    "Manages your roles. Adding a role lets you view the corresponding channel.",
				Run:     runRoleOverview,
				Sub: []*Command{
					{
						Name:  "add",
						Usage: "<role>",
						Help:  "Adds a role to your list of visible roles.",
						Run: func(c *Context) error {
							return runRoleChange(c, true)
						},
					},
					{
						Name:  "del",
						Usage: "<role>",
						Help:  "Removes a role from your list of visible roles.",
						Run: func(c *Context) error {
							return runRoleChange(c, false)
						},
					},
					{
						Name: "list",
						Help: "Lists your visible roles.",
						Run:  runRoleList,
					},
				},
			},
			{
				Name:    "rustify",
				Aliases: []string{"wustify"},
				Usage:   "<members...>",
				Help:    "Adds the Rustacean role to members.",
				Guards:  []Guard{anyRole(moderatorRoles...)},
				Run:     runRustify,
			},
		},
	}
}

func visibleRoles(c *Context) ([]discord.Role, error) {
	roles, err := c.Rest.GetRoles(c.GuildID, rest.WithCtx(c.Context()))
	if err != nil {
		return nil, err
	}
	return VisibleRoles(roles), nil
}

// VisibleRoles returns the self assignable roles sorted by name.
func VisibleRoles(roles []discord.Role) []discord.Role {
	var visible []discord.Role
	for _, role := range roles {
		if strings.HasPrefix(role.Name, visibleRolePrefix) {
			visible = append(visible, role)
		}
	}
	slices.SortFunc(visible, func(a, b discord.Role) int { return strings.Compare(a.Name, b.Name) })
	return visible
}

func runRoleOverview(c *Context) error {
	roles, err := visibleRoles(c)
	if err != nil {
		return err
	}
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = role.Name
	}
	return c.Replyf("List of available roles:\n```\n%s\n```\nAdd the `rust-overview` role to see all channels.\nType `?help role` for more info about the command.", strings.Join(names, "\n"))
}

func runRoleChange(c *Context, add bool) error {
	arg := strings.TrimSpace(c.Args)
	roles, err := visibleRoles(c)
	if err != nil {
		return err
	}
	id, byID := ParseRoleID(arg)
	i := slices.IndexFunc(roles, func(r discord.Role) bool {
		return r.Name == arg || (byID && r.ID == id)
	})
	if i < 0 {
		return userErrorf("Role %q not found.", arg)
	}
	role := roles[i]
	if add {
		err = c.Rest.AddMemberRole(c.GuildID, c.AuthorID(), role.ID, rest.WithCtx(c.Context()))
	} else {
		err = c.Rest.RemoveMemberRole(c.GuildID, c.AuthorID(), role.ID, rest.WithCtx(c.Context()))
	}
	if err != nil {
		return err
	}
	slog.Info("handlers: member roles changed", slog.String("role.name", role.Name), slog.Any("member.id", c.AuthorID()), slog.Bool("added", add))
	return c.React("👌")
}

func runRoleList(c *Context) error {
	var names []string
	for _, role := range c.Roles {
		if strings.HasPrefix(role.Name, visibleRolePrefix) {
			names = append(names, role.Name)
		}
	}
	if len(names) == 0 {
		return c.Reply("Your available roles:\nYou don't have any visible roles!")
	}
	slices.Sort(names)
	return c.Replyf("Your available roles:\n```\n%s\n```", strings.Join(names, "\n"))
}

func runRustify(c *Context) error {
	gc := c.Bot.Guild.Load()
	if gc == nil || gc.Rustacean == nil {
		return userErrorf("The Rustacean role is not loaded.")
	}
	var members []snowflake.ID
	for _, arg := range strings.Fields(c.Args) {
		id, ok := ParseUserID(arg)
		if !ok {
			return userErrorf("%s is not a valid member or member ID.", arg)
		}
		members = append(members, id)
	}
	if len(members) == 0 {
		return userErrorf("Tell me who to rustify.")
	}
	reason := fmt.Sprintf("You have been rusted by %s! owo", c.Message.Author.Username)
	for _, id := range members {
		if err := c.Rest.AddMemberRole(c.GuildID, id, gc.Rustacean.ID, rest.WithCtx(c.Context()), rest.WithReason(reason)); err != nil {
			return err
		}
	}
	return c.ReactOk()
}
