package handlers

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"
)

const maxBanDeleteDays = 7

// ModAction is one moderation action as recorded in the modlog channel.
type ModAction struct {
	Name     string
	Reason   string
	TargetID snowflake.ID
	Target   string
}

func moderationCog() *Cog {
	return &Cog{
		Name:   "Moderation",
		Guards: []Guard{guildOnly, anyRole(moderatorRoles...)},
		After:  afterModeration,
		Commands: []*Command{
			{
				Name:   "kick",
				Usage:  "<member> <reason>",
				Help:   "Kicks a member from the server.",
				Guards: []Guard{hasPermissions(discord.PermissionKickMembers)},
				Run:    runKick,
			},
			{
				Name:   "ban",
				Usage:  "<member> <days> <reason>",
				Help:   "Bans a member and deletes their messages of the last days.",
				Guards: []Guard{hasPermissions(discord.PermissionBanMembers)},
				Run: func(c *Context) error {
					return runBan(c, "Ban", false)
				},
			},
			{
				Name:   "softban",
				Usage:  "<member> <days> <reason>",
				Help:   "Bans and unbans a member right away to remove their messages.",
				Guards: []Guard{hasPermissions(discord.PermissionBanMembers)},
				Run: func(c *Context) error {
					return runBan(c, "Softban", true)
				},
			},
			{
				Name:   "unban",
				Usage:  "<user-id> <reason>",
				Help:   "Unbans a previously banned user.",
				Guards: []Guard{hasPermissions(discord.PermissionBanMembers)},
				Run:    runUnban,
			},
			{
				Name:  "warn",
				Usage: "<member> <reason>",
				Help:  "Warns a member.",
				Run:   runWarn,
			},
			{
				Name:   "purge",
				Usage:  "[limit]",
				Help:   "Deletes up to 100 messages in the current channel.",
				Guards: []Guard{hasPermissions(discord.PermissionManageMessages)},
				Run: func(c *Context) error {
					limit, err := parseLimit(c.Args, purgeLimit)
					if err != nil {
						return err
					}
					deleted, err := purge(c, min(limit, purgeLimit), func(m discord.Message) bool { return m.ID != c.Message.ID })
					if err != nil {
						return err
					}
					sendTemporary(c, fmt.Sprintf("Deleted %d message(s)", deleted))
					return nil
				},
			},
		},
	}
}

func runKick(c *Context) error {
	target, reason, err := moderationTarget(c, c.Args)
	if err != nil {
		return err
	}
	if reason == "" {
		return userErrorf("A reason is required.")
	}
	if err := c.Rest.RemoveMember(c.GuildID, target.TargetID, rest.WithCtx(c.Context()), rest.WithReason(reason)); err != nil {
		return err
	}
	target.Name, target.Reason = "Kick", reason
	c.Action = &target
	return nil
}

func runBan(c *Context, name string, soft bool) error {
	target, remainder, err := moderationTarget(c, c.Args)
	if err != nil {
		return err
	}
	daysArg, reason := splitArgs(remainder)
	days, err := strconv.Atoi(daysArg)
	if err != nil || days < 0 || days > maxBanDeleteDays {
		return userErrorf("Days must be a number between 0 and %d.", maxBanDeleteDays)
	}
	if reason == "" {
		return userErrorf("A reason is required.")
	}
	opts := []rest.RequestOpt{rest.WithCtx(c.Context()), rest.WithReason(reason)}
	if err := c.Rest.AddBan(c.GuildID, target.TargetID, time.Duration(days)*24*time.Hour, opts...); err != nil {
		return err
	}
	if soft {
		if err := c.Rest.DeleteBan(c.GuildID, target.TargetID, opts...); err != nil {
			return err
		}
	}
	target.Name, target.Reason = name, reason
	c.Action = &target
	return nil
}

func runUnban(c *Context) error {
	idArg, reason := splitArgs(c.Args)
	userID, ok := ParseUserID(idArg)
	if !ok {
		return userErrorf("Not a valid previously-banned member.")
	}
	if reason == "" {
		return userErrorf("A reason is required.")
	}
	ban, err := c.Rest.GetBan(c.GuildID, userID, rest.WithCtx(c.Context()))
	if err != nil {
		slog.Debug("handlers: ban lookup failed", slog.Any("user.id", userID), tint.Err(err))
		return userErrorf("Not a valid previously-banned member.")
	}
	if err := c.Rest.DeleteBan(c.GuildID, userID, rest.WithCtx(c.Context()), rest.WithReason(reason)); err != nil {
		return err
	}
	previous := ""
	if ban.Reason != nil {
		previous = *ban.Reason
	}
	c.Action = &ModAction{
		Name:     "Unban",
		Reason:   UnbanReason(reason, previous),
		TargetID: userID,
		Target:   ban.User.Username,
	}
	return nil
}

func runWarn(c *Context) error {
	target, reason, err := moderationTarget(c, c.Args)
	if err != nil {
		return err
	}
	if reason == "" {
		return userErrorf("A reason is required.")
	}
	target.Name, target.Reason = "Warn", reason
	c.Action = &target
	return nil
}

// moderationTarget parses the member argument and enforces the role hierarchy.
// IDs of users who are not in the guild are accepted as is.
func moderationTarget(c *Context, args string) (ModAction, string, error) {
	arg, remainder := splitArgs(args)
	userID, ok := ParseUserID(arg)
	if !ok {
		return ModAction{}, "", userErrorf("%s is not a valid member or member ID.", arg)
	}
	action := ModAction{TargetID: userID, Target: userID.String()}

	member, err := c.Rest.GetMember(c.GuildID, userID, rest.WithCtx(c.Context()))
	if err != nil {
		return action, remainder, nil
	}
	action.Target = member.User.Username
	targetTop := topPosition(memberRoles(c, member.RoleIDs))
	if !CanModerate(c.AuthorID(), c.Bot.Config.OwnerID, c.GuildOwnerID, topPosition(c.Roles), targetTop) {
		return ModAction{}, "", userErrorf("You cannot do this action on this user due to role hierarchy.")
	}
	return action, remainder, nil
}

// CanModerate reports whether the author outranks the target.
func CanModerate(authorID snowflake.ID, botOwnerID snowflake.ID, guildOwnerID snowflake.ID, authorTop int, targetTop int) bool {
	if authorID == botOwnerID && botOwnerID != 0 {
		return true
	}
	if authorID == guildOwnerID && guildOwnerID != 0 {
		return true
	}
	return authorTop > targetTop
}

func memberRoles(c *Context, ids []snowflake.ID) []discord.Role {
	if c.Caches == nil {
		return nil
	}
	roles := make([]discord.Role, 0, len(ids))
	for _, id := range ids {
		if role, ok := c.Caches.Role(c.GuildID, id); ok {
			roles = append(roles, role)
		}
	}
	return roles
}

func afterModeration(c *Context) error {
	if err := c.React("👌"); err != nil {
		slog.Warn("handlers: error while reacting", tint.Err(err))
	}
	if c.Action == nil {
		return nil
	}
	modlog := c.Bot.Config.ModlogChannelID
	if modlog == 0 {
		slog.Warn("handlers: modlog channel not configured, dropping entry", slog.String("action", c.Action.Name))
		return nil
	}

	next := 1
	last, err := c.Rest.GetMessages(modlog, 0, 0, 0, 1, rest.WithCtx(c.Context()))
	if err != nil {
		return fmt.Errorf("fetch last modlog entry: %w", err)
	}
	if len(last) > 0 {
		next = NextModlogID(last[0].Content)
	}
	entry := FormatModlog(next, *c.Action, c.AuthorID(), c.Message.CreatedAt)
	if _, err := c.Rest.CreateMessage(modlog, discord.MessageCreate{
		Content:         entry,
		AllowedMentions: &discord.AllowedMentions{},
	}, rest.WithCtx(c.Context())); err != nil {
		return fmt.Errorf("write modlog entry: %w", err)
	}
	return nil
}

// NextModlogID numbers a new entry from the first word of the last one.
func NextModlogID(last string) int {
	fields := strings.Fields(last)
	if len(fields) == 0 {
		return 1
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 1
	}
	return n + 1
}

func FormatModlog(id int, action ModAction, moderatorID snowflake.ID, at time.Time) string {
	return strings.Join([]string{
		fmt.Sprintf("%d | **%s**", id, action.Name),
		fmt.Sprintf("**User**\n%s (%s %s)", userMention(action.TargetID), action.Target, action.TargetID),
		fmt.Sprintf("**Reason**\n%s", action.Reason),
		fmt.Sprintf("**Responsible Moderator**\n%s (ID: %s)", userMention(moderatorID), moderatorID),
		fmt.Sprintf("**Timestamp**\n%s", at.UTC().Format(time.DateTime)),
	}, "\n\n")
}

func UnbanReason(reason string, previous string) string {
	if previous == "" {
		return reason
	}
	return fmt.Sprintf("%s\nUser was previously banned for \"%s\".", reason, previous)
}
