package handlers

import (
	"context"
	"errors"
	"fmt"

	"ferris-bot/pkg"

	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

var ErrNotAllowed = errors.New("You aren't allowed to run this command!")

// UserError carries a message meant to be shown to the invoking user as is.
type UserError struct {
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

func userErrorf(format string, args ...any) error {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// Responder is the part of the REST client a command needs to answer.
type Responder interface {
	CreateMessage(channelID snowflake.ID, messageCreate discord.MessageCreate, opts ...rest.RequestOpt) (*discord.Message, error)
	AddReaction(channelID snowflake.ID, messageID snowflake.ID, emoji string, opts ...rest.RequestOpt) error
	RemoveAllReactions(channelID snowflake.ID, messageID snowflake.ID, opts ...rest.RequestOpt) error
}

// Context is a single text command invocation.
type Context struct {
	ctx context.Context

	Bot       *pkg.Bot
	Rest      rest.Rest
	Caches    cache.Caches
	Responder Responder

	SelfID  snowflake.ID
	GuildID snowflake.ID
	Message discord.Message

	// Author state resolved at dispatch time.
	Roles        []discord.Role
	Permissions  discord.Permissions
	GuildOwnerID snowflake.ID

	Match Match
	Args  string

	// Action is set by moderation commands and written to the modlog afterwards.
	Action *ModAction
}

func (c *Context) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *Context) ChannelID() snowflake.ID {
	return c.Message.ChannelID
}

func (c *Context) AuthorID() snowflake.ID {
	return c.Message.Author.ID
}

// Reply sends content to the invoking channel without pinging anyone.
func (c *Context) Reply(content string) error {
	_, err := c.Send(discord.MessageCreate{
		Content:         content,
		AllowedMentions: &discord.AllowedMentions{},
	})
	return err
}

func (c *Context) Replyf(format string, args ...any) error {
	return c.Reply(fmt.Sprintf(format, args...))
}

func (c *Context) Send(message discord.MessageCreate) (*discord.Message, error) {
	return c.Responder.CreateMessage(c.ChannelID(), message, rest.WithCtx(c.Context()))
}

func (c *Context) React(emoji string) error {
	return c.Responder.AddReaction(c.ChannelID(), c.Message.ID, emoji, rest.WithCtx(c.Context()))
}

// ReactOk acknowledges the command with the guild's ok emoji.
func (c *Context) ReactOk() error {
	emoji := "👌"
	if c.Bot != nil && c.Bot.Guild != nil {
		emoji = c.Bot.Guild.Load().OkReaction()
	}
	return c.React(emoji)
}

func (c *Context) ClearReactions() error {
	return c.Responder.RemoveAllReactions(c.ChannelID(), c.Message.ID, rest.WithCtx(c.Context()))
}

func (c *Context) hasRole(name string) bool {
	for _, role := range c.Roles {
		if role.Name == name {
			return true
		}
	}
	return false
}

// topPosition is the position of the highest role, 0 when there is none.
func topPosition(roles []discord.Role) int {
	top := 0
	for _, role := range roles {
		top = max(top, role.Position)
	}
	return top
}
