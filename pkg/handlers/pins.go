package handlers

import (
	"errors"
	"strings"

	"ferris-bot/pkg/db"

	"github.com/disgoorg/disgo/rest"
)

func pinsCog() *Cog {
	whitelistMember := func(add bool) func(c *Context) error {
		return func(c *Context) error {
			memberID, ok := ParseUserID(strings.TrimSpace(c.Args))
			if !ok {
				return userErrorf("%q is not a valid member.", c.Args)
			}
			var err error
			if add {
				err = c.Bot.DB.AddPinWhitelist(c.Context(), c.ChannelID(), memberID)
			} else {
				err = c.Bot.DB.RemovePinWhitelist(c.Context(), c.ChannelID(), memberID)
			}
			if errors.Is(err, db.ErrNotFound) {
				return userErrorf("That member is not in this channel's pin whitelist.")
			}
			if err != nil {
				return err
			}
			return c.ReactOk()
		}
	}

	return &Cog{
		Name:   "Pins",
		Guards: []Guard{guildOnly},
		Commands: []*Command{
			{
				Name: "pins",
				Help: "Pin whitelist related commands.",
				Sub: []*Command{
					{
						Name: "whitelist",
						Help: "Shows who can pin messages in this channel.",
						Run:  runPinWhitelist,
						Sub: []*Command{
							{
								Name:   "add",
								Usage:  "<member>",
								Help:   "Adds a person to the pin whitelist of the current channel.",
								Guards: []Guard{anyRole("Mod")},
								Run:    whitelistMember(true),
							},
							{
								Name:    "remove",
								Aliases: []string{"del", "delete", "rm"},
								Usage:   "<member>",
								Help:    "Removes a person from the pin whitelist of the current channel.",
								Guards:  []Guard{anyRole("Mod")},
								Run:     whitelistMember(false),
							},
						},
					},
				},
			},
			{
				Name:   "pin",
				Usage:  "<message-id>",
				Help:   "Pins a message via message ID.",
				Guards: []Guard{inPinWhitelist},
				Run: func(c *Context) error {
					messageID, err := parseMessageID(strings.TrimSpace(c.Args))
					if err != nil {
						return err
					}
					if err := c.Rest.PinMessage(c.ChannelID(), messageID, rest.WithCtx(c.Context())); err != nil {
						return err
					}
					return c.ReactOk()
				},
			},
			{
				Name:   "unpin",
				Usage:  "<message-id>",
				Help:   "Unpins a message via message ID.",
				Guards: []Guard{inPinWhitelist},
				Run: func(c *Context) error {
					messageID, err := parseMessageID(strings.TrimSpace(c.Args))
					if err != nil {
						return err
					}
					if err := c.Rest.UnpinMessage(c.ChannelID(), messageID, rest.WithCtx(c.Context())); err != nil {
						return err
					}
					return c.ReactOk()
				},
			},
		},
	}
}

func runPinWhitelist(c *Context) error {
	members, err := c.Bot.DB.ListPinWhitelist(c.Context(), c.ChannelID())
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return c.Reply("It appears that this channel's pin whitelist is empty!")
	}
	lines := make([]string, len(members))
	for i, id := range members {
		lines[i] = userMention(id)
	}
	return c.Replyf("People who can pin messages in this channel:\n%s", strings.Join(lines, "\n"))
}
