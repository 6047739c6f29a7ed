package handlers

import "strings"

func ownerCog() *Cog {
	return &Cog{
		Name:   "Owner",
		Guards: []Guard{isOwner},
		Commands: []*Command{
			{
				Name:  "status",
				Usage: "<text>",
				Help:  "Changes the bot's status.",
				Run: func(c *Context) error {
					status := strings.TrimSpace(c.Args)
					if status == "" {
						return userErrorf("Give me a status to show.")
					}
					if err := c.Bot.SetStatus(c.Context(), status); err != nil {
						return err
					}
					return c.ReactOk()
				},
			},
			{
				Name: "close",
				Help: "Closes the bot safely.",
				Run: func(c *Context) error {
					if err := c.ReactOk(); err != nil {
						return err
					}
					c.Bot.Shutdown()
					return nil
				},
			},
		},
	}
}
