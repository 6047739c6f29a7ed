package handlers

import (
	"context"
	"log/slog"
	"sync/atomic"

	"ferris-bot/pkg"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/lmittmann/tint"
)

// Commands are the application commands synced to the guild on ready.
var Commands = []discord.ApplicationCommandCreate{
	discord.SlashCommandCreate{
		Name:        "configure",
		Description: "Configure the bot for this server",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommandGroup{
				Name:        "verification",
				Description: "How newcomers are restricted until they react to the welcome prompt",
				Options: []discord.ApplicationCommandOptionSubCommand{
					{
						Name:        "current",
						Description: "Shows the current verification mode",
					},
					{
						Name:        "set",
						Description: "Sets the verification mode",
						Options: []discord.ApplicationCommandOption{
							discord.ApplicationCommandOptionString{
								Name:        "mode",
								Description: "The verification mode",
								Required:    true,
								Choices: []discord.ApplicationCommandOptionChoiceString{
									{Name: "Mute newcomers in every channel", Value: "overlay"},
									{Name: "Give newcomers a temporary role", Value: "role"},
								},
							},
						},
					},
				},
			},
			discord.ApplicationCommandOptionSubCommandGroup{
				Name:        "timeout",
				Description: "How long newcomers have to react to the welcome prompt",
				Options: []discord.ApplicationCommandOptionSubCommand{
					{
						Name:        "current",
						Description: "Shows the current verification timeout",
					},
					{
						Name:        "set",
						Description: "Sets the verification timeout",
						Options: []discord.ApplicationCommandOption{
							discord.ApplicationCommandOptionString{
								Name:        "duration",
								Description: "Seconds or a duration like 5m",
								Required:    true,
							},
						},
					},
				},
			},
		},
	},
}

type Handler struct {
	Bot   *pkg.Bot
	Table *Table
	handler.Router

	ctx    context.Context
	selfID atomic.Uint64
}

// NewHandler builds the text command table and the slash command router.
// ctx bounds every command and verification started from an event.
func NewHandler(ctx context.Context, b *pkg.Bot) *Handler {
	mux := handler.New()
	mux.Error(func(e *handler.InteractionEvent, err error) {
		i := e.Interaction.(discord.ApplicationCommandInteraction)
		slog.Error("handlers: error while handling a command", slog.String("command.name", i.Data.CommandName()), tint.Err(err))
		_ = e.Respond(discord.InteractionResponseTypeCreateMessage, discord.NewMessageCreate().
			WithContentf("There was an error while handling the command: %v", err).
			WithEphemeral(true))
	})
	h := &Handler{
		Bot:    b,
		Router: mux,
		ctx:    ctx,
	}
	h.Table = NewTable(b.Config.Prefixes,
		metaCog(func() *Table { return h.Table }),
		remindersCog(),
		moderationCog(),
		pinsCog(),
		feedsCog(),
		rolesCog(),
		ownerCog(),
	)

	h.Route("/configure", func(r handler.Router) {
		r.Route("/verification", func(r handler.Router) {
			r.Command("/current", h.HandleVerificationModeCurrent)
			r.SlashCommand("/set", h.HandleVerificationModeSet)
		})
		r.Route("/timeout", func(r handler.Router) {
			r.Command("/current", h.HandleVerificationTimeoutCurrent)
			r.SlashCommand("/set", h.HandleVerificationTimeoutSet)
		})
	})
	return h
}
