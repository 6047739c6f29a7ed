package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ferris-bot/pkg/duration"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"
)

func remindersCog() *Cog {
	return &Cog{
		Name: "Reminders",
		Commands: []*Command{
			{
				Name:    "timer",
				Aliases: []string{"reminder", "remind"},
				Usage:   "<time> [message]",
				Help:    "Reminds you of something after a certain amount of time, e.g. 2h4m10s. Plain numbers are seconds.",
				Run:     runTimer,
			},
		},
	}
}

func runTimer(c *Context) error {
	arg, message := splitArgs(c.Args)
	d, err := duration.Parse(arg)
	if err != nil {
		var durErr *duration.Error
		if errors.As(err, &durErr) {
			return userErrorf("%s", durErr.Reason)
		}
		return err
	}
	message = EscapeMentions(message)

	ack, done := ReminderTexts(c.AuthorID(), d, message)
	if _, err := c.Send(mentioning(ack, c.AuthorID())); err != nil {
		return err
	}

	r, channelID, authorID := c.Rest, c.ChannelID(), c.AuthorID()
	id := c.Bot.Reminders.Schedule(d.Std(), func(ctx context.Context) {
		if _, err := r.CreateMessage(channelID, mentioning(done, authorID), rest.WithCtx(ctx)); err != nil {
			slog.Error("reminders: error while sending reminder", slog.Any("channel.id", channelID), slog.Any("user.id", authorID), tint.Err(err))
		}
	})
	slog.Info("reminders: reminder scheduled", slog.String("reminder.id", id.String()), slog.Any("user.id", authorID), slog.Int64("seconds", d.Seconds))
	return nil
}

// ReminderTexts returns the acknowledgement and the message sent when the time is up.
func ReminderTexts(authorID snowflake.ID, d duration.Duration, message string) (string, string) {
	mention := userMention(authorID)
	if message == "" {
		return fmt.Sprintf("Okay %s, I'll remind you in %d seconds.", mention, d.Seconds),
			fmt.Sprintf("Time is up %s! You asked to be reminded about something.", mention)
	}
	return fmt.Sprintf("Okay %s, I'll remind you about \"%s\" in %d seconds.", mention, message, d.Seconds),
		fmt.Sprintf("Time is up %s! You asked to be reminded about \"%s\".", mention, message)
}

func mentioning(content string, users ...snowflake.ID) discord.MessageCreate {
	return discord.MessageCreate{
		Content:         Truncate(content, maxMessageLen),
		AllowedMentions: &discord.AllowedMentions{Users: users},
	}
}
