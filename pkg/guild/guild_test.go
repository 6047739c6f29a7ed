package guild

import (
	"context"
	"errors"
	"testing"

	"ferris-bot/pkg/config"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

type fakeSource struct {
	roles  []discord.Role
	emojis []discord.Emoji
	err    error
}

func (f fakeSource) GetRoles(snowflake.ID, ...rest.RequestOpt) ([]discord.Role, error) {
	return f.roles, f.err
}

func (f fakeSource) GetEmojis(snowflake.ID, ...rest.RequestOpt) ([]discord.Emoji, error) {
	return f.emojis, f.err
}

func TestResolve(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		GuildID:          1,
		WelcomeChannelID: 2,
		RustaceanRoleID:  10,
		CouncilRoleID:    11,
		NewcomerRoleID:   99,
		OkEmojiName:      "rustOk",
	}
	src := fakeSource{
		roles: []discord.Role{{ID: 10, Name: "Rustacean"}, {ID: 11, Name: "Council"}},
		emojis: []discord.Emoji{
			{ID: 20, Name: "ferris"},
			{ID: 21, Name: "rustOk"},
		},
	}

	c, err := Resolve(context.Background(), src, cfg)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if c.Rustacean == nil || c.Rustacean.Name != "Rustacean" {
		t.Errorf("Rustacean = %v", c.Rustacean)
	}
	if c.Newcomer != nil {
		t.Errorf("Newcomer resolved to %v, want nil for a missing role", c.Newcomer)
	}
	if got := c.FerrisReaction(); got != "ferris:20" {
		t.Errorf("FerrisReaction()=%q want=ferris:20", got)
	}
	if got := c.OkReaction(); got != "rustOk:21" {
		t.Errorf("OkReaction()=%q want=rustOk:21", got)
	}
	if c.WelcomeChannelID != 2 {
		t.Errorf("WelcomeChannelID = %d", c.WelcomeChannelID)
	}
}

func TestResolve_ConfiguredFerrisID(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{GuildID: 1, FerrisEmojiID: 31}
	src := fakeSource{emojis: []discord.Emoji{{ID: 30, Name: "ferris"}, {ID: 31, Name: "ferrisBanne"}}}

	c, err := Resolve(context.Background(), src, cfg)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := c.FerrisReaction(); got != "ferrisBanne:31" {
		t.Fatalf("FerrisReaction()=%q want=ferrisBanne:31", got)
	}
}

func TestResolve_Error(t *testing.T) {
	t.Parallel()

	if _, err := Resolve(context.Background(), fakeSource{err: errors.New("boom")}, &config.Config{}); err == nil {
		t.Fatal("Resolve succeeded on a REST failure")
	}
}

func TestFallbackReactions(t *testing.T) {
	t.Parallel()

	var c *Context
	if c.FerrisReaction() != "🦀" || c.OkReaction() != "👌" {
		t.Fatalf("nil context reactions = %q %q", c.FerrisReaction(), c.OkReaction())
	}
	var r Registry
	if r.Load() != nil {
		t.Fatal("empty registry returned a context")
	}
	r.Store(&Context{GuildID: 5})
	if r.Load().GuildID != 5 {
		t.Fatal("registry did not publish the stored context")
	}
}
