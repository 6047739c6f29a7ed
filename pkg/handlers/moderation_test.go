package handlers

import (
	"strings"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
)

func TestNextModlogID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		last string
		want int
	}{
		{last: "", want: 1},
		{last: "41 | **Kick**\n\n**User**", want: 42},
		{last: "not an entry", want: 1},
		{last: "   7 | **Ban**", want: 8},
	}
	for _, tc := range cases {
		if got := NextModlogID(tc.last); got != tc.want {
			t.Fatalf("NextModlogID(%q) = %d, want %d", tc.last, got, tc.want)
		}
	}
}

func TestFormatModlog(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	got := FormatModlog(3, ModAction{Name: "Ban", Reason: "spam", TargetID: 10, Target: "spammer"}, 20, at)

	parts := strings.Split(got, "\n\n")
	want := []string{
		"3 | **Ban**",
		"**User**\n<@10> (spammer 10)",
		"**Reason**\nspam",
		"**Responsible Moderator**\n<@20> (ID: 20)",
		"**Timestamp**\n2024-03-01 12:30:00",
	}
	if len(parts) != len(want) {
		t.Fatalf("FormatModlog() = %q", got)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Fatalf("part %d = %q, want %q", i, parts[i], want[i])
		}
	}
	if NextModlogID(got) != 4 {
		t.Fatalf("entry does not number the next one")
	}
}

func TestUnbanReason(t *testing.T) {
	t.Parallel()

	if got := UnbanReason("appealed", ""); got != "appealed" {
		t.Fatalf("UnbanReason() = %q", got)
	}
	want := "appealed\nUser was previously banned for \"spam\"."
	if got := UnbanReason("appealed", "spam"); got != want {
		t.Fatalf("UnbanReason() = %q, want %q", got, want)
	}
}

func TestCanModerate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name                  string
		author, botOwner, own uint64
		authorTop, targetTop  int
		want                  bool
	}{
		{name: "higher role", author: 1, authorTop: 5, targetTop: 3, want: true},
		{name: "equal role", author: 1, authorTop: 3, targetTop: 3, want: false},
		{name: "lower role", author: 1, authorTop: 1, targetTop: 3, want: false},
		{name: "bot owner", author: 1, botOwner: 1, authorTop: 0, targetTop: 9, want: true},
		{name: "guild owner", author: 1, own: 1, authorTop: 0, targetTop: 9, want: true},
		{name: "unset owners", author: 0, authorTop: 0, targetTop: 0, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := CanModerate(snowflakeID(tc.author), snowflakeID(tc.botOwner), snowflakeID(tc.own), tc.authorTop, tc.targetTop)
			if got != tc.want {
				t.Fatalf("CanModerate() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestModerationGuards(t *testing.T) {
	t.Parallel()

	table := NewTable([]string{"?"}, moderationCog())
	resp := &fakeResponder{}
	c := &Context{
		Responder: resp,
		GuildID:   1,
		Message:   discord.Message{ChannelID: 2, Content: "?kick <@3> rude"},
		Roles:     []discord.Role{{Name: "Moderator"}},
	}
	table.Dispatch(c)

	if len(resp.messages) != 1 || resp.messages[0].Content != ErrNotAllowed.Error() {
		t.Fatalf("moderator without kick permission: %+v", resp.messages)
	}

	resp = &fakeResponder{}
	table.Dispatch(&Context{
		Responder:   resp,
		GuildID:     1,
		Message:     discord.Message{Content: "?kick <@3> rude"},
		Permissions: discord.PermissionAdministrator,
	})
	if len(resp.messages) != 1 || resp.messages[0].Content != ErrNotAllowed.Error() {
		t.Fatalf("non moderator passed: %+v", resp.messages)
	}
}

func TestTopPosition(t *testing.T) {
	t.Parallel()

	if got := topPosition(nil); got != 0 {
		t.Fatalf("topPosition(nil) = %d", got)
	}
	roles := []discord.Role{{Position: 2}, {Position: 7}, {Position: 4}}
	if got := topPosition(roles); got != 7 {
		t.Fatalf("topPosition() = %d", got)
	}
}
