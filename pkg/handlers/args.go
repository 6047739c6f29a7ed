package handlers

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/disgoorg/snowflake/v2"
)

const (
	zeroWidthSpace = "\u200b"
	maxMessageLen  = 2000
)

var (
	userMentionRegex = regexp.MustCompile(`^<@!?(\d+)>$`)
	roleMentionRegex = regexp.MustCompile(`^<@&(\d+)>$`)
)

// ParseUserID accepts a user mention or a raw ID.
func ParseUserID(arg string) (snowflake.ID, bool) {
	if m := userMentionRegex.FindStringSubmatch(arg); m != nil {
		arg = m[1]
	}
	return parseID(arg)
}

func ParseRoleID(arg string) (snowflake.ID, bool) {
	if m := roleMentionRegex.FindStringSubmatch(arg); m != nil {
		arg = m[1]
	}
	return parseID(arg)
}

func parseID(arg string) (snowflake.ID, bool) {
	if arg == "" {
		return 0, false
	}
	id, err := snowflake.Parse(arg)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// EscapeMentions neutralises mass mentions with a zero width space.
func EscapeMentions(s string) string {
	s = strings.ReplaceAll(s, "@everyone", "@"+zeroWidthSpace+"everyone")
	return strings.ReplaceAll(s, "@here", "@"+zeroWidthSpace+"here")
}

// Truncate cuts s to at most n bytes without splitting a rune.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func splitArgs(args string) (string, string) {
	first, rest := nextWord(args)
	return first, strings.TrimSpace(rest)
}

func parseLimit(arg string, def int) (int, error) {
	if arg == "" {
		return def, nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return 0, userErrorf("%q is not a valid number.", arg)
	}
	return n, nil
}

func parseMessageID(arg string) (snowflake.ID, error) {
	id, ok := parseID(arg)
	if !ok {
		return 0, userErrorf("%q is not a valid message ID. Use Developer Mode to get the Copy ID option.", arg)
	}
	return id, nil
}

func userMention(id snowflake.ID) string {
	return "<@" + id.String() + ">"
}

func roleMention(id snowflake.ID) string {
	return "<@&" + id.String() + ">"
}

func channelMention(id snowflake.ID) string {
	return "<#" + id.String() + ">"
}
