package handlers

import (
	"errors"
	"log/slog"
	"slices"
	"strings"

	"ferris-bot/pkg/metrics"

	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"
)

// Guard rejects an invocation by returning an error, usually ErrNotAllowed.
type Guard func(c *Context) error

type Command struct {
	Name    string
	Aliases []string
	Help    string
	Usage   string
	Guards  []Guard
	Sub     []*Command
	// Run may be nil for pure groups, they reply with their subcommands.
	Run func(c *Context) error

	cog *Cog
}

func (cmd *Command) matches(name string) bool {
	return cmd.Name == name || slices.Contains(cmd.Aliases, name)
}

type Cog struct {
	Name     string
	Guards   []Guard
	Before   func(c *Context) error
	After    func(c *Context) error
	OnError  func(c *Context, err error)
	Commands []*Command
}

// Match is the result of resolving a message against the table.
type Match struct {
	Cog     *Cog
	Command *Command
	Path    []string
	Args    string
}

func (m Match) Name() string {
	return strings.Join(m.Path, " ")
}

type Table struct {
	prefixes []string
	cogs     []*Cog
}

func NewTable(prefixes []string, cogs ...*Cog) *Table {
	sorted := slices.Clone(prefixes)
	// longest first so "🦀 " wins over "🦀"
	slices.SortStableFunc(sorted, func(a, b string) int { return len(b) - len(a) })
	t := &Table{prefixes: sorted, cogs: cogs}
	for _, cog := range cogs {
		for _, cmd := range cog.Commands {
			bind(cmd, cog)
		}
	}
	return t
}

func bind(cmd *Command, cog *Cog) {
	cmd.cog = cog
	for _, sub := range cmd.Sub {
		bind(sub, cog)
	}
}

func (t *Table) Cogs() []*Cog {
	return t.cogs
}

// Lookup finds a top level command by name or alias.
func (t *Table) Lookup(name string) (*Command, bool) {
	for _, cog := range t.cogs {
		for _, cmd := range cog.Commands {
			if cmd.matches(name) {
				return cmd, true
			}
		}
	}
	return nil, false
}

// StripPrefix returns the content after a configured prefix or a mention of selfID.
func (t *Table) StripPrefix(content string, selfID snowflake.ID) (string, bool) {
	if selfID != 0 {
		for _, mention := range []string{"<@" + selfID.String() + ">", "<@!" + selfID.String() + ">"} {
			if rest, ok := strings.CutPrefix(content, mention); ok {
				return strings.TrimLeft(rest, " "), true
			}
		}
	}
	for _, prefix := range t.prefixes {
		if len(content) >= len(prefix) && strings.EqualFold(content[:len(prefix)], prefix) {
			return content[len(prefix):], true
		}
	}
	return "", false
}

// Resolve maps message content to a command, descending into subcommands
// while the following words name one.
func (t *Table) Resolve(content string, selfID snowflake.ID) (Match, bool) {
	body, ok := t.StripPrefix(content, selfID)
	if !ok {
		return Match{}, false
	}
	return t.resolveBody(body)
}

func (t *Table) resolveBody(body string) (Match, bool) {
	name, rest := nextWord(body)
	if name == "" {
		return Match{}, false
	}
	cmd, ok := t.Lookup(name)
	if !ok {
		return Match{}, false
	}
	path := []string{cmd.Name}
	for {
		word, after := nextWord(rest)
		if word == "" {
			break
		}
		i := slices.IndexFunc(cmd.Sub, func(sub *Command) bool { return sub.matches(word) })
		if i < 0 {
			break
		}
		cmd = cmd.Sub[i]
		path = append(path, cmd.Name)
		rest = after
	}
	return Match{Cog: cmd.cog, Command: cmd, Path: path, Args: strings.TrimSpace(rest)}, true
}

// Dispatch resolves and runs a command. It reports whether the content named one.
func (t *Table) Dispatch(c *Context) bool {
	match, ok := t.Resolve(c.Message.Content, c.SelfID)
	if !ok {
		return false
	}
	c.Match = match
	c.Args = match.Args

	slog.Info("handlers: command invoked",
		slog.String("command.name", match.Name()),
		slog.Any("author.id", c.Message.Author.ID),
		slog.Any("channel.id", c.Message.ChannelID),
		slog.String("content", c.Message.Content))

	err := t.run(c, match)
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotAllowed):
		result = "forbidden"
	default:
		result = "error"
	}
	metrics.Commands.WithLabelValues(match.Name(), result).Inc()

	if err != nil {
		onError := defaultOnError
		if match.Cog != nil && match.Cog.OnError != nil {
			onError = match.Cog.OnError
		}
		onError(c, err)
	}
	return true
}

func (t *Table) run(c *Context, match Match) error {
	cog, cmd := match.Cog, match.Command
	var guards []Guard
	if cog != nil {
		guards = append(guards, cog.Guards...)
	}
	guards = append(guards, cmd.Guards...)
	for _, guard := range guards {
		if err := guard(c); err != nil {
			return err
		}
	}

	if cmd.Run == nil {
		return c.Reply(groupHelp(match))
	}
	if cog != nil && cog.Before != nil {
		if err := cog.Before(c); err != nil {
			return err
		}
	}
	if err := cmd.Run(c); err != nil {
		return err
	}
	if cog != nil && cog.After != nil {
		return cog.After(c)
	}
	return nil
}

func defaultOnError(c *Context, err error) {
	var userErr *UserError
	switch {
	case errors.Is(err, ErrNotAllowed), errors.As(err, &userErr):
	default:
		slog.Error("handlers: error while running command", slog.String("command.name", c.Match.Name()), slog.Any("channel.id", c.Message.ChannelID), tint.Err(err))
	}
	if clearErr := c.ClearReactions(); clearErr != nil {
		slog.Debug("handlers: error while clearing reactions", tint.Err(clearErr))
	}
	if reactErr := c.React("❌"); reactErr != nil {
		slog.Debug("handlers: error while reacting", tint.Err(reactErr))
	}
	if replyErr := c.Reply(userMessage(err)); replyErr != nil {
		slog.Error("handlers: error while replying", slog.Any("channel.id", c.Message.ChannelID), tint.Err(replyErr))
	}
}

func userMessage(err error) string {
	var userErr *UserError
	switch {
	case errors.As(err, &userErr):
		return userErr.Message
	case errors.Is(err, ErrNotAllowed):
		return ErrNotAllowed.Error()
	}
	return "It failed! " + err.Error()
}

func groupHelp(match Match) string {
	var b strings.Builder
	b.WriteString("Subcommands of `" + match.Name() + "`:\n")
	for _, sub := range match.Command.Sub {
		b.WriteString("- `" + sub.Name + "` " + sub.Help + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// nextWord splits off the first whitespace separated word.
func nextWord(s string) (string, string) {
	s = strings.TrimLeft(s, " \t\n")
	i := strings.IndexAny(s, " \t\n")
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}
