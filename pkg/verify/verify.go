package verify

import (
	"context"
	"errors"
	"time"

	"ferris-bot/pkg/config"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

const (
	ReasonWrongCommunity = "Wrong community"
	ReasonTimeout        = "Didn't react to welcome message in time"
	reasonRestricted     = "Awaiting welcome reaction"
	reasonVerified       = "Reacted to welcome message"
)

var ErrAlreadyPending = errors.New("member already has a pending verification")

// Platform is everything the gate needs from the chat platform.
type Platform interface {
	SendMessage(ctx context.Context, channelID snowflake.ID, content string, mention snowflake.ID) (snowflake.ID, error)
	AddReaction(ctx context.Context, channelID snowflake.ID, messageID snowflake.ID, emoji string) error
	DeleteMessage(ctx context.Context, channelID snowflake.ID, messageID snowflake.ID) error
	GuildChannels(ctx context.Context, guildID snowflake.ID) ([]snowflake.ID, error)
	// SetOverlay replaces the member overwrite in a channel, a nil overlay removes it.
	SetOverlay(ctx context.Context, channelID snowflake.ID, memberID snowflake.ID, overlay *Overlay) error
	AddRole(ctx context.Context, guildID snowflake.ID, memberID snowflake.ID, roleID snowflake.ID, reason string) error
	RemoveRole(ctx context.Context, guildID snowflake.ID, memberID snowflake.ID, roleID snowflake.ID, reason string) error
	RemoveMember(ctx context.Context, guildID snowflake.ID, memberID snowflake.ID, reason string) error
}

type Overlay struct {
	Allow discord.Permissions
	Deny  discord.Permissions
}

// Restricted is the overlay put on every channel while a member is unverified.
// It only takes permissions away so hidden channels stay hidden.
var Restricted = Overlay{
	Deny: discord.PermissionSendMessages,
}

// Policy is resolved once per join.
type Policy struct {
	Mode      config.VerificationMode
	Timeout   time.Duration
	ChannelID snowflake.ID
	RoleID    snowflake.ID
	// Correct and Wrong are reaction strings as accepted by the reaction API.
	Correct string
	Wrong   string
}

type PolicyFunc func(ctx context.Context, guildID snowflake.ID) (Policy, error)

type State int

const (
	StateRestricted State = iota
	StateAwaitingReaction
	StateVerified
	StateKicked
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateRestricted:
		return "restricted"
	case StateAwaitingReaction:
		return "awaiting_reaction"
	case StateVerified:
		return "verified"
	case StateKicked:
		return "kicked"
	case StateAbandoned:
		return "abandoned"
	}
	return "unknown"
}

type Outcome int

const (
	OutcomeVerified Outcome = iota
	OutcomeWrongCommunity
	OutcomeTimedOut
	OutcomeAbandoned
)

func (o Outcome) String() string {
	switch o {
	case OutcomeVerified:
		return "verified"
	case OutcomeWrongCommunity:
		return "wrong_community"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeAbandoned:
		return "abandoned"
	}
	return "unknown"
}

// PendingVerification is a snapshot of one member going through the gate.
type PendingVerification struct {
	GuildID   snowflake.ID
	MemberID  snowflake.ID
	ChannelID snowflake.ID
	PromptID  snowflake.ID
	CreatedAt time.Time
	Deadline  time.Time
	Mode      config.VerificationMode
	RoleID    snowflake.ID
	// Channels holds the channels whose overlay was applied and must be lifted again.
	Channels []snowflake.ID
	State    State
}
