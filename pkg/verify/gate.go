package verify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ferris-bot/pkg/config"
	"ferris-bot/pkg/metrics"

	"github.com/disgoorg/snowflake/v2"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
)

const (
	overlayConcurrency = 4
	cleanupTimeout     = 15 * time.Second
)

type key struct {
	guildID  snowflake.ID
	memberID snowflake.ID
}

type entry struct {
	PendingVerification
	correct   string
	wrong     string
	reactions chan string
}

// Gate holds every in-flight verification. A member is in the set from join
// until their prompt has been deleted.
type Gate struct {
	platform Platform
	policy   PolicyFunc

	mu      sync.Mutex
	pending map[key]*entry
	wg      sync.WaitGroup
}

func NewGate(platform Platform, policy PolicyFunc) *Gate {
	return &Gate{
		platform: platform,
		policy:   policy,
		pending:  make(map[key]*entry),
	}
}

// Join starts a verification for a freshly joined member in the background.
func (g *Gate) Join(ctx context.Context, guildID snowflake.ID, memberID snowflake.ID, isBot bool) {
	if isBot {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		outcome, err := g.Run(ctx, guildID, memberID)
		if err != nil {
			slog.Error("verify: error while running verification", tint.Err(err), slog.Any("guild.id", guildID), slog.Any("member.id", memberID))
			return
		}
		slog.Info("verify: verification finished", slog.Any("guild.id", guildID), slog.Any("member.id", memberID), slog.String("outcome", outcome.String()))
	}()
}

// Wait blocks until every verification started through Join has returned.
func (g *Gate) Wait() {
	g.wg.Wait()
}

// Run drives one member through the gate and blocks until a terminal outcome.
func (g *Gate) Run(ctx context.Context, guildID snowflake.ID, memberID snowflake.ID) (Outcome, error) {
	policy, err := g.policy(ctx, guildID)
	if err != nil {
		metrics.Verifications.WithLabelValues(OutcomeAbandoned.String()).Inc()
		return OutcomeAbandoned, fmt.Errorf("resolve policy: %w", err)
	}

	e := &entry{
		PendingVerification: PendingVerification{
			GuildID:   guildID,
			MemberID:  memberID,
			ChannelID: policy.ChannelID,
			CreatedAt: time.Now(),
			Mode:      policy.Mode,
			RoleID:    policy.RoleID,
			State:     StateRestricted,
		},
		correct:   policy.Correct,
		wrong:     policy.Wrong,
		reactions: make(chan string, 1),
	}
	if !g.register(e) {
		return OutcomeAbandoned, ErrAlreadyPending
	}
	defer g.unregister(e)

	logger := slog.With(slog.Any("guild.id", guildID), slog.Any("member.id", memberID))

	g.restrict(ctx, e, logger)

	promptID, err := g.platform.SendMessage(ctx, policy.ChannelID, PromptText(memberID, policy.Timeout), memberID)
	if err != nil {
		logger.Error("verify: error while posting welcome prompt", tint.Err(err))
		g.finish(e, StateAbandoned)
		metrics.Verifications.WithLabelValues(OutcomeAbandoned.String()).Inc()
		return OutcomeAbandoned, nil
	}
	deadline := g.await(e, promptID, policy.Timeout)

	for _, emoji := range []string{policy.Wrong, policy.Correct} {
		if err := g.platform.AddReaction(ctx, policy.ChannelID, promptID, emoji); err != nil {
			logger.Error("verify: error while attaching reaction", tint.Err(err), slog.String("emoji", emoji))
		}
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	var outcome Outcome
	select {
	case symbol := <-e.reactions:
		if symbol == policy.Correct {
			outcome = OutcomeVerified
		} else {
			outcome = OutcomeWrongCommunity
		}
	case <-timer.C:
		outcome = OutcomeTimedOut
	case <-ctx.Done():
		outcome = OutcomeAbandoned
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	switch outcome {
	case OutcomeVerified:
		g.lift(cleanupCtx, e, logger)
		g.finish(e, StateVerified)
	case OutcomeWrongCommunity:
		g.kick(cleanupCtx, e, ReasonWrongCommunity, logger)
	case OutcomeTimedOut:
		g.kick(cleanupCtx, e, ReasonTimeout, logger)
	case OutcomeAbandoned:
		// nobody is left to answer the prompt after a restart
		g.lift(cleanupCtx, e, logger)
		g.finish(e, StateAbandoned)
	}

	if err := g.platform.DeleteMessage(cleanupCtx, policy.ChannelID, promptID); err != nil {
		logger.Error("verify: error while deleting welcome prompt", tint.Err(err))
	}
	metrics.Verifications.WithLabelValues(outcome.String()).Inc()
	return outcome, nil
}

// HandleReaction routes a reaction to the verification it belongs to. Reactions
// by anyone else, on any other message, or with any other symbol are ignored.
func (g *Gate) HandleReaction(guildID snowflake.ID, messageID snowflake.ID, reactorID snowflake.ID, symbol string) bool {
	g.mu.Lock()
	e, ok := g.pending[key{guildID, reactorID}]
	if !ok || e.State != StateAwaitingReaction || e.PromptID != messageID {
		g.mu.Unlock()
		return false
	}
	g.mu.Unlock()

	if symbol != e.correct && symbol != e.wrong {
		return false
	}
	select {
	case e.reactions <- symbol:
		return true
	default:
		return false
	}
}

// Pending returns a snapshot of the verification for a member.
func (g *Gate) Pending(guildID snowflake.ID, memberID snowflake.ID) (PendingVerification, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.pending[key{guildID, memberID}]
	if !ok {
		return PendingVerification{}, false
	}
	p := e.PendingVerification
	p.Channels = append([]snowflake.ID(nil), e.Channels...)
	return p, true
}

func (g *Gate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

func (g *Gate) register(e *entry) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := key{e.GuildID, e.MemberID}
	if _, ok := g.pending[k]; ok {
		return false
	}
	g.pending[k] = e
	metrics.PendingVerifications.Inc()
	return true
}

func (g *Gate) unregister(e *entry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := key{e.GuildID, e.MemberID}
	if g.pending[k] == e {
		delete(g.pending, k)
		metrics.PendingVerifications.Dec()
	}
}

func (g *Gate) await(e *entry, promptID snowflake.ID, timeout time.Duration) time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	e.PromptID = promptID
	e.Deadline = time.Now().Add(timeout)
	e.State = StateAwaitingReaction
	return e.Deadline
}

func (g *Gate) finish(e *entry, state State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e.State = state
}

func (g *Gate) restrict(ctx context.Context, e *entry, logger *slog.Logger) {
	if e.Mode == config.VerificationModeRole {
		if err := g.platform.AddRole(ctx, e.GuildID, e.MemberID, e.RoleID, reasonRestricted); err != nil {
			logger.Error("verify: error while adding newcomer role", tint.Err(err), slog.Any("role.id", e.RoleID))
		}
		return
	}

	channels, err := g.platform.GuildChannels(ctx, e.GuildID)
	if err != nil {
		logger.Error("verify: error while listing guild channels", tint.Err(err))
		return
	}

	var (
		mu      sync.Mutex
		applied []snowflake.ID
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(overlayConcurrency)
	for _, channelID := range channels {
		eg.Go(func() error {
			overlay := Restricted
			if err := g.platform.SetOverlay(egCtx, channelID, e.MemberID, &overlay); err != nil {
				logger.Error("verify: error while applying overlay", tint.Err(err), slog.Any("channel.id", channelID))
				return nil
			}
			mu.Lock()
			applied = append(applied, channelID)
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	g.mu.Lock()
	e.Channels = applied
	g.mu.Unlock()
}

func (g *Gate) lift(ctx context.Context, e *entry, logger *slog.Logger) {
	if e.Mode == config.VerificationModeRole {
		if err := g.platform.RemoveRole(ctx, e.GuildID, e.MemberID, e.RoleID, reasonVerified); err != nil {
			logger.Error("verify: error while removing newcomer role", tint.Err(err), slog.Any("role.id", e.RoleID))
		}
		return
	}

	g.mu.Lock()
	channels := e.Channels
	e.Channels = nil
	g.mu.Unlock()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(overlayConcurrency)
	for _, channelID := range channels {
		eg.Go(func() error {
			if err := g.platform.SetOverlay(egCtx, channelID, e.MemberID, nil); err != nil {
				logger.Error("verify: error while removing overlay", tint.Err(err), slog.Any("channel.id", channelID))
			}
			return nil
		})
	}
	_ = eg.Wait()
}

func (g *Gate) kick(ctx context.Context, e *entry, reason string, logger *slog.Logger) {
	if err := g.platform.RemoveMember(ctx, e.GuildID, e.MemberID, reason); err != nil {
		logger.Error("verify: error while kicking member", tint.Err(err), slog.String("reason", reason))
	}
	g.finish(e, StateKicked)
}

// PromptText is the welcome message a new member has to react to.
func PromptText(memberID snowflake.ID, timeout time.Duration) string {
	return fmt.Sprintf("<@%s>, welcome to the **Rust Programming Language** community server!\n"+
		"If you're here for the language, react with the Ferris.\n"+
		"If you're here for Rust the game, react with the game controller.\n"+
		"If you don't react within %s, you'll be kicked.", memberID, humanize(timeout))
}

func humanize(d time.Duration) string {
	switch {
	case d >= time.Minute && d%time.Minute == 0:
		if d == time.Minute {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", d/time.Minute)
	case d == time.Second:
		return "1 second"
	default:
		return fmt.Sprintf("%d seconds", int64(d.Round(time.Second)/time.Second))
	}
}
