package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ferris-bot/pkg/config"
	"ferris-bot/pkg/metrics"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const (
	testGuild   = snowflake.ID(273534239310479360)
	testWelcome = snowflake.ID(338125445256052736)
	testRole    = snowflake.ID(319953207193501696)
	ferris      = "ferris:358652670585733120"
	controller  = "🎮"
)

type fakePlatform struct {
	mu          sync.Mutex
	calls       []string
	nextID      snowflake.ID
	channels    []snowflake.ID
	failOverlay map[snowflake.ID]bool
	failSend    bool
	failKick    bool
	overlays    map[snowflake.ID]int
	applied     map[snowflake.ID]Overlay
	cleared     map[snowflake.ID]int
	deleted     map[snowflake.ID]int
	kicks       map[snowflake.ID][]string
}

func newFakePlatform(channels ...snowflake.ID) *fakePlatform {
	return &fakePlatform{
		nextID:      1000,
		channels:    channels,
		failOverlay: map[snowflake.ID]bool{},
		overlays:    map[snowflake.ID]int{},
		applied:     map[snowflake.ID]Overlay{},
		cleared:     map[snowflake.ID]int{},
		deleted:     map[snowflake.ID]int{},
		kicks:       map[snowflake.ID][]string{},
	}
}

func (f *fakePlatform) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakePlatform) SendMessage(_ context.Context, channelID snowflake.ID, _ string, mention snowflake.ID) (snowflake.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return 0, errors.New("missing access")
	}
	f.nextID++
	f.record("send %d %d", channelID, mention)
	return f.nextID, nil
}

func (f *fakePlatform) AddReaction(_ context.Context, _ snowflake.ID, messageID snowflake.ID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("react %d %s", messageID, emoji)
	return nil
}

func (f *fakePlatform) DeleteMessage(_ context.Context, _ snowflake.ID, messageID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[messageID]++
	f.record("delete %d", messageID)
	return nil
}

func (f *fakePlatform) GuildChannels(context.Context, snowflake.ID) ([]snowflake.ID, error) {
	return f.channels, nil
}

func (f *fakePlatform) SetOverlay(_ context.Context, channelID snowflake.ID, memberID snowflake.ID, overlay *Overlay) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if overlay == nil {
		f.cleared[channelID]++
		f.record("clear %d %d", channelID, memberID)
		return nil
	}
	if f.failOverlay[channelID] {
		return errors.New("missing permissions")
	}
	f.overlays[channelID]++
	f.applied[channelID] = *overlay
	f.record("overlay %d %d", channelID, memberID)
	return nil
}

func (f *fakePlatform) AddRole(_ context.Context, _ snowflake.ID, memberID snowflake.ID, roleID snowflake.ID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("addrole %d %d", memberID, roleID)
	return nil
}

func (f *fakePlatform) RemoveRole(_ context.Context, _ snowflake.ID, memberID snowflake.ID, roleID snowflake.ID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("removerole %d %d", memberID, roleID)
	return nil
}

func (f *fakePlatform) RemoveMember(_ context.Context, _ snowflake.ID, memberID snowflake.ID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicks[memberID] = append(f.kicks[memberID], reason)
	f.record("kick %d", memberID)
	if f.failKick {
		return errors.New("missing permissions")
	}
	return nil
}

func (f *fakePlatform) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakePlatform) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func staticPolicy(mode config.VerificationMode, timeout time.Duration) PolicyFunc {
	return func(context.Context, snowflake.ID) (Policy, error) {
		return Policy{
			Mode:      mode,
			Timeout:   timeout,
			ChannelID: testWelcome,
			RoleID:    testRole,
			Correct:   ferris,
			Wrong:     controller,
		}, nil
	}
}

type result struct {
	outcome Outcome
	err     error
}

func start(ctx context.Context, g *Gate, memberID snowflake.ID) <-chan result {
	done := make(chan result, 1)
	go func() {
		outcome, err := g.Run(ctx, testGuild, memberID)
		done <- result{outcome, err}
	}()
	return done
}

// waitAwaiting polls until the member's prompt is posted and returns its snapshot.
func waitAwaiting(t *testing.T, g *Gate, memberID snowflake.ID) PendingVerification {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p, ok := g.Pending(testGuild, memberID); ok && p.State == StateAwaitingReaction {
			return p
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("member %d never reached the awaiting state", memberID)
	return PendingVerification{}
}

func wait(t *testing.T, done <-chan result) result {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("verification did not finish")
		return result{}
	}
}

func TestGate_CorrectReactionVerifies(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform(1, 2, 3)
	g := NewGate(platform, staticPolicy(config.VerificationModeOverlay, time.Minute))
	member := snowflake.ID(42)

	done := start(context.Background(), g, member)
	p := waitAwaiting(t, g, member)
	if len(p.Channels) != 3 {
		t.Fatalf("Channels = %v, want 3 applied overlays", p.Channels)
	}
	if !g.HandleReaction(testGuild, p.PromptID, member, ferris) {
		t.Fatal("HandleReaction ignored the correct reaction")
	}

	r := wait(t, done)
	if r.err != nil || r.outcome != OutcomeVerified {
		t.Fatalf("Run = %v, %v, want verified", r.outcome, r.err)
	}
	for _, ch := range []snowflake.ID{1, 2, 3} {
		if platform.cleared[ch] != 1 {
			t.Errorf("overlay on channel %d cleared %d times, want 1", ch, platform.cleared[ch])
		}
	}
	if n := platform.count("kick"); n != 0 {
		t.Errorf("member kicked %d times", n)
	}
	if platform.deleted[p.PromptID] != 1 {
		t.Errorf("prompt deleted %d times, want 1", platform.deleted[p.PromptID])
	}
	if last := platform.lastCall(); last != fmt.Sprintf("delete %d", p.PromptID) {
		t.Errorf("last call = %q, want prompt deletion", last)
	}
	if g.Active() != 0 {
		t.Errorf("Active() = %d after verification", g.Active())
	}
}

func TestGate_WrongReactionKicks(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform(1, 2)
	g := NewGate(platform, staticPolicy(config.VerificationModeOverlay, time.Minute))
	member := snowflake.ID(43)

	done := start(context.Background(), g, member)
	p := waitAwaiting(t, g, member)
	g.HandleReaction(testGuild, p.PromptID, member, controller)

	r := wait(t, done)
	if r.outcome != OutcomeWrongCommunity {
		t.Fatalf("outcome = %v, want wrong_community", r.outcome)
	}
	if got := platform.kicks[member]; len(got) != 1 || got[0] != ReasonWrongCommunity {
		t.Fatalf("kicks = %q, want one %q", got, ReasonWrongCommunity)
	}
	if n := platform.count("clear"); n != 0 {
		t.Errorf("overlays restored %d times on a kick", n)
	}
	if platform.deleted[p.PromptID] != 1 {
		t.Errorf("prompt deleted %d times, want 1", platform.deleted[p.PromptID])
	}
	if last := platform.lastCall(); last != fmt.Sprintf("delete %d", p.PromptID) {
		t.Errorf("last call = %q, want prompt deletion", last)
	}
}

func TestGate_TimeoutKicks(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform(1)
	g := NewGate(platform, staticPolicy(config.VerificationModeOverlay, 50*time.Millisecond))
	member := snowflake.ID(44)

	r := wait(t, start(context.Background(), g, member))
	if r.outcome != OutcomeTimedOut {
		t.Fatalf("outcome = %v, want timed_out", r.outcome)
	}
	if got := platform.kicks[member]; len(got) != 1 || got[0] != ReasonTimeout {
		t.Fatalf("kicks = %q, want one %q", got, ReasonTimeout)
	}
	if _, ok := g.Pending(testGuild, member); ok {
		t.Fatal("member still pending after timeout")
	}
}

func TestGate_ConcurrentMembersAreIndependent(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform(1)
	g := NewGate(platform, staticPolicy(config.VerificationModeOverlay, time.Minute))
	first, second := snowflake.ID(45), snowflake.ID(46)

	doneFirst := start(context.Background(), g, first)
	doneSecond := start(context.Background(), g, second)
	p1 := waitAwaiting(t, g, first)
	p2 := waitAwaiting(t, g, second)
	if p1.PromptID == p2.PromptID {
		t.Fatal("members share a prompt")
	}

	// Reacting on someone else's prompt does nothing.
	if g.HandleReaction(testGuild, p2.PromptID, first, ferris) {
		t.Fatal("reaction on another member's prompt was accepted")
	}

	g.HandleReaction(testGuild, p1.PromptID, first, ferris)
	if r := wait(t, doneFirst); r.outcome != OutcomeVerified {
		t.Fatalf("first outcome = %v", r.outcome)
	}

	still, ok := g.Pending(testGuild, second)
	if !ok || still.State != StateAwaitingReaction || !still.Deadline.Equal(p2.Deadline) {
		t.Fatalf("second member disturbed: %+v, %v", still, ok)
	}

	g.HandleReaction(testGuild, p2.PromptID, second, controller)
	if r := wait(t, doneSecond); r.outcome != OutcomeWrongCommunity {
		t.Fatalf("second outcome = %v", r.outcome)
	}
	if len(platform.kicks[first]) != 0 {
		t.Errorf("first member was kicked")
	}
}

func TestGate_IgnoresUnrelatedReactions(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform()
	g := NewGate(platform, staticPolicy(config.VerificationModeOverlay, time.Minute))
	member := snowflake.ID(47)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := start(ctx, g, member)
	p := waitAwaiting(t, g, member)

	cases := []struct {
		name    string
		guild   snowflake.ID
		message snowflake.ID
		reactor snowflake.ID
		symbol  string
	}{
		{"other reactor", testGuild, p.PromptID, 99, ferris},
		{"other message", testGuild, p.PromptID + 1, member, ferris},
		{"other symbol", testGuild, p.PromptID, member, "👍"},
		{"other guild", 1, p.PromptID, member, ferris},
	}
	for _, tc := range cases {
		if g.HandleReaction(tc.guild, tc.message, tc.reactor, tc.symbol) {
			t.Errorf("%s: reaction accepted", tc.name)
		}
	}
	if _, ok := g.Pending(testGuild, member); !ok {
		t.Fatal("member no longer pending")
	}

	cancel()
	if r := wait(t, done); r.outcome != OutcomeAbandoned {
		t.Fatalf("outcome after shutdown = %v, want abandoned", r.outcome)
	}
	if platform.deleted[p.PromptID] != 1 {
		t.Errorf("prompt deleted %d times on shutdown, want 1", platform.deleted[p.PromptID])
	}
	if n := platform.count("kick"); n != 0 {
		t.Errorf("member kicked %d times on shutdown", n)
	}
}

func TestGate_PartialOverlayFailure(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform(1, 2, 3)
	platform.failOverlay[2] = true
	g := NewGate(platform, staticPolicy(config.VerificationModeOverlay, time.Minute))
	member := snowflake.ID(48)

	done := start(context.Background(), g, member)
	p := waitAwaiting(t, g, member)
	if len(p.Channels) != 2 {
		t.Fatalf("Channels = %v, want the two that succeeded", p.Channels)
	}
	g.HandleReaction(testGuild, p.PromptID, member, ferris)
	wait(t, done)

	if platform.cleared[2] != 0 {
		t.Errorf("restored a channel that was never restricted")
	}
	if platform.cleared[1] != 1 || platform.cleared[3] != 1 {
		t.Errorf("cleared = %v", platform.cleared)
	}
}

func TestGate_RoleMode(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform(1, 2)
	g := NewGate(platform, staticPolicy(config.VerificationModeRole, time.Minute))
	member := snowflake.ID(49)

	done := start(context.Background(), g, member)
	p := waitAwaiting(t, g, member)
	g.HandleReaction(testGuild, p.PromptID, member, ferris)
	wait(t, done)

	if n := platform.count("overlay"); n != 0 {
		t.Errorf("%d overlays applied in role mode", n)
	}
	if platform.count("addrole") != 1 || platform.count("removerole") != 1 {
		t.Errorf("calls = %q, want one role add and one removal", platform.calls)
	}
}

func TestGate_PromptFailureAbandons(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform(1)
	platform.failSend = true
	g := NewGate(platform, staticPolicy(config.VerificationModeOverlay, time.Minute))
	member := snowflake.ID(50)

	r := wait(t, start(context.Background(), g, member))
	if r.err != nil || r.outcome != OutcomeAbandoned {
		t.Fatalf("Run = %v, %v, want abandoned", r.outcome, r.err)
	}
	if platform.count("kick") != 0 || platform.count("delete") != 0 || platform.count("clear") != 0 {
		t.Fatalf("unexpected calls after failed prompt: %q", platform.calls)
	}
	if g.Active() != 0 {
		t.Fatalf("Active() = %d", g.Active())
	}
}

func TestGate_KickFailureIsTerminal(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform()
	platform.failKick = true
	g := NewGate(platform, staticPolicy(config.VerificationModeOverlay, 20*time.Millisecond))
	member := snowflake.ID(51)

	r := wait(t, start(context.Background(), g, member))
	if r.outcome != OutcomeTimedOut {
		t.Fatalf("outcome = %v", r.outcome)
	}
	if len(platform.kicks[member]) != 1 {
		t.Fatalf("kick attempted %d times, want 1", len(platform.kicks[member]))
	}
	if platform.count("delete") != 1 {
		t.Fatalf("prompt not deleted after failed kick")
	}
}

func TestGate_DuplicateJoin(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform()
	g := NewGate(platform, staticPolicy(config.VerificationModeOverlay, time.Minute))
	member := snowflake.ID(52)
	ctx, cancel := context.WithCancel(context.Background())

	done := start(ctx, g, member)
	waitAwaiting(t, g, member)
	if _, err := g.Run(ctx, testGuild, member); !errors.Is(err, ErrAlreadyPending) {
		t.Fatalf("second Run err = %v, want ErrAlreadyPending", err)
	}
	cancel()
	wait(t, done)
}

func TestGate_JoinSkipsBots(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform(1)
	g := NewGate(platform, staticPolicy(config.VerificationModeOverlay, time.Minute))
	g.Join(context.Background(), testGuild, 53, true)
	g.Wait()

	if len(platform.calls) != 0 {
		t.Fatalf("bot join produced calls: %q", platform.calls)
	}
}

func TestPromptText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		timeout time.Duration
		want    string
	}{
		{5 * time.Minute, "5 minutes"},
		{time.Minute, "1 minute"},
		{90 * time.Second, "90 seconds"},
	}
	for _, tc := range cases {
		text := PromptText(42, tc.timeout)
		if !strings.Contains(text, "<@42>") || !strings.Contains(text, tc.want) {
			t.Fatalf("PromptText(42, %v)=%q want mention and %q", tc.timeout, text, tc.want)
		}
	}
}

func TestGate_OverlayOnlyTakesPermissions(t *testing.T) {
	t.Parallel()

	platform := newFakePlatform(1, 2, 3)
	g := NewGate(platform, staticPolicy(config.VerificationModeOverlay, time.Minute))
	member := snowflake.ID(53)

	done := start(context.Background(), g, member)
	p := waitAwaiting(t, g, member)

	platform.mu.Lock()
	for _, ch := range []snowflake.ID{1, 2, 3} {
		overlay, ok := platform.applied[ch]
		if !ok {
			t.Errorf("no overlay on channel %d", ch)
			continue
		}
		if overlay.Allow != 0 {
			t.Errorf("overlay on channel %d allows %v", ch, overlay.Allow)
		}
		if overlay.Allow.Has(discord.PermissionViewChannel) {
			t.Errorf("overlay on channel %d reveals the channel", ch)
		}
		if !overlay.Deny.Has(discord.PermissionSendMessages) {
			t.Errorf("overlay on channel %d does not deny sending", ch)
		}
	}
	platform.mu.Unlock()

	g.HandleReaction(testGuild, p.PromptID, member, ferris)
	wait(t, done)
}

func TestGate_ShutdownLiftsRestriction(t *testing.T) {
	t.Parallel()

	for _, mode := range []config.VerificationMode{config.VerificationModeOverlay, config.VerificationModeRole} {
		t.Run(mode.String(), func(t *testing.T) {
			t.Parallel()

			platform := newFakePlatform(1, 2)
			g := NewGate(platform, staticPolicy(mode, time.Minute))
			member := snowflake.ID(54)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			done := start(ctx, g, member)
			p := waitAwaiting(t, g, member)
			cancel()
			if r := wait(t, done); r.outcome != OutcomeAbandoned {
				t.Fatalf("outcome = %v, want abandoned", r.outcome)
			}

			if mode == config.VerificationModeRole {
				if platform.count("removerole") != 1 {
					t.Fatalf("calls = %q, want the newcomer role removed", platform.calls)
				}
			} else if platform.cleared[1] != 1 || platform.cleared[2] != 1 {
				t.Fatalf("cleared = %v, want every overlay lifted once", platform.cleared)
			}
			if platform.count("kick") != 0 {
				t.Fatalf("member kicked on shutdown")
			}
			if want := fmt.Sprintf("delete %d", p.PromptID); platform.lastCall() != want {
				t.Fatalf("last call = %q, want %q", platform.lastCall(), want)
			}
		})
	}
}

// Not parallel: it reads a process wide counter.
func TestGate_PolicyErrorIsCounted(t *testing.T) {
	platform := newFakePlatform(1)
	g := NewGate(platform, func(context.Context, snowflake.ID) (Policy, error) {
		return Policy{}, errors.New("database down")
	})

	abandoned := metrics.Verifications.WithLabelValues(OutcomeAbandoned.String())
	before := testutil.ToFloat64(abandoned)

	outcome, err := g.Run(context.Background(), testGuild, 55)
	if err == nil || outcome != OutcomeAbandoned {
		t.Fatalf("Run = %v, %v, want abandoned with an error", outcome, err)
	}
	if got := testutil.ToFloat64(abandoned) - before; got != 1 {
		t.Fatalf("abandoned counter moved by %v, want 1", got)
	}
	if len(platform.calls) != 0 || g.Active() != 0 {
		t.Fatalf("calls = %q, Active() = %d", platform.calls, g.Active())
	}
}
