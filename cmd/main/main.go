package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ferris-bot/pkg"
	"ferris-bot/pkg/config"
	"ferris-bot/pkg/db"
	"ferris-bot/pkg/guild"
	"ferris-bot/pkg/handlers"
	"ferris-bot/pkg/metrics"
	"ferris-bot/pkg/platform"
	"ferris-bot/pkg/reminders"
	"ferris-bot/pkg/util"
	"ferris-bot/pkg/verify"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/rest"
	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:           cfg.SentryDSN,
		EnableTracing: false,
		EnableLogs:    true,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if cfg.IsProduction() { // only log events in prod
				return event
			}
			return nil
		},
	})
	if err != nil {
		panic(err)
	}
	defer sentry.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slogmulti.Fanout(
		tint.NewHandler(os.Stdout, &tint.Options{
			Level: logLevel(cfg.LogLevel),
		}),
		sentryslog.Option{
			EventLevel: []slog.Level{slog.LevelError},
			LogLevel:   []slog.Level{slog.LevelWarn},
		}.NewSentryHandler(ctx)))
	slog.SetDefault(logger)

	slog.Info("starting the bot...", slog.String("disgo.version", disgo.Version), slog.String("environment", cfg.Environment))

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	if err := db.Migrate(pool); err != nil {
		panic(err)
	}

	readiness := &metrics.Readiness{}
	b := &pkg.Bot{
		Config:    cfg,
		DB:        db.NewDB(pool),
		Guild:     &guild.Registry{},
		Reminders: reminders.NewScheduler(ctx),
		Readiness: readiness,
		StartedAt: time.Now(),
		Shutdown:  stop,
	}
	h := handlers.NewHandler(ctx, b)

	client, err := disgo.New(cfg.Token,
		bot.WithRestClientConfigOpts(rest.WithHTTPClient(util.NewRestClient())),
		bot.WithGatewayConfigOpts(gateway.WithIntents(
			gateway.IntentGuilds,
			gateway.IntentGuildMembers,
			gateway.IntentGuildMessages,
			gateway.IntentMessageContent,
			gateway.IntentGuildMessageReactions),
			gateway.WithPresenceOpts(gateway.WithPlayingActivity("with crabs"))),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds, cache.FlagChannels, cache.FlagRoles, cache.FlagMembers),
			cache.WithMemberCachePolicy(cache.PolicyAll[discord.Member])),
		bot.WithEventManagerConfigOpts(bot.WithAsyncEventsEnabled()),
		bot.WithEventListeners(h, h.Listeners()))
	if err != nil {
		panic(err)
	}

	b.Gate = verify.NewGate(platform.New(client.Rest), b.VerificationPolicy)
	b.SetStatus = func(ctx context.Context, status string) error {
		return client.SetPresence(ctx, gateway.WithPlayingActivity(status))
	}

	if err := client.OpenGateway(ctx); err != nil {
		panic(err)
	}

	srv := metrics.NewServer(cfg.MetricsAddr, readiness)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		slog.Info("metrics: listening", slog.String("addr", cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	slog.Info("ferris bot is now running.")
	<-ctx.Done()
	slog.Info("shutting down...")
	readiness.Set(false)

	b.Reminders.Stop()
	b.Gate.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	client.Close(closeCtx)

	if err := eg.Wait(); err != nil {
		slog.Error("metrics: error while serving", tint.Err(err))
	}
}

func logLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
