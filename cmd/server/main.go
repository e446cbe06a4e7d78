package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/broadcast"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/catalog"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/config"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/domain"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/emotes"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/enrich"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/logging"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/nlp"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/server"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/session"
	"github.com/factaxd/Twitch-Chat-Emote-Analyzer/internal/twitch"
)

func setupConfig() *config.Config {
	// Missing .env is fine, the environment may carry everything.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupIdentity(cfg *config.Config) domain.IdentityResolver {
	resolver, err := twitch.NewHelixResolver(cfg.TwitchClientID, cfg.TwitchAccessToken)
	if err != nil {
		slog.Error("Failed to create helix client", "error", err)
		os.Exit(1)
	}
	if resolver == nil {
		slog.Warn("No Twitch client id configured, identity lookup disabled")
		return twitch.NoopResolver{}
	}
	return resolver
}

func runGracefulShutdown(srv *server.Server, supervisor *session.Supervisor, hub *broadcast.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		hub.Stop()

		if err := supervisor.ShutdownAll(shutdownCtx); err != nil {
			slog.Error("Session shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	cat, err := catalog.Load(cfg.EmoteSentimentCSV)
	if err != nil {
		slog.Error("Failed to load emote sentiment catalog", "path", cfg.EmoteSentimentCSV, "error", err)
		os.Exit(1)
	}

	directory := emotes.NewDirectory(
		setupIdentity(cfg),
		emotes.NewSevenTVClient(nil),
		emotes.NewFFZClient(nil),
		emotes.NewSevenTVClient(nil),
	)

	pipeline := enrich.NewPipeline(nlp.NewVaderScorer(), nlp.NewProseExtractor(), cat, cfg.MaxKeywords)

	factory := twitch.NewFactory(twitch.ConnectorConfig{
		Nickname:    cfg.BotNickname,
		AccessToken: cfg.TwitchAccessToken,
	})
	// The hub and supervisor reference each other: the hub drives session
	// lifecycle from subscriber counts, sessions publish through the hub.
	var hub *broadcast.Hub
	supervisor := session.NewSupervisor(factory, publisherFunc(func(channel string, event domain.Event) {
		hub.Broadcast(channel, event)
	}), pipeline, directory, session.DefaultStartTimeout)
	if cfg.AnonymousChat() {
		slog.Warn("No Twitch access token configured, connecting to chat anonymously")
		supervisor.SetAnonymous(true)
	}

	onFirstSubscribe := func(channel string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return supervisor.Acquire(ctx, channel)
	}
	onLastUnsubscribe := func(channel string) {
		supervisor.Release(channel)
	}
	hub = broadcast.NewHub(onFirstSubscribe, onLastUnsubscribe, clock)

	srv := server.NewServer(cfg, hub, supervisor, cat, directory)

	done := runGracefulShutdown(srv, supervisor, hub)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}

// publisherFunc adapts a function to the Publisher interface.
type publisherFunc func(channel string, event domain.Event)

func (f publisherFunc) Broadcast(channel string, event domain.Event) { f(channel, event) }
