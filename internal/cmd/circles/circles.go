// Package circles parses circles service flags and launches the service.
package circles

import (
	"context"
	"flag"
	"fmt"
	"log/slog"

	circleservice "github.com/openshelf/circles/internal/circle/service"
	contentservice "github.com/openshelf/circles/internal/content/service"
	emoteservice "github.com/openshelf/circles/internal/emote/service"
	"github.com/openshelf/circles/internal/event"
	entrypoint "github.com/openshelf/circles/internal/platform/cmd"
	"github.com/openshelf/circles/internal/profile"
	profileservice "github.com/openshelf/circles/internal/profile/service"
	publishservice "github.com/openshelf/circles/internal/publish/service"
	"github.com/openshelf/circles/internal/storage/sqlite"
	"github.com/openshelf/circles/internal/token"
	tokenservice "github.com/openshelf/circles/internal/token/service"
)

// Config holds circles command configuration.
type Config struct {
	DBPath string `env:"CIRCLES_DB_PATH" envDefault:"circles.db"`
}

// Services bundles the wired domain services for an embedding process.
type Services struct {
	Profiles *profileservice.Service
	Circles  *circleservice.Service
	Content  *contentservice.Service
	Emotes   *emoteservice.Service
	Tokens   *tokenservice.Engine
	Publish  *publishservice.Engine
	Store    *sqlite.Store
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the sqlite database file")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Build opens the store and wires every domain service against it. The
// caller owns the returned store and closes it on shutdown.
func Build(cfg Config, log *slog.Logger) (*Services, error) {
	if log == nil {
		log = slog.Default()
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	tokenCfg, err := token.LoadConfigFromEnv()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load token config: %w", err)
	}
	tokens, err := tokenservice.NewEngine(store, tokenCfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build token engine: %w", err)
	}

	var privCfg profile.PrivilegeConfig
	if err := entrypoint.ParseConfig(&privCfg); err != nil {
		store.Close()
		return nil, fmt.Errorf("load privilege config: %w", err)
	}

	emitter := event.NewEmitter(store)
	publisher := publishservice.NewEngine(store, log)

	circleOpts := []circleservice.Option{
		circleservice.WithTokenEngine(tokens),
		circleservice.WithPublishEngine(publisher),
		circleservice.WithEvents(emitter),
	}
	grantCfg, err := token.LoadGrantConfigFromEnv(nil)
	if err != nil {
		// Acceptance grants are an optional second path; without keys
		// the stored-token flow still works.
		log.Warn("accept grants disabled", "error", err)
	} else {
		circleOpts = append(circleOpts, circleservice.WithGrantConfig(grantCfg))
	}

	return &Services{
		Profiles: profileservice.NewService(store, store, log, profileservice.WithPrivilegeConfig(privCfg)),
		Circles:  circleservice.NewService(store, store, log, circleOpts...),
		Content:  contentservice.NewService(store, store, publisher, log, contentservice.WithEvents(emitter)),
		Emotes:   emoteservice.NewService(store, log, emoteservice.WithEvents(emitter)),
		Tokens:   tokens,
		Publish:  publisher,
		Store:    store,
	}, nil
}

// Run starts the circles service and blocks until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCircles, func(ctx context.Context) error {
		log := slog.Default()
		services, err := Build(cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := services.Store.Close(); err != nil {
				log.Warn("closing store failed", "error", err)
			}
		}()

		log.Info("circles service ready", "db", cfg.DBPath)
		<-ctx.Done()
		log.Info("circles service stopping")
		return nil
	})
}
