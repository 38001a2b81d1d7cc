package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/picguess/picguess-backend/internal"
	"github.com/picguess/picguess-backend/internal/game"
	"github.com/picguess/picguess-backend/internal/server"
)

type config struct {
	bind          string
	port          int
	retention     time.Duration
	sweepInterval time.Duration
	roundDuration time.Duration
	totalRounds   int
	verbose       bool
}

func (c *config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.roundDuration < time.Second {
		return fmt.Errorf("round duration too short: %s", c.roundDuration)
	}
	if c.totalRounds < 1 {
		return fmt.Errorf("total rounds must be at least 1: %d", c.totalRounds)
	}
	return nil
}

func newCmd(cfg *config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PICGUESS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "picguess-backend",
		Short:         "Realtime guess-the-image game server.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: PICGUESS_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: PICGUESS_PORT)")
	fs.DurationVar(&cfg.retention, "room-retention", internal.RoomRetention, "time before rooms are reclaimed (env: PICGUESS_ROOM_RETENTION)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", time.Minute, "interval between room eviction sweeps (env: PICGUESS_SWEEP_INTERVAL)")
	fs.DurationVar(&cfg.roundDuration, "round-duration", internal.DefaultRoundDuration, "default round duration (env: PICGUESS_ROUND_DURATION)")
	fs.IntVar(&cfg.totalRounds, "total-rounds", internal.DefaultTotalRounds, "default rounds per game (env: PICGUESS_TOTAL_ROUNDS)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "enable debug logging (env: PICGUESS_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	return cmd
}

func serve(ctx context.Context, cfg *config) error {
	level := zerolog.InfoLevel
	if cfg.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	registry := game.NewRegistry(game.SystemClock(), cfg.retention, logger)
	srv := server.New(registry, internal.Settings{
		RoundDurationMs: cfg.roundDuration.Milliseconds(),
		TotalRounds:     cfg.totalRounds,
	}, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go registry.Run(ctx, cfg.sweepInterval)

	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.bind, cfg.port),
		Handler:     srv.RegisterRoutes(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: time.Minute,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("listening")
		errChan <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	logger.Info().Msg("shut down")
	return nil
}

func main() {
	_ = godotenv.Load()

	cfg := &config{}
	if err := newCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
