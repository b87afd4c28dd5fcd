package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"talktome/internal/config"
	"talktome/internal/tracing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: talktome <command> [arguments]

commands:
  watch   <post-id>                 follow a post's comments until interrupted
  list    <post-id> [page]          print one page of visible comments
  submit  <post-id> <content>       submit a comment for moderation
  approve <post-id> <comment-id>    approve a pending comment (admins only)
  reject  <post-id> <comment-id>    reject a pending comment (admins only)
  audit   [limit]                   show recent moderation actions
  admins                            list configured administrators
`

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one command and returns the process exit code.
func run(args []string) int {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "talktome: %v\n", err)
		return 1
	}

	setupLogging(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled() {
		tp, err := tracing.Init(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				tp.Shutdown(shutdownCtx)
			}()
			log.Info().Str("endpoint", cfg.OTLPEndpoint).Msg("Tracing enabled")
		}
	}

	app, err := newApp(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to start")
		return 1
	}
	defer app.Close()

	if err := app.run(ctx, args[0], args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			return 2
		}
		log.Error().Err(err).Str("command", args[0]).Msg("Command failed")
		return 1
	}
	return 0
}

// setupLogging configures the global logger: level from LOG_LEVEL, JSON when
// LOG_FORMAT=json, console output otherwise.
func setupLogging(level, format string, out io.Writer) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if format == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		})
	}
}
