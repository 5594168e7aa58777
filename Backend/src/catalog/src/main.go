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

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const disconnectGrace = 10 * time.Second

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand(run).ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

// newRootCommand builds the catalog-queries command. Flag defaults come from
// the environment; action receives the validated configuration.
func newRootCommand(action func(ctx context.Context, cfg Config, out io.Writer) error) *cobra.Command {
	cfg := envConfig()

	cmd := &cobra.Command{
		Use:   "catalog-queries",
		Short: "Run the bookstore query sequence against MongoDB",
		Long: `Connects to MongoDB and runs the fixed sequence of CRUD, advanced query,
aggregation and indexing steps on the books collection, printing each result.

Settings come from .env, then the environment, then the flags below.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
				zerolog.SetGlobalLevel(lvl)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return action(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	bindFlags(cmd.Flags(), &cfg)
	return cmd
}

// run owns every resource of one invocation. The client is disconnected on
// every path once Connect succeeded.
func run(ctx context.Context, cfg Config, out io.Writer) error {
	runID := uuid.NewString()
	render := NewRenderer(cfg.Output, out)

	log.Info().
		Str("run", runID).
		Str("uri", redactURI(cfg.MongoURI)).
		Str("db", cfg.DBName).
		Str("collection", cfg.Collection).
		Msg("starting catalog queries")

	journal, err := OpenJournal(cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer journal.Close()

	rabbit, err := NewRabbit(cfg.RabbitURL, cfg.RabbitExchange)
	if err != nil {
		log.Warn().Err(err).Msg("RabbitMQ not available, continuing without events")
	}
	defer rabbit.Close()

	defer render.Message("Connection closed.")
	client, err := Connect(ctx, cfg)
	if err != nil {
		return err
	}
	render.Message("Connected to MongoDB")
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), disconnectGrace)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			log.Warn().Err(err).Msg("disconnect")
		}
	}()

	repo := NewMongoRepo(client.Database(cfg.DBName).Collection(cfg.Collection))

	if cfg.SeedOnStart {
		n, err := repo.Seed(ctx, fixtureBooks)
		if err != nil {
			return ErrOperation{Step: "seed", Err: err}
		}
		log.Info().Int64("inserted", n).Int("fixture", len(fixtureBooks)).Msg("seeded catalog")
	}

	var events Events
	if rabbit != nil {
		events = rabbit
	}
	runner := &Runner{
		Repo:      repo,
		Queries:   DefaultQueries(),
		Render:    render,
		Service:   NewService(events, runID),
		Journal:   journal,
		RunID:     runID,
		OpTimeout: cfg.OpTimeout,
	}
	return runner.Run(ctx)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var opErr ErrOperation
	if errors.As(err, &opErr) {
		log.Error().Err(err).Str("step", opErr.Step).Msg("sequence aborted")
		return 2
	}
	var connErr ErrConnection
	if errors.As(err, &connErr) {
		log.Error().Err(err).Msg("connection failed")
		return 1
	}
	log.Error().Err(err).Msg("fatal")
	return 1
}
