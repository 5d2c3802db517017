// Package cli implements the reconciler maintenance commands: replaying the
// stored event log and releasing periodic treasury batches by hand.
package cli

import (
	"context"
	"fmt"

	"github.com/reconciler/backend/internal/infrastructure/config"
	"github.com/reconciler/backend/internal/infrastructure/logger"
	"github.com/reconciler/backend/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Runtime is what a command needs to run against the store
type Runtime struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *gorm.DB
	Close  func() error
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string
	// Open builds the runtime. Tests replace it.
	Open func(ctx context.Context) (*Runtime, error)
}

// NewRootCommand creates the root command of the reconciler CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Open: openRuntime})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconciler",
		Short: "Reconciliation engine maintenance",
		Long:  "Maintenance commands of the financial event reconciliation engine.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", FormatText, "output format (json|text)")

	cmd.AddCommand(NewBackfillCommand(opts))
	cmd.AddCommand(NewBatchCommand(opts))

	return cmd
}

// openRuntime loads configuration and connects to the database
func openRuntime(_ context.Context) (*Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to initialize logger", err)
	}
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database,
		logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level)))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to connect to database", err)
	}
	return &Runtime{
		Config: cfg,
		Logger: log,
		DB:     db.DB,
		Close: func() error {
			_ = log.Sync()
			return db.Close()
		},
	}, nil
}

// withRuntime opens the runtime, runs fn and closes it
func withRuntime(ctx context.Context, opts *RootOptions, fn func(rt *Runtime) error) error {
	rt, err := opts.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rt.Close != nil {
			_ = rt.Close()
		}
	}()
	return fn(rt)
}
