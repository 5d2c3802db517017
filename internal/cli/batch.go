package cli

import (
	"fmt"
	"time"

	"github.com/reconciler/backend/internal/app"
	treasuryapp "github.com/reconciler/backend/internal/application/treasury"
	"github.com/spf13/cobra"
)

// BatchOptions holds flags for the batch command.
type BatchOptions struct {
	*RootOptions
	TreasuryID int64
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Release pending periodic treasury operations",
		Long: `Group the pending-periodic operations of periodic treasuries and release
one representative per account and direction. Without --treasury only
treasuries whose schedule slot is due are batched.

Examples:
  reconciler batch
  reconciler batch --treasury 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.TreasuryID, "treasury", 0, "batch this treasury now, regardless of its schedule")

	return cmd
}

func runBatch(opts *BatchOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	return withRuntime(ctx, opts.RootOptions, func(rt *Runtime) error {
		c := app.NewContainer(rt.Config, rt.DB, rt.Logger, app.Options{})

		var (
			res treasuryapp.BatchResult
			err error
		)
		if opts.TreasuryID > 0 {
			res, err = c.Batcher.RunTreasury(ctx, opts.TreasuryID)
		} else {
			res, err = c.Batcher.RunDue(ctx, time.Now())
		}
		if err != nil {
			return WrapExitError(ExitFailure, "batch failed", err)
		}

		text := fmt.Sprintf("batch: treasuries=%d groups=%d released=%d parked=%d",
			res.TreasuriesDue, res.Groups, res.Released, res.Parked)
		return writeResult(cmd.OutOrStdout(), opts.Format, res, text)
	})
}
