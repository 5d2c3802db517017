package cli

import (
	"fmt"

	"github.com/reconciler/backend/internal/app"
	"github.com/reconciler/backend/internal/application/reconcile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// BackfillOptions holds flags for the backfill command.
type BackfillOptions struct {
	*RootOptions
	ChainID  string
	Contract string
	PageSize int
}

// BackfillResult is the printed summary of a backfill run
type BackfillResult struct {
	ChainID  string `json:"chain_id"`
	Contract string `json:"contract"`
	Read     int    `json:"read"`
	Applied  int    `json:"applied"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
}

// NewBackfillCommand creates the backfill command.
func NewBackfillCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackfillOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Replay the stored event log into the transaction ledger",
		Long: `Replay every stored log of a token contract, oldest first, creating
missing profiles and ledger transactions. Orders and treasury operations are
not touched.

Exit codes:
  0 - Every log was applied or skipped
  1 - Some logs failed and were skipped
  2 - Command error (configuration, database, etc.)

Examples:
  reconciler backfill
  reconciler backfill --chain-id 42220 --contract 0x765DE816845861e75A25fCA122bb6898B8B1282a
  reconciler backfill --page-size 500 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackfill(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ChainID, "chain-id", "", "chain id (default from chain.chain_id)")
	cmd.Flags().StringVar(&opts.Contract, "contract", "", "token contract (default from chain.token_contract)")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "logs read per page (default from reconcile.backfill_page_size)")

	return cmd
}

func runBackfill(opts *BackfillOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	return withRuntime(ctx, opts.RootOptions, func(rt *Runtime) error {
		cfg := *rt.Config
		if opts.ChainID != "" {
			cfg.Chain.ChainID = opts.ChainID
		}
		if opts.Contract != "" {
			cfg.Chain.TokenContract = opts.Contract
		}
		if opts.PageSize > 0 {
			cfg.Reconcile.BackfillPageSize = opts.PageSize
		}
		if cfg.Chain.ChainID == "" || cfg.Chain.TokenContract == "" {
			return NewExitError(ExitCommandError, "chain id and token contract are required")
		}

		c := app.NewContainer(&cfg, rt.DB, rt.Logger, app.Options{})
		res, err := c.Backfiller.Run(ctx, cfg.Chain.ChainID, cfg.Chain.TokenContract)
		if err != nil {
			rt.Logger.Error("Backfill aborted", zap.Error(err))
			return WrapExitError(ExitCommandError, "backfill aborted", err)
		}

		out := backfillResult(cfg.Chain.ChainID, cfg.Chain.TokenContract, res)
		text := fmt.Sprintf("backfill %s/%s: read=%d applied=%d skipped=%d failed=%d",
			out.ChainID, out.Contract, out.Read, out.Applied, out.Skipped, out.Failed)
		if err := writeResult(cmd.OutOrStdout(), opts.Format, out, text); err != nil {
			return err
		}
		if res.Failed > 0 {
			return NewExitError(ExitFailure, fmt.Sprintf("%d logs failed", res.Failed))
		}
		return nil
	})
}

func backfillResult(chainID, contract string, r reconcile.BackfillResult) BackfillResult {
	return BackfillResult{
		ChainID:  chainID,
		Contract: contract,
		Read:     r.Read,
		Applied:  r.Applied,
		Skipped:  r.Skipped,
		Failed:   r.Failed,
	}
}
