package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/features/airdrop"
	"memez-terminal/internal/features/rewards"
	logging "memez-terminal/internal/infra/log"
	"memez-terminal/internal/sui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	airdropFile      string
	airdropCoinType  string
	airdropBatchSize int
)

var airdropCmd = &cobra.Command{
	Use:   "airdrop",
	Short: "Plan and run batched airdrops from a CSV or YAML recipient list",
}

var airdropPlanCmd = &cobra.Command{
	Use:                "plan",
	Short:              "Validate a recipient list and save the batched plan",
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			plan, err := buildPlan(ctx, a)
			if err != nil {
				return err
			}
			path, err := plan.Save(a.cfg.App.OutDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Plan %s: %d recipients in %d batches, total raw %s\nSaved to %s\n",
				plan.Hash[:16], len(plan.Recipients), len(plan.Batches), plan.TotalRaw, path)
			return nil
		})
	},
}

var airdropRunCmd = &cobra.Command{
	Use:                "run",
	Short:              "Execute a plan, resuming after the last completed batch",
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if a.cfg.Airdrop.SenderKey == "" {
				return fmt.Errorf("airdrop.sender_key is required (env: AIRDROP_SENDER_KEY)")
			}
			kp, err := sui.ParseKeypair(a.cfg.Airdrop.SenderKey)
			if err != nil {
				return fmt.Errorf("parse sender key: %w", err)
			}
			plan, err := buildPlan(ctx, a)
			if err != nil {
				return err
			}

			merger := rewards.NewClaimer(a.rpc, rewards.NewKeyStore(), a.claims, a.cfg.Claim.MergeBatchSize)
			runner := airdrop.NewRunner(a.rpc, merger, a.airdrops)
			run, runErr := runner.Run(ctx, plan, airdropCoinType, kp)
			if run != nil {
				if err := printJSON(cmd.OutOrStdout(), run); err != nil {
					logging.LogWarn("Failed to print airdrop run", zap.Error(err))
				}
			}
			return runErr
		})
	},
}

// buildPlan loads a saved plan (.json) or builds one from a recipient list,
// reading the coin decimals from the chain.
func buildPlan(ctx context.Context, a *app) (*airdrop.Plan, error) {
	if airdropFile == "" || airdropCoinType == "" {
		return nil, fmt.Errorf("--file and --coin-type are required")
	}
	ext := strings.ToLower(filepath.Ext(airdropFile))
	if ext == ".json" {
		return airdrop.LoadPlan(airdropFile)
	}

	f, err := os.Open(airdropFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var recipients []domain.AirdropRecipient
	switch ext {
	case ".yaml", ".yml":
		recipients, err = airdrop.ParseYAML(f)
	default:
		recipients, err = airdrop.ParseCSV(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", airdropFile, err)
	}

	decimals := domain.SUIDecimals
	if !sui.IsSUI(airdropCoinType) {
		meta, err := a.rpc.GetCoinMetadata(ctx, airdropCoinType)
		if err != nil {
			return nil, fmt.Errorf("coin metadata: %w", err)
		}
		if meta == nil || !meta.DecimalsKnown {
			return nil, fmt.Errorf("coin %s has no metadata object, decimals unknown", airdropCoinType)
		}
		decimals = meta.Decimals
	}
	batchSize := airdropBatchSize
	if batchSize <= 0 {
		batchSize = a.cfg.Airdrop.BatchSize
	}
	return airdrop.NewPlan(recipients, decimals, batchSize)
}

func init() {
	for _, c := range []*cobra.Command{airdropPlanCmd, airdropRunCmd} {
		c.Flags().StringVar(&airdropFile, "file", "", "Recipient list (.csv, .yaml) or saved plan (.json)")
		c.Flags().StringVar(&airdropCoinType, "coin-type", "", "Coin type to send")
		c.Flags().IntVar(&airdropBatchSize, "batch-size", 0, "Recipients per transaction (default airdrop.batch_size)")
	}
	airdropCmd.AddCommand(airdropPlanCmd)
	airdropCmd.AddCommand(airdropRunCmd)
}
