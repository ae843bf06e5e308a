package commands

import (
	"context"
	"errors"
	"fmt"

	"memez-terminal/internal/features/rewards"

	"github.com/spf13/cobra"
)

var errNoWallets = errors.New("no memez wallets configured (claim.wallets_file)")

var (
	claimUser     string
	claimCoinType string
	claimTransfer bool
)

var claimCmd = &cobra.Command{
	Use:                "claim",
	Short:              "Merge a user's reward coins in their memez wallet and optionally send them out",
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE: func(cmd *cobra.Command, args []string) error {
		if claimUser == "" || claimCoinType == "" {
			return fmt.Errorf("--user and --coin-type are required")
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			claimer, err := buildClaimer(a)
			if err != nil {
				return err
			}
			receipt, err := claimer.MergeAndPrepareReceive(ctx, rewards.ClaimRequest{
				User:     claimUser,
				CoinType: claimCoinType,
				Transfer: claimTransfer,
			})
			if receipt != nil {
				if perr := printJSON(cmd.OutOrStdout(), receipt); perr != nil && err == nil {
					err = perr
				}
			}
			return err
		})
	},
}

func init() {
	claimCmd.Flags().StringVar(&claimUser, "user", "", "User address whose memez wallet is claimed")
	claimCmd.Flags().StringVar(&claimCoinType, "coin-type", "", "Coin type to merge, e.g. 0x2::sui::SUI")
	claimCmd.Flags().BoolVar(&claimTransfer, "transfer", true, "Send the merged coin to the user")
}
