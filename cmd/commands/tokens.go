package commands

import (
	"context"
	"fmt"

	"memez-terminal/internal/features/market"
	"memez-terminal/internal/features/tokens"

	"github.com/spf13/cobra"
)

var (
	tokensSort            string
	tokensLimit           int
	tokensSearch          string
	tokensIncludeMigrated bool
	tokensJSON            bool
)

var tokensCmd = &cobra.Command{
	Use:                "tokens",
	Short:              "Print the aggregated token list once",
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE: func(cmd *cobra.Command, args []string) error {
		sortKey, ok := market.ParseSortKey(tokensSort)
		if !ok {
			return fmt.Errorf("invalid --sort %q (want marketcap, volume, created or last_trade)", tokensSort)
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			listing, err := a.tokens.List(ctx, tokens.Query{
				Sort:            sortKey,
				Limit:           tokensLimit,
				Search:          tokensSearch,
				IncludeMigrated: tokensIncludeMigrated,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if tokensJSON {
				return printJSON(out, listing)
			}
			fmt.Fprintf(out, "%d tokens, SUI $%s (%s), source %s\n",
				listing.Total, listing.SUIPriceUSD.StringFixed(4), listing.PriceSource, listing.Source)
			return printPools(out, listing.Tokens)
		})
	},
}

func init() {
	tokensCmd.Flags().StringVar(&tokensSort, "sort", "", "Sort key: marketcap, volume, created, last_trade")
	tokensCmd.Flags().IntVar(&tokensLimit, "limit", tokens.DefaultLimit, "Number of tokens")
	tokensCmd.Flags().StringVar(&tokensSearch, "search", "", "Filter by name, symbol or coin type")
	tokensCmd.Flags().BoolVar(&tokensIncludeMigrated, "include-migrated", false, "Include migrated pools")
	tokensCmd.Flags().BoolVar(&tokensJSON, "json", false, "Print JSON")
}
