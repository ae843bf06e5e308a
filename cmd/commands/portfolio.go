package commands

import (
	"context"
	"errors"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/features/portfolio"
	logging "memez-terminal/internal/infra/log"
	"memez-terminal/internal/sui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	portfolioWatch bool
	portfolioJSON  bool
)

var portfolioCmd = &cobra.Command{
	Use:                "portfolio <address>",
	Short:              "Print the valued balances of an address",
	Args:               cobra.ExactArgs(1),
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := sui.NormalizeAddress(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			svc := portfolio.NewService(a.rpc, a.indexer, a.tokens)
			out := cmd.OutOrStdout()
			show := func(p *domain.Portfolio) {
				var err error
				if portfolioJSON {
					err = printJSON(out, p)
				} else {
					err = printPortfolio(out, p)
				}
				if err != nil {
					logging.LogWarn("Failed to print portfolio", zap.Error(err))
				}
			}

			if !portfolioWatch {
				p, err := svc.Get(ctx, owner)
				if err != nil {
					return err
				}
				show(p)
				return nil
			}
			err := portfolio.NewWatcher(svc).Run(ctx, owner, a.cfg.App.PortfolioEvery(), show)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	},
}

func init() {
	portfolioCmd.Flags().BoolVar(&portfolioWatch, "watch", false, "Refresh every app.portfolio_interval seconds")
	portfolioCmd.Flags().BoolVar(&portfolioJSON, "json", false, "Print JSON")
}
