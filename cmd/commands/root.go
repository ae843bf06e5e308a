package commands

// Root command for the memez CLI; registers serve, tokens, portfolio, claim,
// airdrop and monitor.

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "memez",
	Short: "Memez terminal backend - token market data, portfolios, rewards and airdrops on Sui",
	Long: `Memez terminal backend aggregates bonding-curve pools from the indexer and the Sui
full node, serves them over HTTP and a websocket feed, runs reward claims and
airdrops, and posts market alerts to Telegram.`,
	Version: "1.0.0",
	// config keys such as --server.addr are parsed by the config layer
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	SilenceUsage:       true,
}

// Execute runs the CLI with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokensCmd)
	rootCmd.AddCommand(portfolioCmd)
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(airdropCmd)
	rootCmd.AddCommand(monitorCmd)
}
