package commands

// monitor runs the Telegram alerts: new pools, big trades and hot tokens,
// plus the /mute command handler. Stops gracefully on SIGINT/SIGTERM.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"memez-terminal/bots_monitor"
	"memez-terminal/internal/features/tokens"
	logging "memez-terminal/internal/infra/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var monitorCmd = &cobra.Command{
	Use:                "monitor",
	Short:              "Run the Telegram monitor for new pools, big trades and hot tokens",
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, runMonitor)
	},
}

func runMonitor(ctx context.Context, a *app) error {
	cfg := a.cfg.Telegram
	if cfg.BotToken == "" || cfg.ChatID == 0 {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id are required")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logging.LogError("Failed to create Telegram bot", zap.Error(err))
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	logging.LogInfo("Telegram bot authorized", zap.String("username", bot.Self.UserName))

	monitor, err := bots_monitor.NewMonitor(bot, a.indexer, a.tokens, a.snapshots, bots_monitor.Config{
		ChatID:       cfg.ChatID,
		MinTradeSUI:  decimal.NewFromFloat(cfg.MinTradeSUI),
		Interval:     time.Duration(cfg.CheckIntervalSec) * time.Second,
		OutDir:       a.cfg.App.OutDir,
		SwapsCount:   cfg.HotSwapsCount,
		MinAddresses: cfg.HotMinAddresses,
		HotCooldown:  time.Duration(cfg.HotCooldownMins) * time.Minute,
	})
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		monitor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		monitor.RunCommandHandler(ctx, bot)
	}()

	// without clickhouse nothing else records the card price history
	if a.cfg.ClickHouse.DSN == "" {
		refresher := tokens.NewRefresher(a.tokens, a.snapshots, nil, nil, a.cfg.App.RefreshEvery())
		wg.Add(1)
		go func() {
			defer wg.Done()
			refresher.Run(ctx)
		}()
	}

	logging.LogSuccess("Monitor is running", zap.Int64("chatID", cfg.ChatID))

	<-ctx.Done()
	logging.LogInfo("Shutdown signal received, gracefully stopping monitor...")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.LogSuccess("Monitor stopped gracefully")
	case <-time.After(shutdownTimeout):
		logging.LogWarn("Timeout waiting for monitor to stop, forcing shutdown")
	}
	return nil
}
