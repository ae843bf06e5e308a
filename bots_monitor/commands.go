package bots_monitor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"memez-terminal/internal/infra/log"
	"memez-terminal/internal/sui"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const helpText = "" +
	"Commands:\n" +
	"• <code>/mute {pool}</code> - stop alerts for a pool\n" +
	"• <code>/unmute {pool}</code> - resume alerts for a pool\n" +
	"• <code>/muted</code> - list muted pools\n" +
	"• <code>/token {pool}</code> - token card\n" +
	"• <code>/helps</code> - this message"

// Updater is the part of *tgbotapi.BotAPI the command loop reads from.
type Updater interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// RunCommandHandler answers commands from the configured chat until ctx is done.
func (m *Monitor) RunCommandHandler(ctx context.Context, updater Updater) {
	log.LogInfo("Starting command handler", zap.Int64("chatID", m.cfg.ChatID))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := updater.GetUpdatesChan(u)
	defer updater.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Chat == nil || update.Message.Chat.ID != m.cfg.ChatID {
				continue
			}
			m.HandleCommand(ctx, update.Message)
		}
	}
}

// HandleCommand dispatches one message; non-commands are ignored.
func (m *Monitor) HandleCommand(ctx context.Context, message *tgbotapi.Message) {
	if !message.IsCommand() {
		return
	}
	command := message.Command()
	args := strings.TrimSpace(message.CommandArguments())

	username := ""
	if message.From != nil {
		username = message.From.UserName
	}
	log.LogDebug("Received command",
		zap.String("command", command),
		zap.String("args", args),
		zap.String("username", username))

	switch command {
	case "mute":
		m.handleMute(message, args, true)
	case "unmute":
		m.handleMute(message, args, false)
	case "muted":
		m.handleMuted(message)
	case "token":
		m.handleToken(ctx, message, args)
	case "helps", "help", "start":
		m.reply(message, helpText)
	}
}

func (m *Monitor) handleMute(message *tgbotapi.Message, arg string, mute bool) {
	verb := "mute"
	if !mute {
		verb = "unmute"
	}
	if arg == "" {
		m.reply(message, fmt.Sprintf("Usage: /%s {pool}\n\nExample: /%s 0x5d2f...", verb, verb))
		return
	}
	pool, err := sui.NormalizeAddress(arg)
	if err != nil {
		m.reply(message, "Invalid pool address")
		return
	}

	if mute {
		err = m.muted.Add(pool)
	} else {
		err = m.muted.Remove(pool)
	}
	if err != nil {
		log.LogWarn("Mute command failed", zap.String("command", verb), zap.String("pool", pool), zap.Error(err))
		m.reply(message, fmt.Sprintf("Failed to %s %s: %v", verb, shortPool(pool), err))
		return
	}
	m.reply(message, fmt.Sprintf("Pool %s %sd", shortPool(pool), verb))
}

func (m *Monitor) handleMuted(message *tgbotapi.Message) {
	pools, err := m.muted.Load()
	if err != nil {
		m.reply(message, "Failed to load muted pools")
		return
	}
	if len(pools) == 0 {
		m.reply(message, "No muted pools")
		return
	}
	var b strings.Builder
	b.WriteString("Muted pools (" + strconv.Itoa(len(pools)) + "):\n")
	for _, p := range pools {
		b.WriteString("• <code>" + p + "</code>\n")
	}
	m.reply(message, b.String())
}

func (m *Monitor) handleToken(ctx context.Context, message *tgbotapi.Message, arg string) {
	if arg == "" {
		m.reply(message, "Usage: /token {pool}")
		return
	}
	addr, err := sui.NormalizeAddress(arg)
	if err != nil {
		m.reply(message, "Invalid pool address")
		return
	}
	pool, err := m.pools.Get(ctx, addr)
	if err != nil {
		m.reply(message, "Token not found")
		return
	}

	caption := FormatNewPoolMessage(*pool)
	png, err := renderCard(ctx, m.history, *pool, m.now())
	if err != nil {
		log.LogWarn("Card unavailable, sending text", zap.String("pool", addr), zap.Error(err))
		m.reply(message, caption)
		return
	}
	photo := tgbotapi.NewPhoto(message.Chat.ID, tgbotapi.FileBytes{Name: "card.png", Bytes: png})
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	photo.ReplyToMessageID = message.MessageID
	if _, err := m.bot.Send(photo); err != nil {
		log.LogError("Failed to send /token card", zap.String("pool", addr), zap.Error(err))
	}
}

func (m *Monitor) reply(message *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyToMessageID = message.MessageID
	msg.DisableWebPagePreview = true
	if _, err := m.bot.Send(msg); err != nil {
		log.LogError("Failed to send reply", zap.Error(err))
	}
}
