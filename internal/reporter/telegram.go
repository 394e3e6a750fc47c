package reporter

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"go-helpapply-automation/internal/config"
	"go-helpapply-automation/internal/runner"
)

type TelegramReporter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramReporter(cfg *config.Config) (*TelegramReporter, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}

	//turn this on in case of debug
	//bot.Debug = true

	return &TelegramReporter{
		bot:    bot,
		chatID: cfg.TelegramChatID,
	}, nil
}

func (t *TelegramReporter) SendMessage(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "HTML" //use HTML for bold/italic
	_, err := t.bot.Send(msg)
	return err
}

func (t *TelegramReporter) SendRunSummary(summary *runner.RunSummary) error {
	text := fmt.Sprintf(
		"📋 <b>Application run #%d finished</b>\n"+
			"✅ Successful: %d\n"+
			"❌ Failed: %d\n"+
			"⏭ Skipped: %d\n"+
			"📦 Processed: %d",
		summary.RunID,
		summary.Successful,
		summary.Failed,
		summary.Skipped,
		summary.Processed,
	)
	return t.SendMessage(text)
}

func (t *TelegramReporter) SendError(errReq error) error {
	text := fmt.Sprintf("⚠️ <b>HelpApply Error</b>:\n%v", errReq)
	return t.SendMessage(text)
}
