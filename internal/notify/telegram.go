package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"go.uber.org/zap"
)

// TelegramNotifier forwards domain events to a Telegram operations chat.
// Events are queued and sent by a background worker so the core transaction
// is never held up by Telegram; when the queue is full the event is dropped
// and logged.
type TelegramNotifier struct {
	bot    *bot.Bot
	chatID int64
	queue  chan Event
	logger *zap.Logger
}

const queueSize = 256

func NewTelegramNotifier(token string, chatID int64, logger *zap.Logger) (*TelegramNotifier, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:    b,
		chatID: chatID,
		queue:  make(chan Event, queueSize),
		logger: logger,
	}, nil
}

// Notify enqueues the event without blocking.
func (n *TelegramNotifier) Notify(_ context.Context, ev Event) {
	select {
	case n.queue <- ev:
	default:
		n.logger.Warn("notification queue full, dropping event",
			zap.String("event_id", ev.ID.String()),
			zap.String("outcome", string(ev.Outcome)),
		)
	}
}

// Run drains the queue until ctx is done. Call it in its own goroutine.
func (n *TelegramNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-n.queue:
			n.send(ctx, ev)
		}
	}
}

func (n *TelegramNotifier) send(ctx context.Context, ev Event) {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   formatEvent(ev),
	})
	if err != nil {
		// Best effort only. The operation this event came from has
		// already committed.
		n.logger.Warn("send telegram notification",
			zap.String("event_id", ev.ID.String()),
			zap.Error(err),
		)
	}
}

func formatEvent(ev Event) string {
	var icon string
	switch ev.Outcome {
	case OutcomeApproved:
		icon = "✅"
	case OutcomeRejected:
		icon = "❌"
	case OutcomeWaitlisted:
		icon = "⏳"
	case OutcomeCancelled:
		icon = "🚫"
	}

	msg := fmt.Sprintf("%s Transport %s — student %d, route %d, term %d",
		icon, ev.Outcome, ev.StudentID, ev.RouteID, ev.TermID)
	if ev.Reason != "" {
		msg += "\nReason: " + ev.Reason
	}
	return msg
}
