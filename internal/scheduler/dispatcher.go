package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kaizenbot/internal/bot"
	"kaizenbot/internal/models"
	"kaizenbot/internal/service/journal"
	"kaizenbot/internal/telegram"
)

const sendTimeout = 10 * time.Second

// Sender is the outbound channel slice the dispatcher needs.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *telegram.InlineKeyboard) error
}

// Dispatcher assembles and sends one user's daily question message.
type Dispatcher struct {
	store   *journal.Service
	tg      Sender
	lastMsg *bot.MessageCache
}

func NewDispatcher(store *journal.Service, tg Sender, lastMsg *bot.MessageCache) *Dispatcher {
	return &Dispatcher{store: store, tg: tg, lastMsg: lastMsg}
}

// Dispatch sends the daily questions for one due reminder. When the user has
// no active questions it sends a setup nudge instead.
func (d *Dispatcher) Dispatch(ctx context.Context, target *models.UserReminder) error {
	questions, err := d.store.ActiveQuestions(ctx, target.UserID)
	if err != nil {
		return fmt.Errorf("load questions for user %d: %w", target.UserID, err)
	}

	if len(questions) == 0 {
		text := "🌱 Reflection time! You have no questions yet.\n" +
			"Add one with /addquestion or fill in /context so I can suggest some."
		if err := d.send(ctx, target.TelegramID, text, nil); err != nil {
			return fmt.Errorf("send nudge to user %d: %w", target.UserID, err)
		}
		d.lastMsg.Put(target.TelegramID, text)
		return nil
	}

	selection := SelectQuestions(questions)
	text := dailyMessageText(target.Username, selection)
	if err := d.send(ctx, target.TelegramID, text, answerKeyboard(selection)); err != nil {
		return fmt.Errorf("send questions to user %d: %w", target.UserID, err)
	}
	d.lastMsg.Put(target.TelegramID, text)
	return nil
}

// send bounds the transport call so one stalled connection cannot hold the
// tick loop past the next minute.
func (d *Dispatcher) send(ctx context.Context, chatID int64, text string, keyboard *telegram.InlineKeyboard) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	return d.tg.SendMessage(sendCtx, chatID, text, keyboard)
}

func dailyMessageText(username string, selection []*models.Question) string {
	var b strings.Builder
	greeting := "🌱 Time to reflect"
	if username != "" {
		greeting += ", " + username
	}
	b.WriteString(greeting + "!\n\n")
	for i, q := range selection {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q.Text)
	}
	b.WriteString("\nTap a number to answer, or just write back.")
	return b.String()
}

func answerKeyboard(selection []*models.Question) *telegram.InlineKeyboard {
	row := make([]telegram.InlineButton, 0, len(selection))
	for i, q := range selection {
		row = append(row, telegram.Button(
			fmt.Sprintf("%d", i+1),
			bot.CallbackAction{Kind: bot.CallbackAnswer, QuestionID: q.ID}.Encode(),
		))
	}
	return &telegram.InlineKeyboard{InlineKeyboard: [][]telegram.InlineButton{row}}
}
