package scheduler

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"kaizenbot/internal/bot"
	"kaizenbot/internal/config"
	"kaizenbot/internal/models"
	"kaizenbot/internal/service/journal"
	"kaizenbot/internal/storage"
	"kaizenbot/internal/telegram"
)

type fakeSender struct {
	chatIDs   []int64
	texts     []string
	keyboards []*telegram.InlineKeyboard
	deadlines []bool
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID int64, text string, keyboard *telegram.InlineKeyboard) error {
	_, hasDeadline := ctx.Deadline()
	f.chatIDs = append(f.chatIDs, chatID)
	f.texts = append(f.texts, text)
	f.keyboards = append(f.keyboards, keyboard)
	f.deadlines = append(f.deadlines, hasDeadline)
	return nil
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *journal.Service, *fakeSender, *bot.MessageCache) {
	t.Helper()
	db := openTestDB(t)
	t.Cleanup(func() { db.Close() })
	store := journal.NewService(db, "sqlite3")
	sender := &fakeSender{}
	cache := bot.NewMessageCache()
	return NewDispatcher(store, sender, cache), store, sender, cache
}

func TestDispatchSendsNumberedQuestions(t *testing.T) {
	d, store, sender, cache := newTestDispatcher(t)
	ctx := context.Background()

	user, err := store.EnsureUser(ctx, 1001, "alice")
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if _, err := store.AddQuestion(ctx, user.ID, "what went well?", models.SourceUser); err != nil {
		t.Fatalf("seed question: %v", err)
	}

	target := &models.UserReminder{UserID: user.ID, TelegramID: 1001, Username: "alice", Time: "09:00"}
	if err := d.Dispatch(ctx, target); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(sender.texts) != 1 || sender.chatIDs[0] != 1001 {
		t.Fatalf("expected one message to chat 1001, got %v", sender.chatIDs)
	}
	text := sender.texts[0]
	if !strings.Contains(text, "alice") || !strings.Contains(text, "1. what went well?") {
		t.Fatalf("unexpected daily message: %q", text)
	}
	if sender.keyboards[0] == nil {
		t.Fatalf("expected answer keyboard")
	}
	if cache.Get(1001) != text {
		t.Fatalf("daily message not recorded as last outbound message")
	}
}

func TestDispatchNudgesWhenNoQuestions(t *testing.T) {
	d, store, sender, _ := newTestDispatcher(t)
	ctx := context.Background()

	user, err := store.EnsureUser(ctx, 1001, "alice")
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	target := &models.UserReminder{UserID: user.ID, TelegramID: 1001, Username: "alice", Time: "09:00"}
	if err := d.Dispatch(ctx, target); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(sender.texts) != 1 || !strings.Contains(sender.texts[0], "/addquestion") {
		t.Fatalf("expected setup nudge, got %v", sender.texts)
	}
	if sender.keyboards[0] != nil {
		t.Fatalf("nudge should not carry a keyboard")
	}
}

func TestDispatchBoundsSendDeadline(t *testing.T) {
	d, store, sender, _ := newTestDispatcher(t)
	ctx := context.Background()

	user, err := store.EnsureUser(ctx, 1001, "alice")
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	target := &models.UserReminder{UserID: user.ID, TelegramID: 1001, Username: "alice", Time: "09:00"}

	// A stalled transport call must not hold the tick loop, so every send
	// carries its own deadline even when the caller's context has none.
	if err := d.Dispatch(ctx, target); err != nil {
		t.Fatalf("dispatch nudge: %v", err)
	}
	if _, err := store.AddQuestion(ctx, user.ID, "what went well?", models.SourceUser); err != nil {
		t.Fatalf("seed question: %v", err)
	}
	if err := d.Dispatch(ctx, target); err != nil {
		t.Fatalf("dispatch questions: %v", err)
	}

	if len(sender.deadlines) != 2 {
		t.Fatalf("expected two sends, got %d", len(sender.deadlines))
	}
	for i, has := range sender.deadlines {
		if !has {
			t.Fatalf("send %d carried no deadline", i)
		}
	}
}
