package bot

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"kaizenbot/internal/config"
	"kaizenbot/internal/models"
	"kaizenbot/internal/service/journal"
	"kaizenbot/internal/storage"
	"kaizenbot/internal/telegram"
)

type sentMessage struct {
	chatID   int64
	text     string
	keyboard *telegram.InlineKeyboard
}

type fakeSender struct {
	sent      []sentMessage
	edits     []sentMessage
	callbacks []string
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string, keyboard *telegram.InlineKeyboard) error {
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, keyboard: keyboard})
	return nil
}

func (f *fakeSender) EditMessageText(_ context.Context, chatID, _ int64, text string, keyboard *telegram.InlineKeyboard) error {
	f.edits = append(f.edits, sentMessage{chatID: chatID, text: text, keyboard: keyboard})
	return nil
}

func (f *fakeSender) AnswerCallback(_ context.Context, _ string, text string) error {
	f.callbacks = append(f.callbacks, text)
	return nil
}

func (f *fakeSender) lastSent(t *testing.T) sentMessage {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatalf("no messages sent")
	}
	return f.sent[len(f.sent)-1]
}

type fakeAssistant struct {
	questions []string
	reply     string
	err       error
}

func (f *fakeAssistant) GenerateQuestions(context.Context, *models.Context, []*models.Answer) []string {
	return f.questions
}

func (f *fakeAssistant) ProcessMessage(context.Context, string, string, *models.Context) (string, error) {
	return f.reply, f.err
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

func newTestHandler(t *testing.T, assistant Assistant) (*Handler, *journal.Service, *fakeSender) {
	t.Helper()
	db := openTestDB(t)
	t.Cleanup(func() { db.Close() })
	store := journal.NewService(db, "sqlite3")
	sender := &fakeSender{}
	if assistant == nil {
		assistant = &fakeAssistant{}
	}
	return NewHandler(store, assistant, sender), store, sender
}

const testChatID = 1001

func textUpdate(text string) telegram.Update {
	return telegram.Update{Message: &telegram.Message{
		MessageID: 1,
		From:      telegram.User{ID: testChatID, Username: "alice"},
		Chat:      telegram.Chat{ID: testChatID},
		Text:      text,
	}}
}

func callbackUpdate(data string) telegram.Update {
	return telegram.Update{CallbackQuery: &telegram.CallbackQuery{
		ID:   "cb-1",
		From: telegram.User{ID: testChatID, Username: "alice"},
		Message: &telegram.Message{
			MessageID: 7,
			Chat:      telegram.Chat{ID: testChatID},
		},
		Data: data,
	}}
}

func startUser(t *testing.T, h *Handler, store *journal.Service) *models.User {
	t.Helper()
	h.HandleUpdate(context.Background(), textUpdate("/start"))
	user, err := store.UserByTelegramID(context.Background(), testChatID)
	if err != nil {
		t.Fatalf("user not registered: %v", err)
	}
	return user
}

func TestStartRegistersUserAndSendsWelcome(t *testing.T) {
	h, store, sender := newTestHandler(t, nil)
	startUser(t, h, store)

	last := sender.lastSent(t)
	if !strings.Contains(last.text, "Welcome") {
		t.Fatalf("expected welcome message, got %q", last.text)
	}
	if last.keyboard == nil {
		t.Fatalf("expected time picker keyboard")
	}
}

func TestCommandsRequireRegistration(t *testing.T) {
	h, _, sender := newTestHandler(t, nil)
	h.HandleUpdate(context.Background(), textUpdate("/settime"))
	if got := sender.lastSent(t).text; got != needStartText {
		t.Fatalf("expected registration prompt, got %q", got)
	}
}

func TestAddQuestionFlow(t *testing.T) {
	h, store, sender := newTestHandler(t, nil)
	user := startUser(t, h, store)
	ctx := context.Background()

	h.HandleUpdate(ctx, textUpdate("/addquestion"))
	if got := sender.lastSent(t).text; got != askQuestionText {
		t.Fatalf("expected question prompt, got %q", got)
	}

	h.HandleUpdate(ctx, textUpdate("What made me smile today?"))
	questions, err := store.ActiveQuestions(ctx, user.ID)
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	if len(questions) != 1 || questions[0].Text != "What made me smile today?" {
		t.Fatalf("question not saved: %v", questions)
	}
	if questions[0].Source != models.SourceUser {
		t.Fatalf("expected user source, got %q", questions[0].Source)
	}
	if h.sessions.Get(testChatID).Action != ActionIdle {
		t.Fatalf("expected idle session after save")
	}
}

func TestAddQuestionRejectedAtCap(t *testing.T) {
	h, store, sender := newTestHandler(t, nil)
	user := startUser(t, h, store)
	ctx := context.Background()

	for i := 0; i < journal.MaxActiveUserQuestions; i++ {
		if _, err := store.AddQuestion(ctx, user.ID, "q", models.SourceUser); err != nil {
			t.Fatalf("seed question %d: %v", i, err)
		}
	}

	h.HandleUpdate(ctx, textUpdate("/addquestion"))
	if got := sender.lastSent(t).text; !strings.Contains(got, "Remove one") {
		t.Fatalf("expected cap message, got %q", got)
	}
	if h.sessions.Get(testChatID).Action != ActionIdle {
		t.Fatalf("cap hit should not enter the flow")
	}
}

func TestContextFlowPersistsProfileAndGeneratedQuestions(t *testing.T) {
	assistant := &fakeAssistant{questions: []string{"gen one?", "gen two?"}}
	h, store, sender := newTestHandler(t, assistant)
	user := startUser(t, h, store)
	ctx := context.Background()

	h.HandleUpdate(ctx, textUpdate("/context"))
	h.HandleUpdate(ctx, textUpdate("software engineer"))
	h.HandleUpdate(ctx, textUpdate("run a marathon"))
	h.HandleUpdate(ctx, textUpdate("health and focus"))

	stored, err := store.ContextByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("context not saved: %v", err)
	}
	if stored.AboutMe != "software engineer" || stored.Goals != "run a marathon" || stored.Areas != "health and focus" {
		t.Fatalf("unexpected context: %+v", stored)
	}

	questions, err := store.ActiveQuestions(ctx, user.ID)
	if err != nil {
		t.Fatalf("list questions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 generated questions, got %d", len(questions))
	}
	for _, q := range questions {
		if q.Source != models.SourceAgent {
			t.Fatalf("expected agent source, got %q", q.Source)
		}
	}
	if got := sender.lastSent(t).text; !strings.Contains(got, "gen one?") {
		t.Fatalf("expected generated questions in reply, got %q", got)
	}
}

func TestCancelDiscardsPartialFlow(t *testing.T) {
	h, store, sender := newTestHandler(t, nil)
	user := startUser(t, h, store)
	ctx := context.Background()

	h.HandleUpdate(ctx, textUpdate("/context"))
	h.HandleUpdate(ctx, textUpdate("halfway through"))
	h.HandleUpdate(ctx, textUpdate("/cancel"))

	if got := sender.lastSent(t).text; got != cancelledText {
		t.Fatalf("expected cancel confirmation, got %q", got)
	}
	if _, err := store.ContextByUserID(ctx, user.ID); !errors.Is(err, journal.ErrNotFound) {
		t.Fatalf("partial context must not be persisted, got %v", err)
	}
	if h.sessions.Get(testChatID).Action != ActionIdle {
		t.Fatalf("expected idle after cancel")
	}
}

func TestCustomTimeRetriesOnInvalidInput(t *testing.T) {
	h, store, sender := newTestHandler(t, nil)
	user := startUser(t, h, store)
	ctx := context.Background()

	h.HandleUpdate(ctx, callbackUpdate("custom_time"))
	if h.sessions.Get(testChatID).Action != ActionCustomTime {
		t.Fatalf("expected custom time flow")
	}

	h.HandleUpdate(ctx, textUpdate("25:00"))
	if got := sender.lastSent(t).text; got != badTimeText {
		t.Fatalf("expected retry prompt, got %q", got)
	}
	if h.sessions.Get(testChatID).Action != ActionCustomTime {
		t.Fatalf("invalid input must keep the flow alive")
	}

	h.HandleUpdate(ctx, textUpdate("09:05"))
	reminders, err := store.ActiveReminders(ctx, user.ID)
	if err != nil {
		t.Fatalf("list reminders: %v", err)
	}
	if len(reminders) != 1 || reminders[0].Time != "09:05" {
		t.Fatalf("reminder not saved: %v", reminders)
	}
	if h.sessions.Get(testChatID).Action != ActionIdle {
		t.Fatalf("expected idle after save")
	}
}

func TestAddTimeCallbackAddsReminderAndRefreshes(t *testing.T) {
	h, store, sender := newTestHandler(t, nil)
	user := startUser(t, h, store)
	ctx := context.Background()

	h.HandleUpdate(ctx, callbackUpdate("add_time_09:00"))

	reminders, err := store.ActiveReminders(ctx, user.ID)
	if err != nil {
		t.Fatalf("list reminders: %v", err)
	}
	if len(reminders) != 1 || reminders[0].Time != "09:00" {
		t.Fatalf("reminder not saved: %v", reminders)
	}
	if len(sender.edits) == 0 {
		t.Fatalf("expected settings view refresh")
	}
	if !strings.Contains(sender.edits[len(sender.edits)-1].text, "09:00") {
		t.Fatalf("refreshed view missing the new time")
	}
}

func TestAddTimeCallbackRejectsFourthReminder(t *testing.T) {
	h, store, sender := newTestHandler(t, nil)
	user := startUser(t, h, store)
	ctx := context.Background()

	for _, tm := range []string{"07:00", "12:00", "21:00"} {
		if _, err := store.AddReminder(ctx, user.ID, tm); err != nil {
			t.Fatalf("seed reminder %s: %v", tm, err)
		}
	}

	h.HandleUpdate(ctx, callbackUpdate("add_time_09:00"))
	if len(sender.callbacks) == 0 || !strings.Contains(sender.callbacks[len(sender.callbacks)-1], "At most") {
		t.Fatalf("expected cap notice, got %v", sender.callbacks)
	}
	count, err := store.ActiveReminderCount(ctx, user.ID)
	if err != nil {
		t.Fatalf("count reminders: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 reminders, got %d", count)
	}
}

func TestAnswerCallbackThenText(t *testing.T) {
	h, store, sender := newTestHandler(t, nil)
	user := startUser(t, h, store)
	ctx := context.Background()

	question, err := store.AddQuestion(ctx, user.ID, "how was your day?", models.SourceUser)
	if err != nil {
		t.Fatalf("seed question: %v", err)
	}

	h.HandleUpdate(ctx, callbackUpdate(CallbackAction{Kind: CallbackAnswer, QuestionID: question.ID}.Encode()))
	if got := h.sessions.Get(testChatID); got.Action != ActionAnswering || got.QuestionID != question.ID {
		t.Fatalf("expected answering session, got %+v", got)
	}

	h.HandleUpdate(ctx, textUpdate("it was a good day"))
	answers, err := store.RecentAnswers(ctx, user.ID, 5)
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(answers) != 1 || answers[0].Text != "it was a good day" {
		t.Fatalf("answer not saved: %v", answers)
	}
	if got := sender.lastSent(t).text; !strings.Contains(got, "Answer saved") {
		t.Fatalf("expected confirmation, got %q", got)
	}
}

func TestFreeTextUsesAssistantWithFallback(t *testing.T) {
	assistant := &fakeAssistant{reply: "keep going, you are doing well"}
	h, store, sender := newTestHandler(t, assistant)
	startUser(t, h, store)
	ctx := context.Background()

	h.HandleUpdate(ctx, textUpdate("feeling stuck lately"))
	if got := sender.lastSent(t).text; got != assistant.reply {
		t.Fatalf("expected assistant reply, got %q", got)
	}

	assistant.reply = ""
	assistant.err = errors.New("model down")
	h.HandleUpdate(ctx, textUpdate("still here"))
	if got := sender.lastSent(t).text; got != genericAckText {
		t.Fatalf("expected generic ack, got %q", got)
	}
}

func TestUnknownCommandResetsSession(t *testing.T) {
	h, store, sender := newTestHandler(t, nil)
	startUser(t, h, store)
	ctx := context.Background()

	h.HandleUpdate(ctx, textUpdate("/addquestion"))
	h.HandleUpdate(ctx, textUpdate("/bogus"))
	if got := sender.lastSent(t).text; got != unknownCmdText {
		t.Fatalf("expected unknown command reply, got %q", got)
	}
	if h.sessions.Get(testChatID).Action != ActionIdle {
		t.Fatalf("unknown command must force idle")
	}
}

func TestDecodeCallbackRoundTrip(t *testing.T) {
	cases := []string{"add_time_09:30", "remove_time_12", "remove_all_times", "done_times", "custom_time", "answer_7"}
	for _, raw := range cases {
		action, err := DecodeCallback(raw)
		if err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
		if got := action.Encode(); got != raw {
			t.Fatalf("round trip %q: got %q", raw, got)
		}
	}
	if _, err := DecodeCallback("answer_abc"); err == nil {
		t.Fatalf("expected error for bad question id")
	}
	if _, err := DecodeCallback("totally_unknown"); err == nil {
		t.Fatalf("expected error for unknown payload")
	}
}
