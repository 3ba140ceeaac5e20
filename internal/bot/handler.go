package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"kaizenbot/internal/models"
	"kaizenbot/internal/service/journal"
	"kaizenbot/internal/telegram"
)

const sendTimeout = 10 * time.Second

// Sender is the outbound half of the chat channel the handler needs.
// *telegram.Client satisfies it; tests plug in a recording fake.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *telegram.InlineKeyboard) error
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, keyboard *telegram.InlineKeyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Assistant is the slice of the AI service the conversation flow uses.
type Assistant interface {
	GenerateQuestions(ctx context.Context, userCtx *models.Context, recentAnswers []*models.Answer) []string
	ProcessMessage(ctx context.Context, message, prevBotMessage string, userCtx *models.Context) (string, error)
}

// Handler routes inbound updates through the per-user conversation state
// machine. One Handler serves all users; per-user ordering is the caller's
// job (the worker dispatcher runs at most one update per user at a time).
type Handler struct {
	store    *journal.Service
	ai       Assistant
	tg       Sender
	sessions *SessionStore
	lastMsg  *MessageCache
}

func NewHandler(store *journal.Service, ai Assistant, tg Sender) *Handler {
	return &Handler{
		store:    store,
		ai:       ai,
		tg:       tg,
		sessions: NewSessionStore(),
		lastMsg:  NewMessageCache(),
	}
}

// LastMessages exposes the outbound cache so the scheduler's dispatcher can
// record the daily question message it sends.
func (h *Handler) LastMessages() *MessageCache {
	return h.lastMsg
}

// HandleUpdate processes one inbound update to completion. Errors are logged,
// never returned, so one user's failure cannot disturb another's.
func (h *Handler) HandleUpdate(ctx context.Context, upd telegram.Update) {
	switch {
	case upd.Message != nil:
		h.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *telegram.Message) {
	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		h.handleCommand(ctx, msg, text)
		return
	}
	h.handleText(ctx, msg, text)
}

func (h *Handler) handleCommand(ctx context.Context, msg *telegram.Message, text string) {
	chatID := msg.Chat.ID
	cmd := text
	if i := strings.IndexAny(cmd, " @"); i >= 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/start":
		h.cmdStart(ctx, msg)
	case "/settime":
		h.cmdSetTime(ctx, msg)
	case "/addquestion":
		h.cmdAddQuestion(ctx, msg)
	case "/context":
		h.cmdContext(ctx, msg)
	case "/questions":
		h.cmdQuestions(ctx, msg)
	case "/answers":
		h.cmdAnswers(ctx, msg)
	case "/cancel":
		h.cmdCancel(ctx, msg)
	default:
		// Unknown commands abort whatever flow was in progress.
		h.sessions.Reset(chatID)
		h.send(ctx, chatID, unknownCmdText, nil)
	}
}

func (h *Handler) cmdStart(ctx context.Context, msg *telegram.Message) {
	chatID := msg.Chat.ID
	h.sessions.Reset(chatID)

	user, err := h.store.EnsureUser(ctx, msg.From.ID, msg.From.DisplayName())
	if err != nil {
		log.Printf("bot: register user %d: %v", msg.From.ID, err)
		h.send(ctx, chatID, "Something went wrong, please try again.", nil)
		return
	}

	reminders, err := h.store.ActiveReminders(ctx, user.ID)
	if err != nil {
		log.Printf("bot: list reminders for user %d: %v", user.ID, err)
	}
	h.send(ctx, chatID, welcomeText, settingsKeyboard(reminders))
}

func (h *Handler) cmdSetTime(ctx context.Context, msg *telegram.Message) {
	chatID := msg.Chat.ID
	user, ok := h.requireUser(ctx, msg)
	if !ok {
		return
	}
	h.sessions.Reset(chatID)

	reminders, err := h.store.ActiveReminders(ctx, user.ID)
	if err != nil {
		log.Printf("bot: list reminders for user %d: %v", user.ID, err)
		h.send(ctx, chatID, "Could not load your reminders, please try again.", nil)
		return
	}
	h.send(ctx, chatID, settingsViewText(reminders), settingsKeyboard(reminders))
}

func (h *Handler) cmdAddQuestion(ctx context.Context, msg *telegram.Message) {
	chatID := msg.Chat.ID
	user, ok := h.requireUser(ctx, msg)
	if !ok {
		return
	}

	count, err := h.store.ActiveUserQuestionCount(ctx, user.ID)
	if err != nil {
		log.Printf("bot: count questions for user %d: %v", user.ID, err)
		h.send(ctx, chatID, "Something went wrong, please try again.", nil)
		return
	}
	if count >= journal.MaxActiveUserQuestions {
		h.send(ctx, chatID, fmt.Sprintf("You already have %d of your own questions. Remove one before adding another.", count), nil)
		return
	}

	h.sessions.Set(chatID, Session{Action: ActionAddingQuestion})
	h.send(ctx, chatID, askQuestionText, nil)
}

func (h *Handler) cmdContext(ctx context.Context, msg *telegram.Message) {
	chatID := msg.Chat.ID
	if _, ok := h.requireUser(ctx, msg); !ok {
		return
	}
	h.sessions.Set(chatID, Session{Action: ActionSettingContext, Step: StepAboutMe})
	h.send(ctx, chatID, askAboutMeText, nil)
}

func (h *Handler) cmdQuestions(ctx context.Context, msg *telegram.Message) {
	chatID := msg.Chat.ID
	user, ok := h.requireUser(ctx, msg)
	if !ok {
		return
	}
	questions, err := h.store.ActiveQuestions(ctx, user.ID)
	if err != nil {
		log.Printf("bot: list questions for user %d: %v", user.ID, err)
		h.send(ctx, chatID, "Could not load your questions, please try again.", nil)
		return
	}
	h.send(ctx, chatID, questionsText(questions), questionsKeyboard(questions))
}

func (h *Handler) cmdAnswers(ctx context.Context, msg *telegram.Message) {
	chatID := msg.Chat.ID
	user, ok := h.requireUser(ctx, msg)
	if !ok {
		return
	}
	answers, err := h.store.RecentAnswers(ctx, user.ID, 10)
	if err != nil {
		log.Printf("bot: list answers for user %d: %v", user.ID, err)
		h.send(ctx, chatID, "Could not load your answers, please try again.", nil)
		return
	}
	h.send(ctx, chatID, answersText(answers), nil)
}

func (h *Handler) cmdCancel(ctx context.Context, msg *telegram.Message) {
	chatID := msg.Chat.ID
	if h.sessions.Get(chatID).Action == ActionIdle {
		h.send(ctx, chatID, nothingToCancel, nil)
		return
	}
	h.sessions.Reset(chatID)
	h.send(ctx, chatID, cancelledText, nil)
}

// handleText routes a plain message by the user's current session state.
func (h *Handler) handleText(ctx context.Context, msg *telegram.Message, text string) {
	chatID := msg.Chat.ID
	sess := h.sessions.Get(chatID)

	switch sess.Action {
	case ActionAddingQuestion:
		h.textAddQuestion(ctx, msg, text)
	case ActionAnswering:
		h.textAnswer(ctx, msg, text, sess.QuestionID)
	case ActionSettingContext:
		h.textContextStep(ctx, msg, text, sess)
	case ActionCustomTime:
		h.textCustomTime(ctx, msg, text)
	default:
		h.textFreeForm(ctx, msg, text)
	}
}

func (h *Handler) textAddQuestion(ctx context.Context, msg *telegram.Message, text string) {
	chatID := msg.Chat.ID
	if text == "" {
		h.send(ctx, chatID, "The question cannot be empty. "+askQuestionText, nil)
		return
	}
	user, ok := h.requireUser(ctx, msg)
	if !ok {
		return
	}

	if _, err := h.store.AddQuestion(ctx, user.ID, text, models.SourceUser); err != nil {
		if errors.Is(err, journal.ErrQuestionLimit) {
			h.sessions.Reset(chatID)
			h.send(ctx, chatID, "You already have the maximum number of your own questions.", nil)
			return
		}
		log.Printf("bot: add question for user %d: %v", user.ID, err)
		h.send(ctx, chatID, "Could not save the question, please try again.", nil)
		return
	}
	h.sessions.Reset(chatID)
	h.send(ctx, chatID, "✅ Question added. I will include it in your daily reflections.", nil)
}

func (h *Handler) textAnswer(ctx context.Context, msg *telegram.Message, text string, questionID int64) {
	chatID := msg.Chat.ID
	if text == "" {
		h.send(ctx, chatID, "The answer cannot be empty. "+askAnswerText, nil)
		return
	}
	user, ok := h.requireUser(ctx, msg)
	if !ok {
		return
	}

	if _, err := h.store.AddAnswer(ctx, user.ID, questionID, text); err != nil {
		if errors.Is(err, journal.ErrNotFound) || errors.Is(err, journal.ErrNotOwner) {
			h.sessions.Reset(chatID)
			h.send(ctx, chatID, "That question is no longer available.", nil)
			return
		}
		log.Printf("bot: add answer for user %d: %v", user.ID, err)
		h.send(ctx, chatID, "Could not save the answer, please try again.", nil)
		return
	}
	h.sessions.Reset(chatID)
	h.send(ctx, chatID, "✅ Answer saved. See /answers any time.", nil)
}

func (h *Handler) textContextStep(ctx context.Context, msg *telegram.Message, text string, sess Session) {
	chatID := msg.Chat.ID
	if text == "" {
		h.send(ctx, chatID, "Please send some text, or /cancel to stop.", nil)
		return
	}

	switch sess.Step {
	case StepAboutMe:
		sess.Draft.AboutMe = text
		sess.Step = StepGoals
		h.sessions.Set(chatID, sess)
		h.send(ctx, chatID, askGoalsText, nil)
	case StepGoals:
		sess.Draft.Goals = text
		sess.Step = StepAreas
		h.sessions.Set(chatID, sess)
		h.send(ctx, chatID, askAreasText, nil)
	case StepAreas:
		h.finishContextFlow(ctx, msg, sess.Draft, text)
	default:
		h.sessions.Reset(chatID)
	}
}

// finishContextFlow persists the completed profile in one shot, then asks the
// assistant for personal questions and stores up to three of them.
func (h *Handler) finishContextFlow(ctx context.Context, msg *telegram.Message, draft ContextDraft, areas string) {
	chatID := msg.Chat.ID
	user, ok := h.requireUser(ctx, msg)
	if !ok {
		return
	}

	userCtx, err := h.store.UpsertContext(ctx, user.ID, draft.AboutMe, draft.Goals, areas)
	if err != nil {
		log.Printf("bot: save context for user %d: %v", user.ID, err)
		h.send(ctx, chatID, "Could not save your profile, please try again.", nil)
		return
	}
	h.sessions.Reset(chatID)

	generated := h.ai.GenerateQuestions(ctx, userCtx, nil)
	if len(generated) > journal.MaxActiveUserQuestions {
		generated = generated[:journal.MaxActiveUserQuestions]
	}
	saved := make([]string, 0, len(generated))
	for _, q := range generated {
		if _, err := h.store.AddQuestion(ctx, user.ID, q, models.SourceAgent); err != nil {
			log.Printf("bot: save generated question for user %d: %v", user.ID, err)
			continue
		}
		saved = append(saved, q)
	}

	if len(saved) == 0 {
		h.send(ctx, chatID, "✅ Profile saved.", nil)
		return
	}
	h.send(ctx, chatID, generatedQuestionsText(saved), nil)
}

func (h *Handler) textCustomTime(ctx context.Context, msg *telegram.Message, text string) {
	chatID := msg.Chat.ID
	if !journal.ValidTime(text) {
		// Stay in the flow so the user can just retype the time.
		h.send(ctx, chatID, badTimeText, nil)
		return
	}
	user, ok := h.requireUser(ctx, msg)
	if !ok {
		return
	}

	if _, err := h.store.AddReminder(ctx, user.ID, text); err != nil {
		h.sessions.Reset(chatID)
		if errors.Is(err, journal.ErrReminderLimit) {
			h.send(ctx, chatID, fmt.Sprintf("You can have at most %d reminders. Remove one first with /settime.", journal.MaxActiveReminders), nil)
			return
		}
		log.Printf("bot: add reminder for user %d: %v", user.ID, err)
		h.send(ctx, chatID, "Could not save the reminder, please try again.", nil)
		return
	}
	h.sessions.Reset(chatID)
	h.send(ctx, chatID, "✅ Reminder set for "+text+".", nil)
}

// textFreeForm runs idle chatter through the assistant, falling back to a
// generic acknowledgement when the model is unavailable.
func (h *Handler) textFreeForm(ctx context.Context, msg *telegram.Message, text string) {
	chatID := msg.Chat.ID
	if text == "" {
		return
	}
	user, err := h.store.UserByTelegramID(ctx, msg.From.ID)
	if err != nil {
		h.send(ctx, chatID, needStartText, nil)
		return
	}

	userCtx, err := h.store.ContextByUserID(ctx, user.ID)
	if err != nil && !errors.Is(err, journal.ErrNotFound) {
		log.Printf("bot: load context for user %d: %v", user.ID, err)
	}

	reply, err := h.ai.ProcessMessage(ctx, text, h.lastMsg.Get(chatID), userCtx)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			log.Printf("bot: process message for user %d: %v", user.ID, err)
		}
		reply = genericAckText
	}
	h.send(ctx, chatID, reply, nil)
}

func (h *Handler) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	if cb.Message == nil {
		h.answer(ctx, cb.ID, "")
		return
	}
	chatID := cb.Message.Chat.ID

	action, err := DecodeCallback(cb.Data)
	if err != nil {
		log.Printf("bot: %v", err)
		h.sessions.Reset(chatID)
		h.answer(ctx, cb.ID, "Unknown action")
		return
	}

	user, err := h.store.UserByTelegramID(ctx, cb.From.ID)
	if err != nil {
		h.answer(ctx, cb.ID, "Please run /start first")
		return
	}

	switch action.Kind {
	case CallbackAddTime:
		h.callbackAddTime(ctx, cb, user, action.Time)
	case CallbackRemoveTime:
		h.callbackRemoveTime(ctx, cb, user, action.ReminderID)
	case CallbackRemoveAll:
		h.callbackRemoveAll(ctx, cb, user)
	case CallbackDone:
		h.callbackDone(ctx, cb, user)
	case CallbackCustomTime:
		h.sessions.Set(chatID, Session{Action: ActionCustomTime})
		h.answer(ctx, cb.ID, "")
		h.send(ctx, chatID, askCustomTimeText, nil)
	case CallbackAnswer:
		h.callbackAnswer(ctx, cb, user, action.QuestionID)
	}
}

func (h *Handler) callbackAddTime(ctx context.Context, cb *telegram.CallbackQuery, user *models.User, timeOfDay string) {
	if _, err := h.store.AddReminder(ctx, user.ID, timeOfDay); err != nil {
		if errors.Is(err, journal.ErrReminderLimit) {
			h.answer(ctx, cb.ID, fmt.Sprintf("At most %d reminders", journal.MaxActiveReminders))
			return
		}
		log.Printf("bot: add reminder for user %d: %v", user.ID, err)
		h.answer(ctx, cb.ID, "Something went wrong")
		return
	}
	h.answer(ctx, cb.ID, "Added "+timeOfDay)
	h.refreshSettings(ctx, cb, user)
}

func (h *Handler) callbackRemoveTime(ctx context.Context, cb *telegram.CallbackQuery, user *models.User, reminderID int64) {
	if err := h.store.DeactivateReminder(ctx, user.ID, reminderID); err != nil {
		if errors.Is(err, journal.ErrNotFound) || errors.Is(err, journal.ErrNotOwner) {
			h.answer(ctx, cb.ID, "Reminder not found")
			return
		}
		log.Printf("bot: remove reminder %d for user %d: %v", reminderID, user.ID, err)
		h.answer(ctx, cb.ID, "Something went wrong")
		return
	}
	h.answer(ctx, cb.ID, "Removed")
	h.refreshSettings(ctx, cb, user)
}

func (h *Handler) callbackRemoveAll(ctx context.Context, cb *telegram.CallbackQuery, user *models.User) {
	if err := h.store.DeactivateAllReminders(ctx, user.ID); err != nil {
		log.Printf("bot: remove all reminders for user %d: %v", user.ID, err)
		h.answer(ctx, cb.ID, "Something went wrong")
		return
	}
	h.answer(ctx, cb.ID, "All reminders removed")
	h.refreshSettings(ctx, cb, user)
}

func (h *Handler) callbackDone(ctx context.Context, cb *telegram.CallbackQuery, user *models.User) {
	reminders, err := h.store.ActiveReminders(ctx, user.ID)
	if err != nil {
		log.Printf("bot: list reminders for user %d: %v", user.ID, err)
		h.answer(ctx, cb.ID, "Something went wrong")
		return
	}
	if len(reminders) == 0 {
		h.answer(ctx, cb.ID, "Pick at least one time first")
		return
	}
	h.answer(ctx, cb.ID, "")
	h.edit(ctx, cb.Message.Chat.ID, cb.Message.MessageID, settingsDoneText(reminders), nil)
}

func (h *Handler) callbackAnswer(ctx context.Context, cb *telegram.CallbackQuery, user *models.User, questionID int64) {
	chatID := cb.Message.Chat.ID
	question, err := h.store.QuestionByID(ctx, questionID)
	if err != nil || question.UserID != user.ID || !question.Active {
		h.answer(ctx, cb.ID, "That question is no longer available")
		return
	}
	h.sessions.Set(chatID, Session{Action: ActionAnswering, QuestionID: questionID})
	h.answer(ctx, cb.ID, "")
	h.send(ctx, chatID, "❓ "+question.Text+"\n\n"+askAnswerText, nil)
}

// refreshSettings re-renders the settings message in place after a keyboard
// action changed the reminder set.
func (h *Handler) refreshSettings(ctx context.Context, cb *telegram.CallbackQuery, user *models.User) {
	reminders, err := h.store.ActiveReminders(ctx, user.ID)
	if err != nil {
		log.Printf("bot: list reminders for user %d: %v", user.ID, err)
		return
	}
	h.edit(ctx, cb.Message.Chat.ID, cb.Message.MessageID, settingsViewText(reminders), settingsKeyboard(reminders))
}

func (h *Handler) requireUser(ctx context.Context, msg *telegram.Message) (*models.User, bool) {
	user, err := h.store.UserByTelegramID(ctx, msg.From.ID)
	if err != nil {
		h.send(ctx, msg.Chat.ID, needStartText, nil)
		return nil, false
	}
	return user, true
}

func (h *Handler) send(ctx context.Context, chatID int64, text string, keyboard *telegram.InlineKeyboard) {
	sctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := h.tg.SendMessage(sctx, chatID, text, keyboard); err != nil {
		log.Printf("bot: send to chat %d: %v", chatID, err)
		return
	}
	h.lastMsg.Put(chatID, text)
}

func (h *Handler) edit(ctx context.Context, chatID, messageID int64, text string, keyboard *telegram.InlineKeyboard) {
	sctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := h.tg.EditMessageText(sctx, chatID, messageID, text, keyboard); err != nil {
		log.Printf("bot: edit message %d in chat %d: %v", messageID, chatID, err)
		return
	}
	h.lastMsg.Put(chatID, text)
}

func (h *Handler) answer(ctx context.Context, callbackID, text string) {
	sctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := h.tg.AnswerCallback(sctx, callbackID, text); err != nil {
		log.Printf("bot: answer callback %s: %v", callbackID, err)
	}
}
