package bot

import (
	"fmt"
	"strings"

	"kaizenbot/internal/models"
	"kaizenbot/internal/telegram"
)

var presetTimes = []string{"07:00", "09:00", "12:00", "15:00", "18:00", "21:00", "22:00"}

const (
	welcomeText = "Welcome! I will send you reflection questions every day.\n\n" +
		"Commands:\n" +
		"/settime - choose reminder times\n" +
		"/addquestion - add your own question\n" +
		"/context - tell me about yourself\n" +
		"/questions - show your questions\n" +
		"/answers - show recent answers\n" +
		"/cancel - abort the current action\n\n" +
		"Pick when you want to hear from me:"

	askQuestionText   = "Enter the text of your question:"
	askAnswerText     = "Enter your answer:"
	askAboutMeText    = "Step 1 of 3. Tell me a little about yourself:"
	askGoalsText      = "Step 2 of 3. What goals are you working towards?"
	askAreasText      = "Step 3 of 3. Which areas of your life do you want to develop?"
	askCustomTimeText = "Send me a time in HH:MM format, for example 08:30:"
	badTimeText       = "That does not look like a valid time. Use HH:MM, for example 08:30:"
	cancelledText     = "Okay, cancelled."
	nothingToCancel   = "Nothing to cancel."
	genericAckText    = "Got it. Use /settime, /addquestion or /context to set things up."
	needStartText     = "Please run /start first."
	unknownCmdText    = "I do not know that command. Try /start."
)

// settingsViewText renders the reminder settings screen shown by /settime
// and refreshed after every keyboard action.
func settingsViewText(reminders []*models.ReminderTime) string {
	var b strings.Builder
	b.WriteString("⏰ Reminder settings\n\n")
	if len(reminders) == 0 {
		b.WriteString("You have no active reminders yet.\n")
	} else {
		b.WriteString("Active reminders:\n")
		for _, r := range reminders {
			fmt.Fprintf(&b, "  • %s\n", r.Time)
		}
	}
	b.WriteString("\nAdd a time or remove one below.")
	return b.String()
}

// settingsKeyboard builds the time picker: preset add buttons, one remove
// button per active reminder, then custom / remove-all / done controls.
func settingsKeyboard(reminders []*models.ReminderTime) *telegram.InlineKeyboard {
	active := make(map[string]bool, len(reminders))
	for _, r := range reminders {
		active[r.Time] = true
	}

	var rows [][]telegram.InlineButton
	var row []telegram.InlineButton
	for _, t := range presetTimes {
		if active[t] {
			continue
		}
		row = append(row, telegram.Button("➕ "+t, CallbackAction{Kind: CallbackAddTime, Time: t}.Encode()))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	for _, r := range reminders {
		rows = append(rows, telegram.Row(
			telegram.Button("❌ "+r.Time, CallbackAction{Kind: CallbackRemoveTime, ReminderID: r.ID}.Encode()),
		))
	}

	rows = append(rows, telegram.Row(telegram.Button("🕐 Custom time", CallbackAction{Kind: CallbackCustomTime}.Encode())))
	if len(reminders) > 0 {
		rows = append(rows, telegram.Row(telegram.Button("🗑 Remove all", CallbackAction{Kind: CallbackRemoveAll}.Encode())))
	}
	rows = append(rows, telegram.Row(telegram.Button("✅ Done", CallbackAction{Kind: CallbackDone}.Encode())))

	return &telegram.InlineKeyboard{InlineKeyboard: rows}
}

func settingsDoneText(reminders []*models.ReminderTime) string {
	times := make([]string, 0, len(reminders))
	for _, r := range reminders {
		times = append(times, r.Time)
	}
	return "Saved. I will write to you at: " + strings.Join(times, ", ")
}

// questionsText lists the user's active questions with a source marker.
func questionsText(questions []*models.Question) string {
	if len(questions) == 0 {
		return "You have no questions yet. Add one with /addquestion or fill in /context so I can suggest some."
	}
	var b strings.Builder
	b.WriteString("📝 Your questions:\n\n")
	for i, q := range questions {
		marker := "🤖"
		if q.Source == models.SourceUser {
			marker = "👤"
		}
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, marker, q.Text)
	}
	b.WriteString("\nTap a number to answer.")
	return b.String()
}

// questionsKeyboard offers one answer button per listed question.
func questionsKeyboard(questions []*models.Question) *telegram.InlineKeyboard {
	if len(questions) == 0 {
		return nil
	}
	var rows [][]telegram.InlineButton
	var row []telegram.InlineButton
	for i, q := range questions {
		row = append(row, telegram.Button(fmt.Sprintf("%d", i+1), CallbackAction{Kind: CallbackAnswer, QuestionID: q.ID}.Encode()))
		if len(row) == 5 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return &telegram.InlineKeyboard{InlineKeyboard: rows}
}

const answersShown = 5

func answersText(answers []*models.Answer) string {
	if len(answers) == 0 {
		return "No answers yet. I will ask you at your reminder times."
	}
	var b strings.Builder
	b.WriteString("🗒 Your recent answers:\n\n")
	shown := answers
	if len(shown) > answersShown {
		shown = shown[:answersShown]
	}
	for _, a := range shown {
		fmt.Fprintf(&b, "❓ %s\n💬 %s\n\n", a.QuestionText, a.Text)
	}
	if rest := len(answers) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "...and %d more.", rest)
	}
	return strings.TrimRight(b.String(), "\n")
}

// generatedQuestionsText announces the freshly generated personal questions
// after the profile flow completes.
func generatedQuestionsText(questions []string) string {
	var b strings.Builder
	b.WriteString("Thanks! Based on what you told me, here are questions I will ask you:\n\n")
	for i, q := range questions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	return b.String()
}
