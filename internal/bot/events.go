package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// CallbackKind is the closed set of button-press events the bot understands.
// Payloads are decoded once here, at the channel boundary, never re-parsed
// inside individual handlers.
type CallbackKind string

const (
	CallbackAddTime    CallbackKind = "add_time"
	CallbackRemoveTime CallbackKind = "remove_time"
	CallbackRemoveAll  CallbackKind = "remove_all_times"
	CallbackDone       CallbackKind = "done_times"
	CallbackCustomTime CallbackKind = "custom_time"
	CallbackAnswer     CallbackKind = "answer"
)

// CallbackAction is one decoded button press. Only the field matching the
// kind is set.
type CallbackAction struct {
	Kind       CallbackKind
	Time       string
	ReminderID int64
	QuestionID int64
}

// DecodeCallback parses a raw callback_data payload into a tagged action.
func DecodeCallback(data string) (CallbackAction, error) {
	switch {
	case strings.HasPrefix(data, "add_time_"):
		return CallbackAction{Kind: CallbackAddTime, Time: strings.TrimPrefix(data, "add_time_")}, nil
	case strings.HasPrefix(data, "remove_time_"):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, "remove_time_"), 10, 64)
		if err != nil {
			return CallbackAction{}, fmt.Errorf("bad reminder id in %q", data)
		}
		return CallbackAction{Kind: CallbackRemoveTime, ReminderID: id}, nil
	case data == "remove_all_times":
		return CallbackAction{Kind: CallbackRemoveAll}, nil
	case data == "done_times":
		return CallbackAction{Kind: CallbackDone}, nil
	case data == "custom_time":
		return CallbackAction{Kind: CallbackCustomTime}, nil
	case strings.HasPrefix(data, "answer_"):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, "answer_"), 10, 64)
		if err != nil {
			return CallbackAction{}, fmt.Errorf("bad question id in %q", data)
		}
		return CallbackAction{Kind: CallbackAnswer, QuestionID: id}, nil
	default:
		return CallbackAction{}, fmt.Errorf("unknown callback payload %q", data)
	}
}

// Encode renders the action back into its wire payload for keyboards.
func (a CallbackAction) Encode() string {
	switch a.Kind {
	case CallbackAddTime:
		return "add_time_" + a.Time
	case CallbackRemoveTime:
		return fmt.Sprintf("remove_time_%d", a.ReminderID)
	case CallbackAnswer:
		return fmt.Sprintf("answer_%d", a.QuestionID)
	default:
		return string(a.Kind)
	}
}
