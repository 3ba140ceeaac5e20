package worker

import "kaizenbot/internal/telegram"

type JobType int

const (
	Process JobType = iota
	Stop
)

// Job carries one inbound update through the dispatcher. Key groups jobs
// that must run one at a time, in arrival order (the telegram chat id).
type Job struct {
	Type   JobType
	Key    int64
	Update telegram.Update
}

// NewJob wraps an update, deriving its serialization key from the chat the
// update belongs to.
func NewJob(upd telegram.Update) Job {
	return Job{Type: Process, Key: updateKey(upd), Update: upd}
}

func updateKey(upd telegram.Update) int64 {
	switch {
	case upd.Message != nil:
		return upd.Message.Chat.ID
	case upd.CallbackQuery != nil:
		if upd.CallbackQuery.Message != nil {
			return upd.CallbackQuery.Message.Chat.ID
		}
		return upd.CallbackQuery.From.ID
	default:
		return 0
	}
}
