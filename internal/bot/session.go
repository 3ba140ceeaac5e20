package bot

import "sync"

// Action names the multi-step flow a user is currently inside. Idle is the
// explicit rest state, not the absence of an entry.
type Action string

const (
	ActionIdle           Action = "idle"
	ActionAddingQuestion Action = "adding_question"
	ActionAnswering      Action = "answering"
	ActionSettingContext Action = "setting_context"
	ActionCustomTime     Action = "custom_time"
)

// ContextStep orders the three prompts of the profile flow.
type ContextStep string

const (
	StepAboutMe ContextStep = "about_me"
	StepGoals   ContextStep = "goals"
	StepAreas   ContextStep = "areas"
)

// ContextDraft accumulates the profile flow answers before anything is
// persisted. Cancelling the flow discards the whole draft.
type ContextDraft struct {
	AboutMe string
	Goals   string
}

// Session is the per-user conversation state. Exactly one flow can be in
// progress at a time.
type Session struct {
	Action     Action
	Step       ContextStep
	QuestionID int64
	Draft      ContextDraft
}

func idleSession() Session {
	return Session{Action: ActionIdle}
}

// SessionStore keeps conversation state in process memory, keyed by telegram
// chat id. State does not survive a restart.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[int64]Session)}
}

// Get returns the user's session, or the idle session when none is stored.
func (s *SessionStore) Get(chatID int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[chatID]; ok {
		return sess
	}
	return idleSession()
}

func (s *SessionStore) Set(chatID int64, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[chatID] = sess
}

// Reset forces the user back to idle and discards any partial flow data.
func (s *SessionStore) Reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
}

// MessageCache remembers the last outbound message per chat so free-form
// replies can carry conversational context. Best effort only.
type MessageCache struct {
	mu   sync.Mutex
	last map[int64]string
}

func NewMessageCache() *MessageCache {
	return &MessageCache{last: make(map[int64]string)}
}

func (c *MessageCache) Put(chatID int64, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[chatID] = text
}

func (c *MessageCache) Get(chatID int64) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last[chatID]
}
