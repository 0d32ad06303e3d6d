package talkwire

import "sync"

// Store holds the per-conversation message logs. Logs are insertion-ordered:
// appended in arrival order and replaced wholesale on a history load, never
// re-sorted by timestamp. Safe for concurrent use; the view layer reads while
// the session's routing loop appends.
type Store struct {
	mu   sync.RWMutex
	logs map[ConversationKey][]Message
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{logs: make(map[ConversationKey][]Message)}
}

// Replace overwrites the entire log for key, discarding prior contents.
// Used for history loads.
func (s *Store) Replace(key ConversationKey, msgs []Message) {
	log := make([]Message, len(msgs))
	copy(log, msgs)
	s.mu.Lock()
	s.logs[key] = log
	s.mu.Unlock()
}

// Append adds msg to the end of the log for key, creating the log if absent.
func (s *Store) Append(key ConversationKey, msg Message) {
	s.mu.Lock()
	s.logs[key] = append(s.logs[key], msg)
	s.mu.Unlock()
}

// Read returns a copy of the ordered log for key, empty if none exists.
func (s *Store) Read(key ConversationKey) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := make([]Message, len(s.logs[key]))
	copy(log, s.logs[key])
	return log
}

// Len reports the number of messages logged for key.
func (s *Store) Len(key ConversationKey) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs[key])
}

// Clear drops all logs. Used on logout only.
func (s *Store) Clear() {
	s.mu.Lock()
	s.logs = make(map[ConversationKey][]Message)
	s.mu.Unlock()
}
