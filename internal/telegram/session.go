package telegram

import "sync"

type sessionState int

const (
	stateIdle sessionState = iota
	stateLookupGroupName
	stateLookupSubGroup
	stateLookupTeacherName
	stateSubscribeName
	stateSubscribeSubGroup
	stateUnsubscribePick
)

// session keeps a chat's conversation progress between updates.
type session struct {
	state     sessionState
	groupName string
}

// sessionStore holds in-memory conversation sessions keyed by chat id.
// Updates for one chat arrive sequentially over long polling, the mutex
// covers concurrent chats.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[int64]session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[int64]session)}
}

func (s *sessionStore) get(chatID int64) session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessions[chatID]
}

func (s *sessionStore) set(chatID int64, sess session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[chatID] = sess
}

func (s *sessionStore) reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, chatID)
}
