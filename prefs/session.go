// Package prefs holds the small per-user stores: session, voice preference
// and favorites.
package prefs

import (
	"go.uber.org/zap"

	"github.com/ZaguanLabs/lexicache/storage"
	"github.com/ZaguanLabs/lexicache/store"
)

// Session is the signed-in user. Refreshing is never persisted.
type Session struct {
	UserID     string `json:"userId,omitempty"`
	Token      string `json:"token,omitempty"`
	Refreshing bool   `json:"refreshing,omitempty"`
}

// SignedIn reports whether the session carries a user and token.
func (s Session) SignedIn() bool {
	return s.UserID != "" && s.Token != ""
}

// SessionStore is the persisted container for Session.
type SessionStore = store.Store[Session]

// NewSessionStore creates the session store.
func NewSessionStore(resolver *storage.Resolver, logger *zap.Logger) *SessionStore {
	return store.New(storage.StoreSession, resolver, func() Session { return Session{} },
		store.WithPartialize[Session](func(s Session) any {
			return struct {
				UserID string `json:"userId,omitempty"`
				Token  string `json:"token,omitempty"`
			}{s.UserID, s.Token}
		}),
		store.WithLogger[Session](orNop(logger)),
	)
}

// SignIn stores the user and token.
func SignIn(s *SessionStore, userID, token string) {
	s.SetState(func(Session) Session {
		return Session{UserID: userID, Token: token}
	})
}

// SignOut clears the session.
func SignOut(s *SessionStore) {
	s.SetState(func(Session) Session { return Session{} })
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
