package services

import (
	"bulkmart/internal/repos"
)

// SessionService ties a browser/device session to the account from its
// bearer token. Logging in as someone else on the same session starts
// from an empty cart.
type SessionService struct {
	Sessions *repos.SessionRepo
	Carts    *CartStore
}

func NewSessionService(sessions *repos.SessionRepo, carts *CartStore) *SessionService {
	return &SessionService{Sessions: sessions, Carts: carts}
}

// Bind records account for sid and reports whether the session previously
// belonged to a different account.
func (s *SessionService) Bind(sid, account string) (switched bool, err error) {
	if account == "" {
		return false, ErrNoAccount
	}
	prev, err := s.Sessions.Bind(sid, account)
	if err != nil {
		return false, err
	}
	if prev != "" && prev != account {
		s.Carts.Logout(sid)
		return true, nil
	}
	return false, nil
}

func (s *SessionService) Account(sid string) (string, error) {
	return s.Sessions.Account(sid)
}

func (s *SessionService) Logout(sid string) error {
	s.Carts.Logout(sid)
	return s.Sessions.Unbind(sid)
}
