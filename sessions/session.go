package sessions

import (
	"context"
	"sync"
)

// Session is the per request handle returned by Manager.Start
type Session struct {
	manager *Manager
	jar     CookieJar

	mu   sync.Mutex
	id   string
	data map[string]string
}

// ID returns the session id, empty until the first write
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *Session) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Session) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id == "" {
		id, err := s.manager.newID()
		if err != nil {
			return err
		}
		s.id = id
	}

	s.data[key] = value
	return s.saveLocked(ctx)
}

func (s *Session) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)

	if s.id == "" {
		return nil
	}
	return s.saveLocked(ctx)
}

// Destroy removes the session from the backend and expires the cookie
func (s *Session) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = map[string]string{}
	if s.id == "" {
		return nil
	}

	err := s.manager.backend.Delete(ctx, storageKey(s.id))
	s.id = ""
	s.manager.clearCookie(s.jar)
	return err
}

// Renew moves the data to a fresh id and drops the old one
func (s *Session) Renew(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.id
	id, err := s.manager.newID()
	if err != nil {
		return err
	}
	s.id = id

	if old != "" {
		if err := s.manager.backend.Delete(ctx, storageKey(old)); err != nil {
			s.manager.logger.Error("failed to drop renewed session: %v", err)
		}
	}

	if len(s.data) == 0 {
		// nothing to persist yet; the next Set writes under the new id
		return nil
	}
	return s.saveLocked(ctx)
}

func (s *Session) saveLocked(ctx context.Context) error {
	if err := s.manager.backend.Save(ctx, storageKey(s.id), s.data, s.manager.ttl); err != nil {
		return err
	}
	s.manager.setCookie(s.jar, s.id)
	return nil
}
