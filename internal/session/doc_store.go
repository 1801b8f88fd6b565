package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"chapterbase/pkg/logging"
	"chapterbase/pkg/oauth"
)

// backend is the durable layer behind a docStore. A nil backend keeps the
// session in memory only.
type backend interface {
	read() (document, error)
	write(document) error
	describe() string
}

// docStore implements Store over a single cached document. The cache is the
// source of truth for reads until it is invalidated; writes go to the
// backend first and only replace the cache once they succeeded.
type docStore struct {
	mu      sync.Mutex
	backend backend
	cache   document
	loaded  bool
	now     func() time.Time
	newID   func() string
}

func newDocStore(b backend) *docStore {
	return &docStore{
		backend: b,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// current returns the cached document, reading the backend if needed.
// Must be called with s.mu held.
func (s *docStore) current() document {
	if s.loaded || s.backend == nil {
		return s.cache
	}

	doc, err := s.backend.read()
	if err != nil {
		logging.Warn("Session", "Ignoring unreadable session at %s: %v", s.backend.describe(), err)
		doc = document{}
	}
	s.cache = doc
	s.loaded = true
	return s.cache
}

// commit persists doc and makes it the cached state.
// Must be called with s.mu held.
func (s *docStore) commit(doc document) error {
	if s.backend != nil {
		if err := s.backend.write(doc); err != nil {
			return err
		}
	}
	s.cache = doc
	s.loaded = true
	return nil
}

// invalidate drops the cache so the next read goes to the backend.
func (s *docStore) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backend != nil {
		s.loaded = false
	}
}

func (s *docStore) SaveVerifier(verifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.current()
	doc.CodeVerifier = verifier
	return s.commit(doc)
}

func (s *docStore) LoadVerifier() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.current()
	return doc.CodeVerifier, doc.CodeVerifier != ""
}

func (s *docStore) ClearVerifier() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.current()
	if doc.CodeVerifier == "" {
		return nil
	}
	doc.CodeVerifier = ""
	return s.commit(doc)
}

func (s *docStore) SaveTokens(pair oauth.TokenPair) error {
	if !pair.Valid() {
		return ErrIncompleteTokenPair
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.current().withTokens(pair, s.newID(), s.now())
	if err := s.commit(doc); err != nil {
		logging.Audit("session_store_failed", "error", err.Error())
		return err
	}

	logging.Audit("session_started",
		"session_id", doc.SessionID,
		"has_refresh_token", doc.RefreshToken != "",
	)
	return nil
}

func (s *docStore) LoadTokens() (*oauth.TokenPair, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.current()
	return doc.tokens()
}

func (s *docStore) ClearTokens() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.current()
	if !doc.hasTokenFields() {
		return nil
	}

	sessionID := doc.SessionID
	if err := s.commit(doc.withoutTokens()); err != nil {
		logging.Audit("session_clear_failed", "session_id", sessionID, "error", err.Error())
		return err
	}

	logging.Audit("session_ended", "session_id", sessionID)
	return nil
}

func (s *docStore) IsAuthenticated() bool {
	_, ok := s.LoadTokens()
	return ok
}

// Info returns the display view of the current session.
func (s *docStore) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.current()
	return doc.info()
}

// Reset removes tokens and verifier in one write. It is what logout does.
func (s *docStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.current()
	if !doc.hasTokenFields() && doc.CodeVerifier == "" {
		return nil
	}

	sessionID := doc.SessionID
	if err := s.commit(document{}); err != nil {
		return err
	}

	logging.Audit("session_reset", "session_id", sessionID)
	return nil
}
