// Package store persists the set of known parking sessions to a JSON file.
// The file is what lets a later process invocation (e.g. a stop command) find
// a session created by an earlier one; the portal remains the source of truth,
// so the store is treated as a cache rather than a system of record.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/DanielTromp/bezoekersparkeren/internal/parking"
	"log/slog"
	"os"
)

var ErrNotFound = errors.New("session not found")

type Store struct {
	path   string
	logger *slog.Logger
}

func New(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Load returns all persisted sessions. A missing or unreadable file yields an
// empty list; individual malformed records are skipped with a warning.
func (s *Store) Load() []parking.Session {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to read session store", "path", s.path, "err", err)
		}
		return nil
	}

	var records []json.RawMessage
	if err = json.Unmarshal(content, &records); err != nil {
		s.logger.Warn("session store is corrupt, starting empty", "path", s.path, "err", err)
		return nil
	}

	sessions := make([]parking.Session, 0, len(records))
	for _, record := range records {
		var session parking.Session
		if err = json.Unmarshal(record, &session); err != nil {
			s.logger.Warn("skipping invalid session record", "err", err)
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions
}

// Save overwrites the store with sessions, writing to a temporary file first
// and renaming it into place.
func (s *Store) Save(sessions []parking.Session) error {
	content, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}

	tmp := s.path + ".tmp"
	if err = os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("write session store: %w", err)
	}
	if err = os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session store: %w", err)
	}
	s.logger.Debug("saved sessions", "count", len(sessions), "path", s.path)
	return nil
}

// AddOrUpdate inserts session, replacing any existing record with the same id.
func (s *Store) AddOrUpdate(session parking.Session) error {
	sessions := s.Load()
	replaced := false
	for i, existing := range sessions {
		if existing.ID == session.ID {
			sessions[i] = session
			replaced = true
			break
		}
	}
	if !replaced {
		sessions = append(sessions, session)
	}
	return s.Save(sessions)
}

// Remove deletes the session with the given id, if present.
func (s *Store) Remove(id string) error {
	sessions := s.Load()
	kept := make([]parking.Session, 0, len(sessions))
	for _, session := range sessions {
		if session.ID != id {
			kept = append(kept, session)
		}
	}
	return s.Save(kept)
}

// Get looks up a session by id. Returns ErrNotFound if the id is unknown.
func (s *Store) Get(id string) (parking.Session, error) {
	for _, session := range s.Load() {
		if session.ID == id {
			return session, nil
		}
	}
	return parking.Session{}, ErrNotFound
}
