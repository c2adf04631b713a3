// Package storage persists agent state under the data directory: chat
// sessions as JSON files and the turn log in a local SQLite database.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"gridpilot/model"
)

// Message is the on-disk shape of one conversation entry.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Citations []string  `json:"citations,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session represents one agent conversation against a workbook.
type Session struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Provider        string    `json:"provider"`
	Model           string    `json:"model"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Messages        []Message `json:"messages"`
	SystemPrompt    string    `json:"system_prompt,omitempty"`
	MemorySummary   string    `json:"memory_summary,omitempty"`
	MemorySourceIDs []string  `json:"memory_source_ids,omitempty"`
}

// SessionMetadata is the listing view of a session, cheap to render.
type SessionMetadata struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

func (s *Session) metadata() SessionMetadata {
	return SessionMetadata{
		ID:           s.ID,
		Name:         s.Name,
		Provider:     s.Provider,
		Model:        s.Model,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		MessageCount: len(s.Messages),
	}
}

// FromModelMessages converts live conversation history to the storable form.
// Streaming entries are skipped; only finalized content is persisted.
func FromModelMessages(msgs []model.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Streaming {
			continue
		}
		out = append(out, Message{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			Citations: m.Citations,
			Timestamp: m.Timestamp,
		})
	}
	return out
}

// ToModelMessages converts stored messages back to live history.
func ToModelMessages(msgs []Message) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, model.Message{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			Citations: m.Citations,
			Timestamp: m.Timestamp,
		})
	}
	return out
}

// SessionStorage reads and writes sessions under <dataDir>/sessions,
// one JSON file per session.
type SessionStorage struct {
	sessionsDir string
}

func NewSessionStorage(dataDir string) (*SessionStorage, error) {
	sessionsDir := filepath.Join(dataDir, "sessions")

	// 0700: user-only access
	if err := os.MkdirAll(sessionsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	return &SessionStorage{sessionsDir: sessionsDir}, nil
}

func (s *SessionStorage) sessionPath(id string) string {
	return filepath.Join(s.sessionsDir, id+".json")
}

// Save writes the session to disk, assigning an ID on first save and
// bumping UpdatedAt.
func (s *SessionStorage) Save(session *Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	session.UpdatedAt = time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = session.UpdatedAt
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// 0600: sessions contain conversation history and range contents.
	if err := os.WriteFile(s.sessionPath(session.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

func (s *SessionStorage) Load(id string) (*Session, error) {
	data, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	session := &Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return session, nil
}

// List returns metadata for every readable session, newest update first.
// Corrupted files are skipped rather than failing the listing.
func (s *SessionStorage) List() ([]SessionMetadata, error) {
	entries, err := os.ReadDir(s.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessions []SessionMetadata
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		session, err := s.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		sessions = append(sessions, session.metadata())
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (s *SessionStorage) Delete(id string) error {
	if err := os.Remove(s.sessionPath(id)); err != nil {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

func (s *SessionStorage) currentSessionPath() string {
	return filepath.Join(filepath.Dir(s.sessionsDir), "current_session.id")
}

// SaveCurrentSessionID records which session to resume on next startup.
func (s *SessionStorage) SaveCurrentSessionID(id string) error {
	return os.WriteFile(s.currentSessionPath(), []byte(id), 0600)
}

func (s *SessionStorage) LoadCurrentSessionID() (string, error) {
	data, err := os.ReadFile(s.currentSessionPath())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *SessionStorage) RenameSession(id string, newName string) error {
	session, err := s.Load(id)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	session.Name = newName
	if err := s.Save(session); err != nil {
		return fmt.Errorf("failed to save renamed session: %w", err)
	}
	return nil
}

// SanitizeFilename maps a session name onto something safe to embed in
// a filename on any platform.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', '\n', '\r':
			return '-'
		}
		return r
	}, name)

	name = strings.Trim(name, "-.")
	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		name = "session"
	}
	return name
}

// GenerateExportPath picks a timestamped default export location under
// the user's Downloads directory.
func GenerateExportPath(sessionName string) string {
	homeDir := os.Getenv("HOME")
	if homeDir == "" {
		homeDir = os.Getenv("USERPROFILE")
	}

	filename := fmt.Sprintf("gridpilot-session-%s-%s.json",
		SanitizeFilename(sessionName), time.Now().Format("20060102-150405"))

	return filepath.Join(homeDir, "Downloads", filename)
}

// ExportToJSON writes a pretty-printed copy of the session to exportPath.
func (s *SessionStorage) ExportToJSON(id string, exportPath string) error {
	session, err := s.Load(id)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(exportPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// GenerateSessionName derives a display name from the first user prompt,
// falling back to a timestamp.
func GenerateSessionName(firstMessage string) string {
	name := firstMessage
	if len(name) > 30 {
		name = name[:30] + "..."
	}
	name = strings.ReplaceAll(name, "\n", " ")
	name = strings.ReplaceAll(name, "\r", " ")
	name = strings.TrimSpace(name)

	if name == "" {
		return fmt.Sprintf("Session %s", time.Now().Format("Jan 2, 3:04 PM"))
	}
	return name
}

func (s *SessionStorage) lockPath(sessionID string) string {
	return filepath.Join(s.sessionsDir, sessionID+".lock")
}

// LockSession marks a session as in use by this process. The lock file
// holds the owning PID.
func (s *SessionStorage) LockSession(sessionID string) error {
	return os.WriteFile(s.lockPath(sessionID), []byte(fmt.Sprintf("%d", os.Getpid())), 0600)
}

func (s *SessionStorage) UnlockSession(sessionID string) error {
	err := os.Remove(s.lockPath(sessionID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// CheckSessionLock reports whether another live instance holds the
// session. Unreadable or stale locks are removed and treated as free.
func (s *SessionStorage) CheckSessionLock(sessionID string) (bool, error) {
	lockPath := s.lockPath(sessionID)

	data, err := os.ReadFile(lockPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read lock file: %w", err)
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		_ = os.Remove(lockPath)
		return false, nil
	}

	// os.FindProcess always succeeds on Unix; this is a best-effort check.
	if _, err := os.FindProcess(pid); err != nil {
		_ = os.Remove(lockPath)
		return false, nil
	}
	return true, nil
}
