package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gridpilot/model"
)

func TestSessionSaveLoad(t *testing.T) {
	dataDir := t.TempDir()
	storage, err := NewSessionStorage(dataDir)
	if err != nil {
		t.Fatalf("NewSessionStorage: %v", err)
	}

	session := &Session{
		Name:     "Quarterly totals",
		Provider: "ollama",
		Model:    "llama3.1:latest",
		Messages: []Message{
			{Role: "user", Content: "Sum column B", Timestamp: time.Now()},
			{Role: "assistant", Content: "Done, total in B10", Citations: []string{"Sheet1!B1:B10"}, Timestamp: time.Now()},
		},
		MemorySummary:   "User wants column sums",
		MemorySourceIDs: []string{"m1", "m2"},
	}

	if err := storage.Save(session); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if session.ID == "" {
		t.Fatal("Save should assign an ID")
	}

	loaded, err := storage.Load(session.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Name != "Quarterly totals" {
		t.Errorf("name not round-tripped: %q", loaded.Name)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(loaded.Messages))
	}
	if loaded.Messages[1].Citations[0] != "Sheet1!B1:B10" {
		t.Errorf("citations not round-tripped: %v", loaded.Messages[1].Citations)
	}
	if loaded.MemorySummary != "User wants column sums" {
		t.Errorf("memory summary not round-tripped: %q", loaded.MemorySummary)
	}

	info, err := os.Stat(filepath.Join(dataDir, "sessions", session.ID+".json"))
	if err != nil {
		t.Fatalf("stat session file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("session file permissions = %o, want 0600", info.Mode().Perm())
	}
}

func TestSessionListNewestFirst(t *testing.T) {
	dataDir := t.TempDir()
	storage, err := NewSessionStorage(dataDir)
	if err != nil {
		t.Fatalf("NewSessionStorage: %v", err)
	}

	old := &Session{Name: "old"}
	if err := storage.Save(old); err != nil {
		t.Fatalf("Save: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	recent := &Session{Name: "recent"}
	if err := storage.Save(recent); err != nil {
		t.Fatalf("Save: %v", err)
	}

	list, err := storage.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
	if list[0].Name != "recent" {
		t.Errorf("expected newest first, got %q", list[0].Name)
	}
}

func TestSessionDelete(t *testing.T) {
	dataDir := t.TempDir()
	storage, err := NewSessionStorage(dataDir)
	if err != nil {
		t.Fatalf("NewSessionStorage: %v", err)
	}

	session := &Session{Name: "temp"}
	if err := storage.Save(session); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := storage.Delete(session.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := storage.Load(session.ID); err == nil {
		t.Error("Load should fail after Delete")
	}
}

func TestCurrentSessionID(t *testing.T) {
	dataDir := t.TempDir()
	storage, err := NewSessionStorage(dataDir)
	if err != nil {
		t.Fatalf("NewSessionStorage: %v", err)
	}

	if err := storage.SaveCurrentSessionID("abc-123"); err != nil {
		t.Fatalf("SaveCurrentSessionID: %v", err)
	}
	id, err := storage.LoadCurrentSessionID()
	if err != nil {
		t.Fatalf("LoadCurrentSessionID: %v", err)
	}
	if id != "abc-123" {
		t.Errorf("current session id = %q, want abc-123", id)
	}
}

func TestModelMessageConversion(t *testing.T) {
	msgs := []model.Message{
		{ID: "1", Role: model.RoleUser, Content: "hello", Timestamp: time.Now()},
		{ID: "2", Role: model.RoleAssistant, Content: "partial", Streaming: true},
		{ID: "3", Role: model.RoleAssistant, Content: "done", Citations: []string{"Sheet1!A1"}},
	}

	stored := FromModelMessages(msgs)
	if len(stored) != 2 {
		t.Fatalf("streaming message should be skipped, got %d stored", len(stored))
	}
	if stored[1].Citations[0] != "Sheet1!A1" {
		t.Errorf("citations lost in conversion: %v", stored[1].Citations)
	}

	back := ToModelMessages(stored)
	if len(back) != 2 {
		t.Fatalf("expected 2 messages back, got %d", len(back))
	}
	if back[0].ID != "1" || back[0].Role != model.RoleUser {
		t.Errorf("message identity lost: %+v", back[0])
	}
}

func TestGenerateSessionName(t *testing.T) {
	if got := GenerateSessionName("Sum the revenue column and put the total at the bottom"); got != "Sum the revenue column and put..." {
		t.Errorf("unexpected name: %q", got)
	}
	if got := GenerateSessionName("short"); got != "short" {
		t.Errorf("unexpected name: %q", got)
	}
	if got := GenerateSessionName(""); got == "" {
		t.Error("empty prompt should still produce a name")
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := SanitizeFilename("a/b:c*d?e"); got != "a-b-c-d-e" {
		t.Errorf("SanitizeFilename = %q", got)
	}
	if got := SanitizeFilename("///"); got != "session" {
		t.Errorf("fully invalid name should fall back to session, got %q", got)
	}
}

func TestSessionLock(t *testing.T) {
	dataDir := t.TempDir()
	storage, err := NewSessionStorage(dataDir)
	if err != nil {
		t.Fatalf("NewSessionStorage: %v", err)
	}

	locked, err := storage.CheckSessionLock("s1")
	if err != nil {
		t.Fatalf("CheckSessionLock: %v", err)
	}
	if locked {
		t.Error("fresh session should not be locked")
	}

	if err := storage.LockSession("s1"); err != nil {
		t.Fatalf("LockSession: %v", err)
	}
	locked, err = storage.CheckSessionLock("s1")
	if err != nil {
		t.Fatalf("CheckSessionLock: %v", err)
	}
	if !locked {
		t.Error("session should be locked by this process")
	}

	if err := storage.UnlockSession("s1"); err != nil {
		t.Fatalf("UnlockSession: %v", err)
	}
	locked, _ = storage.CheckSessionLock("s1")
	if locked {
		t.Error("session should be unlocked")
	}
}
