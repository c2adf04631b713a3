package storage

import (
	"strings"
	"testing"
	"time"
)

func TestSearchMatchesContentAndCitations(t *testing.T) {
	ss, err := NewSessionStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewSessionStorage: %v", err)
	}

	session := &Session{
		Name: "budget review",
		Messages: []Message{
			{Role: "system", Content: "quarterly totals"},
			{Role: "user", Content: "sum the quarterly totals", Timestamp: time.Now()},
			{Role: "assistant", Content: "The total is 1200.", Citations: []string{"Sheet2!B2:B9"}, Timestamp: time.Now()},
		},
	}
	if err := ss.Save(session); err != nil {
		t.Fatalf("Save: %v", err)
	}

	index := NewSearchIndex(ss)

	matches, err := index.SearchAllSessions("quarterly")
	if err != nil {
		t.Fatalf("SearchAllSessions: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Role != "user" {
		t.Errorf("system messages should be excluded, got role %q", matches[0].Role)
	}

	matches, err = index.SearchAllSessions("Sheet2!B")
	if err != nil {
		t.Fatalf("SearchAllSessions: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected citation match, got %d matches", len(matches))
	}
	if matches[0].Role != "assistant" {
		t.Errorf("expected the cited assistant message, got role %q", matches[0].Role)
	}
}

func TestSearchRanksByScore(t *testing.T) {
	ss, err := NewSessionStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewSessionStorage: %v", err)
	}

	session := &Session{
		Name: "s",
		Messages: []Message{
			{Role: "assistant", Content: "revenue once", Timestamp: time.Now()},
			{Role: "assistant", Content: "revenue and more revenue", Timestamp: time.Now()},
		},
	}
	if err := ss.Save(session); err != nil {
		t.Fatalf("Save: %v", err)
	}

	matches, err := NewSearchIndex(ss).SearchAllSessions("revenue")
	if err != nil {
		t.Fatalf("SearchAllSessions: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Score <= matches[1].Score {
		t.Errorf("expected best match first, scores %d then %d", matches[0].Score, matches[1].Score)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	ss, err := NewSessionStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewSessionStorage: %v", err)
	}

	matches, err := NewSearchIndex(ss).SearchAllSessions("   ")
	if err != nil {
		t.Fatalf("SearchAllSessions: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches for blank query, got %d", len(matches))
	}
}

func TestPreviewAroundCentersOnHit(t *testing.T) {
	long := strings.Repeat("a", 80) + " needle " + strings.Repeat("b", 80)
	preview := previewAround(long, "needle")
	if !strings.Contains(preview, "needle") {
		t.Errorf("preview should include the hit, got %q", preview)
	}
	if len(preview) > 110 {
		t.Errorf("preview too long: %d chars", len(preview))
	}
}
