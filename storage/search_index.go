package storage

import (
	"sort"
	"strings"
	"time"
)

// SessionMessageMatch is one message that matched a search query, with
// enough context to show the hit without reloading the session.
type SessionMessageMatch struct {
	SessionID    string
	SessionName  string
	MessageIndex int
	Role         string
	Content      string
	Citations    []string
	Preview      string
	Timestamp    time.Time
	Score        int
}

// SearchIndex scans saved sessions for messages matching a query. The
// corpus is small enough that a linear scan over session files beats
// maintaining a separate index.
type SearchIndex struct {
	storage *SessionStorage
}

func NewSearchIndex(storage *SessionStorage) *SearchIndex {
	return &SearchIndex{storage: storage}
}

// SearchAllSessions returns matches across every stored session, best
// first. A query matches a message when it appears in the content or in
// one of the message's cited ranges, so "Sheet2!B" finds the turns that
// touched that area even if the answer text never names it.
func (si *SearchIndex) SearchAllSessions(query string) ([]SessionMessageMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []SessionMessageMatch{}, nil
	}

	sessionList, err := si.storage.List()
	if err != nil {
		return nil, err
	}

	queryLower := strings.ToLower(query)
	var matches []SessionMessageMatch

	for _, sessionMeta := range sessionList {
		session, err := si.storage.Load(sessionMeta.ID)
		if err != nil {
			continue
		}

		for i, msg := range session.Messages {
			if msg.Role == "system" {
				continue
			}

			score := scoreMessage(msg, queryLower)
			if score == 0 {
				continue
			}

			matches = append(matches, SessionMessageMatch{
				SessionID:    session.ID,
				SessionName:  session.Name,
				MessageIndex: i,
				Role:         msg.Role,
				Content:      msg.Content,
				Citations:    msg.Citations,
				Preview:      previewAround(msg.Content, queryLower),
				Timestamp:    msg.Timestamp,
				Score:        score,
			})
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		if matches[a].Score != matches[b].Score {
			return matches[a].Score > matches[b].Score
		}
		return matches[a].Timestamp.After(matches[b].Timestamp)
	})

	return matches, nil
}

func scoreMessage(msg Message, queryLower string) int {
	score := strings.Count(strings.ToLower(msg.Content), queryLower)
	for _, cite := range msg.Citations {
		if strings.Contains(strings.ToLower(cite), queryLower) {
			score += 3
		}
	}
	if score > 0 && msg.Role == "user" {
		score++
	}
	return score
}

// previewAround returns a short window of content centered on the first
// occurrence of the query, so the hit is visible even in long messages.
func previewAround(content, queryLower string) string {
	const window = 100

	idx := strings.Index(strings.ToLower(content), queryLower)
	if idx < 0 {
		if len(content) > window {
			return content[:window] + "..."
		}
		return content
	}

	start := idx - window/2
	if start < 0 {
		start = 0
	}
	end := start + window
	if end > len(content) {
		end = len(content)
	}

	preview := content[start:end]
	if start > 0 {
		preview = "..." + preview
	}
	if end < len(content) {
		preview = preview + "..."
	}
	return preview
}
