package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ToolCallRecord is one tool invocation within a turn.
type ToolCallRecord struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON
	Risk      string `json:"risk"`
	Approved  bool   `json:"approved"`
	Error     string `json:"error,omitempty"`
}

// TurnRecord captures one completed agent turn for the audit trail.
type TurnRecord struct {
	ID           string
	SessionID    string
	Timestamp    time.Time
	Prompt       string
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	ToolCalls    []ToolCallRecord
	EditedRanges []string
	Summary      string
}

// CompactionRecord captures one history compaction event.
type CompactionRecord struct {
	SessionID     string
	Timestamp     time.Time
	DroppedCount  int
	MemorySummary string
}

// TurnLog is the SQLite-backed audit trail of turns and compactions.
type TurnLog struct {
	db *sql.DB
}

// NewTurnLog opens (or creates) the turn log database in the data directory.
func NewTurnLog(dataDir string) (*TurnLog, error) {
	dbPath := filepath.Join(dataDir, "turns.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log := &TurnLog{db: db}

	if err := log.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return log, nil
}

func (tl *TurnLog) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		prompt TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		input_tokens INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		tool_calls TEXT,
		edited_ranges TEXT,
		summary TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);
	CREATE INDEX IF NOT EXISTS idx_turns_timestamp ON turns(timestamp);

	CREATE TABLE IF NOT EXISTS compactions (
		session_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		dropped_count INTEGER NOT NULL,
		memory_summary TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_compactions_session ON compactions(session_id);
	`

	_, err := tl.db.Exec(schema)
	return err
}

// AppendTurn records a completed turn.
func (tl *TurnLog) AppendTurn(rec TurnRecord) error {
	toolCalls, err := json.Marshal(rec.ToolCalls)
	if err != nil {
		return fmt.Errorf("failed to serialize tool calls: %w", err)
	}
	editedRanges, err := json.Marshal(rec.EditedRanges)
	if err != nil {
		return fmt.Errorf("failed to serialize edited ranges: %w", err)
	}

	query := `
	INSERT OR REPLACE INTO turns (id, session_id, timestamp, prompt, provider, model, input_tokens, output_tokens, tool_calls, edited_ranges, summary)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tl.db.Exec(query,
		rec.ID,
		rec.SessionID,
		rec.Timestamp,
		rec.Prompt,
		rec.Provider,
		rec.Model,
		rec.InputTokens,
		rec.OutputTokens,
		string(toolCalls),
		string(editedRanges),
		rec.Summary,
	)

	return err
}

// AppendCompaction records a history compaction event.
func (tl *TurnLog) AppendCompaction(rec CompactionRecord) error {
	query := `
	INSERT INTO compactions (session_id, timestamp, dropped_count, memory_summary)
	VALUES (?, ?, ?, ?)
	`

	_, err := tl.db.Exec(query,
		rec.SessionID,
		rec.Timestamp,
		rec.DroppedCount,
		rec.MemorySummary,
	)

	return err
}

// ListTurns returns the turns for a session, newest first. A limit of 0
// returns all turns.
func (tl *TurnLog) ListTurns(sessionID string, limit int) ([]TurnRecord, error) {
	query := `
	SELECT id, session_id, timestamp, prompt, provider, model, input_tokens, output_tokens, tool_calls, edited_ranges, summary
	FROM turns
	WHERE session_id = ?
	ORDER BY timestamp DESC
	`
	args := []interface{}{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := tl.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []TurnRecord
	for rows.Next() {
		var rec TurnRecord
		var toolCalls, editedRanges sql.NullString
		err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.Timestamp,
			&rec.Prompt,
			&rec.Provider,
			&rec.Model,
			&rec.InputTokens,
			&rec.OutputTokens,
			&toolCalls,
			&editedRanges,
			&rec.Summary,
		)
		if err != nil {
			continue
		}

		if toolCalls.Valid && toolCalls.String != "" {
			_ = json.Unmarshal([]byte(toolCalls.String), &rec.ToolCalls)
		}
		if editedRanges.Valid && editedRanges.String != "" {
			_ = json.Unmarshal([]byte(editedRanges.String), &rec.EditedRanges)
		}

		turns = append(turns, rec)
	}

	return turns, rows.Err()
}

// ListCompactions returns the compaction events for a session, newest first.
func (tl *TurnLog) ListCompactions(sessionID string) ([]CompactionRecord, error) {
	query := `
	SELECT session_id, timestamp, dropped_count, memory_summary
	FROM compactions
	WHERE session_id = ?
	ORDER BY timestamp DESC
	`

	rows, err := tl.db.Query(query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []CompactionRecord
	for rows.Next() {
		var rec CompactionRecord
		if err := rows.Scan(&rec.SessionID, &rec.Timestamp, &rec.DroppedCount, &rec.MemorySummary); err != nil {
			continue
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

func (tl *TurnLog) Close() error {
	if tl.db != nil {
		return tl.db.Close()
	}
	return nil
}
