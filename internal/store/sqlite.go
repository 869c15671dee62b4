package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cse-market-assistant/internal/conversation"

	_ "modernc.org/sqlite"
)

// DefaultSlot is the named storage slot holding the chat message list.
const DefaultSlot = "cse_chat_messages"

type Store struct {
	db *sql.DB
}

// QuoteSnapshot records one live quote fetched from the backend.
type QuoteSnapshot struct {
	TS        int64   `json:"ts"`
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
	Raw       string  `json:"raw"`
	CreatedAt string  `json:"created_at"`
}

func Open(path string) (*Store, error) {
	if path == "" {
		path = "data/app.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=3000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversation (
			slot TEXT PRIMARY KEY,
			content_json TEXT,
			updated_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS quote_snapshot (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			symbol TEXT,
			name TEXT,
			price REAL,
			change_pct REAL,
			raw TEXT,
			created_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_quote_snapshot_ts ON quote_snapshot(ts);`,
		`CREATE INDEX IF NOT EXISTS idx_quote_snapshot_symbol ON quote_snapshot(symbol);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SaveConversation writes the whole message list into the slot. An empty list
// is not written; clearing goes through ClearConversation.
func (s *Store) SaveConversation(slot string, messages []conversation.Message) error {
	if s == nil || s.db == nil {
		return nil
	}
	if len(messages) == 0 {
		return nil
	}
	content, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO conversation (slot, content_json, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET content_json=excluded.content_json, updated_at=excluded.updated_at`,
		slot, string(content), time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// LoadConversation returns the persisted message list, or nil when the slot
// is empty.
func (s *Store) LoadConversation(slot string) ([]conversation.Message, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	row := s.db.QueryRow(`SELECT content_json FROM conversation WHERE slot = ?`, slot)
	var content string
	if err := row.Scan(&content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	var messages []conversation.Message
	if err := json.Unmarshal([]byte(content), &messages); err != nil {
		return nil, fmt.Errorf("parse conversation: %w", err)
	}
	return messages, nil
}

// ClearConversation deletes the slot entirely.
func (s *Store) ClearConversation(slot string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if _, err := s.db.Exec(`DELETE FROM conversation WHERE slot = ?`, slot); err != nil {
		return fmt.Errorf("clear conversation: %w", err)
	}
	return nil
}

func (s *Store) InsertQuoteSnapshot(qs QuoteSnapshot) error {
	if s == nil || s.db == nil {
		return nil
	}
	if qs.TS == 0 {
		qs.TS = time.Now().Unix()
	}
	if qs.CreatedAt == "" {
		qs.CreatedAt = time.Now().Format(time.RFC3339)
	}
	_, err := s.db.Exec(
		`INSERT INTO quote_snapshot (ts, symbol, name, price, change_pct, raw, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		qs.TS, qs.Symbol, qs.Name, qs.Price, qs.ChangePct, qs.Raw, qs.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert quote snapshot: %w", err)
	}
	return nil
}

func (s *Store) QueryQuoteSnapshots(symbol string, limit int, offset int) ([]QuoteSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.Query(
		`SELECT ts, symbol, name, price, change_pct, raw, created_at
		 FROM quote_snapshot WHERE symbol = ?
		 ORDER BY ts DESC LIMIT ? OFFSET ?`,
		symbol, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query quote snapshots: %w", err)
	}
	defer rows.Close()
	var out []QuoteSnapshot
	for rows.Next() {
		var qs QuoteSnapshot
		if err := rows.Scan(&qs.TS, &qs.Symbol, &qs.Name, &qs.Price, &qs.ChangePct, &qs.Raw, &qs.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan quote snapshot: %w", err)
		}
		out = append(out, qs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows quote snapshot: %w", err)
	}
	return out, nil
}
