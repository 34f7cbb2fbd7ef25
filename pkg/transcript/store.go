// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package transcript stores conversation turns in SQLite.
package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Turn is a stored conversation turn.
type Turn struct {
	Seq       int
	Role      string
	Text      string
	CreatedAt time.Time
}

// SessionSummary describes one recorded session.
type SessionSummary struct {
	ID          string
	Turns       int
	Started     time.Time
	Updated     time.Time
	FirstPrompt string
}

// Store is a SQLite-backed transcript store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open transcript database: %w", err)
	}
	// One writer at a time avoids SQLITE_BUSY from the pool.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping transcript database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize transcript schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS turns (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Record stores a turn. Recording the same (session, seq) again replaces it.
func (s *Store) Record(ctx context.Context, sessionID string, seq int, role, text string) error {
	query := `
	INSERT INTO turns (session_id, seq, role, text, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(session_id, seq) DO UPDATE SET
		role = excluded.role,
		text = excluded.text,
		created_at = excluded.created_at`

	if _, err := s.db.ExecContext(ctx, query, sessionID, seq, role, text, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	return nil
}

// Sessions lists recorded sessions, most recently updated first.
func (s *Store) Sessions(ctx context.Context) ([]SessionSummary, error) {
	query := `
	SELECT t.session_id, COUNT(*), MIN(t.created_at), MAX(t.created_at),
		COALESCE((SELECT f.text FROM turns f
			WHERE f.session_id = t.session_id ORDER BY f.seq LIMIT 1), '')
	FROM turns t
	GROUP BY t.session_id
	ORDER BY MAX(t.created_at) DESC, t.session_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		var started, updated int64
		if err := rows.Scan(&sum.ID, &sum.Turns, &started, &updated, &sum.FirstPrompt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sum.Started = time.UnixMilli(started)
		sum.Updated = time.UnixMilli(updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Turns returns the turns of one session in order.
func (s *Store) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	query := `
	SELECT seq, role, text, created_at
	FROM turns WHERE session_id = ?
	ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		var created int64
		if err := rows.Scan(&t.Seq, &t.Role, &t.Text, &created); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		t.CreatedAt = time.UnixMilli(created)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
