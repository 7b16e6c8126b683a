package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/notevault/internal/models"
)

const (
	defaultHistory = 20
	maxHistory     = 500
)

// Record appends an activity entry. ID and CreatedAt are filled in when zero.
func (db *DB) Record(ctx context.Context, a models.Activity) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO activity (id, vault, note, op, checksum, source, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Vault, a.Note, a.Op, a.Checksum, a.Source, a.Detail, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// History returns up to limit entries for one note, newest first. A
// non-positive limit selects the default of 20.
func (db *DB) History(ctx context.Context, vault, note string, limit int) ([]models.Activity, error) {
	switch {
	case limit <= 0:
		limit = defaultHistory
	case limit > maxHistory:
		limit = maxHistory
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, vault, note, op, checksum, source, detail, created_at
		FROM activity
		WHERE vault = ? AND note = ?
		ORDER BY seq DESC
		LIMIT ?
	`, vault, note, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: history: %w", err)
	}
	defer rows.Close()

	out := []models.Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Latest returns the newest entry for a note, or nil when there is none.
func (db *DB) Latest(ctx context.Context, vault, note string) (*models.Activity, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, vault, note, op, checksum, source, detail, created_at
		FROM activity
		WHERE vault = ? AND note = ?
		ORDER BY seq DESC
		LIMIT 1
	`, vault, note)
	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Snapshot maps every note of vault whose newest entry is not a deletion to
// the checksum recorded in that entry.
func (db *DB) Snapshot(ctx context.Context, vault string) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT a.note, a.op, a.checksum
		FROM activity a
		WHERE a.vault = ?
		  AND a.seq = (SELECT MAX(b.seq) FROM activity b WHERE b.vault = a.vault AND b.note = a.note)
	`, vault)
	if err != nil {
		return nil, fmt.Errorf("journal: snapshot: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var note, op, cs string
		if err := rows.Scan(&note, &op, &cs); err != nil {
			return nil, err
		}
		if op != models.OpDelete {
			out[note] = cs
		}
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(s scanner) (models.Activity, error) {
	var a models.Activity
	err := s.Scan(&a.ID, &a.Vault, &a.Note, &a.Op, &a.Checksum, &a.Source, &a.Detail, &a.CreatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("journal: scan: %w", err)
	}
	return a, err
}
