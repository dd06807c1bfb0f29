package blocklist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const entryColumns = "id, content_hash, event_id, title, source_name, protocol, reason, message, blocked_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry      Entry
		eventID    sql.NullInt64
		sourceName sql.NullString
		protocol   sql.NullString
		reason     string
		message    sql.NullString
		blockedRaw string
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.ContentHash,
		&eventID,
		&entry.Title,
		&sourceName,
		&protocol,
		&reason,
		&message,
		&blockedRaw,
	); err != nil {
		return Entry{}, err
	}
	entry.EventID = eventID.Int64
	entry.SourceName = sourceName.String
	entry.Protocol = protocol.String
	entry.Reason = Reason(reason)
	entry.Message = message.String
	if blocked, err := parseTimeString(blockedRaw); err == nil {
		entry.BlockedAt = blocked
	}
	return entry, nil
}

// PutEntry inserts entry, replacing any existing entry for the same content
// hash, and returns the stored row.
func (s *Store) PutEntry(ctx context.Context, entry Entry) (Entry, error) {
	if entry.ContentHash == "" {
		return Entry{}, errors.New("blocklist entry requires a content hash")
	}
	if entry.BlockedAt.IsZero() {
		entry.BlockedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx,
		`INSERT INTO blocklist (content_hash, event_id, title, source_name, protocol, reason, message, blocked_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(content_hash) DO UPDATE SET
             event_id = COALESCE(excluded.event_id, blocklist.event_id),
             title = excluded.title,
             source_name = COALESCE(excluded.source_name, blocklist.source_name),
             protocol = COALESCE(excluded.protocol, blocklist.protocol),
             reason = excluded.reason,
             message = excluded.message,
             blocked_at = excluded.blocked_at`,
		entry.ContentHash,
		nullableInt64(entry.EventID),
		entry.Title,
		nullableString(entry.SourceName),
		nullableString(entry.Protocol),
		string(entry.Reason),
		nullableString(entry.Message),
		formatTime(entry.BlockedAt),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert blocklist entry: %w", err)
	}
	stored, err := s.Entry(ctx, entry.ContentHash)
	if err != nil {
		return Entry{}, err
	}
	if stored == nil {
		return Entry{}, fmt.Errorf("blocklist entry %s vanished after insert", entry.ContentHash)
	}
	return *stored, nil
}

// Entry returns the entry for a content hash, or nil when none exists.
func (s *Store) Entry(ctx context.Context, contentHash string) (*Entry, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+entryColumns+` FROM blocklist WHERE content_hash = ?`, contentHash)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get blocklist entry: %w", err)
	}
	return &entry, nil
}

// Entries lists entries, newest first. eventID > 0 restricts to one event.
func (s *Store) Entries(ctx context.Context, eventID int64) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM blocklist`
	var args []any
	if eventID > 0 {
		query += ` WHERE event_id = ?`
		args = append(args, eventID)
	}
	query += ` ORDER BY blocked_at DESC, id DESC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list blocklist: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blocklist entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteEntry removes the entry for a content hash and reports whether one existed.
func (s *Store) DeleteEntry(ctx context.Context, contentHash string) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM blocklist WHERE content_hash = ?`, contentHash)
	if err != nil {
		return false, fmt.Errorf("delete blocklist entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
