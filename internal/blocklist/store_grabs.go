package blocklist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const grabColumns = "download_id, event_id, part, title, content_hash, source_name, protocol, download_url, size_bytes, status, import_attempts, last_error, grabbed_at, updated_at"

func scanGrab(scanner interface{ Scan(dest ...any) error }) (Grab, error) {
	var (
		grab        Grab
		part        sql.NullString
		sourceName  sql.NullString
		protocol    sql.NullString
		downloadURL sql.NullString
		status      string
		lastError   sql.NullString
		grabbedRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(
		&grab.DownloadID,
		&grab.EventID,
		&part,
		&grab.Title,
		&grab.ContentHash,
		&sourceName,
		&protocol,
		&downloadURL,
		&grab.SizeBytes,
		&status,
		&grab.ImportAttempts,
		&lastError,
		&grabbedRaw,
		&updatedRaw,
	); err != nil {
		return Grab{}, err
	}
	grab.Part = part.String
	grab.SourceName = sourceName.String
	grab.Protocol = protocol.String
	grab.DownloadURL = downloadURL.String
	grab.Status = GrabStatus(status)
	grab.LastError = lastError.String
	if grabbed, err := parseTimeString(grabbedRaw); err == nil {
		grab.GrabbedAt = grabbed
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		grab.UpdatedAt = updated
	}
	return grab, nil
}

// InsertGrab records a new grab.
func (s *Store) InsertGrab(ctx context.Context, grab Grab) error {
	if grab.DownloadID == "" {
		return errors.New("grab requires a download id")
	}
	now := time.Now().UTC()
	if grab.GrabbedAt.IsZero() {
		grab.GrabbedAt = now
	}
	if grab.Status == "" {
		grab.Status = GrabStatusGrabbed
	}
	_, err := s.exec(ctx,
		`INSERT INTO grabs (`+grabColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		grab.DownloadID,
		grab.EventID,
		nullableString(grab.Part),
		grab.Title,
		grab.ContentHash,
		nullableString(grab.SourceName),
		nullableString(grab.Protocol),
		nullableString(grab.DownloadURL),
		grab.SizeBytes,
		string(grab.Status),
		grab.ImportAttempts,
		nullableString(grab.LastError),
		formatTime(grab.GrabbedAt),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert grab: %w", err)
	}
	return nil
}

// Grab fetches a grab by download id, or nil when unknown.
func (s *Store) Grab(ctx context.Context, downloadID string) (*Grab, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+grabColumns+` FROM grabs WHERE download_id = ?`, downloadID)
	grab, err := scanGrab(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get grab: %w", err)
	}
	return &grab, nil
}

// UpdateGrabStatus persists the mutable fields of a grab.
func (s *Store) UpdateGrabStatus(ctx context.Context, grab *Grab) error {
	if grab == nil {
		return errors.New("grab is nil")
	}
	grab.UpdatedAt = time.Now().UTC()
	_, err := s.exec(ctx,
		`UPDATE grabs SET status = ?, import_attempts = ?, last_error = ?, updated_at = ? WHERE download_id = ?`,
		string(grab.Status),
		grab.ImportAttempts,
		nullableString(grab.LastError),
		formatTime(grab.UpdatedAt),
		grab.DownloadID,
	)
	if err != nil {
		return fmt.Errorf("update grab: %w", err)
	}
	return nil
}

// Grabs lists recent grabs, newest first. limit <= 0 returns all.
func (s *Store) Grabs(ctx context.Context, limit int) ([]Grab, error) {
	query := `SELECT ` + grabColumns + ` FROM grabs ORDER BY grabbed_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list grabs: %w", err)
	}
	defer rows.Close()

	var grabs []Grab
	for rows.Next() {
		grab, err := scanGrab(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grab: %w", err)
		}
		grabs = append(grabs, grab)
	}
	return grabs, rows.Err()
}
