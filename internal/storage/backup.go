package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Backup errors.
var (
	ErrBackupExists  = errors.New("backup destination already exists")
	ErrInvalidTarget = errors.New("invalid backup destination")
)

// BackupInfo describes a recorded backup.
type BackupInfo struct {
	CreatedAt time.Time
	Path      string
	ID        int64
	FileSize  int64
}

// Backup copies the database to destPath with VACUUM INTO and records it.
// destPath must be absolute and must not exist yet.
func (s *SQLiteStorage) Backup(ctx context.Context, destPath string) (*BackupInfo, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateBackupPath(destPath); err != nil {
		return nil, err
	}
	if _, err := os.Stat(destPath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrBackupExists, destPath)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	// #nosec G201 - destPath is validated above
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", destPath)); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}

	stat, err := os.Stat(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO backups (path) VALUES (?)`, destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to record backup: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to record backup: %w", err)
	}

	return &BackupInfo{
		ID:        id,
		Path:      destPath,
		FileSize:  stat.Size(),
		CreatedAt: stat.ModTime(),
	}, nil
}

// Backups lists recorded backups, newest first.
func (s *SQLiteStorage) Backups(ctx context.Context) ([]BackupInfo, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, path, created_at FROM backups ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query backups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []BackupInfo
	for rows.Next() {
		var b BackupInfo
		if err := rows.Scan(&b.ID, &b.Path, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan backup: %w", err)
		}
		if stat, err := os.Stat(b.Path); err == nil {
			b.FileSize = stat.Size()
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func validateBackupPath(path string) error {
	if err := validateString(path, "destPath"); err != nil {
		return err
	}
	if strings.ContainsAny(path, `'";`) {
		return fmt.Errorf("%w: contains forbidden characters", ErrInvalidTarget)
	}
	if !filepath.IsAbs(path) || filepath.Clean(path) != path {
		return fmt.Errorf("%w: must be a clean absolute path", ErrInvalidTarget)
	}
	return nil
}
