package optimizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

const (
	backupPrefix     = "context_backup_"
	backupStampFmt   = "20060102_150405"
	backupExt        = ".db"
	maxBackupAttempt = 1000
)

// Backup copies the store byte-for-byte into a new timestamp-named file in
// the backup directory and returns its path. Existing snapshots are never
// overwritten.
func (o *Optimizer) Backup(ctx context.Context) (string, error) {
	return o.backupAt(ctx, o.now())
}

func (o *Optimizer) backupAt(ctx context.Context, at time.Time) (path string, err error) {
	_, span := startSpan(ctx, "Backup", attribute.String("backup_dir", o.cfg.BackupDir))
	defer func() {
		span.SetAttributes(attribute.String("backup_path", path))
		endSpan(span, err)
	}()

	src, err := os.Open(o.cfg.StorePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrStoreNotFound
		}
		return "", fmt.Errorf("optimizer: open store for backup: %w", err)
	}
	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		return "", fmt.Errorf("optimizer: stat store: %w", err)
	}

	if err := os.MkdirAll(o.cfg.BackupDir, 0o700); err != nil {
		return "", fmt.Errorf("optimizer: create backup dir %s: %w", o.cfg.BackupDir, err)
	}

	dst, path, err := createSnapshotFile(o.cfg.BackupDir, at)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("optimizer: copy store to %s: %w", path, err)
	}
	if err := dst.Sync(); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("optimizer: sync backup %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("optimizer: close backup %s: %w", path, err)
	}

	if err := os.Chtimes(path, info.ModTime(), info.ModTime()); err != nil {
		o.logger.Warn("optimizer: preserve backup mtime failed", "path", path, "error", err)
	}

	o.logger.Info("context store backed up", "path", path, "bytes", info.Size())
	return path, nil
}

// createSnapshotFile exclusively creates the first free snapshot name for
// at: context_backup_<stamp>.db, then context_backup_<stamp>_2.db, and so on.
func createSnapshotFile(dir string, at time.Time) (*os.File, string, error) {
	stamp := at.Format(backupStampFmt)
	for i := 1; i <= maxBackupAttempt; i++ {
		name := backupPrefix + stamp
		if i > 1 {
			name += "_" + strconv.Itoa(i)
		}
		path := filepath.Join(dir, name+backupExt)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("optimizer: create backup %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("optimizer: no free backup name for %s in %s", stamp, dir)
}
