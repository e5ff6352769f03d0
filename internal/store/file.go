package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	tmpSuffix    = ".tmp"
	backupSuffix = ".bak"
	lockFileName = ".ledger.lock"
)

// Options tunes a FileStore.
type Options struct {
	// AdvisoryLock makes Locked take an exclusive flock on a lock file in the
	// data directory, so several processes can share one data directory.
	AdvisoryLock bool
	// Retries is how many times a failed save is attempted again.
	Retries int
	// RetryDelay is the pause between save attempts.
	RetryDelay time.Duration
}

// fileOps is the file system surface used by FileStore.
type fileOps struct {
	readFile  func(name string) ([]byte, error)
	writeFile func(name string, data []byte) error
	rename    func(oldpath, newpath string) error
	remove    func(name string) error
	stat      func(name string) (fs.FileInfo, error)
}

func osFileOps() fileOps {
	return fileOps{
		readFile:  os.ReadFile,
		writeFile: writeFileSync,
		rename:    os.Rename,
		remove:    os.Remove,
		stat:      os.Stat,
	}
}

// FileStore keeps every collection in <dir>/<name>.
//
// Save follows a write-temp, backup, rename protocol:
//  1. write <name>.tmp and fsync it
//  2. move the current <name> to <name>.bak
//  3. move <name>.tmp to <name>
//  4. delete <name>.bak
//
// If step 3 fails the backup is moved back before the error is returned.
// Load repairs the leftovers of a crash between any two steps, so a reader
// always sees either the old or the new complete collection.
type FileStore struct {
	dir  string
	opts Options
	ops  fileOps
	log  *slog.Logger
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string, opts Options, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir %s: %v", ErrIOFailure, dir, err)
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &FileStore{
		dir:  dir,
		opts: opts,
		ops:  osFileOps(),
		log:  log.With("store", "file"),
	}, nil
}

// Path returns the file backing the named collection.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *FileStore) Load(name string, dst any) error {
	path := s.Path(name)
	if err := s.repair(path); err != nil {
		return err
	}

	data, err := s.ops.readFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.Save(name, []struct{}{}); err != nil {
			return err
		}
		s.log.Info("created empty collection", slog.String("path", path))
		data = emptyCollection
	} else if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrIOFailure, path, err)
	}

	return decodeRecords(data, dst, path)
}

func (s *FileStore) Save(name string, records any) error {
	data, err := encodeRecords(records)
	if err != nil {
		return err
	}

	path := s.Path(name)
	attempt := 0
	op := func() error {
		attempt++
		err := s.replace(path, data)
		if err != nil {
			s.log.Warn("save failed",
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}
		return err
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(s.opts.RetryDelay), uint64(s.opts.Retries))
	if err := backoff.Retry(op, policy); err != nil {
		s.log.Error("save gave up", slog.String("path", path), slog.Int("attempts", attempt))
		return err
	}
	return nil
}

func (s *FileStore) Locked(fn func() error) error {
	if !s.opts.AdvisoryLock {
		return fn()
	}

	lockPath := filepath.Join(s.dir, lockFileName)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open lock %s: %v", ErrIOFailure, lockPath, err)
	}
	defer f.Close()

	if err := lockFile(f); err != nil {
		return fmt.Errorf("%w: lock %s: %v", ErrIOFailure, lockPath, err)
	}
	defer func() {
		if err := unlockFile(f); err != nil {
			s.log.Warn("unlock failed", slog.String("path", lockPath), slog.String("error", err.Error()))
		}
	}()

	return fn()
}

func (s *FileStore) replace(path string, data []byte) error {
	tmp, bak := path+tmpSuffix, path+backupSuffix

	if err := s.ops.writeFile(tmp, data); err != nil {
		_ = s.ops.remove(tmp)
		return fmt.Errorf("%w: write %s: %v", ErrIOFailure, tmp, err)
	}

	hadOld := false
	if _, err := s.ops.stat(path); err == nil {
		if err := s.ops.rename(path, bak); err != nil {
			_ = s.ops.remove(tmp)
			return fmt.Errorf("%w: back up %s: %v", ErrIOFailure, path, err)
		}
		hadOld = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		_ = s.ops.remove(tmp)
		return fmt.Errorf("%w: stat %s: %v", ErrIOFailure, path, err)
	}

	if err := s.ops.rename(tmp, path); err != nil {
		if hadOld {
			if rerr := s.ops.rename(bak, path); rerr != nil {
				return fmt.Errorf("%w: replace %s: %v (restore from backup also failed: %v)", ErrIOFailure, path, err, rerr)
			}
		}
		_ = s.ops.remove(tmp)
		return fmt.Errorf("%w: replace %s: %v", ErrIOFailure, path, err)
	}

	if hadOld {
		if err := s.ops.remove(bak); err != nil {
			// The new file is in place; a stale backup is removed by the next Load.
			s.log.Warn("remove backup failed", slog.String("path", bak), slog.String("error", err.Error()))
		}
	}
	return nil
}

// repair brings path back to a complete state after a crash mid-save.
func (s *FileStore) repair(path string) error {
	tmp, bak := path+tmpSuffix, path+backupSuffix

	_, pathErr := s.ops.stat(path)
	_, bakErr := s.ops.stat(bak)

	switch {
	case errors.Is(pathErr, fs.ErrNotExist) && bakErr == nil:
		if err := s.ops.rename(bak, path); err != nil {
			return fmt.Errorf("%w: restore %s from backup: %v", ErrIOFailure, path, err)
		}
		s.log.Warn("restored collection from backup", slog.String("path", path))
	case pathErr == nil && bakErr == nil:
		if err := s.ops.remove(bak); err != nil {
			return fmt.Errorf("%w: remove stale backup %s: %v", ErrIOFailure, bak, err)
		}
	}

	if _, err := s.ops.stat(tmp); err == nil {
		_ = s.ops.remove(tmp)
		s.log.Warn("discarded incomplete save", slog.String("path", tmp))
	}
	return nil
}

func writeFileSync(name string, data []byte) error {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
