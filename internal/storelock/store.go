package storelock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/conductor-core/conductor-core/internal/execerrors"
)

// Validator is implemented by any wire type this module persists
// (ExecutionPlan, WatchdogEntry collections, ...). Validate is the
// schema-validation step spec §4.1 calls "validate_json(bytes, schema)":
// here the schema is the Go type itself plus its Validate method, rather
// than a JSON-Schema document — see DESIGN.md for why.
type Validator interface {
	Validate() error
}

// Store is the Durable Store: a directory of lock-guarded files, all
// reads and writes going through atomic temp-file-then-rename and,
// before a write is accepted, structural + semantic validation of its
// payload.
type Store struct {
	Dir         string
	LockTimeout time.Duration
}

// New returns a Store rooted at dir.
func New(dir string, lockTimeout time.Duration) *Store {
	return &Store{Dir: dir, LockTimeout: lockTimeout}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.Dir, name)
}

func (s *Store) lockPath(name string) string {
	return filepath.Join(s.Dir, name+".lock")
}

// WithLock acquires the named file's exclusive lock for up to the
// Store's configured timeout and runs fn while holding it.
func (s *Store) WithLock(ctx context.Context, name string, fn func() error) error {
	lock := NewFileLock(s.lockPath(name))
	if err := lock.LockTimeout(ctx, s.LockTimeout); err != nil {
		return err
	}
	defer lock.Unlock()
	return fn()
}

// ReadJSON reads and unmarshals name into v, validating v if it
// implements Validator. On a JSON parse failure or validation failure it
// attempts corruption recovery per spec §4.1 before giving up.
func (s *Store) ReadJSON(name string, v Validator) error {
	full := s.path(name)
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return execerrors.NotFound(full)
		}
		return execerrors.IOError(full, "failed to read file", err)
	}

	if err := s.decodeAndValidate(data, v); err != nil {
		if _, recErr := s.recoverFromCorruption(full, v); recErr != nil {
			return recErr
		}
		return nil
	}
	return nil
}

func (s *Store) decodeAndValidate(data []byte, v Validator) error {
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// recoverFromCorruption implements spec §4.1's corruption policy: rename
// the bad file to <name>.corrupted.<timestamp>, attempt to restore from
// <name>.backup, and if that also fails (or is absent/invalid) surface a
// fatal CorruptedState error.
func (s *Store) recoverFromCorruption(full string, v Validator) (bool, error) {
	quarantine := fmt.Sprintf("%s.corrupted.%d", full, time.Now().Unix())
	if err := os.Rename(full, quarantine); err != nil && !os.IsNotExist(err) {
		return false, execerrors.IOError(full, "failed to quarantine corrupted file", err)
	}

	backupPath := full + ".backup"
	backupData, err := os.ReadFile(backupPath)
	if err != nil {
		return false, execerrors.CorruptedState(full, fmt.Sprintf("no usable backup at %s; restore %s manually", backupPath, quarantine))
	}

	if err := s.decodeAndValidate(backupData, v); err != nil {
		return false, execerrors.CorruptedState(full, fmt.Sprintf("backup %s is also invalid; inspect %s", backupPath, quarantine))
	}

	if err := AtomicWrite(full, backupData); err != nil {
		return false, err
	}
	return true, nil
}

// WriteJSON validates v, snapshots the current file to <name>.backup (if
// one exists), and atomically writes the new content. Validation runs
// before the backup snapshot so a bad write never evicts a good backup.
func (s *Store) WriteJSON(name string, v Validator) error {
	if err := v.Validate(); err != nil {
		return execerrors.SchemaInvalid(s.path(name), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return execerrors.IOError(s.path(name), "failed to marshal json", err)
	}

	full := s.path(name)
	if existing, err := os.ReadFile(full); err == nil {
		_ = AtomicWrite(full+".backup", existing)
	}
	return AtomicWrite(full, data)
}

// AppendWithRotation appends line (plus a trailing newline) to name,
// rotating the file when it would exceed maxBytes: the current file is
// renamed to <stem>_archive_<unix-nanoseconds><ext> (see archiveName), a
// fresh file is started with a rotation header, and only the 5 most
// recent archives are retained
// (spec §4.1 activity_stream.md rotation policy).
func (s *Store) AppendWithRotation(name, line string, maxBytes int64) error {
	full := s.path(name)

	info, err := os.Stat(full)
	var currentSize int64
	if err == nil {
		currentSize = info.Size()
	} else if !os.IsNotExist(err) {
		return execerrors.IOError(full, "failed to stat activity log", err)
	}

	entry := line
	if !strings.HasSuffix(entry, "\n") {
		entry += "\n"
	}

	if currentSize > 0 && currentSize+int64(len(entry)) > maxBytes {
		if err := s.rotate(full); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(full, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return execerrors.IOError(full, "failed to open activity log for append", err)
	}
	defer f.Close()

	if _, err := f.WriteString(entry); err != nil {
		return execerrors.IOError(full, "failed to append to activity log", err)
	}
	return f.Sync()
}

const maxRetainedArchives = 5

// archiveName builds activity_stream_archive_<timestamp>.md from
// activity_stream.md, preserving whatever base name and extension the
// caller uses so the scheme isn't hardcoded to one file.
func archiveName(full string, ts int64) string {
	ext := filepath.Ext(full)
	stem := strings.TrimSuffix(full, ext)
	return fmt.Sprintf("%s_archive_%d%s", stem, ts, ext)
}

func (s *Store) rotate(full string) error {
	now := time.Now()
	archivePath := archiveName(full, now.UnixNano())
	if err := os.Rename(full, archivePath); err != nil {
		return execerrors.IOError(full, "failed to archive activity log", err)
	}

	header := fmt.Sprintf("# activity log rotated at %s (previous: %s)\n", now.UTC().Format(time.RFC3339), filepath.Base(archivePath))
	if err := AtomicWrite(full, []byte(header)); err != nil {
		return err
	}

	return s.pruneArchives(full)
}

func (s *Store) pruneArchives(full string) error {
	dir := filepath.Dir(full)
	ext := filepath.Ext(full)
	stem := filepath.Base(strings.TrimSuffix(full, ext))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return execerrors.IOError(dir, "failed to list directory for archive pruning", err)
	}

	var archives []string
	prefix := stem + "_archive_"
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ext) {
			archives = append(archives, e.Name())
		}
	}

	sort.Strings(archives)
	if len(archives) <= maxRetainedArchives {
		return nil
	}
	toRemove := archives[:len(archives)-maxRetainedArchives]
	for _, name := range toRemove {
		_ = os.Remove(filepath.Join(dir, name))
	}
	return nil
}
