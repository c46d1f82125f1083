// Package journal implements the append-only, rotated on-disk journal
// used for offline buffering (when no viewer is connected) and for the
// crash capture path. All routine writes run on a single serialized
// work queue; emergency_save runs inline on the caller's goroutine so
// it can execute from a crash handler that must not block on another
// goroutine's schedule.
package journal

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/porby-sdk/porby/pkg/model"
)

const (
	FilePrefix = "porbylog"
	fileExt    = ".json"

	DefaultMaxFileSize  = 5 * 1024 * 1024
	DefaultMaxFileCount = 10
	DefaultMaxRetention = 7 * 24 * time.Hour
	DefaultMaxReplay    = 5000
)

// ProtectionClass mirrors the platform data-at-rest protection levels
// named in spec §4.7. Neither level does anything on a platform with
// no such facility; applyProtectionClass is a best-effort hook a
// platform-specific build can wire up.
type ProtectionClass int

const (
	ProtectionComplete ProtectionClass = iota
	ProtectionCompleteUntilFirstUserAuthentication
)

// Config configures a Journal.
type Config struct {
	Directory        string
	MaxFileSize      int64
	MaxFileCount     int
	MaxRetention     time.Duration
	MaxReplayEntries int
	Protection       ProtectionClass

	// EncodeBatch/DecodeBatch let the journal stay agnostic of the wire
	// codec package; the transport layer supplies the real codec
	// functions (codec.EncodeBatchForJournal/DecodeBatchForJournal) at
	// construction time.
	EncodeBatch func([]model.LogEntry) ([]byte, error)
	DecodeBatch func([]byte) ([]model.LogEntry, error)
}

// Journal is a rotated, newline-delimited-frame on-disk log. The zero
// value is not usable; construct with New.
type Journal struct {
	cfg Config

	mu          sync.Mutex // guards currentFile/currentSize; held only on the work queue (and, during crash, on the crashing thread)
	currentFile *os.File
	currentPath string
	currentSize int64

	work chan func()
	done chan struct{}

	stopOnce sync.Once
}

// New constructs a Journal and starts its single serialized work
// queue. The directory is created if absent.
func New(cfg Config) (*Journal, error) {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.MaxFileCount <= 0 {
		cfg.MaxFileCount = DefaultMaxFileCount
	}
	if cfg.MaxRetention <= 0 {
		cfg.MaxRetention = DefaultMaxRetention
	}
	if cfg.MaxReplayEntries <= 0 {
		cfg.MaxReplayEntries = DefaultMaxReplay
	}
	if cfg.EncodeBatch == nil || cfg.DecodeBatch == nil {
		return nil, fmt.Errorf("journal: EncodeBatch and DecodeBatch are required")
	}

	if err := os.MkdirAll(cfg.Directory, 0o700); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}

	j := &Journal{
		cfg:  cfg,
		work: make(chan func(), 64),
		done: make(chan struct{}),
	}
	go j.runQueue()
	return j, nil
}

func (j *Journal) runQueue() {
	for fn := range j.work {
		fn()
	}
	close(j.done)
}

// Stop drains and closes the work queue, waiting for in-flight work to
// finish, and closes any open file handle. Idempotent.
func (j *Journal) Stop() {
	j.stopOnce.Do(func() {
		close(j.work)
		<-j.done

		j.mu.Lock()
		defer j.mu.Unlock()
		if j.currentFile != nil {
			j.currentFile.Close()
			j.currentFile = nil
		}
	})
}

// enqueue runs fn on the work queue and blocks until it completes,
// mirroring the teacher's single-writer-queue pattern while keeping
// the call synchronous for callers that need save()'s side effects
// (retention) to have happened before they return.
func (j *Journal) enqueue(fn func()) {
	result := make(chan struct{})
	j.work <- func() {
		fn()
		close(result)
	}
	<-result
}

// Save appends one encoded batch to the current file, creating a new
// file if the write would exceed MaxFileSize, then runs a retention
// sweep. Individual file failures are swallowed per spec §7 — save
// never poisons subsequent writes.
func (j *Journal) Save(batch []model.LogEntry) {
	j.enqueue(func() { j.saveLocked(batch) })
}

func (j *Journal) saveLocked(batch []model.LogEntry) {
	encoded, err := j.cfg.EncodeBatch(batch)
	if err != nil {
		slog.Error("journal: encode batch failed", slog.String("error", err.Error()))
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	frameSize := int64(len(encoded) + 1)
	if j.currentFile != nil && j.currentSize+frameSize > j.cfg.MaxFileSize {
		j.closeCurrentLocked()
	}

	if j.currentFile == nil {
		if err := j.openNewFileLocked(); err != nil {
			slog.Error("journal: open new file failed", slog.String("error", err.Error()))
			return
		}
	}

	if _, err := j.currentFile.Write(append(encoded, '\n')); err != nil {
		slog.Error("journal: write failed", slog.String("error", err.Error()))
		return
	}
	j.currentSize += frameSize

	j.runRetentionLocked()
}

// EmergencySave runs inline on the caller's goroutine rather than on
// the work queue, per spec §4.9/§5: the crash path must not wait on
// another goroutine's schedule. It uses the same low-level write path
// as Save but never touches the work queue's channel.
func (j *Journal) EmergencySave(batch []model.LogEntry) {
	encoded, err := j.cfg.EncodeBatch(batch)
	if err != nil {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	frameSize := int64(len(encoded) + 1)
	if j.currentFile != nil && j.currentSize+frameSize > j.cfg.MaxFileSize {
		j.closeCurrentLocked()
	}
	if j.currentFile == nil {
		if err := j.openNewFileLocked(); err != nil {
			return
		}
	}

	// Reentrant-safe low-level write: a single Write syscall, no
	// buffering layer, no allocation beyond the already-encoded slice.
	buf := append(encoded, '\n')
	j.currentFile.Write(buf)
	j.currentSize += frameSize
}

func (j *Journal) closeCurrentLocked() {
	if j.currentFile != nil {
		j.currentFile.Close()
	}
	j.currentFile = nil
	j.currentPath = ""
	j.currentSize = 0
}

func (j *Journal) openNewFileLocked() error {
	stamp := time.Now().UTC().Format("20060102_150405")
	path := filepath.Join(j.cfg.Directory, fmt.Sprintf("%s_%s%s", FilePrefix, stamp, fileExt))
	// A file opened within the same second as an existing one gets a
	// zero-padded counter suffix, so every rotation starts a new file.
	for n := 1; ; n++ {
		if _, err := os.Stat(path); err != nil {
			break
		}
		path = filepath.Join(j.cfg.Directory, fmt.Sprintf("%s_%s_%03d%s", FilePrefix, stamp, n, fileExt))
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	applyProtectionClass(path, j.cfg.Protection)

	j.currentFile = f
	j.currentPath = path
	j.currentSize = 0
	return nil
}

// applyProtectionClass is a best-effort hook for the platform's
// data-at-rest protection facility. Stdlib Go has no portable
// equivalent to iOS's NSFileProtection; on platforms without one this
// is a no-op, matching spec §4.7.
func applyProtectionClass(path string, class ProtectionClass) {
	_ = path
	_ = class
}

// LoadForReplay enumerates journal files, walks them newest-first and,
// within each file, lines newest-first, accumulating decoded entries
// until MaxReplayEntries is reached, then returns exactly that many
// (truncated, not rounded up to the last whole batch). The result is
// newest-first across batches; within one decoded batch, entries keep
// the oldest-first order drain() originally wrote them in.
func (j *Journal) LoadForReplay() []model.LogEntry {
	var result []model.LogEntry
	j.enqueue(func() { result = j.loadForReplayLocked() })
	return result
}

func (j *Journal) loadForReplayLocked() []model.LogEntry {
	files, err := j.listFilesChronological()
	if err != nil {
		slog.Error("journal: list files failed", slog.String("error", err.Error()))
		return nil
	}

	limit := j.cfg.MaxReplayEntries
	var result []model.LogEntry

	for i := len(files) - 1; i >= 0 && len(result) < limit; i-- {
		lines, err := readLines(files[i])
		if err != nil {
			slog.Error("journal: read file failed", slog.String("file", files[i]), slog.String("error", err.Error()))
			continue
		}

		for li := len(lines) - 1; li >= 0 && len(result) < limit; li-- {
			line := lines[li]
			if line == "" {
				continue
			}
			entries, err := j.cfg.DecodeBatch([]byte(line))
			if err != nil {
				// A decode failure skips this line only, per spec §4.7.
				slog.Warn("journal: skipping undecodable line", slog.String("error", err.Error()))
				continue
			}
			// Lines/files are already being walked newest-first by the
			// two loops above; each decoded batch itself stays in the
			// oldest-first order drain() wrote it in, so the final
			// accumulation is newest-first across batches and
			// oldest-first within one batch.
			result = append(result, entries...)
		}
	}

	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

// ClearReplayedEntries deletes every journal file and resets the
// current-file state.
func (j *Journal) ClearReplayedEntries() {
	j.enqueue(func() { j.clearReplayedLocked() })
}

func (j *Journal) clearReplayedLocked() {
	j.mu.Lock()
	j.closeCurrentLocked()
	j.mu.Unlock()

	files, err := j.listFilesChronological()
	if err != nil {
		slog.Error("journal: list files for clear failed", slog.String("error", err.Error()))
		return
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			slog.Error("journal: remove file failed", slog.String("file", f), slog.String("error", err.Error()))
		}
	}
}

// runRetentionLocked deletes files older than MaxRetention, then, if
// the surviving count still exceeds MaxFileCount, deletes the oldest
// excess. Failures are swallowed per spec §7.
func (j *Journal) runRetentionLocked() {
	entries, err := os.ReadDir(j.cfg.Directory)
	if err != nil {
		return
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}
	var files []fileInfo
	now := time.Now()

	for _, entry := range entries {
		if entry.IsDir() || !isJournalFilename(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(j.cfg.Directory, entry.Name())
		if now.Sub(info.ModTime()) > j.cfg.MaxRetention {
			if path == j.currentPath {
				continue // never delete the file we're actively writing
			}
			if err := os.Remove(path); err != nil {
				slog.Error("journal: retention remove failed", slog.String("file", path), slog.String("error", err.Error()))
			}
			continue
		}
		files = append(files, fileInfo{path: path, modTime: info.ModTime()})
	}

	if len(files) <= j.cfg.MaxFileCount {
		return
	}

	sort.Slice(files, func(i, k int) bool { return files[i].modTime.Before(files[k].modTime) })
	excess := len(files) - j.cfg.MaxFileCount
	for i := 0; i < excess; i++ {
		if files[i].path == j.currentPath {
			continue
		}
		if err := os.Remove(files[i].path); err != nil {
			slog.Error("journal: retention remove excess failed", slog.String("file", files[i].path), slog.String("error", err.Error()))
		}
	}
}

func isJournalFilename(name string) bool {
	return strings.HasPrefix(name, FilePrefix+"_") && strings.HasSuffix(name, fileExt)
}

// listFilesChronological lists journal files sorted ascending by
// filename, which per spec §3's invariant is equivalent to
// chronological order because the filename embeds yyyyMMdd_HHmmss
// (and, for files opened within one second, a zero-padded counter that
// sorts after the unsuffixed name).
func (j *Journal) listFilesChronological() ([]string, error) {
	entries, err := os.ReadDir(j.cfg.Directory)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && isJournalFilename(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Join(j.cfg.Directory, n)
	}
	return out, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
