package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileConfig configures a FileStore.
type FileConfig struct {
	Dir    string
	Key    string
	Cap    int
	Logger *slog.Logger
	Now    func() time.Time
}

// FileStore keeps history in memory and mirrors it to <dir>/<key>.json.
type FileStore struct {
	path   string
	cap    int
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries []Entry
	lastID  int64
}

// OpenFile loads the history blob. A missing file starts an empty list; a
// corrupt one is logged and treated as empty.
func OpenFile(cfg FileConfig) (*FileStore, error) {
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.Cap <= 0 {
		cfg.Cap = DefaultCap
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure history dir: %w", err)
	}

	s := &FileStore{
		path:   filepath.Join(cfg.Dir, cfg.Key+".json"),
		cap:    cfg.Cap,
		logger: cfg.Logger,
		now:    cfg.Now,
	}
	s.entries = s.load()
	for _, e := range s.entries {
		if e.ID > s.lastID {
			s.lastID = e.ID
		}
	}
	return s, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) load() []Entry {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Entry{}
	}
	if err != nil {
		s.logger.Warn("history unreadable, starting empty", "path", s.path, "error", err)
		return []Entry{}
	}
	if len(data) == 0 {
		return []Entry{}
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("history corrupt, starting empty", "path", s.path, "error", err)
		return []Entry{}
	}
	if entries == nil {
		entries = []Entry{}
	}
	Sort(entries)
	return entries
}

// saveLocked writes the list through a temp file and rename. s.mu must be held.
func (s *FileStore) saveLocked() error {
	data, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename history: %w", err)
	}
	return nil
}

// List returns a copy of the current entries.
func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// Save adds a new entry and evicts past the cap.
func (s *FileStore) Save(ctx context.Context, d Draft) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e := d.Entry(NextID(now, s.lastID), now.UTC())

	prev, prevLast := s.entries, s.lastID
	next := make([]Entry, 0, len(s.entries)+1)
	next = append(next, e)
	next = append(next, s.entries...)
	Sort(next)
	s.entries = Trim(next, s.cap, e.ID)
	s.lastID = e.ID

	if err := s.saveLocked(); err != nil {
		s.entries, s.lastID = prev, prevLast
		return Entry{}, err
	}
	return e, nil
}

// Delete removes an entry.
func (s *FileStore) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("delete %d: %w", id, ErrNotFound)
	}

	prev := s.entries
	next := make([]Entry, 0, len(s.entries)-1)
	next = append(next, s.entries[:idx]...)
	next = append(next, s.entries[idx+1:]...)
	s.entries = next

	if err := s.saveLocked(); err != nil {
		s.entries = prev
		return err
	}
	return nil
}

// TogglePin flips the pin flag and re-sorts.
func (s *FileStore) TogglePin(ctx context.Context, id int64) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return Entry{}, fmt.Errorf("toggle pin %d: %w", id, ErrNotFound)
	}

	prev := s.entries
	next := make([]Entry, len(s.entries))
	copy(next, s.entries)
	next[idx].IsPinned = !next[idx].IsPinned
	e := next[idx]
	Sort(next)
	s.entries = next

	if err := s.saveLocked(); err != nil {
		s.entries = prev
		return Entry{}, err
	}
	return e, nil
}

func (s *FileStore) indexLocked(id int64) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}
