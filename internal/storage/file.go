package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "coursebell/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.marks.jsonl          (append-only JSON Lines, one mark per line)
//   - <prefix>.prefs.snapshot.json  (periodic snapshot)
//   - <prefix>.prefs.journal.jsonl  (append-only journal)
//
// The prefs journal is compacted into the snapshot every compactEvery writes
// and on Close.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	marksFile *os.File
	marks     map[string]int64 // unix milli

	prefsSnapshotPath string
	prefsJournalFile  *os.File
	prefs             map[string]string

	prefWrites int
}

const compactEvery = 100

type markRecord struct {
	ID string `json:"id"`
	At int64  `json:"at"`
}

type prefRecord struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	marksPath := prefix + ".marks.jsonl"
	snapPath := prefix + ".prefs.snapshot.json"
	journalPath := prefix + ".prefs.journal.jsonl"

	marks := map[string]int64{}
	if err := replayMarks(marksPath, marks); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	prefs := map[string]string{}
	if err := loadPrefsSnapshot(snapPath, prefs); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("prefs snapshot unreadable, starting empty", logx.String("path", snapPath), logx.Err(err))
	}
	if err := replayPrefsJournal(journalPath, prefs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	mf, err := os.OpenFile(marksPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = mf.Close()
		return nil, err
	}

	return &fileStore{
		log:               log,
		marksFile:         mf,
		marks:             marks,
		prefsSnapshotPath: snapPath,
		prefsJournalFile:  jf,
		prefs:             prefs,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.prefsJournalFile != nil {
		if s.prefWrites > 0 {
			errs = append(errs, s.compactLocked())
		}
		errs = append(errs, s.prefsJournalFile.Close())
		s.prefsJournalFile = nil
	}
	if s.marksFile != nil {
		errs = append(errs, s.marksFile.Close())
		s.marksFile = nil
	}
	return errors.Join(errs...)
}

func (s *fileStore) PutMark(ctx context.Context, id string, at time.Time) error {
	_ = ctx
	if strings.TrimSpace(id) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.marksFile == nil {
		return errors.New("marks file closed")
	}
	if _, ok := s.marks[id]; ok {
		return nil
	}
	ms := at.UnixMilli()
	if err := json.NewEncoder(s.marksFile).Encode(markRecord{ID: id, At: ms}); err != nil {
		return err
	}
	s.marks[id] = ms
	return nil
}

func (s *fileStore) LoadMarks(ctx context.Context) ([]string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.marks))
	for id := range s.marks {
		out = append(out, id)
	}
	return out, nil
}

func (s *fileStore) PutPref(ctx context.Context, key, value string) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("empty pref key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prefsJournalFile == nil {
		return errors.New("prefs journal closed")
	}
	if err := json.NewEncoder(s.prefsJournalFile).Encode(prefRecord{Key: key, Value: value}); err != nil {
		return err
	}
	s.prefs[key] = value
	s.prefWrites++
	if s.prefWrites%compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("prefs compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) GetPref(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.prefs[strings.TrimSpace(key)]
	return v, ok, nil
}

func (s *fileStore) compactLocked() error {
	tmp := s.prefsSnapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.prefs); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.prefsSnapshotPath); err != nil {
		return err
	}
	if err := s.prefsJournalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.prefsJournalFile.Seek(0, 2)
	return err
}

func replayMarks(path string, out map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r markRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.ID == "" {
			continue
		}
		out[r.ID] = r.At
	}
	return sc.Err()
}

func loadPrefsSnapshot(path string, out map[string]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]string
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		out[k] = v
	}
	return nil
}

func replayPrefsJournal(path string, out map[string]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r prefRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.Key == "" {
			continue
		}
		out[r.Key] = r.Value
	}
	return sc.Err()
}
