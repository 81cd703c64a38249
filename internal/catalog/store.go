package catalog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/mrdev/replybot/internal/config"
)

// ErrEmptyCatalog is returned by Reload when no usable entry was loaded.
var ErrEmptyCatalog = errors.New("catalog is empty")

// Snapshot is a consistent view of the loaded data. Trigger words are
// already normalized and never empty.
type Snapshot struct {
	Entries        []Entry
	BadWords       []string
	PraiseKeywords []string
	ThanksReplies  []string
}

// Store owns the catalog data and reloads it on demand. It is safe for
// concurrent use.
type Store struct {
	logger       *slog.Logger
	files        []string
	badWordsFile string
	praise       []string
	thanks       []string

	mu   sync.RWMutex
	snap Snapshot
}

type badWordsDocument struct {
	Arabic  []string `json:"arabic"`
	English []string `json:"english"`
}

// NewStore creates a file-backed store. Call Reload to load the data.
func NewStore(cfg config.CatalogConfig, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Store{
		logger:       logger.With("component", "catalog"),
		files:        cfg.Files,
		badWordsFile: cfg.BadWordsFile,
		praise:       cfg.PraiseKeywords,
		thanks:       cfg.ThanksReplies,
	}
	s.snap = s.build(nil, nil)
	return s
}

// NewStaticStore creates a store over in-memory data. Reload keeps the data.
func NewStaticStore(entries []Entry, badWords, praise, thanks []string) *Store {
	s := &Store{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		praise: praise,
		thanks: thanks,
	}
	s.snap = s.build(s.compileEntries(entries, "static"), badWords)
	return s
}

// Snapshot returns the current data.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Reload re-reads every data file. Unreadable or malformed files are skipped
// and reported in the returned error; whatever loaded successfully replaces
// the current data. ErrEmptyCatalog is included when no entry survived.
func (s *Store) Reload() (Snapshot, error) {
	if len(s.files) == 0 && s.badWordsFile == "" {
		snap := s.Snapshot()
		if len(snap.Entries) == 0 {
			return snap, ErrEmptyCatalog
		}
		return snap, nil
	}

	var errs []error

	var entries []Entry
	for _, path := range s.files {
		loaded, err := s.loadEntries(path)
		if err != nil {
			s.logger.Error("Failed to load catalog file", "path", path, "error", err)
			errs = append(errs, err)
			continue
		}
		entries = append(entries, loaded...)
	}

	badWords, err := s.loadBadWords(s.badWordsFile)
	if err != nil {
		s.logger.Error("Failed to load bad words file", "path", s.badWordsFile, "error", err)
		errs = append(errs, err)
	}

	snap := s.build(entries, badWords)

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	s.logger.Info("Catalog loaded",
		"intents", len(snap.Entries),
		"bad_words", len(snap.BadWords),
		"praise_keywords", len(snap.PraiseKeywords))

	if len(snap.Entries) == 0 {
		errs = append(errs, ErrEmptyCatalog)
	}

	return snap, errors.Join(errs...)
}

func (s *Store) loadEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}

	var raw []Entry
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}

	return s.compileEntries(raw, path), nil
}

func (s *Store) compileEntries(raw []Entry, source string) []Entry {
	entries := make([]Entry, 0, len(raw))
	for i, e := range raw {
		if err := e.Validate(); err != nil {
			s.logger.Warn("Skipping malformed catalog entry", "source", source, "index", i, "error", err)
			continue
		}
		entries = append(entries, e.compile())
	}
	return entries
}

func (s *Store) loadBadWords(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bad words file %s: %w", path, err)
	}

	var doc badWordsDocument
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse bad words file %s: %w", path, err)
	}

	return append(doc.Arabic, doc.English...), nil
}

func (s *Store) build(entries []Entry, badWords []string) Snapshot {
	return Snapshot{
		Entries:        entries,
		BadWords:       normalizeAll(badWords),
		PraiseKeywords: normalizeAll(s.praise),
		ThanksReplies:  nonEmpty(s.thanks),
	}
}
