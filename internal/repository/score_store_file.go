package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"holdings_tracker/internal/entity"
	"holdings_tracker/internal/port"

	jsoniter "github.com/json-iterator/go"
)

var _ port.ScoreStore = (*FileScoreStore)(nil)

type scoreRecord struct {
	Score     float64   `json:"score"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// FileScoreStore persists scores to a JSON file keyed by token address.
// The file is read once and rewritten in full on every Save.
type FileScoreStore struct {
	path string
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	loaded  bool
	records map[string]scoreRecord
}

func NewFileScoreStore(path string, ttl time.Duration) *FileScoreStore {
	return &FileScoreStore{path: path, ttl: ttl, now: time.Now}
}

func (s *FileScoreStore) Load(_ context.Context, addresses []string) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return map[string]float64{}, err
	}

	now := s.now()
	out := make(map[string]float64, len(addresses))
	for _, addr := range addresses {
		rec, ok := s.records[addr]
		if !ok || s.expired(rec, now) {
			continue
		}
		out[addr] = rec.Score
	}
	return out, nil
}

func (s *FileScoreStore) Save(_ context.Context, scores map[string]float64) error {
	if len(scores) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A corrupt file is replaced rather than blocking new scores from being kept.
	if err := s.ensureLoaded(); err != nil {
		s.records = make(map[string]scoreRecord)
		s.loaded = true
	}

	now := s.now()
	for addr, score := range scores {
		s.records[addr] = scoreRecord{Score: score, FetchedAt: now}
	}

	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: write %s: %v", entity.ErrCacheUnavailable, s.path, err)
	}
	return nil
}

func (s *FileScoreStore) expired(rec scoreRecord, now time.Time) bool {
	return s.ttl > 0 && now.Sub(rec.FetchedAt) > s.ttl
}

// ensureLoaded reads the file on first use. Plain address -> number maps are accepted
// and treated as fetched at load time.
func (s *FileScoreStore) ensureLoaded() error {
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.records = make(map[string]scoreRecord)
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", entity.ErrCacheUnavailable, s.path, err)
	}

	var raw map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: decode %s: %v", entity.ErrCacheUnavailable, s.path, err)
	}

	now := s.now()
	records := make(map[string]scoreRecord, len(raw))
	for addr, msg := range raw {
		var rec scoreRecord
		if err := json.Unmarshal(msg, &rec); err == nil {
			if rec.FetchedAt.IsZero() {
				rec.FetchedAt = now
			}
			records[addr] = rec
			continue
		}
		var legacy float64
		if err := json.Unmarshal(msg, &legacy); err == nil {
			records[addr] = scoreRecord{Score: legacy, FetchedAt: now}
		}
	}
	s.records = records
	s.loaded = true
	return nil
}
