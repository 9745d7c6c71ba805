// Package frequency implements the FrequencyStore component (C3): user
// word-frequency accounting atop storage plus the combined-score ranking
// function used to sort CandidateWords.
package frequency

import (
	"math"
	"sort"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/imecore/internal/logger"
	"github.com/bastiangx/imecore/internal/storage"
)

// baseFreqRef is the normalization reference for base (dictionary)
// frequency in the score formula (§4.4).
const baseFreqRef = 100_000

// userFreqBoostThreshold is the point past which a personal word's raw
// frequency starts dominating the combined score.
const userFreqBoostThreshold = 10

// Config is the tunable, persisted scoring configuration (§6, §9 — an
// immutable value type swapped atomically by Store.SetConfig).
type Config struct {
	UserWeight       float64
	BaseWeight       float64
	RecencyWeight    float64 // reserved; plumbed but unused in the score (§9 Open Question)
	RecencyDecayDays int
	MaxUserFrequency int64
}

// DefaultConfig mirrors the defaults enumerated in §6.
func DefaultConfig() Config {
	return Config{
		UserWeight:       0.6,
		BaseWeight:       0.3,
		RecencyWeight:    0.1,
		RecencyDecayDays: 30,
		MaxUserFrequency: 100_000,
	}
}

// CandidateWord is the shared candidate shape scored/sorted here. It is
// defined in this package and re-exported by pkg/assembler and pkg/session
// as a type alias, which keeps frequency free of a dependency on the
// assembler package — assembler depends on frequency, not the other way
// around.
type CandidateWord struct {
	Text           string
	Pinyin         string
	BaseFrequency  int64
	UserFrequency  int64
	SourceDictID   string
	SourcePriority int32
	IsUserWord     bool
	Comment        string
	Index          int
}

// Store is the FrequencyStore (C3): a thin ranking layer over storage.Store.
type Store struct {
	db     *storage.Store
	config atomic.Pointer[Config]
	log    *log.Logger
}

// NewStore constructs a FrequencyStore, loading its config from storage
// (falling back to DefaultConfig for any key that isn't parseable).
func NewStore(db *storage.Store) (*Store, error) {
	s := &Store{db: db, log: logger.Default("frequency")}
	cfg, err := s.loadConfigFromStorage()
	if err != nil {
		return nil, err
	}
	s.config.Store(&cfg)
	return s, nil
}

// RecordSelection increments the user frequency for (word, pinyin) and
// returns the new value. Storage failures degrade to 0 per §7 — a failed
// selection record never aborts a commit.
func (s *Store) RecordSelection(word, pinyin string) int64 {
	freq, err := s.db.Increment(word, pinyin)
	if err != nil {
		s.log.Errorf("record selection %s/%s: %v", word, pinyin, err)
		return 0
	}
	return int64(freq)
}

// RecordSelections records each pair in order through RecordSelection.
// Every pair is its own storage transaction (one Increment call each), so
// the batch as a whole is not atomic: a failure part-way leaves the earlier
// pairs recorded.
func (s *Store) RecordSelections(pairs [][2]string) {
	for _, p := range pairs {
		s.RecordSelection(p[0], p[1])
	}
}

// GetUserFrequency returns the stored user frequency for (word, pinyin), or
// 0 if absent or on storage failure.
func (s *Store) GetUserFrequency(word, pinyin string) int64 {
	freq, err := s.db.GetFreq(word, pinyin)
	if err != nil {
		s.log.Errorf("get user frequency %s/%s: %v", word, pinyin, err)
		return 0
	}
	return int64(freq)
}

// TopUserWords returns up to limit user words for pinyin, ordered by
// frequency desc.
func (s *Store) TopUserWords(pinyin string, limit int) []storage.UserFreqRow {
	rows, err := s.db.TopByPinyin(pinyin, limit)
	if err != nil {
		s.log.Errorf("top user words %s: %v", pinyin, err)
		return nil
	}
	return rows
}

// SortCandidates populates UserFrequency on each candidate (via a storage
// lookup) then sorts in place by combined score desc, tiebreaking on
// source priority desc then original order.
func (s *Store) SortCandidates(cands []CandidateWord, pinyin string) {
	cfg := s.Config()
	type scored struct {
		idx      int
		combined int64
		priority int32
	}
	scores := make([]scored, len(cands))
	for i := range cands {
		if !cands[i].IsUserWord {
			cands[i].UserFrequency = s.GetUserFrequency(cands[i].Text, pinyin)
		}
		scores[i] = scored{idx: i, combined: CombinedScore(cands[i], cfg), priority: cands[i].SourcePriority}
	}
	sort.SliceStable(scores, func(a, b int) bool {
		if scores[a].combined != scores[b].combined {
			return scores[a].combined > scores[b].combined
		}
		return scores[a].priority > scores[b].priority
	})
	out := make([]CandidateWord, len(cands))
	for newPos, sc := range scores {
		out[newPos] = cands[sc.idx]
	}
	copy(cands, out)
}

// CombinedScore implements the §4.4 score function for one candidate.
func CombinedScore(c CandidateWord, cfg Config) int64 {
	baseNorm := math.Log1p(float64(c.BaseFrequency)) / math.Log1p(baseFreqRef)
	maxUser := cfg.MaxUserFrequency
	if maxUser <= 0 {
		maxUser = 1
	}
	userNorm := math.Log1p(float64(c.UserFrequency)) / math.Log1p(float64(maxUser))
	score := cfg.BaseWeight*baseNorm + cfg.UserWeight*userNorm
	combined := int64(math.Round(score * 1_000_000))
	if c.UserFrequency > userFreqBoostThreshold {
		combined += c.UserFrequency * 100
	}
	return combined
}

// Config returns the current (hot-swappable) scoring configuration.
func (s *Store) Config() Config {
	return *s.config.Load()
}

// SetConfig persists the given config then atomically swaps the in-memory
// copy.
func (s *Store) SetConfig(cfg Config) error {
	if err := s.saveConfigToStorage(cfg); err != nil {
		return err
	}
	s.config.Store(&cfg)
	return nil
}

// ClearAll removes every user frequency row.
func (s *Store) ClearAll() error {
	return s.db.ClearAllFreq()
}

// Export iterates all user frequency rows via cb.
func (s *Store) Export(cb func(storage.UserFreqRow)) error {
	rows, err := s.db.AllFreq()
	if err != nil {
		return err
	}
	for _, r := range rows {
		cb(r)
	}
	return nil
}

// Import upserts an exact frequency for (word, pinyin) in a single write —
// never by looping increment calls, which would silently multiply the
// imported value.
func (s *Store) Import(word, pinyin string, freq int32) error {
	return s.db.SetFreq(word, pinyin, freq)
}

// CleanupBelow removes user words with frequency below min.
func (s *Store) CleanupBelow(min int32) (int64, error) {
	return s.db.CleanupBelow(min)
}

// CleanupUnused removes user words untouched for olderThanSecs.
func (s *Store) CleanupUnused(olderThanSecs int64) (int64, error) {
	return s.db.CleanupUnused(olderThanSecs)
}
