// Package autolearn implements the AutoLearner component (C6): it watches
// a bounded FIFO of committed text and mines consecutive single-character
// commits into multi-character phrase candidates.
package autolearn

import (
	"strings"
	"sync"

	"github.com/bastiangx/imecore/pkg/frequency"
)

// Config is the AutoLearnConfig value type, persisted via storage's
// learning.* keys (§4.7, §6).
type Config struct {
	MinWordLength      int
	MaxWordLength      int
	MinOccurrences     int
	MaxInputIntervalMs int64
	HistorySize        int
	Enabled            bool
}

// DefaultConfig mirrors the §4.7 defaults.
func DefaultConfig() Config {
	return Config{
		MinWordLength:      2,
		MaxWordLength:      6,
		MinOccurrences:     2,
		MaxInputIntervalMs: 3000,
		HistorySize:        20,
		Enabled:            true,
	}
}

// InputRecord is one committed (text, pinyin) pair with its commit time.
type InputRecord struct {
	Text        string
	Pinyin      string
	TimestampMs int64
}

// LearnCandidate is a phrase under observation, pending promotion into the
// user dictionary.
type LearnCandidate struct {
	Text        string
	Pinyin      string
	Occurrences int
	LastSeenMs  int64
}

func candidateKey(text, pinyin string) string { return text + "\t" + pinyin }

// Learner is the AutoLearner (C6): internal mutex over history, pending
// candidates, and the rejected set.
type Learner struct {
	mu       sync.Mutex
	cfg      Config
	history  []InputRecord
	pending  map[string]*LearnCandidate
	rejected map[string]struct{}
	freq     *frequency.Store
}

// New constructs a Learner bound to the given FrequencyStore, used both to
// check whether a candidate phrase is already a known user word and to
// install confirmed phrases.
func New(freq *frequency.Store, cfg Config) *Learner {
	return &Learner{
		cfg:      cfg,
		pending:  make(map[string]*LearnCandidate),
		rejected: make(map[string]struct{}),
		freq:     freq,
	}
}

// Config returns the current AutoLearnConfig.
func (l *Learner) Config() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// SetConfig swaps the AutoLearnConfig.
func (l *Learner) SetConfig(cfg Config) {
	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()
}

// RecordInput appends a commit to the history and returns any newly
// detected phrase candidates (§4.7 algorithm).
func (l *Learner) RecordInput(text, pinyin string, nowMs int64) []LearnCandidate {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.cfg.Enabled {
		return nil
	}

	l.history = append(l.history, InputRecord{Text: text, Pinyin: pinyin, TimestampMs: nowMs})
	if over := len(l.history) - l.cfg.HistorySize; over > 0 {
		l.history = l.history[over:]
	}

	run := l.consecutiveSingleCharRun()
	if len(run) < l.cfg.MinWordLength {
		return nil
	}

	var detected []LearnCandidate
	maxL := l.cfg.MaxWordLength
	if maxL > len(run) {
		maxL = len(run)
	}
	for length := l.cfg.MinWordLength; length <= maxL; length++ {
		suffix := run[len(run)-length:]
		phraseText, phrasePinyin := joinRun(suffix)
		key := candidateKey(phraseText, phrasePinyin)

		if _, rejected := l.rejected[key]; rejected {
			continue
		}
		if l.freq.GetUserFrequency(phraseText, phrasePinyin) > 0 {
			continue
		}

		cand, exists := l.pending[key]
		if !exists {
			cand = &LearnCandidate{Text: phraseText, Pinyin: phrasePinyin}
			l.pending[key] = cand
		}
		cand.Occurrences++
		cand.LastSeenMs = nowMs

		if cand.Occurrences >= l.cfg.MinOccurrences {
			detected = append(detected, *cand)
		}
	}
	return detected
}

// consecutiveSingleCharRun walks the history backwards from the newest
// record collecting consecutive single-codepoint records whose timestamp
// gaps are within MaxInputIntervalMs, stopping on the first violation, then
// returns the run in chronological order.
func (l *Learner) consecutiveSingleCharRun() []InputRecord {
	var run []InputRecord
	for i := len(l.history) - 1; i >= 0; i-- {
		rec := l.history[i]
		if codepointCount(rec.Text) != 1 {
			break
		}
		if len(run) > 0 {
			prev := run[0]
			if prev.TimestampMs-rec.TimestampMs > l.cfg.MaxInputIntervalMs {
				break
			}
		}
		run = append([]InputRecord{rec}, run...)
	}
	return run
}

// joinRun concatenates a run's texts and joins its pinyins with a space.
func joinRun(run []InputRecord) (text, pinyin string) {
	var tb, pb strings.Builder
	for i, r := range run {
		tb.WriteString(r.Text)
		if i > 0 {
			pb.WriteByte(' ')
		}
		pb.WriteString(r.Pinyin)
	}
	return tb.String(), pb.String()
}

// codepointCount counts valid UTF-8 code points in s; malformed bytes
// advance by one and count as one character each (matches the
// RuneCountInString contract, stated explicitly per §4.7).
func codepointCount(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

// ConfirmLearn installs a phrase into the user dictionary via the
// frequency store and drops it from the pending map.
func (l *Learner) ConfirmLearn(text, pinyin string) {
	l.freq.RecordSelection(text, pinyin)
	l.mu.Lock()
	delete(l.pending, candidateKey(text, pinyin))
	l.mu.Unlock()
}

// RejectLearn adds the phrase to the rejected set and drops any pending
// candidate for it.
func (l *Learner) RejectLearn(text, pinyin string) {
	key := candidateKey(text, pinyin)
	l.mu.Lock()
	l.rejected[key] = struct{}{}
	delete(l.pending, key)
	l.mu.Unlock()
}

// ProcessCandidates bulk-confirms every pending candidate that has reached
// MinOccurrences and returns the confirmed list.
func (l *Learner) ProcessCandidates() []LearnCandidate {
	l.mu.Lock()
	var ready []LearnCandidate
	for key, cand := range l.pending {
		if cand.Occurrences >= l.cfg.MinOccurrences {
			ready = append(ready, *cand)
			delete(l.pending, key)
		}
	}
	l.mu.Unlock()

	for _, cand := range ready {
		l.freq.RecordSelection(cand.Text, cand.Pinyin)
	}
	return ready
}

// Pending returns a snapshot of all candidates currently under observation.
func (l *Learner) Pending() []LearnCandidate {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LearnCandidate, 0, len(l.pending))
	for _, c := range l.pending {
		out = append(out, *c)
	}
	return out
}

// Reset clears the history; pending candidates and the rejected set are
// kept.
func (l *Learner) Reset() {
	l.mu.Lock()
	l.history = l.history[:0]
	l.mu.Unlock()
}
