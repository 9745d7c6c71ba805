// Package assembler implements the CandidateAssembler component (C4): the
// collect/filter/order/dedup/tag/truncate/number pipeline that turns a
// pinyin query plus the dictionary registry, frequency store, and an
// optional external candidate source into one ranked candidate list.
package assembler

import (
	"github.com/charmbracelet/log"

	"github.com/bastiangx/imecore/internal/logger"
	"github.com/bastiangx/imecore/pkg/candidatesource"
	"github.com/bastiangx/imecore/pkg/dictionary"
	"github.com/bastiangx/imecore/pkg/frequency"
)

// CandidateWord is re-exported so callers only need one type across
// assembler/session/orchestrator.
type CandidateWord = frequency.CandidateWord

// safetyMargin is added to four pages' worth of candidates (PageSize*4)
// when querying the external source or the registry. The query size does
// not grow with Merge's limit: Merge truncates after the merge, so a limit
// above that query size gets no more external candidates than it holds.
const safetyMargin = 8

// MergeConfig controls the C4 pipeline (§4.5, §6).
type MergeConfig struct {
	MaxUserWords     int
	MinUserFrequency int64
	UserWordsFirst   bool
	PageSize         int
}

// DefaultMergeConfig mirrors the §4.5/§6 defaults.
func DefaultMergeConfig() MergeConfig {
	return MergeConfig{
		MaxUserWords:     5,
		MinUserFrequency: 3,
		UserWordsFirst:   true,
		PageSize:         9,
	}
}

// Assembler is the CandidateAssembler (C4).
type Assembler struct {
	registry *dictionary.Registry
	freq     *frequency.Store
	source   candidatesource.Source
	cfg      MergeConfig
	log      *log.Logger
}

// New constructs an Assembler. source may be nil, in which case the
// assembler relies solely on registry+freq (§4.2).
func New(registry *dictionary.Registry, freq *frequency.Store, source candidatesource.Source, cfg MergeConfig) *Assembler {
	return &Assembler{registry: registry, freq: freq, source: source, cfg: cfg, log: logger.Default("assembler")}
}

// Config returns the current MergeConfig.
func (a *Assembler) Config() MergeConfig { return a.cfg }

// SetConfig swaps the MergeConfig. Unlike frequency/storage config, this is
// process-local only — the assembler doesn't own persistence for it.
func (a *Assembler) SetConfig(cfg MergeConfig) { a.cfg = cfg }

// Merge runs the full pipeline and truncates to at most limit candidates.
func (a *Assembler) Merge(pinyin string, limit int) []CandidateWord {
	all := a.MergeAll(pinyin)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return numberCandidates(all)
}

// MergeAll runs the full pipeline with no truncation, for paging (§4.6).
func (a *Assembler) MergeAll(pinyin string) []CandidateWord {
	cfg := a.cfg

	userWords := a.collectUserWords(pinyin, cfg)
	external := a.collectExternal(pinyin, cfg)

	userWords = filterUserWords(userWords, cfg.MinUserFrequency)
	tagUserMatches(external, userWords)

	var ordered []CandidateWord
	if cfg.UserWordsFirst {
		ordered = append(ordered, userWords...)
		ordered = append(ordered, external...)
	} else {
		ordered = append(ordered, external...)
		ordered = append(ordered, userWords...)
	}

	// No re-sort here: collectUserWords returns user words frequency-desc,
	// collectExternal returns the source's own ranking (or registry entries
	// in dictionary-priority order, frequency-desc within each dictionary),
	// and re-sorting the merged list
	// by combined score would undo the order template above (§4.5 step 3)
	// — a user candidate with a modest frequency must still sort ahead of
	// every external candidate when UserWordsFirst is set, regardless of
	// combined score. frequency.SortCandidates remains a standalone C3
	// capability with no call site in this pipeline.
	deduped := dedupByText(ordered)
	return numberCandidates(deduped)
}

// collectUserWords pulls the top K user words for pinyin from the
// frequency store, already in frequency-desc order.
func (a *Assembler) collectUserWords(pinyin string, cfg MergeConfig) []CandidateWord {
	k := cfg.MaxUserWords
	if k <= 0 {
		k = 5
	}
	rows := a.freq.TopUserWords(pinyin, k)
	out := make([]CandidateWord, 0, len(rows))
	for _, r := range rows {
		out = append(out, CandidateWord{
			Text:          r.Word,
			Pinyin:        r.Pinyin,
			UserFrequency: int64(r.Frequency),
			IsUserWord:    true,
		})
	}
	return out
}

// collectExternal queries the external source if configured, otherwise
// falls back to the dictionary registry directly.
func (a *Assembler) collectExternal(pinyin string, cfg MergeConfig) []CandidateWord {
	if a.source != nil {
		return a.source.Query(pinyin, cfg.PageSize*4+safetyMargin)
	}
	if a.registry == nil {
		return nil
	}
	results := a.registry.QueryExact(pinyin, cfg.PageSize*4+safetyMargin)
	var out []CandidateWord
	for _, res := range results {
		for _, e := range res.Entries {
			out = append(out, CandidateWord{
				Text:           e.Text,
				Pinyin:         e.Pinyin,
				BaseFrequency:  e.Frequency,
				SourceDictID:   e.DictID,
				SourcePriority: e.DictPriority,
			})
		}
	}
	return out
}

// filterUserWords drops user candidates below the minimum frequency
// threshold, preserving input order.
func filterUserWords(words []CandidateWord, min int64) []CandidateWord {
	out := words[:0:0]
	for _, w := range words {
		if w.UserFrequency >= min {
			out = append(out, w)
		}
	}
	return out
}

// tagUserMatches marks any external candidate whose (text, pinyin) also
// appears among the collected user words, carrying over its user
// frequency (§4.5 step 5) without marking it is_user_word (that tag is
// reserved for candidates that came from the user path itself).
func tagUserMatches(external []CandidateWord, userWords []CandidateWord) {
	if len(userWords) == 0 {
		return
	}
	byKey := make(map[string]int64, len(userWords))
	for _, u := range userWords {
		byKey[u.Text+"\x1f"+u.Pinyin] = u.UserFrequency
	}
	for i := range external {
		if f, ok := byKey[external[i].Text+"\x1f"+external[i].Pinyin]; ok {
			external[i].UserFrequency = f
		}
	}
}

// dedupByText keeps the earlier emission on a text collision, dropping
// later ones — dedup is by text alone, not (text, pinyin), since the same
// surface form reached via different pinyin spellings is UI-equivalent.
func dedupByText(cands []CandidateWord) []CandidateWord {
	seen := make(map[string]struct{}, len(cands))
	out := make([]CandidateWord, 0, len(cands))
	for _, c := range cands {
		if _, ok := seen[c.Text]; ok {
			continue
		}
		seen[c.Text] = struct{}{}
		out = append(out, c)
	}
	return out
}

// numberCandidates assigns 1..9 cycling index values used by single-digit
// selection keys.
func numberCandidates(cands []CandidateWord) []CandidateWord {
	for i := range cands {
		cands[i].Index = i%9 + 1
	}
	return cands
}
