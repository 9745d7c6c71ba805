// Package dictionary implements the DictionaryRegistry component (C2):
// dictionary metadata, RIME-yaml loading into per-dictionary patricia trie
// indices, and priority-ordered pinyin lookups.
package dictionary

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tchap/go-patricia/v2/patricia"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/imecore/internal/logger"
	"github.com/bastiangx/imecore/internal/storage"
)

// loadedDict holds the two in-memory indices for one loaded dictionary (§3).
type loadedDict struct {
	pinyinIndex *patricia.Trie        // pinyin -> []WordEntry, desc by frequency
	exactIndex  map[string]WordEntry  // "text\x1fpinyin" -> WordEntry
}

func exactKey(text, pinyin string) string { return text + "\x1f" + pinyin }

// DictResult is one dictionary's contribution to a multi-dict query,
// ordered by the dictionary's priority (§4.3 query_exact/query_prefix).
type DictResult struct {
	DictID  string
	Entries []WordEntry
}

// Registry is the single reader/writer-locked DictionaryRegistry (C2).
type Registry struct {
	store *storage.Store
	dataDir string

	mu     sync.RWMutex
	meta   map[string]storage.DictMeta
	order  []string // registered ids, sorted priority desc / id asc (I7)
	loaded map[string]*loadedDict

	log *log.Logger
}

// NewRegistry loads cached metadata from storage and constructs a Registry
// rooted at dataDir for resolving relative dictionary paths.
func NewRegistry(store *storage.Store, dataDir string) (*Registry, error) {
	r := &Registry{
		store:   store,
		dataDir: dataDir,
		meta:    make(map[string]storage.DictMeta),
		loaded:  make(map[string]*loadedDict),
		log:     logger.Default("dictionary"),
	}
	all, err := store.ListAllDicts()
	if err != nil {
		return nil, err
	}
	for _, m := range all {
		r.meta[m.ID] = m
	}
	r.resortLocked()
	return r, nil
}

// resortLocked rebuilds r.order from r.meta per I7. Caller holds r.mu.
func (r *Registry) resortLocked() {
	ids := make([]string, 0, len(r.meta))
	for id := range r.meta {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		mi, mj := r.meta[ids[i]], r.meta[ids[j]]
		if mi.Priority != mj.Priority {
			return mi.Priority > mj.Priority
		}
		return ids[i] < ids[j]
	})
	r.order = ids
}

// Register persists a dictionary's metadata and tracks it in memory.
func (r *Registry) Register(m storage.DictMeta) error {
	if err := r.store.SaveDictMeta(m); err != nil {
		return err
	}
	r.mu.Lock()
	r.meta[m.ID] = m
	r.resortLocked()
	r.mu.Unlock()
	return nil
}

// Unregister deletes a dictionary's metadata and unloads it if loaded.
func (r *Registry) Unregister(id string) error {
	if err := r.store.DeleteDictMeta(id); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.meta, id)
	delete(r.loaded, id)
	r.resortLocked()
	r.mu.Unlock()
	return nil
}

// Load reads the backing file, parses it, builds the indices, and marks
// the dictionary loaded. Idempotent: reloading an already-loaded
// dictionary is a no-op.
func (r *Registry) Load(id string) error {
	r.mu.RLock()
	if _, ok := r.loaded[id]; ok {
		r.mu.RUnlock()
		return nil
	}
	m, ok := r.meta[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	path := resolvePath(r.dataDir, m.SourcePath)
	entries, _, err := parseRimeFile(path)
	if err != nil {
		r.log.Errorf("load %s: %v", id, err)
		return err
	}

	ld := buildIndices(id, m.Priority, entries)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.meta[id]; !ok {
		// Unregistered while we were parsing off-lock.
		return ErrCancelled
	}
	r.loaded[id] = ld
	r.log.Debugf("loaded dictionary %s (%d entries)", id, len(entries))
	return nil
}

func buildIndices(dictID string, priority int32, entries []loadedEntry) *loadedDict {
	byPinyin := make(map[string][]WordEntry)
	exact := make(map[string]WordEntry, len(entries))
	for _, e := range entries {
		we := WordEntry{Text: e.text, Pinyin: e.pinyin, Frequency: e.freq, DictID: dictID, DictPriority: priority}
		byPinyin[e.pinyin] = append(byPinyin[e.pinyin], we)
		exact[exactKey(e.text, e.pinyin)] = we
	}
	trie := patricia.NewTrie()
	for pinyin, list := range byPinyin {
		sort.Slice(list, func(i, j int) bool { return list[i].Frequency > list[j].Frequency })
		trie.Insert(patricia.Prefix(pinyin), list)
	}
	return &loadedDict{pinyinIndex: trie, exactIndex: exact}
}

// Unload drops a dictionary's in-memory indices.
func (r *Registry) Unload(id string) {
	r.mu.Lock()
	delete(r.loaded, id)
	r.mu.Unlock()
}

// Reload unloads then loads a dictionary.
func (r *Registry) Reload(id string) error {
	r.Unload(id)
	return r.Load(id)
}

// LoadAllEnabled iterates enabled, not-yet-loaded dictionaries and loads
// each; failures are recorded per dictionary but don't abort the batch.
// The id snapshot is read under lock, then each Load call re-acquires its
// own lock, avoiding deadlock against concurrent Register/Unregister.
func (r *Registry) LoadAllEnabled() uint32 {
	r.mu.RLock()
	var candidates []string
	for id, m := range r.meta {
		if m.Enabled {
			if _, ok := r.loaded[id]; !ok {
				candidates = append(candidates, id)
			}
		}
	}
	r.mu.RUnlock()

	var loadedCount uint32
	for _, id := range candidates {
		if err := r.Load(id); err != nil {
			r.log.Warnf("load_all_enabled: %s failed: %v", id, err)
			continue
		}
		loadedCount++
	}
	return loadedCount
}

// SetEnabled persists the enabled flag; disabling also unloads.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	if err := r.store.SetEnabled(id, enabled); err != nil {
		return err
	}
	r.mu.Lock()
	if m, ok := r.meta[id]; ok {
		m.Enabled = enabled
		r.meta[id] = m
	}
	r.mu.Unlock()
	if !enabled {
		r.Unload(id)
	}
	return nil
}

// SetPriority persists the new priority and re-sorts the order invariant (I7).
func (r *Registry) SetPriority(id string, priority int32) error {
	if err := r.store.SetPriority(id, priority); err != nil {
		return err
	}
	r.mu.Lock()
	if m, ok := r.meta[id]; ok {
		m.Priority = priority
		r.meta[id] = m
	}
	r.resortLocked()
	r.mu.Unlock()
	return nil
}

// NeedsUpdate reports whether a dictionary's cloud version differs from its
// local version (supplemented feature; pure metadata comparison, no I/O).
func (r *Registry) NeedsUpdate(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.meta[id]
	return ok && m.CloudVersion != "" && m.CloudVersion != m.LocalVersion
}

// ListAll returns a priority-desc, id-asc snapshot of every registered dictionary.
func (r *Registry) ListAll() []Dictionary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Dictionary, 0, len(r.order))
	for _, id := range r.order {
		_, loaded := r.loaded[id]
		out = append(out, Dictionary{DictMeta: r.meta[id], Loaded: loaded})
	}
	return out
}

// ListLoaded returns only dictionaries currently loaded, same ordering.
func (r *Registry) ListLoaded() []Dictionary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Dictionary, 0, len(r.loaded))
	for _, id := range r.order {
		if _, ok := r.loaded[id]; ok {
			out = append(out, Dictionary{DictMeta: r.meta[id], Loaded: true})
		}
	}
	return out
}

// ListEnabled returns only enabled dictionaries, same ordering.
func (r *Registry) ListEnabled() []Dictionary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Dictionary, 0, len(r.order))
	for _, id := range r.order {
		m := r.meta[id]
		if m.Enabled {
			_, loaded := r.loaded[id]
			out = append(out, Dictionary{DictMeta: m, Loaded: loaded})
		}
	}
	return out
}

// QueryExact returns the exact-match WordEntry list per loaded, enabled
// dictionary that has the pinyin key, in priority order, capped at limit
// entries per dictionary.
func (r *Registry) QueryExact(pinyin string, limit int) []DictResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []DictResult
	for _, id := range r.order {
		m := r.meta[id]
		if !m.Enabled {
			continue
		}
		ld, ok := r.loaded[id]
		if !ok {
			continue
		}
		item := ld.pinyinIndex.Get(patricia.Prefix(pinyin))
		if item == nil {
			continue
		}
		entries, _ := item.([]WordEntry)
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}
		if len(entries) > 0 {
			out = append(out, DictResult{DictID: id, Entries: entries})
		}
	}
	return out
}

// QueryPrefix returns entries whose pinyin starts with prefix, per loaded,
// enabled dictionary, in priority order, capped at limit entries per
// dictionary.
func (r *Registry) QueryPrefix(prefix string, limit int) []DictResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []DictResult
	for _, id := range r.order {
		m := r.meta[id]
		if !m.Enabled {
			continue
		}
		ld, ok := r.loaded[id]
		if !ok {
			continue
		}
		var entries []WordEntry
		_ = ld.pinyinIndex.VisitSubtree(patricia.Prefix(prefix), func(_ patricia.Prefix, item patricia.Item) error {
			list, _ := item.([]WordEntry)
			entries = append(entries, list...)
			return nil
		})
		sort.Slice(entries, func(i, j int) bool { return entries[i].Frequency > entries[j].Frequency })
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}
		if len(entries) > 0 {
			out = append(out, DictResult{DictID: id, Entries: entries})
		}
	}
	return out
}

// ContainsWord reports whether (text, pinyin) exists in any loaded,
// enabled dictionary, and which one (first match by priority).
func (r *Registry) ContainsWord(text, pinyin string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key := exactKey(text, pinyin)
	for _, id := range r.order {
		m := r.meta[id]
		if !m.Enabled {
			continue
		}
		ld, ok := r.loaded[id]
		if !ok {
			continue
		}
		if _, ok := ld.exactIndex[key]; ok {
			return id, true
		}
	}
	return "", false
}

// GetWordFrequency returns the first-match (by priority) base frequency for
// (text, pinyin), or (-1, false) if absent in any loaded, enabled dictionary.
func (r *Registry) GetWordFrequency(text, pinyin string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key := exactKey(text, pinyin)
	for _, id := range r.order {
		m := r.meta[id]
		if !m.Enabled {
			continue
		}
		ld, ok := r.loaded[id]
		if !ok {
			continue
		}
		if we, ok := ld.exactIndex[key]; ok {
			return we.Frequency, true
		}
	}
	return -1, false
}
