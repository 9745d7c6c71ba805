// Package orchestrator implements the Orchestrator component (C7): the
// composition root that owns Storage, DictionaryRegistry, FrequencyStore,
// and AutoLearner, and allocates one InputSession, with its own
// CandidateAssembler, per host-initiated focus.
package orchestrator

import (
	"strconv"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/imecore/internal/logger"
	"github.com/bastiangx/imecore/internal/storage"
	"github.com/bastiangx/imecore/pkg/assembler"
	"github.com/bastiangx/imecore/pkg/autolearn"
	"github.com/bastiangx/imecore/pkg/candidatesource"
	"github.com/bastiangx/imecore/pkg/dictionary"
	"github.com/bastiangx/imecore/pkg/frequency"
	"github.com/bastiangx/imecore/pkg/session"
)

// Paths bundles the filesystem locations needed at init.
type Paths struct {
	DBPath  string
	DataDir string
}

// Orchestrator owns C1-C3 and C6 as composed values and manages per-focus
// sessions (each holding its own C4 assembler); embedders may wrap it in a process-wide holder, but the core
// itself holds no singleton state.
type Orchestrator struct {
	store    *storage.Store
	registry *dictionary.Registry
	freq     *frequency.Store
	learner  *autolearn.Learner
	source   candidatesource.Source

	mu       sync.Mutex
	sessions map[string]*session.Session

	defaultMode    session.InputMode
	pageSize       uint32
	fullwidthPunct bool

	nowMs func() int64
	log   *log.Logger
}

// New constructs an Orchestrator; call Init to open storage and load
// enabled dictionaries before serving any focus.
func New(source candidatesource.Source, nowMs func() int64) *Orchestrator {
	return &Orchestrator{
		sessions: make(map[string]*session.Session),
		source:   source,
		nowMs:    nowMs,
		log:      logger.Default("orchestrator"),
	}
}

// Init opens Storage, constructs C2/C3 over it, instantiates C6, and loads
// every enabled dictionary; a C4 assembler is built per session in FocusIn. Dictionary loading is I/O-bound and
// runs here, off the key-handling hot path.
func (o *Orchestrator) Init(paths Paths) error {
	st, err := storage.Open(paths.DBPath)
	if err != nil {
		return err
	}
	o.store = st

	reg, err := dictionary.NewRegistry(st, paths.DataDir)
	if err != nil {
		return err
	}
	o.registry = reg

	fs, err := frequency.NewStore(st)
	if err != nil {
		return err
	}
	o.freq = fs

	o.learner = autolearn.New(fs, o.loadLearnConfig())
	o.defaultMode = o.loadDefaultMode()
	o.pageSize = o.loadPageSize()
	o.fullwidthPunct = o.loadFullwidthPunct()

	n := reg.LoadAllEnabled()
	o.log.Infof("loaded %d enabled dictionaries", n)
	return nil
}

func (o *Orchestrator) loadDefaultMode() session.InputMode {
	v, err := o.store.Get("input.default_mode", "chinese")
	if err == nil && v == "english" {
		return session.English
	}
	return session.Chinese
}

func (o *Orchestrator) loadPageSize() uint32 {
	v, err := o.store.Get("input.page_size", "9")
	if err != nil {
		return 9
	}
	n, parseErr := strconv.Atoi(v)
	if parseErr != nil || n <= 0 {
		return 9
	}
	return uint32(n)
}

func (o *Orchestrator) loadFullwidthPunct() bool {
	v, err := o.store.Get("input.fullwidth_punct", "false")
	if err != nil {
		return false
	}
	return v == "true" || v == "1"
}

func (o *Orchestrator) loadLearnConfig() autolearn.Config {
	cfg := autolearn.DefaultConfig()
	if v, err := o.store.Get("learning.enabled", ""); err == nil && v != "" {
		cfg.Enabled = v == "true" || v == "1"
	}
	if v, err := o.store.Get("learning.min_occurrences", ""); err == nil {
		if n, parseErr := strconv.Atoi(v); parseErr == nil && n > 0 {
			cfg.MinOccurrences = n
		}
	}
	if v, err := o.store.Get("learning.max_interval", ""); err == nil {
		if n, parseErr := strconv.ParseInt(v, 10, 64); parseErr == nil && n > 0 {
			cfg.MaxInputIntervalMs = n
		}
	}
	return cfg
}

// FocusIn allocates a new InputSession for the given document id.
func (o *Orchestrator) FocusIn(documentID string) {
	asm := assembler.New(o.registry, o.freq, o.source, assembler.DefaultMergeConfig())
	sess := session.New(asm, o.freq, o.learner, o.defaultMode, o.pageSize, o.fullwidthPunct, o.nowMs)

	o.mu.Lock()
	o.sessions[documentID] = sess
	o.mu.Unlock()
}

// FocusOut persists the session's mode (TempEnglish collapses to
// "chinese") and drops the session.
func (o *Orchestrator) FocusOut(documentID string) {
	o.mu.Lock()
	sess, ok := o.sessions[documentID]
	delete(o.sessions, documentID)
	o.mu.Unlock()
	if !ok {
		return
	}
	mode := sess.Mode()
	persisted := "chinese"
	if mode == session.English {
		persisted = "english"
	}
	if err := o.store.Set("input.default_mode", persisted); err != nil {
		o.log.Errorf("persist mode: %v", err)
	}
}

// ProcessKey dispatches a key event to the named focus's session.
func (o *Orchestrator) ProcessKey(documentID string, ev session.KeyEvent) session.Outcome {
	o.mu.Lock()
	sess, ok := o.sessions[documentID]
	o.mu.Unlock()
	if !ok {
		return session.Outcome{Kind: session.PassThrough}
	}
	return sess.ProcessKey(ev)
}

// ToggleMode, SetMode, Mode act on the named focus's session.
func (o *Orchestrator) ToggleMode(documentID string) {
	if sess := o.sessionFor(documentID); sess != nil {
		sess.ToggleMode()
	}
}

func (o *Orchestrator) SetMode(documentID string, mode session.InputMode) {
	if sess := o.sessionFor(documentID); sess != nil {
		sess.SetMode(mode)
	}
}

func (o *Orchestrator) Mode(documentID string) session.InputMode {
	if sess := o.sessionFor(documentID); sess != nil {
		return sess.Mode()
	}
	return session.Chinese
}

func (o *Orchestrator) Reset(documentID string) {
	if sess := o.sessionFor(documentID); sess != nil {
		sess.Reset()
	}
}

func (o *Orchestrator) sessionFor(documentID string) *session.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessions[documentID]
}

// PendingDownloads is a read-only passthrough of Storage's non-terminal
// download tasks (supplemented feature; the core never drives downloads
// itself).
func (o *Orchestrator) PendingDownloads() ([]storage.DownloadTask, error) {
	return o.store.ListNonTerminal()
}

// Registry, Frequency, Learner expose the composed collaborators for
// admin/CLI tooling that needs direct access (dictionary management,
// frequency export, etc).
func (o *Orchestrator) Registry() *dictionary.Registry { return o.registry }
func (o *Orchestrator) Frequency() *frequency.Store    { return o.freq }
func (o *Orchestrator) Learner() *autolearn.Learner    { return o.learner }

// Shutdown closes the underlying storage handle.
func (o *Orchestrator) Shutdown() error {
	if o.store == nil {
		return nil
	}
	return o.store.Close()
}
