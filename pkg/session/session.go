// Package session implements the InputSession component (C5): the
// per-focus finite state machine that turns key events into preedit
// updates, candidate paging, and commits, recording selection feedback
// into the frequency store and auto-learner along the way.
package session

import (
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/bastiangx/imecore/internal/logger"
	"github.com/bastiangx/imecore/pkg/assembler"
	"github.com/bastiangx/imecore/pkg/autolearn"
	"github.com/bastiangx/imecore/pkg/frequency"
)

// punctuationMap carries the supplemented ASCII→full-width punctuation
// substitution applied in Chinese mode when input.fullwidth_punct is set,
// a common pinyin-IME convention; only the KeyOther punctuation keys below
// are ever remapped, never Letter/Digit.
var punctuationMap = map[rune]rune{
	',':  '，',
	'.':  '。',
	'!':  '！',
	'?':  '？',
	';':  '；',
	':':  '：',
	'(':  '（',
	')':  '）',
	'\\': '、',
}

// Session is one InputSession (C5): not shared, owned exclusively by one
// logical focus handler.
type Session struct {
	asm   *assembler.Assembler
	freq  *frequency.Store
	learn *autolearn.Learner

	mode      InputMode
	composing bool
	preedit   string

	allCandidates []CandidateWord
	pageIndex     uint32
	pageSize      uint32

	fullwidthPunct bool

	nowMs func() int64

	traceID string
	log     *log.Logger
}

// New constructs a Session bound to its collaborators. nowMs supplies
// monotonic-wall-clock milliseconds for auto-learn timestamps (injected so
// tests can control time deterministically).
func New(asm *assembler.Assembler, freq *frequency.Store, learn *autolearn.Learner, mode InputMode, pageSize uint32, fullwidthPunct bool, nowMs func() int64) *Session {
	if pageSize == 0 {
		pageSize = 9
	}
	traceID := uuid.NewString()
	sessLog := logger.Default("session")
	sessLog.Debug("session opened", "trace", traceID)
	return &Session{
		asm:            asm,
		freq:           freq,
		learn:          learn,
		mode:           mode,
		pageSize:       pageSize,
		fullwidthPunct: fullwidthPunct,
		nowMs:          nowMs,
		traceID:        traceID,
		log:            sessLog,
	}
}

// Mode returns the current InputMode.
func (s *Session) Mode() InputMode { return s.mode }

// Preedit returns the uncommitted pinyin string.
func (s *Session) Preedit() string { return s.preedit }

// ToggleMode swaps Chinese<->English; TempEnglish is not a toggle target.
func (s *Session) ToggleMode() {
	if s.mode == Chinese {
		s.mode = English
	} else {
		s.mode = Chinese
	}
}

// SetMode forces a mode.
func (s *Session) SetMode(m InputMode) { s.mode = m }

// Reset clears preedit/candidates/composing state synchronously.
func (s *Session) Reset() {
	s.preedit = ""
	s.composing = false
	s.allCandidates = nil
	s.pageIndex = 0
}

// ProcessKey is the sole entry point for key dispatch (§4.6).
func (s *Session) ProcessKey(ev KeyEvent) Outcome {
	switch s.mode {
	case English:
		return s.dispatchEnglish(ev)
	case TempEnglish:
		return s.dispatchTempEnglish(ev)
	default:
		return s.dispatchChinese(ev)
	}
}

func (s *Session) dispatchEnglish(ev KeyEvent) Outcome {
	if ev.Type == KeyShift && !ev.Ctrl && !ev.Alt {
		s.mode = Chinese
		return Outcome{Kind: Consumed}
	}
	return Outcome{Kind: PassThrough}
}

func (s *Session) dispatchTempEnglish(ev KeyEvent) Outcome {
	if ev.Type == KeyShift && !ev.Ctrl && !ev.Alt {
		s.mode = Chinese
		return Outcome{Kind: Consumed}
	}
	switch ev.Type {
	case KeySpace, KeyEnter, KeyEscape:
		s.mode = Chinese
		return Outcome{Kind: PassThrough}
	}
	return Outcome{Kind: PassThrough}
}

func (s *Session) dispatchChinese(ev KeyEvent) Outcome {
	if ev.Type == KeyShift && !ev.Ctrl && !ev.Alt {
		s.ToggleMode()
		return Outcome{Kind: Consumed}
	}

	if !s.composing && ev.Type == KeyLetter && ev.Shift && unicode.IsUpper(ev.Char) {
		s.mode = TempEnglish
		return Outcome{Kind: PassThrough}
	}

	if ev.Type == KeyLetter {
		s.preedit += string(unicode.ToLower(ev.Char))
		s.composing = true
		s.recomputeCandidates()
		return s.updateOutcome()
	}

	if s.composing && ev.Type == KeyDigit && ev.Char >= '1' && ev.Char <= '9' {
		idx := int(ev.Char - '1')
		page := s.currentPage()
		if idx < len(page) {
			return s.selectCandidate(page[idx])
		}
		return Outcome{Kind: Consumed}
	}

	if s.composing && ev.Type == KeySpace {
		page := s.currentPage()
		if len(page) > 0 {
			return s.selectCandidate(page[0])
		}
		return s.commitRaw()
	}

	if s.composing && ev.Type == KeyEnter {
		return s.commitRaw()
	}

	if s.composing && ev.Type == KeyEscape {
		s.Reset()
		return Outcome{Kind: Hide}
	}

	if s.composing && ev.Type == KeyBackspace {
		r := []rune(s.preedit)
		if len(r) <= 1 {
			s.Reset()
			return Outcome{Kind: Hide}
		}
		s.preedit = string(r[:len(r)-1])
		s.recomputeCandidates()
		return s.updateOutcome()
	}

	if s.composing && (ev.Type == KeyPageUp || ev.Type == KeyMinus) && s.totalPages() > 1 {
		if s.pageIndex > 0 {
			s.pageIndex--
		}
		return s.updateOutcome()
	}

	if s.composing && (ev.Type == KeyPageDown || ev.Type == KeyEqual) && s.totalPages() > 1 {
		if s.pageIndex+1 < s.totalPages() {
			s.pageIndex++
			return s.updateOutcome()
		}
		return Outcome{Kind: Consumed}
	}

	if !s.composing && ev.Type == KeyDigit {
		return Outcome{Kind: PassThrough}
	}

	if ev.Type == KeyOther && s.fullwidthPunct {
		if mapped, ok := punctuationMap[ev.Char]; ok {
			if s.composing {
				raw := s.preedit
				s.Reset()
				return Outcome{Kind: Commit, Text: raw + string(mapped)}
			}
			return Outcome{Kind: Commit, Text: string(mapped)}
		}
	}

	return Outcome{Kind: PassThrough}
}

// recomputeCandidates requests an unbounded (for-paging) candidate list
// from the assembler and resets paging to the first page. A candidate
// source failure degrades to an empty list (§4.6 Failure), never panics
// the session.
func (s *Session) recomputeCandidates() {
	s.pageIndex = 0
	defer func() {
		if r := recover(); r != nil {
			if s.log != nil {
				s.log.Error("candidate assembly failed", "trace", s.traceID, "err", r)
			}
			s.allCandidates = nil
		}
	}()
	s.allCandidates = s.asm.MergeAll(s.preedit)
}

func (s *Session) totalPages() uint32 {
	n := uint32(len(s.allCandidates))
	if n == 0 {
		return 0
	}
	pages := n / s.pageSize
	if n%s.pageSize != 0 {
		pages++
	}
	return pages
}

func (s *Session) currentPage() []CandidateWord {
	start := s.pageIndex * s.pageSize
	if start >= uint32(len(s.allCandidates)) {
		return nil
	}
	end := start + s.pageSize
	if end > uint32(len(s.allCandidates)) {
		end = uint32(len(s.allCandidates))
	}
	return s.allCandidates[start:end]
}

func (s *Session) updateOutcome() Outcome {
	if len(s.allCandidates) == 0 {
		return Outcome{Kind: UpdateHideCandidates, Preedit: s.preedit, Mode: s.mode}
	}
	return Outcome{
		Kind:       Update,
		Preedit:    s.preedit,
		PageView:   s.currentPage(),
		TotalPages: s.totalPages(),
		PageIndex:  s.pageIndex,
		Mode:       s.mode,
	}
}

// selectCandidate commits a chosen candidate, recording the selection side
// effect into the frequency store and auto-learner before returning.
func (s *Session) selectCandidate(c CandidateWord) Outcome {
	pinyin := s.preedit
	s.freq.RecordSelection(c.Text, pinyin)
	if s.learn != nil {
		s.learn.RecordInput(c.Text, pinyin, s.now())
	}
	s.Reset()
	if s.log != nil {
		s.log.Debug("candidate committed", "trace", s.traceID, "text", c.Text)
	}
	return Outcome{Kind: Commit, Text: c.Text}
}

// commitRaw commits the preedit string verbatim (Enter, or Space with no
// candidates). preedit only ever holds the lowercase Latin letters
// appended by the Letter branch above, so there is no punctuation to map
// here; full-width substitution happens in the KeyOther branch instead.
func (s *Session) commitRaw() Outcome {
	text := s.preedit
	s.Reset()
	return Outcome{Kind: Commit, Text: text}
}

func (s *Session) now() int64 {
	if s.nowMs != nil {
		return s.nowMs()
	}
	return 0
}
