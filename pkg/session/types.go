package session

import "github.com/bastiangx/imecore/pkg/frequency"

// CandidateWord is re-exported for callers that only import pkg/session.
type CandidateWord = frequency.CandidateWord

// InputMode is the session's composition mode.
type InputMode int

const (
	Chinese InputMode = iota
	English
	TempEnglish
)

func (m InputMode) String() string {
	switch m {
	case Chinese:
		return "chinese"
	case English:
		return "english"
	case TempEnglish:
		return "temp_english"
	default:
		return "unknown"
	}
}

// KeyType is the logical classification of an incoming key event.
type KeyType int

const (
	KeyLetter KeyType = iota
	KeyDigit
	KeySpace
	KeyEnter
	KeyEscape
	KeyBackspace
	KeyDelete
	KeyPageUp
	KeyPageDown
	KeyMinus
	KeyEqual
	KeyShift
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyOther
)

// KeyEvent is one host-delivered key press.
type KeyEvent struct {
	Type  KeyType
	Char  rune // valid for KeyLetter/KeyDigit, and for KeyOther punctuation
	Shift bool
	Ctrl  bool
	Alt   bool
}

// OutcomeKind tags the variant carried by Outcome.
type OutcomeKind int

const (
	PassThrough OutcomeKind = iota
	Consumed
	Update
	UpdateHideCandidates
	Hide
	Commit
)

// Outcome is the sole observable result of process_key (§4.6).
type Outcome struct {
	Kind       OutcomeKind
	Preedit    string
	PageView   []CandidateWord
	TotalPages uint32
	PageIndex  uint32
	Mode       InputMode
	Text       string // valid for Commit
}
