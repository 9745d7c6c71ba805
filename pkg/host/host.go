// Package host defines the abstract capabilities an embedder must supply
// to the Orchestrator (§6). The core never assumes a particular concrete
// mechanism — function-table, message-passing, or callbacks — so this is
// a pure interface with no implementation here.
package host

import "github.com/bastiangx/imecore/pkg/frequency"

// Rect is an optional caret/candidate-window anchor, in host coordinates.
type Rect struct {
	X, Y, Width, Height int32
}

// Host is the outbound surface the Orchestrator drives.
type Host interface {
	// Commit delivers finished text to the focused field.
	Commit(text string)
	// UpdatePreedit shows the inline composition string with the caret at
	// the given rune offset.
	UpdatePreedit(text string, caret uint32)
	// ClearPreedit removes any inline composition string.
	ClearPreedit()
	// ShowCandidates presents one page of the candidate list.
	ShowCandidates(pageView []frequency.CandidateWord, pageIndex, totalPages uint32)
	// HideCandidates dismisses the candidate window.
	HideCandidates()
	// CursorRect optionally reports the caret's screen rectangle, for
	// positioning the candidate window; ok is false if unsupported.
	CursorRect() (rect Rect, ok bool)
}
