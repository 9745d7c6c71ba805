// Package cli handles an interactive stdin shell for exercising the IME
// core outside any real host integration; useful for debugging the
// dispatch pipeline and candidate assembly during development.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/imecore/pkg/session"
)

// InputHandler reads lines from stdin and replays them as key events
// against a bound process_key function, printing preedit/candidate/commit
// state after every step so a developer can watch the FSM transition live.
type InputHandler struct {
	processKey func(ev session.KeyEvent) session.Outcome
}

// NewInputHandler binds the handler to a process_key function, typically
// orch.ProcessKey bound to a fixed focus id.
func NewInputHandler(processKey func(ev session.KeyEvent) session.Outcome) *InputHandler {
	return &InputHandler{processKey: processKey}
}

// Start begins the interactive loop. Each line typed is replayed as a
// sequence of Letter key events followed by a digit-1 selection, since a
// terminal has no native notion of per-keystroke IME dispatch.
func (h *InputHandler) Start() error {
	log.Print("imecli [BETA] -- type pinyin and press Enter, 'q' to quit")
	reader := bufio.NewReader(os.Stdin)

	for {
		log.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "q" {
			return nil
		}
		if line == "" {
			continue
		}
		h.replay(line)
	}
}

// replay feeds one line of input through the session as individual Letter
// key events, then a digit '1' to select the first candidate.
func (h *InputHandler) replay(line string) {
	start := time.Now()
	var last session.Outcome
	for _, r := range line {
		last = h.processKey(session.KeyEvent{Type: session.KeyLetter, Char: r})
		h.printOutcome(last)
	}
	last = h.processKey(session.KeyEvent{Type: session.KeyDigit, Char: '1'})
	h.printOutcome(last)
	log.Debugf("replay took %s", time.Since(start))
}

func (h *InputHandler) printOutcome(o session.Outcome) {
	switch o.Kind {
	case session.Commit:
		fmt.Printf("commit: %s\n", o.Text)
	case session.Update:
		words := make([]string, 0, len(o.PageView))
		for _, c := range o.PageView {
			words = append(words, c.Text)
		}
		fmt.Printf("preedit=%q candidates=%v page=%d/%d\n", o.Preedit, words, o.PageIndex+1, o.TotalPages)
	case session.UpdateHideCandidates:
		fmt.Printf("preedit=%q (no candidates)\n", o.Preedit)
	case session.Hide:
		fmt.Println("(hidden)")
	}
}
