/*
Package transport implements a MessagePack IPC adapter over stdin/stdout,
framing KeyEvent requests and Outcome responses for an out-of-process
host embedder. It is a reference transport, not a required interface: a
host may instead link the core directly and skip this package entirely.

The protocol is a minimal request/response loop over a stream of
consecutive binary MessagePack values (no line framing), one response per
request:

	{"id": "req_001", "doc": "editor-1", "type": "letter", "ch": "n"}

and the server responds with the resulting Outcome, here for a preedit
with no candidates:

	{"id": "req_001", "kind": "update_hide_candidates", "preedit": "n", "mode": "chinese"}
*/
package transport

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/time/rate"

	"github.com/bastiangx/imecore/internal/logger"
	"github.com/bastiangx/imecore/pkg/orchestrator"
	"github.com/bastiangx/imecore/pkg/session"
)

// keyEventRPS and keyEventBurst bound how fast a single focused document can push key
// events; a runaway or misbehaving client should not be able to starve
// other documents served by the same daemon process.
const (
	keyEventRPS   = 200
	keyEventBurst = 400
)

// KeyEventRequest is the wire shape of one key event.
type KeyEventRequest struct {
	ID      string `msgpack:"id"`
	DocID   string `msgpack:"doc"`
	KeyType string `msgpack:"type"`
	Char    string `msgpack:"ch,omitempty"`
	Shift   bool   `msgpack:"shift,omitempty"`
	Ctrl    bool   `msgpack:"ctrl,omitempty"`
	Alt     bool   `msgpack:"alt,omitempty"`
}

// OutcomeResponse is the wire shape of one process_key result.
type OutcomeResponse struct {
	ID         string   `msgpack:"id"`
	Kind       string   `msgpack:"kind"`
	Preedit    string   `msgpack:"preedit,omitempty"`
	PageView   []string `msgpack:"page_view,omitempty"`
	TotalPages uint32   `msgpack:"total_pages,omitempty"`
	PageIndex  uint32   `msgpack:"page_index,omitempty"`
	Mode       string   `msgpack:"mode,omitempty"`
	Text       string   `msgpack:"text,omitempty"`
}

// ErrorResponse reports a malformed request.
type ErrorResponse struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"error"`
}

var keyTypes = map[string]session.KeyType{
	"letter":    session.KeyLetter,
	"digit":     session.KeyDigit,
	"space":     session.KeySpace,
	"enter":     session.KeyEnter,
	"escape":    session.KeyEscape,
	"backspace": session.KeyBackspace,
	"delete":    session.KeyDelete,
	"page_up":   session.KeyPageUp,
	"page_down": session.KeyPageDown,
	"minus":     session.KeyMinus,
	"equal":     session.KeyEqual,
	"shift":     session.KeyShift,
	"left":      session.KeyLeft,
	"right":     session.KeyRight,
	"up":        session.KeyUp,
	"down":      session.KeyDown,
	"other":     session.KeyOther,
}

var outcomeKinds = map[session.OutcomeKind]string{
	session.PassThrough:          "pass_through",
	session.Consumed:             "consumed",
	session.Update:               "update",
	session.UpdateHideCandidates: "update_hide_candidates",
	session.Hide:                 "hide",
	session.Commit:               "commit",
}

// Server adapts an Orchestrator to the msgpack-over-stdio wire protocol.
type Server struct {
	orch       *orchestrator.Orchestrator
	decoder    *msgpack.Decoder
	writeMutex sync.Mutex
	log        *log.Logger

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// NewServer constructs a Server reading requests from os.Stdin.
func NewServer(orch *orchestrator.Orchestrator) *Server {
	return &Server{
		orch:     orch,
		decoder:  msgpack.NewDecoder(os.Stdin),
		log:      logger.Default("transport"),
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiterFor returns the per-document token bucket, creating it on first
// use.
func (s *Server) limiterFor(docID string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	l, ok := s.limiters[docID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(keyEventRPS), keyEventBurst)
		s.limiters[docID] = l
	}
	return l
}

// Start runs the request/response loop until stdin is closed.
func (s *Server) Start() error {
	s.log.Debug("starting msgpack key-event server")
	for {
		if err := s.processOne(); err != nil {
			if err == io.EOF {
				s.log.Debug("client disconnected")
				return nil
			}
			s.log.Debugf("request error: %v", err)
			continue
		}
	}
}

func (s *Server) processOne() error {
	var req KeyEventRequest
	if err := s.decoder.Decode(&req); err != nil {
		return err
	}

	kt, ok := keyTypes[req.KeyType]
	if !ok {
		return s.sendResponse(&ErrorResponse{ID: req.ID, Error: fmt.Sprintf("unknown key type: %s", req.KeyType)})
	}

	if !s.limiterFor(req.DocID).Allow() {
		return s.sendResponse(&ErrorResponse{ID: req.ID, Error: "rate limit exceeded"})
	}

	var ch rune
	if req.Char != "" {
		for _, r := range req.Char {
			ch = r
			break
		}
	}

	ev := session.KeyEvent{Type: kt, Char: ch, Shift: req.Shift, Ctrl: req.Ctrl, Alt: req.Alt}
	outcome := s.orch.ProcessKey(req.DocID, ev)
	return s.sendResponse(toWire(req.ID, outcome))
}

func toWire(id string, o session.Outcome) *OutcomeResponse {
	resp := &OutcomeResponse{
		ID:         id,
		Kind:       outcomeKinds[o.Kind],
		Preedit:    o.Preedit,
		TotalPages: o.TotalPages,
		PageIndex:  o.PageIndex,
		Mode:       o.Mode.String(),
		Text:       o.Text,
	}
	for _, c := range o.PageView {
		resp.PageView = append(resp.PageView, c.Text)
	}
	return resp
}

// sendResponse encodes to a buffer first for an atomic stdout write.
func (s *Server) sendResponse(response any) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(response); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}
