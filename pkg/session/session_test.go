package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bastiangx/imecore/internal/storage"
	"github.com/bastiangx/imecore/pkg/assembler"
	"github.com/bastiangx/imecore/pkg/autolearn"
	"github.com/bastiangx/imecore/pkg/dictionary"
	"github.com/bastiangx/imecore/pkg/frequency"
)

type stubSource struct {
	byPinyin map[string][]CandidateWord
}

func (s *stubSource) Query(pinyin string, limit int) []CandidateWord {
	cands := s.byPinyin[pinyin]
	if limit > 0 && len(cands) > limit {
		cands = cands[:limit]
	}
	out := make([]CandidateWord, len(cands))
	copy(out, cands)
	return out
}

func newTestSession(t *testing.T, source *stubSource, pageSize uint32) *Session {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "core.db")
	st, err := storage.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg, err := dictionary.NewRegistry(st, t.TempDir())
	require.NoError(t, err)
	fs, err := frequency.NewStore(st)
	require.NoError(t, err)

	var asm *assembler.Assembler
	if source != nil {
		asm = assembler.New(reg, fs, source, assembler.DefaultMergeConfig())
	} else {
		asm = assembler.New(reg, fs, nil, assembler.DefaultMergeConfig())
	}
	learner := autolearn.New(fs, autolearn.DefaultConfig())
	clock := int64(0)
	return New(asm, fs, learner, Chinese, pageSize, false, func() int64 { clock++; return clock })
}

func letterKey(c rune) KeyEvent { return KeyEvent{Type: KeyLetter, Char: c} }
func digitKey(c rune) KeyEvent  { return KeyEvent{Type: KeyDigit, Char: c} }

func TestBasicSelectionCommitsAndRecordsFrequency(t *testing.T) {
	src := &stubSource{byPinyin: map[string][]CandidateWord{
		"ni": {{Text: "你", Pinyin: "ni"}, {Text: "尼", Pinyin: "ni"}, {Text: "泥", Pinyin: "ni"}},
	}}
	s := newTestSession(t, src, 9)

	out := s.ProcessKey(letterKey('n'))
	require.Equal(t, UpdateHideCandidates, out.Kind)
	out = s.ProcessKey(letterKey('i'))
	require.Equal(t, Update, out.Kind)
	require.Equal(t, "ni", s.Preedit())

	out = s.ProcessKey(digitKey('1'))
	require.Equal(t, Commit, out.Kind)
	require.Equal(t, "你", out.Text)
	require.EqualValues(t, 1, s.freq.GetUserFrequency("你", "ni"))
}

func TestEnterCommitsRawPreedit(t *testing.T) {
	s := newTestSession(t, nil, 9)
	s.ProcessKey(letterKey('w'))
	s.ProcessKey(letterKey('o'))
	out := s.ProcessKey(KeyEvent{Type: KeyEnter})
	require.Equal(t, Commit, out.Kind)
	require.Equal(t, "wo", out.Text)
	require.Equal(t, "", s.Preedit())
}

func TestSpaceSelectsFirstCandidate(t *testing.T) {
	src := &stubSource{byPinyin: map[string][]CandidateWord{
		"hao": {{Text: "好", Pinyin: "hao"}, {Text: "号", Pinyin: "hao"}, {Text: "豪", Pinyin: "hao"}},
	}}
	s := newTestSession(t, src, 9)
	s.ProcessKey(letterKey('h'))
	s.ProcessKey(letterKey('a'))
	out := s.ProcessKey(letterKey('o'))
	require.Equal(t, Update, out.Kind)

	out = s.ProcessKey(KeyEvent{Type: KeySpace})
	require.Equal(t, Commit, out.Kind)
	require.Equal(t, "好", out.Text)
}

func TestEscapeCancelsWithoutCommit(t *testing.T) {
	s := newTestSession(t, nil, 9)
	s.ProcessKey(letterKey('n'))
	s.ProcessKey(letterKey('i'))
	out := s.ProcessKey(KeyEvent{Type: KeyEscape})
	require.Equal(t, Hide, out.Kind)
	require.Equal(t, "", s.Preedit())
	require.EqualValues(t, 0, s.freq.GetUserFrequency("你", "ni"))
}

func TestPagingAdvancesAndStopsAtEnd(t *testing.T) {
	var cands []CandidateWord
	for i := 0; i < 15; i++ {
		cands = append(cands, CandidateWord{Text: string(rune('a' + i)), Pinyin: "shi"})
	}
	src := &stubSource{byPinyin: map[string][]CandidateWord{"shi": cands}}
	s := newTestSession(t, src, 5)

	s.ProcessKey(letterKey('s'))
	s.ProcessKey(letterKey('h'))
	out := s.ProcessKey(letterKey('i'))
	require.EqualValues(t, 3, out.TotalPages)
	require.EqualValues(t, 0, out.PageIndex)

	out = s.ProcessKey(KeyEvent{Type: KeyPageDown})
	require.EqualValues(t, 1, out.PageIndex)
	out = s.ProcessKey(KeyEvent{Type: KeyPageDown})
	require.EqualValues(t, 2, out.PageIndex)
	require.Len(t, out.PageView, 5)

	out = s.ProcessKey(KeyEvent{Type: KeyPageDown})
	require.Equal(t, Consumed, out.Kind)
}

func TestModeToggleIdempotentAtParity(t *testing.T) {
	s := newTestSession(t, nil, 9)
	require.Equal(t, Chinese, s.Mode())
	s.ProcessKey(KeyEvent{Type: KeyShift})
	require.Equal(t, English, s.Mode())
	s.ProcessKey(KeyEvent{Type: KeyShift})
	require.Equal(t, Chinese, s.Mode())
}

func TestBackspaceToEmptyCancels(t *testing.T) {
	s := newTestSession(t, nil, 9)
	s.ProcessKey(letterKey('n'))
	out := s.ProcessKey(KeyEvent{Type: KeyBackspace})
	require.Equal(t, Hide, out.Kind)
	require.False(t, s.composing)
}

func TestFullwidthPunctuationCommitsMappedCharWhenIdle(t *testing.T) {
	s := newTestSession(t, nil, 9)
	s.fullwidthPunct = true
	out := s.ProcessKey(KeyEvent{Type: KeyOther, Char: ','})
	require.Equal(t, Commit, out.Kind)
	require.Equal(t, "，", out.Text)
}

func TestFullwidthPunctuationFlushesPreeditWhileComposing(t *testing.T) {
	s := newTestSession(t, nil, 9)
	s.fullwidthPunct = true
	s.ProcessKey(letterKey('h'))
	s.ProcessKey(letterKey('i'))
	out := s.ProcessKey(KeyEvent{Type: KeyOther, Char: ','})
	require.Equal(t, Commit, out.Kind)
	require.Equal(t, "hi，", out.Text)
	require.Equal(t, "", s.Preedit())
}

func TestFullwidthPunctuationDisabledPassesThrough(t *testing.T) {
	s := newTestSession(t, nil, 9)
	out := s.ProcessKey(KeyEvent{Type: KeyOther, Char: ','})
	require.Equal(t, PassThrough, out.Kind)
}
