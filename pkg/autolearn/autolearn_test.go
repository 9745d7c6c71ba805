package autolearn

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bastiangx/imecore/internal/storage"
	"github.com/bastiangx/imecore/pkg/frequency"
)

func newTestLearner(t *testing.T, cfg Config) *Learner {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "core.db")
	st, err := storage.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fs, err := frequency.NewStore(st)
	require.NoError(t, err)
	return New(fs, cfg)
}

func TestDetectsPhraseOnMinOccurrencesthOccurrence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinOccurrences = 2
	cfg.MinWordLength = 2
	l := newTestLearner(t, cfg)

	require.Empty(t, l.RecordInput("你", "ni", 1000))
	require.Empty(t, l.RecordInput("好", "hao", 1500))

	l.Reset()

	require.Empty(t, l.RecordInput("你", "ni", 3000))
	cands := l.RecordInput("好", "hao", 3500)
	require.Len(t, cands, 1)
	require.Equal(t, "你好", cands[0].Text)
	require.Equal(t, "ni hao", cands[0].Pinyin)
	require.Equal(t, 2, cands[0].Occurrences)
}

func TestIntervalViolationBreaksRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxInputIntervalMs = 100
	l := newTestLearner(t, cfg)

	require.Empty(t, l.RecordInput("你", "ni", 0))
	cands := l.RecordInput("好", "hao", 5000)
	require.Empty(t, cands)
}

func TestMultiCharacterCommitBreaksRun(t *testing.T) {
	l := newTestLearner(t, DefaultConfig())
	require.Empty(t, l.RecordInput("你", "ni", 0))
	require.Empty(t, l.RecordInput("好吗", "hao ma", 100))
	cands := l.RecordInput("吗", "ma", 200)
	require.Empty(t, cands)
}

func TestAlreadyUserWordIsSkipped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinOccurrences = 1
	l := newTestLearner(t, cfg)
	l.freq.RecordSelection("你好", "ni hao")

	require.Empty(t, l.RecordInput("你", "ni", 0))
	cands := l.RecordInput("好", "hao", 100)
	require.Empty(t, cands)
}

func TestRejectLearnPreventsFutureDetection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinOccurrences = 1
	l := newTestLearner(t, cfg)
	l.RejectLearn("你好", "ni hao")

	require.Empty(t, l.RecordInput("你", "ni", 0))
	cands := l.RecordInput("好", "hao", 100)
	require.Empty(t, cands)
}

func TestDisabledLearnerReturnsNothing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	l := newTestLearner(t, cfg)
	require.Empty(t, l.RecordInput("你", "ni", 0))
	require.Empty(t, l.RecordInput("好", "hao", 100))
}

func TestConfirmLearnInstallsIntoUserDictionary(t *testing.T) {
	l := newTestLearner(t, DefaultConfig())
	l.ConfirmLearn("你好", "ni hao")
	require.EqualValues(t, 1, l.freq.GetUserFrequency("你好", "ni hao"))
}

func TestProcessCandidatesBulkConfirms(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinOccurrences = 5
	l := newTestLearner(t, cfg)
	require.Empty(t, l.RecordInput("你", "ni", 0))
	require.Empty(t, l.RecordInput("好", "hao", 100))
	require.Len(t, l.Pending(), 1)

	confirmed := l.ProcessCandidates()
	require.Empty(t, confirmed)

	l.mu.Lock()
	for _, c := range l.pending {
		c.Occurrences = 5
	}
	l.mu.Unlock()

	confirmed = l.ProcessCandidates()
	require.Len(t, confirmed, 1)
	require.Empty(t, l.Pending())
}

func TestCodepointCountHandlesMultibyteAndMalformed(t *testing.T) {
	require.Equal(t, 1, codepointCount("你"))
	require.Equal(t, 2, codepointCount("你好"))
	require.Equal(t, 1, codepointCount("a"))
	require.Equal(t, 1, codepointCount(string([]byte{0xff})))
}
