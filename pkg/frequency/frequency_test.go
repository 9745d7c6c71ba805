package frequency

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bastiangx/imecore/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "core.db")
	st, err := storage.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fs, err := NewStore(st)
	require.NoError(t, err)
	return fs
}

func TestDefaultConfigLoadedWhenUnset(t *testing.T) {
	fs := newTestStore(t)
	cfg := fs.Config()
	require.Equal(t, DefaultConfig(), cfg)
}

func TestRecordSelectionIncrementsAndPersists(t *testing.T) {
	fs := newTestStore(t)
	require.EqualValues(t, 1, fs.RecordSelection("你好", "ni hao"))
	require.EqualValues(t, 2, fs.RecordSelection("你好", "ni hao"))
	require.EqualValues(t, 2, fs.GetUserFrequency("你好", "ni hao"))
}

func TestRecordSelectionsSequencesAllPairs(t *testing.T) {
	fs := newTestStore(t)
	fs.RecordSelections([][2]string{{"你好", "ni hao"}, {"你好", "ni hao"}, {"吗", "ma"}})
	require.EqualValues(t, 2, fs.GetUserFrequency("你好", "ni hao"))
	require.EqualValues(t, 1, fs.GetUserFrequency("吗", "ma"))
}

func TestCombinedScoreHigherBaseFreqRanksHigher(t *testing.T) {
	cfg := DefaultConfig()
	low := CombinedScore(CandidateWord{BaseFrequency: 10}, cfg)
	high := CombinedScore(CandidateWord{BaseFrequency: 90_000}, cfg)
	require.Greater(t, high, low)
}

func TestCombinedScoreUserFrequencyBoostsAboveThreshold(t *testing.T) {
	cfg := DefaultConfig()
	base := CombinedScore(CandidateWord{BaseFrequency: 1000, UserFrequency: 5}, cfg)
	boosted := CombinedScore(CandidateWord{BaseFrequency: 1000, UserFrequency: 50}, cfg)
	require.Greater(t, boosted, base)
}

func TestSortCandidatesOrdersByCombinedScoreDesc(t *testing.T) {
	fs := newTestStore(t)
	fs.RecordSelection("你好", "ni hao")
	fs.RecordSelection("你好", "ni hao")
	for i := 0; i < 100; i++ {
		fs.RecordSelection("你好", "ni hao")
	}

	cands := []CandidateWord{
		{Text: "你好", BaseFrequency: 100, SourcePriority: 10},
		{Text: "拟好", BaseFrequency: 99999, SourcePriority: 10},
	}
	fs.SortCandidates(cands, "ni hao")
	require.Equal(t, "你好", cands[0].Text)
}

func TestSortCandidatesTiebreaksOnSourcePriority(t *testing.T) {
	fs := newTestStore(t)
	cands := []CandidateWord{
		{Text: "a", BaseFrequency: 100, SourcePriority: 5},
		{Text: "b", BaseFrequency: 100, SourcePriority: 10},
	}
	fs.SortCandidates(cands, "x")
	require.Equal(t, "b", cands[0].Text)
}

func TestSetConfigPersistsAndAppliesImmediately(t *testing.T) {
	fs := newTestStore(t)
	cfg := fs.Config()
	cfg.UserWeight = 0.9
	cfg.BaseWeight = 0.1
	require.NoError(t, fs.SetConfig(cfg))
	require.Equal(t, 0.9, fs.Config().UserWeight)
}

func TestImportSetsExactFrequencyNotIncremental(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, fs.Import("你好", "ni hao", 42))
	require.NoError(t, fs.Import("你好", "ni hao", 42))
	require.EqualValues(t, 42, fs.GetUserFrequency("你好", "ni hao"))
}

func TestExportIteratesAllRows(t *testing.T) {
	fs := newTestStore(t)
	fs.RecordSelection("你好", "ni hao")
	fs.RecordSelection("吗", "ma")

	var seen []string
	require.NoError(t, fs.Export(func(r storage.UserFreqRow) {
		seen = append(seen, r.Word)
	}))
	require.ElementsMatch(t, []string{"你好", "吗"}, seen)
}

func TestClearAllRemovesEverything(t *testing.T) {
	fs := newTestStore(t)
	fs.RecordSelection("你好", "ni hao")
	require.NoError(t, fs.ClearAll())
	require.EqualValues(t, 0, fs.GetUserFrequency("你好", "ni hao"))
}

func TestCleanupBelowRemovesLowFrequencyWords(t *testing.T) {
	fs := newTestStore(t)
	fs.RecordSelection("a", "a")
	for i := 0; i < 5; i++ {
		fs.RecordSelection("b", "b")
	}
	n, err := fs.CleanupBelow(3)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.EqualValues(t, 0, fs.GetUserFrequency("a", "a"))
	require.EqualValues(t, 5, fs.GetUserFrequency("b", "b"))
}
