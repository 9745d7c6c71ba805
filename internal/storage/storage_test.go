package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "core.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDictMetaRoundTrip(t *testing.T) {
	s := openTest(t)

	m := DictMeta{ID: "base", Name: "Base", Type: DictBase, Priority: 10, Enabled: true}
	require.NoError(t, s.SaveDictMeta(m))

	got, err := s.GetDictMeta("base")
	require.NoError(t, err)
	require.Equal(t, m.Name, got.Name)
	require.Equal(t, m.Priority, got.Priority)
	require.True(t, got.Enabled)

	require.NoError(t, s.SetEnabled("base", false))
	got, err = s.GetDictMeta("base")
	require.NoError(t, err)
	require.False(t, got.Enabled)

	require.NoError(t, s.SetPriority("base", 5))
	got, _ = s.GetDictMeta("base")
	require.EqualValues(t, 5, got.Priority)

	require.NoError(t, s.DeleteDictMeta("base"))
	_, err = s.GetDictMeta("base")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListDictsSortedByPriority(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SaveDictMeta(DictMeta{ID: "b", Priority: 5, Enabled: true}))
	require.NoError(t, s.SaveDictMeta(DictMeta{ID: "a", Priority: 5, Enabled: true}))
	require.NoError(t, s.SaveDictMeta(DictMeta{ID: "c", Priority: 10, Enabled: false}))

	all, err := s.ListAllDicts()
	require.NoError(t, err)
	require.Equal(t, []string{"c", "a", "b"}, ids(all))

	enabled, err := s.ListEnabledDicts()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids(enabled))
}

func ids(ms []DictMeta) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

func TestIncrementAndGetFreq(t *testing.T) {
	s := openTest(t)

	freq, err := s.Increment("你", "ni")
	require.NoError(t, err)
	require.EqualValues(t, 1, freq)

	freq, err = s.Increment("你", "ni")
	require.NoError(t, err)
	require.EqualValues(t, 2, freq)

	got, err := s.GetFreq("你", "ni")
	require.NoError(t, err)
	require.EqualValues(t, 2, got)

	missing, err := s.GetFreq("不存在", "bucunzai")
	require.NoError(t, err)
	require.EqualValues(t, 0, missing)
}

func TestSetFreqIsExactNotIncremental(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SetFreq("好", "hao", 42))
	got, err := s.GetFreq("好", "hao")
	require.NoError(t, err)
	require.EqualValues(t, 42, got)

	require.NoError(t, s.SetFreq("好", "hao", 7))
	got, err = s.GetFreq("好", "hao")
	require.NoError(t, err)
	require.EqualValues(t, 7, got)
}

func TestTopByPinyinOrdering(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SetFreq("你", "ni", 5))
	require.NoError(t, s.SetFreq("泥", "ni", 50))
	require.NoError(t, s.SetFreq("尼", "ni", 20))

	top, err := s.TopByPinyin("ni", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "泥", top[0].Word)
	require.Equal(t, "尼", top[1].Word)
}

func TestCleanupBelowAndUnused(t *testing.T) {
	s := openTest(t)
	require.NoError(t, s.SetFreq("a", "a", 1))
	require.NoError(t, s.SetFreq("b", "b", 10))

	n, err := s.CleanupBelow(5)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	got, _ := s.GetFreq("b", "b")
	require.EqualValues(t, 10, got)

	n, err = s.CleanupUnused(-1)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestConfigDefaultsSeeded(t *testing.T) {
	s := openTest(t)
	v, err := s.Get("input.default_mode", "fallback")
	require.NoError(t, err)
	require.Equal(t, "chinese", v)

	require.NoError(t, s.Set("input.default_mode", "english"))
	v, err = s.Get("input.default_mode", "fallback")
	require.NoError(t, err)
	require.Equal(t, "english", v)

	missing, err := s.Get("does.not.exist", "fallback")
	require.NoError(t, err)
	require.Equal(t, "fallback", missing)
}

func TestDownloadTaskLifecycle(t *testing.T) {
	s := openTest(t)
	task := DownloadTask{DictID: "ext1", Version: "2", URL: "https://example.test/d", Status: DownloadPending}
	require.NoError(t, s.SaveTask(task))

	got, err := s.GetTask("ext1")
	require.NoError(t, err)
	require.Equal(t, DownloadPending, got.Status)

	require.NoError(t, s.UpdateProgress("ext1", 1024, DownloadDownloading))
	pending, err := s.ListNonTerminal()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.EqualValues(t, 1024, pending[0].DownloadedSize)

	require.NoError(t, s.DeleteTask("ext1"))
	_, err = s.GetTask("ext1")
	require.ErrorIs(t, err, ErrNotFound)
}
