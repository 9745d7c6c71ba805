package orchestrator

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bastiangx/imecore/pkg/session"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	clock := int64(0)
	o := New(nil, func() int64 { clock++; return clock })
	t.Cleanup(func() { o.Shutdown() })

	err := o.Init(Paths{
		DBPath:  filepath.Join(t.TempDir(), "core.db"),
		DataDir: t.TempDir(),
	})
	require.NoError(t, err)
	return o
}

func TestFocusInOutLifecycle(t *testing.T) {
	o := newTestOrchestrator(t)
	o.FocusIn("doc1")
	require.Equal(t, session.Chinese, o.Mode("doc1"))

	o.ToggleMode("doc1")
	require.Equal(t, session.English, o.Mode("doc1"))

	o.FocusOut("doc1")
	require.Equal(t, session.Chinese, o.Mode("doc1-missing"))
}

func TestProcessKeyRoutesToSession(t *testing.T) {
	o := newTestOrchestrator(t)
	o.FocusIn("doc1")
	out := o.ProcessKey("doc1", session.KeyEvent{Type: session.KeyLetter, Char: 'n'})
	require.Equal(t, session.UpdateHideCandidates, out.Kind)
}

func TestProcessKeyOnUnknownFocusPassesThrough(t *testing.T) {
	o := newTestOrchestrator(t)
	out := o.ProcessKey("ghost", session.KeyEvent{Type: session.KeyLetter, Char: 'n'})
	require.Equal(t, session.PassThrough, out.Kind)
}

func TestPendingDownloadsPassthrough(t *testing.T) {
	o := newTestOrchestrator(t)
	tasks, err := o.PendingDownloads()
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestFocusOutPersistsMode(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "core.db")
	o := New(nil, func() int64 { return 0 })
	require.NoError(t, o.Init(Paths{DBPath: dbPath, DataDir: t.TempDir()}))
	o.FocusIn("doc1")
	o.SetMode("doc1", session.English)
	o.FocusOut("doc1")
	require.NoError(t, o.Shutdown())

	o2 := New(nil, func() int64 { return 0 })
	require.NoError(t, o2.Init(Paths{DBPath: dbPath, DataDir: t.TempDir()}))
	defer o2.Shutdown()
	o2.FocusIn("doc2")
	require.Equal(t, session.English, o2.Mode("doc2"))
}
