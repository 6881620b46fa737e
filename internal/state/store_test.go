package state

import (
	"context"
	stderrors "errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/xgrab/internal/model"
)

// countingBackend records every save and keeps the last snapshot per kind.
type countingBackend struct {
	mu    sync.Mutex
	inner Backend
	saves map[Kind]int
	last  map[Kind]any
	fail  atomic.Bool
}

func newCountingBackend(inner Backend) *countingBackend {
	return &countingBackend{inner: inner, saves: map[Kind]int{}, last: map[Kind]any{}}
}

func (c *countingBackend) Save(kind Kind, v any) error {
	if c.fail.Load() {
		return stderrors.New("disk full")
	}
	c.mu.Lock()
	c.saves[kind]++
	c.last[kind] = v
	c.mu.Unlock()
	if c.inner == nil {
		return nil
	}
	return c.inner.Save(kind, v)
}

func (c *countingBackend) Load(kind Kind, v any) error {
	if c.inner == nil {
		return stderrors.New("empty")
	}
	return c.inner.Load(kind, v)
}

func (c *countingBackend) count(kind Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves[kind]
}

func (c *countingBackend) lastFiles() model.FileSetSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last[KindFiles].(model.FileSetSnapshot)
}

func TestStoreRoundTripResetsTransient(t *testing.T) {
	fb, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	s := Open(fb, Options{})
	srv := s.Servers().AddServer("irc.example.net", 6667)
	bot := srv.AddChannel("#files").AddBot("Bot1")
	bot.AddPacket(3, "a.mkv", 1000)
	bot.SetState(model.Waiting)
	bot.SetConnected(true)
	bot.SetInfoQueueTotal(9)
	f := s.Files().AddFile("a.mkv", 1000)
	f.AddPart(0, 1000).SetCurrentSize(400)
	s.Searches().AddSearch("ubuntu")
	require.NoError(t, s.Close())

	reopened := Open(fb, Options{})
	rsrv := reopened.Servers().Server("irc.example.net")
	require.NotNil(t, rsrv)
	require.Equal(t, srv.ID(), rsrv.ID())
	rbot := rsrv.Bot("Bot1")
	require.NotNil(t, rbot)
	require.Equal(t, bot.ID(), rbot.ID())
	require.Equal(t, model.Idle, rbot.State())
	require.False(t, rbot.Connected())
	require.Equal(t, 9, rbot.InfoQueueTotal())
	require.NotNil(t, rbot.Packet(3))

	rf := reopened.Files().File("a.mkv", 1000)
	require.NotNil(t, rf)
	require.EqualValues(t, 400, rf.CurrentSize())
	require.NotNil(t, reopened.Searches().Search("ubuntu"))
}

func TestStoreStartsEmptyOnLoadFailure(t *testing.T) {
	s := Open(newCountingBackend(nil), Options{})
	require.Zero(t, s.Servers().Servers().Len())
	require.Zero(t, s.Files().Files().Len())
	require.Zero(t, s.Searches().Searches().Len())
}

func TestOpenFallsBackToBackupWhenPrimaryCannotBeRestored(t *testing.T) {
	fb, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	s := Open(fb, Options{})
	s.Servers().AddServer("irc.example.net", 6667).AddChannel("#files").AddBot("Bot1")
	require.NoError(t, s.Save(KindServers))
	require.NoError(t, s.Save(KindServers))
	require.NoError(t, s.Close())

	bad := `{"servers":[{"name":"irc.example.net","port":6667,"channels":[{"name":"#files","bots":[{"name":"Bot1","state":"bogus","packets":[]}]}]}]}`
	require.NoError(t, os.WriteFile(fb.Path(KindServers), []byte(bad), 0o644))

	reopened := Open(fb, Options{})
	srv := reopened.Servers().Server("irc.example.net")
	require.NotNil(t, srv)
	require.NotNil(t, srv.Bot("Bot1"))
	require.Equal(t, model.Idle, srv.Bot("Bot1").State())
}

func TestSaveKeepsChangesMadeDuringWrite(t *testing.T) {
	var bot *model.Bot
	backend := &hookBackend{}
	s := Open(backend, Options{})
	bot = s.Servers().AddServer("irc.example.net", 6667).AddChannel("#files").AddBot("Bot1")
	backend.onSave = func() { bot.SetQueuePosition(7) }

	require.NoError(t, s.Save(KindServers))
	require.True(t, bot.Modified())

	backend.onSave = nil
	require.NoError(t, s.Save(KindServers))
	require.False(t, bot.Modified())
}

// hookBackend runs onSave in the middle of every write.
type hookBackend struct {
	onSave func()
}

func (h *hookBackend) Save(Kind, any) error {
	if h.onSave != nil {
		h.onSave()
	}
	return nil
}

func (h *hookBackend) Load(Kind, any) error { return stderrors.New("empty") }

func TestStructuralEventsSaveImmediately(t *testing.T) {
	cb := newCountingBackend(nil)
	s := Open(cb, Options{})

	srv := s.Servers().AddServer("irc.example.net", 6667)
	require.Equal(t, 1, cb.count(KindServers))
	ch := srv.AddChannel("#files")
	require.Equal(t, 2, cb.count(KindServers))

	// bot and value changes wait for the periodic save
	ch.AddBot("Bot1").SetState(model.Waiting)
	srv.SetErrorCode(3)
	require.Equal(t, 2, cb.count(KindServers))

	s.Searches().AddSearch("debian")
	require.Equal(t, 1, cb.count(KindSearches))
	s.Searches().RemoveSearch("debian")
	require.Equal(t, 2, cb.count(KindSearches))
}

func TestTerminalPartStateSavesImmediately(t *testing.T) {
	cb := newCountingBackend(nil)
	s := Open(cb, Options{})

	part := s.Files().AddFile("a", 10).AddPart(0, 10)
	require.Equal(t, 2, cb.count(KindFiles))

	part.SetCurrentSize(10)
	require.Equal(t, 2, cb.count(KindFiles))
	require.True(t, s.FilesDirty())

	part.SetState(model.PartReady)
	require.Equal(t, 3, cb.count(KindFiles))
	require.False(t, s.FilesDirty(), "an immediate save drains the dirty signal")
}

func TestSpeedUpdatesCoalesceIntoStructuralSave(t *testing.T) {
	cb := newCountingBackend(nil)
	s := Open(cb, Options{})

	keep := s.Files().AddFile("keep.mkv", 1000)
	part := keep.AddPart(0, 1000)
	drop := s.Files().AddFile("drop.mkv", 1000)
	base := cb.count(KindFiles)

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			part.SetSpeed(int64(i))
		}()
	}
	wg.Wait()
	part.SetSpeed(4242)
	require.Equal(t, base, cb.count(KindFiles))

	require.True(t, s.Files().Files().Remove(drop))
	require.Equal(t, base+1, cb.count(KindFiles))

	snap := cb.lastFiles()
	require.Len(t, snap.Files, 1)
	require.Equal(t, keep.ID(), snap.Files[0].ID)
	require.EqualValues(t, 4242, snap.Files[0].Parts[0].Speed)
	require.False(t, s.FilesDirty())
}

func TestFailedFilesSaveRearmsDirty(t *testing.T) {
	cb := newCountingBackend(nil)
	s := Open(cb, Options{})
	part := s.Files().AddFile("a", 10).AddPart(0, 10)

	cb.fail.Store(true)
	part.SetSpeed(5)
	require.Error(t, s.Save(KindFiles))
	require.True(t, s.FilesDirty())

	cb.fail.Store(false)
	require.NoError(t, s.Save(KindFiles))
	require.False(t, s.FilesDirty())
	_, ok := s.LastSaved(KindFiles)
	require.True(t, ok)
}

func TestRunSavesPeriodicallyAndOnShutdown(t *testing.T) {
	cb := newCountingBackend(nil)
	var statsCalls atomic.Int32
	s := Open(cb, Options{
		TickInterval:        5 * time.Millisecond,
		BackupDataInterval:  10 * time.Millisecond,
		BackupStatsInterval: 10 * time.Millisecond,
		StatsSink:           func(context.Context) { statsCalls.Add(1) },
	})
	part := s.Files().AddFile("a", 10).AddPart(0, 10)
	filesBefore := cb.count(KindFiles)
	part.SetSpeed(77)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return cb.count(KindServers) > 0 && cb.count(KindFiles) > filesBefore && statsCalls.Load() > 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	final := cb.count(KindSearches)
	require.GreaterOrEqual(t, final, 1, "shutdown saves every aggregate")

	// observers are detached after Close
	s.Searches().AddSearch("late")
	require.Equal(t, final, cb.count(KindSearches))
	require.NoError(t, s.Close())
}

func TestOpenPrunesDuplicatesFromSnapshot(t *testing.T) {
	fb, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	dup := model.ServerSetSnapshot{Servers: []model.ServerData{
		{ObjectData: model.ObjectData{Name: "irc.example.net"}},
		{ObjectData: model.ObjectData{Name: "irc.example.net"}},
	}}
	dup.Servers[0].ID = [16]byte{1}
	dup.Servers[1].ID = [16]byte{2}
	require.NoError(t, fb.Save(KindServers, dup))

	s := Open(fb, Options{})
	require.Equal(t, 1, s.Servers().Servers().Len())
	require.Equal(t, [16]byte{1}, [16]byte(s.Servers().Servers().All()[0].ID()))
}
