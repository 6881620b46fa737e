package daemon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/xgrab/internal/daemon/events"
	"git.home.luguber.info/inful/xgrab/internal/model"
)

func next(t *testing.T, ch <-chan events.Typed) events.Typed {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestEventBridge(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	ch, unsubscribe := events.Subscribe[events.Typed](bus, 16)
	defer unsubscribe()

	servers, files, searches := model.NewServerSet(), model.NewFileSet(), model.NewSearchSet()
	bridge := NewEventBridge(bus, servers, files, searches)

	srv := servers.AddServer("irc.example.net", 6667)
	added, ok := next(t, ch).(events.ObjectAdded)
	require.True(t, ok)
	assert.Equal(t, "servers", added.Parent.Kind)
	assert.Equal(t, events.Ref{ID: srv.ID(), Name: "irc.example.net", Kind: "server"}, added.Object)

	srv.SetPort(7000)
	servers.Servers().Remove(srv)
	removed, ok := next(t, ch).(events.ObjectRemoved)
	require.True(t, ok)
	assert.Equal(t, srv.ID(), removed.Object.ID)

	f := files.AddFile("a.bin", 10)
	fileAdded, ok := next(t, ch).(events.FileAdded)
	require.True(t, ok)
	assert.EqualValues(t, 10, fileAdded.Size)

	part := f.AddPart(0, 10)
	part.SetCurrentSize(5)
	part.SetState(model.PartReady)
	changed, ok := next(t, ch).(events.FilePartStateChanged)
	require.True(t, ok)
	assert.Equal(t, f.ID(), changed.File.ID)
	assert.Equal(t, "file_part", changed.Part.Kind)
	assert.Equal(t, "ready", changed.State)

	search, _ := searches.AddSearch("debian")
	searchAdded, ok := next(t, ch).(events.SearchAdded)
	require.True(t, ok)
	assert.Equal(t, search.ID(), searchAdded.Search.ID)

	bridge.Close()
	files.AddFile("b.bin", 1)
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event after close: %v", evt.EventType())
	case <-time.After(50 * time.Millisecond):
	}
}
