package daemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/xgrab/internal/model"
	"git.home.luguber.info/inful/xgrab/internal/notice"
	"git.home.luguber.info/inful/xgrab/internal/transport"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var fastTiming = notice.Timing{CommandWait: 30 * time.Millisecond, BotWait: 60 * time.Millisecond}

type recordingSender struct {
	mu   sync.Mutex
	cmds []transport.Command
	fail error
}

func (s *recordingSender) Send(_ context.Context, cmd transport.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.cmds = append(s.cmds, cmd)
	return nil
}

func (s *recordingSender) commands() []transport.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transport.Command(nil), s.cmds...)
}

func (s *recordingSender) actions() []transport.Action {
	var out []transport.Action
	for _, c := range s.commands() {
		out = append(out, c.Action)
	}
	return out
}

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := NewScheduler(nil)
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

// seedBot builds irc.example.net/#files/Bot1 with the given packets enabled.
func seedBot(packets ...int) (*model.ServerSet, *model.Bot) {
	servers := model.NewServerSet()
	bot := servers.AddServer("irc.example.net", 6667).AddChannel("#files").AddBot("Bot1")
	for _, n := range packets {
		bot.AddPacket(n, "", 100)
	}
	return servers, bot
}

func newTestDispatcher(t *testing.T, servers *model.ServerSet, sender transport.Sender) *Dispatcher {
	t.Helper()
	return NewDispatcher(t.Context(), newScheduler(t), sender, servers, func() notice.Timing { return fastTiming }, nil)
}
