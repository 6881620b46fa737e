package daemon

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
	"git.home.luguber.info/inful/xgrab/internal/notice"
	"git.home.luguber.info/inful/xgrab/internal/transport"
)

func TestDispatchRequestAfterRequestsOldestPacket(t *testing.T) {
	servers, bot := seedBot(9, 4)
	sender := &recordingSender{}
	d := newTestDispatcher(t, servers, sender)

	src := Source{Server: "irc.example.net", Nick: "Bot1", Bot: bot}
	require.NoError(t, d.Dispatch(t.Context(), src, notice.Intent{Kind: notice.RequestAfter, Delay: fastTiming.CommandWait}))
	assert.True(t, d.scheduler.Pending(bot.ID()))

	require.Eventually(t, func() bool { return len(sender.commands()) == 1 }, waitFor, tick)
	assert.Equal(t, transport.Command{
		Action:  transport.ActionRequestPacket,
		Server:  "irc.example.net",
		Nick:    "Bot1",
		Channel: "#files",
		Packet:  4,
	}, sender.commands()[0])
}

func TestDispatchRequestAfterNeedsBot(t *testing.T) {
	servers, _ := seedBot()
	d := newTestDispatcher(t, servers, &recordingSender{})

	err := d.Dispatch(t.Context(), Source{Server: "irc.example.net", Nick: "Stranger"}, notice.Intent{Kind: notice.RequestAfter})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryInternal))
}

func TestRequestNowSkipsBotWithoutWork(t *testing.T) {
	servers, bot := seedBot(3)
	bot.Packet(3).SetEnabled(false)
	sender := &recordingSender{}
	d := newTestDispatcher(t, servers, sender)

	require.NoError(t, d.RequestNow(t.Context(), bot))

	bot.Channel().Bots().Remove(bot)
	bot.Packet(3).SetEnabled(true)
	require.NoError(t, d.RequestNow(t.Context(), bot))
	assert.Empty(t, sender.commands())
}

func TestDispatchDirectCommands(t *testing.T) {
	servers, bot := seedBot(1)
	sender := &recordingSender{}
	d := newTestDispatcher(t, servers, sender)
	src := Source{Server: "irc.example.net", Nick: "Bot1", Bot: bot}

	require.NoError(t, d.Dispatch(t.Context(), src, notice.Intent{Kind: notice.Unrequest}))
	require.NoError(t, d.Dispatch(t.Context(), src, notice.Intent{Kind: notice.RemoveActiveTransfer}))
	require.NoError(t, d.Dispatch(t.Context(), src, notice.Intent{Kind: notice.DisableListing}))

	assert.Equal(t, []transport.Action{
		transport.ActionUnrequest,
		transport.ActionRemoveTransfer,
		transport.ActionDisableListing,
	}, sender.actions())
}

func TestDispatchJoinChannelAddsChannel(t *testing.T) {
	servers, bot := seedBot()
	sender := &recordingSender{}
	d := newTestDispatcher(t, servers, sender)

	src := Source{Server: "irc.example.net", Nick: "Bot1", Bot: bot}
	require.NoError(t, d.Dispatch(t.Context(), src, notice.Intent{Kind: notice.JoinChannel, Channel: "extra"}))

	assert.NotNil(t, servers.Server("irc.example.net").Channel("#extra"))
	assert.Equal(t, []transport.Command{{Action: transport.ActionJoinChannel, Server: "irc.example.net", Channel: "#extra"}}, sender.commands())
}

func TestDispatchJoinChannelsSkipsConnectedAndDisabled(t *testing.T) {
	servers, bot := seedBot()
	srv := servers.Server("irc.example.net")
	srv.Channel("#files").SetConnected(true)
	srv.AddChannel("#new")
	srv.AddChannel("#off").SetEnabled(false)

	sender := &recordingSender{}
	d := newTestDispatcher(t, servers, sender)
	require.NoError(t, d.Dispatch(t.Context(), Source{Server: "irc.example.net", Nick: "Bot1", Bot: bot}, notice.Intent{Kind: notice.JoinChannels}))

	assert.Equal(t, []transport.Command{{Action: transport.ActionJoinChannel, Server: "irc.example.net", Channel: "#new"}}, sender.commands())

	err := d.Dispatch(t.Context(), Source{Server: "irc.unknown.net"}, notice.Intent{Kind: notice.JoinChannels})
	assert.True(t, errors.IsNotFound(err))
}

func TestDispatchListDetectedDisablesListingLater(t *testing.T) {
	servers, _ := seedBot()
	sender := &recordingSender{}
	d := newTestDispatcher(t, servers, sender)

	src := Source{Server: "irc.example.net", Nick: "Relay"}
	require.NoError(t, d.Dispatch(t.Context(), src, notice.Intent{Kind: notice.XdccListDetected, Nick: "Lister"}))
	assert.True(t, d.scheduler.PendingTag(listTag("irc.example.net", "lister")))

	require.Eventually(t, func() bool { return len(sender.commands()) == 2 }, waitFor, tick)
	cmds := sender.commands()
	assert.Equal(t, transport.Command{Action: transport.ActionRequestList, Server: "irc.example.net", Nick: "Lister"}, cmds[0])
	assert.Equal(t, transport.Command{Action: transport.ActionDisableListing, Server: "irc.example.net", Nick: "Lister"}, cmds[1])
}

func TestDispatchPropagatesSendErrors(t *testing.T) {
	servers, bot := seedBot()
	sender := &recordingSender{fail: stderrors.New("offline")}
	d := newTestDispatcher(t, servers, sender)

	err := d.Dispatch(t.Context(), Source{Server: "irc.example.net", Nick: "Bot1", Bot: bot}, notice.Intent{Kind: notice.Unrequest})
	require.EqualError(t, err, "offline")
}
