package transport

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/xgrab/internal/config"
	"git.home.luguber.info/inful/xgrab/internal/daemon/events"
	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
	"git.home.luguber.info/inful/xgrab/internal/retry"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu       sync.Mutex
	msgs     []published
	handlers map[string]nats.MsgHandler
	fail     error
	drained  bool
}

func newFakeConn() *fakeConn { return &fakeConn{handlers: map[string]nats.MsgHandler{}} }

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.msgs = append(c.msgs, published{subject: subject, data: data})
	return nil
}

func (c *fakeConn) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[subject] = cb
	return &nats.Subscription{Subject: subject}, nil
}

func (c *fakeConn) Drain() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drained = true
	return nil
}

func (c *fakeConn) published() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.msgs...)
}

func TestSendPublishesCommand(t *testing.T) {
	conn := newFakeConn()
	n := NewNATS(conn, "grab.", nil)

	require.NoError(t, n.Send(t.Context(), Command{Action: ActionRequestPacket, Server: "irc.example.org", Nick: "Bot1", Packet: 7}))

	msgs := conn.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, "grab.command", msgs[0].subject)
	assert.JSONEq(t, `{"action":"request_packet","server":"irc.example.org","nick":"Bot1","packet":7}`, string(msgs[0].data))
}

func TestSendWrapsTransportErrors(t *testing.T) {
	conn := newFakeConn()
	conn.fail = stderrors.New("connection closed")
	n := NewNATS(conn, "grab", nil)

	err := n.Send(t.Context(), Command{Action: ActionUnrequest, Server: "s"})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryTransport))
}

func TestSubscribeNotices(t *testing.T) {
	conn := newFakeConn()
	n := NewNATS(conn, "grab", nil)

	var got []Notice
	require.NoError(t, n.SubscribeNotices(func(nt Notice) { got = append(got, nt) }))

	handler := conn.handlers["grab.notice"]
	require.NotNil(t, handler)
	handler(&nats.Msg{Subject: "grab.notice", Data: []byte(`{"server":"s","nick":"Bot1","text":"hello"}`)})
	handler(&nats.Msg{Subject: "grab.notice", Data: []byte(`not json`)})
	handler(&nats.Msg{Subject: "grab.notice", Data: []byte(`{"server":"s","text":"no nick"}`)})

	require.Equal(t, []Notice{{Server: "s", Nick: "Bot1", Text: "hello"}}, got)
}

func TestForwardEvents(t *testing.T) {
	conn := newFakeConn()
	n := NewNATS(conn, "grab", nil)
	bus := events.NewBus()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.ForwardEvents(ctx, bus)
	}()

	require.Eventually(t, func() bool { return events.SubscriberCount[events.Typed](bus) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, bus.Offer(events.SearchAdded{Search: events.Ref{Name: "debian", Kind: "search"}}))

	require.Eventually(t, func() bool { return len(conn.published()) == 1 }, time.Second, 5*time.Millisecond)
	msg := conn.published()[0]
	assert.Equal(t, "grab.event.search_added", msg.subject)

	var decoded events.SearchAdded
	require.NoError(t, json.Unmarshal(msg.data, &decoded))
	assert.Equal(t, "debian", decoded.Search.Name)

	cancel()
	<-done
	require.NoError(t, n.Close())
	assert.True(t, conn.drained)
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, LogSender{}.Send(t.Context(), Command{Action: ActionJoinChannel, Server: "s", Channel: "#c"}))
}

func TestSubscribeOffersAndProgress(t *testing.T) {
	conn := newFakeConn()
	n := NewNATS(conn, "grab", nil)

	var offers []Offer
	var progress []Progress
	require.NoError(t, n.SubscribeOffers(func(o Offer) { offers = append(offers, o) }))
	require.NoError(t, n.SubscribeProgress(func(p Progress) { progress = append(progress, p) }))

	conn.handlers["grab.offer"](&nats.Msg{Data: []byte(`{"server":"s","channel":"#c","nick":"Bot1","packet":3,"name":"a.bin","size":10}`)})
	conn.handlers["grab.offer"](&nats.Msg{Data: []byte(`{"server":"s","channel":"#c","nick":"Bot1","packet":0}`)})
	conn.handlers["grab.progress"](&nats.Msg{Data: []byte(`{"file":"a.bin","size":10,"start":0,"stop":10,"current":4,"state":"open","speed":2}`)})
	conn.handlers["grab.progress"](&nats.Msg{Data: []byte(`{"file":"a.bin","size":10,"start":5,"stop":5}`)})

	require.Len(t, offers, 1)
	assert.Equal(t, 3, offers[0].Packet)
	require.Len(t, progress, 1)
	assert.EqualValues(t, 4, progress[0].Current)
}

type flakySender struct {
	failures int
	err      error
	calls    int
}

func (s *flakySender) Send(context.Context, Command) error {
	s.calls++
	if s.calls <= s.failures {
		return s.err
	}
	return nil
}

func TestRetrySender(t *testing.T) {
	policy := retry.NewPolicy(config.RetryBackoffLinear, 10*time.Millisecond, time.Second, 2)
	var slept []time.Duration
	noSleep := func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	next := &flakySender{failures: 2, err: stderrors.New("reconnecting")}
	r := &RetrySender{Next: next, Policy: policy, Sleep: noSleep}
	require.NoError(t, r.Send(t.Context(), Command{Action: ActionRequestPacket, Server: "s"}))
	assert.Equal(t, 3, next.calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, slept)

	next = &flakySender{failures: 5, err: stderrors.New("down")}
	r = &RetrySender{Next: next, Policy: policy, Sleep: noSleep}
	require.EqualError(t, r.Send(t.Context(), Command{Action: ActionUnrequest}), "down")
	assert.Equal(t, 3, next.calls)

	next = &flakySender{failures: 5, err: errors.ValidationError("bad command").Build()}
	r = &RetrySender{Next: next, Policy: policy, Sleep: noSleep}
	require.Error(t, r.Send(t.Context(), Command{}))
	assert.Equal(t, 1, next.calls)
}

func TestRetrySenderStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	next := &flakySender{failures: 5, err: stderrors.New("down")}
	r := NewRetrySender(next, retry.NewPolicy(config.RetryBackoffFixed, time.Hour, time.Hour, 3))

	err := r.Send(ctx, Command{Action: ActionJoinChannel})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryTransport))
	assert.Equal(t, 1, next.calls)
}
