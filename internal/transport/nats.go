package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/xgrab/internal/daemon/events"
	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
	"git.home.luguber.info/inful/xgrab/internal/logfields"
	"git.home.luguber.info/inful/xgrab/internal/metrics"
)

// Conn is the subset of *nats.Conn the bridge uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	Drain() error
}

// NATS bridges commands, notices and events over a NATS connection.
type NATS struct {
	conn     Conn
	prefix   string
	recorder metrics.Recorder
	subs     []*nats.Subscription
}

// Connect dials url and returns a bridge publishing under prefix.
func Connect(url, prefix string, recorder metrics.Recorder, opts ...nats.Option) (*NATS, error) {
	opts = append([]nats.Option{nats.Name("xgrab")}, opts...)
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryTransport, "failed to connect to NATS").
			WithContext("url", url).Build()
	}
	slog.Info("NATS transport connected", slog.String("url", url), logfields.Subject(prefix+".>"))
	return NewNATS(conn, prefix, recorder), nil
}

// NewNATS wraps an existing connection.
func NewNATS(conn Conn, prefix string, recorder metrics.Recorder) *NATS {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &NATS{conn: conn, prefix: strings.TrimSuffix(prefix, "."), recorder: recorder}
}

func (n *NATS) NoticeSubject() string  { return n.prefix + ".notice" }
func (n *NATS) CommandSubject() string { return n.prefix + ".command" }

// EventSubject returns the subject an event of the given type is published on.
func (n *NATS) EventSubject(eventType string) string { return n.prefix + ".event." + eventType }

// Send publishes cmd as JSON on the command subject.
func (n *NATS) Send(_ context.Context, cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal command").Build()
	}
	err = n.conn.Publish(n.CommandSubject(), data)
	n.recorder.IncTransportMessage("out", metrics.ResultOf(err))
	if err != nil {
		return errors.WrapError(err, errors.CategoryTransport, "failed to publish command").
			WithContext("action", string(cmd.Action)).Build()
	}
	return nil
}

func (n *NATS) OfferSubject() string    { return n.prefix + ".offer" }
func (n *NATS) ProgressSubject() string { return n.prefix + ".progress" }

// SubscribeNotices calls handle for every well-formed notice. Malformed
// messages are logged and dropped.
func (n *NATS) SubscribeNotices(handle func(Notice)) error {
	return subscribeJSON(n, n.NoticeSubject(), func(v Notice) bool { return v.Nick != "" }, handle)
}

// SubscribeOffers calls handle for every announced packet.
func (n *NATS) SubscribeOffers(handle func(Offer)) error {
	return subscribeJSON(n, n.OfferSubject(), func(v Offer) bool {
		return v.Server != "" && v.Channel != "" && v.Nick != "" && v.Packet > 0
	}, handle)
}

// SubscribeProgress calls handle for every transfer progress report.
func (n *NATS) SubscribeProgress(handle func(Progress)) error {
	return subscribeJSON(n, n.ProgressSubject(), func(v Progress) bool {
		return v.File != "" && v.Size > 0 && v.Stop > v.Start
	}, handle)
}

func subscribeJSON[T any](n *NATS, subject string, valid func(T) bool, handle func(T)) error {
	sub, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		err := json.Unmarshal(msg.Data, &v)
		if err != nil || !valid(v) {
			n.recorder.IncTransportMessage("in", metrics.ResultFailed)
			slog.Warn("Dropping malformed message", logfields.Subject(msg.Subject), logfields.Error(err))
			return
		}
		n.recorder.IncTransportMessage("in", metrics.ResultSuccess)
		handle(v)
	})
	if err != nil {
		return errors.WrapError(err, errors.CategoryTransport, "failed to subscribe").
			WithContext("subject", subject).Build()
	}
	n.subs = append(n.subs, sub)
	return nil
}

// ForwardEvents publishes every typed bus event until ctx is done or the bus
// closes.
func (n *NATS) ForwardEvents(ctx context.Context, bus *events.Bus) {
	ch, unsubscribe := events.Subscribe[events.Typed](bus, 256)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			n.publishEvent(evt)
		}
	}
}

func (n *NATS) publishEvent(evt events.Typed) {
	data, err := json.Marshal(evt)
	if err == nil {
		err = n.conn.Publish(n.EventSubject(evt.EventType()), data)
	}
	n.recorder.IncTransportMessage("event", metrics.ResultOf(err))
	if err != nil {
		slog.Warn("Failed to publish event", slog.String("type", evt.EventType()), logfields.Error(err))
	}
}

// Close drains subscriptions and the connection.
func (n *NATS) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
