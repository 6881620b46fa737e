package daemon

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
	"git.home.luguber.info/inful/xgrab/internal/logfields"
	"git.home.luguber.info/inful/xgrab/internal/metrics"
	"git.home.luguber.info/inful/xgrab/internal/model"
	"git.home.luguber.info/inful/xgrab/internal/notice"
	"git.home.luguber.info/inful/xgrab/internal/transport"
)

// Source identifies who sent the notice an intent came from. Bot is nil for
// senders that are not known bots.
type Source struct {
	Server string
	Nick   string
	Bot    *model.Bot
}

// Dispatcher executes classifier intents through the scheduler and transport.
type Dispatcher struct {
	ctx       context.Context
	scheduler *Scheduler
	sender    transport.Sender
	servers   *model.ServerSet
	timing    func() notice.Timing
	recorder  metrics.Recorder
}

// NewDispatcher returns a dispatcher. Delayed requests run with ctx.
func NewDispatcher(ctx context.Context, scheduler *Scheduler, sender transport.Sender, servers *model.ServerSet, timing func() notice.Timing, recorder metrics.Recorder) *Dispatcher {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Dispatcher{
		ctx:       ctx,
		scheduler: scheduler,
		sender:    sender,
		servers:   servers,
		timing:    timing,
		recorder:  recorder,
	}
}

func listTag(server, nick string) string {
	return "list:" + strings.ToLower(server) + "/" + strings.ToLower(nick)
}

// Dispatch executes one intent.
func (d *Dispatcher) Dispatch(ctx context.Context, src Source, in notice.Intent) error {
	d.recorder.IncIntent(in.Kind.String())
	slog.Debug("Dispatching intent", logfields.Intent(in.String()), logfields.Server(src.Server), logfields.Bot(src.Nick))

	switch in.Kind {
	case notice.RequestAfter:
		if src.Bot == nil {
			return errors.InternalError("request_after without a bot").Build()
		}
		bot := src.Bot
		return d.scheduler.RequestAfter(bot.ID(), in.Delay, func() {
			if err := d.RequestNow(d.ctx, bot); err != nil {
				slog.Error("Delayed packet request failed", logfields.Bot(bot.Name()), logfields.Error(err))
			}
		})

	case notice.Unrequest:
		return d.send(ctx, transport.Command{Action: transport.ActionUnrequest, Server: src.Server, Nick: src.Nick})

	case notice.RemoveActiveTransfer:
		return d.send(ctx, transport.Command{Action: transport.ActionRemoveTransfer, Server: src.Server, Nick: src.Nick})

	case notice.JoinChannel:
		name := model.NormalizeChannel(in.Channel)
		if srv := d.servers.Server(src.Server); srv != nil {
			srv.AddChannel(name)
		}
		return d.send(ctx, transport.Command{Action: transport.ActionJoinChannel, Server: src.Server, Channel: name})

	case notice.JoinChannels:
		return d.joinChannels(ctx, src.Server)

	case notice.XdccListDetected:
		nick := in.Nick
		if nick == "" {
			nick = src.Nick
		}
		if err := d.send(ctx, transport.Command{Action: transport.ActionRequestList, Server: src.Server, Nick: nick}); err != nil {
			return err
		}
		server := src.Server
		return d.scheduler.After(listTag(server, nick), d.timing().CommandWait, func() {
			if err := d.Dispatch(d.ctx, Source{Server: server, Nick: nick}, notice.Intent{Kind: notice.DisableListing}); err != nil {
				slog.Error("Disabling listing failed", logfields.Bot(nick), logfields.Error(err))
			}
		})

	case notice.DisableListing:
		return d.send(ctx, transport.Command{Action: transport.ActionDisableListing, Server: src.Server, Nick: src.Nick})
	}

	return errors.InternalError("unknown intent kind").WithContext("intent", in.String()).Build()
}

// RequestNow asks bot for its oldest active packet. A bot without one, or
// one no longer attached to a server, is skipped.
func (d *Dispatcher) RequestNow(ctx context.Context, bot *model.Bot) error {
	srv := bot.Server()
	if srv == nil {
		slog.Debug("Skipping request for detached bot", logfields.Bot(bot.Name()))
		return nil
	}
	p := bot.OldestActivePacket()
	if p == nil {
		slog.Debug("No active packet to request", logfields.Bot(bot.Name()))
		return nil
	}
	cmd := transport.Command{
		Action: transport.ActionRequestPacket,
		Server: srv.Name(),
		Nick:   bot.Name(),
		Packet: p.Number(),
	}
	if ch := bot.Channel(); ch != nil {
		cmd.Channel = ch.Name()
	}
	return d.send(ctx, cmd)
}

func (d *Dispatcher) joinChannels(ctx context.Context, server string) error {
	srv := d.servers.Server(server)
	if srv == nil {
		return errors.NotFoundError("server not found").WithContext("server", server).Build()
	}
	var errs []error
	for _, ch := range srv.Channels().All() {
		if !ch.Enabled() || ch.Connected() {
			continue
		}
		if err := d.send(ctx, transport.Command{Action: transport.ActionJoinChannel, Server: srv.Name(), Channel: ch.Name()}); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (d *Dispatcher) send(ctx context.Context, cmd transport.Command) error {
	return d.sender.Send(ctx, cmd)
}
