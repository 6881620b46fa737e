package daemon

import (
	"time"

	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
	"git.home.luguber.info/inful/xgrab/internal/model"
	"git.home.luguber.info/inful/xgrab/internal/transport"
)

// defaultPort is used for servers first seen through an offer.
const defaultPort = 6667

// ApplyOffer records an advertised packet, creating the server, channel and
// bot as needed. New packets start disabled unless the offer requests them;
// a re-announced packet has its size refreshed and its mention time bumped.
func ApplyOffer(servers *model.ServerSet, o transport.Offer, now time.Time) *model.Packet {
	srv := servers.AddServer(o.Server, defaultPort)
	bot := srv.Bot(o.Nick)
	if bot == nil {
		bot = srv.AddChannel(o.Channel).AddBot(o.Nick)
	}
	isNew := bot.Packet(o.Packet) == nil
	p := bot.AddPacket(o.Packet, o.Name, o.Size)
	if isNew || o.Request {
		p.SetEnabled(o.Request)
	}
	if o.Size > 0 {
		p.SetSize(o.Size)
	}
	if o.Name != "" {
		p.SetName(o.Name)
	}
	p.SetLastMentioned(now)
	return p
}

// ApplyProgress updates the file part a transfer report refers to. Parts are
// keyed by their start offset.
func ApplyProgress(files *model.FileSet, pr transport.Progress) (*model.FilePart, error) {
	state, err := model.ParsePartState(pr.State)
	if err != nil {
		return nil, errors.ValidationError("unknown part state").
			WithContext("state", pr.State).WithCause(err).Build()
	}

	f := files.AddFile(pr.File, pr.Size)
	part := f.AddPart(pr.Start, pr.Stop)
	part.SetStopSize(pr.Stop)
	part.SetCurrentSize(min(max(pr.Current, pr.Start), pr.Stop))
	part.SetSpeed(pr.Speed)
	part.SetConnected(state == model.PartOpen)
	part.SetState(state)
	return part, nil
}
