package transport

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/xgrab/internal/logfields"
)

// Action names an outbound command.
type Action string

const (
	ActionRequestPacket  Action = "request_packet"
	ActionUnrequest      Action = "unrequest"
	ActionJoinChannel    Action = "join_channel"
	ActionRemoveTransfer Action = "remove_transfer"
	ActionRequestList    Action = "request_list"
	ActionDisableListing Action = "disable_listing"
)

// Command is the JSON body published on <prefix>.command.
type Command struct {
	Action  Action `json:"action"`
	Server  string `json:"server"`
	Nick    string `json:"nick,omitempty"`
	Channel string `json:"channel,omitempty"`
	Packet  int    `json:"packet,omitempty"`
}

// Notice is the JSON body received on <prefix>.notice.
type Notice struct {
	Server string `json:"server"`
	Nick   string `json:"nick"`
	Text   string `json:"text"`
}

// Offer announces a packet a bot advertises, received on <prefix>.offer.
// Request marks the packet wanted: it is enabled and asked for.
type Offer struct {
	Server  string `json:"server"`
	Channel string `json:"channel"`
	Nick    string `json:"nick"`
	Packet  int    `json:"packet"`
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	Request bool   `json:"request,omitempty"`
}

// Progress reports the state of one file part from the transfer engine,
// received on <prefix>.progress. State is one of open, closed, ready, broken.
type Progress struct {
	File    string `json:"file"`
	Size    int64  `json:"size"`
	Start   int64  `json:"start"`
	Stop    int64  `json:"stop"`
	Current int64  `json:"current"`
	State   string `json:"state"`
	Speed   int64  `json:"speed"`
}

// Sender delivers commands to the chat client.
type Sender interface {
	Send(ctx context.Context, cmd Command) error
}

// LogSender only logs commands. It is used when no message bus is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, cmd Command) error {
	attrs := []any{slog.String("action", string(cmd.Action)), logfields.Server(cmd.Server)}
	if cmd.Nick != "" {
		attrs = append(attrs, logfields.Bot(cmd.Nick))
	}
	if cmd.Channel != "" {
		attrs = append(attrs, logfields.Channel(cmd.Channel))
	}
	if cmd.Packet != 0 {
		attrs = append(attrs, logfields.Packet(cmd.Packet))
	}
	slog.Info("Transport command", attrs...)
	return nil
}
