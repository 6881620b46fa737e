package notice

import (
	"fmt"
	"time"
)

// IntentKind enumerates the deferred actions a notice can request.
type IntentKind int

const (
	// RequestAfter asks for the bot's oldest active packet again after Delay,
	// replacing any pending request for the same bot.
	RequestAfter IntentKind = iota + 1
	Unrequest
	// JoinChannels joins every enabled, not yet connected channel of the bot's server.
	JoinChannels
	JoinChannel
	RemoveActiveTransfer
	DisableListing
	XdccListDetected
)

func (k IntentKind) String() string {
	switch k {
	case RequestAfter:
		return "request_after"
	case Unrequest:
		return "unrequest"
	case JoinChannels:
		return "join_channels"
	case JoinChannel:
		return "join_channel"
	case RemoveActiveTransfer:
		return "remove_active_transfer"
	case DisableListing:
		return "disable_listing"
	case XdccListDetected:
		return "xdcc_list_detected"
	default:
		return "unknown"
	}
}

// Intent is one action for a collaborator to execute.
type Intent struct {
	Kind    IntentKind
	Delay   time.Duration
	Channel string
	Nick    string
}

func (i Intent) String() string {
	switch i.Kind {
	case RequestAfter:
		return fmt.Sprintf("%s(%s)", i.Kind, i.Delay)
	case JoinChannel:
		return fmt.Sprintf("%s(%s)", i.Kind, i.Channel)
	case XdccListDetected:
		return fmt.Sprintf("%s(%s)", i.Kind, i.Nick)
	default:
		return i.Kind.String()
	}
}
