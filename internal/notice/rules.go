package notice

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
	"git.home.luguber.info/inful/xgrab/internal/model"
)

// Category names the rule that matched a notice.
type Category string

const (
	Unmatched         Category = ""
	ListOffer         Category = "list_offer"
	Queued            Category = "queued"
	RemovedFromQueue  Category = "removed_from_queue"
	InvalidPacket     Category = "invalid_packet"
	AlreadyRequested  Category = "already_requested"
	AlreadyQueued     Category = "already_queued"
	DCCPending        Category = "dcc_pending"
	QueueFull         Category = "queue_full"
	TransferLimit     Category = "transfer_limit"
	OwnerFreeze       Category = "owner_freeze"
	ServiceDown       Category = "service_down"
	DeniedJoinChannel Category = "denied_join_channel"
	DeniedNoSend      Category = "denied_no_send"
	Denied            Category = "denied"
	Sending           Category = "sending"
	QueueUpdate       Category = "queue_update"
	Closing           Category = "closing"
	NotInQueue        Category = "not_in_queue"
	Punished          Category = "punished"
)

// deco is the optional decoration bots put in front of their notices.
const deco = `(?:[*:]{2,3}|->|<-)?\s*`

type rule struct {
	category Category
	patterns []*regexp.Regexp
	apply    func(e *eval)
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// match returns the named groups of the first matching pattern.
func (r rule) match(text string) (map[string]string, bool) {
	for _, re := range r.patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		groups := make(map[string]string)
		for i, name := range re.SubexpNames() {
			if name != "" && i < len(m) {
				groups[name] = m[i]
			}
		}
		return groups, true
	}
	return nil, false
}

var (
	listRule = rule{
		category: ListOffer,
		patterns: compile(
			deco+`Request listing:.*XDCC LIST`,
			deco+`.*XDCC LIST`,
		),
	}

	joinDirective = regexp.MustCompile(`(?i)\sJOIN\s+(?P<channel>\S+)`)
)

// rules is evaluated top to bottom and stops at the first match. Order
// encodes precedence; several lines match more than one pattern.
var rules = []rule{
	{
		category: Queued,
		patterns: compile(
			`(?:`+deco+`All Slots Full, )?Added you to the main queue (?:for pack [0-9]+ \(".*"\) )?.*in positi[o0]n (?P<queue_cur>[0-9]+)\. To Remove your?self at a later time`,
			`Queueing you for pack [0-9]+ \(.*\) in slot (?P<queue_cur>[0-9]+)/(?P<queue_total>[0-9]+)\. To remove your?self from the queue, type: .*\. To check your position in the queue, type: .*\. Estimated time remaining in queue: (?P<queue_d>[0-9]+) days, (?P<queue_h>[0-9]+) hours, (?P<queue_m>[0-9]+) minutes`,
			deco+`Es laufen bereits genug .bertragungen, Du bist jetzt in der Warteschlange f.r Datei [0-9]+ \(.*\) in Position (?P<queue_cur>[0-9]+)\. Wenn Du sp.ter Abbrechen willst schreibe`,
		),
		apply: func(e *eval) {
			e.transition(model.Idle, model.Waiting)
			e.bot.SetInfoSlotCurrent(0)
			if pos, ok := e.int("queue_cur"); ok {
				e.bot.SetQueuePosition(pos)
				e.bot.SetInfoQueueCurrent(pos)
			}
			e.raiseQueueTotal(e.bot.InfoQueueCurrent())
			e.bot.SetQueueTime(e.seconds("queue_d", "queue_h", "queue_m", ""))
		},
	},
	{
		category: RemovedFromQueue,
		patterns: compile(deco + `Removed From Queue: `),
		apply: func(e *eval) {
			e.transition(model.Waiting, model.Idle)
			e.requestAfter(e.timing.CommandWait)
		},
	},
	{
		category: InvalidPacket,
		patterns: compile(
			deco+`Invalid Pack Number, Try Again`,
			deco+`Die Nummer der Datei ist ung.ltig`,
		),
		apply: func(e *eval) {
			// once one offer number is wrong, every higher number is stale too
			if oldest := e.bot.OldestActivePacket(); oldest != nil {
				for _, p := range e.bot.Packets().All() {
					if p.Number() >= oldest.Number() {
						p.SetEnabled(false)
					}
				}
			}
			e.anomaly("invalid packet number")
		},
	},
	{
		category: AlreadyRequested,
		patterns: compile(
			deco+`You already requested that pack`,
			deco+`Du hast diese Datei bereits angefordert`,
		),
		apply: func(e *eval) {
			e.transition(model.Idle, model.Waiting)
		},
	},
	{
		category: AlreadyQueued,
		patterns: compile(
			`Denied, You already have [0-9]+ items? queued, Try Again Later`,
			deco+`All Slots Full, Denied, You already have that item queued\.`,
			`You are already receiving or are queued for the maximum number of packs`,
			`Du hast max\. [0-9]+ transfer auf einmal, Du bist jetzt in der Warteschlange f.r Datei`,
			`Es laufen bereits genug .bertragungen, abgewiesen, Du hast diese Datei bereits in der Warteschlange\.`,
		),
		apply: func(e *eval) {
			switch e.bot.State() {
			case model.Idle:
				e.bot.SetState(model.Waiting)
			case model.Waiting:
				if e.bot.OldestActivePacket() == nil {
					e.add(Intent{Kind: Unrequest})
				}
			}
		},
	},
	{
		category: DCCPending,
		patterns: compile(
			deco+`You have a DCC pending, Set your client to receive the transfer\. (?:(?:Type .*|Send XDCC CANCEL) to abort the transfer\. )?\((?P<time>[0-9]+) seconds remaining until timeout\)`,
			deco+`Du hast eine .bertragung schwebend, Du mu.t den Download jetzt annehmen\. (?:(?:Schreibe .*|Sende XDCC CANCEL)\s+an den Bot um die .bertragung abzubrechen\. )?\((?P<time>[0-9]+) Sekunden bis zum Abbruch\)`,
		),
		apply: func(e *eval) {
			secs, ok := e.int("time")
			if !ok {
				return
			}
			if secs == 30 && e.bot.State() != model.Active {
				e.bot.SetState(model.Idle)
			}
			e.requestAfter(time.Duration(secs+2) * time.Second)
		},
	},
	{
		category: QueueFull,
		patterns: compile(
			deco+`All Slots Full, Main queue of size (?P<queue_total>[0-9]+) is Full, Try Again Later`,
			deco+`Es laufen bereits genug .bertragungen, abgewiesen, die Warteschlange ist voll, max\. (?P<queue_total>[0-9]+) Dateien, Versuche es sp.ter nochmal`,
		),
		apply: func(e *eval) {
			e.transition(model.Waiting, model.Idle)
			e.bot.SetInfoSlotCurrent(0)
			e.bot.SetInfoQueueCurrent(0)
			if total, ok := e.int("queue_total"); ok {
				e.bot.SetInfoQueueTotal(total)
			}
			e.requestAfter(e.timing.BotWait)
		},
	},
	{
		category: TransferLimit,
		patterns: compile(deco + `You can only have [0-9]+ transfers? at a time,`),
		apply: func(e *eval) {
			e.transition(model.Idle, model.Waiting)
		},
	},
	{
		category: OwnerFreeze,
		patterns: compile(deco + `The Owner Has Requested That No New Connections Are Made In The Next (?P<time>[0-9]+) Minutes?`),
		apply: func(e *eval) {
			e.transition(model.Waiting, model.Idle)
			if mins, ok := e.int("time"); ok {
				e.requestAfter(time.Duration(mins*60+1) * time.Second)
			}
		},
	},
	{
		category: ServiceDown,
		patterns: compile(`The XDCC is down, try again later`),
		apply: func(e *eval) {
			e.transition(model.Waiting, model.Idle)
			e.requestAfter(e.timing.BotWait)
		},
	},
	{
		category: Denied,
		patterns: compile(deco + `XDCC SEND denied, (?P<info>.*)`),
		apply: func(e *eval) {
			info := fold(e.groups["info"])
			switch {
			case strings.HasPrefix(info, "you must be on a known channel to request a pack"):
				e.res.Category = DeniedJoinChannel
				e.add(Intent{Kind: JoinChannels})
				e.requestAfter(e.timing.CommandWait)
			case strings.HasPrefix(info, "i don't send transfers to"):
				e.res.Category = DeniedNoSend
				for _, p := range e.bot.Packets().All() {
					p.SetEnabled(false)
				}
				e.anomaly("send denied: " + info)
			default:
				e.transition(model.Waiting, model.Idle)
				e.requestAfter(e.timing.CommandWait)
				e.anomaly("send denied: " + info)
			}
		},
	},
	{
		category: Sending,
		patterns: compile(
			deco+`Sending You (?:Your Queued )?Pack `,
			deco+`Sende dir jetzt die Datei `,
		),
		apply: func(e *eval) {
			e.transition(model.Waiting, model.Idle)
		},
	},
	{
		category: QueueUpdate,
		patterns: compile(
			`Queued [0-9]+h[0-9]+m for .*, in position (?P<queue_cur>[0-9]+) of (?P<queue_total>[0-9]+)\. (?P<queue_h>[0-9]+)h(?P<queue_m>[0-9]+)m or .* remaining\.`,
			`In der Warteschlange seit\s+[0-9]+h[0-9]+m f.r .*, in Position (?P<queue_cur>[0-9]+) von (?P<queue_total>[0-9]+)\. Ungef.hr (?P<queue_h>[0-9]+)h(?P<queue_m>[0-9]+)m oder`,
		),
		apply: func(e *eval) {
			e.transition(model.Idle, model.Waiting)
			e.bot.SetInfoSlotCurrent(0)
			if pos, ok := e.int("queue_cur"); ok {
				e.bot.SetQueuePosition(pos)
			}
			e.raiseQueueTotal(e.bot.QueuePosition())
			e.bot.SetQueueTime(e.seconds("", "queue_h", "queue_m", ""))
		},
	},
	{
		category: Closing,
		patterns: compile(
			deco+`(?:Closing Connection|Transfer Completed)(?P<reason>.*)`,
			deco+`Schlie.e Verbindung(?P<reason>.*)`,
		),
		apply: func(e *eval) {
			if e.bot.State() == model.Active {
				e.add(Intent{Kind: RemoveActiveTransfer})
			} else {
				e.bot.SetState(model.Idle)
			}
			e.requestAfter(e.timing.CommandWait)
			if m := joinDirective.FindStringSubmatch(e.text); m != nil {
				e.add(Intent{Kind: JoinChannel, Channel: model.NormalizeChannel(m[1])})
			}
		},
	},
	{
		category: NotInQueue,
		patterns: compile(`You Don't Appear To Be In A Queue|Removed you from the queue for`),
		apply: func(e *eval) {
			e.transition(model.Waiting, model.Idle)
			e.bot.SetQueuePosition(0)
			e.requestAfter(e.timing.CommandWait)
		},
	},
	{
		category: Punished,
		patterns: compile(
			`Punish-ignore activated for .* \(.*\) (?P<time_m>[0-9]*) minutes`,
			`Auto-ignore activated for .* lasting (?P<time_m>[0-9]*)m(?P<time_s>[0-9]*)s\. Further messages will increase duration\.`,
			`Zur Strafe wirst du .* \(.*\) f.r (?P<time_m>[0-9]*) Minuten ignoriert`,
			`Auto-ignore activated for .* \(.*\)`,
		),
		apply: func(e *eval) {
			e.transition(model.Waiting, model.Idle)
			mins, ok := e.int("time_m")
			if !ok {
				return
			}
			secs, _ := e.int("time_s")
			e.requestAfter(time.Duration(mins*60+secs+1) * time.Second)
		},
	},
}

// eval carries the state of one classification.
type eval struct {
	bot    *model.Bot
	text   string
	groups map[string]string
	timing Timing
	res    *Result
}

func (e *eval) int(name string) (int, bool) {
	v, err := strconv.Atoi(e.groups[name])
	return v, err == nil
}

// seconds sums the named day, hour, minute and second groups.
func (e *eval) seconds(days, hours, minutes, secs string) int {
	total := 0
	for _, g := range []struct {
		name string
		mul  int
	}{{days, 86400}, {hours, 3600}, {minutes, 60}, {secs, 1}} {
		if g.name == "" {
			continue
		}
		if v, ok := e.int(g.name); ok {
			total += v * g.mul
		}
	}
	return total
}

// transition moves the bot to `to` only when it is currently in `from`.
func (e *eval) transition(from, to model.BotState) {
	if e.bot.State() == from {
		e.bot.SetState(to)
	}
}

// raiseQueueTotal stores the parsed queue_total or floor, whichever is larger,
// but never lowers the stored total.
func (e *eval) raiseQueueTotal(floor int) {
	total := e.bot.InfoQueueTotal()
	if v, ok := e.int("queue_total"); ok && v > total {
		total = v
	}
	if floor > total {
		total = floor
	}
	e.bot.SetInfoQueueTotal(total)
}

func (e *eval) add(i Intent) { e.res.Intents = append(e.res.Intents, i) }

func (e *eval) requestAfter(d time.Duration) {
	e.add(Intent{Kind: RequestAfter, Delay: d})
}

func (e *eval) anomaly(msg string) {
	e.res.Anomaly = errors.ProtocolAnomaly(msg).
		WithContext("bot", e.bot.Name()).
		WithContext("text", e.text).
		Build()
}
