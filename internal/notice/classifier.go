package notice

import (
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/xgrab/internal/model"
)

// Timing holds the delays used by RequestAfter intents.
type Timing struct {
	CommandWait time.Duration
	BotWait     time.Duration
}

// DefaultTiming matches the shipped configuration defaults.
func DefaultTiming() Timing {
	return Timing{CommandWait: 15 * time.Second, BotWait: 240 * time.Second}
}

// Result is the outcome of classifying one line.
type Result struct {
	Matched  bool
	Category Category
	// Text is the cleaned line.
	Text    string
	Intents []Intent
	// Anomaly is set when the bot rejected a request for a substantive
	// reason. It is a protocol-category ClassifiedError of warning severity.
	Anomaly error
}

// HasIntent reports whether the result carries an intent of kind k.
func (r Result) HasIntent(k IntentKind) bool {
	for _, i := range r.Intents {
		if i.Kind == k {
			return true
		}
	}
	return false
}

// Classifier applies the notice rule table to bots.
type Classifier struct {
	timing atomic.Pointer[Timing]
	now    func() time.Time
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock overrides the time source used for LastContact.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

func New(t Timing, opts ...Option) *Classifier {
	c := &Classifier{now: time.Now}
	c.timing.Store(&t)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTiming swaps the delays; safe to call while Classify runs.
func (c *Classifier) SetTiming(t Timing) { c.timing.Store(&t) }

func (c *Classifier) Timing() Timing { return *c.timing.Load() }

// Classify applies the first matching rule to bot and returns the resulting
// intents. Every call marks the bot connected and records the contact time;
// the cleaned text becomes the bot's last message only when a rule matched.
// Callers must serialize calls for the same bot.
func (c *Classifier) Classify(bot *model.Bot, text string) Result {
	if bot == nil {
		return c.ClassifyUnknown("", text)
	}

	e := &eval{
		bot:    bot,
		text:   Clean(text),
		timing: c.Timing(),
		res:    &Result{},
	}
	e.res.Text = e.text

	for _, r := range rules {
		groups, ok := r.match(e.text)
		if !ok {
			continue
		}
		e.groups = groups
		e.res.Matched = true
		e.res.Category = r.category
		r.apply(e)
		break
	}

	if e.res.Matched {
		bot.SetLastMessage(e.text)
	}
	bot.SetConnected(true)
	bot.SetLastContact(c.now())
	return *e.res
}

// ClassifyUnknown handles a line from a sender that is not a known bot. Only
// the list-offer rule applies.
func (c *Classifier) ClassifyUnknown(nick, text string) Result {
	cleaned := Clean(text)
	res := Result{Text: cleaned}
	if _, ok := listRule.match(cleaned); ok {
		res.Matched = true
		res.Category = ListOffer
		res.Intents = []Intent{{Kind: XdccListDetected, Nick: nick}}
	}
	return res
}
