package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
	"git.home.luguber.info/inful/xgrab/internal/model"
	"git.home.luguber.info/inful/xgrab/internal/notice"
)

// ClassifyCmd runs notices through the classifier without touching any
// persisted state. Each input line is "<nick>\t<text>"; lines without a tab
// are attributed to --nick. Bots keep their state across lines, so a
// recorded conversation replays its transitions.
type ClassifyCmd struct {
	Input   string `arg:"" optional:"" help:"File to read notices from (default stdin)" type:"path"`
	Nick    string `help:"Nick for lines without one" default:"Bot"`
	State   string `help:"Initial bot state" enum:"idle,waiting,active" default:"idle"`
	Packets []int  `help:"Enabled packet numbers the bots offer" default:"1"`
	Unknown bool   `help:"Treat senders as unknown, matching list offers only"`
}

func (c *ClassifyCmd) Run(g *Global, _ *CLI) error {
	in := g.In
	if c.Input != "" && c.Input != "-" {
		f, err := os.Open(c.Input)
		if err != nil {
			return errors.WrapError(err, errors.CategoryNotFound, "failed to open input").
				WithContext("path", c.Input).Build()
		}
		defer func() { _ = f.Close() }()
		in = f
	}
	return c.classify(in, g.Out)
}

func (c *ClassifyCmd) classify(in io.Reader, out io.Writer) error {
	initial, err := model.ParseBotState(c.State)
	if err != nil {
		return errors.ValidationError("invalid bot state").WithContext("state", c.State).WithCause(err).Build()
	}

	classifier := notice.New(notice.DefaultTiming())
	channel := model.NewServerSet().AddServer("local", 6667).AddChannel("#replay")
	botFor := func(nick string) *model.Bot {
		if b := channel.Bot(nick); b != nil {
			return b
		}
		b := channel.AddBot(nick)
		b.SetState(initial)
		for _, n := range c.Packets {
			b.AddPacket(n, "", 0)
		}
		return b
	}

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		nick, text, ok := strings.Cut(line, "\t")
		if !ok {
			nick, text = c.Nick, line
		}

		var res notice.Result
		var bot *model.Bot
		if c.Unknown {
			res = classifier.ClassifyUnknown(nick, text)
		} else {
			bot = botFor(nick)
			res = classifier.Classify(bot, text)
		}
		if _, err := fmt.Fprintln(out, formatResult(nick, bot, res)); err != nil {
			return errors.WrapError(err, errors.CategoryRuntime, "failed to write result").Build()
		}
	}
	if err := sc.Err(); err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "failed to read input").Build()
	}
	return nil
}

func formatResult(nick string, bot *model.Bot, res notice.Result) string {
	if !res.Matched {
		return nick + "\tunmatched"
	}
	cols := []string{nick, string(res.Category)}
	if bot != nil {
		cols = append(cols, bot.State().String())
	}
	intents := make([]string, 0, len(res.Intents))
	for _, in := range res.Intents {
		intents = append(intents, in.String())
	}
	cols = append(cols, strings.Join(intents, ","))
	if res.Anomaly != nil {
		cols = append(cols, "anomaly: "+res.Anomaly.Error())
	}
	return strings.Join(cols, "\t")
}
