package daemon

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
	"git.home.luguber.info/inful/xgrab/internal/logfields"
	"git.home.luguber.info/inful/xgrab/internal/metrics"
	"git.home.luguber.info/inful/xgrab/internal/model"
	"git.home.luguber.info/inful/xgrab/internal/notice"
	"git.home.luguber.info/inful/xgrab/internal/transport"
)

const (
	laneBuffer      = 64
	laneIdleTimeout = 5 * time.Minute
)

// IntentDispatcher executes intents produced by the classifier.
type IntentDispatcher interface {
	Dispatch(ctx context.Context, src Source, in notice.Intent) error
}

// Router classifies inbound notices on one lane per known bot. Notices from
// the same bot are handled in arrival order and never concurrently; different
// bots proceed in parallel. A lane exits after idleTimeout without traffic.
// Senders that are not known bots only go through the stateless list-offer
// check, which runs inline on the submitting goroutine.
type Router struct {
	ctx         context.Context
	servers     *model.ServerSet
	classifier  *notice.Classifier
	dispatcher  IntentDispatcher
	recorder    metrics.Recorder
	idleTimeout time.Duration

	workers WorkerGroup
	mu      sync.Mutex
	lanes   map[string]*lane
	done    chan struct{}
	stop    sync.Once
}

type lane struct {
	key string
	ch  chan transport.Notice
	// submitters between lookup and send; guarded by Router.mu
	senders int
}

// NewRouter returns a router whose lanes run until ctx is done or Stop is called.
func NewRouter(ctx context.Context, servers *model.ServerSet, classifier *notice.Classifier, dispatcher IntentDispatcher, recorder metrics.Recorder) *Router {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Router{
		ctx:         ctx,
		servers:     servers,
		classifier:  classifier,
		dispatcher:  dispatcher,
		recorder:    recorder,
		idleTimeout: laneIdleTimeout,
		lanes:       make(map[string]*lane),
		done:        make(chan struct{}),
	}
}

func laneKey(n transport.Notice) string {
	return strings.ToLower(n.Server) + "\x00" + strings.ToLower(n.Nick)
}

func (r *Router) bot(n transport.Notice) *model.Bot {
	if srv := r.servers.Server(n.Server); srv != nil {
		return srv.Bot(n.Nick)
	}
	return nil
}

// Submit queues n on its bot's lane, blocking while the lane is full.
// Notices from unknown senders are handled before Submit returns.
func (r *Router) Submit(ctx context.Context, n transport.Notice) error {
	select {
	case <-r.done:
		return errors.DaemonError("router stopped").Build()
	default:
	}
	if r.bot(n) == nil {
		r.Handle(ctx, n)
		return nil
	}

	l, err := r.acquire(n)
	if err != nil {
		return err
	}
	defer r.release(l)

	select {
	case l.ch <- n:
		return nil
	case <-r.done:
		return errors.DaemonError("router stopped").Build()
	case <-ctx.Done():
		return errors.WrapError(ctx.Err(), errors.CategoryRuntime, "notice submit canceled").Build()
	}
}

// acquire returns the lane for n, starting one if needed, and pins it
// against retirement until release.
func (r *Router) acquire(n transport.Notice) (*lane, error) {
	key := laneKey(n)

	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lanes[key]
	if !ok {
		l = &lane{key: key, ch: make(chan transport.Notice, laneBuffer)}
		if !r.workers.Go(func() { r.runLane(r.ctx, l) }) {
			return nil, errors.DaemonError("router stopped").Build()
		}
		r.lanes[key] = l
	}
	l.senders++
	return l, nil
}

func (r *Router) release(l *lane) {
	r.mu.Lock()
	l.senders--
	r.mu.Unlock()
}

// retire removes an idle lane. It refuses while a submitter holds the lane
// or notices are still buffered.
func (r *Router) retire(l *lane) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.senders > 0 || len(l.ch) > 0 {
		return false
	}
	delete(r.lanes, l.key)
	return true
}

func (r *Router) runLane(ctx context.Context, l *lane) {
	idle := time.NewTimer(r.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ctx.Done():
			return
		case n := <-l.ch:
			r.Handle(ctx, n)
			idle.Reset(r.idleTimeout)
		case <-idle.C:
			if r.retire(l) {
				return
			}
			idle.Reset(r.idleTimeout)
		}
	}
}

// Handle classifies one notice and dispatches its intents synchronously.
func (r *Router) Handle(ctx context.Context, n transport.Notice) notice.Result {
	bot := r.bot(n)

	var res notice.Result
	if bot != nil {
		res = r.classifier.Classify(bot, n.Text)
	} else {
		res = r.classifier.ClassifyUnknown(n.Nick, n.Text)
	}

	if !res.Matched {
		r.recorder.IncNotice("unmatched")
		if bot != nil {
			slog.Debug("Unmatched notice", logfields.Server(n.Server), logfields.Bot(n.Nick), slog.String("text", res.Text))
		}
		return res
	}
	r.recorder.IncNotice(string(res.Category))

	if res.Anomaly != nil {
		r.recorder.IncAnomaly(string(res.Category))
		slog.Warn("Bot rejected request",
			logfields.Server(n.Server),
			logfields.Bot(n.Nick),
			logfields.Category(string(res.Category)),
			logfields.Error(res.Anomaly))
	}

	src := Source{Server: n.Server, Nick: n.Nick, Bot: bot}
	for _, in := range res.Intents {
		if err := r.dispatcher.Dispatch(ctx, src, in); err != nil {
			slog.Error("Failed to execute intent",
				logfields.Server(n.Server),
				logfields.Bot(n.Nick),
				logfields.Intent(in.String()),
				logfields.Error(err))
		}
	}
	return res
}

// Stop ends every lane. Queued notices that were not yet handled are dropped.
func (r *Router) Stop(ctx context.Context) error {
	r.stop.Do(func() { close(r.done) })
	return r.workers.StopAndWait(ctx)
}

// Lanes reports the number of running bot lanes.
func (r *Router) Lanes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lanes)
}
