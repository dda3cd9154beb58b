package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/award-watcher/internal/alert"
	"github.com/JakeFAU/award-watcher/internal/points"
)

const (
	testInterval = 10 * time.Minute
	testPacing   = time.Second
)

// trace records the order in which collaborators were called.
type trace struct {
	mu     sync.Mutex
	events []string
}

func (t *trace) add(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, fmt.Sprintf(format, args...))
}

func (t *trace) all() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.events...)
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	onWait func(n int)
	waits  int
	onStep func(d time.Duration)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	var hook func(n int)
	var n int
	if d == testInterval {
		c.waits++
		n = c.waits
		hook = c.onWait
	}
	step := c.onStep
	c.mu.Unlock()

	if step != nil {
		step(d)
	}
	if hook != nil {
		hook(n)
	}
	return ctx.Err()
}

func (c *fakeClock) count(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.sleeps {
		if s == d {
			n++
		}
	}
	return n
}

// stopAfterWaits cancels ctx once the loop has entered its nth wait.
func (c *fakeClock) stopAfterWaits(n int, cancel context.CancelFunc) {
	c.onWait = func(got int) {
		if got >= n {
			cancel()
		}
	}
}

type fetchFunc func(sweep int, key points.Key) points.FetchResult

type fakeSession struct {
	id     int
	fetch  func(key points.Key) points.FetchResult
	trace  *trace
	mu     sync.Mutex
	closed int
}

func (s *fakeSession) Fetch(_ context.Context, key points.Key) points.FetchResult {
	s.trace.add("fetch %s", key)
	return s.fetch(key)
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	s.trace.add("close session %d", s.id)
	return nil
}

type fakeBrowser struct {
	trace    *trace
	fetch    fetchFunc
	openErrs []error
	sessions []*fakeSession
	sweep    *int
}

func (b *fakeBrowser) Open(context.Context) (points.Session, error) {
	if len(b.openErrs) > 0 {
		err := b.openErrs[0]
		b.openErrs = b.openErrs[1:]
		if err != nil {
			b.trace.add("open failed")
			return nil, err
		}
	}
	s := &fakeSession{id: len(b.sessions) + 1, trace: b.trace}
	s.fetch = func(key points.Key) points.FetchResult { return b.fetch(*b.sweep, key) }
	b.sessions = append(b.sessions, s)
	b.trace.add("open session %d", s.id)
	return s, nil
}

type fakeStore struct {
	trace   *trace
	initial points.Store
	saves   []points.Store
	saveErr error
	onSave  func(ctx context.Context) error
}

func (s *fakeStore) Load(context.Context) points.Store {
	if s.initial == nil {
		return points.Store{}
	}
	return s.initial.Clone()
}

func (s *fakeStore) Save(ctx context.Context, store points.Store) error {
	s.trace.add("save")
	s.saves = append(s.saves, store.Clone())
	if s.onSave != nil {
		return s.onSave(ctx)
	}
	return s.saveErr
}

type fakeDispatcher struct {
	trace      *trace
	events     []points.AlertEvent
	onDispatch func(ev points.AlertEvent)
}

func (d *fakeDispatcher) Dispatch(_ context.Context, ev points.AlertEvent) alert.Result {
	d.trace.add("alert %s", ev.Key)
	if d.onDispatch != nil {
		d.onDispatch(ev)
	}
	d.events = append(d.events, ev)
	return alert.Result{Channels: map[string]bool{"fake": true}, Delivered: true}
}

type fakeHistory struct {
	trace    *trace
	sweepIDs []string
	rows     int
	err      error
	onRecord func(ctx context.Context) error
}

func (h *fakeHistory) Record(ctx context.Context, sweepID string, obs []points.Observation) error {
	h.trace.add("history %d", len(obs))
	h.sweepIDs = append(h.sweepIDs, sweepID)
	h.rows += len(obs)
	if h.onRecord != nil {
		return h.onRecord(ctx)
	}
	return h.err
}

type fakeIDs struct{ n int }

func (f *fakeIDs) NewID() (string, error) {
	f.n++
	return fmt.Sprintf("sweep-%03d", f.n), nil
}

type failingIDs struct{}

func (failingIDs) NewID() (string, error) { return "", errors.New("entropy exhausted") }

func found(raw string, value int64) points.FetchResult {
	return points.Found(points.PricePoint{RawText: raw, Value: value, ObservedAt: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)})
}

// harness wires a Loop to fakes; sweep counts completed Browser fetch rounds.
type harness struct {
	trace      *trace
	clock      *fakeClock
	browser    *fakeBrowser
	store      *fakeStore
	dispatcher *fakeDispatcher
	history    *fakeHistory
	sweep      int
	loop       *Loop
}

func newHarness(cfg Config, fetch fetchFunc) *harness {
	h := &harness{trace: &trace{}, clock: newFakeClock()}
	h.browser = &fakeBrowser{trace: h.trace, fetch: fetch, sweep: &h.sweep}
	h.store = &fakeStore{trace: h.trace}
	h.dispatcher = &fakeDispatcher{trace: h.trace}
	h.history = &fakeHistory{trace: h.trace}
	if cfg.Threshold == 0 {
		cfg.Threshold = 300000
	}
	if cfg.PacingDelay == 0 {
		cfg.PacingDelay = testPacing
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = testInterval
	}
	h.clock.onStep = func(d time.Duration) {
		if d == testInterval {
			h.sweep++
		}
	}
	loop, err := New(cfg, Deps{
		Browser:    h.browser,
		Store:      h.store,
		Dispatcher: h.dispatcher,
		History:    h.history,
		Clock:      h.clock,
		IDs:        &fakeIDs{},
	}, nil)
	if err != nil {
		panic(err)
	}
	h.loop = loop
	return h
}

// run executes the loop until it has entered its nth wait.
func (h *harness) run(waits int) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.clock.stopAfterWaits(waits, cancel)
	return h.loop.Run(ctx)
}
