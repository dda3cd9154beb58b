// Package monitor runs the sweep, persist and alert cycle.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/award-watcher/internal/alert"
	"github.com/JakeFAU/award-watcher/internal/metrics"
	"github.com/JakeFAU/award-watcher/internal/points"
)

// DefaultPersistTimeout bounds one Save or history Record call.
const DefaultPersistTimeout = 30 * time.Second

// Config controls what the loop watches and how it paces itself.
type Config struct {
	Keys             []points.Key
	Threshold        int64
	PacingDelay      time.Duration
	SweepInterval    time.Duration
	MaxSessionFaults int
	PersistTimeout   time.Duration
}

// Dispatcher sends one alert event to every configured channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, event points.AlertEvent) alert.Result
}

// Deps bundles the collaborators the loop drives. History is optional.
type Deps struct {
	Browser    points.Browser
	Store      points.ValueStore
	Dispatcher Dispatcher
	History    points.HistoryRecorder
	Clock      points.Clock
	IDs        points.IDGenerator
}

// Loop owns the in-memory best-value store and the browser session.
type Loop struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger

	best    points.Store
	session points.Session

	mu     sync.RWMutex
	status Status
}

type keyResult struct {
	key    points.Key
	result points.FetchResult
}

// New validates cfg and deps and returns a Loop in the starting state.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Loop, error) {
	if len(cfg.Keys) == 0 {
		return nil, fmt.Errorf("at least one key is required")
	}
	if cfg.Threshold <= 0 {
		return nil, fmt.Errorf("threshold must be > 0")
	}
	if cfg.MaxSessionFaults <= 0 {
		cfg.MaxSessionFaults = 3
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}
	if deps.Browser == nil || deps.Store == nil || deps.Dispatcher == nil || deps.Clock == nil || deps.IDs == nil {
		return nil, fmt.Errorf("browser, store, dispatcher, clock and id generator are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		status: Status{State: StateStarting, Session: SessionAbsent},
	}, nil
}

// Status returns a snapshot of the loop's current state.
func (l *Loop) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// Run loads the store and sweeps until ctx is canceled. Cancellation is the
// only way out and is not an error.
func (l *Loop) Run(ctx context.Context) error {
	l.setState(StateStarting)
	l.best = l.deps.Store.Load(ctx)
	l.logStartup()

	for {
		if ctx.Err() != nil {
			return l.stop()
		}
		if err := l.runSweep(ctx); err != nil && ctx.Err() == nil {
			l.logger.Error("sweep aborted", zap.Error(err))
		}
		if ctx.Err() != nil {
			return l.stop()
		}

		l.setState(StateWaiting)
		l.logger.Info("waiting before next sweep", zap.Duration("interval", l.cfg.SweepInterval))
		if err := l.deps.Clock.Sleep(ctx, l.cfg.SweepInterval); err != nil {
			return l.stop()
		}
	}
}

func (l *Loop) logStartup() {
	l.logger.Info("monitor starting",
		zap.Int("keys", len(l.cfg.Keys)),
		zap.Int("stored_values", len(l.best)),
		zap.Int64("threshold", l.cfg.Threshold),
	)
	for _, k := range l.best.SortedKeys() {
		rec := l.best[k]
		metrics.SetBestPoints(k, rec.PointsValue)
		l.logger.Info("current best", zap.String("key", k), zap.String("points", rec.Points), zap.Time("last_updated", rec.LastUpdated))
	}
}

// runSweep performs one sweep. A returned *points.SweepFault means the session
// was discarded. A panic anywhere in the cycle is recovered as a SweepFault.
func (l *Loop) runSweep(ctx context.Context) (err error) {
	start := l.deps.Clock.Now()
	sweepID := fmt.Sprintf("sweep-%d", start.UnixNano())
	log := l.logger
	defer func() {
		if r := recover(); r != nil {
			err = &points.SweepFault{Cause: fmt.Errorf("panic during sweep: %v", r)}
			l.discardSession(log)
			l.finishSweep(sweepID, start, sweepAborted, err)
		}
	}()

	if id, idErr := l.deps.IDs.NewID(); idErr != nil {
		l.logger.Warn("sweep id generation failed", zap.Error(idErr))
	} else {
		sweepID = id
	}
	log = l.logger.With(zap.String("sweep_id", sweepID))

	l.setState(StateSweeping)
	results, err := l.sweep(ctx, log)
	if ctx.Err() != nil {
		log.Info("sweep interrupted, discarding results", zap.Int("collected", len(results)))
		return nil
	}
	if err != nil {
		l.discardSession(log)
		l.finishSweep(sweepID, start, sweepAborted, err)
		return err
	}

	l.setState(StatePersisting)
	alerts, observations := l.apply(log, results)

	l.persist(ctx, log, sweepID, observations)
	for _, ev := range alerts {
		res := l.deps.Dispatcher.Dispatch(ctx, ev)
		if !res.Delivered {
			log.Warn("alert not delivered on any channel", zap.String("key", ev.Key.String()))
		}
	}

	l.logResults(log, results, len(alerts), l.deps.Clock.Now().Sub(start))
	l.finishSweep(sweepID, start, sweepCompleted, nil)
	return nil
}

// persist saves the store once and records the sweep's observations. Each call
// gets its own deadline; failures are logged and never stop the sweep.
func (l *Loop) persist(ctx context.Context, log *zap.Logger, sweepID string, observations []points.Observation) {
	saveCtx, cancel := context.WithTimeout(ctx, l.cfg.PersistTimeout)
	err := l.deps.Store.Save(saveCtx, l.best)
	cancel()
	if err != nil {
		log.Error("persist best values failed", zap.Error(err))
	}

	if l.deps.History == nil || len(observations) == 0 {
		return
	}
	recordCtx, cancel := context.WithTimeout(ctx, l.cfg.PersistTimeout)
	defer cancel()
	if err := l.deps.History.Record(recordCtx, sweepID, observations); err != nil {
		log.Error("record observation history failed", zap.Error(err))
	}
}

// sweep fetches every key in order over one session. Session failures come
// back as a *points.SweepFault.
func (l *Loop) sweep(ctx context.Context, log *zap.Logger) ([]keyResult, error) {
	if l.session == nil {
		session, openErr := l.deps.Browser.Open(ctx)
		if openErr != nil {
			return nil, &points.SweepFault{Cause: fmt.Errorf("open browser session: %w", openErr)}
		}
		l.session = session
		l.setSession(SessionActive)
	}

	limit := min(l.cfg.MaxSessionFaults, len(l.cfg.Keys))
	consecutive := 0
	results := make([]keyResult, 0, len(l.cfg.Keys))
	for i, key := range l.cfg.Keys {
		if i > 0 {
			if err := l.deps.Clock.Sleep(ctx, l.cfg.PacingDelay); err != nil {
				return results, nil
			}
		}
		if ctx.Err() != nil {
			return results, nil
		}

		res := l.session.Fetch(ctx, key)
		metrics.ObserveFetch(string(res.Outcome))
		results = append(results, keyResult{key: key, result: res})
		if !res.OK() {
			log.Debug("no value for key", zap.String("key", key.String()), zap.String("outcome", string(res.Outcome)), zap.String("detail", res.Detail))
		}

		if res.Outcome != points.OutcomeSessionFault {
			consecutive = 0
			continue
		}
		consecutive++
		if consecutive >= limit {
			l.setSession(SessionFaulted)
			return results, &points.SweepFault{
				Cause: fmt.Errorf("%d consecutive failures at %s: %w", consecutive, key, points.ErrExtractionSessionFault),
			}
		}
	}
	return results, nil
}

// apply folds the sweep's successful results into the store in key order.
func (l *Loop) apply(log *zap.Logger, results []keyResult) ([]points.AlertEvent, []points.Observation) {
	var (
		alerts       []points.AlertEvent
		observations []points.Observation
	)
	for _, kr := range results {
		if !kr.result.OK() {
			continue
		}
		point := kr.result.Point
		id := kr.key.String()
		previous := l.best[id]

		event, outcome := l.best.Update(kr.key, point, l.cfg.Threshold)
		if outcome != points.UpdateIgnored {
			observations = append(observations, points.Observation{Key: kr.key, Point: point})
		}
		switch outcome {
		case points.UpdateIgnored:
			log.Info("no signal for key", zap.String("key", id), zap.String("text", point.RawText))
		case points.UpdateCreated:
			log.Info("new entry", zap.String("key", id), zap.String("points", point.RawText))
			metrics.SetBestPoints(id, point.Value)
		case points.UpdateImproved:
			log.Info("new lower value", zap.String("key", id), zap.String("points", point.RawText), zap.String("previous", previous.Points))
			metrics.SetBestPoints(id, point.Value)
		case points.UpdateUnchanged:
			log.Info("current best unchanged", zap.String("key", id), zap.String("points", point.RawText), zap.String("best", previous.Points))
		}
		if event != nil {
			alerts = append(alerts, *event)
		}
	}
	return alerts, observations
}

func (l *Loop) logResults(log *zap.Logger, results []keyResult, alerts int, took time.Duration) {
	table := make([]string, 0, len(results))
	found := 0
	for _, kr := range results {
		text := "Not found"
		if kr.result.OK() {
			found++
			text = kr.result.Point.RawText
		}
		table = append(table, kr.key.String()+": "+text)
	}
	log.Info("sweep completed",
		zap.Duration("took", took),
		zap.Int("found", found),
		zap.Int("absent", len(results)-found),
		zap.Int("alerts", alerts),
		zap.Strings("results", table),
	)
}

func (l *Loop) discardSession(log *zap.Logger) {
	if l.session != nil {
		if err := l.session.Close(); err != nil {
			log.Warn("close faulted session failed", zap.Error(err))
		}
		l.session = nil
		metrics.ObserveSessionRestart()
	}
	l.setSession(SessionAbsent)
}

func (l *Loop) finishSweep(id string, start time.Time, result string, err error) {
	metrics.ObserveSweep(result, l.deps.Clock.Now().Sub(start))
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.Sweeps++
	l.status.LastSweepID = id
	l.status.LastSweepAt = start
	l.status.LastResult = result
	l.status.LastError = ""
	if err != nil {
		l.status.LastError = err.Error()
	}
}

func (l *Loop) stop() error {
	if l.session != nil {
		if err := l.session.Close(); err != nil {
			l.logger.Warn("close session on shutdown failed", zap.Error(err))
		}
		l.session = nil
	}
	l.setSession(SessionAbsent)
	l.setState(StateStopped)
	l.logger.Info("monitor stopped")
	return nil
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.State = s
}

func (l *Loop) setSession(s SessionState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.Session = s
}
