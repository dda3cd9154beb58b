// Package alert fans a low-points event out to every configured channel.
package alert

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/award-watcher/internal/metrics"
	"github.com/JakeFAU/award-watcher/internal/points"
)

// DefaultTimeout bounds a single channel delivery when none is configured.
const DefaultTimeout = 10 * time.Second

// Result reports per-channel success for one event.
type Result struct {
	Channels  map[string]bool
	Delivered bool
}

// Dispatcher sends each event to every channel independently.
type Dispatcher struct {
	channels []points.AlertChannel
	timeout  time.Duration
	logger   *zap.Logger
}

// NewDispatcher builds a Dispatcher. Nil channels are skipped.
func NewDispatcher(channels []points.AlertChannel, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	kept := make([]points.AlertChannel, 0, len(channels))
	for _, ch := range channels {
		if ch != nil {
			kept = append(kept, ch)
		}
	}
	return &Dispatcher{channels: kept, timeout: timeout, logger: logger}
}

// Names lists the configured channel names in dispatch order.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Dispatch attempts every channel once. A failing channel never prevents the
// others from being tried.
func (d *Dispatcher) Dispatch(ctx context.Context, event points.AlertEvent) Result {
	res := Result{Channels: make(map[string]bool, len(d.channels))}
	log := d.logger.With(
		zap.String("key", event.Key.String()),
		zap.String("points", event.Point.RawText),
		zap.Int64("threshold", event.Threshold),
	)
	if len(d.channels) == 0 {
		log.Warn("no alert channels configured, alert dropped")
		return res
	}

	for _, ch := range d.channels {
		name := ch.Name()
		err := d.send(ctx, ch, event)
		ok := err == nil
		res.Channels[name] = ok
		metrics.ObserveAlert(name, ok)
		if !ok {
			log.Error("alert channel failed", zap.String("channel", name), zap.Error(err))
			continue
		}
		res.Delivered = true
		log.Info("alert sent", zap.String("channel", name))
	}
	return res
}

func (d *Dispatcher) send(ctx context.Context, ch points.AlertChannel, event points.AlertEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", points.ErrChannel, ch.Name(), r)
		}
	}()
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := ch.Send(sendCtx, event); err != nil {
		return fmt.Errorf("%w: %s: %w", points.ErrChannel, ch.Name(), err)
	}
	return nil
}
