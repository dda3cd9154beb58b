package points

import (
	"context"
	"time"
)

// Browser opens automated browsing sessions.
type Browser interface {
	Open(ctx context.Context) (Session, error)
}

// Session is one live browsing context reused across fetches. Fetch never
// fails outright; expected failures come back as a tagged FetchResult.
type Session interface {
	Fetch(ctx context.Context, key Key) FetchResult
	Close() error
}

// ValueStore loads and persists the best-value store. Load never fails: a
// missing or unreadable backing file yields an empty Store.
type ValueStore interface {
	Load(ctx context.Context) Store
	Save(ctx context.Context, store Store) error
}

// AlertChannel delivers a single alert over one notification backend.
type AlertChannel interface {
	Name() string
	Send(ctx context.Context, event AlertEvent) error
}

// HistoryRecorder keeps an audit trail of every observation.
type HistoryRecorder interface {
	Record(ctx context.Context, sweepID string, observations []Observation) error
}

// Clock returns the current time and sleeps (useful for testing).
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator produces sweep IDs.
type IDGenerator interface {
	NewID() (string, error)
}
