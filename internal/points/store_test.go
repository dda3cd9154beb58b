package points

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func point(t *testing.T, raw string, at time.Time) PricePoint {
	t.Helper()
	p, err := NewPricePoint(raw, at)
	require.NoError(t, err)
	return p
}

func TestStoreUpdateAlertSequence(t *testing.T) {
	t.Parallel()

	const threshold = 300000
	store := Store{}
	key := NewKey("GRU", "2026-04-26")
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	steps := []struct {
		raw        string
		wantAlert  bool
		wantResult UpdateResult
		wantBest   int64
	}{
		{"348.000", false, UpdateCreated, 348000},
		{"250.000", true, UpdateImproved, 250000},
		{"260.000", false, UpdateUnchanged, 250000},
		{"200.000", true, UpdateImproved, 200000},
	}

	for i, step := range steps {
		at := base.Add(time.Duration(i) * time.Minute)
		event, result := store.Update(key, point(t, step.raw, at), threshold)
		assert.Equal(t, step.wantResult, result, "step %d", i)
		if step.wantAlert {
			require.NotNil(t, event, "step %d", i)
			assert.Equal(t, key, event.Key)
			assert.Equal(t, step.raw, event.Point.RawText)
			assert.EqualValues(t, threshold, event.Threshold)
		} else {
			assert.Nil(t, event, "step %d", i)
		}
		assert.Equal(t, step.wantBest, store[key.String()].PointsValue, "step %d", i)
	}

	rec := store[key.String()]
	assert.Equal(t, "200.000", rec.Points)
	assert.Equal(t, base.Add(3*time.Minute), rec.LastUpdated)
}

func TestStoreUpdateTracksMinimum(t *testing.T) {
	t.Parallel()

	store := Store{}
	key := NewKey("VCP", "2026-05-01")
	values := []string{"0", "410.500", "", "399.999", "512.000", "0", "120.000", "120.000", "130.000"}

	var (
		minSeen  int64
		previous int64
	)
	for i, raw := range values {
		p := point(t, raw, time.Unix(int64(i), 0))
		store.Update(key, p, 1)
		if p.Value > 0 && (minSeen == 0 || p.Value < minSeen) {
			minSeen = p.Value
		}
		got := store[key.String()].PointsValue
		assert.Equal(t, minSeen, got)
		if previous != 0 {
			assert.LessOrEqual(t, got, previous, "best value must never increase")
		}
		previous = got
	}
}

func TestStoreUpdateIgnoresZero(t *testing.T) {
	t.Parallel()

	store := Store{}
	key := NewKey("GRU", "2026-04-27")
	event, result := store.Update(key, point(t, "", time.Now()), 300000)
	assert.Nil(t, event)
	assert.Equal(t, UpdateIgnored, result)
	assert.Empty(t, store)

	store.Update(key, point(t, "150.000", time.Now()), 300000)
	event, result = store.Update(key, point(t, "0", time.Now()), 300000)
	assert.Nil(t, event)
	assert.Equal(t, UpdateIgnored, result)
	assert.EqualValues(t, 150000, store[key.String()].PointsValue)
}

func TestStoreUpdateAtThresholdDoesNotAlert(t *testing.T) {
	t.Parallel()

	store := Store{}
	event, result := store.Update(NewKey("GRU", "2026-04-28"), point(t, "300.000", time.Now()), 300000)
	assert.Nil(t, event)
	assert.Equal(t, UpdateCreated, result)
}

func TestStoreCloneAndSortedKeys(t *testing.T) {
	t.Parallel()

	store := Store{"VCP-2026-04-26": {PointsValue: 1}, "GRU-2026-04-26": {PointsValue: 2}}
	clone := store.Clone()
	clone["GRU-2026-04-27"] = BestRecord{PointsValue: 3}

	assert.Len(t, store, 2)
	assert.Equal(t, []string{"GRU-2026-04-26", "GRU-2026-04-27", "VCP-2026-04-26"}, clone.SortedKeys())
}
