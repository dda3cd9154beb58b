package points

import "sort"

// UpdateResult describes what Store.Update did with a point.
type UpdateResult string

// Update results.
const (
	UpdateIgnored   UpdateResult = "ignored"
	UpdateCreated   UpdateResult = "created"
	UpdateImproved  UpdateResult = "improved"
	UpdateUnchanged UpdateResult = "unchanged"
)

// Store maps "<origin>-<date>" to the best record seen for that key.
type Store map[string]BestRecord

// Clone returns a shallow copy of the store.
func (s Store) Clone() Store {
	out := make(Store, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// SortedKeys returns the store keys in lexical order.
func (s Store) SortedKeys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Update records point for key when it is the first or a strictly lower value.
// The record is kept regardless of threshold; an AlertEvent is returned only
// when the record changed and the new value is below threshold.
func (s Store) Update(key Key, point PricePoint, threshold int64) (*AlertEvent, UpdateResult) {
	if point.NoSignal() {
		return nil, UpdateIgnored
	}

	id := key.String()
	result := UpdateCreated
	if existing, ok := s[id]; ok {
		if point.Value >= existing.PointsValue {
			return nil, UpdateUnchanged
		}
		result = UpdateImproved
	}

	s[id] = BestRecord{
		Points:      point.RawText,
		PointsValue: point.Value,
		LastUpdated: point.ObservedAt,
	}
	if point.Value >= threshold {
		return nil, result
	}
	return &AlertEvent{Key: key, Point: point, Threshold: threshold}, result
}
