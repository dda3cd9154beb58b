package points

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePoints(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"dotted thousands", "348.000", 348000, false},
		{"empty", "", 0, false},
		{"comma thousands", "1,250", 1250, false},
		{"surrounding space", "  97.500 \n", 97500, false},
		{"non breaking space", "97\u00a0500", 97500, false},
		{"zero", "0", 0, false},
		{"letters", "348.000 pts", 0, true},
		{"negative", "-5", 0, true},
		{"overflow", "1234567890123456789012", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePoints(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestKeysCrossProductOrder(t *testing.T) {
	t.Parallel()

	keys := Keys([]string{"GRU", "VCP"}, []string{"2026-04-26", "2026-04-27"})
	require.Len(t, keys, 4)
	assert.Equal(t, "GRU-2026-04-26", keys[0].String())
	assert.Equal(t, "GRU-2026-04-27", keys[1].String())
	assert.Equal(t, "VCP-2026-04-26", keys[2].String())
	assert.Equal(t, "VCP-2026-04-27", keys[3].String())
}

func TestTargetURL(t *testing.T) {
	t.Parallel()

	target := Target{
		URLTemplate: "https://example.com/flights/OW/{origin}/{destination}/-/-/{date}/-/2",
		Destination: "PUJ",
		Selector:    ".labelValuePoints",
	}
	require.NoError(t, target.Validate())
	assert.Equal(t,
		"https://example.com/flights/OW/GRU/PUJ/-/-/2026-04-26/-/2",
		target.URL(NewKey("GRU", "2026-04-26")),
	)

	assert.Error(t, Target{URLTemplate: "https://example.com", Selector: "x"}.Validate())
	assert.Error(t, Target{URLTemplate: "https://example.com/{origin}/{date}"}.Validate())
}

func TestFetchResultErr(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Found(PricePoint{Value: 1}).Err())
	assert.True(t, errors.Is(Absent(OutcomeTimeout, "").Err(), ErrExtractionTimeout))
	assert.True(t, errors.Is(Absent(OutcomeMissingElement, "").Err(), ErrExtractionMissingElement))
	assert.True(t, errors.Is(Absent(OutcomeSessionFault, "").Err(), ErrExtractionSessionFault))
	assert.True(t, errors.Is(Absent(OutcomeUnexpected, "boom").Err(), ErrExtractionUnexpected))

	cause := errors.New("renderer gone")
	fault := &SweepFault{Cause: cause}
	assert.ErrorIs(t, fault, cause)
	assert.Equal(t, "sweep fault: renderer gone", fault.Error())
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	ts, err := ParseTimestamp("2025-11-03T14:05:00Z")
	require.NoError(t, err)
	assert.True(t, time.Date(2025, 11, 3, 14, 5, 0, 0, time.UTC).Equal(ts))

	ts, err = ParseTimestamp("2025-11-03T14:05:00.5-03:00")
	require.NoError(t, err)
	assert.True(t, time.Date(2025, 11, 3, 17, 5, 0, 500000000, time.UTC).Equal(ts))

	ts, err = ParseTimestamp("2026-01-05T12:34:56.123456")
	require.NoError(t, err)
	assert.True(t, time.Date(2026, 1, 5, 12, 34, 56, 123456000, time.Local).Equal(ts))

	ts, err = ParseTimestamp("")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	_, err = ParseTimestamp("05/01/2026")
	assert.Error(t, err)
}

func TestBestRecordDecodesNaiveTimestamp(t *testing.T) {
	t.Parallel()

	var rec BestRecord
	err := json.Unmarshal([]byte(`{"points":"97.500","points_value":97500,"last_updated":"2026-01-05T12:34:56.123456"}`), &rec)
	require.NoError(t, err)
	assert.Equal(t, "97.500", rec.Points)
	assert.EqualValues(t, 97500, rec.PointsValue)
	assert.Equal(t, 2026, rec.LastUpdated.Year())
	assert.Equal(t, 123456000, rec.LastUpdated.Nanosecond())

	out, err := json.Marshal(BestRecord{Points: "1", PointsValue: 1, LastUpdated: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"points":"1","points_value":1,"last_updated":"2025-01-02T03:04:05Z"}`, string(out))
}
