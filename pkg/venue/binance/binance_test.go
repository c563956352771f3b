package binance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookfeed/internal/ratelimit"
	"bookfeed/pkg/feed"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{name: "integer", input: "100", want: 100},
		{name: "fraction", input: "0.00012345", want: 0.00012345},
		{name: "typical price", input: "64231.50000000", want: 64231.5},
		{name: "zero", input: "0.00000000", want: 0},
		{name: "garbage", input: "abc", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDecimal(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestParseLevels(t *testing.T) {
	levels, err := parseLevels([][]string{
		{"100.50", "2.5"},
		{"100.00", "0.00000000"},
	})
	require.NoError(t, err)
	require.Len(t, levels, 2)

	assert.Equal(t, 100.5, levels[0].Price)
	assert.Equal(t, 2.5, levels[0].Size)

	// Zero-size rows survive parsing; in a delta they mean removal.
	assert.Equal(t, 100.0, levels[1].Price)
	assert.Equal(t, 0.0, levels[1].Size)
}

func TestParseLevelsMalformed(t *testing.T) {
	_, err := parseLevels([][]string{{"100.50"}})
	assert.Error(t, err)

	_, err = parseLevels([][]string{{"100.50", "not-a-number"}})
	assert.Error(t, err)
}

func TestDepthWeight(t *testing.T) {
	tests := []struct {
		limit  int
		weight int
	}{
		{limit: 5, weight: 5},
		{limit: 100, weight: 5},
		{limit: 101, weight: 25},
		{limit: 500, weight: 25},
		{limit: 1000, weight: 50},
		{limit: 5000, weight: 250},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.weight, depthWeight(tt.limit), "limit %d", tt.limit)
	}
}

func TestParseFrameDepthUpdate(t *testing.T) {
	s := NewStream(DefaultStreamConfig())

	raw := []byte(`{
		"e": "depthUpdate",
		"E": 1700000000000,
		"s": "BTCUSDT",
		"U": 157,
		"u": 160,
		"b": [["64000.00", "1.5"], ["63999.00", "0.0"]],
		"a": [["64001.00", "2.0"]]
	}`)

	delta, ok, err := s.parseFrame(raw)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, int64(157), delta.FirstUpdateID)
	assert.Equal(t, int64(160), delta.FinalUpdateID)
	require.Len(t, delta.Bids, 2)
	require.Len(t, delta.Asks, 1)
	assert.Equal(t, 64000.0, delta.Bids[0].Price)
	assert.Equal(t, 0.0, delta.Bids[1].Size)
	assert.Equal(t, 64001.0, delta.Asks[0].Price)
}

func TestParseFrameControlFrames(t *testing.T) {
	s := NewStream(DefaultStreamConfig())

	// Subscription ack.
	_, ok, err := s.parseFrame([]byte(`{"result": null, "id": 1}`))
	require.NoError(t, err)
	assert.False(t, ok)

	// Unrelated event type.
	_, ok, err = s.parseFrame([]byte(`{"e": "trade", "s": "BTCUSDT"}`))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseFrameMalformed(t *testing.T) {
	s := NewStream(DefaultStreamConfig())

	_, _, err := s.parseFrame([]byte(`not json`))
	assert.Error(t, err)

	_, _, err = s.parseFrame([]byte(`{"e": "depthUpdate", "b": [["bad"]]}`))
	assert.Error(t, err)
}

func TestSpotContinuity(t *testing.T) {
	tests := []struct {
		name   string
		last   int64
		synced bool
		first  int64
		final  int64
		want   feed.Continuity
	}{
		{name: "stale before snapshot", last: 100, synced: false, first: 90, final: 100, want: feed.ContinuitySkip},
		{name: "stale after sync", last: 100, synced: true, first: 95, final: 100, want: feed.ContinuitySkip},
		{name: "first delta straddles", last: 100, synced: false, first: 98, final: 105, want: feed.ContinuityApply},
		{name: "first delta exact", last: 100, synced: false, first: 101, final: 103, want: feed.ContinuityApply},
		{name: "first delta too new", last: 100, synced: false, first: 102, final: 110, want: feed.ContinuityGap},
		{name: "continuation exact", last: 105, synced: true, first: 106, final: 108, want: feed.ContinuityApply},
		{name: "continuation overlap rejected", last: 105, synced: true, first: 104, final: 108, want: feed.ContinuityGap},
		{name: "continuation hole", last: 105, synced: true, first: 108, final: 110, want: feed.ContinuityGap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &feed.Delta{FirstUpdateID: tt.first, FinalUpdateID: tt.final}
			assert.Equal(t, tt.want, SpotContinuity(tt.last, tt.synced, d))
		})
	}
}

func TestDefaultLimits(t *testing.T) {
	limits := DefaultLimits()
	require.Contains(t, limits, ratelimit.CategoryMarketData)
	require.Contains(t, limits, ratelimit.CategoryOrders)
	require.Contains(t, limits, ratelimit.CategoryAccount)
	assert.Equal(t, 6000, limits[ratelimit.CategoryMarketData].Requests)
	assert.Equal(t, 100, limits[ratelimit.CategoryOrders].Requests)
}

func TestStreamConfigDefaults(t *testing.T) {
	s := NewStream(StreamConfig{})
	assert.Equal(t, spotStreamURL, s.config.URL)
	assert.Equal(t, "100ms", s.config.UpdateSpeed)
	assert.Equal(t, 1024, s.config.BufferSize)
}
