package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groupCoordinator(t *testing.T, symbol string, source SnapshotSource, stream DeltaStream) *Coordinator {
	t.Helper()
	config := testConfig(1)
	config.Symbol = symbol
	c, err := New(config, source, stream)
	require.NoError(t, err)
	return c
}

func TestGroupRegistry(t *testing.T) {
	g := NewGroup()
	g.Add(groupCoordinator(t, "ETHUSDT", &fakeSource{}, &fakeStream{}))
	g.Add(groupCoordinator(t, "BTCUSDT", &fakeSource{}, &fakeStream{}))

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, g.Symbols())
	assert.NotNil(t, g.Feed("BTCUSDT"))
	assert.Nil(t, g.Feed("SOLUSDT"))

	quotes := g.Quotes()
	require.Len(t, quotes, 2)
	assert.Equal(t, "BTCUSDT", quotes["BTCUSDT"].Symbol)
}

func TestGroupRunEmpty(t *testing.T) {
	g := NewGroup()
	assert.Error(t, g.Run(context.Background()))
}

func TestGroupRunPropagatesFatalError(t *testing.T) {
	source := &fakeSource{fetch: func(int) (*Snapshot, error) {
		return nil, errors.New("venue down")
	}}

	g := NewGroup()
	g.Add(groupCoordinator(t, "BTCUSDT", source, &fakeStream{}))

	err := g.Run(context.Background())

	var exhausted *ExhaustedError
	assert.ErrorAs(t, err, &exhausted)
}

func TestGroupRunCancellation(t *testing.T) {
	source := &fakeSource{fetch: func(int) (*Snapshot, error) {
		return testSnapshot(100), nil
	}}

	g := NewGroup()
	g.Add(groupCoordinator(t, "BTCUSDT", source, &fakeStream{}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	require.Eventually(t, func() bool {
		return g.Feed("BTCUSDT").Quote().LastUpdateID == 100
	}, 2*time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
