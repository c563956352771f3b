package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testConfig() Config {
	return Config{
		FailThreshold:    3,
		SuccessThreshold: 2,
		Cooldown:         50 * time.Millisecond,
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  string
	}{
		{"closed", StateClosed, "CLOSED"},
		{"open", StateOpen, "OPEN"},
		{"half_open", StateHalfOpen, "HALF_OPEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}

func TestBreaker_StartsClosed(t *testing.T) {
	b := New(testConfig())

	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreaker_OpensAfterFailThreshold(t *testing.T) {
	b := New(testConfig())

	b.Record(false)
	b.Record(false)
	assert.Equal(t, StateClosed, b.State())

	b.Record(false)
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New(testConfig())

	b.Record(false)
	b.Record(false)
	b.Record(true)
	b.Record(false)
	b.Record(false)

	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := New(testConfig())

	for i := 0; i < 3; i++ {
		b.Record(false)
	}
	assert.False(t, b.Allow())

	time.Sleep(60 * time.Millisecond)

	assert.True(t, b.Allow(), "probe admitted after cooldown")
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreaker_ClosesAfterProbeSuccesses(t *testing.T) {
	b := New(testConfig())

	for i := 0; i < 3; i++ {
		b.Record(false)
	}
	time.Sleep(60 * time.Millisecond)
	assert.True(t, b.Allow())

	b.Record(true)
	assert.Equal(t, StateHalfOpen, b.State())

	b.Record(true)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_ReopensOnProbeFailure(t *testing.T) {
	b := New(testConfig())

	for i := 0; i < 3; i++ {
		b.Record(false)
	}
	time.Sleep(60 * time.Millisecond)
	assert.True(t, b.Allow())

	b.Record(false)
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreaker_Reset(t *testing.T) {
	b := New(testConfig())

	for i := 0; i < 3; i++ {
		b.Record(false)
	}
	assert.Equal(t, StateOpen, b.State())

	b.Reset()

	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}
