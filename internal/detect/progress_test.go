package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimator_StaysBelowCeilingWhileInFlight(t *testing.T) {
	e := NewEstimator(2 * time.Millisecond)
	stop := e.Begin()
	defer stop()

	require.Eventually(t, func() bool { return e.Value() > 0 }, time.Second, time.Millisecond,
		"estimate should rise while in flight")

	// Long enough for far more ticks than the ceiling allows.
	time.Sleep(100 * time.Millisecond)
	v := e.Value()
	assert.Greater(t, v, float64(0))
	assert.LessOrEqual(t, v, float64(90), "estimate must saturate below completion")
}

func TestEstimator_BeginResetsPriorValue(t *testing.T) {
	e := NewEstimator(time.Hour)
	e.Complete()
	require.Equal(t, float64(100), e.Value())

	stop := e.Begin()
	defer stop()
	assert.Equal(t, float64(0), e.Value(), "a new submission starts from zero")
}

func TestEstimator_StopPreventsLateTicks(t *testing.T) {
	e := NewEstimator(2 * time.Millisecond)
	stop := e.Begin()

	time.Sleep(10 * time.Millisecond)
	stop()
	e.Complete()

	// If the tick loop outlived stop, this window would let it overwrite
	// the terminal value.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, float64(100), e.Value())
}

func TestEstimator_StopIsIdempotent(t *testing.T) {
	e := NewEstimator(2 * time.Millisecond)
	stop := e.Begin()
	stop()
	stop()

	e.Fail()
	assert.Equal(t, float64(0), e.Value())
}
