package bag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testNow = time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)

func TestDeriveLockStatePastCutoff(t *testing.T) {
	cutoffs := []time.Time{
		testNow.Add(-time.Second),
		testNow.Add(-48 * time.Hour),
		testNow, // exactly at cutoff counts as expired
	}

	for _, cutoff := range cutoffs {
		state, countdown := DeriveLockState(cutoff, false, testNow)
		assert.Equal(t, LockStateExpired, state)
		assert.Equal(t, Countdown{}, countdown)

		// confirmation wins regardless of cutoff
		state, _ = DeriveLockState(cutoff, true, testNow)
		assert.Equal(t, LockStateConfirmed, state)
	}
}

func TestDeriveLockStateCountingDown(t *testing.T) {
	cutoff := testNow.Add(2*24*time.Hour + 3*time.Hour + 25*time.Minute + 42*time.Second)

	state, countdown := DeriveLockState(cutoff, false, testNow)
	assert.Equal(t, LockStateCountingDown, state)
	assert.Equal(t, Countdown{Days: 2, Hours: 3, Minutes: 25, Seconds: 42}, countdown)
}

func TestCountdownDecompositionIdentity(t *testing.T) {
	remainders := []time.Duration{
		time.Second,
		59 * time.Second,
		time.Minute,
		90 * time.Minute,
		26 * time.Hour,
		7*24*time.Hour - time.Second,
	}

	for _, remaining := range remainders {
		cutoff := testNow.Add(remaining)
		state, c := DeriveLockState(cutoff, false, testNow)
		assert.Equal(t, LockStateCountingDown, state)

		total := c.Days*86400 + c.Hours*3600 + c.Minutes*60 + c.Seconds
		assert.Equal(t, int(remaining/time.Second), total, "remaining=%s", remaining)
		assert.Less(t, c.Hours, 24)
		assert.Less(t, c.Minutes, 60)
		assert.Less(t, c.Seconds, 60)
	}
}

func TestDeriveLockStateScenario(t *testing.T) {
	cutoff := testNow.Add(2 * time.Hour)

	state, countdown := DeriveLockState(cutoff, false, testNow)
	assert.Equal(t, LockStateCountingDown, state)
	assert.False(t, IsLocked(cutoff, false, testNow))
	assert.Positive(t, countdown.Hours*3600+countdown.Minutes*60+countdown.Seconds)

	later := cutoff.Add(time.Second)
	state, _ = DeriveLockState(cutoff, false, later)
	assert.Equal(t, LockStateExpired, state)
	assert.True(t, IsLocked(cutoff, false, later))
}

func TestDeriveLockStateFromStringUnparsable(t *testing.T) {
	state, _ := deriveLockStateString("not-a-timestamp", false, testNow)
	assert.Equal(t, LockStateExpired, state, "unparsable cutoff fails safe to locked")

	state, _ = deriveLockStateString("", false, testNow)
	assert.Equal(t, LockStateExpired, state)

	state, _ = deriveLockStateString("garbage", true, testNow)
	assert.Equal(t, LockStateConfirmed, state)

	state, _ = deriveLockStateString(testNow.Add(time.Hour).Format(time.RFC3339), false, testNow)
	assert.Equal(t, LockStateCountingDown, state)
}

func TestIsLockedMatchesDerivedState(t *testing.T) {
	cases := []struct {
		cutoff    time.Time
		confirmed bool
	}{
		{testNow.Add(time.Hour), false},
		{testNow.Add(time.Hour), true},
		{testNow.Add(-time.Hour), false},
		{testNow.Add(-time.Hour), true},
	}

	for _, tc := range cases {
		state, _ := DeriveLockState(tc.cutoff, tc.confirmed, testNow)
		locked := IsLocked(tc.cutoff, tc.confirmed, testNow)
		assert.Equal(t, state != LockStateCountingDown, locked)
	}
}
