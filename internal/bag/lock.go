// Package bag holds the pure weekly-bag rules: lock-state derivation with
// the edit cutoff, box-size change decisions and cutoff scheduling. It has
// no dependencies on storage or transport so the same rules can be applied
// by handlers, the outbox worker and clients alike.
package bag

import "time"

// LockState describes whether a weekly bag can still be edited.
type LockState string

const (
	// LockStateConfirmed: the user confirmed the bag, it is locked for edits.
	LockStateConfirmed LockState = "CONFIRMED"
	// LockStateExpired: the cutoff passed without confirmation, locked.
	LockStateExpired LockState = "EXPIRED"
	// LockStateCountingDown: still editable, a countdown to cutoff runs.
	LockStateCountingDown LockState = "COUNTING_DOWN"
)

// Countdown is the remaining time to cutoff decomposed into integer parts
// (floor division, no rounding).
type Countdown struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// DeriveLockState computes the display/lock state of a bag at a given
// instant. The countdown is only meaningful for LockStateCountingDown and
// zero otherwise.
func DeriveLockState(cutoff time.Time, isConfirmed bool, now time.Time) (LockState, Countdown) {
	if isConfirmed {
		return LockStateConfirmed, Countdown{}
	}
	if !now.Before(cutoff) {
		return LockStateExpired, Countdown{}
	}

	remaining := int(cutoff.Sub(now) / time.Second)
	return LockStateCountingDown, Countdown{
		Days:    remaining / 86400,
		Hours:   remaining % 86400 / 3600,
		Minutes: remaining % 3600 / 60,
		Seconds: remaining % 60,
	}
}

// deriveLockStateString is DeriveLockState for a serialized RFC 3339 cutoff.
// An unparsable cutoff fails safe to EXPIRED rather than erroring.
func deriveLockStateString(cutoff string, isConfirmed bool, now time.Time) (LockState, Countdown) {
	t, err := time.Parse(time.RFC3339, cutoff)
	if err != nil {
		if isConfirmed {
			return LockStateConfirmed, Countdown{}
		}
		return LockStateExpired, Countdown{}
	}
	return DeriveLockState(t, isConfirmed, now)
}

// IsLocked is the single edit-gating predicate. Every mutation path must use
// this rather than re-deriving its own variant.
func IsLocked(cutoff time.Time, isConfirmed bool, now time.Time) bool {
	return isConfirmed || !now.Before(cutoff)
}
