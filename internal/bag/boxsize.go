package bag

// ChangeDecision is the outcome of the box-size change decision table.
type ChangeDecision string

const (
	// ChangeNoop: selected size equals the current size.
	ChangeNoop ChangeDecision = "noop"
	// ChangeImmediate: downgrade on an unconfirmed bag, apply right away.
	ChangeImmediate ChangeDecision = "immediate"
	// ChangeNeedsConfirmation: upgrade, or any change to a confirmed bag.
	// The caller must obtain an explicit confirmation before applying.
	ChangeNeedsConfirmation ChangeDecision = "needs_confirmation"
)

// DecideChange decides whether switching from the current box size to the
// selected one needs an explicit confirmation step. Upgrades always do
// (they cost more), and so does any change to an already-confirmed bag
// (it is deferred to the next delivery week).
func DecideChange(currentSize, selectedSize string, currentPrice, selectedPrice int64, isConfirmed bool) ChangeDecision {
	if selectedSize == currentSize {
		return ChangeNoop
	}
	if selectedPrice-currentPrice > 0 || isConfirmed {
		return ChangeNeedsConfirmation
	}
	return ChangeImmediate
}
