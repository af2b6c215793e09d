package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// remainder tracks how much of a reducing posting's positive-magnitude
// units number is still unmatched against candidate lots.
//
// Grounded on the Remainder type in the original implementation's
// src/booking/methods.rs; the original carries the posting's sign through
// the accumulator, but every caller in this package already normalizes to
// a positive reduction magnitude before reaching the matcher, so the sign
// bookkeeping is pushed onto applyToLot below instead.
type remainder struct {
	remaining decimal.Decimal // always >= 0
}

func newRemainder(number decimal.Decimal) *remainder {
	return &remainder{remaining: number.Abs()}
}

// reduce consumes up to lotNumber's absolute value from the remainder and
// returns the (positive) magnitude to apply against that lot.
func (r *remainder) reduce(lotNumber decimal.Decimal) decimal.Decimal {
	take := decimal.Min(lotNumber.Abs(), r.remaining)
	r.remaining = r.remaining.Sub(take)
	return take
}

func (r *remainder) isStrictlyPositive() bool {
	return r.remaining.IsPositive()
}

// applyToLot moves a lot toward zero by magnitude, regardless of the lot's
// own sign (long positions are positive lots reduced downward; short
// positions are negative lots reduced upward).
func applyToLot(l *lot, magnitude decimal.Decimal) {
	if l.Amount.IsNegative() {
		l.Amount = l.Amount.Add(magnitude)
	} else {
		l.Amount = l.Amount.Sub(magnitude)
	}
}

// resolveMatches dispatches a lot reduction to the policy named by
// bookingMethod, mutating the matched lots directly and removing any that
// are fully consumed. amount is the positive magnitude to reduce.
//
// Grounded on resolve_matches in src/booking/methods.rs: NONE is handled by
// the caller before reaching here (it never matches lots at all), and
// AVERAGE is always a hard error rather than an attempted match.
func (inv *Inventory) resolveMatches(commodity string, amount decimal.Decimal, bookingMethod string) error {
	lots := inv.lots[commodity]

	if bookingMethod == "" {
		bookingMethod = "FIFO"
	}

	switch bookingMethod {
	case "AVERAGE":
		return &UnsupportedAverageBookingError{Commodity: commodity}
	case "FIFO", "LIFO", "HIFO":
		return inv.resolveOrdered(commodity, lots, amount, bookingMethod)
	case "STRICT":
		return inv.resolveStrict(commodity, lots, amount)
	default:
		panic("unsupported booking method " + bookingMethod + " after validation (validator bug)")
	}
}

// resolveOrdered sorts candidate lots by the tie-break order for the given
// method and greedily consumes them until the reduction is satisfied.
//
// FIFO sorts by cost.date ascending, LIFO by cost.date descending, and HIFO
// by cost-per-unit descending, matching the sort keys in resolve_ordered.
func (inv *Inventory) resolveOrdered(commodity string, lots []*lot, amount decimal.Decimal, bookingMethod string) error {
	if len(lots) == 0 {
		return &NoMatchesForReductionError{Commodity: commodity}
	}

	sorted := make([]*lot, len(lots))
	copy(sorted, lots)

	switch bookingMethod {
	case "FIFO":
		sort.SliceStable(sorted, func(i, j int) bool {
			return lotDateBefore(sorted[i], sorted[j])
		})
	case "LIFO":
		sort.SliceStable(sorted, func(i, j int) bool {
			return lotDateBefore(sorted[j], sorted[i])
		})
	case "HIFO":
		sort.SliceStable(sorted, func(i, j int) bool {
			return lotCostPerUnit(sorted[j]).LessThan(lotCostPerUnit(sorted[i]))
		})
	}

	rem := newRemainder(amount)
	for _, l := range sorted {
		if !rem.isStrictlyPositive() {
			break
		}
		delta := rem.reduce(l.Amount)
		applyToLot(l, delta)
		if l.Amount.IsZero() {
			inv.removeLot(commodity, l)
		}
	}

	if rem.isStrictlyPositive() {
		return &InsufficientLotsError{
			Commodity: commodity,
			Needed:    amount.Abs().String(),
			Available: amount.Abs().Sub(rem.remaining).String(),
		}
	}
	return nil
}

// resolveStrict implements the STRICT booking method for an empty cost spec
// {}: a single candidate lot is reduced in full (or errors InsufficientLots
// if it doesn't cover the reduction); multiple candidates are only resolved
// when their amounts sum exactly to the requested reduction, in which case
// every candidate is consumed in full, otherwise the match is ambiguous.
//
// Grounded on resolve_strict in src/booking/methods.rs.
func (inv *Inventory) resolveStrict(commodity string, lots []*lot, amount decimal.Decimal) error {
	if len(lots) == 0 {
		return &NoMatchesForReductionError{Commodity: commodity}
	}

	if len(lots) == 1 {
		l := lots[0]
		rem := newRemainder(amount)
		delta := rem.reduce(l.Amount)
		applyToLot(l, delta)
		if l.Amount.IsZero() {
			inv.removeLot(commodity, l)
		}
		if rem.isStrictlyPositive() {
			return &InsufficientLotsError{
				Commodity: commodity,
				Needed:    amount.Abs().String(),
				Available: delta.String(),
			}
		}
		return nil
	}

	sum := decimal.Zero
	for _, l := range lots {
		sum = sum.Add(l.Amount.Abs())
	}
	if !sum.Equal(amount.Abs()) {
		return &AmbiguousMatchesError{Commodity: commodity}
	}

	for _, l := range lots {
		inv.removeLot(commodity, l)
	}
	return nil
}

func lotDateBefore(a, b *lot) bool {
	aHasDate := a.Spec != nil && a.Spec.Date != nil
	bHasDate := b.Spec != nil && b.Spec.Date != nil
	if !aHasDate && !bHasDate {
		return false
	}
	if !aHasDate {
		return true
	}
	if !bHasDate {
		return false
	}
	return a.Spec.Date.Before(b.Spec.Date.Time)
}

func lotCostPerUnit(l *lot) decimal.Decimal {
	if l.Spec == nil || l.Spec.Cost == nil {
		return decimal.Zero
	}
	return *l.Spec.Cost
}
