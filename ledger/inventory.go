package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Inventory tracks lots of commodities with cost basis
type Inventory struct {
	// Map: commodity -> list of lots
	lots map[string][]*lot
}

// NewInventory creates a new inventory
func NewInventory() *Inventory {
	return &Inventory{
		lots: make(map[string][]*lot),
	}
}

// Add adds an amount without cost basis
func (inv *Inventory) Add(commodity string, amount decimal.Decimal) {
	// Add as a lot without cost spec
	inv.AddLot(commodity, amount, nil)
}

// AddLot adds an amount with a specific cost basis
func (inv *Inventory) AddLot(commodity string, amount decimal.Decimal, spec *lotSpec) {
	// Find existing lot with matching spec
	lots := inv.lots[commodity]
	for _, lot := range lots {
		if lotSpecsMatch(lot.Spec, spec) {
			// Add to existing lot
			lot.Amount = lot.Amount.Add(amount)
			return
		}
	}

	// Create new lot
	newLot := newLot(commodity, amount, spec)
	inv.lots[commodity] = append(inv.lots[commodity], newLot)
}

// Get returns the total amount of a commodity (summing all lots)
func (inv *Inventory) Get(commodity string) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range inv.lots[commodity] {
		total = total.Add(lot.Amount)
	}
	return total
}

// GetLots returns all lots for a commodity
func (inv *Inventory) GetLots(commodity string) []*lot {
	return inv.lots[commodity]
}

// ReduceLot reduces from a specific lot or uses booking method
func (inv *Inventory) ReduceLot(commodity string, amount decimal.Decimal, spec *lotSpec, bookingMethod string) error {
	// Reducing means amount should be negative
	if amount.GreaterThanOrEqual(decimal.Zero) {
		return fmt.Errorf("reduce amount must be negative, got %s", amount.String())
	}

	// Get absolute value for comparison
	reduceAmount := amount.Abs()

	// Empty spec {} means use booking method, against the positive
	// magnitude to reduce.
	if spec != nil && spec.IsEmpty() {
		return inv.reduceWithBooking(commodity, reduceAmount, bookingMethod)
	}

	// Specific lot spec - find matching lot
	if spec != nil && spec.Cost != nil {
		return inv.reduceSpecificLot(commodity, reduceAmount, spec)
	}

	// No spec at all - treat as simple amount
	// Just add the negative amount to first available lot or create new lot
	inv.AddLot(commodity, amount, nil)
	return nil
}

// reduceSpecificLot reduces from a specific lot matching the spec
func (inv *Inventory) reduceSpecificLot(commodity string, amount decimal.Decimal, spec *lotSpec) error {
	lots := inv.lots[commodity]

	// Find matching lot
	for _, lot := range lots {
		if lotSpecsMatch(lot.Spec, spec) {
			// Check if sufficient amount
			if lot.Amount.LessThan(amount) {
				return fmt.Errorf("insufficient amount in lot %s: have %s, need %s",
					spec.String(), lot.Amount.String(), amount.String())
			}

			// Reduce from lot
			lot.Amount = lot.Amount.Sub(amount)

			// Remove lot if empty
			if lot.Amount.IsZero() {
				inv.removeLot(commodity, lot)
			}

			return nil
		}
	}

	return fmt.Errorf("lot not found: %s %s", commodity, spec.String())
}

// reduceWithBooking reduces a commodity position by the positive magnitude
// amount using the named booking method, matching candidate lots the way
// the original implementation's resolve_matches does: NONE skips matching
// entirely (postings are allowed to carry mixed signs), and every other
// method is delegated to resolveMatches in matcher.go.
func (inv *Inventory) reduceWithBooking(commodity string, amount decimal.Decimal, bookingMethod string) error {
	if bookingMethod == "NONE" {
		newLot := newLot(commodity, amount.Neg(), nil)
		inv.lots[commodity] = append(inv.lots[commodity], newLot)
		return nil
	}

	return inv.resolveMatches(commodity, amount, bookingMethod)
}

// canReduceWithBooking reports whether reducing commodity by the positive
// magnitude amount under bookingMethod would succeed, without mutating the
// inventory.
func (inv *Inventory) canReduceWithBooking(commodity string, amount decimal.Decimal, bookingMethod string) error {
	return inv.Clone().reduceWithBooking(commodity, amount, bookingMethod)
}

// canReduceSpecificLot reports whether reducing commodity by the positive
// magnitude amount against spec would succeed, without mutating the
// inventory.
func (inv *Inventory) canReduceSpecificLot(commodity string, amount decimal.Decimal, spec *lotSpec) error {
	return inv.Clone().reduceSpecificLot(commodity, amount, spec)
}

// CanReduceLot reports whether reducing commodity by amount under spec and
// bookingMethod would succeed, without mutating the inventory. Used by the
// validator to surface booking errors before any transaction is applied.
func (inv *Inventory) CanReduceLot(commodity string, amount decimal.Decimal, spec *lotSpec, bookingMethod string) error {
	return inv.Clone().ReduceLot(commodity, amount, spec, bookingMethod)
}

// Clone returns a deep copy of the inventory suitable for a dry-run
// reduction check (CanReduceLot mutates the clone, never the original).
func (inv *Inventory) Clone() *Inventory {
	clone := NewInventory()
	for commodity, lots := range inv.lots {
		cloned := make([]*lot, len(lots))
		for i, l := range lots {
			if l.Spec == nil {
				cloned[i] = newLot(l.Commodity, l.Amount, nil)
				continue
			}
			specCopy := *l.Spec
			cloned[i] = newLot(l.Commodity, l.Amount, &specCopy)
		}
		clone.lots[commodity] = cloned
	}
	return clone
}

// removeLot removes a lot from the inventory
func (inv *Inventory) removeLot(commodity string, lotToRemove *lot) {
	lots := inv.lots[commodity]
	newLots := make([]*lot, 0, len(lots)-1)
	for _, lot := range lots {
		if lot != lotToRemove {
			newLots = append(newLots, lot)
		}
	}
	if len(newLots) == 0 {
		delete(inv.lots, commodity)
	} else {
		inv.lots[commodity] = newLots
	}
}

// IsEmpty returns true if the inventory has no lots
func (inv *Inventory) IsEmpty() bool {
	return len(inv.lots) == 0
}

// Currencies returns all commodities in the inventory
func (inv *Inventory) Currencies() []string {
	currencies := make([]string, 0, len(inv.lots))
	for currency := range inv.lots {
		currencies = append(currencies, currency)
	}
	return currencies
}

// String returns a string representation of the inventory
func (inv *Inventory) String() string {
	if inv.IsEmpty() {
		return "{}"
	}

	var buf strings.Builder
	buf.WriteByte('{')

	first := true
	for commodity, lots := range inv.lots {
		for _, lot := range lots {
			if !first {
				buf.WriteString(", ")
			}
			if lot.Spec == nil || lot.Spec.IsEmpty() {
				buf.WriteString(lot.Amount.String())
				buf.WriteByte(' ')
				buf.WriteString(commodity)
			} else {
				buf.WriteString(lot.String())
			}
			first = false
		}
	}
	buf.WriteByte('}')
	return buf.String()
}

// lotSpecsMatch checks if two lot specs match
func lotSpecsMatch(a, b *lotSpec) bool {
	// Both nil
	if a == nil && b == nil {
		return true
	}

	// One nil, one not
	if a == nil || b == nil {
		return false
	}

	return a.Equal(b)
}
