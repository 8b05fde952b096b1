package models

import (
	"fmt"
	"strconv"
	"strings"
)

// SecondarySlots is the number of secondary positions on the home page.
const SecondarySlots = 4

type Category string

const (
	CategoryPrimary   Category = "primary"
	CategorySecondary Category = "secondary"
	CategoryRegular   Category = "regular"
)

// Placement is where an article sits on the home page. Slot is 1..4 for
// secondary placements and 0 otherwise.
type Placement struct {
	Category Category `json:"category"`
	Slot     int      `json:"slot,omitempty"`
}

func Primary() Placement { return Placement{Category: CategoryPrimary} }
func Secondary(slot int) Placement { return Placement{Category: CategorySecondary, Slot: slot} }
func Regular() Placement { return Placement{Category: CategoryRegular} }

// Validate rejects unknown categories and secondary placements without a slot in range.
func (p Placement) Validate() error {
	switch p.Category {
	case CategoryPrimary, CategoryRegular:
		if p.Slot != 0 {
			return fmt.Errorf("%s placement takes no slot", p.Category)
		}
		return nil
	case CategorySecondary:
		if p.Slot < 1 || p.Slot > SecondarySlots {
			return fmt.Errorf("secondary slot %d out of range 1..%d", p.Slot, SecondarySlots)
		}
		return nil
	}
	return fmt.Errorf("unknown placement category %q", p.Category)
}

func (p Placement) String() string {
	if p.Category == CategorySecondary {
		return "secondary " + strconv.Itoa(p.Slot)
	}
	return string(p.Category)
}

// ParsePlacement accepts "primary", "regular", "secondary-N" and "secondary N".
func ParsePlacement(s string) (Placement, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "regular":
		return Regular(), nil
	case "primary":
		return Primary(), nil
	}
	rest, ok := strings.CutPrefix(s, "secondary")
	if !ok {
		return Placement{}, fmt.Errorf("unknown placement %q", s)
	}
	n, err := strconv.Atoi(strings.TrimLeft(rest, " -_"))
	if err != nil {
		return Placement{}, fmt.Errorf("unknown placement %q", s)
	}
	p := Secondary(n)
	return p, p.Validate()
}

// Placement derives the placement from the stored flags. Primary wins, then the
// lowest secondary slot.
func (a Article) Placement() Placement {
	switch {
	case a.IsPrimary:
		return Primary()
	case a.IsSecondaryPrimary1:
		return Secondary(1)
	case a.IsSecondaryPrimary2:
		return Secondary(2)
	case a.IsSecondaryPrimary3:
		return Secondary(3)
	case a.IsSecondaryPrimary4:
		return Secondary(4)
	}
	return Regular()
}

// SetPlacement rewrites all five flags.
func (a *Article) SetPlacement(p Placement) {
	a.IsPrimary = p.Category == CategoryPrimary
	sec := p.Category == CategorySecondary
	a.IsSecondaryPrimary1 = sec && p.Slot == 1
	a.IsSecondaryPrimary2 = sec && p.Slot == 2
	a.IsSecondaryPrimary3 = sec && p.Slot == 3
	a.IsSecondaryPrimary4 = sec && p.Slot == 4
}

// CopyPlacement takes all five flags from other as they are.
func (a *Article) CopyPlacement(other Article) {
	a.IsPrimary = other.IsPrimary
	a.IsSecondaryPrimary1 = other.IsSecondaryPrimary1
	a.IsSecondaryPrimary2 = other.IsSecondaryPrimary2
	a.IsSecondaryPrimary3 = other.IsSecondaryPrimary3
	a.IsSecondaryPrimary4 = other.IsSecondaryPrimary4
}

func (a *Article) slotFlag(n int) *bool {
	switch n {
	case 1:
		return &a.IsSecondaryPrimary1
	case 2:
		return &a.IsSecondaryPrimary2
	case 3:
		return &a.IsSecondaryPrimary3
	case 4:
		return &a.IsSecondaryPrimary4
	}
	return nil
}

// HoldsSlot reports whether the secondary flag for slot n is set.
func (a Article) HoldsSlot(n int) bool {
	if f := a.slotFlag(n); f != nil {
		return *f
	}
	return false
}

// ClearSlot unsets the flag of secondary slot n and leaves the others alone.
func (a *Article) ClearSlot(n int) {
	if f := a.slotFlag(n); f != nil {
		*f = false
	}
}
