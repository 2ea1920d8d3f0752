package formulacore

// spillAnchor records the rectangle a dynamic-array formula currently
// occupies, keyed by the anchor cell (the formula cell itself). Occupants
// are virtual: only the anchor's rectangle is stored, and occupancy is
// derived from it rather than storing one entry per cell.
type spillAnchor struct {
	Rect      RangeAddress
	Obstructed bool
}

// SpillManager tracks dynamic-array spill rectangles and detects
// obstruction: a spill anchor whose target rectangle overlaps another
// occupied cell reports #SPILL! instead of writing values, and
// re-attempts on every recalculation in case the obstruction cleared.
type SpillManager struct {
	anchors   map[CellAddress]*spillAnchor
	occupants map[CellAddress]CellAddress // occupant -> anchor
}

func NewSpillManager() *SpillManager {
	return &SpillManager{
		anchors:   make(map[CellAddress]*spillAnchor),
		occupants: make(map[CellAddress]CellAddress),
	}
}

// anchorFor reports the current spill rectangle for the anchor at addr, if
// one is registered (consulted by eval.go when resolving a trailing '#'
// spill reference like A1#).
func (sm *SpillManager) anchorFor(addr CellAddress) (*spillAnchor, bool) {
	a, ok := sm.anchors[addr]
	return a, ok
}

// clearAnchor removes a prior spill (before recomputing it), releasing its
// occupant cells so another formula may spill into that space.
func (sm *SpillManager) clearAnchor(addr CellAddress) {
	anchor, ok := sm.anchors[addr]
	if !ok {
		return
	}
	anchor.Rect.Each(func(c CellAddress) {
		if c != addr {
			delete(sm.occupants, c)
		}
	})
	delete(sm.anchors, addr)
}

// TrySpill attempts to claim rect for anchor, given isOccupied reporting
// whether a non-spill cell already has content at a given address. On
// success it registers the occupants and returns true; on obstruction it
// records the anchor as obstructed (so #SPILL! renders) and returns false.
func (sm *SpillManager) TrySpill(anchor CellAddress, rect RangeAddress, isOccupied func(CellAddress) bool) bool {
	sm.clearAnchor(anchor)

	obstructed := false
	rect.Each(func(c CellAddress) {
		if c == anchor {
			return
		}
		if isOccupied(c) {
			obstructed = true
			return
		}
		if owner, taken := sm.occupants[c]; taken && owner != anchor {
			obstructed = true
		}
	})

	if obstructed {
		sm.anchors[anchor] = &spillAnchor{Rect: NewRangeAddress(rect.Sheet, rect.StartRow, rect.StartCol, rect.StartRow, rect.StartCol), Obstructed: true}
		return false
	}

	sm.anchors[anchor] = &spillAnchor{Rect: rect}
	rect.Each(func(c CellAddress) {
		if c != anchor {
			sm.occupants[c] = anchor
		}
	})
	return true
}

// OccupantOf reports the spill anchor that owns addr, if addr is currently
// a spill occupant (not the anchor cell itself).
func (sm *SpillManager) OccupantOf(addr CellAddress) (CellAddress, bool) {
	anchor, ok := sm.occupants[addr]
	return anchor, ok
}

// IsObstructed reports whether the spill anchored at addr is currently
// blocked, meaning its formula result should render as #SPILL!.
func (sm *SpillManager) IsObstructed(addr CellAddress) bool {
	anchor, ok := sm.anchors[addr]
	return ok && anchor.Obstructed
}

// RemoveAnchor fully forgets a spill (e.g. the anchor cell's formula was
// deleted or changed to a non-array result).
func (sm *SpillManager) RemoveAnchor(addr CellAddress) {
	sm.clearAnchor(addr)
}
