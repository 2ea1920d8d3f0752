package formulacore

import "iter"

// NamedRangeTable manages named ranges with ID tracking for efficient
// renaming. Supports both defined and non-existent named ranges with
// reference counting. A name in a formula resolves as a LET binding first
// and then through this table, which holds every defined name in one
// workbook-wide namespace (there is no sheet-scoped tier).
type NamedRangeTable struct {
	nameToID map[string]uint32
	idToName map[uint32]string

	definedRanges map[uint32]RangeAddress
	undefinedIDs  map[uint32]struct{}

	refCounts map[uint32]int
	nextID    uint32
}

// NewNamedRangeTable creates a new named range table.
func NewNamedRangeTable() *NamedRangeTable {
	return &NamedRangeTable{
		nameToID:      make(map[string]uint32),
		idToName:      make(map[uint32]string),
		definedRanges: make(map[uint32]RangeAddress),
		undefinedIDs:  make(map[uint32]struct{}),
		refCounts:     make(map[uint32]int),
		nextID:        1,
	}
}

// InternNamedRange adds a reference to a named range (defined or not).
// Returns the ID of the named range.
func (nrt *NamedRangeTable) InternNamedRange(name string) uint32 {
	if id, exists := nrt.nameToID[name]; exists {
		nrt.refCounts[id]++
		return id
	}
	id := nrt.nextID
	nrt.nameToID[name] = id
	nrt.idToName[id] = name
	nrt.undefinedIDs[id] = struct{}{}
	nrt.refCounts[id] = 1
	nrt.nextID++
	return id
}

// DefineNamedRange defines or redefines a named range with an address.
func (nrt *NamedRangeTable) DefineNamedRange(name string, address RangeAddress) uint32 {
	if id, exists := nrt.nameToID[name]; exists {
		nrt.definedRanges[id] = address
		delete(nrt.undefinedIDs, id)
		nrt.refCounts[id]++
		return id
	}
	id := nrt.nextID
	nrt.nameToID[name] = id
	nrt.idToName[id] = name
	nrt.definedRanges[id] = address
	nrt.refCounts[id] = 1
	nrt.nextID++
	return id
}

// UndefineNamedRange removes the definition of a named range, returning
// true if the range was removed completely (no references remained).
func (nrt *NamedRangeTable) UndefineNamedRange(name string) bool {
	id, exists := nrt.nameToID[name]
	if !exists {
		return false
	}
	delete(nrt.definedRanges, id)
	if nrt.refCounts[id] > 0 {
		nrt.undefinedIDs[id] = struct{}{}
		return false
	}
	nrt.removeRange(id)
	return true
}

func (nrt *NamedRangeTable) removeRange(id uint32) {
	name := nrt.idToName[id]
	delete(nrt.nameToID, name)
	delete(nrt.idToName, id)
	delete(nrt.definedRanges, id)
	delete(nrt.undefinedIDs, id)
	delete(nrt.refCounts, id)
}

func (nrt *NamedRangeTable) AddReference(id uint32) bool {
	if _, exists := nrt.idToName[id]; !exists {
		return false
	}
	nrt.refCounts[id]++
	return true
}

func (nrt *NamedRangeTable) RemoveReference(id uint32) bool {
	if _, exists := nrt.idToName[id]; !exists {
		return false
	}
	nrt.refCounts[id]--
	if nrt.refCounts[id] <= 0 {
		if _, isUndefined := nrt.undefinedIDs[id]; isUndefined {
			nrt.removeRange(id)
			return true
		}
	}
	return false
}

func (nrt *NamedRangeTable) GetRangeAddress(id uint32) (RangeAddress, bool) {
	addr, exists := nrt.definedRanges[id]
	return addr, exists
}

func (nrt *NamedRangeTable) IsRangeDefined(id uint32) bool {
	_, exists := nrt.definedRanges[id]
	return exists
}

func (nrt *NamedRangeTable) GetNamedRangeID(name string) (uint32, bool) {
	id, exists := nrt.nameToID[name]
	return id, exists
}

func (nrt *NamedRangeTable) GetNamedRangeName(id uint32) (string, bool) {
	name, exists := nrt.idToName[id]
	return name, exists
}

func (nrt *NamedRangeTable) Contains(name string) bool {
	_, exists := nrt.nameToID[name]
	return exists
}

func (nrt *NamedRangeTable) GetReferenceCount(id uint32) int {
	return nrt.refCounts[id]
}

func (nrt *NamedRangeTable) GetAllDefinedRanges() map[string]RangeAddress {
	result := make(map[string]RangeAddress)
	for id, addr := range nrt.definedRanges {
		if name, exists := nrt.idToName[id]; exists {
			result[name] = addr
		}
	}
	return result
}

func (nrt *NamedRangeTable) GetAllUndefinedRanges() []string {
	result := make([]string, 0, len(nrt.undefinedIDs))
	for id := range nrt.undefinedIDs {
		if name, exists := nrt.idToName[id]; exists {
			result = append(result, name)
		}
	}
	return result
}

func (nrt *NamedRangeTable) Count() int          { return len(nrt.nameToID) }
func (nrt *NamedRangeTable) CountDefined() int   { return len(nrt.definedRanges) }
func (nrt *NamedRangeTable) CountUndefined() int { return len(nrt.undefinedIDs) }

func (nrt *NamedRangeTable) TotalReferences() int {
	total := 0
	for _, count := range nrt.refCounts {
		total += count
	}
	return total
}

func (nrt *NamedRangeTable) Clear() {
	nrt.nameToID = make(map[string]uint32)
	nrt.idToName = make(map[uint32]string)
	nrt.definedRanges = make(map[uint32]RangeAddress)
	nrt.undefinedIDs = make(map[uint32]struct{})
	nrt.refCounts = make(map[uint32]int)
	nrt.nextID = 1
}

// Range is a lazy range type for memory-efficient formula evaluation.
type Range interface {
	GetBounds() RangeAddress
	Iterate() iter.Seq[*Cell]
	IterateValues() iter.Seq[Value]
}

// CellRange implements Range for lazy cell iteration over a Worksheet.
type CellRange struct {
	bounds    RangeAddress
	worksheet *Worksheet
}

func NewCellRange(worksheet *Worksheet, bounds RangeAddress) *CellRange {
	return &CellRange{bounds: bounds, worksheet: worksheet}
}

func (r *CellRange) GetBounds() RangeAddress { return r.bounds }

func (r *CellRange) Iterate() iter.Seq[*Cell] {
	return func(yield func(*Cell) bool) {
		if r.worksheet == nil {
			return
		}
		for row := r.bounds.StartRow; row <= r.bounds.EndRow; row++ {
			for col := r.bounds.StartCol; col <= r.bounds.EndCol; col++ {
				cell := r.worksheet.GetCell(row, col)
				if cell == nil {
					cell = &Cell{Kind: CellKindEmpty, Value: Empty()}
				}
				if !yield(cell) {
					return
				}
			}
		}
	}
}

func (r *CellRange) IterateValues() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for cell := range r.Iterate() {
			if !yield(cell.Value) {
				return
			}
		}
	}
}
