package formulacore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDependencyGraphDirectDependentsAndPrecedents(t *testing.T) {
	dg := NewDependencyGraph()
	a1 := CellAddress{Sheet: 0, Row: 0, Col: 0}
	a2 := CellAddress{Sheet: 0, Row: 1, Col: 0}
	a3 := CellAddress{Sheet: 0, Row: 2, Col: 0}

	dg.AddCellDependency(a2, a1) // a2 depends on a1
	dg.AddCellDependency(a3, a2) // a3 depends on a2

	assert.ElementsMatch(t, []CellAddress{a2}, dg.GetDirectDependents(a1))
	assert.ElementsMatch(t, []CellAddress{a1}, dg.GetDirectPrecedents(a2))
	assert.ElementsMatch(t, []CellAddress{a2, a3}, dg.GetAllDependents(a1))
}

func TestDependencyGraphDirtyTracking(t *testing.T) {
	dg := NewDependencyGraph()
	a1 := CellAddress{Sheet: 0, Row: 0, Col: 0}
	a2 := CellAddress{Sheet: 0, Row: 1, Col: 0}

	assert.Equal(t, 0, dg.DirtyCount())
	dg.MarkDirty(a1)
	dg.MarkDirty(a2)
	assert.Equal(t, 2, dg.DirtyCount())
	assert.True(t, dg.IsDirty(a1))

	dg.ClearDirty(a1)
	assert.False(t, dg.IsDirty(a1))
	assert.Equal(t, 1, dg.DirtyCount())

	dg.ClearAllDirty()
	assert.Equal(t, 0, dg.DirtyCount())
}

func TestDependencyGraphDetectsCycle(t *testing.T) {
	dg := NewDependencyGraph()
	a1 := CellAddress{Sheet: 0, Row: 0, Col: 0}
	a2 := CellAddress{Sheet: 0, Row: 1, Col: 0}

	dg.AddCellDependency(a1, a2)
	dg.AddCellDependency(a2, a1)

	assert.True(t, dg.HasCycle())
	_, hasCycle := dg.GetCalculationOrder()
	assert.True(t, hasCycle)
}

func TestDependencyGraphCalculationOrderRespectsDependencies(t *testing.T) {
	dg := NewDependencyGraph()
	a1 := CellAddress{Sheet: 0, Row: 0, Col: 0}
	a2 := CellAddress{Sheet: 0, Row: 1, Col: 0}
	a3 := CellAddress{Sheet: 0, Row: 2, Col: 0}

	dg.AddCellDependency(a2, a1)
	dg.AddCellDependency(a3, a2)

	order, hasCycle := dg.GetCalculationOrder()
	assert.False(t, hasCycle)

	pos := make(map[CellAddress]int, len(order))
	for i, addr := range order {
		pos[addr] = i
	}
	assert.Less(t, pos[a1], pos[a2])
	assert.Less(t, pos[a2], pos[a3])
}

func TestDependencyGraphRangeDependencyMarksDirtyOnOverlap(t *testing.T) {
	dg := NewDependencyGraph()
	from := CellAddress{Sheet: 0, Row: 10, Col: 0}
	rng := NewRangeAddress(0, 0, 0, 5, 0)
	dg.AddRangeDependency(from, rng, false)

	inside := CellAddress{Sheet: 0, Row: 3, Col: 0}
	outside := CellAddress{Sheet: 0, Row: 9, Col: 0}

	dg.MarkCellIfInRangeDirty(inside)
	assert.True(t, dg.IsDirty(from))

	dg.ClearAllDirty()
	dg.MarkCellIfInRangeDirty(outside)
	assert.False(t, dg.IsDirty(from))
}

func TestDependencyGraphVolatileCells(t *testing.T) {
	dg := NewDependencyGraph()
	a1 := CellAddress{Sheet: 0, Row: 0, Col: 0}

	assert.False(t, dg.IsVolatile(a1))
	dg.MarkVolatile(a1)
	assert.True(t, dg.IsVolatile(a1))
	assert.Contains(t, dg.GetVolatileCells(), a1)

	dg.UnmarkVolatile(a1)
	assert.False(t, dg.IsVolatile(a1))
}

func TestDependencyGraphRemoveNodeClearsEdges(t *testing.T) {
	dg := NewDependencyGraph()
	a1 := CellAddress{Sheet: 0, Row: 0, Col: 0}
	a2 := CellAddress{Sheet: 0, Row: 1, Col: 0}
	dg.AddCellDependency(a2, a1)

	assert.True(t, dg.RemoveNode(a2))
	assert.Empty(t, dg.GetDirectDependents(a1))
}
