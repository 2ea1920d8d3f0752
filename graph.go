package formulacore

// DependencyNode tracks one formula cell's edges in the dependency graph,
// using the shared CellAddress/RangeAddress types and a dynamic/static
// split on range precedents: OFFSET/INDIRECT compute their target rather
// than writing it syntactically, so their edges must be dropped and
// rebuilt every recalculation rather than persisted across edits the way
// static edges are.
type DependencyNode struct {
	Address CellAddress

	CellPrecedents map[CellAddress]*DependencyNode
	CellDependents map[CellAddress]*DependencyNode

	// RangePrecedents maps each observed range to whether the edge was
	// produced by a dynamic (OFFSET/INDIRECT) reference.
	RangePrecedents map[RangeAddress]bool

	IsDirty bool
}

// DependencyGraph manages cell dependencies and calculation order.
type DependencyGraph struct {
	nodes          map[CellAddress]*DependencyNode
	rangeObservers map[RangeAddress]map[CellAddress]struct{}
	dirtySet       map[CellAddress]struct{}
	volatileCells  map[CellAddress]struct{}
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes:          make(map[CellAddress]*DependencyNode),
		rangeObservers: make(map[RangeAddress]map[CellAddress]struct{}),
		dirtySet:       make(map[CellAddress]struct{}),
		volatileCells:  make(map[CellAddress]struct{}),
	}
}

func (dg *DependencyGraph) GetOrCreateNode(addr CellAddress) *DependencyNode {
	if node, exists := dg.nodes[addr]; exists {
		return node
	}
	node := &DependencyNode{
		Address:         addr,
		CellPrecedents:  make(map[CellAddress]*DependencyNode),
		CellDependents:  make(map[CellAddress]*DependencyNode),
		RangePrecedents: make(map[RangeAddress]bool),
	}
	dg.nodes[addr] = node
	return node
}

func (dg *DependencyGraph) GetNode(addr CellAddress) (*DependencyNode, bool) {
	node, exists := dg.nodes[addr]
	return node, exists
}

func (dg *DependencyGraph) RemoveNode(addr CellAddress) bool {
	node, exists := dg.nodes[addr]
	if !exists {
		return false
	}

	for precedentAddr, precedentNode := range node.CellPrecedents {
		delete(precedentNode.CellDependents, addr)
		dg.cleanupNodeIfEmpty(precedentAddr)
	}
	for _, dependentNode := range node.CellDependents {
		delete(dependentNode.CellPrecedents, addr)
	}
	for rangeAddr := range node.RangePrecedents {
		if observers, exists := dg.rangeObservers[rangeAddr]; exists {
			delete(observers, addr)
			if len(observers) == 0 {
				delete(dg.rangeObservers, rangeAddr)
			}
		}
	}

	delete(dg.dirtySet, addr)
	delete(dg.volatileCells, addr)
	delete(dg.nodes, addr)
	return true
}

func (dg *DependencyGraph) cleanupNodeIfEmpty(addr CellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}
	if len(node.CellPrecedents) > 0 || len(node.CellDependents) > 0 || len(node.RangePrecedents) > 0 {
		return
	}
	delete(dg.nodes, addr)
	delete(dg.dirtySet, addr)
}

func (dg *DependencyGraph) AddCellDependency(from, to CellAddress) {
	fromNode := dg.GetOrCreateNode(from)
	toNode := dg.GetOrCreateNode(to)
	fromNode.CellPrecedents[to] = toNode
	toNode.CellDependents[from] = fromNode
}

func (dg *DependencyGraph) RemoveCellDependency(from, to CellAddress) bool {
	fromNode, fromExists := dg.nodes[from]
	toNode, toExists := dg.nodes[to]
	if !fromExists || !toExists {
		return false
	}
	delete(fromNode.CellPrecedents, to)
	delete(toNode.CellDependents, from)
	dg.cleanupNodeIfEmpty(from)
	dg.cleanupNodeIfEmpty(to)
	return true
}

// AddRangeDependency records that `from` observes rangeAddr. dynamic marks
// an edge produced by OFFSET/INDIRECT rather than a syntactic range literal.
func (dg *DependencyGraph) AddRangeDependency(from CellAddress, rangeAddr RangeAddress, dynamic bool) {
	node := dg.GetOrCreateNode(from)
	// a static observation always wins over a previously-dynamic one for the
	// same range, since it means the edge is now also reachable statically.
	if existing, ok := node.RangePrecedents[rangeAddr]; !ok || (existing && !dynamic) {
		node.RangePrecedents[rangeAddr] = dynamic
	}
	if dg.rangeObservers[rangeAddr] == nil {
		dg.rangeObservers[rangeAddr] = make(map[CellAddress]struct{})
	}
	dg.rangeObservers[rangeAddr][from] = struct{}{}
}

func (dg *DependencyGraph) RemoveRangeDependency(from CellAddress, rangeAddr RangeAddress) bool {
	node, exists := dg.nodes[from]
	if !exists {
		return false
	}
	delete(node.RangePrecedents, rangeAddr)
	if observers, exists := dg.rangeObservers[rangeAddr]; exists {
		delete(observers, from)
		if len(observers) == 0 {
			delete(dg.rangeObservers, rangeAddr)
		}
	}
	dg.cleanupNodeIfEmpty(from)
	return true
}

// RemoveDynamicEdges drops every range precedent of addr that was recorded
// as dynamic, so the next evaluation of an OFFSET/INDIRECT-bearing cell can
// rebuild them from scratch against its freshly-computed target.
func (dg *DependencyGraph) RemoveDynamicEdges(addr CellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}
	for rangeAddr, dynamic := range node.RangePrecedents {
		if dynamic {
			dg.RemoveRangeDependency(addr, rangeAddr)
		}
	}
}

func (dg *DependencyGraph) ClearDependencies(addr CellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}
	for precedentAddr := range node.CellPrecedents {
		dg.RemoveCellDependency(addr, precedentAddr)
	}
	for rangeAddr := range node.RangePrecedents {
		dg.RemoveRangeDependency(addr, rangeAddr)
	}
}

func (dg *DependencyGraph) MarkDirty(addr CellAddress) {
	dg.dirtySet[addr] = struct{}{}
	if node, exists := dg.nodes[addr]; exists {
		node.IsDirty = true
	}
}

func (dg *DependencyGraph) MarkRangeDirty(rangeAddr RangeAddress) {
	if observers, exists := dg.rangeObservers[rangeAddr]; exists {
		for cellAddr := range observers {
			dg.MarkDirty(cellAddr)
		}
	}
}

// MarkCellIfInRangeDirty marks dirty every cell observing a range that
// contains addr (e.g. after addr's value changes within a SUM(A1:A100)).
func (dg *DependencyGraph) MarkCellIfInRangeDirty(addr CellAddress) {
	for rangeAddr, observers := range dg.rangeObservers {
		if rangeAddr.Contains(addr) {
			for observerAddr := range observers {
				dg.MarkDirty(observerAddr)
			}
		}
	}
}

func (dg *DependencyGraph) IsDirty(addr CellAddress) bool {
	_, dirty := dg.dirtySet[addr]
	return dirty
}

func (dg *DependencyGraph) ClearDirty(addr CellAddress) {
	delete(dg.dirtySet, addr)
	if node, exists := dg.nodes[addr]; exists {
		node.IsDirty = false
	}
}

func (dg *DependencyGraph) ClearAllDirty() {
	dg.dirtySet = make(map[CellAddress]struct{})
	for _, node := range dg.nodes {
		node.IsDirty = false
	}
}

func (dg *DependencyGraph) GetDirectDependents(addr CellAddress) []CellAddress {
	node, exists := dg.nodes[addr]
	if !exists {
		return nil
	}
	result := make([]CellAddress, 0, len(node.CellDependents))
	for dependentAddr := range node.CellDependents {
		result = append(result, dependentAddr)
	}
	return result
}

func (dg *DependencyGraph) GetAllDependents(addr CellAddress) []CellAddress {
	visited := make(map[CellAddress]struct{})
	var result []CellAddress
	dg.collectDependents(addr, visited, &result)
	return result
}

func (dg *DependencyGraph) collectDependents(addr CellAddress, visited map[CellAddress]struct{}, result *[]CellAddress) {
	if _, alreadyVisited := visited[addr]; alreadyVisited {
		return
	}
	visited[addr] = struct{}{}
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}
	for dependentAddr := range node.CellDependents {
		if _, alreadyVisited := visited[dependentAddr]; !alreadyVisited {
			*result = append(*result, dependentAddr)
			dg.collectDependents(dependentAddr, visited, result)
		}
	}
}

func (dg *DependencyGraph) GetDirectPrecedents(addr CellAddress) []CellAddress {
	node, exists := dg.nodes[addr]
	if !exists {
		return nil
	}
	result := make([]CellAddress, 0, len(node.CellPrecedents))
	for precedentAddr := range node.CellPrecedents {
		result = append(result, precedentAddr)
	}
	return result
}

func (dg *DependencyGraph) GetRangePrecedents(addr CellAddress) []RangeAddress {
	node, exists := dg.nodes[addr]
	if !exists {
		return nil
	}
	result := make([]RangeAddress, 0, len(node.RangePrecedents))
	for rangeAddr := range node.RangePrecedents {
		result = append(result, rangeAddr)
	}
	return result
}

// GetCalculationOrder topologically sorts formula nodes by precedent edges.
// hasCycle is true when a circular dependency makes the order unusable,
// i.e. the affected cells should evaluate to #CALC! rather than recurse.
func (dg *DependencyGraph) GetCalculationOrder() ([]CellAddress, bool) {
	state := make(map[CellAddress]bool)
	var order []CellAddress
	hasCycle := false

	var visit func(addr CellAddress) bool
	visit = func(addr CellAddress) bool {
		if completed, exists := state[addr]; exists {
			if !completed {
				return true
			}
			return false
		}
		state[addr] = false
		if node, exists := dg.nodes[addr]; exists {
			for precedentAddr := range node.CellPrecedents {
				if visit(precedentAddr) {
					hasCycle = true
				}
			}
		}
		state[addr] = true
		order = append(order, addr)
		return false
	}

	for addr := range dg.nodes {
		if _, visited := state[addr]; !visited {
			if visit(addr) {
				hasCycle = true
			}
		}
	}
	return order, hasCycle
}

func (dg *DependencyGraph) HasCycle() bool {
	_, hasCycle := dg.GetCalculationOrder()
	return hasCycle
}

// GetAffectedCells returns every cell that needs recalculation when addr
// changes: transitive cell dependents plus cells observing a range addr
// falls inside (and those cells' own transitive dependents).
func (dg *DependencyGraph) GetAffectedCells(addr CellAddress) []CellAddress {
	affected := make(map[CellAddress]struct{})

	for _, dep := range dg.GetAllDependents(addr) {
		affected[dep] = struct{}{}
	}

	for rangeAddr, observers := range dg.rangeObservers {
		if rangeAddr.Contains(addr) {
			for observerAddr := range observers {
				affected[observerAddr] = struct{}{}
				for _, dep := range dg.GetAllDependents(observerAddr) {
					affected[dep] = struct{}{}
				}
			}
		}
	}

	result := make([]CellAddress, 0, len(affected))
	for affectedAddr := range affected {
		result = append(result, affectedAddr)
	}
	return result
}

func (dg *DependencyGraph) NodeCount() int { return len(dg.nodes) }

func (dg *DependencyGraph) DirtyCount() int { return len(dg.dirtySet) }

func (dg *DependencyGraph) RangeObserverCount() int { return len(dg.rangeObservers) }

func (dg *DependencyGraph) Clear() {
	dg.nodes = make(map[CellAddress]*DependencyNode)
	dg.rangeObservers = make(map[RangeAddress]map[CellAddress]struct{})
	dg.dirtySet = make(map[CellAddress]struct{})
	dg.volatileCells = make(map[CellAddress]struct{})
}

func (dg *DependencyGraph) MarkVolatile(addr CellAddress) { dg.volatileCells[addr] = struct{}{} }

func (dg *DependencyGraph) UnmarkVolatile(addr CellAddress) { delete(dg.volatileCells, addr) }

func (dg *DependencyGraph) IsVolatile(addr CellAddress) bool {
	_, isVolatile := dg.volatileCells[addr]
	return isVolatile
}

func (dg *DependencyGraph) GetVolatileCells() []CellAddress {
	result := make([]CellAddress, 0, len(dg.volatileCells))
	for addr := range dg.volatileCells {
		result = append(result, addr)
	}
	return result
}

func (dg *DependencyGraph) MarkAllVolatileDirty() {
	for addr := range dg.volatileCells {
		dg.MarkDirty(addr)
	}
}
