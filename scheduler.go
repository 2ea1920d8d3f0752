package formulacore

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Scheduler drives a frontier-based recalculation pass: cells become
// eligible once every precedent in the previous frontier has settled, and
// each frontier's cells evaluate concurrently, bounded by a weighted
// semaphore.
type Scheduler struct {
	maxWorkers int64
	sem        *semaphore.Weighted
}

func NewScheduler(maxWorkers int) *Scheduler {
	if maxWorkers <= 0 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}
	return &Scheduler{maxWorkers: int64(maxWorkers), sem: semaphore.NewWeighted(int64(maxWorkers))}
}

// frontierResult is what one cell's evaluation produced, collected back on
// the scheduling goroutine so dependency-graph mutation stays single-threaded.
type frontierResult struct {
	addr  CellAddress
	value Value
	deps  []depEdge
}

type depEdge struct {
	rng     RangeAddress
	dynamic bool
}

// Recalculate evaluates every dirty cell in dependency order, in
// concurrent frontiers, until the dirty set is empty or ctx is cancelled. A
// cycle participant evaluates to #CALC! rather than blocking forever.
func (s *Scheduler) Recalculate(ctx context.Context, wb *Workbook) error {
	order, hasCycle := wb.graph.GetCalculationOrder()
	// A dirty cell with no graph node (a formula without references, such as
	// RAND() or SEQUENCE(3,1)) is absent from the order; it has no
	// precedents, so it goes first.
	var unlinked []CellAddress
	for addr := range wb.graph.dirtySet {
		if _, ok := wb.graph.GetNode(addr); !ok {
			unlinked = append(unlinked, addr)
		}
	}
	order = append(unlinked, order...)
	cyclic := make(map[CellAddress]bool)
	if hasCycle {
		cyclic = wb.findCycleParticipants(order)
	}

	dirty := wb.graph
	levels := computeLevels(order, dirty)

	for _, level := range levels {
		if err := s.runLevel(ctx, wb, level, cyclic); err != nil {
			return err
		}
	}
	return nil
}

// computeLevels groups the topological order into waves where every cell
// in a wave has no precedent in the same or a later wave, so a wave's
// cells can all evaluate concurrently. Besides CellPrecedents (used by
// GetCalculationOrder for the topological sort itself), a cell's
// RangePrecedents are also consulted here: a cell whose only precedent
// relationship to another is through a range reference (e.g. SUM(A1:A10))
// would otherwise be leveled as if it had no precedents at all. Scanning
// every other order member's containment against each range is O(n^2) in
// the dirty set size, an accepted simplification at this scale rather than
// maintaining a spatial index.
func computeLevels(order []CellAddress, graph *DependencyGraph) [][]CellAddress {
	levelOf := make(map[CellAddress]int, len(order))
	maxLevel := 0
	for _, addr := range order {
		lvl := 0
		for _, p := range graph.GetDirectPrecedents(addr) {
			if pl, ok := levelOf[p]; ok && pl+1 > lvl {
				lvl = pl + 1
			}
		}
		for _, rng := range graph.GetRangePrecedents(addr) {
			for _, other := range order {
				if other == addr || !rng.Contains(other) {
					continue
				}
				if pl, ok := levelOf[other]; ok && pl+1 > lvl {
					lvl = pl + 1
				}
			}
		}
		levelOf[addr] = lvl
		if lvl > maxLevel {
			maxLevel = lvl
		}
	}
	levels := make([][]CellAddress, maxLevel+1)
	for _, addr := range order {
		lvl := levelOf[addr]
		levels[lvl] = append(levels[lvl], addr)
	}
	return levels
}

func (s *Scheduler) runLevel(ctx context.Context, wb *Workbook, level []CellAddress, cyclic map[CellAddress]bool) error {
	var mu sync.Mutex
	var results []frontierResult
	var wg sync.WaitGroup

	for _, addr := range level {
		if !wb.graph.IsDirty(addr) && !wb.graph.IsVolatile(addr) {
			continue
		}
		if err := s.sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return err
		}
		wg.Add(1)
		go func(addr CellAddress) {
			defer s.sem.Release(1)
			defer wg.Done()
			var r frontierResult
			if cyclic[addr] {
				r = frontierResult{addr: addr, value: Err(ErrCalc)}
			} else {
				r = wb.evaluateCellConcurrent(ctx, addr)
			}
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}(addr)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	for _, r := range results {
		wb.commitEvaluation(r)
	}
	return nil
}
