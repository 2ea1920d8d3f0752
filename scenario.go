package formulacore

import (
	"time"

	"github.com/google/uuid"
)

// Scenario is a named what-if snapshot: a fixed set of changing cells and
// the values to substitute for them.
type Scenario struct {
	ID            uuid.UUID
	Name          string
	ChangingCells []CellAddress
	Values        map[CellAddress]Value
	CreatedAt     time.Time
	CreatedBy     string
	Comment       string
}

// SummaryReport tabulates a set of result cells' values across the base
// case and a set of named scenarios.
type SummaryReport struct {
	ChangingCells []CellAddress
	ResultCells   []CellAddress
	// Results maps scenario name ("Base" for the unmodified workbook) to
	// the resulting value of each result cell under that scenario.
	Results map[string]map[CellAddress]Value
}

// ScenarioManager stores scenarios and the base-value snapshot captured the
// first time any scenario's changing cells were overridden, so restoring
// the base case after probing scenarios only ever touches cells that were
// actually perturbed.
type ScenarioManager struct {
	scenarios map[uuid.UUID]*Scenario
	current   *uuid.UUID
	baseline  map[CellAddress]Value
}

func NewScenarioManager() *ScenarioManager {
	return &ScenarioManager{
		scenarios: make(map[uuid.UUID]*Scenario),
		baseline:  make(map[CellAddress]Value),
	}
}

func (sm *ScenarioManager) CreateScenario(name string, changingCells []CellAddress, values []Value, createdBy, comment string) (uuid.UUID, error) {
	if len(changingCells) != len(values) {
		return uuid.UUID{}, errInvalidArgument("CreateScenario", "changingCells and values must have equal length")
	}
	valueMap := make(map[CellAddress]Value, len(changingCells))
	for i, cell := range changingCells {
		valueMap[cell] = values[i]
	}
	id := uuid.New()
	sm.scenarios[id] = &Scenario{
		ID:            id,
		Name:          name,
		ChangingCells: changingCells,
		Values:        valueMap,
		CreatedAt:     time.Now(),
		CreatedBy:     createdBy,
		Comment:       comment,
	}
	return id, nil
}

func (sm *ScenarioManager) DeleteScenario(id uuid.UUID) bool {
	if sm.current != nil && *sm.current == id {
		sm.current = nil
	}
	if _, ok := sm.scenarios[id]; !ok {
		return false
	}
	delete(sm.scenarios, id)
	return true
}

func (sm *ScenarioManager) Get(id uuid.UUID) (*Scenario, bool) {
	s, ok := sm.scenarios[id]
	return s, ok
}

func (sm *ScenarioManager) Scenarios() []*Scenario {
	out := make([]*Scenario, 0, len(sm.scenarios))
	for _, s := range sm.scenarios {
		out = append(out, s)
	}
	return out
}

func (sm *ScenarioManager) CurrentScenario() (uuid.UUID, bool) {
	if sm.current == nil {
		return uuid.UUID{}, false
	}
	return *sm.current, true
}

func (sm *ScenarioManager) ClearBaseline() { sm.baseline = make(map[CellAddress]Value) }

// ApplyScenario overrides the scenario's changing cells on wb, capturing
// their pre-override values into the baseline the first time each cell is
// touched (so the baseline becomes the union of changing cells across every
// scenario applied since the manager was created or ClearBaseline last ran;
// RestoreBase keeps it), then recalculates.
func (sm *ScenarioManager) ApplyScenario(wb *Workbook, id uuid.UUID) error {
	scenario, ok := sm.scenarios[id]
	if !ok {
		return errNotFound("ApplyScenario", "scenario %s not found", id)
	}
	for _, cell := range scenario.ChangingCells {
		if _, captured := sm.baseline[cell]; !captured {
			sm.baseline[cell] = wb.readCell(cell)
		}
	}
	for cell, value := range scenario.Values {
		wb.setLiteralValue(cell, value)
	}
	if err := wb.Recalculate(); err != nil {
		return err
	}
	sm.current = &id
	return nil
}

// RestoreBase writes every captured baseline value back and recalculates,
// returning the workbook to its pre-scenario state.
func (sm *ScenarioManager) RestoreBase(wb *Workbook) error {
	if len(sm.baseline) == 0 {
		return nil
	}
	for cell, value := range sm.baseline {
		wb.setLiteralValue(cell, value)
	}
	if err := wb.Recalculate(); err != nil {
		return err
	}
	sm.current = nil
	return nil
}

// GenerateSummaryReport evaluates resultCells under the base case and under
// each named scenario in turn, restoring the base case before and after.
func (sm *ScenarioManager) GenerateSummaryReport(wb *Workbook, resultCells []CellAddress, scenarioIDs []uuid.UUID) (*SummaryReport, error) {
	if err := sm.RestoreBase(wb); err != nil {
		return nil, err
	}

	results := make(map[string]map[CellAddress]Value, len(scenarioIDs)+1)

	baseRow := make(map[CellAddress]Value, len(resultCells))
	for _, cell := range resultCells {
		baseRow[cell] = wb.readCell(cell)
	}
	results["Base"] = baseRow

	var changingCells []CellAddress
	for i, id := range scenarioIDs {
		if err := sm.ApplyScenario(wb, id); err != nil {
			return nil, err
		}
		scenario := sm.scenarios[id]
		row := make(map[CellAddress]Value, len(resultCells))
		for _, cell := range resultCells {
			row[cell] = wb.readCell(cell)
		}
		results[scenario.Name] = row
		if i == 0 {
			changingCells = scenario.ChangingCells
		}
	}

	if err := sm.RestoreBase(wb); err != nil {
		return nil, err
	}

	return &SummaryReport{ChangingCells: changingCells, ResultCells: resultCells, Results: results}, nil
}
