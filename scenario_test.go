package formulacore

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScenarioWorkbook(t *testing.T) *Workbook {
	t.Helper()
	wb := NewWorkbook()
	require.NoError(t, wb.Set("Sheet1!A1", Num(100)))
	require.NoError(t, wb.Set("Sheet1!A2", Num(0.1)))
	setFormula(t, wb, "Sheet1!A3", "A1*A2")
	require.NoError(t, wb.Recalculate())
	return wb
}

func TestScenarioApplyAndRestoreBase(t *testing.T) {
	wb := newScenarioWorkbook(t)
	sm := NewScenarioManager()

	a2, err := wb.resolveCellAddress("Sheet1!A2")
	require.NoError(t, err)

	id, err := sm.CreateScenario("Best case", []CellAddress{a2}, []Value{Num(0.5)}, "tester", "")
	require.NoError(t, err)

	require.NoError(t, sm.ApplyScenario(wb, id))
	v, err := wb.Get("Sheet1!A3")
	require.NoError(t, err)
	assert.Equal(t, Num(50), v)

	require.NoError(t, sm.RestoreBase(wb))
	v, err = wb.Get("Sheet1!A3")
	require.NoError(t, err)
	assert.Equal(t, Num(10), v)

	_, current := sm.CurrentScenario()
	assert.False(t, current)
}

func TestScenarioCreateRejectsMismatchedLengths(t *testing.T) {
	sm := NewScenarioManager()
	_, err := sm.CreateScenario("bad", []CellAddress{{Sheet: 0, Row: 0, Col: 0}}, nil, "", "")
	require.Error(t, err)
}

func TestScenarioDeleteClearsCurrent(t *testing.T) {
	wb := newScenarioWorkbook(t)
	sm := NewScenarioManager()
	a2, err := wb.resolveCellAddress("Sheet1!A2")
	require.NoError(t, err)

	id, err := sm.CreateScenario("Only", []CellAddress{a2}, []Value{Num(0.2)}, "", "")
	require.NoError(t, err)
	require.NoError(t, sm.ApplyScenario(wb, id))

	assert.True(t, sm.DeleteScenario(id))
	_, current := sm.CurrentScenario()
	assert.False(t, current)
	assert.False(t, sm.DeleteScenario(id))
}

func TestScenarioSummaryReportCoversBaseAndEachScenario(t *testing.T) {
	wb := newScenarioWorkbook(t)
	sm := NewScenarioManager()
	a2, err := wb.resolveCellAddress("Sheet1!A2")
	require.NoError(t, err)
	a3, err := wb.resolveCellAddress("Sheet1!A3")
	require.NoError(t, err)

	low, err := sm.CreateScenario("Low", []CellAddress{a2}, []Value{Num(0.05)}, "", "")
	require.NoError(t, err)
	high, err := sm.CreateScenario("High", []CellAddress{a2}, []Value{Num(0.5)}, "", "")
	require.NoError(t, err)

	report, err := sm.GenerateSummaryReport(wb, []CellAddress{a3}, []uuid.UUID{low, high})
	require.NoError(t, err)

	assert.Equal(t, Num(10), report.Results["Base"][a3])
	assert.Equal(t, Num(5), report.Results["Low"][a3])
	assert.Equal(t, Num(50), report.Results["High"][a3])

	v, err := wb.Get("Sheet1!A3")
	require.NoError(t, err)
	assert.Equal(t, Num(10), v)
}
