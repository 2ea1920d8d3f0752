package formulacore

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setFormula(t *testing.T, wb *Workbook, address, formula string) {
	t.Helper()
	require.NoError(t, wb.SetFormula(address, formula))
}

func TestWorkbookArithmeticAndReferences(t *testing.T) {
	wb := NewWorkbook()
	require.NoError(t, wb.Set("Sheet1!A1", Num(10)))
	require.NoError(t, wb.Set("Sheet1!A2", Num(20)))
	setFormula(t, wb, "Sheet1!A3", "A1+A2")
	require.NoError(t, wb.Recalculate())

	v, err := wb.Get("Sheet1!A3")
	require.NoError(t, err)
	assert.Equal(t, Num(30), v)
}

func TestWorkbookSumOverRange(t *testing.T) {
	wb := NewWorkbook()
	for i := int32(1); i <= 10; i++ {
		require.NoError(t, wb.Set(fmt.Sprintf("Sheet1!A%d", i), Num(float64(i))))
	}
	setFormula(t, wb, "Sheet1!B1", "SUM(A1:A10)")
	require.NoError(t, wb.Recalculate())

	v, err := wb.Get("Sheet1!B1")
	require.NoError(t, err)
	assert.Equal(t, Num(55), v)
}

func TestWorkbookDependencyChainRecalculates(t *testing.T) {
	wb := NewWorkbook()
	require.NoError(t, wb.Set("Sheet1!A1", Num(1)))
	setFormula(t, wb, "Sheet1!A2", "A1+1")
	setFormula(t, wb, "Sheet1!A3", "A2+1")
	require.NoError(t, wb.Recalculate())

	v, _ := wb.Get("Sheet1!A3")
	assert.Equal(t, Num(3), v)

	require.NoError(t, wb.Set("Sheet1!A1", Num(10)))
	require.NoError(t, wb.Recalculate())

	v, _ = wb.Get("Sheet1!A3")
	assert.Equal(t, Num(12), v)
}

func TestWorkbookCircularReferenceYieldsCalcError(t *testing.T) {
	wb := NewWorkbook()
	setFormula(t, wb, "Sheet1!A1", "B1+1")
	setFormula(t, wb, "Sheet1!B1", "A1+1")
	require.NoError(t, wb.Recalculate())

	v, _ := wb.Get("Sheet1!A1")
	assert.Equal(t, Err(ErrCalc), v)
}

func TestWorkbookMultiSheetReference(t *testing.T) {
	wb := NewWorkbook()
	_, err := wb.AddSheet("Data")
	require.NoError(t, err)
	require.NoError(t, wb.Set("Data!A1", Num(5)))
	setFormula(t, wb, "Sheet1!A1", "Data!A1*2")
	require.NoError(t, wb.Recalculate())

	v, _ := wb.Get("Sheet1!A1")
	assert.Equal(t, Num(10), v)
}

func TestWorkbookConditionalAndTextFunctions(t *testing.T) {
	wb := NewWorkbook()
	require.NoError(t, wb.Set("Sheet1!A1", Num(42)))
	setFormula(t, wb, "Sheet1!B1", `IF(A1>10, "big", "small")`)
	require.NoError(t, wb.Recalculate())

	v, _ := wb.Get("Sheet1!B1")
	assert.Equal(t, Text("big"), v)
}

func TestWorkbookNamedRange(t *testing.T) {
	wb := NewWorkbook()
	require.NoError(t, wb.Set("Sheet1!A1", Num(3)))
	require.NoError(t, wb.Set("Sheet1!A2", Num(4)))
	wb.DefineNamedRange("Nums", NewRangeAddress(wb.firstSheet, 0, 0, 1, 0))
	setFormula(t, wb, "Sheet1!B1", "SUM(Nums)")
	require.NoError(t, wb.Recalculate())

	v, _ := wb.Get("Sheet1!B1")
	assert.Equal(t, Num(7), v)
}

func TestWorkbookDynamicArraySpills(t *testing.T) {
	wb := NewWorkbook()
	setFormula(t, wb, "Sheet1!A1", "SEQUENCE(3,1)")
	require.NoError(t, wb.Recalculate())

	for i, want := range []float64{1, 2, 3} {
		v, _ := wb.Get(fmt.Sprintf("Sheet1!A%d", i+1))
		assert.Equal(t, Num(want), v)
	}
}

func TestWorkbookSpillObstructionReportsError(t *testing.T) {
	wb := NewWorkbook()
	require.NoError(t, wb.Set("Sheet1!A2", Num(99)))
	setFormula(t, wb, "Sheet1!A1", "SEQUENCE(3,1)")
	require.NoError(t, wb.Recalculate())

	v, _ := wb.Get("Sheet1!A1")
	assert.Equal(t, Err(ErrSpill), v)
}

func TestWorkbookWriteIntoSpillOccupantObstructsAnchorOnNextRecalc(t *testing.T) {
	wb := NewWorkbook()
	setFormula(t, wb, "Sheet1!A1", "SEQUENCE(3,1)")
	require.NoError(t, wb.Recalculate())

	v, _ := wb.Get("Sheet1!A1")
	assert.Equal(t, Num(1), v)
	v, _ = wb.Get("Sheet1!A3")
	assert.Equal(t, Num(3), v)

	require.NoError(t, wb.Set("Sheet1!A2", Num(99)))
	require.NoError(t, wb.Recalculate())

	v, _ = wb.Get("Sheet1!A1")
	assert.Equal(t, Err(ErrSpill), v)
	v, _ = wb.Get("Sheet1!A2")
	assert.Equal(t, Num(99), v)
	v, _ = wb.Get("Sheet1!A3")
	assert.Equal(t, Empty(), v)
}

func TestWorkbookVolatileRecalculatesEveryPass(t *testing.T) {
	wb := NewWorkbook()
	setFormula(t, wb, "Sheet1!A1", "RAND()")
	require.NoError(t, wb.Recalculate())
	first, _ := wb.Get("Sheet1!A1")

	require.NoError(t, wb.Recalculate())
	second, _ := wb.Get("Sheet1!A1")

	assert.NotEqual(t, first.Num, second.Num)
}

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

func TestWorkbookTodayUsesInjectedClock(t *testing.T) {
	wb := NewWorkbook()
	wb.SetClock(fixedClock{t: time.Date(2026, time.July, 30, 12, 0, 0, 0, time.UTC)})
	setFormula(t, wb, "Sheet1!A1", "TODAY()")
	require.NoError(t, wb.Recalculate())

	v, _ := wb.Get("Sheet1!A1")
	assert.Equal(t, Num(float64(int(excelSerialFromTime(time.Date(2026, time.July, 30, 0, 0, 0, 0, time.UTC))))), v)
}

func TestWorkbookRemoveCellClearsFormulaAndDependents(t *testing.T) {
	wb := NewWorkbook()
	require.NoError(t, wb.Set("Sheet1!A1", Num(1)))
	setFormula(t, wb, "Sheet1!A2", "A1+1")
	require.NoError(t, wb.Recalculate())

	require.NoError(t, wb.Remove("Sheet1!A1"))
	require.NoError(t, wb.Recalculate())

	v, _ := wb.Get("Sheet1!A2")
	assert.Equal(t, Num(1), v)
}

func TestWorkbookRenameSheetPreservesFormulas(t *testing.T) {
	wb := NewWorkbook()
	_, err := wb.AddSheet("Data")
	require.NoError(t, err)
	require.NoError(t, wb.Set("Data!A1", Num(7)))
	setFormula(t, wb, "Sheet1!A1", "Data!A1")
	require.NoError(t, wb.Recalculate())

	require.NoError(t, wb.RenameSheet("Data", "Inputs"))
	require.NoError(t, wb.Set("Inputs!A1", Num(8)))
	require.NoError(t, wb.Recalculate())

	v, _ := wb.Get("Sheet1!A1")
	assert.Equal(t, Num(8), v)
}

func TestWorkbookScenarioApplyAndRestore(t *testing.T) {
	wb := NewWorkbook()
	require.NoError(t, wb.Set("Sheet1!A1", Num(100)))
	setFormula(t, wb, "Sheet1!B1", "A1*2")
	require.NoError(t, wb.Recalculate())

	a1, err := wb.resolveCellAddress("Sheet1!A1")
	require.NoError(t, err)
	b1, err := wb.resolveCellAddress("Sheet1!B1")
	require.NoError(t, err)

	id, err := wb.scenarios.CreateScenario("Boom", []CellAddress{a1}, []Value{Num(200)}, "tester", "")
	require.NoError(t, err)

	require.NoError(t, wb.scenarios.ApplyScenario(wb, id))
	v := wb.readCell(b1)
	assert.Equal(t, Num(400), v)

	require.NoError(t, wb.scenarios.RestoreBase(wb))
	v = wb.readCell(b1)
	assert.Equal(t, Num(200), v)
}
