package formulacore

import (
	"fmt"
	"testing"
)

func a1Addr(row, col int32) string {
	return "Sheet1!" + formatA1Cell(row, col, false, false)
}

func BenchmarkLargeCellPopulation(b *testing.B) {
	for i := 0; i < b.N; i++ {
		wb := NewWorkbook()
		for row := int32(1); row <= 1000; row++ {
			_ = wb.Set(fmt.Sprintf("Sheet1!A%d", row), Num(float64(row)))
		}
	}
}

func BenchmarkDependencyChainRecalculate(b *testing.B) {
	wb := NewWorkbook()
	_ = wb.Set("Sheet1!A1", Num(1))
	for row := int32(2); row <= 500; row++ {
		_ = wb.SetFormula(fmt.Sprintf("Sheet1!A%d", row), fmt.Sprintf("A%d+1", row-1))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = wb.Set("Sheet1!A1", Num(float64(i)))
		_ = wb.Recalculate()
	}
}

func BenchmarkWidePrecedentFanOut(b *testing.B) {
	wb := NewWorkbook()
	for col := int32(0); col < 200; col++ {
		_ = wb.Set(a1Addr(0, col), Num(float64(col)))
	}
	args := ""
	for col := int32(0); col < 200; col++ {
		if col > 0 {
			args += ","
		}
		args += formatA1Cell(0, col, false, false)
	}
	_ = wb.SetFormula("Sheet1!A2", "SUM("+args+")")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = wb.Set("Sheet1!A1", Num(float64(i)))
		_ = wb.Recalculate()
	}
}

func BenchmarkLargeRangeSum(b *testing.B) {
	wb := NewWorkbook()
	for row := int32(1); row <= 5000; row++ {
		_ = wb.Set(fmt.Sprintf("Sheet1!A%d", row), Num(float64(row)))
	}
	_ = wb.SetFormula("Sheet1!B1", "SUM(A1:A5000)")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = wb.Set("Sheet1!A1", Num(float64(i)))
		_ = wb.Recalculate()
	}
}

func BenchmarkVolatileFunctionRecalculate(b *testing.B) {
	wb := NewWorkbook()
	for row := int32(1); row <= 100; row++ {
		_ = wb.SetFormula(fmt.Sprintf("Sheet1!A%d", row), "RAND()")
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = wb.Recalculate()
	}
}

func BenchmarkMultiWorksheetReferences(b *testing.B) {
	wb := NewWorkbook()
	_, _ = wb.AddSheet("Data")
	for row := int32(1); row <= 200; row++ {
		_ = wb.Set(fmt.Sprintf("Data!A%d", row), Num(float64(row)))
		_ = wb.SetFormula(fmt.Sprintf("Sheet1!A%d", row), fmt.Sprintf("Data!A%d*2", row))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = wb.Set("Data!A1", Num(float64(i)))
		_ = wb.Recalculate()
	}
}

func BenchmarkCascadingUpdates(b *testing.B) {
	wb := NewWorkbook()
	_ = wb.Set("Sheet1!A1", Num(1))
	for row := int32(1); row <= 50; row++ {
		for col := int32(0); col < 10; col++ {
			addr := formatA1Cell(row-1, col, false, false)
			_ = wb.SetFormula(a1Addr(row, col), addr+"+1")
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = wb.Set("Sheet1!A1", Num(float64(i)))
		_ = wb.Recalculate()
	}
}

func BenchmarkCircularReferenceDetection(b *testing.B) {
	for i := 0; i < b.N; i++ {
		wb := NewWorkbook()
		_ = wb.SetFormula("Sheet1!A1", "B1+1")
		_ = wb.SetFormula("Sheet1!B1", "C1+1")
		_ = wb.SetFormula("Sheet1!C1", "A1+1")
		_ = wb.Recalculate()
	}
}

func BenchmarkManySmallFormulas(b *testing.B) {
	wb := NewWorkbook()
	for row := int32(1); row <= 2000; row++ {
		_ = wb.Set(fmt.Sprintf("Sheet1!A%d", row), Num(float64(row)))
		_ = wb.SetFormula(fmt.Sprintf("Sheet1!B%d", row), fmt.Sprintf("A%d*2", row))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = wb.Recalculate()
	}
}

func BenchmarkStringConcatenation(b *testing.B) {
	wb := NewWorkbook()
	_ = wb.Set("Sheet1!A1", Text("hello"))
	_ = wb.Set("Sheet1!A2", Text("world"))
	_ = wb.SetFormula("Sheet1!A3", `CONCAT(A1," ",A2)`)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = wb.Recalculate()
	}
}

func BenchmarkAggregationFunctions(b *testing.B) {
	wb := NewWorkbook()
	for row := int32(1); row <= 1000; row++ {
		_ = wb.Set(fmt.Sprintf("Sheet1!A%d", row), Num(float64(row)))
	}
	_ = wb.SetFormula("Sheet1!B1", "SUM(A1:A1000)")
	_ = wb.SetFormula("Sheet1!B2", "AVERAGE(A1:A1000)")
	_ = wb.SetFormula("Sheet1!B3", "MAX(A1:A1000)")
	_ = wb.SetFormula("Sheet1!B4", "MIN(A1:A1000)")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = wb.Set("Sheet1!A1", Num(float64(i)))
		_ = wb.Recalculate()
	}
}

func BenchmarkConditionalLogic(b *testing.B) {
	wb := NewWorkbook()
	for row := int32(1); row <= 1000; row++ {
		_ = wb.Set(fmt.Sprintf("Sheet1!A%d", row), Num(float64(row)))
		_ = wb.SetFormula(fmt.Sprintf("Sheet1!B%d", row), fmt.Sprintf(`IF(A%d>500,"big","small")`, row))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = wb.Recalculate()
	}
}

func BenchmarkDirtyPropagationSingleCellChange(b *testing.B) {
	wb := NewWorkbook()
	for row := int32(1); row <= 1000; row++ {
		_ = wb.Set(fmt.Sprintf("Sheet1!A%d", row), Num(float64(row)))
	}
	_ = wb.SetFormula("Sheet1!B1", "SUM(A1:A1000)")
	_ = wb.Recalculate()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = wb.Set("Sheet1!A500", Num(float64(i)))
		_ = wb.Recalculate()
	}
}

func BenchmarkSparseMatrixFormulas(b *testing.B) {
	wb := NewWorkbook()
	for row := int32(0); row < 100; row++ {
		for col := int32(0); col < 100; col += 10 {
			_ = wb.Set(a1Addr(row, col), Num(float64(row+col)))
		}
	}
	_ = wb.SetFormula("Sheet1!ZZ1", "SUM(A1:CV100)")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = wb.Set("Sheet1!A1", Num(float64(i)))
		_ = wb.Recalculate()
	}
}
