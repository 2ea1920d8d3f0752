package formulacore

import "testing"

func TestParserBasicFormulas(t *testing.T) {
	validFormulas := []string{
		"1+2",
		"A1",
		"SUM(A1:A10)",
		"Sheet2!A1",
		"Sheet2!A1:B2",
		"SUM(Sheet2!A1:A10)",
		"Sheet2!A1 + Sheet3!B1",
		"SUM(B2:A1)",
		"SUM(A1:A1)",
		"SUM(A1:Z1000)",
		`"Hello world"`,
		`CONCATENATE("Hello ", "World")`,
		"IF(A1>0, 1, -1)",
		"LET(x, 1, y, 2, x+y)",
		"LAMBDA(x, x*2)(5)",
		"{1,2;3,4}",
		"A1#",
		"$A$1",
		"Table1[Column1]",
		"Table1[@Column1]",
		"A1:A10 B1:B10",
		"A1:A10,B1:B10",
	}

	for _, formula := range validFormulas {
		t.Run(formula, func(t *testing.T) {
			if _, err := Parse(formula); err != nil {
				t.Errorf("Parse(%q) failed: %v", formula, err)
			}
		})
	}
}

func TestParserInvalidFormulas(t *testing.T) {
	invalidFormulas := []string{
		"",
		"SUM(",
		"A1:",
		`"hello`,
		"1 +",
		"(1+2",
	}

	for _, formula := range invalidFormulas {
		t.Run(formula, func(t *testing.T) {
			if _, err := Parse(formula); err == nil {
				t.Errorf("Parse(%q) unexpectedly succeeded", formula)
			}
		})
	}
}

func TestParserAndLowerRoundTrip(t *testing.T) {
	resolveSheet := func(name string) (SheetID, bool) {
		switch name {
		case "Sheet1":
			return 0, true
		case "Sheet2":
			return 1, true
		}
		return 0, false
	}
	reg := NewFunctionRegistry()
	origin := CellAddress{Sheet: 0, Row: 4, Col: 2}

	tests := []struct {
		formula string
	}{
		{"A1+B1"},
		{"SUM(A1:A10)"},
		{"Sheet2!C3"},
		{"IF(A1>0, SUM(A1:A10), 0)"},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			ast, err := Parse(tt.formula)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			prog, err := LowerProgram(ast, origin, resolveSheet, reg)
			if err != nil {
				t.Fatalf("LowerProgram: %v", err)
			}
			if prog.Root == nil {
				t.Fatalf("LowerProgram produced a nil root")
			}
		})
	}
}

func TestParserUnknownSheetFails(t *testing.T) {
	resolveSheet := func(name string) (SheetID, bool) { return 0, false }
	reg := NewFunctionRegistry()
	ast, err := Parse("Nonexistent!A1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := LowerProgram(ast, CellAddress{}, resolveSheet, reg); err == nil {
		t.Fatalf("expected LowerProgram to fail for an unresolvable sheet")
	}
}

func TestParserUnknownFunctionFails(t *testing.T) {
	resolveSheet := func(name string) (SheetID, bool) { return 0, true }
	reg := NewFunctionRegistry()
	ast, err := Parse("NOTAREALFUNCTION(1,2)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := LowerProgram(ast, CellAddress{}, resolveSheet, reg); err == nil {
		t.Fatalf("expected LowerProgram to fail for an unregistered function")
	}
}
