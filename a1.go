package formulacore

import (
	"strconv"
	"strings"
)

// columnToLetters renders a 0-based column index in A1 letters (0 -> "A",
// 25 -> "Z", 26 -> "AA") via the classic bijective-base-26 algorithm.
func columnToLetters(col int32) string {
	col++ // switch to 1-based for the classic bijective-base-26 algorithm
	var buf []byte
	for col > 0 {
		col--
		buf = append([]byte{byte('A' + col%26)}, buf...)
		col /= 26
	}
	return string(buf)
}

// lettersToColumn parses A1 column letters into a 0-based index.
func lettersToColumn(letters string) (int32, bool) {
	if letters == "" {
		return 0, false
	}
	var col int32
	for i, ch := range strings.ToUpper(letters) {
		if ch < 'A' || ch > 'Z' {
			return 0, false
		}
		col = col*26 + int32(ch-'A')
		if i < len(letters)-1 {
			col++
		}
	}
	return col, true
}

// formatA1Cell renders a 0-based (row, col) as "A1"-style text, with '$'
// prefixes when absColumn/absRow are set.
func formatA1Cell(row, col int32, absRow, absCol bool) string {
	var b strings.Builder
	if absCol {
		b.WriteByte('$')
	}
	b.WriteString(columnToLetters(col))
	if absRow {
		b.WriteByte('$')
	}
	b.WriteString(strconv.FormatInt(int64(row)+1, 10))
	return b.String()
}

// parsedCellRef is the result of lexing a single "$A$1" style token.
type parsedCellRef struct {
	Row, Col       int32
	RowAbs, ColAbs bool
}

// parseA1Cell parses a bare "A1"/"$A$1"/"A$1"/"$A1" cell token (no sheet
// prefix), recognizing '$' absolute-reference markers on either axis.
func parseA1Cell(cell string) (parsedCellRef, bool) {
	if cell == "" {
		return parsedCellRef{}, false
	}
	i := 0
	colAbs := false
	if cell[i] == '$' {
		colAbs = true
		i++
	}
	letterStart := i
	for i < len(cell) && ((cell[i] >= 'A' && cell[i] <= 'Z') || (cell[i] >= 'a' && cell[i] <= 'z')) {
		i++
	}
	if i == letterStart {
		return parsedCellRef{}, false
	}
	col, ok := lettersToColumn(cell[letterStart:i])
	if !ok {
		return parsedCellRef{}, false
	}
	rowAbs := false
	if i < len(cell) && cell[i] == '$' {
		rowAbs = true
		i++
	}
	digitStart := i
	for i < len(cell) && cell[i] >= '0' && cell[i] <= '9' {
		i++
	}
	if digitStart == i || i != len(cell) {
		return parsedCellRef{}, false
	}
	n, err := strconv.ParseInt(cell[digitStart:i], 10, 32)
	if err != nil || n < 1 {
		return parsedCellRef{}, false
	}
	return parsedCellRef{Row: int32(n - 1), Col: col, RowAbs: rowAbs, ColAbs: colAbs}, true
}

// splitSheetQualifier splits "'My Sheet'!A1" / "Sheet1!A1" / "A1" into an
// optional sheet name (with '' escaping undone) and the remainder. Sheet
// names containing spaces or special characters are quoted with '...';
// a doubled '' inside a quoted name escapes a literal quote.
func splitSheetQualifier(s string) (sheet string, hasSheet bool, rest string) {
	if strings.HasPrefix(s, "'") {
		// find the closing quote, accounting for doubled '' escapes
		i := 1
		var b strings.Builder
		for i < len(s) {
			if s[i] == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					b.WriteByte('\'')
					i += 2
					continue
				}
				i++
				break
			}
			b.WriteByte(s[i])
			i++
		}
		if i < len(s) && s[i] == '!' {
			return b.String(), true, s[i+1:]
		}
		return "", false, s
	}
	if idx := strings.LastIndex(s, "!"); idx != -1 {
		return s[:idx], true, s[idx+1:]
	}
	return "", false, s
}

// quoteSheetName renders a sheet name for formula text, quoting it with
// '…' (doubling internal apostrophes) whenever it is not a bare identifier.
func quoteSheetName(name string) string {
	needsQuote := name == ""
	for _, r := range name {
		if !(r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			needsQuote = true
			break
		}
	}
	if len(name) > 0 && name[0] >= '0' && name[0] <= '9' {
		needsQuote = true
	}
	if !needsQuote {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
