package memory

import (
	"fmt"
	"strconv"
	"strings"
)

// a1Range is a parsed A1 reference. Rows and columns are zero-based;
// an open end is -1.
type a1Range struct {
	sheet    string
	startRow int
	startCol int
	endRow   int
	endCol   int
}

// parseA1 understands the subset of A1 notation this service emits:
// 'Title'!A1:C1, Title!A:C, 'Title'!B2:B, 'Title'!A5.
func parseA1(rng string) (a1Range, error) {
	i := strings.LastIndex(rng, "!")
	if i < 0 {
		return a1Range{}, fmt.Errorf("range %q has no sheet", rng)
	}
	sheet, cells := rng[:i], rng[i+1:]
	if strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") && len(sheet) >= 2 {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	if sheet == "" {
		return a1Range{}, fmt.Errorf("range %q has an empty sheet", rng)
	}

	startRef, endRef, hasEnd := strings.Cut(cells, ":")
	sr, sc, err := parseCell(startRef)
	if err != nil {
		return a1Range{}, fmt.Errorf("range %q: %w", rng, err)
	}
	r := a1Range{sheet: sheet, startRow: sr, startCol: sc, endRow: sr, endCol: sc}
	if sr < 0 {
		r.startRow = 0
	}
	if !hasEnd {
		if sr < 0 {
			r.endRow = -1
		}
		return r, nil
	}
	er, ec, err := parseCell(endRef)
	if err != nil {
		return a1Range{}, fmt.Errorf("range %q: %w", rng, err)
	}
	r.endRow, r.endCol = er, ec
	return r, nil
}

// parseCell parses "B2" into (1, 1) and "B" into (-1, 1).
func parseCell(ref string) (row, col int, err error) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		col = col*26 + int(ref[i]-'A'+1)
		i++
	}
	if i == 0 {
		return 0, 0, fmt.Errorf("cell %q has no column", ref)
	}
	col--
	if i == len(ref) {
		return -1, col, nil
	}
	n, err := strconv.Atoi(ref[i:])
	if err != nil || n < 1 {
		return 0, 0, fmt.Errorf("cell %q has an invalid row", ref)
	}
	return n - 1, col, nil
}
