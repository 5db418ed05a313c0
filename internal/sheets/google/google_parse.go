package google

import (
	ports "sheetexpense/internal/sheets"

	gsheet "google.golang.org/api/sheets/v4"
)

// fromValueRange converts an API response into port values. Missing rows
// come back as empty slices, never nil, so callers can index by position.
func fromValueRange(vr *gsheet.ValueRange) ports.Values {
	if vr == nil || len(vr.Values) == 0 {
		return ports.Values{}
	}
	out := make(ports.Values, len(vr.Values))
	for i, row := range vr.Values {
		if row == nil {
			row = []interface{}{}
		}
		out[i] = row
	}
	return out
}

func toValueRange(values ports.Values) *gsheet.ValueRange {
	rows := make([][]interface{}, len(values))
	for i, row := range values {
		rows[i] = row
	}
	return &gsheet.ValueRange{Values: rows}
}

func toSheetInfos(list []*gsheet.Sheet) []ports.SheetInfo {
	out := make([]ports.SheetInfo, 0, len(list))
	for _, s := range list {
		if s == nil || s.Properties == nil {
			continue
		}
		info := ports.SheetInfo{ID: s.Properties.SheetId, Title: s.Properties.Title}
		if g := s.Properties.GridProperties; g != nil {
			info.Rows = g.RowCount
			info.Cols = g.ColumnCount
		}
		out = append(out, info)
	}
	return out
}
