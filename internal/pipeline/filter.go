package pipeline

import (
	"ordercancel/internal"
)

// Filter removes leakage columns, pulls the identifier column out and drops
// the configured non-predictive columns. Listed columns that are absent are
// ignored; everything else passes through in upload order.
func Filter(cfg Config, table internal.Table) ([]string, Frame, error) {
	leakage := toSet(cfg.LeakageColumns)
	kept := make([]int, 0, len(table.Columns))
	for i, name := range table.Columns {
		if _, ok := leakage[name]; ok {
			continue
		}
		kept = append(kept, i)
	}

	idIdx := -1
	for _, i := range kept {
		if table.Columns[i] == cfg.IdentifierColumn {
			idIdx = i
			break
		}
	}
	if idIdx < 0 {
		return nil, Frame{}, &internal.MissingIdentifierError{Column: cfg.IdentifierColumn}
	}

	ids := make([]string, len(table.Rows))
	for r, row := range table.Rows {
		ids[r] = cell(row, idIdx)
	}

	drop := toSet(cfg.DropColumns)
	drop[cfg.IdentifierColumn] = struct{}{}

	frame := Frame{
		Values: map[string][]string{},
		Rows:   make([]int, len(table.Rows)),
	}
	for r := range table.Rows {
		frame.Rows[r] = table.RowNumber(r)
	}
	if table.Numeric != nil {
		frame.Typed = map[string][]bool{}
	}
	for _, i := range kept {
		name := table.Columns[i]
		if _, ok := drop[name]; ok {
			continue
		}
		values := make([]string, len(table.Rows))
		for r, row := range table.Rows {
			values[r] = cell(row, i)
		}
		frame.Columns = append(frame.Columns, name)
		frame.Values[name] = values
		if frame.Typed != nil {
			flags := make([]bool, len(table.Rows))
			for r := range table.Rows {
				flags[r] = table.IsNumeric(r, i)
			}
			frame.Typed[name] = flags
		}
	}

	return ids, frame, nil
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
