package pipeline

// Frame is the column-oriented working table between pipeline stages.
// Stages return new frames; a frame is never modified after construction.
type Frame struct {
	Columns []string
	Values  map[string][]string
	// Rows holds the 1-based upload row number of each position.
	Rows []int
	// Typed marks cells that came in as numbers, not text. A column without
	// an entry has none.
	Typed map[string][]bool
}

func (f Frame) Len() int {
	return len(f.Rows)
}

func (f Frame) IsTyped(column string, i int) bool {
	flags := f.Typed[column]
	return i < len(flags) && flags[i]
}

func (f Frame) Has(column string) bool {
	_, ok := f.Values[column]
	return ok
}

// take returns a frame holding only the given positions, in order.
func (f Frame) take(positions []int) Frame {
	out := Frame{
		Columns: append([]string(nil), f.Columns...),
		Values:  make(map[string][]string, len(f.Values)),
		Rows:    make([]int, 0, len(positions)),
	}
	for _, p := range positions {
		out.Rows = append(out.Rows, f.Rows[p])
	}
	for col, values := range f.Values {
		out.Values[col] = pick(values, positions)
	}
	if f.Typed != nil {
		out.Typed = make(map[string][]bool, len(f.Typed))
		for col, flags := range f.Typed {
			out.Typed[col] = pick(flags, positions)
		}
	}
	return out
}

func pick[T any](values []T, positions []int) []T {
	out := make([]T, 0, len(positions))
	for _, p := range positions {
		out = append(out, values[p])
	}
	return out
}
