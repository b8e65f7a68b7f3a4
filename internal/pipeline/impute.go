package pipeline

import (
	"fmt"
	"strconv"

	"ordercancel/internal/util"
)

type StrategyKind string

const (
	StrategyConstant    StrategyKind = "constant"
	StrategyFallback    StrategyKind = "fallback"
	StrategyMode        StrategyKind = "mode"
	StrategyMedian      StrategyKind = "median"
	StrategyForwardFill StrategyKind = "ffill"
)

// Strategy fills the cells of one column that are still missing.
type Strategy struct {
	Kind   StrategyKind `json:"strategy" yaml:"strategy"`
	Value  string       `json:"value,omitempty" yaml:"value,omitempty"`
	Source string       `json:"source,omitempty" yaml:"source,omitempty"`
}

// Rule is the ordered chain of strategies for a column.
type Rule []Strategy

func Constant(value string) Strategy { return Strategy{Kind: StrategyConstant, Value: value} }
func Fallback(source string) Strategy { return Strategy{Kind: StrategyFallback, Source: source} }
func ForwardFill() Strategy { return Strategy{Kind: StrategyForwardFill} }
func ModeFill() Strategy { return Strategy{Kind: StrategyMode} }
func MedianFill() Strategy { return Strategy{Kind: StrategyMedian} }

// Statistic is a training-time column statistic shipped with the model.
type Statistic struct {
	Mode   *string  `json:"mode,omitempty" yaml:"mode,omitempty"`
	Median *float64 `json:"median,omitempty" yaml:"median,omitempty"`
}

type Imputer struct {
	Rules         map[string]Rule
	Statistics    map[string]Statistic
	PrimaryAmount string
}

// Validate checks that every statistical strategy has its statistic.
func (im Imputer) Validate() error {
	for col, rule := range im.Rules {
		for _, s := range rule {
			switch s.Kind {
			case StrategyConstant, StrategyForwardFill:
			case StrategyFallback:
				if s.Source == "" {
					return fmt.Errorf("imputation rule for %q: fallback without source column", col)
				}
			case StrategyMode:
				if st, ok := im.Statistics[col]; !ok || st.Mode == nil {
					return fmt.Errorf("imputation rule for %q: no fitted mode", col)
				}
			case StrategyMedian:
				if st, ok := im.Statistics[col]; !ok || st.Median == nil {
					return fmt.Errorf("imputation rule for %q: no fitted median", col)
				}
			default:
				return fmt.Errorf("imputation rule for %q: unknown strategy %q", col, s.Kind)
			}
		}
	}
	return nil
}

// Impute fills every column that has a rule and then keeps only the rows
// that have a primary amount. It returns the filled frame and the kept
// positions of the input frame.
func (im Imputer) Impute(f Frame) (Frame, []int, error) {
	filled := Frame{
		Columns: f.Columns,
		Values:  make(map[string][]string, len(f.Values)),
		Rows:    f.Rows,
	}
	if f.Typed != nil {
		filled.Typed = make(map[string][]bool, len(f.Typed))
	}
	for _, col := range f.Columns {
		rule, ok := im.Rules[col]
		if !ok {
			filled.Values[col] = f.Values[col]
			if filled.Typed != nil {
				filled.Typed[col] = f.Typed[col]
			}
			continue
		}
		values, typed, err := im.fillColumn(f, col, rule)
		if err != nil {
			return Frame{}, nil, err
		}
		filled.Values[col] = values
		if filled.Typed != nil {
			filled.Typed[col] = typed
		}
	}

	kept := make([]int, 0, f.Len())
	primary, ok := filled.Values[im.PrimaryAmount]
	for i := 0; i < f.Len(); i++ {
		if ok && util.IsMissing(primary[i]) {
			continue
		}
		kept = append(kept, i)
	}
	if len(kept) == f.Len() {
		return filled, kept, nil
	}
	return filled.take(kept), kept, nil
}

// fillColumn reads other columns from the unfilled input only, so the result
// does not depend on the order columns are processed in. Filled cells carry
// the typed flag of the cell they were copied from; constants are text.
func (im Imputer) fillColumn(f Frame, col string, rule Rule) ([]string, []bool, error) {
	out := append([]string(nil), f.Values[col]...)
	typed := make([]bool, len(out))
	copy(typed, f.Typed[col])
	text := func(v string) func(int) (string, bool, bool) {
		return func(int) (string, bool, bool) { return v, false, true }
	}
	for _, s := range rule {
		switch s.Kind {
		case StrategyConstant:
			fillMissing(out, typed, text(s.Value))
		case StrategyFallback:
			source, ok := f.Values[s.Source]
			if !ok {
				continue
			}
			fillMissing(out, typed, func(i int) (string, bool, bool) {
				return source[i], f.IsTyped(s.Source, i), !util.IsMissing(source[i])
			})
		case StrategyMode:
			st := im.Statistics[col]
			if st.Mode == nil {
				return nil, nil, fmt.Errorf("no fitted mode for %q", col)
			}
			fillMissing(out, typed, text(*st.Mode))
		case StrategyMedian:
			st := im.Statistics[col]
			if st.Median == nil {
				return nil, nil, fmt.Errorf("no fitted median for %q", col)
			}
			// exponent form so "1.234" is never read back as a thousands group
			fillMissing(out, typed, text(strconv.FormatFloat(*st.Median, 'e', -1, 64)))
		case StrategyForwardFill:
			forwardFill(out, typed)
		default:
			return nil, nil, fmt.Errorf("unknown imputation strategy %q for %q", s.Kind, col)
		}
	}
	return out, typed, nil
}

func fillMissing(values []string, typed []bool, with func(i int) (string, bool, bool)) {
	for i, v := range values {
		if !util.IsMissing(v) {
			continue
		}
		if repl, isTyped, ok := with(i); ok {
			values[i] = repl
			typed[i] = isTyped
		}
	}
}

// forwardFill carries the last present value down the column, with its
// typed flag. Leading missing cells stay missing.
func forwardFill(values []string, typed []bool) {
	last, lastTyped, seen := "", false, false
	for i, v := range values {
		if util.IsMissing(v) {
			if seen {
				values[i] = last
				typed[i] = lastTyped
			}
			continue
		}
		last, lastTyped, seen = v, typed[i], true
	}
}
