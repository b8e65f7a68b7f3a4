package pipeline

import (
	"math"
	"strconv"
	"strings"

	"ordercancel/internal"
	"ordercancel/internal/util"
)

// Normalizer turns the text cells of every non-categorical column into
// numbers. Currency columns are cast to integral amounts; other columns keep
// their fraction. Missing cells become NaN. Cells that arrived as typed
// numbers pass through without the locale separator rules.
type Normalizer struct {
	Currency    map[string]struct{}
	Categorical map[string]struct{}
}

func (n Normalizer) Normalize(f Frame) (map[string][]float64, error) {
	out := make(map[string][]float64, len(f.Columns))
	for _, col := range f.Columns {
		if _, ok := n.Categorical[col]; ok {
			continue
		}
		_, currency := n.Currency[col]
		values := f.Values[col]
		nums := make([]float64, len(values))
		for i, v := range values {
			if util.IsMissing(v) {
				nums[i] = math.NaN()
				continue
			}
			parsed, err := parseCell(v, currency, f.IsTyped(col, i))
			if err != nil {
				return nil, &internal.NumericParseError{Column: col, Row: f.Rows[i], Value: v}
			}
			nums[i] = parsed
		}
		out[col] = nums
	}
	return out, nil
}

func parseCell(v string, currency, typed bool) (float64, error) {
	if typed {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || !currency {
			return parsed, err
		}
		amount, err := util.TruncAmount(parsed)
		return float64(amount), err
	}
	if currency {
		amount, err := util.ParseAmount(v)
		return float64(amount), err
	}
	return util.ParseNumber(v)
}
