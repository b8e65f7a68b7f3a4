package review

import (
	"fmt"
	"sort"
	"strings"

	"ordercancel/internal"
)

// PageSizes are the page sizes offered to reviewers.
var PageSizes = []int{10, 25, 50, 100}

type SortKey string

const (
	SortNone       SortKey = ""
	SortIdentifier SortKey = "identifier"
	SortLabel      SortKey = "label"
)

func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortNone, SortIdentifier, SortLabel:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sort key %q (want identifier or label)", s)
	}
}

type Query struct {
	Page       int
	Size       int
	SortBy     SortKey
	Descending bool
}

type Page struct {
	Items      []internal.Prediction
	Page       int
	Size       int
	TotalPages int
	Total      int
}

type Summary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Canceled  int `json:"canceled"`
}

func Summarize(preds []internal.Prediction) Summary {
	s := Summary{Total: len(preds)}
	for _, p := range preds {
		switch p.Label {
		case internal.LabelCompleted:
			s.Completed++
		case internal.LabelCanceled:
			s.Canceled++
		}
	}
	return s
}

// Paginate sorts a copy of preds and cuts out one page. Sorting is stable,
// so equal keys keep upload order. A page outside 1..TotalPages is clamped.
func Paginate(preds []internal.Prediction, q Query) (Page, error) {
	if q.Size <= 0 {
		return Page{}, fmt.Errorf("page size must be positive, got %d", q.Size)
	}
	if _, err := ParseSortKey(string(q.SortBy)); err != nil {
		return Page{}, err
	}

	sorted := append([]internal.Prediction(nil), preds...)
	if q.SortBy != SortNone {
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := sortValue(sorted[i], q.SortBy), sortValue(sorted[j], q.SortBy)
			if q.Descending {
				return a > b
			}
			return a < b
		})
	} else if q.Descending {
		for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
			sorted[i], sorted[j] = sorted[j], sorted[i]
		}
	}

	total := len(sorted)
	pages := max(1, (total+q.Size-1)/q.Size)
	page := min(max(q.Page, 1), pages)
	start := min((page-1)*q.Size, total)
	end := min(start+q.Size, total)

	return Page{
		Items:      sorted[start:end],
		Page:       page,
		Size:       q.Size,
		TotalPages: pages,
		Total:      total,
	}, nil
}

func sortValue(p internal.Prediction, key SortKey) string {
	if key == SortLabel {
		return string(p.Label)
	}
	return p.Identifier
}
