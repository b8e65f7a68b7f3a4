package pipeline

import (
	"errors"
	"fmt"

	"ordercancel/internal"
)

// Fitted is the training-time state the pipeline reproduces: the feature
// schema, the category vocabularies and the imputation statistics.
type Fitted struct {
	FeatureColumns     []string
	CategoricalColumns []string
	Vocabularies       map[string]Vocabulary
	Statistics         map[string]Statistic
	// Rules replaces the configured rule of a column when set.
	Rules map[string]Rule
}

type Pipeline struct {
	cfg         Config
	features    []string
	categorical map[string]struct{}
	vocab       map[string]Vocabulary
	imputer     Imputer
	normalizer  Normalizer
}

type Result struct {
	Identifiers []string
	Features    internal.FeatureMatrix
	Columns     []string
	Dropped     []internal.DroppedRow
}

func New(cfg Config, fitted Fitted) (*Pipeline, error) {
	if len(fitted.FeatureColumns) == 0 {
		return nil, errors.New("fitted schema has no feature columns")
	}
	features := toSet(fitted.FeatureColumns)
	if len(features) != len(fitted.FeatureColumns) {
		return nil, errors.New("fitted schema lists a feature column twice")
	}
	if _, ok := features[cfg.IdentifierColumn]; ok {
		return nil, fmt.Errorf("identifier column %q cannot be a feature", cfg.IdentifierColumn)
	}

	categorical := toSet(fitted.CategoricalColumns)
	for _, col := range fitted.CategoricalColumns {
		if _, ok := features[col]; !ok {
			return nil, fmt.Errorf("categorical column %q is not a feature column", col)
		}
		if _, ok := fitted.Vocabularies[col]; !ok {
			return nil, fmt.Errorf("no fitted vocabulary for categorical column %q", col)
		}
	}

	rules := make(map[string]Rule, len(cfg.Rules)+len(fitted.Rules))
	for col, rule := range cfg.Rules {
		rules[col] = rule
	}
	for col, rule := range fitted.Rules {
		rules[col] = rule
	}
	imputer := Imputer{Rules: rules, Statistics: fitted.Statistics, PrimaryAmount: cfg.PrimaryAmountColumn}
	if err := imputer.Validate(); err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:         cfg,
		features:    append([]string(nil), fitted.FeatureColumns...),
		categorical: categorical,
		vocab:       fitted.Vocabularies,
		imputer:     imputer,
		normalizer:  Normalizer{Currency: toSet(cfg.CurrencyColumns), Categorical: categorical},
	}, nil
}

func (p *Pipeline) FeatureColumns() []string {
	return append([]string(nil), p.features...)
}

// Run converts an upload into feature vectors in the fitted column order.
// Stages run in a fixed order: filter, schema check, impute, normalize,
// encode, log transform. The first violation aborts the whole batch.
func (p *Pipeline) Run(table internal.Table) (Result, error) {
	ids, frame, err := Filter(p.cfg, table)
	if err != nil {
		return Result{}, err
	}
	if err := CheckSchema(frame.Columns, p.features); err != nil {
		return Result{}, err
	}

	imputed, kept, err := p.imputer.Impute(frame)
	if err != nil {
		return Result{}, err
	}
	dropped := droppedRows(frame, ids, kept, p.cfg.PrimaryAmountColumn)
	ids = pick(ids, kept)

	numeric, err := p.normalizer.Normalize(imputed)
	if err != nil {
		return Result{}, err
	}

	columns := make([][]float64, len(p.features))
	for j, col := range p.features {
		if _, ok := p.categorical[col]; ok {
			columns[j] = p.vocab[col].Encode(imputed.Values[col])
			continue
		}
		columns[j] = LogColumn(numeric[col])
	}

	features := make(internal.FeatureMatrix, imputed.Len())
	for i := range features {
		row := make([]float64, len(columns))
		for j := range columns {
			row[j] = columns[j][i]
		}
		features[i] = row
	}
	if len(features) > 0 && features.Width() != len(p.features) {
		return Result{}, &internal.SchemaMismatchError{
			Position: features.Width(),
			Reason:   fmt.Sprintf("feature vector has %d columns, fitted schema has %d", features.Width(), len(p.features)),
		}
	}

	return Result{
		Identifiers: ids,
		Features:    features,
		Columns:     p.FeatureColumns(),
		Dropped:     dropped,
	}, nil
}

// CheckSchema compares the filtered upload columns with the fitted feature
// columns by name and position. Positions in the error are 1-based.
func CheckSchema(got, want []string) error {
	gotSet, wantSet := toSet(got), toSet(want)
	n := max(len(got), len(want))
	for i := 0; i < n; i++ {
		switch {
		case i >= len(got):
			return &internal.SchemaMismatchError{Column: want[i], Position: i + 1, Reason: "column missing from upload"}
		case i >= len(want):
			return &internal.SchemaMismatchError{Column: got[i], Position: i + 1, Reason: "column is not part of the fitted schema"}
		case got[i] == want[i]:
			continue
		}
		if _, ok := gotSet[want[i]]; !ok {
			return &internal.SchemaMismatchError{Column: want[i], Position: i + 1, Reason: "column missing from upload"}
		}
		if _, ok := wantSet[got[i]]; !ok {
			return &internal.SchemaMismatchError{Column: got[i], Position: i + 1, Reason: "column is not part of the fitted schema"}
		}
		return &internal.SchemaMismatchError{Column: got[i], Position: i + 1, Reason: fmt.Sprintf("column out of order, expected %q", want[i])}
	}
	return nil
}

func droppedRows(f Frame, ids []string, kept []int, primary string) []internal.DroppedRow {
	if len(kept) == f.Len() {
		return nil
	}
	keep := make(map[int]struct{}, len(kept))
	for _, k := range kept {
		keep[k] = struct{}{}
	}
	var out []internal.DroppedRow
	for i := 0; i < f.Len(); i++ {
		if _, ok := keep[i]; ok {
			continue
		}
		out = append(out, internal.DroppedRow{Row: f.Rows[i], Identifier: ids[i], Reason: fmt.Sprintf("missing %s", primary)})
	}
	return out
}
