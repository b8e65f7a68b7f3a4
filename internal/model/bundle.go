package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"ordercancel/internal/pipeline"
)

// Bundle is everything fitted at training time. It is loaded once per
// process and only read afterwards.
type Bundle struct {
	Version     string
	Fingerprint string
	Fitted      pipeline.Fitted
	Scaler      *StandardScaler
	Classifier  *LinearClassifier
}

type bundleFile struct {
	Version            string                    `json:"version" yaml:"version"`
	FeatureColumns     []string                  `json:"feature_columns" yaml:"feature_columns"`
	CategoricalColumns []string                  `json:"categorical_columns" yaml:"categorical_columns"`
	UnknownCode        *int                      `json:"unknown_code" yaml:"unknown_code"`
	Vocabularies       map[string]map[string]int `json:"vocabularies" yaml:"vocabularies"`
	Imputation         struct {
		Statistics map[string]pipeline.Statistic `json:"statistics" yaml:"statistics"`
		Rules      map[string]pipeline.Rule      `json:"rules" yaml:"rules"`
	} `json:"imputation" yaml:"imputation"`
	Scaler struct {
		Mean  []float64 `json:"mean" yaml:"mean"`
		Scale []float64 `json:"scale" yaml:"scale"`
	} `json:"scaler" yaml:"scaler"`
	Classifier struct {
		Kind      string    `json:"kind" yaml:"kind"`
		Coef      []float64 `json:"coef" yaml:"coef"`
		Intercept float64   `json:"intercept" yaml:"intercept"`
	} `json:"classifier" yaml:"classifier"`
}

// Load reads a bundle file. Files ending in .yaml or .yml are YAML, anything
// else is JSON.
func Load(path string) (*Bundle, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model bundle: %w", err)
	}
	parse := Parse
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parse = ParseYAML
	}
	b, err := parse(blob)
	if err != nil {
		return nil, fmt.Errorf("model bundle %s: %w", path, err)
	}
	return b, nil
}

func Parse(blob []byte) (*Bundle, error) {
	var raw bundleFile
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, err
	}
	return build(raw, blob)
}

func ParseYAML(blob []byte) (*Bundle, error) {
	var raw bundleFile
	if err := yaml.Unmarshal(blob, &raw); err != nil {
		return nil, err
	}
	return build(raw, blob)
}

func build(raw bundleFile, blob []byte) (*Bundle, error) {
	if len(raw.FeatureColumns) == 0 {
		return nil, errors.New("feature_columns is empty")
	}

	categorical := raw.CategoricalColumns
	if categorical == nil {
		categorical = pipeline.DefaultCategoricalColumns
	}
	unknown := pipeline.DefaultUnknownCode
	if raw.UnknownCode != nil {
		unknown = *raw.UnknownCode
	}

	vocab := make(map[string]pipeline.Vocabulary, len(raw.Vocabularies))
	for col, codes := range raw.Vocabularies {
		v, err := pipeline.NewVocabulary(codes, unknown)
		if err != nil {
			return nil, fmt.Errorf("vocabulary %q: %w", col, err)
		}
		vocab[col] = v
	}

	scaler, err := NewStandardScaler(raw.Scaler.Mean, raw.Scaler.Scale)
	if err != nil {
		return nil, err
	}
	if len(scaler.Mean) != len(raw.FeatureColumns) {
		return nil, fmt.Errorf("scaler fitted on %d features, schema lists %d", len(scaler.Mean), len(raw.FeatureColumns))
	}

	if raw.Classifier.Kind != "" && raw.Classifier.Kind != "linear" {
		return nil, fmt.Errorf("unsupported classifier kind %q", raw.Classifier.Kind)
	}
	if len(raw.Classifier.Coef) != len(raw.FeatureColumns) {
		return nil, fmt.Errorf("classifier has %d coefficients, schema lists %d features", len(raw.Classifier.Coef), len(raw.FeatureColumns))
	}

	sum := sha256.Sum256(blob)
	return &Bundle{
		Version:     raw.Version,
		Fingerprint: hex.EncodeToString(sum[:]),
		Fitted: pipeline.Fitted{
			FeatureColumns:     raw.FeatureColumns,
			CategoricalColumns: categorical,
			Vocabularies:       vocab,
			Statistics:         raw.Imputation.Statistics,
			Rules:              raw.Imputation.Rules,
		},
		Scaler:     scaler,
		Classifier: &LinearClassifier{Coef: raw.Classifier.Coef, Intercept: raw.Classifier.Intercept},
	}, nil
}
