package model

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleBundle = `{
  "version": "test",
  "feature_columns": ["Metode Pembayaran", "Total Pembayaran"],
  "categorical_columns": ["Metode Pembayaran"],
  "vocabularies": {"Metode Pembayaran": {"COD": 0, "Transfer Bank": 1}},
  "imputation": {
    "statistics": {"Metode Pembayaran": {"mode": "COD"}},
    "rules": {"Metode Pembayaran": [{"strategy": "mode"}]}
  },
  "scaler": {"mean": [0.5, 10], "scale": [0.5, 2]},
  "classifier": {"kind": "linear", "coef": [1, -0.2], "intercept": 0.1}
}`

func TestLoadBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.json")
	if err := os.WriteFile(path, []byte(sampleBundle), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if b.Version != "test" || len(b.Fingerprint) != 64 {
		t.Fatalf("bundle=%+v", b)
	}
	v := b.Fitted.Vocabularies["Metode Pembayaran"]
	if v.Unknown != -1 || v.Code("Transfer Bank") != 1 || v.Code("OVO") != -1 {
		t.Fatalf("vocabulary=%+v", v)
	}
	if st := b.Fitted.Statistics["Metode Pembayaran"]; st.Mode == nil || *st.Mode != "COD" {
		t.Fatalf("statistics=%+v", b.Fitted.Statistics)
	}
	if len(b.Fitted.Rules["Metode Pembayaran"]) != 1 {
		t.Fatalf("rules=%+v", b.Fitted.Rules)
	}
}

func TestParseBundleErrors(t *testing.T) {
	cases := map[string]string{
		"scaler width":     strings.Replace(sampleBundle, `"mean": [0.5, 10]`, `"mean": [0.5]`, 1),
		"classifier width": strings.Replace(sampleBundle, `"coef": [1, -0.2]`, `"coef": [1]`, 1),
		"classifier kind":  strings.Replace(sampleBundle, `"kind": "linear"`, `"kind": "rbf"`, 1),
		"reserved code":    strings.Replace(sampleBundle, `"Transfer Bank": 1`, `"Transfer Bank": -1`, 1),
		"no features":      strings.Replace(sampleBundle, `["Metode Pembayaran", "Total Pembayaran"]`, `[]`, 1),
		"not json":         "{",
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(blob)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

const sampleYAML = `version: yaml-test
feature_columns: [Metode Pembayaran, Total Pembayaran]
categorical_columns: [Metode Pembayaran]
unknown_code: 99
vocabularies:
  Metode Pembayaran: {COD: 0, nan: 1}
imputation:
  rules:
    Metode Pembayaran:
      - strategy: constant
        value: COD
scaler: {mean: [0, 0], scale: [1, 1]}
classifier: {kind: linear, coef: [1, 1], intercept: 0}
`

func TestLoadYAMLBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	v := b.Fitted.Vocabularies["Metode Pembayaran"]
	if v.Unknown != 99 || v.Code("") != 1 || v.Code("OVO") != 99 {
		t.Fatalf("vocabulary=%+v", v)
	}
	rule := b.Fitted.Rules["Metode Pembayaran"]
	if len(rule) != 1 || rule[0].Value != "COD" {
		t.Fatalf("rule=%+v", rule)
	}
}
