package model

import (
	"errors"
	"math"
	"testing"

	"ordercancel/internal"
)

func TestStandardScalerTransform(t *testing.T) {
	s, err := NewStandardScaler([]float64{1, 10}, []float64{2, 0})
	if err != nil {
		t.Fatal(err)
	}
	in := internal.FeatureMatrix{{3, 12}, {1, 10}}
	out, err := s.Transform(in)
	if err != nil {
		t.Fatal(err)
	}
	want := internal.FeatureMatrix{{1, 2}, {0, 0}}
	for i := range want {
		for j := range want[i] {
			if math.Abs(out[i][j]-want[i][j]) > 1e-12 {
				t.Fatalf("cell %d,%d got %v", i, j, out[i][j])
			}
		}
	}
	if in[0][0] != 3 {
		t.Fatal("input modified")
	}
}

func TestStandardScalerRejectsWidth(t *testing.T) {
	s, _ := NewStandardScaler([]float64{0, 0}, []float64{1, 1})
	_, err := s.Transform(internal.FeatureMatrix{{1, 2, 3}})
	var target *internal.SchemaMismatchError
	if !errors.As(err, &target) {
		t.Fatalf("err=%v", err)
	}
}

func TestLinearClassifierPredict(t *testing.T) {
	c := &LinearClassifier{Coef: []float64{1, -1}, Intercept: -0.5}
	got, err := c.Predict(internal.FeatureMatrix{{2, 0}, {0, 2}, {1, 0.5}})
	if err != nil {
		t.Fatal(err)
	}
	want := []int{internal.CodeCanceled, internal.CodeCompleted, internal.CodeCompleted}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d got %d want %d", i, got[i], want[i])
		}
	}
}

func TestEmptyMatrix(t *testing.T) {
	s, _ := NewStandardScaler([]float64{0}, []float64{1})
	out, err := s.Transform(nil)
	if err != nil || len(out) != 0 {
		t.Fatalf("out=%v err=%v", out, err)
	}
	labels, err := (&LinearClassifier{Coef: []float64{1}}).Predict(out)
	if err != nil || len(labels) != 0 {
		t.Fatalf("labels=%v err=%v", labels, err)
	}
}
