package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"ordercancel/internal"
)

// Scaler applies the fitted rescaling to a feature matrix.
type Scaler interface {
	Transform(x internal.FeatureMatrix) (internal.FeatureMatrix, error)
}

// Classifier returns one class per row: 0 completed, 1 canceled.
type Classifier interface {
	Predict(x internal.FeatureMatrix) ([]int, error)
}

// StandardScaler is a fitted (x - mean) / scale transform.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) == 0 || len(mean) != len(scale) {
		return nil, fmt.Errorf("scaler has %d means and %d scales", len(mean), len(scale))
	}
	s := &StandardScaler{Mean: append([]float64(nil), mean...), Scale: append([]float64(nil), scale...)}
	for j, v := range s.Scale {
		if v == 0 {
			s.Scale[j] = 1
		}
	}
	return s, nil
}

func (s *StandardScaler) Transform(x internal.FeatureMatrix) (internal.FeatureMatrix, error) {
	if len(x) == 0 {
		return internal.FeatureMatrix{}, nil
	}
	if err := checkWidth(x, len(s.Mean), "scaler"); err != nil {
		return nil, err
	}
	var out mat.Dense
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, toDense(x))
	return fromDense(&out), nil
}

// LinearClassifier labels a row canceled when its decision value is positive.
type LinearClassifier struct {
	Coef      []float64
	Intercept float64
}

func (c *LinearClassifier) Decision(x internal.FeatureMatrix) ([]float64, error) {
	if len(x) == 0 {
		return nil, nil
	}
	if err := checkWidth(x, len(c.Coef), "classifier"); err != nil {
		return nil, err
	}
	var scores mat.VecDense
	scores.MulVec(toDense(x), mat.NewVecDense(len(c.Coef), c.Coef))
	out := make([]float64, len(x))
	for i := range out {
		out[i] = scores.AtVec(i) + c.Intercept
	}
	return out, nil
}

func (c *LinearClassifier) Predict(x internal.FeatureMatrix) ([]int, error) {
	scores, err := c.Decision(x)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(scores))
	for i, v := range scores {
		if v > 0 {
			out[i] = internal.CodeCanceled
		} else {
			out[i] = internal.CodeCompleted
		}
	}
	return out, nil
}

func checkWidth(x internal.FeatureMatrix, want int, who string) error {
	for i, row := range x {
		if len(row) != want {
			return &internal.SchemaMismatchError{
				Position: len(row),
				Reason:   fmt.Sprintf("row %d has %d features, %s was fitted on %d", i+1, len(row), who, want),
			}
		}
	}
	return nil
}

func toDense(x internal.FeatureMatrix) *mat.Dense {
	r, c := len(x), x.Width()
	data := make([]float64, 0, r*c)
	for _, row := range x {
		data = append(data, row...)
	}
	return mat.NewDense(r, c, data)
}

func fromDense(d *mat.Dense) internal.FeatureMatrix {
	r, _ := d.Dims()
	out := make(internal.FeatureMatrix, r)
	for i := range out {
		out[i] = mat.Row(nil, i, d)
	}
	return out
}
