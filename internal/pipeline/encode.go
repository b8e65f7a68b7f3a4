package pipeline

import (
	"fmt"

	"ordercancel/internal/util"
)

// DefaultUnknownCode is the code for categories the vocabulary has never seen.
const DefaultUnknownCode = -1

// missingCategory is how a missing cell was spelled when the vocabularies
// were fitted.
const missingCategory = "nan"

// Vocabulary maps category text to the code the model was trained with.
type Vocabulary struct {
	Codes   map[string]int
	Unknown int
}

func NewVocabulary(codes map[string]int, unknown int) (Vocabulary, error) {
	for value, code := range codes {
		if code == unknown {
			return Vocabulary{}, fmt.Errorf("category %q uses the reserved unknown code %d", value, unknown)
		}
	}
	return Vocabulary{Codes: codes, Unknown: unknown}, nil
}

func (v Vocabulary) Code(value string) int {
	if util.IsMissing(value) {
		value = missingCategory
	}
	if code, ok := v.Codes[value]; ok {
		return code
	}
	return v.Unknown
}

func (v Vocabulary) Encode(values []string) []float64 {
	out := make([]float64, len(values))
	for i, value := range values {
		out[i] = float64(v.Code(value))
	}
	return out
}
