package internal

import "fmt"

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatHTML Format = "html"
)

// Table is a raw upload: header names in file order and text cells per row.
// Rows are padded to len(Columns).
type Table struct {
	Columns []string
	Rows    [][]string
	// Numeric marks cells the source stored as numbers rather than text.
	// Their text is the plain decimal value, free of locale separators. Nil
	// for text formats.
	Numeric [][]bool
	// SourceRows is the 1-based data row of each row, counted from the line
	// after the header, so skipped blank lines keep their numbers. When nil,
	// rows are numbered in order.
	SourceRows []int
}

// RowNumber is the 1-based data row of t.Rows[i].
func (t Table) RowNumber(i int) int {
	if i < len(t.SourceRows) {
		return t.SourceRows[i]
	}
	return i + 1
}

// IsNumeric reports whether cell (row, col) was a typed number.
func (t Table) IsNumeric(row, col int) bool {
	if row >= len(t.Numeric) || col >= len(t.Numeric[row]) {
		return false
	}
	return t.Numeric[row][col]
}

// FeatureMatrix holds one feature vector per surviving row.
type FeatureMatrix [][]float64

func (m FeatureMatrix) Width() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

type Label string

const (
	LabelCompleted Label = "Selesai"
	LabelCanceled  Label = "Batal"
)

const (
	CodeCompleted = 0
	CodeCanceled  = 1
)

func LabelForCode(code int) (Label, error) {
	switch code {
	case CodeCompleted:
		return LabelCompleted, nil
	case CodeCanceled:
		return LabelCanceled, nil
	default:
		return "", fmt.Errorf("classifier returned unknown class %d", code)
	}
}

type Prediction struct {
	Position   int    `json:"position"`
	Identifier string `json:"identifier"`
	Code       int    `json:"code"`
	Label      Label  `json:"label"`
}

// DroppedRow is an upload row left out of the feature matrix. Row is the
// 1-based data row of the upload, counted from the line after the header.
type DroppedRow struct {
	Row        int    `json:"row"`
	Identifier string `json:"identifier"`
	Reason     string `json:"reason"`
}

type BatchRow struct {
	ID                  string `json:"id"`
	SourceName          string `json:"source_name"`
	Format              string `json:"format"`
	ArtifactFingerprint string `json:"artifact_fingerprint"`
	RowsIn              int    `json:"rows_in"`
	RowsOut             int    `json:"rows_out"`
	CreatedAt           string `json:"created_at"`
}
