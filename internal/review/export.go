package review

import (
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"ordercancel/internal"
)

// ExportPredictionsToXLSX writes one sheet of predictions in upload order,
// a summary sheet, and the dropped rows on a third sheet when there are any.
func ExportPredictionsToXLSX(batch internal.BatchRow, preds []internal.Prediction, dropped []internal.DroppedRow, outputPath string) error {
	f, err := buildWorkbook(batch, preds, dropped)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func WritePredictionsXLSX(w io.Writer, batch internal.BatchRow, preds []internal.Prediction, dropped []internal.DroppedRow) error {
	f, err := buildWorkbook(batch, preds, dropped)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

func buildWorkbook(batch internal.BatchRow, preds []internal.Prediction, dropped []internal.DroppedRow) (*excelize.File, error) {
	f := excelize.NewFile()

	sheet := "Prediksi"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	writeRow(f, sheet, 1, "No", "No. Resi", "Kode", "Prediksi")
	for i, p := range preds {
		writeRow(f, sheet, i+2, p.Position, p.Identifier, p.Code, string(p.Label))
	}

	s := Summarize(preds)
	info := "Ringkasan"
	if _, err := f.NewSheet(info); err != nil {
		_ = f.Close()
		return nil, err
	}
	writeRow(f, info, 1, "Batch", batch.ID)
	writeRow(f, info, 2, "File", batch.SourceName)
	writeRow(f, info, 3, "Total Transaksi", s.Total)
	writeRow(f, info, 4, "Selesai", s.Completed)
	writeRow(f, info, 5, "Batal", s.Canceled)
	writeRow(f, info, 6, "Baris Dilewati", len(dropped))

	if len(dropped) > 0 {
		skipped := "Dilewati"
		if _, err := f.NewSheet(skipped); err != nil {
			_ = f.Close()
			return nil, err
		}
		writeRow(f, skipped, 1, "Baris", "No. Resi", "Alasan")
		for i, r := range dropped {
			writeRow(f, skipped, i+2, r.Row, r.Identifier, r.Reason)
		}
	}
	return f, nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}
