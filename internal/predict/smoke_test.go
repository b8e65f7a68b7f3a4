package predict

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"ordercancel/internal"
	"ordercancel/internal/model"
	"ordercancel/internal/pipeline"
	"ordercancel/internal/storage"
)

const testBundle = `{
  "version": "smoke",
  "feature_columns": ["Waktu Pesanan Dibuat", "Waktu Pembayaran Dilakukan", "Metode Pembayaran", "Total Pembayaran", "Ongkos Kirim Dibayar oleh Pembeli"],
  "categorical_columns": ["Waktu Pesanan Dibuat", "Waktu Pembayaran Dilakukan", "Metode Pembayaran"],
  "vocabularies": {
    "Waktu Pesanan Dibuat": {"2024-01-01 10:00": 0, "2024-01-02 11:00": 1, "2024-01-03 12:00": 2},
    "Waktu Pembayaran Dilakukan": {"2024-01-01 10:00": 0, "2024-01-02 11:00": 1, "2024-01-03 12:00": 2},
    "Metode Pembayaran": {"COD": 0, "Transfer Bank": 1, "Metode Pembayaran Lainnya": 2}
  },
  "scaler": {"mean": [0, 0, 0, 0, 0], "scale": [1, 1, 1, 1, 1]},
  "classifier": {"kind": "linear", "coef": [0, 0, 1, 0, 0], "intercept": -0.5}
}`

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func newService(t *testing.T) (*Service, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	bundle, err := model.Parse([]byte(testBundle))
	if err != nil {
		t.Fatal(err)
	}
	svc, err := NewService(db, bundle, pipeline.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return svc, db
}

func TestSmokeUploadToStoredBatch(t *testing.T) {
	svc, db := newService(t)
	blob := mkXLSX([][]any{
		{"No. Pesanan", "Status Pesanan", "No. Resi", "Waktu Pesanan Dibuat", "Waktu Pembayaran Dilakukan", "Metode Pembayaran", "Total Pembayaran", "Ongkos Kirim Dibayar oleh Pembeli", "Catatan"},
		{"P1", "Selesai", "RESI1", "2024-01-01 10:00", "2024-01-01 10:00", "COD", "Rp1.500", "10.000", ""},
		{"P2", "Batal", "RESI2", "2024-01-02 11:00", "", "Transfer Bank", "Rp25.000", "0", ""},
		{"P3", "Selesai", "RESI3", "2024-01-03 12:00", "2024-01-03 12:00", "", "", "5000", "tolong cepat"},
	})

	res, err := svc.Predict("orders.xlsx", blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Predictions) != 2 {
		t.Fatalf("len=%d", len(res.Predictions))
	}
	if res.Predictions[0].Identifier != "RESI1" || res.Predictions[0].Label != internal.LabelCompleted {
		t.Fatalf("first=%+v", res.Predictions[0])
	}
	if res.Predictions[1].Identifier != "RESI2" || res.Predictions[1].Label != internal.LabelCanceled {
		t.Fatalf("second=%+v", res.Predictions[1])
	}
	if res.Summary.Total != 2 || res.Summary.Canceled != 1 || len(res.Dropped) != 1 {
		t.Fatalf("summary=%+v dropped=%+v", res.Summary, res.Dropped)
	}

	batch, err := db.MustBatch(res.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if batch.RowsIn != 3 || batch.RowsOut != 2 || batch.Format != "xlsx" || len(batch.ArtifactFingerprint) != 64 {
		t.Fatalf("batch=%+v", batch)
	}
	stored, err := db.GetPredictions(res.BatchID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 || stored[1].Label != internal.LabelCanceled {
		t.Fatalf("stored=%+v", stored)
	}
	if n, _ := db.CountRuns("ok"); n != 1 {
		t.Fatalf("runs=%d", n)
	}
}

func TestFailedBatchIsNotStored(t *testing.T) {
	svc, db := newService(t)
	blob := []byte("No. Pesanan,Total Pembayaran\nP1,1500\n")

	_, err := svc.Predict("orders.csv", blob)
	var target *internal.MissingIdentifierError
	if !errors.As(err, &target) {
		t.Fatalf("err=%v", err)
	}
	batches, err := db.ListBatches(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 0 {
		t.Fatalf("batches=%+v", batches)
	}
	if n, _ := db.CountRuns("failed"); n != 1 {
		t.Fatalf("runs=%d", n)
	}
}

func TestUnsupportedUpload(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Predict("orders.pdf", []byte("%PDF-1.4"))
	var target *internal.UnsupportedFileFormatError
	if !errors.As(err, &target) {
		t.Fatalf("err=%v", err)
	}
}

type badClassifier struct{}

func (badClassifier) Predict(m internal.FeatureMatrix) ([]int, error) {
	out := make([]int, len(m))
	for i := range out {
		out[i] = 7
	}
	return out, nil
}

func TestUnknownClassRejected(t *testing.T) {
	svc, db := newService(t)
	svc.classifier = badClassifier{}
	blob := []byte("No. Resi,Waktu Pesanan Dibuat,Waktu Pembayaran Dilakukan,Metode Pembayaran,Total Pembayaran,Ongkos Kirim Dibayar oleh Pembeli\nR1,2024-01-01 10:00,,COD,1500,0\n")
	if _, err := svc.Predict("orders.csv", blob); err == nil {
		t.Fatal("expected error")
	}
	if batches, _ := db.ListBatches(10); len(batches) != 0 {
		t.Fatalf("batches=%+v", batches)
	}
}
