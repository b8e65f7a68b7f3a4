package storage

import (
	"path/filepath"
	"testing"

	"ordercancel/internal"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSaveAndReadBatch(t *testing.T) {
	db := openTest(t)
	batch := internal.BatchRow{ID: "01J0000000000000000000000A", SourceName: "orders.xlsx", Format: "xlsx", ArtifactFingerprint: "abc", RowsIn: 3, RowsOut: 2}
	preds := []internal.Prediction{
		{Position: 2, Identifier: "R2", Code: 1, Label: internal.LabelCanceled},
		{Position: 1, Identifier: "R1", Code: 0, Label: internal.LabelCompleted},
	}
	dropped := []internal.DroppedRow{{Row: 3, Identifier: "R3", Reason: "missing Total Pembayaran"}}
	if err := db.SaveBatch(batch, preds, dropped); err != nil {
		t.Fatal(err)
	}

	got, err := db.MustBatch(batch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.RowsOut != 2 || got.SourceName != "orders.xlsx" || got.CreatedAt == "" {
		t.Fatalf("batch=%+v", got)
	}

	stored, err := db.GetPredictions(batch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 {
		t.Fatalf("len=%d", len(stored))
	}
	if stored[0].Identifier != "R1" || stored[1].Label != internal.LabelCanceled {
		t.Fatalf("predictions=%+v", stored)
	}

	rows, err := db.GetDroppedRows(batch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Row != 3 {
		t.Fatalf("dropped=%+v", rows)
	}

	list, err := db.ListBatches(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("len=%d", len(list))
	}
}

func TestSaveBatchIsAtomic(t *testing.T) {
	db := openTest(t)
	batch := internal.BatchRow{ID: "B1", SourceName: "a.csv", Format: "csv", ArtifactFingerprint: "x", RowsIn: 2, RowsOut: 2}
	preds := []internal.Prediction{
		{Position: 1, Identifier: "R1", Label: internal.LabelCompleted},
		{Position: 1, Identifier: "R1", Label: internal.LabelCompleted},
	}
	if err := db.SaveBatch(batch, preds, nil); err == nil {
		t.Fatal("expected unique violation")
	}
	row, err := db.GetBatch("B1")
	if err != nil {
		t.Fatal(err)
	}
	if row != nil {
		t.Fatalf("batch left behind: %+v", row)
	}
}

func TestMissingBatch(t *testing.T) {
	db := openTest(t)
	if _, err := db.MustBatch("nope"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunsAndMetadata(t *testing.T) {
	db := openTest(t)
	if err := db.InsertRun("t1", "", "failed", "schema mismatch", map[string]float64{"totalMs": 1}, map[string]int{"rowsIn": 0}); err != nil {
		t.Fatal(err)
	}
	n, err := db.CountRuns("failed")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("runs=%d", n)
	}

	if v, err := db.GetMetadata("artifact"); err != nil || v != nil {
		t.Fatalf("v=%v err=%v", v, err)
	}
	if err := db.SetMetadata("artifact", "a"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMetadata("artifact", "b"); err != nil {
		t.Fatal(err)
	}
	v, err := db.GetMetadata("artifact")
	if err != nil || v == nil || *v != "b" {
		t.Fatalf("v=%v err=%v", v, err)
	}
}
