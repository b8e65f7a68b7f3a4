package pipeline

import (
	"reflect"
	"testing"

	"ordercancel/internal"
)

func TestFilterDropsListedColumnsAndKeepsIdentifier(t *testing.T) {
	table := internal.Table{
		Columns: []string{"Status Pesanan", "No. Resi", "Nama Penerima", "Provinsi", "Total Pembayaran"},
		Rows: [][]string{
			{"Selesai", "R1", "Budi", "Jawa Barat", "1000"},
			{"Batal", "R2", "Sari"},
		},
	}
	ids, f, err := Filter(DefaultConfig(), table)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"R1", "R2"}) {
		t.Fatalf("ids=%v", ids)
	}
	if !reflect.DeepEqual(f.Columns, []string{"Provinsi", "Total Pembayaran"}) {
		t.Fatalf("columns=%v", f.Columns)
	}
	if got := f.Values["Provinsi"][1]; got != "" {
		t.Fatalf("short row padded with %q", got)
	}
	if f.Has("Status Pesanan") {
		t.Fatal("leakage column kept")
	}
}

func TestFilterIdentifierNamedAsLeakage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LeakageColumns = append(cfg.LeakageColumns, cfg.IdentifierColumn)
	_, _, err := Filter(cfg, internal.Table{Columns: []string{"No. Resi"}, Rows: [][]string{{"R1"}}})
	if err == nil {
		t.Fatal("identifier removed as leakage must be reported missing")
	}
}
