package listener

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ordercancel/internal"
	"ordercancel/internal/predict"
	"ordercancel/internal/review"
)

type fakePredictor struct {
	mu   sync.Mutex
	seen []string
}

func (f *fakePredictor) PredictFile(path string) (predict.Result, error) {
	f.mu.Lock()
	f.seen = append(f.seen, filepath.Base(path))
	f.mu.Unlock()
	if strings.Contains(path, "broken") {
		return predict.Result{}, &internal.MissingIdentifierError{Column: "No. Resi"}
	}
	preds := []internal.Prediction{{Position: 1, Identifier: "R1", Label: internal.LabelCompleted}}
	return predict.Result{BatchID: "B1", Format: internal.FormatCSV, Predictions: preds, Summary: review.Summarize(preds)}, nil
}

func write(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("No. Resi\nR1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSweep(t *testing.T) {
	inbox, out := t.TempDir(), t.TempDir()
	for _, dir := range []string{"processed", "failed"} {
		if err := os.MkdirAll(filepath.Join(inbox, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	write(t, filepath.Join(inbox, "orders june.csv"))
	write(t, filepath.Join(inbox, "broken.csv"))
	write(t, filepath.Join(inbox, "notes.txt"))
	write(t, filepath.Join(inbox, "~$orders.xlsx"))

	s := NewService(&fakePredictor{}, Options{Dir: inbox, OutputDir: out, AutoExport: true}, nil)
	n, err := s.Sweep()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("handled=%d", n)
	}
	if _, err := os.Stat(filepath.Join(inbox, "processed", "orders june.csv")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(inbox, "failed", "broken.csv.error.txt")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(out, "watch", "orders_june_B1.xlsx")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(inbox, "notes.txt")); err != nil {
		t.Fatal("ineligible file was moved")
	}
}

func TestMoveIntoKeepsExisting(t *testing.T) {
	dir, src := t.TempDir(), t.TempDir()
	write(t, filepath.Join(dir, "a.csv"))
	write(t, filepath.Join(src, "a.csv"))
	dest, err := moveInto(dir, filepath.Join(src, "a.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(dest) == "a.csv" {
		t.Fatalf("dest=%s", dest)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatal(err)
	}
}

func TestRunPicksUpNewFiles(t *testing.T) {
	inbox := filepath.Join(t.TempDir(), "inbox")
	fake := &fakePredictor{}
	s := NewService(fake, Options{Dir: inbox, Settle: 40 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(s.processedDir()); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("inbox not created")
		}
		time.Sleep(10 * time.Millisecond)
	}
	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	write(t, filepath.Join(inbox, "orders.csv"))

	processed := filepath.Join(s.processedDir(), "orders.csv")
	for {
		if _, err := os.Stat(processed); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("file not processed")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.seen) != 1 {
		t.Fatalf("seen=%v", fake.seen)
	}
}
