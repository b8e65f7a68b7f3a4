package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"ordercancel/internal"
	"ordercancel/internal/predict"
	"ordercancel/internal/review"
)

type Predictor interface {
	PredictFile(path string) (predict.Result, error)
}

type Options struct {
	Dir        string
	OutputDir  string
	Settle     time.Duration
	AutoExport bool
}

// Service watches an inbox directory for marketplace exports. Each file is
// predicted once, then moved to processed/ or failed/ next to the inbox.
type Service struct {
	predictor Predictor
	opts      Options
	log       *slog.Logger
}

func NewService(predictor Predictor, opts Options, log *slog.Logger) *Service {
	if opts.Settle <= 0 {
		opts.Settle = 500 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{predictor: predictor, opts: opts, log: log}
}

func (s *Service) processedDir() string { return filepath.Join(s.opts.Dir, "processed") }
func (s *Service) failedDir() string { return filepath.Join(s.opts.Dir, "failed") }

func (s *Service) Run(ctx context.Context) error {
	for _, dir := range []string{s.opts.Dir, s.processedDir(), s.failedDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(s.opts.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.opts.Dir, err)
	}
	s.log.Info("watching inbox", "dir", s.opts.Dir)

	// files already waiting were dropped while nobody was watching
	if _, err := s.Sweep(); err != nil {
		s.log.Error("inbox sweep", "err", err)
	}

	// A file is picked up once it has seen no writes for the settle time, so
	// half-copied uploads are not read.
	pending := map[string]time.Time{}
	tick := time.NewTicker(s.opts.Settle / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				if eligible(event.Name) {
					pending[event.Name] = time.Now()
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Error("inbox watcher", "err", err)
		case now := <-tick.C:
			for path, last := range pending {
				if now.Sub(last) < s.opts.Settle {
					continue
				}
				delete(pending, path)
				if _, err := os.Stat(path); err != nil {
					continue
				}
				s.Process(path)
			}
		}
	}
}

// Sweep processes every eligible file currently in the inbox and returns how
// many it handled.
func (s *Service) Sweep() (int, error) {
	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(s.opts.Dir, e.Name())
		if !eligible(path) {
			continue
		}
		s.Process(path)
		n++
	}
	return n, nil
}

// Process predicts one file and files it away. Failures are logged and the
// file lands in failed/ with the reason next to it.
func (s *Service) Process(path string) {
	name := filepath.Base(path)
	res, err := s.predictor.PredictFile(path)
	if err != nil {
		s.log.Warn("inbox file rejected", "file", name, "kind", internal.ErrorKind(err), "err", err)
		if dest, merr := moveInto(s.failedDir(), path); merr != nil {
			s.log.Error("move failed upload", "file", name, "err", merr)
		} else {
			_ = os.WriteFile(dest+".error.txt", []byte(err.Error()+"\n"), 0o644)
		}
		return
	}

	if s.opts.AutoExport {
		out := filepath.Join(s.opts.OutputDir, "watch", fmt.Sprintf("%s_%s.xlsx", sanitizeName(strings.TrimSuffix(name, filepath.Ext(name))), res.BatchID))
		batch := internal.BatchRow{ID: res.BatchID, SourceName: name, Format: string(res.Format)}
		if err := review.ExportPredictionsToXLSX(batch, res.Predictions, res.Dropped, out); err != nil {
			s.log.Error("auto export", "file", name, "batch_id", res.BatchID, "err", err)
		}
	}
	if _, err := moveInto(s.processedDir(), path); err != nil {
		s.log.Error("move processed upload", "file", name, "err", err)
	}
}

func moveInto(dir, path string) (string, error) {
	dest := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(dest); err == nil {
		dest = filepath.Join(dir, time.Now().Format("20060102T150405.000")+"_"+filepath.Base(path))
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	return dest, os.Rename(path, dest)
}

func eligible(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".csv", ".xls", ".xlsx":
		return true
	}
	return false
}

func sanitizeName(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
