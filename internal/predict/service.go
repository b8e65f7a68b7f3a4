package predict

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"ordercancel/internal"
	"ordercancel/internal/ingest"
	"ordercancel/internal/model"
	"ordercancel/internal/pipeline"
	"ordercancel/internal/review"
	"ordercancel/internal/storage"
)

type Service struct {
	db          *storage.DB
	pipeline    *pipeline.Pipeline
	scaler      model.Scaler
	classifier  model.Classifier
	fingerprint string
	log         *slog.Logger
}

// NewService wires the fitted bundle into a pipeline. db may be nil, in which
// case results are returned but not stored.
func NewService(db *storage.DB, bundle *model.Bundle, cfg pipeline.Config, log *slog.Logger) (*Service, error) {
	if bundle == nil {
		return nil, errors.New("model bundle is required")
	}
	p, err := pipeline.New(cfg, bundle.Fitted)
	if err != nil {
		return nil, fmt.Errorf("model bundle does not fit the pipeline: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		db:          db,
		pipeline:    p,
		scaler:      bundle.Scaler,
		classifier:  bundle.Classifier,
		fingerprint: bundle.Fingerprint,
		log:         log,
	}, nil
}

type Result struct {
	BatchID     string                `json:"batch_id"`
	Format      internal.Format       `json:"format"`
	Predictions []internal.Prediction `json:"predictions"`
	Dropped     []internal.DroppedRow `json:"dropped,omitempty"`
	Summary     review.Summary        `json:"summary"`
}

func (s *Service) PredictFile(path string) (Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	return s.Predict(filepath.Base(path), content)
}

// Predict runs one upload end to end. A batch is stored only when every stage
// succeeds; a failed attempt leaves a run record and nothing else.
func (s *Service) Predict(name string, content []byte) (Result, error) {
	start := time.Now()
	traceID := ulid.Make().String()
	timings := map[string]float64{}
	lap := func(key string, since time.Time) { timings[key] = float64(time.Since(since).Milliseconds()) }

	fail := func(stage string, err error) (Result, error) {
		lap("totalMs", start)
		s.log.Warn("prediction failed", "trace_id", traceID, "file", name, "stage", stage, "err", err)
		if s.db != nil {
			if rerr := s.db.InsertRun(traceID, "", "failed", err.Error(), timings, map[string]int{"bytes": len(content)}); rerr != nil {
				s.log.Error("record run", "trace_id", traceID, "err", rerr)
			}
		}
		return Result{}, err
	}

	t := time.Now()
	table, format, err := ingest.ReadTable(name, content)
	if err != nil {
		return fail("ingest", err)
	}
	lap("ingestMs", t)

	t = time.Now()
	out, err := s.pipeline.Run(table)
	if err != nil {
		return fail("pipeline", err)
	}
	lap("pipelineMs", t)

	t = time.Now()
	preds, err := s.classify(out)
	if err != nil {
		return fail("model", err)
	}
	lap("modelMs", t)

	res := Result{
		BatchID:     ulid.Make().String(),
		Format:      format,
		Predictions: preds,
		Dropped:     out.Dropped,
		Summary:     review.Summarize(preds),
	}

	if s.db != nil {
		batch := internal.BatchRow{
			ID:                  res.BatchID,
			SourceName:          name,
			Format:              string(format),
			ArtifactFingerprint: s.fingerprint,
			RowsIn:              len(table.Rows),
			RowsOut:             len(preds),
		}
		if err := s.db.SaveBatch(batch, preds, out.Dropped); err != nil {
			return fail("storage", fmt.Errorf("save batch: %w", err))
		}
		lap("totalMs", start)
		counts := map[string]int{
			"rowsIn":    len(table.Rows),
			"rowsOut":   len(preds),
			"dropped":   len(out.Dropped),
			"completed": res.Summary.Completed,
			"canceled":  res.Summary.Canceled,
		}
		if err := s.db.InsertRun(traceID, res.BatchID, "ok", "", timings, counts); err != nil {
			s.log.Error("record run", "trace_id", traceID, "err", err)
		}
	}

	s.log.Info("batch predicted",
		"trace_id", traceID,
		"batch_id", res.BatchID,
		"file", name,
		"format", format,
		"rows", len(preds),
		"dropped", len(out.Dropped),
		"canceled", res.Summary.Canceled,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (s *Service) classify(out pipeline.Result) ([]internal.Prediction, error) {
	if len(out.Features) == 0 {
		return []internal.Prediction{}, nil
	}
	scaled, err := s.scaler.Transform(out.Features)
	if err != nil {
		return nil, fmt.Errorf("scale features: %w", err)
	}
	codes, err := s.classifier.Predict(scaled)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	if len(codes) != len(out.Identifiers) {
		return nil, fmt.Errorf("classifier returned %d labels for %d rows", len(codes), len(out.Identifiers))
	}

	preds := make([]internal.Prediction, len(codes))
	for i, code := range codes {
		label, err := internal.LabelForCode(code)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		preds[i] = internal.Prediction{Position: i + 1, Identifier: out.Identifiers[i], Code: code, Label: label}
	}
	return preds, nil
}
