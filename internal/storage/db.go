package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"ordercancel/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS batches (
  id TEXT PRIMARY KEY,
  sourceName TEXT NOT NULL,
  format TEXT NOT NULL,
  artifactFingerprint TEXT NOT NULL,
  rowsIn INTEGER NOT NULL,
  rowsOut INTEGER NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_batches_createdAt ON batches(createdAt);

CREATE TABLE IF NOT EXISTS predictions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  batchId TEXT NOT NULL,
  position INTEGER NOT NULL,
  identifier TEXT NOT NULL,
  code INTEGER NOT NULL,
  label TEXT NOT NULL,
  UNIQUE(batchId, position),
  FOREIGN KEY(batchId) REFERENCES batches(id)
);

CREATE TABLE IF NOT EXISTS dropped_rows (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  batchId TEXT NOT NULL,
  rowNo INTEGER NOT NULL,
  identifier TEXT NOT NULL,
  reason TEXT NOT NULL,
  FOREIGN KEY(batchId) REFERENCES batches(id)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  batchId TEXT,
  status TEXT NOT NULL,
  error TEXT,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// SaveBatch stores a batch with all of its predictions and dropped rows in a
// single transaction.
func (d *DB) SaveBatch(batch internal.BatchRow, preds []internal.Prediction, dropped []internal.DroppedRow) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
INSERT INTO batches (id, sourceName, format, artifactFingerprint, rowsIn, rowsOut)
VALUES (?, ?, ?, ?, ?, ?)
`, batch.ID, batch.SourceName, batch.Format, batch.ArtifactFingerprint, batch.RowsIn, batch.RowsOut); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO predictions (batchId, position, identifier, code, label) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, p := range preds {
		if _, err := stmt.Exec(batch.ID, p.Position, p.Identifier, p.Code, string(p.Label)); err != nil {
			return err
		}
	}

	for _, r := range dropped {
		if _, err := tx.Exec(`INSERT INTO dropped_rows (batchId, rowNo, identifier, reason) VALUES (?, ?, ?, ?)`, batch.ID, r.Row, r.Identifier, r.Reason); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) GetBatch(id string) (*internal.BatchRow, error) {
	var row internal.BatchRow
	err := d.conn.QueryRow(`
SELECT id, sourceName, format, artifactFingerprint, rowsIn, rowsOut, createdAt
FROM batches WHERE id = ?
`, id).Scan(&row.ID, &row.SourceName, &row.Format, &row.ArtifactFingerprint, &row.RowsIn, &row.RowsOut, &row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) MustBatch(id string) (internal.BatchRow, error) {
	row, err := d.GetBatch(id)
	if err != nil {
		return internal.BatchRow{}, err
	}
	if row == nil {
		return internal.BatchRow{}, fmt.Errorf("batch not found: %s", id)
	}
	return *row, nil
}

// ListBatches returns the most recent batches first. Batch ids are ULIDs, so
// ordering by id breaks ties within the same second.
func (d *DB) ListBatches(limit int) ([]internal.BatchRow, error) {
	rows, err := d.conn.Query(`
SELECT id, sourceName, format, artifactFingerprint, rowsIn, rowsOut, createdAt
FROM batches ORDER BY createdAt DESC, id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.BatchRow
	for rows.Next() {
		var row internal.BatchRow
		if err := rows.Scan(&row.ID, &row.SourceName, &row.Format, &row.ArtifactFingerprint, &row.RowsIn, &row.RowsOut, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) GetPredictions(batchID string) ([]internal.Prediction, error) {
	rows, err := d.conn.Query(`
SELECT position, identifier, code, label
FROM predictions WHERE batchId = ? ORDER BY position ASC
`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Prediction
	for rows.Next() {
		var p internal.Prediction
		var label string
		if err := rows.Scan(&p.Position, &p.Identifier, &p.Code, &label); err != nil {
			return nil, err
		}
		p.Label = internal.Label(label)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) GetDroppedRows(batchID string) ([]internal.DroppedRow, error) {
	rows, err := d.conn.Query(`
SELECT rowNo, identifier, reason
FROM dropped_rows WHERE batchId = ? ORDER BY rowNo ASC
`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.DroppedRow
	for rows.Next() {
		var r internal.DroppedRow
		if err := rows.Scan(&r.Row, &r.Identifier, &r.Reason); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertRun records one prediction attempt, failed ones included. batchID is
// empty when the batch was rejected before it was stored.
func (d *DB) InsertRun(traceID, batchID, status, runErr string, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`
INSERT INTO runs (traceId, batchId, status, error, timingsJson, countsJson) VALUES (?, ?, ?, ?, ?, ?)
`, traceID, nullable(batchID), status, nullable(runErr), string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) CountRuns(status string) (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM runs WHERE status = ?`, status).Scan(&n)
	return n, err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
