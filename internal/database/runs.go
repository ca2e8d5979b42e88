package database

import (
	"database/sql"
)

const runColumns = `id, input_path, output_path, provider, started_at, finished_at, row_count, failed_count`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var r Run
	if err := row.Scan(&r.ID, &r.InputPath, &r.OutputPath, &r.Provider,
		&r.StartedAt, &r.FinishedAt, &r.RowCount, &r.FailedCount); err != nil {
		return nil, err
	}
	return &r, nil
}

// StartRun records the start of a pipeline run.
func (db *DB) StartRun(id, inputPath, outputPath, provider string) error {
	_, err := db.conn.Exec(
		`INSERT INTO runs (id, input_path, output_path, provider) VALUES (?, ?, ?, ?)`,
		id, inputPath, outputPath, provider,
	)
	return err
}

// FinishRun stamps the end of a run with its row counts.
func (db *DB) FinishRun(id string, rowCount, failedCount int) error {
	_, err := db.conn.Exec(
		`UPDATE runs SET finished_at = datetime('now'), row_count = ?, failed_count = ? WHERE id = ?`,
		rowCount, failedCount, id,
	)
	return err
}

// GetRun returns the run with the given id, or nil if there is none.
func (db *DB) GetRun(id string) (*Run, error) {
	r, err := scanRun(db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// GetLastRun returns the most recently started run, or nil if none exist.
func (db *DB) GetLastRun() (*Run, error) {
	r, err := scanRun(db.conn.QueryRow(
		`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// GetStats returns database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{ByGrade: make(map[string]int)}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM runs", &s.Runs},
		{"SELECT COUNT(*) FROM assessments", &s.Assessments},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	rows, err := db.conn.Query("SELECT grade, COUNT(*) FROM assessments GROUP BY grade")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var grade string
		var n int
		if err := rows.Scan(&grade, &n); err != nil {
			return nil, err
		}
		s.ByGrade[grade] = n
	}
	return s, rows.Err()
}
