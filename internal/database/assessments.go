package database

const assessmentColumns = `id, run_id, line, route, url, route_id, grade, reasoning, notes, source, assessed_at`

// InsertAssessment records the final grade of one output row.
func (db *DB) InsertAssessment(a *Assessment) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO assessments
		(run_id, line, route, url, route_id, grade, reasoning, notes, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RunID, a.Line, a.Route, a.URL, a.RouteID, a.Grade, a.Reasoning, a.Notes, a.Source,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetAssessmentsForRun returns the assessments of a run in input order.
func (db *DB) GetAssessmentsForRun(runID string) ([]Assessment, error) {
	return db.queryAssessments(
		`SELECT `+assessmentColumns+` FROM assessments WHERE run_id = ? ORDER BY line`, runID)
}

// GetRouteHistory returns every assessment recorded for a route, newest first.
func (db *DB) GetRouteHistory(routeID int64) ([]Assessment, error) {
	return db.queryAssessments(
		`SELECT `+assessmentColumns+` FROM assessments WHERE route_id = ? ORDER BY id DESC`, routeID)
}

func (db *DB) queryAssessments(query string, args ...any) ([]Assessment, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assessment
	for rows.Next() {
		var a Assessment
		if err := rows.Scan(&a.ID, &a.RunID, &a.Line, &a.Route, &a.URL, &a.RouteID,
			&a.Grade, &a.Reasoning, &a.Notes, &a.Source, &a.AssessedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
