package database

// Run is one invocation of the CSV pipeline.
type Run struct {
	ID          string
	InputPath   string
	OutputPath  string
	Provider    string
	StartedAt   *string
	FinishedAt  *string
	RowCount    int
	FailedCount int
}

// Finished reports whether the run completed, successfully or not.
func (r *Run) Finished() bool {
	return r.FinishedAt != nil
}

// Assessment is the final grade written for one input row.
type Assessment struct {
	ID         int64
	RunID      string
	Line       int
	Route      string
	URL        string
	RouteID    *int64
	Grade      string
	Reasoning  string
	Notes      *string
	Source     string // description, no_beta, lexical, model or failed
	AssessedAt *string
}

// Stats holds database statistics.
type Stats struct {
	Runs        int
	Assessments int
	ByGrade     map[string]int
}
