package database

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr[T any](v T) *T { return &v }

func startTestRun(t *testing.T, db *DB, id string) {
	t.Helper()
	if err := db.StartRun(id, "in.csv", "out.csv", "openai:gpt-4"); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
}

func TestStartAndFinishRun(t *testing.T) {
	db := openTestDB(t)
	startTestRun(t, db, "run-1")

	run, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run == nil {
		t.Fatal("expected run")
	}
	if run.Finished() {
		t.Error("run should not be finished yet")
	}
	if run.Provider != "openai:gpt-4" || run.InputPath != "in.csv" {
		t.Errorf("unexpected run %+v", run)
	}

	if err := db.FinishRun("run-1", 10, 2); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	run, _ = db.GetRun("run-1")
	if !run.Finished() {
		t.Error("expected finished run")
	}
	if run.RowCount != 10 || run.FailedCount != 2 {
		t.Errorf("expected 10/2, got %d/%d", run.RowCount, run.FailedCount)
	}
}

func TestGetRunMissing(t *testing.T) {
	db := openTestDB(t)
	run, err := db.GetRun("nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run != nil {
		t.Errorf("expected nil, got %+v", run)
	}

	last, err := db.GetLastRun()
	if err != nil || last != nil {
		t.Errorf("expected no last run, got %+v, %v", last, err)
	}
}

func TestGetLastRun(t *testing.T) {
	db := openTestDB(t)
	startTestRun(t, db, "first")
	startTestRun(t, db, "second")

	last, err := db.GetLastRun()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last.ID != "second" {
		t.Errorf("expected second, got %s", last.ID)
	}
}

func TestAssessmentsForRun(t *testing.T) {
	db := openTestDB(t)
	startTestRun(t, db, "run-1")

	for _, a := range []Assessment{
		{RunID: "run-1", Line: 3, Route: "B", URL: "https://x/route/2/b", RouteID: ptr(int64(2)), Grade: "R", Reasoning: "Long runout", Source: "model"},
		{RunID: "run-1", Line: 2, Route: "A", URL: "https://x/route/1/a", RouteID: ptr(int64(1)), Grade: "PG13", Reasoning: "(Route description)", Source: "description"},
		{RunID: "run-1", Line: 4, Route: "C", URL: "bad", Grade: "UNKNOWN", Reasoning: "Processing failed: malformed route URL", Source: "failed"},
	} {
		if _, err := db.InsertAssessment(&a); err != nil {
			t.Fatalf("InsertAssessment: %v", err)
		}
	}

	got, err := db.GetAssessmentsForRun("run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 assessments, got %d", len(got))
	}
	if got[0].Route != "A" || got[2].Route != "C" {
		t.Errorf("expected input order, got %s..%s", got[0].Route, got[2].Route)
	}
	if got[2].RouteID != nil {
		t.Errorf("expected nil route id for failed row")
	}
	if got[1].Notes != nil {
		t.Errorf("expected nil notes")
	}
}

func TestInsertAssessmentRejectsBadGrade(t *testing.T) {
	db := openTestDB(t)
	startTestRun(t, db, "run-1")
	_, err := db.InsertAssessment(&Assessment{RunID: "run-1", Line: 2, Route: "A", URL: "u", Grade: "PG-13", Reasoning: "r", Source: "model"})
	if err == nil {
		t.Error("expected constraint error")
	}
}

func TestInsertAssessmentRequiresRun(t *testing.T) {
	db := openTestDB(t)
	_, err := db.InsertAssessment(&Assessment{RunID: "ghost", Line: 2, Route: "A", URL: "u", Grade: "G", Reasoning: "r", Source: "model"})
	if err == nil {
		t.Error("expected foreign key error")
	}
}

func TestRouteHistory(t *testing.T) {
	db := openTestDB(t)
	startTestRun(t, db, "r1")
	startTestRun(t, db, "r2")
	db.InsertAssessment(&Assessment{RunID: "r1", Line: 2, Route: "A", URL: "u", RouteID: ptr(int64(7)), Grade: "G", Reasoning: "old", Source: "model"})
	db.InsertAssessment(&Assessment{RunID: "r2", Line: 2, Route: "A", URL: "u", RouteID: ptr(int64(7)), Grade: "R", Reasoning: "new", Notes: ptr("bolts removed"), Source: "model"})

	history, err := db.GetRouteHistory(7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 || history[0].Reasoning != "new" {
		t.Fatalf("expected newest first, got %+v", history)
	}
	if history[0].Notes == nil || *history[0].Notes != "bolts removed" {
		t.Errorf("expected notes to round-trip")
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	startTestRun(t, db, "r1")
	db.InsertAssessment(&Assessment{RunID: "r1", Line: 2, Route: "A", URL: "u", Grade: "G", Reasoning: "r", Source: "model"})
	db.InsertAssessment(&Assessment{RunID: "r1", Line: 3, Route: "B", URL: "u", Grade: "G", Reasoning: "r", Source: "model"})
	db.InsertAssessment(&Assessment{RunID: "r1", Line: 4, Route: "C", URL: "u", Grade: "X", Reasoning: "r", Source: "lexical"})

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Runs != 1 || stats.Assessments != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.ByGrade["G"] != 2 || stats.ByGrade["X"] != 1 {
		t.Errorf("unexpected grade counts %v", stats.ByGrade)
	}
}
