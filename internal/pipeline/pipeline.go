// Package pipeline merges danger grades into a route export, one row at a
// time: resolve, aggregate, decide, classify, emit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/RouteFinder/internal/beta"
	"github.com/TobiSchelling/RouteFinder/internal/danger"
	"github.com/TobiSchelling/RouteFinder/internal/database"
	"github.com/TobiSchelling/RouteFinder/internal/fetch"
	"github.com/TobiSchelling/RouteFinder/internal/grade"
	"github.com/TobiSchelling/RouteFinder/internal/route"
	"github.com/TobiSchelling/RouteFinder/internal/tabular"
)

// Policy decides what a row failure does to the run.
type Policy string

const (
	// Abort stops the run at the first failing row.
	Abort Policy = "abort"
	// Skip logs the failure and writes an UNKNOWN row in its place.
	Skip Policy = "skip"
)

// ParsePolicy validates a policy name. The empty string means Abort.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", Abort:
		return Abort, nil
	case Skip:
		return Skip, nil
	}
	return "", fmt.Errorf("unknown row error policy %q (want abort or skip)", s)
}

// Recorder persists final assessments.
type Recorder interface {
	InsertAssessment(a *database.Assessment) (int64, error)
}

// Options tunes a pipeline run.
type Options struct {
	Workers    int
	OnRowError Policy
	// RunID and Recorder enable the run ledger; both must be set.
	RunID    string
	Recorder Recorder
}

// Result holds the results of a full pipeline run.
type Result struct {
	Rows   int
	Failed int
	Kinds  map[danger.Kind]int
	Grades map[grade.Grade]int
}

// Assessment is the classification of a single route.
type Assessment struct {
	Ref    route.Ref
	Record *beta.Record
	Kind   danger.Kind
	Result danger.Result
}

// Pipeline grades the routes of an export.
type Pipeline struct {
	resolver   *route.Resolver
	aggregator *beta.Aggregator
	model      *danger.ModelClassifier
	lexical    danger.LexicalClassifier
	opts       Options
	log        *zap.Logger
}

// New creates a pipeline. A nil model selects the lexical classifier for
// every route that needs one.
func New(resolver *route.Resolver, aggregator *beta.Aggregator, model *danger.ModelClassifier, opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.OnRowError == "" {
		opts.OnRowError = Abort
	}
	return &Pipeline{
		resolver:   resolver,
		aggregator: aggregator,
		model:      model,
		opts:       opts,
		log:        logger,
	}
}

// stageError tags a failure with the step that produced it.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// failureKind names a row failure for the reasoning column.
func failureKind(err error) string {
	var se *stageError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, route.ErrMalformedRouteURL):
		return "malformed route URL"
	case errors.Is(err, fetch.ErrFetchFailure):
		return "fetch failure"
	case errors.As(err, &se):
		return se.stage + " error"
	}
	return "error"
}

// Assess resolves, aggregates and classifies the route at url.
func (p *Pipeline) Assess(ctx context.Context, url string) (*Assessment, error) {
	ref, err := p.resolver.Resolve(url)
	if err != nil {
		return nil, &stageError{"resolve", err}
	}

	rec, err := p.aggregator.Aggregate(ctx, ref)
	if err != nil {
		return nil, &stageError{"aggregate", err}
	}

	a := &Assessment{Ref: ref, Record: rec}
	d := danger.Decide(rec, p.model != nil)
	a.Kind = d.Kind

	switch d.Kind {
	case danger.DescriptionRating, danger.NoBeta:
		a.Result = d.Result
	case danger.LexicalOnly:
		a.Result = p.lexical.Classify(rec)
	case danger.ModelRequired:
		res, err := p.model.Classify(ctx, rec)
		if errors.Is(err, danger.ErrClassifierUnavailable) {
			res = danger.Unavailable()
		} else if err != nil {
			return nil, &stageError{"classify", err}
		}
		a.Result = res
	}
	return a, nil
}

type outcome struct {
	row        tabular.Row
	assessment *Assessment
	err        error
	done       bool
}

// Run reads the export from in and writes the graded export to out. Rows
// come out in input order, one per input row.
func (p *Pipeline) Run(ctx context.Context, in io.Reader, out io.Writer) (*Result, error) {
	reader := tabular.NewReader(in)
	header, err := reader.Header()
	if err != nil {
		return nil, err
	}

	w := tabular.NewWriter(out)
	if err := w.Write(tabular.OutputHeader(header)); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	r := &Result{Kinds: make(map[danger.Kind]int), Grades: make(map[grade.Grade]int)}
	if p.opts.Workers > 1 {
		err = p.runConcurrent(ctx, reader, w, r)
	} else {
		err = p.runSequential(ctx, reader, w, r)
	}
	p.log.Info("Run finished",
		zap.Int("rows", r.Rows),
		zap.Int("failed", r.Failed),
		zap.Int("routes", p.resolver.Len()),
		zap.Bool("complete", err == nil))
	return r, err
}

func (p *Pipeline) runSequential(ctx context.Context, reader *tabular.Reader, w *tabular.Writer, r *Result) error {
	for {
		row, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		o := p.process(ctx, row)
		// A row cut short by cancellation is not written.
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.emit(w, o, r); err != nil {
			return err
		}
	}
}

// runConcurrent processes rows with a bounded errgroup and writes them in
// input order once all have finished. In abort mode the first failure
// cancels the rest and only the rows before it are written.
func (p *Pipeline) runConcurrent(ctx context.Context, reader *tabular.Reader, w *tabular.Writer, r *Result) error {
	rows, err := reader.All()
	if err != nil {
		return err
	}

	outcomes := make([]outcome, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, row := range rows {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			outcomes[i] = p.process(gctx, row)
			if outcomes[i].err != nil && p.opts.OnRowError == Abort {
				p.log.Error("Row failed", zap.Int("row", row.Line), zap.String("route", row.Route()), zap.Error(outcomes[i].err))
				return rowError(outcomes[i])
			}
			return nil
		})
	}
	groupErr := g.Wait()
	if groupErr == nil {
		groupErr = ctx.Err()
	}

	for _, o := range outcomes {
		if !o.done || (o.err != nil && groupErr != nil) {
			break
		}
		if err := p.emit(w, o, r); err != nil {
			return err
		}
	}
	return groupErr
}

func (p *Pipeline) process(ctx context.Context, row tabular.Row) outcome {
	a, err := p.Assess(ctx, row.URL())
	return outcome{row: row, assessment: a, err: err, done: true}
}

func rowError(o outcome) error {
	return fmt.Errorf("row %d (%s): %w", o.row.Line, o.row.Route(), o.err)
}

// emit applies the row error policy, writes the row and records it.
func (p *Pipeline) emit(w *tabular.Writer, o outcome, r *Result) error {
	fields := []zap.Field{zap.Int("row", o.row.Line), zap.String("route", o.row.Route())}

	var res danger.Result
	source := "failed"
	if o.err != nil {
		p.log.Error("Row failed", append(fields, zap.String("url", o.row.URL()), zap.Error(o.err))...)
		if p.opts.OnRowError == Abort {
			return rowError(o)
		}
		res = danger.Result{Grade: grade.Unknown, Reasoning: "Processing failed: " + failureKind(o.err)}
		r.Failed++
	} else {
		res = o.assessment.Result
		source = o.assessment.Kind.String()
		r.Kinds[o.assessment.Kind]++
		fields = append(fields, zap.Int64("route_id", o.assessment.Ref.ID))
	}

	if err := w.Write(tabular.Insert(o.row.Fields, res.Grade.String(), res.Reasoning)); err != nil {
		return fmt.Errorf("writing row %d: %w", o.row.Line, err)
	}
	r.Rows++
	r.Grades[res.Grade]++
	p.log.Info("Wrote row", append(fields, zap.Stringer("grade", res.Grade), zap.String("source", source))...)

	p.record(o, res, source)
	return nil
}

// record writes the ledger entry for a row. Ledger failures are logged and
// never fail the run.
func (p *Pipeline) record(o outcome, res danger.Result, source string) {
	if p.opts.Recorder == nil || p.opts.RunID == "" {
		return
	}
	a := &database.Assessment{
		RunID:     p.opts.RunID,
		Line:      o.row.Line,
		Route:     o.row.Route(),
		URL:       o.row.URL(),
		Grade:     res.Grade.String(),
		Reasoning: res.Reasoning,
		Source:    source,
	}
	if o.assessment != nil {
		id := o.assessment.Ref.ID
		a.RouteID = &id
	}
	if res.Notes != "" {
		notes := res.Notes
		a.Notes = &notes
	}
	if _, err := p.opts.Recorder.InsertAssessment(a); err != nil {
		p.log.Warn("Recording assessment failed", zap.Int("row", o.row.Line), zap.Error(err))
	}
}
