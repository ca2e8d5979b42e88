// Package beta assembles the description, comments and ticks of a route
// into a single record for classification.
package beta

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/TobiSchelling/RouteFinder/internal/grade"
	"github.com/TobiSchelling/RouteFinder/internal/normalize"
	"github.com/TobiSchelling/RouteFinder/internal/route"
)

// Description is the route page text plus the maturity rating some pages
// print next to the route grade.
type Description struct {
	Text   string
	Rating grade.Grade
}

// Source reads the three raw beta feeds for a route.
type Source interface {
	Description(ctx context.Context, routeID int64) (Description, error)
	Comments(ctx context.Context, routeID int64) ([]string, error)
	Ticks(ctx context.Context, routeID int64) ([]string, error)
}

// Record is the aggregated beta for one route. Comments and ticks are in
// chronological order.
type Record struct {
	MaturityRating grade.Grade
	Description    string
	Comments       []string
	Ticks          []string
}

// HasRating reports whether the route page published its own rating.
func (r *Record) HasRating() bool {
	return r.MaturityRating.Known()
}

// Empty reports whether there are no comments and no ticks.
func (r *Record) Empty() bool {
	return len(r.Comments) == 0 && len(r.Ticks) == 0
}

// Fragments returns description, comments and ticks as one list.
func (r *Record) Fragments() []string {
	out := make([]string, 0, 1+len(r.Comments)+len(r.Ticks))
	if r.Description != "" {
		out = append(out, r.Description)
	}
	out = append(out, r.Comments...)
	return append(out, r.Ticks...)
}

// Aggregator builds Records from a Source.
type Aggregator struct {
	source Source
	log    *zap.Logger
}

// NewAggregator creates a new beta aggregator.
func NewAggregator(source Source, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{source: source, log: logger}
}

// Aggregate fetches and normalizes the beta for ref. Any read failure is
// returned as is; nothing is retried.
func (a *Aggregator) Aggregate(ctx context.Context, ref route.Ref) (*Record, error) {
	desc, err := a.source.Description(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("route %d description: %w", ref.ID, err)
	}

	rawComments, err := a.source.Comments(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("route %d comments: %w", ref.ID, err)
	}

	rawTicks, err := a.source.Ticks(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("route %d ticks: %w", ref.ID, err)
	}

	rec := &Record{
		MaturityRating: desc.Rating,
		Description:    normalize.Comment(desc.Text),
		Comments:       normalize.Comments(rawComments),
		Ticks:          normalize.Ticks(rawTicks),
	}
	a.log.Debug("Aggregated beta",
		zap.Int64("route_id", ref.ID),
		zap.String("rating", rec.MaturityRating.String()),
		zap.Int("comments", len(rec.Comments)),
		zap.Int("ticks", len(rec.Ticks)),
		zap.Int("dropped_ticks", len(rawTicks)-len(rec.Ticks)))
	return rec, nil
}
