package beta

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/RouteFinder/internal/fetch"
	"github.com/TobiSchelling/RouteFinder/internal/grade"
	"github.com/TobiSchelling/RouteFinder/internal/route"
)

type fakeSource struct {
	desc     Description
	comments []string
	ticks    []string
	err      error
	failOn   string
	calls    []string
}

func (f *fakeSource) Description(_ context.Context, _ int64) (Description, error) {
	f.calls = append(f.calls, "description")
	if f.failOn == "description" {
		return Description{}, f.err
	}
	return f.desc, nil
}

func (f *fakeSource) Comments(_ context.Context, _ int64) ([]string, error) {
	f.calls = append(f.calls, "comments")
	if f.failOn == "comments" {
		return nil, f.err
	}
	return f.comments, nil
}

func (f *fakeSource) Ticks(_ context.Context, _ int64) ([]string, error) {
	f.calls = append(f.calls, "ticks")
	if f.failOn == "ticks" {
		return nil, f.err
	}
	return f.ticks, nil
}

func TestAggregateNormalizes(t *testing.T) {
	src := &fakeSource{
		desc:     Description{Text: "  Classic   dike climb.\n", Rating: grade.R},
		comments: []string{" old comment ", "", "newer &amp; better"},
		ticks:    []string{"· 6 pitches · Lead.", "· 6 pitches · Lead. Great exposure."},
	}
	rec, err := NewAggregator(src, nil).Aggregate(context.Background(), route.Ref{ID: 1, Slug: "x"})
	require.NoError(t, err)

	assert.Equal(t, []string{"description", "comments", "ticks"}, src.calls)
	assert.Equal(t, grade.R, rec.MaturityRating)
	assert.True(t, rec.HasRating())
	assert.Equal(t, "Classic dike climb.", rec.Description)
	assert.Equal(t, []string{"old comment", "newer & better"}, rec.Comments)
	assert.Equal(t, []string{"Great exposure."}, rec.Ticks)
	assert.False(t, rec.Empty())
	assert.Equal(t, []string{"Classic dike climb.", "old comment", "newer & better", "Great exposure."}, rec.Fragments())
}

func TestAggregatePropagatesFailures(t *testing.T) {
	for _, stage := range []string{"description", "comments", "ticks"} {
		t.Run(stage, func(t *testing.T) {
			src := &fakeSource{failOn: stage, err: &fetch.StatusError{URL: "u", Code: 503}}
			_, err := NewAggregator(src, nil).Aggregate(context.Background(), route.Ref{ID: 9})
			require.Error(t, err)
			assert.True(t, errors.Is(err, fetch.ErrFetchFailure))
			assert.Contains(t, err.Error(), "route 9 "+stage)
		})
	}
}

func TestEmptyRecord(t *testing.T) {
	rec, err := NewAggregator(&fakeSource{}, nil).Aggregate(context.Background(), route.Ref{ID: 2})
	require.NoError(t, err)
	assert.True(t, rec.Empty())
	assert.False(t, rec.HasRating())
	assert.Empty(t, rec.Fragments())
}
