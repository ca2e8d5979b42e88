package danger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/RouteFinder/internal/beta"
	"github.com/TobiSchelling/RouteFinder/internal/grade"
	"github.com/TobiSchelling/RouteFinder/internal/llm"
)

// ModelClassifier grades a route by asking a language model.
type ModelClassifier struct {
	provider  llm.Provider
	logger    *zap.Logger
	maxTokens int
	budget    int
}

// NewModelClassifier creates a classifier. maxTokens caps the reply and
// budget the prompt; zero values select the defaults.
func NewModelClassifier(provider llm.Provider, maxTokens, budget int, logger *zap.Logger) *ModelClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxTokens <= 0 {
		maxTokens = 300
	}
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	return &ModelClassifier{provider: provider, logger: logger, maxTokens: maxTokens, budget: budget}
}

// Classify sends rec to the model and parses its answer. A reply with no
// choices returns ErrClassifierUnavailable; transport errors are returned
// as is.
func (c *ModelClassifier) Classify(ctx context.Context, rec *beta.Record) (Result, error) {
	msgs := BuildMessages(rec)
	checkBudget(c.logger, EstimateTokens(msgs), c.budget)

	text, err := c.provider.Complete(ctx, msgs, c.maxTokens)
	if errors.Is(err, llm.ErrNoChoices) {
		c.logger.Error("No choices from model", zap.String("provider", c.provider.Name()))
		return Result{}, ErrClassifierUnavailable
	}
	if err != nil {
		return Result{}, fmt.Errorf("classifying with %s: %w", c.provider.Name(), err)
	}

	res := ParseResult(text)
	if res.Reasoning == ReasonUnparsable {
		c.logger.Error("Invalid model response", zap.String("response", text))
	}

	if lex := Lexical(rec.Fragments()); lex > res.Grade {
		c.logger.Warn("Lexical grade is more severe than model grade",
			zap.Stringer("lexical", lex), zap.Stringer("grade", res.Grade))
	}
	return res, nil
}

// ParseResult decodes a model answer of the form [grade, reasoning] or
// [grade, reasoning, notes]. Anything else yields an Unknown result with
// ReasonUnparsable.
func ParseResult(text string) Result {
	unparsable := Result{Grade: grade.Unknown, Reasoning: ReasonUnparsable}

	var items []any
	if err := llm.DecodeJSON(text, &items); err != nil {
		return unparsable
	}
	if len(items) < 2 || len(items) > 3 {
		return unparsable
	}
	fields := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return unparsable
		}
		fields[i] = s
	}

	res := Result{Reasoning: strings.TrimSpace(fields[1])}
	if len(fields) == 3 {
		res.Notes = strings.TrimSpace(fields[2])
	}
	if res.Reasoning == "" {
		res.Reasoning = ReasonNoReasoning
		res.addNote("model returned an empty reasoning")
	}
	g, ok := grade.Parse(fields[0])
	if !ok {
		res.addNote(fmt.Sprintf("model returned unknown grade %q", fields[0]))
	}
	res.Grade = g
	return res
}

func (r *Result) addNote(note string) {
	if r.Notes != "" {
		note = r.Notes + "; " + note
	}
	r.Notes = note
}
