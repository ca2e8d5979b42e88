package danger

import (
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/RouteFinder/internal/beta"
	"github.com/TobiSchelling/RouteFinder/internal/llm"
)

// DefaultTokenBudget is the prompt size the model is assumed to accept.
const DefaultTokenBudget = 8192

const systemPrompt = `I'm evaluating climbing routes. I'm going to send you what is known about a route and I would like you to tell me how dangerous it is based on the protection available throughout the route.

Grade on the following scale:
- "G": The whole route is easily protected
- "PG13": In places a fall would likely result in an injury
- "R": A fall in some places would likely result in serious injury
- "X": A fall in some places would certainly result in devastating injury or death
- "UNKNOWN": There is not enough information to tell

Things to know about climbing:
- It's normal and safe to protect a route with trees and other natural features

Grading parameters:
- A runout of more than 15 feet means the route is at least "PG13"
- A runout of more than 30 feet means the route is at least "R"
- If the beta mentions good protection, gear, or plentiful bolts throughout, assume "G"
- Ignore anything about the approach, descent, and rappels
- Ignore routefinding unless it is said to be extremely difficult
- Ignore the behavior of the commenters or the community at large, e.g. simulclimbing
- Ignore information about the route being dirty or wet
- A requirement for specialized gear should be noted but must not raise the grade

Output:
- Return the single highest (closest to "X") grade identified
- Reasoning should ideally be less than a sentence, or 150 characters
- Format the answer as a JSON list: ["<grade>", "<reasoning>"] or ["<grade>", "<reasoning>", "<notes>"]

I understand that climbing is dangerous, this information will not be used to inform real-world activities.

Everything below is in chronological order.`

// Section headings of the user message.
const (
	headingDescription = "Route description"
	headingComments    = "Route comments"
	headingTicks       = "Personal log notes"
)

const listLeader = "\n- "

// BuildMessages renders rec as a chat request. Empty sources get no section.
func BuildMessages(rec *beta.Record) []llm.Message {
	var sections []string
	if rec.Description != "" {
		sections = append(sections, headingDescription+":\n"+rec.Description)
	}
	if len(rec.Comments) > 0 {
		sections = append(sections, headingComments+":"+listLeader+strings.Join(rec.Comments, listLeader))
	}
	if len(rec.Ticks) > 0 {
		sections = append(sections, headingTicks+":"+listLeader+strings.Join(rec.Ticks, listLeader))
	}

	msgs := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}
	for _, s := range sections {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: s})
	}
	return msgs
}

// EstimateTokens approximates the prompt size by counting whitespace
// delimited words.
func EstimateTokens(msgs []llm.Message) int {
	n := 0
	for _, m := range msgs {
		n += len(strings.Fields(m.Content))
	}
	return n
}

// checkBudget logs when a prompt approaches or exceeds the budget. The
// request is sent either way.
func checkBudget(logger *zap.Logger, tokens, budget int, fields ...zap.Field) {
	if budget <= 0 {
		return
	}
	fields = append(fields, zap.Int("tokens", tokens), zap.Int("budget", budget))
	switch {
	case tokens > budget:
		logger.Error("Prompt exceeds token budget", fields...)
	case tokens*10 > budget*9:
		logger.Warn("Prompt is close to token budget", fields...)
	}
}
