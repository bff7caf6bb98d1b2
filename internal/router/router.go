// Package router selects the response strategy for a user query and
// extracts a structured search request from free-form text.
package router

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/travo-ai/travo/internal/genai"
	"github.com/travo-ai/travo/internal/log"
	"github.com/travo-ai/travo/internal/prompts"
)

// Strategy is the closed set of response strategies.
type Strategy int

const (
	// StrategyGreeting handles greetings and small talk. It is also
	// the fallback when classification fails for any reason.
	StrategyGreeting Strategy = iota

	// StrategyInfo answers travel questions, grounded on web search.
	StrategyInfo

	// StrategyPlanner drafts trip plans from concrete parameters.
	StrategyPlanner
)

// String returns the strategy's tool name.
func (s Strategy) String() string {
	switch s {
	case StrategyInfo:
		return "infoTool"
	case StrategyPlanner:
		return "tripPlannerTool"
	default:
		return "greetingTool"
	}
}

// Tool describes one registered strategy for introspection.
type Tool struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	IsParameter bool     `json:"isParameter"`
	Strategy    Strategy `json:"-"`
}

// Tools is the strategy registry, in classifier marker order.
var Tools = []Tool{
	{ID: 1, Name: "greetingTool", Description: "Handles greetings and casual small talk with the user.", Strategy: StrategyGreeting},
	{ID: 2, Name: "infoTool", Description: "Answers travel questions using up-to-date web information.", Strategy: StrategyInfo},
	{ID: 3, Name: "tripPlannerTool", Description: "Builds a day-by-day trip plan from the user's parameters.", Strategy: StrategyPlanner},
}

// Understanding is the structured form of a travel question used to
// drive web search.
type Understanding struct {
	Intent      string `json:"intent"`
	SearchQuery string `json:"search_query"`
}

// Generator is the slice of the model adapter the router needs.
type Generator interface {
	Complete(ctx context.Context, system string, msgs []*ai.Message, p genai.Params) (string, error)
}

// Router classifies queries and extracts search requests.
type Router struct {
	gen    Generator
	logger log.Logger
}

// New creates a Router.
func New(gen Generator, logger log.Logger) *Router {
	return &Router{gen: gen, logger: logger}
}

// Classifier and understanding generation parameters. Classification
// runs near-deterministic; understanding gets headroom to paraphrase.
var (
	classifyParams   = genai.Params{Temperature: 0.1, MaxTokens: 100}
	understandParams = genai.Params{Temperature: 0.7}
)

// Classify selects the strategy for a query. Never fails: a provider
// error, a missing marker or an unknown tool name all fall back to
// StrategyGreeting, which can answer anything safely.
func (r *Router) Classify(ctx context.Context, query string) Strategy {
	out, err := r.gen.Complete(ctx, prompts.ToolSelection,
		[]*ai.Message{ai.NewUserMessage(ai.NewTextPart(query))}, classifyParams)
	if err != nil {
		r.logger.Warn("classification failed, defaulting to greeting", "error", err)
		return StrategyGreeting
	}

	strategy, ok := parseMarker(out)
	if !ok {
		r.logger.Warn("classifier produced no recognizable marker, defaulting to greeting",
			"output", out)
		return StrategyGreeting
	}
	return strategy
}

// parseMarker finds a **<TOOL:name>** marker in the classifier output.
// Exact match is tried first, then a case-insensitive pass.
func parseMarker(out string) (Strategy, bool) {
	for _, tool := range Tools {
		if strings.Contains(out, "**<TOOL:"+tool.Name+">**") {
			return tool.Strategy, true
		}
	}
	lower := strings.ToLower(out)
	for _, tool := range Tools {
		if strings.Contains(lower, strings.ToLower("**<TOOL:"+tool.Name+">**")) {
			return tool.Strategy, true
		}
	}
	return StrategyGreeting, false
}

// Understand turns a travel question into a search request. Degrades
// instead of failing: on provider error or unparseable output the raw
// query itself becomes the search query.
func (r *Router) Understand(ctx context.Context, query string) Understanding {
	fallback := Understanding{Intent: "travel info", SearchQuery: query}

	out, err := r.gen.Complete(ctx, prompts.UnderstandQuery,
		[]*ai.Message{ai.NewUserMessage(ai.NewTextPart(query))}, understandParams)
	if err != nil {
		r.logger.Warn("query understanding failed, searching with raw query", "error", err)
		return fallback
	}

	u, err := parseUnderstanding(out)
	if err != nil {
		r.logger.Warn("query understanding unparseable, searching with raw query",
			"output", out, "error", err)
		return fallback
	}
	if u.SearchQuery == "" {
		u.SearchQuery = query
	}
	if u.Intent == "" {
		u.Intent = fallback.Intent
	}
	return u
}

// parseUnderstanding extracts the JSON object from model output,
// tolerating markdown fences and surrounding prose.
func parseUnderstanding(out string) (Understanding, error) {
	var u Understanding

	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start == -1 || end <= start {
		return u, json.Unmarshal([]byte(out), &u)
	}

	if err := json.Unmarshal([]byte(out[start:end+1]), &u); err != nil {
		return Understanding{}, err
	}
	return u, nil
}
