// Package chat orchestrates the response pipeline: persist the user
// turn, pick a strategy, gather web context, stream the answer and
// persist the assistant turn.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/travo-ai/travo/internal/genai"
	"github.com/travo-ai/travo/internal/log"
	"github.com/travo-ai/travo/internal/prompts"
	"github.com/travo-ai/travo/internal/router"
	"github.com/travo-ai/travo/internal/store"
	"github.com/travo-ai/travo/internal/websearch"
)

// clientErrorMessage is the only error detail the stream ever carries.
const clientErrorMessage = "An error occurred while processing your request"

// Hardcoded last-tier fallbacks, sent when both streamed and
// single-shot generation come back empty.
const (
	greetingFallback = "Hi! I'm Travo, your travel assistant. What kind of trip are you thinking about?"
	infoFallback     = "Sorry, I couldn't find helpful travel info. Please try again."
	plannerFallback  = "Sorry, I couldn't draft a plan. Please try again."
	enhanceFallback  = "Sorry, I couldn't enhance the query. Please try again."
)

// Per-stage generation parameters.
var (
	greetingParams = genai.Params{Temperature: 0.2, MaxTokens: 1000}
	infoParams     = genai.Params{Temperature: 0.3}
	plannerParams  = genai.Params{Temperature: 0.35}
	enhanceParams  = genai.Params{Temperature: 0.1, MaxTokens: 500}
)

// Generator is the slice of the model adapter the pipeline needs.
type Generator interface {
	Complete(ctx context.Context, system string, msgs []*ai.Message, p genai.Params) (string, error)
	Stream(ctx context.Context, system string, msgs []*ai.Message, p genai.Params, fn genai.StreamFunc) (string, error)
}

// Classifier selects a strategy and extracts search requests.
type Classifier interface {
	Classify(ctx context.Context, query string) router.Strategy
	Understand(ctx context.Context, query string) router.Understanding
}

// Searcher returns web results, empty on any failure.
type Searcher interface {
	Search(ctx context.Context, query string, max int) []websearch.Result
}

// MessageStore persists conversation turns.
type MessageStore interface {
	Append(ctx context.Context, userID uuid.UUID, role store.Role, text string, searchData json.RawMessage) (*store.Message, error)
	ListRecent(ctx context.Context, userID uuid.UUID, limit int, exclude uuid.UUID) ([]store.Message, error)
}

// Pipeline runs one response per call. Safe for concurrent use.
type Pipeline struct {
	gen        Generator
	classifier Classifier
	search     Searcher
	msgs       MessageStore
	logger     log.Logger

	historyLimit int
	searchTopK   int
}

// Config bounds the pipeline's context gathering.
type Config struct {
	HistoryLimit int
	SearchTopK   int
}

// New creates a Pipeline.
func New(gen Generator, classifier Classifier, search Searcher, msgs MessageStore, cfg Config, logger log.Logger) *Pipeline {
	return &Pipeline{
		gen:          gen,
		classifier:   classifier,
		search:       search,
		msgs:         msgs,
		logger:       logger,
		historyLimit: cfg.HistoryLimit,
		searchTopK:   cfg.SearchTopK,
	}
}

// Exchange is the pre-stream state of one response: the persisted user
// turn and the strategy chosen for it. Built by Prepare, consumed by
// Respond.
type Exchange struct {
	UserID   uuid.UUID
	Query    string
	Strategy router.Strategy

	userMsg *store.Message
}

// Prepare persists the user turn and classifies the query. It runs
// before the response stream opens, so a store failure surfaces as a
// plain error and the caller can still answer with ordinary JSON.
func (p *Pipeline) Prepare(ctx context.Context, userID uuid.UUID, query string) (*Exchange, error) {
	userMsg, err := p.msgs.Append(ctx, userID, store.RoleUser, query, nil)
	if err != nil {
		return nil, fmt.Errorf("persisting user turn: %w", err)
	}
	return &Exchange{
		UserID:   userID,
		Query:    query,
		Strategy: p.classifier.Classify(ctx, query),
		userMsg:  userMsg,
	}, nil
}

// Respond streams the response for a prepared exchange, writing events
// to sw. A canceled ctx (client disconnect) aborts generation; partial
// text is discarded, not persisted.
func (p *Pipeline) Respond(ctx context.Context, sw *StreamWriter, ex *Exchange) error {
	// The just-persisted user turn is excluded; it goes to the model
	// as the current query, not as history.
	history, err := p.msgs.ListRecent(ctx, ex.UserID, p.historyLimit, ex.userMsg.ID)
	if err != nil {
		p.logger.Warn("history load failed, responding without context",
			"user_id", ex.UserID, "error", err)
		history = nil
	}
	msgs := toModelMessages(history, ex.Query)

	switch ex.Strategy {
	case router.StrategyInfo:
		return p.respondGrounded(ctx, sw, ex, msgs, groundedStage{
			system:    prompts.Info,
			params:    infoParams,
			fragEvent: EventInfo,
			doneEvent: EventPlanner,
			fallback:  infoFallback,
		})
	case router.StrategyPlanner:
		return p.respondGrounded(ctx, sw, ex, msgs, groundedStage{
			system:    prompts.TripPlanner,
			params:    plannerParams,
			fragEvent: EventPlanner,
			doneEvent: EventInfo,
			fallback:  plannerFallback,
		})
	default:
		return p.respondGreeting(ctx, sw, ex.UserID, msgs)
	}
}

// EnhanceQuery streams an enriched rewrite of the query. Nothing is
// persisted; enhancement is a stateless assist.
func (p *Pipeline) EnhanceQuery(ctx context.Context, sw *StreamWriter, query string) error {
	msgs := []*ai.Message{ai.NewUserMessage(ai.NewTextPart(query))}
	_, err := p.streamText(ctx, sw, prompts.EnhanceQuery, msgs, enhanceParams, EventQueryCompletion, enhanceFallback)
	return err
}

func (p *Pipeline) respondGreeting(ctx context.Context, sw *StreamWriter, userID uuid.UUID, msgs []*ai.Message) error {
	text, err := p.streamText(ctx, sw, prompts.Greeting, msgs, greetingParams, EventQueryCompletion, greetingFallback)
	if err != nil {
		return err
	}
	p.persistAssistant(ctx, userID, text, nil)
	return nil
}

// groundedStage parameterizes the two web-grounded strategies. The
// doneEvent carries the sources and is the other strategy's fragment
// type; see the EventType doc for why.
type groundedStage struct {
	system    string
	params    genai.Params
	fragEvent EventType
	doneEvent EventType
	fallback  string
}

func (p *Pipeline) respondGrounded(ctx context.Context, sw *StreamWriter, ex *Exchange, msgs []*ai.Message, stage groundedStage) error {
	u := p.classifier.Understand(ctx, ex.Query)
	results := p.search.Search(ctx, u.SearchQuery, p.searchTopK)
	if results == nil {
		results = []websearch.Result{}
	}

	system := stage.system
	if len(results) > 0 {
		system += "\n\n" + buildWebContext(results)
	}

	text, err := p.streamText(ctx, sw, system, msgs, stage.params, stage.fragEvent, stage.fallback)
	if err != nil {
		return err
	}

	// The terminal event always carries the source list, even when it
	// is empty.
	if err := sw.Send(Event{Type: stage.doneEvent, WebSearchData: results}); err != nil {
		return err
	}

	var searchData json.RawMessage
	if len(results) > 0 {
		searchData, err = json.Marshal(results)
		if err != nil {
			p.logger.Warn("serializing search data failed", "error", err)
			searchData = nil
		}
	}
	p.persistAssistant(ctx, ex.UserID, text, searchData)
	return nil
}

// streamText delivers model output with a two-tier fallback:
//
//  1. streamed generation, fragment by fragment
//  2. if it yields nothing, a single-shot completion sent whole
//  3. if that is also empty, the hardcoded fallback text
//
// Returns the delivered text; the hardcoded floor means it is never
// empty on success, so callers persist it like any other answer.
func (p *Pipeline) streamText(ctx context.Context, sw *StreamWriter, system string, msgs []*ai.Message, params genai.Params, evType EventType, fallback string) (string, error) {
	text, err := p.gen.Stream(ctx, system, msgs, params, func(cctx context.Context, frag string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return sw.Send(Event{Type: evType, Content: frag})
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if text != "" {
			// Fragments already reached the client; retrying would
			// duplicate them.
			sw.SendError(clientErrorMessage)
			return "", fmt.Errorf("mid-stream generation failure: %w", err)
		}
		p.logger.Warn("streamed generation failed, retrying single-shot", "error", err)
		text = ""
	}
	if text != "" {
		return text, nil
	}

	text, err = p.gen.Complete(ctx, system, msgs, params)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		p.logger.Warn("single-shot fallback failed", "error", err)
		text = ""
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = fallback
	}

	if err := sw.Send(Event{Type: evType, Content: text}); err != nil {
		return "", err
	}
	return text, nil
}

// persistAssistant stores the assistant turn. Persistence failure
// after a delivered response is logged, not surfaced; the client
// already has the answer.
func (p *Pipeline) persistAssistant(ctx context.Context, userID uuid.UUID, text string, searchData json.RawMessage) {
	if _, err := p.msgs.Append(ctx, userID, store.RoleAssistant, text, searchData); err != nil {
		p.logger.Error("persisting assistant turn failed", "user_id", userID, "error", err)
	}
}

// toModelMessages converts stored history plus the current query into
// the model message list, oldest first.
func toModelMessages(history []store.Message, query string) []*ai.Message {
	msgs := make([]*ai.Message, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case store.RoleAssistant:
			msgs = append(msgs, ai.NewModelMessage(ai.NewTextPart(m.Text)))
		default:
			msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(m.Text)))
		}
	}
	return append(msgs, ai.NewUserMessage(ai.NewTextPart(query)))
}

// buildWebContext renders search results as a prompt block. Extracted
// page text is already preview-truncated by the search layer.
func buildWebContext(results []websearch.Result) string {
	var sb strings.Builder
	sb.WriteString("Web sources for this answer. Weave them in conversationally and ")
	sb.WriteString("name the source when you use one; never list them verbatim.\n")
	for _, r := range results {
		fmt.Fprintf(&sb, "\n[%d] %s (%s)\n", r.ID, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "Snippet: %s\n", r.Snippet)
		}
		if r.Content != "" {
			fmt.Fprintf(&sb, "Extract: %s\n", r.Content)
		}
	}
	return sb.String()
}
