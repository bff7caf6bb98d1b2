package router

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"

	"github.com/travo-ai/travo/internal/genai"
	"github.com/travo-ai/travo/internal/log"
)

type fakeGen struct {
	out    string
	err    error
	system string
	params genai.Params
}

func (f *fakeGen) Complete(_ context.Context, system string, _ []*ai.Message, p genai.Params) (string, error) {
	f.system = system
	f.params = p
	return f.out, f.err
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		out  string
		err  error
		want Strategy
	}{
		{"greeting marker", "**<TOOL:greetingTool>**", nil, StrategyGreeting},
		{"info marker", "**<TOOL:infoTool>**", nil, StrategyInfo},
		{"planner marker", "**<TOOL:tripPlannerTool>**", nil, StrategyPlanner},
		{"marker inside prose", "The right choice is **<TOOL:infoTool>** here.", nil, StrategyInfo},
		{"case-insensitive marker", "**<tool:TRIPPLANNERTOOL>**", nil, StrategyPlanner},
		{"no marker", "I think the info tool fits best.", nil, StrategyGreeting},
		{"empty output", "", nil, StrategyGreeting},
		{"provider error", "", errors.New("boom"), StrategyGreeting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(&fakeGen{out: tt.out, err: tt.err}, log.NewNop())
			if got := r.Classify(context.Background(), "some query"); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyParams(t *testing.T) {
	gen := &fakeGen{out: "**<TOOL:greetingTool>**"}
	New(gen, log.NewNop()).Classify(context.Background(), "hi")

	if gen.params.Temperature != 0.1 || gen.params.MaxTokens != 100 {
		t.Errorf("classify params = %+v, want temp 0.1, max 100", gen.params)
	}
	if gen.system == "" {
		t.Error("classifier ran without a system prompt")
	}
}

func TestUnderstand(t *testing.T) {
	tests := []struct {
		name string
		out  string
		err  error
		want Understanding
	}{
		{
			"clean json",
			`{"intent": "best season for Kyoto", "search_query": "best time to visit Kyoto"}`,
			nil,
			Understanding{Intent: "best season for Kyoto", SearchQuery: "best time to visit Kyoto"},
		},
		{
			"fenced json",
			"```json\n{\"intent\": \"visa rules\", \"search_query\": \"Japan visa requirements US citizens\"}\n```",
			nil,
			Understanding{Intent: "visa rules", SearchQuery: "Japan visa requirements US citizens"},
		},
		{
			"prose around json",
			`Sure! {"intent": "budget", "search_query": "Lisbon travel cost per day"} hope that helps`,
			nil,
			Understanding{Intent: "budget", SearchQuery: "Lisbon travel cost per day"},
		},
		{
			"not json",
			"The user wants to know about Kyoto.",
			nil,
			Understanding{Intent: "travel info", SearchQuery: "raw query"},
		},
		{
			"provider error",
			"",
			errors.New("boom"),
			Understanding{Intent: "travel info", SearchQuery: "raw query"},
		},
		{
			"empty fields",
			`{"intent": "", "search_query": ""}`,
			nil,
			Understanding{Intent: "travel info", SearchQuery: "raw query"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(&fakeGen{out: tt.out, err: tt.err}, log.NewNop())
			got := r.Understand(context.Background(), "raw query")
			if got != tt.want {
				t.Errorf("Understand() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestToolRegistry(t *testing.T) {
	if len(Tools) != 3 {
		t.Fatalf("len(Tools) = %d, want 3", len(Tools))
	}
	names := map[string]Strategy{
		"greetingTool":    StrategyGreeting,
		"infoTool":        StrategyInfo,
		"tripPlannerTool": StrategyPlanner,
	}
	for _, tool := range Tools {
		want, ok := names[tool.Name]
		if !ok {
			t.Errorf("unexpected tool %q", tool.Name)
			continue
		}
		if tool.Strategy != want {
			t.Errorf("tool %q strategy = %v, want %v", tool.Name, tool.Strategy, want)
		}
		if tool.IsParameter {
			t.Errorf("tool %q marked as parameter", tool.Name)
		}
	}
}

func TestStrategyString(t *testing.T) {
	if StrategyGreeting.String() != "greetingTool" ||
		StrategyInfo.String() != "infoTool" ||
		StrategyPlanner.String() != "tripPlannerTool" {
		t.Error("Strategy.String() does not match tool names")
	}
}
