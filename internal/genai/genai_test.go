package genai

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/travo-ai/travo/internal/log"
	"github.com/travo-ai/travo/internal/testutil"
)

func newTestClient(t *testing.T) (*Client, *testutil.MockLLM) {
	t.Helper()
	g := genkit.Init(context.Background())
	mock := testutil.NewMockLLM("fallback response")
	mock.Register(g)
	return New(g, testutil.MockModelName, log.NewNop()), mock
}

func userMsg(text string) []*ai.Message {
	return []*ai.Message{ai.NewUserMessage(ai.NewTextPart(text))}
}

func TestComplete(t *testing.T) {
	c, mock := newTestClient(t)
	mock.AddResponse("kyoto", "Visit in spring.")

	out, err := c.Complete(context.Background(), "you are a travel assistant", userMsg("tell me about kyoto"), Params{Temperature: 0.3})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "Visit in spring." {
		t.Errorf("Complete = %q", out)
	}
}

func TestCompleteWrapsProviderError(t *testing.T) {
	c, mock := newTestClient(t)
	mock.AddError("boom", errors.New("upstream 500"))

	_, err := c.Complete(context.Background(), "", userMsg("boom"), Params{})
	if !errors.Is(err, ErrProvider) {
		t.Errorf("Complete error = %v, want ErrProvider", err)
	}
}

func TestStreamDeliversFragmentsInOrder(t *testing.T) {
	c, mock := newTestClient(t)
	mock.AddStreamResponse("kyoto", []string{"Kyoto ", "is ", "lovely."})

	var got []string
	out, err := c.Stream(context.Background(), "", userMsg("kyoto"), Params{Temperature: 0.3}, func(_ context.Context, frag string) error {
		got = append(got, frag)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if out != "Kyoto is lovely." {
		t.Errorf("accumulated = %q", out)
	}
	if len(got) != 3 || got[0] != "Kyoto " || got[2] != "lovely." {
		t.Errorf("fragments = %v", got)
	}
}

func TestStreamCallbackErrorAborts(t *testing.T) {
	c, mock := newTestClient(t)
	mock.AddStreamResponse("kyoto", []string{"a", "b", "c"})

	abort := errors.New("client gone")
	calls := 0
	_, err := c.Stream(context.Background(), "", userMsg("kyoto"), Params{}, func(context.Context, string) error {
		calls++
		if calls == 2 {
			return abort
		}
		return nil
	})
	if !errors.Is(err, abort) {
		t.Errorf("Stream error = %v, want callback error unwrapped", err)
	}
	if calls != 2 {
		t.Errorf("callback calls = %d, want 2", calls)
	}
}

func TestStreamEmptyResponse(t *testing.T) {
	c, mock := newTestClient(t)
	mock.AddStreamResponse("void", nil)

	calls := 0
	out, err := c.Stream(context.Background(), "", userMsg("void"), Params{}, func(context.Context, string) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if out != "" || calls != 0 {
		t.Errorf("out = %q, calls = %d, want empty and none", out, calls)
	}
}
