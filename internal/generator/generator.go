package generator

import (
	"context"
	"fmt"
)

// Generated is one judged response produced from a raw prompt.
type Generated struct {
	ModelName    string
	ResponseText string
}

// Generator turns a participant's prompt into the response voters judge.
// It runs synchronously inside the round-close sequence, so implementations
// must respect ctx and keep their own timeout/retry policy.
type Generator interface {
	Generate(ctx context.Context, promptText string) (Generated, error)
}

// Mock is the deterministic stand-in for a real generative backend.
type Mock struct {
	// Model overrides the reported model name. Defaults to "mock-gpt-4".
	Model string
}

var _ Generator = Mock{}

func (m Mock) Generate(_ context.Context, promptText string) (Generated, error) {
	model := m.Model
	if model == "" {
		model = "mock-gpt-4"
	}
	head := promptText
	if len(head) > 10 {
		head = head[:10]
	}
	text := fmt.Sprintf(
		"[AI Output for %q...]\n\nHere is a creative response generated by the system. "+
			"In a real environment, this would call a hosted model.\n\n"+
			"Lorem ipsum dolor sit amet, consectetur adipiscing elit.",
		head,
	)
	return Generated{ModelName: model, ResponseText: text}, nil
}
