// Package narrator defines the contract of the story collaborator that turns
// the winning action of a round into the next prompt.
package narrator

import (
	"context"
	"math/rand/v2"
)

// Outcome is what the collaborator returns for one evaluation. When NeedRoll
// is set the caller must supply a dice roll and evaluate again.
type Outcome struct {
	NextPrompt string
	NeedRoll   bool
}

type Narrator interface {
	Evaluate(ctx context.Context, prompt, storyContext string, roll *int) (Outcome, error)
}

// Echo is the stand-in collaborator: it repeats the prompt and never asks for a roll.
type Echo struct{}

func (Echo) Evaluate(ctx context.Context, prompt, storyContext string, roll *int) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	return Outcome{NextPrompt: "AI says: " + prompt}, nil
}

// Func adapts a plain function to the Narrator interface.
type Func func(ctx context.Context, prompt, storyContext string, roll *int) (Outcome, error)

func (f Func) Evaluate(ctx context.Context, prompt, storyContext string, roll *int) (Outcome, error) {
	return f(ctx, prompt, storyContext, roll)
}

const DieSides = 20

// Roller produces dice outcomes for rounds that need one.
type Roller interface {
	Roll() int
}

type D20 struct{}

func (D20) Roll() int {
	return rand.IntN(DieSides) + 1
}
