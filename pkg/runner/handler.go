package runner

import (
	"context"

	"github.com/aretw0/lectern/pkg/domain"
)

// Prompt is the last thing a turn asked of the user.
// A zero Kind means the turn paused without asking anything (a break, or the end of the course).
type Prompt struct {
	Frame    domain.Frame
	Kind     domain.InputKind
	Buttons  []domain.Button
	Multiple bool
}

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI) and JSON (structured) modes.
type IOHandler interface {
	// Output presents one frame as soon as the engine produces it.
	Output(ctx context.Context, f domain.Frame) error

	// Input reads the answer to p. io.EOF ends the session.
	Input(ctx context.Context, p Prompt) (string, error)

	// SystemOutput presents a meta-message (retries, session end) distinct from course content.
	SystemOutput(ctx context.Context, msg string) error
}

// promptOf reports whether f asks the user for something, and what.
func promptOf(f domain.Frame) (Prompt, bool) {
	p := Prompt{Frame: f}
	switch c := f.Content.(type) {
	case domain.ButtonsContent:
		p.Kind, p.Buttons, p.Multiple = c.Kind, c.Buttons, c.Multiple
		return p, true
	case domain.InputContent:
		p.Kind = c.Kind
		return p, true
	case domain.OrderContent:
		p.Kind = domain.InputPayment
		return p, true
	}
	return Prompt{}, false
}
