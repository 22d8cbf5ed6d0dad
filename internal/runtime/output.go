package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/aretw0/lectern/internal/template"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
)

// outputGenerator streams the content of one kind of block and logs it once complete.
type outputGenerator interface {
	generate(ctx context.Context, t *turn, pos *position) error
}

// outputFor resolves the generator of a content kind. System blocks are never played.
func outputFor(kind domain.ContentKind) (outputGenerator, bool) {
	switch kind {
	case domain.ContentFixed:
		return fixedOutput{}, true
	case domain.ContentPrompt:
		return promptOutput{}, true
	case domain.ContentSystem:
		return nil, false
	}
	return nil, false
}

// output plays the block at pos. Content already in the log is replayed as a single frame
// instead of being produced again.
func (t *turn) output(ctx context.Context, pos *position) error {
	entries, err := t.prog.tx.ListLog(ctx, pos.record.ID)
	if err != nil {
		return fmt.Errorf("list log: %w", err)
	}
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if entry.BlockID != pos.block.ID || entry.Role != domain.RoleAssistant {
			continue
		}
		if entry.Content != "" {
			if err := t.out.text(pos.block.OutlineItemID, pos.block.ID, entry.ID, entry.Content); err != nil {
				return err
			}
		}
		t.blockDone(ctx, pos, true)
		return t.out.closeText()
	}

	gen, ok := outputFor(pos.block.Content)
	if !ok {
		return &domain.InconsistentStateError{Reason: fmt.Sprintf("block %s has no playable content kind %q", pos.block.ID, pos.block.Content)}
	}
	if err := gen.generate(ctx, t, pos); err != nil {
		return err
	}
	t.blockDone(ctx, pos, false)
	return t.out.closeText()
}

func (t *turn) blockDone(ctx context.Context, pos *position, replayed bool) {
	t.e.emitBlock(ctx, &domain.BlockEvent{
		EventBase:     domain.EventBase{Timestamp: t.e.now(), Type: domain.EventBlock, UserID: t.req.UserID, CourseID: t.req.CourseID},
		OutlineItemID: pos.block.OutlineItemID,
		BlockID:       pos.block.ID,
		Content:       pos.block.Content,
		Interaction:   pos.block.Interaction,
		Replayed:      replayed,
	})
}

func (t *turn) logAssistant(ctx context.Context, pos *position, id, content string) error {
	err := t.prog.tx.AppendLog(ctx, &domain.LogEntry{
		ID:         id,
		ProgressID: pos.record.ID,
		BlockID:    pos.block.ID,
		Role:       domain.RoleAssistant,
		Content:    content,
		CreatedAt:  t.e.now(),
	})
	if err != nil {
		return fmt.Errorf("log block output: %w", err)
	}
	return nil
}

type fixedOutput struct{}

func (fixedOutput) generate(ctx context.Context, t *turn, pos *position) error {
	vars, err := t.variables(ctx)
	if err != nil {
		return err
	}
	b := pos.block
	text := template.Render(b.Payload.Text, vars)
	if text == "" {
		return nil
	}

	logID := uuid.NewString()
	if b.Payload.Image {
		text = "![](" + text + ")"
		err = t.out.text(b.OutlineItemID, b.ID, logID, text)
	} else {
		err = t.out.typed(b.OutlineItemID, b.ID, logID, text)
	}
	if err != nil {
		return err
	}
	return t.logAssistant(ctx, pos, logID, text)
}

type promptOutput struct{}

// generate relays model tokens as they arrive. A stream that breaks midway leaves the
// block unlogged: what was shown stays on screen and the next turn generates it again.
func (promptOutput) generate(ctx context.Context, t *turn, pos *position) error {
	if t.e.model == nil {
		return &domain.UpstreamError{Service: "model", Err: errors.New("no model configured")}
	}
	vars, err := t.variables(ctx)
	if err != nil {
		return err
	}
	b := pos.block
	req := ports.ModelRequest{
		Model:       b.Payload.Model,
		Prompt:      template.Render(b.Payload.Text, vars),
		Temperature: b.Payload.Temperature,
	}
	if sys, ok := t.tree.SystemBlock(b.OutlineItemID); ok {
		req.System = template.Render(sys.Payload.Text, vars)
	}

	stream, err := t.e.model.Stream(ctx, req)
	if err != nil {
		return &domain.UpstreamError{Service: "model", Err: err}
	}
	defer stream.Close()

	logID := uuid.NewString()
	var full strings.Builder
	for {
		tok, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &domain.UpstreamError{Service: "model", Err: err}
		}
		if tok == "" {
			continue
		}
		full.WriteString(tok)
		if err := t.out.text(b.OutlineItemID, b.ID, logID, tok); err != nil {
			return err
		}
	}

	if t.e.checkGenerated {
		if err := t.e.screen(ctx, full.String()); err != nil {
			return err
		}
	}
	return t.logAssistant(ctx, pos, logID, full.String())
}
