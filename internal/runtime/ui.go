package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
)

// breakMarker is the system log content left on a break block once it stopped a turn.
const breakMarker = "break"

func defaultContinuations() map[domain.InteractionKind]ContinuationFunc {
	return map[domain.InteractionKind]ContinuationFunc{
		domain.InteractionNone: func(context.Context, ContinuationContext) (bool, error) {
			return true, nil
		},
		domain.InteractionPayment: func(ctx context.Context, c ContinuationContext) (bool, error) {
			return paid(ctx, c.Payments, c.UserID, c.Block.Payload.Product)
		},
		domain.InteractionLogin: func(ctx context.Context, c ContinuationContext) (bool, error) {
			return loggedIn(ctx, c.Profiles, c.UserID)
		},
	}
}

func paid(ctx context.Context, payments ports.PaymentService, userID, product string) (bool, error) {
	if payments == nil {
		return false, nil
	}
	order, err := payments.FindOrder(ctx, userID, product)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &domain.UpstreamError{Service: "payments", Err: err}
	}
	return order.Paid(), nil
}

func loggedIn(ctx context.Context, profiles ports.ProfileStore, userID string) (bool, error) {
	if profiles == nil {
		return false, nil
	}
	p, err := profiles.GetProfile(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &domain.UpstreamError{Service: "profiles", Err: err}
	}
	return p.Verified, nil
}

// next decides what follows a played block: the continuation predicate may skip straight
// ahead, otherwise the block's affordance is presented.
func (t *turn) next(ctx context.Context, pos *position) (bool, int, error) {
	if fn, ok := t.e.continuations[pos.block.Interaction]; ok && fn != nil {
		vars, err := t.variables(ctx)
		if err != nil {
			return false, 0, err
		}
		more, err := fn(ctx, ContinuationContext{
			UserID:    t.req.UserID,
			CourseID:  t.req.CourseID,
			Block:     pos.block,
			Variables: vars,
			Profiles:  t.e.profiles,
			Payments:  t.e.payments,
		})
		if err != nil {
			return false, 0, err
		}
		if more {
			return true, 1, nil
		}
	}
	return t.present(ctx, pos)
}

// present emits the affordance of the block's interaction. It reports whether the turn keeps
// going without the user, and by how many blocks.
func (t *turn) present(ctx context.Context, pos *position) (bool, int, error) {
	b := pos.block
	p := b.Payload
	kind := domain.ExpectedInput(b.Interaction)
	frame := domain.Frame{OutlineItemID: b.OutlineItemID, BlockID: b.ID}

	switch b.Interaction {
	case domain.InteractionNone:
		return true, 1, nil
	case domain.InteractionContinue:
		label := p.Label
		if label == "" {
			label = t.e.messages.ContinueLabel
		}
		frame.Type = domain.FrameButtons
		frame.Content = domain.ButtonsContent{Buttons: []domain.Button{{Label: label, Value: string(domain.InputContinue)}}, Kind: kind}
	case domain.InteractionButton:
		label := p.Label
		if label == "" {
			label = t.e.messages.ContinueLabel
		}
		frame.Type = domain.FrameButtons
		frame.Content = domain.ButtonsContent{Buttons: []domain.Button{{Label: label, Value: label}}, Kind: kind}
	case domain.InteractionSelect:
		options, err := t.options(ctx, b)
		if err != nil {
			return false, 0, err
		}
		buttons := make([]domain.Button, 0, len(options))
		for _, o := range options {
			buttons = append(buttons, domain.Button{Label: o, Value: o})
		}
		frame.Type = domain.FrameButtons
		frame.Content = domain.ButtonsContent{Buttons: buttons, Multiple: p.Multiple, Kind: kind}
	case domain.InteractionInput:
		frame.Type = domain.FrameInput
		frame.Content = domain.InputContent{Label: p.Label, Kind: kind}
	case domain.InteractionPhone:
		frame.Type = domain.FramePhone
		frame.Content = domain.InputContent{Label: p.Label, Kind: kind}
	case domain.InteractionCheckCode:
		frame.Type = domain.FrameCheckCode
		frame.Content = domain.InputContent{Label: p.Label, Kind: kind}
	case domain.InteractionLogin:
		frame.Type = domain.FrameLogin
		frame.Content = domain.InputContent{Label: p.Label, Kind: kind}
	case domain.InteractionPayment:
		order, err := t.pendingOrder(ctx, p)
		if err != nil {
			return false, 0, err
		}
		frame.Type = domain.FrameOrder
		frame.Content = domain.OrderContent{OrderID: order.ID, Product: order.Product, Price: order.Price, Status: string(order.Status)}
	case domain.InteractionGoto:
		return t.branch(ctx, pos)
	case domain.InteractionBreak:
		err := t.prog.tx.AppendLog(ctx, &domain.LogEntry{
			ID:         uuid.NewString(),
			ProgressID: pos.record.ID,
			BlockID:    b.ID,
			Role:       domain.RoleSystem,
			Content:    breakMarker,
			CreatedAt:  t.e.now(),
		})
		if err != nil {
			return false, 0, fmt.Errorf("mark break: %w", err)
		}
		return false, 0, t.out.closeText()
	default:
		return false, 0, &domain.InconsistentStateError{Reason: fmt.Sprintf("block %s has unknown interaction %q", b.ID, b.Interaction)}
	}
	return false, 0, t.out.send(frame)
}

// pendingOrder returns the user's open order for the product, creating one if needed.
func (t *turn) pendingOrder(ctx context.Context, p domain.Payload) (*domain.Order, error) {
	if t.e.payments == nil {
		return nil, &domain.UpstreamError{Service: "payments", Err: errors.New("no payment service configured")}
	}
	order, err := t.e.payments.FindOrder(ctx, t.req.UserID, p.Product)
	if err == nil && order.Status == domain.OrderPending {
		return order, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.UpstreamError{Service: "payments", Err: err}
	}
	order, err = t.e.payments.CreateOrder(ctx, t.req.UserID, p.Product, p.Price)
	if err != nil {
		return nil, &domain.UpstreamError{Service: "payments", Err: err}
	}
	return order, nil
}

// branch evaluates the jump rules of a goto block against its variable. A match points the
// block's record at the target lesson and puts it in branch; the walk then continues into the
// target. Without a match the goto is a plain step forward. Rules with value "*" or "" match
// anything and serve as a default.
func (t *turn) branch(ctx context.Context, pos *position) (bool, int, error) {
	vars, err := t.variables(ctx)
	if err != nil {
		return false, 0, err
	}
	value := strings.TrimSpace(vars[pos.block.Payload.Variable])

	target := ""
	for _, r := range pos.block.Payload.Rules {
		rv := strings.TrimSpace(r.Value)
		if rv == "*" || rv == "" || strings.EqualFold(rv, value) {
			target = r.Target
			break
		}
	}
	if target == "" {
		t.log.Debug("no jump rule matched", "block_id", pos.block.ID, "value", value)
		return true, 1, nil
	}

	to, err := t.prog.record(ctx, target)
	if err != nil {
		return false, 0, err
	}
	existing, err := t.prog.tx.ActiveBranch(ctx, pos.record.ID)
	switch {
	case err == nil && existing.ToID == to.ID:
	case err == nil || errors.Is(err, domain.ErrNotFound):
		if err := t.prog.tx.PutBranch(ctx, &domain.BranchAssociation{
			ID:        uuid.NewString(),
			UserID:    t.req.UserID,
			FromID:    pos.record.ID,
			ToID:      to.ID,
			Active:    true,
			CreatedAt: t.e.now(),
		}); err != nil {
			return false, 0, fmt.Errorf("put branch: %w", err)
		}
	default:
		return false, 0, err
	}

	if err := t.prog.move(ctx, pos.record, domain.StatusBranch); err != nil {
		return false, 0, err
	}
	return true, 0, nil
}
