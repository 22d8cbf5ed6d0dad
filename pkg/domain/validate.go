package domain

import (
	"errors"
	"fmt"
	"math"
)

// Validate checks the semantic rules a course must satisfy on top of the structural ones
// enforced by NewTree. All problems are reported, joined.
func (t *Tree) Validate() error {
	var errs []error
	maxOrder := int(math.Pow10(PositionWidth)) - 1

	for _, item := range t.Walk() {
		if item.Order < 1 || item.Order > maxOrder {
			errs = append(errs, fmt.Errorf("item %s: order %d does not fit a %d-digit position code", item.ID, item.Order, PositionWidth))
		}
		code := t.PositionCode(item.ID)
		if len(code)%PositionWidth != 0 {
			errs = append(errs, fmt.Errorf("item %s: position code %q has invalid width", item.ID, code))
		}
		if parent, ok := t.Parent(item.ID); ok {
			if ParentPositionCode(code) != t.PositionCode(parent.ID) {
				errs = append(errs, fmt.Errorf("item %s: position code %q is not prefixed by its parent's", item.ID, code))
			}
		}
		if t.HasChildren(item.ID) && t.BlockCount(item.ID) > 0 {
			errs = append(errs, fmt.Errorf("item %s: chapters cannot carry playable blocks", item.ID))
		}
	}

	for _, b := range t.blocks {
		if !b.Interaction.Valid() {
			errs = append(errs, fmt.Errorf("block %s: unknown interaction %q", b.ID, b.Interaction))
		}
		switch b.Content {
		case ContentFixed, ContentPrompt, ContentSystem:
		default:
			errs = append(errs, fmt.Errorf("block %s: unknown content kind %q", b.ID, b.Content))
		}
		switch b.Interaction {
		case InteractionGoto:
			if b.Payload.Variable == "" {
				errs = append(errs, fmt.Errorf("block %s: goto needs a variable", b.ID))
			}
			for _, r := range b.Payload.Rules {
				target, ok := t.Item(r.Target)
				if !ok {
					errs = append(errs, fmt.Errorf("block %s: goto target %s not found", b.ID, r.Target))
					continue
				}
				if t.HasChildren(target.ID) {
					errs = append(errs, fmt.Errorf("block %s: goto target %s must be a lesson", b.ID, r.Target))
				}
			}
		case InteractionSelect:
			if len(b.Payload.Options) == 0 && b.Payload.OptionsFrom == "" {
				errs = append(errs, fmt.Errorf("block %s: select needs options or options_from", b.ID))
			}
		case InteractionPayment:
			if b.Payload.Product == "" {
				errs = append(errs, fmt.Errorf("block %s: payment needs a product", b.ID))
			}
		}
	}

	return errors.Join(errs...)
}
