package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// PositionWidth is the number of digits used per level in a position code.
const PositionWidth = 2

// ItemKind classifies outline items.
type ItemKind string

const (
	ItemNormal ItemKind = "normal"
	// ItemTrial marks a free preview lesson.
	ItemTrial ItemKind = "trial"
	// ItemHidden is only reachable through a branch (goto) and is skipped by the unlock cascade.
	ItemHidden ItemKind = "hidden"
)

// OutlineItem is a node of the content tree (a chapter or a lesson).
type OutlineItem struct {
	ID       string   `json:"id" yaml:"id"`
	ParentID string   `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Order    int      `json:"order" yaml:"order"`
	Kind     ItemKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Title    string   `json:"title" yaml:"title"`
}

// Reachable reports whether the item can be unlocked by normal progression.
func (i OutlineItem) Reachable() bool {
	return i.Kind != ItemHidden
}

// FormatPositionCode renders a path of sibling orders as a fixed-width position code.
// FormatPositionCode([]int{1, 2}) == "0102".
func FormatPositionCode(orders []int) string {
	var b strings.Builder
	b.Grow(len(orders) * PositionWidth)
	for _, o := range orders {
		fmt.Fprintf(&b, "%0*d", PositionWidth, o)
	}
	return b.String()
}

// ParsePositionCode splits a position code into its per-level sibling orders.
func ParsePositionCode(code string) ([]int, error) {
	if code == "" || len(code)%PositionWidth != 0 {
		return nil, fmt.Errorf("invalid position code %q: length must be a positive multiple of %d", code, PositionWidth)
	}
	orders := make([]int, 0, len(code)/PositionWidth)
	for i := 0; i < len(code); i += PositionWidth {
		n, err := strconv.Atoi(code[i : i+PositionWidth])
		if err != nil {
			return nil, fmt.Errorf("invalid position code %q: %w", code, err)
		}
		orders = append(orders, n)
	}
	return orders, nil
}

// ParentPositionCode returns the code of the parent level, or "" for a top-level code.
func ParentPositionCode(code string) string {
	if len(code) <= PositionWidth {
		return ""
	}
	return code[:len(code)-PositionWidth]
}
