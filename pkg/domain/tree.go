package domain

import (
	"errors"
	"fmt"
	"sort"
)

// Variant selects which version of a course is served.
type Variant string

const (
	VariantPublished Variant = "published"
	VariantPreview   Variant = "preview"
)

// Course is the raw, loader-provided content of one course variant.
type Course struct {
	ID        string        `json:"id" yaml:"id"`
	Title     string        `json:"title" yaml:"title"`
	AvatarURL string        `json:"avatar_url,omitempty" yaml:"avatar_url,omitempty"`
	Variant   Variant       `json:"variant,omitempty" yaml:"variant,omitempty"`
	Items     []OutlineItem `json:"items" yaml:"items"`
	Blocks    []Block       `json:"blocks" yaml:"blocks"`
}

// Tree is an indexed, read-only view over a Course.
// Items are kept in an arena addressed by id; siblings are ordered by OutlineItem.Order.
type Tree struct {
	course   Course
	items    map[string]OutlineItem
	children map[string][]string // parent id ("" for roots) -> ordered child ids
	playable map[string][]Block  // item id -> playable blocks ordered by Block.Order
	system   map[string][]Block  // item id -> system blocks ordered by Block.Order
	blocks   map[string]Block
}

// NewTree indexes a course and checks its structural invariants.
func NewTree(c Course) (*Tree, error) {
	t := &Tree{
		course:   c,
		items:    make(map[string]OutlineItem, len(c.Items)),
		children: make(map[string][]string),
		playable: make(map[string][]Block),
		system:   make(map[string][]Block),
		blocks:   make(map[string]Block, len(c.Blocks)),
	}

	for _, item := range c.Items {
		if item.ID == "" {
			return nil, errors.New("outline item missing id")
		}
		if _, dup := t.items[item.ID]; dup {
			return nil, fmt.Errorf("duplicate outline item %s", item.ID)
		}
		if item.Kind == "" {
			item.Kind = ItemNormal
		}
		t.items[item.ID] = item
	}

	for _, item := range t.items {
		if item.ParentID != "" {
			if _, ok := t.items[item.ParentID]; !ok {
				return nil, fmt.Errorf("outline item %s: parent %s not found", item.ID, item.ParentID)
			}
		}
		t.children[item.ParentID] = append(t.children[item.ParentID], item.ID)
	}

	for parent, ids := range t.children {
		sort.Slice(ids, func(i, j int) bool {
			return t.items[ids[i]].Order < t.items[ids[j]].Order
		})
		for i := 1; i < len(ids); i++ {
			if t.items[ids[i]].Order == t.items[ids[i-1]].Order {
				return nil, fmt.Errorf("outline items %s and %s share order %d under %q",
					ids[i-1], ids[i], t.items[ids[i]].Order, parent)
			}
		}
	}

	// Every item must reach a root within len(items) steps, otherwise the parent links cycle.
	for id := range t.items {
		cur, steps := id, 0
		for cur != "" {
			if steps > len(t.items) {
				return nil, fmt.Errorf("outline item %s: parent chain contains a cycle", id)
			}
			cur = t.items[cur].ParentID
			steps++
		}
	}

	seenOrder := make(map[string]map[int]string)
	for _, b := range c.Blocks {
		if b.ID == "" {
			return nil, fmt.Errorf("block in item %s missing id", b.OutlineItemID)
		}
		if _, ok := t.items[b.OutlineItemID]; !ok {
			return nil, fmt.Errorf("block %s: outline item %s not found", b.ID, b.OutlineItemID)
		}
		if _, dup := t.blocks[b.ID]; dup {
			return nil, fmt.Errorf("duplicate block %s", b.ID)
		}
		if seenOrder[b.OutlineItemID] == nil {
			seenOrder[b.OutlineItemID] = make(map[int]string)
		}
		if other, dup := seenOrder[b.OutlineItemID][b.Order]; dup {
			return nil, fmt.Errorf("blocks %s and %s share order %d in item %s", other, b.ID, b.Order, b.OutlineItemID)
		}
		seenOrder[b.OutlineItemID][b.Order] = b.ID

		if b.Content == "" {
			b.Content = ContentFixed
		}
		if b.Interaction == "" {
			b.Interaction = InteractionNone
		}
		t.blocks[b.ID] = b
		if b.Playable() {
			t.playable[b.OutlineItemID] = append(t.playable[b.OutlineItemID], b)
		} else {
			t.system[b.OutlineItemID] = append(t.system[b.OutlineItemID], b)
		}
	}
	for _, set := range []map[string][]Block{t.playable, t.system} {
		for _, blocks := range set {
			sort.Slice(blocks, func(i, j int) bool { return blocks[i].Order < blocks[j].Order })
		}
	}

	return t, nil
}

// CourseID returns the id of the underlying course.
func (t *Tree) CourseID() string { return t.course.ID }

// Course returns course-level metadata (items and blocks included).
func (t *Tree) Course() Course { return t.course }

// Item returns the outline item with the given id.
func (t *Tree) Item(id string) (OutlineItem, bool) {
	item, ok := t.items[id]
	return item, ok
}

// Parent returns the parent of an item; ok is false for roots and unknown ids.
func (t *Tree) Parent(id string) (OutlineItem, bool) {
	item, ok := t.items[id]
	if !ok || item.ParentID == "" {
		return OutlineItem{}, false
	}
	return t.items[item.ParentID], true
}

// Children returns the ordered children of an item. Children("") returns the roots.
func (t *Tree) Children(id string) []OutlineItem {
	ids := t.children[id]
	out := make([]OutlineItem, 0, len(ids))
	for _, cid := range ids {
		out = append(out, t.items[cid])
	}
	return out
}

// HasChildren reports whether the item is a chapter rather than a lesson.
func (t *Tree) HasChildren(id string) bool {
	return len(t.children[id]) > 0
}

// PositionCode derives the hierarchical position code of an item.
func (t *Tree) PositionCode(id string) string {
	var orders []int
	for cur := id; cur != ""; {
		item, ok := t.items[cur]
		if !ok {
			return ""
		}
		orders = append([]int{item.Order}, orders...)
		cur = item.ParentID
	}
	return FormatPositionCode(orders)
}

// IsFirstChild reports whether the item is the first reachable child of its parent.
func (t *Tree) IsFirstChild(id string) bool {
	item, ok := t.items[id]
	if !ok || item.ParentID == "" {
		return false
	}
	for _, sib := range t.children[item.ParentID] {
		if t.items[sib].Reachable() {
			return sib == id
		}
	}
	return false
}

// NextSibling returns the next reachable sibling (same parent, higher order).
func (t *Tree) NextSibling(id string) (OutlineItem, bool) {
	item, ok := t.items[id]
	if !ok {
		return OutlineItem{}, false
	}
	for _, sib := range t.children[item.ParentID] {
		s := t.items[sib]
		if s.Order > item.Order && s.Reachable() {
			return s, true
		}
	}
	return OutlineItem{}, false
}

// FirstLeaf descends through first reachable children until a childless item is found.
// The returned path starts with the item itself.
func (t *Tree) FirstLeaf(id string) []OutlineItem {
	item, ok := t.items[id]
	if !ok {
		return nil
	}
	path := []OutlineItem{item}
	for t.HasChildren(item.ID) {
		var next *OutlineItem
		for _, cid := range t.children[item.ID] {
			if c := t.items[cid]; c.Reachable() {
				next = &c
				break
			}
		}
		if next == nil {
			break
		}
		item = *next
		path = append(path, item)
	}
	return path
}

// Walk returns every item in depth-first pre-order.
func (t *Tree) Walk() []OutlineItem {
	var out []OutlineItem
	var visit func(parent string)
	visit = func(parent string) {
		for _, id := range t.children[parent] {
			out = append(out, t.items[id])
			visit(id)
		}
	}
	visit("")
	return out
}

// Block returns the playable block at a 1-based position of an item.
func (t *Tree) Block(itemID string, position int) (Block, bool) {
	blocks := t.playable[itemID]
	if position < 1 || position > len(blocks) {
		return Block{}, false
	}
	return blocks[position-1], true
}

// BlockByID looks up any block (playable or system).
func (t *Tree) BlockByID(id string) (Block, bool) {
	b, ok := t.blocks[id]
	return b, ok
}

// BlockCount returns the number of playable blocks in an item.
func (t *Tree) BlockCount(itemID string) int {
	return len(t.playable[itemID])
}

// SystemBlock searches the item and then its ancestors for a system block.
func (t *Tree) SystemBlock(itemID string) (Block, bool) {
	for cur := itemID; cur != ""; {
		if blocks := t.system[cur]; len(blocks) > 0 {
			return blocks[0], true
		}
		item, ok := t.items[cur]
		if !ok {
			break
		}
		cur = item.ParentID
	}
	return Block{}, false
}
