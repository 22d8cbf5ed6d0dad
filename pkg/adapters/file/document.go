package file

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/lectern/pkg/domain"
)

// document is the on-disk shape of a course.
// Items nest under items; a flat outline list with legacy position codes is accepted too.
type document struct {
	ID        string         `yaml:"id"`
	Title     string         `yaml:"title"`
	AvatarURL string         `yaml:"avatar_url"`
	Items     []itemDocument `yaml:"items"`
	Outline   []flatItem     `yaml:"outline"`
}

type itemDocument struct {
	ID     string           `yaml:"id"`
	Title  string           `yaml:"title"`
	Kind   domain.ItemKind  `yaml:"kind"`
	Items  []itemDocument   `yaml:"items"`
	Blocks []map[string]any `yaml:"blocks"`
}

// flatItem addresses its place in the tree with a position code such as "0102".
type flatItem struct {
	ID     string           `yaml:"id"`
	Code   string           `yaml:"code"`
	Title  string           `yaml:"title"`
	Kind   domain.ItemKind  `yaml:"kind"`
	Blocks []map[string]any `yaml:"blocks"`
}

// blockHeader holds the block keys that are not part of the payload.
type blockHeader struct {
	ID          string                 `mapstructure:"id"`
	Content     domain.ContentKind     `mapstructure:"content"`
	Interaction domain.InteractionKind `mapstructure:"interaction"`
}

// ParseCourse decodes a YAML course document.
func ParseCourse(data []byte) (domain.Course, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return domain.Course{}, fmt.Errorf("parse course: %w", err)
	}
	if doc.ID == "" {
		return domain.Course{}, fmt.Errorf("parse course: missing id")
	}
	if len(doc.Items) > 0 && len(doc.Outline) > 0 {
		return domain.Course{}, fmt.Errorf("course %s: items and outline are mutually exclusive", doc.ID)
	}

	c := domain.Course{ID: doc.ID, Title: doc.Title, AvatarURL: doc.AvatarURL}
	var err error
	if len(doc.Outline) > 0 {
		err = flatten(&c, doc.Outline)
	} else {
		err = walk(&c, "", doc.Items)
	}
	if err != nil {
		return domain.Course{}, fmt.Errorf("course %s: %w", doc.ID, err)
	}
	return c, nil
}

func walk(c *domain.Course, parentID string, items []itemDocument) error {
	for i, it := range items {
		c.Items = append(c.Items, domain.OutlineItem{
			ID: it.ID, ParentID: parentID, Order: i + 1, Kind: it.Kind, Title: it.Title,
		})
		if err := appendBlocks(c, it.ID, it.Blocks); err != nil {
			return err
		}
		if err := walk(c, it.ID, it.Items); err != nil {
			return err
		}
	}
	return nil
}

func flatten(c *domain.Course, items []flatItem) error {
	byCode := make(map[string]string, len(items))
	for _, it := range items {
		if _, err := domain.ParsePositionCode(it.Code); err != nil {
			return fmt.Errorf("item %s: %w", it.ID, err)
		}
		if other, dup := byCode[it.Code]; dup {
			return fmt.Errorf("items %s and %s share position code %s", other, it.ID, it.Code)
		}
		byCode[it.Code] = it.ID
	}

	sorted := append([]flatItem(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })
	for _, it := range sorted {
		orders, _ := domain.ParsePositionCode(it.Code)
		var parentID string
		if pc := domain.ParentPositionCode(it.Code); pc != "" {
			id, ok := byCode[pc]
			if !ok {
				return fmt.Errorf("item %s: no item with parent code %s", it.ID, pc)
			}
			parentID = id
		}
		c.Items = append(c.Items, domain.OutlineItem{
			ID: it.ID, ParentID: parentID, Order: orders[len(orders)-1], Kind: it.Kind, Title: it.Title,
		})
		if err := appendBlocks(c, it.ID, it.Blocks); err != nil {
			return err
		}
	}
	return nil
}

// appendBlocks decodes loosely typed block maps. Everything besides the header keys is payload,
// so authors write `text:` instead of `payload: {text: ...}`.
func appendBlocks(c *domain.Course, itemID string, raw []map[string]any) error {
	for i, m := range raw {
		var head blockHeader
		if err := decode(m, &head, false); err != nil {
			return fmt.Errorf("item %s block %d: %w", itemID, i+1, err)
		}
		if head.ID == "" {
			head.ID = fmt.Sprintf("%s-%d", itemID, i+1)
		}

		fields := make(map[string]any, len(m))
		for k, v := range m {
			switch k {
			case "id", "content", "interaction":
				continue
			case "payload":
				nested, ok := v.(map[string]any)
				if !ok {
					return fmt.Errorf("block %s: payload must be a mapping", head.ID)
				}
				for nk, nv := range nested {
					fields[nk] = nv
				}
			default:
				fields[k] = v
			}
		}
		var payload domain.Payload
		if err := decode(fields, &payload, true); err != nil {
			return fmt.Errorf("block %s: %w", head.ID, err)
		}

		c.Blocks = append(c.Blocks, domain.Block{
			ID:            head.ID,
			OutlineItemID: itemID,
			Order:         i + 1,
			Content:       head.Content,
			Interaction:   head.Interaction,
			Payload:       payload,
		})
	}
	return nil
}

// decode maps loosely typed YAML values onto out. Strict decoding rejects unknown keys.
func decode(input any, out any, strict bool) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      strict,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
