package runtime

import (
	"context"
	"time"

	"github.com/aretw0/lectern/pkg/domain"
)

// frameWriter forwards frames to the transport and keeps the text run invariant:
// an open run of text frames is always closed by text_end before any other frame.
type frameWriter struct {
	ctx   context.Context
	emit  func(domain.Frame) error
	hook  func(context.Context, domain.Frame)
	delay time.Duration

	open      bool
	openItem  string
	openBlock string
	openLog   string
	sent      int
}

func (w *frameWriter) write(f domain.Frame) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	if err := w.emit(f); err != nil {
		return err
	}
	w.sent++
	if w.hook != nil {
		w.hook(w.ctx, f)
	}
	return nil
}

// text sends one text increment, opening a run if needed.
func (w *frameWriter) text(item, block, logID, s string) error {
	if w.open && (w.openItem != item || w.openBlock != block) {
		if err := w.closeText(); err != nil {
			return err
		}
	}
	w.open, w.openItem, w.openBlock, w.openLog = true, item, block, logID
	return w.write(domain.Frame{Type: domain.FrameText, Content: s, OutlineItemID: item, BlockID: block, LogID: logID})
}

// typed sends s one rune per frame, pausing between runes when a delay is configured.
func (w *frameWriter) typed(item, block, logID, s string) error {
	first := true
	for _, r := range s {
		if !first && w.delay > 0 {
			select {
			case <-w.ctx.Done():
				return w.ctx.Err()
			case <-time.After(w.delay):
			}
		}
		first = false
		if err := w.text(item, block, logID, string(r)); err != nil {
			return err
		}
	}
	return nil
}

func (w *frameWriter) closeText() error {
	if !w.open {
		return nil
	}
	w.open = false
	return w.write(domain.Frame{Type: domain.FrameTextEnd, Content: "", OutlineItemID: w.openItem, BlockID: w.openBlock, LogID: w.openLog})
}

// send emits a non-text frame.
func (w *frameWriter) send(f domain.Frame) error {
	if f.Type == domain.FrameText {
		return w.text(f.OutlineItemID, f.BlockID, f.LogID, f.Content.(string))
	}
	if f.Type != domain.FrameTextEnd {
		if err := w.closeText(); err != nil {
			return err
		}
	} else {
		w.open = false
	}
	return w.write(f)
}

// message sends a complete engine-authored text run.
func (w *frameWriter) message(item, block, s string) error {
	if err := w.closeText(); err != nil {
		return err
	}
	if err := w.text(item, block, "", s); err != nil {
		return err
	}
	return w.closeText()
}
