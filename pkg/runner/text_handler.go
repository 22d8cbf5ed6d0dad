package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/muesli/termenv"

	"github.com/aretw0/lectern/pkg/domain"
)

// ContentRenderer transforms a complete text run before it is printed.
// This allows markdown rendering without coupling the runner to a terminal library.
type ContentRenderer func(string) (string, error)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer

	out  *termenv.Output
	text strings.Builder

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextHandlerRenderer configures the content renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// NewTextHandler creates a handler for standard text IO. Nil arguments mean Stdin and Stdout.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
		out:    termenv.NewOutput(w),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		go h.pump()
	})
}

// pump reads lines in the background so Input can give up on a canceled context.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				h.inputChan <- inputResult{err: err}
			}
			close(h.inputChan)
			return
		}
	}
}

// Output prints a frame. Text increments are buffered until their run ends, then rendered.
func (h *TextHandler) Output(ctx context.Context, f domain.Frame) error {
	switch f.Type {
	case domain.FrameText:
		s, _ := f.Content.(string)
		h.text.WriteString(s)
		return nil
	case domain.FrameTextEnd:
		return h.flushText()
	}

	switch c := f.Content.(type) {
	case domain.ButtonsContent:
		for i, b := range c.Buttons {
			fmt.Fprintf(h.Writer, "  [%d] %s\n", i+1, b.Label)
		}
		if c.Multiple {
			fmt.Fprintln(h.Writer, h.faint("  (several answers: 1,3)"))
		}
	case domain.InputContent:
		if c.Label != "" {
			fmt.Fprintln(h.Writer, h.faint(c.Label))
		}
	case domain.OrderContent:
		fmt.Fprintf(h.Writer, "Order %s: %s, price %d (%s). Press Enter once paid.\n", c.OrderID, c.Product, c.Price, c.Status)
	case domain.StatusContent:
		fmt.Fprintln(h.Writer, h.faint(fmt.Sprintf("» %s %s: %s", c.PositionCode, c.Title, c.Status)))
	case *domain.Profile:
		fmt.Fprintln(h.Writer, h.faint("Signed in as "+c.Phone))
	case string:
		if f.Type == domain.FrameError || f.Type == domain.FrameBusy {
			fmt.Fprintln(h.Writer, h.out.String("! "+c).Bold())
		}
	}
	return nil
}

func (h *TextHandler) flushText() error {
	msg := h.text.String()
	h.text.Reset()
	if msg == "" {
		return nil
	}
	output := msg
	if h.Renderer != nil {
		if rendered, err := h.Renderer(msg); err == nil {
			output = rendered
		}
	}
	_, err := fmt.Fprintln(h.Writer, strings.TrimSpace(output))
	return err
}

// Input reads one line, mapping option numbers to button values.
func (h *TextHandler) Input(ctx context.Context, p Prompt) (string, error) {
	h.initPump()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			if p.Kind == "" {
				fmt.Fprint(h.Writer, h.faint("(Enter to continue) "))
			}
			fmt.Fprint(h.Writer, "> ")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			clean, err := SanitizeInput(strings.TrimSpace(res.text))
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			if len(p.Buttons) > 0 {
				return choose(p, clean), nil
			}
			return clean, nil
		}
	}
}

// choose maps "2" or "1,3" to button values. Anything else is passed through as typed.
func choose(p Prompt, answer string) string {
	parts := []string{answer}
	if p.Multiple {
		parts = strings.Split(answer, ",")
	}
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 || n > len(p.Buttons) {
			return answer
		}
		values = append(values, p.Buttons[n-1].Value)
	}
	return strings.Join(values, ",")
}

// SystemOutput prints a meta-message.
func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	_, err := fmt.Fprintf(h.Writer, "\n%s\n", h.faint("[System] "+msg))
	return err
}

func (h *TextHandler) faint(s string) string {
	return h.out.String(s).Faint().String()
}
