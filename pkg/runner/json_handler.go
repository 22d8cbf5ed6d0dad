package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/aretw0/lectern/pkg/domain"
)

// JSONHandler speaks NDJSON: every frame is one line on the writer and every answer is one
// line on the reader. An answer line may be a JSON string, a JSON array of strings (several
// options of a multiple select) or raw text.
type JSONHandler struct {
	in  *bufio.Reader
	enc *json.Encoder
}

// NewJSONHandler creates a handler over r and w, defaulting to stdin and stdout.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{in: bufio.NewReader(r), enc: json.NewEncoder(w)}
}

func (h *JSONHandler) Output(ctx context.Context, f domain.Frame) error {
	return h.enc.Encode(f)
}

func (h *JSONHandler) Input(ctx context.Context, p Prompt) (string, error) {
	line, err := h.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return SanitizeInput(decodeAnswer(strings.TrimSpace(line)))
}

func decodeAnswer(line string) string {
	var s string
	if json.Unmarshal([]byte(line), &s) == nil {
		return s
	}
	var many []string
	if json.Unmarshal([]byte(line), &many) == nil {
		return strings.Join(many, ",")
	}
	return line
}

// SystemOutput emits the message as a line of type "system".
func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.enc.Encode(map[string]string{"type": "system", "content": msg})
}
