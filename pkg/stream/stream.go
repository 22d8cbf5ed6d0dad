// Package stream encodes turn frames as server-sent events and decodes them back.
//
// Each frame travels as one event: a single "data:" line holding the frame as JSON, followed
// by a blank line.
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aretw0/lectern/pkg/domain"
)

const dataPrefix = "data: "

// ContentType is the media type of an encoded stream.
const ContentType = "text/event-stream"

// Encoder writes frames to an event stream, flushing after each one when the writer supports it.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
	buf     bytes.Buffer
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w}
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	return e
}

// Encode writes one frame.
func (e *Encoder) Encode(f domain.Frame) error {
	e.buf.Reset()
	e.buf.WriteString(dataPrefix)
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame %s: %w", f.Type, err)
	}
	e.buf.Write(data)
	e.buf.WriteString("\n\n")
	if _, err := e.w.Write(e.buf.Bytes()); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// Decoder reads frames from an event stream.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// wireFrame defers content decoding until the frame type is known.
type wireFrame struct {
	Type          domain.FrameType `json:"type"`
	Content       json.RawMessage  `json:"content"`
	OutlineItemID string           `json:"outline_item_id"`
	BlockID       string           `json:"block_id"`
	LogID         string           `json:"log_id"`
}

// Decode returns the next frame with its content decoded into the type the frame type
// carries. It returns io.EOF at the end of the stream. Comments and other fields are skipped.
func (d *Decoder) Decode() (domain.Frame, error) {
	var data []byte
	for {
		line, err := d.r.ReadBytes('\n')
		line = bytes.TrimRight(line, "\r\n")
		switch {
		case len(line) == 0:
			if len(data) > 0 {
				return decodeFrame(data)
			}
		case bytes.HasPrefix(line, []byte("data:")):
			chunk := bytes.TrimPrefix(bytes.TrimPrefix(line, []byte("data:")), []byte(" "))
			if len(data) > 0 {
				data = append(data, '\n')
			}
			data = append(data, chunk...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(data) > 0 {
				return decodeFrame(data)
			}
			return domain.Frame{}, err
		}
	}
}

func decodeFrame(data []byte) (domain.Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return domain.Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	f := domain.Frame{Type: w.Type, OutlineItemID: w.OutlineItemID, BlockID: w.BlockID, LogID: w.LogID}
	if len(w.Content) == 0 || string(w.Content) == "null" {
		return f, nil
	}

	var err error
	switch w.Type {
	case domain.FrameButtons:
		f.Content, err = decodeAs[domain.ButtonsContent](w.Content)
	case domain.FrameInput, domain.FramePhone, domain.FrameCheckCode, domain.FrameLogin:
		f.Content, err = decodeAs[domain.InputContent](w.Content)
	case domain.FrameLessonUpdate, domain.FrameChapterUpdate, domain.FrameNextChapter:
		f.Content, err = decodeAs[domain.StatusContent](w.Content)
	case domain.FrameOrder:
		f.Content, err = decodeAs[domain.OrderContent](w.Content)
	case domain.FrameProfileUpdate:
		f.Content, err = decodeAs[domain.ProfileContent](w.Content)
	case domain.FrameUserLogin:
		var p domain.Profile
		p, err = decodeAs[domain.Profile](w.Content)
		f.Content = &p
	default:
		f.Content, err = decodeAs[string](w.Content)
	}
	if err != nil {
		return domain.Frame{}, fmt.Errorf("decode %s content: %w", w.Type, err)
	}
	return f, nil
}

func decodeAs[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}
