package output

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"

	"github.com/jmylchreest/specagent/pkg/agent"
)

var errNilOutput = errors.New("nil output")

// JSONWriter renders the full result document.
type JSONWriter struct {
	w      *bufio.Writer
	pretty bool
	indent string
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	return &JSONWriter{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		indent: indent,
	}
}

// Write encodes out as one JSON document followed by a newline.
func (w *JSONWriter) Write(out *agent.Output) error {
	if out == nil {
		return errNilOutput
	}

	var data []byte
	var err error
	if w.pretty {
		data, err = json.MarshalIndent(out, "", w.indent)
	} else {
		data, err = json.Marshal(out)
	}
	if err != nil {
		return err
	}

	if _, err := w.w.Write(data); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONWriter) Close() error {
	return w.w.Flush()
}

// JSONLWriter writes one validated record per line. A failed run is written
// as a single line carrying its status and error.
type JSONLWriter struct {
	w *bufio.Writer
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{
		w: bufio.NewWriter(w),
	}
}

// Write emits the records of out.
func (w *JSONLWriter) Write(out *agent.Output) error {
	if out == nil {
		return errNilOutput
	}

	if out.Status == agent.StatusFailed {
		return w.line(out)
	}
	for _, rec := range out.ValidatedItems {
		if err := w.line(rec); err != nil {
			return err
		}
	}
	return w.w.Flush()
}

func (w *JSONLWriter) line(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(data); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Close flushes the writer.
func (w *JSONLWriter) Close() error {
	return w.w.Flush()
}
