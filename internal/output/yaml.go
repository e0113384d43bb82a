package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/specagent/pkg/agent"
)

// YAMLWriter renders results as YAML documents.
type YAMLWriter struct {
	w       *bufio.Writer
	encoder *yaml.Encoder
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	bw := bufio.NewWriter(w)
	enc := yaml.NewEncoder(bw)
	enc.SetIndent(2)
	return &YAMLWriter{w: bw, encoder: enc}
}

// Write encodes out as one YAML document.
func (w *YAMLWriter) Write(out *agent.Output) error {
	if out == nil {
		return errNilOutput
	}
	if err := w.encoder.Encode(out); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close finishes the YAML stream and flushes.
func (w *YAMLWriter) Close() error {
	if err := w.encoder.Close(); err != nil {
		return err
	}
	return w.w.Flush()
}
