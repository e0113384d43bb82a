package agent

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxDocumentSize bounds the documents a run will ingest.
const DefaultMaxDocumentSize int64 = 10 << 20

var (
	// ErrEmptyDocument is returned when no document was given.
	ErrEmptyDocument = errors.New("no document given")
	// ErrNotText is returned for documents that are not UTF-8 text.
	ErrNotText = errors.New("document is not UTF-8 text")
	// ErrDocumentTooLarge is returned for documents over the size limit.
	ErrDocumentTooLarge = errors.New("document too large")
)

// Source supplies the document for a run.
type Source interface {
	// Name identifies the document; it is echoed in every record.
	Name() string
	// Read returns the raw document bytes. Sources should fail with
	// ErrDocumentTooLarge without reading when they can tell up front.
	Read(maxSize int64) ([]byte, error)
}

// File is a Source backed by a path on disk.
type File string

// Name returns the path.
func (f File) Name() string { return string(f) }

// Read loads the file.
func (f File) Read(maxSize int64) ([]byte, error) {
	path := string(f)
	if path == "" {
		return nil, ErrEmptyDocument
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("%w: %s exceeds %s", ErrDocumentTooLarge,
			humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(maxSize)))
	}
	return os.ReadFile(path)
}

// Text is an in-memory Source.
type Text struct {
	Path    string
	Content string
}

// Name returns the configured path.
func (t Text) Name() string { return t.Path }

// Read returns the content.
func (t Text) Read(int64) ([]byte, error) {
	return []byte(t.Content), nil
}

// decodeDocument checks that data is UTF-8 text within maxSize. Any valid
// UTF-8 without NUL bytes is text; the MIME sniff only names what was found
// otherwise.
func decodeDocument(data []byte, maxSize int64) (string, error) {
	if maxSize > 0 && int64(len(data)) > maxSize {
		return "", fmt.Errorf("%w: %s exceeds %s", ErrDocumentTooLarge,
			humanize.IBytes(uint64(len(data))), humanize.IBytes(uint64(maxSize)))
	}
	if utf8.Valid(data) && bytes.IndexByte(data, 0) < 0 {
		return string(data), nil
	}
	if mt := mimetype.Detect(data); !isText(mt) || strings.Contains(mt.String(), "utf-16") {
		return "", fmt.Errorf("%w: detected %s", ErrNotText, mt.String())
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: invalid UTF-8 byte sequence", ErrNotText)
	}
	return "", fmt.Errorf("%w: contains NUL bytes", ErrNotText)
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
