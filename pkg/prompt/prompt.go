// Package prompt renders the extraction and repair prompts sent to the model.
package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/tyler-sommer/stick"

	"github.com/jmylchreest/specagent/pkg/plan"
	"github.com/jmylchreest/specagent/pkg/schema"
	"github.com/jmylchreest/specagent/pkg/segment"
)

// Template tags.
const (
	ExtractSystem = "extract_system"
	ExtractUser   = "extract_user"
	RepairSystem  = "repair_system"
	RepairUser    = "repair_user"
)

//go:embed templates/*.twig
var builtin embed.FS

// Renderer holds the prompt templates.
type Renderer struct {
	env       *stick.Env
	templates map[string]string
	schema    schema.Schema
	schemaDoc string
}

// Option configures a Renderer.
type Option func(*Renderer) error

// WithFS loads every *.twig file under dir, overriding built-in templates
// with the same tag.
func WithFS(fsys fs.FS, dir string) Option {
	return func(r *Renderer) error {
		return loadTemplates(r.templates, fsys, dir)
	}
}

// WithTemplate sets one template by tag.
func WithTemplate(tag, tpl string) Option {
	return func(r *Renderer) error {
		r.templates[tag] = tpl
		return nil
	}
}

// New builds a Renderer for the given record schema.
func New(s schema.Schema, opts ...Option) (*Renderer, error) {
	r := &Renderer{
		env:       stick.New(nil),
		templates: make(map[string]string),
		schema:    s,
		schemaDoc: s.JSONSchemaString(),
	}
	if err := loadTemplates(r.templates, builtin, "templates"); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	for _, tag := range []string{ExtractSystem, ExtractUser, RepairSystem, RepairUser} {
		if _, ok := r.templates[tag]; !ok {
			return nil, fmt.Errorf("template %q not found", tag)
		}
	}
	return r, nil
}

// Extraction renders the prompt pair for one goal and chunk.
func (r *Renderer) Extraction(goal plan.Goal, chunk segment.Chunk) (system, user string, err error) {
	system, err = r.render(ExtractSystem, map[string]stick.Value{
		"schema": r.schemaDoc,
		"fields": r.schema.ToPromptDescription(),
	})
	if err != nil {
		return "", "", err
	}
	user, err = r.render(ExtractUser, map[string]stick.Value{
		"goal":      goal.Name,
		"goal_id":   goal.ID,
		"keywords":  strings.Join(goal.Keywords, ", "),
		"text":      chunk.Text,
		"chunk_id":  chunk.ID,
		"reference": chunk.SourceRef,
	})
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}

// Repair renders the prompt pair asking the model to fix payload. The errors
// are joined with "; ".
func (r *Renderer) Repair(errs []string, payload string) (system, user string, err error) {
	system, err = r.render(RepairSystem, map[string]stick.Value{
		"schema": r.schemaDoc,
	})
	if err != nil {
		return "", "", err
	}
	user, err = r.render(RepairUser, map[string]stick.Value{
		"errors":  strings.Join(errs, "; "),
		"payload": payload,
	})
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}

func (r *Renderer) render(tag string, vars map[string]stick.Value) (string, error) {
	tpl := r.templates[tag]
	var out strings.Builder
	if err := r.env.Execute(tpl, &out, vars); err != nil {
		return "", fmt.Errorf("execute %q: %w", tag, err)
	}
	return strings.TrimSpace(out.String()), nil
}

func loadTemplates(dst map[string]string, fsys fs.FS, dir string) error {
	return fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".twig") {
			return nil
		}
		content, readErr := fs.ReadFile(fsys, path)
		if readErr != nil {
			return fmt.Errorf("read %s: %w", path, readErr)
		}
		dst[strings.TrimSuffix(filepath.Base(path), ".twig")] = string(content)
		return nil
	})
}
