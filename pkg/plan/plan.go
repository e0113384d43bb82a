// Package plan provides the extraction goals the agent looks for.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidGoals is returned when a goal set fails validation.
var ErrInvalidGoals = errors.New("invalid extraction goals")

// Goal is a named target concept with trigger keywords.
type Goal struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// Planner returns the ordered goal set for a run.
type Planner interface {
	Plan() []Goal
}

// Static is a fixed goal set.
type Static []Goal

// Plan returns a copy of the goals so callers cannot mutate the set.
func (s Static) Plan() []Goal {
	out := make([]Goal, len(s))
	for i, g := range s {
		out[i] = Goal{ID: g.ID, Name: g.Name, Keywords: append([]string(nil), g.Keywords...)}
	}
	return out
}

// DefaultGoals returns the built-in fire-safety goal set.
func DefaultGoals() Static {
	return Static{
		{ID: "goal_firewall", Name: "Fire-resistance", Keywords: []string{"防火墙", "耐火极限", "firewall", "fire wall", "fire-resistance"}},
		{ID: "goal_distance", Name: "Fire safety distance", Keywords: []string{"防火间距", "fire separation distance"}},
		{ID: "goal_materials", Name: "Building materials", Keywords: []string{"材料", "燃烧性能", "combustibility"}},
	}
}

type goalFile struct {
	Goals []Goal `json:"goals" yaml:"goals"`
}

// LoadGoals reads a goal set from a YAML or JSON file of the form
// {goals: [{id, name, keywords}]}.
func LoadGoals(path string) (Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read goals file: %w", err)
	}

	var f goalFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &f)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("unsupported goals file format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parse goals file %s: %w", path, err)
	}

	goals := Static(f.Goals)
	if err := goals.Validate(); err != nil {
		return nil, err
	}
	return goals, nil
}

// Validate checks that ids are non-empty and unique and that every goal has
// at least one non-empty keyword.
func (s Static) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no goals defined", ErrInvalidGoals)
	}
	seen := make(map[string]bool, len(s))
	for i, g := range s {
		if strings.TrimSpace(g.ID) == "" {
			return fmt.Errorf("%w: goal %d has no id", ErrInvalidGoals, i)
		}
		if seen[g.ID] {
			return fmt.Errorf("%w: duplicate goal id %q", ErrInvalidGoals, g.ID)
		}
		seen[g.ID] = true

		hasKeyword := false
		for _, kw := range g.Keywords {
			if kw != "" {
				hasKeyword = true
				break
			}
		}
		if !hasKeyword {
			return fmt.Errorf("%w: goal %q has no keywords", ErrInvalidGoals, g.ID)
		}
	}
	return nil
}
