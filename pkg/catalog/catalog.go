package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed storyline.yaml
var defaultStoryline []byte

// CapturesName marks the stage whose answer carries the subject's identity.
const CapturesName = "name"

// Stage is one topic slot in the fixed interview sequence.
type Stage struct {
	ID        string   `yaml:"id"`
	Directive string   `yaml:"directive"`
	Variants  []string `yaml:"variants"`
	Captures  string   `yaml:"captures,omitempty"`
}

// Catalog is the immutable ordered list of interview stages. It is shared
// freely across goroutines after construction.
type Catalog struct {
	stages []Stage
}

type storylineFile struct {
	Stages []Stage `yaml:"stages"`
}

// Default returns the catalog built from the embedded storyline. The embedded
// file is validated at build time by tests, so failure here is fatal.
func Default() *Catalog {
	c, err := Parse(defaultStoryline)
	if err != nil {
		panic(fmt.Sprintf("embedded storyline is invalid: %v", err))
	}
	return c
}

// Load reads a storyline catalog from a YAML file on disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read storyline %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates a storyline document.
func Parse(data []byte) (*Catalog, error) {
	var f storylineFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "unmarshal storyline")
	}
	if len(f.Stages) == 0 {
		return nil, errors.New("storyline has no stages")
	}
	seen := map[string]bool{}
	for i, st := range f.Stages {
		if st.ID == "" {
			return nil, errors.Errorf("stage %d has no id", i)
		}
		if seen[st.ID] {
			return nil, errors.Errorf("duplicate stage id %q", st.ID)
		}
		seen[st.ID] = true
		if st.Directive == "" {
			return nil, errors.Errorf("stage %q has no directive", st.ID)
		}
		if len(st.Variants) == 0 {
			return nil, errors.Errorf("stage %q has no fallback variants", st.ID)
		}
		for j, v := range st.Variants {
			if v == "" {
				return nil, errors.Errorf("stage %q variant %d is empty", st.ID, j)
			}
		}
	}
	return &Catalog{stages: f.Stages}, nil
}

// Len returns the number of stages N. Stage index N denotes the terminal state.
func (c *Catalog) Len() int { return len(c.stages) }

// Stage returns the stage at index i. Out-of-range access is a programming
// error and panics.
func (c *Catalog) Stage(i int) Stage {
	if i < 0 || i >= len(c.stages) {
		panic(fmt.Sprintf("catalog: stage index %d out of range [0,%d)", i, len(c.stages)))
	}
	return c.stages[i]
}

// IdentityStage returns the index of the stage designated to elicit the
// subject's name, or -1 when the storyline has none.
func (c *Catalog) IdentityStage() int {
	for i, st := range c.stages {
		if st.Captures == CapturesName {
			return i
		}
	}
	return -1
}
