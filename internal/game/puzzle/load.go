package puzzle

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// templateFile is the on-disk shape of a puzzle file: one [Template] per
// character name.
type templateFile struct {
	Characters map[string]*Template `yaml:"characters"`
}

// LoadTemplates reads a YAML puzzle file and returns its templates keyed by
// character name. Every template is validated; a file with any invalid
// template is rejected as a whole.
func LoadTemplates(path string) (map[string]*Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("puzzle: open templates: %w", err)
	}
	defer f.Close()
	return LoadTemplatesFromReader(f)
}

// LoadTemplatesFromReader parses puzzle templates from r. Unknown YAML fields
// are rejected so typos surface at load time instead of as silently missing
// tasks.
func LoadTemplatesFromReader(r io.Reader) (map[string]*Template, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file templateFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("puzzle: parse templates: %w", err)
	}
	if len(file.Characters) == 0 {
		return nil, errors.New("puzzle: templates file defines no characters")
	}

	var errs []error
	for name, tpl := range file.Characters {
		if tpl == nil {
			errs = append(errs, fmt.Errorf("character %q has no template", name))
			continue
		}
		if err := tpl.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("character %q: %w", name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("puzzle: invalid templates: %w", err)
	}
	return file.Characters, nil
}
