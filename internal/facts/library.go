package facts

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/semforge/semforge/internal/semantic"
)

// Library is the reusable set of fact definitions that generated
// models select from by name.
type Library struct {
	facts []semantic.Fact
	index map[string]int
}

// libraryFile matches both shapes the library ships in: a bare YAML
// sequence of facts, or a mapping with a facts key.
type libraryFile struct {
	Facts []semantic.Fact `yaml:"facts"`
}

func LoadLibrary(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fact library %q: %w", path, err)
	}
	return ParseLibrary(data)
}

func ParseLibrary(data []byte) (*Library, error) {
	var asList []semantic.Fact
	if err := yaml.Unmarshal(data, &asList); err == nil {
		return newLibrary(asList)
	}

	var asFile libraryFile
	if err := yaml.Unmarshal(data, &asFile); err == nil && asFile.Facts != nil {
		return newLibrary(asFile.Facts)
	}

	var single struct {
		Facts semantic.Fact `yaml:"facts"`
	}
	if err := yaml.Unmarshal(data, &single); err == nil && single.Facts.Name != "" {
		return newLibrary([]semantic.Fact{single.Facts})
	}

	return nil, fmt.Errorf("parse fact library: unsupported document shape")
}

func newLibrary(defs []semantic.Fact) (*Library, error) {
	lib := &Library{
		facts: semantic.CloneFacts(defs),
		index: make(map[string]int, len(defs)),
	}
	for i, fact := range lib.facts {
		if fact.Name == "" {
			return nil, fmt.Errorf("parse fact library: fact %d has no name", i)
		}
		if _, exists := lib.index[fact.Name]; exists {
			return nil, fmt.Errorf("parse fact library: duplicate fact %q", fact.Name)
		}
		lib.index[fact.Name] = i
	}
	return lib, nil
}

func (l *Library) Len() int {
	return len(l.facts)
}

// Names returns all fact names in library order.
func (l *Library) Names() []string {
	names := make([]string, len(l.facts))
	for i, fact := range l.facts {
		names[i] = fact.Name
	}
	return names
}

// Lookup resolves the requested names in request order. Unknown names
// are returned separately; they are warnings for the caller, not
// errors, because dictionary queries routinely reference columns the
// library does not define yet.
func (l *Library) Lookup(names []string) (selected []semantic.Fact, missing []string) {
	for _, name := range names {
		idx, ok := l.index[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		selected = append(selected, l.facts[idx])
	}
	return semantic.CloneFacts(selected), missing
}
