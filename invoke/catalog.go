// Package invoke resolves model names and runs comparison entrants against
// the model provider.
package invoke

import (
	"fmt"
	"sort"

	arena "github.com/lemon-tea-ai/arena"
)

// Catalog is the registry of models available for comparison. It is built
// once at startup and read-only afterwards, so no locking is needed.
type Catalog struct {
	models map[string]arena.Model
	names  []string
}

// NewCatalog builds a catalog from the given models. Later entries with a
// duplicate name override earlier ones.
func NewCatalog(models ...arena.Model) *Catalog {
	c := &Catalog{models: make(map[string]arena.Model, len(models))}
	for _, m := range models {
		if _, exists := c.models[m.Name]; !exists {
			c.names = append(c.names, m.Name)
		}
		c.models[m.Name] = m
	}
	sort.Strings(c.names)
	return c
}

// DefaultCatalog returns the built-in model lineup.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		arena.Model{Name: "gpt-4o", ID: "gpt-4o"},
		arena.Model{Name: "gpt-4o-mini", ID: "gpt-4o-mini"},
		arena.Model{Name: "gpt-4.1", ID: "gpt-4.1"},
		arena.Model{Name: "gpt-4.1-mini", ID: "gpt-4.1-mini"},
		arena.Model{Name: "o3-mini", ID: "o3-mini"},
	)
}

// Known reports whether name is registered.
func (c *Catalog) Known(name string) bool {
	_, ok := c.models[name]
	return ok
}

// Resolve maps model names to full Model entries. Unknown names are an
// error; callers validate inputs first, so hitting one here is a bug.
func (c *Catalog) Resolve(names []string) ([]arena.Model, error) {
	out := make([]arena.Model, 0, len(names))
	for _, n := range names {
		m, ok := c.models[n]
		if !ok {
			return nil, fmt.Errorf("%w: unknown model %q", arena.ErrValidation, n)
		}
		out = append(out, m)
	}
	return out, nil
}

// Names returns all registered model names, sorted.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Models returns all registered models in name order.
func (c *Catalog) Models() []arena.Model {
	out := make([]arena.Model, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.models[n])
	}
	return out
}

// Len returns the number of registered models.
func (c *Catalog) Len() int { return len(c.models) }
