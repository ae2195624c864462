package tool

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrUndeclaredCapability is returned when a tool name is outside the catalog's closed id set.
	ErrUndeclaredCapability = errors.New("tool: capability id not declared")
	// ErrDuplicateTool is returned when a tool name is registered twice.
	ErrDuplicateTool = errors.New("tool: duplicate registration")
)

// Catalog holds the direct tools available to the roster. Its set of ids is
// closed: only names declared at construction may be registered, so a typo
// fails at startup instead of at call time.
type Catalog struct {
	mu       sync.RWMutex
	declared map[string]struct{}
	tools    map[string]Tool
}

// NewCatalog creates a catalog accepting exactly the given ids.
func NewCatalog(ids ...string) *Catalog {
	declared := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		declared[id] = struct{}{}
	}

	return &Catalog{declared: declared, tools: make(map[string]Tool, len(ids))}
}

// Register adds t under its name.
func (c *Catalog) Register(t Tool) error {
	name := t.Name()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.declared[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUndeclaredCapability, name)
	}

	if _, ok := c.tools[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, name)
	}

	c.tools[name] = t

	return nil
}

// MustRegister is like Register but panics on error.
func (c *Catalog) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := c.Register(t); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the tool registered under name.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.tools[name]

	return t, ok
}

// Names returns the registered tool names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.tools))
	for n := range c.tools {
		names = append(names, n)
	}

	slices.Sort(names)

	return names
}

// Missing returns declared ids without a registered tool.
func (c *Catalog) Missing() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var missing []string
	for id := range c.declared {
		if _, ok := c.tools[id]; !ok {
			missing = append(missing, id)
		}
	}

	slices.Sort(missing)

	return missing
}
