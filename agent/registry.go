package agent

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vaxmesh/core"
	"github.com/hupe1980/vaxmesh/tool"
)

// ErrInvalidRoster is returned by NewRegistry when the definitions do not
// form a consistent capability graph.
var ErrInvalidRoster = errors.New("agent: invalid roster")

// Registry holds the validated agent definitions and their toolsets.
type Registry struct {
	root     string
	order    []string
	defs     map[string]Definition
	toolsets map[string]*Toolset
}

// NewRegistry validates defs against catalog and builds the registry.
// All problems are reported together, joined under ErrInvalidRoster.
func NewRegistry(catalog *tool.Catalog, root string, defs ...Definition) (*Registry, error) {
	r := &Registry{
		root:     root,
		defs:     make(map[string]Definition, len(defs)),
		toolsets: make(map[string]*Toolset, len(defs)),
	}

	var errs []error

	for _, d := range defs {
		if d.Name == "" {
			errs = append(errs, errors.New("agent with empty name"))
			continue
		}

		if _, dup := r.defs[d.Name]; dup {
			errs = append(errs, fmt.Errorf("agent %q registered twice", d.Name))
			continue
		}

		r.defs[d.Name] = d
		r.order = append(r.order, d.Name)
	}

	if _, ok := r.defs[root]; !ok {
		errs = append(errs, fmt.Errorf("root agent %q is not registered", root))
	}

	for _, name := range r.order {
		ts, err := r.buildToolset(catalog, r.defs[name])
		if err != nil {
			errs = append(errs, err)
			continue
		}

		r.toolsets[name] = ts
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoster, errors.Join(errs...))
	}

	return r, nil
}

func (r *Registry) buildToolset(catalog *tool.Catalog, d Definition) (*Toolset, error) {
	var errs []error

	names := map[string]struct{}{}
	claim := func(name string) bool {
		if _, taken := names[name]; taken {
			errs = append(errs, fmt.Errorf("agent %q: tool name %q bound twice", d.Name, name))
			return false
		}

		names[name] = struct{}{}

		return true
	}

	direct := make([]tool.Tool, 0, len(d.Tools))

	for _, id := range d.Tools {
		t, ok := catalog.Lookup(id)
		if !ok {
			errs = append(errs, fmt.Errorf("agent %q: tool %q is not in the catalog", d.Name, id))
			continue
		}

		if claim(id) {
			direct = append(direct, t)
		}
	}

	delegates := make([]*tool.Delegate, 0, len(d.Delegates))

	for _, target := range d.Delegates {
		td, ok := r.defs[target]
		if !ok {
			errs = append(errs, fmt.Errorf("agent %q: delegate %q is not a registered agent", d.Name, target))
			continue
		}

		if target == d.Name {
			errs = append(errs, fmt.Errorf("agent %q: cannot delegate to itself", d.Name))
			continue
		}

		if claim(target) && claim(tool.DelegateName(target)) {
			delegates = append(delegates, tool.NewDelegate(target, td.Description))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return newToolset(direct, delegates), nil
}

// Root returns the top-level router agent's name.
func (r *Registry) Root() string { return r.root }

// Names returns agent names in registration order.
func (r *Registry) Names() []string { return append([]string(nil), r.order...) }

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Toolset returns the capability sandbox of the named agent.
func (r *Registry) Toolset(name string) (*Toolset, bool) {
	ts, ok := r.toolsets[name]
	return ts, ok
}

// EntryPoint returns the agent a caller-supplied name resumes into: name
// itself when it is resumable, otherwise the root.
func (r *Registry) EntryPoint(name string) string {
	if d, ok := r.defs[name]; ok && (d.Resumable || name == r.root) {
		return name
	}

	return r.root
}

// ReplyTo returns the agent the next user message should be published to
// after name answered with plain text.
func (r *Registry) ReplyTo(name string, sess core.UserSessionContext) string {
	d, ok := r.defs[name]
	if !ok || d.OneShot || sess.Restart {
		return r.root
	}

	return name
}
