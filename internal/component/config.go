// Package component extracts the declared configuration components from a
// profile and resolves their change subscriptions.
package component

import (
	"git.home.luguber.info/inful/cdispd/internal/foundation"
)

// Well-known profile paths.
const (
	// ComponentsPath is the subtree holding all component declarations.
	ComponentsPath = "/software/components"
	// PackagePathPrefix is the naming convention tying a component to the
	// package that ships it.
	PackagePathPrefix = "/software/packages/ncm_"
	// registerChangeChild holds a component's extra subscribed paths.
	registerChangeChild = "register_change"
	activeProperty      = "active"
	dispatchProperty    = "dispatch"
)

// Config is the typed view of one component's declaration under
// /software/components/<name>. Active and Dispatch are optional: a missing
// property means the component is misconfigured, which is weaker than false.
type Config struct {
	Name              string
	Active            foundation.Option[bool]
	Dispatch          foundation.Option[bool]
	RegisteredChanges []string
}

// IsActive reports whether the component is declared active. A missing or
// unreadable active property counts as inactive.
func (c Config) IsActive() bool {
	return c.Active.UnwrapOr(false)
}

// IsDispatchable reports whether the component may ever be auto-invoked.
// A missing dispatch property counts as not dispatchable.
func (c Config) IsDispatchable() bool {
	return c.Dispatch.UnwrapOr(false)
}

// Path returns the component's own configuration path.
func (c Config) Path() string {
	return ComponentsPath + "/" + c.Name
}

// PackagePath returns the path of the package shipping the component,
// derived from the fixed naming convention.
func (c Config) PackagePath() string {
	return PackagePathPrefix + c.Name
}

// Registry maps component name to its extracted configuration for one
// profile. Recomputed fresh from every profile, never mutated.
type Registry map[string]Config

// Names returns the registered component names in unspecified order.
func (r Registry) Names() []string {
	out := make([]string, 0, len(r))
	for name := range r {
		out = append(out, name)
	}
	return out
}
