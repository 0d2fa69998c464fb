package component

// ResolveOptions controls which paths are auto-registered for every
// component in addition to its declared registered changes.
type ResolveOptions struct {
	// AutoRegisterComponentPath subscribes each component to its own
	// configuration subtree.
	AutoRegisterComponentPath bool
	// AutoRegisterPackagePath subscribes each component to the package
	// shipping it.
	AutoRegisterPackagePath bool
}

// DefaultResolveOptions enables both auto-registrations.
func DefaultResolveOptions() ResolveOptions {
	return ResolveOptions{
		AutoRegisterComponentPath: true,
		AutoRegisterPackagePath:   true,
	}
}

// Subscriptions computes the ordered list of paths whose change must trigger
// the component: the auto-registered paths first, then the declared
// registered changes in order. Pure path construction; no profile access.
// Duplicates are harmless, order is only kept for deterministic logging.
func Subscriptions(c Config, opts ResolveOptions) []string {
	out := make([]string, 0, len(c.RegisteredChanges)+2)
	if opts.AutoRegisterComponentPath {
		out = append(out, c.Path())
	}
	if opts.AutoRegisterPackagePath {
		out = append(out, c.PackagePath())
	}
	out = append(out, c.RegisteredChanges...)
	return out
}
