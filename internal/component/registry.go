package component

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	cerr "git.home.luguber.info/inful/cdispd/internal/errors"
	"git.home.luguber.info/inful/cdispd/internal/foundation"
	"git.home.luguber.info/inful/cdispd/internal/logfields"
	"git.home.luguber.info/inful/cdispd/internal/profile"
)

// Extract builds the component registry for a profile. A profile without the
// components subtree yields an empty registry and a MissingComponentsPath
// error; the caller decides how hard that is (on the pivot profile it simply
// means no prior components).
func Extract(p *profile.Profile) (Registry, error) {
	if !p.Has(ComponentsPath) {
		return Registry{}, cerr.MissingComponentsPath(p.ID())
	}

	reg := make(Registry)
	for _, name := range p.Children(ComponentsPath) {
		base := ComponentsPath + "/" + name
		cfg := Config{
			Name:              name,
			Active:            flagProperty(p, name, base, activeProperty),
			Dispatch:          flagProperty(p, name, base, dispatchProperty),
			RegisteredChanges: registeredChanges(p, base),
		}
		reg[name] = cfg
	}
	return reg, nil
}

// flagProperty reads an optional boolean property of a component. Absent or
// unparsable values come back as None and are logged once, here, so the diff
// engine can stay free of property plumbing.
func flagProperty(p *profile.Profile, name, base, property string) foundation.Option[bool] {
	raw, ok := p.Value(base + "/" + property)
	if !ok {
		slog.Warn("component property missing",
			logfields.Component(name), slog.String("property", property))
		return foundation.None[bool]()
	}
	v, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		slog.Warn("component property unreadable",
			logfields.Component(name), slog.String("property", property), slog.String("raw", raw))
		return foundation.None[bool]()
	}
	return foundation.Some(v)
}

// registeredChanges returns the component's extra subscribed paths in
// declared order. The list is encoded as numbered children of
// register_change; non-numeric children are ignored.
func registeredChanges(p *profile.Profile, base string) []string {
	listPath := base + "/" + registerChangeChild
	if !p.Has(listPath) {
		return nil
	}
	type entry struct {
		idx  int
		path string
	}
	var entries []entry
	for _, child := range p.Children(listPath) {
		idx, err := strconv.Atoi(child)
		if err != nil {
			continue
		}
		if v, ok := p.Value(listPath + "/" + child); ok && v != "" {
			entries = append(entries, entry{idx: idx, path: profile.Normalize(v)})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.path)
	}
	return out
}
