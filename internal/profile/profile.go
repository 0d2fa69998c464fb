// Package profile models a node configuration profile: an immutable tree of
// elements keyed by slash-separated paths, each carrying an opaque content
// checksum, identified by a monotonically increasing profile id.
package profile

import (
	"path"
	"sort"
	"strings"
)

// Element is a single node of the configuration tree. The checksum is opaque:
// it is only ever compared for equality. Value is the scalar payload for leaf
// elements that carry one (flags, registered change paths); empty otherwise.
type Element struct {
	Checksum string `json:"checksum"`
	Value    string `json:"value,omitempty"`
}

// Profile is an immutable view of one configuration snapshot. All accessors
// are read-only; a Profile is never mutated after construction.
type Profile struct {
	id       uint64
	elements map[string]Element
}

// New builds a Profile from an element map. Paths are normalized to cleaned,
// absolute form. Intended for codec use and tests.
func New(id uint64, elements map[string]Element) *Profile {
	m := make(map[string]Element, len(elements))
	for p, e := range elements {
		m[Normalize(p)] = e
	}
	return &Profile{id: id, elements: m}
}

// Normalize cleans a tree path into canonical absolute form.
func Normalize(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// ID returns the profile's configuration id.
func (p *Profile) ID() uint64 { return p.id }

// Has reports whether an element exists at pth.
func (p *Profile) Has(pth string) bool {
	_, ok := p.elements[Normalize(pth)]
	return ok
}

// Checksum returns the checksum of the element at pth.
func (p *Profile) Checksum(pth string) (string, bool) {
	e, ok := p.elements[Normalize(pth)]
	return e.Checksum, ok
}

// Value returns the scalar value of the element at pth.
func (p *Profile) Value(pth string) (string, bool) {
	e, ok := p.elements[Normalize(pth)]
	return e.Value, ok
}

// RootChecksum returns the checksum of the tree root. Profiles produced by
// the codec always carry a root element.
func (p *Profile) RootChecksum() string {
	return p.elements["/"].Checksum
}

// Children returns the names of the direct children of pth, sorted. A child
// is any element exactly one path segment below pth.
func (p *Profile) Children(pth string) []string {
	base := Normalize(pth)
	prefix := base + "/"
	if base == "/" {
		prefix = "/"
	}
	seen := make(map[string]struct{})
	for ep := range p.elements {
		if !strings.HasPrefix(ep, prefix) || ep == base {
			continue
		}
		rest := ep[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		if rest != "" {
			seen[rest] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of elements in the tree.
func (p *Profile) Len() int { return len(p.elements) }
