package profile

import (
	"encoding/json"

	cerr "git.home.luguber.info/inful/cdispd/internal/errors"
)

// wireProfile is the on-disk JSON shape. Two encodings are accepted: a flat
// element map ("elements") and a nested tree ("tree"). Caches written by
// older fetch tooling use the nested form.
type wireProfile struct {
	ID       uint64             `json:"id"`
	Elements map[string]Element `json:"elements,omitempty"`
	Tree     *wireNode          `json:"tree,omitempty"`
}

type wireNode struct {
	Checksum string               `json:"checksum"`
	Value    string               `json:"value,omitempty"`
	Children map[string]*wireNode `json:"children,omitempty"`
}

// ParseJSON decodes a profile from its JSON encoding.
func ParseJSON(data []byte) (*Profile, error) {
	var w wireProfile
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, cerr.Wrap(err, cerr.CategoryProfile, cerr.SeverityError, "malformed profile document")
	}
	if w.ID == 0 {
		return nil, cerr.New(cerr.CategoryProfile, cerr.SeverityError, "profile document has no id")
	}

	var elements map[string]Element
	switch {
	case w.Tree != nil:
		elements = make(map[string]Element)
		flatten("/", w.Tree, elements)
	case w.Elements != nil:
		elements = w.Elements
	default:
		return nil, cerr.New(cerr.CategoryProfile, cerr.SeverityError, "profile document has neither elements nor tree")
	}

	p := New(w.ID, elements)
	if _, ok := p.Checksum("/"); !ok {
		return nil, cerr.New(cerr.CategoryProfile, cerr.SeverityError, "profile document has no root element").
			WithContext("profile_id", w.ID)
	}
	return p, nil
}

func flatten(pth string, n *wireNode, out map[string]Element) {
	out[Normalize(pth)] = Element{Checksum: n.Checksum, Value: n.Value}
	for name, child := range n.Children {
		childPath := pth + "/" + name
		if pth == "/" {
			childPath = "/" + name
		}
		flatten(childPath, child, out)
	}
}

// EncodeJSON renders a profile in the flat wire form. Used to persist the
// accepted pivot profile across restarts.
func EncodeJSON(p *Profile) ([]byte, error) {
	w := wireProfile{ID: p.id, Elements: p.elements}
	return json.Marshal(w)
}
