package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerr "git.home.luguber.info/inful/cdispd/internal/errors"
)

const flatDoc = `{
  "id": 12,
  "elements": {
    "/": {"checksum": "root-cs"},
    "/software/components": {"checksum": "c1"},
    "/software/components/spma": {"checksum": "c2"},
    "/software/components/spma/active": {"checksum": "c3", "value": "true"}
  }
}`

const nestedDoc = `{
  "id": 12,
  "tree": {
    "checksum": "root-cs",
    "children": {
      "software": {
        "checksum": "sw",
        "children": {
          "components": {
            "checksum": "c1",
            "children": {
              "spma": {
                "checksum": "c2",
                "children": {
                  "active": {"checksum": "c3", "value": "true"}
                }
              }
            }
          }
        }
      }
    }
  }
}`

func TestParseFlat(t *testing.T) {
	p, err := ParseJSON([]byte(flatDoc))
	require.NoError(t, err)
	assert.Equal(t, uint64(12), p.ID())
	assert.Equal(t, "root-cs", p.RootChecksum())
	v, ok := p.Value("/software/components/spma/active")
	require.True(t, ok)
	assert.Equal(t, "true", v)
}

func TestParseNestedMatchesFlat(t *testing.T) {
	flat, err := ParseJSON([]byte(flatDoc))
	require.NoError(t, err)
	nested, err := ParseJSON([]byte(nestedDoc))
	require.NoError(t, err)

	for _, pth := range []string{"/", "/software/components", "/software/components/spma", "/software/components/spma/active"} {
		fc, ok := flat.Checksum(pth)
		require.True(t, ok, pth)
		nc, ok := nested.Checksum(pth)
		require.True(t, ok, pth)
		assert.Equal(t, fc, nc, pth)
	}
}

func TestParseRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"not json":   `{"id": 1,`,
		"no id":      `{"elements": {"/": {"checksum": "x"}}}`,
		"no content": `{"id": 3}`,
		"no root":    `{"id": 3, "elements": {"/a": {"checksum": "x"}}}`,
	}
	for name, doc := range cases {
		_, err := ParseJSON([]byte(doc))
		require.Error(t, err, name)
		assert.True(t, cerr.IsCategory(err, cerr.CategoryProfile), name)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	p, err := ParseJSON([]byte(flatDoc))
	require.NoError(t, err)
	data, err := EncodeJSON(p)
	require.NoError(t, err)
	back, err := ParseJSON(data)
	require.NoError(t, err)
	assert.Equal(t, p.ID(), back.ID())
	assert.Equal(t, p.Len(), back.Len())
	assert.Equal(t, p.RootChecksum(), back.RootChecksum())
}
