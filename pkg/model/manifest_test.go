package model

import (
	"encoding/json"
	"testing"

	"github.com/oneconcern/slides/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mustEncode(t testing.TB, m Manifest) string {
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return string(b)
}

func TestDecodeManifest(t *testing.T) {
	for _, toPin := range []struct {
		name     string
		stored   string
		expected string
	}{
		{name: "objects", stored: `[{"src":"a.png"},{"src":"b.png","title":"B"}]`, expected: `[{"src":"a.png"},{"src":"b.png","title":"B"}]`},
		{name: "legacy paths", stored: `["x.png","y.png"]`, expected: `[{"src":"x.png"},{"src":"y.png"}]`},
		{name: "legacy wrapper", stored: `{"slides":["z.png"]}`, expected: `[{"src":"z.png"}]`},
		{name: "legacy wrapper with objects", stored: `{"slides":[{"src":"z.png","duration":5}],"version":2}`, expected: `[{"src":"z.png","duration":5}]`},
		{name: "mixed", stored: `["x.png",{"src":"y.png"}]`, expected: `[{"src":"x.png"},{"src":"y.png"}]`},
		{name: "empty list", stored: `[]`, expected: `[]`},
		{name: "wrapper without slides", stored: `{"other":true}`, expected: `[]`},
		{name: "wrapper with non-list slides", stored: `{"slides":"x.png"}`, expected: `[]`},
		{name: "scalar", stored: `42`, expected: `[]`},
		{name: "null entry", stored: `["a.png",null]`, expected: `[{"src":"a.png"},{}]`},
		{name: "scalar entries", stored: `[1,true,["x.png"]]`, expected: `[{},{},{}]`},
		{name: "non-string src", stored: `[{"src":7,"title":"T"}]`, expected: `[{"src":7,"title":"T"}]`},
		{name: "wrapper with null entry", stored: `{"slides":[null,"b.png"]}`, expected: `[{},{"src":"b.png"}]`},
	} {
		tc := toPin
		t.Run(tc.name, func(t *testing.T) {
			m, err := DecodeManifest([]byte(tc.stored))
			require.NoError(t, err)
			assert.JSONEq(t, tc.expected, mustEncode(t, m))
		})
	}
}

func TestDecodeManifestErrors(t *testing.T) {
	_, err := DecodeManifest([]byte(`[{"src":`))
	assert.True(t, errors.Is(err, ErrInvalidManifest))

	_, err = DecodeManifest(nil)
	assert.True(t, errors.Is(err, ErrInvalidManifest))

}

func TestDecodeManifestMalformedEntries(t *testing.T) {
	m, err := DecodeManifest([]byte(`[{"src": 12},null,"b.png"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"", "", "b.png"}, m.Srcs())

	src, ok := m[0].Get(SrcKey)
	require.True(t, ok)
	assert.Equal(t, float64(12), src, "the raw value is kept")
	assert.Empty(t, m[1].Keys())

	// a payload with the same entries is rejected
	_, err = DecodeItems([]byte(`[{"src": 12},null,"b.png"]`))
	assert.True(t, errors.Is(err, ErrInvalidItem))
}

func TestDecodeItems(t *testing.T) {
	for _, notAList := range []string{`"a.png"`, `{"slides":[]}`, `null`, `12`, ``} {
		_, err := DecodeItems([]byte(notAList))
		assert.Truef(t, errors.Is(err, ErrNotAList), "expected %q to be rejected", notAList)
	}

	m, err := DecodeItems([]byte(` [{"src":"a.png"}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png"}, m.Srcs())
}

func TestItemPassthrough(t *testing.T) {
	const raw = `{"title":"Intro","src":"intro.png","meta":{"z":1,"a":[1,2]},"hidden":false}`
	var item Item
	require.NoError(t, json.Unmarshal([]byte(raw), &item))
	assert.Equal(t, "intro.png", item.Src())
	assert.Equal(t, []string{"title", "src", "meta", "hidden"}, item.Keys())

	b, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Equal(t, raw, string(b), "fields must keep their order")

	title, ok := item.Get("title")
	require.True(t, ok)
	assert.Equal(t, "Intro", title)

	item.Set(SrcKey, "renamed.png")
	assert.Equal(t, "renamed.png", item.Src())
}

func TestItemZeroValue(t *testing.T) {
	var item Item
	b, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{"src":""}`, string(b))

	item.Set("title", "x")
	b, err = json.Marshal(item)
	require.NoError(t, err)
	assert.Equal(t, `{"src":"","title":"x"}`, string(b))
}

func TestEncode(t *testing.T) {
	m := Manifest{NewItem("b.png"), NewItem("a.png")}
	b, err := m.Encode()
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"src\": \"b.png\"\n  },\n  {\n    \"src\": \"a.png\"\n  }\n]", string(b))

	var empty Manifest
	b, err = empty.Encode()
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
}

func TestRemoved(t *testing.T) {
	old := Manifest{NewItem("a"), NewItem("b"), NewItem("c"), NewItem("b"), NewItem("")}
	updated := Manifest{NewItem("a"), NewItem("c")}
	assert.Equal(t, []string{"b", ""}, Removed(old, updated), "items without a path count once")
	assert.Equal(t, []string{"b"}, Removed(old, append(updated, NewItem(""))))

	assert.Empty(t, Removed(updated, updated))
	assert.Empty(t, Removed(nil, updated))
	assert.Equal(t, []string{"a", "c"}, Removed(updated, nil))

	renamed := Manifest{NewItem("a"), NewItem("c2")}
	assert.Equal(t, []string{"c"}, Removed(updated, renamed), "a rename shows as a removal")
}
