package model

import (
	"bytes"
	"encoding/json"
)

// SchemaObjects tells clients that items are always returned as objects
const SchemaObjects = "objects"

// Manifest is the ordered list of slides
type Manifest []Item

// legacyManifest is the {"slides": [...]} wrapper used by older clients
type legacyManifest struct {
	Slides json.RawMessage `json:"slides"`
}

// DecodeManifest parses a stored manifest.
//
// Accepted shapes are a JSON array of items, or an object with a "slides" array.
// Any other valid JSON value yields an empty manifest.
// Unlike DecodeItems, malformed entries never fail the decoding: see storedItem.
func DecodeManifest(data []byte) (Manifest, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || !json.Valid(data) {
		return nil, ErrInvalidManifest.Wrapf("not a JSON document: %s", truncate(data))
	}

	switch data[0] {
	case '[':
		return decodeStored(data)

	case '{':
		var legacy legacyManifest
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, ErrInvalidManifest.Wrap(err)
		}
		if isList(legacy.Slides) {
			return decodeStored(legacy.Slides)
		}
	}

	return Manifest{}, nil
}

// DecodeItems parses a JSON array of items. Anything else is rejected with ErrNotAList.
func DecodeItems(data []byte) (Manifest, error) {
	if !isList(data) {
		return nil, ErrNotAList
	}
	m := Manifest{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeStored(data []byte) (Manifest, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, ErrInvalidManifest.Wrap(err)
	}
	m := make(Manifest, 0, len(entries))
	for _, entry := range entries {
		m = append(m, storedItem(entry))
	}
	return m, nil
}

func isList(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '['
}

// Encode renders the manifest as an indented JSON array, in the order of the items
func (m Manifest) Encode() ([]byte, error) {
	if m == nil {
		m = Manifest{}
	}
	return json.MarshalIndent(m, "", "  ")
}

// Srcs returns the paths of all items, in order
func (m Manifest) Srcs() []string {
	srcs := make([]string, 0, len(m))
	for _, item := range m {
		srcs = append(srcs, item.Src())
	}
	return srcs
}

// Removed lists the paths present in existing but absent from updated.
//
// Paths are compared as sets: duplicates are reported once, in order of first appearance.
// Items without a path count as the empty path, which callers must not try to delete.
func Removed(existing, updated Manifest) []string {
	kept := make(map[string]struct{}, len(updated))
	for _, item := range updated {
		kept[item.Src()] = struct{}{}
	}

	removed := make([]string, 0)
	seen := make(map[string]struct{}, len(existing))
	for _, item := range existing {
		src := item.Src()
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		if _, ok := kept[src]; !ok {
			removed = append(removed, src)
		}
	}
	return removed
}
