package model

import (
	"bytes"
	"encoding/json"

	"github.com/iancoleman/orderedmap"
)

// SrcKey is the field holding the path of a slide
const SrcKey = "src"

// Item is a slide entry.
//
// An item is decoded either from a bare path string (legacy) or from an object.
// Fields other than src are opaque and kept in their original order.
type Item struct {
	src    string
	fields *orderedmap.OrderedMap
}

// NewItem builds an item for a slide path
func NewItem(src string) Item {
	fields := orderedmap.New()
	fields.Set(SrcKey, src)
	return Item{src: src, fields: fields}
}

// Src returns the path of the slide in the repository
func (i Item) Src() string {
	return i.src
}

// Get a field of the item
func (i Item) Get(key string) (interface{}, bool) {
	if i.fields == nil {
		if key == SrcKey {
			return i.src, true
		}
		return nil, false
	}
	return i.fields.Get(key)
}

// Set a field of the item. Setting src to a string changes the slide path.
func (i *Item) Set(key string, value interface{}) {
	if i.fields == nil {
		i.fields = NewItem(i.src).fields
	}
	i.fields.Set(key, value)
	if key == SrcKey {
		s, _ := value.(string)
		i.src = s
	}
}

// Keys returns the field names, in order
func (i Item) Keys() []string {
	if i.fields == nil {
		return []string{SrcKey}
	}
	return i.fields.Keys()
}

// MarshalJSON renders the item as an object
func (i Item) MarshalJSON() ([]byte, error) {
	if i.fields == nil {
		return NewItem(i.src).fields.MarshalJSON()
	}
	return i.fields.MarshalJSON()
}

// UnmarshalJSON decodes either a path string or an object
func (i *Item) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrInvalidItem
	}

	switch data[0] {
	case '"':
		var src string
		if err := json.Unmarshal(data, &src); err != nil {
			return ErrInvalidItem.Wrap(err)
		}
		*i = NewItem(src)
		return nil

	case '{':
		fields := orderedmap.New()
		if err := json.Unmarshal(data, fields); err != nil {
			return ErrInvalidItem.Wrap(err)
		}
		var src string
		if v, ok := fields.Get(SrcKey); ok {
			s, isString := v.(string)
			if !isString && v != nil {
				return ErrInvalidItem.Wrapf("%q must be a string, got %s", SrcKey, string(data))
			}
			src = s
		}
		*i = Item{src: src, fields: fields}
		return nil

	default:
		return ErrInvalidItem.Wrapf("expected a string or an object, got %s", truncate(data))
	}
}

// storedItem decodes an entry of a stored manifest and never fails.
//
// Entries that are neither a path nor an object become empty items.
// An object with a non-string src keeps it as a plain field and has no path.
func storedItem(data []byte) Item {
	var item Item
	if err := item.UnmarshalJSON(data); err == nil {
		return item
	}
	fields := orderedmap.New()
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		if err := json.Unmarshal(data, fields); err != nil {
			fields = orderedmap.New()
		}
	}
	return Item{fields: fields}
}

func truncate(data []byte) string {
	const maxLen = 64
	if len(data) > maxLen {
		return string(data[:maxLen]) + "..."
	}
	return string(data)
}
