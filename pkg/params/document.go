package params

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Entry is one stored parameter set of a class.
type Entry struct {
	ID     string
	Params Params
}

// Entries holds the entries of one class in stored order.
type Entries []Entry

// Get returns the parameter set stored under id.
func (e Entries) Get(id string) (Params, bool) {
	for _, entry := range e {
		if entry.ID == id {
			return entry.Params, true
		}
	}
	return nil, false
}

// IDs returns the ids in stored order.
func (e Entries) IDs() []string {
	ids := make([]string, len(e))
	for i, entry := range e {
		ids[i] = entry.ID
	}
	return ids
}

// Document is the decoded parameter file. Class and id order follow the
// file, and new classes and ids are appended.
type Document struct {
	classes *orderedmap.OrderedMap[string, *orderedmap.OrderedMap[string, Params]]
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{classes: orderedmap.New[string, *orderedmap.OrderedMap[string, Params]]()}
}

func (d *Document) init() {
	if d.classes == nil {
		d.classes = orderedmap.New[string, *orderedmap.OrderedMap[string, Params]]()
	}
}

// Classes returns the class names in stored order.
func (d *Document) Classes() []string {
	d.init()
	classes := make([]string, 0, d.classes.Len())
	for pair := d.classes.Oldest(); pair != nil; pair = pair.Next() {
		classes = append(classes, pair.Key)
	}
	return classes
}

// Entries returns the entries of class in stored order.
func (d *Document) Entries(class string) Entries {
	d.init()
	ids, ok := d.classes.Get(class)
	if !ok {
		return nil
	}
	entries := make(Entries, 0, ids.Len())
	for pair := ids.Oldest(); pair != nil; pair = pair.Next() {
		entries = append(entries, Entry{ID: pair.Key, Params: pair.Value})
	}
	return entries
}

// Get returns the parameter set stored for class and id.
func (d *Document) Get(class, id string) (Params, bool) {
	d.init()
	ids, ok := d.classes.Get(class)
	if !ok {
		return nil, false
	}
	return ids.Get(id)
}

// Set replaces the parameter set of class and id as a whole. An existing id
// keeps its position.
func (d *Document) Set(class, id string, p Params) {
	d.init()
	if p == nil {
		p = Params{}
	}
	ids, ok := d.classes.Get(class)
	if !ok {
		ids = orderedmap.New[string, Params]()
		d.classes.Set(class, ids)
	}
	ids.Set(id, p)
}

// Len returns the number of classes.
func (d *Document) Len() int {
	d.init()
	return d.classes.Len()
}

// Map returns the document as nested maps, dropping order.
func (d *Document) Map() map[string]map[string]Params {
	d.init()
	out := make(map[string]map[string]Params, d.classes.Len())
	for class := d.classes.Oldest(); class != nil; class = class.Next() {
		ids := make(map[string]Params, class.Value.Len())
		for entry := class.Value.Oldest(); entry != nil; entry = entry.Next() {
			ids[entry.Key] = entry.Value
		}
		out[class.Key] = ids
	}
	return out
}

// MarshalJSON writes classes and ids in stored order. Keys inside a
// parameter set are sorted.
func (d *Document) MarshalJSON() ([]byte, error) {
	d.init()
	return d.classes.MarshalJSON()
}

// UnmarshalJSON reads a parameter file, keeping class and id order. Every
// entry has to be a JSON object.
func (d *Document) UnmarshalJSON(data []byte) error {
	raw := orderedmap.New[string, *orderedmap.OrderedMap[string, any]]()
	if err := json.Unmarshal(data, raw); err != nil {
		return err
	}

	doc := NewDocument()
	for class := raw.Oldest(); class != nil; class = class.Next() {
		if class.Value == nil {
			return fmt.Errorf("%w: %s has to be a mapping of ids", ErrInvalidParams, class.Key)
		}
		ids := orderedmap.New[string, Params]()
		for entry := class.Value.Oldest(); entry != nil; entry = entry.Next() {
			m, ok := entry.Value.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: %s.%s has to be a mapping but found %T instead", ErrInvalidParams, class.Key, entry.Key, entry.Value)
			}
			ids.Set(entry.Key, Params(m))
		}
		doc.classes.Set(class.Key, ids)
	}

	*d = *doc
	return nil
}
