package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// DeadlineLayout is how the portal renders submission deadlines
const DeadlineLayout = "2006/01/02 15:04"

// BidRecord is the unit of persistence, keyed by BidNumber
type BidRecord struct {
	BidNumber   string    `json:"bid_number" yaml:"bid_number"`
	Title       string    `json:"title" yaml:"title"`
	Status      string    `json:"status" yaml:"status"`
	Deadline    string    `json:"deadline" yaml:"deadline"`
	Fields      FieldSet  `json:"fields" yaml:"fields"`
	Attachments []string  `json:"attachments" yaml:"attachments"`
	CollectedAt time.Time `json:"collected_at" yaml:"collected_at"`
}

// BidMeta is the persisted state the reconciler compares against
type BidMeta struct {
	Status   string
	Deadline string
}

// DetailInfo is what the detail view yields for one announcement
type DetailInfo struct {
	Fields      FieldSet
	Attachments []string
}

// IsEmpty reports whether neither the field tables nor the attachment grid produced anything
func (d DetailInfo) IsEmpty() bool {
	return d.Fields.Len() == 0 && len(d.Attachments) == 0
}

// Field is one label/value pair of a detail table
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FieldSet is an insertion-ordered label→value mapping where the first value for a label wins.
// The zero value is ready to use.
type FieldSet struct {
	labels []string
	values map[string]string
}

// NewFieldSet builds a FieldSet from pairs in order
func NewFieldSet(fields ...Field) FieldSet {
	var fs FieldSet
	for _, f := range fields {
		fs.Add(f.Label, f.Value)
	}
	return fs
}

// Add inserts label=value unless label is empty or already present. It reports whether it inserted.
func (fs *FieldSet) Add(label, value string) bool {
	if label == "" {
		return false
	}
	if fs.values == nil {
		fs.values = make(map[string]string)
	}
	if _, exists := fs.values[label]; exists {
		return false
	}
	fs.labels = append(fs.labels, label)
	fs.values[label] = value
	return true
}

func (fs FieldSet) Get(label string) (string, bool) {
	v, ok := fs.values[label]
	return v, ok
}

func (fs FieldSet) Len() int {
	return len(fs.labels)
}

// Entries returns the pairs in insertion order
func (fs FieldSet) Entries() []Field {
	out := make([]Field, 0, len(fs.labels))
	for _, label := range fs.labels {
		out = append(out, Field{Label: label, Value: fs.values[label]})
	}
	return out
}

// MarshalJSON writes a JSON object whose keys keep insertion order
func (fs FieldSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, label := range fs.labels {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(label)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(fs.values[label])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of strings, keeping key order and first-wins semantics
func (fs *FieldSet) UnmarshalJSON(data []byte) error {
	*fs = FieldSet{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("fieldset: expected object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("fieldset: expected string key, got %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("fieldset: value for %q: %w", key, err)
		}
		fs.Add(key, value)
	}
	_, err = dec.Token()
	return err
}

// MarshalYAML emits a mapping node so exported YAML keeps the detail table order
func (fs FieldSet) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, label := range fs.labels {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: label},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fs.values[label]},
		)
	}
	return node, nil
}

// ParseDeadline parses a portal deadline in loc. Empty or malformed input yields nil.
func ParseDeadline(text string, loc *time.Location) *time.Time {
	if text == "" {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DeadlineLayout, text, loc)
	if err != nil {
		return nil
	}
	return &t
}
