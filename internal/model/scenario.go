package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FileAttachment is a scenario value carrying file content instead of text
type FileAttachment struct {
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Base64   string `json:"base64_string" yaml:"base64_string"`
	MimeType string `json:"mime_type" yaml:"mime_type"`
}

// Scenario is an ordered key -> value mapping used as template context
type Scenario struct {
	keys   []string
	values map[string]any
}

// NewScenario builds a scenario from alternating key/value pairs
func NewScenario(pairs ...any) Scenario {
	var s Scenario
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			continue
		}
		s.Set(key, pairs[i+1])
	}
	return s
}

// Set adds or replaces a value, keeping the original position of existing keys
func (s *Scenario) Set(key string, value any) {
	if s.values == nil {
		s.values = make(map[string]any)
	}
	if _, exists := s.values[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Get returns the value for key
func (s Scenario) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys returns keys in insertion order
func (s Scenario) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

func (s Scenario) Len() int {
	return len(s.keys)
}

// Attachment returns the file attachment stored under key, if any
func (s Scenario) Attachment(key string) (*FileAttachment, bool) {
	fa, ok := s.values[key].(*FileAttachment)
	return fa, ok
}

// TemplateValues returns the scenario as template context. File attachments
// are left out of ordinary substitution.
func (s Scenario) TemplateValues() map[string]any {
	out := make(map[string]any, len(s.keys))
	for _, k := range s.keys {
		if _, isFile := s.values[k].(*FileAttachment); isFile {
			continue
		}
		out[k] = s.values[k]
	}
	return out
}

// MarshalJSON keeps key order
func (s Scenario) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(s.values[k])
		if err != nil {
			return nil, fmt.Errorf("scenario key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON keeps key order and recognises file attachments
func (s *Scenario) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("scenario must be a JSON object")
	}

	*s = Scenario{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("scenario key must be a string")
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("scenario key %q: %w", key, err)
		}
		s.Set(key, scenarioValue(NormalizeNumbers(raw)))
	}
	_, err = dec.Token()
	return err
}

// UnmarshalYAML keeps mapping order and recognises file attachments
func (s *Scenario) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: scenario must be a mapping", node.Line)
	}
	*s = Scenario{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var raw any
		if err := node.Content[i+1].Decode(&raw); err != nil {
			return fmt.Errorf("scenario key %q: %w", key, err)
		}
		s.Set(key, scenarioValue(raw))
	}
	return nil
}

func scenarioValue(raw any) any {
	m, ok := raw.(map[string]any)
	if !ok {
		return raw
	}
	b64, hasData := m["base64_string"].(string)
	mime, hasMime := m["mime_type"].(string)
	if !hasData || !hasMime {
		return raw
	}
	name, _ := m["name"].(string)
	return &FileAttachment{Name: name, Base64: b64, MimeType: mime}
}
