package pset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// MarshalJSON renders the set with parameters in declaration order.
//
// Typed sets render as {"type", "label", "params", "untracked"}; anonymous
// nested blocks render as a bare ordered object of their parameters.
func (s Set) MarshalJSON() ([]byte, error) {
	if s.anonymous() {
		return s.paramsJSON()
	}

	var b bytes.Buffer
	b.WriteByte('{')
	fields := 0
	write := func(key string, raw []byte) {
		if fields > 0 {
			b.WriteByte(',')
		}
		k, _ := json.Marshal(key)
		b.Write(k)
		b.WriteByte(':')
		b.Write(raw)
		fields++
	}

	if s.Type != "" {
		raw, _ := json.Marshal(s.Type)
		write("type", raw)
	}
	if s.Label != "" {
		raw, _ := json.Marshal(s.Label)
		write("label", raw)
	}
	params, err := s.paramsJSON()
	if err != nil {
		return nil, err
	}
	write("params", params)
	if untracked := s.UntrackedNames(); len(untracked) > 0 {
		raw, err := json.Marshal(untracked)
		if err != nil {
			return nil, err
		}
		write("untracked", raw)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func (s Set) paramsJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, p := range s.params {
		if i > 0 {
			b.WriteByte(',')
		}
		k, _ := json.Marshal(p.Name)
		b.Write(k)
		b.WriteByte(':')
		v, err := json.Marshal(p.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %s.%s: %w", s.Label, p.Name, err)
		}
		b.Write(v)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// MarshalYAML renders the set as an ordered mapping node.
func (s Set) MarshalYAML() (any, error) {
	params, err := s.paramsNode()
	if err != nil {
		return nil, err
	}
	if s.anonymous() {
		return params, nil
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	if s.Type != "" {
		appendScalar(root, "type", s.Type)
	}
	if s.Label != "" {
		appendScalar(root, "label", s.Label)
	}
	root.Content = append(root.Content, keyNode("params"), params)
	if untracked := s.UntrackedNames(); len(untracked) > 0 {
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, name := range untracked {
			seq.Content = append(seq.Content, keyNode(name))
		}
		root.Content = append(root.Content, keyNode("untracked"), seq)
	}
	return root, nil
}

func (s Set) paramsNode() (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range s.params {
		value := &yaml.Node{}
		if err := value.Encode(p.Value); err != nil {
			return nil, fmt.Errorf("encode %s.%s: %w", s.Label, p.Name, err)
		}
		node.Content = append(node.Content, keyNode(p.Name), value)
	}
	return node, nil
}

// UntrackedNames lists untracked parameters, nested ones in dotted form.
func (s Set) UntrackedNames() []string {
	var out []string
	for _, p := range s.params {
		if p.Untracked {
			out = append(out, p.Name)
		}
		if child, ok := p.Value.(Set); ok && child.anonymous() {
			for _, n := range child.UntrackedNames() {
				out = append(out, p.Name+"."+n)
			}
		}
	}
	return out
}

func (s Set) anonymous() bool {
	return s.Type == "" && s.Label == ""
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}

func appendScalar(n *yaml.Node, key, value string) {
	n.Content = append(n.Content, keyNode(key), keyNode(value))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
