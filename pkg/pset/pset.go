// Package pset provides immutable, ordered parameter sets.
//
// A Set mirrors a framework module configuration: a module type, a label and
// an ordered list of named parameters. Sets are never mutated in place;
// Clone builds a new Set from an existing one plus an explicit override map,
// and an override naming a parameter that does not exist is an error.
//
// Nested sets (for example a fitter block inside a monitor) are stored as
// parameters whose value is itself a Set and are addressed with dotted names:
//
//	monitor.Clone("dqmBeamMonitor", map[string]any{
//		"BeamFitter.WriteAscii": true,
//		"resetEveryNLumi":       5,
//	})
package pset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownParam indicates an override or lookup named a parameter the set
// does not declare.
var ErrUnknownParam = errors.New("unknown parameter")

// ErrDuplicateParam indicates a parameter name was declared twice.
var ErrDuplicateParam = errors.New("duplicate parameter")

// Param is a single named parameter.
type Param struct {
	Name  string
	Value any

	// Untracked parameters do not contribute to the framework's provenance
	// hash. They are rendered separately.
	Untracked bool
}

// Tracked builds a tracked parameter.
func Tracked(name string, value any) Param {
	return Param{Name: name, Value: value}
}

// Untracked builds an untracked parameter.
func Untracked(name string, value any) Param {
	return Param{Name: name, Value: value, Untracked: true}
}

// Set is an immutable ordered parameter set.
type Set struct {
	Type   string
	Label  string
	params []Param
}

// New builds a Set. Duplicate names panic since sets are declared in code.
func New(typ, label string, params ...Param) Set {
	s := Set{Type: typ, Label: label}
	for _, p := range params {
		if s.index(p.Name) >= 0 {
			panic(fmt.Sprintf("pset %s: %v %q", label, ErrDuplicateParam, p.Name))
		}
		s.params = append(s.params, Param{Name: p.Name, Value: copyValue(p.Value), Untracked: p.Untracked})
	}
	return s
}

// Block builds an anonymous nested set.
func Block(params ...Param) Set {
	return New("", "", params...)
}

// Len returns the number of top-level parameters.
func (s Set) Len() int {
	return len(s.params)
}

// Names returns the top-level parameter names in declaration order.
func (s Set) Names() []string {
	out := make([]string, 0, len(s.params))
	for _, p := range s.params {
		out = append(out, p.Name)
	}
	return out
}

// Params returns a copy of the top-level parameters.
func (s Set) Params() []Param {
	out := make([]Param, 0, len(s.params))
	for _, p := range s.params {
		out = append(out, Param{Name: p.Name, Value: copyValue(p.Value), Untracked: p.Untracked})
	}
	return out
}

// Get looks up a parameter value by (possibly dotted) name.
func (s Set) Get(name string) (any, bool) {
	head, rest, nested := strings.Cut(name, ".")
	i := s.index(head)
	if i < 0 {
		return nil, false
	}
	v := s.params[i].Value
	if !nested {
		return copyValue(v), true
	}
	child, ok := v.(Set)
	if !ok {
		return nil, false
	}
	return child.Get(rest)
}

// String returns a string parameter, or "" when absent or not a string.
func (s Set) String(name string) string {
	v, ok := s.Get(name)
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}

// Clone returns a copy of s relabelled to label with overrides applied.
//
// An empty label keeps the original label. Overrides are applied in sorted
// key order so the result does not depend on map iteration.
func (s Set) Clone(label string, overrides map[string]any) (Set, error) {
	out := s.copySet()
	if label != "" {
		out.Label = label
	}
	for _, name := range sortedKeys(overrides) {
		if err := out.set(name, overrides[name]); err != nil {
			return Set{}, fmt.Errorf("clone %s as %s: %w", s.Label, out.Label, err)
		}
	}
	return out, nil
}

// With returns a copy of s with additional parameters appended.
func (s Set) With(params ...Param) (Set, error) {
	out := s.copySet()
	for _, p := range params {
		if out.index(p.Name) >= 0 {
			return Set{}, fmt.Errorf("%s: %w %q", s.Label, ErrDuplicateParam, p.Name)
		}
		out.params = append(out.params, Param{Name: p.Name, Value: copyValue(p.Value), Untracked: p.Untracked})
	}
	return out, nil
}

func (s *Set) set(name string, value any) error {
	head, rest, nested := strings.Cut(name, ".")
	i := s.index(head)
	if i < 0 {
		return fmt.Errorf("%w %q", ErrUnknownParam, name)
	}
	if !nested {
		s.params[i].Value = copyValue(value)
		return nil
	}
	child, ok := s.params[i].Value.(Set)
	if !ok {
		return fmt.Errorf("%w %q: %s is not a parameter set", ErrUnknownParam, name, head)
	}
	if err := child.set(rest, value); err != nil {
		return err
	}
	s.params[i].Value = child
	return nil
}

func (s Set) index(name string) int {
	for i, p := range s.params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func (s Set) copySet() Set {
	out := Set{Type: s.Type, Label: s.Label, params: make([]Param, len(s.params))}
	for i, p := range s.params {
		out.params[i] = Param{Name: p.Name, Value: copyValue(p.Value), Untracked: p.Untracked}
	}
	return out
}

// copyValue detaches slices and nested sets from the caller.
func copyValue(v any) any {
	switch t := v.(type) {
	case Set:
		return t.copySet()
	case []string:
		return append([]string(nil), t...)
	case []int:
		return append([]int(nil), t...)
	case []Set:
		out := make([]Set, len(t))
		for i := range t {
			out[i] = t[i].copySet()
		}
		return out
	default:
		return v
	}
}
