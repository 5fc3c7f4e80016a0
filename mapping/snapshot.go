// Package mapping records the naming of a flattened lens chain: for every
// class and member of the program the name it had in the input and the
// name it has now. A Snapshot is sealed from an AppliedGraphLens, travels
// as canonical CBOR and answers retrace queries without the chain.
package mapping

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/chazu/lenschain/graph"
	"github.com/chazu/lenschain/lens"
)

// Entry pairs an original name with its current name. Types are stored as
// descriptors and members in "Lholder;->name..." form.
type Entry struct {
	Original string `cbor:"1,keyasint"`
	Current  string `cbor:"2,keyasint"`
	// Representative marks the original that names a merged class when
	// only one name can be given.
	Representative bool `cbor:"3,keyasint,omitempty"`
}

// Snapshot is the naming of one compilation. Entry lists are sorted by
// current name, then original name.
type Snapshot struct {
	RunID   uuid.UUID `cbor:"1,keyasint"`
	Types   []Entry   `cbor:"2,keyasint,omitempty"`
	Fields  []Entry   `cbor:"3,keyasint,omitempty"`
	Methods []Entry   `cbor:"4,keyasint,omitempty"`
}

// Seal records the renamings of applied. Classes that kept their name are
// left out.
func Seal(applied *lens.AppliedGraphLens, runID uuid.UUID) *Snapshot {
	s := &Snapshot{RunID: runID}
	applied.ForEachRenamedType(func(original, current graph.Type) {
		if original != current {
			s.Types = append(s.Types, Entry{
				Original:       original.Descriptor(),
				Current:        current.Descriptor(),
				Representative: applied.GetOriginalType(current, lens.NoCodeLens) == original,
			})
		}
	})
	applied.ForEachRenamedField(func(current, original graph.Field) {
		s.Fields = append(s.Fields, Entry{Original: original.Smali(), Current: current.Smali()})
	})
	applied.ForEachRenamedMethod(func(current, original graph.Method) {
		s.Methods = append(s.Methods, Entry{Original: original.Smali(), Current: current.Smali()})
	})
	s.sort()
	return s
}

func compareEntries(a, b Entry) int {
	return cmp.Or(strings.Compare(a.Current, b.Current), strings.Compare(a.Original, b.Original))
}

func (s *Snapshot) sort() {
	slices.SortFunc(s.Types, compareEntries)
	slices.SortFunc(s.Fields, compareEntries)
	slices.SortFunc(s.Methods, compareEntries)
}

// originals returns the entries of entries whose current name is current.
func originals(entries []Entry, current string) []Entry {
	i, _ := slices.BinarySearchFunc(entries, current, func(e Entry, c string) int {
		return strings.Compare(e.Current, c)
	})
	j := i
	for j < len(entries) && entries[j].Current == current {
		j++
	}
	return entries[i:j]
}

// RetraceType returns the original types merged into t. A type that was
// not renamed is its own original.
func (s *Snapshot) RetraceType(t graph.Type) []graph.Type {
	base := t.BaseType()
	found := originals(s.Types, base.Descriptor())
	if len(found) == 0 {
		return []graph.Type{t}
	}
	out := make([]graph.Type, len(found))
	for i, e := range found {
		out[i] = t.ReplaceBaseType(graph.NewType(e.Original))
	}
	return out
}

// retraceClass returns the representative original of a class type.
func (s *Snapshot) retraceClass(t graph.Type) graph.Type {
	found := originals(s.Types, t.Descriptor())
	for _, e := range found {
		if e.Representative {
			return graph.NewType(e.Original)
		}
	}
	if len(found) > 0 {
		return graph.NewType(found[0].Original)
	}
	return t
}

func (s *Snapshot) retraceTypeName(t graph.Type) graph.Type {
	return t.MapClassType(s.retraceClass)
}

// RetraceField returns the original of f. A field without an entry keeps
// its name; its holder and type are retraced.
func (s *Snapshot) RetraceField(f graph.Field) graph.Field {
	if found := originals(s.Fields, f.Smali()); len(found) > 0 {
		return graph.MustParseField(found[0].Original)
	}
	return graph.NewField(s.retraceTypeName(f.Holder), f.Name, s.retraceTypeName(f.Type))
}

// RetraceMethod returns the originals of m: more than one when several
// methods were merged into m. A method without an entry keeps its name;
// its holder and prototype are retraced.
func (s *Snapshot) RetraceMethod(m graph.Method) []graph.Method {
	found := originals(s.Methods, m.Smali())
	if len(found) == 0 {
		return []graph.Method{graph.NewMethod(s.retraceTypeName(m.Holder), m.Name, m.Proto.MapTypes(s.retraceTypeName))}
	}
	out := make([]graph.Method, len(found))
	for i, e := range found {
		out[i] = graph.MustParseMethod(e.Original)
	}
	return out
}

// Validate checks that every entry holds well-formed names and that the
// lists are sorted.
func (s *Snapshot) Validate() error {
	check := func(kind string, entries []Entry, parse func(string) error) error {
		if !slices.IsSortedFunc(entries, compareEntries) {
			return fmt.Errorf("mapping: %s entries are not sorted", kind)
		}
		for _, e := range entries {
			if err := parse(e.Original); err != nil {
				return fmt.Errorf("mapping: %s entry: %w", kind, err)
			}
			if err := parse(e.Current); err != nil {
				return fmt.Errorf("mapping: %s entry: %w", kind, err)
			}
		}
		return nil
	}
	if err := check("type", s.Types, func(d string) error {
		t, err := graph.ParseType(d)
		if err == nil && !t.IsClass() {
			err = fmt.Errorf("%s is not a class type", d)
		}
		return err
	}); err != nil {
		return err
	}
	if err := check("field", s.Fields, func(d string) error { _, err := graph.ParseField(d); return err }); err != nil {
		return err
	}
	return check("method", s.Methods, func(d string) error { _, err := graph.ParseMethod(d); return err })
}

// WriteText writes the snapshot as "original -> current" lines grouped by
// kind.
func (s *Snapshot) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "# run %s\n", s.RunID); err != nil {
		return err
	}
	for _, group := range []struct {
		kind    string
		entries []Entry
	}{{"type", s.Types}, {"field", s.Fields}, {"method", s.Methods}} {
		for _, e := range group.entries {
			if _, err := fmt.Fprintf(w, "%s %s -> %s\n", group.kind, e.Original, e.Current); err != nil {
				return err
			}
		}
	}
	return nil
}
